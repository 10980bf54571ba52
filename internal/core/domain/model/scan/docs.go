// Package scan models QR activation input: the scanned payload, the canonical
// fingerprint stored with each order, and the per-session log of scan outcomes
// used for duplicate suppression and driver feedback.
package scan
