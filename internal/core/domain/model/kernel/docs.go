// Package kernel provides the shared value objects of the order lifecycle
// domain: UUID identifiers and GeoPoint customer coordinates.
//
// Both are immutable, validated at construction and reject their zero value
// through Validate, so domain objects built from them are always consistent.
package kernel
