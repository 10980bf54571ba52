package scan

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"routesync/internal/pkg/errs"
)

var (
	// ErrMalformedPayload is a validation failure: the scanned text is not a QR payload.
	ErrMalformedPayload = fmt.Errorf("%w: malformed QR payload", errs.ErrValueIsInvalid)

	// ErrFingerprintMismatch is an integrity failure and must never be retried.
	ErrFingerprintMismatch = fmt.Errorf("%w: QR fingerprint mismatch", errs.ErrIntegrity)

	// ErrAlreadyProcessed means the order left pending before this scan.
	ErrAlreadyProcessed = fmt.Errorf("%w: order already processed", errs.ErrConflict)

	// ErrAlreadyScanned means the order number was accepted earlier in this session.
	ErrAlreadyScanned = fmt.Errorf("%w: order already scanned", errs.ErrConflict)
)

// PayloadItem is one line printed into the QR code.
type PayloadItem struct {
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
}

// wirePayload accepts both the snake_case keys written by the label printer
// and the camelCase keys used by newer labels.
type wirePayload struct {
	OrderNumber      string        `json:"order_number"`
	OrderNumberCamel string        `json:"orderNumber"`
	CustomerName     string        `json:"customer_name"`
	CustomerCamel    string        `json:"customerName"`
	Items            []PayloadItem `json:"items"`
}

func (w wirePayload) orderNumber() string {
	if n := strings.TrimSpace(w.OrderNumber); n != "" {
		return n
	}
	return strings.TrimSpace(w.OrderNumberCamel)
}

func (w wirePayload) customerName() string {
	if n := strings.TrimSpace(w.CustomerName); n != "" {
		return n
	}
	return strings.TrimSpace(w.CustomerCamel)
}

// Payload is a decoded QR scan.
type Payload struct {
	orderNumber  string
	customerName string
	items        []PayloadItem
	hash         string
}

// DecodePayload parses raw scanned text. It fails with ErrMalformedPayload when
// the text is not a JSON object or carries no order number.
func DecodePayload(raw string) (Payload, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Payload{}, ErrMalformedPayload
	}

	var w wirePayload
	if err := json.Unmarshal([]byte(raw), &w); err != nil {
		return Payload{}, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}
	if w.orderNumber() == "" {
		return Payload{}, fmt.Errorf("%w: %w", ErrMalformedPayload, errs.NewValueIsRequiredError("order_number"))
	}

	return Payload{
		orderNumber:  w.orderNumber(),
		customerName: w.customerName(),
		items:        w.Items,
		hash:         Hash(raw),
	}, nil
}

func (p Payload) OrderNumber() string  { return p.orderNumber }
func (p Payload) CustomerName() string { return p.customerName }
func (p Payload) Hash() string         { return p.hash }

func (p Payload) Items() []PayloadItem {
	out := make([]PayloadItem, len(p.items))
	copy(out, p.items)
	return out
}

// Hash returns the hex SHA-256 of a scanned payload, the only form in which
// raw scans are kept.
func Hash(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// Fingerprint is the canonical QR payload stored server-side with an order.
type Fingerprint struct {
	orderNumber string
}

// ParseFingerprint reads a stored fingerprint. Unreadable values yield an empty
// fingerprint, which matches no payload.
func ParseFingerprint(stored string) Fingerprint {
	var w wirePayload
	if err := json.Unmarshal([]byte(stored), &w); err != nil {
		return Fingerprint{}
	}
	return Fingerprint{orderNumber: w.orderNumber()}
}

// NewFingerprint builds the value stored in orders.qr_code for a new order.
func NewFingerprint(orderNumber, customerName string, items []PayloadItem) (string, error) {
	if strings.TrimSpace(orderNumber) == "" {
		return "", errs.NewValueIsRequiredError("order_number")
	}
	b, err := json.Marshal(wirePayload{
		OrderNumber:  orderNumber,
		CustomerName: customerName,
		Items:        items,
	})
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (f Fingerprint) OrderNumber() string { return f.orderNumber }

func (f Fingerprint) IsEmpty() bool { return f.orderNumber == "" }

// Verify fails with ErrFingerprintMismatch unless the fingerprint names the
// same order number as the scanned payload.
func (f Fingerprint) Verify(p Payload) error {
	if f.IsEmpty() || f.orderNumber != p.orderNumber {
		return fmt.Errorf("%w: scanned %q", ErrFingerprintMismatch, p.orderNumber)
	}
	return nil
}

// IsRejection reports whether err is a scan outcome the driver must see as a
// hard rejection rather than a retryable failure.
func IsRejection(err error) bool {
	return errors.Is(err, ErrFingerprintMismatch) || errors.Is(err, ErrMalformedPayload)
}
