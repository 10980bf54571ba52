package ports

import (
	"context"
	"fmt"
	"strings"
)

// Stream names a table whose changes are published.
type Stream string

const (
	StreamDriverPackages Stream = "driver_packages"
	StreamPackageOrders  Stream = "package_orders"
	StreamOrders         Stream = "orders"
)

// Streams lists every stream a driver session subscribes to.
func Streams() []Stream {
	return []Stream{StreamDriverPackages, StreamPackageOrders, StreamOrders}
}

// Notification says that something changed in a stream. Fields carries the key
// columns of the changed row when the transport provides them; consumers must
// not rely on it for anything but filtering. An update that changed a key
// column also carries the old value under PreviousField(column).
type Notification struct {
	Stream Stream            `json:"stream"`
	Op     string            `json:"op"`
	Fields map[string]string `json:"fields,omitempty"`
}

// Filter restricts a subscription to rows whose Column equals Value.
// The zero Filter matches everything.
type Filter struct {
	Column string
	Value  string
}

// ParseFilter reads the "column=eq.value" form.
func ParseFilter(s string) (Filter, error) {
	if s == "" {
		return Filter{}, nil
	}
	column, rest, ok := strings.Cut(s, "=")
	value, isEq := strings.CutPrefix(rest, "eq.")
	if !ok || !isEq || column == "" || value == "" {
		return Filter{}, fmt.Errorf("unsupported filter %q, want column=eq.value", s)
	}
	return Filter{Column: column, Value: value}, nil
}

func (f Filter) String() string {
	if f.Column == "" {
		return ""
	}
	return f.Column + "=eq." + f.Value
}

// PreviousField names the field holding a key column's value before an update.
func PreviousField(column string) string {
	return "old_" + column
}

// Matches reports whether n passes the filter. Notifications without the
// filtered column are delivered, since transports may coalesce payloads. A
// row moved away from the filtered value matches too, so the side that lost
// it hears about the change.
func (f Filter) Matches(n Notification) bool {
	if f.Column == "" {
		return true
	}
	v, ok := n.Fields[f.Column]
	if !ok || v == f.Value {
		return true
	}
	prev, ok := n.Fields[PreviousField(f.Column)]
	return ok && prev == f.Value
}

// NotificationHandler receives notifications. Handlers must not block.
type NotificationHandler func(Notification)

// Subscription is released by Unsubscribe. After Unsubscribe returns the
// handler is not invoked again.
type Subscription interface {
	Unsubscribe() error
}

// ChangeFeed delivers at-least-once, possibly coalesced change notifications
// with no ordering guarantee across streams.
type ChangeFeed interface {
	Subscribe(ctx context.Context, stream Stream, filter Filter, handler NotificationHandler) (Subscription, error)
}

// ChangePublisher forwards notifications to a transport, used to relay
// database notifications to a broker shared by several service instances.
type ChangePublisher interface {
	Publish(ctx context.Context, n Notification) error
}
