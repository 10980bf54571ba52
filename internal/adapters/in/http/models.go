package http

import (
	"time"

	"routesync/internal/core/application/usecases/queries"
	"routesync/internal/core/domain/model/delivery"
	"routesync/internal/core/domain/model/order"
	"routesync/internal/core/domain/model/scan"
)

// Error is the body of every failed request.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type Item struct {
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
}

type Order struct {
	ID                  string     `json:"id"`
	Number              string     `json:"order_number"`
	Type                string     `json:"type"`
	Status              string     `json:"status"`
	DisplayGroup        string     `json:"display_group"`
	CustomerName        string     `json:"customer_name"`
	Address             string     `json:"address,omitempty"`
	Contact             string     `json:"contact,omitempty"`
	Location            *Location  `json:"location,omitempty"`
	WindowStart         *time.Time `json:"window_start,omitempty"`
	WindowEnd           *time.Time `json:"window_end,omitempty"`
	Items               []Item     `json:"items"`
	SpecialInstructions string     `json:"special_instructions,omitempty"`
	NavigationURL       string     `json:"navigation_url,omitempty"`
}

type Stop struct {
	Position  int    `json:"position"`
	PackageID string `json:"package_id"`
	Order     Order  `json:"order"`
}

type StaleWarning struct {
	PackageID string    `json:"package_id"`
	Since     time.Time `json:"since"`
	Reason    string    `json:"reason"`
}

type Route struct {
	DriverID          string         `json:"driver_id"`
	Date              string         `json:"date"`
	Stops             []Stop         `json:"stops"`
	Pickups           []Stop         `json:"pickups"`
	Dropoffs          []Stop         `json:"dropoffs"`
	UnscannedDropoffs int            `json:"unscanned_dropoffs"`
	Warnings          []StaleWarning `json:"warnings"`
}

type OrderDetail struct {
	PackageID string `json:"package_id"`
	Order     Order  `json:"order"`
}

type ScanRequest struct {
	Payload string `json:"payload"`
}

type ScanEvent struct {
	OrderNumber string    `json:"order_number,omitempty"`
	PayloadHash string    `json:"payload_hash"`
	Timestamp   time.Time `json:"timestamp"`
	Outcome     string    `json:"outcome"`
	Reason      string    `json:"reason,omitempty"`
}

type RefreshAccepted struct {
	StalePackages []string `json:"stale_packages"`
}

type DeliveryResult struct {
	Order            Order     `json:"order"`
	AlreadyDelivered bool      `json:"already_delivered"`
	PhotoURLs        []string  `json:"photo_urls"`
	CompletedAt      time.Time `json:"completed_at"`
}

type Progress struct {
	Completed int `json:"completed"`
	Total     int `json:"total"`
}

type Customer struct {
	Name      string   `json:"name"`
	Address   string   `json:"address"`
	Contact   string   `json:"contact"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

type NewOrder struct {
	Number              string     `json:"order_number"`
	Type                string     `json:"type"`
	Customer            Customer   `json:"customer"`
	WindowStart         *time.Time `json:"window_start"`
	WindowEnd           *time.Time `json:"window_end"`
	Items               []Item     `json:"items"`
	SpecialInstructions string     `json:"special_instructions"`
	DriverID            string     `json:"driver_id"`
	Date                string     `json:"date"`
}

type Created struct {
	ID string `json:"id"`
}

type DeliveryRecord struct {
	OrderID       string    `json:"order_id"`
	OrderNumber   string    `json:"order_number"`
	Status        string    `json:"status"`
	SignatureName string    `json:"signature_name"`
	Notes         string    `json:"notes,omitempty"`
	PhotoURLs     []string  `json:"photo_urls"`
	CompletedAt   time.Time `json:"completed_at"`
}

func toOrder(v queries.OrderView) Order {
	out := Order{
		ID:                  v.ID.String(),
		Number:              v.Number,
		Type:                v.Type.String(),
		Status:              v.Status.String(),
		DisplayGroup:        string(v.DisplayGroup),
		CustomerName:        v.CustomerName,
		Address:             v.Address,
		Contact:             v.Contact,
		WindowStart:         v.WindowStart,
		WindowEnd:           v.WindowEnd,
		Items:               make([]Item, 0, len(v.Items)),
		SpecialInstructions: v.SpecialInstructions,
		NavigationURL:       v.NavigationURL,
	}
	if v.Location != nil {
		out.Location = &Location{Latitude: v.Location.Latitude, Longitude: v.Location.Longitude}
	}
	for _, item := range v.Items {
		out.Items = append(out.Items, Item{ProductName: item.ProductName, Quantity: item.Quantity})
	}
	return out
}

func fromDomainOrder(o *order.Order) Order {
	return toOrder(queries.NewOrderView(o))
}

func toStops(stops []queries.RouteStop) []Stop {
	out := make([]Stop, 0, len(stops))
	for _, s := range stops {
		out = append(out, Stop{Position: s.Position, PackageID: s.PackageID.String(), Order: toOrder(s.Order)})
	}
	return out
}

func toRoute(r queries.GetRouteQueryResponse) Route {
	out := Route{
		DriverID:          r.DriverID.String(),
		Date:              r.Date.Format(time.DateOnly),
		Stops:             toStops(r.Stops),
		Pickups:           toStops(r.Pickups),
		Dropoffs:          toStops(r.Dropoffs),
		UnscannedDropoffs: r.UnscannedDropoffs,
		Warnings:          make([]StaleWarning, 0, len(r.Warnings)),
	}
	for _, w := range r.Warnings {
		out.Warnings = append(out.Warnings, StaleWarning{PackageID: w.PackageID.String(), Since: w.Since, Reason: w.Reason})
	}
	return out
}

func toScanEvents(events []scan.Event) []ScanEvent {
	out := make([]ScanEvent, 0, len(events))
	for _, e := range events {
		out = append(out, ScanEvent{
			OrderNumber: e.OrderNumber,
			PayloadHash: e.PayloadHash,
			Timestamp:   e.Timestamp,
			Outcome:     string(e.Outcome),
			Reason:      e.Reason,
		})
	}
	return out
}

func toProgress(p delivery.Progress) Progress {
	return Progress{Completed: p.Completed, Total: p.Total}
}

func toDeliveryRecord(r queries.GetDeliveryRecordQueryResponse) DeliveryRecord {
	urls := r.PhotoURLs
	if urls == nil {
		urls = []string{}
	}
	return DeliveryRecord{
		OrderID:       r.OrderID.String(),
		OrderNumber:   r.OrderNumber,
		Status:        r.Status,
		SignatureName: r.SignatureName,
		Notes:         r.Notes,
		PhotoURLs:     urls,
		CompletedAt:   r.CompletedAt,
	}
}
