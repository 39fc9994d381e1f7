package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// OrderStatus represents the current progress of a pickup order.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "Pending"
	OrderStatusAccepted  OrderStatus = "Accepted"
	OrderStatusInTransit OrderStatus = "In Transit"
	OrderStatusCompleted OrderStatus = "Completed"
	OrderStatusCancelled OrderStatus = "Cancelled"
)

// OrderStatuses lists every status in lifecycle order.
var OrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusAccepted,
	OrderStatusInTransit,
	OrderStatusCompleted,
	OrderStatusCancelled,
}

// ParseOrderStatus matches s case-insensitively against the known statuses.
func ParseOrderStatus(s string) (OrderStatus, bool) {
	s = strings.TrimSpace(s)
	for _, st := range OrderStatuses {
		if strings.EqualFold(string(st), s) {
			return st, true
		}
	}
	return "", false
}

// PaymentStatus is informational; it is not reconciled against a ledger.
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "Pending"
	PaymentStatusPaid    PaymentStatus = "Paid"
	PaymentStatusFailed  PaymentStatus = "Failed"
)

// PaymentMethod is how the customer is paid out.
type PaymentMethod string

const (
	PaymentMethodCash         PaymentMethod = "Cash"
	PaymentMethodUPI          PaymentMethod = "UPI"
	PaymentMethodBankTransfer PaymentMethod = "Bank Transfer"
)

// ParsePaymentStatus matches s case-insensitively.
func ParsePaymentStatus(s string) (PaymentStatus, bool) {
	for _, v := range []PaymentStatus{PaymentStatusPending, PaymentStatusPaid, PaymentStatusFailed} {
		if strings.EqualFold(string(v), strings.TrimSpace(s)) {
			return v, true
		}
	}
	return "", false
}

// ParsePaymentMethod matches s case-insensitively.
func ParsePaymentMethod(s string) (PaymentMethod, bool) {
	for _, v := range []PaymentMethod{PaymentMethodCash, PaymentMethodUPI, PaymentMethodBankTransfer} {
		if strings.EqualFold(string(v), strings.TrimSpace(s)) {
			return v, true
		}
	}
	return "", false
}

// Order is one scrap pickup transaction owned by UserID.
// Lifecycle timestamps are nullable; one is set for every status the order reached.
type Order struct {
	OrderID            string        `db:"order_id" json:"orderId"`
	UserID             string        `db:"user_id" json:"userId"`
	PickupAddress      string        `db:"pickup_address" json:"pickupAddress"`
	PickupLat          *float64      `db:"pickup_lat" json:"pickupLatitude,omitempty"`
	PickupLng          *float64      `db:"pickup_lng" json:"pickupLongitude,omitempty"`
	CustomerName       *string       `db:"customer_name" json:"customerName,omitempty"`
	CustomerPhone      *string       `db:"customer_phone" json:"customerPhone,omitempty"`
	ScrapType          ScrapType     `db:"scrap_type" json:"scrapType"`
	Weight             float64       `db:"weight" json:"weight"`
	EstimatedPrice     float64       `db:"estimated_price" json:"estimatedPrice"`
	FinalPrice         *float64      `db:"final_price" json:"finalPrice,omitempty"`
	ImageURLs          StringList    `db:"image_urls" json:"imageUrls"`
	Status             OrderStatus   `db:"status" json:"status"`
	OrderedAt          time.Time     `db:"ordered_at" json:"orderedAt"`
	AcceptedAt         *time.Time    `db:"accepted_at" json:"acceptedAt,omitempty"`
	PickupAt           *time.Time    `db:"pickup_at" json:"pickupAt,omitempty"`
	CompletedAt        *time.Time    `db:"completed_at" json:"completedAt,omitempty"`
	CancelledAt        *time.Time    `db:"cancelled_at" json:"cancelledAt,omitempty"`
	CancellationReason *string       `db:"cancellation_reason" json:"cancellationReason,omitempty"`
	DriverID           *string       `db:"driver_id" json:"driverId,omitempty"`
	DriverName         *string       `db:"driver_name" json:"driverName,omitempty"`
	DriverPhone        *string       `db:"driver_phone" json:"driverPhone,omitempty"`
	PaymentStatus      PaymentStatus `db:"payment_status" json:"paymentStatus"`
	PaymentMethod      PaymentMethod `db:"payment_method" json:"paymentMethod"`
	CustomerNotes      *string       `db:"customer_notes" json:"customerNotes,omitempty"`
	AdminNotes         *string       `db:"admin_notes" json:"adminNotes,omitempty"`
}

// AuthoritativePrice is the amount credited to loyalty: final price when locked, else the estimate.
func (o *Order) AuthoritativePrice() float64 {
	if o.FinalPrice != nil {
		return *o.FinalPrice
	}
	return o.EstimatedPrice
}

// NewOrderInput is the schema accepted when a user submits a pickup.
// Pointer fields distinguish "absent" from zero so required checks are explicit.
type NewOrderInput struct {
	PickupAddress  string   `json:"pickupAddress" validate:"required,max=500"`
	PickupLat      *float64 `json:"pickupLatitude" validate:"omitempty,lat"`
	PickupLng      *float64 `json:"pickupLongitude" validate:"omitempty,lng"`
	ScrapType      string   `json:"scrapType" validate:"required,scraptype"`
	Weight         *float64 `json:"weight" validate:"required,gt=0"`
	EstimatedPrice *float64 `json:"estimatedPrice" validate:"required,gte=0"`
	CustomerName   string   `json:"customerName" validate:"max=120"`
	CustomerPhone  string   `json:"customerPhone" validate:"max=32"`
	CustomerNotes  string   `json:"customerNotes" validate:"max=1000"`
	ImageURLs      []string `json:"imageUrls" validate:"max=10,dive,url"`
	PaymentMethod  string   `json:"paymentMethod" validate:"omitempty,paymentmethod"`
}

// StringList is a []string persisted as a JSON array column.
type StringList []string

// Value implements driver.Valuer.
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (l *StringList) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*l = StringList{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("StringList: unsupported source %T", src)
	}
	if len(raw) == 0 {
		*l = StringList{}
		return nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return err
	}
	if out == nil {
		out = []string{}
	}
	*l = out
	return nil
}
