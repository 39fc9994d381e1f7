package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"scrapPickup/internal/errs"
	"scrapPickup/internal/geo"
	"scrapPickup/internal/logging"
	"scrapPickup/internal/metrics"
	"scrapPickup/internal/validate"
	"scrapPickup/models"
	"scrapPickup/repository"
)

// DefaultCancellationReason is recorded when a cancel carries no reason.
const DefaultCancellationReason = "User cancelled"

const createAttempts = 3

// Accruer credits a completed order to its owner's loyalty record.
type Accruer interface {
	Accrue(ctx context.Context, orderID string) (*models.LoyaltyProgress, error)
}

// Actor is who asks for a transition. Admin actors skip the ownership check and
// must already have passed the admin role check.
type Actor struct {
	UserID string
	Admin  bool
}

// TransitionExtra carries the optional fields a step may record. Driver and
// admin-note fields are only honoured for admin actors.
type TransitionExtra struct {
	FinalPrice         *float64 `json:"finalPrice"`
	CancellationReason *string  `json:"cancellationReason"`
	DriverID           *string  `json:"driverId"`
	DriverName         *string  `json:"driverName"`
	DriverPhone        *string  `json:"driverPhone"`
	AdminNotes         *string  `json:"adminNotes"`
}

// TransitionResult is the outcome of a successful transition. AccrualErr is set
// when the order completed but crediting loyalty failed; the completion stands
// and the record can be repaired by re-derivation.
type TransitionResult struct {
	Order      *models.Order
	Loyalty    *models.LoyaltyProgress
	AccrualErr error
}

type Service struct {
	orders  repository.OrderRepositoryI
	loyalty Accruer
	log     logrus.FieldLogger
	now     func() time.Time
	newID   func(time.Time) string
}

func NewService(orders repository.OrderRepositoryI, loyalty Accruer, log logrus.FieldLogger) *Service {
	if log == nil {
		log = logging.Discard()
	}
	return &Service{orders: orders, loyalty: loyalty, log: log, now: time.Now, newID: NewOrderID}
}

// NewOrderID composes "ORD", the creation time in unix milliseconds and six
// random upper-case hex characters.
func NewOrderID(at time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return "ORD" + strconv.FormatInt(at.UnixMilli(), 10) + suffix
}

func trimmed(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// Create validates and stores a new Pending order owned by ownerID.
func (s *Service) Create(ctx context.Context, ownerID string, in models.NewOrderInput) (*models.Order, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, errs.Unauthorized("missing user", nil)
	}
	in.PickupAddress = strings.TrimSpace(in.PickupAddress)
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	if err := geo.CheckPair(in.PickupLat, in.PickupLng); err != nil {
		return nil, errs.Validation(err.Error(), map[string]string{"pickupLatitude": err.Error()})
	}
	if math.IsInf(*in.Weight, 0) || math.IsInf(*in.EstimatedPrice, 0) {
		return nil, errs.Validation("weight and estimatedPrice must be finite", nil)
	}
	scrap, _ := models.ParseScrapType(in.ScrapType)
	method := models.PaymentMethodCash
	if in.PaymentMethod != "" {
		method, _ = models.ParsePaymentMethod(in.PaymentMethod)
	}

	now := s.now().UTC()
	o := &models.Order{
		UserID:         ownerID,
		PickupAddress:  in.PickupAddress,
		PickupLat:      in.PickupLat,
		PickupLng:      in.PickupLng,
		CustomerName:   trimmed(in.CustomerName),
		CustomerPhone:  trimmed(in.CustomerPhone),
		ScrapType:      scrap,
		Weight:         *in.Weight,
		EstimatedPrice: *in.EstimatedPrice,
		ImageURLs:      models.StringList(in.ImageURLs),
		Status:         models.OrderStatusPending,
		OrderedAt:      now,
		PaymentStatus:  models.PaymentStatusPending,
		PaymentMethod:  method,
		CustomerNotes:  trimmed(in.CustomerNotes),
	}
	var err error
	for attempt := 0; attempt < createAttempts; attempt++ {
		o.OrderID = s.newID(now)
		err = s.orders.Create(ctx, o)
		if !errors.Is(err, repository.ErrDuplicate) {
			break
		}
	}
	if errors.Is(err, repository.ErrDuplicate) {
		return nil, errs.Conflict("could not allocate a unique order id; retry")
	}
	if err != nil {
		return nil, err
	}
	metrics.RecordOrderCreated()
	logging.WithContext(ctx, s.log).WithFields(logrus.Fields{"order_id": o.OrderID, "scrap_type": o.ScrapType}).Info("order created")
	return o, nil
}

func (s *Service) load(ctx context.Context, orderID string, actor Actor) (*models.Order, error) {
	if actor.Admin {
		return s.orders.GetByID(ctx, orderID)
	}
	return s.orders.GetOwned(ctx, orderID, actor.UserID)
}

func (s *Service) change(o *models.Order, target models.OrderStatus, actor Actor, extra TransitionExtra) (repository.StatusChange, error) {
	ch := repository.StatusChange{From: o.Status, To: target, At: s.now().UTC()}
	if extra.FinalPrice != nil {
		p := *extra.FinalPrice
		if target != models.OrderStatusCompleted {
			return ch, errs.Validation("finalPrice is only accepted when completing an order", map[string]string{"finalPrice": "only allowed with Completed"})
		}
		if p < 0 || math.IsNaN(p) || math.IsInf(p, 0) {
			return ch, errs.Validation("finalPrice must be at least 0", map[string]string{"finalPrice": "must be at least 0"})
		}
		ch.FinalPrice = &p
	}
	switch target {
	case models.OrderStatusCancelled:
		reason := DefaultCancellationReason
		if extra.CancellationReason != nil && strings.TrimSpace(*extra.CancellationReason) != "" {
			reason = strings.TrimSpace(*extra.CancellationReason)
		}
		ch.CancellationReason = &reason
	case models.OrderStatusAccepted, models.OrderStatusInTransit:
		if actor.Admin && (extra.DriverID != nil || extra.DriverName != nil || extra.DriverPhone != nil) {
			ch.Driver = &repository.Driver{ID: extra.DriverID, Name: extra.DriverName, Phone: extra.DriverPhone}
		}
	}
	if actor.Admin {
		ch.AdminNotes = extra.AdminNotes
	}
	return ch, nil
}

// Transition moves an order to target. The write is a compare-and-swap on the
// status that was read, so of two racing transitions exactly one lands; the
// loser gets InvalidTransition when the new status forbids its target and a
// retryable Conflict otherwise.
func (s *Service) Transition(ctx context.Context, orderID string, target models.OrderStatus, actor Actor, extra TransitionExtra) (*TransitionResult, error) {
	res, err := s.transition(ctx, orderID, target, actor, extra)
	outcome := "ok"
	if err != nil {
		outcome = string(errs.KindOf(err))
	}
	metrics.RecordTransition(string(target), outcome)
	return res, err
}

func (s *Service) transition(ctx context.Context, orderID string, target models.OrderStatus, actor Actor, extra TransitionExtra) (*TransitionResult, error) {
	if _, ok := models.ParseOrderStatus(string(target)); !ok {
		return nil, errs.Validation(fmt.Sprintf("unknown status %q", target), map[string]string{"status": "must be a known order status"})
	}
	if !actor.Admin && strings.TrimSpace(actor.UserID) == "" {
		return nil, errs.Unauthorized("missing user", nil)
	}
	cur, err := s.load(ctx, orderID, actor)
	if err != nil {
		return nil, err
	}
	if cur == nil {
		return nil, errs.NotFound("order not found")
	}
	if !CanTransition(cur.Status, target) {
		return nil, errs.InvalidTransition("cannot move order from %s to %s", cur.Status, target)
	}
	ch, err := s.change(cur, target, actor, extra)
	if err != nil {
		return nil, err
	}
	applied, err := s.orders.ApplyStatusChange(ctx, orderID, ch)
	if err != nil {
		return nil, err
	}
	if !applied {
		now, err := s.load(ctx, orderID, actor)
		if err != nil {
			return nil, err
		}
		switch {
		case now == nil:
			return nil, errs.NotFound("order not found")
		case !CanTransition(now.Status, target):
			return nil, errs.InvalidTransition("cannot move order from %s to %s", now.Status, target)
		}
		return nil, errs.Conflict("order changed concurrently; retry")
	}

	updated, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, errs.NotFound("order not found")
	}
	log := logging.WithContext(ctx, s.log).WithFields(logrus.Fields{
		"order_id": orderID,
		"from":     cur.Status,
		"to":       target,
		"admin":    actor.Admin,
	})
	log.Info("order transitioned")

	out := &TransitionResult{Order: updated}
	if target == models.OrderStatusCompleted && s.loyalty != nil {
		p, err := s.loyalty.Accrue(ctx, updated.OrderID)
		if err != nil {
			metrics.RecordAccrualFailure()
			log.WithError(err).Error("loyalty accrual failed after completion")
			out.AccrualErr = err
		} else {
			out.Loyalty = p
		}
	}
	return out, nil
}

// Cancel is the owner-scoped transition to Cancelled.
func (s *Service) Cancel(ctx context.Context, orderID, ownerID, reason string) (*models.Order, error) {
	res, err := s.Transition(ctx, orderID, models.OrderStatusCancelled, Actor{UserID: ownerID}, TransitionExtra{CancellationReason: &reason})
	if err != nil {
		return nil, err
	}
	return res.Order, nil
}

// List returns the owner's orders newest first. status may be empty.
func (s *Service) List(ctx context.Context, ownerID, status string) ([]models.Order, error) {
	var filter *models.OrderStatus
	if strings.TrimSpace(status) != "" {
		st, ok := models.ParseOrderStatus(status)
		if !ok {
			return nil, errs.Validation(fmt.Sprintf("unknown status %q", status), map[string]string{"status": "must be a known order status"})
		}
		filter = &st
	}
	return s.orders.ListByUser(ctx, ownerID, filter)
}

// Get returns an order owned by ownerID. Foreign orders are NotFound.
func (s *Service) Get(ctx context.Context, orderID, ownerID string) (*models.Order, error) {
	o, err := s.orders.GetOwned(ctx, orderID, ownerID)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, errs.NotFound("order not found")
	}
	return o, nil
}

// GetAny returns an order regardless of owner, for admins.
func (s *Service) GetAny(ctx context.Context, orderID string) (*models.Order, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, errs.NotFound("order not found")
	}
	return o, nil
}

// PaymentUpdate is the admin payment edit. Empty fields are left unchanged.
type PaymentUpdate struct {
	PaymentStatus string `json:"paymentStatus"`
	PaymentMethod string `json:"paymentMethod"`
}

// UpdatePayment records payment status and/or method on any order.
func (s *Service) UpdatePayment(ctx context.Context, orderID string, u PaymentUpdate) (*models.Order, error) {
	var status *models.PaymentStatus
	var method *models.PaymentMethod
	fields := map[string]string{}
	if u.PaymentStatus != "" {
		v, ok := models.ParsePaymentStatus(u.PaymentStatus)
		if !ok {
			fields["paymentStatus"] = "must be Pending, Paid or Failed"
		}
		status = &v
	}
	if u.PaymentMethod != "" {
		v, ok := models.ParsePaymentMethod(u.PaymentMethod)
		if !ok {
			fields["paymentMethod"] = "must be Cash, UPI or Bank Transfer"
		}
		method = &v
	}
	if len(fields) > 0 {
		return nil, errs.Validation("invalid payment update", fields)
	}
	if status == nil && method == nil {
		return nil, errs.Validation("paymentStatus or paymentMethod is required", nil)
	}
	ok, err := s.orders.UpdatePayment(ctx, orderID, status, method)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errs.NotFound("order not found")
	}
	logging.WithContext(ctx, s.log).WithField("order_id", orderID).Info("payment updated")
	return s.GetAny(ctx, orderID)
}
