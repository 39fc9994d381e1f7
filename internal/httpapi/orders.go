package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"scrapPickup/internal/errs"
	"scrapPickup/internal/lifecycle"
	"scrapPickup/models"
)

const accrualWarning = "Order completed but VIP progress could not be updated"

type statusRequest struct {
	Status string `json:"status"`
	lifecycle.TransitionExtra
}

type cancelRequest struct {
	CancellationReason string `json:"cancellationReason"`
}

func (s *server) createOrder(w http.ResponseWriter, r *http.Request) {
	var in models.NewOrderInput
	if err := decodeJSON(r, &in, false); err != nil {
		s.fail(w, r, err)
		return
	}
	o, err := s.Orders.Create(r.Context(), principal(r).UserID, in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusCreated, "Order created successfully", o)
}

func (s *server) listOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := s.Orders.List(r.Context(), principal(r).UserID, r.URL.Query().Get("status"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "Orders retrieved successfully", orders)
}

func (s *server) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := s.Orders.Get(r.Context(), chi.URLParam(r, "orderId"), principal(r).UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "Order retrieved successfully", o)
}

func (s *server) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, lifecycle.Actor{UserID: principal(r).UserID})
}

func (s *server) adminUpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, lifecycle.Actor{UserID: principal(r).UserID, Admin: true})
}

func (s *server) transition(w http.ResponseWriter, r *http.Request, actor lifecycle.Actor) {
	var req statusRequest
	if err := decodeJSON(r, &req, false); err != nil {
		s.fail(w, r, err)
		return
	}
	target, known := models.ParseOrderStatus(req.Status)
	if !known {
		s.fail(w, r, errs.Validation("invalid status", map[string]string{"status": "must be a known order status"}))
		return
	}
	res, err := s.Orders.Transition(r.Context(), chi.URLParam(r, "orderId"), target, actor, req.TransitionExtra)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	body := envelope{Success: true, Message: "Order status updated successfully", Data: res.Order}
	if res.AccrualErr != nil {
		body.Warning = accrualWarning
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *server) cancelOrder(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if err := decodeJSON(r, &req, true); err != nil {
		s.fail(w, r, err)
		return
	}
	o, err := s.Orders.Cancel(r.Context(), chi.URLParam(r, "orderId"), principal(r).UserID, req.CancellationReason)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "Order cancelled successfully", o)
}
