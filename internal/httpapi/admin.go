package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"scrapPickup/internal/admin"
	"scrapPickup/internal/lifecycle"
)

func (s *server) adminOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	pageNum, err := intQuery(r, "page")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	limit, err := intQuery(r, "limit")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	res, err := s.Admin.Orders(r.Context(), admin.OrderQuery{
		Status: q.Get("status"),
		UserID: q.Get("userId"),
		Sort:   q.Get("sortBy"),
		Order:  q.Get("order"),
		Page:   pageNum,
		Limit:  limit,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "Orders retrieved successfully", res)
}

func (s *server) adminStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.Admin.Stats(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "Order statistics retrieved successfully", st)
}

func (s *server) adminGetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := s.Orders.GetAny(r.Context(), chi.URLParam(r, "orderId"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "Order retrieved successfully", o)
}

func (s *server) adminUpdatePayment(w http.ResponseWriter, r *http.Request) {
	var u lifecycle.PaymentUpdate
	if err := decodeJSON(r, &u, false); err != nil {
		s.fail(w, r, err)
		return
	}
	o, err := s.Orders.UpdatePayment(r.Context(), chi.URLParam(r, "orderId"), u)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "Payment updated successfully", o)
}

func (s *server) adminLeaderboard(w http.ResponseWriter, r *http.Request) {
	pageNum, err := intQuery(r, "page")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	limit, err := intQuery(r, "limit")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	lb, err := s.Admin.Leaderboard(r.Context(), r.URL.Query().Get("sortBy"), pageNum, limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "Leaderboard retrieved successfully", lb)
}

func (s *server) adminUsers(w http.ResponseWriter, r *http.Request) {
	pageNum, err := intQuery(r, "page")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	limit, err := intQuery(r, "limit")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	users, err := s.Admin.Users(r.Context(), pageNum, limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "Users retrieved successfully", users)
}
