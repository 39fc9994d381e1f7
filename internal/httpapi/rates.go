package httpapi

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"scrapPickup/internal/errs"
	"scrapPickup/models"
)

func (s *server) publicRates(w http.ResponseWriter, r *http.Request) {
	list, err := s.Rates.List(r.Context(), true)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "Rates retrieved successfully", list)
}

func (s *server) estimate(w http.ResponseWriter, r *http.Request) {
	weight, err := strconv.ParseFloat(r.URL.Query().Get("weight"), 64)
	if err != nil {
		s.fail(w, r, errs.Validation("weight must be a number", map[string]string{"weight": "must be a number greater than 0"}))
		return
	}
	q, err := s.Rates.Estimate(r.Context(), chi.URLParam(r, "scrapType"), weight)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "Estimate calculated successfully", q)
}

func (s *server) adminRates(w http.ResponseWriter, r *http.Request) {
	list, err := s.Rates.List(r.Context(), false)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "Rates retrieved successfully", list)
}

func (s *server) adminUpdateRate(w http.ResponseWriter, r *http.Request) {
	var u models.RateUpdate
	if err := decodeJSON(r, &u, false); err != nil {
		s.fail(w, r, err)
		return
	}
	e, err := s.Rates.Upsert(r.Context(), chi.URLParam(r, "scrapType"), u, principal(r).UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "Rate updated successfully", e)
}

func (s *server) adminInitializeRates(w http.ResponseWriter, r *http.Request) {
	res, err := s.Rates.Initialize(r.Context(), principal(r).UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "Rates initialized successfully", res)
}
