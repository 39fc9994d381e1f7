package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"scrapPickup/internal/errs"
	"scrapPickup/models"
)

type vipProgressRequest struct {
	VipProgress *float64 `json:"vipProgress"`
}

func (s *server) listAddresses(w http.ResponseWriter, r *http.Request) {
	list, err := s.Addresses.List(r.Context(), principal(r).UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "Addresses retrieved successfully", list)
}

func (s *server) addAddress(w http.ResponseWriter, r *http.Request) {
	var in models.NewAddressInput
	if err := decodeJSON(r, &in, false); err != nil {
		s.fail(w, r, err)
		return
	}
	a, err := s.Addresses.Add(r.Context(), principal(r).UserID, in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusCreated, "Address added successfully", a)
}

func (s *server) deleteAddress(w http.ResponseWriter, r *http.Request) {
	if err := s.Addresses.Delete(r.Context(), principal(r).UserID, chi.URLParam(r, "addressId")); err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "Address deleted successfully", nil)
}

func (s *server) setDefaultAddress(w http.ResponseWriter, r *http.Request) {
	if err := s.Addresses.SetDefault(r.Context(), principal(r).UserID, chi.URLParam(r, "addressId")); err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "Default address updated successfully", nil)
}

func (s *server) getVipProgress(w http.ResponseWriter, r *http.Request) {
	p, err := s.Loyalty.Get(r.Context(), principal(r).UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "VIP progress retrieved successfully", p)
}

// updateVipProgress recomputes the caller's record from their completed orders.
// Setting progress directly is only possible through the admin route.
func (s *server) updateVipProgress(w http.ResponseWriter, r *http.Request) {
	var req vipProgressRequest
	if err := decodeJSON(r, &req, true); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.VipProgress != nil {
		s.fail(w, r, errs.Forbidden("vipProgress can only be set by an admin"))
		return
	}
	p, err := s.Loyalty.Rederive(r.Context(), principal(r).UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "VIP progress updated successfully", p)
}

func (s *server) adminSetVipProgress(w http.ResponseWriter, r *http.Request) {
	s.writeVipProgress(w, r, chi.URLParam(r, "uid"))
}

func (s *server) writeVipProgress(w http.ResponseWriter, r *http.Request, uid string) {
	var req vipProgressRequest
	if err := decodeJSON(r, &req, true); err != nil {
		s.fail(w, r, err)
		return
	}
	var (
		p   *models.LoyaltyProgress
		err error
	)
	if req.VipProgress != nil {
		p, err = s.Loyalty.SetOverride(r.Context(), uid, *req.VipProgress)
	} else {
		p, err = s.Loyalty.Rederive(r.Context(), uid)
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "VIP progress updated successfully", p)
}

func (s *server) adminRederive(w http.ResponseWriter, r *http.Request) {
	p, err := s.Loyalty.Rederive(r.Context(), chi.URLParam(r, "uid"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "VIP progress recalculated successfully", p)
}

func (s *server) deleteUserData(w http.ResponseWriter, r *http.Request) {
	res, err := s.Loyalty.Erase(r.Context(), principal(r).UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "User data deleted successfully", res)
}
