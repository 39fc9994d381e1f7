// Package admin builds the read models behind the admin dashboard.
package admin

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"scrapPickup/internal/errs"
	"scrapPickup/internal/identity"
	"scrapPickup/internal/logging"
	"scrapPickup/internal/metrics"
	"scrapPickup/models"
	"scrapPickup/repository"
)

const (
	placeholderName  = "User"
	placeholderPhone = "N/A"

	defaultLeaderboardLimit = 50
	defaultOrdersLimit      = 20
	maxLimit                = 100
)

// Options tunes identity enrichment.
type Options struct {
	LookupTimeout time.Duration
	Parallelism   int
}

type Service struct {
	orders    repository.OrderRepositoryI
	loyalty   repository.LoyaltyRepositoryI
	directory identity.Directory
	opts      Options
	log       logrus.FieldLogger
}

func NewService(orders repository.OrderRepositoryI, loyalty repository.LoyaltyRepositoryI, directory identity.Directory, opts Options, log logrus.FieldLogger) *Service {
	if directory == nil {
		directory = identity.NopDirectory{}
	}
	if opts.LookupTimeout <= 0 {
		opts.LookupTimeout = 2 * time.Second
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = 8
	}
	if log == nil {
		log = logging.Discard()
	}
	return &Service{orders: orders, loyalty: loyalty, directory: directory, opts: opts, log: log}
}

func round2(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}

// Stats summarises all orders. Revenue and weight cover completed orders only.
func (s *Service) Stats(ctx context.Context) (*models.OrderStats, error) {
	st, err := s.orders.Stats(ctx)
	if err != nil {
		return nil, err
	}
	st.TotalRevenue = round2(st.TotalRevenue)
	st.TotalWeight = round2(st.TotalWeight)
	return st, nil
}

// Pagination describes one page of a listing. Page is 1-based.
type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int64 `json:"pages"`
}

func paginate(page, limit, def int) (int, int) {
	if limit <= 0 {
		limit = def
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if page < 1 {
		page = 1
	}
	return page, limit
}

func newPagination(page, limit int, total int64) Pagination {
	pages := total / int64(limit)
	if total%int64(limit) != 0 {
		pages++
	}
	return Pagination{Page: page, Limit: limit, Total: total, Pages: pages}
}

// LeaderboardEntry is one ranked user.
type LeaderboardEntry struct {
	Rank          int         `json:"rank"`
	UserID        string      `json:"userId"`
	DisplayName   string      `json:"displayName"`
	PhoneNumber   string      `json:"phoneNumber"`
	TotalOrders   int64       `json:"totalOrders"`
	TotalEarnings float64     `json:"totalEarnings"`
	Progress      float64     `json:"vipProgress"`
	Tier          models.Tier `json:"vipLevel"`
}

type Leaderboard struct {
	Entries    []LeaderboardEntry `json:"leaderboard"`
	SortBy     string             `json:"sortBy"`
	Pagination Pagination         `json:"pagination"`
}

// Leaderboard ranks users by completed order count or by earnings.
func (s *Service) Leaderboard(ctx context.Context, sortKey string, page, limit int) (*Leaderboard, error) {
	if sortKey == "" {
		sortKey = string(repository.LoyaltySortOrders)
	}
	sort := repository.LoyaltySort(strings.ToLower(sortKey))
	if sort != repository.LoyaltySortOrders && sort != repository.LoyaltySortEarnings {
		return nil, errs.Validation("sortBy must be orders or earnings", map[string]string{"sortBy": "must be one of orders earnings"})
	}
	page, limit = paginate(page, limit, defaultLeaderboardLimit)
	offset := (page - 1) * limit

	rows, err := s.loyalty.List(ctx, sort, limit, offset)
	if err != nil {
		return nil, err
	}
	total, err := s.loyalty.Count(ctx)
	if err != nil {
		return nil, err
	}
	profiles := s.lookupAll(ctx, userIDs(rows))

	entries := make([]LeaderboardEntry, 0, len(rows))
	for i, r := range rows {
		e := LeaderboardEntry{
			Rank:          offset + i + 1,
			UserID:        r.UserID,
			DisplayName:   placeholderName,
			PhoneNumber:   placeholderPhone,
			TotalOrders:   r.TotalOrders,
			TotalEarnings: round2(r.TotalEarnings),
			Progress:      r.Progress,
			Tier:          r.Tier,
		}
		if p := profiles[r.UserID]; p != nil {
			if p.DisplayName != "" {
				e.DisplayName = p.DisplayName
			}
			if p.PhoneNumber != "" {
				e.PhoneNumber = p.PhoneNumber
			}
		}
		entries = append(entries, e)
	}
	return &Leaderboard{Entries: entries, SortBy: string(sort), Pagination: newPagination(page, limit, total)}, nil
}

// UserSummary is a loyalty record joined with the user's identity profile.
type UserSummary struct {
	UserID        string      `json:"uid"`
	DisplayName   string      `json:"displayName"`
	PhoneNumber   string      `json:"phoneNumber"`
	Email         string      `json:"email,omitempty"`
	CreatedAt     *time.Time  `json:"createdAt,omitempty"`
	LastSignInAt  *time.Time  `json:"lastSignInAt,omitempty"`
	TotalOrders   int64       `json:"totalOrders"`
	TotalEarnings float64     `json:"totalEarnings"`
	Progress      float64     `json:"vipProgress"`
	Tier          models.Tier `json:"vipLevel"`
	UpdatedAt     time.Time   `json:"updatedAt"`
}

type UserPage struct {
	Users      []UserSummary `json:"users"`
	Pagination Pagination    `json:"pagination"`
}

// Users lists known users, most recently active first.
func (s *Service) Users(ctx context.Context, page, limit int) (*UserPage, error) {
	page, limit = paginate(page, limit, defaultLeaderboardLimit)
	rows, err := s.loyalty.List(ctx, repository.LoyaltySortRecent, limit, (page-1)*limit)
	if err != nil {
		return nil, err
	}
	total, err := s.loyalty.Count(ctx)
	if err != nil {
		return nil, err
	}
	profiles := s.lookupAll(ctx, userIDs(rows))

	users := make([]UserSummary, 0, len(rows))
	for _, r := range rows {
		u := UserSummary{
			UserID:        r.UserID,
			DisplayName:   placeholderName,
			PhoneNumber:   placeholderPhone,
			TotalOrders:   r.TotalOrders,
			TotalEarnings: round2(r.TotalEarnings),
			Progress:      r.Progress,
			Tier:          r.Tier,
			UpdatedAt:     r.UpdatedAt,
		}
		if p := profiles[r.UserID]; p != nil {
			if p.DisplayName != "" {
				u.DisplayName = p.DisplayName
			}
			if p.PhoneNumber != "" {
				u.PhoneNumber = p.PhoneNumber
			}
			u.Email = p.Email
			u.CreatedAt = p.CreatedAt
			u.LastSignInAt = p.LastSignInAt
		}
		users = append(users, u)
	}
	return &UserPage{Users: users, Pagination: newPagination(page, limit, total)}, nil
}

// OrderQuery filters the admin order listing. Empty fields mean no filter.
type OrderQuery struct {
	Status string
	UserID string
	Sort   string
	Order  string
	Page   int
	Limit  int
}

type OrderPage struct {
	Orders     []models.Order `json:"orders"`
	Pagination Pagination     `json:"pagination"`
}

// Orders lists every order matching q.
func (s *Service) Orders(ctx context.Context, q OrderQuery) (*OrderPage, error) {
	p := repository.ListOrdersAdminParams{UserID: strings.TrimSpace(q.UserID)}
	if q.Status != "" {
		st, ok := models.ParseOrderStatus(q.Status)
		if !ok {
			return nil, errs.Validation("unknown order status", map[string]string{"status": "is not a known status"})
		}
		p.Status = &st
	}
	sort, ok := repository.ParseOrderSort(q.Sort)
	if !ok {
		return nil, errs.Validation("unknown sort key", map[string]string{"sortBy": "must be one of orderedAt weight estimatedPrice status"})
	}
	p.Sort = sort
	switch strings.ToLower(q.Order) {
	case "", "desc":
	case "asc":
		p.Asc = true
	default:
		return nil, errs.Validation("order must be asc or desc", map[string]string{"order": "must be asc or desc"})
	}
	page, limit := paginate(q.Page, q.Limit, defaultOrdersLimit)
	p.Limit, p.Offset = limit, (page-1)*limit

	orders, total, err := s.orders.ListAdmin(ctx, p)
	if err != nil {
		return nil, err
	}
	return &OrderPage{Orders: orders, Pagination: newPagination(page, limit, total)}, nil
}

func userIDs(rows []models.LoyaltyProgress) []string {
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.UserID)
	}
	return ids
}

// lookupAll resolves profiles with at most opts.Parallelism lookups in flight.
// Failed or slow lookups are simply absent from the result.
func (s *Service) lookupAll(ctx context.Context, uids []string) map[string]*models.UserProfile {
	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		out = make(map[string]*models.UserProfile, len(uids))
		sem = make(chan struct{}, s.opts.Parallelism)
	)
	for _, uid := range uids {
		wg.Add(1)
		sem <- struct{}{}
		go func(uid string) {
			defer wg.Done()
			defer func() { <-sem }()
			p := s.lookup(ctx, uid)
			if p == nil {
				return
			}
			mu.Lock()
			out[uid] = p
			mu.Unlock()
		}(uid)
	}
	wg.Wait()
	return out
}

func (s *Service) lookup(ctx context.Context, uid string) *models.UserProfile {
	ctx, cancel := context.WithTimeout(ctx, s.opts.LookupTimeout)
	defer cancel()
	p, err := s.directory.Lookup(ctx, uid)
	switch {
	case err == nil:
		metrics.RecordIdentityLookup("fetched")
		return p
	case errors.Is(err, identity.ErrUnknownUser):
		metrics.RecordIdentityLookup("unknown")
	case errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil:
		metrics.RecordIdentityLookup("timeout")
		logging.WithContext(ctx, s.log).WithField("uid", uid).Warn("identity lookup timed out")
	default:
		metrics.RecordIdentityLookup("error")
		logging.WithContext(ctx, s.log).WithError(err).WithField("uid", uid).Warn("identity lookup failed")
	}
	return nil
}
