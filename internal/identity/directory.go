// Package identity looks up display profiles held by the external identity provider.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"scrapPickup/internal/errs"
	"scrapPickup/models"
)

// ErrUnknownUser is returned when the provider has no profile for the uid.
var ErrUnknownUser = errors.New("identity: unknown user")

// Directory resolves a uid to its profile.
type Directory interface {
	Lookup(ctx context.Context, uid string) (*models.UserProfile, error)
}

// NopDirectory knows nobody. Used when no provider is configured.
type NopDirectory struct{}

func (NopDirectory) Lookup(context.Context, string) (*models.UserProfile, error) {
	return nil, ErrUnknownUser
}

// HTTPDirectory fetches profiles from GET {BaseURL}/users/{uid}.
type HTTPDirectory struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPDirectory builds a directory client. token, when set, is sent as a bearer credential.
func NewHTTPDirectory(baseURL, token string, timeout time.Duration) *HTTPDirectory {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &HTTPDirectory{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

func (d *HTTPDirectory) Lookup(ctx context.Context, uid string) (*models.UserProfile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+"/users/"+url.PathEscape(uid), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if d.token != "" {
		req.Header.Set("Authorization", "Bearer "+d.token)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, errs.Dependency("identity provider unavailable", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrUnknownUser
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, errs.Dependency("identity provider unavailable", fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}
	var p models.UserProfile
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&p); err != nil {
		return nil, errs.Dependency("identity provider returned an invalid profile", err)
	}
	if p.UID == "" {
		p.UID = uid
	}
	return &p, nil
}
