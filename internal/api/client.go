package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"

	"github.com/google/uuid"

	"github.com/example/driver-agent/internal/agenterr"
	"github.com/example/driver-agent/internal/fallback"
	"github.com/example/driver-agent/internal/models"
)

// Client talks to the dispatch backend on behalf of one driver. Fetch
// operations degrade to the last-good cache; mutations never do.
type Client struct {
	base  string
	http  *http.Client
	exec  *Executor
	cache fallback.Store

	mu      sync.RWMutex
	session models.DriverSession
}

func NewClient(baseURL string, exec *Executor, cache fallback.Store, session models.DriverSession) *Client {
	return &Client{
		base:    baseURL,
		http:    &http.Client{}, // per-attempt deadlines come from the executor's context
		exec:    exec,
		cache:   cache,
		session: session,
	}
}

// UpdateSession replaces the driver identity after a re-login.
func (c *Client) UpdateSession(s models.DriverSession) {
	c.mu.Lock()
	c.session = s
	c.mu.Unlock()
}

// Session returns the current identity snapshot.
func (c *Client) Session() models.DriverSession {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

func (c *Client) FetchProfile(ctx context.Context) (models.Profile, error) {
	return fetchCached[models.Profile](ctx, c, "profile", "/api/v1/driver/profile")
}

func (c *Client) FetchEarnings(ctx context.Context, period string) (models.EarningsSummary, error) {
	op := "earnings:" + period
	return fetchCached[models.EarningsSummary](ctx, c, op, "/api/v1/driver/earnings?period="+url.QueryEscape(period))
}

func (c *Client) FetchCurrentRide(ctx context.Context) (models.Ride, error) {
	return fetchCached[models.Ride](ctx, c, "current-ride", "/api/v1/driver/rides/current")
}

func (c *Client) FetchOpenOffers(ctx context.Context) ([]models.RideOffer, error) {
	return fetchCached[[]models.RideOffer](ctx, c, "ride-requests", "/api/v1/driver/offers")
}

// SetAvailability confirms an optimistic toggle with the backend. The
// version lets the server deduplicate and lets the synchronizer drop
// stale acknowledgements.
func (c *Client) SetAvailability(ctx context.Context, available bool, version uint64, pos *models.DriverPosition) error {
	body := map[string]any{"available": available, "version": version}
	if pos != nil {
		body["location"] = pos.Loc
	}
	return c.mutate(ctx, "set-availability", "/api/v1/driver/availability", body)
}

func (c *Client) UpdateLocation(ctx context.Context, pos models.DriverPosition) error {
	return c.mutate(ctx, "update-location", "/api/v1/driver/location", map[string]any{"loc": pos.Loc, "updated": pos.Updated})
}

func (c *Client) AcceptRide(ctx context.Context, offerID string) error {
	return c.mutate(ctx, "accept-ride", "/api/v1/rides/"+url.PathEscape(offerID)+"/accept", nil)
}

func (c *Client) RejectRide(ctx context.Context, offerID string, reason models.RejectReason) error {
	return c.mutate(ctx, "reject-ride", "/api/v1/rides/"+url.PathEscape(offerID)+"/reject", map[string]any{"reason": reason})
}

func (c *Client) CompleteRide(ctx context.Context, rideID string) error {
	return c.mutate(ctx, "complete-ride", "/api/v1/rides/"+url.PathEscape(rideID)+"/complete", nil)
}

// fetchCached runs a GET through the executor, refreshing the
// last-good cache on success and decoding from it on exhaustion.
func fetchCached[T any](ctx context.Context, c *Client, op, path string) (T, error) {
	call := func(ctx context.Context) (T, error) {
		var v T
		b, err := c.get(ctx, op, path)
		if err != nil {
			return v, err
		}
		if err := json.Unmarshal(b, &v); err != nil {
			return v, agenterr.Validation(op, err)
		}
		if c.cache != nil {
			c.cache.Put(ctx, op, b)
		}
		return v, nil
	}
	fb := func(ctx context.Context) (T, bool) {
		var v T
		if c.cache == nil {
			return v, false
		}
		b, ok := c.cache.Get(ctx, op)
		if !ok {
			return v, false
		}
		if err := json.Unmarshal(b, &v); err != nil {
			return v, false
		}
		return v, true
	}
	return Do(ctx, c.exec, op, call, fb)
}

// mutate runs a POST through the executor with an idempotency key so
// server-side deduplication stays safe across retries. No fallback:
// a failed mutation must surface.
func (c *Client) mutate(ctx context.Context, op, path string, body any) error {
	key := uuid.NewString()
	_, err := Do(ctx, c.exec, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.post(ctx, op, path, key, body)
	}, nil)
	return err
}

func (c *Client) get(ctx context.Context, op, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return nil, agenterr.Validation(op, err)
	}
	c.authorize(req)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, agenterr.Network(op, 1, err)
	}
	defer resp.Body.Close()
	if err := c.statusError(op, resp.StatusCode); err != nil {
		return nil, err
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, agenterr.Network(op, 1, err)
	}
	return b, nil
}

func (c *Client) post(ctx context.Context, op, path, idemKey string, body any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return agenterr.Validation(op, err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, rd)
	if err != nil {
		return agenterr.Validation(op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", idemKey)
	c.authorize(req)
	resp, err := c.http.Do(req)
	if err != nil {
		return agenterr.Network(op, 1, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	return c.statusError(op, resp.StatusCode)
}

func (c *Client) authorize(req *http.Request) {
	if s := c.Session(); s.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.Token)
	}
}

func (c *Client) statusError(op string, code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return agenterr.Auth(op, fmt.Errorf("http %d", code))
	case code == http.StatusBadRequest || code == http.StatusUnprocessableEntity:
		return agenterr.Validation(op, fmt.Errorf("http %d", code))
	case code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout:
		return agenterr.Timeout(op, 1, fmt.Errorf("http %d", code))
	default:
		return agenterr.Network(op, 1, fmt.Errorf("http %d", code))
	}
}
