// Package trips persists named route snapshots through the trips HTTP API.
// The core treats persistence as plain get/put/delete of trip snapshots
// keyed by user; nothing in the route model depends on this transport.
package trips

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/saltline/passage/internal/lib/route"
)

// SavedTrip is one named route snapshot.
type SavedTrip struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	Destinations []route.Waypoint `json:"destinations"`
	CreatedAt    time.Time        `json:"createdAt"`
	UpdatedAt    time.Time        `json:"updatedAt"`
}

// HTTPDoer abstracts the HTTP transport for testing.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to the trips persistence API.
type Client struct {
	baseURL    string
	httpClient HTTPDoer
}

// NewClient creates a trips API client with a default HTTP transport.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// NewClientWithHTTPDoer creates a client on a caller-supplied transport.
func NewClientWithHTTPDoer(baseURL string, doer HTTPDoer) *Client {
	return &Client{baseURL: baseURL, httpClient: doer}
}

// SaveTrips stores the full trip collection for a user.
func (c *Client) SaveTrips(ctx context.Context, userID string, saved []SavedTrip) error {
	payload, err := json.Marshal(map[string]any{
		"userId": userID,
		"trips":  saved,
	})
	if err != nil {
		return fmt.Errorf("failed to encode trips: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/trips", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("API error %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

// LoadTrips retrieves the stored trip collection for a user.
func (c *Client) LoadTrips(ctx context.Context, userID string) ([]SavedTrip, error) {
	params := url.Values{}
	params.Set("userId", userID)
	requestURL := fmt.Sprintf("%s/api/trips?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, "GET", requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API error %d: %s", resp.StatusCode, string(body))
	}

	var decoded struct {
		Trips []SavedTrip `json:"trips"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return decoded.Trips, nil
}

// DeleteTrip removes one stored trip for a user.
func (c *Client) DeleteTrip(ctx context.Context, userID, tripID string) error {
	params := url.Values{}
	params.Set("userId", userID)
	requestURL := fmt.Sprintf("%s/api/trips/%s?%s", c.baseURL, url.PathEscape(tripID), params.Encode())

	req, err := http.NewRequestWithContext(ctx, "DELETE", requestURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("API error %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

var tripCounter uint64

// NewTripID returns a unique identifier for a newly saved trip.
func NewTripID() string {
	n := atomic.AddUint64(&tripCounter, 1)
	return fmt.Sprintf("trip_%d_%d", time.Now().UnixMilli(), n)
}
