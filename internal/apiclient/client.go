// Package apiclient is the HTTP client device apps use to talk to the
// platform API during a call: presence registration, peer status polling,
// and end-of-call reporting. It implements the collaborator interfaces the
// call session expects.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"companion-platform/internal/callsession"
)

// Client talks to the platform's /v1 API with a bearer access token.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func New(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// APIError is a non-2xx response from the platform.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: status %d: %s", e.Status, e.Body)
}

// PeerStatus implements callsession.StatusQuerier.
func (c *Client) PeerStatus(ctx context.Context, bookingID string) (callsession.PeerStatus, error) {
	var out struct {
		RemoteAddress string `json:"remote_address"`
		Accepted      bool   `json:"accepted"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/bookings/"+bookingID+"/call-status", nil, &out); err != nil {
		return callsession.PeerStatus{}, err
	}
	return callsession.PeerStatus{
		RemoteAddress: callsession.PeerAddress(out.RemoteAddress),
		Accepted:      out.Accepted,
	}, nil
}

// Register claims the presence slot for this device's role.
func (c *Client) Register(ctx context.Context, bookingID, address string) error {
	body := map[string]string{"address": address}
	return c.do(ctx, http.MethodPost, "/v1/bookings/"+bookingID+"/presence", body, nil)
}

// Heartbeat refreshes the presence TTL.
func (c *Client) Heartbeat(ctx context.Context, bookingID, address string) error {
	body := map[string]string{"address": address}
	return c.do(ctx, http.MethodPost, "/v1/bookings/"+bookingID+"/presence/heartbeat", body, nil)
}

// Accept marks the call as accepted (companion side).
func (c *Client) Accept(ctx context.Context, bookingID string) error {
	return c.do(ctx, http.MethodPost, "/v1/bookings/"+bookingID+"/accept", nil, nil)
}

// CallEnded reports the final call outcome so the server can bill it.
func (c *Client) CallEnded(ctx context.Context, bookingID, endedBy string, elapsedSeconds int) error {
	body := map[string]any{"ended_by": endedBy, "elapsed_seconds": elapsedSeconds}
	return c.do(ctx, http.MethodPost, "/v1/bookings/"+bookingID+"/call/ended", body, nil)
}

// Notifier adapts the client to callsession.EndNotifier. elapsed is read at
// notification time, typically bound to Session.ElapsedSeconds.
func (c *Client) Notifier(elapsed func() int) callsession.EndNotifier {
	return &endNotifier{c: c, elapsed: elapsed}
}

type endNotifier struct {
	c       *Client
	elapsed func() int
}

func (n *endNotifier) NotifyCallEnded(ctx context.Context, bookingID, endedBy string) error {
	sec := 0
	if n.elapsed != nil {
		sec = n.elapsed()
	}
	return n.c.CallEnded(ctx, bookingID, endedBy, sec)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &APIError{Status: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
