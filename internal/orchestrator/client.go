// Package orchestrator forwards validated trace commands to registered
// cabinet endpoints and keeps the registry in sync with what it can reach.
package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	digest "github.com/icholy/digest"

	"github.com/ledworks/cabinetctl/internal/cabinet"
	"github.com/ledworks/cabinetctl/internal/config"
)

// RemoteError reports a failed call to a cabinet endpoint: either the
// endpoint answered non-2xx (Status carries its code, Detail its message)
// or the transport failed outright (Status 0).
type RemoteError struct {
	Status int
	Detail string
}

func (e *RemoteError) Error() string {
	if e.Status == 0 {
		return "cabinet unreachable: " + e.Detail
	}
	return fmt.Sprintf("cabinet returned %d: %s", e.Status, e.Detail)
}

// Client is the shared HTTP client for orchestrator -> cabinet calls.
// Single attempt, bounded timeout, no retry. When CABINET_USER is set the
// transport negotiates digest auth, which embedded hardware endpoints
// commonly require.
type Client struct {
	httpClient *http.Client
}

func NewClient(cfg *config.Config) *Client {
	var rt http.RoundTripper = config.NewHTTPTransport()
	if cfg.CabinetUser != "" {
		rt = &digest.Transport{
			Username:  cfg.CabinetUser,
			Password:  cfg.CabinetPass,
			Transport: rt,
		}
	}
	return &Client{
		httpClient: &http.Client{
			Timeout:   5 * time.Second,
			Transport: rt,
		},
	}
}

// FetchState probes GET {base}/api/state. Used during registration to
// confirm the endpoint is reachable and learn its dimensions.
func (c *Client) FetchState(ctx context.Context, baseURL string) (cabinet.Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, joinURL(baseURL, "/api/state"), nil)
	if err != nil {
		return cabinet.Snapshot{}, &RemoteError{Detail: err.Error()}
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return cabinet.Snapshot{}, &RemoteError{Detail: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return cabinet.Snapshot{}, &RemoteError{Detail: err.Error()}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return cabinet.Snapshot{}, &RemoteError{Status: resp.StatusCode, Detail: remoteMessage(body)}
	}
	var snap cabinet.Snapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		return cabinet.Snapshot{}, &RemoteError{Status: resp.StatusCode, Detail: "malformed state response"}
	}
	if snap.RowLen <= 0 || snap.ColLen <= 0 {
		return cabinet.Snapshot{}, &RemoteError{Status: resp.StatusCode, Detail: "state reports invalid dimensions"}
	}
	return snap, nil
}

// SendTrace forwards the raw command body unchanged to POST {base}/api/trace.
// The endpoint owns validation; this side only classifies the outcome.
func (c *Client) SendTrace(ctx context.Context, baseURL string, command []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, joinURL(baseURL, "/api/trace"), bytes.NewReader(command))
	if err != nil {
		return &RemoteError{Detail: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &RemoteError{Detail: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &RemoteError{Detail: err.Error()}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &RemoteError{Status: resp.StatusCode, Detail: remoteMessage(body)}
	}
	return nil
}

// remoteMessage pulls the endpoint's {"error": ...} message out of an error
// response, falling back to the raw body.
func remoteMessage(body []byte) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		return "no response body"
	}
	return msg
}

func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + path
}
