package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ToggleClient issues the enable/disable call against a tenant's toggle
// endpoint.
type ToggleClient struct {
	HTTPClient *http.Client
}

// NewToggleClient creates a toggle client with a bounded timeout.
func NewToggleClient() *ToggleClient {
	return &ToggleClient{
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

type togglePayload struct {
	SiteSlug string `json:"site_slug"`
	Active   bool   `json:"active"`
}

// Toggle POSTs {site_slug, active} to the given endpoint. Any non-2xx
// answer is an error; callers treat a failure as best-effort.
func (c *ToggleClient) Toggle(ctx context.Context, toggleURL, slug string, active bool) error {
	if strings.TrimSpace(toggleURL) == "" {
		return errors.New("toggle url is empty")
	}

	body, err := json.Marshal(togglePayload{SiteSlug: slug, Active: active})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, toggleURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("site toggle failed: status=%d body=%s", resp.StatusCode, string(respBody))
	}
	return nil
}
