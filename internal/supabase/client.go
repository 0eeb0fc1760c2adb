package supabase

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/marminbh/billing-gateway/internal/config"
)

// maxErrorBodySize caps how much of a failed response body is read back for
// the error detail.
const maxErrorBodySize = 4096

// Client talks to the Supabase REST (PostgREST) API using the service-role
// credential. Row-level security is bypassed by that role, which is exactly
// what a server-side webhook needs.
type Client struct {
	baseURL    string
	serviceKey string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a Supabase REST client from configuration
func NewClient(cfg *config.SupabaseConfig, logger *zap.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		serviceKey: cfg.ServiceRoleKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// SetPremium sets is_premium=true on the profiles row whose id equals
// userID. The update is an idempotent set, so duplicate webhook deliveries
// are safe without any locking at this layer.
func (c *Client) SetPremium(ctx context.Context, userID string) error {
	endpoint := fmt.Sprintf("%s/rest/v1/profiles?id=eq.%s", c.baseURL, url.QueryEscape(userID))
	body := []byte(`{"is_premium": true}`)

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create profiles update request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", c.serviceKey)
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)
	req.Header.Set("Prefer", "return=minimal")

	startTime := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("profiles update request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		c.logger.Debug("Profiles update succeeded",
			zap.String("user_id", userID),
			zap.Int("http_status", resp.StatusCode),
			zap.Duration("latency", time.Since(startTime)),
		)
		return nil
	}

	detail, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
	if readErr != nil {
		c.logger.Warn("Failed to read error response body",
			zap.String("user_id", userID),
			zap.Error(readErr),
		)
	}

	return fmt.Errorf("profiles update returned status %d: %s",
		resp.StatusCode, strings.TrimSpace(string(detail)))
}
