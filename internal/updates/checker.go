package updates

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/goliatone/go-arena/internal/logging"
	"github.com/goliatone/go-arena/internal/settings"
	"github.com/goliatone/go-arena/pkg/interfaces"
)

const defaultTimeout = 10 * time.Second

// Config points the checker at an update endpoint.
type Config struct {
	// URL receives the check-in payload. Empty disables the checker.
	URL string
	// Channel distinguishes release tracks in the payload.
	Channel string
	// Timeout bounds the whole exchange so a slow endpoint cannot stall
	// startup.
	Timeout time.Duration
}

// payload is what the platform reports about itself.
type payload struct {
	Version string `json:"version"`
	Channel string `json:"channel"`
	RunID   string `json:"run_id"`
}

// response carries the newest published version back.
type response struct {
	Latest string `json:"latest"`
}

// Checker performs the one-shot startup version check-in. It is strictly
// best effort; callers log a failed check and move on.
type Checker struct {
	cfg    Config
	client *http.Client
	store  interfaces.SettingsStore
	logger interfaces.Logger
}

// NewChecker constructs a checker. The settings store receives the reported
// latest version so the admin surface can show an update notice.
func NewChecker(cfg Config, store interfaces.SettingsStore, logger interfaces.Logger) *Checker {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if logger == nil {
		logger = logging.NoOp()
	}
	return &Checker{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		store:  store,
		logger: logger,
	}
}

// Check reports the running version and records the newest published one.
// A disabled checker returns nil immediately.
func (c *Checker) Check(ctx context.Context, version, runID string) error {
	if c.cfg.URL == "" {
		return nil
	}

	body, err := json.Marshal(payload{
		Version: version,
		Channel: c.cfg.Channel,
		RunID:   runID,
	})
	if err != nil {
		return fmt.Errorf("updates: encode payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("updates: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("updates: check-in: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("updates: check-in returned status %d", resp.StatusCode)
	}

	var parsed response
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return fmt.Errorf("updates: decode response: %w", err)
	}
	if parsed.Latest == "" {
		return nil
	}

	if err := c.store.Set(ctx, settings.KeyLatestVersion, parsed.Latest); err != nil {
		return fmt.Errorf("updates: record latest version: %w", err)
	}
	c.logger.Info("update check complete", "running", version, "latest", parsed.Latest)
	return nil
}
