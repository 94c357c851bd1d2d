// Package update checks GitHub for a newer release of crank. The explicit
// update command always queries; the passive post-run hint goes through a
// stamp file so the network is touched at most once per day.
package update

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/dmelton/crank/internal/statefile"
)

// DefaultEndpoint is the GitHub latest-release API for this project.
const DefaultEndpoint = "https://api.github.com/repos/dmelton/crank/releases/latest"

const (
	checkInterval = 24 * time.Hour
	stampName     = "last-update-check"
)

// release is the slice of the GitHub release response we read.
type release struct {
	TagName string `json:"tag_name"`
	HTMLURL string `json:"html_url"`
}

// Result reports what a release check found.
type Result struct {
	Current string
	Latest  string
	URL     string
}

// UpToDate reports whether the running build already matches the latest
// tag. Comparison ignores a leading v so "1.2.0" matches "v1.2.0".
func (r *Result) UpToDate() bool {
	return normalize(r.Current) == normalize(r.Latest)
}

func normalize(v string) string {
	return strings.TrimPrefix(strings.TrimSpace(v), "v")
}

// Checker queries the release endpoint and keeps the last-check stamp.
type Checker struct {
	// Endpoint and Client are swappable for tests.
	Endpoint string
	Client   *http.Client

	stamp  *statefile.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewChecker creates a Checker whose stamp lives in dir, usually the
// directory StampDir returns.
func NewChecker(fs afero.Fs, dir string, logger *slog.Logger) *Checker {
	return &Checker{
		Endpoint: DefaultEndpoint,
		Client:   &http.Client{Timeout: 10 * time.Second},
		stamp:    statefile.NewStore(fs, filepath.Join(dir, stampName)),
		logger:   logger,
		now:      time.Now,
	}
}

// StampDir returns the per-user stamp directory.
func StampDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve user config dir: %w", err)
	}
	return filepath.Join(base, "crank"), nil
}

// Due reports whether the last successful check is more than a day old.
// A missing or unreadable stamp counts as due.
func (c *Checker) Due() bool {
	n, ok, err := c.stamp.LoadInt()
	if err != nil || !ok {
		return true
	}
	return c.now().Sub(time.Unix(int64(n), 0)) >= checkInterval
}

// Check queries the release endpoint and refreshes the stamp on success.
func (c *Checker) Check(ctx context.Context, current string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build release request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("query releases: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("release endpoint returned status %d", resp.StatusCode)
	}

	var rel release
	if err := json.NewDecoder(resp.Body).Decode(&rel); err != nil {
		return nil, fmt.Errorf("decode release response: %w", err)
	}
	if rel.TagName == "" {
		return nil, fmt.Errorf("release response carries no tag")
	}

	c.markChecked()
	return &Result{Current: current, Latest: rel.TagName, URL: rel.HTMLURL}, nil
}

func (c *Checker) markChecked() {
	if err := c.stamp.SaveInt(int(c.now().Unix())); err != nil {
		c.logger.Warn("write update-check stamp", "error", err)
	}
}
