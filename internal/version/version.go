// Package version holds build information and the remote update check.
package version

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tdmcli/tdmcli/internal/log"
)

// Version is the release version (set at build time with -ldflags).
var Version = "1.0"

// GitCommit is the commit the binary was built from (set at build time).
var GitCommit = "unknown"

// Unknown is reported when the latest version cannot be determined.
const Unknown = "unknown"

// maxFeedSize bounds how much of the version feed is read.
const maxFeedSize = 256

// Status is the outcome of an update check.
type Status struct {
	Current string
	Latest  string // Unknown if the feed could not be read
}

// UpdateAvailable reports whether Latest is known and differs from Current.
func (s Status) UpdateAvailable() bool {
	return s.Latest != Unknown && normalize(s.Latest) != normalize(s.Current)
}

// Check fetches the latest published version from url. It never fails:
// network errors, timeouts, and bad responses all yield Latest == Unknown.
func Check(ctx context.Context, client *http.Client, url string, timeout time.Duration) Status {
	latest, err := FetchLatest(ctx, client, url, timeout)
	if err != nil {
		log.Warn(log.CatUpdate, "update check failed", "url", url, "error", err)
		latest = Unknown
	}
	return Status{Current: Version, Latest: latest}
}

// FetchLatest reads the version feed at url. The feed is a plain text file
// holding the version string.
func FetchLatest(ctx context.Context, client *http.Client, url string, timeout time.Duration) (string, error) {
	if client == nil {
		client = http.DefaultClient
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", "tdmcli/"+Version)

	log.Debug(log.CatUpdate, "fetching version feed", "url", url)
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("version feed returned %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedSize))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	latest := strings.TrimSpace(string(body))
	if latest == "" || strings.ContainsAny(latest, " \t\r\n") {
		return "", fmt.Errorf("unexpected version feed content %q", latest)
	}
	return latest, nil
}

func normalize(v string) string {
	return strings.TrimPrefix(strings.TrimSpace(v), "v")
}
