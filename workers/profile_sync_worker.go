// workers/profile_sync_worker.go
package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"habit-progression-engine/logger"
	"habit-progression-engine/models"
)

// RemoteProfile matches one entry of the profile service's change feed.
type RemoteProfile struct {
	ExternalID    string    `json:"external_id"`
	Username      string    `json:"username"`
	AccountStatus string    `json:"account_status"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// GetUserChangesResponse is the top-level structure of the change feed.
type GetUserChangesResponse struct {
	Users []RemoteProfile `json:"users"`
}

// ProgressProvisioner creates a user's progress row if it does not exist yet.
type ProgressProvisioner interface {
	EnsureProgressRecord(ctx context.Context, userID string) (*models.UserProgress, error)
}

// ProfileSyncWorker polls the profile service and provisions a progress row for
// every new account, so first reads never hit the create path.
type ProfileSyncWorker struct {
	log          *logger.Logger
	provisioner  ProgressProvisioner
	interval     time.Duration
	baseURL      string // e.g., "http://localhost:8500"
	endpointPath string // e.g., "/api/v1/public/profiles"
	serviceToken string
	httpClient   *http.Client

	mu     sync.Mutex
	cursor time.Time
}

func NewProfileSyncWorker(log *logger.Logger, provisioner ProgressProvisioner, baseURL, endpointPath, serviceToken string, interval time.Duration) *ProfileSyncWorker {
	return &ProfileSyncWorker{
		log:          log.With("worker", "ProfileSync"),
		provisioner:  provisioner,
		interval:     interval,
		baseURL:      baseURL,
		endpointPath: endpointPath,
		serviceToken: serviceToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (w *ProfileSyncWorker) Start(ctx context.Context) {
	w.log.Info("🔁 Starting profile sync worker", "base_url", w.baseURL, "interval", w.interval.String())
	go w.run(ctx)
}

func (w *ProfileSyncWorker) run(ctx context.Context) {
	// Initial sync backfills from the beginning of time.
	if _, err := w.SyncBatch(ctx); err != nil {
		w.log.Warn("Initial profile sync failed", "error", err)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := w.SyncBatch(ctx); err != nil {
				w.log.Error("Profile sync batch failed", "error", err)
			}
		case <-ctx.Done():
			w.log.Info("⏹️ Profile sync worker stopped")
			return
		}
	}
}

// Cursor is the newest UpdatedAt seen so far.
func (w *ProfileSyncWorker) Cursor() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cursor
}

// SyncBatch fetches changes since the cursor and provisions each active account.
// It returns how many accounts were provisioned.
func (w *ProfileSyncWorker) SyncBatch(ctx context.Context) (int, error) {
	since := w.Cursor()

	base, err := url.Parse(w.baseURL)
	if err != nil {
		return 0, fmt.Errorf("invalid profile service URL %q: %w", w.baseURL, err)
	}
	endpointURL := base.JoinPath(w.endpointPath)
	q := endpointURL.Query()
	q.Set("since", since.UTC().Format(time.RFC3339))
	endpointURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpointURL.String(), nil)
	if err != nil {
		return 0, fmt.Errorf("build profile sync request: %w", err)
	}
	req.Header.Set("X-Service-Token", w.serviceToken)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("profile service request failed: %w", err)
	}
	defer func() {
		// Always drain & close to prevent connection leaks
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return 0, fmt.Errorf("profile service returned %d: %s", resp.StatusCode, string(body))
	}

	var feed GetUserChangesResponse
	if err := json.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return 0, fmt.Errorf("decode profile feed: %w", err)
	}
	if len(feed.Users) == 0 {
		return 0, nil
	}

	provisioned, failed := 0, 0
	latest := since
	for _, u := range feed.Users {
		if u.UpdatedAt.After(latest) {
			latest = u.UpdatedAt
		}
		if u.ExternalID == "" || (u.AccountStatus != "" && u.AccountStatus != "active") {
			continue
		}
		if _, err := w.provisioner.EnsureProgressRecord(ctx, u.ExternalID); err != nil {
			failed++
			w.log.Warn("Progress provisioning failed", "external_id", u.ExternalID, "error", err)
			continue
		}
		provisioned++
	}

	// On partial failure the cursor stays put so the next batch retries.
	if failed == 0 {
		w.mu.Lock()
		w.cursor = latest
		w.mu.Unlock()
	}

	w.log.Info("✅ Profiles synced", "received", len(feed.Users), "provisioned", provisioned, "failed", failed)
	return provisioned, nil
}
