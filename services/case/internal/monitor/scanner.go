package monitor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	apperrors "github.com/sos-echo/platform/pkg/errors"
)

// DefaultScanInterval is the time between automatic captures.
const DefaultScanInterval = 30 * time.Second

const maxSnapshotBytes = 8 << 20

// SnapshotSource yields the latest camera frame as JPEG.
type SnapshotSource interface {
	Snapshot(ctx context.Context) ([]byte, error)
}

// HTTPSnapshotSource fetches frames from a camera snapshot URL.
type HTTPSnapshotSource struct {
	url    string
	client *http.Client
}

// NewHTTPSnapshotSource creates a snapshot source for url.
func NewHTTPSnapshotSource(url string, timeout time.Duration) *HTTPSnapshotSource {
	return &HTTPSnapshotSource{url: url, client: &http.Client{Timeout: timeout}}
}

// Snapshot fetches one frame.
func (s *HTTPSnapshotSource) Snapshot(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create snapshot request: %w", err)
	}
	req.Header.Set("Accept", "image/jpeg")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch snapshot: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch snapshot: unexpected status %d", resp.StatusCode)
	}
	frame, err := io.ReadAll(io.LimitReader(resp.Body, maxSnapshotBytes))
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return frame, nil
}

// Scanner captures a frame from a source on a fixed interval.
type Scanner struct {
	monitor  *Monitor
	source   SnapshotSource
	interval time.Duration
	logger   *slog.Logger
}

// NewScanner creates a scanner.
func NewScanner(m *Monitor, source SnapshotSource, interval time.Duration, logger *slog.Logger) *Scanner {
	if interval <= 0 {
		interval = DefaultScanInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{monitor: m, source: source, interval: interval, logger: logger}
}

// Run scans until ctx is cancelled.
func (s *Scanner) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("frame scanner started", "interval", s.interval)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("frame scanner stopped")
			return
		case <-ticker.C:
			if err := s.ScanOnce(ctx); err != nil {
				s.logger.Debug("scan skipped", "error", err)
			}
		}
	}
}

// ScanOnce captures a single frame unless the monitor is busy or cooling down.
func (s *Scanner) ScanOnce(ctx context.Context) error {
	st := s.monitor.Status()
	if st.CoolingDown {
		return apperrors.RateLimited("cooling down")
	}
	if st.Busy {
		return apperrors.Busy("classification in flight")
	}

	frame, err := s.source.Snapshot(ctx)
	if err != nil {
		s.logger.Warn("camera snapshot failed", "error", err)
		return err
	}
	_, err = s.monitor.Capture(ctx, frame)
	return err
}
