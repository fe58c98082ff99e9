package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"

	"gitlab.com/tinyland/lab/responder/pkg/cache"
	"gitlab.com/tinyland/lab/responder/pkg/feed"
	"gitlab.com/tinyland/lab/responder/pkg/metrics"
)

const (
	listCacheKey   = "events"
	maxBodyBytes   = 8 << 20
	defaultTimeout = 15 * time.Second
)

// HTTPConfig configures an HTTPService.
type HTTPConfig struct {
	// BaseURL is the API root, e.g. https://dispatch.example.org/api.
	BaseURL string
	// PollInterval is how often GetAll re-reads the event list. Default 30s.
	PollInterval time.Duration
	// Timeout bounds each request. Default 15s.
	Timeout time.Duration
	// Attempts is how many times a request is tried before the service is
	// considered offline. Default 3.
	Attempts int
	// Cache, when set, keeps offline copies of every successful read.
	Cache  *cache.Store
	Client *http.Client
	Logger *slog.Logger
}

// HTTPService reads events from a REST API:
//
//	GET {base}/events                       -> []EventResponse
//	GET {base}/events/{id}                  -> EventResponse
//	GET {base}/events/{id}/acknowledgements -> []Acknowledgement
//
// When the API cannot be reached the service falls back to cached copies
// and reports itself offline on the OnlineChanges feed.
type HTTPService struct {
	cfg    HTTPConfig
	base   string
	client *http.Client
	logger *slog.Logger

	online  *feed.Feed[OnlineChange]
	mu      sync.Mutex
	isUp    bool
	checked bool
}

// NewHTTPService returns a service for cfg.BaseURL.
func NewHTTPService(cfg HTTPConfig) (*HTTPService, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("events: base URL is required")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 30 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = 3
	}

	s := &HTTPService{
		cfg:    cfg,
		base:   strings.TrimRight(cfg.BaseURL, "/"),
		client: cfg.Client,
		logger: cfg.Logger,
		online: feed.New[OnlineChange](),
	}
	if s.client == nil {
		s.client = newHTTPClient(cfg.Timeout)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s, nil
}

func newHTTPClient(timeout time.Duration) *http.Client {
	tr := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 60 * time.Second}).DialContext,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}
	return &http.Client{Timeout: timeout, Transport: tr}
}

// OnlineChanges returns the reachability feed. A value is sent on every
// flip, and once after the first request completes.
func (s *HTTPService) OnlineChanges() *feed.Feed[OnlineChange] { return s.online }

// Online reports the last known reachability.
func (s *HTTPService) Online() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isUp
}

// Close releases every online-feed subscription.
func (s *HTTPService) Close() { s.online.Close() }

// GetAll polls the event list and streams each response the first time it
// is seen. If the first poll fails, the cached list is streamed instead.
func (s *HTTPService) GetAll(ctx context.Context) (<-chan EventResponse, error) {
	out := make(chan EventResponse)
	go s.pollList(ctx, out)
	return out, nil
}

func (s *HTTPService) pollList(ctx context.Context, out chan<- EventResponse) {
	defer close(out)

	seen := make(map[int64]EventResponse)
	emit := func(list []EventResponse) bool {
		for _, r := range list {
			if prev, ok := seen[r.ID()]; ok && prev.Responded == r.Responded && prev.Note == r.Note {
				continue
			}
			seen[r.ID()] = r
			select {
			case out <- r:
				metrics.EventsReceived.Inc()
			case <-ctx.Done():
				return false
			}
		}
		return true
	}

	first := true
	wait.UntilWithContext(ctx, func(ctx context.Context) {
		var list []EventResponse
		err := s.getJSON(ctx, "list", "/events", &list)
		if err == nil {
			s.save(listCacheKey, list)
		} else {
			s.logger.Debug("event list fetch failed", "error", err)
			if !first {
				return
			}
			snap, cerr := loadCached[[]EventResponse](s, listCacheKey)
			if cerr != nil {
				return
			}
			s.logger.Info("serving cached event list", "events", len(snap.Value), "stale", snap.Stale)
			list = snap.Value
		}
		first = false
		emit(list)
	}, s.cfg.PollInterval)
}

// GetByID fetches one response, falling back to the cached copy offline.
func (s *HTTPService) GetByID(ctx context.Context, id int64) (EventResponse, error) {
	var r EventResponse
	key := fmt.Sprintf("event:%d", id)
	err := s.getJSON(ctx, "get", fmt.Sprintf("/events/%d", id), &r)
	if err == nil {
		s.save(key, r)
		return r, nil
	}
	if errors.Is(err, ErrNotFound) {
		return r, fmt.Errorf("event %d: %w", id, err)
	}
	if snap, cerr := loadCached[EventResponse](s, key); cerr == nil {
		return snap.Value, nil
	}
	return r, fmt.Errorf("get event %d: %w", id, err)
}

// GetAcknowledgements fetches acknowledgements for r, falling back to the
// cached copy offline.
func (s *HTTPService) GetAcknowledgements(ctx context.Context, r EventResponse) ([]Acknowledgement, error) {
	var acks []Acknowledgement
	key := fmt.Sprintf("acks:%d", r.ID())
	err := s.getJSON(ctx, "acknowledgements", fmt.Sprintf("/events/%d/acknowledgements", r.ID()), &acks)
	if err == nil {
		s.save(key, acks)
		return acks, nil
	}
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("acknowledgements for event %d: %w", r.ID(), err)
	}
	if snap, cerr := loadCached[[]Acknowledgement](s, key); cerr == nil {
		return snap.Value, nil
	}
	return nil, fmt.Errorf("get acknowledgements for event %d: %w", r.ID(), err)
}

// getJSON GETs path and decodes the body into v, retrying transport errors
// and 5xx responses with exponential backoff. A 404 is returned as
// ErrNotFound without retrying.
func (s *HTTPService) getJSON(ctx context.Context, op, path string, v any) error {
	start := time.Now()
	var lastErr error

	backoff := wait.Backoff{Duration: 200 * time.Millisecond, Factor: 2, Steps: s.cfg.Attempts, Cap: 5 * time.Second}
	err := wait.ExponentialBackoffWithContext(ctx, backoff, func(ctx context.Context) (bool, error) {
		lastErr = s.do(ctx, path, v)
		switch {
		case lastErr == nil:
			return true, nil
		case errors.Is(lastErr, ErrNotFound), errors.Is(lastErr, errDecode):
			return false, lastErr
		default:
			return false, nil
		}
	})
	if err != nil && lastErr != nil {
		err = lastErr
	}

	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.EventFetchDuration.WithLabelValues(op, status).Observe(time.Since(start).Seconds())

	if ctx.Err() != nil {
		return err
	}
	// A 404 or a bad body still proves the API is reachable.
	s.setOnline(err == nil || errors.Is(err, ErrNotFound) || errors.Is(err, errDecode))
	return err
}

var errDecode = errors.New("events: malformed response body")

func (s *HTTPService) do(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.base+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errDecode, err)
	}
	return nil
}

func (s *HTTPService) setOnline(up bool) {
	s.mu.Lock()
	changed := !s.checked || s.isUp != up
	s.isUp = up
	s.checked = true
	s.mu.Unlock()

	if up {
		metrics.Online.Set(1)
	} else {
		metrics.Online.Set(0)
	}
	if changed {
		s.logger.Info("event service reachability changed", "online", up)
		s.online.Send(OnlineChange{Online: up, At: time.Now()})
	}
}

func (s *HTTPService) save(key string, v any) {
	if s.cfg.Cache == nil {
		return
	}
	if err := cache.Save(s.cfg.Cache, key, v); err != nil {
		s.logger.Warn("offline cache write failed", "key", key, "error", err)
	}
}

func loadCached[T any](s *HTTPService, key string) (cache.Snapshot[T], error) {
	if s.cfg.Cache == nil {
		return cache.Snapshot[T]{}, cache.ErrMiss
	}
	return cache.Load[T](s.cfg.Cache, key)
}
