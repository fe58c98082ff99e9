package update

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
	"gopkg.in/yaml.v3"

	"gitlab.com/tinyland/lab/responder/pkg/feed"
)

// maxManifestBytes bounds how much of a manifest response is read.
const maxManifestBytes = 1 << 20

// ManifestConfig configures a ManifestSource.
type ManifestConfig struct {
	// Enabled turns update checks on. A source without a URL is disabled
	// regardless.
	Enabled bool
	// URL locates the release manifest: an http(s) URL, a file:// URL or a
	// plain path.
	URL string
	// Current describes the running build.
	Current Version
	// StateDir holds the activation marker. Empty disables persistence and
	// cross-instance activation.
	StateDir string
	// Client is used for http(s) manifests. Default: 30s timeout client.
	Client *http.Client
	// InstanceID identifies this process in the marker. Default: random.
	InstanceID string
	Logger     *slog.Logger
}

// ManifestSource is a Source backed by a YAML (or JSON) release manifest:
//
//	version: 2.1.0
//	hash: 9f2c1e
//	appData:
//	  updateMessage: "v2.1: offline acknowledgements"
//
// A manifest whose hash (or version, when no hash is given) differs from the
// current build is announced once on the Available feed. Activation is
// recorded in a marker file so that restarts and sibling instances agree on
// the current version; a sibling's activation is reported on the Activated
// feed at the next check.
type ManifestSource struct {
	cfg      ManifestConfig
	client   *http.Client
	logger   *slog.Logger
	instance string
	group    singleflight.Group

	available *feed.Feed[AvailableNotice]
	activated *feed.Feed[ActivatedNotice]

	mu         sync.Mutex
	current    Version
	pending    *Version
	announced  string
	seenMarker string
}

// NewManifestSource builds a source and restores the current version from
// an activation marker that was recorded on top of the running build.
func NewManifestSource(cfg ManifestConfig) *ManifestSource {
	s := &ManifestSource{
		cfg:       cfg,
		client:    cfg.Client,
		logger:    cfg.Logger,
		instance:  cfg.InstanceID,
		available: feed.New[AvailableNotice](),
		activated: feed.New[ActivatedNotice](),
		current:   cfg.Current,
	}
	if s.client == nil {
		s.client = &http.Client{Timeout: 30 * time.Second}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.instance == "" {
		s.instance = uuid.NewString()
	}

	if path := s.markerPath(); path != "" {
		m, err := readMarker(path)
		switch {
		case err == nil && m.Version.Version != "":
			// A marker recorded on top of a different build is stale.
			s.seenMarker = versionKey(m.Version)
			if m.Previous == s.cfg.Current.Version || sameVersion(m.Version, s.cfg.Current) {
				s.current = m.Version
				s.logger.Debug("restored activated version", "version", m.Version.Version)
			} else {
				s.logger.Info("ignoring stale activation marker",
					"marker", m.Version.Version, "previous", m.Previous, "running", s.cfg.Current.Version)
			}
		case err != nil && !os.IsNotExist(err):
			s.logger.Warn("ignoring unreadable activation marker", "path", path, "error", err)
		}
	}
	return s
}

// Enabled reports whether checks will run.
func (s *ManifestSource) Enabled() bool {
	return s.cfg.Enabled && s.cfg.URL != ""
}

// Current returns the version this process considers active.
func (s *ManifestSource) Current() Version {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Available returns the availability feed.
func (s *ManifestSource) Available() *feed.Feed[AvailableNotice] { return s.available }

// Activated returns the activation feed.
func (s *ManifestSource) Activated() *feed.Feed[ActivatedNotice] { return s.activated }

// CheckForUpdate fetches the manifest. Concurrent calls share one fetch.
func (s *ManifestSource) CheckForUpdate(ctx context.Context) error {
	if !s.Enabled() {
		return ErrDisabled
	}
	_, err, shared := s.group.Do("check", func() (any, error) {
		return nil, s.check(ctx)
	})
	if shared {
		s.logger.Debug("joined in-flight update check")
	}
	return err
}

func (s *ManifestSource) check(ctx context.Context) error {
	s.observeMarker()

	m, err := s.fetch(ctx)
	if err != nil {
		return fmt.Errorf("fetch manifest: %w", err)
	}

	key := versionKey(m)
	s.mu.Lock()
	if sameVersion(m, s.current) || key == s.announced {
		s.mu.Unlock()
		return nil
	}
	s.pending = &m
	n := AvailableNotice{Current: s.current, Available: m}
	s.mu.Unlock()

	s.logger.Debug("manifest announces new version", "version", m.Version, "hash", m.Hash)
	// Only a delivered notice counts as announced; a dropped one is offered
	// again on the next check.
	if s.available.Send(n) > 0 {
		s.mu.Lock()
		s.announced = key
		s.mu.Unlock()
	}
	return nil
}

// ActivateUpdate makes the last announced version current, persists the
// marker and emits an activation signal.
func (s *ManifestSource) ActivateUpdate(ctx context.Context) error {
	if !s.Enabled() {
		return ErrDisabled
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	if s.pending == nil {
		s.mu.Unlock()
		return ErrNoPendingUpdate
	}
	next, prev := *s.pending, s.current
	s.mu.Unlock()

	if path := s.markerPath(); path != "" {
		err := writeMarker(path, activationMarker{
			Version:     next,
			Previous:    prev.Version,
			Instance:    s.instance,
			ActivatedAt: time.Now().UTC(),
		})
		if err != nil {
			return fmt.Errorf("activate %s: %w", next.Version, err)
		}
	}

	s.mu.Lock()
	s.current = next
	s.pending = nil
	s.seenMarker = versionKey(next)
	s.mu.Unlock()

	s.activated.Send(ActivatedNotice{Previous: prev, Current: next})
	return nil
}

// Close releases every feed subscription.
func (s *ManifestSource) Close() {
	s.available.Close()
	s.activated.Close()
}

// observeMarker reports an activation performed by another instance.
func (s *ManifestSource) observeMarker() {
	path := s.markerPath()
	if path == "" {
		return
	}
	m, err := readMarker(path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Debug("activation marker unreadable", "error", err)
		}
		return
	}
	if m.Instance == s.instance || m.Version.Version == "" {
		return
	}

	key := versionKey(m.Version)
	s.mu.Lock()
	if key == s.seenMarker || sameVersion(m.Version, s.current) {
		s.mu.Unlock()
		return
	}
	prev := s.current
	s.current = m.Version
	s.seenMarker = key
	if s.pending != nil && versionKey(*s.pending) == key {
		s.pending = nil
	}
	s.mu.Unlock()

	s.logger.Info("update activated by another instance", "instance", m.Instance, "version", m.Version.Version)
	s.activated.Send(ActivatedNotice{Previous: prev, Current: m.Version})
}

func (s *ManifestSource) fetch(ctx context.Context) (Version, error) {
	var (
		data []byte
		err  error
	)
	switch {
	case strings.HasPrefix(s.cfg.URL, "http://"), strings.HasPrefix(s.cfg.URL, "https://"):
		data, err = s.fetchHTTP(ctx)
	default:
		data, err = os.ReadFile(strings.TrimPrefix(s.cfg.URL, "file://"))
	}
	if err != nil {
		return Version{}, err
	}
	return parseManifest(data)
}

func (s *ManifestSource) fetchHTTP(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxManifestBytes))
}

func (s *ManifestSource) markerPath() string {
	if s.cfg.StateDir == "" {
		return ""
	}
	return filepath.Join(s.cfg.StateDir, markerFile)
}

// parseManifest decodes a manifest document. JSON manifests are accepted
// since JSON is valid YAML.
func parseManifest(data []byte) (Version, error) {
	var v Version
	if err := yaml.Unmarshal(data, &v); err != nil {
		return Version{}, fmt.Errorf("parse manifest: %w", err)
	}
	if v.Version == "" {
		return Version{}, errors.New("parse manifest: missing version")
	}
	return v, nil
}

// sameVersion compares hashes when both builds carry one and version
// strings otherwise.
func sameVersion(a, b Version) bool {
	if a.Hash != "" && b.Hash != "" {
		return a.Hash == b.Hash
	}
	return a.Version == b.Version
}

func versionKey(v Version) string {
	if v.Hash != "" {
		return v.Hash
	}
	return v.Version
}
