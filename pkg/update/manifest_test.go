package update

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func receiveAvailable(t *testing.T, ch <-chan AvailableNotice) AvailableNotice {
	t.Helper()
	select {
	case n := <-ch:
		return n
	case <-time.After(time.Second):
		t.Fatal("no availability signal")
	}
	return AvailableNotice{}
}

func expectNoAvailable(t *testing.T, ch <-chan AvailableNotice) {
	t.Helper()
	select {
	case n := <-ch:
		t.Fatalf("unexpected availability signal %+v", n)
	default:
	}
}

func writeManifest(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "manifest.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestParseManifestYAMLAndJSON(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		version string
		message string
		wantErr bool
	}{
		{
			name:    "yaml",
			body:    "version: 2.1.0\nhash: abc\nappData:\n  updateMessage: v2.1\n",
			version: "2.1.0",
			message: "v2.1",
		},
		{
			name:    "json",
			body:    `{"version":"2.2.0","appData":{"updateMessage":"v2.2"}}`,
			version: "2.2.0",
			message: "v2.2",
		},
		{name: "missing version", body: "hash: abc\n", wantErr: true},
		{name: "garbage", body: "version: [", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := parseManifest([]byte(tt.body))
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("parseManifest: %v", err)
			}
			if v.Version != tt.version {
				t.Errorf("version = %q, want %q", v.Version, tt.version)
			}
			n := AvailableNotice{Available: v}
			if msg, _ := n.UpdateMessage(); msg != tt.message {
				t.Errorf("message = %q, want %q", msg, tt.message)
			}
		})
	}
}

func TestDisabledManifestSource(t *testing.T) {
	tests := []ManifestConfig{
		{Enabled: false, URL: "https://example.invalid/manifest.yaml"},
		{Enabled: true, URL: ""},
	}
	for i, cfg := range tests {
		cfg.Logger = quietLogger()
		s := NewManifestSource(cfg)
		if s.Enabled() {
			t.Errorf("case %d: expected disabled", i)
		}
		if err := s.CheckForUpdate(context.Background()); !errors.Is(err, ErrDisabled) {
			t.Errorf("case %d: expected ErrDisabled, got %v", i, err)
		}
	}
}

func TestHTTPManifestAnnouncesNewVersionOnce(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, "version: 2.1.0\nappData:\n  updateMessage: v2.1\n")
	}))
	defer srv.Close()

	s := NewManifestSource(ManifestConfig{
		Enabled: true,
		URL:     srv.URL,
		Current: Version{Version: "2.0.0"},
		Logger:  quietLogger(),
	})
	defer s.Close()
	sub := s.Available().Subscribe(4)

	if err := s.CheckForUpdate(context.Background()); err != nil {
		t.Fatalf("CheckForUpdate: %v", err)
	}
	n := receiveAvailable(t, sub.C())
	if n.Current.Version != "2.0.0" || n.Available.Version != "2.1.0" {
		t.Errorf("unexpected notice %+v", n)
	}

	// Same manifest again: already announced.
	if err := s.CheckForUpdate(context.Background()); err != nil {
		t.Fatalf("second CheckForUpdate: %v", err)
	}
	expectNoAvailable(t, sub.C())
	if hits.Load() != 2 {
		t.Errorf("expected 2 manifest fetches, got %d", hits.Load())
	}
}

func TestHTTPManifestErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	s := NewManifestSource(ManifestConfig{Enabled: true, URL: srv.URL, Logger: quietLogger()})
	if err := s.CheckForUpdate(context.Background()); err == nil {
		t.Fatal("expected error for 503 manifest")
	}
}

func TestSameVersionNotAnnounced(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, "version: 2.0.0\n")

	s := NewManifestSource(ManifestConfig{
		Enabled: true,
		URL:     "file://" + path,
		Current: Version{Version: "2.0.0"},
		Logger:  quietLogger(),
	})
	sub := s.Available().Subscribe(1)
	if err := s.CheckForUpdate(context.Background()); err != nil {
		t.Fatalf("CheckForUpdate: %v", err)
	}
	expectNoAvailable(t, sub.C())
}

func TestConcurrentChecksShareOneFetch(t *testing.T) {
	gate := make(chan struct{})
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		<-gate
		fmt.Fprint(w, "version: 2.1.0\n")
	}))
	defer srv.Close()

	s := NewManifestSource(ManifestConfig{Enabled: true, URL: srv.URL, Logger: quietLogger()})

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.CheckForUpdate(context.Background())
		}()
	}
	// Let the callers pile up on the in-flight request before answering.
	deadline := time.Now().Add(2 * time.Second)
	for hits.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)
	close(gate)
	wg.Wait()

	if hits.Load() != 1 {
		t.Errorf("expected 1 fetch for concurrent checks, got %d", hits.Load())
	}
}

func TestActivateWithoutPendingUpdate(t *testing.T) {
	s := NewManifestSource(ManifestConfig{Enabled: true, URL: "/nonexistent", Logger: quietLogger()})
	if err := s.ActivateUpdate(context.Background()); !errors.Is(err, ErrNoPendingUpdate) {
		t.Errorf("expected ErrNoPendingUpdate, got %v", err)
	}
}

func TestActivatePersistsMarkerAndSignals(t *testing.T) {
	dir := t.TempDir()
	state := filepath.Join(dir, "state")
	path := writeManifest(t, dir, "version: 2.1.0\nhash: h21\n")

	cfg := ManifestConfig{
		Enabled:  true,
		URL:      path,
		Current:  Version{Version: "2.0.0", Hash: "h20"},
		StateDir: state,
		Logger:   quietLogger(),
	}
	s := NewManifestSource(cfg)
	activated := s.Activated().Subscribe(1)

	if err := s.CheckForUpdate(context.Background()); err != nil {
		t.Fatalf("CheckForUpdate: %v", err)
	}
	if err := s.ActivateUpdate(context.Background()); err != nil {
		t.Fatalf("ActivateUpdate: %v", err)
	}

	select {
	case n := <-activated.C():
		if n.Previous.Version != "2.0.0" || n.Current.Version != "2.1.0" {
			t.Errorf("unexpected activation %+v", n)
		}
	case <-time.After(time.Second):
		t.Fatal("no activation signal")
	}
	if s.Current().Version != "2.1.0" {
		t.Errorf("expected current 2.1.0, got %s", s.Current().Version)
	}

	// A restarted process picks the activated version up from the marker
	// and does not offer it again.
	restarted := NewManifestSource(cfg)
	if restarted.Current().Version != "2.1.0" {
		t.Fatalf("restart should restore 2.1.0, got %s", restarted.Current().Version)
	}
	sub := restarted.Available().Subscribe(1)
	if err := restarted.CheckForUpdate(context.Background()); err != nil {
		t.Fatalf("CheckForUpdate after restart: %v", err)
	}
	expectNoAvailable(t, sub.C())
}

func TestMarkerFromOlderBuildIsIgnored(t *testing.T) {
	dir := t.TempDir()
	state := filepath.Join(dir, "state")
	path := writeManifest(t, dir, "version: 2.2.0\n")
	err := writeMarker(filepath.Join(state, markerFile), activationMarker{
		Version:     Version{Version: "2.1.0"},
		Previous:    "2.0.0",
		Instance:    "old-tab",
		ActivatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		current string
		want    string
	}{
		// 2.2.0 was installed over the in-app activation of 2.1.0.
		{name: "newer build", current: "2.2.0", want: "2.2.0"},
		// The marker was written on top of this build.
		{name: "activated over build", current: "2.0.0", want: "2.1.0"},
		{name: "marker matches build", current: "2.1.0", want: "2.1.0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewManifestSource(ManifestConfig{
				Enabled:  true,
				URL:      path,
				Current:  Version{Version: tt.current},
				StateDir: state,
				Logger:   quietLogger(),
			})
			defer s.Close()
			if got := s.Current().Version; got != tt.want {
				t.Fatalf("Current() = %s, want %s", got, tt.want)
			}
		})
	}

	s := NewManifestSource(ManifestConfig{
		Enabled:  true,
		URL:      path,
		Current:  Version{Version: "2.2.0"},
		StateDir: state,
		Logger:   quietLogger(),
	})
	defer s.Close()
	available := s.Available().Subscribe(1)
	activated := s.Activated().Subscribe(1)
	if err := s.CheckForUpdate(context.Background()); err != nil {
		t.Fatalf("CheckForUpdate: %v", err)
	}
	expectNoAvailable(t, available.C())
	select {
	case n := <-activated.C():
		t.Fatalf("stale marker reported as activation %+v", n)
	default:
	}
}

func TestDroppedNoticeIsOfferedAgain(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, "version: 2.1.0\n")

	s := NewManifestSource(ManifestConfig{
		Enabled: true,
		URL:     path,
		Current: Version{Version: "2.0.0"},
		Logger:  quietLogger(),
	})
	defer s.Close()

	// Nobody is listening yet.
	if err := s.CheckForUpdate(context.Background()); err != nil {
		t.Fatalf("CheckForUpdate: %v", err)
	}

	sub := s.Available().Subscribe(1)
	if err := s.CheckForUpdate(context.Background()); err != nil {
		t.Fatalf("second CheckForUpdate: %v", err)
	}
	if n := receiveAvailable(t, sub.C()); n.Available.Version != "2.1.0" {
		t.Errorf("unexpected notice %+v", n)
	}

	if err := s.CheckForUpdate(context.Background()); err != nil {
		t.Fatalf("third CheckForUpdate: %v", err)
	}
	expectNoAvailable(t, sub.C())
}

func TestActivationByAnotherInstanceIsReported(t *testing.T) {
	dir := t.TempDir()
	state := filepath.Join(dir, "state")
	path := writeManifest(t, dir, "version: 2.1.0\n")

	base := ManifestConfig{
		Enabled:  true,
		URL:      path,
		Current:  Version{Version: "2.0.0"},
		StateDir: state,
		Logger:   quietLogger(),
	}
	a, b := base, base
	a.InstanceID, b.InstanceID = "tab-a", "tab-b"
	srcA, srcB := NewManifestSource(a), NewManifestSource(b)
	activatedB := srcB.Activated().Subscribe(1)

	if err := srcA.CheckForUpdate(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := srcA.ActivateUpdate(context.Background()); err != nil {
		t.Fatal(err)
	}

	if err := srcB.CheckForUpdate(context.Background()); err != nil {
		t.Fatal(err)
	}
	select {
	case n := <-activatedB.C():
		if n.Current.Version != "2.1.0" {
			t.Errorf("unexpected activation %+v", n)
		}
	case <-time.After(time.Second):
		t.Fatal("instance b never saw the activation")
	}

	// Reported once only.
	if err := srcB.CheckForUpdate(context.Background()); err != nil {
		t.Fatal(err)
	}
	select {
	case n := <-activatedB.C():
		t.Fatalf("duplicate activation %+v", n)
	default:
	}
}
