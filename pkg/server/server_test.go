/*
 * trial-relay republishes a LIVE-only IPTV playlist from an automated trial account.
 * Copyright (C) 2025  Lucas Duport
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <https://www.gnu.org/licenses/>.
 */
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lucasduport/trial-relay/pkg/cache"
	"github.com/lucasduport/trial-relay/pkg/config"
	"github.com/lucasduport/trial-relay/pkg/refresh"
	"github.com/lucasduport/trial-relay/pkg/store"
	"github.com/lucasduport/trial-relay/pkg/trial"
	"github.com/lucasduport/trial-relay/pkg/types"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubAcquirer struct {
	calls int32
	err   error
}

func (s *stubAcquirer) Acquire(ctx context.Context) (types.Identity, types.Credential, error) {
	atomic.AddInt32(&s.calls, 1)
	if s.err != nil {
		return types.Identity{}, types.Credential{}, s.err
	}
	return types.Identity{Email: "john.smithab12@gmail.com"},
		types.Credential{Username: "trialuser", Password: "trialpass", AcquiredAt: time.Now().Truncate(time.Second)},
		nil
}

func newTestServer(t *testing.T, acq trial.Acquirer) *Config {
	t.Helper()
	media := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("#EXTM3U\n#EXTINF:-1,News\nhttp://media/live/a/b/1.ts\n#EXTINF:-1,Film\nhttp://media/movie/a/b/2.mp4\n"))
	}))
	t.Cleanup(media.Close)

	cfg := &config.RelayConfig{
		HostConfig:      &config.HostConfiguration{Hostname: "localhost", Port: 8080},
		MediaServerURL:  media.URL,
		DataDir:         t.TempDir(),
		Validity:        20 * time.Hour,
		DownloadTimeout: 5 * time.Second,
	}
	ledger := store.NewLedger(cfg.CredentialPath(), cfg.MediaServerURL)
	manager := cache.NewManager(cfg, ledger, acq)
	return newServer(cfg, manager, refresh.NewCoordinator(manager), ledger)
}

func do(t *testing.T, router http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("invalid JSON body %q: %v", w.Body.String(), err)
	}
}

func waitRefresh(t *testing.T, c *Config) {
	t.Helper()
	if err := c.Shutdown(5 * time.Second); err != nil {
		t.Fatalf("refresh did not finish: %v", err)
	}
}

func TestRoutesBeforeFirstRefresh(t *testing.T) {
	c := newTestServer(t, &stubAcquirer{})
	router := c.Router()

	w := do(t, router, "/live.m3u")
	if w.Code != http.StatusNotFound {
		t.Errorf("/live.m3u status = %d, want 404", w.Code)
	}
	var notReady types.APIResponse
	decode(t, w, &notReady)
	if notReady.Status != "not ready" {
		t.Errorf("/live.m3u status field = %q", notReady.Status)
	}

	w = do(t, router, "/health")
	var health map[string]interface{}
	decode(t, w, &health)
	if health["status"] != "ok" || health["m3u_ready"] != false || health["init_in_progress"] != false {
		t.Errorf("/health = %v", health)
	}
	if v, ok := health["init_error"]; !ok || v != nil {
		t.Errorf("/health init_error = %v, want null", v)
	}

	if w := do(t, router, "/get-m3u"); w.Code != http.StatusServiceUnavailable {
		t.Errorf("/get-m3u status = %d, want 503", w.Code)
	}
}

func TestInitThenServe(t *testing.T) {
	acq := &stubAcquirer{}
	c := newTestServer(t, acq)
	router := c.Router()

	w := do(t, router, "/init")
	var resp types.APIResponse
	decode(t, w, &resp)
	if w.Code != http.StatusAccepted || resp.Status != "started" {
		t.Fatalf("/init = %d %+v, want 202 started", w.Code, resp)
	}
	waitRefresh(t, c)

	w = do(t, router, "/init")
	decode(t, w, &resp)
	if w.Code != http.StatusOK || resp.Status != "fresh" {
		t.Errorf("second /init = %d %+v, want 200 fresh", w.Code, resp)
	}
	if acq.calls != 1 {
		t.Errorf("acquisitions = %d, want 1", acq.calls)
	}

	w = do(t, router, "/live.m3u")
	if w.Code != http.StatusOK {
		t.Fatalf("/live.m3u status = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != m3uContentType {
		t.Errorf("Content-Type = %q", ct)
	}
	if want := "#EXTM3U\n#EXTINF:-1,News\nhttp://media/live/a/b/1.ts\n"; w.Body.String() != want {
		t.Errorf("/live.m3u body = %q, want %q", w.Body.String(), want)
	}

	var health types.HealthResponse
	decode(t, do(t, router, "/health"), &health)
	if !health.M3UReady || health.InitInProgress || health.InitError != nil || health.Channels != 1 || health.LastRefresh == nil {
		t.Errorf("/health = %+v", health)
	}

	w = do(t, router, "/get-m3u")
	if w.Code != http.StatusFound {
		t.Fatalf("/get-m3u status = %d, want 302", w.Code)
	}
	if loc := w.Header().Get("Location"); !strings.Contains(loc, "/get.php?username=trialuser&password=trialpass&type=m3u_plus") {
		t.Errorf("/get-m3u Location = %q", loc)
	}
}

func TestInitFailureReportedInHealth(t *testing.T) {
	acq := &stubAcquirer{err: &trial.AcquisitionError{Stage: trial.StageRegistration, Err: errors.New("email taken")}}
	c := newTestServer(t, acq)
	router := c.Router()

	do(t, router, "/init")
	waitRefresh(t, c)

	var health types.HealthResponse
	decode(t, do(t, router, "/health"), &health)
	if health.InitError == nil || !strings.Contains(*health.InitError, "registration") {
		t.Errorf("/health init_error = %v, want registration failure", health.InitError)
	}
	if health.M3UReady {
		t.Error("/health reports a ready playlist after a failed first refresh")
	}
	if w := do(t, router, "/live.m3u"); w.Code != http.StatusNotFound {
		t.Errorf("/live.m3u status = %d, want 404", w.Code)
	}
}

func TestPlaylistGuard(t *testing.T) {
	c := newTestServer(t, &stubAcquirer{})
	c.User = "admin"
	c.Password = "secret"
	router := c.Router()

	tests := []struct {
		target string
		want   int
	}{
		{"/live.m3u", http.StatusUnauthorized},
		{"/live.m3u?username=admin&password=wrong", http.StatusUnauthorized},
		{"/live.m3u?username=admin&password=secret", http.StatusNotFound},
		{"/get-m3u?username=admin", http.StatusUnauthorized},
		{"/health", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			if w := do(t, router, tt.target); w.Code != tt.want {
				t.Errorf("GET %s = %d, want %d", tt.target, w.Code, tt.want)
			}
		})
	}
}

func TestNewServerRejectsHalfGuard(t *testing.T) {
	cfg := &config.RelayConfig{
		HostConfig: &config.HostConfiguration{Port: 8080},
		DataDir:    t.TempDir(),
		User:       "root",
	}
	if _, err := NewServer(cfg); err == nil {
		t.Fatal("NewServer() accepted a user without password")
	}

	cfg.User = ""
	c, err := NewServer(cfg)
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	if w := do(t, c.Router(), "/live.m3u"); w.Code != http.StatusNotFound {
		t.Errorf("/live.m3u with guard disabled = %d, want 404", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	c := newTestServer(t, &stubAcquirer{})
	w := do(t, c.Router(), "/metrics")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "trial_relay_refresh_in_progress") {
		t.Errorf("/metrics = %d %q", w.Code, w.Body.String())
	}
}

type countingTrigger struct{ n int32 }

func (c *countingTrigger) Trigger() refresh.Outcome {
	atomic.AddInt32(&c.n, 1)
	return refresh.Fresh
}

func TestNewScheduler(t *testing.T) {
	if _, err := newScheduler("not a schedule", &countingTrigger{}); err == nil {
		t.Error("newScheduler() accepted an invalid spec")
	}

	tr := &countingTrigger{}
	s, err := newScheduler("@every 1s", tr)
	if err != nil {
		t.Fatalf("newScheduler() error = %v", err)
	}
	s.Start()
	deadline := time.Now().Add(5 * time.Second)
	for atomic.LoadInt32(&tr.n) == 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	s.Stop()
	if atomic.LoadInt32(&tr.n) == 0 {
		t.Error("scheduled trigger never fired")
	}
}
