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
// Package cache keeps the published LIVE-only playlist fresh.
package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/lucasduport/trial-relay/pkg/config"
	"github.com/lucasduport/trial-relay/pkg/metrics"
	"github.com/lucasduport/trial-relay/pkg/playlist"
	"github.com/lucasduport/trial-relay/pkg/store"
	"github.com/lucasduport/trial-relay/pkg/trial"
	"github.com/lucasduport/trial-relay/pkg/types"
	"github.com/lucasduport/trial-relay/pkg/utils"
	"github.com/lucasduport/trial-relay/pkg/xtream"
)

// RefreshError wraps whatever stopped a refresh.
type RefreshError struct {
	Cause error
}

func (e *RefreshError) Error() string {
	return "refresh failed: " + e.Cause.Error()
}

func (e *RefreshError) Unwrap() error { return e.Cause }

// Verifier checks that a stored credential still works upstream.
type Verifier interface {
	Verify(ctx context.Context, cred types.Credential) error
}

// Manager owns the published playlist and its timestamp file.
type Manager struct {
	playlistPath  string
	timestampPath string
	mediaURL      string
	maxAge        time.Duration
	timeout       time.Duration

	store    store.CredentialStore
	acquirer trial.Acquirer
	verifier Verifier
	http     *http.Client
	now      func() time.Time

	mu       sync.RWMutex
	channels int
}

// NewManager wires a manager from the relay configuration.
func NewManager(cfg *config.RelayConfig, st store.CredentialStore, acq trial.Acquirer) *Manager {
	m := &Manager{
		playlistPath:  cfg.PlaylistPath(),
		timestampPath: cfg.TimestampPath(),
		mediaURL:      cfg.MediaServerURL,
		maxAge:        cfg.Validity,
		timeout:       cfg.DownloadTimeout,
		store:         st,
		acquirer:      acq,
		http:          &http.Client{},
		now:           time.Now,
	}
	if m.maxAge <= 0 {
		m.maxAge = config.DefaultValidity
	}
	if m.timeout <= 0 {
		m.timeout = 30 * time.Second
	}
	if cfg.VerifyCredentials {
		m.verifier = xtream.NewVerifier(cfg.MediaServerURL)
	}
	if n, err := playlist.CountEntries(m.playlistPath); err == nil {
		m.channels = n
		metrics.PlaylistChannels.Set(float64(n))
	}
	if at, ok := m.LastRefreshed(); ok {
		metrics.LastRefresh.Set(float64(at.Unix()))
	}
	return m
}

// SetVerifier replaces the credential verifier; nil disables verification.
func (m *Manager) SetVerifier(v Verifier) { m.verifier = v }

// PlaylistPath is where the LIVE-only playlist is published.
func (m *Manager) PlaylistPath() string { return m.playlistPath }

// Ready reports whether a playlist has ever been published.
func (m *Manager) Ready() bool { return utils.FileExists(m.playlistPath) }

// Channels returns the entry count of the last published playlist.
func (m *Manager) Channels() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.channels
}

// LastRefreshed reads the timestamp file.
func (m *Manager) LastRefreshed() (time.Time, bool) {
	data, err := os.ReadFile(m.timestampPath)
	if err != nil {
		return time.Time{}, false
	}
	secs, err := strconv.ParseFloat(strings.TrimSpace(string(data)), 64)
	if err != nil {
		utils.DebugLog("Ignoring unreadable cache timestamp %q: %v", data, err)
		return time.Time{}, false
	}
	return time.Unix(int64(secs), 0), true
}

// IsFresh reports whether the published playlist is younger than the validity window.
func (m *Manager) IsFresh() bool {
	if !m.Ready() {
		return false
	}
	at, ok := m.LastRefreshed()
	return ok && m.now().Sub(at) < m.maxAge
}

// EnsureFresh returns at once when the cache is fresh. Otherwise it obtains a
// credential, downloads and filters the playlist, and publishes it.
func (m *Manager) EnsureFresh(ctx context.Context) error {
	if m.IsFresh() {
		utils.DebugLog("Playlist cache is fresh, nothing to do")
		metrics.Refreshes.WithLabelValues("fresh").Inc()
		return nil
	}

	start := m.now()
	if err := m.refresh(ctx); err != nil {
		metrics.Refreshes.WithLabelValues("error").Inc()
		return &RefreshError{Cause: utils.ErrorWithLocation(err)}
	}
	metrics.Refreshes.WithLabelValues("success").Inc()
	metrics.ObservePublish(m.now(), m.Channels(), m.now().Sub(start))
	return nil
}

func (m *Manager) refresh(ctx context.Context) error {
	cred, err := m.credential(ctx)
	if err != nil {
		return err
	}

	client, err := xtream.FromCredential(cred, m.mediaURL)
	if err != nil {
		return err
	}
	download, err := m.download(ctx, client.PlaylistURL())
	if err != nil {
		return err
	}
	defer os.Remove(download)

	stats, err := m.publish(download)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.channels = stats.Kept
	m.mu.Unlock()
	utils.InfoLog("Published %d live channels to %s (%d dropped, %d orphaned metadata lines)",
		stats.Kept, m.playlistPath, stats.Dropped, stats.Orphaned)
	return nil
}

// credential returns the latest stored credential when still valid,
// otherwise acquires and stores a new one.
func (m *Manager) credential(ctx context.Context) (types.Credential, error) {
	if cred, ok := m.store.LoadLatestValid(m.maxAge); ok {
		if m.verifier == nil {
			utils.InfoLog("Reusing stored credential %s (age %s)", utils.MaskString(cred.Username), cred.Age(m.now()).Truncate(time.Second))
			metrics.CredentialSource.WithLabelValues("ledger").Inc()
			return cred, nil
		}
		if err := m.verifier.Verify(ctx, cred); err != nil {
			utils.WarnLog("Stored credential %s rejected upstream, acquiring a new one: %v", utils.MaskString(cred.Username), err)
		} else {
			utils.InfoLog("Reusing verified credential %s", utils.MaskString(cred.Username))
			metrics.CredentialSource.WithLabelValues("ledger").Inc()
			return cred, nil
		}
	}

	utils.InfoLog("No valid stored credential, starting trial acquisition")
	id, cred, err := m.acquirer.Acquire(ctx)
	if err != nil {
		stage := "unknown"
		var acqErr *trial.AcquisitionError
		if errors.As(err, &acqErr) {
			stage = string(acqErr.Stage)
		}
		metrics.Acquisitions.WithLabelValues(stage, "error").Inc()
		return types.Credential{}, err
	}
	metrics.Acquisitions.WithLabelValues("complete", "success").Inc()
	metrics.CredentialSource.WithLabelValues("acquired").Inc()

	if err := m.store.Append(id, cred); err != nil {
		// The credential is still usable for this refresh.
		utils.ErrorLog("Failed to store credential %s: %v", utils.MaskString(cred.Username), err)
	}
	return cred, nil
}

// download streams the upstream playlist into a temporary file next to the
// published one and returns its path.
func (m *Manager) download(ctx context.Context, rawURL string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", utils.GetIPTVUserAgent())

	utils.DebugLog("Downloading playlist from %s", utils.MaskQuery(rawURL))
	resp, err := m.http.Do(req)
	if err != nil {
		return "", &trial.TransportError{URL: utils.MaskQuery(rawURL), Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", &trial.TransportError{URL: utils.MaskQuery(rawURL), StatusCode: resp.StatusCode}
	}

	if err := os.MkdirAll(filepath.Dir(m.playlistPath), 0755); err != nil {
		return "", err
	}
	path := utils.TempPath(m.playlistPath, ".download")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return "", err
	}
	n, err := io.Copy(f, resp.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return "", &trial.TransportError{URL: utils.MaskQuery(rawURL), Err: fmt.Errorf("download interrupted: %w", err)}
	}
	utils.DebugLog("Downloaded %d bytes of playlist", n)
	return path, nil
}

// publish filters src into a staging file, renames it over the playlist and
// then records the timestamp. The playlist is swapped before the timestamp so
// a reader never sees a timestamp newer than its content.
func (m *Manager) publish(src string) (playlist.Stats, error) {
	in, err := os.Open(src)
	if err != nil {
		return playlist.Stats{}, err
	}
	defer in.Close()

	staging := utils.TempPath(m.playlistPath, ".staging")
	out, err := os.OpenFile(staging, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return playlist.Stats{}, err
	}
	stats, err := playlist.Filter(in, out)
	if err == nil {
		err = out.Sync()
	}
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(staging)
		return stats, &trial.ParseError{What: "playlist", Err: err}
	}
	if stats.Kept == 0 {
		os.Remove(staging)
		return stats, &trial.ParseError{What: "playlist", Err: fmt.Errorf("no live channels in %d lines", stats.Lines)}
	}

	if err := utils.Publish(staging, m.playlistPath); err != nil {
		return stats, err
	}
	ts := strconv.FormatInt(m.now().Unix(), 10)
	if err := utils.WriteFileAtomic(m.timestampPath, []byte(ts), 0644); err != nil {
		return stats, fmt.Errorf("write cache timestamp: %w", err)
	}
	return stats, nil
}
