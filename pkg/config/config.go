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
package config

import (
	"errors"
	"path/filepath"
	"time"
)

// CredentialString represents an iptv-relay credential.
type CredentialString string

// String returns the credential string.
func (c CredentialString) String() string {
	return string(c)
}

// HostConfiguration containt host infos
type HostConfiguration struct {
	Hostname string
	Port     int
}

// Default values shared by the command line and the tests.
const (
	DefaultSiteURL        = "https://tv.net.pk"
	DefaultMediaServerURL = "http://tvsystem.my:80"
	DefaultValidity       = 20 * time.Hour
	DefaultSchedule       = "@every 1h"
)

// RelayConfig Contains configuration of the relay.
type RelayConfig struct {
	HostConfig *HostConfiguration

	// Trial provider website and the media server the trial unlocks.
	SiteURL        string
	MediaServerURL string

	// Files
	DataDir        string
	CredentialFile string
	PlaylistFile   string

	// Validity window shared by the cached playlist and stored credentials.
	Validity time.Duration
	// DownloadTimeout bounds the playlist download.
	DownloadTimeout time.Duration
	// Pacing between identity generation and registration.
	PaceMin time.Duration
	PaceMax time.Duration

	// VerifyCredentials checks a reused credential against player_api.php.
	VerifyCredentials bool
	// RefreshSchedule is a cron spec for background refresh triggers; empty disables.
	RefreshSchedule string
	// RefreshOnStart triggers one refresh when the server starts.
	RefreshOnStart bool

	// Optional guard on the playlist endpoint. Empty User disables it.
	User     CredentialString
	Password CredentialString
}

// CredentialPath returns the ledger location, relative names resolved under DataDir.
func (c *RelayConfig) CredentialPath() string {
	return c.resolve(c.CredentialFile, "credentials.txt")
}

// PlaylistPath returns the published playlist location.
func (c *RelayConfig) PlaylistPath() string {
	return c.resolve(c.PlaylistFile, "live.m3u")
}

// TimestampPath returns the file holding the last refresh time of the playlist.
func (c *RelayConfig) TimestampPath() string {
	return c.PlaylistPath() + ".ts"
}

// GuardEnabled reports whether the playlist endpoints require the operator login.
func (c *RelayConfig) GuardEnabled() bool {
	return c.User != "" || c.Password != ""
}

// Validate rejects configurations the relay cannot serve with.
func (c *RelayConfig) Validate() error {
	if (c.User == "") != (c.Password == "") {
		return errors.New("user and password must be set together to guard the playlist endpoints")
	}
	return nil
}

func (c *RelayConfig) resolve(name, fallback string) string {
	if name == "" {
		name = fallback
	}
	if filepath.IsAbs(name) || c.DataDir == "" {
		return name
	}
	return filepath.Join(c.DataDir, name)
}
