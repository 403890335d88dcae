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
package types

import "time"

// Identity is the synthetic person used for one registration attempt.
type Identity struct {
	First    string
	Last     string
	Email    string
	Password string
}

// Credential is a trial login for the media server.
type Credential struct {
	Username   string
	Password   string
	Email      string    // email of the identity that obtained it, if known
	AcquiredAt time.Time // local wall clock, second precision
}

// Valid reports whether both halves of the login are present.
func (c Credential) Valid() bool {
	return c.Username != "" && c.Password != ""
}

// Age returns how old the credential is at now.
func (c Credential) Age(now time.Time) time.Duration {
	return now.Sub(c.AcquiredAt)
}

// APIResponse is the body returned by the control endpoints.
type APIResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status         string     `json:"status"`
	M3UReady       bool       `json:"m3u_ready"`
	InitInProgress bool       `json:"init_in_progress"`
	InitError      *string    `json:"init_error"`
	LastRefresh    *time.Time `json:"last_refresh,omitempty"`
	Channels       int        `json:"channels"`
	RunID          string     `json:"run_id,omitempty"`
}
