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
package utils

import "os"

// DefaultBrowserUserAgent is sent to the trial provider website.
const DefaultBrowserUserAgent = "Mozilla/5.0 (X11; Linux x86_64)"

// GetIPTVUserAgent returns the user agent to use for media server requests
// Uses the USER_AGENT environment variable if set, otherwise defaults to "IPTVSmartersPro"
func GetIPTVUserAgent() string {
	userAgent := os.Getenv("USER_AGENT")
	if userAgent == "" {
		return "IPTVSmartersPro"
	}
	return userAgent
}

// GetBrowserUserAgent returns the user agent used while talking to the trial website.
// BROWSER_USER_AGENT overrides the default.
func GetBrowserUserAgent() string {
	return GetEnvOrDefault("BROWSER_USER_AGENT", DefaultBrowserUserAgent)
}
