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

import "net/url"

// MaskString masks sensitive parts of strings for logging.
func MaskString(s string) string {
	if len(s) <= 8 {
		if len(s) <= 0 {
			return "[empty]"
		}
		return s[:1] + "******"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

// MaskQuery masks the username and password query parameters of a URL such
// as a get.php playlist link. Unparseable input is masked as a whole.
func MaskQuery(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return MaskString(rawURL)
	}
	q := u.Query()
	for _, key := range []string{"username", "password"} {
		if v := q.Get(key); v != "" {
			q.Set(key, MaskString(v))
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}
