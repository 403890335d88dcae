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

import "testing"

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in    string
		debug bool
		want  LogLevel
	}{
		{"debug", false, LevelDebug},
		{"INFO", false, LevelInfo},
		{" warning ", false, LevelWarn},
		{"error", true, LevelError},
		{"", false, LevelInfo},
		{"", true, LevelDebug},
		{"verbose", false, LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLogLevel(tt.in, tt.debug); got != tt.want {
			t.Errorf("ParseLogLevel(%q, %v) = %s, want %s", tt.in, tt.debug, levelToString(got), levelToString(tt.want))
		}
	}
}
