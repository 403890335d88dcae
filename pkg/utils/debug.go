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

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// SaveRawResponse saves an upstream response body for later inspection when
// debug logging is enabled. Returns the written path or "" when skipped.
// CACHE_FOLDER selects the directory, defaulting to a temp subdirectory.
func SaveRawResponse(action string, data []byte) string {
	if !Config.DebugLoggingEnabled {
		return ""
	}

	debugDir := GetEnvOrDefault("CACHE_FOLDER", filepath.Join(os.TempDir(), "trial-relay-debug"))
	if err := os.MkdirAll(debugDir, 0755); err != nil {
		ErrorLog("Failed to create debug directory: %v", err)
		return ""
	}

	cleanAction := strings.NewReplacer("/", "_", " ", "_").Replace(action)
	if cleanAction == "" {
		cleanAction = "response"
	}
	timestamp := time.Now().Format("20060102_150405")
	filename := filepath.Join(debugDir, fmt.Sprintf("%s_%s.txt", cleanAction, timestamp))

	if err := os.WriteFile(filename, data, 0644); err != nil {
		ErrorLog("Failed to save debug data: %v", err)
		return ""
	}
	DebugLog("Saved %d bytes of %s response to %s", len(data), action, filename)
	return filename
}
