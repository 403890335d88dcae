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
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestTempPath(t *testing.T) {
	target := filepath.Join("data", "live.m3u")
	a, b := TempPath(target, ".staging"), TempPath(target, ".staging")
	if a == b {
		t.Error("TempPath() returned the same path twice")
	}
	if filepath.Dir(a) != "data" || !strings.HasPrefix(filepath.Base(a), ".live.m3u.") || !strings.HasSuffix(a, ".staging") {
		t.Errorf("TempPath() = %q", a)
	}
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "live.m3u.ts")

	for _, content := range []string{"1700000000", "1700003600"} {
		if err := WriteFileAtomic(path, []byte(content), 0644); err != nil {
			t.Fatalf("WriteFileAtomic() error = %v", err)
		}
		got, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		if string(got) != content {
			t.Errorf("content = %q, want %q", got, content)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("directory holds %d entries, want only the target", len(entries))
	}
}

func TestPublishRemovesSourceOnFailure(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	if err := os.WriteFile(src, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := Publish(src, filepath.Join(dir, "missing", "dst")); err == nil {
		t.Fatal("Publish() into a missing directory should fail")
	}
	if FileExists(src) {
		t.Error("source left behind after failed publish")
	}
}

func TestFileExists(t *testing.T) {
	dir := t.TempDir()
	if FileExists(dir) {
		t.Error("FileExists() true for a directory")
	}
	if FileExists(filepath.Join(dir, "nope")) {
		t.Error("FileExists() true for a missing file")
	}
}
