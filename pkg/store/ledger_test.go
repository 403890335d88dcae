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
package store

import (
	"bytes"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/lucasduport/trial-relay/pkg/types"
)

func newTestLedger(t *testing.T, now time.Time) *Ledger {
	t.Helper()
	l := NewLedger(filepath.Join(t.TempDir(), "credentials.txt"), "http://media.test:80")
	l.now = func() time.Time { return now }
	return l
}

func TestLedgerAppendAndLoad(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.Local)
	l := newTestLedger(t, now)

	id := types.Identity{First: "Jane", Last: "Doe", Email: "jane.doeab12@gmail.com"}
	first := types.Credential{Username: "old", Password: "p1", AcquiredAt: now.Add(-2 * time.Hour)}
	second := types.Credential{Username: "new", Password: "p2", AcquiredAt: now.Add(-time.Hour)}
	if err := l.Append(id, first); err != nil {
		t.Fatal(err)
	}
	if err := l.Append(id, second); err != nil {
		t.Fatal(err)
	}

	got, ok := l.LoadLatestValid(20 * time.Hour)
	if !ok {
		t.Fatal("LoadLatestValid() found nothing")
	}
	if got.Username != "new" || got.Password != "p2" || got.Email != id.Email {
		t.Errorf("LoadLatestValid() = %+v", got)
	}
	if !got.AcquiredAt.Equal(second.AcquiredAt) {
		t.Errorf("AcquiredAt = %v, want %v", got.AcquiredAt, second.AcquiredAt)
	}

	data, err := os.ReadFile(l.Path())
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	if len(lines) != 2*recordLines {
		t.Fatalf("ledger has %d lines, want %d", len(lines), 2*recordLines)
	}
	if lines[0] != "Time: "+first.AcquiredAt.Format(TimeLayout) || lines[2] != "Username: old" {
		t.Errorf("first record rewritten: %q", lines[:recordLines])
	}
	if lines[4] != "Server:  http://media.test:80" || lines[5] != separator {
		t.Errorf("unexpected record tail %q", lines[4:6])
	}
}

func TestLedgerExpiredRecordIsAbsent(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.Local)
	l := newTestLedger(t, now)
	cred := types.Credential{Username: "u", Password: "p", AcquiredAt: now.Add(-21 * time.Hour)}
	if err := l.Append(types.Identity{Email: "a@b.c"}, cred); err != nil {
		t.Fatal(err)
	}
	if _, ok := l.LoadLatestValid(20 * time.Hour); ok {
		t.Error("a 21h old credential must not be valid in a 20h window")
	}
	if _, ok := l.LoadLatestValid(22 * time.Hour); !ok {
		t.Error("a 21h old credential should be valid in a 22h window")
	}
}

func TestLedgerMalformed(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"missing file", ""},
		{"too short", "Time: 2025-06-01 09:00:00\nEmail: x\nUsername: u\n"},
		{"bad time", "Time: yesterday\nEmail: x\nUsername: u\nPassword: p\nServer:  s\n" + separator + "\n"},
		{"truncated tail", "Time: 2025-06-01 09:00:00\nEmail: x\nUsername: u\nPassword: p\nServer:  s\n" + separator + "\nTime: 2025-06-01 09:30:00\nEmail: y\n"},
		{"empty password", "Time: 2025-06-01 09:00:00\nEmail: x\nUsername: u\nPassword:\nServer:  s\n" + separator + "\n"},
	}

	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.Local)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newTestLedger(t, now)
			if tt.content != "" {
				if err := os.WriteFile(l.Path(), []byte(tt.content), 0600); err != nil {
					t.Fatal(err)
				}
			}
			if cred, ok := l.LoadLatestValid(20 * time.Hour); ok {
				t.Errorf("LoadLatestValid() = %+v, want none", cred)
			}
		})
	}
}

func TestLedgerRejectsIncompleteCredential(t *testing.T) {
	l := newTestLedger(t, time.Now())
	if err := l.Append(types.Identity{}, types.Credential{Username: "u"}); err == nil {
		t.Error("Append() accepted a credential without password")
	}
	if _, err := os.Stat(l.Path()); !os.IsNotExist(err) {
		t.Error("ledger file should not exist after a rejected append")
	}
}

func TestLedgerAppendMasksUsernameInLog(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.Local)
	l := newTestLedger(t, now)
	cred := types.Credential{Username: "trialuser123456", Password: "p", AcquiredAt: now}
	if err := l.Append(types.Identity{Email: "a@b.c"}, cred); err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	if !strings.Contains(out, "tria...3456") {
		t.Errorf("log does not mention the masked username:\n%s", out)
	}
	if strings.Contains(out, cred.Username) {
		t.Errorf("log leaks the username:\n%s", out)
	}
}
