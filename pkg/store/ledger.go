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
// Package store keeps the append-only ledger of acquired trial credentials.
package store

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/lucasduport/trial-relay/pkg/types"
	"github.com/lucasduport/trial-relay/pkg/utils"
)

// TimeLayout is the ledger timestamp format (local wall clock).
const TimeLayout = "2006-01-02 15:04:05"

const (
	recordLines = 6
	separator   = "----------------------------------------"
)

// CredentialStore is what the cache needs from the ledger.
type CredentialStore interface {
	LoadLatestValid(maxAge time.Duration) (types.Credential, bool)
	Append(id types.Identity, cred types.Credential) error
}

// Ledger is a human-readable, append-only credential file. Each record is
// six lines: Time, Email, Username, Password, Server, separator.
type Ledger struct {
	path   string
	server string

	mu  sync.Mutex
	now func() time.Time
}

// NewLedger returns a ledger at path. server is written on each record's Server line.
func NewLedger(path, server string) *Ledger {
	return &Ledger{path: path, server: server, now: time.Now}
}

// Path returns the ledger file location.
func (l *Ledger) Path() string { return l.path }

// LoadLatestValid returns the last record when it is younger than maxAge.
// Any problem reading or parsing the record means "no valid credential".
func (l *Ledger) LoadLatestValid(maxAge time.Duration) (types.Credential, bool) {
	l.mu.Lock()
	data, err := os.ReadFile(l.path)
	l.mu.Unlock()
	if err != nil {
		if !os.IsNotExist(err) {
			utils.WarnLog("Credential ledger %s unreadable: %v", l.path, err)
		}
		return types.Credential{}, false
	}

	cred, err := parseLastRecord(data)
	if err != nil {
		utils.DebugLog("Credential ledger %s has no usable record: %v", l.path, err)
		return types.Credential{}, false
	}
	if age := cred.Age(l.now()); age >= maxAge {
		utils.DebugLog("Latest credential %s is %s old (window %s)", utils.MaskString(cred.Username), age.Truncate(time.Second), maxAge)
		return types.Credential{}, false
	}
	return cred, true
}

// Append writes a new record at the end of the ledger. Prior records are never touched.
func (l *Ledger) Append(id types.Identity, cred types.Credential) error {
	if !cred.Valid() {
		return fmt.Errorf("refusing to store incomplete credential")
	}
	at := cred.AcquiredAt
	if at.IsZero() {
		at = l.now()
	}
	email := id.Email
	if email == "" {
		email = cred.Email
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Time: %s\n", at.In(time.Local).Format(TimeLayout))
	fmt.Fprintf(&b, "Email: %s\n", email)
	fmt.Fprintf(&b, "Username: %s\n", cred.Username)
	fmt.Fprintf(&b, "Password: %s\n", cred.Password)
	fmt.Fprintf(&b, "Server:  %s\n", l.server)
	b.WriteString(separator + "\n")

	l.mu.Lock()
	defer l.mu.Unlock()

	if dir := filepath.Dir(l.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("open credential ledger: %w", err)
	}
	if _, err := f.WriteString(b.String()); err != nil {
		f.Close()
		return fmt.Errorf("append credential ledger: %w", err)
	}
	utils.InfoLog("Stored credential %s in %s", utils.MaskString(cred.Username), l.path)
	return f.Close()
}

// parseLastRecord reads the trailing six lines of the ledger.
func parseLastRecord(data []byte) (types.Credential, error) {
	var lines []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return types.Credential{}, err
	}
	if len(lines) < recordLines {
		return types.Credential{}, fmt.Errorf("only %d lines", len(lines))
	}
	rec := lines[len(lines)-recordLines:]

	timeStr, err := field(rec[0], "Time:")
	if err != nil {
		return types.Credential{}, err
	}
	at, err := time.ParseInLocation(TimeLayout, timeStr, time.Local)
	if err != nil {
		return types.Credential{}, fmt.Errorf("bad timestamp %q: %w", timeStr, err)
	}
	email, err := field(rec[1], "Email:")
	if err != nil {
		return types.Credential{}, err
	}
	username, err := field(rec[2], "Username:")
	if err != nil {
		return types.Credential{}, err
	}
	password, err := field(rec[3], "Password:")
	if err != nil {
		return types.Credential{}, err
	}

	cred := types.Credential{Username: username, Password: password, Email: email, AcquiredAt: at}
	if !cred.Valid() {
		return types.Credential{}, fmt.Errorf("empty username or password")
	}
	return cred, nil
}

func field(line, prefix string) (string, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, prefix) {
		return "", fmt.Errorf("expected %q line, got %q", prefix, line)
	}
	return strings.TrimSpace(strings.TrimPrefix(line, prefix)), nil
}
