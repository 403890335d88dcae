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
package identity

import (
	"regexp"
	"strings"
	"testing"
)

var emailPattern = regexp.MustCompile(`^[a-z]+[._-]?[a-z]+[a-z0-9]{4}@gmail\.com$`)

func TestGenerate(t *testing.T) {
	g := NewSeededGenerator(42)
	for i := 0; i < 200; i++ {
		id := g.Generate()
		if id.First == "" || id.Last == "" {
			t.Fatalf("empty name in %+v", id)
		}
		if id.Password != Password {
			t.Errorf("Password = %q, want %q", id.Password, Password)
		}
		if !emailPattern.MatchString(id.Email) {
			t.Errorf("unexpected email layout %q", id.Email)
		}
		if !strings.Contains(id.Email, strings.ToLower(id.Last)) {
			t.Errorf("email %q does not contain last name %q", id.Email, id.Last)
		}
	}
}

func TestBuildEmailFormats(t *testing.T) {
	tests := []struct {
		format int
		want   string
	}{
		{0, "jane.doeab12@gmail.com"},
		{1, "janedoeab12@gmail.com"},
		{2, "jane-doeab12@gmail.com"},
		{3, "jane_doeab12@gmail.com"},
		{4, "jdoeab12@gmail.com"},
	}
	for _, tt := range tests {
		if got := buildEmail("Jane", "Doe", "ab12", tt.format); got != tt.want {
			t.Errorf("buildEmail(format %d) = %q, want %q", tt.format, got, tt.want)
		}
	}
}

func TestRandomSuffix(t *testing.T) {
	g := NewSeededGenerator(1)
	s := g.RandomSuffix(24)
	if len(s) != 24 {
		t.Fatalf("len = %d, want 24", len(s))
	}
	for _, r := range s {
		if !strings.ContainsRune(suffixAlphabet, r) {
			t.Errorf("unexpected rune %q in %q", r, s)
		}
	}
}
