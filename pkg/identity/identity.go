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
// Package identity produces the synthetic people used to register trial accounts.
package identity

import (
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/lucasduport/trial-relay/pkg/types"
)

// Password is the fixed password given to every generated account.
const Password = "Pa$$w0rd!"

const suffixAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

var firstNames = []string{
	"James", "Mary", "Robert", "Patricia", "John", "Jennifer", "Michael", "Linda",
	"David", "Elizabeth", "William", "Barbara", "Richard", "Susan", "Joseph", "Jessica",
	"Thomas", "Sarah", "Charles", "Karen", "Daniel", "Lisa", "Matthew", "Nancy",
	"Anthony", "Betty", "Mark", "Sandra", "Steven", "Ashley", "Andrew", "Emily",
	"Joshua", "Michelle", "Kevin", "Amanda", "Brian", "Melissa", "George", "Rebecca",
}

var lastNames = []string{
	"Smith", "Johnson", "Williams", "Brown", "Jones", "Garcia", "Miller", "Davis",
	"Rodriguez", "Martinez", "Hernandez", "Lopez", "Gonzalez", "Wilson", "Anderson", "Thomas",
	"Taylor", "Moore", "Jackson", "Martin", "Lee", "Perez", "Thompson", "White",
	"Harris", "Sanchez", "Clark", "Ramirez", "Lewis", "Robinson", "Walker", "Young",
	"Allen", "King", "Wright", "Scott", "Torres", "Nguyen", "Hill", "Flores",
}

// Generator creates identities. It is safe for concurrent use.
type Generator struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewGenerator returns a Generator seeded from the clock.
func NewGenerator() *Generator {
	return NewSeededGenerator(time.Now().UnixNano())
}

// NewSeededGenerator returns a deterministic Generator.
func NewSeededGenerator(seed int64) *Generator {
	return &Generator{rnd: rand.New(rand.NewSource(seed))}
}

// Generate returns a fresh identity with a collision-resistant email.
func (g *Generator) Generate() types.Identity {
	g.mu.Lock()
	first := firstNames[g.rnd.Intn(len(firstNames))]
	last := lastNames[g.rnd.Intn(len(lastNames))]
	format := g.rnd.Intn(5)
	suffix := g.suffixLocked(4)
	g.mu.Unlock()

	return types.Identity{
		First:    first,
		Last:     last,
		Email:    buildEmail(first, last, suffix, format),
		Password: Password,
	}
}

// RandomSuffix returns n random lowercase letters and digits.
func (g *Generator) RandomSuffix(n int) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.suffixLocked(n)
}

func (g *Generator) suffixLocked(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = suffixAlphabet[g.rnd.Intn(len(suffixAlphabet))]
	}
	return string(b)
}

// buildEmail renders one of the five local-part layouts.
func buildEmail(first, last, suffix string, format int) string {
	first = strings.ToLower(first)
	last = strings.ToLower(last)

	var local string
	switch format {
	case 0:
		local = first + "." + last
	case 1:
		local = first + last
	case 2:
		local = first + "-" + last
	case 3:
		local = first + "_" + last
	default:
		local = first[:1] + last
	}
	return local + suffix + "@gmail.com"
}
