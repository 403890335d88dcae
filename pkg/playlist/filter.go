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
// Package playlist reduces an upstream M3U playlist to its live channels.
package playlist

import (
	"bufio"
	"io"
	"strings"

	"github.com/jamesnetherton/m3u"
)

const (
	headerPrefix = "#EXTM3U"
	extinfPrefix = "#EXTINF"
)

// Stats describes one filtering pass.
type Stats struct {
	Lines    int
	Kept     int
	Dropped  int
	Orphaned int
}

// IsLive reports whether a content line points at a live stream.
func IsLive(line string) bool {
	return strings.Contains(line, "/live/") &&
		!strings.Contains(line, "/movie/") &&
		!strings.Contains(line, "/series/")
}

// filter is the line state machine shared by FilterLiveOnly and Filter.
// At most one #EXTINF line is pending at a time.
type filter struct {
	pending    string
	hasPending bool
	stats      Stats
}

// feed consumes one line and returns what must be emitted for it.
func (f *filter) feed(line string) []string {
	line = strings.TrimRight(line, "\r")
	f.stats.Lines++

	switch {
	case strings.HasPrefix(line, headerPrefix):
		return []string{line}
	case strings.HasPrefix(line, extinfPrefix):
		if f.hasPending {
			f.stats.Orphaned++
		}
		f.pending, f.hasPending = line, true
		return nil
	case strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#"):
		return nil
	}

	var out []string
	if IsLive(line) {
		if f.hasPending {
			out = append(out, f.pending)
		}
		out = append(out, line)
		f.stats.Kept++
	} else {
		f.stats.Dropped++
	}
	f.pending, f.hasPending = "", false
	return out
}

// finish accounts for metadata never followed by a content line.
func (f *filter) finish() Stats {
	if f.hasPending {
		f.stats.Orphaned++
		f.pending, f.hasPending = "", false
	}
	return f.stats
}

// FilterLiveOnly keeps the header lines and every live entry together with
// its #EXTINF line. Everything else is dropped.
func FilterLiveOnly(lines []string) []string {
	f := &filter{}
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		out = append(out, f.feed(line)...)
	}
	f.finish()
	return out
}

// Filter is the streaming form of FilterLiveOnly. Output lines end in "\n".
func Filter(r io.Reader, w io.Writer) (Stats, error) {
	f := &filter{}
	bw := bufio.NewWriter(w)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)

	for sc.Scan() {
		for _, line := range f.feed(sc.Text()) {
			if _, err := bw.WriteString(line); err != nil {
				return f.stats, err
			}
			if err := bw.WriteByte('\n'); err != nil {
				return f.stats, err
			}
		}
	}
	if err := sc.Err(); err != nil {
		return f.stats, err
	}
	return f.finish(), bw.Flush()
}

// CountEntries parses a published playlist and returns its number of tracks.
func CountEntries(path string) (int, error) {
	p, err := m3u.Parse(path)
	if err != nil {
		return 0, err
	}
	return len(p.Tracks), nil
}
