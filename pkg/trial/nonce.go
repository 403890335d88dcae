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
package trial

import (
	"fmt"
	"io"
	"regexp"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/buger/jsonparser"
)

// DefaultNonceVariable is the script global carrying the trial nonce.
const DefaultNonceVariable = "primeStreamApiData"

// NonceExtractor pulls the trial-activation nonce out of an HTML page.
type NonceExtractor interface {
	ExtractNonce(page io.Reader) (string, error)
}

// ScriptNonceExtractor finds an inline script assigning an object literal to
// Variable and reads its "nonce" field. Single quotes are normalised to
// double quotes before the literal is read as JSON.
type ScriptNonceExtractor struct {
	Variable string

	once    sync.Once
	pattern *regexp.Regexp
}

// NewScriptNonceExtractor returns an extractor for the given script variable.
func NewScriptNonceExtractor(variable string) *ScriptNonceExtractor {
	if variable == "" {
		variable = DefaultNonceVariable
	}
	e := &ScriptNonceExtractor{Variable: variable}
	e.compiled()
	return e
}

// compiled returns the assignment pattern, built on first use.
func (e *ScriptNonceExtractor) compiled() *regexp.Regexp {
	e.once.Do(func() {
		e.pattern = regexp.MustCompile(`(?s)var\s+` + regexp.QuoteMeta(e.Variable) + `\s*=\s*(\{.*?\});`)
	})
	return e.pattern
}

// ExtractNonce implements NonceExtractor.
func (e *ScriptNonceExtractor) ExtractNonce(page io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(page)
	if err != nil {
		return "", &ParseError{What: "nonce page", Err: err}
	}

	pattern := e.compiled()

	var (
		nonce   string
		lastErr error
	)
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		script := s.Text()
		if !strings.Contains(script, e.Variable) {
			return true
		}
		m := pattern.FindStringSubmatch(script)
		if m == nil {
			lastErr = fmt.Errorf("%s assignment not found", e.Variable)
			return true
		}
		literal := []byte(strings.ReplaceAll(m[1], "'", "\""))
		value, err := jsonparser.GetString(literal, "nonce")
		if err != nil {
			lastErr = fmt.Errorf("%s.nonce: %w", e.Variable, err)
			return false
		}
		nonce = value
		return false
	})

	if nonce != "" {
		return nonce, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no script mentions %s", e.Variable)
	}
	return "", &ParseError{What: "nonce", Err: lastErr}
}
