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
// Package trial drives the trial-account conversation with the provider website:
// register, extract the nonce, activate the trial and scrape the login.
package trial

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math/rand"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/buger/jsonparser"
	"github.com/lucasduport/trial-relay/pkg/config"
	"github.com/lucasduport/trial-relay/pkg/identity"
	"github.com/lucasduport/trial-relay/pkg/types"
	"github.com/lucasduport/trial-relay/pkg/utils"
)

// Per-call timeouts.
const (
	RegisterTimeout = 15 * time.Second
	NonceTimeout    = 10 * time.Second
	TrialTimeout    = 15 * time.Second
	ScrapeTimeout   = 15 * time.Second
)

const (
	boundaryPrefix  = "----geckoformboundary"
	maxResponseSize = 5 << 20
	trialAction     = "generate_24hour_data"
)

// Acquirer obtains a new trial credential.
type Acquirer interface {
	Acquire(ctx context.Context) (types.Identity, types.Credential, error)
}

// Client implements Acquirer against the provider website.
type Client struct {
	SiteURL    string
	Identities *identity.Generator
	Nonces     NonceExtractor
	// Transport is shared by every attempt; each attempt gets its own cookie jar.
	Transport http.RoundTripper
	UserAgent string

	// Pacing bounds the random delay between identity generation and registration.
	PaceMin time.Duration
	PaceMax time.Duration

	RegisterTimeout time.Duration
	NonceTimeout    time.Duration
	TrialTimeout    time.Duration
	ScrapeTimeout   time.Duration

	now func() time.Time
}

// NewClient builds a Client from the relay configuration.
func NewClient(cfg *config.RelayConfig) *Client {
	return &Client{
		SiteURL:         strings.TrimRight(cfg.SiteURL, "/"),
		Identities:      identity.NewGenerator(),
		Nonces:          NewScriptNonceExtractor(DefaultNonceVariable),
		Transport:       http.DefaultTransport,
		UserAgent:       utils.GetBrowserUserAgent(),
		PaceMin:         cfg.PaceMin,
		PaceMax:         cfg.PaceMax,
		RegisterTimeout: RegisterTimeout,
		NonceTimeout:    NonceTimeout,
		TrialTimeout:    TrialTimeout,
		ScrapeTimeout:   ScrapeTimeout,
		now:             time.Now,
	}
}

// session holds the per-attempt HTTP state, like a browser tab.
type session struct {
	c      *Client
	client *http.Client
}

// Acquire runs the full conversation. Each step only runs when the previous
// one succeeded; nothing is retried.
func (c *Client) Acquire(ctx context.Context) (types.Identity, types.Credential, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return types.Identity{}, types.Credential{}, err
	}
	s := &session{c: c, client: &http.Client{Jar: jar, Transport: c.Transport}}

	id := c.Identities.Generate()
	utils.InfoLog("Acquiring trial with identity %s %s <%s>", id.First, id.Last, id.Email)

	if err := c.pace(ctx); err != nil {
		return id, types.Credential{}, stageErr(StageRegistration, err)
	}

	if err := s.register(ctx, id); err != nil {
		return id, types.Credential{}, stageErr(StageRegistration, err)
	}
	utils.DebugLog("Registration accepted for %s", id.Email)

	nonce, err := s.nonce(ctx)
	if err != nil {
		return id, types.Credential{}, stageErr(StageNonce, err)
	}
	utils.DebugLog("Extracted nonce %s", utils.MaskString(nonce))

	if err := s.activate(ctx, nonce); err != nil {
		return id, types.Credential{}, stageErr(StageTrial, err)
	}

	cred, err := s.scrape(ctx)
	if err != nil {
		return id, types.Credential{}, stageErr(StageScrape, err)
	}
	cred.Email = id.Email
	cred.AcquiredAt = c.clock().Truncate(time.Second)

	utils.InfoLog("Trial credential acquired: username=%s", utils.MaskString(cred.Username))
	return id, cred, nil
}

func (c *Client) clock() time.Time {
	if c.now == nil {
		return time.Now()
	}
	return c.now()
}

func (c *Client) pace(ctx context.Context) error {
	d := c.PaceMin
	if span := c.PaceMax - c.PaceMin; span > 0 {
		d += time.Duration(rand.Int63n(int64(span)))
	}
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (c *Client) ajaxURL() string    { return c.SiteURL + "/wp-admin/admin-ajax.php" }
func (c *Client) trialURL() string   { return c.SiteURL + "/free-iptv/" }
func (c *Client) accountURL() string { return c.SiteURL + "/my-account/" }

// register submits the sign-up form as multipart with a browser-like boundary.
func (s *session) register(ctx context.Context, id types.Identity) error {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if err := w.SetBoundary(boundaryPrefix + s.c.Identities.RandomSuffix(24)); err != nil {
		return err
	}
	fields := [][2]string{
		{"xoo_el_reg_email", id.Email},
		{"xoo_el_reg_pass", id.Password},
		{"xoo_el_reg_pass_again", id.Password},
		{"xoo_el_reg_fname", id.First},
		{"xoo_el_reg_lname", id.Last},
		{"xoo_el_reg_terms", "yes"},
		{"_xoo_el_form", "register"},
		{"xoo_el_redirect", "/my-account/"},
		{"action", "xoo_el_form_action"},
	}
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return err
		}
	}
	if err := w.Close(); err != nil {
		return err
	}

	header := http.Header{}
	header.Set("X-Requested-With", "XMLHttpRequest")
	header.Set("Origin", s.c.SiteURL)
	header.Set("Referer", s.c.accountURL())
	header.Set("Content-Type", w.FormDataContentType())

	resp, err := s.do(ctx, s.c.RegisterTimeout, http.MethodPost, s.c.ajaxURL(), header, &body)
	if err != nil {
		return err
	}
	if err := registrationAccepted(resp); err != nil {
		utils.SaveRawResponse(string(StageRegistration), resp)
		return err
	}
	return nil
}

// registrationAccepted checks the "error" discriminator: 0 or "no-error" means success.
func registrationAccepted(body []byte) error {
	value, dataType, _, err := jsonparser.Get(body, "error")
	if err != nil {
		return &ParseError{What: "registration response", Err: err}
	}
	switch dataType {
	case jsonparser.Number:
		if n, err := jsonparser.ParseInt(value); err == nil && n == 0 {
			return nil
		}
	case jsonparser.String:
		s := strings.ToLower(strings.TrimSpace(string(value)))
		if s == "0" || s == "no-error" {
			return nil
		}
	}
	notice, _ := jsonparser.GetString(body, "notice")
	return &RejectedError{Reason: fmt.Sprintf("error=%s %s", value, excerpt(notice))}
}

func (s *session) nonce(ctx context.Context) (string, error) {
	header := http.Header{}
	header.Set("Referer", s.c.trialURL())

	page, err := s.do(ctx, s.c.NonceTimeout, http.MethodGet, s.c.trialURL(), header, nil)
	if err != nil {
		return "", err
	}
	nonce, err := s.c.Nonces.ExtractNonce(bytes.NewReader(page))
	if err != nil {
		utils.SaveRawResponse(string(StageNonce), page)
		return "", err
	}
	return nonce, nil
}

func (s *session) activate(ctx context.Context, nonce string) error {
	form := url.Values{}
	form.Set("action", trialAction)
	form.Set("nonce", nonce)

	header := http.Header{}
	header.Set("X-Requested-With", "XMLHttpRequest")
	header.Set("Origin", s.c.SiteURL)
	header.Set("Referer", s.c.trialURL())
	header.Set("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8")

	resp, err := s.do(ctx, s.c.TrialTimeout, http.MethodPost, s.c.ajaxURL(), header, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	if err := trialActivated(resp); err != nil {
		utils.SaveRawResponse(string(StageTrial), resp)
		return err
	}
	return nil
}

// trialActivated checks the "success" discriminator with loose truthiness.
func trialActivated(body []byte) error {
	value, dataType, _, err := jsonparser.Get(body, "success")
	if err != nil {
		return &ParseError{What: "trial response", Err: err}
	}
	ok := false
	switch dataType {
	case jsonparser.Boolean:
		ok, _ = jsonparser.ParseBoolean(value)
	case jsonparser.Number:
		f, perr := jsonparser.ParseFloat(value)
		ok = perr == nil && f != 0
	case jsonparser.String:
		ok = len(value) > 0
	}
	if !ok {
		return &RejectedError{Reason: "success=" + excerpt(string(value)) + " " + excerpt(string(body))}
	}
	return nil
}

func (s *session) scrape(ctx context.Context) (types.Credential, error) {
	header := http.Header{}
	header.Set("Referer", s.c.trialURL())

	page, err := s.do(ctx, s.c.ScrapeTimeout, http.MethodGet, s.c.accountURL(), header, nil)
	if err != nil {
		return types.Credential{}, err
	}
	cred, err := ScrapeCredentials(bytes.NewReader(page))
	if err != nil {
		utils.SaveRawResponse(string(StageScrape), page)
		return types.Credential{}, err
	}
	return cred, nil
}

// ScrapeCredentials reads the trial login from the account page.
func ScrapeCredentials(page io.Reader) (types.Credential, error) {
	doc, err := goquery.NewDocumentFromReader(page)
	if err != nil {
		return types.Credential{}, &ParseError{What: "account page", Err: err}
	}
	username := strings.TrimSpace(doc.Find(".account-username").First().Text())
	password := strings.TrimSpace(doc.Find(".account-password").First().Text())
	if username == "" {
		return types.Credential{}, &ParseError{What: "account page", Err: fmt.Errorf(".account-username missing")}
	}
	if password == "" {
		return types.Credential{}, &ParseError{What: "account page", Err: fmt.Errorf(".account-password missing")}
	}
	return types.Credential{Username: username, Password: password}, nil
}

// do performs one bounded request and returns the body of a successful response.
func (s *session) do(ctx context.Context, timeout time.Duration, method, target string, header http.Header, body io.Reader) ([]byte, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	for k, vv := range header {
		req.Header[k] = vv
	}
	req.Header.Set("User-Agent", s.c.UserAgent)

	utils.DebugLog("-> %s %s", method, target)
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &TransportError{URL: target, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, &TransportError{URL: target, Err: err}
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, &TransportError{URL: target, StatusCode: resp.StatusCode}
	}
	return data, nil
}

func excerpt(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}
