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
// Package xtream talks to the media server's Xtream Codes endpoints.
package xtream

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/buger/jsonparser"

	"github.com/lucasduport/trial-relay/pkg/types"
	"github.com/lucasduport/trial-relay/pkg/utils"
)

// Client represents an Xtream API client bound to one account
type Client struct {
	Username  string
	Password  string
	BaseURL   string
	UserAgent string
	Client    *http.Client
}

// New creates a new Xtream client instance
func New(user, password, baseURL string) (*Client, error) {
	if _, err := url.Parse(baseURL); err != nil {
		return nil, utils.PrintErrorAndReturn(fmt.Errorf("invalid base URL: %w", err))
	}
	return &Client{
		Username:  user,
		Password:  password,
		BaseURL:   strings.TrimRight(baseURL, "/"),
		UserAgent: utils.GetIPTVUserAgent(),
		Client: &http.Client{
			Timeout: 10 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
	}, nil
}

// FromCredential builds a client for a stored trial credential.
func FromCredential(cred types.Credential, baseURL string) (*Client, error) {
	return New(cred.Username, cred.Password, baseURL)
}

// PlaylistURL is the full m3u_plus playlist for the account.
func (c *Client) PlaylistURL() string {
	return fmt.Sprintf("%s/get.php?username=%s&password=%s&type=m3u_plus&output=ts",
		c.BaseURL, url.QueryEscape(c.Username), url.QueryEscape(c.Password))
}

// AccountInfo is the subset of player_api.php user_info we care about.
type AccountInfo struct {
	Authenticated  bool
	Status         string
	Trial          bool
	MaxConnections int
	ExpiresAt      time.Time
}

// Usable reports whether the account can stream right now.
func (a AccountInfo) Usable(now time.Time) bool {
	if !a.Authenticated {
		return false
	}
	if a.Status != "" && !strings.EqualFold(a.Status, "active") {
		return false
	}
	return a.ExpiresAt.IsZero() || now.Before(a.ExpiresAt)
}

// Action executes a player_api.php call and returns the raw JSON body.
// An empty action returns the account and server info.
func (c *Client) Action(ctx context.Context, action string, q url.Values) ([]byte, error) {
	u, err := url.Parse(c.BaseURL + "/player_api.php")
	if err != nil {
		return nil, utils.PrintErrorAndReturn(err)
	}
	params := url.Values{}
	params.Set("username", c.Username)
	params.Set("password", c.Password)
	if strings.TrimSpace(action) != "" {
		params.Set("action", action)
	}
	for k, vs := range q {
		if k == "username" || k == "password" || k == "action" {
			continue
		}
		for _, v := range vs {
			if v != "" {
				params.Add(k, v)
			}
		}
	}
	u.RawQuery = params.Encode()
	utils.DebugLog("Xtream request: %s", utils.MaskQuery(u.String()))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept", "application/json, text/plain, */*")

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("player_api returned HTTP %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 10*1024*1024))
}

// AccountInfo fetches and parses the account's user_info block.
func (c *Client) AccountInfo(ctx context.Context) (AccountInfo, error) {
	body, err := c.Action(ctx, "", nil)
	if err != nil {
		return AccountInfo{}, err
	}
	utils.SaveRawResponse("player_api", body)
	return parseAccountInfo(body)
}

func parseAccountInfo(body []byte) (AccountInfo, error) {
	userInfo, dataType, _, err := jsonparser.Get(body, "user_info")
	if err != nil || dataType != jsonparser.Object {
		return AccountInfo{}, fmt.Errorf("player_api response has no user_info object")
	}

	var info AccountInfo
	info.Authenticated = flexBool(userInfo, "auth")
	info.Trial = flexBool(userInfo, "is_trial")
	info.Status, _ = jsonparser.GetString(userInfo, "status")
	info.MaxConnections = int(flexInt(userInfo, "max_connections"))
	if exp := flexInt(userInfo, "exp_date"); exp > 0 {
		info.ExpiresAt = time.Unix(exp, 0)
	}
	return info, nil
}

// flexInt reads a number that panels send either as JSON number or string.
func flexInt(data []byte, key string) int64 {
	v, dataType, _, err := jsonparser.Get(data, key)
	if err != nil {
		return 0
	}
	switch dataType {
	case jsonparser.Number, jsonparser.String:
		n, err := strconv.ParseInt(strings.TrimSpace(string(v)), 10, 64)
		if err != nil {
			return 0
		}
		return n
	}
	return 0
}

func flexBool(data []byte, key string) bool {
	v, dataType, _, err := jsonparser.Get(data, key)
	if err != nil {
		return false
	}
	switch dataType {
	case jsonparser.Boolean:
		b, _ := jsonparser.ParseBoolean(v)
		return b
	case jsonparser.Number, jsonparser.String:
		s := strings.TrimSpace(string(v))
		return s == "1" || strings.EqualFold(s, "true")
	}
	return false
}

// Verifier checks a stored credential against the media server.
type Verifier struct {
	BaseURL string
	now     func() time.Time
}

// NewVerifier returns a Verifier for the media server at baseURL.
func NewVerifier(baseURL string) *Verifier {
	return &Verifier{BaseURL: baseURL, now: time.Now}
}

// Verify returns nil when the account is usable. Any other outcome is an error
// the caller treats as "credential not reusable".
func (v *Verifier) Verify(ctx context.Context, cred types.Credential) error {
	c, err := FromCredential(cred, v.BaseURL)
	if err != nil {
		return err
	}
	info, err := c.AccountInfo(ctx)
	if err != nil {
		return fmt.Errorf("verify %s: %w", utils.MaskString(cred.Username), err)
	}
	if !info.Usable(v.now()) {
		return fmt.Errorf("account %s not usable (auth=%v status=%q expires=%s)",
			utils.MaskString(cred.Username), info.Authenticated, info.Status, info.ExpiresAt.Format(time.RFC3339))
	}
	utils.InfoLog("Account %s verified (trial=%v, max connections=%d, expires %s)",
		utils.MaskString(cred.Username), info.Trial, info.MaxConnections, info.ExpiresAt.Format(time.RFC3339))
	return nil
}
