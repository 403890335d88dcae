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
package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lucasduport/trial-relay/pkg/refresh"
	"github.com/lucasduport/trial-relay/pkg/types"
	"github.com/lucasduport/trial-relay/pkg/utils"
	"github.com/lucasduport/trial-relay/pkg/xtream"
)

const m3uContentType = "application/x-mpegURL"

// initRefresh starts a background refresh and returns immediately.
func (c *Config) initRefresh(ctx *gin.Context) {
	outcome := c.coordinator.Trigger()
	utils.DebugLog("/init from %s: %s", ctx.ClientIP(), outcome)

	switch outcome {
	case refresh.Fresh:
		ctx.JSON(http.StatusOK, types.APIResponse{Status: outcome.String(), Message: "playlist is up to date"})
	case refresh.AlreadyRunning:
		ctx.JSON(http.StatusAccepted, types.APIResponse{Status: outcome.String(), Message: "refresh already in progress"})
	default:
		ctx.JSON(http.StatusAccepted, types.APIResponse{Status: outcome.String(), Message: "refresh started"})
	}
}

// getLiveM3U serves the published playlist. It never starts a refresh.
func (c *Config) getLiveM3U(ctx *gin.Context) {
	if !c.cache.Ready() {
		ctx.JSON(http.StatusNotFound, types.APIResponse{Status: "not ready", Message: "call /init to build the playlist"})
		return
	}
	ctx.Header("Content-Type", m3uContentType)
	ctx.Header("Cache-Control", "no-cache")
	ctx.File(c.cache.PlaylistPath())
}

// getFullM3U redirects to the unfiltered upstream playlist of the latest stored credential.
func (c *Config) getFullM3U(ctx *gin.Context) {
	cred, ok := c.ledger.LoadLatestValid(c.Validity)
	if !ok {
		ctx.JSON(http.StatusServiceUnavailable, types.APIResponse{Status: "unavailable", Error: "no valid credential stored, call /init first"})
		return
	}
	client, err := xtream.FromCredential(cred, c.MediaServerURL)
	if err != nil {
		ctx.AbortWithError(http.StatusInternalServerError, err) // nolint: errcheck
		return
	}
	utils.DebugLog("Redirecting to full playlist of %s", utils.MaskString(cred.Username))
	ctx.Redirect(http.StatusFound, client.PlaylistURL())
}

func (c *Config) health(ctx *gin.Context) {
	st := c.coordinator.Status()
	resp := types.HealthResponse{
		Status:         "ok",
		M3UReady:       c.cache.Ready(),
		InitInProgress: st.Running,
		Channels:       c.cache.Channels(),
		RunID:          st.RunID,
	}
	if st.LastError != "" {
		msg := st.LastError
		resp.InitError = &msg
	}
	if at, ok := c.cache.LastRefreshed(); ok {
		resp.LastRefresh = &at
	}
	ctx.JSON(http.StatusOK, resp)
}
