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
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lucasduport/trial-relay/pkg/utils"
)

// authRequest represents credentials supplied via query params
type authRequest struct {
	Username string `form:"username" binding:"required"`
	Password string `form:"password" binding:"required"`
}

// authenticate guards playlist endpoints when an operator user is configured.
func (c *Config) authenticate(ctx *gin.Context) {
	if !c.GuardEnabled() {
		return
	}
	utils.DebugLog("-> Incoming URL: %s", utils.MaskQuery(ctx.Request.URL.String()))

	var authReq authRequest
	if err := ctx.ShouldBindQuery(&authReq); err != nil {
		utils.DebugLog("Bind error: %v", err)
		ctx.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	if !equal(c.User.String(), authReq.Username) || !equal(c.Password.String(), authReq.Password) {
		utils.DebugLog("Local authentication failed for user: %s", utils.MaskString(authReq.Username))
		ctx.AbortWithStatus(http.StatusUnauthorized)
	}
}

func equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
