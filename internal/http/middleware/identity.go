// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file resolves the caller's identity. There is no authentication: the
// client names itself in X-User-ID and every per-user record is keyed by it.
package middleware

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
)

// HeaderUserID carries the caller's user id.
const HeaderUserID = "X-User-ID"

// userIDRE bounds what may become a storage key.
var userIDRE = regexp.MustCompile(`^[A-Za-z0-9._@:\-]{1,128}$`)

// Identity validates X-User-ID and stores it under "userID" in the Gin
// context. A missing header leaves the context untouched so handlers fall
// back to the demo user; a malformed one is rejected with 400.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := strings.TrimSpace(c.GetHeader(HeaderUserID))
		if uid == "" {
			c.Next()
			return
		}
		if !userIDRE.MatchString(uid) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"request_id": RequestIDFrom(c),
				"code":       "bad_request",
				"message":    "invalid X-User-ID",
			})
			return
		}
		c.Set("userID", uid)
		c.Next()
	}
}
