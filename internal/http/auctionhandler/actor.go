package auctionhandler

import (
	"net/http"
	"strings"

	"auctionhouse/internal/services/auction"

	"github.com/gin-gonic/gin"
)

const (
	HeaderUserID   = "X-User-ID"
	HeaderUserRole = "X-User-Role"

	actorKey = "auction.actor"
)

// Identify reads the caller from the headers set by the authenticating proxy.
func Identify() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(actorKey, auction.Actor{
			UserID: strings.TrimSpace(c.GetHeader(HeaderUserID)),
			Admin:  strings.EqualFold(c.GetHeader(HeaderUserRole), "admin"),
		})
		c.Next()
	}
}

// ActorOf returns the caller stored by Identify.
func ActorOf(c *gin.Context) auction.Actor {
	if v, ok := c.Get(actorKey); ok {
		return v.(auction.Actor)
	}
	return auction.Actor{}
}

// requireUser aborts with 401 when no caller identity is present.
func requireUser(c *gin.Context) (auction.Actor, bool) {
	a := ActorOf(c)
	if a.UserID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
			Error: HeaderUserID + " header is required",
			Code:  "unauthenticated",
		})
		return a, false
	}
	return a, true
}
