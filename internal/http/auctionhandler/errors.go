package auctionhandler

import (
	"errors"
	"net/http"

	"auctionhouse/internal/services/auction"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// statusFor maps an error kind to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, auction.ErrRaceLost), errors.Is(err, auction.ErrAlreadyDecided):
		return http.StatusConflict
	case errors.Is(err, auction.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, auction.ErrAuthorization):
		return http.StatusForbidden
	case errors.Is(err, auction.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, auction.ErrState):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func writeError(c *gin.Context, err error) {
	status, code := statusFor(err), auction.Code(err)
	if status == http.StatusInternalServerError {
		zap.L().Error("http_request_failed",
			zap.String("path", c.FullPath()),
			zap.Error(err))
		c.JSON(status, ErrorResponse{Error: "internal error", Code: code})
		return
	}
	c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "bad_request"})
}
