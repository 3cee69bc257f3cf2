package http

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/containeer/internal/common"
	"github.com/gin-gonic/gin"
)

// statusFor maps a workflow error to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrUntrustedIssuer),
		errors.Is(err, common.ErrTokenExpired),
		errors.Is(err, common.ErrMalformedToken),
		errors.Is(err, common.ErrInvalidSignature),
		errors.Is(err, common.ErrTokenRevoked),
		errors.Is(err, common.ErrorUnauthorized),
		errors.Is(err, common.ErrRefreshTokenExpired):
		return http.StatusUnauthorized
	case errors.Is(err, common.ErrForbidden),
		errors.Is(err, common.ErrAccountInactive):
		return http.StatusForbidden
	case errors.Is(err, common.ErrorNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrUnsupportedMediaType):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrorAlreadyExists),
		errors.Is(err, common.ErrEmailTaken):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// messageFor is the fixed public text for err. Wrapped detail never reaches
// the client.
func messageFor(err error) string {
	switch {
	case errors.Is(err, common.ErrInvalidToken):
		return "Invalid token"
	case errors.Is(err, common.ErrUntrustedIssuer):
		return "Invalid issuer"
	case errors.Is(err, common.ErrRefreshTokenExpired):
		return "Refresh token expired"
	case errors.Is(err, common.ErrAccountInactive):
		return "Inactive user"
	case errors.Is(err, common.ErrForbidden):
		return "Forbidden"
	case errors.Is(err, common.ErrorNotFound):
		return "Not found"
	case errors.Is(err, common.ErrUnsupportedMediaType):
		return "Only PLY files are allowed"
	case errors.Is(err, common.ErrEmailTaken), errors.Is(err, common.ErrorAlreadyExists):
		return "Email already registered"
	}
	if statusFor(err) == http.StatusUnauthorized {
		return "Could not validate credentials"
	}
	return "Internal server error"
}

// publicMessages overrides messageFor per sentinel for one route.
type publicMessages map[error]string

// abort writes the error response for err. Internal errors are logged with
// their detail.
func (s *HTTPServer) abort(c *gin.Context, err error, overrides ...publicMessages) {
	status := statusFor(err)
	msg := messageFor(err)
	for _, o := range overrides {
		for target, text := range o {
			if errors.Is(err, target) {
				msg = text
			}
		}
	}

	switch status {
	case http.StatusUnauthorized:
		c.Header("WWW-Authenticate", "Bearer")
	case http.StatusInternalServerError:
		s.logger.Error(c.Request.Context(), "request failed", "path", c.Request.URL.Path, "error", err)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}
