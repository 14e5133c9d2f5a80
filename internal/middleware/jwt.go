package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tasktracker/internal/utils"
)

// TokenVerifier validates a raw access token.  *utils.TokenIssuer
// implements it.
type TokenVerifier interface {
	VerifyAccess(raw string) (*utils.AccessClaims, error)
}

// JWTAuth returns an Echo middleware that requires a valid Bearer access
// token and stores the subject and email in the request context.  Every
// failure gets the same 401 body; the concrete reason is only logged.
func JWTAuth(v TokenVerifier, log *slog.Logger) echo.MiddlewareFunc {
	if log == nil {
		log = slog.Default()
	}
	reject := func(c echo.Context, reason string, err error) error {
		log.Info("auth.token.reject", "reason", reason, "path", c.Path(), "err", err)
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get(echo.HeaderAuthorization)
			raw, ok := strings.CutPrefix(auth, "Bearer ")
			if !ok || strings.TrimSpace(raw) == "" {
				return reject(c, "missing_bearer", nil)
			}

			claims, err := v.VerifyAccess(strings.TrimSpace(raw))
			if err != nil {
				return reject(c, "verify", err)
			}
			id, err := strconv.ParseUint(claims.Subject, 10, 64)
			if err != nil || id == 0 {
				return reject(c, "bad_subject", err)
			}

			c.Set(ContextUserID, id)
			c.Set(ContextEmail, claims.Email)
			return next(c)
		}
	}
}
