package middleware // middleware provides shared request processing for handlers

import (
    "net/http"
    "strings"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/seat-reservation-engine/internal/utils"
)

// HolderKey is the context key under which the caller's holder id is stored.
const HolderKey = "holder"

// HolderHeader carries a raw, client-chosen holder token for clients that do
// not mint a signed one through POST /v1/holders.
const HolderHeader = "X-Holder-Token"

const maxRawHolderLen = 128

// HolderIdentity resolves the caller's holder identity and stores it in the
// context under HolderKey.  A Bearer token in the Authorization header must be
// a valid holder token signed with secret; its subject becomes the holder id.
// Without a Bearer token the X-Holder-Token header is used verbatim.  Requests
// carrying neither pass through anonymously; RequireHolder rejects them on
// routes that change seat state.
func HolderIdentity(secret string) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            auth := c.Request().Header.Get("Authorization")
            if strings.HasPrefix(auth, "Bearer ") {
                raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
                holder, err := utils.ParseHolderToken(secret, raw)
                if err != nil {
                    return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid holder token"})
                }
                c.Set(HolderKey, holder)
                return next(c)
            }
            if raw := strings.TrimSpace(c.Request().Header.Get(HolderHeader)); raw != "" {
                if len(raw) > maxRawHolderLen {
                    return c.JSON(http.StatusBadRequest, echo.Map{"error": "holder token too long"})
                }
                c.Set(HolderKey, raw)
            }
            return next(c)
        }
    }
}

// RequireHolder aborts with 401 when HolderIdentity found no holder.
func RequireHolder() echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            if HolderFrom(c) == "" {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing holder token"})
            }
            return next(c)
        }
    }
}

// HolderFrom returns the holder id stored by HolderIdentity, or "".
func HolderFrom(c echo.Context) string {
    if s, ok := c.Get(HolderKey).(string); ok {
        return s
    }
    return ""
}
