package middleware

// identity.go maps the claims stored by JWTAuth to the party identity used
// by the seat core.  The party id is the token subject rendered as a
// string, so numeric and string subjects are treated alike.

import (
    "strconv"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/cinema-seat-realtime/internal/model"
)

// Roles allowed to run administrative seat operations.
const (
    RoleAdmin = "ADMIN"
    RoleOwner = "OWNER"
)

// PartyID returns the authenticated party or "" for anonymous requests.
func PartyID(c echo.Context) string {
    if s, ok := c.Get("user_id").(string); ok {
        return s
    }
    return ""
}

// Role returns the role claim of the caller or "".
func Role(c echo.Context) string {
    if s, ok := c.Get("role").(string); ok {
        return s
    }
    return ""
}

// IsAdmin reports whether the caller may perform administrative seat
// operations.
func IsAdmin(c echo.Context) bool {
    r := Role(c)
    return r == RoleAdmin || r == RoleOwner
}

// subjectString normalises the "sub" claim.  JSON numbers decode as
// float64, which is how the access token helper encodes numeric ids.
// Subjects too long to store as a party id yield "".
func subjectString(v interface{}) string {
    var sub string
    switch t := v.(type) {
    case string:
        sub = t
    case float64:
        if t < 0 || t != float64(uint64(t)) {
            return ""
        }
        sub = strconv.FormatUint(uint64(t), 10)
    case int64:
        sub = strconv.FormatInt(t, 10)
    }
    if !model.ValidPartyID(sub) {
        return ""
    }
    return sub
}
