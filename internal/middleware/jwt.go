package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
    "net/http" // HTTP status codes for responses
    "strings"  // string utilities for prefix checking and trimming

    "github.com/golang-jwt/jwt/v5" // JWT library for parsing and validating tokens
    "github.com/labstack/echo/v4"  // Echo framework used for defining middleware and handlers
)

// JWTAuth returns an Echo middleware that validates an HS256 access token
// and injects the token's subject and role claims into the request context
// under "user_id" and "role".  The token is read from the Authorization
// header ("Bearer <jwt>") or, for websocket upgrades where browsers cannot
// set headers, from the "token" query parameter.
func JWTAuth(secret string) echo.MiddlewareFunc {
    return jwtMiddleware(secret, true)
}

// OptionalJWT behaves like JWTAuth but lets requests without any token
// through anonymously.  A token that is present but invalid is still
// rejected.
func OptionalJWT(secret string) echo.MiddlewareFunc {
    return jwtMiddleware(secret, false)
}

func jwtMiddleware(secret string, required bool) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            raw := bearerToken(c)
            if raw == "" {
                if required {
                    return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
                }
                return next(c)
            }

            // Only HMAC-SHA256 is accepted; anything else is rejected before
            // the key is handed out.
            tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
                return []byte(secret), nil
            }, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
            if err != nil || !tok.Valid {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
            }

            claims, ok := tok.Claims.(jwt.MapClaims)
            if !ok {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid claims"})
            }
            sub := subjectString(claims["sub"])
            if sub == "" {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid claims"})
            }

            c.Set("user_id", sub)
            if role, ok := claims["role"].(string); ok {
                c.Set("role", strings.ToUpper(role))
            }
            return next(c)
        }
    }
}

// bearerToken extracts the raw JWT from the header or query string.
func bearerToken(c echo.Context) string {
    if auth := c.Request().Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
        return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
    }
    return strings.TrimSpace(c.QueryParam("token"))
}
