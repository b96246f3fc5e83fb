package middleware

import (
    "time"

    "github.com/google/uuid"
    "github.com/labstack/echo/v4"
    "go.uber.org/zap"
)

const loggerKey = "logger"

// RequestLogger logs one line per request and stores a request scoped
// logger, tagged with the request id, under "logger".  An incoming
// X-Request-ID header is reused; otherwise a new id is generated and echoed
// back.
func RequestLogger(base *zap.Logger) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            start := time.Now()
            req := c.Request()

            reqID := req.Header.Get(echo.HeaderXRequestID)
            if reqID == "" {
                reqID = uuid.NewString()
            }
            c.Response().Header().Set(echo.HeaderXRequestID, reqID)

            lg := base.With(
                zap.String("request_id", reqID),
                zap.String("method", req.Method),
                zap.String("path", c.Path()),
            )
            c.Set(loggerKey, lg)

            err := next(c)
            if err != nil {
                c.Error(err)
            }

            fields := []zap.Field{
                zap.Int("status", c.Response().Status),
                zap.Duration("duration", time.Since(start)),
                zap.String("remote_ip", c.RealIP()),
            }
            if p := PartyID(c); p != "" {
                fields = append(fields, zap.String("party_id", p))
            }
            if err != nil {
                lg.Warn("request failed", append(fields, zap.Error(err))...)
            } else {
                lg.Info("request complete", fields...)
            }
            return nil
        }
    }
}

// Logger returns the request scoped logger or fallback when none is set.
func Logger(c echo.Context, fallback *zap.Logger) *zap.Logger {
    if lg, ok := c.Get(loggerKey).(*zap.Logger); ok {
        return lg
    }
    return fallback
}
