package logctx

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	loggerKey   = "logger"
	traceIDKey  = "traceID"
	donationKey = "donation_id"
)

// FromGin returns a request-scoped logger from gin.Context if present,
// otherwise returns the provided base logger.
func FromGin(c *gin.Context, base *zap.SugaredLogger) *zap.SugaredLogger {
	if c == nil {
		return base
	}
	if l, ok := c.Get(loggerKey); ok {
		if lg, ok := l.(*zap.SugaredLogger); ok && lg != nil {
			return lg
		}
	}
	return FromCtx(c.Request.Context(), base)
}

// FromCtx returns a logger from context if set, otherwise attempts to enrich
// base with trace_id/donation_id from context values.
func FromCtx(ctx context.Context, base *zap.SugaredLogger) *zap.SugaredLogger {
	if ctx == nil {
		return base
	}
	if lg, ok := ctx.Value(loggerKey).(*zap.SugaredLogger); ok && lg != nil {
		return lg
	}
	var fields []interface{}
	if tid, ok := ctx.Value(traceIDKey).(string); ok && tid != "" {
		fields = append(fields, "trace_id", tid)
	}
	if did, ok := ctx.Value(donationKey).(string); ok && did != "" {
		fields = append(fields, "donation_id", did)
	}
	if len(fields) > 0 {
		return base.With(fields...)
	}
	return base
}

//nolint:staticcheck // string keys are shared with gin.Context.Set
func WithLogger(ctx context.Context, l *zap.SugaredLogger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

//nolint:staticcheck
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// WithDonation attaches donation_id to the context logger.
func WithDonation(ctx context.Context, base *zap.SugaredLogger, donationID string) context.Context {
	return WithLogger(ctx, FromCtx(ctx, base).With("donation_id", donationID))
}

// TraceID returns the request trace id, or "".
func TraceID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	tid, _ := ctx.Value(traceIDKey).(string)
	return tid
}
