package gormlog

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/gorm/utils"

	"github.com/fatflowers/mollie-gateway/pkg/logctx"
)

const defaultSlowThreshold = 500 * time.Millisecond

// ZapLogger implements gorm.io/gorm/logger.Interface on top of the request
// scoped zap logger, so SQL lines carry the trace_id of the webhook or API
// call that issued them.
type ZapLogger struct {
	base          *zap.SugaredLogger
	level         gormlogger.LogLevel
	slowThreshold time.Duration
}

// New returns a logger at Warn level. Use LogMode(gormlogger.Info) to see every statement.
func New(base *zap.SugaredLogger) *ZapLogger {
	return &ZapLogger{base: base, level: gormlogger.Warn, slowThreshold: defaultSlowThreshold}
}

func (z *ZapLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	cp := *z
	cp.level = level
	return &cp
}

func (z *ZapLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if z.level >= gormlogger.Info {
		logctx.FromCtx(ctx, z.base).Infow(msg, "args", data)
	}
}

func (z *ZapLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if z.level >= gormlogger.Warn {
		logctx.FromCtx(ctx, z.base).Warnw(msg, "args", data)
	}
}

func (z *ZapLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if z.level >= gormlogger.Error {
		logctx.FromCtx(ctx, z.base).Errorw(msg, "args", data)
	}
}

func (z *ZapLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if z.level == gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	sql, rows := fc()
	lg := logctx.FromCtx(ctx, z.base).With(
		"rows", rows,
		"elapsed_ms", elapsed.Milliseconds(),
		"caller", shortCaller(utils.FileWithLineNum()),
	)
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		lg.Errorw("gorm_trace", "err", err, "sql", sql)
	case z.slowThreshold > 0 && elapsed > z.slowThreshold:
		lg.Warnw("gorm_slow", "sql", sql)
	case z.level >= gormlogger.Info:
		lg.Debugw("gorm", "sql", sql)
	}
}

// shortCaller trims absolute build paths to repo-relative ones,
// e.g. /src/repo/internal/app/service/donation/service.go:38.
func shortCaller(s string) string {
	p := filepath.ToSlash(s)
	for _, marker := range []string{"/internal/", "/pkg/", "/cmd/"} {
		if i := strings.Index(p, marker); i >= 0 {
			return p[i+1:]
		}
	}
	if parts := strings.Split(p, "/"); len(parts) > 3 {
		return strings.Join(parts[len(parts)-3:], "/")
	}
	return strings.TrimPrefix(p, "/")
}
