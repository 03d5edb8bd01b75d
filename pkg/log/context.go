package log

import (
	"context"

	"github.com/rs/zerolog"
)

type ctxKey struct{}

// WithLogger stores a logger in the context.
func WithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// Ctx retrieves the logger from the context, or the global logger.
func Ctx(ctx context.Context) zerolog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(zerolog.Logger); ok {
		return l
	}
	return L()
}

// WithFields derives a child of the context logger, stores it back and
// returns both.
//
//	ctx, l := log.WithFields(ctx, func(c zerolog.Context) zerolog.Context {
//		return c.Str(log.FieldRoomID, roomID)
//	})
func WithFields(ctx context.Context, fields func(zerolog.Context) zerolog.Context) (context.Context, zerolog.Logger) {
	l := fields(Ctx(ctx).With()).Logger()
	return WithLogger(ctx, l), l
}
