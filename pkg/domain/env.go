package domain

import (
	"context"
	"io"
	"log/slog"
)

// Env is the node context handed to every Step and Message call.
// The dispatcher forwards it untouched.
type Env interface {
	Context() context.Context
	Logger() *slog.Logger
}

type env struct {
	ctx    context.Context
	logger *slog.Logger
}

// NewEnv builds a minimal Env. A nil logger discards output.
func NewEnv(ctx context.Context, logger *slog.Logger) Env {
	if ctx == nil {
		ctx = context.Background()
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &env{ctx: ctx, logger: logger}
}

func (e *env) Context() context.Context { return e.ctx }
func (e *env) Logger() *slog.Logger     { return e.logger }
