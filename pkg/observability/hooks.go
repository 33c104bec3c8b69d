package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/weft/pkg/domain"
)

// Hooks returns lifecycle hooks that feed m and audit events to logger at
// debug level. Either may be nil.
func Hooks(m *Metrics, logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnTransition: func(ctx context.Context, e *domain.TransitionEvent) {
			if e.Failure != "" {
				m.StepFailed()
			}
			if logger != nil {
				logger.DebugContext(ctx, "chain transition",
					"chain", e.Chain.String(),
					"message", e.Message,
					"from", e.From,
					"to", e.To,
					"alive", e.Alive,
				)
			}
		},
		OnDrop: func(ctx context.Context, e *domain.DropEvent) {
			m.Dropped(e.Reason)
			if logger != nil {
				logger.DebugContext(ctx, "message dropped", "chain", e.Chain.String(), "message", e.Message, "reason", e.Reason)
			}
		},
		OnEvict: func(ctx context.Context, e *domain.EvictEvent) {
			m.Evicted(e.Priority)
		},
	}
}

// Guard recovers a panic raised by any hook in hooks and logs it at error
// level, so a faulty observer never reaches the goroutine driving a chain.
func Guard(hooks domain.LifecycleHooks, logger *slog.Logger) domain.LifecycleHooks {
	recovered := func(hook string, chain domain.ChainID) {
		if r := recover(); r != nil && logger != nil {
			logger.Error("lifecycle hook panicked", "hook", hook, "chain", chain.String(), "panic", r)
		}
	}

	var out domain.LifecycleHooks
	if h := hooks.OnTransition; h != nil {
		out.OnTransition = func(ctx context.Context, e *domain.TransitionEvent) {
			defer recovered("transition", e.Chain)
			h(ctx, e)
		}
	}
	if h := hooks.OnDrop; h != nil {
		out.OnDrop = func(ctx context.Context, e *domain.DropEvent) {
			defer recovered("drop", e.Chain)
			h(ctx, e)
		}
	}
	if h := hooks.OnEvict; h != nil {
		out.OnEvict = func(ctx context.Context, e *domain.EvictEvent) {
			defer recovered("evict", e.Chain)
			h(ctx, e)
		}
	}
	return out
}

// Chain runs every non-nil hook of each set in order. Wrap the result with
// Guard when a set may panic.
func Chain(sets ...domain.LifecycleHooks) domain.LifecycleHooks {
	var out domain.LifecycleHooks
	for _, h := range sets {
		h := h
		if h.OnTransition != nil {
			prev := out.OnTransition
			out.OnTransition = func(ctx context.Context, e *domain.TransitionEvent) {
				if prev != nil {
					prev(ctx, e)
				}
				h.OnTransition(ctx, e)
			}
		}
		if h.OnDrop != nil {
			prev := out.OnDrop
			out.OnDrop = func(ctx context.Context, e *domain.DropEvent) {
				if prev != nil {
					prev(ctx, e)
				}
				h.OnDrop(ctx, e)
			}
		}
		if h.OnEvict != nil {
			prev := out.OnEvict
			out.OnEvict = func(ctx context.Context, e *domain.EvictEvent) {
				if prev != nil {
					prev(ctx, e)
				}
				h.OnEvict(ctx, e)
			}
		}
	}
	return out
}
