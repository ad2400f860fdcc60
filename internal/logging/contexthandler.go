package logging

import (
	"context"
	"log/slog"

	"github.com/morea-atlas/campaign-player/internal/session"
)

// ContextProvider returns attributes evaluated at log time.
type ContextProvider func() []slog.Attr

// SessionAttrs reports the active campaign and clock position.
func SessionAttrs(s *session.Context) ContextProvider {
	return func() []slog.Attr {
		snap := s.Get()
		if snap.CampaignID == "" {
			return nil
		}
		return []slog.Attr{
			slog.String("campaign", snap.CampaignID),
			slog.Float64("t", snap.Time),
			slog.Bool("playing", snap.Playing),
		}
	}
}

// ContextHandler wraps another handler and injects dynamic attributes.
type ContextHandler struct {
	inner    slog.Handler
	provider ContextProvider
}

// NewContextHandler creates a handler that adds provider's attributes to
// each record.
func NewContextHandler(inner slog.Handler, provider ContextProvider) *ContextHandler {
	return &ContextHandler{inner: inner, provider: provider}
}

func (h *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.provider != nil {
		r.AddAttrs(h.provider()...)
	}
	return h.inner.Handle(ctx, r)
}

func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{inner: h.inner.WithAttrs(attrs), provider: h.provider}
}

func (h *ContextHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &ContextHandler{inner: h.inner.WithGroup(name), provider: h.provider}
}
