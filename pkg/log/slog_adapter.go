package log

import (
	"context"
	"log/slog"
)

// SlogAdapter writes events to an slog.Logger at Debug level.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter returns an adapter writing to logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("layer", event.Layer.String()),
		slog.String("category", event.Category.String()),
	}
	if event.ConnectionID != "" {
		attrs = append(attrs, slog.String("conn_id", event.ConnectionID))
	}
	if event.LocalAddr != "" {
		attrs = append(attrs, slog.String("local", event.LocalAddr))
	}
	if event.RemoteAddr != "" {
		attrs = append(attrs, slog.String("remote", event.RemoteAddr))
	}

	switch {
	case event.StateChange != nil:
		attrs = append(attrs,
			slog.String("entity", event.StateChange.Entity.String()),
			slog.String("old_state", event.StateChange.OldState),
			slog.String("new_state", event.StateChange.NewState),
		)
		if event.StateChange.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.StateChange.Reason))
		}
	case event.Backoff != nil:
		attrs = append(attrs,
			slog.String("class", event.Backoff.Class.String()),
			slog.Duration("delay", event.Backoff.Delay),
			slog.String("error", event.Backoff.Message),
		)
	case event.Handshake != nil:
		attrs = append(attrs,
			slog.Any("version", event.Handshake.Version),
			slog.Any("cipher_suite", event.Handshake.CipherSuite),
			slog.String("alpn", event.Handshake.Protocol),
			slog.Int("peer_certs", event.Handshake.PeerCertificates),
			slog.Bool("resumed", event.Handshake.Resumed),
			slog.Duration("duration", event.Handshake.Duration),
		)
		if event.Handshake.ServerName != "" {
			attrs = append(attrs, slog.String("sni", event.Handshake.ServerName))
		}
	case event.Error != nil:
		attrs = append(attrs,
			slog.String("error_layer", event.Error.Layer.String()),
			slog.String("error_msg", event.Error.Message),
			slog.String("error_context", event.Error.Context),
		)
	}

	a.logger.LogAttrs(context.Background(), slog.LevelDebug, "connection event", attrs...)
}

var _ Logger = (*SlogAdapter)(nil)
