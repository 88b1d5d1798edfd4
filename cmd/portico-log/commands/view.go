// Package commands implements the portico-log CLI commands.
package commands

import (
	"crypto/tls"
	"fmt"
	"io"
	"time"

	"github.com/portico-http/portico/pkg/log"
)

// ViewFilter specifies criteria for filtering events in the view command.
type ViewFilter struct {
	Layer    *log.Layer
	Category *log.Category
}

func (f ViewFilter) filter() log.Filter {
	return log.Filter{Layer: f.Layer, Category: f.Category}
}

// formatEvent writes a human-readable representation of the event to w.
func formatEvent(w io.Writer, event log.Event) {
	// Header line: timestamp [conn:id] LAYER Type
	ts := event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z")

	conn := "-"
	if event.ConnectionID != "" {
		conn = shortenConnID(event.ConnectionID)
	}

	var typeLabel string
	switch {
	case event.StateChange != nil:
		typeLabel = "State"
	case event.Backoff != nil:
		typeLabel = "Backoff"
	case event.Handshake != nil:
		typeLabel = "Handshake"
	case event.Error != nil:
		typeLabel = "Error"
	default:
		typeLabel = "Unknown"
	}

	fmt.Fprintf(w, "%s [conn:%s] %s %s\n", ts, conn, event.Layer.String(), typeLabel)

	if event.RemoteAddr != "" {
		fmt.Fprintf(w, "  Remote: %s\n", event.RemoteAddr)
	}

	switch {
	case event.StateChange != nil:
		formatStateChangeDetails(w, event.StateChange)
	case event.Backoff != nil:
		formatBackoffDetails(w, event.Backoff)
	case event.Handshake != nil:
		formatHandshakeDetails(w, event.Handshake)
	case event.Error != nil:
		formatErrorDetails(w, event.Error)
	}

	fmt.Fprintln(w)
}

// shortenConnID returns the first 8 characters of the connection ID.
func shortenConnID(id string) string {
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}

func formatStateChangeDetails(w io.Writer, sc *log.StateChangeEvent) {
	fmt.Fprintf(w, "  Entity: %s\n", sc.Entity.String())
	if sc.OldState != "" {
		fmt.Fprintf(w, "  %s -> %s\n", sc.OldState, sc.NewState)
	} else {
		fmt.Fprintf(w, "  -> %s\n", sc.NewState)
	}
	if sc.Reason != "" {
		fmt.Fprintf(w, "  Reason: %s\n", sc.Reason)
	}
}

func formatBackoffDetails(w io.Writer, b *log.BackoffEvent) {
	fmt.Fprintf(w, "  Class: %s\n", b.Class.String())
	if b.Delay > 0 {
		fmt.Fprintf(w, "  Delay: %s\n", formatDuration(b.Delay))
	} else {
		fmt.Fprintln(w, "  Delay: none")
	}
	if b.Message != "" {
		fmt.Fprintf(w, "  Message: %s\n", b.Message)
	}
}

func formatHandshakeDetails(w io.Writer, h *log.HandshakeEvent) {
	fmt.Fprintf(w, "  Version: %s\n", tls.VersionName(h.Version))
	fmt.Fprintf(w, "  Cipher: %s\n", tls.CipherSuiteName(h.CipherSuite))
	if h.Protocol != "" {
		fmt.Fprintf(w, "  ALPN: %s\n", h.Protocol)
	}
	if h.ServerName != "" {
		fmt.Fprintf(w, "  SNI: %s\n", h.ServerName)
	}
	if h.PeerCertificates > 0 {
		fmt.Fprintf(w, "  Client chain: %d\n", h.PeerCertificates)
	}
	if h.Resumed {
		fmt.Fprintln(w, "  Resumed: yes")
	}
	fmt.Fprintf(w, "  Duration: %s\n", formatDuration(h.Duration))
}

func formatErrorDetails(w io.Writer, err *log.ErrorEventData) {
	fmt.Fprintf(w, "  Layer: %s\n", err.Layer.String())
	fmt.Fprintf(w, "  Message: %s\n", err.Message)
	if err.Context != "" {
		fmt.Fprintf(w, "  Context: %s\n", err.Context)
	}
}

// formatDuration formats a duration for display.
func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%.3fus", float64(d.Nanoseconds())/1000)
	}
	if d < time.Second {
		return fmt.Sprintf("%.3fms", float64(d.Microseconds())/1000)
	}
	return fmt.Sprintf("%.3fs", d.Seconds())
}

// ParseLayerFlag parses a layer string from a command-line flag (case-insensitive).
func ParseLayerFlag(s string) (log.Layer, error) {
	l, ok := log.ParseLayer(s)
	if !ok {
		return 0, fmt.Errorf("invalid layer: %s (must be accept, transport, or tls)", s)
	}
	return l, nil
}

// ParseCategoryFlag parses a category string from a command-line flag (case-insensitive).
func ParseCategoryFlag(s string) (log.Category, error) {
	c, ok := log.ParseCategory(s)
	if !ok {
		return 0, fmt.Errorf("invalid category: %s (must be state, backoff, handshake, or error)", s)
	}
	return c, nil
}

// RunView executes the view command.
func RunView(path string, filter ViewFilter, output io.Writer) error {
	reader, err := log.NewFilteredReader(path, filter.filter())
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		formatEvent(output, event)
	}

	return nil
}
