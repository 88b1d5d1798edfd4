package commands

import (
	"crypto/tls"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/portico-http/portico/pkg/log"
)

// Stats holds aggregate statistics about a log file.
type Stats struct {
	TotalEvents      int
	EventsByLayer    map[log.Layer]int
	EventsByCategory map[log.Category]int
	Connections      map[string]*ConnectionStats
	Errors           int

	// Accept loop retries, split by error class.
	ConnectionRetries int
	ResourceBackoffs  int
	BackoffTotal      time.Duration

	// Completed handshakes.
	Handshakes       int
	Resumed          int
	MutualTLS        int
	ByVersion        map[uint16]int
	ByCipherSuite    map[uint16]int
	ByProtocol       map[string]int
	HandshakeTotal   time.Duration
	FailedHandshakes int

	TimeRange struct {
		Start time.Time
		End   time.Time
	}
}

// ConnectionStats holds statistics for a single connection.
type ConnectionStats struct {
	FirstSeen  time.Time
	LastSeen   time.Time
	Events     int
	RemoteAddr string
	State      string
}

func newStats() *Stats {
	return &Stats{
		EventsByLayer:    make(map[log.Layer]int),
		EventsByCategory: make(map[log.Category]int),
		Connections:      make(map[string]*ConnectionStats),
		ByVersion:        make(map[uint16]int),
		ByCipherSuite:    make(map[uint16]int),
		ByProtocol:       make(map[string]int),
	}
}

func (s *Stats) add(event log.Event) {
	s.TotalEvents++
	s.EventsByLayer[event.Layer]++
	s.EventsByCategory[event.Category]++

	if s.TimeRange.Start.IsZero() || event.Timestamp.Before(s.TimeRange.Start) {
		s.TimeRange.Start = event.Timestamp
	}
	if event.Timestamp.After(s.TimeRange.End) {
		s.TimeRange.End = event.Timestamp
	}

	if event.ConnectionID != "" {
		conn, ok := s.Connections[event.ConnectionID]
		if !ok {
			conn = &ConnectionStats{
				FirstSeen: event.Timestamp,
				LastSeen:  event.Timestamp,
			}
			s.Connections[event.ConnectionID] = conn
		}
		conn.Events++
		if event.Timestamp.After(conn.LastSeen) {
			conn.LastSeen = event.Timestamp
		}
		if event.RemoteAddr != "" && conn.RemoteAddr == "" {
			conn.RemoteAddr = event.RemoteAddr
		}
		switch {
		case event.StateChange != nil:
			conn.State = event.StateChange.NewState
		case event.Handshake != nil:
			conn.State = log.StateStreaming
		case event.Error != nil && event.Error.Context == "handshake":
			conn.State = log.StateFailed
		}
	}

	switch {
	case event.Backoff != nil:
		if event.Backoff.Class == log.ErrorClassResource {
			s.ResourceBackoffs++
			s.BackoffTotal += event.Backoff.Delay
		} else {
			s.ConnectionRetries++
		}
	case event.Handshake != nil:
		h := event.Handshake
		s.Handshakes++
		s.ByVersion[h.Version]++
		s.ByCipherSuite[h.CipherSuite]++
		if h.Protocol != "" {
			s.ByProtocol[h.Protocol]++
		}
		if h.Resumed {
			s.Resumed++
		}
		if h.PeerCertificates > 0 {
			s.MutualTLS++
		}
		s.HandshakeTotal += h.Duration
	case event.Error != nil:
		s.Errors++
		if event.Layer == log.LayerTLS && event.Error.Context == "handshake" {
			s.FailedHandshakes++
		}
	}
}

// RunStats analyzes the log file and prints statistics.
func RunStats(path string, w io.Writer) error {
	reader, err := log.NewReader(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	stats := newStats()
	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		stats.add(event)
	}

	printStats(w, stats)
	return nil
}

func printStats(w io.Writer, stats *Stats) {
	fmt.Fprintln(w, "=== Portico Event Log Statistics ===")
	fmt.Fprintln(w)

	if stats.TotalEvents > 0 {
		fmt.Fprintf(w, "Time Range: %s to %s\n",
			stats.TimeRange.Start.Format(time.RFC3339),
			stats.TimeRange.End.Format(time.RFC3339))
		fmt.Fprintf(w, "Duration:   %s\n", stats.TimeRange.End.Sub(stats.TimeRange.Start).Round(time.Second))
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Total Events: %d\n", stats.TotalEvents)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Layer:")
	for _, layer := range []log.Layer{log.LayerAccept, log.LayerTransport, log.LayerTLS} {
		if count := stats.EventsByLayer[layer]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", layer.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Category:")
	for _, cat := range []log.Category{log.CategoryState, log.CategoryBackoff, log.CategoryHandshake, log.CategoryError} {
		if count := stats.EventsByCategory[cat]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", cat.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	if stats.ConnectionRetries > 0 || stats.ResourceBackoffs > 0 {
		fmt.Fprintln(w, "Accept Retries:")
		fmt.Fprintf(w, "  Connection errors: %d\n", stats.ConnectionRetries)
		fmt.Fprintf(w, "  Resource errors:   %d (slept %s)\n", stats.ResourceBackoffs, stats.BackoffTotal)
		fmt.Fprintln(w)
	}

	if stats.Handshakes > 0 || stats.FailedHandshakes > 0 {
		fmt.Fprintf(w, "Handshakes: %d completed, %d failed\n", stats.Handshakes, stats.FailedHandshakes)
		if stats.Handshakes > 0 {
			avg := stats.HandshakeTotal / time.Duration(stats.Handshakes)
			fmt.Fprintf(w, "  Average:   %s\n", formatDuration(avg))
			fmt.Fprintf(w, "  Resumed:   %d\n", stats.Resumed)
			fmt.Fprintf(w, "  Mutual:    %d\n", stats.MutualTLS)
			for _, v := range sortedKeys(stats.ByVersion) {
				fmt.Fprintf(w, "  %-24s %d\n", tls.VersionName(v)+":", stats.ByVersion[v])
			}
			for _, c := range sortedKeys(stats.ByCipherSuite) {
				fmt.Fprintf(w, "  %-24s %d\n", tls.CipherSuiteName(c)+":", stats.ByCipherSuite[c])
			}
			for _, p := range sortedKeys(stats.ByProtocol) {
				fmt.Fprintf(w, "  ALPN %-19s %d\n", p+":", stats.ByProtocol[p])
			}
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Connections: %d\n", len(stats.Connections))
	if len(stats.Connections) > 0 {
		type connInfo struct {
			id    string
			stats *ConnectionStats
		}
		conns := make([]connInfo, 0, len(stats.Connections))
		for id, cs := range stats.Connections {
			conns = append(conns, connInfo{id, cs})
		}
		sort.Slice(conns, func(i, j int) bool {
			return conns[i].stats.FirstSeen.Before(conns[j].stats.FirstSeen)
		})

		fmt.Fprintln(w)
		for _, c := range conns {
			duration := c.stats.LastSeen.Sub(c.stats.FirstSeen).Round(time.Millisecond)
			fmt.Fprintf(w, "  [%s] %d events, duration %s\n", shortenConnID(c.id), c.stats.Events, duration)
			if c.stats.RemoteAddr != "" {
				fmt.Fprintf(w, "           Remote: %s\n", c.stats.RemoteAddr)
			}
			if c.stats.State != "" {
				fmt.Fprintf(w, "           State: %s\n", c.stats.State)
			}
		}
	}

	if stats.Errors > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Errors: %d\n", stats.Errors)
	}
}

func sortedKeys[K uint16 | string](m map[K]int) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
