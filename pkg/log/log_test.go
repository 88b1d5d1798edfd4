package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

type recordingLogger struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingLogger) Log(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func TestEventCBORRoundTrip(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.UTC)
	in := Event{
		Timestamp:    ts,
		ConnectionID: "c0ffee",
		Layer:        LayerTLS,
		Category:     CategoryHandshake,
		RemoteAddr:   "10.0.0.2:51234",
		Handshake: &HandshakeEvent{
			Version:          0x0304,
			CipherSuite:      0x1301,
			Protocol:         "h2",
			PeerCertificates: 2,
			Duration:         3 * time.Millisecond,
		},
	}

	data, err := EncodeEvent(in)
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}
	out, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}

	if !out.Timestamp.Equal(ts) {
		t.Errorf("Timestamp = %v, want %v", out.Timestamp, ts)
	}
	if out.Handshake == nil || out.Handshake.Protocol != "h2" || out.Handshake.PeerCertificates != 2 {
		t.Errorf("Handshake = %+v", out.Handshake)
	}
	if out.Backoff != nil || out.Error != nil || out.StateChange != nil {
		t.Error("unexpected payloads decoded")
	}
}

func TestFileLoggerAndFilteredReader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "accept.plog")

	fl, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}

	base := time.Now()
	fl.Log(Event{Timestamp: base, ConnectionID: "a", Layer: LayerAccept, Category: CategoryState,
		StateChange: &StateChangeEvent{Entity: StateEntityConnection, NewState: StateAccepted}})
	fl.Log(Event{Timestamp: base.Add(time.Millisecond), Layer: LayerAccept, Category: CategoryBackoff,
		Backoff: &BackoffEvent{Class: ErrorClassResource, Delay: 250 * time.Millisecond, Message: "too many open files"}})
	fl.Log(Event{Timestamp: base.Add(2 * time.Millisecond), ConnectionID: "a", Layer: LayerTLS, Category: CategoryError,
		Error: &ErrorEventData{Layer: LayerTLS, Message: "bad record MAC", Context: "handshake"}})

	if err := fl.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	// Logging after close is dropped and counted.
	fl.Log(Event{ConnectionID: "late"})
	if got := fl.Dropped(); got != 1 {
		t.Errorf("Dropped() = %d, want 1", got)
	}
	if err := fl.Close(); err != nil {
		t.Errorf("second Close returned %v", err)
	}

	backoff := CategoryBackoff
	r, err := NewFilteredReader(path, Filter{Category: &backoff})
	if err != nil {
		t.Fatalf("NewFilteredReader failed: %v", err)
	}
	defer r.Close()

	ev, err := r.Next()
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if ev.Backoff == nil || ev.Backoff.Delay != 250*time.Millisecond {
		t.Errorf("Backoff = %+v", ev.Backoff)
	}
	if _, err := r.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("expected io.EOF, got %v", err)
	}

	all, err := NewFilteredReader(path, Filter{ConnectionID: "a"})
	if err != nil {
		t.Fatalf("NewFilteredReader failed: %v", err)
	}
	defer all.Close()
	count := 0
	for {
		if _, err := all.Next(); err != nil {
			break
		}
		count++
	}
	if count != 2 {
		t.Errorf("events for conn a = %d, want 2", count)
	}
}

func TestFileLoggerReportsWriteFailuresOnce(t *testing.T) {
	var buf bytes.Buffer
	errLog := slog.New(slog.NewTextHandler(&buf, nil))

	fl, err := NewFileLogger(filepath.Join(t.TempDir(), "accept.plog"), WithErrorLog(errLog))
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	defer fl.Close()

	fl.Log(Event{ConnectionID: "ok"})
	// Pull the file out from under the logger.
	fl.file.Close()
	fl.Log(Event{ConnectionID: "a"})
	fl.Log(Event{ConnectionID: "b"})

	if got := fl.Dropped(); got != 2 {
		t.Errorf("Dropped() = %d, want 2", got)
	}
	if got := strings.Count(buf.String(), "event log write failed"); got != 1 {
		t.Errorf("write failure reported %d times, want 1:\n%s", got, buf.String())
	}
}

func TestDecodeEventRejectsTrailingData(t *testing.T) {
	data, err := EncodeEvent(Event{ConnectionID: "a"})
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}
	if _, err := DecodeEvent(append(data, 0x00)); err == nil {
		t.Error("expected error for trailing data")
	}
}

func TestFilterTimeWindow(t *testing.T) {
	start := time.Unix(100, 0)
	end := time.Unix(200, 0)
	f := Filter{TimeStart: &start, TimeEnd: &end}

	if !f.Matches(Event{Timestamp: start}) {
		t.Error("start bound should be inclusive")
	}
	if f.Matches(Event{Timestamp: end}) {
		t.Error("end bound should be exclusive")
	}
	if f.Matches(Event{Timestamp: time.Unix(50, 0)}) {
		t.Error("event before window matched")
	}
}

func TestMultiLoggerSkipsNil(t *testing.T) {
	a, b := &recordingLogger{}, &recordingLogger{}
	m := NewMultiLogger(a, nil, b)
	m.Log(Event{ConnectionID: "x"})

	if len(a.events) != 1 || len(b.events) != 1 {
		t.Errorf("fan-out counts = %d, %d", len(a.events), len(b.events))
	}
}

func TestOrNoop(t *testing.T) {
	if _, ok := OrNoop(nil).(NoopLogger); !ok {
		t.Error("OrNoop(nil) should return NoopLogger")
	}
	r := &recordingLogger{}
	if OrNoop(r) != Logger(r) {
		t.Error("OrNoop should return non-nil loggers unchanged")
	}
}

func TestSlogAdapterBackoff(t *testing.T) {
	var buf bytes.Buffer
	adapter := NewSlogAdapter(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	adapter.Log(Event{
		Timestamp: time.Now(),
		Layer:     LayerAccept,
		Category:  CategoryBackoff,
		LocalAddr: "127.0.0.1:8000",
		Backoff:   &BackoffEvent{Class: ErrorClassResource, Delay: time.Second, Message: "EMFILE"},
	})

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid JSON output: %v", err)
	}
	if entry["class"] != "RESOURCE" {
		t.Errorf("class = %v", entry["class"])
	}
	if entry["category"] != "BACKOFF" {
		t.Errorf("category = %v", entry["category"])
	}
	if _, ok := entry["conn_id"]; ok {
		t.Error("conn_id should be omitted for listener events")
	}
}

func TestParseNames(t *testing.T) {
	if l, ok := ParseLayer("tls"); !ok || l != LayerTLS {
		t.Errorf("ParseLayer(tls) = %v, %v", l, ok)
	}
	if _, ok := ParseLayer("wire"); ok {
		t.Error("ParseLayer accepted unknown layer")
	}
	if c, ok := ParseCategory("Backoff"); !ok || c != CategoryBackoff {
		t.Errorf("ParseCategory(Backoff) = %v, %v", c, ok)
	}
}
