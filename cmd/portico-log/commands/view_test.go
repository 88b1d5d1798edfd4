package commands

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/portico-http/portico/pkg/log"
)

func TestFormatHandshakeEvent(t *testing.T) {
	event := sampleEvents()[2]

	var buf bytes.Buffer
	formatEvent(&buf, event)
	output := buf.String()

	for _, want := range []string{
		"2026-03-02T09:30:01.003000Z",
		"[conn:c0ffee00]",
		"TLS Handshake",
		"Version: TLS 1.3",
		"Cipher: TLS_AES_128_GCM_SHA256",
		"ALPN: h2",
		"Remote: 127.0.0.1:50000",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output, got: %s", want, output)
		}
	}
}

func TestFormatBackoffEvent(t *testing.T) {
	var buf bytes.Buffer
	formatEvent(&buf, sampleEvents()[0])
	output := buf.String()

	if !strings.Contains(output, "[conn:-] ACCEPT Backoff") {
		t.Errorf("expected listener-level header, got: %s", output)
	}
	if !strings.Contains(output, "Class: RESOURCE") {
		t.Errorf("expected error class, got: %s", output)
	}
	if !strings.Contains(output, "Delay: 250.000ms") {
		t.Errorf("expected delay, got: %s", output)
	}
}

func TestFormatImmediateRetry(t *testing.T) {
	event := log.Event{
		Timestamp: time.Now(),
		Category:  log.CategoryBackoff,
		Backoff:   &log.BackoffEvent{Class: log.ErrorClassConnection, Message: "connection reset"},
	}

	var buf bytes.Buffer
	formatEvent(&buf, event)
	if !strings.Contains(buf.String(), "Delay: none") {
		t.Errorf("expected immediate retry, got: %s", buf.String())
	}
}

func TestFormatErrorEvent(t *testing.T) {
	var buf bytes.Buffer
	formatEvent(&buf, sampleEvents()[3])
	output := buf.String()

	if !strings.Contains(output, "Message: remote error: tls: bad certificate") {
		t.Errorf("expected error message, got: %s", output)
	}
	if !strings.Contains(output, "Context: handshake") {
		t.Errorf("expected error context, got: %s", output)
	}
}

func TestRunViewFiltersByLayer(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())
	layer := log.LayerTLS

	var buf bytes.Buffer
	if err := RunView(path, ViewFilter{Layer: &layer}, &buf); err != nil {
		t.Fatalf("RunView failed: %v", err)
	}

	output := buf.String()
	if strings.Contains(output, "ACCEPT") {
		t.Errorf("expected accept events filtered out, got: %s", output)
	}
	if strings.Count(output, "] TLS ") != 2 {
		t.Errorf("expected two TLS events, got: %s", output)
	}
}

func TestRunViewFiltersByCategory(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())
	cat := log.CategoryError

	var buf bytes.Buffer
	if err := RunView(path, ViewFilter{Category: &cat}, &buf); err != nil {
		t.Fatalf("RunView failed: %v", err)
	}
	if strings.Count(buf.String(), "[conn:") != 1 {
		t.Errorf("expected one event, got: %s", buf.String())
	}
}

func TestRunViewMissingFile(t *testing.T) {
	if err := RunView("/nonexistent/portico.plog", ViewFilter{}, &bytes.Buffer{}); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestParseFlags(t *testing.T) {
	if l, err := ParseLayerFlag("tls"); err != nil || l != log.LayerTLS {
		t.Errorf("ParseLayerFlag(tls) = %v, %v", l, err)
	}
	if _, err := ParseLayerFlag("wire"); err == nil {
		t.Error("expected error for unknown layer")
	}
	if c, err := ParseCategoryFlag("Backoff"); err != nil || c != log.CategoryBackoff {
		t.Errorf("ParseCategoryFlag(Backoff) = %v, %v", c, err)
	}
	if _, err := ParseCategoryFlag("message"); err == nil {
		t.Error("expected error for unknown category")
	}
}
