package observability

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	coretypes "nftmarket/core/types"
)

type stubEvent struct {
	evt *coretypes.Event
}

func (s stubEvent) EventType() string       { return s.evt.Type }
func (s stubEvent) Event() *coretypes.Event { return s.evt }

func TestEmitRedactsWalletAddresses(t *testing.T) {
	var buf bytes.Buffer
	emitter := NewEmitter(slog.New(slog.NewJSONHandler(&buf, nil)))

	emitter.Emit(stubEvent{evt: &coretypes.Event{
		Type: "market.listing.created",
		Attributes: map[string]string{
			"listingId": "b2f6",
			"status":    "ACTIVE",
			"seller":    "0xseller",
		},
	}})

	out := buf.String()
	if strings.Contains(out, "0xseller") {
		t.Fatalf("wallet address logged verbatim: %s", out)
	}
	if !strings.Contains(out, "[REDACTED]") {
		t.Fatalf("redaction marker missing: %s", out)
	}
	if !strings.Contains(out, "b2f6") || !strings.Contains(out, "ACTIVE") {
		t.Fatalf("allowlisted attributes should pass through: %s", out)
	}
}

func TestEmitCountsEventType(t *testing.T) {
	var buf bytes.Buffer
	emitter := NewEmitter(slog.New(slog.NewJSONHandler(&buf, nil)))

	emitter.Emit(stubEvent{evt: &coretypes.Event{Type: "escrow.released"}})

	if !strings.Contains(buf.String(), "escrow.released") {
		t.Fatalf("event type missing from log: %s", buf.String())
	}
}
