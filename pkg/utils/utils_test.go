package utils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRespondError(t *testing.T) {
	rec := httptest.NewRecorder()

	RespondError(rec, http.StatusConflict, "busy")

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("unexpected content type %q", ct)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode err: %v", err)
	}
	if body["error"] != "busy" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestSendSSEEvent(t *testing.T) {
	rec := httptest.NewRecorder()
	SetupSSEHeaders(rec)

	if err := SendSSEEvent(rec, rec, "snapshot", map[string]int{"n": 1}); err != nil {
		t.Fatalf("SendSSEEvent err: %v", err)
	}

	if got := rec.Body.String(); got != "event: snapshot\ndata: {\"n\":1}\n\n" {
		t.Fatalf("unexpected frame %q", got)
	}
	if !rec.Flushed {
		t.Fatal("expected flush")
	}
	if rec.Header().Get("Content-Type") != "text/event-stream" {
		t.Fatal("missing event-stream content type")
	}
}
