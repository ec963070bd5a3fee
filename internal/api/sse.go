package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// SSE event types. Every event is a single `data:` line carrying a JSON
// object with a "type" field. A stream carries zero or more "bot" events
// followed by exactly one terminal event, either "end" or "error".
const (
	eventBot   = "bot"
	eventEnd   = "end"
	eventError = "error"
)

// streamEvent is the JSON payload of one SSE data line.
type streamEvent struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
}

// setStreamHeaders prepares the response for SSE. Once these headers are
// committed the HTTP status can no longer change; failures after this
// point must be reported in-band as an "error" event.
func setStreamHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}

// writeEvent writes one SSE event and flushes it immediately so increments
// reach the client as they are produced.
func writeEvent(w io.Writer, flusher http.Flusher, ev streamEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshaling stream event: %w", err)
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		return fmt.Errorf("writing stream event: %w", err)
	}
	flusher.Flush()
	return nil
}
