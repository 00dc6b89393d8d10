package httpadapter

import (
	"context"
	"io"
	"net/http"

	"github.com/toolscout/agent-tools-rag/internal/core/domain"
)

// Control markers interleaved with answer text on the streaming endpoint.
// Clients split on the prefixes; everything else is verbatim answer text.
const (
	markerModel     = "__model__"
	markerTruncated = "__truncated__"
	markerError     = "__error__"
)

// streamEvents writes the generation stream as chunked plain text, one flush
// per event, and reports the terminal outcome ("ok", "truncated", "error",
// "canceled"). Provider failure details never reach the client; the marker
// carries a generic reason only.
func (rt *Router) streamEvents(w http.ResponseWriter, ctx context.Context, events <-chan domain.GenerationEvent) string {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	write := func(s string) bool {
		if _, err := io.WriteString(w, s); err != nil {
			return false
		}
		if flusher != nil {
			flusher.Flush()
		}
		return true
	}

	outcome := "ok"
	for {
		select {
		case <-ctx.Done():
			return "canceled"
		case event, ok := <-events:
			if !ok {
				return outcome
			}
			switch event.Type {
			case domain.EventModelInfo:
				if !write(markerModel + event.Model + "\n") {
					return "canceled"
				}
			case domain.EventText:
				if !write(event.Delta) {
					return "canceled"
				}
			case domain.EventTruncated:
				write("\n" + markerTruncated + event.Reason)
				return "truncated"
			case domain.EventError:
				write("\n" + markerError + "generation failed")
				return "error"
			}
		}
	}
}
