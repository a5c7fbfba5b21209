package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"uiforge/internal/logging"
)

// heartbeatInterval keeps idle SSE connections open through proxies.
var heartbeatInterval = 15 * time.Second

// handleLogs streams broadcast log lines as Server-Sent Events. Each event
// carries the JSON entry; ?category= limits the stream to one category.
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	category := r.URL.Query().Get("category")
	entries, cancel := s.hub.Subscribe(256)
	defer cancel()

	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, ": connected\n\n")
	flusher.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			fmt.Fprintf(w, ": ping\n\n")
			flusher.Flush()
		case e, ok := <-entries:
			if !ok {
				return
			}
			if category != "" && e.Category != category {
				continue
			}
			writeEvent(w, "log", e)
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, event string, e logging.Entry) {
	body, err := json.Marshal(e)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\n", event)
	// Line terminators inside data would split the event.
	for _, line := range strings.Split(string(body), "\n") {
		fmt.Fprintf(w, "data: %s\n", line)
	}
	fmt.Fprintf(w, "\n")
}
