package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomoyukiirino/spy-credit-spread/internal/market"
	"github.com/tomoyukiirino/spy-credit-spread/internal/store"
)

const defaultHistoryLimit = 50

// validTopic reports whether the monitor publishes on the named topic.
func validTopic(name string) bool {
	return name == market.TopicPrice || name == market.TopicFX
}

// tickHistoryResponse is the JSON response for GET /v1/ticks/{topic}.
type tickHistoryResponse struct {
	Topic string        `json:"topic"`
	Ticks []market.Tick `json:"ticks"`
}

func (s *Server) handleTickHistory(w http.ResponseWriter, r *http.Request) {
	topic := chi.URLParam(r, "topic")
	if !validTopic(topic) {
		s.writeError(w, http.StatusNotFound, "unknown topic")
		return
	}

	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		limit = parseIntQuery(v, defaultHistoryLimit)
	}
	if limit <= 0 {
		s.writeError(w, http.StatusBadRequest, "limit must be positive")
		return
	}

	ticks, err := s.store.RecentTicks(r.Context(), topic, limit)
	if errors.Is(err, store.ErrNotFound) {
		ticks = nil
	} else if err != nil {
		s.logger.Error("recent ticks", "topic", topic, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to read tick history")
		return
	}

	if ticks == nil {
		ticks = []market.Tick{}
	}
	s.writeJSON(w, http.StatusOK, tickHistoryResponse{Topic: topic, Ticks: ticks})
}

func (s *Server) handleLatestTick(w http.ResponseWriter, r *http.Request) {
	topic := chi.URLParam(r, "topic")
	if !validTopic(topic) {
		s.writeError(w, http.StatusNotFound, "unknown topic")
		return
	}

	tk, ok := s.broker.Latest(topic)
	if !ok {
		s.writeError(w, http.StatusNotFound, "no tick published yet")
		return
	}
	s.writeJSON(w, http.StatusOK, tk)
}

func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.TickStats(r.Context())
	if err != nil {
		s.logger.Error("tick stats", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to read stats")
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleStreamTicks(w http.ResponseWriter, r *http.Request) {
	topic := chi.URLParam(r, "topic")
	if !validTopic(topic) {
		s.writeError(w, http.StatusNotFound, "unknown topic")
		return
	}

	// Set SSE headers.
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// Disable write timeout for long-lived SSE connections.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		s.logger.Error("set write deadline for SSE", "error", err)
	}

	ch, unsub := s.broker.Subscribe(topic)
	defer unsub()

	w.WriteHeader(http.StatusOK)
	flusher, canFlush := w.(http.Flusher)
	if canFlush {
		flusher.Flush()
	}

	for {
		select {
		case tk, ok := <-ch:
			if !ok {
				// Broker closed; send explicit done event before closing.
				_ = writeSSEEvent(w, "done", "stream complete")
				if canFlush {
					flusher.Flush()
				}
				return
			}
			if err := writeSSETick(w, tk); err != nil {
				return // Write failed (e.g. client gone).
			}
			if canFlush {
				flusher.Flush()
			}
		case <-r.Context().Done():
			return // Client disconnected.
		}
	}
}

// writeSSETick writes a tick as an SSE data event. The payload is the tick's
// JSON encoding, which never contains newlines, so a single data line suffices.
func writeSSETick(w http.ResponseWriter, tk market.Tick) error {
	payload, err := json.Marshal(tk)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "id: %s\ndata: %s\n\n", tk.ID, payload); err != nil {
		return err
	}
	return nil
}

// writeSSEEvent writes a named SSE event (event: <type>\ndata: <data>\n\n).
func writeSSEEvent(w http.ResponseWriter, eventType, data string) error {
	if _, err := fmt.Fprintf(w, "event: %s\n", eventType); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	return nil
}
