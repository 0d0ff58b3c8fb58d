package apiserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/groveplace/domainsearch/internal/job"
)

// streamPollInterval is how often Stream polls the controller snapshot
// while a job is non-terminal. Batches are 10s apart (§4.2 step 11), so
// polling well under that keeps the feed responsive without hammering the
// per-job store.
const streamPollInterval = 2 * time.Second

// Stream handles GET /stream?job_id=... (§4.1 "stream()"): repeatedly
// pushes the controller's snapshot as a server-sent event until the job
// reaches a terminal status or the client disconnects.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	jobID := r.URL.Query().Get("job_id")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "missing job_id parameter")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	snap, err := h.ctrl.Stream(r.Context(), jobID)
	if err != nil {
		writeErr(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	writeSSEEvent(w, flusher, "snapshot", snap)
	if isTerminalStatus(snap.Status) {
		return
	}

	ticker := time.NewTicker(streamPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			snap, err := h.ctrl.Stream(r.Context(), jobID)
			if err != nil {
				return
			}
			writeSSEEvent(w, flusher, "snapshot", snap)
			if isTerminalStatus(snap.Status) {
				return
			}
		}
	}
}

func isTerminalStatus(status string) bool {
	return job.Status(status).IsTerminal()
}

func writeSSEEvent(w http.ResponseWriter, flusher http.Flusher, event string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
	flusher.Flush()
}
