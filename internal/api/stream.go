package api

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// MetricsStreamHandler pushes live metrics records over Server-Sent Events.
// The subscription drops records for slow clients instead of stalling the
// frame loop; disconnecting closes the subscription.
func (app *App) MetricsStreamHandler(w http.ResponseWriter, r *http.Request) {
	if app.Pipeline == nil {
		app.respondError(w, http.StatusNotFound, "no active pipeline")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	updates := app.Pipeline.Subscribe()
	defer app.Pipeline.Unsubscribe(updates)

	clientGone := r.Context().Done()

	for {
		select {
		case rec, ok := <-updates:
			if !ok {
				return
			}

			data, err := json.Marshal(rec)
			if err != nil {
				app.Log.WithError(err).Error("failed to marshal metrics record")
				continue
			}

			fmt.Fprintf(w, "event: metrics\ndata: %s\n\n", data)
			flusher.Flush()

		case <-clientGone:
			return
		}
	}
}
