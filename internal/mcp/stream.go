package mcp

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// keepAliveInterval paces SSE comments so idle streams survive proxies.
const keepAliveInterval = 15 * time.Second

// serveStream writes the session's push stream as Server-Sent Events until
// the client disconnects or the session is torn down.
func serveStream(w http.ResponseWriter, r *http.Request, sess *Session) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// Initial comment opens the stream through buffering proxies.
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return

		case <-sess.Done():
			fmt.Fprint(w, "event: session/terminated\ndata: {}\n\n")
			flusher.Flush()
			return

		case ev := <-sess.Events():
			writeEvent(w, flusher, ev)

		case <-ticker.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, flusher http.Flusher, ev Event) {
	data, err := json.Marshal(ev.Data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\n", ev.Type)
	fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()
}
