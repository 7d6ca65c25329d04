// Package server provides the HTTP server for the printcam streamer.
package server

import (
	"fmt"
	"io"
	"net/http"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/ayusman/printcam/internal/framebus"
)

// Boundary marker separating multipart stream parts.
const streamBoundary = "FRAME"

// StreamHandler serves the live camera feed as a multipart/x-mixed-replace
// JPEG stream. Every connection gets an independent session goroutine that
// blocks on the frame bus; a slow or dead viewer never affects the producer
// or other viewers.
type StreamHandler struct {
	bus      *framebus.Bus
	log      *zap.SugaredLogger
	sessions atomic.Int64
}

// NewStreamHandler creates a new StreamHandler reading from the given bus.
func NewStreamHandler(bus *framebus.Bus, log *zap.SugaredLogger) *StreamHandler {
	return &StreamHandler{bus: bus, log: log}
}

// Sessions returns the number of currently connected viewers.
func (h *StreamHandler) Sessions() int64 {
	return h.sessions.Load()
}

// ServeHTTP streams multipart JPEG frames until the client disconnects or
// the bus is closed. Client disconnects are the ordinary termination path.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Age", "0")
	w.Header().Set("Cache-Control", "no-cache, private")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+streamBoundary)
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	h.sessions.Add(1)
	defer h.sessions.Add(-1)

	h.log.Infow("stream client connected", "remote", r.RemoteAddr)

	var lastSeq uint64
	for {
		select {
		case <-r.Context().Done():
			h.log.Infow("stream client disconnected", "remote", r.RemoteAddr)
			return
		default:
		}

		frame, err := h.bus.WaitNext(lastSeq)
		if err != nil {
			// Bus closed: the process is shutting down.
			return
		}
		lastSeq = frame.Seq

		if err := writePart(w, frame.Data); err != nil {
			h.log.Infow("stream client removed", "remote", r.RemoteAddr, "error", err)
			return
		}
		flusher.Flush()
	}
}

// writePart writes one multipart chunk: boundary, part headers, JPEG bytes
// and the trailing CRLF.
func writePart(w io.Writer, jpeg []byte) error {
	if _, err := fmt.Fprintf(w, "--%s\r\n", streamBoundary); err != nil {
		return err
	}
	if _, err := io.WriteString(w, "Content-Type: image/jpeg\r\n"); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Content-Length: %d\r\n\r\n", len(jpeg)); err != nil {
		return err
	}
	if _, err := w.Write(jpeg); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\r\n")
	return err
}
