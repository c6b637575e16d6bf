package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"
)

// Boundary separates the JPEG parts of the video feed.
const Boundary = "frame"

// Streamer produces annotated JPEG frames until ctx is cancelled.
type Streamer interface {
	Stream(ctx context.Context, emit func(jpeg []byte) error) error
}

// StreamHandler serves the processed camera feed as MJPEG.
type StreamHandler struct {
	streamer Streamer
	log      *logrus.Entry
}

// NewStreamHandler creates a new StreamHandler with the given streamer.
func NewStreamHandler(streamer Streamer, logger *logrus.Logger) *StreamHandler {
	return &StreamHandler{
		streamer: streamer,
		log:      logger.WithField("component", "stream"),
	}
}

// ServeHTTP streams one JPEG part per processed frame until the client leaves
// or the pipeline fails.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+Boundary)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, _ := w.(http.Flusher)
	parts := 0

	h.log.WithField("remote", r.RemoteAddr).Info("video client connected")

	err := h.streamer.Stream(r.Context(), func(jpeg []byte) error {
		if err := writePart(w, jpeg); err != nil {
			return err
		}
		if flusher != nil {
			flusher.Flush()
		}
		parts++
		return nil
	})

	entry := h.log.WithFields(logrus.Fields{
		"remote": r.RemoteAddr,
		"frames": parts,
	})

	switch {
	case err == nil, errors.Is(err, context.Canceled):
		entry.Info("video client disconnected")
	case parts == 0:
		entry.WithError(err).Error("video feed unavailable")
		w.Header().Del("Cache-Control")
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	default:
		entry.WithError(err).Error("video feed stopped")
	}
}

func writePart(w http.ResponseWriter, jpeg []byte) error {
	if _, err := fmt.Fprintf(w, "--%s\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", Boundary, len(jpeg)); err != nil {
		return err
	}
	if _, err := w.Write(jpeg); err != nil {
		return err
	}
	_, err := w.Write([]byte("\r\n"))
	return err
}
