package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/ayusman/strikepoint/internal/backend"
	"gocv.io/x/gocv"
)

// DebugStreamHandler serves MJPEG frames of the backend debug visualization.
type DebugStreamHandler struct {
	backend *backend.Backend
}

// NewDebugStreamHandler creates a new DebugStreamHandler for the given backend.
func NewDebugStreamHandler(b *backend.Backend) *DebugStreamHandler {
	return &DebugStreamHandler{backend: b}
}

// ServeHTTP streams MJPEG frames to connected clients. The debug overlay is
// only rendered while debug mode is on; until then clients see no frames.
func (h *DebugStreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	for {
		select {
		case <-r.Context().Done():
			return
		default:
		}

		frame := h.backend.DebugFrame()
		if frame == nil {
			time.Sleep(100 * time.Millisecond)
			continue
		}

		// Encode as JPEG
		buf, err := gocv.IMEncode(".jpg", *frame)
		frame.Close()
		if err != nil {
			continue
		}

		// Write MJPEG frame
		fmt.Fprintf(w, "--frame\r\n")
		fmt.Fprintf(w, "Content-Type: image/jpeg\r\n")
		fmt.Fprintf(w, "Content-Length: %d\r\n\r\n", buf.Len())
		w.Write(buf.GetBytes())
		fmt.Fprintf(w, "\r\n")
		buf.Close()

		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}

		time.Sleep(66 * time.Millisecond) // ~15 FPS
	}
}
