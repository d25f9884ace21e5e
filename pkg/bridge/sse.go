package bridge

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// StreamHandler serves GET /sw/events. The url query parameter names the
// page the client shows; it is used to focus an existing page on
// notification clicks.
func StreamHandler(b *Broker) gin.HandlerFunc {
	return func(c *gin.Context) {
		sub, cleanup, err := b.Subscribe(c.Request.Context(), c.Query("url"))
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, ErrTooManyClients) {
				status = http.StatusServiceUnavailable
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
		defer cleanup()

		setStreamHeaders(c.Writer)
		c.Status(http.StatusOK)

		if err := writeEvent(c.Writer, "connected", newConnected(sub.ID)); err != nil {
			return
		}
		c.Writer.Flush()

		ticker := time.NewTicker(b.HeartbeatInterval())
		defer ticker.Stop()

		for {
			select {
			case msg, ok := <-sub.Events:
				if !ok {
					return
				}
				if err := writeEvent(c.Writer, "", msg); err != nil {
					return
				}
				c.Writer.Flush()
			case <-ticker.C:
				if _, err := fmt.Fprintf(c.Writer, ": heartbeat %s\n\n", time.Now().UTC().Format(time.RFC3339)); err != nil {
					return
				}
				c.Writer.Flush()
			case <-c.Request.Context().Done():
				return
			}
		}
	}
}

func setStreamHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}

// writeEvent writes one SSE frame. An empty event name produces a default
// "message" event.
func writeEvent(w io.Writer, event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal event data: %w", err)
	}
	if event != "" {
		if _, err := fmt.Fprintf(w, "event: %s\n", event); err != nil {
			return fmt.Errorf("write event type: %w", err)
		}
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		return fmt.Errorf("write event data: %w", err)
	}
	return nil
}
