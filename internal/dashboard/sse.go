package dashboard

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/gin-gonic/gin"
)

// handleSSE streams console state changes as server-sent events. The
// snapshot is polled and only pushed when it differs from the last one.
func handleSSE(con Console) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")

		writeSSE(c.Writer, "connected", map[string]string{"type": "connected"})
		c.Writer.Flush()

		var last []byte
		if data, err := json.Marshal(con.Snapshot()); err == nil {
			last = data
			writeSSE(c.Writer, "state", json.RawMessage(data))
			c.Writer.Flush()
		}

		ctx := c.Request.Context()
		ticker := time.NewTicker(250 * time.Millisecond)
		heartbeat := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		defer heartbeat.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-heartbeat.C:
				writeSSE(c.Writer, "heartbeat", map[string]string{
					"timestamp": time.Now().UTC().Format(time.RFC3339),
				})
				c.Writer.Flush()
			case <-ticker.C:
				data, err := json.Marshal(con.Snapshot())
				if err != nil || bytes.Equal(data, last) {
					continue
				}
				last = data
				writeSSE(c.Writer, "state", json.RawMessage(data))
				c.Writer.Flush()
			}
		}
	}
}

// writeSSE writes a single SSE event to the writer.
func writeSSE(w io.Writer, event string, data any) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, string(jsonData))
}
