package httpapi

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// streamDeltas pushes committed deltas as server-sent events named "delta".
// A comment heartbeat keeps proxies from closing an idle connection.
func (s *Server) streamDeltas(c *gin.Context) {
	if s.stream == nil {
		c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "delta stream not available", Code: "unavailable"})
		return
	}

	ch := s.stream.Subscribe()
	defer s.stream.Unsubscribe(ch)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	heartbeat := time.NewTicker(s.heartbeat)
	defer heartbeat.Stop()

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case <-heartbeat.C:
			_, err := fmt.Fprint(w, ": ping\n\n")
			return err == nil
		case d, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent("delta", newDeltaResponse(d))
			return true
		}
	})
}
