package observability

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/render"
)

// ReadinessResponse is the body of the readiness probe.
type ReadinessResponse struct {
	Status map[string]string `json:"status"`
}

// liveness responds with 200 OK while the HTTP server is running.
func (s *Server) liveness(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// readiness runs every checker in parallel within the configured timeout.
func (s *Server) readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Timeout)
	defer cancel()

	statusMap := make(map[string]string, len(s.checkers))
	hasError := false

	var wg sync.WaitGroup
	var mu sync.Mutex

	for _, checker := range s.checkers {
		wg.Add(1)
		go func(c Checker) {
			defer wg.Done()

			err := c.Check(ctx)

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				// Warn, not Error: the orchestrator retries the probe.
				s.logger.Warn("health probe failed",
					slog.String("component", c.Name()),
					slog.String("error", err.Error()),
				)
				statusMap[c.Name()] = fmt.Sprintf("down: %v", err)
				hasError = true
			} else {
				statusMap[c.Name()] = "up"
			}
		}(checker)
	}

	wg.Wait()

	if hasError {
		render.Status(r, http.StatusServiceUnavailable)
	} else {
		render.Status(r, http.StatusOK)
	}
	render.JSON(w, r, ReadinessResponse{Status: statusMap})
}
