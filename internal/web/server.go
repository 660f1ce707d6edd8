package web

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Server wraps the HTTP server and handlers.
type Server struct {
	addr     string
	handlers *Handlers
}

// NewServer creates a server configured for the given address and dependencies.
func NewServer(addr string, broadcaster *Broadcaster, factory SessionFactory) *Server {
	return &Server{
		addr:     addr,
		handlers: NewHandlers(broadcaster, factory, 0),
	}
}

// Router returns a gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	return NewRouter(s.handlers)
}

// NewRouter registers every route on a fresh gin engine.
func NewRouter(h *Handlers) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/cameras", h.HandleCameras)

	cam := r.Group("/camera")
	cam.POST("/initialize", h.HandleInitialize)
	cam.POST("/takePicture", h.HandleTakePicture)
	cam.POST("/startVideoRecording", h.HandleStartVideoRecording)
	cam.POST("/stopVideoRecording", h.HandleStopVideoRecording)
	cam.POST("/dispose", h.HandleDispose)
	cam.GET("/state", h.HandleState)
	cam.GET("/events", h.HandleEvents)

	r.POST("/lifecycle/:signal", h.HandleLifecycle)
	return r
}

// Run starts the server and blocks until ctx is cancelled, then shuts down
// gracefully and disposes the camera session.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.Router()}
	errCh := make(chan error, 1)
	go func() {
		log.Printf("web server listening on %s", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		shutdownErr := srv.Shutdown(shutdownCtx)
		if err := s.handlers.Close(shutdownCtx); err != nil && shutdownErr == nil {
			shutdownErr = err
		}
		return shutdownErr
	}
}
