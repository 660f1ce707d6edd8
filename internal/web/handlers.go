package web

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cjeanneret/camsession/internal/debug"
	"github.com/cjeanneret/camsession/internal/logic/session"
)

// SessionFactory creates a fresh camera session.
type SessionFactory func() (*session.Session, error)

// ErrorResponse is the JSON body of every failed call.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type initializeRequest struct {
	CameraName       string `json:"cameraName"`
	ResolutionPreset string `json:"resolutionPreset"`
}

type pictureRequest struct {
	Path string `json:"path"`
}

type videoRequest struct {
	FilePath string `json:"filePath"`
}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	Broadcaster *Broadcaster
	newSession  SessionFactory
	timeout     time.Duration

	mu      sync.Mutex
	current *session.Session
}

// NewHandlers creates handlers with the given dependencies. Every call is
// bounded by timeout.
func NewHandlers(broadcaster *Broadcaster, factory SessionFactory, timeout time.Duration) *Handlers {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Handlers{
		Broadcaster: broadcaster,
		newSession:  factory,
		timeout:     timeout,
	}
}

// session returns the current session, creating one when there is none.
// With replaceDisposed, a disposed session is swapped for a new one.
func (h *Handlers) session(ctx context.Context, replaceDisposed bool) (*session.Session, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.current != nil && replaceDisposed {
		if st, err := h.current.State(ctx); err == nil && st == session.StateDisposed {
			debug.Info("Replacing disposed camera session")
			h.current = nil
		}
	}
	if h.current == nil {
		s, err := h.newSession()
		if err != nil {
			return nil, err
		}
		s.Listen(h.Broadcaster)
		h.current = s
	}
	return h.current, nil
}

// Close disposes the current session, if any.
func (h *Handlers) Close(ctx context.Context) error {
	h.mu.Lock()
	s := h.current
	h.mu.Unlock()
	if s == nil {
		return nil
	}
	return s.Dispose(ctx)
}

func (h *Handlers) callContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), h.timeout)
}

// bindJSON decodes the request body into v. An empty body leaves v zeroed.
func bindJSON(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    string(session.CodeInvalidArgument),
			Message: "invalid JSON: " + err.Error(),
		})
		return false
	}
	return true
}

// statusFor maps a session error code onto an HTTP status.
func statusFor(code session.Code) int {
	switch code {
	case session.CodeInvalidArgument:
		return http.StatusBadRequest
	case session.CodePermissionDenied:
		return http.StatusForbidden
	case session.CodePermissionRequestInProgress, session.CodeCaptureInProgress, session.CodeFileExists:
		return http.StatusConflict
	case session.CodeDisposed:
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	var se *session.Error
	switch {
	case errors.As(err, &se):
		c.JSON(statusFor(se.Code), ErrorResponse{Code: string(se.Code), Message: se.Message})
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, ErrorResponse{Code: "timeout", Message: err.Error()})
	case errors.Is(err, context.Canceled):
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Code: "canceled", Message: err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, ErrorResponse{Code: "internal", Message: err.Error()})
	}
}

// HandleCameras handles GET /cameras.
func (h *Handlers) HandleCameras(c *gin.Context) {
	ctx, cancel := h.callContext(c)
	defer cancel()

	s, err := h.session(ctx, true)
	if err != nil {
		writeError(c, err)
		return
	}
	cams, err := s.AvailableCameras(ctx)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cams)
}

// HandleInitialize handles POST /camera/initialize.
func (h *Handlers) HandleInitialize(c *gin.Context) {
	var req initializeRequest
	if !bindJSON(c, &req) {
		return
	}
	ctx, cancel := h.callContext(c)
	defer cancel()

	s, err := h.session(ctx, true)
	if err != nil {
		writeError(c, err)
		return
	}
	res, err := s.Initialize(ctx, req.CameraName, req.ResolutionPreset)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// HandleTakePicture handles POST /camera/takePicture.
func (h *Handlers) HandleTakePicture(c *gin.Context) {
	var req pictureRequest
	if !bindJSON(c, &req) {
		return
	}
	h.run(c, func(ctx context.Context, s *session.Session) error {
		return s.TakePicture(ctx, req.Path)
	})
}

// HandleStartVideoRecording handles POST /camera/startVideoRecording.
func (h *Handlers) HandleStartVideoRecording(c *gin.Context) {
	var req videoRequest
	if !bindJSON(c, &req) {
		return
	}
	h.run(c, func(ctx context.Context, s *session.Session) error {
		return s.StartVideoRecording(ctx, req.FilePath)
	})
}

// HandleStopVideoRecording handles POST /camera/stopVideoRecording.
func (h *Handlers) HandleStopVideoRecording(c *gin.Context) {
	h.run(c, func(ctx context.Context, s *session.Session) error {
		return s.StopVideoRecording(ctx)
	})
}

// HandleDispose handles POST /camera/dispose.
func (h *Handlers) HandleDispose(c *gin.Context) {
	h.run(c, func(ctx context.Context, s *session.Session) error {
		return s.Dispose(ctx)
	})
}

// HandleLifecycle handles POST /lifecycle/:signal.
func (h *Handlers) HandleLifecycle(c *gin.Context) {
	signal := c.Param("signal")
	var op func(*session.Session, context.Context) error
	switch signal {
	case "paused":
		op = (*session.Session).Pause
	case "stopped":
		op = (*session.Session).Stop
	case "resumed":
		op = (*session.Session).Resume
	default:
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    string(session.CodeInvalidArgument),
			Message: "unknown lifecycle signal: " + signal,
		})
		return
	}
	h.run(c, func(ctx context.Context, s *session.Session) error {
		return op(s, ctx)
	})
}

// run executes fn against the current session and writes {"status":"ok"}
// on success.
func (h *Handlers) run(c *gin.Context, fn func(context.Context, *session.Session) error) {
	ctx, cancel := h.callContext(c)
	defer cancel()

	s, err := h.session(ctx, false)
	if err != nil {
		writeError(c, err)
		return
	}
	if err := fn(ctx, s); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// HandleState handles GET /camera/state.
func (h *Handlers) HandleState(c *gin.Context) {
	ctx, cancel := h.callContext(c)
	defer cancel()

	s, err := h.session(ctx, false)
	if err != nil {
		writeError(c, err)
		return
	}
	st, err := s.State(ctx)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": st.String()})
}

// HandleEvents handles GET /camera/events for SSE.
func (h *Handlers) HandleEvents(c *gin.Context) {
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no") // nginx

	ch, unsub := h.Broadcaster.Subscribe()
	defer unsub()

	// Heartbeat while idle
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	c.SSEvent("connected", "")
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case m, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent(m.Name, m.Data)
			return true
		case <-ticker.C:
			c.SSEvent("heartbeat", "")
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
