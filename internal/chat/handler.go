// Package chat serves the chat endpoint: it decodes a transcript, runs the
// selected persona and streams the answer as a UI message stream.
package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"prdigest/server/internal/agent"
	"prdigest/server/internal/middleware"
	"prdigest/server/internal/observability"
)

const (
	DefaultTimeout = 30 * time.Second
	maxBodyBytes   = 1 << 20
)

// Runner runs a persona. Implemented by agent.Orchestrator.
type Runner interface {
	Run(ctx context.Context, in agent.RunInput, sink agent.Sink) (*agent.RunResult, error)
}

// Handler serves POST /api/chat.
type Handler struct {
	personas *agent.Registry
	runner   Runner
	validate *validator.Validate
	timeout  time.Duration
	logger   *zap.Logger
}

// NewHandler creates a chat handler. A non-positive timeout selects
// DefaultTimeout.
func NewHandler(personas *agent.Registry, runner Runner, timeout time.Duration, logger *zap.Logger) *Handler {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		personas: personas,
		runner:   runner,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		timeout:  timeout,
		logger:   logger.Named("chat"),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := observability.FromContext(r.Context(), h.logger)

	var req Request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		middleware.WriteJSONError(w, http.StatusBadRequest, "invalid_request", "Request body must be a JSON object with a messages array")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		middleware.WriteJSONError(w, http.StatusBadRequest, "invalid_request", validationMessage(err))
		return
	}
	conv := req.conversation()
	if len(conv) == 0 {
		middleware.WriteJSONError(w, http.StatusBadRequest, "invalid_request", "messages contain no text")
		return
	}

	persona, err := h.personas.Lookup(req.AgentName)
	if errors.Is(err, agent.ErrPersonaNotFound) {
		middleware.WriteJSONError(w, http.StatusNotFound, "not_found", fmt.Sprintf("Agent %q not found", req.AgentName))
		return
	}
	if err != nil {
		middleware.WriteJSONError(w, http.StatusInternalServerError, "internal_server_error", "An unexpected error occurred")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		middleware.WriteJSONError(w, http.StatusInternalServerError, "internal_server_error", "Streaming not supported")
		return
	}

	resourceID := req.ResourceID
	if authCtx := middleware.GetAuthContext(r.Context()); authCtx != nil && authCtx.UserID != "" {
		resourceID = authCtx.UserID
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sw := newStreamWriter(w, flusher)
	if err := sw.Start(); err != nil {
		logger.Debug("client went away", zap.Error(err))
		return
	}

	_, err = h.runner.Run(ctx, agent.RunInput{
		Persona:    persona,
		Messages:   conv,
		ThreadID:   req.ThreadID,
		ResourceID: resourceID,
	}, sw)

	switch {
	case err == nil:
		err = sw.Finish()
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		logger.Warn("chat request timed out", zap.String("persona", persona.Name), zap.Duration("timeout", h.timeout))
		err = sw.Fail(fmt.Sprintf("Request timed out after %s", h.timeout))
	case r.Context().Err() != nil:
		// client disconnected; nothing left to write to
		return
	case errors.Is(err, agent.ErrThreadOwner):
		logger.Warn("thread owned by another resource", zap.String("thread_id", req.ThreadID))
		observability.LogSecurityEvent(middleware.GetRequestID(r.Context()), resourceID, "thread_owner_mismatch", map[string]any{
			"thread_id": req.ThreadID,
		})
		err = sw.Fail(fmt.Sprintf("Thread %q not found", req.ThreadID))
	default:
		logger.Error("chat run failed", zap.String("persona", persona.Name), zap.Error(err))
		observability.LogError("chat", err)
		err = sw.Fail("The assistant failed to answer. Please try again.")
	}
	if err != nil {
		logger.Debug("failed to finish stream", zap.Error(err))
	}
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid request"
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Namespace())
	case "min":
		return fmt.Sprintf("%s must have at least %s item(s)", fe.Namespace(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Namespace(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Namespace(), fe.Tag())
	}
}
