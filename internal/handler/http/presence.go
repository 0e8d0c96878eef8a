package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kerjalabs/attendance-backend-go/internal/domain/presence"
	"github.com/kerjalabs/attendance-backend-go/internal/domain/workplace"
	"github.com/kerjalabs/attendance-backend-go/internal/handler/http/response"
	"github.com/kerjalabs/attendance-backend-go/internal/pkg/jwt"
)

type PresenceHandler interface {
	TeamStatus(w http.ResponseWriter, r *http.Request)
	StreamToken(w http.ResponseWriter, r *http.Request)
	Stream(w http.ResponseWriter, r *http.Request)
}

type presenceHandlerImpl struct {
	presenceService presence.PresenceService
	jwtService      jwt.Service
}

func NewPresenceHandler(presenceService presence.PresenceService, jwtService jwt.Service) PresenceHandler {
	return &presenceHandlerImpl{
		presenceService: presenceService,
		jwtService:      jwtService,
	}
}

// TeamStatus implements PresenceHandler.
func (h *presenceHandlerImpl) TeamStatus(w http.ResponseWriter, r *http.Request) {
	identity, err := jwt.FromContext(r.Context())
	if err != nil {
		response.Unauthorized(w, "Unauthorized")
		return
	}

	workplaceID := chi.URLParam(r, "workplaceID")

	// Managers only see their own workplace; anything else does not exist
	// as far as they are concerned.
	if workplaceID != identity.WorkplaceID {
		response.HandleError(w, workplace.ErrWorkplaceNotFound)
		return
	}

	result, err := h.presenceService.TeamStatus(r.Context(), workplaceID)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

// StreamToken issues a short-lived token for SSE connections. EventSource
// cannot set Authorization headers, so the stream endpoints authenticate via
// a token query parameter instead.
func (h *presenceHandlerImpl) StreamToken(w http.ResponseWriter, r *http.Request) {
	identity, err := jwt.FromContext(r.Context())
	if err != nil {
		response.Unauthorized(w, "Unauthorized")
		return
	}

	token, expiresIn, err := h.jwtService.GenerateStreamToken(identity)
	if err != nil {
		response.InternalServerError(w, "Failed to generate stream token")
		return
	}

	response.Success(w, presence.StreamTokenResponse{
		Token:     token,
		ExpiresIn: expiresIn,
	})
}

// Stream handles the SSE connection for live presence transitions.
func (h *presenceHandlerImpl) Stream(w http.ResponseWriter, r *http.Request) {
	// Token comes via query parameter (SSE doesn't support custom headers)
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		http.Error(w, "Missing token", http.StatusUnauthorized)
		return
	}

	identity, err := h.jwtService.ValidateStreamToken(tokenStr)
	if err != nil {
		http.Error(w, "Invalid token", http.StatusUnauthorized)
		return
	}

	workplaceID := chi.URLParam(r, "workplaceID")
	if !identity.Role.IsManager() || workplaceID != identity.WorkplaceID {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	events, cleanup := h.presenceService.Subscribe(workplaceID)
	defer cleanup()

	fmt.Fprintf(w, "event: connected\ndata: {\"status\":\"connected\",\"workplace_id\":%q}\n\n", workplaceID)
	flusher.Flush()

	keepalive := time.NewTicker(30 * time.Second)
	defer keepalive.Stop()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(event)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: presence\ndata: %s\n\n", data)
			flusher.Flush()

		case <-keepalive.C:
			fmt.Fprintf(w, "event: ping\ndata: {\"timestamp\":%d}\n\n", time.Now().Unix())
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}
