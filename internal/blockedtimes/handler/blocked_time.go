package handler

import (
	"encoding/json"
	"net/http"

	authmw "reservio/internal/auth/middleware"
	"reservio/internal/blockedtimes/service"
	apperrors "reservio/pkg/errors"
	httputil "reservio/pkg/http"
	"reservio/pkg/logger"
	"reservio/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type BlockedTimeHandler struct {
	service service.BlockedTimeService
	auth    *authmw.Middleware
	log     *logger.Logger
}

func NewBlockedTimeHandler(service service.BlockedTimeService, auth *authmw.Middleware, log *logger.Logger) *BlockedTimeHandler {
	return &BlockedTimeHandler{
		service: service,
		auth:    auth,
		log:     log,
	}
}

func (h *BlockedTimeHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var blocked model.BlockedTime
	if err := json.NewDecoder(r.Body).Decode(&blocked); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "Create", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	if err := h.service.Create(r.Context(), &blocked); err != nil {
		h.writeError(w, "Create", err)
		return
	}

	if err := httputil.WriteCreated(w, blocked); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *BlockedTimeHandler) GetByResource(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	resourceID := r.URL.Query().Get("resource_id")
	if resourceID == "" {
		h.writeError(w, "GetByResource", apperrors.InvalidInput("'resource_id' query parameter is required"))
		return
	}

	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "GetByResource", err)
		return
	}

	blocked, total, err := h.service.GetByResource(r.Context(), resourceID, limit, offset)
	if err != nil {
		h.writeError(w, "GetByResource", err)
		return
	}

	if err := httputil.WritePaginated(w, blocked, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "GetByResource", "operation", "WritePaginated", "error", err)
	}
}

func (h *BlockedTimeHandler) Delete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if err := h.service.Delete(r.Context(), ps.ByName("id")); err != nil {
		h.writeError(w, "Delete", err)
		return
	}

	httputil.WriteNoContent(w)
}

func (h *BlockedTimeHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

// Writes are admin only; listing needs a token.
func (h *BlockedTimeHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/blocked-times", h.auth.Authenticate(h.auth.RequireAdmin(h.Create)))
	router.GET("/api/v1/blocked-times", h.auth.Authenticate(h.GetByResource))
	router.DELETE("/api/v1/blocked-times/id/:id", h.auth.Authenticate(h.auth.RequireAdmin(h.Delete)))
}
