package handler

import (
	"encoding/json"
	"net/http"
	"time"

	authmw "reservio/internal/auth/middleware"
	"reservio/internal/reservations/service"
	apperrors "reservio/pkg/errors"
	httputil "reservio/pkg/http"
	"reservio/pkg/logger"
	"reservio/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type ReservationHandler struct {
	service service.ReservationService
	auth    *authmw.Middleware
	log     *logger.Logger
}

func NewReservationHandler(service service.ReservationService, auth *authmw.Middleware, log *logger.Logger) *ReservationHandler {
	return &ReservationHandler{
		service: service,
		auth:    auth,
		log:     log,
	}
}

func (h *ReservationHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	identity, ok := authmw.IdentityFromContext(r.Context())
	if !ok {
		h.writeError(w, "Create", apperrors.Unauthorized("Authentication required"))
		return
	}

	var reservation model.Reservation
	if err := json.NewDecoder(r.Body).Decode(&reservation); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "Create", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	if err := h.service.Create(r.Context(), identity, &reservation); err != nil {
		h.writeError(w, "Create", err)
		return
	}

	if err := httputil.WriteCreated(w, reservation); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *ReservationHandler) Cancel(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	identity, ok := authmw.IdentityFromContext(r.Context())
	if !ok {
		h.writeError(w, "Cancel", apperrors.Unauthorized("Authentication required"))
		return
	}

	if err := h.service.Cancel(r.Context(), identity, ps.ByName("id")); err != nil {
		h.writeError(w, "Cancel", err)
		return
	}

	httputil.WriteNoContent(w)
}

func (h *ReservationHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	identity, ok := authmw.IdentityFromContext(r.Context())
	if !ok {
		h.writeError(w, "GetByID", apperrors.Unauthorized("Authentication required"))
		return
	}

	reservation, err := h.service.GetByID(r.Context(), identity, ps.ByName("id"))
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}

	if err := httputil.WriteSuccess(w, reservation); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ReservationHandler) GetAll(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "GetAll", err)
		return
	}

	reservations, total, err := h.service.GetAll(r.Context(), limit, offset)
	if err != nil {
		h.writeError(w, "GetAll", err)
		return
	}

	if err := httputil.WritePaginated(w, reservations, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "GetAll", "operation", "WritePaginated", "error", err)
	}
}

func (h *ReservationHandler) GetMine(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	identity, ok := authmw.IdentityFromContext(r.Context())
	if !ok {
		h.writeError(w, "GetMine", apperrors.Unauthorized("Authentication required"))
		return
	}

	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "GetMine", err)
		return
	}

	reservations, total, err := h.service.GetMine(r.Context(), identity, limit, offset)
	if err != nil {
		h.writeError(w, "GetMine", err)
		return
	}

	if err := httputil.WritePaginated(w, reservations, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "GetMine", "operation", "WritePaginated", "error", err)
	}
}

func (h *ReservationHandler) CheckAvailability(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	query := r.URL.Query()
	resourceID := query.Get("resource_id")
	startStr := query.Get("start_time")
	endStr := query.Get("end_time")

	if resourceID == "" || startStr == "" || endStr == "" {
		h.writeError(w, "CheckAvailability", apperrors.InvalidInput(
			"'resource_id', 'start_time' and 'end_time' query parameters are required"))
		return
	}

	start, err := time.Parse(time.RFC3339, startStr)
	if err != nil {
		h.writeError(w, "CheckAvailability", apperrors.InvalidInput("invalid start_time format, must be RFC3339"))
		return
	}
	end, err := time.Parse(time.RFC3339, endStr)
	if err != nil {
		h.writeError(w, "CheckAvailability", apperrors.InvalidInput("invalid end_time format, must be RFC3339"))
		return
	}

	result, err := h.service.CheckAvailability(r.Context(), resourceID, start, end)
	if err != nil {
		h.writeError(w, "CheckAvailability", err)
		return
	}

	if err := httputil.WriteSuccess(w, result); err != nil {
		h.log.Error("failed to write success response", "handler", "CheckAvailability", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ReservationHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

// Listing every reservation is admin only. The availability probe is public:
// it is advisory and leaks nothing beyond slot occupancy.
func (h *ReservationHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/reservations", h.auth.Authenticate(h.Create))
	router.GET("/api/v1/reservations", h.auth.Authenticate(h.auth.RequireAdmin(h.GetAll)))
	router.GET("/api/v1/reservations/my", h.auth.Authenticate(h.GetMine))
	router.GET("/api/v1/reservations/id/:id", h.auth.Authenticate(h.GetByID))
	router.POST("/api/v1/reservations/id/:id/cancel", h.auth.Authenticate(h.Cancel))
	router.GET("/api/v1/reservations/availability", h.CheckAvailability)
}
