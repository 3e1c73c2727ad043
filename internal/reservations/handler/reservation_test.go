package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	authmw "reservio/internal/auth/middleware"
	apperrors "reservio/pkg/errors"
	"reservio/pkg/logger"
	"reservio/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type mockReservationService struct {
	createFunc            func(ctx context.Context, identity model.Identity, reservation *model.Reservation) error
	cancelFunc            func(ctx context.Context, identity model.Identity, id string) error
	checkAvailabilityFunc func(ctx context.Context, resourceID string, start, end time.Time) (*model.AvailabilityResult, error)
}

func (m *mockReservationService) Create(ctx context.Context, identity model.Identity, reservation *model.Reservation) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, identity, reservation)
	}
	reservation.ID = "65f000000000000000000100"
	return nil
}

func (m *mockReservationService) Cancel(ctx context.Context, identity model.Identity, id string) error {
	if m.cancelFunc != nil {
		return m.cancelFunc(ctx, identity, id)
	}
	return nil
}

func (m *mockReservationService) CheckAvailability(ctx context.Context, resourceID string, start, end time.Time) (*model.AvailabilityResult, error) {
	if m.checkAvailabilityFunc != nil {
		return m.checkAvailabilityFunc(ctx, resourceID, start, end)
	}
	return &model.AvailabilityResult{IsAvailable: true, Message: "The time slot is available"}, nil
}

func (m *mockReservationService) GetByID(ctx context.Context, identity model.Identity, id string) (*model.Reservation, error) {
	return nil, apperrors.NotFoundWithID("Reservation", id)
}

func (m *mockReservationService) GetAll(ctx context.Context, limit int, offset int64) ([]*model.Reservation, int64, error) {
	return []*model.Reservation{}, 0, nil
}

func (m *mockReservationService) GetMine(ctx context.Context, identity model.Identity, limit int, offset int64) ([]*model.Reservation, int64, error) {
	return []*model.Reservation{}, 0, nil
}

func testHandler(service *mockReservationService) *ReservationHandler {
	log := logger.New(logger.Config{Level: "error", Format: logger.JSON, Service: "test"})
	return &ReservationHandler{service: service, log: log}
}

func authedRequest(method, target string, body string) *http.Request {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	ctx := authmw.ContextWithIdentity(req.Context(), model.Identity{UserID: "65f000000000000000000002"})
	return req.WithContext(ctx)
}

func TestCreateHandler(t *testing.T) {
	start := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
	end := time.Now().Add(2 * time.Hour).UTC().Format(time.RFC3339)

	tests := []struct {
		name           string
		body           string
		serviceErr     error
		expectedStatus int
	}{
		{
			name: "created",
			body: `{"resource_id":"65f000000000000000000001","start_time":"` + start + `","end_time":"` + end + `"}`,

			expectedStatus: http.StatusCreated,
		},
		{
			name:           "malformed body",
			body:           `{"resource_id":`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "slot conflict",
			body:           `{"resource_id":"65f000000000000000000001","start_time":"` + start + `","end_time":"` + end + `"}`,
			serviceErr:     apperrors.Conflict("The time slot was claimed by a concurrent request. Please try again."),
			expectedStatus: http.StatusConflict,
		},
		{
			name:           "validation rejection",
			body:           `{"resource_id":"65f000000000000000000001","start_time":"` + start + `","end_time":"` + end + `"}`,
			serviceErr:     apperrors.Validation("Reservation validation failed", nil),
			expectedStatus: http.StatusUnprocessableEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := &mockReservationService{}
			if tt.serviceErr != nil {
				service.createFunc = func(ctx context.Context, identity model.Identity, reservation *model.Reservation) error {
					return tt.serviceErr
				}
			}
			handler := testHandler(service)

			req := authedRequest(http.MethodPost, "/api/v1/reservations", tt.body)
			rec := httptest.NewRecorder()

			handler.Create(rec, req, nil)

			if rec.Code != tt.expectedStatus {
				t.Fatalf("expected status %d, got %d (body: %s)", tt.expectedStatus, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestCreateHandler_Unauthenticated(t *testing.T) {
	handler := testHandler(&mockReservationService{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/reservations", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()

	handler.Create(rec, req, nil)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestCancelHandler(t *testing.T) {
	tests := []struct {
		name           string
		serviceErr     error
		expectedStatus int
	}{
		{"cancelled", nil, http.StatusNoContent},
		{"not owner", apperrors.Forbidden("You can only cancel your own reservations"), http.StatusForbidden},
		{"already terminal", apperrors.Conflict("Cannot cancel reservation with status cancelled"), http.StatusConflict},
		{"unknown id", apperrors.NotFoundWithID("Reservation", "x"), http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := &mockReservationService{
				cancelFunc: func(ctx context.Context, identity model.Identity, id string) error {
					return tt.serviceErr
				},
			}
			handler := testHandler(service)

			req := authedRequest(http.MethodPost, "/api/v1/reservations/id/65f000000000000000000100/cancel", "")
			rec := httptest.NewRecorder()

			handler.Cancel(rec, req, httprouter.Params{{Key: "id", Value: "65f000000000000000000100"}})

			if rec.Code != tt.expectedStatus {
				t.Fatalf("expected status %d, got %d", tt.expectedStatus, rec.Code)
			}
		})
	}
}

func TestCheckAvailabilityHandler(t *testing.T) {
	start := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
	end := time.Now().Add(2 * time.Hour).UTC().Format(time.RFC3339)

	tests := []struct {
		name           string
		query          string
		expectedStatus int
	}{
		{
			name:           "valid probe",
			query:          "?resource_id=65f000000000000000000001&start_time=" + start + "&end_time=" + end,
			expectedStatus: http.StatusOK,
		},
		{
			name:           "missing parameters",
			query:          "?resource_id=65f000000000000000000001",
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "malformed time",
			query:          "?resource_id=65f000000000000000000001&start_time=yesterday&end_time=" + end,
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := testHandler(&mockReservationService{})

			req := authedRequest(http.MethodGet, "/api/v1/reservations/availability"+tt.query, "")
			rec := httptest.NewRecorder()

			handler.CheckAvailability(rec, req, nil)

			if rec.Code != tt.expectedStatus {
				t.Fatalf("expected status %d, got %d (body: %s)", tt.expectedStatus, rec.Code, rec.Body.String())
			}

			if tt.expectedStatus == http.StatusOK {
				var envelope struct {
					Data model.AvailabilityResult `json:"data"`
				}
				if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
					t.Fatalf("failed to decode body: %v", err)
				}
				if !envelope.Data.IsAvailable {
					t.Errorf("expected available, got: %s", envelope.Data.Message)
				}
			}
		})
	}
}
