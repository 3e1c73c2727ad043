package service

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	blockederrors "reservio/internal/blockedtimes/errors"
	"reservio/internal/blockedtimes/validator"
	"reservio/internal/events"
	resourceserrors "reservio/internal/resources/errors"
	"reservio/pkg/config"
	mongotx "reservio/pkg/db/mongo"
	apperrors "reservio/pkg/errors"
	"reservio/pkg/logger"
	"reservio/pkg/model"

	"go.mongodb.org/mongo-driver/mongo"
)

type mockBlockedTimeRepository struct {
	createFunc          func(ctx context.Context, blocked *model.BlockedTime) error
	findOverlappingFunc func(ctx context.Context, resourceID string, start, end time.Time) ([]*model.BlockedTime, error)
	deleteFunc          func(ctx context.Context, id string) error
}

func (m *mockBlockedTimeRepository) Create(ctx context.Context, blocked *model.BlockedTime) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, blocked)
	}
	blocked.ID = "65f000000000000000000060"
	return nil
}

func (m *mockBlockedTimeRepository) FindByID(ctx context.Context, id string) (*model.BlockedTime, error) {
	return nil, blockederrors.ErrNotFound
}

func (m *mockBlockedTimeRepository) FindByResource(ctx context.Context, resourceID string, limit int, offset int64) ([]*model.BlockedTime, error) {
	return []*model.BlockedTime{}, nil
}

func (m *mockBlockedTimeRepository) CountByResource(ctx context.Context, resourceID string) (int64, error) {
	return 0, nil
}

func (m *mockBlockedTimeRepository) FindOverlapping(ctx context.Context, resourceID string, start, end time.Time) ([]*model.BlockedTime, error) {
	if m.findOverlappingFunc != nil {
		return m.findOverlappingFunc(ctx, resourceID, start, end)
	}
	return []*model.BlockedTime{}, nil
}

func (m *mockBlockedTimeRepository) Delete(ctx context.Context, id string) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, id)
	}
	return nil
}

func (m *mockBlockedTimeRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return fn(mongo.NewSessionContext(ctx, nil))
}

type mockSlotLocks struct {
	created int
	deleted int
}

func (m *mockSlotLocks) Create(ctx context.Context, lock *model.SlotLock) (*model.SlotLock, error) {
	m.created++
	return lock, nil
}

func (m *mockSlotLocks) Delete(ctx context.Context, lockID string) error {
	m.deleted++
	return nil
}

type mockResources struct {
	findActiveForUpdateFunc func(ctx context.Context, id string) (*model.Resource, error)
}

func (m *mockResources) FindActiveForUpdate(ctx context.Context, id string) (*model.Resource, error) {
	if m.findActiveForUpdateFunc != nil {
		return m.findActiveForUpdateFunc(ctx, id)
	}
	return &model.Resource{ID: id, Name: "Room A", IsActive: true}, nil
}

type mockReservations struct {
	findActiveOverlappingFunc func(ctx context.Context, resourceID string, start, end time.Time) ([]*model.Reservation, error)
}

func (m *mockReservations) FindActiveOverlapping(ctx context.Context, resourceID string, start, end time.Time) ([]*model.Reservation, error) {
	if m.findActiveOverlappingFunc != nil {
		return m.findActiveOverlappingFunc(ctx, resourceID, start, end)
	}
	return []*model.Reservation{}, nil
}

const testResourceID = "65f000000000000000000001"

func testBlockedService(repo *mockBlockedTimeRepository, locks *mockSlotLocks, resources *mockResources) BlockedTimeService {
	return testBlockedServiceWithReservations(repo, locks, resources, &mockReservations{})
}

func testBlockedServiceWithReservations(repo *mockBlockedTimeRepository, locks *mockSlotLocks, resources *mockResources, reservations *mockReservations) BlockedTimeService {
	log := logger.New(logger.Config{Level: "error", Format: logger.JSON, Service: "test"})
	cfg := &config.Config{
		Log:         log,
		SlotLockTTL: 30 * time.Second,
	}
	return NewBlockedTimeService(repo, locks, resources, reservations, validator.NewBlockedTimeValidator(), events.NewNoopPublisher(), cfg)
}

func validBlockedTime() *model.BlockedTime {
	start := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	return &model.BlockedTime{
		ResourceID: testResourceID,
		StartTime:  start,
		EndTime:    start.Add(4 * time.Hour),
		Reason:     "quarterly maintenance",
	}
}

func TestBlockedTimeCreate_Success(t *testing.T) {
	locks := &mockSlotLocks{}
	service := testBlockedService(&mockBlockedTimeRepository{}, locks, &mockResources{})

	blocked := validBlockedTime()
	blocked.Reason = "  quarterly \t maintenance  "

	if err := service.Create(context.Background(), blocked); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if blocked.Reason != "quarterly maintenance" {
		t.Errorf("expected sanitized reason, got %q", blocked.Reason)
	}
	if blocked.ID == "" {
		t.Error("expected ID to be set after create")
	}
	if locks.created != 1 || locks.deleted != 1 {
		t.Errorf("expected slot lock acquired and released once, got created=%d deleted=%d", locks.created, locks.deleted)
	}
}

func TestBlockedTimeCreate_OverlapConflict(t *testing.T) {
	repo := &mockBlockedTimeRepository{
		findOverlappingFunc: func(ctx context.Context, resourceID string, start, end time.Time) ([]*model.BlockedTime, error) {
			return []*model.BlockedTime{{
				ID:         "65f000000000000000000061",
				ResourceID: resourceID,
				StartTime:  start,
				EndTime:    end,
				Reason:     "already blocked",
			}}, nil
		},
	}
	locks := &mockSlotLocks{}
	service := testBlockedService(repo, locks, &mockResources{})

	err := service.Create(context.Background(), validBlockedTime())
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	appErr := apperrors.AsAppError(err)
	if appErr == nil || appErr.Code != apperrors.CodeConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
	if !strings.Contains(appErr.Message, "existing blocked period") {
		t.Errorf("unexpected message: %s", appErr.Message)
	}
	if locks.deleted != 1 {
		t.Error("slot lock must be released on conflict")
	}
}

func TestBlockedTimeCreate_ReservationConflict(t *testing.T) {
	reservations := &mockReservations{
		findActiveOverlappingFunc: func(ctx context.Context, resourceID string, start, end time.Time) ([]*model.Reservation, error) {
			return []*model.Reservation{{
				ID:         "65f000000000000000000100",
				ResourceID: resourceID,
				StartTime:  start,
				EndTime:    end,
				Status:     model.ReservationStatusActive,
			}}, nil
		},
	}
	service := testBlockedServiceWithReservations(&mockBlockedTimeRepository{}, &mockSlotLocks{}, &mockResources{}, reservations)

	err := service.Create(context.Background(), validBlockedTime())
	appErr := apperrors.AsAppError(err)
	if appErr == nil || appErr.Code != apperrors.CodeConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
	if !strings.Contains(appErr.Message, "active reservation") {
		t.Errorf("unexpected message: %s", appErr.Message)
	}
}

func TestBlockedTimeCreate_InactiveResource(t *testing.T) {
	resources := &mockResources{
		findActiveForUpdateFunc: func(ctx context.Context, id string) (*model.Resource, error) {
			return nil, resourceserrors.ErrInactive
		},
	}
	service := testBlockedService(&mockBlockedTimeRepository{}, &mockSlotLocks{}, resources)

	// Deactivated resources look absent to bookers, same as the unknown case.
	err := service.Create(context.Background(), validBlockedTime())
	appErr := apperrors.AsAppError(err)
	if appErr == nil || appErr.Code != apperrors.CodeNotFound {
		t.Fatalf("expected not found for inactive resource, got %v", err)
	}
	if appErr.HTTPStatus != http.StatusNotFound {
		t.Errorf("expected HTTP 404, got %d", appErr.HTTPStatus)
	}
}

// A blocked window may start in the past.
func TestBlockedTimeCreate_PastWindowAllowed(t *testing.T) {
	service := testBlockedService(&mockBlockedTimeRepository{}, &mockSlotLocks{}, &mockResources{})

	blocked := validBlockedTime()
	blocked.StartTime = time.Now().Add(-24 * time.Hour)
	blocked.EndTime = blocked.StartTime.Add(2 * time.Hour)

	if err := service.Create(context.Background(), blocked); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestBlockedTimeCreate_Validation(t *testing.T) {
	service := testBlockedService(&mockBlockedTimeRepository{}, &mockSlotLocks{}, &mockResources{})

	tests := []struct {
		name   string
		mutate func(b *model.BlockedTime)
	}{
		{"end before start", func(b *model.BlockedTime) { b.EndTime = b.StartTime.Add(-time.Hour) }},
		{"missing resource", func(b *model.BlockedTime) { b.ResourceID = "" }},
		{"missing reason", func(b *model.BlockedTime) { b.Reason = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blocked := validBlockedTime()
			tt.mutate(blocked)

			err := service.Create(context.Background(), blocked)
			appErr := apperrors.AsAppError(err)
			if appErr == nil || appErr.Code != apperrors.CodeValidation {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestBlockedTimeDelete(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		service := testBlockedService(&mockBlockedTimeRepository{}, &mockSlotLocks{}, &mockResources{})
		if err := service.Delete(context.Background(), "65f000000000000000000060"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("not found", func(t *testing.T) {
		repo := &mockBlockedTimeRepository{
			deleteFunc: func(ctx context.Context, id string) error {
				return blockederrors.ErrNotFound
			},
		}
		service := testBlockedService(repo, &mockSlotLocks{}, &mockResources{})

		err := service.Delete(context.Background(), "65f000000000000000000060")
		appErr := apperrors.AsAppError(err)
		if appErr == nil || appErr.Code != apperrors.CodeNotFound {
			t.Fatalf("expected not found, got %v", err)
		}
	})
}
