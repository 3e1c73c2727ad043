package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	blockederrors "reservio/internal/blockedtimes/errors"
	"reservio/internal/blockedtimes/repository"
	"reservio/internal/blockedtimes/validator"
	"reservio/internal/events"
	reservationsrepo "reservio/internal/reservations/repository"
	resourceserrors "reservio/internal/resources/errors"
	"reservio/pkg/config"
	mongotx "reservio/pkg/db/mongo"
	apperrors "reservio/pkg/errors"
	"reservio/pkg/model"
	"reservio/pkg/sanitizer"

	"go.mongodb.org/mongo-driver/mongo"
)

// ResourceLocker is the slice of the resources repository the blocked-time
// writer needs.
type ResourceLocker interface {
	FindActiveForUpdate(ctx context.Context, id string) (*model.Resource, error)
}

// ReservationFinder answers which active reservations intersect an interval.
type ReservationFinder interface {
	FindActiveOverlapping(ctx context.Context, resourceID string, start, end time.Time) ([]*model.Reservation, error)
}

type BlockedTimeService interface {
	Create(ctx context.Context, blocked *model.BlockedTime) error
	GetByResource(ctx context.Context, resourceID string, limit int, offset int64) ([]*model.BlockedTime, int64, error)
	Delete(ctx context.Context, id string) error
}

type blockedTimeService struct {
	repo         repository.BlockedTimeRepository
	lockRepo     reservationsrepo.SlotLockRepository
	resources    ResourceLocker
	reservations ReservationFinder
	validator    *validator.BlockedTimeValidator
	publisher    events.Publisher
	cfg          *config.Config
}

func NewBlockedTimeService(
	repo repository.BlockedTimeRepository,
	lockRepo reservationsrepo.SlotLockRepository,
	resources ResourceLocker,
	reservations ReservationFinder,
	validator *validator.BlockedTimeValidator,
	publisher events.Publisher,
	cfg *config.Config,
) BlockedTimeService {
	return &blockedTimeService{
		repo:         repo,
		lockRepo:     lockRepo,
		resources:    resources,
		reservations: reservations,
		validator:    validator,
		publisher:    publisher,
		cfg:          cfg,
	}
}

// Create inserts a blocked window through the same slot lock and transaction
// shape as a reservation, so a blocked time and a reservation racing for the
// same slot resolve to exactly one winner. A window that overlaps an active
// reservation is rejected; cancel the reservations first, then block.
func (s *blockedTimeService) Create(ctx context.Context, blocked *model.BlockedTime) error {
	blocked.ID = ""
	blocked.Reason = sanitizer.SanitizeFreeText(blocked.Reason)

	if err := s.validator.Validate(blocked); err != nil {
		s.cfg.Log.Warn("Blocked time validation failed", "error", err)
		return apperrors.Validation("Blocked time validation failed", map[string]any{"error": err.Error()})
	}

	lockID, err := s.acquireSlotLock(ctx, blocked.ResourceID, blocked.StartTime)
	if err != nil {
		return err
	}
	defer func() {
		if releaseErr := s.lockRepo.Delete(ctx, lockID); releaseErr != nil {
			s.cfg.Log.Warn("Failed to release slot lock", "lock_id", lockID, "error", releaseErr)
		}
	}()

	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if _, err := s.resources.FindActiveForUpdate(sessCtx, blocked.ResourceID); err != nil {
			return s.translateResourceError(err, blocked.ResourceID)
		}

		// Reservations first, then blocked times. Every writer observes
		// collections in the same order, so transactions cannot deadlock.
		reserved, err := s.reservations.FindActiveOverlapping(sessCtx, blocked.ResourceID, blocked.StartTime, blocked.EndTime)
		if err != nil {
			return apperrors.Internal("Failed to check existing reservations", err)
		}
		if len(reserved) > 0 {
			return apperrors.Conflict(fmt.Sprintf(
				"Blocked time overlaps with an active reservation (%s - %s)",
				reserved[0].StartTime.Format(time.RFC3339),
				reserved[0].EndTime.Format(time.RFC3339),
			))
		}

		existing, err := s.repo.FindOverlapping(sessCtx, blocked.ResourceID, blocked.StartTime, blocked.EndTime)
		if err != nil {
			return apperrors.Internal("Failed to check existing blocked times", err)
		}
		if len(existing) > 0 {
			return apperrors.Conflict(fmt.Sprintf(
				"Blocked time overlaps with an existing blocked period (%s - %s)",
				existing[0].StartTime.Format(time.RFC3339),
				existing[0].EndTime.Format(time.RFC3339),
			))
		}

		if err := s.repo.Create(sessCtx, blocked); err != nil {
			return apperrors.Internal("Failed to create blocked time", err)
		}

		return nil
	})
	if err != nil {
		if mongotx.IsWriteRace(err) {
			s.cfg.Log.Warn("Blocked time lost a write race",
				"resource_id", blocked.ResourceID,
				"start_time", blocked.StartTime,
			)
			return apperrors.Conflict("The time slot was claimed by a concurrent request. Please try again.")
		}
		s.cfg.Log.Error("Failed to create blocked time", "error", err)
		return err
	}

	s.publisher.BlockedTimeCreated(ctx, blocked)

	s.cfg.Log.Info("Blocked time created successfully",
		"id", blocked.ID,
		"resource_id", blocked.ResourceID,
		"start_time", blocked.StartTime,
		"end_time", blocked.EndTime,
	)
	return nil
}

func (s *blockedTimeService) GetByResource(ctx context.Context, resourceID string, limit int, offset int64) ([]*model.BlockedTime, int64, error) {
	if resourceID == "" {
		return nil, 0, apperrors.InvalidInput("Resource ID cannot be empty")
	}

	var count int64
	var blocked []*model.BlockedTime
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.CountByResource(ctx, resourceID)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count blocked times", "resource_id", resourceID, "error", errCount)
			errCount = apperrors.Internal("Failed to count blocked times", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		blocked, errFind = s.repo.FindByResource(ctx, resourceID, limit, offset)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list blocked times", "resource_id", resourceID, "error", errFind)
			errFind = apperrors.Internal("Failed to retrieve blocked times", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return blocked, count, nil
}

func (s *blockedTimeService) Delete(ctx context.Context, id string) error {
	if id == "" {
		return apperrors.InvalidInput("Blocked time ID cannot be empty")
	}

	err := s.repo.Delete(ctx, id)
	if err != nil {
		switch {
		case errors.Is(err, blockederrors.ErrNotFound):
			return apperrors.NotFoundWithID("Blocked time", id)
		case errors.Is(err, blockederrors.ErrInvalidID):
			return apperrors.InvalidInput("Invalid blocked time ID format")
		default:
			s.cfg.Log.Error("Failed to delete blocked time", "id", id, "error", err)
			return apperrors.Internal("Failed to delete blocked time", err)
		}
	}

	s.cfg.Log.Info("Blocked time deleted", "id", id)
	return nil
}

func (s *blockedTimeService) acquireSlotLock(ctx context.Context, resourceID string, startTime time.Time) (string, error) {
	lockID := fmt.Sprintf("slot_lock_%s_%d", resourceID, startTime.Unix())

	lock := &model.SlotLock{
		ID:        lockID,
		ExpiresAt: time.Now().Add(s.cfg.SlotLockTTL),
	}

	_, err := s.lockRepo.Create(ctx, lock)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", apperrors.Conflict("This time slot is currently being reserved by another request. Please try again.")
		}
		return "", apperrors.Internal("Failed to acquire slot lock", err)
	}

	return lockID, nil
}

func (s *blockedTimeService) translateResourceError(err error, resourceID string) error {
	switch {
	case errors.Is(err, resourceserrors.ErrNotFound):
		return apperrors.NotFoundWithID("Resource", resourceID)
	case errors.Is(err, resourceserrors.ErrInvalidID):
		return apperrors.InvalidInput("Invalid resource ID format")
	case errors.Is(err, resourceserrors.ErrInactive):
		// An inactive resource is indistinguishable from a missing one to
		// callers: neither accepts bookings.
		return apperrors.NotFoundWithID("Resource", resourceID)
	case apperrors.IsAppError(err):
		return err
	default:
		return apperrors.Internal("Failed to retrieve resource", err)
	}
}
