package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"reservio/internal/events"
	reservationserrors "reservio/internal/reservations/errors"
	"reservio/internal/reservations/repository"
	"reservio/internal/reservations/validator"
	resourceserrors "reservio/internal/resources/errors"
	"reservio/pkg/config"
	mongotx "reservio/pkg/db/mongo"
	apperrors "reservio/pkg/errors"
	"reservio/pkg/model"

	"go.mongodb.org/mongo-driver/mongo"
)

// ResourceLocker is the slice of the resources repository the reservation
// writer needs: a lock-read inside the transaction and a plain read for
// availability probes.
type ResourceLocker interface {
	FindActiveForUpdate(ctx context.Context, id string) (*model.Resource, error)
	FindByID(ctx context.Context, id string) (*model.Resource, error)
}

// BlockedTimeFinder answers which blocked windows intersect an interval.
type BlockedTimeFinder interface {
	FindOverlapping(ctx context.Context, resourceID string, start, end time.Time) ([]*model.BlockedTime, error)
}

type ReservationService interface {
	Create(ctx context.Context, identity model.Identity, reservation *model.Reservation) error
	Cancel(ctx context.Context, identity model.Identity, id string) error
	CheckAvailability(ctx context.Context, resourceID string, start, end time.Time) (*model.AvailabilityResult, error)
	GetByID(ctx context.Context, identity model.Identity, id string) (*model.Reservation, error)
	GetAll(ctx context.Context, limit int, offset int64) ([]*model.Reservation, int64, error)
	GetMine(ctx context.Context, identity model.Identity, limit int, offset int64) ([]*model.Reservation, int64, error)
}

type reservationService struct {
	repo      repository.ReservationRepository
	lockRepo  repository.SlotLockRepository
	resources ResourceLocker
	blocked   BlockedTimeFinder
	validator *validator.ReservationValidator
	publisher events.Publisher
	cfg       *config.Config
}

func NewReservationService(
	repo repository.ReservationRepository,
	lockRepo repository.SlotLockRepository,
	resources ResourceLocker,
	blocked BlockedTimeFinder,
	validator *validator.ReservationValidator,
	publisher events.Publisher,
	cfg *config.Config,
) ReservationService {
	return &reservationService{
		repo:      repo,
		lockRepo:  lockRepo,
		resources: resources,
		blocked:   blocked,
		validator: validator,
		publisher: publisher,
		cfg:       cfg,
	}
}

// Create claims a slot. The advisory lock serializes writers aiming at the
// same slot; the transaction re-checks overlaps under snapshot isolation
// after locking the resource row. A race that slips past both is surfaced by
// the conflict classifier and rejected, never silently retried.
func (s *reservationService) Create(ctx context.Context, identity model.Identity, reservation *model.Reservation) error {
	reservation.ID = ""
	reservation.UserID = identity.UserID
	reservation.Status = model.ReservationStatusActive

	if err := s.validator.Validate(reservation); err != nil {
		s.cfg.Log.Warn("Reservation validation failed", "error", err)
		return apperrors.Validation("Reservation validation failed", map[string]any{"error": err.Error()})
	}

	lockID, err := s.acquireSlotLock(ctx, reservation.ResourceID, reservation.StartTime)
	if err != nil {
		return err
	}
	defer func() {
		if releaseErr := s.releaseSlotLock(ctx, lockID); releaseErr != nil {
			s.cfg.Log.Warn("Failed to release slot lock", "lock_id", lockID, "error", releaseErr)
		}
	}()

	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if _, err := s.resources.FindActiveForUpdate(sessCtx, reservation.ResourceID); err != nil {
			return s.translateResourceError(err, reservation.ResourceID)
		}

		if err := s.verifyNoOverlap(sessCtx, reservation.ResourceID, reservation.StartTime, reservation.EndTime); err != nil {
			return err
		}

		if err := s.repo.Create(sessCtx, reservation); err != nil {
			return apperrors.Internal("Failed to create reservation", err)
		}

		return nil
	})
	if err != nil {
		if mongotx.IsWriteRace(err) {
			s.cfg.Log.Warn("Reservation lost a write race",
				"resource_id", reservation.ResourceID,
				"start_time", reservation.StartTime,
			)
			return apperrors.Conflict("The time slot was claimed by a concurrent request. Please try again.")
		}
		s.cfg.Log.Error("Failed to create reservation", "error", err)
		return err
	}

	s.publisher.ReservationCreated(ctx, reservation)

	s.cfg.Log.Info("Reservation created successfully",
		"id", reservation.ID,
		"resource_id", reservation.ResourceID,
		"user_id", reservation.UserID,
		"start_time", reservation.StartTime,
	)
	return nil
}

// Cancel is owner-or-admin. A reservation already in a terminal state cannot
// be cancelled again; the error names the state it is stuck in.
func (s *reservationService) Cancel(ctx context.Context, identity model.Identity, id string) error {
	if id == "" {
		return apperrors.InvalidInput("Reservation ID cannot be empty")
	}

	reservation, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return s.translateRepoError(err, id)
	}

	if !identity.IsAdmin && reservation.UserID != identity.UserID {
		return apperrors.Forbidden("You can only cancel your own reservations")
	}

	if reservation.IsTerminal() {
		return apperrors.Conflict(fmt.Sprintf("Cannot cancel reservation with status %s", reservation.Status))
	}

	err = s.repo.TransitionStatus(ctx, id, model.ReservationStatusActive, model.ReservationStatusCancelled)
	if err != nil {
		if errors.Is(err, reservationserrors.ErrNotFound) {
			// The status changed between our read and the update.
			current, findErr := s.repo.FindByID(ctx, id)
			if findErr == nil {
				return apperrors.Conflict(fmt.Sprintf("Cannot cancel reservation with status %s", current.Status))
			}
			return apperrors.NotFoundWithID("Reservation", id)
		}
		s.cfg.Log.Error("Failed to cancel reservation", "id", id, "error", err)
		return apperrors.Internal("Failed to cancel reservation", err)
	}

	reservation.Status = model.ReservationStatusCancelled
	s.publisher.ReservationCancelled(ctx, reservation)

	s.cfg.Log.Info("Reservation cancelled", "id", id, "user_id", identity.UserID)
	return nil
}

// CheckAvailability is advisory: it answers from a plain read with no lock
// and no transaction, so a concurrent create can still win the slot after a
// positive answer.
func (s *reservationService) CheckAvailability(ctx context.Context, resourceID string, start, end time.Time) (*model.AvailabilityResult, error) {
	if resourceID == "" {
		return nil, apperrors.InvalidInput("Resource ID cannot be empty")
	}

	if err := s.validator.ValidateWindow(start, end); err != nil {
		return nil, apperrors.Validation("Invalid availability window", map[string]any{"error": err.Error()})
	}

	resource, err := s.resources.FindByID(ctx, resourceID)
	if err != nil {
		// A missing resource is an ordinary negative answer here, not an
		// error: the probe reports whether a booking could succeed.
		if errors.Is(err, resourceserrors.ErrNotFound) {
			return &model.AvailabilityResult{
				IsAvailable: false,
				Message:     "Resource not found or inactive",
			}, nil
		}
		return nil, s.translateResourceError(err, resourceID)
	}
	if !resource.IsActive {
		return &model.AvailabilityResult{
			IsAvailable: false,
			Message:     "Resource not found or inactive",
		}, nil
	}

	overlapping, err := s.repo.FindActiveOverlapping(ctx, resourceID, start, end)
	if err != nil {
		return nil, apperrors.Internal("Failed to check existing reservations", err)
	}
	if len(overlapping) > 0 {
		return &model.AvailabilityResult{
			IsAvailable: false,
			Message:     "The time slot overlaps an existing reservation",
		}, nil
	}

	blocked, err := s.blocked.FindOverlapping(ctx, resourceID, start, end)
	if err != nil {
		return nil, apperrors.Internal("Failed to check blocked times", err)
	}
	if len(blocked) > 0 {
		return &model.AvailabilityResult{
			IsAvailable: false,
			Message:     "The time slot falls within a blocked period",
		}, nil
	}

	return &model.AvailabilityResult{
		IsAvailable: true,
		Message:     "The time slot is available",
	}, nil
}

func (s *reservationService) GetByID(ctx context.Context, identity model.Identity, id string) (*model.Reservation, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Reservation ID cannot be empty")
	}

	reservation, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.translateRepoError(err, id)
	}

	if !identity.IsAdmin && reservation.UserID != identity.UserID {
		return nil, apperrors.Forbidden("You can only view your own reservations")
	}

	return reservation, nil
}

func (s *reservationService) GetAll(ctx context.Context, limit int, offset int64) ([]*model.Reservation, int64, error) {
	var count int64
	var reservations []*model.Reservation
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.Count(ctx)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count reservations", "error", errCount)
			errCount = apperrors.Internal("Failed to count reservations", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		reservations, errFind = s.repo.FindAll(ctx, limit, offset)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list reservations", "error", errFind)
			errFind = apperrors.Internal("Failed to retrieve reservations", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return reservations, count, nil
}

func (s *reservationService) GetMine(ctx context.Context, identity model.Identity, limit int, offset int64) ([]*model.Reservation, int64, error) {
	var count int64
	var reservations []*model.Reservation
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.CountByUser(ctx, identity.UserID)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count user reservations", "user_id", identity.UserID, "error", errCount)
			errCount = apperrors.Internal("Failed to count reservations", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		reservations, errFind = s.repo.FindByUser(ctx, identity.UserID, limit, offset)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list user reservations", "user_id", identity.UserID, "error", errFind)
			errFind = apperrors.Internal("Failed to retrieve reservations", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return reservations, count, nil
}

// --- Helpers ---

// verifyNoOverlap checks reservations first, then blocked times. The order
// is fixed so every writer observes collections the same way and deadlocks
// cannot form between concurrent transactions.
func (s *reservationService) verifyNoOverlap(ctx context.Context, resourceID string, start, end time.Time) error {
	existing, err := s.repo.FindActiveOverlapping(ctx, resourceID, start, end)
	if err != nil {
		return apperrors.Internal("Failed to check existing reservations", err)
	}
	for _, r := range existing {
		if Overlaps(r.StartTime, r.EndTime, start, end) {
			return apperrors.Conflict(fmt.Sprintf(
				"Reservation time overlaps with existing reservation (%s - %s)",
				r.StartTime.Format(time.RFC3339),
				r.EndTime.Format(time.RFC3339),
			))
		}
	}

	blocked, err := s.blocked.FindOverlapping(ctx, resourceID, start, end)
	if err != nil {
		return apperrors.Internal("Failed to check blocked times", err)
	}
	if len(blocked) > 0 {
		return apperrors.Conflict(fmt.Sprintf(
			"Reservation time falls within a blocked period (%s - %s)",
			blocked[0].StartTime.Format(time.RFC3339),
			blocked[0].EndTime.Format(time.RFC3339),
		))
	}

	return nil
}

// acquireSlotLock derives the lock ID from the slot coordinates, so two
// requests for the same resource and start time collide on insert.
func (s *reservationService) acquireSlotLock(ctx context.Context, resourceID string, startTime time.Time) (string, error) {
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

func (s *reservationService) releaseSlotLock(ctx context.Context, lockID string) error {
	return s.lockRepo.Delete(ctx, lockID)
}

func (s *reservationService) translateRepoError(err error, id string) error {
	switch {
	case errors.Is(err, reservationserrors.ErrNotFound):
		return apperrors.NotFoundWithID("Reservation", id)
	case errors.Is(err, reservationserrors.ErrInvalidID):
		return apperrors.InvalidInput("Invalid reservation ID format")
	case apperrors.IsAppError(err):
		return err
	default:
		return apperrors.Internal("Failed to retrieve reservation", err)
	}
}

func (s *reservationService) translateResourceError(err error, resourceID string) error {
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
