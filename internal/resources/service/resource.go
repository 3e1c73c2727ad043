package service

import (
	"context"
	"errors"
	"sync"

	resourceserrors "reservio/internal/resources/errors"
	"reservio/internal/resources/repository"
	"reservio/internal/resources/validator"
	"reservio/pkg/config"
	apperrors "reservio/pkg/errors"
	"reservio/pkg/model"
	"reservio/pkg/sanitizer"

	"go.mongodb.org/mongo-driver/mongo"
)

type ResourceService interface {
	Create(ctx context.Context, resource *model.Resource) error
	GetByID(ctx context.Context, id string) (*model.Resource, error)
	GetAll(ctx context.Context, limit int, offset int64) ([]*model.Resource, int64, error)
	Update(ctx context.Context, id string, updates *model.ResourceUpdate) error
	Deactivate(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

type resourceService struct {
	repo      repository.ResourceRepository
	validator *validator.ResourceValidator
	cfg       *config.Config
}

func NewResourceService(
	repo repository.ResourceRepository,
	validator *validator.ResourceValidator,
	cfg *config.Config,
) ResourceService {
	return &resourceService{
		repo:      repo,
		validator: validator,
		cfg:       cfg,
	}
}

func (s *resourceService) Create(ctx context.Context, resource *model.Resource) error {
	resource.IsActive = true
	s.sanitize(resource)

	if err := s.validator.Validate(resource); err != nil {
		s.cfg.Log.Warn("Resource validation failed", "error", err)
		return apperrors.Validation("Resource validation failed", map[string]any{"error": err.Error()})
	}

	if err := s.repo.Create(ctx, resource); err != nil {
		s.cfg.Log.Error("Failed to create resource", "error", err)
		return apperrors.Internal("Failed to create resource", err)
	}

	s.cfg.Log.Info("Resource created successfully", "id", resource.ID, "name", resource.Name)
	return nil
}

func (s *resourceService) GetByID(ctx context.Context, id string) (*model.Resource, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Resource ID cannot be empty")
	}

	resource, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.translateRepoError(err, id)
	}

	return resource, nil
}

func (s *resourceService) GetAll(ctx context.Context, limit int, offset int64) ([]*model.Resource, int64, error) {
	var count int64
	var resources []*model.Resource
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.Count(ctx)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count resources", "error", errCount)
			errCount = apperrors.Internal("Failed to count resources", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		resources, errFind = s.repo.FindAll(ctx, limit, offset)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list resources", "error", errFind)
			errFind = apperrors.Internal("Failed to retrieve resources", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return resources, count, nil
}

func (s *resourceService) Update(ctx context.Context, id string, updates *model.ResourceUpdate) error {
	if id == "" {
		return apperrors.InvalidInput("Resource ID cannot be empty")
	}

	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return s.translateRepoError(err, id)
	}

	if err := s.validator.ValidateUpdate(updates); err != nil {
		s.cfg.Log.Warn("Resource update validation failed", "id", id, "error", err)
		return apperrors.Validation("Invalid update input", map[string]any{"error": err.Error()})
	}

	merged := s.mergeUpdates(existing, updates)
	s.sanitize(merged)

	if err := s.validator.Validate(merged); err != nil {
		return apperrors.Validation("Resource validation failed", map[string]any{"error": err.Error()})
	}

	if err := s.repo.Update(ctx, id, merged); err != nil {
		if errors.Is(err, resourceserrors.ErrNotFound) {
			return apperrors.NotFoundWithID("Resource", id)
		}
		s.cfg.Log.Error("Failed to update resource", "id", id, "error", err)
		return apperrors.Internal("Failed to update resource", err)
	}

	s.cfg.Log.Info("Resource updated successfully", "id", id)
	return nil
}

// Deactivate stops a resource from accepting new reservations without
// touching the ones it already has.
func (s *resourceService) Deactivate(ctx context.Context, id string) error {
	if id == "" {
		return apperrors.InvalidInput("Resource ID cannot be empty")
	}

	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return s.translateRepoError(err, id)
	}

	if !existing.IsActive {
		return apperrors.Conflict("Resource is already inactive")
	}

	existing.IsActive = false
	if err := s.repo.Update(ctx, id, existing); err != nil {
		s.cfg.Log.Error("Failed to deactivate resource", "id", id, "error", err)
		return apperrors.Internal("Failed to deactivate resource", err)
	}

	s.cfg.Log.Info("Resource deactivated", "id", id)
	return nil
}

// Delete removes the resource and everything attached to it in one
// transaction, so a failure midway leaves no orphaned reservations.
func (s *resourceService) Delete(ctx context.Context, id string) error {
	if id == "" {
		return apperrors.InvalidInput("Resource ID cannot be empty")
	}

	var deletedReservations, deletedBlocked int64
	err := s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if err := s.repo.Delete(sessCtx, id); err != nil {
			return s.translateRepoError(err, id)
		}

		var err error
		deletedReservations, err = s.repo.DeleteReservationsByResource(sessCtx, id)
		if err != nil {
			return apperrors.Internal("Failed to delete reservations for resource", err)
		}

		deletedBlocked, err = s.repo.DeleteBlockedTimesByResource(sessCtx, id)
		if err != nil {
			return apperrors.Internal("Failed to delete blocked times for resource", err)
		}

		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to delete resource", "id", id, "error", err)
		return err
	}

	s.cfg.Log.Info("Resource deleted successfully",
		"id", id,
		"deleted_reservations", deletedReservations,
		"deleted_blocked_times", deletedBlocked,
	)
	return nil
}

func (s *resourceService) sanitize(resource *model.Resource) {
	resource.Name = sanitizer.SanitizeLabel(resource.Name)
	resource.Description = sanitizer.SanitizeFreeText(resource.Description)
}

func (s *resourceService) mergeUpdates(existing *model.Resource, updates *model.ResourceUpdate) *model.Resource {
	merged := *existing

	if updates.Name != "" {
		merged.Name = updates.Name
	}
	if updates.Description != "" {
		merged.Description = updates.Description
	}
	if updates.IsActive != nil {
		merged.IsActive = *updates.IsActive
	}

	return &merged
}

func (s *resourceService) translateRepoError(err error, id string) error {
	switch {
	case errors.Is(err, resourceserrors.ErrNotFound):
		return apperrors.NotFoundWithID("Resource", id)
	case errors.Is(err, resourceserrors.ErrInvalidID):
		return apperrors.InvalidInput("Invalid resource ID format")
	case apperrors.IsAppError(err):
		return err
	default:
		return apperrors.Internal("Failed to retrieve resource", err)
	}
}
