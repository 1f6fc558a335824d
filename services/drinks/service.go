package drinks

import (
	"context"
	"errors"

	"github.com/arthurmvo/Coffee-Shop/models"
	"github.com/arthurmvo/Coffee-Shop/repositories"
	"github.com/arthurmvo/Coffee-Shop/services"
	"github.com/arthurmvo/Coffee-Shop/utils"
	"go.uber.org/zap"
)

// CreateInput is the body of a new drink
type CreateInput struct {
	Title  string        `json:"title" validate:"required,max=80"`
	Recipe models.Recipe `json:"recipe" validate:"required,min=1,dive"`
}

// UpdateInput holds the fields a patch may change. Zero values leave the
// stored field as it is.
type UpdateInput struct {
	Title  string        `json:"title" validate:"max=80"`
	Recipe models.Recipe `json:"recipe" validate:"omitempty,dive"`
}

// Service implements the drink use cases
type Service struct {
	repo   repositories.DrinkRepository
	txMgr  repositories.TransactionManager
	logger *zap.Logger
}

// NewService creates a new drink service
func NewService(repo repositories.DrinkRepository, txMgr repositories.TransactionManager, logger *zap.Logger) *Service {
	return &Service{
		repo:   repo,
		txMgr:  txMgr,
		logger: logger,
	}
}

// List returns every drink ordered by id
func (s *Service) List(ctx context.Context) ([]*models.Drink, error) {
	drinks, err := s.repo.List(ctx)
	if err != nil {
		return nil, s.translate(err, "failed to list drinks")
	}
	return drinks, nil
}

// Create validates and stores a new drink
func (s *Service) Create(ctx context.Context, in CreateInput) (*models.Drink, error) {
	if err := utils.ValidateStruct(&in); err != nil {
		return nil, invalidInput(err)
	}

	drink := models.NewDrink(in.Title, in.Recipe)
	if err := s.repo.Create(ctx, drink); err != nil {
		return nil, s.translate(err, "failed to create drink")
	}

	s.logger.Info("drink created",
		zap.Int64("drink_id", drink.ID),
		zap.String("title", drink.Title))
	return drink, nil
}

// Update applies a partial update to the drink with the given id
func (s *Service) Update(ctx context.Context, id int64, in UpdateInput) (*models.Drink, error) {
	if err := utils.ValidateStruct(&in); err != nil {
		return nil, invalidInput(err)
	}

	drink, err := services.WithTransactionResult(ctx, s.txMgr, func(ctx context.Context, _ repositories.Transaction) (*models.Drink, error) {
		drink, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}

		if in.Title != "" {
			drink.Title = in.Title
		}
		if len(in.Recipe) > 0 {
			drink.Recipe = in.Recipe
		}

		if err := s.repo.Update(ctx, drink); err != nil {
			return nil, err
		}
		return drink, nil
	})
	if err != nil {
		return nil, s.translate(err, "failed to update drink")
	}

	s.logger.Info("drink updated", zap.Int64("drink_id", drink.ID))
	return drink, nil
}

// Delete removes the drink with the given id
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return s.translate(err, "failed to delete drink")
	}

	s.logger.Info("drink deleted", zap.Int64("drink_id", id))
	return nil
}

func invalidInput(err error) error {
	domainErr := services.NewDomainError(services.ErrorTypeValidation, "invalid input", err)
	for field, msg := range utils.GetValidationFields(err) {
		domainErr.WithDetail(field, msg)
	}
	return domainErr
}

// translate maps repository errors onto the domain taxonomy
func (s *Service) translate(err error, message string) error {
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		return services.NewDomainError(services.ErrorTypeNotFound, "drink not found", err)
	case errors.Is(err, repositories.ErrDuplicate):
		return services.NewDomainError(services.ErrorTypeConflict, "drink title already exists", err)
	default:
		s.logger.Error(message, zap.Error(err))
		return services.WrapInternal(message, err)
	}
}
