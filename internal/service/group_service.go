package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/edu-center-api/internal/models"
	appErrors "github.com/noah-isme/edu-center-api/pkg/errors"
)

type groupRepository interface {
	FindByID(ctx context.Context, id string) (*models.Group, error)
	GetPricing(ctx context.Context, id string) (*models.GroupPricing, error)
	List(ctx context.Context, filter models.GroupFilter) ([]models.Group, int, error)
	Create(ctx context.Context, group *models.Group) error
	Update(ctx context.Context, group *models.Group) error
}

// GroupService manages study groups and their pricing.
type GroupService struct {
	repo      groupRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewGroupService constructs GroupService.
func NewGroupService(repo groupRepository, validate *validator.Validate, logger *zap.Logger) *GroupService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GroupService{repo: repo, validator: validate, logger: logger}
}

// List returns groups with pagination metadata.
func (s *GroupService) List(ctx context.Context, filter models.GroupFilter) ([]models.Group, *models.Pagination, error) {
	groups, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list groups")
	}
	return groups, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns a group by id.
func (s *GroupService) Get(ctx context.Context, id string) (*models.Group, error) {
	group, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "group not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load group")
	}
	return group, nil
}

// GetPricing returns the billing terms of a group. Groups without a usable price yield MissingPricingData.
func (s *GroupService) GetPricing(ctx context.Context, id string) (*models.GroupPricing, error) {
	pricing, err := s.repo.GetPricing(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "group not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load group pricing")
	}
	if !pricing.MonthlyPrice.Valid || pricing.MonthlyPrice.Decimal.IsNegative() {
		return nil, appErrors.ErrMissingPricingData
	}
	return pricing, nil
}

// Create adds a group to a branch.
func (s *GroupService) Create(ctx context.Context, req models.UpsertGroupRequest) (*models.Group, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}
	group := &models.Group{BranchID: req.BranchID, MaxStudents: models.DefaultMaxStudents, Active: true}
	applyGroupRequest(group, req)
	if err := s.repo.Create(ctx, group); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create group")
	}
	return group, nil
}

// Update changes a group's name, teacher, capacity and pricing. Debt is not recomputed until the next reconciliation.
func (s *GroupService) Update(ctx context.Context, id string, req models.UpsertGroupRequest) (*models.Group, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}
	group, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if group.BranchID != req.BranchID {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "group cannot move between branches")
	}
	applyGroupRequest(group, req)
	if err := s.repo.Update(ctx, group); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update group")
	}
	return group, nil
}

func (s *GroupService) validate(req models.UpsertGroupRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid group payload")
	}
	if req.PricePerMonth != nil && req.PricePerMonth.IsNegative() {
		return appErrors.Clone(appErrors.ErrValidation, "price_per_month must not be negative")
	}
	return nil
}

func applyGroupRequest(group *models.Group, req models.UpsertGroupRequest) {
	group.Name = req.Name
	group.TeacherID = req.TeacherID
	group.LessonsPerWeek = req.LessonsPerWeek
	group.PricePerMonth = decimal.NullDecimal{}
	if req.PricePerMonth != nil {
		group.PricePerMonth = decimal.NewNullDecimal(*req.PricePerMonth)
	}
	if req.MaxStudents != nil {
		group.MaxStudents = *req.MaxStudents
	}
	if req.Active != nil {
		group.Active = *req.Active
	}
}
