package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/noah-isme/edu-center-api/internal/models"
)

const groupColumns = `id, branch_id, name, teacher_id, price_per_month, lessons_per_week, max_students, active, created_at, updated_at`

// GroupRepository persists study groups and their pricing.
type GroupRepository struct {
	db DBTX
}

// NewGroupRepository constructs a GroupRepository.
func NewGroupRepository(db DBTX) *GroupRepository {
	return &GroupRepository{db: db}
}

// FindByID returns a group by ID.
func (r *GroupRepository) FindByID(ctx context.Context, id string) (*models.Group, error) {
	query := `SELECT ` + groupColumns + ` FROM study_groups WHERE id = $1`
	var group models.Group
	if err := r.db.GetContext(ctx, &group, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find group: %w", err)
	}
	return &group, nil
}

// GetPricing returns the billing view of a group.
func (r *GroupRepository) GetPricing(ctx context.Context, id string) (*models.GroupPricing, error) {
	const query = `SELECT id, price_per_month, lessons_per_week FROM study_groups WHERE id = $1`
	var pricing models.GroupPricing
	if err := r.db.GetContext(ctx, &pricing, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get group pricing: %w", err)
	}
	return &pricing, nil
}

// List returns groups matching the filter.
func (r *GroupRepository) List(ctx context.Context, filter models.GroupFilter) ([]models.Group, int, error) {
	var conditions []string
	var args []interface{}

	if filter.BranchID != "" {
		conditions = append(conditions, fmt.Sprintf("branch_id = $%d", len(args)+1))
		args = append(args, filter.BranchID)
	}
	if filter.BranchIDs != nil {
		conditions = append(conditions, fmt.Sprintf("branch_id = ANY($%d)", len(args)+1))
		args = append(args, pq.Array(filter.BranchIDs))
	}
	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(name) LIKE $%d", len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}
	limit, offset := paginate(filter.Page, filter.PageSize)

	query := fmt.Sprintf("SELECT %s FROM study_groups%s ORDER BY name ASC LIMIT %d OFFSET %d", groupColumns, clause, limit, offset)
	var groups []models.Group
	if err := r.db.SelectContext(ctx, &groups, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list groups: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM study_groups"+clause, args...); err != nil {
		return nil, 0, fmt.Errorf("count groups: %w", err)
	}
	return groups, total, nil
}

// Create inserts a group.
func (r *GroupRepository) Create(ctx context.Context, group *models.Group) error {
	if group.ID == "" {
		group.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if group.MaxStudents == 0 {
		group.MaxStudents = models.DefaultMaxStudents
	}
	group.CreatedAt = now
	group.UpdatedAt = now
	const query = `INSERT INTO study_groups (id, branch_id, name, teacher_id, price_per_month, lessons_per_week, max_students, active, created_at, updated_at)
        VALUES (:id, :branch_id, :name, :teacher_id, :price_per_month, :lessons_per_week, :max_students, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, group); err != nil {
		return fmt.Errorf("create group: %w", err)
	}
	return nil
}

// Update overwrites the mutable fields of a group.
func (r *GroupRepository) Update(ctx context.Context, group *models.Group) error {
	group.UpdatedAt = time.Now().UTC()
	const query = `UPDATE study_groups SET name = :name, teacher_id = :teacher_id, price_per_month = :price_per_month,
        lessons_per_week = :lessons_per_week, max_students = :max_students, active = :active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, group); err != nil {
		return fmt.Errorf("update group: %w", err)
	}
	return nil
}
