package postgres

import (
	"context"

	"github.com/prepwise/prepwise/internal/models"
	"gorm.io/gorm"
)

// CatalogRepository is read-only: jobs and skills are seeded outside this
// service.
type CatalogRepository interface {
	ListJobs(ctx context.Context) ([]models.Job, error)
	ListSkills(ctx context.Context) ([]models.Skill, error)
	JobsByIDs(ctx context.Context, ids []string) ([]models.Job, error)
	SkillsByIDs(ctx context.Context, ids []string) ([]models.Skill, error)
}

type catalogRepo struct {
	db *gorm.DB
}

func NewCatalogRepo(db *gorm.DB) CatalogRepository {
	return &catalogRepo{db: db}
}

func (r *catalogRepo) ListJobs(ctx context.Context) ([]models.Job, error) {
	var out []models.Job
	err := r.db.WithContext(ctx).Order("title ASC").Find(&out).Error
	return out, err
}

func (r *catalogRepo) ListSkills(ctx context.Context) ([]models.Skill, error) {
	var out []models.Skill
	err := r.db.WithContext(ctx).Order("name ASC").Find(&out).Error
	return out, err
}

func (r *catalogRepo) JobsByIDs(ctx context.Context, ids []string) ([]models.Job, error) {
	var out []models.Job
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&out).Error
	return out, err
}

func (r *catalogRepo) SkillsByIDs(ctx context.Context, ids []string) ([]models.Skill, error) {
	var out []models.Skill
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&out).Error
	return out, err
}
