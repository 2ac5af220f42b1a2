package services

import (
	"context"
	"time"

	"github.com/prepwise/prepwise/internal/cache"
	"github.com/prepwise/prepwise/internal/models"
	pgrepo "github.com/prepwise/prepwise/internal/repositories/postgres"
	"github.com/prepwise/prepwise/internal/utils"
)

const catalogCacheTTL = 10 * time.Minute

// CatalogService serves the read-only job/skill selection lists. The lists
// change rarely, so they sit behind a short Redis cache.
type CatalogService interface {
	ListJobs(ctx context.Context) ([]models.Job, error)
	ListSkills(ctx context.Context) ([]models.Skill, error)
}

type catalogService struct {
	repo  pgrepo.CatalogRepository
	cache cache.Cache
}

func NewCatalogService(repo pgrepo.CatalogRepository, c cache.Cache) CatalogService {
	return &catalogService{repo: repo, cache: c}
}

func (s *catalogService) ListJobs(ctx context.Context) ([]models.Job, error) {
	const op = "CatalogService.ListJobs"

	var cached []models.Job
	if s.cache != nil {
		if hit, _ := s.cache.GetJSON(ctx, "catalog:jobs", &cached); hit {
			return cached, nil
		}
	}

	out, err := s.repo.ListJobs(ctx)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list jobs", err)
	}

	if s.cache != nil {
		_ = s.cache.SetJSON(ctx, "catalog:jobs", out, catalogCacheTTL)
	}
	return out, nil
}

func (s *catalogService) ListSkills(ctx context.Context) ([]models.Skill, error) {
	const op = "CatalogService.ListSkills"

	var cached []models.Skill
	if s.cache != nil {
		if hit, _ := s.cache.GetJSON(ctx, "catalog:skills", &cached); hit {
			return cached, nil
		}
	}

	out, err := s.repo.ListSkills(ctx)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list skills", err)
	}

	if s.cache != nil {
		_ = s.cache.SetJSON(ctx, "catalog:skills", out, catalogCacheTTL)
	}
	return out, nil
}
