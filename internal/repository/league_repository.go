package repository

import (
	"context"
	"strings"
	"time"

	"league-backend/internal/models"

	"gorm.io/gorm"
)

// LeagueRepository defines the interface for league data access
type LeagueRepository interface {
	Create(ctx context.Context, league *models.League) error
	GetByID(ctx context.Context, id string) (*models.League, error)
	GetByAddress(ctx context.Context, address string) (*models.League, error)
	Save(ctx context.Context, league *models.League) error

	// Catalog queries for the registry surface
	Find(ctx context.Context, offset, limit int) ([]*models.League, int64, error)
	FindByCreator(ctx context.Context, creator string, offset, limit int) ([]*models.League, int64, error)
	FindAll(ctx context.Context) ([]*models.League, error)

	// FinalizeLeague persists the settlement outcome atomically: the league
	// flags and every participant's rank/claimable amount commit together.
	FinalizeLeague(ctx context.Context, league *models.League, participants []*models.Participant) error
}

// leagueRepository implements LeagueRepository
type leagueRepository struct {
	db *gorm.DB
}

// NewLeagueRepository creates a new LeagueRepository instance
func NewLeagueRepository(db *gorm.DB) LeagueRepository {
	return &leagueRepository{db: db}
}

func (r *leagueRepository) Create(ctx context.Context, league *models.League) error {
	return r.db.WithContext(ctx).Create(league).Error
}

func (r *leagueRepository) GetByID(ctx context.Context, id string) (*models.League, error) {
	var league models.League
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&league).Error
	if err != nil {
		return nil, err
	}
	return &league, nil
}

func (r *leagueRepository) GetByAddress(ctx context.Context, address string) (*models.League, error) {
	var league models.League
	err := r.db.WithContext(ctx).Where("address = ?", strings.ToLower(address)).First(&league).Error
	if err != nil {
		return nil, err
	}
	return &league, nil
}

func (r *leagueRepository) Save(ctx context.Context, league *models.League) error {
	return r.db.WithContext(ctx).Save(league).Error
}

func (r *leagueRepository) Find(ctx context.Context, offset, limit int) ([]*models.League, int64, error) {
	var leagues []*models.League
	var total int64

	query := r.db.WithContext(ctx).Model(&models.League{})
	query.Count(&total)

	err := query.Offset(offset).Limit(limit).Order("created_at DESC").Find(&leagues).Error
	if err != nil {
		return nil, 0, err
	}

	return leagues, total, nil
}

func (r *leagueRepository) FindByCreator(ctx context.Context, creator string, offset, limit int) ([]*models.League, int64, error) {
	var leagues []*models.League
	var total int64

	query := r.db.WithContext(ctx).Model(&models.League{}).
		Where("creator = ?", strings.ToLower(creator))
	query.Count(&total)

	err := query.Offset(offset).Limit(limit).Order("created_at DESC").Find(&leagues).Error
	if err != nil {
		return nil, 0, err
	}

	return leagues, total, nil
}

func (r *leagueRepository) FindAll(ctx context.Context) ([]*models.League, error) {
	var leagues []*models.League
	err := r.db.WithContext(ctx).Order("created_at ASC").Find(&leagues).Error
	if err != nil {
		return nil, err
	}
	return leagues, nil
}

func (r *leagueRepository) FinalizeLeague(ctx context.Context, league *models.League, participants []*models.Participant) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		league.UpdatedAt = time.Now()
		if err := tx.Save(league).Error; err != nil {
			return err
		}
		for _, p := range participants {
			if err := tx.Save(p).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
