package repository

import (
	"context"
	"errors"
	"time"

	"league-backend/internal/models"

	"gorm.io/gorm"
)

// ErrRequestNotFound signals an unknown or already consumed request ID
var ErrRequestNotFound = errors.New("oracle request not found")

// OracleRepository defines the interface for oracle bridge state
type OracleRepository interface {
	CreateRequest(ctx context.Context, request *models.OracleRequest) error
	// ConsumeRequest removes the pending row and returns it. A second call
	// with the same ID fails with ErrRequestNotFound, which is what makes a
	// duplicate fulfillment rejectable.
	ConsumeRequest(ctx context.Context, requestID string) (*models.OracleRequest, error)
	GetPendingByLeague(ctx context.Context, leagueID string) (*models.OracleRequest, error)
	CountPending(ctx context.Context) (int64, error)

	GetLeagueState(ctx context.Context, leagueID string) (*models.OracleLeagueState, error)
	SetLastSuccessfulUpdate(ctx context.Context, leagueID string, at time.Time) error

	GetConfig(ctx context.Context, key string) (*models.OracleConfig, error)
	SetConfig(ctx context.Context, cfg *models.OracleConfig) error
}

// oracleRepository implements OracleRepository
type oracleRepository struct {
	db *gorm.DB
}

// NewOracleRepository creates a new OracleRepository instance
func NewOracleRepository(db *gorm.DB) OracleRepository {
	return &oracleRepository{db: db}
}

func (r *oracleRepository) CreateRequest(ctx context.Context, request *models.OracleRequest) error {
	return r.db.WithContext(ctx).Create(request).Error
}

func (r *oracleRepository) ConsumeRequest(ctx context.Context, requestID string) (*models.OracleRequest, error) {
	var request models.OracleRequest
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("request_id = ?", requestID).First(&request).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRequestNotFound
			}
			return err
		}
		return tx.Delete(&models.OracleRequest{}, "request_id = ?", requestID).Error
	})
	if err != nil {
		return nil, err
	}
	return &request, nil
}

func (r *oracleRepository) GetPendingByLeague(ctx context.Context, leagueID string) (*models.OracleRequest, error) {
	var request models.OracleRequest
	err := r.db.WithContext(ctx).Where("league_id = ?", leagueID).First(&request).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &request, nil
}

func (r *oracleRepository) CountPending(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.OracleRequest{}).Count(&count).Error
	return count, err
}

func (r *oracleRepository) GetLeagueState(ctx context.Context, leagueID string) (*models.OracleLeagueState, error) {
	var state models.OracleLeagueState
	err := r.db.WithContext(ctx).Where("league_id = ?", leagueID).First(&state).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Never updated - zero timestamp keeps the rate limit open
			return &models.OracleLeagueState{LeagueID: leagueID}, nil
		}
		return nil, err
	}
	return &state, nil
}

func (r *oracleRepository) SetLastSuccessfulUpdate(ctx context.Context, leagueID string, at time.Time) error {
	state := models.OracleLeagueState{
		LeagueID:             leagueID,
		LastSuccessfulUpdate: at,
		UpdatedAt:            at,
	}
	return r.db.WithContext(ctx).Save(&state).Error
}

func (r *oracleRepository) GetConfig(ctx context.Context, key string) (*models.OracleConfig, error) {
	var cfg models.OracleConfig
	err := r.db.WithContext(ctx).Where("config_key = ?", key).First(&cfg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &cfg, nil
}

func (r *oracleRepository) SetConfig(ctx context.Context, cfg *models.OracleConfig) error {
	return r.db.WithContext(ctx).Save(cfg).Error
}
