package repository

import (
	"context"
	"strings"

	"league-backend/internal/models"

	"gorm.io/gorm"
)

// ParticipantRepository defines the interface for participant data access
type ParticipantRepository interface {
	GetByLeagueAndAddress(ctx context.Context, leagueID, address string) (*models.Participant, error)
	FindByLeague(ctx context.Context, leagueID string) ([]*models.Participant, error)
	Save(ctx context.Context, participant *models.Participant) error
	SaveAll(ctx context.Context, participants []*models.Participant) error

	// AddParticipant appends a participant and updates the league pool and
	// count in one transaction. The transfer callback runs last inside the
	// transaction: if the token movement fails the bookkeeping rolls back.
	AddParticipant(ctx context.Context, league *models.League, participant *models.Participant, transfer func() error) error

	// SettleClaim zeroes the claimable amount, marks the participant claimed
	// and advances the league's running total in one transaction, then runs
	// the payout transfer inside the same transaction.
	SettleClaim(ctx context.Context, league *models.League, participant *models.Participant, transfer func() error) error

	// RemoveParticipant clears the joined flag and shrinks the pool in one
	// transaction, then runs the refund transfer inside it.
	RemoveParticipant(ctx context.Context, league *models.League, participant *models.Participant, transfer func() error) error
}

// participantRepository implements ParticipantRepository
type participantRepository struct {
	db *gorm.DB
}

// NewParticipantRepository creates a new ParticipantRepository instance
func NewParticipantRepository(db *gorm.DB) ParticipantRepository {
	return &participantRepository{db: db}
}

func (r *participantRepository) GetByLeagueAndAddress(ctx context.Context, leagueID, address string) (*models.Participant, error) {
	var participant models.Participant
	err := r.db.WithContext(ctx).
		Where("league_id = ? AND address = ?", leagueID, strings.ToLower(address)).
		First(&participant).Error
	if err != nil {
		return nil, err
	}
	return &participant, nil
}

func (r *participantRepository) FindByLeague(ctx context.Context, leagueID string) ([]*models.Participant, error) {
	var participants []*models.Participant
	err := r.db.WithContext(ctx).
		Where("league_id = ?", leagueID).
		Order("join_index ASC").
		Find(&participants).Error
	if err != nil {
		return nil, err
	}
	return participants, nil
}

func (r *participantRepository) Save(ctx context.Context, participant *models.Participant) error {
	return r.db.WithContext(ctx).Save(participant).Error
}

func (r *participantRepository) SaveAll(ctx context.Context, participants []*models.Participant) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, p := range participants {
			if err := tx.Save(p).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *participantRepository) AddParticipant(ctx context.Context, league *models.League, participant *models.Participant, transfer func() error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Save inserts on a zero ID and updates a rejoining row in place
		if err := tx.Save(participant).Error; err != nil {
			return err
		}
		if err := tx.Save(league).Error; err != nil {
			return err
		}
		return transfer()
	})
}

func (r *participantRepository) SettleClaim(ctx context.Context, league *models.League, participant *models.Participant, transfer func() error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(participant).Error; err != nil {
			return err
		}
		if err := tx.Save(league).Error; err != nil {
			return err
		}
		return transfer()
	})
}

func (r *participantRepository) RemoveParticipant(ctx context.Context, league *models.League, participant *models.Participant, transfer func() error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(participant).Error; err != nil {
			return err
		}
		if err := tx.Save(league).Error; err != nil {
			return err
		}
		return transfer()
	})
}
