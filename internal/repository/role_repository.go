package repository

import (
	"context"
	"errors"
	"strings"

	"league-backend/internal/models"

	"gorm.io/gorm"
)

// RoleRepository defines the interface for access-control data
type RoleRepository interface {
	Grant(ctx context.Context, role *models.LeagueRole) error
	// HasCapability reports whether the address holds the capability for the
	// league, either via a league-scoped grant or a global one (league_id = "").
	HasCapability(ctx context.Context, leagueID string, capability models.Capability, address string) (bool, error)
}

// roleRepository implements RoleRepository
type roleRepository struct {
	db *gorm.DB
}

// NewRoleRepository creates a new RoleRepository instance
func NewRoleRepository(db *gorm.DB) RoleRepository {
	return &roleRepository{db: db}
}

func (r *roleRepository) Grant(ctx context.Context, role *models.LeagueRole) error {
	role.Address = strings.ToLower(role.Address)
	return r.db.WithContext(ctx).Create(role).Error
}

func (r *roleRepository) HasCapability(ctx context.Context, leagueID string, capability models.Capability, address string) (bool, error) {
	var role models.LeagueRole
	err := r.db.WithContext(ctx).
		Where("capability = ? AND address = ? AND league_id IN ?",
			capability, strings.ToLower(address), []string{leagueID, ""}).
		First(&role).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
