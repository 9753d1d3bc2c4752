package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/big"
	"strings"
	"time"

	"league-backend/internal/events"
	"league-backend/internal/metrics"
	"league-backend/internal/models"
	"league-backend/internal/prize"
	"league-backend/internal/repository"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
)

// ============ Registry errors ============

var (
	ErrInvalidEntryFee     = errors.New("entry fee must be positive")
	ErrInvalidDuration     = errors.New("duration must be positive")
	ErrInvalidLeagueName   = errors.New("league name must not be empty")
	ErrInvalidDistribution = errors.New("prize distribution must be non-empty, all-positive and sum to 100")
)

// RegistryService creates leagues and serves the catalog
type RegistryService struct {
	leagueRepo repository.LeagueRepository
	roleRepo   repository.RoleRepository
	publisher  events.Publisher

	tokenAddress  string // stake token every league escrows
	bridgeAddress string // granted the oracle capability on each new league

	now func() time.Time
}

// NewRegistryService creates the registry service
func NewRegistryService(
	leagueRepo repository.LeagueRepository,
	roleRepo repository.RoleRepository,
	publisher events.Publisher,
	tokenAddress, bridgeAddress string,
) *RegistryService {
	return &RegistryService{
		leagueRepo:    leagueRepo,
		roleRepo:      roleRepo,
		publisher:     publisher,
		tokenAddress:  strings.ToLower(tokenAddress),
		bridgeAddress: strings.ToLower(bridgeAddress),
		now:           time.Now,
	}
}

// leagueAddress derives the deterministic 0x-hex address of a new league
// from its creator, name and a fresh nonce (last 20 bytes of the keccak hash,
// the way contract addresses are derived).
func leagueAddress(creator, name, nonce string) string {
	hash := crypto.Keccak256([]byte(creator), []byte(name), []byte(nonce))
	return "0x" + fmt.Sprintf("%x", hash[12:])
}

// CreateLeague registers a new competition. The creator becomes the league
// admin and the oracle bridge is granted score ingestion for it.
func (s *RegistryService) CreateLeague(
	ctx context.Context,
	name string,
	entryFee *big.Int,
	duration time.Duration,
	distribution []uint64,
	creator string,
) (*models.League, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrInvalidLeagueName
	}
	if entryFee == nil || entryFee.Sign() <= 0 {
		return nil, ErrInvalidEntryFee
	}
	if duration <= 0 {
		return nil, ErrInvalidDuration
	}
	if !prize.ValidateDistribution(distribution) {
		return nil, ErrInvalidDistribution
	}

	creator = strings.ToLower(creator)
	now := s.now()
	id := uuid.NewString()

	league := &models.League{
		ID:           id,
		Address:      leagueAddress(creator, name, id),
		Name:         name,
		Creator:      creator,
		TokenAddress: s.tokenAddress,
		EntryFee:     entryFee.String(),
		StartTime:    now,
		EndTime:      now.Add(duration),
		PrizePool:    "0",
		TotalClaimed: "0",
	}
	if err := league.SetDistribution(distribution); err != nil {
		return nil, fmt.Errorf("failed to encode distribution: %w", err)
	}

	if err := s.leagueRepo.Create(ctx, league); err != nil {
		return nil, fmt.Errorf("failed to create league: %w", err)
	}

	// Role seeding failures leave a league nobody can administer, so they
	// surface instead of being logged away
	roles := []*models.LeagueRole{
		{LeagueID: league.ID, Capability: models.CapabilityAdmin, Address: creator},
		{LeagueID: league.ID, Capability: models.CapabilityOracle, Address: s.bridgeAddress},
	}
	for _, role := range roles {
		if err := s.roleRepo.Grant(ctx, role); err != nil {
			return nil, fmt.Errorf("failed to seed %s role for league %s: %w", role.Capability, league.ID, err)
		}
	}

	metrics.LeagueOperations.WithLabelValues("create").Inc()
	log.Printf("✅ [Registry] Created league %s (%s) by %s, fee=%s, ends=%s",
		league.ID, league.Name, creator, league.EntryFee, league.EndTime.Format(time.RFC3339))

	s.publisher.LeagueCreated(&models.EventLeagueCreated{
		LeagueID:      league.ID,
		LeagueAddress: league.Address,
		Name:          league.Name,
		Creator:       creator,
		TokenAddress:  league.TokenAddress,
		EntryFee:      league.EntryFee,
		Distribution:  league.PrizeDistribution,
		StartTime:     league.StartTime,
		EndTime:       league.EndTime,
	})
	return league, nil
}

// ListLeagues returns one catalog page, newest first.
func (s *RegistryService) ListLeagues(ctx context.Context, offset, limit int) ([]*models.League, int64, error) {
	return s.leagueRepo.Find(ctx, offset, normalizeLimit(limit))
}

// ListByCreator returns the creator's leagues, newest first.
func (s *RegistryService) ListByCreator(ctx context.Context, creator string, offset, limit int) ([]*models.League, int64, error) {
	return s.leagueRepo.FindByCreator(ctx, creator, offset, normalizeLimit(limit))
}

// ListJoinable scans the catalog for leagues currently accepting joins.
// Full scan - the catalog stays small enough that a status index is not
// worth maintaining for a clock-derived value.
func (s *RegistryService) ListJoinable(ctx context.Context) ([]*models.League, error) {
	all, err := s.leagueRepo.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	joinable := make([]*models.League, 0)
	for _, league := range all {
		if league.Status(now) == models.LeagueStatusActive {
			joinable = append(joinable, league)
		}
	}
	return joinable, nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > 100 {
		return 20
	}
	return limit
}
