package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/big"
	"sort"
	"strings"
	"sync"
	"time"

	"league-backend/internal/clients"
	"league-backend/internal/events"
	"league-backend/internal/metrics"
	"league-backend/internal/models"
	"league-backend/internal/prize"
	"league-backend/internal/repository"

	"github.com/ethereum/go-ethereum/common"
	"gorm.io/gorm"
)

// ============ League operation errors ============

var (
	ErrLeagueNotFound      = errors.New("league not found")
	ErrAlreadyJoined       = errors.New("participant has already joined")
	ErrLeagueNotStarted    = errors.New("league has not started")
	ErrLeagueEnded         = errors.New("league has ended")
	ErrLeagueCancelled     = errors.New("league is cancelled")
	ErrInvalidScoresLength = errors.New("participants and scores length mismatch")
	ErrLeagueNotEnded      = errors.New("league has not ended")
	ErrLeagueFinalized     = errors.New("league is finalized")
	ErrScoresNotReady      = errors.New("scores have not been updated")
	ErrAlreadyFinalized    = errors.New("league is already finalized")
	ErrNotFinalized        = errors.New("league is not finalized")
	ErrNoClaimableWinnings = errors.New("no claimable winnings")
	ErrAlreadyPaused       = errors.New("league is already paused")
	ErrNotPaused           = errors.New("league is not paused")
	ErrNotJoined           = errors.New("participant has not joined")
	ErrNotAuthorized       = errors.New("caller lacks the required role")
)

// WinnerEntry is one row of the settlement breakdown carried by the
// LeagueFinalized event
type WinnerEntry struct {
	Address string `json:"address"`
	Rank    int    `json:"rank"`
	Score   uint64 `json:"score"`
	Amount  string `json:"amount"`
}

// leagueLocks hands out one mutex per league so value-moving operations
// (join, claim, emergency withdraw) serialize per league, not globally
type leagueLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newLeagueLocks() *leagueLocks {
	return &leagueLocks{locks: make(map[string]*sync.Mutex)}
}

func (l *leagueLocks) get(leagueID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	lock, ok := l.locks[leagueID]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[leagueID] = lock
	}
	return lock
}

// LeagueService implements the league lifecycle: joining, score ingestion,
// settlement, pull-payment claims and the administrative pause path
type LeagueService struct {
	leagueRepo      repository.LeagueRepository
	participantRepo repository.ParticipantRepository
	roleRepo        repository.RoleRepository
	token           clients.TokenTransferor
	publisher       events.Publisher
	locks           *leagueLocks
	now             func() time.Time
}

// NewLeagueService creates the league service
func NewLeagueService(
	leagueRepo repository.LeagueRepository,
	participantRepo repository.ParticipantRepository,
	roleRepo repository.RoleRepository,
	token clients.TokenTransferor,
	publisher events.Publisher,
) *LeagueService {
	return &LeagueService{
		leagueRepo:      leagueRepo,
		participantRepo: participantRepo,
		roleRepo:        roleRepo,
		token:           token,
		publisher:       publisher,
		locks:           newLeagueLocks(),
		now:             time.Now,
	}
}

func (s *LeagueService) getLeague(ctx context.Context, leagueID string) (*models.League, error) {
	league, err := s.leagueRepo.GetByID(ctx, leagueID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLeagueNotFound
		}
		return nil, fmt.Errorf("failed to load league %s: %w", leagueID, err)
	}
	return league, nil
}

func (s *LeagueService) isAdmin(ctx context.Context, league *models.League, caller string) (bool, error) {
	if strings.EqualFold(league.Creator, caller) {
		return true, nil
	}
	return s.roleRepo.HasCapability(ctx, league.ID, models.CapabilityAdmin, caller)
}

func reject(operation, reason string, err error) error {
	metrics.LeagueOperationRejections.WithLabelValues(operation, reason).Inc()
	return err
}

// ============ Join ============

// Join stakes the caller into an active league. The entry fee moves via a
// pre-authorized transferFrom; the pool bookkeeping and the transfer commit
// or roll back together.
func (s *LeagueService) Join(ctx context.Context, leagueID, caller string) error {
	lock := s.locks.get(leagueID)
	lock.Lock()
	defer lock.Unlock()

	caller = strings.ToLower(caller)

	league, err := s.getLeague(ctx, leagueID)
	if err != nil {
		return err
	}

	switch league.Status(s.now()) {
	case models.LeagueStatusActive:
		// joinable
	case models.LeagueStatusNotStarted:
		return reject("join", "not_started", ErrLeagueNotStarted)
	case models.LeagueStatusCancelled:
		return reject("join", "cancelled", ErrLeagueCancelled)
	default:
		return reject("join", "ended", ErrLeagueEnded)
	}

	all, err := s.participantRepo.FindByLeague(ctx, leagueID)
	if err != nil {
		return fmt.Errorf("failed to load participants: %w", err)
	}

	// A withdrawn participant keeps its row (and join index) and may rejoin
	var participant *models.Participant
	for _, p := range all {
		if p.Address == caller {
			if p.Joined {
				return reject("join", "already_joined", ErrAlreadyJoined)
			}
			participant = p
			break
		}
	}
	if participant == nil {
		participant = &models.Participant{
			LeagueID:        leagueID,
			Address:         caller,
			JoinIndex:       len(all),
			ClaimableAmount: "0",
		}
	}
	participant.Joined = true

	fee := league.EntryFeeAmount()
	league.PrizePool = new(big.Int).Add(league.PoolAmount(), fee).String()
	league.ParticipantCount++

	err = s.participantRepo.AddParticipant(ctx, league, participant, func() error {
		return s.token.TransferFrom(ctx, common.HexToAddress(caller), fee)
	})
	if err != nil {
		log.Printf("❌ [League] Join failed for %s in league %s: %v", caller, leagueID, err)
		return reject("join", "transfer_failed", fmt.Errorf("join failed: %w", err))
	}

	metrics.LeagueOperations.WithLabelValues("join").Inc()
	log.Printf("✅ [League] %s joined league %s (pool=%s, participants=%d)",
		caller, leagueID, league.PrizePool, league.ParticipantCount)

	s.publisher.ParticipantJoined(&models.EventParticipantJoined{
		LeagueID:         leagueID,
		Participant:      caller,
		EntryFee:         league.EntryFee,
		ParticipantCount: league.ParticipantCount,
		PrizePool:        league.PrizePool,
	})
	return nil
}

// ============ Score ingestion ============

// IngestScores overwrites the named participants' scores with the reported
// values. Only an ended, non-finalized league accepts scores, and the
// operation is repeatable until finalization (last write wins). requestID
// ties the ingestion to an oracle request, empty for direct admin ingestion.
func (s *LeagueService) IngestScores(ctx context.Context, leagueID string, addresses []string, scores []uint64, caller, requestID string) (int, error) {
	allowed, err := s.roleRepo.HasCapability(ctx, leagueID, models.CapabilityOracle, caller)
	if err != nil {
		return 0, fmt.Errorf("role check failed: %w", err)
	}
	if !allowed {
		return 0, reject("ingest_scores", "not_authorized", ErrNotAuthorized)
	}
	if len(addresses) != len(scores) {
		return 0, reject("ingest_scores", "length_mismatch", ErrInvalidScoresLength)
	}

	league, err := s.getLeague(ctx, leagueID)
	if err != nil {
		return 0, err
	}
	if league.Finalized {
		return 0, reject("ingest_scores", "finalized", ErrLeagueFinalized)
	}
	if s.now().Before(league.EndTime) {
		return 0, reject("ingest_scores", "not_ended", ErrLeagueNotEnded)
	}

	participants, err := s.participantRepo.FindByLeague(ctx, leagueID)
	if err != nil {
		return 0, fmt.Errorf("failed to load participants: %w", err)
	}
	byAddress := make(map[string]*models.Participant, len(participants))
	for _, p := range participants {
		byAddress[p.Address] = p
	}

	updated := make([]*models.Participant, 0, len(addresses))
	for i, address := range addresses {
		p, ok := byAddress[strings.ToLower(address)]
		if !ok {
			log.Printf("⚠️ [League] Score reported for unknown address %s in league %s, skipping", address, leagueID)
			continue
		}
		p.Score = scores[i]
		p.ScoreReported = true
		updated = append(updated, p)
	}

	if err := s.participantRepo.SaveAll(ctx, updated); err != nil {
		return 0, fmt.Errorf("failed to save scores: %w", err)
	}
	league.ScoresUpdated = true
	if err := s.leagueRepo.Save(ctx, league); err != nil {
		return 0, fmt.Errorf("failed to save league: %w", err)
	}

	metrics.LeagueOperations.WithLabelValues("ingest_scores").Inc()
	log.Printf("✅ [League] Applied %d/%d scores to league %s", len(updated), len(addresses), leagueID)

	s.publisher.ScoresUpdated(&models.EventScoresUpdated{
		LeagueID:      leagueID,
		RequestID:     requestID,
		ScoresApplied: len(updated),
	})
	return len(updated), nil
}

// ============ Finalization ============

// Finalize settles an ended league: ranks every joined participant by
// (score desc, join order asc) and allocates the pool across the prize
// distribution by floor division.
func (s *LeagueService) Finalize(ctx context.Context, leagueID, caller string) error {
	league, err := s.getLeague(ctx, leagueID)
	if err != nil {
		return err
	}
	admin, err := s.isAdmin(ctx, league, caller)
	if err != nil {
		return fmt.Errorf("role check failed: %w", err)
	}
	if !admin {
		return reject("finalize", "not_authorized", ErrNotAuthorized)
	}
	if league.Finalized {
		return reject("finalize", "already_finalized", ErrAlreadyFinalized)
	}
	if league.Paused {
		return reject("finalize", "cancelled", ErrLeagueCancelled)
	}
	if s.now().Before(league.EndTime) {
		return reject("finalize", "not_ended", ErrLeagueNotEnded)
	}
	if !league.ScoresUpdated {
		return reject("finalize", "scores_not_ready", ErrScoresNotReady)
	}

	all, err := s.participantRepo.FindByLeague(ctx, leagueID)
	if err != nil {
		return fmt.Errorf("failed to load participants: %w", err)
	}
	joined := make([]*models.Participant, 0, len(all))
	for _, p := range all {
		if p.Joined {
			joined = append(joined, p)
		}
	}

	// FindByLeague returns join order, so the stable sort breaks score ties
	// in favor of the earlier joiner
	sort.SliceStable(joined, func(i, j int) bool {
		return joined[i].Score > joined[j].Score
	})

	distribution, err := league.Distribution()
	if err != nil {
		return fmt.Errorf("corrupt prize distribution for league %s: %w", leagueID, err)
	}
	amounts, err := prize.CalculatePrizes(league.PoolAmount(), distribution)
	if err != nil {
		return fmt.Errorf("prize calculation failed: %w", err)
	}
	winnerCount := prize.EffectiveWinnerCount(len(distribution), len(joined))

	winners := make([]WinnerEntry, 0, winnerCount)
	for i, p := range joined {
		p.Rank = i + 1
		if i < winnerCount {
			p.ClaimableAmount = amounts[i].String()
			winners = append(winners, WinnerEntry{
				Address: p.Address,
				Rank:    p.Rank,
				Score:   p.Score,
				Amount:  p.ClaimableAmount,
			})
		}
	}
	league.Finalized = true

	if err := s.leagueRepo.FinalizeLeague(ctx, league, joined); err != nil {
		return fmt.Errorf("failed to persist finalization: %w", err)
	}

	metrics.LeagueOperations.WithLabelValues("finalize").Inc()
	log.Printf("✅ [League] Finalized league %s: %d participants, %d winners, pool=%s",
		leagueID, len(joined), winnerCount, league.PrizePool)

	winnersJSON, _ := json.Marshal(winners)
	s.publisher.LeagueFinalized(&models.EventLeagueFinalized{
		LeagueID:  leagueID,
		PrizePool: league.PrizePool,
		Winners:   string(winnersJSON),
	})
	return nil
}

// ============ Claims ============

// ClaimPrize pays out the caller's claimable winnings. The claimable amount
// is zeroed before the token leaves custody, so a crashed transfer can under-
// pay but never double-pay.
func (s *LeagueService) ClaimPrize(ctx context.Context, leagueID, caller string) (*big.Int, error) {
	lock := s.locks.get(leagueID)
	lock.Lock()
	defer lock.Unlock()

	caller = strings.ToLower(caller)

	league, err := s.getLeague(ctx, leagueID)
	if err != nil {
		return nil, err
	}
	if !league.Finalized {
		return nil, reject("claim", "not_finalized", ErrNotFinalized)
	}

	participant, err := s.participantRepo.GetByLeagueAndAddress(ctx, leagueID, caller)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, reject("claim", "nothing_claimable", ErrNoClaimableWinnings)
		}
		return nil, fmt.Errorf("failed to load participant: %w", err)
	}

	amount := participant.ClaimableBig()
	if amount.Sign() == 0 {
		return nil, reject("claim", "nothing_claimable", ErrNoClaimableWinnings)
	}

	participant.ClaimableAmount = "0"
	participant.Claimed = true
	totalClaimed, ok := new(big.Int).SetString(league.TotalClaimed, 10)
	if !ok {
		totalClaimed = new(big.Int)
	}
	league.TotalClaimed = new(big.Int).Add(totalClaimed, amount).String()

	err = s.participantRepo.SettleClaim(ctx, league, participant, func() error {
		return s.token.Transfer(ctx, common.HexToAddress(caller), amount)
	})
	if err != nil {
		log.Printf("❌ [League] Claim failed for %s in league %s: %v", caller, leagueID, err)
		return nil, reject("claim", "transfer_failed", fmt.Errorf("claim failed: %w", err))
	}

	metrics.LeagueOperations.WithLabelValues("claim").Inc()
	metrics.PrizesClaimed.Inc()
	log.Printf("✅ [League] %s claimed %s from league %s", caller, amount.String(), leagueID)

	s.publisher.PrizeClaimed(&models.EventPrizeClaimed{
		LeagueID:     leagueID,
		Participant:  caller,
		Amount:       amount.String(),
		TotalClaimed: league.TotalClaimed,
	})
	return amount, nil
}

// ============ Emergency withdraw ============

// EmergencyWithdraw refunds exactly the entry fee to a joined participant of
// a paused, non-finalized league and removes them from the pool.
func (s *LeagueService) EmergencyWithdraw(ctx context.Context, leagueID, caller string) error {
	lock := s.locks.get(leagueID)
	lock.Lock()
	defer lock.Unlock()

	caller = strings.ToLower(caller)

	league, err := s.getLeague(ctx, leagueID)
	if err != nil {
		return err
	}
	if league.Finalized {
		return reject("emergency_withdraw", "finalized", ErrLeagueFinalized)
	}
	if !league.Paused {
		return reject("emergency_withdraw", "not_paused", ErrNotPaused)
	}

	participant, err := s.participantRepo.GetByLeagueAndAddress(ctx, leagueID, caller)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return reject("emergency_withdraw", "not_joined", ErrNotJoined)
		}
		return fmt.Errorf("failed to load participant: %w", err)
	}
	if !participant.Joined {
		return reject("emergency_withdraw", "not_joined", ErrNotJoined)
	}

	fee := league.EntryFeeAmount()
	participant.Joined = false
	league.PrizePool = new(big.Int).Sub(league.PoolAmount(), fee).String()
	league.ParticipantCount--

	err = s.participantRepo.RemoveParticipant(ctx, league, participant, func() error {
		return s.token.Transfer(ctx, common.HexToAddress(caller), fee)
	})
	if err != nil {
		log.Printf("❌ [League] Emergency withdraw failed for %s in league %s: %v", caller, leagueID, err)
		return reject("emergency_withdraw", "transfer_failed", fmt.Errorf("emergency withdraw failed: %w", err))
	}

	metrics.LeagueOperations.WithLabelValues("emergency_withdraw").Inc()
	log.Printf("✅ [League] %s withdrew %s from paused league %s", caller, fee.String(), leagueID)

	s.publisher.EmergencyWithdrawn(&models.EventEmergencyWithdrawn{
		LeagueID:    leagueID,
		Participant: caller,
		Amount:      fee.String(),
	})
	return nil
}

// ============ Pause / Unpause ============

// Pause halts a non-finalized league. While paused the league reports the
// cancelled status and participants may emergency-withdraw.
func (s *LeagueService) Pause(ctx context.Context, leagueID, caller string) error {
	return s.setPaused(ctx, leagueID, caller, true)
}

// Unpause lifts an administrative halt.
func (s *LeagueService) Unpause(ctx context.Context, leagueID, caller string) error {
	return s.setPaused(ctx, leagueID, caller, false)
}

func (s *LeagueService) setPaused(ctx context.Context, leagueID, caller string, paused bool) error {
	operation := "pause"
	eventType := models.EventTypeLeaguePaused
	if !paused {
		operation = "unpause"
		eventType = models.EventTypeLeagueUnpaused
	}

	league, err := s.getLeague(ctx, leagueID)
	if err != nil {
		return err
	}
	admin, err := s.isAdmin(ctx, league, caller)
	if err != nil {
		return fmt.Errorf("role check failed: %w", err)
	}
	if !admin {
		return reject(operation, "not_authorized", ErrNotAuthorized)
	}
	if league.Finalized {
		return reject(operation, "finalized", ErrAlreadyFinalized)
	}
	if paused && league.Paused {
		return reject(operation, "already_paused", ErrAlreadyPaused)
	}
	if !paused && !league.Paused {
		return reject(operation, "not_paused", ErrNotPaused)
	}

	league.Paused = paused
	if err := s.leagueRepo.Save(ctx, league); err != nil {
		return fmt.Errorf("failed to save league: %w", err)
	}

	metrics.LeagueOperations.WithLabelValues(operation).Inc()
	log.Printf("🔧 [League] League %s %sd by %s", leagueID, operation, caller)

	s.publisher.LeagueAdmin(&models.EventLeagueAdmin{
		LeagueID:  leagueID,
		EventType: eventType,
		Caller:    strings.ToLower(caller),
	})
	return nil
}

// ============ Views ============

// GetLeague returns the league row for read-only surfaces.
func (s *LeagueService) GetLeague(ctx context.Context, leagueID string) (*models.League, error) {
	return s.getLeague(ctx, leagueID)
}

// GetLeagueByAddress resolves a league by its deterministic address.
func (s *LeagueService) GetLeagueByAddress(ctx context.Context, address string) (*models.League, error) {
	league, err := s.leagueRepo.GetByAddress(ctx, address)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLeagueNotFound
		}
		return nil, fmt.Errorf("failed to load league %s: %w", address, err)
	}
	return league, nil
}

// LeagueStatus derives the lifecycle status at the current instant.
func (s *LeagueService) LeagueStatus(ctx context.Context, leagueID string) (models.LeagueStatus, error) {
	league, err := s.getLeague(ctx, leagueID)
	if err != nil {
		return "", err
	}
	return league.Status(s.now()), nil
}

// TimeRemaining reports the time until the competition window closes.
func (s *LeagueService) TimeRemaining(ctx context.Context, leagueID string) (time.Duration, error) {
	league, err := s.getLeague(ctx, leagueID)
	if err != nil {
		return 0, err
	}
	return league.TimeRemaining(s.now()), nil
}

// GetParticipants lists the league members in join order.
func (s *LeagueService) GetParticipants(ctx context.Context, leagueID string) ([]*models.Participant, error) {
	if _, err := s.getLeague(ctx, leagueID); err != nil {
		return nil, err
	}
	return s.participantRepo.FindByLeague(ctx, leagueID)
}

// GetParticipant returns one member's staking and settlement state.
func (s *LeagueService) GetParticipant(ctx context.Context, leagueID, address string) (*models.Participant, error) {
	participant, err := s.participantRepo.GetByLeagueAndAddress(ctx, leagueID, strings.ToLower(address))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotJoined
		}
		return nil, fmt.Errorf("failed to load participant: %w", err)
	}
	return participant, nil
}

// PrizeBreakdown computes the per-tier payout amounts for the current pool.
func (s *LeagueService) PrizeBreakdown(ctx context.Context, leagueID string) ([]string, error) {
	league, err := s.getLeague(ctx, leagueID)
	if err != nil {
		return nil, err
	}
	distribution, err := league.Distribution()
	if err != nil {
		return nil, fmt.Errorf("corrupt prize distribution for league %s: %w", leagueID, err)
	}
	amounts, err := prize.CalculatePrizes(league.PoolAmount(), distribution)
	if err != nil {
		return nil, err
	}
	breakdown := make([]string, len(amounts))
	for i, amount := range amounts {
		breakdown[i] = amount.String()
	}
	return breakdown, nil
}
