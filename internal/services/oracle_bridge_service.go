package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/big"
	"strings"
	"time"

	"league-backend/internal/clients"
	"league-backend/internal/config"
	"league-backend/internal/events"
	"league-backend/internal/metrics"
	"league-backend/internal/models"
	"league-backend/internal/repository"
	"league-backend/internal/utils"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
)

// ============ Oracle bridge errors ============

var (
	ErrSourceNotConfigured = errors.New("oracle source or query template not configured")
	ErrUpdateTooSoon       = errors.New("minimum update interval has not elapsed")
	ErrRequestPending      = errors.New("an oracle request is already pending for this league")
	ErrUnexpectedRequestID = errors.New("unexpected oracle request id")
	ErrEmptyResponse       = errors.New("oracle response carried no scores")
	ErrEmptyConfigValue    = errors.New("oracle config value must not be empty")
	ErrInvalidConfigValue  = errors.New("invalid oracle config value")
)

// scoreIngestor is the slice of the league service the bridge forwards
// decoded scores into
type scoreIngestor interface {
	IngestScores(ctx context.Context, leagueID string, addresses []string, scores []uint64, caller, requestID string) (int, error)
}

// OracleBridgeService runs the asynchronous score update protocol: it
// dispatches rate-limited requests to the external provider and applies the
// provider's callback exactly once per request ID.
type OracleBridgeService struct {
	oracleRepo repository.OracleRepository
	roleRepo   repository.RoleRepository
	leagues    scoreIngestor
	provider   clients.ScoreProvider
	publisher  events.Publisher

	minInterval time.Duration
	// the identity the bridge uses when forwarding scores into the league
	// service; it holds the global oracle capability
	bridgeAddress string

	now func() time.Time
}

// NewOracleBridgeService creates the oracle bridge
func NewOracleBridgeService(
	oracleRepo repository.OracleRepository,
	roleRepo repository.RoleRepository,
	leagues scoreIngestor,
	provider clients.ScoreProvider,
	publisher events.Publisher,
	oracleConfig config.OracleConfig,
	bridgeAddress string,
) *OracleBridgeService {
	return &OracleBridgeService{
		oracleRepo:    oracleRepo,
		roleRepo:      roleRepo,
		leagues:       leagues,
		provider:      provider,
		publisher:     publisher,
		minInterval:   oracleConfig.MinInterval(),
		bridgeAddress: strings.ToLower(bridgeAddress),
		now:           time.Now,
	}
}

// newRequestID derives a bytes32 correlation identifier. The uuid nonce makes
// IDs unique across repeated requests for the same league and period.
func newRequestID(leagueID string, period int64) string {
	seed := fmt.Sprintf("%s|%d|%s", leagueID, period, uuid.NewString())
	return "0x" + fmt.Sprintf("%x", crypto.Keccak256([]byte(seed)))
}

// ============ Request leg ============

// RequestUpdate dispatches a score request for the league's given period.
// At most one request may be in flight per league, and successful updates
// open a new request window only after the minimum interval.
func (s *OracleBridgeService) RequestUpdate(ctx context.Context, leagueID string, period int64, caller string) (string, error) {
	allowed, err := s.roleRepo.HasCapability(ctx, leagueID, models.CapabilityOracle, caller)
	if err != nil {
		return "", fmt.Errorf("role check failed: %w", err)
	}
	if !allowed {
		return "", ErrNotAuthorized
	}

	sourceCfg, err := s.oracleRepo.GetConfig(ctx, models.OracleConfigSource)
	if err != nil {
		return "", fmt.Errorf("failed to load oracle source: %w", err)
	}
	if sourceCfg == nil || sourceCfg.ConfigValue == "" {
		return "", ErrSourceNotConfigured
	}
	templateCfg, err := s.oracleRepo.GetConfig(ctx, models.OracleConfigQueryTemplate)
	if err != nil {
		return "", fmt.Errorf("failed to load oracle query template: %w", err)
	}
	if templateCfg == nil || templateCfg.ConfigValue == "" {
		return "", ErrSourceNotConfigured
	}

	state, err := s.oracleRepo.GetLeagueState(ctx, leagueID)
	if err != nil {
		return "", fmt.Errorf("failed to load oracle state: %w", err)
	}
	if !state.LastSuccessfulUpdate.IsZero() && s.now().Sub(state.LastSuccessfulUpdate) < s.minInterval {
		return "", ErrUpdateTooSoon
	}

	pending, err := s.oracleRepo.GetPendingByLeague(ctx, leagueID)
	if err != nil {
		return "", fmt.Errorf("failed to check pending requests: %w", err)
	}
	if pending != nil {
		return "", ErrRequestPending
	}

	requestID := newRequestID(leagueID, period)
	request := &models.OracleRequest{
		RequestID:   requestID,
		LeagueID:    leagueID,
		Period:      period,
		RequestedBy: strings.ToLower(caller),
	}
	if err := s.oracleRepo.CreateRequest(ctx, request); err != nil {
		return "", fmt.Errorf("failed to persist oracle request: %w", err)
	}

	outbound := &clients.ScoreRequest{
		RequestID:     requestID,
		LeagueID:      leagueID,
		Period:        period,
		QueryTemplate: templateCfg.ConfigValue,
	}
	if cfg, _ := s.oracleRepo.GetConfig(ctx, models.OracleConfigRoutingID); cfg != nil {
		outbound.RoutingID = cfg.ConfigValue
	}
	if cfg, _ := s.oracleRepo.GetConfig(ctx, models.OracleConfigRequestBudget); cfg != nil {
		outbound.Budget = cfg.ConfigValue
	}

	if err := s.provider.RequestScores(ctx, sourceCfg.ConfigValue, outbound); err != nil {
		// The provider never saw the request, so no callback will ever arrive.
		// Release the pending row so the league can request again.
		if _, consumeErr := s.oracleRepo.ConsumeRequest(ctx, requestID); consumeErr != nil {
			log.Printf("⚠️ [Oracle] Failed to release undispatched request %s: %v", requestID, consumeErr)
		}
		return "", fmt.Errorf("failed to dispatch oracle request: %w", err)
	}

	metrics.OracleRequestsSent.Inc()
	log.Printf("🚀 [Oracle] Requested scores for league %s period %d (request %s)", leagueID, period, requestID)

	s.publisher.OracleRequest(&models.EventOracleRequest{
		RequestID: requestID,
		LeagueID:  leagueID,
		EventType: models.EventTypeOracleRequestSent,
		Period:    period,
	})
	return requestID, nil
}

// ============ Fulfillment leg ============

// Fulfill applies a provider callback. The pending row is consumed before the
// payload is interpreted, so a second fulfillment with the same request ID
// fails with ErrUnexpectedRequestID no matter what the first one carried.
func (s *OracleBridgeService) Fulfill(ctx context.Context, requestID, payload, errorPayload string) error {
	started := s.now()
	defer func() {
		metrics.OracleFulfillDuration.Observe(s.now().Sub(started).Seconds())
	}()

	request, err := s.oracleRepo.ConsumeRequest(ctx, requestID)
	if err != nil {
		if errors.Is(err, repository.ErrRequestNotFound) {
			metrics.OracleFulfillments.WithLabelValues("unexpected").Inc()
			return ErrUnexpectedRequestID
		}
		return fmt.Errorf("failed to consume oracle request: %w", err)
	}

	if errorPayload != "" {
		metrics.OracleFulfillments.WithLabelValues("failed").Inc()
		log.Printf("❌ [Oracle] Provider reported failure for request %s: %s", requestID, errorPayload)
		s.publisher.OracleRequest(&models.EventOracleRequest{
			RequestID: requestID,
			LeagueID:  request.LeagueID,
			EventType: models.EventTypeOracleFailed,
			Period:    request.Period,
			Reason:    errorPayload,
		})
		return nil
	}

	addresses, scores, err := utils.DecodeScoreResponse(payload)
	if err != nil {
		metrics.OracleFulfillments.WithLabelValues("malformed").Inc()
		s.publisher.OracleRequest(&models.EventOracleRequest{
			RequestID: requestID,
			LeagueID:  request.LeagueID,
			EventType: models.EventTypeOracleFailed,
			Period:    request.Period,
			Reason:    err.Error(),
		})
		return fmt.Errorf("malformed oracle response: %w", err)
	}
	if len(addresses) == 0 {
		metrics.OracleFulfillments.WithLabelValues("empty").Inc()
		s.publisher.OracleRequest(&models.EventOracleRequest{
			RequestID: requestID,
			LeagueID:  request.LeagueID,
			EventType: models.EventTypeOracleFailed,
			Period:    request.Period,
			Reason:    ErrEmptyResponse.Error(),
		})
		return ErrEmptyResponse
	}

	hexAddresses := make([]string, len(addresses))
	for i, address := range addresses {
		hexAddresses[i] = strings.ToLower(address.Hex())
	}

	applied, err := s.leagues.IngestScores(ctx, request.LeagueID, hexAddresses, scores, s.bridgeAddress, requestID)
	if err != nil {
		metrics.OracleFulfillments.WithLabelValues("rejected").Inc()
		s.publisher.OracleRequest(&models.EventOracleRequest{
			RequestID: requestID,
			LeagueID:  request.LeagueID,
			EventType: models.EventTypeOracleFailed,
			Period:    request.Period,
			Reason:    err.Error(),
		})
		return fmt.Errorf("score ingestion rejected: %w", err)
	}

	if err := s.oracleRepo.SetLastSuccessfulUpdate(ctx, request.LeagueID, s.now()); err != nil {
		return fmt.Errorf("failed to record successful update: %w", err)
	}

	metrics.OracleFulfillments.WithLabelValues("success").Inc()
	log.Printf("✅ [Oracle] Request %s fulfilled: %d scores applied to league %s", requestID, applied, request.LeagueID)

	s.publisher.OracleRequest(&models.EventOracleRequest{
		RequestID:  requestID,
		LeagueID:   request.LeagueID,
		EventType:  models.EventTypeOracleFulfilled,
		Period:     request.Period,
		ScoreCount: applied,
	})
	return nil
}

// ============ Administrative configuration ============

// UpdateSource points the bridge at a new provider base URL.
func (s *OracleBridgeService) UpdateSource(ctx context.Context, value, caller string) error {
	return s.updateConfig(ctx, models.OracleConfigSource, value, caller)
}

// UpdateQueryTemplate replaces the provider query template.
func (s *OracleBridgeService) UpdateQueryTemplate(ctx context.Context, value, caller string) error {
	return s.updateConfig(ctx, models.OracleConfigQueryTemplate, value, caller)
}

// UpdateRequestBudget replaces the per-request provider fee budget.
// The value must parse as a non-negative integer.
func (s *OracleBridgeService) UpdateRequestBudget(ctx context.Context, value, caller string) error {
	budget, ok := new(big.Int).SetString(value, 10)
	if !ok || budget.Sign() < 0 {
		return fmt.Errorf("%w: budget %q is not a non-negative integer", ErrInvalidConfigValue, value)
	}
	return s.updateConfig(ctx, models.OracleConfigRequestBudget, value, caller)
}

// UpdateRoutingID replaces the provider job/route identifier.
func (s *OracleBridgeService) UpdateRoutingID(ctx context.Context, value, caller string) error {
	return s.updateConfig(ctx, models.OracleConfigRoutingID, value, caller)
}

func (s *OracleBridgeService) updateConfig(ctx context.Context, key, value, caller string) error {
	// Global admin capability only: oracle configuration spans leagues
	allowed, err := s.roleRepo.HasCapability(ctx, "", models.CapabilityAdmin, caller)
	if err != nil {
		return fmt.Errorf("role check failed: %w", err)
	}
	if !allowed {
		return ErrNotAuthorized
	}
	if value == "" {
		return ErrEmptyConfigValue
	}

	oldValue := ""
	if existing, err := s.oracleRepo.GetConfig(ctx, key); err != nil {
		return fmt.Errorf("failed to load oracle config %s: %w", key, err)
	} else if existing != nil {
		oldValue = existing.ConfigValue
	}

	err = s.oracleRepo.SetConfig(ctx, &models.OracleConfig{
		ConfigKey:   key,
		ConfigValue: value,
		UpdatedBy:   strings.ToLower(caller),
	})
	if err != nil {
		return fmt.Errorf("failed to save oracle config %s: %w", key, err)
	}

	log.Printf("🔧 [Oracle] Config %s updated by %s", key, caller)
	s.publisher.OracleConfigUpdated(&models.EventOracleConfigUpdated{
		ConfigKey: key,
		OldValue:  oldValue,
		NewValue:  value,
		UpdatedBy: strings.ToLower(caller),
	})
	return nil
}

// PendingRequestCount reports the number of outstanding requests, polled by
// the monitoring worker into the pending-requests gauge.
func (s *OracleBridgeService) PendingRequestCount(ctx context.Context) (int64, error) {
	return s.oracleRepo.CountPending(ctx)
}
