package services

import (
	"context"
	"testing"
	"time"

	"league-backend/internal/config"
	"league-backend/internal/metrics"
	"league-backend/internal/models"
	"league-backend/internal/utils"

	"github.com/ethereum/go-ethereum/common"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bridgeFixture struct {
	*leagueFixture
	bridge   *OracleBridgeService
	oracle   *memOracleRepo
	provider *mockProvider
}

// newBridgeFixture wires the oracle bridge over the league fixture with a
// configured provider source and query template and the bridge holding the
// global oracle role.
func newBridgeFixture(t *testing.T) *bridgeFixture {
	t.Helper()

	lf := newLeagueFixture(t)
	oracle := newMemOracleRepo()
	provider := &mockProvider{}

	bridge := NewOracleBridgeService(
		oracle, lf.roles, lf.svc, provider, lf.publisher,
		config.OracleConfig{MinUpdateInterval: 3600},
		testBridge,
	)
	bridge.now = func() time.Time { return lf.clock }

	require.NoError(t, oracle.SetConfig(context.Background(), &models.OracleConfig{
		ConfigKey:   models.OracleConfigSource,
		ConfigValue: "https://scores.example.com",
	}))
	require.NoError(t, oracle.SetConfig(context.Background(), &models.OracleConfig{
		ConfigKey:   models.OracleConfigQueryTemplate,
		ConfigValue: "scores?league={league}&week={period}",
	}))
	return &bridgeFixture{leagueFixture: lf, bridge: bridge, oracle: oracle, provider: provider}
}

func encodedScores(t *testing.T, addresses []string, scores []uint64) string {
	t.Helper()
	addrs := make([]common.Address, len(addresses))
	for i, a := range addresses {
		addrs[i] = common.HexToAddress(a)
	}
	payload, err := utils.EncodeScoreResponse(addrs, scores)
	require.NoError(t, err)
	return payload
}

func TestRequestUpdateDispatchesToProvider(t *testing.T) {
	f := newBridgeFixture(t)
	ctx := context.Background()

	requestID, err := f.bridge.RequestUpdate(ctx, f.league.ID, 7, testBridge)
	require.NoError(t, err)
	assert.Len(t, requestID, 66) // 0x + 32 bytes hex

	require.Len(t, f.provider.requests, 1)
	assert.Equal(t, "https://scores.example.com", f.provider.sources[0])
	assert.Equal(t, requestID, f.provider.requests[0].RequestID)
	assert.Equal(t, int64(7), f.provider.requests[0].Period)

	pending, err := f.oracle.GetPendingByLeague(ctx, f.league.ID)
	require.NoError(t, err)
	require.NotNil(t, pending)
	assert.Equal(t, requestID, pending.RequestID)

	require.Len(t, f.publisher.oracleRequests, 1)
	assert.Equal(t, models.EventTypeOracleRequestSent, f.publisher.oracleRequests[0].EventType)
}

func TestRequestUpdateGuards(t *testing.T) {
	f := newBridgeFixture(t)
	ctx := context.Background()

	_, err := f.bridge.RequestUpdate(ctx, f.league.ID, 1, alice)
	assert.ErrorIs(t, err, ErrNotAuthorized)

	unconfigured := newBridgeFixture(t)
	require.NoError(t, unconfigured.oracle.SetConfig(ctx, &models.OracleConfig{
		ConfigKey: models.OracleConfigSource, ConfigValue: "",
	}))
	_, err = unconfigured.bridge.RequestUpdate(ctx, unconfigured.league.ID, 1, testBridge)
	assert.ErrorIs(t, err, ErrSourceNotConfigured)

	noTemplate := newBridgeFixture(t)
	require.NoError(t, noTemplate.oracle.SetConfig(ctx, &models.OracleConfig{
		ConfigKey: models.OracleConfigQueryTemplate, ConfigValue: "",
	}))
	_, err = noTemplate.bridge.RequestUpdate(ctx, noTemplate.league.ID, 1, testBridge)
	assert.ErrorIs(t, err, ErrSourceNotConfigured)

	// single flight per league
	_, err = f.bridge.RequestUpdate(ctx, f.league.ID, 1, testBridge)
	require.NoError(t, err)
	_, err = f.bridge.RequestUpdate(ctx, f.league.ID, 2, testBridge)
	assert.ErrorIs(t, err, ErrRequestPending)
}

func TestRequestUpdateRateLimitWindow(t *testing.T) {
	f := newBridgeFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.Join(ctx, f.league.ID, alice))
	f.advance(2 * time.Hour)

	requestID, err := f.bridge.RequestUpdate(ctx, f.league.ID, 1, testBridge)
	require.NoError(t, err)
	require.NoError(t, f.bridge.Fulfill(ctx, requestID,
		encodedScores(t, []string{alice}, []uint64{10}), ""))

	// the successful fulfillment closes the window
	_, err = f.bridge.RequestUpdate(ctx, f.league.ID, 2, testBridge)
	assert.ErrorIs(t, err, ErrUpdateTooSoon)

	f.advance(time.Hour + time.Second)
	_, err = f.bridge.RequestUpdate(ctx, f.league.ID, 2, testBridge)
	assert.NoError(t, err)
}

func TestRequestUpdateDispatchFailureReleasesLeague(t *testing.T) {
	f := newBridgeFixture(t)
	ctx := context.Background()

	f.provider.failNext = assert.AnError
	_, err := f.bridge.RequestUpdate(ctx, f.league.ID, 1, testBridge)
	assert.ErrorIs(t, err, assert.AnError)

	// the pending row is released: no callback will arrive for a request
	// the provider never received
	pending, err := f.oracle.GetPendingByLeague(ctx, f.league.ID)
	require.NoError(t, err)
	assert.Nil(t, pending)
	assert.Empty(t, f.publisher.oracleRequests)

	// and the league can immediately request again
	requestID, err := f.bridge.RequestUpdate(ctx, f.league.ID, 1, testBridge)
	require.NoError(t, err)
	pending, err = f.oracle.GetPendingByLeague(ctx, f.league.ID)
	require.NoError(t, err)
	require.NotNil(t, pending)
	assert.Equal(t, requestID, pending.RequestID)
}

func TestFulfillAppliesScores(t *testing.T) {
	f := newBridgeFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.Join(ctx, f.league.ID, alice))
	require.NoError(t, f.svc.Join(ctx, f.league.ID, bob))
	f.advance(2 * time.Hour)

	requestID, err := f.bridge.RequestUpdate(ctx, f.league.ID, 1, testBridge)
	require.NoError(t, err)
	require.NoError(t, f.bridge.Fulfill(ctx, requestID,
		encodedScores(t, []string{alice, bob}, []uint64{42, 17}), ""))

	p, err := f.svc.GetParticipant(ctx, f.league.ID, alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), p.Score)
	assert.True(t, p.ScoreReported)

	state, err := f.oracle.GetLeagueState(ctx, f.league.ID)
	require.NoError(t, err)
	assert.Equal(t, f.clock, state.LastSuccessfulUpdate)

	// sent + fulfilled, and the league-level scores event carries the request ID
	last := f.publisher.oracleRequests[len(f.publisher.oracleRequests)-1]
	assert.Equal(t, models.EventTypeOracleFulfilled, last.EventType)
	assert.Equal(t, 2, last.ScoreCount)
	require.Len(t, f.publisher.scoresUpdated, 1)
	assert.Equal(t, requestID, f.publisher.scoresUpdated[0].RequestID)
}

func TestFulfillUnknownOrDuplicateRequest(t *testing.T) {
	f := newBridgeFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.Join(ctx, f.league.ID, alice))
	f.advance(2 * time.Hour)

	err := f.bridge.Fulfill(ctx, "0xdeadbeef", encodedScores(t, []string{alice}, []uint64{1}), "")
	assert.ErrorIs(t, err, ErrUnexpectedRequestID)

	requestID, err := f.bridge.RequestUpdate(ctx, f.league.ID, 1, testBridge)
	require.NoError(t, err)
	payload := encodedScores(t, []string{alice}, []uint64{1})
	require.NoError(t, f.bridge.Fulfill(ctx, requestID, payload, ""))

	// the request was consumed by the first fulfillment
	err = f.bridge.Fulfill(ctx, requestID, payload, "")
	assert.ErrorIs(t, err, ErrUnexpectedRequestID)
}

func TestFulfillProviderFailureLeavesLeagueUntouched(t *testing.T) {
	f := newBridgeFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.Join(ctx, f.league.ID, alice))
	f.advance(2 * time.Hour)

	requestID, err := f.bridge.RequestUpdate(ctx, f.league.ID, 1, testBridge)
	require.NoError(t, err)
	require.NoError(t, f.bridge.Fulfill(ctx, requestID, "", "upstream timeout"))

	p, err := f.svc.GetParticipant(ctx, f.league.ID, alice)
	require.NoError(t, err)
	assert.False(t, p.ScoreReported)
	assert.False(t, f.reload(t).ScoresUpdated)

	// a failure does not close the rate-limit window
	state, err := f.oracle.GetLeagueState(ctx, f.league.ID)
	require.NoError(t, err)
	assert.True(t, state.LastSuccessfulUpdate.IsZero())

	last := f.publisher.oracleRequests[len(f.publisher.oracleRequests)-1]
	assert.Equal(t, models.EventTypeOracleFailed, last.EventType)
	assert.Equal(t, "upstream timeout", last.Reason)

	// and the next request may go out immediately
	_, err = f.bridge.RequestUpdate(ctx, f.league.ID, 2, testBridge)
	assert.NoError(t, err)
}

func fulfillSampleCount(t *testing.T) uint64 {
	t.Helper()
	m := &dto.Metric{}
	require.NoError(t, metrics.OracleFulfillDuration.Write(m))
	return m.GetHistogram().GetSampleCount()
}

func TestFulfillDurationRecordedOnFailure(t *testing.T) {
	f := newBridgeFixture(t)
	ctx := context.Background()

	before := fulfillSampleCount(t)
	requestID, err := f.bridge.RequestUpdate(ctx, f.league.ID, 1, testBridge)
	require.NoError(t, err)
	require.NoError(t, f.bridge.Fulfill(ctx, requestID, "", "upstream timeout"))

	// failed fulfillments land in the duration histogram too
	assert.Equal(t, before+1, fulfillSampleCount(t))
}

func TestFulfillMalformedPayload(t *testing.T) {
	f := newBridgeFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.Join(ctx, f.league.ID, alice))
	f.advance(2 * time.Hour)

	requestID, err := f.bridge.RequestUpdate(ctx, f.league.ID, 1, testBridge)
	require.NoError(t, err)

	err = f.bridge.Fulfill(ctx, requestID, "0x1234", "")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnexpectedRequestID)

	// the request is gone and the league is untouched
	err = f.bridge.Fulfill(ctx, requestID, "0x1234", "")
	assert.ErrorIs(t, err, ErrUnexpectedRequestID)
	p, err := f.svc.GetParticipant(ctx, f.league.ID, alice)
	require.NoError(t, err)
	assert.False(t, p.ScoreReported)
}

func TestFulfillEmptyPayload(t *testing.T) {
	f := newBridgeFixture(t)
	ctx := context.Background()

	requestID, err := f.bridge.RequestUpdate(ctx, f.league.ID, 1, testBridge)
	require.NoError(t, err)

	err = f.bridge.Fulfill(ctx, requestID, "0x", "")
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestRequestCarriesProviderConfig(t *testing.T) {
	f := newBridgeFixture(t)
	ctx := context.Background()

	require.NoError(t, f.oracle.SetConfig(ctx, &models.OracleConfig{
		ConfigKey: models.OracleConfigQueryTemplate, ConfigValue: "scores?week={period}",
	}))
	require.NoError(t, f.oracle.SetConfig(ctx, &models.OracleConfig{
		ConfigKey: models.OracleConfigRoutingID, ConfigValue: "job-42",
	}))
	require.NoError(t, f.oracle.SetConfig(ctx, &models.OracleConfig{
		ConfigKey: models.OracleConfigRequestBudget, ConfigValue: "250000",
	}))

	_, err := f.bridge.RequestUpdate(ctx, f.league.ID, 3, testBridge)
	require.NoError(t, err)

	require.Len(t, f.provider.requests, 1)
	sent := f.provider.requests[0]
	assert.Equal(t, "scores?week={period}", sent.QueryTemplate)
	assert.Equal(t, "job-42", sent.RoutingID)
	assert.Equal(t, "250000", sent.Budget)
}

func TestOracleConfigAdministration(t *testing.T) {
	f := newBridgeFixture(t)
	ctx := context.Background()

	// oracle configuration needs the global admin capability
	err := f.bridge.UpdateSource(ctx, "https://other.example.com", alice)
	assert.ErrorIs(t, err, ErrNotAuthorized)

	admin := "0x9999999999999999999999999999999999999999"
	require.NoError(t, f.roles.Grant(ctx, &models.LeagueRole{
		LeagueID: "", Capability: models.CapabilityAdmin, Address: admin,
	}))

	assert.ErrorIs(t, f.bridge.UpdateSource(ctx, "", admin), ErrEmptyConfigValue)
	assert.ErrorIs(t, f.bridge.UpdateRequestBudget(ctx, "not-a-number", admin), ErrInvalidConfigValue)
	assert.ErrorIs(t, f.bridge.UpdateRequestBudget(ctx, "-5", admin), ErrInvalidConfigValue)

	require.NoError(t, f.bridge.UpdateSource(ctx, "https://other.example.com", admin))
	require.NoError(t, f.bridge.UpdateRequestBudget(ctx, "100000", admin))
	require.NoError(t, f.bridge.UpdateQueryTemplate(ctx, "scores?week={period}", admin))
	require.NoError(t, f.bridge.UpdateRoutingID(ctx, "job-7", admin))

	cfg, err := f.oracle.GetConfig(ctx, models.OracleConfigSource)
	require.NoError(t, err)
	assert.Equal(t, "https://other.example.com", cfg.ConfigValue)
	assert.Equal(t, admin, cfg.UpdatedBy)

	// the audit event carries the replaced value
	require.NotEmpty(t, f.publisher.oracleConfigs)
	first := f.publisher.oracleConfigs[0]
	assert.Equal(t, models.OracleConfigSource, first.ConfigKey)
	assert.Equal(t, "https://scores.example.com", first.OldValue)
	assert.Equal(t, "https://other.example.com", first.NewValue)
}

func TestPendingRequestCount(t *testing.T) {
	f := newBridgeFixture(t)
	ctx := context.Background()

	count, err := f.bridge.PendingRequestCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	_, err = f.bridge.RequestUpdate(ctx, f.league.ID, 1, testBridge)
	require.NoError(t, err)
	count, err = f.bridge.PendingRequestCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}
