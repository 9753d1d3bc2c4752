package services

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"testing"
	"time"

	"league-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testCreator = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	testBridge  = "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	alice       = "0x1111111111111111111111111111111111111111"
	bob         = "0x2222222222222222222222222222222222222222"
	carol       = "0x3333333333333333333333333333333333333333"
	dave        = "0x4444444444444444444444444444444444444444"
)

type leagueFixture struct {
	svc          *LeagueService
	leagueRepo   *memLeagueRepo
	participants *memParticipantRepo
	roles        *memRoleRepo
	token        *mockToken
	publisher    *mockPublisher
	league       *models.League
	clock        time.Time
}

// newLeagueFixture builds a service around an active league with a 100-unit
// entry fee and a 70/30 split, started an hour ago and ending in an hour.
func newLeagueFixture(t *testing.T) *leagueFixture {
	t.Helper()

	leagueRepo := newMemLeagueRepo()
	participants := newMemParticipantRepo(leagueRepo)
	roles := newMemRoleRepo()
	token := &mockToken{}
	publisher := &mockPublisher{}

	f := &leagueFixture{
		svc:          NewLeagueService(leagueRepo, participants, roles, token, publisher),
		leagueRepo:   leagueRepo,
		participants: participants,
		roles:        roles,
		token:        token,
		publisher:    publisher,
		clock:        time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	f.svc.now = func() time.Time { return f.clock }

	f.league = &models.League{
		ID:           "league-1",
		Address:      "0xcccccccccccccccccccccccccccccccccccccccc",
		Name:         "spring cup",
		Creator:      testCreator,
		TokenAddress: "0xdddddddddddddddddddddddddddddddddddddddd",
		EntryFee:     "100",
		StartTime:    f.clock.Add(-time.Hour),
		EndTime:      f.clock.Add(time.Hour),
		PrizePool:    "0",
		TotalClaimed: "0",
	}
	require.NoError(t, f.league.SetDistribution([]uint64{70, 30}))
	require.NoError(t, leagueRepo.Create(context.Background(), f.league))
	require.NoError(t, roles.Grant(context.Background(), &models.LeagueRole{
		LeagueID: f.league.ID, Capability: models.CapabilityOracle, Address: testBridge,
	}))
	return f
}

func (f *leagueFixture) advance(d time.Duration) {
	f.clock = f.clock.Add(d)
}

func (f *leagueFixture) reload(t *testing.T) *models.League {
	t.Helper()
	league, err := f.leagueRepo.GetByID(context.Background(), f.league.ID)
	require.NoError(t, err)
	return league
}

func TestJoinStakesEntryFee(t *testing.T) {
	f := newLeagueFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.Join(ctx, f.league.ID, alice))
	require.NoError(t, f.svc.Join(ctx, f.league.ID, bob))

	league := f.reload(t)
	assert.Equal(t, "200", league.PrizePool)
	assert.Equal(t, 2, league.ParticipantCount)

	// the entry fee moved from each participant into custody
	require.Len(t, f.token.transfers, 2)
	assert.Equal(t, "transferFrom", f.token.transfers[0].kind)
	assert.Equal(t, big.NewInt(100), f.token.transfers[0].amount)

	require.Len(t, f.publisher.joined, 2)
	assert.Equal(t, 2, f.publisher.joined[1].ParticipantCount)
	assert.Equal(t, "200", f.publisher.joined[1].PrizePool)

	// join order is recorded for tie-breaking
	p, err := f.svc.GetParticipant(ctx, f.league.ID, bob)
	require.NoError(t, err)
	assert.Equal(t, 1, p.JoinIndex)
}

func TestJoinRejections(t *testing.T) {
	f := newLeagueFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.Join(ctx, f.league.ID, alice))
	assert.ErrorIs(t, f.svc.Join(ctx, f.league.ID, alice), ErrAlreadyJoined)

	assert.ErrorIs(t, f.svc.Join(ctx, "no-such-league", bob), ErrLeagueNotFound)

	before := newLeagueFixture(t)
	before.clock = before.league.StartTime.Add(-time.Minute)
	assert.ErrorIs(t, before.svc.Join(ctx, before.league.ID, bob), ErrLeagueNotStarted)

	after := newLeagueFixture(t)
	after.advance(2 * time.Hour)
	assert.ErrorIs(t, after.svc.Join(ctx, after.league.ID, bob), ErrLeagueEnded)

	paused := newLeagueFixture(t)
	require.NoError(t, paused.svc.Pause(ctx, paused.league.ID, testCreator))
	assert.ErrorIs(t, paused.svc.Join(ctx, paused.league.ID, bob), ErrLeagueCancelled)
}

func TestJoinTransferFailureRollsBack(t *testing.T) {
	f := newLeagueFixture(t)
	ctx := context.Background()

	f.token.failNext = errors.New("insufficient allowance")
	err := f.svc.Join(ctx, f.league.ID, alice)
	require.Error(t, err)

	league := f.reload(t)
	assert.Equal(t, "0", league.PrizePool)
	assert.Equal(t, 0, league.ParticipantCount)
	_, err = f.svc.GetParticipant(ctx, f.league.ID, alice)
	assert.ErrorIs(t, err, ErrNotJoined)
	assert.Empty(t, f.publisher.joined)
}

func TestIngestScoresAuthorizationAndTiming(t *testing.T) {
	f := newLeagueFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.Join(ctx, f.league.ID, alice))

	_, err := f.svc.IngestScores(ctx, f.league.ID, []string{alice}, []uint64{10}, alice, "")
	assert.ErrorIs(t, err, ErrNotAuthorized)

	_, err = f.svc.IngestScores(ctx, f.league.ID, []string{alice}, []uint64{10, 20}, testBridge, "")
	assert.ErrorIs(t, err, ErrInvalidScoresLength)

	// still inside the competition window
	_, err = f.svc.IngestScores(ctx, f.league.ID, []string{alice}, []uint64{10}, testBridge, "")
	assert.ErrorIs(t, err, ErrLeagueNotEnded)

	f.advance(2 * time.Hour)
	applied, err := f.svc.IngestScores(ctx, f.league.ID, []string{alice}, []uint64{10}, testBridge, "req-1")
	require.NoError(t, err)
	assert.Equal(t, 1, applied)

	league := f.reload(t)
	assert.True(t, league.ScoresUpdated)
	require.Len(t, f.publisher.scoresUpdated, 1)
	assert.Equal(t, "req-1", f.publisher.scoresUpdated[0].RequestID)
}

func TestIngestScoresOverwritesAndSkipsUnknown(t *testing.T) {
	f := newLeagueFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.Join(ctx, f.league.ID, alice))
	require.NoError(t, f.svc.Join(ctx, f.league.ID, bob))
	f.advance(2 * time.Hour)

	applied, err := f.svc.IngestScores(ctx, f.league.ID,
		[]string{alice, carol}, []uint64{10, 99}, testBridge, "")
	require.NoError(t, err)
	assert.Equal(t, 1, applied) // carol never joined

	// last write wins, including an explicit zero
	_, err = f.svc.IngestScores(ctx, f.league.ID, []string{alice}, []uint64{0}, testBridge, "")
	require.NoError(t, err)

	p, err := f.svc.GetParticipant(ctx, f.league.ID, alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), p.Score)
	assert.True(t, p.ScoreReported)

	// bob was never named by the provider
	p, err = f.svc.GetParticipant(ctx, f.league.ID, bob)
	require.NoError(t, err)
	assert.False(t, p.ScoreReported)
}

func TestIngestScoresRejectedAfterFinalization(t *testing.T) {
	f := newLeagueFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.Join(ctx, f.league.ID, alice))
	f.advance(2 * time.Hour)

	_, err := f.svc.IngestScores(ctx, f.league.ID, []string{alice}, []uint64{10}, testBridge, "")
	require.NoError(t, err)
	require.NoError(t, f.svc.Finalize(ctx, f.league.ID, testCreator))

	_, err = f.svc.IngestScores(ctx, f.league.ID, []string{alice}, []uint64{20}, testBridge, "")
	assert.ErrorIs(t, err, ErrLeagueFinalized)
}

func TestFinalizeGuards(t *testing.T) {
	f := newLeagueFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.Join(ctx, f.league.ID, alice))

	assert.ErrorIs(t, f.svc.Finalize(ctx, f.league.ID, alice), ErrNotAuthorized)
	assert.ErrorIs(t, f.svc.Finalize(ctx, f.league.ID, testCreator), ErrLeagueNotEnded)

	f.advance(2 * time.Hour)
	assert.ErrorIs(t, f.svc.Finalize(ctx, f.league.ID, testCreator), ErrScoresNotReady)

	_, err := f.svc.IngestScores(ctx, f.league.ID, []string{alice}, []uint64{10}, testBridge, "")
	require.NoError(t, err)
	require.NoError(t, f.svc.Finalize(ctx, f.league.ID, testCreator))
	assert.ErrorIs(t, f.svc.Finalize(ctx, f.league.ID, testCreator), ErrAlreadyFinalized)
}

func TestFinalizeRanksAndAllocates(t *testing.T) {
	f := newLeagueFixture(t)
	ctx := context.Background()

	// join order: alice, bob, carol, dave - pool = 400
	for _, addr := range []string{alice, bob, carol, dave} {
		require.NoError(t, f.svc.Join(ctx, f.league.ID, addr))
	}
	f.advance(2 * time.Hour)

	// bob and carol tie on 50: bob joined earlier so bob places higher
	_, err := f.svc.IngestScores(ctx, f.league.ID,
		[]string{alice, bob, carol, dave}, []uint64{20, 50, 50, 10}, testBridge, "")
	require.NoError(t, err)
	require.NoError(t, f.svc.Finalize(ctx, f.league.ID, testCreator))

	expect := map[string]struct {
		rank      int
		claimable string
	}{
		bob:   {1, "280"}, // floor(400*70/100)
		carol: {2, "120"}, // floor(400*30/100)
		alice: {3, "0"},
		dave:  {4, "0"},
	}
	for addr, want := range expect {
		p, err := f.svc.GetParticipant(ctx, f.league.ID, addr)
		require.NoError(t, err)
		assert.Equal(t, want.rank, p.Rank, addr)
		assert.Equal(t, want.claimable, p.ClaimableAmount, addr)
	}

	require.Len(t, f.publisher.finalized, 1)
	var winners []WinnerEntry
	require.NoError(t, json.Unmarshal([]byte(f.publisher.finalized[0].Winners), &winners))
	require.Len(t, winners, 2)
	assert.Equal(t, bob, winners[0].Address)
	assert.Equal(t, "280", winners[0].Amount)
}

func TestFinalizeWithFewerParticipantsThanTiers(t *testing.T) {
	f := newLeagueFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.Join(ctx, f.league.ID, alice))
	f.advance(2 * time.Hour)

	_, err := f.svc.IngestScores(ctx, f.league.ID, []string{alice}, []uint64{7}, testBridge, "")
	require.NoError(t, err)
	require.NoError(t, f.svc.Finalize(ctx, f.league.ID, testCreator))

	// only the first tier pays out; the 30% remainder stays in custody
	p, err := f.svc.GetParticipant(ctx, f.league.ID, alice)
	require.NoError(t, err)
	assert.Equal(t, "70", p.ClaimableAmount)

	var winners []WinnerEntry
	require.NoError(t, json.Unmarshal([]byte(f.publisher.finalized[0].Winners), &winners))
	assert.Len(t, winners, 1)
}

func TestClaimPrize(t *testing.T) {
	f := newLeagueFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.Join(ctx, f.league.ID, alice))
	require.NoError(t, f.svc.Join(ctx, f.league.ID, bob))

	_, err := f.svc.ClaimPrize(ctx, f.league.ID, alice)
	assert.ErrorIs(t, err, ErrNotFinalized)

	f.advance(2 * time.Hour)
	_, err = f.svc.IngestScores(ctx, f.league.ID, []string{alice, bob}, []uint64{5, 9}, testBridge, "")
	require.NoError(t, err)
	require.NoError(t, f.svc.Finalize(ctx, f.league.ID, testCreator))

	amount, err := f.svc.ClaimPrize(ctx, f.league.ID, bob)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(140), amount) // floor(200*70/100)

	// double claim and never-won claims look the same to the caller
	_, err = f.svc.ClaimPrize(ctx, f.league.ID, bob)
	assert.ErrorIs(t, err, ErrNoClaimableWinnings)
	_, err = f.svc.ClaimPrize(ctx, f.league.ID, carol)
	assert.ErrorIs(t, err, ErrNoClaimableWinnings)

	league := f.reload(t)
	assert.Equal(t, "140", league.TotalClaimed)

	last := f.token.transfers[len(f.token.transfers)-1]
	assert.Equal(t, "transfer", last.kind)
	assert.Equal(t, big.NewInt(140), last.amount)
}

func TestClaimTransferFailureKeepsClaimable(t *testing.T) {
	f := newLeagueFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.Join(ctx, f.league.ID, alice))
	f.advance(2 * time.Hour)
	_, err := f.svc.IngestScores(ctx, f.league.ID, []string{alice}, []uint64{1}, testBridge, "")
	require.NoError(t, err)
	require.NoError(t, f.svc.Finalize(ctx, f.league.ID, testCreator))

	f.token.failNext = errors.New("rpc down")
	_, err = f.svc.ClaimPrize(ctx, f.league.ID, alice)
	require.Error(t, err)

	// the rolled-back claim stays claimable
	p, err := f.svc.GetParticipant(ctx, f.league.ID, alice)
	require.NoError(t, err)
	assert.Equal(t, "70", p.ClaimableAmount)
	assert.False(t, p.Claimed)

	amount, err := f.svc.ClaimPrize(ctx, f.league.ID, alice)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(70), amount)
}

func TestEmergencyWithdraw(t *testing.T) {
	f := newLeagueFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.Join(ctx, f.league.ID, alice))
	require.NoError(t, f.svc.Join(ctx, f.league.ID, bob))

	assert.ErrorIs(t, f.svc.EmergencyWithdraw(ctx, f.league.ID, alice), ErrNotPaused)

	require.NoError(t, f.svc.Pause(ctx, f.league.ID, testCreator))
	require.NoError(t, f.svc.EmergencyWithdraw(ctx, f.league.ID, alice))

	league := f.reload(t)
	assert.Equal(t, "100", league.PrizePool)
	assert.Equal(t, 1, league.ParticipantCount)

	last := f.token.transfers[len(f.token.transfers)-1]
	assert.Equal(t, "transfer", last.kind)
	assert.Equal(t, big.NewInt(100), last.amount)

	// a second withdraw has nothing staked
	assert.ErrorIs(t, f.svc.EmergencyWithdraw(ctx, f.league.ID, alice), ErrNotJoined)
	assert.ErrorIs(t, f.svc.EmergencyWithdraw(ctx, f.league.ID, carol), ErrNotJoined)
}

func TestRejoinAfterWithdrawKeepsJoinOrder(t *testing.T) {
	f := newLeagueFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.Join(ctx, f.league.ID, alice))
	require.NoError(t, f.svc.Join(ctx, f.league.ID, bob))

	require.NoError(t, f.svc.Pause(ctx, f.league.ID, testCreator))
	require.NoError(t, f.svc.EmergencyWithdraw(ctx, f.league.ID, alice))
	require.NoError(t, f.svc.Unpause(ctx, f.league.ID, testCreator))
	require.NoError(t, f.svc.Join(ctx, f.league.ID, alice))

	p, err := f.svc.GetParticipant(ctx, f.league.ID, alice)
	require.NoError(t, err)
	assert.True(t, p.Joined)
	assert.Equal(t, 0, p.JoinIndex)

	league := f.reload(t)
	assert.Equal(t, "200", league.PrizePool)
	assert.Equal(t, 2, league.ParticipantCount)
}

func TestPauseUnpause(t *testing.T) {
	f := newLeagueFixture(t)
	ctx := context.Background()

	assert.ErrorIs(t, f.svc.Pause(ctx, f.league.ID, alice), ErrNotAuthorized)
	assert.ErrorIs(t, f.svc.Unpause(ctx, f.league.ID, testCreator), ErrNotPaused)

	require.NoError(t, f.svc.Pause(ctx, f.league.ID, testCreator))
	assert.ErrorIs(t, f.svc.Pause(ctx, f.league.ID, testCreator), ErrAlreadyPaused)

	status, err := f.svc.LeagueStatus(ctx, f.league.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LeagueStatusCancelled, status)

	require.NoError(t, f.svc.Unpause(ctx, f.league.ID, testCreator))
	status, err = f.svc.LeagueStatus(ctx, f.league.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LeagueStatusActive, status)

	require.Len(t, f.publisher.admin, 2)
	assert.Equal(t, models.EventTypeLeaguePaused, f.publisher.admin[0].EventType)
	assert.Equal(t, models.EventTypeLeagueUnpaused, f.publisher.admin[1].EventType)
}

func TestPausedLeagueCannotFinalize(t *testing.T) {
	f := newLeagueFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.Join(ctx, f.league.ID, alice))
	f.advance(2 * time.Hour)
	_, err := f.svc.IngestScores(ctx, f.league.ID, []string{alice}, []uint64{3}, testBridge, "")
	require.NoError(t, err)

	require.NoError(t, f.svc.Pause(ctx, f.league.ID, testCreator))
	assert.ErrorIs(t, f.svc.Finalize(ctx, f.league.ID, testCreator), ErrLeagueCancelled)

	require.NoError(t, f.svc.Unpause(ctx, f.league.ID, testCreator))
	require.NoError(t, f.svc.Finalize(ctx, f.league.ID, testCreator))
}

func TestStatusDerivation(t *testing.T) {
	f := newLeagueFixture(t)
	ctx := context.Background()

	f.clock = f.league.StartTime.Add(-time.Minute)
	status, err := f.svc.LeagueStatus(ctx, f.league.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LeagueStatusNotStarted, status)

	f.clock = f.league.StartTime.Add(time.Minute)
	status, _ = f.svc.LeagueStatus(ctx, f.league.ID)
	assert.Equal(t, models.LeagueStatusActive, status)

	remaining, err := f.svc.TimeRemaining(ctx, f.league.ID)
	require.NoError(t, err)
	assert.Equal(t, f.league.EndTime.Sub(f.clock), remaining)

	f.clock = f.league.EndTime
	status, _ = f.svc.LeagueStatus(ctx, f.league.ID)
	assert.Equal(t, models.LeagueStatusEnded, status)

	remaining, _ = f.svc.TimeRemaining(ctx, f.league.ID)
	assert.Equal(t, time.Duration(0), remaining)
}

func TestPrizeBreakdown(t *testing.T) {
	f := newLeagueFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.Join(ctx, f.league.ID, alice))
	require.NoError(t, f.svc.Join(ctx, f.league.ID, bob))
	require.NoError(t, f.svc.Join(ctx, f.league.ID, carol))

	breakdown, err := f.svc.PrizeBreakdown(ctx, f.league.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"210", "90"}, breakdown)
}
