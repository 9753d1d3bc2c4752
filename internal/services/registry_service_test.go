package services

import (
	"context"
	"math/big"
	"strings"
	"testing"
	"time"

	"league-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const stakeToken = "0xeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee"

type registryFixture struct {
	svc        *RegistryService
	leagueRepo *memLeagueRepo
	roles      *memRoleRepo
	publisher  *mockPublisher
	clock      time.Time
}

func newRegistryFixture(t *testing.T) *registryFixture {
	t.Helper()
	leagueRepo := newMemLeagueRepo()
	roles := newMemRoleRepo()
	publisher := &mockPublisher{}
	f := &registryFixture{
		svc:        NewRegistryService(leagueRepo, roles, publisher, stakeToken, testBridge),
		leagueRepo: leagueRepo,
		roles:      roles,
		publisher:  publisher,
		clock:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	f.svc.now = func() time.Time { return f.clock }
	return f
}

func TestCreateLeague(t *testing.T) {
	f := newRegistryFixture(t)
	ctx := context.Background()

	league, err := f.svc.CreateLeague(ctx, "spring cup", big.NewInt(100), 48*time.Hour, []uint64{70, 30}, testCreator)
	require.NoError(t, err)

	assert.Len(t, league.Address, 42)
	assert.True(t, strings.HasPrefix(league.Address, "0x"))
	assert.Equal(t, stakeToken, league.TokenAddress)
	assert.Equal(t, "100", league.EntryFee)
	assert.Equal(t, "0", league.PrizePool)
	assert.Equal(t, f.clock, league.StartTime)
	assert.Equal(t, f.clock.Add(48*time.Hour), league.EndTime)

	distribution, err := league.Distribution()
	require.NoError(t, err)
	assert.Equal(t, []uint64{70, 30}, distribution)

	// the creator administers the league, the bridge may report scores
	ok, err := f.roles.HasCapability(ctx, league.ID, models.CapabilityAdmin, testCreator)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = f.roles.HasCapability(ctx, league.ID, models.CapabilityOracle, testBridge)
	require.NoError(t, err)
	assert.True(t, ok)

	require.Len(t, f.publisher.created, 1)
	assert.Equal(t, league.Address, f.publisher.created[0].LeagueAddress)

	stored, err := f.leagueRepo.GetByID(ctx, league.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LeagueStatusActive, stored.Status(f.clock))
}

func TestCreateLeagueValidation(t *testing.T) {
	f := newRegistryFixture(t)
	ctx := context.Background()

	cases := []struct {
		name         string
		leagueName   string
		entryFee     *big.Int
		duration     time.Duration
		distribution []uint64
		wantErr      error
	}{
		{"empty name", "  ", big.NewInt(100), time.Hour, []uint64{100}, ErrInvalidLeagueName},
		{"zero fee", "a", big.NewInt(0), time.Hour, []uint64{100}, ErrInvalidEntryFee},
		{"negative fee", "a", big.NewInt(-1), time.Hour, []uint64{100}, ErrInvalidEntryFee},
		{"nil fee", "a", nil, time.Hour, []uint64{100}, ErrInvalidEntryFee},
		{"zero duration", "a", big.NewInt(100), 0, []uint64{100}, ErrInvalidDuration},
		{"empty distribution", "a", big.NewInt(100), time.Hour, nil, ErrInvalidDistribution},
		{"sum under 100", "a", big.NewInt(100), time.Hour, []uint64{60, 30}, ErrInvalidDistribution},
		{"sum over 100", "a", big.NewInt(100), time.Hour, []uint64{60, 50}, ErrInvalidDistribution},
		{"zero tier", "a", big.NewInt(100), time.Hour, []uint64{100, 0}, ErrInvalidDistribution},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.CreateLeague(ctx, tc.leagueName, tc.entryFee, tc.duration, tc.distribution, testCreator)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestCreateLeagueAddressesAreUnique(t *testing.T) {
	f := newRegistryFixture(t)
	ctx := context.Background()

	first, err := f.svc.CreateLeague(ctx, "same name", big.NewInt(100), time.Hour, []uint64{100}, testCreator)
	require.NoError(t, err)
	second, err := f.svc.CreateLeague(ctx, "same name", big.NewInt(100), time.Hour, []uint64{100}, testCreator)
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.NotEqual(t, first.Address, second.Address)
}

func TestListJoinable(t *testing.T) {
	f := newRegistryFixture(t)
	ctx := context.Background()

	active, err := f.svc.CreateLeague(ctx, "running", big.NewInt(100), 2*time.Hour, []uint64{100}, testCreator)
	require.NoError(t, err)
	ended, err := f.svc.CreateLeague(ctx, "over", big.NewInt(100), time.Minute, []uint64{100}, testCreator)
	require.NoError(t, err)
	paused, err := f.svc.CreateLeague(ctx, "halted", big.NewInt(100), 2*time.Hour, []uint64{100}, testCreator)
	require.NoError(t, err)

	pausedRow, err := f.leagueRepo.GetByID(ctx, paused.ID)
	require.NoError(t, err)
	pausedRow.Paused = true
	require.NoError(t, f.leagueRepo.Save(ctx, pausedRow))

	f.clock = f.clock.Add(30 * time.Minute)

	joinable, err := f.svc.ListJoinable(ctx)
	require.NoError(t, err)
	require.Len(t, joinable, 1)
	assert.Equal(t, active.ID, joinable[0].ID)

	endedRow, err := f.leagueRepo.GetByID(ctx, ended.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LeagueStatusEnded, endedRow.Status(f.clock))
}

func TestListLeaguesPagination(t *testing.T) {
	f := newRegistryFixture(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := f.svc.CreateLeague(ctx, "league", big.NewInt(100), time.Hour, []uint64{100}, testCreator)
		require.NoError(t, err)
	}
	_, err := f.svc.CreateLeague(ctx, "other", big.NewInt(100), time.Hour, []uint64{100}, alice)
	require.NoError(t, err)

	page, total, err := f.svc.ListLeagues(ctx, 0, 4)
	require.NoError(t, err)
	assert.Equal(t, int64(6), total)
	assert.Len(t, page, 4)

	// a nonsense limit falls back to the default page size
	page, _, err = f.svc.ListLeagues(ctx, 0, -3)
	require.NoError(t, err)
	assert.Len(t, page, 6)

	mine, total, err := f.svc.ListByCreator(ctx, alice, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, mine, 1)
	assert.Equal(t, "other", mine[0].Name)
}
