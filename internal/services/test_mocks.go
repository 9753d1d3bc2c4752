// In-memory doubles for the repository and client interfaces, shared by the
// service tests. They keep copies of the stored rows so a rolled-back
// operation leaves no trace, the way the real transactions behave.
package services

import (
	"context"
	"math/big"
	"sync"
	"time"

	"league-backend/internal/clients"
	"league-backend/internal/events"
	"league-backend/internal/models"
	"league-backend/internal/repository"

	"github.com/ethereum/go-ethereum/common"
	"gorm.io/gorm"
)

// ============ League repository ============

type memLeagueRepo struct {
	mu           sync.Mutex
	leagues      map[string]models.League
	participants *memParticipantRepo
}

func newMemLeagueRepo() *memLeagueRepo {
	return &memLeagueRepo{leagues: make(map[string]models.League)}
}

var _ repository.LeagueRepository = (*memLeagueRepo)(nil)

func (r *memLeagueRepo) Create(ctx context.Context, league *models.League) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leagues[league.ID] = *league
	return nil
}

func (r *memLeagueRepo) GetByID(ctx context.Context, id string) (*models.League, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	league, ok := r.leagues[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := league
	return &copied, nil
}

func (r *memLeagueRepo) GetByAddress(ctx context.Context, address string) (*models.League, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, league := range r.leagues {
		if league.Address == address {
			copied := league
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memLeagueRepo) Save(ctx context.Context, league *models.League) error {
	return r.Create(ctx, league)
}

func (r *memLeagueRepo) Find(ctx context.Context, offset, limit int) ([]*models.League, int64, error) {
	all, err := r.FindAll(ctx)
	if err != nil {
		return nil, 0, err
	}
	total := int64(len(all))
	if offset >= len(all) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (r *memLeagueRepo) FindByCreator(ctx context.Context, creator string, offset, limit int) ([]*models.League, int64, error) {
	all, err := r.FindAll(ctx)
	if err != nil {
		return nil, 0, err
	}
	matched := make([]*models.League, 0)
	for _, league := range all {
		if league.Creator == creator {
			matched = append(matched, league)
		}
	}
	total := int64(len(matched))
	if offset >= len(matched) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], total, nil
}

func (r *memLeagueRepo) FindAll(ctx context.Context) ([]*models.League, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := make([]*models.League, 0, len(r.leagues))
	for id := range r.leagues {
		league := r.leagues[id]
		all = append(all, &league)
	}
	return all, nil
}

func (r *memLeagueRepo) FinalizeLeague(ctx context.Context, league *models.League, participants []*models.Participant) error {
	r.mu.Lock()
	r.leagues[league.ID] = *league
	r.mu.Unlock()
	if r.participants != nil {
		return r.participants.SaveAll(ctx, participants)
	}
	return nil
}

// ============ Participant repository ============

type memParticipantRepo struct {
	mu           sync.Mutex
	leagues      *memLeagueRepo
	participants map[string]map[string]models.Participant // leagueID -> address -> row
	nextID       uint64
}

func newMemParticipantRepo(leagues *memLeagueRepo) *memParticipantRepo {
	repo := &memParticipantRepo{
		leagues:      leagues,
		participants: make(map[string]map[string]models.Participant),
	}
	leagues.participants = repo
	return repo
}

var _ repository.ParticipantRepository = (*memParticipantRepo)(nil)

func (r *memParticipantRepo) put(p *models.Participant) {
	if p.ID == 0 {
		r.nextID++
		p.ID = r.nextID
	}
	rows, ok := r.participants[p.LeagueID]
	if !ok {
		rows = make(map[string]models.Participant)
		r.participants[p.LeagueID] = rows
	}
	rows[p.Address] = *p
}

func (r *memParticipantRepo) GetByLeagueAndAddress(ctx context.Context, leagueID, address string) (*models.Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.participants[leagueID][address]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := p
	return &copied, nil
}

func (r *memParticipantRepo) FindByLeague(ctx context.Context, leagueID string) ([]*models.Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rows := r.participants[leagueID]
	all := make([]*models.Participant, 0, len(rows))
	for address := range rows {
		p := rows[address]
		all = append(all, &p)
	}
	// join order, mirroring the repository's ORDER BY join_index
	for i := 0; i < len(all); i++ {
		for j := i + 1; j < len(all); j++ {
			if all[j].JoinIndex < all[i].JoinIndex {
				all[i], all[j] = all[j], all[i]
			}
		}
	}
	return all, nil
}

func (r *memParticipantRepo) Save(ctx context.Context, participant *models.Participant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.put(participant)
	return nil
}

func (r *memParticipantRepo) SaveAll(ctx context.Context, participants []*models.Participant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range participants {
		r.put(p)
	}
	return nil
}

func (r *memParticipantRepo) transactional(ctx context.Context, league *models.League, participant *models.Participant, transfer func() error) error {
	// transfer runs inside the transaction: a failure discards the writes
	if err := transfer(); err != nil {
		return err
	}
	r.mu.Lock()
	r.put(participant)
	r.mu.Unlock()
	return r.leagues.Save(ctx, league)
}

func (r *memParticipantRepo) AddParticipant(ctx context.Context, league *models.League, participant *models.Participant, transfer func() error) error {
	return r.transactional(ctx, league, participant, transfer)
}

func (r *memParticipantRepo) SettleClaim(ctx context.Context, league *models.League, participant *models.Participant, transfer func() error) error {
	return r.transactional(ctx, league, participant, transfer)
}

func (r *memParticipantRepo) RemoveParticipant(ctx context.Context, league *models.League, participant *models.Participant, transfer func() error) error {
	return r.transactional(ctx, league, participant, transfer)
}

// ============ Role repository ============

type memRoleRepo struct {
	mu    sync.Mutex
	roles []models.LeagueRole
}

func newMemRoleRepo() *memRoleRepo {
	return &memRoleRepo{}
}

var _ repository.RoleRepository = (*memRoleRepo)(nil)

func (r *memRoleRepo) Grant(ctx context.Context, role *models.LeagueRole) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.roles = append(r.roles, *role)
	return nil
}

func (r *memRoleRepo) HasCapability(ctx context.Context, leagueID string, capability models.Capability, address string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, role := range r.roles {
		if role.Capability == capability && role.Address == address &&
			(role.LeagueID == leagueID || role.LeagueID == "") {
			return true, nil
		}
	}
	return false, nil
}

// ============ Oracle repository ============

type memOracleRepo struct {
	mu       sync.Mutex
	requests map[string]models.OracleRequest
	states   map[string]models.OracleLeagueState
	configs  map[string]models.OracleConfig
}

func newMemOracleRepo() *memOracleRepo {
	return &memOracleRepo{
		requests: make(map[string]models.OracleRequest),
		states:   make(map[string]models.OracleLeagueState),
		configs:  make(map[string]models.OracleConfig),
	}
}

var _ repository.OracleRepository = (*memOracleRepo)(nil)

func (r *memOracleRepo) CreateRequest(ctx context.Context, request *models.OracleRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests[request.RequestID] = *request
	return nil
}

func (r *memOracleRepo) ConsumeRequest(ctx context.Context, requestID string) (*models.OracleRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	request, ok := r.requests[requestID]
	if !ok {
		return nil, repository.ErrRequestNotFound
	}
	delete(r.requests, requestID)
	return &request, nil
}

func (r *memOracleRepo) GetPendingByLeague(ctx context.Context, leagueID string) (*models.OracleRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id := range r.requests {
		if r.requests[id].LeagueID == leagueID {
			request := r.requests[id]
			return &request, nil
		}
	}
	return nil, nil
}

func (r *memOracleRepo) CountPending(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.requests)), nil
}

func (r *memOracleRepo) GetLeagueState(ctx context.Context, leagueID string) (*models.OracleLeagueState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	state, ok := r.states[leagueID]
	if !ok {
		return &models.OracleLeagueState{LeagueID: leagueID}, nil
	}
	copied := state
	return &copied, nil
}

func (r *memOracleRepo) SetLastSuccessfulUpdate(ctx context.Context, leagueID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states[leagueID] = models.OracleLeagueState{LeagueID: leagueID, LastSuccessfulUpdate: at}
	return nil
}

func (r *memOracleRepo) GetConfig(ctx context.Context, key string) (*models.OracleConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cfg, ok := r.configs[key]
	if !ok {
		return nil, nil
	}
	copied := cfg
	return &copied, nil
}

func (r *memOracleRepo) SetConfig(ctx context.Context, cfg *models.OracleConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs[cfg.ConfigKey] = *cfg
	return nil
}

// ============ Token client ============

type tokenTransfer struct {
	kind    string // "transferFrom" or "transfer"
	address common.Address
	amount  *big.Int
}

type mockToken struct {
	mu        sync.Mutex
	transfers []tokenTransfer
	failNext  error
}

var _ clients.TokenTransferor = (*mockToken)(nil)

func (t *mockToken) TransferFrom(ctx context.Context, owner common.Address, amount *big.Int) error {
	return t.record("transferFrom", owner, amount)
}

func (t *mockToken) Transfer(ctx context.Context, recipient common.Address, amount *big.Int) error {
	return t.record("transfer", recipient, amount)
}

func (t *mockToken) record(kind string, address common.Address, amount *big.Int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.failNext != nil {
		err := t.failNext
		t.failNext = nil
		return err
	}
	t.transfers = append(t.transfers, tokenTransfer{kind: kind, address: address, amount: new(big.Int).Set(amount)})
	return nil
}

// ============ Score provider client ============

type mockProvider struct {
	mu       sync.Mutex
	requests []*clients.ScoreRequest
	sources  []string
	failNext error
}

var _ clients.ScoreProvider = (*mockProvider)(nil)

func (p *mockProvider) RequestScores(ctx context.Context, source string, request *clients.ScoreRequest) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failNext != nil {
		err := p.failNext
		p.failNext = nil
		return err
	}
	p.requests = append(p.requests, request)
	p.sources = append(p.sources, source)
	return nil
}

// ============ Event publisher ============

type mockPublisher struct {
	mu             sync.Mutex
	joined         []*models.EventParticipantJoined
	scoresUpdated  []*models.EventScoresUpdated
	finalized      []*models.EventLeagueFinalized
	claimed        []*models.EventPrizeClaimed
	withdrawn      []*models.EventEmergencyWithdrawn
	admin          []*models.EventLeagueAdmin
	created        []*models.EventLeagueCreated
	oracleRequests []*models.EventOracleRequest
	oracleConfigs  []*models.EventOracleConfigUpdated
}

var _ events.Publisher = (*mockPublisher)(nil)

func (p *mockPublisher) LeagueCreated(e *models.EventLeagueCreated) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.created = append(p.created, e)
}

func (p *mockPublisher) ParticipantJoined(e *models.EventParticipantJoined) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.joined = append(p.joined, e)
}

func (p *mockPublisher) ScoresUpdated(e *models.EventScoresUpdated) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scoresUpdated = append(p.scoresUpdated, e)
}

func (p *mockPublisher) LeagueFinalized(e *models.EventLeagueFinalized) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.finalized = append(p.finalized, e)
}

func (p *mockPublisher) PrizeClaimed(e *models.EventPrizeClaimed) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.claimed = append(p.claimed, e)
}

func (p *mockPublisher) EmergencyWithdrawn(e *models.EventEmergencyWithdrawn) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.withdrawn = append(p.withdrawn, e)
}

func (p *mockPublisher) LeagueAdmin(e *models.EventLeagueAdmin) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.admin = append(p.admin, e)
}

func (p *mockPublisher) OracleRequest(e *models.EventOracleRequest) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.oracleRequests = append(p.oracleRequests, e)
}

func (p *mockPublisher) OracleConfigUpdated(e *models.EventOracleConfigUpdated) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.oracleConfigs = append(p.oracleConfigs, e)
}
