// League database model - one row per competition instance
package models

import (
	"encoding/json"
	"math/big"
	"time"
)

// LeagueStatus derived lifecycle status - computed from the clock and flags,
// never stored
type LeagueStatus string

const (
	LeagueStatusNotStarted LeagueStatus = "not_started" // now < start
	LeagueStatusActive     LeagueStatus = "active"      // start <= now < end, not paused
	LeagueStatusEnded      LeagueStatus = "ended"       // now >= end, not finalized
	LeagueStatusFinalized  LeagueStatus = "finalized"   // settlement completed (terminal)
	LeagueStatusCancelled  LeagueStatus = "cancelled"   // administrative pause, overrides all non-final states
)

// League represents one competition instance with its staking escrow
type League struct {
	ID      string `json:"id" gorm:"primaryKey"`                    // UUID
	Address string `json:"address" gorm:"size:42;uniqueIndex;not null"` // deterministic league address (0x + 40 hex chars)
	Name    string `json:"name" gorm:"not null"`
	Creator string `json:"creator" gorm:"size:42;index;not null"` // immutable creator address

	// Economic terms, fixed at creation
	TokenAddress      string `json:"token_address" gorm:"size:42;not null"` // stake token contract
	EntryFee          string `json:"entry_fee" gorm:"not null"`             // smallest token unit (BigInt as string)
	PrizeDistribution string `json:"prize_distribution" gorm:"type:text;not null"` // JSON array of percentages, sum = 100

	// Competition window
	StartTime time.Time `json:"start_time" gorm:"not null"`
	EndTime   time.Time `json:"end_time" gorm:"index;not null"` // start + duration

	// Mutable pool state
	PrizePool        string `json:"prize_pool" gorm:"not null;default:'0'"`    // sum of entry fees of joined participants (BigInt as string)
	TotalClaimed     string `json:"total_claimed" gorm:"not null;default:'0'"` // running total paid out via claims
	ParticipantCount int    `json:"participant_count" gorm:"not null;default:0"`

	// Lifecycle flags
	ScoresUpdated bool `json:"scores_updated" gorm:"not null;default:false"` // set once oracle data has been applied
	Finalized     bool `json:"finalized" gorm:"not null;default:false"`      // set once, never unset
	Paused        bool `json:"paused" gorm:"not null;default:false"`         // administrative halt

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Status derives the lifecycle status at the given instant.
// Cancelled overrides everything except a completed finalization.
func (l *League) Status(now time.Time) LeagueStatus {
	if l.Finalized {
		return LeagueStatusFinalized
	}
	if l.Paused {
		return LeagueStatusCancelled
	}
	if now.Before(l.StartTime) {
		return LeagueStatusNotStarted
	}
	if now.Before(l.EndTime) {
		return LeagueStatusActive
	}
	return LeagueStatusEnded
}

// TimeRemaining returns the time until the competition window closes, zero once ended.
func (l *League) TimeRemaining(now time.Time) time.Duration {
	if !now.Before(l.EndTime) {
		return 0
	}
	return l.EndTime.Sub(now)
}

// Distribution decodes the stored prize distribution vector.
func (l *League) Distribution() ([]uint64, error) {
	var percentages []uint64
	if err := json.Unmarshal([]byte(l.PrizeDistribution), &percentages); err != nil {
		return nil, err
	}
	return percentages, nil
}

// SetDistribution encodes and stores the prize distribution vector.
func (l *League) SetDistribution(percentages []uint64) error {
	data, err := json.Marshal(percentages)
	if err != nil {
		return err
	}
	l.PrizeDistribution = string(data)
	return nil
}

// PoolAmount parses the recorded prize pool. A corrupt value returns zero;
// callers treat the stored string as authoritative and only this code writes it.
func (l *League) PoolAmount() *big.Int {
	pool, ok := new(big.Int).SetString(l.PrizePool, 10)
	if !ok {
		return new(big.Int)
	}
	return pool
}

// EntryFeeAmount parses the entry fee.
func (l *League) EntryFeeAmount() *big.Int {
	fee, ok := new(big.Int).SetString(l.EntryFee, 10)
	if !ok {
		return new(big.Int)
	}
	return fee
}

// Participant represents one staked member of a league
type Participant struct {
	ID       uint64 `json:"id" gorm:"primaryKey;autoIncrement"`
	LeagueID string `json:"league_id" gorm:"index;uniqueIndex:idx_league_participant;not null"`
	Address  string `json:"address" gorm:"size:42;index;uniqueIndex:idx_league_participant;not null"`

	JoinIndex int  `json:"join_index" gorm:"not null"` // insertion order, the only tie-break signal
	Joined    bool `json:"joined" gorm:"not null;default:true"` // cleared by emergency withdraw

	// Oracle-reported performance. Score zero with ScoreReported false means
	// the provider never named this address; with ScoreReported true it means
	// a genuine zero performance.
	Score         uint64 `json:"score" gorm:"not null;default:0"`
	ScoreReported bool   `json:"score_reported" gorm:"not null;default:false"`

	// Settlement outcome
	Rank            int    `json:"rank" gorm:"not null;default:0"`              // 1-indexed, 0 until finalization
	ClaimableAmount string `json:"claimable_amount" gorm:"not null;default:'0'"` // set at most once (finalize), zeroed exactly once (claim)
	Claimed         bool   `json:"claimed" gorm:"not null;default:false"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ClaimableBig parses the claimable amount.
func (p *Participant) ClaimableBig() *big.Int {
	amount, ok := new(big.Int).SetString(p.ClaimableAmount, 10)
	if !ok {
		return new(big.Int)
	}
	return amount
}

// Role capabilities checked at the start of every privileged operation
type Capability string

const (
	CapabilityAdmin  Capability = "admin"  // finalize, pause/unpause, oracle config
	CapabilityOracle Capability = "oracle" // score ingestion and update requests
)

// LeagueRole grants a capability to an address. An empty LeagueID grants it
// globally (the oracle bridge role spans leagues).
type LeagueRole struct {
	ID         uint64     `json:"id" gorm:"primaryKey;autoIncrement"`
	LeagueID   string     `json:"league_id" gorm:"index;uniqueIndex:idx_role_grant"`
	Capability Capability `json:"capability" gorm:"size:20;not null;uniqueIndex:idx_role_grant"`
	Address    string     `json:"address" gorm:"size:42;not null;uniqueIndex:idx_role_grant"`
	CreatedAt  time.Time  `json:"created_at"`
}
