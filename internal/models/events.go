// Event tables - one row per state transition, the indexing collaborator's
// source of truth. Each row carries enough data to reconstruct the transition
// without re-reading league state.
package models

import (
	"time"
)

// Event type names, also used as NATS subject suffixes
const (
	EventTypeLeagueCreated      = "LeagueCreated"
	EventTypeParticipantJoined  = "ParticipantJoined"
	EventTypeScoresUpdated      = "ScoresUpdated"
	EventTypeLeagueFinalized    = "LeagueFinalized"
	EventTypePrizeClaimed       = "PrizeClaimed"
	EventTypeEmergencyWithdrawn = "EmergencyWithdrawn"
	EventTypeLeaguePaused       = "LeaguePaused"
	EventTypeLeagueUnpaused     = "LeagueUnpaused"
	EventTypeOracleRequestSent  = "OracleRequestSent"
	EventTypeOracleFulfilled    = "OracleRequestFulfilled"
	EventTypeOracleFailed       = "OracleRequestFailed"
	EventTypeOracleConfigUpdate = "OracleConfigUpdated"
)

// EventLeagueCreated league creation event (registry)
type EventLeagueCreated struct {
	ID            uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	LeagueID      string    `json:"league_id" gorm:"index;not null"`
	LeagueAddress string    `json:"league_address" gorm:"size:42;index;not null"`
	Name          string    `json:"name" gorm:"not null"`
	Creator       string    `json:"creator" gorm:"size:42;index;not null"`
	TokenAddress  string    `json:"token_address" gorm:"size:42;not null"`
	EntryFee      string    `json:"entry_fee" gorm:"not null"` // BigInt as string
	Distribution  string    `json:"distribution" gorm:"type:text;not null"`
	StartTime     time.Time `json:"start_time" gorm:"not null"`
	EndTime       time.Time `json:"end_time" gorm:"not null"`
	CreatedAt     time.Time `json:"created_at"`
}

// EventParticipantJoined join event
type EventParticipantJoined struct {
	ID               uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	LeagueID         string    `json:"league_id" gorm:"index;not null"`
	Participant      string    `json:"participant" gorm:"size:42;index;not null"`
	EntryFee         string    `json:"entry_fee" gorm:"not null"`
	ParticipantCount int       `json:"participant_count" gorm:"not null"` // count after this join
	PrizePool        string    `json:"prize_pool" gorm:"not null"`        // pool after this join
	CreatedAt        time.Time `json:"created_at"`
}

// EventScoresUpdated score ingestion event
type EventScoresUpdated struct {
	ID            uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	LeagueID      string    `json:"league_id" gorm:"index;not null"`
	RequestID     string    `json:"request_id" gorm:"size:66;index"` // originating oracle request, empty for direct admin ingestion
	ScoresApplied int       `json:"scores_applied" gorm:"not null"`
	CreatedAt     time.Time `json:"created_at"`
}

// EventLeagueFinalized settlement event carrying the full winner breakdown
type EventLeagueFinalized struct {
	ID        uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	LeagueID  string    `json:"league_id" gorm:"index;not null"`
	PrizePool string    `json:"prize_pool" gorm:"not null"`
	Winners   string    `json:"winners" gorm:"type:text;not null"` // JSON array of {address, rank, score, amount}
	CreatedAt time.Time `json:"created_at"`
}

// EventPrizeClaimed pull-payment claim event
type EventPrizeClaimed struct {
	ID           uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	LeagueID     string    `json:"league_id" gorm:"index;not null"`
	Participant  string    `json:"participant" gorm:"size:42;index;not null"`
	Amount       string    `json:"amount" gorm:"not null"`
	TotalClaimed string    `json:"total_claimed" gorm:"not null"` // running total after this claim
	CreatedAt    time.Time `json:"created_at"`
}

// EventEmergencyWithdrawn refund event for cancelled leagues
type EventEmergencyWithdrawn struct {
	ID          uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	LeagueID    string    `json:"league_id" gorm:"index;not null"`
	Participant string    `json:"participant" gorm:"size:42;index;not null"`
	Amount      string    `json:"amount" gorm:"not null"` // exactly the entry fee
	CreatedAt   time.Time `json:"created_at"`
}

// EventLeagueAdmin pause/unpause administrative events
type EventLeagueAdmin struct {
	ID        uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	LeagueID  string    `json:"league_id" gorm:"index;not null"`
	EventType string    `json:"event_type" gorm:"size:40;not null"` // LeaguePaused / LeagueUnpaused
	Caller    string    `json:"caller" gorm:"size:42;not null"`
	CreatedAt time.Time `json:"created_at"`
}

// EventOracleRequest oracle protocol events - one row per transition of the
// request state machine (sent, fulfilled, failed)
type EventOracleRequest struct {
	ID         uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	RequestID  string    `json:"request_id" gorm:"size:66;index;not null"`
	LeagueID   string    `json:"league_id" gorm:"index;not null"`
	EventType  string    `json:"event_type" gorm:"size:40;index;not null"` // OracleRequestSent / OracleRequestFulfilled / OracleRequestFailed
	Period     int64     `json:"period"`
	ScoreCount int       `json:"score_count"`             // scores applied on fulfillment
	Reason     string    `json:"reason" gorm:"type:text"` // provider error payload on failure
	CreatedAt  time.Time `json:"created_at"`
}

// EventOracleConfigUpdated audited configuration mutation
type EventOracleConfigUpdated struct {
	ID        uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	ConfigKey string    `json:"config_key" gorm:"size:100;index;not null"`
	OldValue  string    `json:"old_value" gorm:"type:text"`
	NewValue  string    `json:"new_value" gorm:"type:text;not null"`
	UpdatedBy string    `json:"updated_by" gorm:"size:42;not null"`
	CreatedAt time.Time `json:"created_at"`
}
