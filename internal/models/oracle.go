package models

import (
	"time"
)

// OracleRequest tracks one outstanding score request. Exactly one live row
// per request ID; the row is consumed on fulfillment, success or failure.
type OracleRequest struct {
	RequestID   string    `json:"request_id" gorm:"primaryKey;size:66"` // bytes32 hex correlation identifier
	LeagueID    string    `json:"league_id" gorm:"index;not null"`
	Period      int64     `json:"period" gorm:"not null"` // target scoring period
	RequestedBy string    `json:"requested_by" gorm:"size:42;not null"`
	CreatedAt   time.Time `json:"created_at"`
}

// OracleLeagueState carries the per-league rate-limit clock. Only successful
// fulfillments advance LastSuccessfulUpdate; failures leave the window alone.
type OracleLeagueState struct {
	LeagueID             string    `json:"league_id" gorm:"primaryKey"`
	LastSuccessfulUpdate time.Time `json:"last_successful_update"` // zero value = never updated
	UpdatedAt            time.Time `json:"updated_at"`
}

// Oracle configuration keys (oracle_configs table)
const (
	OracleConfigSource        = "oracle_source"         // provider base URL
	OracleConfigQueryTemplate = "oracle_query_template" // provider query template
	OracleConfigRequestBudget = "oracle_request_budget" // provider fee budget per request
	OracleConfigRoutingID     = "oracle_routing_id"     // provider job/route identifier
)

// OracleConfig stores bridge configuration as audited key/value rows
type OracleConfig struct {
	ConfigKey   string    `json:"config_key" gorm:"primaryKey;size:100"`
	ConfigValue string    `json:"config_value" gorm:"type:text;not null"`
	Description string    `json:"description" gorm:"type:text"`
	UpdatedBy   string    `json:"updated_by" gorm:"size:42"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
