package dto

// CreateLeagueRequest registry creation request
type CreateLeagueRequest struct {
	Name            string   `json:"name" binding:"required"`
	EntryFee        string   `json:"entry_fee" binding:"required"`         // smallest token unit, decimal string
	DurationSeconds int64    `json:"duration_seconds" binding:"required"`  // competition window length
	Distribution    []uint64 `json:"distribution" binding:"required"`      // prize percentages, sum = 100
}

// IngestScoresRequest direct administrative score ingestion
type IngestScoresRequest struct {
	Participants []string `json:"participants" binding:"required"` // 0x-hex addresses
	Scores       []uint64 `json:"scores" binding:"required"`
}

// LeagueResponse one catalog entry
type LeagueResponse struct {
	ID               string   `json:"id"`
	Address          string   `json:"address"`
	Name             string   `json:"name"`
	Creator          string   `json:"creator"`
	TokenAddress     string   `json:"token_address"`
	EntryFee         string   `json:"entry_fee"`
	Distribution     []uint64 `json:"distribution"`
	StartTime        int64    `json:"start_time"` // unix seconds
	EndTime          int64    `json:"end_time"`
	Status           string   `json:"status"`
	TimeRemaining    int64    `json:"time_remaining_seconds"`
	PrizePool        string   `json:"prize_pool"`
	TotalClaimed     string   `json:"total_claimed"`
	ParticipantCount int      `json:"participant_count"`
}

// ParticipantResponse one member's staking and settlement state
type ParticipantResponse struct {
	Address         string `json:"address"`
	JoinIndex       int    `json:"join_index"`
	Joined          bool   `json:"joined"`
	Score           uint64 `json:"score"`
	ScoreReported   bool   `json:"score_reported"`
	Rank            int    `json:"rank,omitempty"`
	ClaimableAmount string `json:"claimable_amount"`
	Claimed         bool   `json:"claimed"`
}

// PagedLeaguesResponse one catalog page
type PagedLeaguesResponse struct {
	Leagues []LeagueResponse `json:"leagues"`
	Total   int64            `json:"total"`
	Offset  int              `json:"offset"`
	Limit   int              `json:"limit"`
}
