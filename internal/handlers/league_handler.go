package handlers

import (
	"errors"
	"net/http"

	"league-backend/internal/dto"
	"league-backend/internal/models"
	"league-backend/internal/services"

	"github.com/gin-gonic/gin"
)

// LeagueHandler exposes the league lifecycle over HTTP
type LeagueHandler struct {
	leagues *services.LeagueService
}

// NewLeagueHandler creates the league handler
func NewLeagueHandler(leagues *services.LeagueService) *LeagueHandler {
	return &LeagueHandler{leagues: leagues}
}

// callerAddress reads the wallet address the auth middleware stored on the
// context; empty on unauthenticated routes.
func callerAddress(c *gin.Context) string {
	address, _ := c.Get("caller_address")
	caller, _ := address.(string)
	return caller
}

// respondServiceError maps the service error taxonomy onto HTTP statuses.
func respondServiceError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrLeagueNotFound),
		errors.Is(err, services.ErrNotJoined):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrNotAuthorized):
		status = http.StatusForbidden
	case errors.Is(err, services.ErrInvalidScoresLength),
		errors.Is(err, services.ErrInvalidEntryFee),
		errors.Is(err, services.ErrInvalidDuration),
		errors.Is(err, services.ErrInvalidLeagueName),
		errors.Is(err, services.ErrInvalidDistribution),
		errors.Is(err, services.ErrUnexpectedRequestID),
		errors.Is(err, services.ErrEmptyResponse),
		errors.Is(err, services.ErrEmptyConfigValue),
		errors.Is(err, services.ErrInvalidConfigValue):
		status = http.StatusBadRequest
	case errors.Is(err, services.ErrAlreadyJoined),
		errors.Is(err, services.ErrLeagueNotStarted),
		errors.Is(err, services.ErrLeagueEnded),
		errors.Is(err, services.ErrLeagueCancelled),
		errors.Is(err, services.ErrLeagueNotEnded),
		errors.Is(err, services.ErrLeagueFinalized),
		errors.Is(err, services.ErrScoresNotReady),
		errors.Is(err, services.ErrAlreadyFinalized),
		errors.Is(err, services.ErrNotFinalized),
		errors.Is(err, services.ErrNoClaimableWinnings),
		errors.Is(err, services.ErrAlreadyPaused),
		errors.Is(err, services.ErrNotPaused),
		errors.Is(err, services.ErrRequestPending):
		status = http.StatusConflict
	case errors.Is(err, services.ErrUpdateTooSoon):
		status = http.StatusTooManyRequests
	case errors.Is(err, services.ErrSourceNotConfigured):
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{
		"success": false,
		"error":   err.Error(),
	})
}

func leagueResponse(league *models.League, status models.LeagueStatus, remaining int64) dto.LeagueResponse {
	distribution, _ := league.Distribution()
	return dto.LeagueResponse{
		ID:               league.ID,
		Address:          league.Address,
		Name:             league.Name,
		Creator:          league.Creator,
		TokenAddress:     league.TokenAddress,
		EntryFee:         league.EntryFee,
		Distribution:     distribution,
		StartTime:        league.StartTime.Unix(),
		EndTime:          league.EndTime.Unix(),
		Status:           string(status),
		TimeRemaining:    remaining,
		PrizePool:        league.PrizePool,
		TotalClaimed:     league.TotalClaimed,
		ParticipantCount: league.ParticipantCount,
	}
}

func participantResponse(p *models.Participant) dto.ParticipantResponse {
	return dto.ParticipantResponse{
		Address:         p.Address,
		JoinIndex:       p.JoinIndex,
		Joined:          p.Joined,
		Score:           p.Score,
		ScoreReported:   p.ScoreReported,
		Rank:            p.Rank,
		ClaimableAmount: p.ClaimableAmount,
		Claimed:         p.Claimed,
	}
}

// GetLeagueHandler GET /api/leagues/:id
func (h *LeagueHandler) GetLeagueHandler(c *gin.Context) {
	leagueID := c.Param("id")
	league, err := h.leagues.GetLeague(c.Request.Context(), leagueID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	status, err := h.leagues.LeagueStatus(c.Request.Context(), leagueID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	remaining, _ := h.leagues.TimeRemaining(c.Request.Context(), leagueID)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"league":  leagueResponse(league, status, int64(remaining.Seconds())),
	})
}

// GetParticipantsHandler GET /api/leagues/:id/participants
func (h *LeagueHandler) GetParticipantsHandler(c *gin.Context) {
	participants, err := h.leagues.GetParticipants(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	responses := make([]dto.ParticipantResponse, len(participants))
	for i, p := range participants {
		responses[i] = participantResponse(p)
	}
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"participants": responses,
	})
}

// GetParticipantHandler GET /api/leagues/:id/participants/:address
func (h *LeagueHandler) GetParticipantHandler(c *gin.Context) {
	participant, err := h.leagues.GetParticipant(c.Request.Context(), c.Param("id"), c.Param("address"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"participant": participantResponse(participant),
	})
}

// GetPrizeBreakdownHandler GET /api/leagues/:id/prizes
func (h *LeagueHandler) GetPrizeBreakdownHandler(c *gin.Context) {
	breakdown, err := h.leagues.PrizeBreakdown(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"prizes":  breakdown,
	})
}

// JoinHandler POST /api/leagues/:id/join
func (h *LeagueHandler) JoinHandler(c *gin.Context) {
	caller := callerAddress(c)
	if err := h.leagues.Join(c.Request.Context(), c.Param("id"), caller); err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "joined",
	})
}

// IngestScoresHandler POST /api/leagues/:id/scores - direct administrative
// ingestion, requires the oracle capability
func (h *LeagueHandler) IngestScoresHandler(c *gin.Context) {
	var req dto.IngestScoresRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}
	caller := callerAddress(c)
	applied, err := h.leagues.IngestScores(c.Request.Context(), c.Param("id"), req.Participants, req.Scores, caller, "")
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"scores_applied": applied,
	})
}

// FinalizeHandler POST /api/leagues/:id/finalize
func (h *LeagueHandler) FinalizeHandler(c *gin.Context) {
	caller := callerAddress(c)
	if err := h.leagues.Finalize(c.Request.Context(), c.Param("id"), caller); err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "finalized",
	})
}

// ClaimHandler POST /api/leagues/:id/claim
func (h *LeagueHandler) ClaimHandler(c *gin.Context) {
	caller := callerAddress(c)
	amount, err := h.leagues.ClaimPrize(c.Request.Context(), c.Param("id"), caller)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"amount":  amount.String(),
	})
}

// EmergencyWithdrawHandler POST /api/leagues/:id/emergency-withdraw
func (h *LeagueHandler) EmergencyWithdrawHandler(c *gin.Context) {
	caller := callerAddress(c)
	if err := h.leagues.EmergencyWithdraw(c.Request.Context(), c.Param("id"), caller); err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "withdrawn",
	})
}

// PauseHandler POST /api/leagues/:id/pause
func (h *LeagueHandler) PauseHandler(c *gin.Context) {
	caller := callerAddress(c)
	if err := h.leagues.Pause(c.Request.Context(), c.Param("id"), caller); err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "paused",
	})
}

// UnpauseHandler POST /api/leagues/:id/unpause
func (h *LeagueHandler) UnpauseHandler(c *gin.Context) {
	caller := callerAddress(c)
	if err := h.leagues.Unpause(c.Request.Context(), c.Param("id"), caller); err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "unpaused",
	})
}
