package handlers

import (
	"math/big"
	"net/http"
	"strconv"
	"time"

	"league-backend/internal/dto"
	"league-backend/internal/models"
	"league-backend/internal/services"

	"github.com/gin-gonic/gin"
)

// RegistryHandler exposes league creation and the catalog
type RegistryHandler struct {
	registry *services.RegistryService
}

// NewRegistryHandler creates the registry handler
func NewRegistryHandler(registry *services.RegistryService) *RegistryHandler {
	return &RegistryHandler{registry: registry}
}

// CreateLeagueHandler POST /api/leagues
func (h *RegistryHandler) CreateLeagueHandler(c *gin.Context) {
	var req dto.CreateLeagueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	entryFee, ok := new(big.Int).SetString(req.EntryFee, 10)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "entry_fee must be a decimal integer string",
		})
		return
	}

	caller := callerAddress(c)
	league, err := h.registry.CreateLeague(
		c.Request.Context(),
		req.Name,
		entryFee,
		time.Duration(req.DurationSeconds)*time.Second,
		req.Distribution,
		caller,
	)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"league":  leagueResponse(league, models.LeagueStatusActive, req.DurationSeconds),
	})
}

// ListLeaguesHandler GET /api/leagues?offset=&limit=&creator=
func (h *RegistryHandler) ListLeaguesHandler(c *gin.Context) {
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if offset < 0 {
		offset = 0
	}

	var (
		leagues []*models.League
		total   int64
		err     error
	)
	if creator := c.Query("creator"); creator != "" {
		leagues, total, err = h.registry.ListByCreator(c.Request.Context(), creator, offset, limit)
	} else {
		leagues, total, err = h.registry.ListLeagues(c.Request.Context(), offset, limit)
	}
	if err != nil {
		respondServiceError(c, err)
		return
	}

	now := time.Now()
	responses := make([]dto.LeagueResponse, len(leagues))
	for i, league := range leagues {
		responses[i] = leagueResponse(league, league.Status(now), int64(league.TimeRemaining(now).Seconds()))
	}
	c.JSON(http.StatusOK, dto.PagedLeaguesResponse{
		Leagues: responses,
		Total:   total,
		Offset:  offset,
		Limit:   limit,
	})
}

// ListJoinableHandler GET /api/leagues/joinable
func (h *RegistryHandler) ListJoinableHandler(c *gin.Context) {
	leagues, err := h.registry.ListJoinable(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	now := time.Now()
	responses := make([]dto.LeagueResponse, len(leagues))
	for i, league := range leagues {
		responses[i] = leagueResponse(league, models.LeagueStatusActive, int64(league.TimeRemaining(now).Seconds()))
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"leagues": responses,
	})
}
