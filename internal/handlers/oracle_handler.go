package handlers

import (
	"context"
	"net/http"

	"league-backend/internal/dto"
	"league-backend/internal/services"

	"github.com/gin-gonic/gin"
)

// OracleHandler exposes the oracle bridge: outbound update requests, the
// provider fulfillment callback and the audited configuration surface
type OracleHandler struct {
	bridge *services.OracleBridgeService
}

// NewOracleHandler creates the oracle handler
func NewOracleHandler(bridge *services.OracleBridgeService) *OracleHandler {
	return &OracleHandler{bridge: bridge}
}

// RequestUpdateHandler POST /api/leagues/:id/request-update
func (h *OracleHandler) RequestUpdateHandler(c *gin.Context) {
	var req dto.RequestUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}
	caller := callerAddress(c)
	requestID, err := h.bridge.RequestUpdate(c.Request.Context(), c.Param("id"), req.Period, caller)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"success":    true,
		"request_id": requestID,
	})
}

// FulfillHandler POST /api/oracle/fulfill - the provider's asynchronous
// callback. IP-restricted, not JWT-authenticated: the provider is a machine
// peer and the request ID is the shared correlation secret.
func (h *OracleHandler) FulfillHandler(c *gin.Context) {
	var req dto.FulfillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}
	if err := h.bridge.Fulfill(c.Request.Context(), req.RequestID, req.Payload, req.Error); err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
	})
}

// UpdateSourceHandler PUT /api/oracle/config/source
func (h *OracleHandler) UpdateSourceHandler(c *gin.Context) {
	h.updateConfig(c, h.bridge.UpdateSource)
}

// UpdateQueryTemplateHandler PUT /api/oracle/config/query-template
func (h *OracleHandler) UpdateQueryTemplateHandler(c *gin.Context) {
	h.updateConfig(c, h.bridge.UpdateQueryTemplate)
}

// UpdateRequestBudgetHandler PUT /api/oracle/config/request-budget
func (h *OracleHandler) UpdateRequestBudgetHandler(c *gin.Context) {
	h.updateConfig(c, h.bridge.UpdateRequestBudget)
}

// UpdateRoutingIDHandler PUT /api/oracle/config/routing-id
func (h *OracleHandler) UpdateRoutingIDHandler(c *gin.Context) {
	h.updateConfig(c, h.bridge.UpdateRoutingID)
}

func (h *OracleHandler) updateConfig(c *gin.Context, update func(ctx context.Context, value, caller string) error) {
	var req dto.OracleConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}
	caller := callerAddress(c)
	if err := update(c.Request.Context(), req.Value, caller); err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
	})
}
