package dto

// RequestUpdateRequest asks the bridge to dispatch a score request
type RequestUpdateRequest struct {
	Period int64 `json:"period" binding:"required"` // target scoring period
}

// FulfillRequest is the provider's asynchronous callback body. Payload
// carries the packed score response; Error is non-empty when the provider
// could not produce data for the request.
type FulfillRequest struct {
	RequestID string `json:"request_id" binding:"required"`
	Payload   string `json:"payload"` // 0x-hex packed (count, addresses, scores)
	Error     string `json:"error"`
}

// OracleConfigRequest one audited configuration mutation
type OracleConfigRequest struct {
	Value string `json:"value" binding:"required"`
}
