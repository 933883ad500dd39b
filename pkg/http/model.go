package http

// APIResponse is the envelope every endpoint writes. Status mirrors
// the semantic status code; the transport-level code stays 200 so
// clients always get a parseable body.
type APIResponse struct {
	Status  int         `json:"status" example:"200"`
	Message string      `json:"message" example:"OK"`
	Data    interface{} `json:"data,omitempty"`
}

// ValidationError describes one failed request field.
type ValidationError struct {
	Code    string                 `json:"code,omitempty" example:"ERR_REQUIRED"`
	Field   string                 `json:"field,omitempty" example:"q"`
	Message string                 `json:"message,omitempty" example:"q is required"`
	Params  map[string]interface{} `json:"params,omitempty"`
}
