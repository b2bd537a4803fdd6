package http

// APIResponse is the envelope every endpoint answers with. Status carries the
// logical outcome; the transport status stays 200 except for health checks.
type APIResponse struct {
	Status  int         `json:"status" example:"200"`
	Message string      `json:"message" example:"OK"`
	Data    interface{} `json:"data,omitempty"`
}

// ValidationError describes one rejected request parameter. Field is the
// query or JSON name the client sent, not the Go field name.
type ValidationError struct {
	Code    string                 `json:"code,omitempty" example:"ERR_LTE"`
	Field   string                 `json:"field,omitempty" example:"horizon"`
	Message string                 `json:"message,omitempty" example:"horizon must be less than or equal to 365"`
	Params  map[string]interface{} `json:"params,omitempty"`
}

// ListData wraps collection payloads such as the model registry listing.
type ListData struct {
	Rows  interface{} `json:"rows"`
	Total int         `json:"total"`
	Meta  interface{} `json:"meta,omitempty"`
}
