package api

import "encoding/json"

// AuthRequest is the JSON body for POST /auth, dispatched on Action.
type AuthRequest struct {
	Action       string `json:"action"`
	Code         string `json:"code,omitempty"`
	Secret       string `json:"secret,omitempty"`
	SessionToken string `json:"sessionToken,omitempty"`
}

// CheckResponse is returned for action "check".
type CheckResponse struct {
	Configured bool `json:"configured"`
}

// GenerateResponse is returned for action "generate". The secret is a
// candidate only; nothing is persisted until setup.
type GenerateResponse struct {
	Secret     string `json:"secret"`
	OTPAuthURL string `json:"otpauthUrl"`
}

// SetupResponse is returned for a successful action "setup".
type SetupResponse struct {
	Success      bool   `json:"success"`
	SessionToken string `json:"sessionToken"`
}

// VerifyResponse is returned for action "verify".
type VerifyResponse struct {
	Valid        bool   `json:"valid"`
	SessionToken string `json:"sessionToken,omitempty"`
	RateLimited  bool   `json:"rateLimited,omitempty"`
}

// ValidateSessionResponse is returned for action "validate_session".
type ValidateSessionResponse struct {
	Valid bool `json:"valid"`
}

// AdminRequest is the JSON body for POST /admin. Data is decoded per
// action, and only after the session gate has passed.
type AdminRequest struct {
	Action       string          `json:"action"`
	SessionToken string          `json:"sessionToken"`
	Data         json.RawMessage `json:"data,omitempty"`
}

// OrderStatusData is the Data payload for action "order_update_status".
type OrderStatusData struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// DeleteData is the Data payload for delete actions.
type DeleteData struct {
	ID string `json:"id"`
}

// SettingData is the Data payload for action "settings_set".
type SettingData struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// CreateOrderRequest is the JSON body for the public POST /orders.
type CreateOrderRequest struct {
	ProductID string `json:"productId"`
	Email     string `json:"email"`
}

// UploadResponse is returned from POST /upload.
type UploadResponse struct {
	URL         string `json:"url"`
	ContentType string `json:"contentType"`
}

// ErrorResponse is returned for all error cases. SessionExpired is set when
// the caller should re-authenticate rather than retry.
type ErrorResponse struct {
	Error          string `json:"error"`
	SessionExpired bool   `json:"sessionExpired,omitempty"`
	RateLimited    bool   `json:"rateLimited,omitempty"`
}
