package apihttp

import "encoding/json"

// Client-facing messages. The admin UI matches on some of these.
const (
	msgReadFailed        = "Failed to read content"
	msgSaveFailed        = "Failed to save content"
	msgContentRequired   = "content object is required"
	msgLoginFields       = "username and password are required"
	msgInvalidCreds      = "Invalid credentials"
	msgAuthNotConfigured = "Admin auth is not configured"
	msgTokenFailed       = "Failed to create token"
	msgUploadFields      = "filename and folder are required"
	msgInvalidFolder     = "Invalid folder"
	msgMissingEnv        = "Missing required server env vars"
	msgPresignFailed     = "Failed to create upload URL"
)

type errorBody struct {
	Error string `json:"error"`
}

type HealthResponse struct {
	OK         bool     `json:"ok"`
	MissingEnv []string `json:"missingEnv,omitempty"`
}

type ContentResponse struct {
	Content json.RawMessage `json:"content"`
	// UpdatedAt is null while the built-in default is served.
	UpdatedAt *string `json:"updatedAt"`
}

type SaveContentRequest struct {
	Content json.RawMessage `json:"content"`
}

type SaveContentResponse struct {
	OK        bool   `json:"ok"`
	UpdatedAt string `json:"updatedAt"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	OK        bool   `json:"ok"`
	Token     string `json:"token"`
	ExpiresAt string `json:"expiresAt"`
}

type MeResponse struct {
	OK   bool `json:"ok"`
	User struct {
		Username string `json:"username"`
	} `json:"user"`
}

type missingEnvBody struct {
	Error      string   `json:"error"`
	MissingEnv []string `json:"missingEnv"`
}
