package model

// AuthenticationResult is the transient outcome of every login path:
// direct, federated, and refresh-token rotation all terminate here.
// It is never persisted. When IsAuthenticated is false, Message carries
// the reason and every token field is empty; callers render it inline
// instead of surfacing an HTTP error.
type AuthenticationResult struct {
	IsAuthenticated bool   `json:"is_authenticated"`
	Token           string `json:"token,omitempty"`
	RefreshToken    string `json:"refresh_token,omitempty"`
	ExpiresIn       int64  `json:"expires_in,omitempty"` // access token lifetime in seconds
	Email           string `json:"email,omitempty"`
	UserID          uint64 `json:"user_id,omitempty"`
	Role            string `json:"role,omitempty"`
	Message         string `json:"message,omitempty"`
}
