package presence

// TeamStatusResponse is the materialized presence view of one workplace.
// Every active roster member appears exactly once.
type TeamStatusResponse struct {
	WorkplaceID string         `json:"workplace_id"`
	AsOf        string         `json:"as_of"`
	Summary     Summary        `json:"summary"`
	Team        []UserPresence `json:"team"`
}

type Summary struct {
	Active  int `json:"active"`
	OnBreak int `json:"on_break"`
	Absent  int `json:"absent"`
}

// StreamTokenResponse carries a short-lived token for SSE connections, which
// authenticate via query parameter because EventSource cannot set headers.
type StreamTokenResponse struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expires_in"`
}
