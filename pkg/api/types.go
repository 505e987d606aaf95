package api

// HealthResponse is the body of the liveness endpoint
type HealthResponse struct {
	OK      bool   `json:"ok"`
	Service string `json:"service"`
}
