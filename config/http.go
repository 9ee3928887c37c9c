package config

// HTTPConfig contains HTTP server configuration.
type HTTPConfig struct {
	// Addr is the address to bind the HTTP server to.
	Addr string `env:"HTTP_ADDR" envDefault:":4100"`

	// BaseURL is the base URL of the aggregator (e.g., "https://agg.zecrep.io").
	// Used for generating absolute URLs in webhook payloads and other external contexts.
	BaseURL string `env:"APP_BASE_URL" envDefault:"http://localhost:4100"`
}

// Sanitize applies guardrails to HTTP configuration values.
func (h *HTTPConfig) Sanitize() {
	if h.Addr == "" {
		h.Addr = ":4100"
	}
}
