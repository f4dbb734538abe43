package config

// SearXNGConfig holds SearXNG service configuration for optional web search.
// Web search is disabled when BaseURL is empty.
type SearXNGConfig struct {
	// BaseURL is the SearXNG instance URL (e.g., http://searxng:8080)
	BaseURL string `mapstructure:"base_url" json:"base_url"`
}

// Enabled reports whether a SearXNG instance has been configured.
func (s SearXNGConfig) Enabled() bool {
	return s.BaseURL != ""
}
