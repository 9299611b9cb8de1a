package ratelimit

import (
	"net/http"
	"strings"
	"time"
)

// EndpointConfig represents rate limiting configuration for a specific endpoint.
type EndpointConfig struct {
	Path   string        // Endpoint path pattern (supports prefix matching)
	Method string        // HTTP method (GET, POST, etc.)
	Limit  int           // Maximum requests per window
	Window time.Duration // Time window
	Burst  int           // Burst capacity (defaults to Limit if 0)
}

// Config holds rate limiting configuration. Requests that match no endpoint are limited by
// DefaultLimit per DefaultWindow; a zero DefaultLimit leaves them unlimited.
type Config struct {
	Enabled         bool
	DefaultLimit    int
	DefaultWindow   time.Duration
	CleanupInterval time.Duration
	IdleTimeout     time.Duration
	Whitelist       map[string]bool
	Blacklist       map[string]bool
	EndpointConfigs []EndpointConfig
}

// Defaults
const (
	DefaultCleanupInterval = 5 * time.Minute
	DefaultIdleTimeout     = time.Hour
)

// PricingConfig limits every pricing endpoint to perMinute requests per client with the given
// burst. Reads stay unlimited. A non-positive perMinute disables limiting.
func PricingConfig(perMinute, burst int, whitelist string) *Config {
	if perMinute <= 0 {
		return &Config{Enabled: false}
	}
	return &Config{
		Enabled:         true,
		DefaultWindow:   time.Minute,
		CleanupInterval: DefaultCleanupInterval,
		IdleTimeout:     DefaultIdleTimeout,
		Whitelist:       parseIPList(whitelist),
		Blacklist:       map[string]bool{},
		EndpointConfigs: PricingEndpoints(perMinute, burst),
	}
}

// PricingEndpoints returns the limited routes. The batch route costs as much as several single
// calls, so it gets a tenth of the budget.
func PricingEndpoints(perMinute, burst int) []EndpointConfig {
	batch := max(perMinute/10, 1)
	return []EndpointConfig{
		{Path: "/price", Method: http.MethodPost, Limit: perMinute, Window: time.Minute, Burst: burst},
		{Path: "/price/stream", Method: http.MethodPost, Limit: perMinute, Window: time.Minute, Burst: burst},
		{Path: "/price/batch", Method: http.MethodPost, Limit: batch, Window: time.Minute, Burst: max(burst/10, 1)},
	}
}

// parseIPList parses a comma-separated list of IP addresses into a map.
func parseIPList(list string) map[string]bool {
	result := make(map[string]bool)
	if list == "" {
		return result
	}

	ips := strings.Split(list, ",")
	for _, ip := range ips {
		ip = strings.TrimSpace(ip)
		if ip != "" {
			result[ip] = true
		}
	}

	return result
}
