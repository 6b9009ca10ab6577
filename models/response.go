package models

// ExtractResponse is the response for POST /api/v1/extract.
type ExtractResponse struct {
	// Success indicates whether the run completed. A run that found no
	// widget is still a success.
	Success bool `json:"success"`

	// Result is the harvested record, identical to the CLI's output file.
	Result *ExtractionResult `json:"result,omitempty"`

	// SitekeySource names the fallback that produced Result.Sitekey.
	SitekeySource string `json:"sitekey_source,omitempty"`

	// HookFired reports whether the page called turnstile.render.
	HookFired bool `json:"hook_fired"`

	// Mode is the extraction mode that was used.
	Mode string `json:"mode,omitempty"`

	// Timing provides duration breakdowns for the operation.
	Timing TimingInfo `json:"timing"`

	// CacheStatus is "hit", "miss", or empty (caching not requested).
	CacheStatus string `json:"cache_status,omitempty"`

	// Error is populated only when Success is false.
	Error *ErrorDetail `json:"error,omitempty"`
}

// ProbeResponse is the response for POST /api/v1/probe.
type ProbeResponse struct {
	Success bool         `json:"success"`
	Result  *ProbeResult `json:"result,omitempty"`
	Timing  TimingInfo   `json:"timing"`
	Error   *ErrorDetail `json:"error,omitempty"`
}

// TimingInfo breaks down the time spent in each phase.
type TimingInfo struct {
	// TotalMs is the end-to-end duration in milliseconds.
	TotalMs int64 `json:"total_ms"`

	// NavigationMs is the time spent until DOMContentLoaded.
	NavigationMs int64 `json:"navigation_ms"`

	// DwellMs is the time spent waiting for the widget to initialise.
	DwellMs int64 `json:"dwell_ms"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status       string       `json:"status"` // "healthy" or "degraded"
	Uptime       string       `json:"uptime"`
	SessionStats SessionStats `json:"session_stats"`
	Version      string       `json:"version"`
}

// SessionStats reports browser session utilisation.
type SessionStats struct {
	MaxSessions    int `json:"max_sessions"`
	ActiveSessions int `json:"active_sessions"`
}
