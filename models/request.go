package models

import (
	"net/url"
	"strings"
)

// ExtractRequest is the payload for POST /api/v1/extract. The CLI builds
// one from its single positional argument.
type ExtractRequest struct {
	// URL is the target page. Required, absolute http(s).
	URL string `json:"url" binding:"required,url"`

	// Mode is "basic" or "thorough". Empty means the server default.
	Mode string `json:"mode,omitempty" binding:"omitempty,oneof=basic thorough"`

	// DwellSeconds overrides the post-navigation wait. 0 = mode default.
	DwellSeconds int `json:"dwell_seconds,omitempty" binding:"omitempty,min=1,max=120"`

	// MaxAge enables the response cache: a cached result younger than
	// MaxAge milliseconds is returned without launching a session.
	MaxAge int `json:"max_age,omitempty" binding:"omitempty,min=0"`

	// WebhookURL receives an extraction.completed / extraction.failed event.
	WebhookURL string `json:"webhook_url,omitempty" binding:"omitempty,url"`
}

// Validate checks the URL shape. Gin binding covers the API path; the CLI
// calls this directly.
func (r *ExtractRequest) Validate() error {
	return ValidateTargetURL(r.URL)
}

// ProbeRequest is the payload for POST /api/v1/probe.
type ProbeRequest struct {
	URL string `json:"url" binding:"required,url"`
}

// ValidateTargetURL accepts absolute http and https URLs with a host.
func ValidateTargetURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return NewExtractError(ErrCodeInvalidInput, "url is required", nil)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return NewExtractError(ErrCodeInvalidInput, "url is not parseable", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return NewExtractError(ErrCodeInvalidInput, "url scheme must be http or https", nil)
	}
	if u.Host == "" {
		return NewExtractError(ErrCodeInvalidInput, "url has no host", nil)
	}
	return nil
}
