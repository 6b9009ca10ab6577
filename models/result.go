package models

// ExtractionResult is the record written to cf_extracted.json.
// Field order here is the key order in the output file.
type ExtractionResult struct {
	URL         string `json:"url"`
	Sitekey     string `json:"sitekey"`
	CData       string `json:"cData"`
	Action      string `json:"action"`
	ChlPageData string `json:"chlPageData"`

	// Cookies only holds names that matched the vendor filter. Never nil,
	// so it serialises as {} rather than null.
	Cookies map[string]string `json:"cookies"`
}

// NewExtractionResult returns an empty result for url.
func NewExtractionResult(url string) *ExtractionResult {
	return &ExtractionResult{
		URL:     url,
		Cookies: map[string]string{},
	}
}

// Sitekey sources, in fallback priority order.
const (
	SourceRenderHook    = "render_hook"
	SourceIntrospection = "introspection"
	SourceNetwork       = "network"
	SourceDataAttribute = "data_attribute"
	SourcePageSource    = "page_source"
)

// ProbeResult is what the static probe learns about a page from its raw HTML.
type ProbeResult struct {
	URL        string `json:"url"`
	FinalURL   string `json:"final_url"`
	StatusCode int    `json:"status_code"`
	Title      string `json:"title,omitempty"`

	// Detected is true when any Turnstile marker is present.
	Detected bool `json:"detected"`

	// Sitekey and SitekeySource are empty when no well-formed key was found.
	Sitekey       string `json:"sitekey,omitempty"`
	SitekeySource string `json:"sitekey_source,omitempty"`

	// ChallengePage is true for a Cloudflare interstitial ("Just a moment...").
	ChallengePage bool `json:"challenge_page"`
}
