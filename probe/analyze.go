package probe

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/use-agent/cfharvest/models"
	"github.com/use-agent/cfharvest/sitekey"
	"golang.org/x/net/html"
)

var (
	turnstileScript = cascadia.MustCompile(`script[src*="challenges.cloudflare.com/turnstile"]`)
	widgetSelector  = ".cf-turnstile, [data-sitekey]"
)

// challengeMarkers appear in the source of a Cloudflare interstitial.
var challengeMarkers = []string{"_cf_chl_opt", "cf-chl-", "/cdn-cgi/challenge-platform/"}

// Analyze inspects raw HTML for Turnstile markers. Unparseable input yields
// an empty result.
func Analyze(rawHTML string) *models.ProbeResult {
	result := &models.ProbeResult{}

	root, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return result
	}
	doc := goquery.NewDocumentFromNode(root)

	result.Title = strings.TrimSpace(doc.Find("title").First().Text())

	hasScript := len(cascadia.QueryAll(root, turnstileScript)) > 0
	widgets := doc.Find(widgetSelector)

	var values []string
	doc.Find("[data-sitekey]").Each(func(_ int, s *goquery.Selection) {
		if v, ok := s.Attr("data-sitekey"); ok {
			values = append(values, v)
		}
	})

	if key := sitekey.FirstValid(values); key != "" {
		result.Sitekey = key
		result.SitekeySource = models.SourceDataAttribute
	} else if key := sitekey.FromSource(rawHTML); key != "" {
		result.Sitekey = key
		result.SitekeySource = models.SourcePageSource
	}

	result.ChallengePage = strings.EqualFold(result.Title, "Just a moment...") || containsAny(rawHTML, challengeMarkers)
	result.Detected = hasScript ||
		widgets.Length() > 0 ||
		result.Sitekey != "" ||
		strings.Contains(rawHTML, "turnstile.render")

	return result
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
