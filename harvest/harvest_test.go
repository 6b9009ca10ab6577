package harvest

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"

	"github.com/go-rod/rod/lib/proto"
	"github.com/use-agent/cfharvest/models"
	"github.com/ysmood/gson"
)

const (
	hookKey   = "0x4AAAAAAAHookHookHookHook"
	sourceKey = "0x4AAAAAAASourceSourceSrc"
)

func TestFilterCookies(t *testing.T) {
	cookies := []*proto.NetworkCookie{
		{Name: "sessionid", Value: "x"},
		{Name: "cf_clearance", Value: "y"},
		{Name: "__cfruid", Value: "z"},
		{Name: "other", Value: "w"},
		nil,
	}

	got := filterCookies(cookies, []string{"cf", "__cf", "clearance"})
	want := map[string]string{"cf_clearance": "y", "__cfruid": "z"}

	if !reflect.DeepEqual(got, want) {
		t.Errorf("filterCookies() = %v, want %v", got, want)
	}
}

func TestFilterCookies_EmptyIsNotNil(t *testing.T) {
	got := filterCookies(nil, []string{"cf"})
	if got == nil {
		t.Fatal("filterCookies(nil) returned nil map")
	}
	if len(got) != 0 {
		t.Errorf("len = %d, want 0", len(got))
	}
}

func TestFilterCookies_EmptyMarkerMatchesNothing(t *testing.T) {
	got := filterCookies([]*proto.NetworkCookie{{Name: "sessionid", Value: "x"}}, []string{""})
	if len(got) != 0 {
		t.Errorf("empty marker should not match, got %v", got)
	}
}

func TestResolveSitekey_Priority(t *testing.T) {
	sources := []sitekeySource{
		constSource(models.SourceRenderHook, hookKey),
		constSource(models.SourcePageSource, sourceKey),
	}

	key, source := resolveSitekey(sources)
	if key != hookKey {
		t.Errorf("key = %q, want render hook value %q", key, hookKey)
	}
	if source != models.SourceRenderHook {
		t.Errorf("source = %q, want %q", source, models.SourceRenderHook)
	}
}

func TestResolveSitekey_LaterStepsSkipped(t *testing.T) {
	calls := 0
	expensive := sitekeySource{
		name: models.SourcePageSource,
		lookup: func() string {
			calls++
			return sourceKey
		},
	}

	key, _ := resolveSitekey([]sitekeySource{
		constSource(models.SourceRenderHook, ""),
		constSource(models.SourceNetwork, hookKey),
		expensive,
	})

	if key != hookKey {
		t.Errorf("key = %q, want %q", key, hookKey)
	}
	if calls != 0 {
		t.Errorf("page source lookup ran %d times, want 0", calls)
	}
}

func TestResolveSitekey_FallsThrough(t *testing.T) {
	key, source := resolveSitekey([]sitekeySource{
		constSource(models.SourceRenderHook, ""),
		constSource(models.SourceIntrospection, ""),
		{name: models.SourceNetwork},
		constSource(models.SourceDataAttribute, ""),
		constSource(models.SourcePageSource, sourceKey),
	})

	if key != sourceKey || source != models.SourcePageSource {
		t.Errorf("got (%q, %q), want (%q, %q)", key, source, sourceKey, models.SourcePageSource)
	}
}

func TestResolveSitekey_NothingFound(t *testing.T) {
	key, source := resolveSitekey([]sitekeySource{constSource(models.SourceRenderHook, "")})
	if key != "" || source != "" {
		t.Errorf("got (%q, %q), want empty", key, source)
	}
}

func TestSniffer_FirstWins(t *testing.T) {
	var s sniffer

	s.observe("https://example.com/app.js")
	if s.found() != "" {
		t.Fatalf("unrelated URL should not match, got %q", s.found())
	}

	s.observe("https://challenges.cloudflare.com/cdn-cgi/challenge-platform/h/g/turnstile/if/ov2/av0/rcv/x/" + hookKey + "/light")
	s.observe("https://challenges.cloudflare.com/cdn-cgi/challenge-platform/h/g/turnstile/if/ov2/av0/rcv/x/" + sourceKey + "/light")

	if got := s.found(); got != hookKey {
		t.Errorf("found() = %q, want first key %q", got, hookKey)
	}
}

func TestSniffer_ConcurrentObserve(t *testing.T) {
	var s sniffer
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.observe(fmt.Sprintf("https://challenges.cloudflare.com/turnstile/0x4AAAAAAAAAAAAAAAAAAAA%04d", i))
		}(i)
	}
	wg.Wait()

	got := s.found()
	if len(got) != len("0x4AAAAAAAAAAAAAAAAAAAA0000") {
		t.Errorf("found() = %q, want one of the observed keys", got)
	}
}

func TestHookCaptureFromJSON(t *testing.T) {
	v := gson.NewFrom(`{"fired":true,"sitekey":"` + hookKey + `","cData":"cd","action":"login","chlPageData":"pd"}`)

	got := hookCaptureFromJSON(v)
	want := hookCapture{
		Fired: true,
		widgetParams: widgetParams{
			Sitekey:     hookKey,
			CData:       "cd",
			Action:      "login",
			ChlPageData: "pd",
		},
	}
	if got != want {
		t.Errorf("hookCaptureFromJSON() = %+v, want %+v", got, want)
	}
}

func TestHookCaptureFromJSON_Defensive(t *testing.T) {
	tests := []struct {
		name string
		json string
	}{
		{"empty object", `{}`},
		{"null", `null`},
		{"wrong types", `{"fired":"yes","sitekey":42,"cData":null,"action":{},"chlPageData":[]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := hookCaptureFromJSON(gson.NewFrom(tt.json))
			if got != (hookCapture{}) {
				t.Errorf("got %+v, want zero value", got)
			}
		})
	}
}

func TestIntrospection_ConfigFallback(t *testing.T) {
	i := introspectionFromJSON(gson.NewFrom(`{"sitekey":"","configSitekey":"` + sourceKey + `"}`))
	if i.sitekey() != sourceKey {
		t.Errorf("sitekey() = %q, want config key", i.sitekey())
	}

	i = introspectionFromJSON(gson.NewFrom(`{"sitekey":"` + hookKey + `","configSitekey":"` + sourceKey + `"}`))
	if i.sitekey() != hookKey {
		t.Errorf("sitekey() = %q, want widget key", i.sitekey())
	}
}

func TestFillEmpty_EarliestSourceWins(t *testing.T) {
	r := models.NewExtractionResult("https://example.com")
	fillEmpty(r, widgetParams{CData: "from-hook"})
	fillEmpty(r, widgetParams{CData: "from-widget", Action: "managed", ChlPageData: "pd"})

	if r.CData != "from-hook" {
		t.Errorf("CData = %q, want from-hook", r.CData)
	}
	if r.Action != "managed" || r.ChlPageData != "pd" {
		t.Errorf("Action/ChlPageData = %q/%q, want managed/pd", r.Action, r.ChlPageData)
	}
	if r.Sitekey != "" {
		t.Errorf("fillEmpty must not touch Sitekey, got %q", r.Sitekey)
	}
}

func TestEncodeResult_Format(t *testing.T) {
	r := &models.ExtractionResult{
		URL:     "https://example.com/?a=1&b=<2>",
		Sitekey: hookKey,
		Cookies: map[string]string{"cf_clearance": "y", "__cfruid": "z"},
	}

	got, err := EncodeResult(r)
	if err != nil {
		t.Fatal(err)
	}

	want := `{
  "url": "https://example.com/?a=1&b=<2>",
  "sitekey": "` + hookKey + `",
  "cData": "",
  "action": "",
  "chlPageData": "",
  "cookies": {
    "__cfruid": "z",
    "cf_clearance": "y"
  }
}
`
	if string(got) != want {
		t.Errorf("EncodeResult() =\n%s\nwant\n%s", got, want)
	}
}

func TestEncodeResult_NilCookies(t *testing.T) {
	got, err := EncodeResult(&models.ExtractionResult{URL: "https://example.com"})
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(got, []byte(`"cookies": {}`)) {
		t.Errorf("nil cookies should encode as {}, got %s", got)
	}
}

func TestWriteResult_Idempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cf_extracted.json")
	r := models.NewExtractionResult("https://example.com")

	if err := WriteResult(path, r); err != nil {
		t.Fatal(err)
	}
	first, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	if err := WriteResult(path, models.NewExtractionResult("https://example.com")); err != nil {
		t.Fatal(err)
	}
	second, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	if !bytes.Equal(first, second) {
		t.Errorf("outputs differ:\n%s\n---\n%s", first, second)
	}
}

func TestWriteResult_BadPath(t *testing.T) {
	err := WriteResult(filepath.Join(t.TempDir(), "missing", "out.json"), models.NewExtractionResult("https://example.com"))
	if err == nil {
		t.Fatal("expected error writing into a missing directory")
	}
	ee, ok := err.(*models.ExtractError)
	if !ok || ee.Code != models.ErrCodeOutput {
		t.Errorf("want OUTPUT_FAILED ExtractError, got %v", err)
	}
}
