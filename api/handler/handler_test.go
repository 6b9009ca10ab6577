package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/cfharvest/cache"
	"github.com/use-agent/cfharvest/config"
	"github.com/use-agent/cfharvest/harvest"
	"github.com/use-agent/cfharvest/models"
	"github.com/use-agent/cfharvest/webhook"
)

const testKey = "0x4AAAAAAADnPIDROrmt1Wwj"

var thoroughCfg = config.ExtractorConfig{Mode: config.ModeThorough}

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeExtractor struct {
	calls atomic.Int32
	mode  string
	err   error
}

func (f *fakeExtractor) Extract(_ context.Context, req *models.ExtractRequest) (*harvest.Report, error) {
	f.calls.Add(1)
	f.mode = req.Mode
	if f.err != nil {
		return nil, f.err
	}
	r := models.NewExtractionResult(req.URL)
	r.Sitekey = testKey
	r.Cookies["cf_clearance"] = "abc"
	return &harvest.Report{
		Result:        r,
		SitekeySource: models.SourceRenderHook,
		HookFired:     true,
		Mode:          req.Mode,
		Navigation:    120 * time.Millisecond,
		Dwell:         time.Second,
	}, nil
}

func (f *fakeExtractor) Stats() models.SessionStats {
	return models.SessionStats{MaxSessions: 5, ActiveSessions: 5}
}

type fakeProber struct {
	err error
}

func (f fakeProber) Probe(_ context.Context, url string) (*models.ProbeResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.ProbeResult{URL: url, StatusCode: 200, Detected: true, Sitekey: testKey}, nil
}

func post(t *testing.T, h gin.HandlerFunc, body string) (*httptest.ResponseRecorder, models.ExtractResponse) {
	t.Helper()
	r := gin.New()
	r.POST("/", h)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	var resp models.ExtractResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return w, resp
}

func TestExtract_Success(t *testing.T) {
	ex := &fakeExtractor{}
	w, resp := post(t, Extract(ex, nil, thoroughCfg, ""), `{"url":"https://example.com/login"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if !resp.Success || resp.Result == nil || resp.Result.Sitekey != testKey {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.SitekeySource != models.SourceRenderHook || !resp.HookFired {
		t.Errorf("diagnostics = %q %v", resp.SitekeySource, resp.HookFired)
	}
	if resp.Timing.DwellMs != 1000 || resp.Timing.NavigationMs != 120 {
		t.Errorf("timing = %+v", resp.Timing)
	}
	if ex.mode != "thorough" {
		t.Errorf("default mode not applied: %q", ex.mode)
	}
	if resp.CacheStatus != "" {
		t.Errorf("CacheStatus = %q without max_age", resp.CacheStatus)
	}
}

func TestExtract_BadRequest(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing url", `{}`},
		{"not a url", `{"url":"example"}`},
		{"unknown mode", `{"url":"https://example.com","mode":"fast"}`},
		{"dwell too long", `{"url":"https://example.com","dwell_seconds":500}`},
		{"not json", `url=https://example.com`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex := &fakeExtractor{}
			w, resp := post(t, Extract(ex, nil, thoroughCfg, ""), tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
			if resp.Error == nil || resp.Error.Code != models.ErrCodeInvalidInput {
				t.Errorf("error = %+v", resp.Error)
			}
			if ex.calls.Load() != 0 {
				t.Error("extractor must not run for an invalid request")
			}
		})
	}
}

func TestExtract_ErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
		code string
	}{
		{models.NewExtractError(models.ErrCodeTimeout, "slow", nil), http.StatusGatewayTimeout, models.ErrCodeTimeout},
		{models.NewExtractError(models.ErrCodeNavigation, "dns", nil), http.StatusBadGateway, models.ErrCodeNavigation},
		{models.NewExtractError(models.ErrCodeBusy, "full", nil), http.StatusServiceUnavailable, models.ErrCodeBusy},
		{models.NewExtractError(models.ErrCodeBrowserCrash, "gone", nil), http.StatusInternalServerError, models.ErrCodeBrowserCrash},
		{errors.New("boom"), http.StatusInternalServerError, models.ErrCodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			w, resp := post(t, Extract(&fakeExtractor{err: tt.err}, nil, thoroughCfg, ""), `{"url":"https://example.com"}`)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
			if resp.Success || resp.Error == nil || resp.Error.Code != tt.code {
				t.Errorf("response = %+v", resp)
			}
		})
	}
}

func TestExtract_Cache(t *testing.T) {
	cc := cache.New(10)
	defer cc.Stop()
	ex := &fakeExtractor{}
	h := Extract(ex, cc, thoroughCfg, "")

	_, first := post(t, h, `{"url":"https://example.com","max_age":60000}`)
	if first.CacheStatus != "miss" {
		t.Fatalf("first CacheStatus = %q, want miss", first.CacheStatus)
	}
	_, second := post(t, h, `{"url":"https://example.com","max_age":60000}`)
	if second.CacheStatus != "hit" || second.Result == nil || second.Result.Sitekey != testKey {
		t.Fatalf("second response = %+v", second)
	}
	if ex.calls.Load() != 1 {
		t.Errorf("extractor ran %d times, want 1", ex.calls.Load())
	}

	// A different mode is a different cache entry.
	post(t, h, `{"url":"https://example.com","mode":"basic","max_age":60000}`)
	if ex.calls.Load() != 2 {
		t.Errorf("extractor ran %d times, want 2", ex.calls.Load())
	}

	// So is a different dwell: a short run must not answer a long one.
	post(t, h, `{"url":"https://example.com","dwell_seconds":1,"max_age":60000}`)
	_, long := post(t, h, `{"url":"https://example.com","dwell_seconds":60,"max_age":60000}`)
	if long.CacheStatus != "miss" {
		t.Errorf("dwell 60 CacheStatus = %q, want miss", long.CacheStatus)
	}
	if ex.calls.Load() != 4 {
		t.Errorf("extractor ran %d times, want 4", ex.calls.Load())
	}

	// The mode default and an explicit equal dwell share an entry.
	_, same := post(t, h, `{"url":"https://example.com","dwell_seconds":30,"max_age":60000}`)
	if same.CacheStatus != "hit" {
		t.Errorf("explicit default dwell CacheStatus = %q, want hit", same.CacheStatus)
	}
}

func TestExtract_Webhook(t *testing.T) {
	got := make(chan webhook.Event, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var ev webhook.Event
		_ = json.Unmarshal(body, &ev)
		got <- ev
	}))
	defer srv.Close()

	post(t, Extract(&fakeExtractor{}, nil, config.ExtractorConfig{Mode: config.ModeBasic}, "secret"),
		`{"url":"https://example.com","webhook_url":"`+srv.URL+`"}`)

	select {
	case ev := <-got:
		if ev.Type != webhook.EventExtractionCompleted || ev.URL != "https://example.com" {
			t.Errorf("event = %+v", ev)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("webhook not delivered")
	}
}

func TestProbe(t *testing.T) {
	r := gin.New()
	r.POST("/ok", Probe(fakeProber{}))
	r.POST("/fail", Probe(fakeProber{err: models.NewExtractError(models.ErrCodeProbe, "refused", nil)}))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/ok", bytes.NewBufferString(`{"url":"https://example.com"}`)))
	var resp models.ProbeResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if w.Code != http.StatusOK || !resp.Success || resp.Result.Sitekey != testKey {
		t.Errorf("ok: status %d, %+v", w.Code, resp)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/fail", bytes.NewBufferString(`{"url":"https://example.com"}`)))
	if w.Code != http.StatusBadGateway {
		t.Errorf("fail: status = %d, want 502", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/ok", bytes.NewBufferString(`{}`)))
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing url: status = %d, want 400", w.Code)
	}
}

func TestHealth_Degraded(t *testing.T) {
	r := gin.New()
	r.GET("/health", Health(&fakeExtractor{}, time.Now()))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	var resp models.HealthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "degraded" || resp.SessionStats.ActiveSessions != 5 || resp.Version != Version {
		t.Errorf("health = %+v", resp)
	}
}
