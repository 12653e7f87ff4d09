package cli

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"walletd/config"
)

func testConfig() *config.Config {
	return &config.Config{
		Port:             "2121",
		BaseURL:          "https://dataapi.test/",
		ProjectID:        "abc",
		Network:          "bsc",
		ThemeMode:        "dark",
		Accent:           "#5800C3",
		Analytics:        true,
		RateLimit:        10,
		RateBurst:        10,
		RateWindowMinute: 3,
	}
}

func TestSDKOptions(t *testing.T) {
	opts := sdkOptions(testConfig())

	if opts.ProjectID != "abc" || opts.Network.ChainID.Int64() != 56 {
		t.Fatalf("unexpected options %+v", opts)
	}
	if opts.Metadata.Name != "DataAPI" || opts.Metadata.URL != "https://dataapi.test/" {
		t.Fatalf("unexpected metadata %+v", opts.Metadata)
	}
	if len(opts.Metadata.Icons) != 1 || opts.Metadata.Icons[0] != "https://dataapi.test/favicon.ico" {
		t.Fatalf("unexpected icons %v", opts.Metadata.Icons)
	}
	if opts.ThemeVariables["--w3m-accent"] != "#5800C3" || !opts.Features.Analytics {
		t.Fatalf("theme not applied: %+v", opts)
	}
	if got := opts.ThemeVariables["--w3m-border-radius-master"]; got != "2px" {
		t.Fatalf("border radius: got %q, want 2px", got)
	}
}

func TestEchoErrorEnvelope(t *testing.T) {
	e := newEcho(testConfig(), zap.NewNop())

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	var body struct {
		Success bool `json:"success"`
		Error   struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Success || body.Error.Code != "NOT_FOUND" {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
}
