package app

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/finledger/internal/observability"
	"github.com/odyssey-erp/finledger/internal/shared"
	_ "github.com/odyssey-erp/finledger/testing"
)

func TestInTestMode(t *testing.T) {
	RefreshTestMode()
	require.True(t, InTestMode())
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("RISK_CRITICAL_RATIO", "0.5")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.True(t, cfg.IsProduction())
	require.Equal(t, 0.5, cfg.RiskPolicy().CriticalRatio)
	require.Equal(t, 0.2, cfg.RiskPolicy().WarningRatio)
	require.Equal(t, 3, cfg.RetryPolicy().Attempts)
	require.Equal(t, 30, cfg.SupplierTermsDays)
}

func TestConfigValidate(t *testing.T) {
	cfg := Config{PGDSN: "postgres://x", RiskCriticalRatio: 0.2, RiskWarningRatio: 0.4}
	require.Error(t, cfg.Validate())
	cfg.RiskCriticalRatio, cfg.RiskWarningRatio = 0.4, 0.2
	require.NoError(t, cfg.Validate())
	cfg.SupplierTermsDays = -1
	require.Error(t, cfg.Validate())
}

func TestRouterHealthAndMetrics(t *testing.T) {
	metrics := observability.NewMetrics()
	router := NewRouter(RouterParams{Config: &Config{RateLimitPerMinute: 0}, Metrics: metrics})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, "ok", body["status"])
	require.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `finledger_http_requests_total{code="200",route="/healthz"} 1`)
}

func TestActorMiddleware(t *testing.T) {
	var seen string
	h := ActorMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = shared.ActorFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(ActorHeader, " u-42 ")
	h.ServeHTTP(httptest.NewRecorder(), req)
	require.Equal(t, "u-42", seen)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, shared.SystemActor, seen)
}

func TestCronSchedule(t *testing.T) {
	cron, err := CronSchedule()
	require.NoError(t, err)
	require.Len(t, cron, 4)
	require.Equal(t, "5 0 * * *", cron[0].Spec)
}
