package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/iwvelando/solar-estimator/internal/estimator"
	"github.com/iwvelando/solar-estimator/internal/metrics"
	"github.com/iwvelando/solar-estimator/internal/pvgis"
	"github.com/iwvelando/solar-estimator/internal/pvgis/cache"
	"github.com/iwvelando/solar-estimator/pkg/assumptions"
	"github.com/iwvelando/solar-estimator/pkg/savings"
	"github.com/iwvelando/solar-estimator/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// stubProvider answers every query with the same reply or error.
type stubProvider struct {
	body  []byte
	err   error
	calls atomic.Int32
}

func (s *stubProvider) Fetch(_ context.Context, _ pvgis.Query) (*pvgis.Response, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return pvgis.DecodeResponse(s.body)
}

type testServer struct {
	handler  http.Handler
	upstream *stubProvider
	metrics  *metrics.Metrics
}

func newTestServer(t *testing.T, upstream *stubProvider, mutate ...func(*Options)) *testServer {
	t.Helper()
	if upstream.body == nil && upstream.err == nil {
		upstream.body = testutil.PVGISBody(testutil.RiyadhMonthly)
	}
	m := metrics.New()
	opts := Options{
		Logger:      zap.NewNop(),
		Metrics:     m,
		Assumptions: assumptions.Default(),
		Provider:    pvgis.NewCachedProvider(upstream, cache.NewMemoryStore(time.Hour), zap.NewNop(), m),
		Version:     "1.2.3",
	}
	for _, fn := range mutate {
		fn(&opts)
	}
	return &testServer{handler: NewHandler(opts), upstream: upstream, metrics: m}
}

func (s *testServer) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

func TestHealthAndVersion(t *testing.T) {
	srv := newTestServer(t, &stubProvider{})

	rr := srv.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", decode[map[string]string](t, rr)["status"])

	rr = srv.do(t, http.MethodGet, "/api/version", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	got := decode[map[string]string](t, rr)
	assert.Equal(t, "1.2.3", got["version"])
	assert.Equal(t, assumptions.Default().Version, got["assumptionsVersion"])

	rr = srv.do(t, http.MethodPost, "/health", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestVersionDefaultsToDev(t *testing.T) {
	srv := newTestServer(t, &stubProvider{}, func(o *Options) { o.Version = "  " })
	rr := srv.do(t, http.MethodGet, "/api/version", nil)
	assert.Equal(t, "dev", decode[map[string]string](t, rr)["version"])
}

func TestCities(t *testing.T) {
	srv := newTestServer(t, &stubProvider{})

	type cityList struct {
		Region string `json:"region"`
		Cities []struct {
			ID string `json:"id"`
		} `json:"cities"`
	}

	tests := []struct {
		name       string
		target     string
		wantStatus int
		wantCount  int
		wantRegion string
	}{
		{name: "all", target: "/api/cities", wantStatus: http.StatusOK, wantCount: 16},
		{name: "region", target: "/api/cities?region=eastern", wantStatus: http.StatusOK, wantCount: 4, wantRegion: "Eastern"},
		{name: "unknown region", target: "/api/cities?region=atlantis", wantStatus: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := srv.do(t, http.MethodGet, tt.target, nil)
			require.Equal(t, tt.wantStatus, rr.Code, rr.Body.String())
			if tt.wantStatus != http.StatusOK {
				assert.Contains(t, decode[map[string]string](t, rr)["error"], "Central")
				return
			}
			got := decode[cityList](t, rr)
			assert.Len(t, got.Cities, tt.wantCount)
			assert.Equal(t, tt.wantRegion, got.Region)
		})
	}

	rr := srv.do(t, http.MethodGet, "/api/cities/Jeddah", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "jeddah", decode[map[string]any](t, rr)["id"])

	rr = srv.do(t, http.MethodGet, "/api/cities/atlantis", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestAssumptions(t *testing.T) {
	srv := newTestServer(t, &stubProvider{})
	rr := srv.do(t, http.MethodGet, "/api/assumptions", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var got struct {
		Version     string              `json:"version"`
		Assumptions assumptions.Set     `json:"assumptions"`
		Entries     []assumptions.Entry `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, assumptions.Default().Version, got.Version)
	assert.Equal(t, assumptions.Default().Tariff, got.Assumptions.Tariff)
	assert.Equal(t, assumptions.Default().Entries(), got.Entries)
}

func TestPVGISProxy(t *testing.T) {
	const target = "/api/pvgis?lat=24.7136&lon=46.6753&peakpower=21.6&loss=18.3&angle=22&aspect=0"

	t.Run("miss then hit", func(t *testing.T) {
		srv := newTestServer(t, &stubProvider{})

		rr := srv.do(t, http.MethodGet, target, nil)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		assert.Equal(t, "MISS", rr.Header().Get("X-Cache"))
		assert.JSONEq(t, string(srv.upstream.body), rr.Body.String())

		rr = srv.do(t, http.MethodGet, target, nil)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "HIT", rr.Header().Get("X-Cache"))
		assert.JSONEq(t, string(srv.upstream.body), rr.Body.String())
		assert.Equal(t, int32(1), srv.upstream.calls.Load())
	})

	tests := []struct {
		name       string
		target     string
		err        error
		wantStatus int
	}{
		{name: "missing lat", target: "/api/pvgis?lon=46&peakpower=5&loss=14", wantStatus: http.StatusBadRequest},
		{name: "outside bounds", target: "/api/pvgis?lat=51.5&lon=0&peakpower=5&loss=14", wantStatus: http.StatusBadRequest},
		{name: "bad flag", target: target + "&optimalangles=yes", wantStatus: http.StatusBadRequest},
		{
			name:       "upstream error",
			target:     target,
			err:        &pvgis.UpstreamError{StatusCode: http.StatusInternalServerError, Body: "boom"},
			wantStatus: http.StatusBadGateway,
		},
		{
			name:       "malformed",
			target:     target,
			err:        fmt.Errorf("%w: 11 months", pvgis.ErrMalformedResponse),
			wantStatus: http.StatusBadGateway,
		},
		{
			name:       "unreachable",
			target:     target,
			err:        fmt.Errorf("%w: connection refused", pvgis.ErrUnreachable),
			wantStatus: http.StatusServiceUnavailable,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, &stubProvider{err: tt.err})
			rr := srv.do(t, http.MethodGet, tt.target, nil)
			require.Equal(t, tt.wantStatus, rr.Code, rr.Body.String())
			assert.Empty(t, rr.Header().Get("X-Cache"))

			got := decode[map[string]any](t, rr)
			assert.NotEmpty(t, got["error"])
			if tt.wantStatus == http.StatusBadRequest {
				assert.Zero(t, srv.upstream.calls.Load())
			}
			var upstream *pvgis.UpstreamError
			if errors.As(tt.err, &upstream) {
				assert.EqualValues(t, http.StatusInternalServerError, got["upstreamStatus"])
				assert.Equal(t, "boom", got["upstreamBody"])
			}
		})
	}
}

func TestEstimate(t *testing.T) {
	srv := newTestServer(t, &stubProvider{})

	rr := srv.do(t, http.MethodPost, "/api/estimate", map[string]any{})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	res := decode[estimator.Result](t, rr)
	assert.NotEmpty(t, res.ID)
	assert.Equal(t, savings.ModeConservative, res.Mode)
	assert.Equal(t, "riyadh", res.Location.City.ID)
	assert.InDelta(t, 21.6, res.Sizing.SystemKwp, 1e-9)
	assert.Equal(t, testutil.RiyadhMonthly, res.ProductionKwh)
	require.NotNil(t, res.Query)
	assert.InDelta(t, 0.0, res.Query.Aspect, 1e-9)
	require.NotNil(t, res.Economics)
	assert.Greater(t, res.Savings.MaxSarPerYear, res.Savings.MinSarPerYear)

	metricsRR := srv.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, metricsRR.Code)
	assert.Contains(t, metricsRR.Body.String(), `solar_estimator_estimates_total{mode="conservative"} 1`)
	assert.Contains(t, metricsRR.Body.String(), `/api/estimate`)
}

func TestEstimateWithInputs(t *testing.T) {
	srv := newTestServer(t, &stubProvider{})

	body := map[string]any{
		"location":    map[string]any{"cityId": "jeddah"},
		"roof":        map[string]any{"usableAreaM2": 50, "tiltDeg": 20, "azimuthDeg": 90, "shadingLossPct": 0},
		"consumption": map[string]any{"monthlyKwh": 0, "monthlyBillSar": 540},
		"mode":        "profile",
	}
	rr := srv.do(t, http.MethodPost, "/api/estimate", body)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	res := decode[estimator.Result](t, rr)
	assert.Equal(t, savings.ModeProfile, res.Mode)
	assert.Equal(t, "jeddah", res.Location.City.ID)
	assert.InDelta(t, 10.8, res.Sizing.SystemKwp, 1e-9)
	assert.True(t, res.ConsumptionFromBill)
	assert.InDelta(t, 3000, res.MonthlyKwh, 1e-6)
	require.NotNil(t, res.Query)
	assert.InDelta(t, -90.0, res.Query.Aspect, 1e-9)
}

func TestEstimateErrors(t *testing.T) {
	tests := []struct {
		name        string
		body        any
		err         error
		maxBodySize int64
		wantStatus  int
		wantError   string
	}{
		{name: "malformed json", body: "{", wantStatus: http.StatusBadRequest, wantError: "failed to decode"},
		{name: "unknown field", body: `{"roofArea": 10}`, wantStatus: http.StatusBadRequest, wantError: "roofArea"},
		{name: "unknown mode", body: `{"mode": "aggressive"}`, wantStatus: http.StatusBadRequest, wantError: "aggressive"},
		{
			name:       "negative area",
			body:       map[string]any{"roof": map[string]any{"usableAreaM2": -1, "tiltDeg": 22, "azimuthDeg": 180}},
			wantStatus: http.StatusBadRequest,
			wantError:  "UsableAreaM2",
		},
		{
			name:       "unknown city",
			body:       map[string]any{"location": map[string]any{"cityId": "atlantis"}},
			wantStatus: http.StatusBadRequest,
			wantError:  "atlantis",
		},
		{
			name:       "half a coordinate",
			body:       map[string]any{"location": map[string]any{"lat": 24.7}},
			wantStatus: http.StatusBadRequest,
			wantError:  "lat and lon",
		},
		{
			name:       "roof too small",
			body:       map[string]any{"roof": map[string]any{"usableAreaM2": 1, "tiltDeg": 22, "azimuthDeg": 180}},
			wantStatus: http.StatusUnprocessableEntity,
			wantError:  "too small",
		},
		{
			name:       "upstream down",
			body:       map[string]any{},
			err:        fmt.Errorf("%w: timeout", pvgis.ErrUnreachable),
			wantStatus: http.StatusServiceUnavailable,
		},
		{
			name:        "body too large",
			body:        map[string]any{"export": map[string]any{"utilityProgram": strings.Repeat("x", 200)}},
			maxBodySize: 64,
			wantStatus:  http.StatusRequestEntityTooLarge,
			wantError:   "64 bytes",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, &stubProvider{err: tt.err}, func(o *Options) { o.MaxBodySize = tt.maxBodySize })
			rr := srv.do(t, http.MethodPost, "/api/estimate", tt.body)
			require.Equal(t, tt.wantStatus, rr.Code, rr.Body.String())
			assert.Contains(t, decode[map[string]string](t, rr)["error"], tt.wantError)
		})
	}
}

func TestEvaluate(t *testing.T) {
	srv := newTestServer(t, &stubProvider{})

	rr := srv.do(t, http.MethodPost, "/api/evaluate", map[string]any{"productionKwh": testutil.RiyadhMonthly})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	evaluated := decode[estimator.Result](t, rr)

	rr = srv.do(t, http.MethodPost, "/api/estimate", map[string]any{})
	require.Equal(t, http.StatusOK, rr.Code)
	ran := decode[estimator.Result](t, rr)

	assert.Equal(t, int32(1), srv.upstream.calls.Load())
	assert.Nil(t, evaluated.Query)
	assert.InDelta(t, ran.AnnualProductionKwh, evaluated.AnnualProductionKwh, 1e-9)
	assert.Equal(t, ran.Savings, evaluated.Savings)
	assert.Equal(t, ran.Economics, evaluated.Economics)

	rr = srv.do(t, http.MethodPost, "/api/evaluate", map[string]any{"productionKwh": []float64{-1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRecalculate(t *testing.T) {
	srv := newTestServer(t, &stubProvider{})

	rr := srv.do(t, http.MethodPost, "/api/estimate", map[string]any{})
	require.Equal(t, http.StatusOK, rr.Code)
	prev := decode[map[string]any](t, rr)

	rr = srv.do(t, http.MethodPost, "/api/recalculate", map[string]any{
		"result":      prev,
		"sensitivity": map[string]any{"installCostPerKwp": 0},
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	res := decode[estimator.Result](t, rr)
	assert.Nil(t, res.Economics)
	assert.Equal(t, testutil.RiyadhMonthly, res.ProductionKwh)
	assert.Equal(t, int32(1), srv.upstream.calls.Load())

	rr = srv.do(t, http.MethodPost, "/api/recalculate", map[string]any{"sensitivity": map[string]any{}})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRecalculateRejectsInvalidInputs(t *testing.T) {
	srv := newTestServer(t, &stubProvider{})

	rr := srv.do(t, http.MethodPost, "/api/estimate", map[string]any{})
	require.Equal(t, http.StatusOK, rr.Code)
	raw := rr.Body.Bytes()

	tests := []struct {
		name        string
		mutate      func(prev map[string]any)
		sensitivity map[string]any
		want        string
	}{
		{
			name: "discount rate at -100",
			mutate: func(prev map[string]any) {
				prev["request"].(map[string]any)["advanced"].(map[string]any)["discountRatePct"] = -100
			},
			want: "DiscountRatePct",
		},
		{
			name: "negative area",
			mutate: func(prev map[string]any) {
				prev["request"].(map[string]any)["roof"].(map[string]any)["usableAreaM2"] = -5
			},
			want: "UsableAreaM2",
		},
		{name: "degradation 400", sensitivity: map[string]any{"degradationPct": 400}, want: "DegradationPct"},
		{name: "override above 1", sensitivity: map[string]any{"selfConsumptionOverride": 1.5}, want: "SelfConsumptionOverride"},
		{name: "negative install cost", sensitivity: map[string]any{"installCostPerKwp": -1}, want: "InstallCostPerKwp"},
		{name: "negative export rate", sensitivity: map[string]any{"exportCreditRatePerKwh": -0.1}, want: "ExportCreditRatePerKwh"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var prev map[string]any
			require.NoError(t, json.Unmarshal(raw, &prev))
			if tt.mutate != nil {
				tt.mutate(prev)
			}
			sensitivity := tt.sensitivity
			if sensitivity == nil {
				sensitivity = map[string]any{}
			}

			rr := srv.do(t, http.MethodPost, "/api/recalculate", map[string]any{
				"result":      prev,
				"sensitivity": sensitivity,
			})
			require.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())
			assert.Contains(t, decode[map[string]string](t, rr)["error"], tt.want)
		})
	}

	var prev map[string]any
	require.NoError(t, json.Unmarshal(raw, &prev))
	rr = srv.do(t, http.MethodPost, "/api/recalculate", map[string]any{
		"result":      prev,
		"sensitivity": map[string]any{"degradationPct": 1, "selfConsumptionOverride": 1},
	})
	assert.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
}

func TestCORS(t *testing.T) {
	srv := newTestServer(t, &stubProvider{}, func(o *Options) {
		o.AllowedOrigins = []string{"http://localhost:3000"}
	})

	req := httptest.NewRequest(http.MethodOptions, "/api/estimate", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	srv.handler.ServeHTTP(rr, req)

	assert.Equal(t, "http://localhost:3000", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestServerRun(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := newTestServer(t, &stubProvider{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- New(listener, srv.handler, zap.NewNop()).Run(ctx)
	}()

	resp, err := http.Get("http://" + listener.Addr().String() + "/health")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}
}
