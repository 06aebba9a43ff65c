package controllers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/angelmondragon/coffeeshop-backend/pkg/config"
)

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

func TestHealthReady(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "dev"}}

	tests := []struct {
		name string
		deps map[string]Pinger
		want int
	}{
		{"all up", map[string]Pinger{"db": stubPinger{}, "redis": stubPinger{}}, http.StatusOK},
		{"redis skipped", map[string]Pinger{"db": stubPinger{}, "redis": nil}, http.StatusOK},
		{"db down", map[string]Pinger{"db": stubPinger{err: errors.New("refused")}}, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := httptest.NewRecorder()
			HealthReady(cfg, nil, tt.deps).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
			if resp.Code != tt.want {
				t.Fatalf("expected %d got %d", tt.want, resp.Code)
			}
		})
	}
}

func TestHealthLiveSetsEnvHeader(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "dev"}}
	resp := httptest.NewRecorder()
	HealthLive(cfg).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if resp.Header().Get("X-Coffeeshop-Env") != "dev" {
		t.Fatalf("expected env header")
	}
}
