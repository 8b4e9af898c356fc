package resilience_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/econav360/econav/internal/provider/resilience"
)

func TestRegistry_ClientJoinsOnCreation(t *testing.T) {
	registry := resilience.NewRegistry()
	cfg := resilience.DefaultClientConfig("nominatim")
	cfg.Registry = registry

	_ = resilience.NewClient(cfg)

	assert.Equal(t, 1, registry.Len())

	health, ok := registry.Health("nominatim")
	require.True(t, ok)
	assert.Equal(t, "nominatim", health.Name)
	assert.Equal(t, gobreaker.StateClosed, health.State)
	assert.Equal(t, resilience.StatusOK, health.Status())
	assert.Nil(t, health.LastSuccessAt)
	assert.Zero(t, health.Trips)

	_, ok = registry.Health("osrm")
	assert.False(t, ok)
}

func TestRegistry_ClientRecordsOutcomes(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusOK)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(int(status.Load()))
	}))
	defer server.Close()

	registry := resilience.NewRegistry()
	client := resilience.NewClient(resilience.ClientConfig{
		Name:           "osrm",
		SingleAttempt:  true,
		Registry:       registry,
		CircuitBreaker: lenientBreaker("osrm"),
	})

	resp, err := client.Do(newRequest(t, context.Background(), server.URL))
	require.NoError(t, err)
	resp.Body.Close()

	health, ok := registry.Health("osrm")
	require.True(t, ok)
	assert.NotNil(t, health.LastSuccessAt)
	assert.Nil(t, health.LastFailureAt)
	assert.Equal(t, uint32(1), health.Counts.Requests)

	status.Store(http.StatusServiceUnavailable)
	resp, err = client.Do(newRequest(t, context.Background(), server.URL))
	require.NoError(t, err)
	resp.Body.Close()

	health, _ = registry.Health("osrm")
	assert.NotNil(t, health.LastFailureAt)
	assert.Contains(t, health.LastError, "Service Unavailable")
}

func TestRegistry_CountsTrips(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	var transitions atomic.Int32
	registry := resilience.NewRegistry()
	client := resilience.NewClient(resilience.ClientConfig{
		Name:          "mapmyindia",
		SingleAttempt: true,
		Registry:      registry,
		CircuitBreaker: &resilience.CircuitBreakerConfig{
			Name:        "mapmyindia",
			MaxRequests: 1,
			Timeout:     time.Minute,
			ReadyToTrip: resilience.DefaultReadyToTrip,
			OnStateChange: func(string, gobreaker.State, gobreaker.State) {
				transitions.Add(1)
			},
		},
	})

	for i := 0; i < 5; i++ {
		resp, _ := client.Do(newRequest(t, context.Background(), server.URL))
		if resp != nil {
			resp.Body.Close()
		}
	}

	health, ok := registry.Health("mapmyindia")
	require.True(t, ok)
	assert.Equal(t, resilience.StatusDown, health.Status())
	assert.Equal(t, uint32(1), health.Trips)
	assert.NotNil(t, health.LastTripAt)
	assert.Equal(t, int32(1), transitions.Load(), "configured hook still runs")
}

func TestRegistry_AllSortedByName(t *testing.T) {
	registry := resilience.NewRegistry()
	for _, name := range []string{"osrm", "mapmyindia", "nominatim"} {
		cfg := resilience.DefaultClientConfig(name)
		cfg.Registry = registry
		_ = resilience.NewClient(cfg)
	}

	all := registry.All()
	require.Len(t, all, 3)
	assert.Equal(t, "mapmyindia", all[0].Name)
	assert.Equal(t, "nominatim", all[1].Name)
	assert.Equal(t, "osrm", all[2].Name)
}

func TestHealth_Status(t *testing.T) {
	tests := []struct {
		state gobreaker.State
		want  resilience.Status
	}{
		{gobreaker.StateClosed, resilience.StatusOK},
		{gobreaker.StateHalfOpen, resilience.StatusDegraded},
		{gobreaker.StateOpen, resilience.StatusDown},
	}
	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, resilience.Health{State: tt.state}.Status())
		})
	}
}
