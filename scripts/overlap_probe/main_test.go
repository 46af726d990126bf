package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProbeExactlyOneWinner(t *testing.T) {
	var (
		mu     sync.Mutex
		placed bool
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tkn", r.Header.Get("Authorization"))
		mu.Lock()
		defer mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		if placed {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"code":"SCHEDULE_CONFLICT"}}`))
			return
		}
		placed = true
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"id":"s1"}}`))
	}))
	defer srv.Close()

	opts := options{Base: srv.URL, Path: "/api/v1/schedules", Token: "tkn", Payload: []byte(`{}`), Clients: 6}
	results := probe(context.Background(), srv.Client(), opts)
	v := evaluate(results, []string{"SCHEDULE_CONFLICT"})

	assert.True(t, v.ok())
	assert.Equal(t, 1, v.Created)
	assert.Equal(t, 5, v.Codes["SCHEDULE_CONFLICT"])

	var out bytes.Buffer
	report(&out, results, v)
	assert.Contains(t, out.String(), "PASS")
}

func TestEvaluateFlagsDoubleBookingAndServerErrors(t *testing.T) {
	v := evaluate([]result{
		{Status: http.StatusCreated},
		{Status: http.StatusCreated},
		{Status: http.StatusServiceUnavailable, Code: "SERVICE_UNAVAILABLE"},
	}, []string{"SCHEDULE_CONFLICT"})

	require.False(t, v.ok())
	assert.Equal(t, 2, v.Created)
	assert.Equal(t, 1, v.Failed)
	assert.Equal(t, 1, v.Codes["503 SERVICE_UNAVAILABLE"])
}
