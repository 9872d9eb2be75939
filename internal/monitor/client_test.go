package monitor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/deepagent/internal/orchestrator"
)

func TestStateClient_Fetch(t *testing.T) {
	var status int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/state", r.URL.Path)
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		_ = json.NewEncoder(w).Encode(orchestrator.StateSummary{
			RunID: "run-1",
			Query: "q",
			Phase: orchestrator.PhaseDone,
		})
	}))
	defer srv.Close()

	client := NewStateClient(srv.URL + "/")
	ctx := context.Background()

	status = http.StatusOK
	sum, err := client.Fetch(ctx)
	require.NoError(t, err)
	assert.Equal(t, "run-1", sum.RunID)
	assert.Equal(t, orchestrator.PhaseDone, sum.Phase)

	status = http.StatusNotFound
	_, err = client.Fetch(ctx)
	assert.ErrorIs(t, err, ErrNoRun)

	status = http.StatusInternalServerError
	_, err = client.Fetch(ctx)
	assert.ErrorContains(t, err, "unexpected status code 500")
}

func TestStateClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewStateClient(url).Fetch(context.Background())
	assert.ErrorContains(t, err, "request failed")
}

func TestStateClient_BadBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("{not json"))
	}))
	defer srv.Close()

	_, err := NewStateClient(srv.URL).Fetch(context.Background())
	assert.ErrorContains(t, err, "failed to decode response")
}
