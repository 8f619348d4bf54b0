package export

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type webhookRecorder struct {
	mu       sync.Mutex
	payloads []struct {
		Events []OperationEvent `json:"events"`
		Count  int              `json:"count"`
	}
	auth []string
}

func (r *webhookRecorder) handler(w http.ResponseWriter, req *http.Request) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var payload struct {
		Events []OperationEvent `json:"events"`
		Count  int              `json:"count"`
	}
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	r.payloads = append(r.payloads, payload)
	r.auth = append(r.auth, req.Header.Get("Authorization"))
	w.WriteHeader(http.StatusAccepted)
}

func (r *webhookRecorder) batches() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.payloads)
}

func TestExporterDisabled(t *testing.T) {
	e, err := NewExporter(ExporterConfig{Enabled: false})
	require.NoError(t, err)
	e.Record(OperationEvent{Kind: "openPosition"})
	e.Stop()
}

func TestExporterRequiresURL(t *testing.T) {
	_, err := NewExporter(ExporterConfig{Enabled: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "webhook URL")
}

func TestExporterStopDeliversBufferedEvents(t *testing.T) {
	recorder := &webhookRecorder{}
	srv := httptest.NewServer(http.HandlerFunc(recorder.handler))
	defer srv.Close()

	e, err := NewExporter(ExporterConfig{
		Enabled:        true,
		WebhookURL:     srv.URL,
		WebhookAPIKey:  "secret",
		ExportInterval: time.Hour,
	})
	require.NoError(t, err)

	e.Record(OperationEvent{Kind: "openPosition", ChainID: 8453, Amount: "1000000000"})
	e.Record(OperationEvent{Kind: "walletDeploy", ChainID: 10})
	e.Stop()

	require.Equal(t, 1, recorder.batches())
	payload := recorder.payloads[0]
	assert.Equal(t, 2, payload.Count)
	require.Len(t, payload.Events, 2)
	assert.Equal(t, "openPosition", payload.Events[0].Kind)
	assert.Equal(t, uint64(8453), payload.Events[0].ChainID)
	assert.Equal(t, "Bearer secret", recorder.auth[0])
}

func TestExporterFlushesFullBatch(t *testing.T) {
	recorder := &webhookRecorder{}
	srv := httptest.NewServer(http.HandlerFunc(recorder.handler))
	defer srv.Close()

	e, err := NewExporter(ExporterConfig{
		Enabled:        true,
		WebhookURL:     srv.URL,
		BatchSize:      2,
		ExportInterval: time.Hour,
	})
	require.NoError(t, err)
	defer e.Stop()

	e.Record(OperationEvent{Kind: "openPosition"})
	e.Record(OperationEvent{Kind: "closePosition"})

	require.Eventually(t, func() bool {
		return recorder.batches() == 1
	}, 2*time.Second, 10*time.Millisecond, "a full batch flushes without waiting for the interval")
	assert.Equal(t, 2, recorder.payloads[0].Count)
}
