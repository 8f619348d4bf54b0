// Package export ships completed operation events to an external webhook for
// offline accounting. Events are batched and flushed on an interval or when
// the batch fills; delivery is best-effort and never blocks request handling.
package export

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// OperationEvent records one completed wallet or lending operation.
type OperationEvent struct {
	Kind       string    `json:"kind"`
	Protocol   string    `json:"protocol,omitempty"`
	ChainID    uint64    `json:"chainId"`
	Market     string    `json:"market,omitempty"`
	Wallet     string    `json:"wallet,omitempty"`
	Amount     string    `json:"amount,omitempty"`
	UserOpHash string    `json:"userOpHash,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// ExporterConfig holds configuration for the event exporter.
type ExporterConfig struct {
	Enabled        bool          `json:"enabled"`
	BatchSize      int           `json:"batchSize"`
	ExportInterval time.Duration `json:"exportInterval"`
	WebhookURL     string        `json:"webhookUrl"`
	WebhookAPIKey  string        `json:"webhookApiKey,omitempty"`
}

// Exporter batches operation events and posts them to the webhook.
type Exporter struct {
	config     ExporterConfig
	httpClient *http.Client

	mu    sync.Mutex
	batch []OperationEvent

	ctx    context.Context
	cancel context.CancelFunc
}

// NewExporter creates the exporter and starts its flush loop when enabled.
func NewExporter(config ExporterConfig) (*Exporter, error) {
	if !config.Enabled {
		return &Exporter{config: config}, nil
	}
	if config.WebhookURL == "" {
		return nil, fmt.Errorf("webhook URL not configured")
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}
	if config.ExportInterval <= 0 {
		config.ExportInterval = time.Minute
	}

	e := &Exporter{
		config: config,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS12},
				IdleConnTimeout: 90 * time.Second,
			},
		},
		batch: make([]OperationEvent, 0, config.BatchSize),
	}
	e.ctx, e.cancel = context.WithCancel(context.Background())
	go e.flushLoop()

	logrus.Info("Operation event exporter initialized")
	return e, nil
}

// Record adds an event to the batch, flushing early when the batch fills.
func (e *Exporter) Record(event OperationEvent) {
	if !e.config.Enabled {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	e.batch = append(e.batch, event)
	if len(e.batch) >= e.config.BatchSize {
		go e.flush()
	}
}

func (e *Exporter) flushLoop() {
	ticker := time.NewTicker(e.config.ExportInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			e.flush()
		case <-e.ctx.Done():
			return
		}
	}
}

// flush posts the current batch and resets it. Failed deliveries are logged
// and dropped; events are operational telemetry, not a ledger.
func (e *Exporter) flush() {
	e.mu.Lock()
	if len(e.batch) == 0 {
		e.mu.Unlock()
		return
	}
	events := make([]OperationEvent, len(e.batch))
	copy(events, e.batch)
	e.batch = make([]OperationEvent, 0, e.config.BatchSize)
	e.mu.Unlock()

	if err := e.post(events); err != nil {
		logrus.Errorf("Failed to export %d operation events: %v", len(events), err)
		return
	}
	logrus.Debugf("Exported %d operation events", len(events))
}

func (e *Exporter) post(events []OperationEvent) error {
	payload := struct {
		Events     []OperationEvent `json:"events"`
		ExportTime string           `json:"exportTime"`
		Count      int              `json:"count"`
	}{
		Events:     events,
		ExportTime: time.Now().UTC().Format(time.RFC3339),
		Count:      len(events),
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal events: %w", err)
	}

	req, err := http.NewRequestWithContext(e.ctx, http.MethodPost, e.config.WebhookURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.config.WebhookAPIKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.config.WebhookAPIKey)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned error status: %d", resp.StatusCode)
	}
	return nil
}

// Stop cancels the flush loop and delivers any buffered events.
func (e *Exporter) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
	e.flushSync()
}

// flushSync is a final delivery attempt that ignores the canceled context.
func (e *Exporter) flushSync() {
	e.mu.Lock()
	events := e.batch
	e.batch = nil
	e.mu.Unlock()

	if len(events) == 0 {
		return
	}
	saved := e.ctx
	e.ctx = context.Background()
	if err := e.post(events); err != nil {
		logrus.Errorf("Failed to export %d operation events on shutdown: %v", len(events), err)
	}
	e.ctx = saved
}
