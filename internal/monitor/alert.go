package monitor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/btraven00/linkmedic/internal/metrics"
	"github.com/btraven00/linkmedic/internal/model"
)

// alertQueueSize is how many alerts may wait for delivery.
const alertQueueSize = 100

// Sink delivers an alert somewhere.
type Sink interface {
	Deliver(ctx context.Context, alert model.MonitoringAlert) error
}

// LogSink writes alerts to the log.
type LogSink struct {
	Logger *zap.Logger
}

// Deliver logs the alert at a level matching its severity.
func (s LogSink) Deliver(_ context.Context, a model.MonitoringAlert) error {
	fields := []zap.Field{
		zap.String("id", a.ID),
		zap.String("url", a.URL),
		zap.String("from", string(a.PreviousState)),
		zap.String("to", string(a.State)),
	}

	switch a.Severity {
	case model.SeverityCritical:
		s.Logger.Error(a.Message, fields...)
	case model.SeverityWarning:
		s.Logger.Warn(a.Message, fields...)
	default:
		s.Logger.Info(a.Message, fields...)
	}

	return nil
}

// WebhookSink POSTs each alert as JSON to an endpoint.
type WebhookSink struct {
	Endpoint string
	Client   *http.Client
}

// NewWebhookSink posts to endpoint with a bounded timeout.
func NewWebhookSink(endpoint string) *WebhookSink {
	return &WebhookSink{
		Endpoint: endpoint,
		Client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// Deliver sends one alert. Any non-2xx answer is an error.
func (s *WebhookSink) Deliver(ctx context.Context, a model.MonitoringAlert) error {
	body, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.Endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "linkmedic-monitor")

	resp, err := s.Client.Do(req)
	if err != nil {
		return fmt.Errorf("post alert: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("alert endpoint answered HTTP %d", resp.StatusCode)
	}

	return nil
}

// Dispatcher hands alerts to the sinks from its own goroutine, so a slow
// sink never holds up a monitoring pass.
type Dispatcher struct {
	sinks  []Sink
	queue  chan model.MonitoringAlert
	logger *zap.Logger

	closeOnce sync.Once
	done      chan struct{}
}

// NewDispatcher starts delivering to sinks.
func NewDispatcher(logger *zap.Logger, sinks ...Sink) *Dispatcher {
	d := &Dispatcher{
		sinks:  sinks,
		queue:  make(chan model.MonitoringAlert, alertQueueSize),
		logger: logger,
		done:   make(chan struct{}),
	}
	go d.run()

	return d
}

// Send queues an alert. It never blocks; when the queue is full the alert
// is dropped and counted.
func (d *Dispatcher) Send(a model.MonitoringAlert) {
	select {
	case d.queue <- a:
	default:
		metrics.IncAlertDropped()
		d.logger.Warn("alert queue full, dropping alert", zap.String("url", a.URL), zap.String("severity", string(a.Severity)))
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)

	for a := range d.queue {
		for _, s := range d.sinks {
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			if err := s.Deliver(ctx, a); err != nil {
				d.logger.Warn("alert delivery failed", zap.String("url", a.URL), zap.Error(err))
			}
			cancel()
		}
	}
}

// Close delivers what is queued and stops. Send must not be called after.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() { close(d.queue) })
	<-d.done
}
