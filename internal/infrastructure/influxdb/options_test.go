package influxdb

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-dispatch/internal/infrastructure/config"
)

func TestWriteOptions(t *testing.T) {
	tests := []struct {
		name          string
		batchSize     int
		flushInterval int
		wantBatch     uint
		wantFlushMS   uint
	}{
		{"configured", 500, 2, 500, 2000},
		{"zero uses defaults", 0, 0, defaultBatchSize, 10000},
		{"negative uses defaults", -5, -1, defaultBatchSize, 10000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := writeOptions(config.InfluxDBConfig{
				BatchSize:     tt.batchSize,
				FlushInterval: tt.flushInterval,
			})
			if got := opts.BatchSize(); got != tt.wantBatch {
				t.Errorf("BatchSize() = %d, want %d", got, tt.wantBatch)
			}
			if got := opts.FlushInterval(); got != tt.wantFlushMS {
				t.Errorf("FlushInterval() = %d, want %d", got, tt.wantFlushMS)
			}
		})
	}
}

func TestClosedClientDropsWrites(t *testing.T) {
	c := &Client{}
	c.closed.Store(true)

	// A nil write API would panic if the point were queued.
	c.WriteDispatchOutcome("node-1", "dev-1", "sent", "")
	c.WriteSessionEvent("node-1", "dev-1", "online", time.Now())
	c.WriteDeviceEvent("node-1", "dev-1", "motion", time.Time{})
	c.Flush()

	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
