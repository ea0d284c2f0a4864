package influxdb

import (
	"context"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/gray-logic-node/internal/journal"
	"github.com/nerrad567/gray-logic-node/internal/session"
)

// Measurement names.
const (
	measurementNotice = "glnode_notice"
	measurementQueue  = "glnode_queue"
)

// Write records a journal notice. It implements journal.Sink and never
// blocks on the network.
func (c *Client) Write(_ context.Context, n journal.Notice) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	c.writeAPI.WritePoint(noticePoint(c.deviceID, n))
	return nil
}

// WriteQueueStats records the outbound queue snapshot.
func (c *Client) WriteQueueStats(stats session.QueueStats, at time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(queuePoint(c.deviceID, stats, at))
}

// ReportQueue writes stats() every interval until ctx is cancelled.
func (c *Client) ReportQueue(ctx context.Context, interval time.Duration, stats func() session.QueueStats) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			c.WriteQueueStats(stats(), now)
		}
	}
}

// noticePoint maps a notice onto a point. Low cardinality values become
// tags; the free text detail stays a field.
func noticePoint(deviceID string, n journal.Notice) *write.Point {
	tags := map[string]string{
		"device_id": deviceID,
		"kind":      string(n.Kind),
		"component": string(n.Component),
	}
	if n.State != "" {
		tags["state"] = n.State
	}

	fields := map[string]interface{}{"count": 1}
	if n.Detail != "" {
		fields["detail"] = n.Detail
	}

	at := n.At
	if at.IsZero() {
		at = time.Now()
	}
	return write.NewPoint(measurementNotice, tags, fields, at)
}

func queuePoint(deviceID string, stats session.QueueStats, at time.Time) *write.Point {
	return write.NewPoint(
		measurementQueue,
		map[string]string{"device_id": deviceID},
		map[string]interface{}{
			"length":   stats.Len,
			"capacity": stats.Capacity,
			"dropped":  stats.Dropped,
		},
		at,
	)
}
