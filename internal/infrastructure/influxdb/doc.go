// Package influxdb records connectivity telemetry in InfluxDB.
//
// It wraps the official influxdb-client-go v2 library. Telemetry is
// optional: with influxdb.enabled false the node never creates a client.
//
// # Measurements
//
//   - glnode_notice: one point per journal notice (state transitions,
//     button events, drops, inbound messages, accepted commands), tagged
//     by device, kind, component and state
//   - glnode_queue: periodic outbound queue depth, capacity and drop count
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB, cfg.Device.ID)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//	recorder.AddSink(client)
//
// # Thread Safety
//
// All methods are safe for concurrent use. Writes are non-blocking and
// batched according to batch_size and flush_interval; batch errors arrive
// on the SetOnError callback.
package influxdb
