// Package pumpstream ingests and aggregates telemetry from a monitored
// solar water pump.
//
// # Architecture
//
// The service is structured into several key packages:
//   - decoder: turns broker payloads into sensor readings
//   - transport: MQTT and Kafka subscriptions behind one interface
//   - ingest: the consumer that persists every reading it receives
//   - database: TimescaleDB, SQLite, InfluxDB and in-memory storage
//   - aggregation: hour, day, ISO week and month bucketing
//   - counter: daily deltas of cumulative energy and water counters
//   - realtime: fixed-size sliding windows per metric
//   - live: a subscription driving the windows and counters
//   - scheduler: cron-driven periodic jobs
//   - grpc: the Telemetry query service
//   - metrics: Prometheus, liveness and readiness endpoints
//   - config: YAML configuration with environment overrides
//   - models: Shared data structures
//
// Key Features
//
//   - Ingestion:
//     Readings are decoded and stored in delivery order. A lost broker
//     connection is retried every few seconds, and readings redelivered
//     after a reconnect are stored once.
//
//   - Aggregation:
//     Buckets report mean voltage, current and power, total flow, the
//     highest energy counter value and the first and last reading. Bucket
//     keys are computed in a single configured reference zone.
//
//   - Live view:
//     Each Watch stream owns a subscription whose snapshots carry the last
//     20 values of each metric and today's energy and water totals.
//
// Example Usage
//
//	client := server.NewTelemetryClient(conn)
//	resp, err := client.Aggregate(ctx, &server.AggregateRequest{
//	    Granularity: "isoWeek",
//	    Start:       &start,
//	    End:         &end,
//	})
//
// For more information about specific packages, see their respective
// documentation.
package pumpstream
