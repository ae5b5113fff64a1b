// Package influxdb provides InfluxDB connectivity for Latchkey Core.
//
// It wraps the official influxdb-client-go v2 library with Latchkey-specific
// patterns for connection management, event writing, and health monitoring.
//
// # Purpose
//
// This package handles time-series storage for:
//   - Access and administrative events (grants, denials, enrollments)
//   - Channel actuation history for duty-cycle and relay wear dashboards
//
// The time-series sink is optional and strictly best-effort: the access
// decision path never waits on it, and a down server costs nothing but
// dashboard history.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.WriteAccessEvent("site-01", "granted", "04A1B2C3", 0b11, time.Now())
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are logged via a callback.
// Connection and health check errors are returned directly.
package influxdb
