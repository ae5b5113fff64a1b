// Package mqtt provides MQTT client connectivity for Latchkey Core.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// The controller uses MQTT as its site message bus: reader firmware
// pushes scans in, supervision pushes mode and channel commands in, and
// the controller publishes events and retained state out.
//
//	Reader firmware ─┐                ┌─ latchkey/core/event/access
//	Supervision UI  ─┤→ MQTT Broker →├─ latchkey/core/mode (retained)
//	                 │                └─ latchkey/core/channel/N/state
//	                 └── latchkey/command/..., latchkey/reader/scan
//
// The engine itself never depends on this package; the bridge wiring in
// cmd/latchkey subscribes command topics onto the control loop and
// implements the loop's reporter against Publish.
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//   - Message payloads are not encrypted beyond TLS transport
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.ReaderScan(), 1,
//	    func(topic string, payload []byte) error {
//	        return loop.Scan(ctx, string(payload))
//	    })
package mqtt
