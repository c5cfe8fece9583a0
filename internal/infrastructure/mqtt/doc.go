// Package mqtt provides MQTT client connectivity for the device registry.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions restored after reconnect
//   - Last Will and Testament (LWT) for offline detection
//
// Devices that cannot make HTTP requests announce themselves over MQTT
// instead; the announce package turns those messages into registrations
// and publishes registry events back to the broker.
//
// # Topics
//
//	lanregistry/announce/{identifier}  device presence (inbound)
//	lanregistry/remove/{identifier}    deregistration (inbound)
//	lanregistry/event/{type}           registry events (outbound)
//	lanregistry/system/status          registry status, retained, LWT
//
// # Security Considerations
//
//   - Enable TLS (cfg.Broker.TLS=true) on untrusted networks
//   - Credentials are checked against the broker ACL
//   - Payloads are limited to 1MB
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllAnnounce(), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("announce from %s: %s", mqtt.LastSegment(topic), payload)
//	        return nil
//	    })
package mqtt
