// Package announce connects the registry to MQTT.
//
// A Listener subscribes to device announcements and removal requests and
// applies them through the registry service. An EventPublisher forwards
// registry events to lanregistry/event/{type} without blocking the caller.
//
// Announcement payload (topic lanregistry/announce/{identifier}):
//
//	{"address": "192.168.1.40", "status": "online"}
//
// The identifier comes from the topic. Firmware that cannot choose its topic
// may publish to any announce topic with "identifier" or "device_name" in
// the payload, and "ip" in place of "address".
package announce
