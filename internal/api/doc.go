// Package api implements the HTTP and WebSocket front end of the device registry.
//
// This package provides:
//   - REST endpoints to register, list, and deregister devices
//   - A manual sweep trigger
//   - The routes deployed firmware already uses (/register, /devices, /delete/{identifier})
//   - A WebSocket hub that relays registry events to subscribed clients
//   - Prometheus exposition when metrics are enabled
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # Errors
//
// Registry errors map onto structured JSON bodies: ErrInvalidInput becomes
// 400 validation_error and ErrStoreUnavailable becomes 503 store_unavailable.
// Deregistering an unknown identifier succeeds.
//
// # WebSocket
//
// Clients send {"type":"subscribe","payload":{"channels":[...]}} with event
// types such as device.registered, or "*" for every event. The hub is a
// registry.Notifier, so it can be attached directly to the Service and Sweeper.
package api
