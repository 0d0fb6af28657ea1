// Package mqtt wraps the paho MQTT client for the BrewPi service.
//
// The service uses the broker for three things:
//   - republishing controller events (brewpi/event/<type>) and retained
//     controller state (brewpi/controller/<uri>/state)
//   - retained health and online status, with a Last Will so subscribers
//     notice a crashed service
//   - receiving brewpi/request/sync, which wakes the sync loop
//
// Connections auto-reconnect with exponential backoff and subscriptions are
// restored afterwards. Handlers are wrapped with panic recovery.
package mqtt
