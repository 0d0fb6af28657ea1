// Package connector manages connections to BrewPi controllers.
//
// A Controller is one line-framed connection to a board, either a serial
// port ("/dev/ttyACM0") or a TCP endpoint ("socket://192.168.0.54:6666").
// A reader goroutine splits incoming bytes into lines and buffers them until
// ProcessMessages drains them; the sync loop is the only caller of Connect,
// Send and ProcessMessages.
//
// Observers subscribed to a Controller are told about connect and
// disconnect transitions. A failed connect or a lost connection schedules a
// retry with exponential backoff, which the Manager reports from Update.
//
// The Manager owns every Controller, keyed by address, and uses a
// Discoverer to find USB serial boards and configured TCP endpoints.
package connector
