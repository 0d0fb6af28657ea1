// Package journal records controller connect and disconnect events in the
// controller_events SQLite table, so the connection history of every board
// survives restarts.
package journal
