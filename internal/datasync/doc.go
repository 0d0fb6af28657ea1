// Package datasync keeps the service in step with the BrewPi controllers
// attached to this host.
//
// Syncher runs a single polling loop. Every cycle it:
//
//  1. asks the connector.Manager for new (or retry-due) controllers, then
//     subscribes the Observer to each and connects it;
//  2. for every connected controller, sends ListInstalledDevices with
//     values, waits the command delay, drains the received lines, decodes
//     them and dispatches each message to a MessageHandler bound to the
//     controller URI.
//
// The loop is the only goroutine that touches controllers. A failing line,
// message or controller is logged and counted; it never stops the loop.
//
// Observer turns connection transitions into controller events on a
// controller.Bus. HealthReporter publishes the loop statistics to
// brewpi/health/datasync.
package datasync
