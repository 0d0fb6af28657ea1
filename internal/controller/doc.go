// Package controller holds the domain view of a BrewPi controller and the
// events raised when one connects or disconnects.
//
// A Controller record is identified by its URI, "<host>:<address>", where
// address is the serial port name or socket:// endpoint the board is
// reached through. Connected records carry a human readable name and
// description; disconnected records carry only the URI.
//
// Events are delivered through a Bus, an ordered callback list. The
// Publisher subscriber mirrors every event to MQTT:
//
//	brewpi/event/controller_connected              (not retained)
//	brewpi/controller/<sanitised-uri>/state        (retained)
package controller
