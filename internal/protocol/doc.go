// Package protocol decodes the legacy BrewPi firmware's line protocol.
//
// Controllers running the legacy firmware answer commands with one line per
// reply. Each line starts with a single character prefix and a colon,
// followed by a JSON payload:
//
//	T:{"BeerTemp":19.5,"BeerSet":20,"FridgeTemp":17.2,...}
//	d:[{"i":0,"c":1,"b":0,"f":9,"h":2,"p":0,"x":0,"d":0,"a":"28C5...","v":19.8}]
//	h:[{"i":-1,"c":0,"b":0,"f":0,"h":1,"p":5,"x":0,"d":0}]
//	U:{"i":-1,"c":1,"f":0,"h":1,"p":5,"x":0,"d":0}
//	D:{"logType":"I","logID":10,"V":[1,2]}
//
// Decoder turns a line into zero or more typed Messages. Message is a
// sealed interface; a Handler receives each kind through Message.Accept,
// so adding a kind without a handler method fails to compile.
//
// Commands encode the requests the service sends (device listing,
// settings, constants, temperatures).
package protocol
