package connector

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"go.bug.st/serial/enumerator"
)

// USBID identifies a USB board by vendor and product ID (hex).
type USBID struct {
	VID string
	PID string
}

// ParseUSBID parses "VID:PID", e.g. "2341:0043".
func ParseUSBID(s string) (USBID, error) {
	vid, pid, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || vid == "" || pid == "" {
		return USBID{}, fmt.Errorf("%w: usb id %q is not VID:PID", ErrInvalidAddress, s)
	}
	return USBID{VID: strings.ToUpper(vid), PID: strings.ToUpper(pid)}, nil
}

// Matches reports whether the enumerated port belongs to this board type.
func (id USBID) Matches(port *enumerator.PortDetails) bool {
	return port.IsUSB && strings.EqualFold(port.VID, id.VID) && strings.EqualFold(port.PID, id.PID)
}

// DiscoveryConfig lists where controllers are looked for.
type DiscoveryConfig struct {
	SerialEnabled bool

	// USBIDs select enumerated serial ports by board type.
	USBIDs []string

	// Ports are serial ports always reported, enumerated or not.
	Ports []string

	// Endpoints are host:port pairs of TCP controllers.
	Endpoints []string
}

// Discoverer finds controller addresses.
type Discoverer struct {
	cfg       DiscoveryConfig
	ids       []USBID
	listPorts func() ([]*enumerator.PortDetails, error)
}

// NewDiscoverer validates cfg and returns a Discoverer that enumerates USB
// serial ports with go.bug.st/serial/enumerator.
func NewDiscoverer(cfg DiscoveryConfig) (*Discoverer, error) {
	ids := make([]USBID, 0, len(cfg.USBIDs))
	for _, s := range cfg.USBIDs {
		id, err := ParseUSBID(s)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return &Discoverer{
		cfg:       cfg,
		ids:       ids,
		listPorts: enumerator.GetDetailedPortsList,
	}, nil
}

// Discover returns the sorted, de-duplicated addresses of every reachable
// candidate. An enumeration failure is returned together with the
// addresses that do not depend on it.
func (d *Discoverer) Discover(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var addresses []string
	for _, ep := range d.cfg.Endpoints {
		addresses = append(addresses, SocketAddress(ep))
	}

	var enumErr error
	if d.cfg.SerialEnabled {
		addresses = append(addresses, d.cfg.Ports...)

		if len(d.ids) > 0 {
			ports, err := d.listPorts()
			if err != nil {
				enumErr = fmt.Errorf("enumerating serial ports: %w", err)
			}
			for _, port := range ports {
				if d.matches(port) {
					addresses = append(addresses, port.Name)
				}
			}
		}
	}

	slices.Sort(addresses)
	return slices.Compact(addresses), enumErr
}

func (d *Discoverer) matches(port *enumerator.PortDetails) bool {
	for _, id := range d.ids {
		if id.Matches(port) {
			return true
		}
	}
	return false
}
