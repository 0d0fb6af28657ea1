package connector

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// staticDiscovery returns a settable address list.
type staticDiscovery struct {
	mu        sync.Mutex
	addresses []string
	err       error
	calls     int
}

func (s *staticDiscovery) Discover(context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return append([]string(nil), s.addresses...), s.err
}

func (s *staticDiscovery) set(addresses ...string) {
	s.mu.Lock()
	s.addresses = addresses
	s.mu.Unlock()
}

func addressesOf(conns []Conn) []string {
	out := make([]string, len(conns))
	for i, c := range conns {
		out[i] = c.Address()
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestManager_TracksEachAddressOnce(t *testing.T) {
	disc := &staticDiscovery{}
	disc.set("/dev/ttyACM0", "socket://10.0.0.5:6666")

	created := map[string]int{}
	dialer := &pipeDialer{}
	mgr := NewManager(disc.Discover, func(addr string) *Controller {
		created[addr]++
		return NewController(addr, dialer.Dial)
	})
	defer mgr.Close() //nolint:errcheck // Test cleanup

	pending, err := mgr.Update(context.Background())
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if want := []string{"/dev/ttyACM0", "socket://10.0.0.5:6666"}; !equalStrings(addressesOf(pending), want) {
		t.Errorf("first Update() = %v, want %v", addressesOf(pending), want)
	}

	disc.set("/dev/ttyACM0", "/dev/ttyACM1", "socket://10.0.0.5:6666")
	pending, err = mgr.Update(context.Background())
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if want := []string{"/dev/ttyACM1"}; !equalStrings(addressesOf(pending), want) {
		t.Errorf("second Update() = %v, want %v", addressesOf(pending), want)
	}

	// Addresses that disappear stay tracked for a while
	disc.set()
	pending, _ = mgr.Update(context.Background())
	if len(pending) != 0 {
		t.Errorf("third Update() = %v, want none", addressesOf(pending))
	}

	for addr, n := range created {
		if n != 1 {
			t.Errorf("controller for %s created %d times", addr, n)
		}
	}
	if want := []string{"/dev/ttyACM0", "/dev/ttyACM1", "socket://10.0.0.5:6666"}; !equalStrings(addressesOf(mgr.Controllers()), want) {
		t.Errorf("Controllers() = %v, want %v", addressesOf(mgr.Controllers()), want)
	}
}

func TestManager_ForgetsVanishedControllers(t *testing.T) {
	disc := &staticDiscovery{}
	disc.set("/dev/ttyACM0", "/dev/ttyACM1")
	dialer := &pipeDialer{}

	created := map[string]int{}
	mgr := NewManager(disc.Discover, func(addr string) *Controller {
		created[addr]++
		return NewController(addr, dialer.Dial)
	}, WithForgetAfter(2))
	defer mgr.Close() //nolint:errcheck // Test cleanup

	pending, _ := mgr.Update(context.Background())
	for _, c := range pending {
		if c.Address() == "/dev/ttyACM0" {
			if err := c.Connect(context.Background()); err != nil {
				t.Fatalf("Connect() error = %v", err)
			}
		}
	}

	// Both unplugged from discovery's point of view; ttyACM0 is still connected.
	disc.set()
	mgr.Update(context.Background()) //nolint:errcheck // Discovery never fails here

	// A failed round does not count as a miss
	disc.mu.Lock()
	disc.err = errors.New("enumeration failed")
	disc.mu.Unlock()
	mgr.Update(context.Background()) //nolint:errcheck // Error expected
	if want := []string{"/dev/ttyACM0", "/dev/ttyACM1"}; !equalStrings(addressesOf(mgr.Controllers()), want) {
		t.Fatalf("Controllers() after failed round = %v, want %v", addressesOf(mgr.Controllers()), want)
	}

	disc.mu.Lock()
	disc.err = nil
	disc.mu.Unlock()
	mgr.Update(context.Background()) //nolint:errcheck // Discovery never fails here
	if want := []string{"/dev/ttyACM0"}; !equalStrings(addressesOf(mgr.Controllers()), want) {
		t.Errorf("Controllers() = %v, want the connected one kept and %v", addressesOf(mgr.Controllers()), want)
	}

	// Plugged back in: a fresh controller is built
	disc.set("/dev/ttyACM0", "/dev/ttyACM1")
	pending, _ = mgr.Update(context.Background())
	if want := []string{"/dev/ttyACM1"}; !equalStrings(addressesOf(pending), want) {
		t.Errorf("Update() after replug = %v, want %v", addressesOf(pending), want)
	}
	if created["/dev/ttyACM1"] != 2 {
		t.Errorf("controller for /dev/ttyACM1 created %d times, want 2", created["/dev/ttyACM1"])
	}
}

func TestManager_ControllerStats(t *testing.T) {
	disc := &staticDiscovery{}
	disc.set("socket://10.0.0.5:6666", "/dev/ttyACM0")
	dialer := &pipeDialer{}

	mgr := NewManager(disc.Discover, func(addr string) *Controller {
		return NewController(addr, dialer.Dial)
	})
	defer mgr.Close() //nolint:errcheck // Test cleanup

	// Discovery order; stats come back sorted by address
	pending, _ := mgr.Update(context.Background())
	if got := pending[1].Address(); got != "/dev/ttyACM0" {
		t.Fatalf("pending[1] = %s, want /dev/ttyACM0", got)
	}
	if err := pending[1].Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	stats := mgr.ControllerStats()
	if len(stats) != 2 {
		t.Fatalf("ControllerStats() returned %d entries, want 2", len(stats))
	}
	if stats[0].Address != "/dev/ttyACM0" || !stats[0].Connected {
		t.Errorf("stats[0] = %+v, want connected /dev/ttyACM0", stats[0])
	}
	if stats[1].Address != "socket://10.0.0.5:6666" || stats[1].Connected {
		t.Errorf("stats[1] = %+v, want disconnected socket://10.0.0.5:6666", stats[1])
	}
}

func TestManager_ReturnsRetryDueControllers(t *testing.T) {
	disc := &staticDiscovery{}
	disc.set("/dev/ttyACM0")

	clock := newFakeClock()
	dialer := &pipeDialer{}
	dialer.setErr(errors.New("device busy"))

	mgr := NewManager(disc.Discover, func(addr string) *Controller {
		return NewController(addr, dialer.Dial, WithClock(clock.Now), WithBackoff(time.Second, time.Minute))
	}, WithManagerClock(clock.Now))
	defer mgr.Close() //nolint:errcheck // Test cleanup

	pending, _ := mgr.Update(context.Background())
	if len(pending) != 1 {
		t.Fatalf("Update() returned %d controllers, want 1", len(pending))
	}
	if err := pending[0].Connect(context.Background()); err == nil {
		t.Fatal("Connect() succeeded, want failure")
	}

	pending, _ = mgr.Update(context.Background())
	if len(pending) != 0 {
		t.Errorf("Update() before retry = %v, want none", addressesOf(pending))
	}

	clock.Advance(time.Second)
	pending, _ = mgr.Update(context.Background())
	if want := []string{"/dev/ttyACM0"}; !equalStrings(addressesOf(pending), want) {
		t.Errorf("Update() after backoff = %v, want %v", addressesOf(pending), want)
	}
}

func TestManager_DiscoveryError(t *testing.T) {
	disc := &staticDiscovery{err: errors.New("enumeration failed")}
	disc.set("socket://10.0.0.5:6666")

	mgr := NewManager(disc.Discover, func(addr string) *Controller {
		return NewController(addr, (&pipeDialer{}).Dial)
	})

	pending, err := mgr.Update(context.Background())
	if err == nil {
		t.Error("Update() error = nil, want discovery error")
	}
	if len(pending) != 1 {
		t.Errorf("Update() returned %d controllers, want the one still found", len(pending))
	}
}

func TestManager_Close(t *testing.T) {
	disc := &staticDiscovery{}
	disc.set("/dev/ttyACM0", "/dev/ttyACM1")
	dialer := &pipeDialer{}

	mgr := NewManager(disc.Discover, func(addr string) *Controller {
		return NewController(addr, dialer.Dial)
	})
	pending, _ := mgr.Update(context.Background())
	for _, c := range pending {
		if err := c.Connect(context.Background()); err != nil {
			t.Fatalf("Connect(%s) error = %v", c.Address(), err)
		}
	}

	if err := mgr.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	for _, c := range mgr.Controllers() {
		if c.IsConnected() {
			t.Errorf("%s still connected after Close()", c.Address())
		}
	}
}
