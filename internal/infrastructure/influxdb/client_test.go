package influxdb

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/BrewPi/brewpi-service/internal/infrastructure/config"
)

type fakeWriter struct {
	mu      sync.Mutex
	points  []*write.Point
	flushes int
}

func (w *fakeWriter) WritePoint(p *write.Point) {
	w.mu.Lock()
	w.points = append(w.points, p)
	w.mu.Unlock()
}

func (w *fakeWriter) Flush() {
	w.mu.Lock()
	w.flushes++
	w.mu.Unlock()
}

func testConfig() config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled: true,
		URL:     "http://127.0.0.1:8086",
		Token:   "brewpi-dev-token",
		Org:     "brewpi",
		Bucket:  "brewing",
	}
}

func lineProtocol(p *write.Point) string {
	return write.PointToLineProtocol(p, time.Nanosecond)
}

func TestConnect_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false

	if _, err := Connect(context.Background(), cfg); !errors.Is(err, ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	cfg := testConfig()
	cfg.URL = "http://127.0.0.1:59999"

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if _, err := Connect(ctx, cfg); !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestWriteTemperatures(t *testing.T) {
	w := &fakeWriter{}
	c := newClient(testConfig(), w)
	at := time.Unix(1700000000, 0)

	err := c.WriteTemperatures("brewhouse:/dev/ttyACM0", map[string]float64{
		"beerTemp":   19.5,
		"fridgeTemp": 17.25,
	}, at)
	if err != nil {
		t.Fatalf("WriteTemperatures() error = %v", err)
	}

	if len(w.points) != 1 {
		t.Fatalf("points written = %d, want 1", len(w.points))
	}
	line := lineProtocol(w.points[0])
	for _, want := range []string{
		"temperatures,controller=brewhouse:/dev/ttyACM0 ",
		"beerTemp=19.5",
		"fridgeTemp=17.25",
		"1700000000000000000",
	} {
		if !strings.Contains(line, want) {
			t.Errorf("line %q missing %q", line, want)
		}
	}
}

func TestWriteTemperatures_Errors(t *testing.T) {
	w := &fakeWriter{}
	c := newClient(testConfig(), w)

	if err := c.WriteTemperatures("uri", nil, time.Now()); !errors.Is(err, ErrWriteFailed) {
		t.Errorf("empty values error = %v, want ErrWriteFailed", err)
	}

	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if w.flushes != 1 {
		t.Errorf("flushes on Close = %d, want 1", w.flushes)
	}
	if err := c.WriteTemperatures("uri", map[string]float64{"beerTemp": 1}, time.Now()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("after Close error = %v, want ErrNotConnected", err)
	}
	if len(w.points) != 0 {
		t.Errorf("points written = %d, want 0", len(w.points))
	}
}

func TestWriteControllerStatus(t *testing.T) {
	w := &fakeWriter{}
	c := newClient(testConfig(), w)

	if err := c.WriteControllerStatus("brewhouse:/dev/ttyACM0", true, time.Now()); err != nil {
		t.Fatalf("WriteControllerStatus(true) error = %v", err)
	}
	if err := c.WriteControllerStatus("brewhouse:/dev/ttyACM0", false, time.Now()); err != nil {
		t.Fatalf("WriteControllerStatus(false) error = %v", err)
	}

	if len(w.points) != 2 {
		t.Fatalf("points written = %d, want 2", len(w.points))
	}
	if line := lineProtocol(w.points[0]); !strings.Contains(line, "connected=1i") {
		t.Errorf("connected line = %q", line)
	}
	if line := lineProtocol(w.points[1]); !strings.Contains(line, "connected=0i") {
		t.Errorf("disconnected line = %q", line)
	}
}

func TestClient_FlushAndHealth(t *testing.T) {
	w := &fakeWriter{}
	c := newClient(testConfig(), w)

	c.Flush()
	if w.flushes != 1 {
		t.Errorf("flushes = %d, want 1", w.flushes)
	}

	// No underlying HTTP client
	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}

	c.Close() //nolint:errcheck // Test
	c.Flush()
	if w.flushes != 2 {
		t.Errorf("flushes after Close = %d, want 2 (Close only)", w.flushes)
	}
	if c.IsConnected() {
		t.Error("IsConnected() = true after Close()")
	}
}

func TestHandleWriteErrors(t *testing.T) {
	c := newClient(testConfig(), &fakeWriter{})

	got := make(chan error, 1)
	c.SetOnError(func(err error) { got <- err })

	ch := make(chan error, 1)
	ch <- errors.New("bucket not found")
	close(ch)
	c.handleWriteErrors(ch)

	select {
	case err := <-got:
		if err.Error() != "bucket not found" {
			t.Errorf("callback error = %v", err)
		}
	default:
		t.Error("callback not called")
	}
}
