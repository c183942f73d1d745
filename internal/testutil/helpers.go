// Package testutil provides common testing utilities and helpers.
package testutil

import (
	"embed"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// FS embeds all JSON fixture files. They mirror answers of real FPP devices.
//
//go:embed fixtures/*.json
var FS embed.FS

// LoadFixture reads and returns fixture content.
// The name is relative to the fixtures directory (e.g., "system_status.json").
func LoadFixture(t testing.TB, name string) []byte {
	t.Helper()

	data, err := FS.ReadFile(path.Join("fixtures", name))
	if err != nil {
		t.Fatalf("failed to load fixture %s: %v", name, err)
	}

	return data
}

// Response is one canned answer of a mock device.
type Response struct {
	Status int
	Body   []byte
	Header map[string]string

	// Arrived, when set, is signaled once the request reaches the device.
	Arrived chan<- struct{}
	// Hold, when set, delays the answer until it is closed or the client
	// goes away.
	Hold <-chan struct{}
}

// JSON answers 200 with body.
func JSON(body []byte) Response {
	return Response{Status: http.StatusOK, Body: body}
}

// Fixture answers 200 with the named fixture.
func Fixture(t testing.TB, name string) Response {
	t.Helper()
	return JSON(LoadFixture(t, name))
}

// Device is a mock FPP device. Each path answers from a queue of responses;
// the last response of a queue repeats.
type Device struct {
	t        testing.TB
	server   *httptest.Server
	username string
	password string

	mu     sync.Mutex
	routes map[string][]Response
	calls  map[string]int
	bodies map[string][][]byte
}

// NewDevice starts a mock device. It is closed when the test ends.
func NewDevice(t testing.TB) *Device {
	t.Helper()

	d := &Device{
		t:      t,
		routes: make(map[string][]Response),
		calls:  make(map[string]int),
		bodies: make(map[string][][]byte),
	}
	d.server = httptest.NewServer(http.HandlerFunc(d.serve))
	t.Cleanup(d.server.Close)

	return d
}

// RequireAuth makes the device reject requests without these credentials.
func (d *Device) RequireAuth(username, password string) *Device {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.username = username
	d.password = password
	return d
}

// Handle sets the answers of "METHOD /path". Later calls replace earlier ones.
func (d *Device) Handle(method, urlPath string, responses ...Response) *Device {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.routes[method+" "+urlPath] = responses
	return d
}

// Calls returns how often "METHOD /path" was requested.
func (d *Device) Calls(method, urlPath string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls[method+" "+urlPath]
}

// Bodies returns the request bodies received on "METHOD /path".
func (d *Device) Bodies(method, urlPath string) [][]byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([][]byte(nil), d.bodies[method+" "+urlPath]...)
}

// URL returns the base URL of the device.
func (d *Device) URL() string { return d.server.URL }

// Host returns "host:port" of the device.
func (d *Device) Host() string {
	u, err := url.Parse(d.server.URL)
	require.NoError(d.t, err)
	return u.Host
}

// Port returns the TCP port of the device.
func (d *Device) Port() int {
	u, err := url.Parse(d.server.URL)
	require.NoError(d.t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(d.t, err)
	return port
}

// Close stops the device, making it unreachable.
func (d *Device) Close() { d.server.Close() }

func (d *Device) serve(w http.ResponseWriter, r *http.Request) {
	route := r.Method + " " + r.URL.EscapedPath()

	body, _ := io.ReadAll(r.Body)

	d.mu.Lock()
	d.calls[route]++
	d.bodies[route] = append(d.bodies[route], body)
	username, password := d.username, d.password

	queue, ok := d.routes[route]
	var resp Response
	if ok && len(queue) > 0 {
		resp = queue[0]
		if len(queue) > 1 {
			d.routes[route] = queue[1:]
		}
	}
	d.mu.Unlock()

	if username != "" {
		user, pass, hasAuth := r.BasicAuth()
		if !hasAuth || user != username || pass != password {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
	}

	if !ok {
		assert.Failf(d.t, "unexpected request", "no route for %s", route)
		w.WriteHeader(http.StatusNotFound)
		return
	}

	if resp.Arrived != nil {
		select {
		case resp.Arrived <- struct{}{}:
		case <-r.Context().Done():
			return
		}
	}
	if resp.Hold != nil {
		select {
		case <-resp.Hold:
		case <-r.Context().Done():
			return
		}
	}

	for k, v := range resp.Header {
		w.Header().Set(k, v)
	}
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/json")
	}

	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = w.Write(resp.Body)
}
