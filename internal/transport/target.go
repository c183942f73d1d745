package transport

import (
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/lexfrei/go-fpp/fpperr"
)

// DefaultPort is the port of the FPP web UI and API.
const DefaultPort = 80

// Target is the network address and credentials of one device. A Target is
// a plain value and must not change while a session uses it.
type Target struct {
	Scheme   string
	Host     string
	Port     int
	Username string
	Password string
	// Insecure skips TLS certificate verification for https targets.
	Insecure bool
}

// ParseTarget accepts "host", "host:port" or a full http(s) URL.
func ParseTarget(raw string) (Target, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Target{}, &fpperr.ValidationError{Field: "host", Msg: "must not be empty"}
	}

	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Target{}, &fpperr.ValidationError{Field: "host", Msg: err.Error()}
	}

	t := Target{Scheme: u.Scheme, Host: u.Hostname()}

	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return Target{}, &fpperr.ValidationError{Field: "port", Msg: "not a number"}
		}
		t.Port = port
	}

	if u.User != nil {
		t.Username = u.User.Username()
		t.Password, _ = u.User.Password()
	}

	t = t.withDefaults()

	return t, t.Validate()
}

func (t Target) withDefaults() Target {
	if t.Scheme == "" {
		t.Scheme = "http"
	}
	if t.Port == 0 {
		if t.Scheme == "https" {
			t.Port = 443
		} else {
			t.Port = DefaultPort
		}
	}
	return t
}

// Validate checks the target before any connection is made.
func (t Target) Validate() error {
	t = t.withDefaults()

	switch {
	case t.Scheme != "http" && t.Scheme != "https":
		return &fpperr.ValidationError{Field: "scheme", Msg: "must be http or https, got " + strconv.Quote(t.Scheme)}
	case t.Host == "":
		return &fpperr.ValidationError{Field: "host", Msg: "must not be empty"}
	case t.Port < 1 || t.Port > 65535:
		return &fpperr.ValidationError{Field: "port", Msg: "must be in 1..65535, got " + strconv.Itoa(t.Port)}
	}

	return nil
}

// Key identifies the device for connection pooling: scheme://host:port.
func (t Target) Key() string {
	return t.BaseURL()
}

// BaseURL is the URL prefix of every API request.
func (t Target) BaseURL() string {
	t = t.withDefaults()
	return t.Scheme + "://" + net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
}

func (t Target) String() string {
	return t.Key()
}
