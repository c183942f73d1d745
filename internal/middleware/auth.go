package middleware

import (
	"maps"
	"net/http"
)

// BasicAuth returns a middleware that adds HTTP basic credentials to every
// request. FPP only enforces them when the UI password is enabled. An empty
// username disables the middleware.
func BasicAuth(username, password string) func(http.RoundTripper) http.RoundTripper {
	return func(next http.RoundTripper) http.RoundTripper {
		if username == "" {
			return next
		}
		return &authTransport{
			next:     next,
			username: username,
			password: password,
		}
	}
}

type authTransport struct {
	next     http.RoundTripper
	username string
	password string
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = cloneRequest(req)
	req.SetBasicAuth(t.username, t.password)

	//nolint:wrapcheck // Middleware passes through errors from next handler in chain
	return t.next.RoundTrip(req)
}

// Headers returns a middleware that sets fixed headers on requests that do
// not carry them already.
func Headers(headers map[string]string) func(http.RoundTripper) http.RoundTripper {
	return func(next http.RoundTripper) http.RoundTripper {
		return roundTripperFunc(func(req *http.Request) (*http.Response, error) {
			req = cloneRequest(req)
			for name, value := range headers {
				if req.Header.Get(name) == "" {
					req.Header.Set(name, value)
				}
			}
			//nolint:wrapcheck // Middleware passes through errors from next handler in chain
			return next.RoundTrip(req)
		})
	}
}

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) { return f(req) }

// cloneRequest creates a shallow copy of the request with a cloned header map.
func cloneRequest(req *http.Request) *http.Request {
	r := new(http.Request)
	*r = *req
	r.Header = make(http.Header, len(req.Header))
	maps.Copy(r.Header, req.Header)
	return r
}
