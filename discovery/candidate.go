package discovery

import (
	"context"
	"net"
	"net/netip"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/lexfrei/go-fpp"
)

// HTTPPort is where the FPP web API listens, whatever port fppd advertises.
const HTTPPort = 80

// Candidate is one device seen on the network.
type Candidate struct {
	Instance  string
	HostName  string
	Addresses []string
	Text      []string
}

// Targets returns the HTTP targets of the candidate: IPv4 addresses first,
// then IPv6, then the advertised host name when no address is known.
// Link-local IPv6 addresses are skipped since they need a zone.
func (c Candidate) Targets() []fpp.Target {
	var v4, v6 []fpp.Target

	for _, raw := range c.Addresses {
		addr, err := netip.ParseAddr(raw)
		if err != nil {
			continue
		}

		target := fpp.Target{Scheme: "http", Host: addr.String(), Port: HTTPPort}
		switch {
		case addr.Is4() || addr.Is4In6():
			target.Host = addr.Unmap().String()
			v4 = append(v4, target)
		case addr.IsLinkLocalUnicast():
		default:
			v6 = append(v6, target)
		}
	}

	targets := slices.Concat(v4, v6)
	if len(targets) == 0 && c.HostName != "" {
		targets = append(targets, fpp.Target{
			Scheme: "http",
			Host:   strings.TrimSuffix(c.HostName, "."),
			Port:   HTTPPort,
		})
	}

	return targets
}

// Targets adapts a candidate stream to a stream of targets. The output is
// closed when in is closed or ctx is done.
func Targets(ctx context.Context, in <-chan Candidate) <-chan fpp.Target {
	out := make(chan fpp.Target)

	go func() {
		defer close(out)

		sent := make(map[string]bool)
		for {
			select {
			case c, ok := <-in:
				if !ok {
					return
				}
				for _, target := range c.Targets() {
					if sent[target.Key()] {
						continue
					}
					sent[target.Key()] = true

					select {
					case out <- target:
					case <-ctx.Done():
						return
					}
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}

// ProbeFunc checks whether a target answers.
type ProbeFunc func(ctx context.Context, target fpp.Target) error

// DefaultProbeTimeout bounds one DefaultProbe call.
const DefaultProbeTimeout = 2 * time.Second

// DefaultProbe opens a TCP connection to the target.
func DefaultProbe(ctx context.Context, target fpp.Target) error {
	ctx, cancel := context.WithTimeout(ctx, DefaultProbeTimeout)
	defer cancel()

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(target.Host, strconv.Itoa(target.Port)))
	if err != nil {
		return errors.Wrapf(err, "probe %s", target)
	}
	return conn.Close()
}

// FirstReachable returns the first target of candidates, in order, that
// passes probe. A nil probe uses DefaultProbe.
func FirstReachable(ctx context.Context, candidates []Candidate, probe ProbeFunc) (fpp.Target, error) {
	if probe == nil {
		probe = DefaultProbe
	}

	var last error
	for _, c := range candidates {
		for _, target := range c.Targets() {
			if err := ctx.Err(); err != nil {
				return fpp.Target{}, errors.Wrap(err, "probe canceled")
			}

			err := probe(ctx, target)
			if err == nil {
				return target, nil
			}
			last = err
		}
	}

	if last == nil {
		return fpp.Target{}, ErrNoDevice
	}
	return fpp.Target{}, errors.WithSecondaryError(ErrNoDevice, last)
}
