package discovery

import (
	"context"
	"net"
	"slices"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/enbility/zeroconf/v3"

	"github.com/lexfrei/go-fpp/observability"
)

const (
	// ServiceType is the DNS-SD service FPP advertises.
	ServiceType = "_fppd._udp"
	// Domain is the mDNS domain.
	Domain = "local"
	// DefaultTimeout bounds Scan when the config leaves it unset.
	DefaultTimeout = 5 * time.Second
)

// ErrNoDevice is returned when no candidate answered.
var ErrNoDevice = errors.New("no reachable FPP device found")

// Config configures a Browser.
type Config struct {
	// Interface limits browsing to one network interface. Empty means all.
	Interface string
	// Timeout bounds Scan (defaults to 5s). Browse runs until ctx ends.
	Timeout time.Duration
	// Logger for structured logging (optional, defaults to no-op).
	Logger observability.Logger
}

// browseFunc matches zeroconf.Browse so tests can feed entries directly.
type browseFunc func(ctx context.Context, service, domain string, entries, removed chan *zeroconf.ServiceEntry) error

// Browser discovers FPP devices.
type Browser struct {
	config Config
	logger observability.Logger
	browse browseFunc
}

// NewBrowser creates a Browser.
func NewBrowser(config Config) *Browser {
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}

	logger := config.Logger
	if logger == nil {
		logger = observability.NoopLogger()
	}

	b := &Browser{config: config, logger: logger}
	b.browse = func(ctx context.Context, service, domain string, entries, removed chan *zeroconf.ServiceEntry) error {
		return zeroconf.Browse(ctx, service, domain, entries, removed, b.options()...)
	}

	return b
}

func (b *Browser) options() []zeroconf.ClientOption {
	var opts []zeroconf.ClientOption

	if b.config.Interface != "" {
		iface, err := net.InterfaceByName(b.config.Interface)
		if err == nil {
			opts = append(opts, zeroconf.SelectIfaces([]net.Interface{*iface}))
		} else {
			b.logger.Warn("unknown interface, browsing on all",
				observability.Field{Key: "interface", Value: b.config.Interface},
			)
		}
	}

	return opts
}

// Browse streams devices until ctx is done. An instance is reported when it
// is first seen and again whenever an announcement adds addresses to it; the
// reported candidate always carries every address known so far.
func (b *Browser) Browse(ctx context.Context) (<-chan Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "browse")
	}

	out := make(chan Candidate)
	entries := make(chan *zeroconf.ServiceEntry)
	removed := make(chan *zeroconf.ServiceEntry)

	go func() {
		defer close(out)

		seen := make(map[string]*Candidate)
		gone := removed

		for {
			select {
			case entry, ok := <-entries:
				if !ok {
					return
				}
				c := candidateFrom(entry)
				if c.Instance == "" {
					continue
				}

				if existing, found := seen[c.Instance]; found {
					merged := mergeAddresses(existing.Addresses, c.Addresses)
					if len(merged) == len(existing.Addresses) {
						continue
					}
					existing.Addresses = merged
					c = *existing
					c.Addresses = slices.Clone(merged)
				} else {
					stored := c
					stored.Addresses = slices.Clone(c.Addresses)
					seen[c.Instance] = &stored
					b.logger.Debug("fpp device found",
						observability.Field{Key: "instance", Value: c.Instance},
						observability.Field{Key: "addresses", Value: c.Addresses},
					)
				}

				select {
				case out <- c:
				case <-ctx.Done():
					return
				}

			case entry, ok := <-gone:
				if !ok {
					gone = nil
					continue
				}
				delete(seen, entry.Instance)

			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		if err := b.browse(ctx, ServiceType, Domain, entries, removed); err != nil {
			b.logger.Warn("mdns browse failed", observability.Err(err))
		}
	}()

	return out, nil
}

// Scan browses for the configured timeout and returns everything found,
// sorted by instance name.
func (b *Browser) Scan(ctx context.Context) ([]Candidate, error) {
	ctx, cancel := context.WithTimeout(ctx, b.config.Timeout)
	defer cancel()

	stream, err := b.Browse(ctx)
	if err != nil {
		return nil, err
	}

	byInstance := make(map[string]Candidate)
	for c := range stream {
		byInstance[c.Instance] = c
	}

	found := make([]Candidate, 0, len(byInstance))
	for _, c := range byInstance {
		found = append(found, c)
	}
	slices.SortFunc(found, func(a, b Candidate) int {
		return strings.Compare(a.Instance, b.Instance)
	})

	return found, nil
}

func candidateFrom(entry *zeroconf.ServiceEntry) Candidate {
	addrs := make([]string, 0, len(entry.AddrIPv4)+len(entry.AddrIPv6))
	for _, ip := range entry.AddrIPv4 {
		addrs = append(addrs, ip.String())
	}
	for _, ip := range entry.AddrIPv6 {
		addrs = append(addrs, ip.String())
	}

	return Candidate{
		Instance:  entry.Instance,
		HostName:  entry.HostName,
		Addresses: addrs,
		Text:      entry.Text,
	}
}

// mergeAddresses adds new addresses to existing, avoiding duplicates.
func mergeAddresses(existing, added []string) []string {
	for _, addr := range added {
		if !slices.Contains(existing, addr) {
			existing = append(existing, addr)
		}
	}
	return existing
}
