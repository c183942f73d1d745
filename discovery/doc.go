// Package discovery finds FPP devices on the local network over mDNS/DNS-SD.
//
// FPP advertises its MultiSync daemon as the _fppd._udp service. The HTTP
// API of a device always listens on port 80, so discovered addresses are
// turned into fpp.Target values on that port rather than the advertised one.
//
// # Browsing
//
//	browser := discovery.NewBrowser(discovery.Config{})
//	candidates, err := browser.Browse(ctx)
//	if err != nil {
//	    return err
//	}
//	for c := range candidates {
//	    fmt.Println(c.Instance, c.Addresses)
//	}
//
// Results are aggregated by instance name: a device seen on several
// interfaces is reported once, with the addresses merged.
//
// # Connecting
//
// FirstReachable probes candidates in order and returns the first target
// that answers, so a caller can go from "somewhere on the LAN" to a client:
//
//	target, err := discovery.FirstReachable(ctx, found, nil)
//	client, err := fpp.NewWithConfig(&fpp.ClientConfig{Target: target})
package discovery
