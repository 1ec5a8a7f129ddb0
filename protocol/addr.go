// Package protocol resolves the listen addresses statsd packets arrive on
// and converts socket addresses into the form attached to decoded metrics.
package protocol

import (
	"fmt"
	"net"
	"net/netip"
	"net/url"
)

// ResolveAddr takes a URL-style listen address specification,
// resolves it and returns a net.Addr that corresponds to the
// string. Only datagram families are accepted, since statsd packets
// are always read whole.
//
// Valid address examples are:
//
//	udp://127.0.0.1:8125
//	udp6://[::1]:8125
//	unixgram:///tmp/statsd.sock
func ResolveAddr(str string) (net.Addr, error) {
	u, err := url.Parse(str)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "unixgram":
		if u.Path == "" {
			return nil, fmt.Errorf("missing socket path on address %q", str)
		}
		return net.ResolveUnixAddr(u.Scheme, u.Path)
	case "udp6", "udp4", "udp":
		return net.ResolveUDPAddr(u.Scheme, u.Host)
	}
	return nil, fmt.Errorf("unknown address family %q on address %q", u.Scheme, u.String())
}

// AddrPortOf returns the IP and port of a socket address. Addresses without
// an IP, such as unix sockets or nil, yield the zero AddrPort. IPv4-mapped
// IPv6 addresses are unmapped so the same host always compares equal.
func AddrPortOf(addr net.Addr) netip.AddrPort {
	switch a := addr.(type) {
	case *net.UDPAddr:
		if a == nil {
			return netip.AddrPort{}
		}
		ap := a.AddrPort()
		return netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port())
	case *net.TCPAddr:
		if a == nil {
			return netip.AddrPort{}
		}
		ap := a.AddrPort()
		return netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port())
	}
	return netip.AddrPort{}
}

// WithAddr replaces the IP of ap, keeping its port. It is used when the
// kernel reports the destination IP of a packet separately from the port
// the socket is bound to.
func WithAddr(ap netip.AddrPort, ip net.IP) netip.AddrPort {
	addr, ok := netip.AddrFromSlice(ip)
	if !ok {
		return ap
	}
	return netip.AddrPortFrom(addr.Unmap(), ap.Port())
}
