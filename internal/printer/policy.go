package printer

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
)

var (
	ErrBlockedByPolicy = errors.New("blocked by private network policy")
	ErrInvalidAddress  = errors.New("invalid printer address")
)

// DefaultAllowedNetworks are the ranges receipt printers live on.
var DefaultAllowedNetworks = []string{
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"169.254.0.0/16",
	"127.0.0.0/8",
}

// Policy decides which addresses the terminal may talk to. Requests to anything else
// are refused before a connection is attempted.
type Policy struct {
	allowed []netip.Prefix
}

func NewPolicy(cidrs []string) (Policy, error) {
	p := Policy{}
	for _, c := range cidrs {
		prefix, err := netip.ParsePrefix(c)
		if err != nil {
			return Policy{}, fmt.Errorf("parse allowed network %q: %w", c, err)
		}
		p.allowed = append(p.allowed, prefix.Masked())
	}
	return p, nil
}

func DefaultPolicy() Policy {
	p, err := NewPolicy(DefaultAllowedNetworks)
	if err != nil {
		panic(err)
	}
	return p
}

// Check accepts "ip" or "ip:port". An empty policy allows every valid address.
func (p Policy) Check(address string) error {
	host := address
	if h, _, err := net.SplitHostPort(address); err == nil {
		host = h
	}
	ip, err := netip.ParseAddr(host)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}
	ip = ip.Unmap()
	if len(p.allowed) == 0 {
		return nil
	}
	for _, prefix := range p.allowed {
		if prefix.Contains(ip) {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrBlockedByPolicy, ip)
}
