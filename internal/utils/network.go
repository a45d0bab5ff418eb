package utils

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"
)

// --- Network Helpers ---

func DetectLocalIP() (string, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "", err
	}
	for _, a := range addrs {
		if ipnet, ok := a.(*net.IPNet); ok && !ipnet.IP.IsLoopback() && ipnet.IP.To4() != nil {
			return ipnet.IP.String(), nil
		}
	}
	return "", fmt.Errorf("no local IPv4 address found")
}

// Subnet24 returns the first three octets of an IPv4 address.
func Subnet24(ip string) (string, error) {
	parsed := net.ParseIP(ip).To4()
	if parsed == nil {
		return "", fmt.Errorf("not an IPv4 address: %q", ip)
	}
	parts := strings.Split(parsed.String(), ".")
	return strings.Join(parts[:3], "."), nil
}

// Probe reports whether something accepts TCP connections on ip:port.
func Probe(ctx context.Context, ip string, port int, timeout time.Duration) bool {
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(ip, fmt.Sprint(port)))
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
