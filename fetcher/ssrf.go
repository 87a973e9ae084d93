package fetcher

import (
	"fmt"
	"net"
	"syscall"
)

// privateRanges are the private and reserved networks the fetcher refuses to dial
var privateRanges []*net.IPNet

func init() {
	cidrs := []string{
		// IPv4
		"127.0.0.0/8",    // loopback
		"10.0.0.0/8",     // RFC 1918
		"172.16.0.0/12",  // RFC 1918
		"192.168.0.0/16", // RFC 1918
		"169.254.0.0/16", // link-local
		"100.64.0.0/10",  // CGNAT (RFC 6598)
		"0.0.0.0/8",      // "this" network
		"224.0.0.0/4",    // multicast

		// IPv6
		"::1/128",   // loopback
		"::/128",    // unspecified
		"fe80::/10", // link-local
		"fc00::/7",  // unique local
		"ff00::/8",  // multicast
	}

	for _, cidr := range cidrs {
		_, ipNet, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(fmt.Sprintf("invalid CIDR in private ranges: %s", cidr))
		}
		privateRanges = append(privateRanges, ipNet)
	}
}

// IsPrivateIP reports whether ip is in a private or reserved range
func IsPrivateIP(ip net.IP) bool {
	if ip == nil {
		return false
	}
	for _, ipNet := range privateRanges {
		if ipNet.Contains(ip) {
			return true
		}
	}
	return false
}

// checkHost rejects hostnames that are private IP literals. Domain names
// pass; they are checked again after resolution by denyPrivateDial.
func checkHost(hostname string) error {
	ip := net.ParseIP(hostname)
	if ip == nil {
		return nil
	}
	if IsPrivateIP(ip) {
		return fmt.Errorf("%w: %s", ErrBlockedHost, hostname)
	}
	return nil
}

// denyPrivateDial is a net.Dialer Control hook. It runs after DNS
// resolution, so it also catches rebinding to internal addresses.
func denyPrivateDial(network, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrBlockedHost, address)
	}
	ip := net.ParseIP(host)
	if ip == nil || IsPrivateIP(ip) {
		return fmt.Errorf("%w: %s", ErrBlockedHost, host)
	}
	return nil
}
