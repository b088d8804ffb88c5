// Package privacy reduces client network identifiers to forms that cannot
// single out a person. Verification history and request logs only ever see
// the output of AnonymizeIP.
package privacy

import "net/netip"

const (
	ipv4PrefixBits = 24
	ipv6PrefixBits = 48
)

// AnonymizeIP returns the network prefix of ip in CIDR form: /24 for IPv4
// (including IPv4-mapped IPv6) and /48 for IPv6.
//
//	"192.168.1.47"                -> "192.168.1.0/24"
//	"2001:db8:85a3::8a2e:370:7334" -> "2001:db8:85a3::/48"
//
// Empty input and "unknown" yield "unknown"; anything unparseable yields
// "invalid".
func AnonymizeIP(ip string) string {
	if ip == "" || ip == "unknown" {
		return "unknown"
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return "invalid"
	}
	addr = addr.Unmap().WithZone("")

	bits := ipv6PrefixBits
	if addr.Is4() {
		bits = ipv4PrefixBits
	}
	prefix, err := addr.Prefix(bits)
	if err != nil {
		return "invalid"
	}
	return prefix.String()
}
