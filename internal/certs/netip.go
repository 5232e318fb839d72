package certs

import "net"

// FallbackIP is used when no non-loopback IPv4 address is found.
const FallbackIP = "0.0.0.0"

// NetworkIP returns the first non-loopback IPv4 address of an interface that
// is up. It is best effort.
func NetworkIP() string {
	ifaces, err := net.Interfaces()
	if err != nil {
		return FallbackIP
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		if ip := firstIPv4(addrs); ip != "" {
			return ip
		}
	}
	return FallbackIP
}

func firstIPv4(addrs []net.Addr) string {
	for _, a := range addrs {
		var ip net.IP
		switch v := a.(type) {
		case *net.IPNet:
			ip = v.IP
		case *net.IPAddr:
			ip = v.IP
		}
		if ip == nil || ip.IsLoopback() {
			continue
		}
		if v4 := ip.To4(); v4 != nil {
			return v4.String()
		}
	}
	return ""
}
