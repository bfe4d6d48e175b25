package app

import (
	"fmt"
	"net"
	"strings"
)

// networkInterface wraps net.Interface for testing
type networkInterface interface {
	Flags() net.Flags
	Addrs() ([]net.Addr, error)
}

type realInterface struct {
	iface net.Interface
}

func (r realInterface) Flags() net.Flags           { return r.iface.Flags }
func (r realInterface) Addrs() ([]net.Addr, error) { return r.iface.Addrs() }

type networkProvider interface {
	Interfaces() ([]networkInterface, error)
}

type realNetworkProvider struct{}

func (realNetworkProvider) Interfaces() ([]networkInterface, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	result := make([]networkInterface, len(ifaces))
	for i, iface := range ifaces {
		result[i] = realInterface{iface: iface}
	}
	return result, nil
}

// defaultBaseURL builds the share-link base from the LAN address and the
// listen port, for pools run on a local network without PUBLIC_BASE_URL.
func defaultBaseURL(provider networkProvider, addr string) string {
	port := addr
	if i := strings.LastIndex(addr, ":"); i >= 0 {
		port = addr[i+1:]
	}
	host := preferredIP(provider)
	if port == "" || port == "80" {
		return "http://" + host
	}
	return fmt.Sprintf("http://%s:%s", host, port)
}

// preferredIP returns the best IPv4 address for LAN access: a private
// address if there is one, else any non-loopback address, else localhost.
func preferredIP(provider networkProvider) string {
	ifaces, err := provider.Interfaces()
	if err != nil {
		return "localhost"
	}

	var candidates []net.IP
	for _, iface := range ifaces {
		if flags := iface.Flags(); flags&net.FlagUp == 0 || flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			var ip net.IP
			switch v := addr.(type) {
			case *net.IPNet:
				ip = v.IP
			case *net.IPAddr:
				ip = v.IP
			}
			if ip == nil || ip.To4() == nil || ip.IsLoopback() {
				continue
			}
			candidates = append(candidates, ip)
		}
	}

	for _, ip := range candidates {
		if ip.IsPrivate() {
			return ip.String()
		}
	}
	if len(candidates) > 0 {
		return candidates[0].String()
	}
	return "localhost"
}
