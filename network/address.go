// Package network implements the address literal grammar of connection
// strings: IPv4 "a.b.c.d:port", IPv6 "[hex:hex:...]:port" (brackets
// mandatory), with an optional ":tls" suffix, and comma-separated lists.
package network

import (
	"fmt"
	"net/netip"
	"strconv"
	"strings"

	"github.com/quarkdb/flux/core"
)

// Address is one parsed endpoint. String() renders the canonical form: IPv6
// compressed and bracketed, the TLS flag as a ":tls" suffix.
type Address struct {
	IP   netip.Addr
	Port uint16
	TLS  bool
}

// Parse parses a single address literal.
func Parse(s string) (Address, *core.Error) {
	if s == "" {
		return Address{}, core.ErrConnectionStringInvalid()
	}

	var addr Address
	if rest, ok := strings.CutSuffix(s, ":tls"); ok {
		addr.TLS = true
		s = rest
	}

	var ipPart, portPart string
	bracketed := strings.HasPrefix(s, "[")
	if bracketed {
		end := strings.IndexByte(s, ']')
		if end < 0 || end+1 >= len(s) || s[end+1] != ':' {
			return Address{}, core.ErrConnectionStringInvalid()
		}
		ipPart = s[1:end]
		portPart = s[end+2:]
	} else {
		colon := strings.LastIndexByte(s, ':')
		if colon < 0 {
			return Address{}, core.ErrConnectionStringInvalid()
		}
		ipPart = s[:colon]
		portPart = s[colon+1:]
	}

	ip, err := netip.ParseAddr(ipPart)
	if err != nil {
		return Address{}, core.ErrConnectionStringInvalid()
	}
	// Brackets are mandatory for IPv6 and malformed for IPv4.
	if bracketed != ip.Is6() {
		return Address{}, core.ErrConnectionStringInvalid()
	}

	port, err := strconv.ParseUint(portPart, 10, 16)
	if err != nil {
		return Address{}, core.ErrConnectionStringInvalid()
	}

	addr.IP = ip
	addr.Port = uint16(port)
	return addr, nil
}

// ParseList splits s on ',' and parses each element.
func ParseList(s string) ([]Address, *core.Error) {
	parts := strings.Split(s, ",")
	out := make([]Address, 0, len(parts))
	for _, part := range parts {
		addr, err := Parse(part)
		if err != nil {
			return nil, err
		}
		out = append(out, addr)
	}
	return out, nil
}

// String renders the canonical literal form.
func (a Address) String() string {
	var s string
	if a.IP.Is6() {
		s = fmt.Sprintf("[%s]:%d", a.IP.String(), a.Port)
	} else {
		s = fmt.Sprintf("%s:%d", a.IP.String(), a.Port)
	}
	if a.TLS {
		s += ":tls"
	}
	return s
}

// FormatList renders addresses as a comma-separated list.
func FormatList(addrs []Address) string {
	parts := make([]string, len(addrs))
	for i, a := range addrs {
		parts[i] = a.String()
	}
	return strings.Join(parts, ",")
}
