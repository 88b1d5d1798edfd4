// Package bindable provides the address type listeners bind to and report.
//
// An Addr is either a network address (host:port) or a filesystem path
// naming a local domain socket. Addr values are immutable and comparable
// with ==, so they can be used as map keys.
package bindable

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strings"
)

// Kind distinguishes network addresses from filesystem paths.
type Kind uint8

const (
	// KindNone is the zero Addr.
	KindNone Kind = iota

	// KindTCP is a network address.
	KindTCP

	// KindUnix is a local domain socket path.
	KindUnix
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindTCP:
		return "tcp"
	case KindUnix:
		return "unix"
	default:
		return "none"
	}
}

// unixPrefix marks a filesystem path in the textual form of an Addr.
const unixPrefix = "unix:"

// Address parsing errors.
var (
	ErrEmptyAddr = errors.New("empty address")
	ErrEmptyPath = errors.New("empty unix socket path")
)

// Addr is a network address or a filesystem path.
type Addr struct {
	kind Kind
	ap   netip.AddrPort
	path string
}

// TCP returns an Addr for a network address.
func TCP(ap netip.AddrPort) Addr {
	return Addr{kind: KindTCP, ap: ap}
}

// Unix returns an Addr for a local domain socket path.
func Unix(path string) Addr {
	return Addr{kind: KindUnix, path: path}
}

// FromNetAddr converts a net.Addr reported by the standard library.
// Unnamed (abstract or unbound) unix addresses yield false.
func FromNetAddr(a net.Addr) (Addr, bool) {
	switch v := a.(type) {
	case *net.TCPAddr:
		if v == nil {
			return Addr{}, false
		}
		ap := v.AddrPort()
		return TCP(netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port())), true
	case *net.UnixAddr:
		if v == nil || v.Name == "" || v.Name[0] == '@' {
			return Addr{}, false
		}
		return Unix(v.Name), true
	default:
		return Addr{}, false
	}
}

// Parse parses "host:port" (IP literal host) or "unix:<path>".
func Parse(s string) (Addr, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Addr{}, ErrEmptyAddr
	}
	if path, ok := strings.CutPrefix(s, unixPrefix); ok {
		if path == "" {
			return Addr{}, ErrEmptyPath
		}
		return Unix(path), nil
	}
	ap, err := netip.ParseAddrPort(s)
	if err != nil {
		return Addr{}, fmt.Errorf("invalid network address %q: %w", s, err)
	}
	return TCP(ap), nil
}

// Kind returns the address kind.
func (a Addr) Kind() Kind { return a.kind }

// IsTCP reports whether a is a network address.
func (a Addr) IsTCP() bool { return a.kind == KindTCP }

// IsUnix reports whether a is a filesystem path.
func (a Addr) IsUnix() bool { return a.kind == KindUnix }

// AddrPort returns the network address, if a is one.
func (a Addr) AddrPort() (netip.AddrPort, bool) {
	return a.ap, a.kind == KindTCP
}

// Path returns the filesystem path, if a is one.
func (a Addr) Path() (string, bool) {
	return a.path, a.kind == KindUnix
}

// String returns "host:port" or "unix:<path>"; Parse accepts both forms.
func (a Addr) String() string {
	switch a.kind {
	case KindTCP:
		return a.ap.String()
	case KindUnix:
		return unixPrefix + a.path
	default:
		return ""
	}
}

// Network returns the net package network name for a.
func (a Addr) Network() string {
	return a.kind.String()
}

// NetAddr converts a back to a net.Addr. The zero Addr yields nil.
func (a Addr) NetAddr() net.Addr {
	switch a.kind {
	case KindTCP:
		return net.TCPAddrFromAddrPort(a.ap)
	case KindUnix:
		return &net.UnixAddr{Name: a.path, Net: "unix"}
	default:
		return nil
	}
}
