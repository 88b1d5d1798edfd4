// Package advertise announces a bound listener over mDNS/DNS-SD so that
// clients on the local network can find the server without configuration.
package advertise

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/enbility/zeroconf/v3"

	"github.com/portico-http/portico/pkg/bindable"
)

// DNS-SD defaults.
const (
	ServiceHTTP  = "_http._tcp"
	ServiceHTTPS = "_https._tcp"
	Domain       = "local."
	DefaultTTL   = 120 * time.Second

	// MaxInstanceNameLen is the DNS label limit for instance names.
	MaxInstanceNameLen = 63
)

// ErrNotAdvertisable is returned for listeners that are not reachable over
// the network, such as local domain sockets.
var ErrNotAdvertisable = errors.New("address cannot be advertised")

// ErrUnknownInterface is returned when Config.Interface names no interface
// of this host.
var ErrUnknownInterface = errors.New("unknown network interface")

// Registration is an active announcement.
type Registration interface {
	Shutdown()
}

// Registrar publishes DNS-SD records. The default implementation uses
// zeroconf; tests substitute a mock.
type Registrar interface {
	Register(instance, service, domain string, port int, txt []string, ifaces []net.Interface, ttl time.Duration) (Registration, error)
}

type zeroconfRegistrar struct{}

func (zeroconfRegistrar) Register(instance, service, domain string, port int, txt []string, ifaces []net.Interface, ttl time.Duration) (Registration, error) {
	var opts []zeroconf.ServerOption
	if ttl > 0 {
		opts = append(opts, zeroconf.TTL(uint32(ttl.Seconds())))
	}
	server, err := zeroconf.Register(instance, service, domain, port, txt, ifaces, opts...)
	if err != nil {
		return nil, err
	}
	return server, nil
}

// Config configures an Advertiser.
type Config struct {
	// Instance is the service instance name. Defaults to "portico-<host>".
	Instance string

	// Interface restricts announcements to one interface. Empty means all.
	Interface string

	// TTL of the published records. Default: 120 seconds.
	TTL time.Duration

	// TXT holds extra key/value pairs published with the service.
	TXT map[string]string
}

// Option configures an Advertiser.
type Option func(*Advertiser)

// WithRegistrar replaces the zeroconf registrar.
func WithRegistrar(r Registrar) Option {
	return func(a *Advertiser) { a.registrar = r }
}

// WithLogger sets the operational logger. Nil disables logging.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Advertiser) { a.logger = logger }
}

// Advertiser announces one listener at a time.
type Advertiser struct {
	config    Config
	registrar Registrar
	logger    *slog.Logger

	mu  sync.Mutex
	reg Registration
}

// New creates an Advertiser.
func New(config Config, opts ...Option) *Advertiser {
	if config.TTL == 0 {
		config.TTL = DefaultTTL
	}
	a := &Advertiser{config: config, registrar: zeroconfRegistrar{}}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Advertise announces addr, replacing any earlier announcement. protocols
// lists the ALPN protocols served; secure selects the _https service type.
func (a *Advertiser) Advertise(addr bindable.Addr, secure bool, protocols []string) error {
	ap, ok := addr.AddrPort()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotAdvertisable, addr)
	}

	service := ServiceHTTP
	if secure {
		service = ServiceHTTPS
	}

	ifaces, err := a.interfaces()
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.stopLocked()

	instance := a.instanceName()
	reg, err := a.registrar.Register(
		instance,
		service,
		Domain,
		int(ap.Port()),
		a.txtRecords(protocols),
		ifaces,
		a.config.TTL,
	)
	if err != nil {
		return fmt.Errorf("failed to register %s service: %w", service, err)
	}
	a.reg = reg

	if a.logger != nil {
		a.logger.Info("advertising listener",
			"instance", instance,
			"service", service,
			"port", ap.Port())
	}
	return nil
}

// Stop withdraws the current announcement, if any.
func (a *Advertiser) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopLocked()
}

func (a *Advertiser) stopLocked() {
	if a.reg != nil {
		a.reg.Shutdown()
		a.reg = nil
	}
}

func (a *Advertiser) instanceName() string {
	name := a.config.Instance
	if name == "" {
		host, err := os.Hostname()
		if err != nil || host == "" {
			host = "localhost"
		}
		name = "portico-" + host
	}
	return truncateLabel(name, MaxInstanceNameLen)
}

// truncateLabel cuts name to at most n bytes without splitting a UTF-8
// sequence.
func truncateLabel(name string, n int) string {
	if len(name) <= n {
		return name
	}
	for n > 0 && !utf8.RuneStart(name[n]) {
		n--
	}
	return name[:n]
}

// interfaces returns nil, meaning all interfaces, unless one is configured.
func (a *Advertiser) interfaces() ([]net.Interface, error) {
	if a.config.Interface == "" {
		return nil, nil
	}
	iface, err := net.InterfaceByName(a.config.Interface)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrUnknownInterface, a.config.Interface, err)
	}
	return []net.Interface{*iface}, nil
}

// txtRecords encodes the TXT map in key order, followed by the protocols.
func (a *Advertiser) txtRecords(protocols []string) []string {
	keys := make([]string, 0, len(a.config.TXT))
	for k := range a.config.TXT {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	txt := make([]string, 0, len(keys)+1)
	for _, k := range keys {
		txt = append(txt, k+"="+a.config.TXT[k])
	}
	if len(protocols) > 0 {
		txt = append(txt, "alpn="+strings.Join(protocols, ","))
	}
	return txt
}
