package discovery

import (
	"fmt"
	"net"
	"sync"

	"github.com/enbility/zeroconf/v3"

	"github.com/nerrad567/solar-bridge/internal/infrastructure/config"
	"github.com/nerrad567/solar-bridge/internal/infrastructure/logging"
)

// server is the part of *zeroconf.Server the advertiser uses.
type server interface {
	SetText(text []string)
	Shutdown()
}

// registerFunc registers a service and returns its running server.
type registerFunc func(instance, service, domain string, port int, text []string, ifaces []net.Interface) (server, error)

func zeroconfRegister(instance, service, domain string, port int, text []string, ifaces []net.Interface) (server, error) {
	return zeroconf.Register(instance, service, domain, port, text, ifaces)
}

// Advertiser publishes the accessory over mDNS.
type Advertiser struct {
	cfg      config.DiscoveryConfig
	logger   *logging.Logger
	register registerFunc

	mu     sync.Mutex
	info   Info
	server server
}

// NewAdvertiser returns an advertiser for info. Nothing is sent until Start.
func NewAdvertiser(cfg config.DiscoveryConfig, info Info, logger *logging.Logger) *Advertiser {
	if logger == nil {
		logger = logging.Default()
	}
	return &Advertiser{
		cfg:      cfg,
		logger:   logger.With("component", "discovery"),
		register: zeroconfRegister,
		info:     info,
	}
}

// Start registers the service. Calling it again re-registers.
func (a *Advertiser) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}

	srv, err := a.register(a.info.Name, ServiceType, Domain, a.info.Port, TXT(a.info), a.interfaces())
	if err != nil {
		return fmt.Errorf("registering %s service: %w", ServiceType, err)
	}
	a.server = srv
	a.logger.Info("advertising accessory",
		"instance", a.info.Name,
		"port", a.info.Port,
		"device_id", a.info.DeviceID,
		"paired", a.info.Paired,
	)
	return nil
}

// SetPaired updates the status flag. It matches the pairing state listener
// signature.
func (a *Advertiser) SetPaired(paired bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.info.Paired == paired {
		return
	}
	a.info.Paired = paired
	if a.server != nil {
		a.server.SetText(TXT(a.info))
		a.logger.Debug("advertisement updated", "paired", paired)
	}
}

// SetConfigNumber updates "c#".
func (a *Advertiser) SetConfigNumber(n int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.info.ConfigNumber = n
	if a.server != nil {
		a.server.SetText(TXT(a.info))
	}
}

// Info returns the advertised values.
func (a *Advertiser) Info() Info {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.info
}

// Stop withdraws the advertisement.
func (a *Advertiser) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
		a.logger.Info("advertisement stopped")
	}
}

// interfaces returns nil, meaning all interfaces, unless one is configured
// and exists.
func (a *Advertiser) interfaces() []net.Interface {
	if a.cfg.Interface == "" {
		return nil
	}
	iface, err := net.InterfaceByName(a.cfg.Interface)
	if err != nil {
		a.logger.Warn("discovery interface not found, using all", "interface", a.cfg.Interface, "error", err)
		return nil
	}
	return []net.Interface{*iface}
}
