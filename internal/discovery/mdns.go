// Package discovery advertises and browses for Lamarrs servers on the
// local network via mDNS, so a desktop or embedded client can find the
// orchestration server without a hardcoded address. This is additive to
// the exchange-message protocol itself: a client that already knows its
// server's address never needs this package.
package discovery

import (
	"context"
	"fmt"
	"log"
	"net"

	"github.com/hashicorp/mdns"
)

// Config holds discovery configuration.
type Config struct {
	ServiceName string
	Port        int
	ServerMode  bool // not read by Manager; callers pick Advertise or Browse themselves
}

// Manager handles mDNS advertisement and browsing.
type Manager struct {
	config  Config
	ctx     context.Context
	cancel  context.CancelFunc
	servers chan *ServerInfo
}

// ServerInfo describes a discovered Lamarrs server.
type ServerInfo struct {
	Name string
	Host string
	Port int
}

// NewManager creates a discovery manager.
func NewManager(config Config) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		config:  config,
		ctx:     ctx,
		cancel:  cancel,
		servers: make(chan *ServerInfo, 10),
	}
}

// Advertise publishes this process as a Lamarrs server via mDNS.
func (m *Manager) Advertise() error {
	ips, err := localIPv4s()
	if err != nil {
		return fmt.Errorf("discovery: local IPs: %w", err)
	}

	service, err := mdns.NewMDNSService(
		m.config.ServiceName,
		"_lamarrs-server._tcp",
		"",
		"",
		m.config.Port,
		ips,
		[]string{"path=/"},
	)
	if err != nil {
		return fmt.Errorf("discovery: create service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return fmt.Errorf("discovery: create mdns server: %w", err)
	}

	log.Printf("discovery: advertising %s on port %d", m.config.ServiceName, m.config.Port)

	go func() {
		<-m.ctx.Done()
		server.Shutdown()
	}()

	return nil
}

// Browse starts a background loop of queries for Lamarrs servers.
func (m *Manager) Browse() error {
	go m.browseLoop()
	return nil
}

func (m *Manager) browseLoop() {
	for {
		select {
		case <-m.ctx.Done():
			return
		default:
		}

		entries := make(chan *mdns.ServiceEntry, 10)
		go func() {
			for entry := range entries {
				info := &ServerInfo{Name: entry.Name, Host: entry.AddrV4.String(), Port: entry.Port}
				log.Printf("discovery: found %s at %s:%d", info.Name, info.Host, info.Port)
				select {
				case m.servers <- info:
				case <-m.ctx.Done():
					return
				}
			}
		}()

		mdns.Query(&mdns.QueryParam{
			Service: "_lamarrs-server._tcp",
			Domain:  "local",
			Timeout: 3,
			Entries: entries,
		})
		close(entries)
	}
}

// Servers returns the channel of servers discovered by Browse.
func (m *Manager) Servers() <-chan *ServerInfo {
	return m.servers
}

// Stop halts advertisement and/or browsing.
func (m *Manager) Stop() {
	m.cancel()
}

func localIPv4s() ([]net.IP, error) {
	var ips []net.IP

	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
				if v4 := ipnet.IP.To4(); v4 != nil {
					ips = append(ips, v4)
				}
			}
		}
	}
	return ips, nil
}
