// Package server implements the Lamarrs orchestration server: the HTTP/
// WebSocket listener, one client handler per connection, the four service
// actors, and the glue wiring them to the MQTT ingress and sequencer.
package server

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mgonzalezperna/lamarrs-go/internal/actor"
	"github.com/mgonzalezperna/lamarrs-go/internal/console"
	"github.com/mgonzalezperna/lamarrs-go/internal/discovery"
	"github.com/mgonzalezperna/lamarrs-go/internal/protocol"
)

// ConsoleSink receives status snapshots pushed by the server whenever
// subscriber, ingress, or sequencer state changes; *console.Console
// satisfies this via its Update method.
type ConsoleSink interface {
	Update(console.Status)
}

// SequencerStatus exposes the read-only sequencer state the console
// needs; *sequencer.Sequencer satisfies this.
type SequencerStatus interface {
	CurrentStepName() string
}

// IngressStatus exposes the read-only MQTT ingress connection state the
// console needs; *mqttingress.Ingress satisfies this.
type IngressStatus interface {
	Connected() bool
}

// DefaultHeartbeatTimeout is the watchdog interval used when Config leaves
// HeartbeatTimeout at zero: moderate, minutes-scale, matching the
// component design's "default: moderate, minutes-scale" guidance.
const DefaultHeartbeatTimeout = 2 * time.Minute

// Config holds server configuration, populated from the lamarrs-server
// command's flags.
type Config struct {
	Addr             string
	WebSocketPath    string
	HeartbeatTimeout time.Duration
	EnableMDNS       bool
	MDNSServiceName  string
}

// Server wires together the HTTP/WebSocket frontend, the four service
// actors, and whatever else is plugged into it (MQTT ingress, sequencer,
// mDNS advertisement). Apart from the set of open connections it tracks
// for shutdown, client state lives entirely in each clientHandler and each
// actor.Service.
type Server struct {
	config Config

	upgrader websocket.Upgrader
	services map[protocol.Service]*actor.Service

	// sequencer is the send side of the sequencer's mailbox; nil if no
	// sequencer has been attached (e.g. a minimal deployment driven only
	// by MQTT).
	sequencer chan<- protocol.ExchangeMessage

	// console, seqStatus, and ingressStatus are all optional collaborators
	// wired by Attach*; any or all may be nil depending on deployment.
	console       ConsoleSink
	seqStatus     SequencerStatus
	ingressStatus IngressStatus

	heartbeatTimeout time.Duration

	mdnsManager *discovery.Manager

	httpServer *http.Server
	mux        *http.ServeMux

	// connsMu guards conns, the set of currently hijacked WebSocket
	// connections: httpServer.Shutdown only drains ordinary HTTP conns, so
	// shutdown forcibly closes these to unblock any clientHandler blocked
	// in a read with no deadline.
	connsMu sync.Mutex
	conns   map[*websocket.Conn]struct{}

	actorsDone chan struct{}
	wg         sync.WaitGroup
}

// New creates a Server and starts its four service actors. Call Attach* to
// wire optional collaborators, then Start to begin accepting connections.
func New(config Config) *Server {
	if config.WebSocketPath == "" {
		config.WebSocketPath = "/"
	}
	heartbeat := config.HeartbeatTimeout
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeatTimeout
	}

	s := &Server{
		config:           config,
		mux:              http.NewServeMux(),
		heartbeatTimeout: heartbeat,
		actorsDone:       make(chan struct{}),
		services:         make(map[protocol.Service]*actor.Service, 4),
		conns:            make(map[*websocket.Conn]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	for _, kind := range []protocol.Service{
		protocol.ServiceSubtitle,
		protocol.ServiceColour,
		protocol.ServiceAudioPlayer,
		protocol.ServiceMidi,
	} {
		svc := actor.New(kind)
		s.services[kind] = svc
		s.wg.Add(1)
		go func(svc *actor.Service) {
			defer s.wg.Done()
			svc.Run(s.actorsDone)
		}(svc)
	}
	return s
}

// Service returns the running actor for the given kind, for callers (MQTT
// ingress, sequencer) that dispatch PerformAction directly.
func (s *Server) Service(kind protocol.Service) *actor.Service {
	return s.services[kind]
}

// AttachSequencer wires the sequencer's inbound mailbox so that NextScene
// and RetriggerScene messages from registered clients are forwarded to it,
// and status so the console can report the current step.
func (s *Server) AttachSequencer(mailbox chan<- protocol.ExchangeMessage, status SequencerStatus) {
	s.sequencer = mailbox
	s.seqStatus = status
}

// AttachConsole wires an operator console: RefreshConsole pushes a fresh
// status snapshot to it whenever subscriber, ingress, or sequencer state
// changes.
func (s *Server) AttachConsole(c ConsoleSink) {
	s.console = c
}

// AttachMQTTIngress wires the MQTT ingress's connection state into the
// console's status snapshots.
func (s *Server) AttachMQTTIngress(status IngressStatus) {
	s.ingressStatus = status
}

// RefreshConsole rebuilds a status snapshot from current subscriber counts,
// ingress connection state, and sequencer step, and pushes it to the
// attached console. A no-op if no console is attached.
func (s *Server) RefreshConsole() {
	if s.console == nil {
		return
	}

	counts := make(map[string]int, len(s.services))
	for kind, svc := range s.services {
		counts[kind.String()] = svc.SubscriberCount()
	}

	status := console.Status{
		ServerAddr:      s.config.Addr,
		SubscriberCount: counts,
	}
	if s.ingressStatus != nil {
		status.MQTTConnected = s.ingressStatus.Connected()
	}
	if s.seqStatus != nil {
		status.CurrentStep = s.seqStatus.CurrentStepName()
	}
	s.console.Update(status)
}

// Start begins accepting WebSocket connections and blocks until ctx is
// canceled.
func (s *Server) Start(ctx context.Context) error {
	if s.config.EnableMDNS {
		s.mdnsManager = discovery.NewManager(discovery.Config{
			ServiceName: s.config.MDNSServiceName,
			Port:        addrPort(s.config.Addr),
		})
		if err := s.mdnsManager.Advertise(); err != nil {
			log.Printf("server: mDNS advertise failed: %v", err)
		}
	}

	s.mux.HandleFunc(s.config.WebSocketPath, s.handleWebSocket)
	s.httpServer = &http.Server{Addr: s.config.Addr, Handler: s.mux}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("server: listening on %s%s", s.config.Addr, s.config.WebSocketPath)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	return s.shutdown()
}

func (s *Server) shutdown() error {
	log.Printf("server: shutting down")
	if s.mdnsManager != nil {
		s.mdnsManager.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := s.httpServer.Shutdown(shutdownCtx)

	// httpServer.Shutdown only drains ordinary HTTP connections; a
	// hijacked WebSocket connection's clientHandler is blocked in a read
	// with no deadline of its own, so force each one closed to unblock it.
	s.connsMu.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.connsMu.Unlock()

	close(s.actorsDone)
	s.wg.Wait()
	return err
}

// handleWebSocket is the client factory: it accepts one connection per
// call (the net/http muxer already loops), upgrades it, and spawns an
// independent clientHandler. A panic inside one handler is recovered so it
// cannot affect any other connection.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("server: websocket upgrade failed: %v", err)
		return
	}

	s.connsMu.Lock()
	s.conns[conn] = struct{}{}
	s.connsMu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer conn.Close()
		defer func() {
			s.connsMu.Lock()
			delete(s.conns, conn)
			s.connsMu.Unlock()
		}()
		defer func() {
			if r := recover(); r != nil {
				log.Printf("server: client handler panic: %v", r)
			}
		}()
		newClientHandler(s, conn).run()
	}()
}

func addrPort(addr string) int {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return 0
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return 0
	}
	return port
}
