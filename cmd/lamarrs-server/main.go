// Command lamarrs-server runs the Lamarrs orchestration server: the
// WebSocket listener, the four service actors, and optionally an MQTT
// ingress, a YAML show sequencer, mDNS advertisement, and an operator
// console.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/mgonzalezperna/lamarrs-go/internal/actor"
	"github.com/mgonzalezperna/lamarrs-go/internal/console"
	"github.com/mgonzalezperna/lamarrs-go/internal/mqttingress"
	"github.com/mgonzalezperna/lamarrs-go/internal/protocol"
	"github.com/mgonzalezperna/lamarrs-go/internal/sequencer"
	"github.com/mgonzalezperna/lamarrs-go/internal/server"
)

var (
	addr             = flag.String("addr", ":8080", "WebSocket listen address")
	wsPath           = flag.String("path", "/", "WebSocket path")
	heartbeatTimeout = flag.Duration("heartbeat-timeout", server.DefaultHeartbeatTimeout, "Client watchdog timeout")
	noMDNS           = flag.Bool("no-mdns", false, "Disable mDNS advertisement")
	mdnsName         = flag.String("mdns-name", "", "mDNS service instance name (default: hostname)")
	mqttBroker       = flag.String("mqtt-broker", "", "MQTT broker URL (e.g. tcp://localhost:1883); empty disables MQTT ingress")
	mqttTopic        = flag.String("mqtt-topic", mqttingress.DefaultTopic, "MQTT orchestration topic")
	showFile         = flag.String("show", "", "Path to a YAML show sequence; empty disables the sequencer")
	logFile          = flag.String("log-file", "lamarrs-server.log", "Log file path")
	tui              = flag.Bool("tui", false, "Render the operator console instead of logging to stdout")
)

func main() {
	flag.Parse()

	f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer f.Close()

	if *tui {
		log.SetOutput(f)
	} else {
		log.SetOutput(io.MultiWriter(os.Stdout, f))
	}

	mdnsServiceName := *mdnsName
	if mdnsServiceName == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		mdnsServiceName = fmt.Sprintf("%s-lamarrs-server", hostname)
	}

	srv := server.New(server.Config{
		Addr:             *addr,
		WebSocketPath:    *wsPath,
		HeartbeatTimeout: *heartbeatTimeout,
		EnableMDNS:       !*noMDNS,
		MDNSServiceName:  mdnsServiceName,
	})

	if *tui {
		dashboard := console.New()
		srv.AttachConsole(dashboard)
		go func() {
			if err := dashboard.Run(*addr); err != nil {
				log.Printf("console: %v", err)
			}
		}()
		defer dashboard.Stop()
	}

	if *showFile != "" {
		loaded, err := sequencer.LoadSequence(*showFile)
		if err != nil {
			log.Fatalf("loading show file: %v", err)
		}
		services := allServices(srv)
		seq := sequencer.New(loaded, services)
		srv.AttachSequencer(seq.Mailbox(), seq)
		seq.SetStepChangeHook(srv.RefreshConsole)

		seqDone := make(chan struct{})
		defer close(seqDone)
		go seq.Run(seqDone)
	}

	if *mqttBroker != "" {
		ingress := mqttingress.New(*mqttBroker, *mqttTopic, srv.Service)
		srv.AttachMQTTIngress(ingress)
		ingress.SetStateChangeHook(srv.RefreshConsole)
		ingress.Start()
		defer ingress.Stop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Printf("received %v, shutting down gracefully", sig)
		cancel()
	}()

	log.Printf("starting lamarrs-server on %s%s", *addr, *wsPath)
	if err := srv.Start(ctx); err != nil {
		log.Fatalf("server error: %v", err)
	}
	log.Printf("server stopped")
}

func allServices(srv *server.Server) map[protocol.Service]*actor.Service {
	services := make(map[protocol.Service]*actor.Service, 4)
	for _, kind := range []protocol.Service{
		protocol.ServiceSubtitle,
		protocol.ServiceColour,
		protocol.ServiceAudioPlayer,
		protocol.ServiceMidi,
	} {
		services[kind] = srv.Service(kind)
	}
	return services
}
