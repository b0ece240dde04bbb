// Command lamarrs-embedded-sim simulates an embedded client: it connects
// over the hand-rolled RFC 6455 path, subscribes to one service, logs
// every scene broadcast it receives, and advances the show on a fixed
// interval in place of a real GPIO trigger.
package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mgonzalezperna/lamarrs-go/internal/embeddedclient"
	"github.com/mgonzalezperna/lamarrs-go/internal/protocol"
)

var (
	addr        = flag.String("addr", "localhost:8080", "Server address (host:port)")
	serviceName = flag.String("service", "Colour", "Service to subscribe to: Subtitle, Colour, AudioPlayer, Midi")
	interval    = flag.Duration("trigger-interval", 0, "If set, send NextScene on this interval")
)

type logDisplay struct{}

func (logDisplay) Apply(action protocol.Action) {
	log.Printf("embedded-sim: display <- %s", action)
}

func main() {
	flag.Parse()

	svc, ok := parseService(*serviceName)
	if !ok {
		log.Fatalf("unknown -service %q", *serviceName)
	}

	triggers := make(chan embeddedclient.Trigger)
	stop := make(chan struct{})

	sess := embeddedclient.NewSession(*addr, svc, logDisplay{}, triggers)

	if *interval > 0 {
		go func() {
			ticker := time.NewTicker(*interval)
			defer ticker.Stop()
			for range ticker.C {
				select {
				case triggers <- embeddedclient.TriggerNext:
				case <-stop:
					return
				}
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Printf("embedded-sim: shutting down")
		close(stop)
	}()

	log.Printf("embedded-sim: connecting to %s, subscribing to %s", *addr, svc)
	sess.Run(stop)
}

func parseService(s string) (protocol.Service, bool) {
	switch s {
	case "Subtitle":
		return protocol.ServiceSubtitle, true
	case "Colour":
		return protocol.ServiceColour, true
	case "AudioPlayer":
		return protocol.ServiceAudioPlayer, true
	case "Midi":
		return protocol.ServiceMidi, true
	default:
		return 0, false
	}
}
