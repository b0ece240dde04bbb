// Command lamarrs-orchestrator is a thin MQTT publisher standing in for
// the external lighting/show-control desk referenced by the orchestration
// server design: it packages one PerformAction (plus an optional target
// location) into the orchestrator topic's wire shape and publishes it,
// exercising the MQTT ingress path end-to-end without a third-party MQTT
// tool.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/mgonzalezperna/lamarrs-go/internal/mqttingress"
	"github.com/mgonzalezperna/lamarrs-go/internal/protocol"
)

var (
	broker   = flag.String("broker", "tcp://localhost:1883", "MQTT broker URL")
	topic    = flag.String("topic", mqttingress.DefaultTopic, "MQTT orchestration topic")
	action   = flag.String("action", "", "Action kind: subtitle, colour, audio, midi")
	location = flag.String("location", "", "Target location: Left, Center, Right (empty for unfiltered broadcast)")

	subtitle  = flag.String("subtitle", "", "Subtitle text (action=subtitle)")
	colourHex = flag.String("colour", "", "Colour as rrggbb hex (action=colour)")
	filename  = flag.String("filename", "", "Audio filename without extension (action=audio)")
	extension = flag.String("extension", "mp3", "Audio file extension (action=audio)")
	preset    = flag.Int("preset", 1, "MIDI preset index, 1..16384 (action=midi)")
)

func main() {
	flag.Parse()

	act, err := buildAction()
	if err != nil {
		log.Fatalf("building action: %v", err)
	}

	var loc *protocol.Location
	if *location != "" {
		parsed, ok := parseLocation(*location)
		if !ok {
			log.Fatalf("unknown location %q", *location)
		}
		loc = &parsed
	}

	msg := mqttingress.OrchestrationMessage{Action: act, Location: loc}
	payload, err := json.Marshal(msg)
	if err != nil {
		log.Fatalf("encoding message: %v", err)
	}

	opts := mqtt.NewClientOptions().AddBroker(*broker).SetClientID("lamarrs-orchestrator")
	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		log.Fatalf("connecting to broker: %v", token.Error())
	}
	defer client.Disconnect(250)

	token := client.Publish(*topic, 0, false, payload)
	token.Wait()
	if token.Error() != nil {
		log.Fatalf("publishing: %v", token.Error())
	}

	log.Printf("published %s to %s", act, *topic)
	time.Sleep(250 * time.Millisecond) // give the client loop time to flush
}

func buildAction() (protocol.Action, error) {
	switch *action {
	case "subtitle":
		return protocol.NewShowSubtitles(*subtitle)
	case "colour":
		rgb, err := parseColour(*colourHex)
		if err != nil {
			return protocol.Action{}, err
		}
		return protocol.NewChangeColour(rgb), nil
	case "audio":
		return protocol.NewPlayAudio(*filename, *extension)
	case "midi":
		return protocol.NewMidiProgram(*preset)
	default:
		return protocol.Action{}, fmt.Errorf("unknown -action %q (want subtitle, colour, audio, or midi)", *action)
	}
}

func parseColour(hex string) (protocol.RGB, error) {
	var r, g, b uint8
	if _, err := fmt.Sscanf(hex, "%02x%02x%02x", &r, &g, &b); err != nil {
		return protocol.RGB{}, fmt.Errorf("parsing -colour %q (want rrggbb hex): %w", hex, err)
	}
	return protocol.RGB{R: r, G: g, B: b}, nil
}

func parseLocation(s string) (protocol.Location, bool) {
	switch s {
	case "Left":
		return protocol.LocationLeft, true
	case "Center":
		return protocol.LocationCenter, true
	case "Right":
		return protocol.LocationRight, true
	default:
		return 0, false
	}
}
