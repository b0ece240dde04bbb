// Package mqttingress subscribes to the Lamarrs orchestrator topic and
// dispatches incoming action requests to the matching service actor, so a
// lighting/show-control desk (or the orchestrator CLI) can drive the rig
// over MQTT instead of only through WebSocket clients.
package mqttingress

import (
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/mgonzalezperna/lamarrs-go/internal/actor"
	"github.com/mgonzalezperna/lamarrs-go/internal/protocol"
)

// DefaultTopic is the orchestration topic name used unless overridden.
const DefaultTopic = "lamarrs/orchestrator"

// reconnectInterval is the fixed backoff the component design calls for:
// "Reconnect on broker disconnect with linear retry (default 3 s)."
const reconnectInterval = 3 * time.Second

// ActorLookup resolves the service actor responsible for a given service
// kind; *server.Server satisfies this via its Service method.
type ActorLookup func(protocol.Service) *actor.Service

// Ingress is an MQTT subscriber that decodes OrchestrationMessage payloads
// and dispatches them to the server's service actors.
type Ingress struct {
	client mqtt.Client
	topic  string
	lookup ActorLookup
	stop   chan struct{}

	// onStateChange, if set, is called whenever the broker connection is
	// gained or lost, so a caller (the operator console) can refresh
	// without polling Connected on an interval.
	onStateChange func()
}

// New builds an Ingress that connects to brokerURL and subscribes to
// topic (DefaultTopic if empty).
func New(brokerURL, topic string, lookup ActorLookup) *Ingress {
	if topic == "" {
		topic = DefaultTopic
	}
	ing := &Ingress{topic: topic, lookup: lookup, stop: make(chan struct{})}

	opts := mqtt.NewClientOptions().
		AddBroker(brokerURL).
		SetClientID("lamarrs-server").
		SetAutoReconnect(false). // reconnection is driven by our own linear backoff below
		SetConnectionLostHandler(ing.onConnectionLost).
		SetOnConnectHandler(ing.onConnect)

	ing.client = mqtt.NewClient(opts)
	return ing
}

// SetStateChangeHook registers a callback fired whenever the broker
// connection is gained or lost.
func (ing *Ingress) SetStateChangeHook(fn func()) {
	ing.onStateChange = fn
}

// Connected reports whether the broker connection is currently open.
func (ing *Ingress) Connected() bool {
	return ing.client.IsConnectionOpen()
}

// Start connects to the broker and subscribes in the background and
// returns immediately. It retries on initial connection failure with the
// same linear backoff used for later disconnects.
func (ing *Ingress) Start() {
	go ing.connectLoop()
}

func (ing *Ingress) connectLoop() {
	for {
		select {
		case <-ing.stop:
			return
		default:
		}
		token := ing.client.Connect()
		token.Wait()
		if err := token.Error(); err != nil {
			log.Printf("mqttingress: connect failed: %v, retrying in %s", err, reconnectInterval)
			time.Sleep(reconnectInterval)
			continue
		}
		return
	}
}

func (ing *Ingress) onConnect(client mqtt.Client) {
	log.Printf("mqttingress: connected, subscribing to %s", ing.topic)
	token := client.Subscribe(ing.topic, 0, ing.onMessage)
	token.Wait()
	if err := token.Error(); err != nil {
		log.Printf("mqttingress: subscribe failed: %v", err)
	}
	if ing.onStateChange != nil {
		ing.onStateChange()
	}
}

func (ing *Ingress) onConnectionLost(_ mqtt.Client, err error) {
	log.Printf("mqttingress: connection lost: %v", err)
	if ing.onStateChange != nil {
		ing.onStateChange()
	}
	go ing.connectLoop()
}

func (ing *Ingress) onMessage(_ mqtt.Client, msg mqtt.Message) {
	var orch OrchestrationMessage
	if err := orch.UnmarshalJSON(msg.Payload()); err != nil {
		log.Printf("mqttingress: malformed payload: %v", err)
		return
	}

	svcKind, ok := serviceFor(orch.Action)
	if !ok {
		log.Printf("mqttingress: no service for action %s", orch.Action)
		return
	}

	svc := ing.lookup(svcKind)
	if svc == nil {
		log.Printf("mqttingress: no actor registered for service %s", svcKind)
		return
	}

	if err := svc.PerformAction(orch.Action, orch.Location); err != nil {
		log.Printf("mqttingress: dispatch: %v", err)
	}
}

func serviceFor(a protocol.Action) (protocol.Service, bool) {
	switch a.Kind {
	case protocol.ActionShowSubtitles:
		return protocol.ServiceSubtitle, true
	case protocol.ActionChangeColour:
		return protocol.ServiceColour, true
	case protocol.ActionPlayAudio:
		return protocol.ServiceAudioPlayer, true
	case protocol.ActionMidiProgram:
		return protocol.ServiceMidi, true
	default:
		return 0, false
	}
}

// Stop disconnects from the broker and halts reconnection attempts.
func (ing *Ingress) Stop() {
	close(ing.stop)
	ing.client.Disconnect(250)
}
