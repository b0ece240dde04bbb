package embeddedclient

import (
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/mgonzalezperna/lamarrs-go/internal/protocol"
)

// reconnectBackoff is the fixed delay between connection attempts. The
// embedded path has no exponential backoff: a constrained device is
// expected to keep retrying forever at a constant, predictable rate.
const reconnectBackoff = 3 * time.Second

// recvBufferSize is large enough for any frame this client accepts
// (scene broadcasts are small, fixed-shape binary messages).
const recvBufferSize = 256

// Trigger is a GPIO-originated request to advance or replay the current
// show step, fed into Session.Run alongside the server connection.
type Trigger uint8

const (
	TriggerNext Trigger = iota
	TriggerRetrigger
)

// Display receives decoded scene actions for the device to render. A
// concrete driver (LEDs, an e-ink panel, etc.) is out of scope here;
// callers provide their own implementation.
type Display interface {
	Apply(action protocol.Action)
}

// Session owns one embedded client's lifetime: connect, register,
// subscribe, then relay scene broadcasts to a Display while forwarding
// GPIO triggers to the server, reconnecting on any failure.
type Session struct {
	Addr     string
	Service  protocol.Service
	Display  Display
	Triggers <-chan Trigger

	identity protocol.ClientIdentity
}

// NewSession builds a session with a fresh random identity.
func NewSession(addr string, service protocol.Service, display Display, triggers <-chan Trigger) *Session {
	return &Session{
		Addr:     addr,
		Service:  service,
		Display:  display,
		Triggers: triggers,
		identity: protocol.ClientIdentity{UUID: uuid.New()},
	}
}

// Run connects and serves until stop is closed, reconnecting with a
// constant backoff on any connection failure.
func (s *Session) Run(stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		default:
		}

		if err := s.runOnce(stop); err != nil {
			log.Printf("embeddedclient: session error: %v", err)
		}

		select {
		case <-stop:
			return
		case <-time.After(reconnectBackoff):
		}
	}
}

func (s *Session) runOnce(stop <-chan struct{}) error {
	ws, err := Dial(s.Addr)
	if err != nil {
		return err
	}
	defer ws.Close()

	if err := s.send(ws, protocol.Request(protocol.EventRegisterEvent(s.identity))); err != nil {
		return err
	}
	if _, err := s.recv(ws); err != nil {
		return err
	}

	if err := s.send(ws, protocol.Request(protocol.EventSubscribe(s.Service, s.identity))); err != nil {
		return err
	}
	if _, err := s.recv(ws); err != nil {
		return err
	}

	frames := make(chan protocol.ExchangeMessage)
	errs := make(chan error, 1)
	go func() {
		for {
			msg, err := s.recv(ws)
			if err != nil {
				errs <- err
				return
			}
			frames <- msg
		}
	}()

	for {
		select {
		case <-stop:
			return nil
		case err := <-errs:
			return err
		case msg := <-frames:
			s.handleInbound(ws, msg)
		case trig := <-s.Triggers:
			var out protocol.ExchangeMessage
			switch trig {
			case TriggerNext:
				out = protocol.NextScene
			case TriggerRetrigger:
				out = protocol.RetriggerScene
			}
			if err := s.send(ws, out); err != nil {
				return err
			}
		}
	}
}

func (s *Session) handleInbound(ws *WebSocket, msg protocol.ExchangeMessage) {
	switch msg.Kind {
	case protocol.MsgScene:
		if s.Display != nil && msg.Event.Kind == protocol.EventPerformAction {
			s.Display.Apply(msg.Event.Action)
		}
	case protocol.MsgHeartbeat:
		s.send(ws, protocol.HeartbeatAck)
	default:
		// Ack/Nack/Error frames are informational on this path; nothing
		// to drive off them once registration has already succeeded.
	}
}

func (s *Session) send(ws *WebSocket, msg protocol.ExchangeMessage) error {
	data, err := protocol.EncodeBinary(msg)
	if err != nil {
		return err
	}
	return ws.SendBinary(data)
}

func (s *Session) recv(ws *WebSocket) (protocol.ExchangeMessage, error) {
	buf := make([]byte, recvBufferSize)
	n, err := ws.RecvBinary(buf)
	if err != nil {
		return protocol.ExchangeMessage{}, err
	}
	return protocol.DecodeBinary(buf[:n])
}
