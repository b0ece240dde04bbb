// Package desktopclient is the desktop/workstation-class client: it
// subscribes to the Playback and Midi services and hosts local actors
// (internal/localplayer, internal/localmidi) that turn scene broadcasts
// into real sound and MIDI bytes, rather than forwarding to an external
// display driver the way the embedded client does.
package desktopclient

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/mgonzalezperna/lamarrs-go/internal/protocol"
)

// reconnectBackoff matches the embedded client's constant-delay retry
// policy; a desktop client has no reason to back off any differently.
const reconnectBackoff = 3 * time.Second

// ActionHandler receives every PerformAction scene broadcast this client
// is subscribed to, regardless of which local actor should act on it.
type ActionHandler interface {
	Handle(action protocol.Action)
}

// Config configures a desktop client session.
type Config struct {
	ServerAddr string
	Path       string // WebSocket path, defaults to "/"

	Playback ActionHandler // PlayAudio scenes
	Midi     ActionHandler // MidiProgram scenes
}

// Client is a single desktop client's connection lifetime.
type Client struct {
	config   Config
	identity protocol.ClientIdentity

	mu   sync.RWMutex
	conn *websocket.Conn
}

// New builds a Client with a fresh random identity.
func New(config Config) *Client {
	if config.Path == "" {
		config.Path = "/"
	}
	return &Client{
		config:   config,
		identity: protocol.ClientIdentity{UUID: uuid.New()},
	}
}

// Run connects and serves until ctx is cancelled, reconnecting with a
// constant backoff on any connection failure.
func (c *Client) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		if err := c.runOnce(ctx); err != nil {
			log.Printf("desktopclient: session error: %v", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectBackoff):
		}
	}
}

func (c *Client) runOnce(ctx context.Context) error {
	u := url.URL{Scheme: "ws", Host: c.config.ServerAddr, Path: c.config.Path}
	log.Printf("desktopclient: connecting to %s", u.String())

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	if err := c.register(conn); err != nil {
		return err
	}
	if err := c.subscribe(conn, protocol.ServiceAudioPlayer); err != nil {
		return err
	}
	if err := c.subscribe(conn, protocol.ServiceMidi); err != nil {
		return err
	}

	return c.readLoop(ctx, conn)
}

func (c *Client) register(conn *websocket.Conn) error {
	if err := c.sendJSON(conn, protocol.Request(protocol.EventRegisterEvent(c.identity))); err != nil {
		return fmt.Errorf("send register: %w", err)
	}
	if _, err := c.recvJSON(conn); err != nil {
		return fmt.Errorf("read register reply: %w", err)
	}
	return nil
}

func (c *Client) subscribe(conn *websocket.Conn, svc protocol.Service) error {
	if err := c.sendJSON(conn, protocol.Request(protocol.EventSubscribe(svc, c.identity))); err != nil {
		return fmt.Errorf("send subscribe %s: %w", svc, err)
	}
	if _, err := c.recvJSON(conn); err != nil {
		return fmt.Errorf("read subscribe %s reply: %w", svc, err)
	}
	return nil
}

// readLoop handles both text and binary frames: the server may latch
// either wire format for a session, and this client accepts whichever
// the server happens to use for scene broadcasts.
func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		messageType, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}

		var msg protocol.ExchangeMessage
		switch messageType {
		case websocket.TextMessage:
			err = json.Unmarshal(data, &msg)
		case websocket.BinaryMessage:
			msg, err = protocol.DecodeBinary(data)
		default:
			continue
		}
		if err != nil {
			log.Printf("desktopclient: decode frame: %v", err)
			continue
		}

		c.handle(conn, msg)
	}
}

func (c *Client) handle(conn *websocket.Conn, msg protocol.ExchangeMessage) {
	switch msg.Kind {
	case protocol.MsgScene:
		if msg.Event.Kind != protocol.EventPerformAction {
			return
		}
		action := msg.Event.Action
		switch action.Kind {
		case protocol.ActionPlayAudio:
			if c.config.Playback != nil {
				c.config.Playback.Handle(action)
			}
		case protocol.ActionMidiProgram:
			if c.config.Midi != nil {
				c.config.Midi.Handle(action)
			}
		}
	case protocol.MsgHeartbeat:
		if err := c.sendJSON(conn, protocol.HeartbeatAck); err != nil {
			log.Printf("desktopclient: send heartbeat ack: %v", err)
		}
	}
}

func (c *Client) sendJSON(conn *websocket.Conn, msg protocol.ExchangeMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (c *Client) recvJSON(conn *websocket.Conn) (protocol.ExchangeMessage, error) {
	_, data, err := conn.ReadMessage()
	if err != nil {
		return protocol.ExchangeMessage{}, err
	}
	var msg protocol.ExchangeMessage
	err = json.Unmarshal(data, &msg)
	return msg, err
}
