package server

import (
	"log"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mgonzalezperna/lamarrs-go/internal/protocol"
)

// outboxCapacity mirrors the service actor's mailbox capacity: the same
// fixed-size backpressure applies to a client's inbound channel regardless
// of which side is writing to it.
const outboxCapacity = 32

type inboundFrame struct {
	messageType int
	data        []byte
	err         error
}

// clientHandler manages one accepted connection end to end: WebSocket
// handshake has already happened by the time it's constructed; it owns the
// registration state machine, the watchdog, and the outbox writer.
type clientHandler struct {
	server *Server
	conn   *websocket.Conn

	outbox chan protocol.ExchangeMessage
	// format is latched by the reader-side handleFrame and read by the
	// writer goroutine's writeLoop; atomic.Uint32 avoids a data race
	// between the two without a mutex for what is otherwise a single
	// write-once value.
	format atomic.Uint32

	identity         *protocol.ClientIdentity
	pendingHeartbeat bool
}

func newClientHandler(s *Server, conn *websocket.Conn) *clientHandler {
	return &clientHandler{
		server: s,
		conn:   conn,
		outbox: make(chan protocol.ExchangeMessage, outboxCapacity),
	}
}

// run drives the handler until the socket closes or the watchdog fires
// twice. Frames that fail to decode are logged and skipped without ending
// the session. It never returns an error: all failures are logged and
// affect this connection only.
func (h *clientHandler) run() {
	writerDone := make(chan struct{})
	go h.writeLoop(writerDone)

	defer func() {
		// terminate must run before the outbox is closed: it removes this
		// handler from every service actor's subscriber table, so no
		// in-flight PerformAction can still be delivering into h.outbox
		// (a send on a closed channel panics, and deliver's select default
		// does not guard against that).
		h.terminate()
		close(h.outbox)
		<-writerDone
	}()

	inbound := make(chan inboundFrame)
	stopReading := make(chan struct{})
	defer close(stopReading)

	go func() {
		for {
			mt, data, err := h.conn.ReadMessage()
			select {
			case inbound <- inboundFrame{mt, data, err}:
			case <-stopReading:
				return
			}
			if err != nil {
				return
			}
		}
	}()

	timer := time.NewTimer(h.server.heartbeatTimeout)
	defer timer.Stop()

	for {
		select {
		case frame := <-inbound:
			if frame.err != nil {
				if websocket.IsUnexpectedCloseError(frame.err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					log.Printf("server: client %v read error: %v", h.identity, frame.err)
				}
				return
			}
			isHeartbeatAck := h.handleFrame(frame.messageType, frame.data)
			resetTimer(timer, h.server.heartbeatTimeout)
			if isHeartbeatAck {
				h.pendingHeartbeat = false
			}

		case <-timer.C:
			if !h.pendingHeartbeat {
				h.pendingHeartbeat = true
				h.reply(protocol.Heartbeat)
				timer.Reset(h.server.heartbeatTimeout)
				continue
			}
			log.Printf("server: client %v missed heartbeat, terminating", h.identity)
			return
		}
	}
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}

// handleFrame decodes and dispatches one inbound frame, returning true iff
// the frame was a HeartbeatAck: the only message kind allowed to clear
// pendingHeartbeat.
func (h *clientHandler) handleFrame(messageType int, data []byte) bool {
	format := wireFormat(h.format.Load())
	latching := format == wireUnset
	if latching {
		latched, err := wireFormatFor(messageType)
		if err != nil {
			log.Printf("server: client %v: %v", h.identity, err)
			return false
		}
		format = latched
	}

	msg, err := decodeWith(format, data)
	if err != nil {
		log.Printf("server: client %v: decode error: %v", h.identity, err)
		return false
	}
	if latching {
		h.format.Store(uint32(format))
	}

	if msg.Kind == protocol.MsgHeartbeatAck {
		return true
	}

	if h.identity == nil {
		h.handleUnregistered(msg)
		return false
	}
	h.handleRegistered(msg)
	return false
}

func (h *clientHandler) handleUnregistered(msg protocol.ExchangeMessage) {
	if msg.Kind == protocol.MsgRequest && msg.Event.Kind == protocol.EventRegister {
		h.register(msg.Event.Identity)
		return
	}
	h.reply(protocol.Nack(protocol.NackNotSubscribed))
}

func (h *clientHandler) handleRegistered(msg protocol.ExchangeMessage) {
	switch msg.Kind {
	case protocol.MsgNextScene, protocol.MsgRetriggerScene:
		h.forwardToSequencer(msg)
		return
	case protocol.MsgRequest:
		// fall through to the Event-kind switch below
	default:
		h.reply(protocol.Nack(protocol.NackFailed))
		return
	}

	switch msg.Event.Kind {
	case protocol.EventRegister:
		h.register(msg.Event.Identity)
	case protocol.EventSubscribeToService:
		h.subscribe(msg.Event.Service, msg.Event.Identity)
	case protocol.EventUnsubscribeFromService:
		h.unsubscribe(msg.Event.Service, msg.Event.Identity)
	case protocol.EventUpdateLocation:
		h.updateLocation(msg.Event.Identity)
	default:
		h.reply(protocol.Nack(protocol.NackFailed))
	}
}

func (h *clientHandler) register(identity protocol.ClientIdentity) {
	h.identity = &identity
	for _, svc := range h.server.services {
		if err := svc.UpdateClientData(identity, h.outbox); err != nil {
			// Not yet subscribed to this service: that's expected on first
			// registration, nothing to refresh.
			continue
		}
	}
	h.reply(protocol.Ack(protocol.AckSuccess))
	h.server.RefreshConsole()
}

func (h *clientHandler) subscribe(svc protocol.Service, identity protocol.ClientIdentity) {
	actorRef, ok := h.server.services[svc]
	if !ok {
		h.reply(protocol.Nack(protocol.NackFailed))
		return
	}
	if err := actorRef.AddTargetClient(identity, h.outbox); err != nil {
		h.reply(protocol.Nack(protocol.NackAlreadySubscribed))
		return
	}
	// actor.AddTargetClient already delivers Ack(Success) to h.outbox.
	h.server.RefreshConsole()
}

func (h *clientHandler) unsubscribe(svc protocol.Service, identity protocol.ClientIdentity) {
	actorRef, ok := h.server.services[svc]
	if !ok {
		h.reply(protocol.Nack(protocol.NackFailed))
		return
	}
	if err := actorRef.RemoveTargetClient(identity); err != nil {
		h.reply(protocol.Nack(protocol.NackNotSubscribed))
		return
	}
	h.reply(protocol.Ack(protocol.AckSuccess))
	h.server.RefreshConsole()
}

func (h *clientHandler) updateLocation(identity protocol.ClientIdentity) {
	h.identity = &identity
	for _, svc := range h.server.services {
		if err := svc.UpdateClientData(identity, h.outbox); err != nil {
			continue
		}
	}
	h.reply(protocol.Ack(protocol.AckUpdatedLocation))
}

func (h *clientHandler) forwardToSequencer(msg protocol.ExchangeMessage) {
	if h.server.sequencer == nil {
		return
	}
	select {
	case h.server.sequencer <- msg:
	default:
		log.Printf("server: sequencer mailbox full, dropping %s", msg)
	}
}

func (h *clientHandler) reply(msg protocol.ExchangeMessage) {
	select {
	case h.outbox <- msg:
	default:
		log.Printf("server: client %v outbox full, dropping %s", h.identity, msg)
	}
}

// terminate fans out RemoveTargetClient to every service actor for the
// current identity. Called exactly once, on the way out of run().
func (h *clientHandler) terminate() {
	if h.identity == nil {
		return
	}
	for _, svc := range h.server.services {
		if err := svc.RemoveTargetClient(*h.identity); err != nil {
			log.Printf("server: terminate %v: %v", h.identity, err)
		}
	}
	h.server.RefreshConsole()
}

func (h *clientHandler) writeLoop(done chan<- struct{}) {
	defer close(done)
	for msg := range h.outbox {
		format := wireFormat(h.format.Load())
		if format == wireUnset {
			// No frame has arrived yet to latch a format (e.g. the very
			// first message this session ever produces is itself the
			// encoder's fault, not the client's) -- default to text so a
			// reply is at least observable.
			format = wireText
		}
		messageType, data, err := encodeWith(format, msg)
		if err != nil {
			log.Printf("server: encode %s: %v", msg, err)
			continue
		}
		h.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := h.conn.WriteMessage(messageType, data); err != nil {
			log.Printf("server: write to client %v: %v", h.identity, err)
			return
		}
	}
}
