package embeddedclient

import (
	"bufio"
	"net"
	"testing"
	"time"

	"github.com/mgonzalezperna/lamarrs-go/internal/protocol"
)

type recordingDisplay struct {
	applied chan protocol.Action
}

func (d *recordingDisplay) Apply(action protocol.Action) {
	d.applied <- action
}

// runSessionServer performs the handshake, reads Register and
// SubscribeToService requests (acking both), then hands control to body
// for the rest of the exchange.
func runSessionServer(t *testing.T, body func(conn net.Conn, ws *serverSide)) string {
	t.Helper()
	return fakeServer(t, func(conn net.Conn) {
		defer conn.Close()
		serverHandshake(t, conn)
		ws := &serverSide{conn: conn}

		reg, err := ws.recvBinary()
		if err != nil {
			t.Errorf("recv register: %v", err)
			return
		}
		if reg.Kind != protocol.MsgRequest || reg.Event.Kind != protocol.EventRegister {
			t.Errorf("expected Register request, got %v", reg)
			return
		}
		ws.sendBinary(t, protocol.Ack(protocol.AckSuccess))

		sub, err := ws.recvBinary()
		if err != nil {
			t.Errorf("recv subscribe: %v", err)
			return
		}
		if sub.Kind != protocol.MsgRequest || sub.Event.Kind != protocol.EventSubscribeToService {
			t.Errorf("expected SubscribeToService request, got %v", sub)
			return
		}
		ws.sendBinary(t, protocol.Ack(protocol.AckSuccess))

		body(conn, ws)
	})
}

// serverSide is a tiny raw-frame helper for the server side of these
// tests, reusing a single buffered reader across calls so no bytes
// buffered ahead of a frame boundary are ever dropped between reads.
type serverSide struct {
	conn net.Conn
	ws   *WebSocket
}

func (s *serverSide) recvBinary() (protocol.ExchangeMessage, error) {
	if s.ws == nil {
		s.ws = &WebSocket{conn: s.conn, reader: bufio.NewReader(s.conn)}
	}
	buf := make([]byte, recvBufferSize)
	n, err := s.ws.RecvBinary(buf)
	if err != nil {
		return protocol.ExchangeMessage{}, err
	}
	return protocol.DecodeBinary(buf[:n])
}

func (s *serverSide) sendBinary(t *testing.T, msg protocol.ExchangeMessage) {
	t.Helper()
	data, err := protocol.EncodeBinary(msg)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	writeServerFrame(s.conn, 0x2, true, data)
}

func TestSessionRegistersSubscribesAndAppliesScene(t *testing.T) {
	display := &recordingDisplay{applied: make(chan protocol.Action, 1)}
	triggers := make(chan Trigger)
	stop := make(chan struct{})

	action := protocol.NewChangeColour(protocol.RGB{R: 42})
	served := make(chan struct{})

	addr := runSessionServer(t, func(conn net.Conn, ws *serverSide) {
		ws.sendBinary(t, protocol.Scene(protocol.EventPerformActionEvent(action)))
		close(served)
		<-stop
	})

	sess := NewSession(addr, protocol.ServiceColour, display, triggers)
	go sess.Run(stop)
	defer close(stop)

	select {
	case <-served:
	case <-time.After(time.Second):
		t.Fatal("server never completed registration handshake")
	}

	select {
	case got := <-display.applied:
		if got != action {
			t.Errorf("display got %v, want %v", got, action)
		}
	case <-time.After(time.Second):
		t.Fatal("display never received scene action")
	}
}
