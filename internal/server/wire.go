package server

import (
	"encoding/json"
	"fmt"

	"github.com/gorilla/websocket"

	"github.com/mgonzalezperna/lamarrs-go/internal/protocol"
)

// wireFormat is latched from the first well-formed frame a client handler
// receives and governs every message that handler sends or decodes for the
// rest of the session.
type wireFormat uint8

const (
	wireUnset wireFormat = iota
	wireText
	wireBinary
)

func wireFormatFor(messageType int) (wireFormat, error) {
	switch messageType {
	case websocket.TextMessage:
		return wireText, nil
	case websocket.BinaryMessage:
		return wireBinary, nil
	default:
		return wireUnset, fmt.Errorf("wire: unsupported websocket message type %d", messageType)
	}
}

func decodeWith(format wireFormat, data []byte) (protocol.ExchangeMessage, error) {
	switch format {
	case wireText:
		var m protocol.ExchangeMessage
		if err := json.Unmarshal(data, &m); err != nil {
			return protocol.ExchangeMessage{}, err
		}
		return m, nil
	case wireBinary:
		return protocol.DecodeBinary(data)
	default:
		return protocol.ExchangeMessage{}, fmt.Errorf("wire: format not latched")
	}
}

func encodeWith(format wireFormat, m protocol.ExchangeMessage) (messageType int, data []byte, err error) {
	switch format {
	case wireText:
		data, err = json.Marshal(m)
		return websocket.TextMessage, data, err
	case wireBinary:
		data, err = protocol.EncodeBinary(m)
		return websocket.BinaryMessage, data, err
	default:
		return 0, nil, fmt.Errorf("wire: format not latched")
	}
}
