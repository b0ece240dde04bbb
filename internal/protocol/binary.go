package protocol

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/google/uuid"
)

// Binary encoding: a compact, self-describing-by-position layout. 1-byte
// outer tag, 1-byte inner tag for Request/Scene (and for PerformAction's
// nested Action), then fields in declaration order. Variable-length
// strings are varint length-prefixed. No schema registry is needed to
// decode a value produced by EncodeBinary.
const (
	locNone   = 0
	locLeft   = 1
	locCenter = 2
	locRight  = 3
)

// EncodeBinary renders m using the structural binary wire format used by
// embedded clients.
func EncodeBinary(m ExchangeMessage) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(byte(m.Kind))

	switch m.Kind {
	case MsgAck:
		buf.WriteByte(byte(m.Ack))
	case MsgNack:
		buf.WriteByte(byte(m.Nack))
	case MsgRequest, MsgScene:
		if err := encodeEvent(&buf, m.Event); err != nil {
			return nil, err
		}
	case MsgError:
		if len(m.Error) > MaxErrorLen {
			return nil, fmt.Errorf("error description exceeds %d characters: %d", MaxErrorLen, len(m.Error))
		}
		writeString(&buf, m.Error)
	case MsgNextScene, MsgRetriggerScene, MsgHeartbeat, MsgHeartbeatAck:
		// no payload
	default:
		return nil, fmt.Errorf("exchange message: invalid kind %d", m.Kind)
	}

	return buf.Bytes(), nil
}

// DecodeBinary parses the structural binary wire format. Unknown tags or
// strings exceeding their cap are decode errors, never silently truncated
// or defaulted.
func DecodeBinary(data []byte) (ExchangeMessage, error) {
	r := bytes.NewReader(data)
	outer, err := r.ReadByte()
	if err != nil {
		return ExchangeMessage{}, fmt.Errorf("exchange message: truncated: %w", err)
	}

	switch MessageKind(outer) {
	case MsgAck:
		b, err := r.ReadByte()
		if err != nil {
			return ExchangeMessage{}, fmt.Errorf("ack: truncated: %w", err)
		}
		if b > byte(AckUpdatedLocation) {
			return ExchangeMessage{}, fmt.Errorf("ack: unknown kind %d", b)
		}
		return Ack(AckKind(b)), nil
	case MsgNack:
		b, err := r.ReadByte()
		if err != nil {
			return ExchangeMessage{}, fmt.Errorf("nack: truncated: %w", err)
		}
		if b > byte(NackFailed) {
			return ExchangeMessage{}, fmt.Errorf("nack: unknown kind %d", b)
		}
		return Nack(NackKind(b)), nil
	case MsgRequest, MsgScene:
		ev, err := decodeEvent(r)
		if err != nil {
			return ExchangeMessage{}, err
		}
		if MessageKind(outer) == MsgRequest {
			return Request(ev), nil
		}
		return Scene(ev), nil
	case MsgError:
		s, err := readString(r, MaxErrorLen)
		if err != nil {
			return ExchangeMessage{}, fmt.Errorf("error: %w", err)
		}
		return NewError(s)
	case MsgNextScene:
		return NextScene, nil
	case MsgRetriggerScene:
		return RetriggerScene, nil
	case MsgHeartbeat:
		return Heartbeat, nil
	case MsgHeartbeatAck:
		return HeartbeatAck, nil
	default:
		return ExchangeMessage{}, fmt.Errorf("exchange message: unknown tag %d", outer)
	}
}

func encodeEvent(buf *bytes.Buffer, e Event) error {
	buf.WriteByte(byte(e.Kind))
	switch e.Kind {
	case EventRegister, EventUpdateLocation:
		encodeIdentity(buf, e.Identity)
	case EventSubscribeToService, EventUnsubscribeFromService:
		buf.WriteByte(byte(e.Service))
		encodeIdentity(buf, e.Identity)
	case EventPerformAction:
		return encodeAction(buf, e.Action)
	default:
		return fmt.Errorf("event: invalid kind %d", e.Kind)
	}
	return nil
}

func decodeEvent(r *bytes.Reader) (Event, error) {
	tag, err := r.ReadByte()
	if err != nil {
		return Event{}, fmt.Errorf("event: truncated: %w", err)
	}
	switch EventKind(tag) {
	case EventRegister:
		id, err := decodeIdentity(r)
		if err != nil {
			return Event{}, fmt.Errorf("register: %w", err)
		}
		return EventRegisterEvent(id), nil
	case EventUpdateLocation:
		id, err := decodeIdentity(r)
		if err != nil {
			return Event{}, fmt.Errorf("update location: %w", err)
		}
		return EventUpdateLocationEvent(id), nil
	case EventSubscribeToService, EventUnsubscribeFromService:
		svcByte, err := r.ReadByte()
		if err != nil {
			return Event{}, fmt.Errorf("subscribe: truncated: %w", err)
		}
		if svcByte > byte(ServiceMidi) {
			return Event{}, fmt.Errorf("subscribe: unknown service %d", svcByte)
		}
		id, err := decodeIdentity(r)
		if err != nil {
			return Event{}, fmt.Errorf("subscribe: %w", err)
		}
		if EventKind(tag) == EventSubscribeToService {
			return EventSubscribe(Service(svcByte), id), nil
		}
		return EventUnsubscribe(Service(svcByte), id), nil
	case EventPerformAction:
		act, err := decodeAction(r)
		if err != nil {
			return Event{}, err
		}
		return EventPerformActionEvent(act), nil
	default:
		return Event{}, fmt.Errorf("event: unknown tag %d", tag)
	}
}

func encodeAction(buf *bytes.Buffer, a Action) error {
	buf.WriteByte(byte(a.Kind))
	switch a.Kind {
	case ActionShowSubtitles:
		if len(a.Subtitle) > MaxSubtitleLen {
			return fmt.Errorf("subtitle exceeds %d characters: %d", MaxSubtitleLen, len(a.Subtitle))
		}
		writeString(buf, a.Subtitle)
	case ActionChangeColour:
		buf.WriteByte(a.Colour.R)
		buf.WriteByte(a.Colour.G)
		buf.WriteByte(a.Colour.B)
	case ActionPlayAudio:
		if len(a.Filename) > MaxFilenameLen {
			return fmt.Errorf("audio filename exceeds %d characters: %d", MaxFilenameLen, len(a.Filename))
		}
		if len(a.Extension) > MaxExtensionLen {
			return fmt.Errorf("audio extension exceeds %d characters: %d", MaxExtensionLen, len(a.Extension))
		}
		writeString(buf, a.Filename)
		writeString(buf, a.Extension)
	case ActionMidiProgram:
		bank, program := a.BankProgram()
		buf.WriteByte(bank)
		buf.WriteByte(program)
	default:
		return fmt.Errorf("action: invalid kind %d", a.Kind)
	}
	return nil
}

func decodeAction(r *bytes.Reader) (Action, error) {
	tag, err := r.ReadByte()
	if err != nil {
		return Action{}, fmt.Errorf("action: truncated: %w", err)
	}
	switch ActionKind(tag) {
	case ActionShowSubtitles:
		s, err := readString(r, MaxSubtitleLen)
		if err != nil {
			return Action{}, fmt.Errorf("show subtitles: %w", err)
		}
		return NewShowSubtitles(s)
	case ActionChangeColour:
		var rgb [3]byte
		if _, err := io.ReadFull(r, rgb[:]); err != nil {
			return Action{}, fmt.Errorf("change colour: truncated: %w", err)
		}
		return NewChangeColour(RGB{R: rgb[0], G: rgb[1], B: rgb[2]}), nil
	case ActionPlayAudio:
		filename, err := readString(r, MaxFilenameLen)
		if err != nil {
			return Action{}, fmt.Errorf("play audio: %w", err)
		}
		extension, err := readString(r, MaxExtensionLen)
		if err != nil {
			return Action{}, fmt.Errorf("play audio: %w", err)
		}
		return NewPlayAudio(filename, extension)
	case ActionMidiProgram:
		bank, err := r.ReadByte()
		if err != nil {
			return Action{}, fmt.Errorf("midi program: truncated: %w", err)
		}
		program, err := r.ReadByte()
		if err != nil {
			return Action{}, fmt.Errorf("midi program: truncated: %w", err)
		}
		if bank > 127 || program > 127 {
			return Action{}, fmt.Errorf("midi program: bank/program out of 7-bit range: %d/%d", bank, program)
		}
		return MidiProgramFromBankProgram(bank, program)
	default:
		return Action{}, fmt.Errorf("action: unknown tag %d", tag)
	}
}

func encodeIdentity(buf *bytes.Buffer, id ClientIdentity) {
	b := id.UUID
	buf.Write(b[:])
	if id.Location == nil {
		buf.WriteByte(locNone)
		return
	}
	switch *id.Location {
	case LocationLeft:
		buf.WriteByte(locLeft)
	case LocationCenter:
		buf.WriteByte(locCenter)
	case LocationRight:
		buf.WriteByte(locRight)
	}
}

func decodeIdentity(r *bytes.Reader) (ClientIdentity, error) {
	var raw [16]byte
	if _, err := io.ReadFull(r, raw[:]); err != nil {
		return ClientIdentity{}, fmt.Errorf("identity: truncated uuid: %w", err)
	}
	locByte, err := r.ReadByte()
	if err != nil {
		return ClientIdentity{}, fmt.Errorf("identity: truncated location: %w", err)
	}
	id := ClientIdentity{UUID: uuid.UUID(raw)}
	switch locByte {
	case locNone:
		id.Location = nil
	case locLeft:
		l := LocationLeft
		id.Location = &l
	case locCenter:
		l := LocationCenter
		id.Location = &l
	case locRight:
		l := LocationRight
		id.Location = &l
	default:
		return ClientIdentity{}, fmt.Errorf("identity: unknown location byte %d", locByte)
	}
	return id, nil
}

func writeString(buf *bytes.Buffer, s string) {
	var lenBuf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(lenBuf[:], uint64(len(s)))
	buf.Write(lenBuf[:n])
	buf.WriteString(s)
}

func readString(r *bytes.Reader, maxLen int) (string, error) {
	length, err := binary.ReadUvarint(r)
	if err != nil {
		return "", fmt.Errorf("truncated length: %w", err)
	}
	if length > uint64(maxLen) {
		return "", fmt.Errorf("string exceeds %d bytes: %d", maxLen, length)
	}
	out := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r, out); err != nil {
			return "", fmt.Errorf("truncated string body: %w", err)
		}
	}
	return string(out), nil
}
