package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// MarshalJSON renders ClientIdentity as {"uuid":"...","location":"Center"}
// with location explicitly null rather than omitted, matching the wire
// examples in the external interface section.
func (c ClientIdentity) MarshalJSON() ([]byte, error) {
	var loc *string
	if c.Location != nil {
		s := c.Location.String()
		loc = &s
	}
	return json.Marshal(struct {
		UUID     string  `json:"uuid"`
		Location *string `json:"location"`
	}{UUID: c.UUID.String(), Location: loc})
}

func (c *ClientIdentity) UnmarshalJSON(data []byte) error {
	var wire struct {
		UUID     string  `json:"uuid"`
		Location *string `json:"location"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	id, err := uuid.Parse(wire.UUID)
	if err != nil {
		return fmt.Errorf("client identity: %w", err)
	}
	c.UUID = id
	c.Location = nil
	if wire.Location != nil {
		loc, ok := locationFromString(*wire.Location)
		if !ok {
			return fmt.Errorf("client identity: unknown location %q", *wire.Location)
		}
		c.Location = &loc
	}
	return nil
}

func (s Service) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Service) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	svc, ok := serviceFromString(str)
	if !ok {
		return fmt.Errorf("unknown service %q", str)
	}
	*s = svc
	return nil
}

type subscribeWire struct {
	Service  Service        `json:"service"`
	Identity ClientIdentity `json:"identity"`
}

type playAudioWire struct {
	Filename  string `json:"filename"`
	Extension string `json:"extension"`
}

// MarshalJSON renders Action as a single-key externally-tagged object,
// e.g. {"ChangeColour":{"r":255,"g":0,"b":0}} or {"ShowSubtitles":"hi"}.
func (a Action) MarshalJSON() ([]byte, error) {
	var value interface{}
	switch a.Kind {
	case ActionShowSubtitles:
		value = a.Subtitle
	case ActionChangeColour:
		value = a.Colour
	case ActionPlayAudio:
		value = playAudioWire{Filename: a.Filename, Extension: a.Extension}
	case ActionMidiProgram:
		value = a.PresetIndex
	default:
		return nil, fmt.Errorf("action: invalid kind %d", a.Kind)
	}
	return json.Marshal(map[string]interface{}{a.Kind.String(): value})
}

func (a *Action) UnmarshalJSON(data []byte) error {
	var wire map[string]json.RawMessage
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	if len(wire) != 1 {
		return fmt.Errorf("action: expected exactly one tag, got %d", len(wire))
	}
	for tag, raw := range wire {
		switch tag {
		case "ShowSubtitles":
			var text string
			if err := json.Unmarshal(raw, &text); err != nil {
				return err
			}
			act, err := NewShowSubtitles(text)
			if err != nil {
				return err
			}
			*a = act
		case "ChangeColour":
			var rgb RGB
			if err := json.Unmarshal(raw, &rgb); err != nil {
				return err
			}
			*a = NewChangeColour(rgb)
		case "PlayAudio":
			var wirePA playAudioWire
			if err := json.Unmarshal(raw, &wirePA); err != nil {
				return err
			}
			act, err := NewPlayAudio(wirePA.Filename, wirePA.Extension)
			if err != nil {
				return err
			}
			*a = act
		case "MidiProgram":
			var idx int
			if err := json.Unmarshal(raw, &idx); err != nil {
				return err
			}
			act, err := NewMidiProgram(idx)
			if err != nil {
				return err
			}
			*a = act
		default:
			return fmt.Errorf("action: unknown tag %q", tag)
		}
	}
	return nil
}

// MarshalJSON renders Event as a single-key externally-tagged object.
func (e Event) MarshalJSON() ([]byte, error) {
	var value interface{}
	switch e.Kind {
	case EventRegister:
		value = e.Identity
	case EventSubscribeToService, EventUnsubscribeFromService:
		value = subscribeWire{Service: e.Service, Identity: e.Identity}
	case EventUpdateLocation:
		value = e.Identity
	case EventPerformAction:
		value = e.Action
	default:
		return nil, fmt.Errorf("event: invalid kind %d", e.Kind)
	}
	return json.Marshal(map[string]interface{}{e.Kind.String(): value})
}

func (e *Event) UnmarshalJSON(data []byte) error {
	var wire map[string]json.RawMessage
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	if len(wire) != 1 {
		return fmt.Errorf("event: expected exactly one tag, got %d", len(wire))
	}
	for tag, raw := range wire {
		switch tag {
		case "Register":
			var id ClientIdentity
			if err := json.Unmarshal(raw, &id); err != nil {
				return err
			}
			*e = EventRegisterEvent(id)
		case "SubscribeToService":
			var sub subscribeWire
			if err := json.Unmarshal(raw, &sub); err != nil {
				return err
			}
			*e = EventSubscribe(sub.Service, sub.Identity)
		case "UnsubscribeFromService":
			var sub subscribeWire
			if err := json.Unmarshal(raw, &sub); err != nil {
				return err
			}
			*e = EventUnsubscribe(sub.Service, sub.Identity)
		case "UpdateLocation":
			var id ClientIdentity
			if err := json.Unmarshal(raw, &id); err != nil {
				return err
			}
			*e = EventUpdateLocationEvent(id)
		case "PerformAction":
			var act Action
			if err := json.Unmarshal(raw, &act); err != nil {
				return err
			}
			*e = EventPerformActionEvent(act)
		default:
			return fmt.Errorf("event: unknown tag %q", tag)
		}
	}
	return nil
}

// MarshalJSON renders ExchangeMessage as a single-key externally-tagged
// object, with unit variants carrying an explicit null, per the wire
// examples in the external interface section.
func (m ExchangeMessage) MarshalJSON() ([]byte, error) {
	var value interface{}
	switch m.Kind {
	case MsgAck:
		value = m.Ack.String()
	case MsgNack:
		value = m.Nack.String()
	case MsgRequest, MsgScene:
		value = m.Event
	case MsgError:
		value = m.Error
	case MsgNextScene, MsgRetriggerScene, MsgHeartbeat, MsgHeartbeatAck:
		value = nil
	default:
		return nil, fmt.Errorf("exchange message: invalid kind %d", m.Kind)
	}
	return json.Marshal(map[string]interface{}{m.Kind.String(): value})
}

func (m *ExchangeMessage) UnmarshalJSON(data []byte) error {
	var wire map[string]json.RawMessage
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	if len(wire) != 1 {
		return fmt.Errorf("exchange message: expected exactly one tag, got %d", len(wire))
	}
	for tag, raw := range wire {
		switch tag {
		case "Ack":
			var s string
			if err := json.Unmarshal(raw, &s); err != nil {
				return err
			}
			kind, ok := ackKindFromString(s)
			if !ok {
				return fmt.Errorf("exchange message: unknown ack kind %q", s)
			}
			*m = Ack(kind)
		case "Nack":
			var s string
			if err := json.Unmarshal(raw, &s); err != nil {
				return err
			}
			kind, ok := nackKindFromString(s)
			if !ok {
				return fmt.Errorf("exchange message: unknown nack kind %q", s)
			}
			*m = Nack(kind)
		case "Request":
			var e Event
			if err := json.Unmarshal(raw, &e); err != nil {
				return err
			}
			*m = Request(e)
		case "Scene":
			var e Event
			if err := json.Unmarshal(raw, &e); err != nil {
				return err
			}
			*m = Scene(e)
		case "Error":
			var s string
			if err := json.Unmarshal(raw, &s); err != nil {
				return err
			}
			em, err := NewError(s)
			if err != nil {
				return err
			}
			*m = em
		case "NextScene":
			*m = NextScene
		case "RetriggerScene":
			*m = RetriggerScene
		case "Heartbeat":
			*m = Heartbeat
		case "HeartbeatAck":
			*m = HeartbeatAck
		default:
			return fmt.Errorf("exchange message: unknown tag %q", tag)
		}
	}
	return nil
}
