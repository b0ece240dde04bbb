// Package protocol defines the exchange-message vocabulary shared by every
// Lamarrs component: the server's service actors and client handler, the
// MQTT ingress, the sequencer, and both the embedded and desktop clients.
//
// A single abstract message algebra is defined here; json.go and binary.go
// each generate a codec from it rather than maintaining two independent
// hand-rolled decoders that could drift apart.
package protocol

import (
	"fmt"

	"github.com/google/uuid"
)

// Service is the closed set of service kinds a client may subscribe to.
type Service uint8

const (
	ServiceSubtitle Service = iota
	ServiceColour
	ServiceAudioPlayer
	ServiceMidi
)

func (s Service) String() string {
	switch s {
	case ServiceSubtitle:
		return "Subtitle"
	case ServiceColour:
		return "Colour"
	case ServiceAudioPlayer:
		return "AudioPlayer"
	case ServiceMidi:
		return "Midi"
	default:
		return fmt.Sprintf("Service(%d)", uint8(s))
	}
}

func serviceFromString(s string) (Service, bool) {
	switch s {
	case "Subtitle":
		return ServiceSubtitle, true
	case "Colour":
		return ServiceColour, true
	case "AudioPlayer":
		return ServiceAudioPlayer, true
	case "Midi":
		return ServiceMidi, true
	default:
		return 0, false
	}
}

// Location is the coarse spatial tag used to filter scene broadcasts.
type Location uint8

const (
	LocationLeft Location = iota
	LocationCenter
	LocationRight
)

func (l Location) String() string {
	switch l {
	case LocationLeft:
		return "Left"
	case LocationCenter:
		return "Center"
	case LocationRight:
		return "Right"
	default:
		return fmt.Sprintf("Location(%d)", uint8(l))
	}
}

func locationFromString(s string) (Location, bool) {
	switch s {
	case "Left":
		return LocationLeft, true
	case "Center":
		return LocationCenter, true
	case "Right":
		return LocationRight, true
	default:
		return 0, false
	}
}

// ClientIdentity is the UUID + optional location a client presents at
// Register/UpdateLocation time. The server never assigns the UUID.
type ClientIdentity struct {
	UUID     uuid.UUID
	Location *Location
}

func (c ClientIdentity) String() string {
	if c.Location == nil {
		return c.UUID.String()
	}
	return fmt.Sprintf("%s@%s", c.UUID.String(), c.Location.String())
}

// RGB is the payload of ChangeColour.
type RGB struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// String-length caps, per spec: bounded so fixed-capacity buffers on
// constrained clients can hold any wire value.
const (
	MaxSubtitleLen  = 50
	MaxFilenameLen  = 50
	MaxExtensionLen = 4
	MaxErrorLen     = 100

	MinPresetIndex = 1
	MaxPresetIndex = 16384
)

// ActionKind discriminates the Action union.
type ActionKind uint8

const (
	ActionShowSubtitles ActionKind = iota
	ActionChangeColour
	ActionPlayAudio
	ActionMidiProgram
)

func (k ActionKind) String() string {
	switch k {
	case ActionShowSubtitles:
		return "ShowSubtitles"
	case ActionChangeColour:
		return "ChangeColour"
	case ActionPlayAudio:
		return "PlayAudio"
	case ActionMidiProgram:
		return "MidiProgram"
	default:
		return fmt.Sprintf("ActionKind(%d)", uint8(k))
	}
}

// Action is the service-layer payload carried by PerformAction. Only one
// field group is meaningful, selected by Kind; the zero value of the
// others is ignored.
type Action struct {
	Kind ActionKind

	Subtitle string // ActionShowSubtitles
	Colour   RGB    // ActionChangeColour

	Filename  string // ActionPlayAudio
	Extension string // ActionPlayAudio

	PresetIndex int // ActionMidiProgram, 1..=16384
}

// NewShowSubtitles validates and builds a ShowSubtitles action.
func NewShowSubtitles(text string) (Action, error) {
	if len(text) > MaxSubtitleLen {
		return Action{}, fmt.Errorf("subtitle exceeds %d characters: %d", MaxSubtitleLen, len(text))
	}
	return Action{Kind: ActionShowSubtitles, Subtitle: text}, nil
}

// NewChangeColour builds a ChangeColour action.
func NewChangeColour(rgb RGB) Action {
	return Action{Kind: ActionChangeColour, Colour: rgb}
}

// NewPlayAudio validates and builds a PlayAudio action.
func NewPlayAudio(filename, extension string) (Action, error) {
	if len(filename) > MaxFilenameLen {
		return Action{}, fmt.Errorf("audio filename exceeds %d characters: %d", MaxFilenameLen, len(filename))
	}
	if len(extension) > MaxExtensionLen {
		return Action{}, fmt.Errorf("audio extension exceeds %d characters: %d", MaxExtensionLen, len(extension))
	}
	return Action{Kind: ActionPlayAudio, Filename: filename, Extension: extension}, nil
}

// NewMidiProgram validates and builds a MidiProgram action. PresetIndex is
// 1-based; see BankProgram for the (bank, program) pair the binary wire
// format actually carries.
func NewMidiProgram(presetIndex int) (Action, error) {
	if presetIndex < MinPresetIndex || presetIndex > MaxPresetIndex {
		return Action{}, fmt.Errorf("midi preset index out of range [%d,%d]: %d", MinPresetIndex, MaxPresetIndex, presetIndex)
	}
	return Action{Kind: ActionMidiProgram, PresetIndex: presetIndex}, nil
}

// BankProgram returns the 7-bit (bank, program) pair the MIDI wire
// encoding uses: preset 1 -> (0,0), preset 16384 -> (127,127).
func (a Action) BankProgram() (bank, program uint8) {
	idx0 := a.PresetIndex - 1
	return uint8(idx0 / 128), uint8(idx0 % 128)
}

// MidiProgramFromBankProgram reconstructs a 1-based preset index from the
// wire-carried (bank, program) pair.
func MidiProgramFromBankProgram(bank, program uint8) (Action, error) {
	idx := int(bank)*128 + int(program) + 1
	return NewMidiProgram(idx)
}

func (a Action) String() string {
	switch a.Kind {
	case ActionShowSubtitles:
		return fmt.Sprintf("ShowSubtitles(%q)", a.Subtitle)
	case ActionChangeColour:
		return fmt.Sprintf("ChangeColour(r=%d,g=%d,b=%d)", a.Colour.R, a.Colour.G, a.Colour.B)
	case ActionPlayAudio:
		return fmt.Sprintf("PlayAudio(%s.%s)", a.Filename, a.Extension)
	case ActionMidiProgram:
		return fmt.Sprintf("MidiProgram(%d)", a.PresetIndex)
	default:
		return "Action(invalid)"
	}
}

// EventKind discriminates the Event union.
type EventKind uint8

const (
	EventRegister EventKind = iota
	EventSubscribeToService
	EventUnsubscribeFromService
	EventUpdateLocation
	EventPerformAction
)

func (k EventKind) String() string {
	switch k {
	case EventRegister:
		return "Register"
	case EventSubscribeToService:
		return "SubscribeToService"
	case EventUnsubscribeFromService:
		return "UnsubscribeFromService"
	case EventUpdateLocation:
		return "UpdateLocation"
	case EventPerformAction:
		return "PerformAction"
	default:
		return fmt.Sprintf("EventKind(%d)", uint8(k))
	}
}

// Event is the payload of Request/Scene exchange messages.
type Event struct {
	Kind EventKind

	Identity ClientIdentity // Register, UpdateLocation, SubscribeToService, UnsubscribeFromService
	Service  Service        // SubscribeToService, UnsubscribeFromService
	Action   Action         // PerformAction
}

func EventRegisterEvent(id ClientIdentity) Event {
	return Event{Kind: EventRegister, Identity: id}
}

func EventSubscribe(svc Service, id ClientIdentity) Event {
	return Event{Kind: EventSubscribeToService, Service: svc, Identity: id}
}

func EventUnsubscribe(svc Service, id ClientIdentity) Event {
	return Event{Kind: EventUnsubscribeFromService, Service: svc, Identity: id}
}

func EventUpdateLocationEvent(id ClientIdentity) Event {
	return Event{Kind: EventUpdateLocation, Identity: id}
}

func EventPerformActionEvent(a Action) Event {
	return Event{Kind: EventPerformAction, Action: a}
}

func (e Event) String() string {
	switch e.Kind {
	case EventRegister:
		return fmt.Sprintf("Register(%s)", e.Identity)
	case EventSubscribeToService, EventUnsubscribeFromService:
		return fmt.Sprintf("%s(%s, %s)", e.Kind, e.Service, e.Identity)
	case EventUpdateLocation:
		return fmt.Sprintf("UpdateLocation(%s)", e.Identity)
	case EventPerformAction:
		return fmt.Sprintf("PerformAction(%s)", e.Action)
	default:
		return "Event(invalid)"
	}
}

// AckKind enumerates the reasons a Request succeeded.
type AckKind uint8

const (
	AckSuccess AckKind = iota
	AckUpdatedSubscription
	AckUpdatedLocation
)

func (k AckKind) String() string {
	switch k {
	case AckSuccess:
		return "Success"
	case AckUpdatedSubscription:
		return "UpdatedSubscription"
	case AckUpdatedLocation:
		return "UpdatedLocation"
	default:
		return fmt.Sprintf("AckKind(%d)", uint8(k))
	}
}

func ackKindFromString(s string) (AckKind, bool) {
	switch s {
	case "Success":
		return AckSuccess, true
	case "UpdatedSubscription":
		return AckUpdatedSubscription, true
	case "UpdatedLocation":
		return AckUpdatedLocation, true
	default:
		return 0, false
	}
}

// NackKind enumerates the reasons a Request was rejected.
type NackKind uint8

const (
	NackAlreadySubscribed NackKind = iota
	NackNotSubscribed
	NackFailed
)

func (k NackKind) String() string {
	switch k {
	case NackAlreadySubscribed:
		return "AlreadySubscribed"
	case NackNotSubscribed:
		return "NotSubscribed"
	case NackFailed:
		return "Failed"
	default:
		return fmt.Sprintf("NackKind(%d)", uint8(k))
	}
}

func nackKindFromString(s string) (NackKind, bool) {
	switch s {
	case "AlreadySubscribed":
		return NackAlreadySubscribed, true
	case "NotSubscribed":
		return NackNotSubscribed, true
	case "Failed":
		return NackFailed, true
	default:
		return 0, false
	}
}

// MessageKind discriminates the top-level ExchangeMessage union.
type MessageKind uint8

const (
	MsgAck MessageKind = iota
	MsgNack
	MsgRequest
	MsgScene
	MsgError
	MsgNextScene
	MsgRetriggerScene
	MsgHeartbeat
	MsgHeartbeatAck
)

func (k MessageKind) String() string {
	switch k {
	case MsgAck:
		return "Ack"
	case MsgNack:
		return "Nack"
	case MsgRequest:
		return "Request"
	case MsgScene:
		return "Scene"
	case MsgError:
		return "Error"
	case MsgNextScene:
		return "NextScene"
	case MsgRetriggerScene:
		return "RetriggerScene"
	case MsgHeartbeat:
		return "Heartbeat"
	case MsgHeartbeatAck:
		return "HeartbeatAck"
	default:
		return fmt.Sprintf("MessageKind(%d)", uint8(k))
	}
}

// ExchangeMessage is the tagged union crossing every wire hop between
// server and client, in either text (JSON) or binary (structural) form.
type ExchangeMessage struct {
	Kind MessageKind

	Ack   AckKind  // MsgAck
	Nack  NackKind // MsgNack
	Event Event    // MsgRequest, MsgScene
	Error string   // MsgError, bounded to MaxErrorLen
}

func Ack(kind AckKind) ExchangeMessage   { return ExchangeMessage{Kind: MsgAck, Ack: kind} }
func Nack(kind NackKind) ExchangeMessage { return ExchangeMessage{Kind: MsgNack, Nack: kind} }
func Request(e Event) ExchangeMessage    { return ExchangeMessage{Kind: MsgRequest, Event: e} }
func Scene(e Event) ExchangeMessage      { return ExchangeMessage{Kind: MsgScene, Event: e} }

// NewError validates and builds an Error message.
func NewError(description string) (ExchangeMessage, error) {
	if len(description) > MaxErrorLen {
		return ExchangeMessage{}, fmt.Errorf("error description exceeds %d characters: %d", MaxErrorLen, len(description))
	}
	return ExchangeMessage{Kind: MsgError, Error: description}, nil
}

var (
	NextScene      = ExchangeMessage{Kind: MsgNextScene}
	RetriggerScene = ExchangeMessage{Kind: MsgRetriggerScene}
	Heartbeat      = ExchangeMessage{Kind: MsgHeartbeat}
	HeartbeatAck   = ExchangeMessage{Kind: MsgHeartbeatAck}
)

func (m ExchangeMessage) String() string {
	switch m.Kind {
	case MsgAck:
		return fmt.Sprintf("Ack(%s)", m.Ack)
	case MsgNack:
		return fmt.Sprintf("Nack(%s)", m.Nack)
	case MsgRequest:
		return fmt.Sprintf("Request(%s)", m.Event)
	case MsgScene:
		return fmt.Sprintf("Scene(%s)", m.Event)
	case MsgError:
		return fmt.Sprintf("Error(%q)", m.Error)
	default:
		return m.Kind.String()
	}
}

// AllowedAction reports whether the given service is permitted to carry
// the given action, per the per-service allowed-action predicate in the
// component design: Subtitle<->ShowSubtitles, Colour<->ChangeColour,
// AudioPlayer<->PlayAudio, Midi<->MidiProgram.
func AllowedAction(svc Service, a Action) bool {
	switch svc {
	case ServiceSubtitle:
		return a.Kind == ActionShowSubtitles
	case ServiceColour:
		return a.Kind == ActionChangeColour
	case ServiceAudioPlayer:
		return a.Kind == ActionPlayAudio
	case ServiceMidi:
		return a.Kind == ActionMidiProgram
	default:
		return false
	}
}
