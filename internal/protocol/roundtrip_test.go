package protocol

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func loc(l Location) *Location { return &l }

func sampleMessages(t *testing.T) []ExchangeMessage {
	t.Helper()
	id1 := ClientIdentity{UUID: uuid.New(), Location: loc(LocationLeft)}
	id2 := ClientIdentity{UUID: uuid.New()}

	subtitle, err := NewShowSubtitles("hello world")
	if err != nil {
		t.Fatal(err)
	}
	audio, err := NewPlayAudio("track01", "mp3")
	if err != nil {
		t.Fatal(err)
	}
	midi1, err := NewMidiProgram(1)
	if err != nil {
		t.Fatal(err)
	}
	midi16384, err := NewMidiProgram(16384)
	if err != nil {
		t.Fatal(err)
	}
	errMsg, err := NewError("something went wrong")
	if err != nil {
		t.Fatal(err)
	}

	return []ExchangeMessage{
		Ack(AckSuccess),
		Ack(AckUpdatedSubscription),
		Ack(AckUpdatedLocation),
		Nack(NackAlreadySubscribed),
		Nack(NackNotSubscribed),
		Nack(NackFailed),
		Request(EventRegisterEvent(id1)),
		Request(EventSubscribe(ServiceColour, id1)),
		Request(EventUnsubscribe(ServiceMidi, id2)),
		Request(EventUpdateLocationEvent(id2)),
		Scene(EventPerformActionEvent(subtitle)),
		Scene(EventPerformActionEvent(NewChangeColour(RGB{R: 255, G: 0, B: 0}))),
		Scene(EventPerformActionEvent(audio)),
		Scene(EventPerformActionEvent(midi1)),
		Scene(EventPerformActionEvent(midi16384)),
		errMsg,
		NextScene,
		RetriggerScene,
		Heartbeat,
		HeartbeatAck,
	}
}

func TestRoundTripJSON(t *testing.T) {
	for _, want := range sampleMessages(t) {
		data, err := json.Marshal(want)
		if err != nil {
			t.Fatalf("marshal %v: %v", want, err)
		}
		var got ExchangeMessage
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("unmarshal %s: %v", data, err)
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("json round trip mismatch: want %+v got %+v (wire=%s)", want, got, data)
		}
	}
}

func TestRoundTripBinary(t *testing.T) {
	for _, want := range sampleMessages(t) {
		data, err := EncodeBinary(want)
		if err != nil {
			t.Fatalf("encode %v: %v", want, err)
		}
		got, err := DecodeBinary(data)
		if err != nil {
			t.Fatalf("decode % x: %v", data, err)
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("binary round trip mismatch: want %+v got %+v", want, got)
		}
	}
}

func TestWireShapeExamples(t *testing.T) {
	id := ClientIdentity{UUID: uuid.MustParse("11111111-1111-1111-1111-111111111111"), Location: loc(LocationCenter)}
	data, err := json.Marshal(Request(EventRegisterEvent(id)))
	if err != nil {
		t.Fatal(err)
	}
	want := `{"Request":{"Register":{"uuid":"11111111-1111-1111-1111-111111111111","location":"Center"}}}`
	if string(data) != want {
		t.Errorf("got %s, want %s", data, want)
	}

	data, err = json.Marshal(Scene(EventPerformActionEvent(NewChangeColour(RGB{R: 255, G: 0, B: 0}))))
	if err != nil {
		t.Fatal(err)
	}
	want = `{"Scene":{"PerformAction":{"ChangeColour":{"r":255,"g":0,"b":0}}}}`
	if string(data) != want {
		t.Errorf("got %s, want %s", data, want)
	}

	data, err = json.Marshal(Ack(AckSuccess))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"Ack":"Success"}` {
		t.Errorf("got %s", data)
	}

	data, err = json.Marshal(Heartbeat)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"Heartbeat":null}` {
		t.Errorf("got %s", data)
	}
}

func TestSubtitleBoundary(t *testing.T) {
	ok := strings.Repeat("a", MaxSubtitleLen)
	if _, err := NewShowSubtitles(ok); err != nil {
		t.Errorf("50-char subtitle should be accepted: %v", err)
	}
	tooLong := strings.Repeat("a", MaxSubtitleLen+1)
	if _, err := NewShowSubtitles(tooLong); err == nil {
		t.Error("51-char subtitle should be rejected")
	}
}

func TestSubtitleBoundaryDecodeErrors(t *testing.T) {
	// A text payload exceeding the cap must be a decode error, not a
	// silent truncation.
	raw := []byte(`{"Scene":{"PerformAction":{"ShowSubtitles":"` + strings.Repeat("a", MaxSubtitleLen+1) + `"}}}`)
	var m ExchangeMessage
	if err := json.Unmarshal(raw, &m); err == nil {
		t.Error("expected decode error for oversized subtitle")
	}
}

func TestMidiPresetBoundary(t *testing.T) {
	act, err := NewMidiProgram(1)
	if err != nil {
		t.Fatal(err)
	}
	bank, program := act.BankProgram()
	if bank != 0 || program != 0 {
		t.Errorf("preset 1 should encode as bank=0 program=0, got bank=%d program=%d", bank, program)
	}

	act, err = NewMidiProgram(16384)
	if err != nil {
		t.Fatal(err)
	}
	bank, program = act.BankProgram()
	if bank != 127 || program != 127 {
		t.Errorf("preset 16384 should encode as bank=127 program=127, got bank=%d program=%d", bank, program)
	}

	if _, err := NewMidiProgram(0); err == nil {
		t.Error("preset 0 should be rejected")
	}
	if _, err := NewMidiProgram(16385); err == nil {
		t.Error("preset 16385 should be rejected")
	}
}

func TestUnknownTagIsDecodeError(t *testing.T) {
	if err := json.Unmarshal([]byte(`{"Bogus":null}`), &ExchangeMessage{}); err == nil {
		t.Error("expected decode error for unknown JSON tag")
	}

	if _, err := DecodeBinary([]byte{250}); err == nil {
		t.Error("expected decode error for unknown binary tag")
	}
}

func TestAllowedActionPredicate(t *testing.T) {
	subtitle, _ := NewShowSubtitles("x")
	colour := NewChangeColour(RGB{})
	audio, _ := NewPlayAudio("f", "mp3")
	midi, _ := NewMidiProgram(1)

	cases := []struct {
		svc     Service
		action  Action
		allowed bool
	}{
		{ServiceSubtitle, subtitle, true},
		{ServiceSubtitle, colour, false},
		{ServiceColour, colour, true},
		{ServiceColour, audio, false},
		{ServiceAudioPlayer, audio, true},
		{ServiceAudioPlayer, midi, false},
		{ServiceMidi, midi, true},
		{ServiceMidi, subtitle, false},
	}
	for _, c := range cases {
		if got := AllowedAction(c.svc, c.action); got != c.allowed {
			t.Errorf("AllowedAction(%s, %s) = %v, want %v", c.svc, c.action, got, c.allowed)
		}
	}
}
