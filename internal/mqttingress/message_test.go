package mqttingress

import (
	"testing"

	"github.com/mgonzalezperna/lamarrs-go/internal/protocol"
)

func TestOrchestrationMessageRoundTrip(t *testing.T) {
	left := protocol.LocationLeft
	colour := protocol.NewChangeColour(protocol.RGB{R: 255})

	cases := []OrchestrationMessage{
		{Action: colour, Location: &left},
		{Action: colour, Location: nil},
	}
	for _, want := range cases {
		data, err := want.MarshalJSON()
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		var got OrchestrationMessage
		if err := got.UnmarshalJSON(data); err != nil {
			t.Fatalf("unmarshal %s: %v", data, err)
		}
		if got.Action != want.Action {
			t.Errorf("action mismatch: got %v want %v", got.Action, want.Action)
		}
		if (got.Location == nil) != (want.Location == nil) {
			t.Fatalf("location nilness mismatch: got %v want %v", got.Location, want.Location)
		}
		if got.Location != nil && *got.Location != *want.Location {
			t.Errorf("location mismatch: got %v want %v", *got.Location, *want.Location)
		}
	}
}

func TestOrchestrationMessageWireShape(t *testing.T) {
	left := protocol.LocationLeft
	colour := protocol.NewChangeColour(protocol.RGB{R: 255, G: 0, B: 0})
	msg := OrchestrationMessage{Action: colour, Location: &left}

	data, err := msg.MarshalJSON()
	if err != nil {
		t.Fatal(err)
	}
	want := `{"Request":[{"PerformAction":{"ChangeColour":{"r":255,"g":0,"b":0}}},"Left"]}`
	if string(data) != want {
		t.Errorf("got %s, want %s", data, want)
	}
}

func TestOrchestrationMessageRejectsNonPerformAction(t *testing.T) {
	raw := []byte(`{"Request":[{"Register":{"uuid":"11111111-1111-1111-1111-111111111111","location":null}},null]}`)
	var m OrchestrationMessage
	if err := m.UnmarshalJSON(raw); err == nil {
		t.Error("expected error for non-PerformAction event")
	}
}

func TestServiceForMapsEveryActionKind(t *testing.T) {
	cases := []struct {
		action protocol.Action
		want   protocol.Service
	}{
		{mustAction(protocol.NewShowSubtitles("x")), protocol.ServiceSubtitle},
		{protocol.NewChangeColour(protocol.RGB{}), protocol.ServiceColour},
		{mustAction(protocol.NewPlayAudio("f", "mp3")), protocol.ServiceAudioPlayer},
		{mustAction(protocol.NewMidiProgram(1)), protocol.ServiceMidi},
	}
	for _, c := range cases {
		got, ok := serviceFor(c.action)
		if !ok {
			t.Fatalf("serviceFor(%v): not ok", c.action)
		}
		if got != c.want {
			t.Errorf("serviceFor(%v) = %v, want %v", c.action, got, c.want)
		}
	}
}

func mustAction(a protocol.Action, err error) protocol.Action {
	if err != nil {
		panic(err)
	}
	return a
}
