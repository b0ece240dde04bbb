package console

import (
	"strings"
	"testing"
	"time"
)

func TestViewShowsDisconnectedMQTTByDefault(t *testing.T) {
	m := consoleModel{status: Status{ServerAddr: "127.0.0.1:8080", SubscriberCount: map[string]int{}}, startTime: time.Now()}
	view := m.View()
	if !strings.Contains(view, "disconnected") {
		t.Errorf("expected view to show disconnected MQTT state, got:\n%s", view)
	}
}

func TestViewShowsConnectedMQTTAndCurrentStep(t *testing.T) {
	m := consoleModel{
		status: Status{
			ServerAddr:      "127.0.0.1:8080",
			MQTTConnected:   true,
			CurrentStep:     "intro",
			SubscriberCount: map[string]int{"Colour": 3},
		},
		startTime: time.Now(),
	}
	view := m.View()
	if !strings.Contains(view, "connected") {
		t.Errorf("expected view to show connected MQTT state, got:\n%s", view)
	}
	if strings.Contains(view, "disconnected") {
		t.Errorf("expected view not to show disconnected MQTT state, got:\n%s", view)
	}
	if !strings.Contains(view, "intro") {
		t.Errorf("expected view to show current step, got:\n%s", view)
	}
}

func TestUpdateTickDoesNotQuitModel(t *testing.T) {
	m := consoleModel{status: Status{SubscriberCount: map[string]int{}}, startTime: time.Now()}
	updated, _ := m.Update(tickMsg(time.Now()))
	if updated.(consoleModel).quitting {
		t.Error("tick message should not set quitting")
	}
}
