package mqttingress

import (
	"encoding/json"
	"fmt"

	"github.com/mgonzalezperna/lamarrs-go/internal/protocol"
)

// OrchestrationMessage is the payload carried on the MQTT orchestrator
// topic: a Request tuple of (Event, optional Location). Event must be a
// PerformAction event; anything else is a malformed payload.
//
// Wire shape: {"Request":[{"PerformAction":{...}},"Left"]} or
// {"Request":[{"PerformAction":{...}},null]}.
type OrchestrationMessage struct {
	Action   protocol.Action
	Location *protocol.Location
}

func (m OrchestrationMessage) MarshalJSON() ([]byte, error) {
	event := protocol.EventPerformActionEvent(m.Action)
	var loc interface{}
	if m.Location != nil {
		loc = m.Location.String()
	}
	return json.Marshal(map[string]interface{}{
		"Request": [2]interface{}{event, loc},
	})
}

func (m *OrchestrationMessage) UnmarshalJSON(data []byte) error {
	var wire struct {
		Request []json.RawMessage `json:"Request"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	if len(wire.Request) != 2 {
		return fmt.Errorf("orchestration message: Request must be a 2-element tuple, got %d", len(wire.Request))
	}

	var event protocol.Event
	if err := json.Unmarshal(wire.Request[0], &event); err != nil {
		return fmt.Errorf("orchestration message: %w", err)
	}
	if event.Kind != protocol.EventPerformAction {
		return fmt.Errorf("orchestration message: expected PerformAction, got %s", event.Kind)
	}
	m.Action = event.Action

	var locStr *string
	if err := json.Unmarshal(wire.Request[1], &locStr); err != nil {
		return fmt.Errorf("orchestration message: location: %w", err)
	}
	m.Location = nil
	if locStr != nil {
		loc, ok := parseLocation(*locStr)
		if !ok {
			return fmt.Errorf("orchestration message: unknown location %q", *locStr)
		}
		m.Location = &loc
	}
	return nil
}

func parseLocation(s string) (protocol.Location, bool) {
	switch s {
	case "Left":
		return protocol.LocationLeft, true
	case "Center":
		return protocol.LocationCenter, true
	case "Right":
		return protocol.LocationRight, true
	default:
		return 0, false
	}
}
