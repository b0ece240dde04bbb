package sequencer

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mgonzalezperna/lamarrs-go/internal/protocol"
)

// Sequence is a versioned, ordered show file: the steps a sequencer plays
// through on successive NextScene events.
type Sequence struct {
	Version uint8          `yaml:"version"`
	Steps   []SequenceStep `yaml:"sequence"`
}

// SequenceStep is one entry in a show file. A step with no Duration is a
// manual hold point; a step with a Duration auto-advances after it elapses.
type SequenceStep struct {
	Name           string            `yaml:"name"`
	Action         protocol.Action   `yaml:"action"`
	TargetLocation *protocol.Location `yaml:"target_location"`
	Duration       *time.Duration    `yaml:"duration"`
}

// UnmarshalYAML lets SequenceStep reuse Action's externally-tagged JSON
// shape for YAML too (yaml.v3 round-trips through the same struct tags
// used elsewhere would require a parallel codec; instead a step's action
// and location are decoded via an intermediate map keyed the same way the
// wire protocol already tags them), and parses Duration as a Go duration
// string ("5s", "1m30s") the way a human-authored show file would write it.
func (s *SequenceStep) UnmarshalYAML(value *yaml.Node) error {
	var wire struct {
		Name           string    `yaml:"name"`
		Action         yaml.Node `yaml:"action"`
		TargetLocation *string   `yaml:"target_location"`
		Duration       *string   `yaml:"duration"`
	}
	if err := value.Decode(&wire); err != nil {
		return err
	}

	s.Name = wire.Name

	action, err := decodeActionYAML(&wire.Action)
	if err != nil {
		return fmt.Errorf("sequence step %q: %w", wire.Name, err)
	}
	s.Action = action

	s.TargetLocation = nil
	if wire.TargetLocation != nil {
		loc, ok := parseLocation(*wire.TargetLocation)
		if !ok {
			return fmt.Errorf("sequence step %q: unknown target_location %q", wire.Name, *wire.TargetLocation)
		}
		s.TargetLocation = &loc
	}

	s.Duration = nil
	if wire.Duration != nil {
		d, err := time.ParseDuration(*wire.Duration)
		if err != nil {
			return fmt.Errorf("sequence step %q: duration: %w", wire.Name, err)
		}
		s.Duration = &d
	}
	return nil
}

func decodeActionYAML(node *yaml.Node) (protocol.Action, error) {
	var wire map[string]yaml.Node
	if err := node.Decode(&wire); err != nil {
		return protocol.Action{}, err
	}
	if len(wire) != 1 {
		return protocol.Action{}, fmt.Errorf("action: expected exactly one tag, got %d", len(wire))
	}
	for tag, raw := range wire {
		switch tag {
		case "ShowSubtitles":
			var text string
			if err := raw.Decode(&text); err != nil {
				return protocol.Action{}, err
			}
			return protocol.NewShowSubtitles(text)
		case "ChangeColour":
			var rgb protocol.RGB
			if err := raw.Decode(&rgb); err != nil {
				return protocol.Action{}, err
			}
			return protocol.NewChangeColour(rgb), nil
		case "PlayAudio":
			var wirePA struct {
				Filename  string `yaml:"filename"`
				Extension string `yaml:"extension"`
			}
			if err := raw.Decode(&wirePA); err != nil {
				return protocol.Action{}, err
			}
			return protocol.NewPlayAudio(wirePA.Filename, wirePA.Extension)
		case "MidiProgram":
			var idx int
			if err := raw.Decode(&idx); err != nil {
				return protocol.Action{}, err
			}
			return protocol.NewMidiProgram(idx)
		default:
			return protocol.Action{}, fmt.Errorf("action: unknown tag %q", tag)
		}
	}
	return protocol.Action{}, fmt.Errorf("unreachable")
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

// LoadSequence reads and parses a show file from path.
func LoadSequence(path string) (Sequence, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Sequence{}, fmt.Errorf("sequencer: read %s: %w", path, err)
	}
	var seq Sequence
	if err := yaml.Unmarshal(data, &seq); err != nil {
		return Sequence{}, fmt.Errorf("sequencer: parse %s: %w", path, err)
	}
	return seq, nil
}
