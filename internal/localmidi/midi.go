// Package localmidi is the desktop client's collaborator for
// MidiProgram actions. No MIDI library appears anywhere in the example
// corpus, so this package writes raw MIDI program-change bytes to a
// caller-supplied io.Writer (a real deployment would point this at a
// serial MIDI bridge) rather than depending on one.
package localmidi

import (
	"fmt"
	"io"
	"log"

	"github.com/mgonzalezperna/lamarrs-go/internal/protocol"
)

// programChangeStatus is the MIDI status byte for a program change on
// channel 0: 0xC0 | channel.
const programChangeStatus = 0xC0

// Sink writes MIDI program-change bytes (bank select MSB/LSB via
// control-change 0/32, then a program-change message) for a decoded
// preset's (bank, program) pair.
type Sink struct {
	w io.Writer
}

// New wraps w as a MIDI sink. w is never assumed to be a real device;
// the desktop client command wires it to stdout.
func New(w io.Writer) *Sink {
	return &Sink{w: w}
}

// Handle writes out the bank-select and program-change bytes for a
// MidiProgram action; any other kind is a silent no-op.
func (s *Sink) Handle(action protocol.Action) {
	if action.Kind != protocol.ActionMidiProgram {
		return
	}
	bank, program := action.BankProgram()
	if err := s.write(bank, program); err != nil {
		log.Printf("localmidi: write preset %d (bank=%d program=%d): %v", action.PresetIndex, bank, program, err)
	}
}

func (s *Sink) write(bank, program uint8) error {
	// Control Change 0 (bank select MSB) and 32 (bank select LSB); this
	// device only ever has a 7-bit bank value, so MSB is always 0.
	msgs := []byte{
		0xB0, 0x00, 0x00,
		0xB0, 0x20, bank,
		programChangeStatus, program,
	}
	if _, err := s.w.Write(msgs); err != nil {
		return fmt.Errorf("write midi bytes: %w", err)
	}
	return nil
}
