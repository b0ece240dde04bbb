// Package localplayer is the desktop client's collaborator for
// PlayAudio actions: it turns a filename/extension pair into actual
// sound through oto, decoding MP3 files with go-mp3 when the referenced
// file is present on disk. Audio transport and format correctness are
// out of scope for Lamarrs itself (the wire only ever carries a
// filename/extension pair) — this package is the minimal real wiring
// that gives that out-of-scope contract somewhere to land.
package localplayer

import (
	"bytes"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/ebitengine/oto/v3"
	"github.com/hajimehoshi/go-mp3"

	"github.com/mgonzalezperna/lamarrs-go/internal/protocol"
)

// Player owns a single oto playback context, lazily created on first
// use (oto allows only one context per process).
type Player struct {
	dir string

	ctx    *oto.Context
	active *oto.Player // kept referenced so it isn't GC'd mid-playback
}

// New creates a Player that resolves PlayAudio filenames relative to
// dir.
func New(dir string) *Player {
	return &Player{dir: dir}
}

// Handle plays the action if it's a PlayAudio action; any other kind is
// a silent no-op (the desktop client itself only routes PlayAudio scenes
// here).
func (p *Player) Handle(action protocol.Action) {
	if action.Kind != protocol.ActionPlayAudio {
		return
	}
	if err := p.play(action.Filename, action.Extension); err != nil {
		log.Printf("localplayer: play %s.%s: %v", action.Filename, action.Extension, err)
	}
}

func (p *Player) play(filename, extension string) error {
	path := filepath.Join(p.dir, filename+"."+extension)
	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("localplayer: %s not found on disk, logging playback only", path)
		return nil
	}

	switch extension {
	case "mp3":
		return p.playMP3(data)
	default:
		log.Printf("localplayer: no decoder for extension %q, logging playback only", extension)
		return nil
	}
}

func (p *Player) playMP3(data []byte) error {
	decoder, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create mp3 decoder: %w", err)
	}

	if err := p.ensureContext(decoder.SampleRate(), 2); err != nil {
		return err
	}

	p.active = p.ctx.NewPlayer(decoder)
	p.active.Play()
	return nil
}

func (p *Player) ensureContext(sampleRate, channels int) error {
	if p.ctx != nil {
		return nil
	}

	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: channels,
		Format:       oto.FormatSignedInt16LE,
	}
	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return fmt.Errorf("create oto context: %w", err)
	}
	<-readyChan
	p.ctx = ctx
	return nil
}
