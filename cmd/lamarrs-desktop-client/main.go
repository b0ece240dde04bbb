// Command lamarrs-desktop-client runs a desktop-class client: it
// subscribes to AudioPlayer and Midi, playing cues through the local
// speaker and writing MIDI program-change bytes to stdout.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/mgonzalezperna/lamarrs-go/internal/desktopclient"
	"github.com/mgonzalezperna/lamarrs-go/internal/localmidi"
	"github.com/mgonzalezperna/lamarrs-go/internal/localplayer"
)

var (
	addr     = flag.String("addr", "localhost:8080", "Server address (host:port)")
	wsPath   = flag.String("path", "/", "WebSocket path")
	audioDir = flag.String("audio-dir", ".", "Directory PlayAudio filenames are resolved against")
)

func main() {
	flag.Parse()

	player := localplayer.New(*audioDir)
	midi := localmidi.New(os.Stdout)

	client := desktopclient.New(desktopclient.Config{
		ServerAddr: *addr,
		Path:       *wsPath,
		Playback:   player,
		Midi:       midi,
	})

	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Printf("desktop-client: shutting down")
		cancel()
	}()

	log.Printf("desktop-client: connecting to %s%s", *addr, *wsPath)
	client.Run(ctx)
}
