// Package sequencer plays a YAML show file step by step, driven by
// NextScene/RetriggerScene exchange messages forwarded from registered
// clients.
package sequencer

import (
	"log"
	"sync"
	"time"

	"github.com/mgonzalezperna/lamarrs-go/internal/actor"
	"github.com/mgonzalezperna/lamarrs-go/internal/protocol"
)

// mailboxCapacity matches the component design's fixed mailbox size.
const mailboxCapacity = 32

// Sequencer holds an ordered queue of steps loaded once at startup and
// advances through it on NextScene, holding at any step with no duration.
type Sequencer struct {
	services map[protocol.Service]*actor.Service

	inbox chan protocol.ExchangeMessage

	queue        []SequenceStep
	lastExecuted *SequenceStep

	// stepMu guards currentStepName against concurrent reads from the
	// console-refresh path; everything else here is only ever touched by Run.
	stepMu          sync.Mutex
	currentStepName string

	// onStepChange, if set, is called after every dispatch so a caller
	// (the operator console) can refresh without polling on an interval.
	onStepChange func()
}

// New creates a Sequencer over the given show sequence, dispatching
// actions to the service actor matching each step.
func New(seq Sequence, services map[protocol.Service]*actor.Service) *Sequencer {
	return &Sequencer{
		services: services,
		inbox:    make(chan protocol.ExchangeMessage, mailboxCapacity),
		queue:    append([]SequenceStep(nil), seq.Steps...),
	}
}

// Mailbox returns the send side the server's client handlers use to
// deliver NextScene/RetriggerScene.
func (s *Sequencer) Mailbox() chan<- protocol.ExchangeMessage {
	return s.inbox
}

// SetStepChangeHook registers a callback fired after every step dispatch
// (advance or retrigger), so a caller can push a fresh status snapshot
// instead of polling CurrentStepName on an interval.
func (s *Sequencer) SetStepChangeHook(fn func()) {
	s.onStepChange = fn
}

// CurrentStepName reports the name of the most recently dispatched step,
// or "" if none has run yet. Safe to call concurrently with Run.
func (s *Sequencer) CurrentStepName() string {
	s.stepMu.Lock()
	defer s.stepMu.Unlock()
	return s.currentStepName
}

// Run processes the mailbox until done is closed. Sleeps for a step's
// duration are not cancellable: a NextScene arriving mid-sleep is simply
// buffered by the mailbox and processed once the sleep completes (see the
// component design's documented simplification).
func (s *Sequencer) Run(done <-chan struct{}) {
	for {
		select {
		case msg := <-s.inbox:
			s.handle(msg, done)
		case <-done:
			return
		}
	}
}

func (s *Sequencer) handle(msg protocol.ExchangeMessage, done <-chan struct{}) {
	switch msg.Kind {
	case protocol.MsgNextScene:
		s.advance(done)
	case protocol.MsgRetriggerScene:
		s.retrigger()
	default:
		log.Printf("sequencer: discarding unsupported message %s", msg)
	}
}

func (s *Sequencer) advance(done <-chan struct{}) {
	for {
		if len(s.queue) == 0 {
			log.Printf("sequencer: show finished, idle until reload/restart")
			return
		}

		step := s.queue[0]
		s.queue = s.queue[1:]
		s.lastExecuted = &step

		s.dispatch(step)

		if step.Duration == nil {
			return // manual hold point
		}

		log.Printf("sequencer: step %q auto-advancing in %s", step.Name, *step.Duration)
		select {
		case <-time.After(*step.Duration):
		case <-done:
			return
		}
	}
}

func (s *Sequencer) retrigger() {
	if s.lastExecuted == nil {
		log.Printf("sequencer: retrigger requested but no step has been executed yet")
		return
	}
	s.dispatch(*s.lastExecuted)
}

func (s *Sequencer) dispatch(step SequenceStep) {
	s.stepMu.Lock()
	s.currentStepName = step.Name
	s.stepMu.Unlock()
	if s.onStepChange != nil {
		s.onStepChange()
	}

	svc, ok := serviceFor(step.Action)
	if !ok {
		log.Printf("sequencer: no service for action %s in step %q", step.Action, step.Name)
		return
	}
	actorRef := s.services[svc]
	if actorRef == nil {
		log.Printf("sequencer: no actor wired for service %s", svc)
		return
	}
	if err := actorRef.PerformAction(step.Action, step.TargetLocation); err != nil {
		log.Printf("sequencer: dispatch step %q: %v", step.Name, err)
	}
}

func serviceFor(a protocol.Action) (protocol.Service, bool) {
	switch a.Kind {
	case protocol.ActionShowSubtitles:
		return protocol.ServiceSubtitle, true
	case protocol.ActionChangeColour:
		return protocol.ServiceColour, true
	case protocol.ActionPlayAudio:
		return protocol.ServiceAudioPlayer, true
	case protocol.ActionMidiProgram:
		return protocol.ServiceMidi, true
	default:
		return 0, false
	}
}
