package sequencer

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mgonzalezperna/lamarrs-go/internal/actor"
	"github.com/mgonzalezperna/lamarrs-go/internal/protocol"
)

func newColourOnlySequencer(t *testing.T, steps []SequenceStep) (*Sequencer, *actor.Service, chan protocol.ExchangeMessage, func()) {
	t.Helper()
	colourActor := actor.New(protocol.ServiceColour)
	actorDone := make(chan struct{})
	go colourActor.Run(actorDone)

	mbox := make(chan protocol.ExchangeMessage, 32)
	id := protocol.ClientIdentity{UUID: uuid.New()}
	if err := colourActor.AddTargetClient(id, mbox); err != nil {
		t.Fatalf("AddTargetClient: %v", err)
	}
	<-mbox // drain Ack(Success)

	seq := New(Sequence{Steps: steps}, map[protocol.Service]*actor.Service{protocol.ServiceColour: colourActor})
	seqDone := make(chan struct{})
	go seq.Run(seqDone)

	cleanup := func() {
		close(seqDone)
		close(actorDone)
	}
	return seq, colourActor, mbox, cleanup
}

func colourStep(name string, r uint8, duration *time.Duration) SequenceStep {
	return SequenceStep{
		Name:     name,
		Action:   protocol.NewChangeColour(protocol.RGB{R: r}),
		Duration: duration,
	}
}

func recvWithin(t *testing.T, ch <-chan protocol.ExchangeMessage, d time.Duration) protocol.ExchangeMessage {
	t.Helper()
	select {
	case m := <-ch:
		return m
	case <-time.After(d):
		t.Fatal("timed out waiting for message")
		return protocol.ExchangeMessage{}
	}
}

func TestAdvanceDispatchesStepsInOrder(t *testing.T) {
	steps := []SequenceStep{colourStep("one", 10, nil), colourStep("two", 20, nil)}
	seq, _, mbox, cleanup := newColourOnlySequencer(t, steps)
	defer cleanup()

	seq.Mailbox() <- protocol.NextScene
	got := recvWithin(t, mbox, time.Second)
	want := protocol.Scene(protocol.EventPerformActionEvent(steps[0].Action))
	if got != want {
		t.Errorf("first NextScene: got %v, want %v", got, want)
	}

	seq.Mailbox() <- protocol.NextScene
	got = recvWithin(t, mbox, time.Second)
	want = protocol.Scene(protocol.EventPerformActionEvent(steps[1].Action))
	if got != want {
		t.Errorf("second NextScene: got %v, want %v", got, want)
	}
}

func TestRetriggerRedispatchesLastExecuted(t *testing.T) {
	steps := []SequenceStep{colourStep("one", 10, nil)}
	seq, _, mbox, cleanup := newColourOnlySequencer(t, steps)
	defer cleanup()

	seq.Mailbox() <- protocol.NextScene
	recvWithin(t, mbox, time.Second)

	seq.Mailbox() <- protocol.RetriggerScene
	got := recvWithin(t, mbox, time.Second)
	want := protocol.Scene(protocol.EventPerformActionEvent(steps[0].Action))
	if got != want {
		t.Errorf("retrigger: got %v, want %v", got, want)
	}
}

func TestRetriggerBeforeAnyStepIsANoop(t *testing.T) {
	seq, _, mbox, cleanup := newColourOnlySequencer(t, nil)
	defer cleanup()

	seq.Mailbox() <- protocol.RetriggerScene
	select {
	case m := <-mbox:
		t.Errorf("expected no dispatch, got %v", m)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestAutoAdvanceThroughDurationSteps(t *testing.T) {
	d := 20 * time.Millisecond
	steps := []SequenceStep{
		colourStep("auto", 10, &d),
		colourStep("hold", 20, nil),
	}
	seq, _, mbox, cleanup := newColourOnlySequencer(t, steps)
	defer cleanup()

	seq.Mailbox() <- protocol.NextScene

	first := recvWithin(t, mbox, time.Second)
	wantFirst := protocol.Scene(protocol.EventPerformActionEvent(steps[0].Action))
	if first != wantFirst {
		t.Errorf("first dispatch: got %v want %v", first, wantFirst)
	}

	second := recvWithin(t, mbox, time.Second)
	wantSecond := protocol.Scene(protocol.EventPerformActionEvent(steps[1].Action))
	if second != wantSecond {
		t.Errorf("auto-advanced dispatch: got %v want %v", second, wantSecond)
	}
}
