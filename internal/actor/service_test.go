package actor

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mgonzalezperna/lamarrs-go/internal/protocol"
)

func newRunning(t *testing.T, kind protocol.Service) (*Service, func()) {
	t.Helper()
	svc := New(kind)
	done := make(chan struct{})
	go svc.Run(done)
	return svc, func() { close(done) }
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

func TestAddTargetClientAcksNewMailbox(t *testing.T) {
	svc, stop := newRunning(t, protocol.ServiceColour)
	defer stop()

	mbox := make(chan protocol.ExchangeMessage, mailboxCapacity)
	id := protocol.ClientIdentity{UUID: uuid.New()}

	if err := svc.AddTargetClient(id, mbox); err != nil {
		t.Fatalf("AddTargetClient: %v", err)
	}
	if got := recvWithin(t, mbox, time.Second); got != protocol.Ack(protocol.AckSuccess) {
		t.Errorf("got %v, want Ack(Success)", got)
	}
}

func TestAddTargetClientDuplicateNacksExisting(t *testing.T) {
	svc, stop := newRunning(t, protocol.ServiceColour)
	defer stop()

	id := protocol.ClientIdentity{UUID: uuid.New()}
	first := make(chan protocol.ExchangeMessage, mailboxCapacity)
	second := make(chan protocol.ExchangeMessage, mailboxCapacity)

	if err := svc.AddTargetClient(id, first); err != nil {
		t.Fatalf("first AddTargetClient: %v", err)
	}
	recvWithin(t, first, time.Second) // drain Ack(Success)

	if err := svc.AddTargetClient(id, second); err == nil {
		t.Error("expected error on duplicate subscribe")
	}
	if got := recvWithin(t, first, time.Second); got != protocol.Nack(protocol.NackAlreadySubscribed) {
		t.Errorf("existing mailbox got %v, want Nack(AlreadySubscribed)", got)
	}
	select {
	case m := <-second:
		t.Errorf("new mailbox should not receive anything, got %v", m)
	default:
	}
}

func TestRemoveTargetClientAbsentIsError(t *testing.T) {
	svc, stop := newRunning(t, protocol.ServiceColour)
	defer stop()

	if err := svc.RemoveTargetClient(protocol.ClientIdentity{UUID: uuid.New()}); err == nil {
		t.Error("expected error removing an absent subscriber")
	}
}

func TestUpdateClientDataRequiresExistingEntry(t *testing.T) {
	svc, stop := newRunning(t, protocol.ServiceColour)
	defer stop()

	id := protocol.ClientIdentity{UUID: uuid.New()}
	mbox := make(chan protocol.ExchangeMessage, mailboxCapacity)
	if err := svc.UpdateClientData(id, mbox); err == nil {
		t.Error("expected error updating an absent subscriber")
	}

	if err := svc.AddTargetClient(id, mbox); err != nil {
		t.Fatalf("AddTargetClient: %v", err)
	}
	recvWithin(t, mbox, time.Second)

	newMbox := make(chan protocol.ExchangeMessage, mailboxCapacity)
	if err := svc.UpdateClientData(id, newMbox); err != nil {
		t.Fatalf("UpdateClientData: %v", err)
	}
	if got := recvWithin(t, newMbox, time.Second); got != protocol.Ack(protocol.AckUpdatedSubscription) {
		t.Errorf("got %v, want Ack(UpdatedSubscription)", got)
	}
}

func TestPerformActionRejectsDisallowedAction(t *testing.T) {
	svc, stop := newRunning(t, protocol.ServiceColour)
	defer stop()

	subtitle, _ := protocol.NewShowSubtitles("hi")
	if err := svc.PerformAction(subtitle, nil); err == nil {
		t.Error("expected error for action not in this service's allowed set")
	}
}

func TestPerformActionLocationFiltering(t *testing.T) {
	svc, stop := newRunning(t, protocol.ServiceColour)
	defer stop()

	left := protocol.LocationLeft
	right := protocol.LocationRight

	idA := protocol.ClientIdentity{UUID: uuid.New(), Location: &left}
	idB := protocol.ClientIdentity{UUID: uuid.New(), Location: &right}
	idC := protocol.ClientIdentity{UUID: uuid.New()} // no location

	mboxA := make(chan protocol.ExchangeMessage, mailboxCapacity)
	mboxB := make(chan protocol.ExchangeMessage, mailboxCapacity)
	mboxC := make(chan protocol.ExchangeMessage, mailboxCapacity)

	for _, pair := range []struct {
		id   protocol.ClientIdentity
		mbox chan protocol.ExchangeMessage
	}{{idA, mboxA}, {idB, mboxB}, {idC, mboxC}} {
		if err := svc.AddTargetClient(pair.id, pair.mbox); err != nil {
			t.Fatalf("AddTargetClient: %v", err)
		}
		recvWithin(t, pair.mbox, time.Second) // drain Ack(Success)
	}

	colour := protocol.NewChangeColour(protocol.RGB{R: 255})
	if err := svc.PerformAction(colour, &left); err != nil {
		t.Fatalf("PerformAction: %v", err)
	}

	want := protocol.Scene(protocol.EventPerformActionEvent(colour))
	if got := recvWithin(t, mboxA, time.Second); got != want {
		t.Errorf("A should receive the scene, got %v", got)
	}
	select {
	case m := <-mboxB:
		t.Errorf("B should not receive anything, got %v", m)
	case <-time.After(100 * time.Millisecond):
	}
	select {
	case m := <-mboxC:
		t.Errorf("C should not receive anything, got %v", m)
	case <-time.After(100 * time.Millisecond):
	}

	if err := svc.PerformAction(colour, nil); err != nil {
		t.Fatalf("PerformAction: %v", err)
	}
	if got := recvWithin(t, mboxC, time.Second); got != want {
		t.Errorf("C (no location) should receive a nil-filter scene, got %v", got)
	}
	select {
	case m := <-mboxA:
		t.Errorf("A should not receive the nil-filter scene, got %v", m)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSubscriberCountTracksAddAndRemove(t *testing.T) {
	svc, stop := newRunning(t, protocol.ServiceColour)
	defer stop()

	if got := svc.SubscriberCount(); got != 0 {
		t.Fatalf("fresh service: got count %d, want 0", got)
	}

	idA := protocol.ClientIdentity{UUID: uuid.New()}
	idB := protocol.ClientIdentity{UUID: uuid.New()}
	mboxA := make(chan protocol.ExchangeMessage, mailboxCapacity)
	mboxB := make(chan protocol.ExchangeMessage, mailboxCapacity)

	if err := svc.AddTargetClient(idA, mboxA); err != nil {
		t.Fatalf("AddTargetClient A: %v", err)
	}
	recvWithin(t, mboxA, time.Second)
	if err := svc.AddTargetClient(idB, mboxB); err != nil {
		t.Fatalf("AddTargetClient B: %v", err)
	}
	recvWithin(t, mboxB, time.Second)

	if got := svc.SubscriberCount(); got != 2 {
		t.Errorf("after two subscribes: got count %d, want 2", got)
	}

	if err := svc.RemoveTargetClient(idA); err != nil {
		t.Fatalf("RemoveTargetClient: %v", err)
	}
	if got := svc.SubscriberCount(); got != 1 {
		t.Errorf("after one unsubscribe: got count %d, want 1", got)
	}
}

func TestFullMailboxDoesNotRemoveSubscriber(t *testing.T) {
	svc, stop := newRunning(t, protocol.ServiceColour)
	defer stop()

	id := protocol.ClientIdentity{UUID: uuid.New()}
	mbox := make(chan protocol.ExchangeMessage, mailboxCapacity)
	if err := svc.AddTargetClient(id, mbox); err != nil {
		t.Fatalf("AddTargetClient: %v", err)
	}
	recvWithin(t, mbox, time.Second)

	colour := protocol.NewChangeColour(protocol.RGB{})
	// Saturate the mailbox so the next scene dispatch can't be delivered.
	for i := 0; i < mailboxCapacity; i++ {
		mbox <- protocol.Heartbeat
	}
	if err := svc.PerformAction(colour, nil); err != nil {
		t.Fatalf("PerformAction: %v", err)
	}

	// The subscriber must still be present: an update should succeed
	// rather than erroring as "not subscribed".
	<-mbox // drain one slot
	newMbox := make(chan protocol.ExchangeMessage, mailboxCapacity)
	if err := svc.UpdateClientData(id, newMbox); err != nil {
		t.Fatalf("subscriber should survive a full mailbox: %v", err)
	}
}
