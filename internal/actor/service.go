// Package actor implements the server-side service actor: a single
// goroutine owning the subscriber table for one protocol.Service kind,
// driven by a mailbox of commands. There is one Service actor instance per
// service kind (Subtitle, Colour, AudioPlayer, Midi); all four run the same
// code, parameterized by kind and by protocol.AllowedAction.
package actor

import (
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/mgonzalezperna/lamarrs-go/internal/protocol"
)

// Mailbox is the send side of a client handler's inbound channel. Service
// actors hold one per subscriber; client handlers hold the receive side.
type Mailbox chan<- protocol.ExchangeMessage

// mailboxCapacity matches the component design's fixed mailbox size: small
// enough to provide real backpressure, large enough that a burst of scene
// dispatches doesn't immediately stall a healthy subscriber.
const mailboxCapacity = 32

// SubscriberEntry is the per-client state a Service actor keeps.
type SubscriberEntry struct {
	Mailbox  Mailbox
	Location *protocol.Location
}

// Service owns the subscriber table for one protocol.Service kind. All
// table reads and writes happen on the goroutine running Run; every other
// goroutine talks to it exclusively through the exported methods below,
// which enqueue a command and block for its result. Commands are processed
// strictly in arrival order, so there is no concurrent access to the table
// and no need for a mutex.
type Service struct {
	Kind protocol.Service

	commands chan command
}

type commandKind uint8

const (
	cmdAdd commandKind = iota
	cmdRemove
	cmdUpdate
	cmdPerformAction
	cmdCount
)

type command struct {
	kind     commandKind
	identity protocol.ClientIdentity
	mailbox  Mailbox
	action   protocol.Action
	location *protocol.Location
	reply    chan error
	count    chan int
}

// New creates a Service actor for the given service kind. Call Run in its
// own goroutine before issuing any commands.
func New(kind protocol.Service) *Service {
	return &Service{
		Kind:     kind,
		commands: make(chan command, mailboxCapacity),
	}
}

// Run processes the mailbox until done is closed. It is the only goroutine
// that ever touches the subscriber table.
func (s *Service) Run(done <-chan struct{}) {
	subscribers := make(map[uuid.UUID]SubscriberEntry)
	for {
		select {
		case cmd := <-s.commands:
			s.apply(subscribers, cmd)
		case <-done:
			return
		}
	}
}

func (s *Service) apply(subscribers map[uuid.UUID]SubscriberEntry, cmd command) {
	switch cmd.kind {
	case cmdAdd:
		cmd.reply <- s.applyAdd(subscribers, cmd)
	case cmdRemove:
		cmd.reply <- s.applyRemove(subscribers, cmd)
	case cmdUpdate:
		cmd.reply <- s.applyUpdate(subscribers, cmd)
	case cmdPerformAction:
		cmd.reply <- s.applyPerformAction(subscribers, cmd)
	case cmdCount:
		cmd.count <- len(subscribers)
	}
}

func (s *Service) applyAdd(subscribers map[uuid.UUID]SubscriberEntry, cmd command) error {
	if existing, ok := subscribers[cmd.identity.UUID]; ok {
		deliver(existing.Mailbox, protocol.Nack(protocol.NackAlreadySubscribed))
		return fmt.Errorf("%s: %s already subscribed", s.Kind, cmd.identity)
	}
	subscribers[cmd.identity.UUID] = SubscriberEntry{Mailbox: cmd.mailbox, Location: cmd.identity.Location}
	deliver(cmd.mailbox, protocol.Ack(protocol.AckSuccess))
	return nil
}

func (s *Service) applyRemove(subscribers map[uuid.UUID]SubscriberEntry, cmd command) error {
	if _, ok := subscribers[cmd.identity.UUID]; !ok {
		return fmt.Errorf("%s: %s not subscribed", s.Kind, cmd.identity)
	}
	delete(subscribers, cmd.identity.UUID)
	return nil
}

func (s *Service) applyUpdate(subscribers map[uuid.UUID]SubscriberEntry, cmd command) error {
	if _, ok := subscribers[cmd.identity.UUID]; !ok {
		return fmt.Errorf("%s: %s not subscribed", s.Kind, cmd.identity)
	}
	subscribers[cmd.identity.UUID] = SubscriberEntry{Mailbox: cmd.mailbox, Location: cmd.identity.Location}
	deliver(cmd.mailbox, protocol.Ack(protocol.AckUpdatedSubscription))
	return nil
}

func (s *Service) applyPerformAction(subscribers map[uuid.UUID]SubscriberEntry, cmd command) error {
	if !protocol.AllowedAction(s.Kind, cmd.action) {
		return fmt.Errorf("%s: action %s is not allowed for this service", s.Kind, cmd.action)
	}
	scene := protocol.Scene(protocol.EventPerformActionEvent(cmd.action))
	for _, entry := range subscribers {
		if !locationMatches(cmd.location, entry.Location) {
			continue
		}
		deliver(entry.Mailbox, scene)
	}
	return nil
}

func locationMatches(filter, entry *protocol.Location) bool {
	if filter == nil {
		return entry == nil
	}
	return entry != nil && *filter == *entry
}

// deliver is a non-blocking send: a slow subscriber lags rather than
// stalling the actor or losing its subscription. Per the component design,
// a full mailbox is logged and the entry is left in place.
func deliver(m Mailbox, msg protocol.ExchangeMessage) {
	select {
	case m <- msg:
	default:
		log.Printf("actor: mailbox full, dropping %s", msg)
	}
}

func (s *Service) send(cmd command) error {
	cmd.reply = make(chan error, 1)
	s.commands <- cmd
	return <-cmd.reply
}

// AddTargetClient registers a new subscriber. If identity.UUID is already
// present, the existing subscriber is sent Nack(AlreadySubscribed) and an
// error is returned to the caller; the new mailbox is not added. On
// success the new mailbox receives Ack(Success).
func (s *Service) AddTargetClient(identity protocol.ClientIdentity, mailbox Mailbox) error {
	return s.send(command{kind: cmdAdd, identity: identity, mailbox: mailbox})
}

// RemoveTargetClient deletes a subscriber. Removing an absent UUID is an
// error but never fatal to the caller.
func (s *Service) RemoveTargetClient(identity protocol.ClientIdentity) error {
	return s.send(command{kind: cmdRemove, identity: identity})
}

// UpdateClientData refreshes the mailbox and location of an existing
// subscriber, used on reconnect/re-register. The entry must already exist;
// on success the new mailbox receives Ack(UpdatedSubscription).
func (s *Service) UpdateClientData(identity protocol.ClientIdentity, mailbox Mailbox) error {
	return s.send(command{kind: cmdUpdate, identity: identity, mailbox: mailbox})
}

// PerformAction validates action against the allowed-action predicate for
// this service, then broadcasts Scene(PerformAction(action)) to every
// subscriber whose location matches locationFilter (nil matches only
// subscribers with no location; a non-nil filter matches only subscribers
// at exactly that location).
func (s *Service) PerformAction(action protocol.Action, locationFilter *protocol.Location) error {
	return s.send(command{kind: cmdPerformAction, action: action, location: locationFilter})
}

// SubscriberCount reports the current number of subscribers, for the
// operator console. Like every other query, it's served by the same
// single goroutine that owns the subscriber table.
func (s *Service) SubscriberCount() int {
	reply := make(chan int, 1)
	s.commands <- command{kind: cmdCount, count: reply}
	return <-reply
}
