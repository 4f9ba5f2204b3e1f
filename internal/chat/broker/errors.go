package broker

import "github.com/pkg/errors"

var (
	// ErrBrokerReused - returns by Run if the Broker has been run already.
	// Every generation of the relay needs its own Broker.
	ErrBrokerReused = errors.New("broker.Broker: already run")

	// ErrMailboxClosed - returns in case if message is put into mailbox of departed peer.
	ErrMailboxClosed = errors.New("broker.Mailbox: closed")

	// ErrMailboxFull - returns in case if bounded mailbox has no room for a message.
	// The message is dropped for this recipient only.
	ErrMailboxFull = errors.New("broker.Mailbox: full")
)
