// Package registry declares the narrow interface the distribution core
// uses to reach the local actor registry. The registry's own internals
// (process identifiers, named registrations, mailbox delivery) live
// elsewhere; this package only states the contract.
package registry

import "github.com/nspcc-dev/clusterlink/pkg/term"

// Registry is implemented by the local actor registry and called by the
// connection's control dispatcher.
type Registry interface {
	// NodeConnected is called once the peer's NAME packet has been
	// accepted, before the challenge/response exchange completes.
	NodeConnected(peerName string, session Session) error

	// NodeDisconnected is called exactly once when a session that
	// previously reached NodeConnected goes away, whether by protocol
	// error, socket failure, or local close.
	NodeDisconnected(peerName string)

	// Send delivers message to receiver, sent by sender. receiver is
	// either a term.Pid (SEND) or a term.Atom naming a local
	// registration (REG_SEND).
	Send(sender, receiver, message term.Term) error

	// MonitorProcess registers a monitor of target on behalf of origin,
	// correlated by the caller-retained ref.
	MonitorProcess(origin, target term.Term) error

	// DemonitorProcess cancels a previously established monitor.
	DemonitorProcess(origin, target term.Term) error

	// DeliverExit delivers a monitor exit notification to the local
	// process to, on behalf of the remote monitored process from,
	// correlated by ref, with the given reason.
	DeliverExit(to, from, ref, reason term.Term) error
}

// Session is the narrow view of a peer session the registry needs: a
// way to push outbound commands at it and to ask it to drop the link.
type Session interface {
	// Enqueue queues an outbound command for delivery to the peer.
	// It returns false if the session's outbound queue is closed or
	// full and the command could not be accepted.
	Enqueue(cmd Command) bool

	// PeerName is the peer's node name, stable once known.
	PeerName() string

	// Close tears down the underlying connection.
	Close()
}

// CommandKind discriminates the outbound command shapes the connection
// knows how to encode (spec.md §4.5).
type CommandKind int

const (
	// CommandSend asks the connection to deliver Message to Dst.
	CommandSend CommandKind = iota
	// CommandMonitorExit asks the connection to notify the peer that a
	// monitored process has exited.
	CommandMonitorExit
)

// Command is an outbound instruction from the registry to a peer
// session, drained by the connection's I/O loop and encoded onto the
// wire.
type Command struct {
	Kind CommandKind

	// Used by CommandSend.
	Dst     term.Term
	Message term.Term

	// Used by CommandMonitorExit.
	FromPid term.Term
	ToPid   term.Term
	Ref     term.Term
	Reason  term.Term
}
