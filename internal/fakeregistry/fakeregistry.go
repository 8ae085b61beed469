// Package fakeregistry provides a test double for registry.Registry, in
// the override-func-field style used by the teacher's internal/fakechain.
package fakeregistry

import (
	"sync"

	"github.com/nspcc-dev/clusterlink/pkg/registry"
	"github.com/nspcc-dev/clusterlink/pkg/term"
)

// Call records one invocation made against the fake, for assertions.
type Call struct {
	Method   string
	PeerName string
	Sender   term.Term
	Receiver term.Term
	Message  term.Term
	Origin   term.Term
	Target   term.Term
}

// Registry is a registry.Registry test double. Any *F field left nil
// falls back to recording the call and returning a nil error.
type Registry struct {
	NodeConnectedF    func(peerName string, s registry.Session) error
	NodeDisconnectedF func(peerName string)
	SendF             func(sender, receiver, message term.Term) error
	MonitorProcessF   func(origin, target term.Term) error
	DemonitorProcessF func(origin, target term.Term) error
	DeliverExitF      func(to, from, ref, reason term.Term) error

	mu    sync.Mutex
	calls []Call

	mu2       sync.Mutex
	sessions  map[string]registry.Session
	connected []string
}

// New creates an empty Registry fake.
func New() *Registry {
	return &Registry{
		sessions: make(map[string]registry.Session),
	}
}

// Calls returns a snapshot of every call recorded so far, in order.
func (f *Registry) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

// Connected returns the peer names that NodeConnected was called with, in
// call order, including any that later disconnected.
func (f *Registry) Connected() []string {
	f.mu2.Lock()
	defer f.mu2.Unlock()
	out := make([]string, len(f.connected))
	copy(out, f.connected)
	return out
}

// SessionFor returns the session recorded for peerName at NodeConnected
// time, if any.
func (f *Registry) SessionFor(peerName string) (registry.Session, bool) {
	f.mu2.Lock()
	defer f.mu2.Unlock()
	s, ok := f.sessions[peerName]
	return s, ok
}

func (f *Registry) record(c Call) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
}

// NodeConnected implements registry.Registry.
func (f *Registry) NodeConnected(peerName string, s registry.Session) error {
	f.record(Call{Method: "NodeConnected", PeerName: peerName})
	f.mu2.Lock()
	f.sessions[peerName] = s
	f.connected = append(f.connected, peerName)
	f.mu2.Unlock()
	if f.NodeConnectedF != nil {
		return f.NodeConnectedF(peerName, s)
	}
	return nil
}

// NodeDisconnected implements registry.Registry.
func (f *Registry) NodeDisconnected(peerName string) {
	f.record(Call{Method: "NodeDisconnected", PeerName: peerName})
	if f.NodeDisconnectedF != nil {
		f.NodeDisconnectedF(peerName)
	}
}

// Send implements registry.Registry.
func (f *Registry) Send(sender, receiver, message term.Term) error {
	f.record(Call{Method: "Send", Sender: sender, Receiver: receiver, Message: message})
	if f.SendF != nil {
		return f.SendF(sender, receiver, message)
	}
	return nil
}

// MonitorProcess implements registry.Registry.
func (f *Registry) MonitorProcess(origin, target term.Term) error {
	f.record(Call{Method: "MonitorProcess", Origin: origin, Target: target})
	if f.MonitorProcessF != nil {
		return f.MonitorProcessF(origin, target)
	}
	return nil
}

// DemonitorProcess implements registry.Registry.
func (f *Registry) DemonitorProcess(origin, target term.Term) error {
	f.record(Call{Method: "DemonitorProcess", Origin: origin, Target: target})
	if f.DemonitorProcessF != nil {
		return f.DemonitorProcessF(origin, target)
	}
	return nil
}

// DeliverExit implements registry.Registry.
func (f *Registry) DeliverExit(to, from, ref, reason term.Term) error {
	f.record(Call{Method: "DeliverExit", Origin: from, Target: to})
	if f.DeliverExitF != nil {
		return f.DeliverExitF(to, from, ref, reason)
	}
	return nil
}
