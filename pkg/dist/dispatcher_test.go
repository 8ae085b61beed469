package dist

import (
	"testing"

	"github.com/nspcc-dev/clusterlink/internal/fakeregistry"
	"github.com/nspcc-dev/clusterlink/pkg/registry"
	"github.com/nspcc-dev/clusterlink/pkg/term"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDispatchInboundSend(t *testing.T) {
	reg := fakeregistry.New()
	sender := term.Pid{Node: "a@h", ID: 1}
	receiver := term.Pid{Node: "b@h", ID: 2}
	ctrl := term.Tuple{term.Int(ctrlSend), sender, term.Atom(""), receiver}
	payload := term.Atom("hello")

	err := dispatchInbound(reg, ctrl, payload, zap.NewNop())
	require.NoError(t, err)

	calls := reg.Calls()
	require.Len(t, calls, 1)
	require.Equal(t, "Send", calls[0].Method)
	require.Equal(t, sender, calls[0].Sender)
	require.Equal(t, receiver, calls[0].Receiver)
	require.Equal(t, payload, calls[0].Message)
}

func TestDispatchInboundRegSend(t *testing.T) {
	reg := fakeregistry.New()
	sender := term.Pid{Node: "a@h", ID: 1}
	ctrl := term.Tuple{term.Int(ctrlRegSend), sender, term.Atom(""), term.Atom("my_proc")}

	err := dispatchInbound(reg, ctrl, term.Atom("hi"), zap.NewNop())
	require.NoError(t, err)

	calls := reg.Calls()
	require.Equal(t, term.Atom("my_proc"), calls[0].Receiver)
}

func TestDispatchInboundMonitorAndDemonitor(t *testing.T) {
	reg := fakeregistry.New()
	origin := term.Pid{Node: "a@h", ID: 1}
	target := term.Pid{Node: "b@h", ID: 2}
	ref := term.Ref{Node: "a@h", ID: []uint32{1}}

	require.NoError(t, dispatchInbound(reg, term.Tuple{term.Int(ctrlMonitorP), origin, target, ref}, nil, zap.NewNop()))
	require.NoError(t, dispatchInbound(reg, term.Tuple{term.Int(ctrlDemonitorP), origin, target, ref}, nil, zap.NewNop()))

	calls := reg.Calls()
	require.Equal(t, "MonitorProcess", calls[0].Method)
	require.Equal(t, "DemonitorProcess", calls[1].Method)
}

func TestDispatchInboundMonitorExit(t *testing.T) {
	reg := fakeregistry.New()
	from := term.Pid{Node: "a@h", ID: 1}
	to := term.Pid{Node: "b@h", ID: 2}
	ref := term.Ref{Node: "a@h", ID: []uint32{1}}
	ctrl := term.Tuple{term.Int(ctrlMonitorPExit), from, to, ref, term.Atom("normal")}

	err := dispatchInbound(reg, ctrl, nil, zap.NewNop())
	require.NoError(t, err)

	calls := reg.Calls()
	require.Equal(t, "DeliverExit", calls[0].Method)
}

func TestDispatchInboundUnknownTagDropsNotFatal(t *testing.T) {
	reg := fakeregistry.New()
	err := dispatchInbound(reg, term.Tuple{term.Int(999)}, nil, zap.NewNop())
	require.NoError(t, err)
	require.Empty(t, reg.Calls())
}

func TestDispatchInboundMalformedShapeIsFatal(t *testing.T) {
	reg := fakeregistry.New()
	err := dispatchInbound(reg, term.Tuple{term.Int(ctrlSend), term.Atom("not enough")}, nil, zap.NewNop())
	require.Error(t, err)
}

func TestDispatchInboundNonTupleControlIsFatal(t *testing.T) {
	reg := fakeregistry.New()
	err := dispatchInbound(reg, term.Atom("not a tuple"), nil, zap.NewNop())
	require.Error(t, err)
}

func TestEncodeOutboundSend(t *testing.T) {
	dst := term.Pid{Node: "b@h", ID: 2}
	cmd := registry.Command{Kind: registry.CommandSend, Dst: dst, Message: term.Atom("hi")}

	ctrl, payload, hasPayload, ok := encodeOutbound(cmd)
	require.True(t, ok)
	require.True(t, hasPayload)
	require.Equal(t, term.Tuple{term.Int(ctrlSend), term.Atom(""), dst}, ctrl)
	require.Equal(t, term.Atom("hi"), payload)
}

func TestEncodeOutboundMonitorExit(t *testing.T) {
	from := term.Pid{Node: "a@h", ID: 1}
	to := term.Pid{Node: "b@h", ID: 2}
	ref := term.Ref{Node: "a@h", ID: []uint32{1}}
	cmd := registry.Command{
		Kind:    registry.CommandMonitorExit,
		FromPid: from,
		ToPid:   to,
		Ref:     ref,
		Reason:  term.Atom("normal"),
	}

	ctrl, _, hasPayload, ok := encodeOutbound(cmd)
	require.True(t, ok)
	require.False(t, hasPayload)
	require.Equal(t, term.Tuple{term.Int(ctrlMonitorPExit), from, to, ref, term.Atom("normal")}, ctrl)
}
