package dist

import (
	"testing"

	"github.com/nspcc-dev/clusterlink/pkg/registry"
	"github.com/nspcc-dev/clusterlink/pkg/term"
	"github.com/stretchr/testify/require"
)

func TestSessionEnqueueAndDrain(t *testing.T) {
	s := newSession("sess-1", nil)
	require.Empty(t, s.PeerName())

	s.setPeerName("foo@host")
	require.Equal(t, "foo@host", s.PeerName())

	cmd := registry.Command{Kind: registry.CommandSend, Dst: term.Atom("x"), Message: term.Atom("y")}
	require.True(t, s.Enqueue(cmd))

	select {
	case got := <-s.outbound:
		require.Equal(t, cmd, got)
	default:
		t.Fatal("expected queued command")
	}

	require.True(t, s.Enqueue(cmd))
	s.drain()
	select {
	case <-s.outbound:
		t.Fatal("drain left a queued command")
	default:
	}
}

func TestSessionEnqueueRejectsWhenFull(t *testing.T) {
	s := newSession("sess-2", nil)
	cmd := registry.Command{Kind: registry.CommandSend}
	for i := 0; i < outboundQueueCapacity; i++ {
		require.True(t, s.Enqueue(cmd))
	}
	require.False(t, s.Enqueue(cmd))
}

func TestSessionCloseCallsCloseFnOnce(t *testing.T) {
	calls := 0
	s := newSession("sess-3", func() { calls++ })

	s.Close()
	s.Close()
	require.Equal(t, 1, calls)

	cmd := registry.Command{Kind: registry.CommandSend}
	require.False(t, s.Enqueue(cmd))
}
