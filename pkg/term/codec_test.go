package term

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func roundTrip(t *testing.T, v Term) Term {
	b, err := Encode(v)
	require.NoError(t, err)

	got, rest, err := Decode(b)
	require.NoError(t, err)
	require.Empty(t, rest)
	return got
}

func TestRoundTripAtom(t *testing.T) {
	require.Equal(t, Atom("hello"), roundTrip(t, Atom("hello")))
	require.Equal(t, Atom(""), roundTrip(t, Atom("")))
}

func TestRoundTripInt(t *testing.T) {
	require.Equal(t, Int(0), roundTrip(t, Int(0)))
	require.Equal(t, Int(255), roundTrip(t, Int(255)))
	require.Equal(t, Int(256), roundTrip(t, Int(256)))
	require.Equal(t, Int(-1), roundTrip(t, Int(-1)))
}

func TestRoundTripPid(t *testing.T) {
	p := Pid{Node: Atom("foo@h"), ID: 42, Serial: 1, Creation: 2}
	require.Equal(t, p, roundTrip(t, p))
}

func TestRoundTripRef(t *testing.T) {
	r := Ref{Node: Atom("foo@h"), Creation: 2, ID: []uint32{1, 2, 3}}
	require.Equal(t, r, roundTrip(t, r))
}

func TestRoundTripSendControlTuple(t *testing.T) {
	sender := Pid{Node: Atom("foo@h"), ID: 1, Serial: 0, Creation: 1}
	receiver := Pid{Node: Atom("bar@h"), ID: 2, Serial: 0, Creation: 1}
	ctrl := Tuple{Int(2), sender, Atom(""), receiver}
	require.Equal(t, ctrl, roundTrip(t, ctrl))
}

func TestRoundTripBinaryAndList(t *testing.T) {
	require.Equal(t, Binary("payload"), roundTrip(t, Binary("payload")))
	require.Equal(t, List{}, roundTrip(t, List{}))
	require.Equal(t, List{Int(1), Atom("x")}, roundTrip(t, List{Int(1), Atom("x")}))
}

func TestDecodeControlThenPayload(t *testing.T) {
	ctrl := Tuple{Int(2), Atom("s"), Atom(""), Atom("r")}
	payload := Atom("hello")

	ctrlBytes, err := Encode(ctrl)
	require.NoError(t, err)
	payloadBytes, err := Encode(payload)
	require.NoError(t, err)

	frame := append(append([]byte{}, ctrlBytes...), payloadBytes...)

	gotCtrl, rest, err := Decode(frame)
	require.NoError(t, err)
	require.Equal(t, ctrl, gotCtrl)
	require.NotEmpty(t, rest)

	gotPayload, rest2, err := Decode(rest)
	require.NoError(t, err)
	require.Empty(t, rest2)
	require.Equal(t, payload, gotPayload)
}

func TestDecodeUnknownTagFails(t *testing.T) {
	_, _, err := Decode([]byte{0xFF})
	require.Error(t, err)
	var m *MalformedTerm
	require.ErrorAs(t, err, &m)
}

func TestDecodeTruncatedFails(t *testing.T) {
	_, _, err := Decode([]byte{tagSmallAtom, 5, 'h', 'i'})
	require.Error(t, err)
}

func TestAtomCacheInterns(t *testing.T) {
	c := NewAtomCache()
	a1 := c.Intern([]byte("normal"))
	a2 := c.Intern([]byte("normal"))
	require.Equal(t, a1, a2)
}

func TestDecodeCachedReusesAtom(t *testing.T) {
	c := NewAtomCache()
	b, err := Encode(Atom("hello"))
	require.NoError(t, err)

	t1, _, err := DecodeCached(b, c)
	require.NoError(t, err)
	t2, _, err := DecodeCached(b, c)
	require.NoError(t, err)
	require.Equal(t, t1, t2)
}
