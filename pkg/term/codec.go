package term

import (
	"bytes"

	distio "github.com/nspcc-dev/clusterlink/pkg/io"
)

// Tag bytes from the external term format, restricted to the subset this
// codec needs to round-trip the control tuples and payloads enumerated
// in the control dispatcher.
const (
	tagSmallInteger   = 97
	tagInteger        = 98
	tagAtom           = 100
	tagSmallAtom      = 115
	tagSmallTuple     = 104
	tagLargeTuple     = 105
	tagNil            = 106
	tagList           = 108
	tagBinary         = 109
	tagPid            = 103
	tagNewReference   = 114
)

// Decode reads exactly one term from the front of b and returns the
// decoded term together with the unconsumed suffix. Terms inside a
// distribution passthrough frame carry no leading version-magic byte
// (unlike a standalone term_to_binary blob), so none is expected or
// stripped here. Atoms are not deduplicated; use DecodeCached from a
// long-lived connection to amortize repeated atom allocations.
func Decode(b []byte) (Term, []byte, error) {
	return DecodeCached(b, nil)
}

// DecodeCached behaves like Decode but interns decoded atoms through
// cache. A nil cache disables interning.
func DecodeCached(b []byte, cache *AtomCache) (Term, []byte, error) {
	br := bytes.NewReader(b)
	d := &decoder{r: &distio.BinReader{R: br}, cache: cache}
	t := d.decodeTerm()
	if d.r.Err != nil {
		return nil, nil, malformed("%v", d.r.Err)
	}
	return t, b[len(b)-br.Len():], nil
}

type decoder struct {
	r     *distio.BinReader
	cache *AtomCache
}

func (d *decoder) atom(raw []byte) Atom {
	if d.cache != nil {
		return d.cache.Intern(raw)
	}
	return Atom(raw)
}

func (d *decoder) decodeTerm() Term {
	r := d.r
	tag := r.ReadB()
	if r.Err != nil {
		return nil
	}
	switch tag {
	case tagSmallInteger:
		return Int(r.ReadB())
	case tagInteger:
		return Int(int32(r.ReadU32BE()))
	case tagAtom:
		n := r.ReadU16BE()
		return d.atom(r.ReadN(int(n)))
	case tagSmallAtom:
		n := r.ReadB()
		return d.atom(r.ReadN(int(n)))
	case tagSmallTuple:
		arity := r.ReadB()
		return d.decodeTupleElems(int(arity))
	case tagLargeTuple:
		arity := r.ReadU32BE()
		return d.decodeTupleElems(int(arity))
	case tagNil:
		return List{}
	case tagList:
		n := r.ReadU32BE()
		elems := make(List, 0, n)
		for i := uint32(0); i < n; i++ {
			elems = append(elems, d.decodeTerm())
			if r.Err != nil {
				return nil
			}
		}
		// Proper lists this codec produces/consumes always end in
		// nil_ext; consume and discard the tail marker.
		tailTag := r.ReadB()
		if r.Err != nil {
			return nil
		}
		if tailTag != tagNil {
			r.Err = malformed("improper list tail tag %d", tailTag)
			return nil
		}
		return elems
	case tagBinary:
		n := r.ReadU32BE()
		return Binary(r.ReadN(int(n)))
	case tagPid:
		node := d.decodeTerm()
		nodeAtom, ok := node.(Atom)
		if !ok {
			r.Err = malformed("pid node is not an atom")
			return nil
		}
		id := r.ReadU32BE()
		serial := r.ReadU32BE()
		creation := r.ReadB()
		return Pid{Node: nodeAtom, ID: id, Serial: serial, Creation: creation}
	case tagNewReference:
		n := r.ReadU16BE()
		node := d.decodeTerm()
		nodeAtom, ok := node.(Atom)
		if !ok {
			r.Err = malformed("ref node is not an atom")
			return nil
		}
		creation := r.ReadB()
		ids := make([]uint32, n)
		for i := range ids {
			ids[i] = r.ReadU32BE()
		}
		return Ref{Node: nodeAtom, Creation: creation, ID: ids}
	default:
		r.Err = malformed("unknown term tag %d", tag)
		return nil
	}
}

func (d *decoder) decodeTupleElems(arity int) Tuple {
	elems := make(Tuple, 0, arity)
	for i := 0; i < arity; i++ {
		elems = append(elems, d.decodeTerm())
		if d.r.Err != nil {
			return nil
		}
	}
	return elems
}

// Encode serializes t into the external term format understood by Decode.
func Encode(t Term) ([]byte, error) {
	w := distio.NewBufBinWriter()
	encodeTerm(w, t)
	if w.Err != nil {
		return nil, w.Err
	}
	return w.Bytes(), nil
}

func encodeTerm(w *distio.BufBinWriter, t Term) {
	if w.Err != nil {
		return
	}
	switch v := t.(type) {
	case Int:
		if v >= 0 && v <= 255 {
			w.WriteB(tagSmallInteger)
			w.WriteB(byte(v))
		} else {
			w.WriteB(tagInteger)
			w.WriteU32BE(uint32(int32(v)))
		}
	case Atom:
		if len(v) <= 255 {
			w.WriteB(tagSmallAtom)
			w.WriteB(byte(len(v)))
		} else {
			w.WriteB(tagAtom)
			w.WriteU16BE(uint16(len(v)))
		}
		w.WriteBytes([]byte(v))
	case Tuple:
		if len(v) <= 255 {
			w.WriteB(tagSmallTuple)
			w.WriteB(byte(len(v)))
		} else {
			w.WriteB(tagLargeTuple)
			w.WriteU32BE(uint32(len(v)))
		}
		for _, e := range v {
			encodeTerm(w, e)
		}
	case List:
		if len(v) == 0 {
			w.WriteB(tagNil)
			return
		}
		w.WriteB(tagList)
		w.WriteU32BE(uint32(len(v)))
		for _, e := range v {
			encodeTerm(w, e)
		}
		w.WriteB(tagNil)
	case Binary:
		w.WriteB(tagBinary)
		w.WriteU32BE(uint32(len(v)))
		w.WriteBytes(v)
	case Pid:
		w.WriteB(tagPid)
		encodeTerm(w, v.Node)
		w.WriteU32BE(v.ID)
		w.WriteU32BE(v.Serial)
		w.WriteB(v.Creation)
	case Ref:
		w.WriteB(tagNewReference)
		w.WriteU16BE(uint16(len(v.ID)))
		encodeTerm(w, v.Node)
		w.WriteB(v.Creation)
		for _, id := range v.ID {
			w.WriteU32BE(id)
		}
	default:
		w.Err = malformed("unsupported term type %T", t)
	}
}
