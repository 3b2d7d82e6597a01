package atom

import (
	"encoding/binary"

	"github.com/shaban/synthpod/registry"
)

// PutTuple encodes a Tuple atom from already-encoded child atoms
// (each element is itself a complete, aligned [header+body] atom, the
// same shape LV2_Atom_Tuple packs its elements as).
func PutTuple(buf []byte, reg *registry.Registry, elements ...[]byte) (int, error) {
	total := 0
	for _, e := range elements {
		total += len(e)
	}
	n := align(headerSize + total)
	if len(buf) < n {
		return 0, ErrOverflow
	}
	putHeader(buf, Header{Size: uint32(total), Type: reg.Map(registry.URIAtomTuple)})
	off := headerSize
	for _, e := range elements {
		copy(buf[off:off+len(e)], e)
		off += len(e)
	}
	for i := off; i < n; i++ {
		buf[i] = 0
	}
	return n, nil
}

// TupleElements decodes a Tuple atom's children as a slice of raw
// [header+body] atom byte slices.
func TupleElements(buf []byte) ([][]byte, error) {
	h, err := getHeader(buf)
	if err != nil {
		return nil, err
	}
	end := headerSize + int(h.Size)
	if end > len(buf) {
		return nil, ErrTruncated
	}
	var out [][]byte
	pos := headerSize
	for pos < end {
		eh, err := getHeader(buf[pos:])
		if err != nil {
			return nil, err
		}
		elemLen := align(headerSize + int(eh.Size))
		if pos+elemLen > end {
			return nil, ErrTruncated
		}
		out = append(out, buf[pos:pos+elemLen])
		pos += elemLen
	}
	return out, nil
}

// Property is one key/value pair of an Object atom, matching LV2's
// LV2_Atom_Property_Body (key URID, context URID, value atom).
type Property struct {
	Key   registry.URID
	Value []byte // a complete, aligned [header+body] atom
}

// PutObject encodes an Object atom: an id URID, an otype URID, then a
// run of Properties (spec §6's patch-verb bodies are Objects keyed by
// patch:subject/patch:property/patch:value etc.).
func PutObject(buf []byte, reg *registry.Registry, id, otype registry.URID, props ...Property) (int, error) {
	bodyLen := 8 // id + otype
	for _, p := range props {
		bodyLen += align(8 + len(p.Value)) // key + context(0) + value atom
	}
	n := align(headerSize + bodyLen)
	if len(buf) < n {
		return 0, ErrOverflow
	}
	putHeader(buf, Header{Size: uint32(bodyLen), Type: reg.Map(registry.URIAtomObject)})
	off := headerSize
	binary.LittleEndian.PutUint32(buf[off:off+4], uint32(id))
	binary.LittleEndian.PutUint32(buf[off+4:off+8], uint32(otype))
	off += 8
	for _, p := range props {
		binary.LittleEndian.PutUint32(buf[off:off+4], uint32(p.Key))
		binary.LittleEndian.PutUint32(buf[off+4:off+8], 0) // context, unused
		off += 8
		copy(buf[off:off+len(p.Value)], p.Value)
		elemLen := align(len(p.Value))
		for i := off + len(p.Value); i < off+elemLen; i++ {
			buf[i] = 0
		}
		off += elemLen
	}
	for i := off; i < n; i++ {
		buf[i] = 0
	}
	return n, nil
}

// ObjectFields decodes an Object atom's id, otype and properties.
func ObjectFields(buf []byte) (id, otype registry.URID, props []Property, err error) {
	h, err := getHeader(buf)
	if err != nil {
		return 0, 0, nil, err
	}
	end := headerSize + int(h.Size)
	if end > len(buf) || h.Size < 8 {
		return 0, 0, nil, ErrTruncated
	}
	id = registry.URID(binary.LittleEndian.Uint32(buf[headerSize : headerSize+4]))
	otype = registry.URID(binary.LittleEndian.Uint32(buf[headerSize+4 : headerSize+8]))
	pos := headerSize + 8
	for pos < end {
		if pos+8 > end {
			return 0, 0, nil, ErrTruncated
		}
		key := registry.URID(binary.LittleEndian.Uint32(buf[pos : pos+4]))
		pos += 8
		vh, err := getHeader(buf[pos:])
		if err != nil {
			return 0, 0, nil, err
		}
		valLen := align(headerSize + int(vh.Size))
		if pos+valLen > end {
			return 0, 0, nil, ErrTruncated
		}
		props = append(props, Property{Key: key, Value: buf[pos : pos+valLen]})
		pos += valLen
	}
	return id, otype, props, nil
}

// FindProperty returns the first property with the given key, or nil.
func FindProperty(props []Property, key registry.URID) []byte {
	for _, p := range props {
		if p.Key == key {
			return p.Value
		}
	}
	return nil
}

// PutVector encodes a homogeneous Vector of 4-byte elements (Int,
// Float or URID child type — spec §6's Vector is used for e.g. a
// block of raw control values).
func PutVector(buf []byte, reg *registry.Registry, childType registry.URID, elems []uint32) (int, error) {
	bodyLen := 8 + len(elems)*4 // child size + child type + elements
	n := align(headerSize + bodyLen)
	if len(buf) < n {
		return 0, ErrOverflow
	}
	putHeader(buf, Header{Size: uint32(bodyLen), Type: reg.Map(registry.URIAtomVector)})
	binary.LittleEndian.PutUint32(buf[headerSize:headerSize+4], 4)
	binary.LittleEndian.PutUint32(buf[headerSize+4:headerSize+8], uint32(childType))
	off := headerSize + 8
	for _, e := range elems {
		binary.LittleEndian.PutUint32(buf[off:off+4], e)
		off += 4
	}
	for i := off; i < n; i++ {
		buf[i] = 0
	}
	return n, nil
}

// VectorElements decodes a Vector atom's 4-byte elements.
func VectorElements(buf []byte) (childType registry.URID, elems []uint32, err error) {
	h, err := getHeader(buf)
	if err != nil {
		return 0, nil, err
	}
	if h.Size < 8 {
		return 0, nil, ErrTruncated
	}
	childSize := binary.LittleEndian.Uint32(buf[headerSize : headerSize+4])
	childType = registry.URID(binary.LittleEndian.Uint32(buf[headerSize+4 : headerSize+8]))
	if childSize != 4 {
		return childType, nil, ErrTruncated
	}
	n := (int(h.Size) - 8) / 4
	off := headerSize + 8
	for i := 0; i < n; i++ {
		elems = append(elems, binary.LittleEndian.Uint32(buf[off:off+4]))
		off += 4
	}
	return childType, elems, nil
}

// PutLiteral encodes a Literal atom: a datatype/lang URID pair plus a
// string body (LV2_Atom_Literal).
func PutLiteral(buf []byte, reg *registry.Registry, datatype, lang registry.URID, s string) (int, error) {
	bodyLen := 8 + len(s)
	n := align(headerSize + bodyLen)
	if len(buf) < n {
		return 0, ErrOverflow
	}
	putHeader(buf, Header{Size: uint32(bodyLen), Type: reg.Map(registry.URIAtomLiteral)})
	binary.LittleEndian.PutUint32(buf[headerSize:headerSize+4], uint32(datatype))
	binary.LittleEndian.PutUint32(buf[headerSize+4:headerSize+8], uint32(lang))
	copy(buf[headerSize+8:headerSize+8+len(s)], s)
	for i := headerSize + 8 + len(s); i < n; i++ {
		buf[i] = 0
	}
	return n, nil
}
