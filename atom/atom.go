// Package atom implements the self-describing binary wire format
// carried over the ring buffers between the audio thread, worker, and
// UI peers (spec §6): every value is a (size uint32, type URID) header
// followed by size bytes of type-specific payload, padded to an 8-byte
// boundary. Compound atoms (Tuple, Object, Sequence, Vector) nest this
// same header recursively.
//
// Grounded on original_source/lib/synthpod_private.h's transmit_t /
// transfer_t structs (an LV2_Atom_Tuple header plus ATOM_ALIGNED
// fields) and LV2's own atom.h layout they build on, adapted from
// C struct-overlay access to an explicit Go encoder/decoder pair since
// Go has no portable equivalent of casting a byte buffer to a struct.
package atom

import (
	"encoding/binary"
	"errors"
	"math"

	"github.com/shaban/synthpod/registry"
)

// headerSize is the (size, type) atom header: two uint32 fields.
const headerSize = 8

// align rounds n up to the next 8-byte boundary (spec §6, §9: "8-byte
// aligned").
func align(n int) int { return (n + 7) &^ 7 }

// ErrTruncated is returned by decoders when the buffer ends before a
// complete atom has been read.
var ErrTruncated = errors.New("atom: truncated buffer")

// ErrOverflow is returned by encoders when the destination buffer is
// too small to hold the atom being written.
var ErrOverflow = errors.New("atom: destination buffer too small")

// Header is the common (size, type) prefix of every atom.
type Header struct {
	Size uint32
	Type registry.URID
}

// PeekType reads an atom's type tag without consuming or validating
// its body, letting a caller dispatch on type before picking the
// right decoder (used by the worker's trace drain, spec §4.8).
func PeekType(buf []byte) (registry.URID, error) {
	h, err := getHeader(buf)
	if err != nil {
		return 0, err
	}
	return h.Type, nil
}

func putHeader(buf []byte, h Header) {
	binary.LittleEndian.PutUint32(buf[0:4], h.Size)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(h.Type))
}

func getHeader(buf []byte) (Header, error) {
	if len(buf) < headerSize {
		return Header{}, ErrTruncated
	}
	return Header{
		Size: binary.LittleEndian.Uint32(buf[0:4]),
		Type: registry.URID(binary.LittleEndian.Uint32(buf[4:8])),
	}, nil
}

// scalar codecs: Int, Long, Float, Double, Bool, URID all share the
// header-plus-fixed-body shape.

func putScalar32(buf []byte, typ registry.URID, bits uint32) (int, error) {
	n := align(headerSize + 4)
	if len(buf) < n {
		return 0, ErrOverflow
	}
	putHeader(buf, Header{Size: 4, Type: typ})
	binary.LittleEndian.PutUint32(buf[headerSize:headerSize+4], bits)
	return n, nil
}

func putScalar64(buf []byte, typ registry.URID, bits uint64) (int, error) {
	n := align(headerSize + 8)
	if len(buf) < n {
		return 0, ErrOverflow
	}
	putHeader(buf, Header{Size: 8, Type: typ})
	binary.LittleEndian.PutUint64(buf[headerSize:headerSize+8], bits)
	return n, nil
}

// PutInt encodes an Int32 atom (registry.URIAtomInt).
func PutInt(buf []byte, reg *registry.Registry, v int32) (int, error) {
	return putScalar32(buf, reg.Map(registry.URIAtomInt), uint32(v))
}

// PutLong encodes an Int64 atom.
func PutLong(buf []byte, reg *registry.Registry, v int64) (int, error) {
	return putScalar64(buf, reg.Map(registry.URIAtomLong), uint64(v))
}

// PutFloat encodes a Float32 atom.
func PutFloat(buf []byte, reg *registry.Registry, v float32) (int, error) {
	return putScalar32(buf, reg.Map(registry.URIAtomFloat), math.Float32bits(v))
}

// PutDouble encodes a Float64 atom.
func PutDouble(buf []byte, reg *registry.Registry, v float64) (int, error) {
	return putScalar64(buf, reg.Map(registry.URIAtomDouble), math.Float64bits(v))
}

// PutBool encodes a Bool atom (wire-compatible with Int: 0 or 1).
func PutBool(buf []byte, reg *registry.Registry, v bool) (int, error) {
	var i uint32
	if v {
		i = 1
	}
	return putScalar32(buf, reg.Map(registry.URIAtomBool), i)
}

// PutURID encodes a URID atom.
func PutURID(buf []byte, reg *registry.Registry, v registry.URID) (int, error) {
	return putScalar32(buf, reg.Map(registry.URIAtomURID), uint32(v))
}

// decodeScalar reads a fixed-body atom's header and payload bytes,
// returning the total bytes consumed (including alignment padding).
func decodeScalar(buf []byte, wantSize int) (payload []byte, n int, err error) {
	h, err := getHeader(buf)
	if err != nil {
		return nil, 0, err
	}
	total := align(headerSize + int(h.Size))
	if len(buf) < total || int(h.Size) != wantSize {
		return nil, 0, ErrTruncated
	}
	return buf[headerSize : headerSize+int(h.Size)], total, nil
}

// GetInt decodes an Int32 atom.
func GetInt(buf []byte) (int32, int, error) {
	p, n, err := decodeScalar(buf, 4)
	if err != nil {
		return 0, 0, err
	}
	return int32(binary.LittleEndian.Uint32(p)), n, nil
}

// GetLong decodes an Int64 atom.
func GetLong(buf []byte) (int64, int, error) {
	p, n, err := decodeScalar(buf, 8)
	if err != nil {
		return 0, 0, err
	}
	return int64(binary.LittleEndian.Uint64(p)), n, nil
}

// GetFloat decodes a Float32 atom.
func GetFloat(buf []byte) (float32, int, error) {
	p, n, err := decodeScalar(buf, 4)
	if err != nil {
		return 0, 0, err
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(p)), n, nil
}

// GetDouble decodes a Float64 atom.
func GetDouble(buf []byte) (float64, int, error) {
	p, n, err := decodeScalar(buf, 8)
	if err != nil {
		return 0, 0, err
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(p)), n, nil
}

// GetBool decodes a Bool atom.
func GetBool(buf []byte) (bool, int, error) {
	p, n, err := decodeScalar(buf, 4)
	if err != nil {
		return false, 0, err
	}
	return binary.LittleEndian.Uint32(p) != 0, n, nil
}

// GetURID decodes a URID atom.
func GetURID(buf []byte) (registry.URID, int, error) {
	p, n, err := decodeScalar(buf, 4)
	if err != nil {
		return 0, 0, err
	}
	return registry.URID(binary.LittleEndian.Uint32(p)), n, nil
}

// putBytesBody encodes a variable-length byte-bodied atom (String,
// Path, URI, Chunk, Literal's value) under typ.
func putBytesBody(buf []byte, typ registry.URID, body []byte) (int, error) {
	n := align(headerSize + len(body))
	if len(buf) < n {
		return 0, ErrOverflow
	}
	putHeader(buf, Header{Size: uint32(len(body)), Type: typ})
	copy(buf[headerSize:headerSize+len(body)], body)
	for i := headerSize + len(body); i < n; i++ {
		buf[i] = 0 // zero the alignment pad, matching the C host's calloc'd atom pool
	}
	return n, nil
}

func getBytesBody(buf []byte) (body []byte, n int, err error) {
	h, err := getHeader(buf)
	if err != nil {
		return nil, 0, err
	}
	total := align(headerSize + int(h.Size))
	if len(buf) < total {
		return nil, 0, ErrTruncated
	}
	return buf[headerSize : headerSize+int(h.Size)], total, nil
}

// PutString encodes a null-terminated String atom (LV2_Atom_String: a
// Chunk atom whose body is NUL-terminated).
func PutString(buf []byte, reg *registry.Registry, s string) (int, error) {
	return putBytesBody(buf, reg.Map(registry.URIAtomString), append([]byte(s), 0))
}

// GetString decodes a String atom, dropping the trailing NUL.
func GetString(buf []byte) (string, int, error) {
	body, n, err := getBytesBody(buf)
	if err != nil {
		return "", 0, err
	}
	if len(body) > 0 && body[len(body)-1] == 0 {
		body = body[:len(body)-1]
	}
	return string(body), n, nil
}

// PutPath encodes a Path atom (wire-identical to String).
func PutPath(buf []byte, reg *registry.Registry, path string) (int, error) {
	return putBytesBody(buf, reg.Map(registry.URIAtomPath), append([]byte(path), 0))
}

// PutURI encodes a URI-valued atom (wire-identical to String).
func PutURI(buf []byte, reg *registry.Registry, uri string) (int, error) {
	return putBytesBody(buf, reg.Map(registry.URIAtomURI), append([]byte(uri), 0))
}

// PutChunk encodes an opaque Chunk atom.
func PutChunk(buf []byte, reg *registry.Registry, data []byte) (int, error) {
	return putBytesBody(buf, reg.Map(registry.URIAtomChunk), data)
}

// GetChunk decodes a Chunk atom's raw body.
func GetChunk(buf []byte) ([]byte, int, error) {
	return getBytesBody(buf)
}
