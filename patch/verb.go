// Package patch implements the patch-verb protocol carried inside atom
// objects (spec §6: get/set/put/patch/insert/move/copy/delete/ack/error)
// and the router's RUN/DRAIN/BLOCK/WAIT stall state machine (spec §4.7).
//
// Grounded on dispatcher.go's OperationType-keyed dispatch shape for the
// verb table, generalized from Go method calls to a wire-encoded
// Object per spec §6; the atom encoding itself is grounded on the
// atom package built for spec §6.
package patch

import (
	"fmt"

	"github.com/shaban/synthpod/atom"
	"github.com/shaban/synthpod/registry"
)

// Verb identifies a patch-message object type (spec §6).
type Verb int

const (
	VerbUnknown Verb = iota
	Get
	Set
	Put
	Patch
	Insert
	Delete
	Move
	Copy
	Ack
	Error
)

func (v Verb) uri() string {
	switch v {
	case Get:
		return registry.VerbGet
	case Set:
		return registry.VerbSet
	case Put:
		return registry.VerbPut
	case Patch:
		return registry.VerbPatch
	case Insert:
		return registry.VerbInsert
	case Delete:
		return registry.VerbDelete
	case Move:
		return registry.VerbMove
	case Copy:
		return registry.VerbCopy
	case Ack:
		return registry.VerbAck
	case Error:
		return registry.VerbError
	default:
		return ""
	}
}

func verbFromURID(reg *registry.Registry, id registry.URID) Verb {
	switch reg.Unmap(id) {
	case registry.VerbGet:
		return Get
	case registry.VerbSet:
		return Set
	case registry.VerbPut:
		return Put
	case registry.VerbPatch:
		return Patch
	case registry.VerbInsert:
		return Insert
	case registry.VerbDelete:
		return Delete
	case registry.VerbMove:
		return Move
	case registry.VerbCopy:
		return Copy
	case registry.VerbAck:
		return Ack
	case registry.VerbError:
		return Error
	default:
		return VerbUnknown
	}
}

// Message is the decoded form of one patch-verb object (spec §6's
// property table, unioned across verbs — only the fields relevant to
// Verb are populated).
type Message struct {
	Verb           Verb
	Subject        registry.URID
	SequenceNumber uint32
	HasSeq         bool
	Property       registry.URID
	Value          []byte // a complete encoded atom, meaningful for Set
	Body           []atom.Property
	Add            []atom.Property
	Remove         []atom.Property
	Destination    registry.URID
}

// Encode writes msg as an Object atom into buf.
func Encode(buf []byte, reg *registry.Registry, msg Message) (int, error) {
	uri := msg.Verb.uri()
	if uri == "" {
		return 0, fmt.Errorf("patch: unknown verb %d", msg.Verb)
	}
	otype := reg.Map(uri)

	var props []atom.Property
	if msg.Subject != registry.None {
		props = append(props, scalarProp(reg, registry.PropSubject, msg.Subject))
	}
	if msg.HasSeq {
		props = append(props, intProp(reg, registry.PropSequenceNumber, int32(msg.SequenceNumber)))
	}
	if msg.Property != registry.None {
		props = append(props, scalarProp(reg, registry.PropProperty, msg.Property))
	}
	if msg.Value != nil {
		props = append(props, atom.Property{Key: reg.Map(registry.PropValue), Value: msg.Value})
	}
	if len(msg.Body) > 0 {
		nested, err := encodeNestedObject(reg, msg.Body)
		if err != nil {
			return 0, err
		}
		props = append(props, atom.Property{Key: reg.Map(registry.PropBody), Value: nested})
	}
	if len(msg.Add) > 0 {
		nested, err := encodeNestedObject(reg, msg.Add)
		if err != nil {
			return 0, err
		}
		props = append(props, atom.Property{Key: reg.Map(registry.PropAdd), Value: nested})
	}
	if len(msg.Remove) > 0 {
		nested, err := encodeNestedObject(reg, msg.Remove)
		if err != nil {
			return 0, err
		}
		props = append(props, atom.Property{Key: reg.Map(registry.PropRemove), Value: nested})
	}
	if msg.Destination != registry.None {
		props = append(props, scalarProp(reg, registry.PropDestination, msg.Destination))
	}

	return atom.PutObject(buf, reg, registry.None, otype, props...)
}

// encodeNestedObject packs an arbitrary property list into its own
// anonymous Object atom, used for patch:Patch's add{}/remove{} blocks
// and patch:Put's body.
func encodeNestedObject(reg *registry.Registry, props []atom.Property) ([]byte, error) {
	scratch := make([]byte, 4096)
	n, err := atom.PutObject(scratch, reg, registry.None, registry.None, props...)
	if err != nil {
		return nil, err
	}
	return scratch[:n], nil
}

func scalarProp(reg *registry.Registry, key string, v registry.URID) atom.Property {
	scratch := make([]byte, 16)
	n, _ := atom.PutURID(scratch, reg, v)
	return atom.Property{Key: reg.Map(key), Value: scratch[:n]}
}

func intProp(reg *registry.Registry, key string, v int32) atom.Property {
	scratch := make([]byte, 16)
	n, _ := atom.PutInt(scratch, reg, v)
	return atom.Property{Key: reg.Map(key), Value: scratch[:n]}
}

// Decode reads one patch-verb Object atom from buf.
func Decode(buf []byte, reg *registry.Registry) (Message, error) {
	_, otype, props, err := atom.ObjectFields(buf)
	if err != nil {
		return Message{}, err
	}
	msg := Message{Verb: verbFromURID(reg, otype)}

	if v := atom.FindProperty(props, reg.Map(registry.PropSubject)); v != nil {
		id, _, _ := atom.GetURID(v)
		msg.Subject = id
	}
	if v := atom.FindProperty(props, reg.Map(registry.PropSequenceNumber)); v != nil {
		n, _, _ := atom.GetInt(v)
		msg.SequenceNumber = uint32(n)
		msg.HasSeq = true
	}
	if v := atom.FindProperty(props, reg.Map(registry.PropProperty)); v != nil {
		id, _, _ := atom.GetURID(v)
		msg.Property = id
	}
	if v := atom.FindProperty(props, reg.Map(registry.PropValue)); v != nil {
		msg.Value = v
	}
	if v := atom.FindProperty(props, reg.Map(registry.PropBody)); v != nil {
		_, _, nested, _ := atom.ObjectFields(v)
		msg.Body = nested
	}
	if v := atom.FindProperty(props, reg.Map(registry.PropAdd)); v != nil {
		_, _, nested, _ := atom.ObjectFields(v)
		msg.Add = nested
	}
	if v := atom.FindProperty(props, reg.Map(registry.PropRemove)); v != nil {
		_, _, nested, _ := atom.ObjectFields(v)
		msg.Remove = nested
	}
	if v := atom.FindProperty(props, reg.Map(registry.PropDestination)); v != nil {
		id, _, _ := atom.GetURID(v)
		msg.Destination = id
	}
	return msg, nil
}
