// Package registry interns URI strings into small integer ids (URIDs),
// the single indirection every other package in this module uses to
// avoid carrying strings onto the audio thread.
package registry

import "sync"

// URID is a small integer identifier for an interned URI. Zero is
// reserved and means "none" — never returned by Map for a real URI.
type URID uint32

// None is the reserved "no id" sentinel.
const None URID = 0

// Well-known URIs. The set mirrors the buckets synthpod's reg_t carries:
// port classes, protocols, patch verbs, log levels and a handful of
// synthpod-private notification types.
const (
	ClassInput   = "synthpod:port:input"
	ClassOutput  = "synthpod:port:output"
	ClassControl = "synthpod:port:control"
	ClassAudio   = "synthpod:port:audio"
	ClassCV      = "synthpod:port:cv"
	ClassAtom    = "synthpod:port:atom"
	ClassSequence = "synthpod:port:sequence"

	ProtocolFloat        = "synthpod:protocol:float"
	ProtocolPeak         = "synthpod:protocol:peak"
	ProtocolAtomTransfer = "synthpod:protocol:atomTransfer"
	ProtocolEventTransfer = "synthpod:protocol:eventTransfer"

	VerbGet    = "patch:Get"
	VerbSet    = "patch:Set"
	VerbPut    = "patch:Put"
	VerbPatch  = "patch:Patch"
	VerbAdd    = "patch:add"
	VerbRemove = "patch:remove"
	VerbCopy   = "patch:Copy"
	VerbMove   = "patch:Move"
	VerbDelete = "patch:Delete"
	VerbInsert = "patch:Insert"
	VerbAck    = "patch:Ack"
	VerbError  = "patch:Error"

	LogEntry   = "log:Entry"
	LogError   = "log:Error"
	LogNote    = "log:Note"
	LogTrace   = "log:Trace"
	LogWarning = "log:Warning"

	UIKindGeneric = "ui:generic"

	UnitHertz    = "unit:hz"
	UnitDecibel  = "unit:db"
	UnitSeconds  = "unit:s"
	UnitNone     = "unit:none"

	// Atom type URIs (spec §6), mirroring LV2's core atom vocabulary.
	URIAtomInt     = "atom:Int"
	URIAtomLong    = "atom:Long"
	URIAtomFloat   = "atom:Float"
	URIAtomDouble  = "atom:Double"
	URIAtomBool    = "atom:Bool"
	URIAtomURID    = "atom:URID"
	URIAtomString  = "atom:String"
	URIAtomPath    = "atom:Path"
	URIAtomURI     = "atom:URI"
	URIAtomChunk   = "atom:Chunk"
	URIAtomLiteral = "atom:Literal"
	URIAtomTuple   = "atom:Tuple"
	URIAtomObject  = "atom:Object"
	URIAtomVector  = "atom:Vector"
	URIAtomSequence = "atom:Sequence"
	URIAtomEvent   = "atom:Event" // one (frames, atom) pair inside a Sequence

	// MIDI atom event type carried inside atom sequences.
	URIMidiEvent = "midi:MidiEvent"

	// Patch-verb object property keys (spec §6).
	PropSubject        = "patch:subject"
	PropSequenceNumber = "patch:sequenceNumber"
	PropProperty       = "patch:property"
	PropValue          = "patch:value"
	PropBody           = "patch:body"
	PropAdd            = "patch:add"
	PropRemove         = "patch:remove"
	PropDestination    = "patch:destination"

	// Port-protocol transfer object property keys (spec §6).
	PropSinkModule = "synthpod:sinkModule"
	PropSinkSymbol = "synthpod:sinkSymbol"
	PropPeriodStart = "synthpod:periodStart"
	PropPeriodSize  = "synthpod:periodSize"
	PropPeak        = "synthpod:peak"
)

var wellKnown = []string{
	ClassInput, ClassOutput, ClassControl, ClassAudio, ClassCV, ClassAtom, ClassSequence,
	ProtocolFloat, ProtocolPeak, ProtocolAtomTransfer, ProtocolEventTransfer,
	VerbGet, VerbSet, VerbPut, VerbPatch, VerbAdd, VerbRemove, VerbCopy, VerbMove,
	VerbDelete, VerbInsert, VerbAck, VerbError,
	LogEntry, LogError, LogNote, LogTrace, LogWarning,
	UIKindGeneric,
	UnitHertz, UnitDecibel, UnitSeconds, UnitNone,
	URIAtomInt, URIAtomLong, URIAtomFloat, URIAtomDouble, URIAtomBool, URIAtomURID,
	URIAtomString, URIAtomPath, URIAtomURI, URIAtomChunk, URIAtomLiteral, URIAtomTuple,
	URIAtomObject, URIAtomVector, URIAtomSequence, URIAtomEvent, URIMidiEvent,
	PropSubject, PropSequenceNumber, PropProperty, PropValue, PropBody, PropAdd,
	PropRemove, PropDestination, PropSinkModule, PropSinkSymbol, PropPeriodStart,
	PropPeriodSize, PropPeak,
}

// Registry is a grow-only URI<->URID map. Inserts are expected only
// before the audio thread starts or from the worker (spec §5); Map and
// Unmap are safe for concurrent readers via RWMutex, matching the
// read-mostly access pattern of the teacher's session device caches.
type Registry struct {
	mu      sync.RWMutex
	byURI   map[string]URID
	byURID  map[URID]string
	nextID  URID
}

// New creates a registry pre-populated with the well-known URI set.
func New() *Registry {
	r := &Registry{
		byURI:  make(map[string]URID, len(wellKnown)*2),
		byURID: make(map[URID]string, len(wellKnown)*2),
		nextID: 1,
	}
	for _, uri := range wellKnown {
		r.Map(uri)
	}
	return r
}

// Map interns uri, returning its existing id or minting a new one.
func (r *Registry) Map(uri string) URID {
	r.mu.RLock()
	if id, ok := r.byURI[uri]; ok {
		r.mu.RUnlock()
		return id
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.byURI[uri]; ok {
		return id
	}
	id := r.nextID
	r.nextID++
	r.byURI[uri] = id
	r.byURID[id] = uri
	return id
}

// Unmap returns the URI borrowed for id, or "" if id is unknown.
// The returned string is owned by the registry and stable for its
// process lifetime.
func (r *Registry) Unmap(id URID) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byURID[id]
}

// Len reports how many URIs have been interned.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byURI)
}
