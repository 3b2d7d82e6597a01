// Package persist implements the save/load state hooks from spec §6:
// "opaque to the core... emits/consumes a complete graph state as a
// single in-memory atom tree". A Snapshot captures every module's
// identity, UI position, bypass flag, and control-port values; Store
// applies a Snapshot back onto a live module.Vector and implements the
// worker package's Persister interface for the PRESET_*/BUNDLE_* jobs.
//
// Grounded on serializer.go's EngineState/Serializer (GetState walks
// live channels into a plain struct, SetState walks it back),
// generalized from per-channel audio config to per-module control
// values, and from "whole engine" to "whole graph or one module"
// depending on whether the caller targets a preset or a bundle.
package persist

// ModuleState is one module's persisted state (spec §6: module
// identity plus the subset of Module/Port fields that matter across a
// save/load round trip — the plugin class, UI placement, bypass flag,
// and every control port's current value).
type ModuleState struct {
	URN      string             `json:"urn"`
	URI      string             `json:"uri"`
	X        float64            `json:"x"`
	Y        float64            `json:"y"`
	Disabled bool               `json:"disabled"`
	Controls map[string]float32 `json:"controls"`
}

// ConnectionState names one edge of the graph by (module urn, port
// symbol) on each end rather than by (ModuleID, Index): IDs are
// reassigned on every load, but urn/symbol pairs are stable across a
// save/clear/load cycle (spec §8 invariant 10: "same connections").
type ConnectionState struct {
	SrcURN  string  `json:"src_urn"`
	SrcPort string  `json:"src_port"`
	DstURN  string  `json:"dst_urn"`
	DstPort string  `json:"dst_port"`
	Gain    float32 `json:"gain"`
}

// Snapshot is the full saved-state tree for a bundle (spec §6). A
// preset is the degenerate one-module case and carries no connections.
type Snapshot struct {
	Version     string            `json:"version"`
	Modules     []ModuleState     `json:"modules"`
	Connections []ConnectionState `json:"connections,omitempty"`
}

// currentVersion is the snapshot format version (serializer.go's
// EngineState.Version pattern, spec gives no format version of its
// own so this package defines one for forward compatibility).
const currentVersion = "1"
