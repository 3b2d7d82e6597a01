package persist

import (
	"fmt"
	"os"

	"github.com/shaban/synthpod/module"
	"github.com/shaban/synthpod/port"
	"github.com/shaban/synthpod/registry"
)

// Store captures/applies Snapshots against a live module vector and
// implements the worker package's Persister interface by reading and
// writing the atom-tree encoding to disk.
//
// Grounded on serializer.go's Serializer (holds *Engine, exposes
// GetState/SetState against it) generalized from one fixed engine to
// whatever module.Vector the app wires in.
type Store struct {
	Vector   *module.Vector
	Registry *registry.Registry
}

// NewStore creates a persist store bound to v and reg.
func NewStore(v *module.Vector, reg *registry.Registry) *Store {
	return &Store{Vector: v, Registry: reg}
}

// Capture builds a ModuleState from mod's current control values
// (spec §6 save: "emits...a single in-memory atom tree").
func Capture(mod *module.Module) ModuleState {
	ms := ModuleState{
		URN:      mod.URN,
		URI:      mod.URI,
		X:        mod.Position.X,
		Y:        mod.Position.Y,
		Disabled: mod.Disabled,
		Controls: map[string]float32{},
	}
	for _, p := range mod.Ports {
		if p.Type == port.TypeControl {
			ms.Controls[p.Symbol] = p.Control.Value
		}
	}
	return ms
}

// CaptureAll builds a Snapshot of every module currently in v, plus
// every edge between them (spec §8 invariant 10).
func CaptureAll(v *module.Vector) Snapshot {
	all := v.All()
	snap := Snapshot{Version: currentVersion, Modules: make([]ModuleState, len(all))}
	for i, mod := range all {
		snap.Modules[i] = Capture(mod)
	}
	snap.Connections = captureConnections(v)
	return snap
}

// captureConnections walks every sink port's Connectable and records
// each source by (urn, symbol) rather than the live (ModuleID, Index)
// pair, since IDs don't survive a reload.
func captureConnections(v *module.Vector) []ConnectionState {
	var out []ConnectionState
	for _, dst := range v.All() {
		for _, dp := range dst.Ports {
			if !dp.IsSink() {
				continue
			}
			for i := 0; i < dp.Connectable.Count; i++ {
				src := dp.Connectable.Sources[i]
				srcMod, _, ok := v.ByID(src.Endpoint.Module)
				if !ok {
					continue
				}
				srcPort := portByIndex(srcMod, src.Endpoint.Index)
				if srcPort == nil {
					continue
				}
				out = append(out, ConnectionState{
					SrcURN:  srcMod.URN,
					SrcPort: srcPort.Symbol,
					DstURN:  dst.URN,
					DstPort: dp.Symbol,
					Gain:    src.Gain,
				})
			}
		}
	}
	return out
}

func portByIndex(mod *module.Module, idx port.Index) *port.Port {
	for _, p := range mod.Ports {
		if p.Index == idx {
			return p
		}
	}
	return nil
}

// ErrModuleNotFound is returned by Apply when a ModuleState's urn has
// no matching live module (spec §7: catalog/module errors become
// status codes, never a synchronous panic on the audio thread — the
// caller, running off-thread in the worker, can surface this as a
// failed-reply status).
type ErrModuleNotFound struct{ URN string }

func (e ErrModuleNotFound) Error() string {
	return fmt.Sprintf("persist: no live module with urn %q", e.URN)
}

// Apply restores ms onto the live module in v with the same urn. Only
// control values, position and the disabled flag are restored — the
// module itself must already exist (created via the worker's
// MODULE_ADD path); persist never instantiates plugins.
func Apply(v *module.Vector, ms ModuleState) error {
	for _, mod := range v.All() {
		if mod.URN != ms.URN {
			continue
		}
		mod.Position.X, mod.Position.Y = ms.X, ms.Y
		mod.Disabled = ms.Disabled
		for _, p := range mod.Ports {
			if p.Type != port.TypeControl {
				continue
			}
			if val, ok := ms.Controls[p.Symbol]; ok {
				p.Control.Value = val
				if p.Buffer.Control != nil {
					p.Buffer.Control[0] = val
				}
			}
		}
		return nil
	}
	return ErrModuleNotFound{URN: ms.URN}
}

// ApplyAll restores every module in snap found live in v, collecting
// (not failing fast on) any modules the snapshot names but the vector
// doesn't currently hold — those are the bundle-reconciliation cases
// the app layer resolves by issuing MODULE_ADD jobs first.
func ApplyAll(v *module.Vector, snap Snapshot) []error {
	var errs []error
	for _, ms := range snap.Modules {
		if err := Apply(v, ms); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// ApplyConnections restores every edge in snap onto v's live modules,
// resolving each end by (urn, symbol) (spec §8 invariant 10). Edges
// naming a urn or symbol the vector doesn't currently carry are
// collected, not fatal, for the same reconciliation reason ApplyAll
// defers missing modules to the app layer.
func ApplyConnections(v *module.Vector, snap Snapshot) []error {
	var errs []error
	for _, cs := range snap.Connections {
		srcMod, ok := findModuleByURN(v, cs.SrcURN)
		if !ok {
			errs = append(errs, ErrModuleNotFound{URN: cs.SrcURN})
			continue
		}
		dstMod, ok := findModuleByURN(v, cs.DstURN)
		if !ok {
			errs = append(errs, ErrModuleNotFound{URN: cs.DstURN})
			continue
		}
		srcPort := srcMod.PortBySymbol(cs.SrcPort)
		dstPort := dstMod.PortBySymbol(cs.DstPort)
		if srcPort == nil || dstPort == nil {
			errs = append(errs, fmt.Errorf("persist: connection %s:%s -> %s:%s names an unknown port",
				cs.SrcURN, cs.SrcPort, cs.DstURN, cs.DstPort))
			continue
		}
		ep := port.Endpoint{Module: srcMod.ID, Index: srcPort.Index}
		if dstPort.Connectable.IndexOf(ep) >= 0 {
			continue
		}
		if _, err := dstPort.Connectable.Append(ep, cs.Gain); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func findModuleByURN(v *module.Vector, urn string) (*module.Module, bool) {
	for _, mod := range v.All() {
		if mod.URN == urn {
			return mod, true
		}
	}
	return nil, false
}

func (s *Store) findByURN(urn string) (*module.Module, bool) {
	for _, mod := range s.Vector.All() {
		if mod.URN == urn {
			return mod, true
		}
	}
	return nil, false
}

// SavePreset implements worker.Persister (spec §4.8 PRESET_SAVE):
// subject is the module's urn, interned in Registry by whatever code
// minted the patch.Message that carried it.
func (s *Store) SavePreset(path string, subject uint32) error {
	urn := s.Registry.Unmap(registry.URID(subject))
	mod, ok := s.findByURN(urn)
	if !ok {
		return ErrModuleNotFound{URN: urn}
	}
	blob, err := Encode(s.Registry, Snapshot{Version: currentVersion, Modules: []ModuleState{Capture(mod)}})
	if err != nil {
		return err
	}
	return os.WriteFile(path, blob, 0o644)
}

// LoadPreset implements worker.Persister (spec §4.8 PRESET_LOAD).
func (s *Store) LoadPreset(path string, subject uint32) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	snap, err := Decode(s.Registry, data)
	if err != nil {
		return err
	}
	if len(snap.Modules) == 0 {
		return fmt.Errorf("persist: preset file %s carries no module state", path)
	}
	return Apply(s.Vector, snap.Modules[0])
}

// SaveBundle implements worker.Persister (spec §4.8 BUNDLE_SAVE): the
// whole graph's state.
func (s *Store) SaveBundle(path string) error {
	blob, err := Encode(s.Registry, CaptureAll(s.Vector))
	if err != nil {
		return err
	}
	return os.WriteFile(path, blob, 0o644)
}

// LoadBundle implements worker.Persister (spec §4.8 BUNDLE_LOAD).
// Returns an I/O or decode error, or else the first error ApplyAll
// reports (e.g. a module the snapshot names but the vector doesn't
// hold), in which case connections are not applied; otherwise the first
// error ApplyConnections reports. Modules that were found keep the
// state ApplyAll restored onto them.
func (s *Store) LoadBundle(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	snap, err := Decode(s.Registry, data)
	if err != nil {
		return err
	}
	if errs := ApplyAll(s.Vector, snap); len(errs) > 0 {
		return errs[0]
	}
	if errs := ApplyConnections(s.Vector, snap); len(errs) > 0 {
		return errs[0]
	}
	return nil
}
