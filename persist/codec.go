package persist

import (
	"encoding/json"
	"sort"

	"github.com/shaban/synthpod/atom"
	"github.com/shaban/synthpod/registry"
)

// versionKey/urnKey etc. are the well-known property keys a module's
// encoded Object carries, mirrored from the patch-verb property set
// (registry.Prop*) but scoped to persist's own vocabulary since these
// never cross the UI ring — only ever a file on disk.
const (
	keyVersion     = "synthpod:persist:version"
	keyModules     = "synthpod:persist:modules"
	keyURN         = "synthpod:persist:urn"
	keyURI         = "synthpod:persist:uri"
	keyX           = "synthpod:persist:x"
	keyY           = "synthpod:persist:y"
	keyDisabled    = "synthpod:persist:disabled"
	keyControls    = "synthpod:persist:controls"
	keyConnections = "synthpod:persist:connections"
	keySrcURN      = "synthpod:persist:src-urn"
	keySrcPort     = "synthpod:persist:src-port"
	keyDstURN      = "synthpod:persist:dst-urn"
	keyDstPort     = "synthpod:persist:dst-port"
	keyGain        = "synthpod:persist:gain"
)

// Encode writes snap as a single atom tree (spec §6): an Object
// carrying a version string and a Tuple of per-module Objects, each
// module's controls carried as a nested Object keyed by port symbol.
//
// Grounded on atom.PutObject/atom.PutTuple, the same compound-atom
// building blocks patch.Encode uses for wire messages — this package
// reuses them for on-disk state instead of on-ring messages.
func Encode(reg *registry.Registry, snap Snapshot) ([]byte, error) {
	scratch := make([]byte, 1<<20)

	moduleBlobs := make([][]byte, len(snap.Modules))
	for i, m := range snap.Modules {
		blob, err := encodeModule(reg, m)
		if err != nil {
			return nil, err
		}
		moduleBlobs[i] = blob
	}

	tupleBuf := make([]byte, 1<<20)
	tn, err := atom.PutTuple(tupleBuf, reg, moduleBlobs...)
	if err != nil {
		return nil, err
	}

	connBlobs := make([][]byte, len(snap.Connections))
	for i, c := range snap.Connections {
		blob, err := encodeConnection(reg, c)
		if err != nil {
			return nil, err
		}
		connBlobs[i] = blob
	}
	connTupleBuf := make([]byte, 1<<16)
	ctn, err := atom.PutTuple(connTupleBuf, reg, connBlobs...)
	if err != nil {
		return nil, err
	}

	props := []atom.Property{
		{Key: reg.Map(keyVersion), Value: mustPutString(reg, snap.Version)},
		{Key: reg.Map(keyModules), Value: tupleBuf[:tn]},
		{Key: reg.Map(keyConnections), Value: connTupleBuf[:ctn]},
	}
	n, err := atom.PutObject(scratch, reg, registry.None, reg.Map(keyModules), props...)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, scratch[:n])
	return out, nil
}

// Decode reverses Encode.
func Decode(reg *registry.Registry, buf []byte) (Snapshot, error) {
	_, _, props, err := atom.ObjectFields(buf)
	if err != nil {
		return Snapshot{}, err
	}
	snap := Snapshot{Version: currentVersion}
	if v := atom.FindProperty(props, reg.Map(keyVersion)); v != nil {
		s, _, err := atom.GetString(v)
		if err == nil {
			snap.Version = s
		}
	}
	if v := atom.FindProperty(props, reg.Map(keyModules)); v != nil {
		blobs, err := atom.TupleElements(v)
		if err != nil {
			return Snapshot{}, err
		}
		for _, blob := range blobs {
			ms, err := decodeModule(reg, blob)
			if err != nil {
				return Snapshot{}, err
			}
			snap.Modules = append(snap.Modules, ms)
		}
	}
	if v := atom.FindProperty(props, reg.Map(keyConnections)); v != nil {
		blobs, err := atom.TupleElements(v)
		if err != nil {
			return Snapshot{}, err
		}
		for _, blob := range blobs {
			cs, err := decodeConnection(reg, blob)
			if err != nil {
				return Snapshot{}, err
			}
			snap.Connections = append(snap.Connections, cs)
		}
	}
	return snap, nil
}

func encodeConnection(reg *registry.Registry, c ConnectionState) ([]byte, error) {
	props := []atom.Property{
		{Key: reg.Map(keySrcURN), Value: mustPutString(reg, c.SrcURN)},
		{Key: reg.Map(keySrcPort), Value: mustPutString(reg, c.SrcPort)},
		{Key: reg.Map(keyDstURN), Value: mustPutString(reg, c.DstURN)},
		{Key: reg.Map(keyDstPort), Value: mustPutString(reg, c.DstPort)},
		{Key: reg.Map(keyGain), Value: mustPutFloat(reg, c.Gain)},
	}
	buf := make([]byte, 2048)
	n, err := atom.PutObject(buf, reg, registry.None, reg.Map(keyConnections), props...)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

func decodeConnection(reg *registry.Registry, buf []byte) (ConnectionState, error) {
	_, _, props, err := atom.ObjectFields(buf)
	if err != nil {
		return ConnectionState{}, err
	}
	var c ConnectionState
	if v := atom.FindProperty(props, reg.Map(keySrcURN)); v != nil {
		c.SrcURN, _, _ = atom.GetString(v)
	}
	if v := atom.FindProperty(props, reg.Map(keySrcPort)); v != nil {
		c.SrcPort, _, _ = atom.GetString(v)
	}
	if v := atom.FindProperty(props, reg.Map(keyDstURN)); v != nil {
		c.DstURN, _, _ = atom.GetString(v)
	}
	if v := atom.FindProperty(props, reg.Map(keyDstPort)); v != nil {
		c.DstPort, _, _ = atom.GetString(v)
	}
	if v := atom.FindProperty(props, reg.Map(keyGain)); v != nil {
		c.Gain, _, _ = atom.GetFloat(v)
	}
	return c, nil
}

func encodeModule(reg *registry.Registry, m ModuleState) ([]byte, error) {
	controlKeys := make([]string, 0, len(m.Controls))
	for k := range m.Controls {
		controlKeys = append(controlKeys, k)
	}
	sort.Strings(controlKeys)

	controlProps := make([]atom.Property, 0, len(controlKeys))
	for _, k := range controlKeys {
		controlProps = append(controlProps, atom.Property{
			Key:   reg.Map(k),
			Value: mustPutFloat(reg, m.Controls[k]),
		})
	}
	controlsBuf := make([]byte, 4096)
	cn, err := atom.PutObject(controlsBuf, reg, registry.None, reg.Map(keyControls), controlProps...)
	if err != nil {
		return nil, err
	}

	props := []atom.Property{
		{Key: reg.Map(keyURN), Value: mustPutString(reg, m.URN)},
		{Key: reg.Map(keyURI), Value: mustPutString(reg, m.URI)},
		{Key: reg.Map(keyX), Value: mustPutDouble(reg, m.X)},
		{Key: reg.Map(keyY), Value: mustPutDouble(reg, m.Y)},
		{Key: reg.Map(keyDisabled), Value: mustPutBool(reg, m.Disabled)},
		{Key: reg.Map(keyControls), Value: controlsBuf[:cn]},
	}
	buf := make([]byte, 8192)
	n, err := atom.PutObject(buf, reg, reg.Map(m.URN), reg.Map(keyURI), props...)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

func decodeModule(reg *registry.Registry, buf []byte) (ModuleState, error) {
	_, _, props, err := atom.ObjectFields(buf)
	if err != nil {
		return ModuleState{}, err
	}
	m := ModuleState{Controls: map[string]float32{}}
	if v := atom.FindProperty(props, reg.Map(keyURN)); v != nil {
		m.URN, _, _ = atom.GetString(v)
	}
	if v := atom.FindProperty(props, reg.Map(keyURI)); v != nil {
		m.URI, _, _ = atom.GetString(v)
	}
	if v := atom.FindProperty(props, reg.Map(keyX)); v != nil {
		m.X, _, _ = atom.GetDouble(v)
	}
	if v := atom.FindProperty(props, reg.Map(keyY)); v != nil {
		m.Y, _, _ = atom.GetDouble(v)
	}
	if v := atom.FindProperty(props, reg.Map(keyDisabled)); v != nil {
		m.Disabled, _, _ = atom.GetBool(v)
	}
	if v := atom.FindProperty(props, reg.Map(keyControls)); v != nil {
		_, _, controlProps, err := atom.ObjectFields(v)
		if err == nil {
			for _, cp := range controlProps {
				symbol := reg.Unmap(cp.Key)
				fv, _, err := atom.GetFloat(cp.Value)
				if err == nil {
					m.Controls[symbol] = fv
				}
			}
		}
	}
	return m, nil
}

func mustPutString(reg *registry.Registry, s string) []byte {
	buf := make([]byte, 8+len(s)+8)
	n, _ := atom.PutString(buf, reg, s)
	return buf[:n]
}

func mustPutFloat(reg *registry.Registry, v float32) []byte {
	buf := make([]byte, 16)
	n, _ := atom.PutFloat(buf, reg, v)
	return buf[:n]
}

func mustPutDouble(reg *registry.Registry, v float64) []byte {
	buf := make([]byte, 24)
	n, _ := atom.PutDouble(buf, reg, v)
	return buf[:n]
}

func mustPutBool(reg *registry.Registry, v bool) []byte {
	buf := make([]byte, 16)
	n, _ := atom.PutBool(buf, reg, v)
	return buf[:n]
}

// ToJSON is the demo-CLI convenience codec (SPEC_FULL.md §6: "a JSON
// codec via encoding/json ... explicitly a convenience for the demo,
// not a replacement for the atom-tree hook"), grounded on
// serializer.go's SaveToJSON (MarshalIndent for readability).
func ToJSON(snap Snapshot) ([]byte, error) {
	return json.MarshalIndent(snap, "", "  ")
}

// FromJSON reverses ToJSON.
func FromJSON(data []byte) (Snapshot, error) {
	var snap Snapshot
	err := json.Unmarshal(data, &snap)
	return snap, err
}
