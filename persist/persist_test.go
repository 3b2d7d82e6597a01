package persist

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shaban/synthpod/catalog"
	"github.com/shaban/synthpod/module"
	"github.com/shaban/synthpod/registry"
)

func buildTestVector(t *testing.T) (*module.Vector, *module.Module) {
	t.Helper()
	cat := catalog.NewStatic()
	catalog.RegisterBuiltins(cat)
	mgr := module.NewManager(cat, 48000, 64, 256, catalog.Features{})
	mod, err := mgr.Build(context.Background(), "synthpod:gain")
	require.NoError(t, err)
	v := module.NewVector()
	require.NoError(t, v.Insert(mod))
	module.BindModuleID(mod)
	return v, mod
}

func TestCaptureRoundTripsControlValues(t *testing.T) {
	v, mod := buildTestVector(t)
	gain := mod.PortBySymbol("gain")
	require.NotNil(t, gain, "synthpod:gain has no gain port")
	gain.Control.Value = 0.25
	gain.Buffer.Control[0] = 0.25

	ms := Capture(mod)
	require.Equal(t, float32(0.25), ms.Controls["gain"])

	gain.Control.Value = 1.0
	require.NoError(t, Apply(v, ms))
	require.Equal(t, float32(0.25), gain.Control.Value)
	require.Equal(t, float32(0.25), gain.Buffer.Control[0])
}

func TestApplyReportsMissingModule(t *testing.T) {
	v, _ := buildTestVector(t)
	err := Apply(v, ModuleState{URN: "not-present"})
	require.IsType(t, ErrModuleNotFound{}, err)
}

func TestAtomEncodeDecodeRoundTrip(t *testing.T) {
	reg := registry.New()
	snap := Snapshot{
		Version: "1",
		Modules: []ModuleState{
			{URN: "mod-a", URI: "synthpod:gain", X: 10, Y: 20, Disabled: false, Controls: map[string]float32{"gain": 0.5}},
			{URN: "mod-b", URI: "sys:audio_out", X: 0, Y: 0, Disabled: true, Controls: map[string]float32{}},
		},
	}

	blob, err := Encode(reg, snap)
	require.NoError(t, err)
	got, err := Decode(reg, blob)
	require.NoError(t, err)
	require.Len(t, got.Modules, 2)
	require.Equal(t, "mod-a", got.Modules[0].URN)
	require.Equal(t, float32(0.5), got.Modules[0].Controls["gain"])
	require.True(t, got.Modules[1].Disabled)
}

func TestJSONRoundTrip(t *testing.T) {
	snap := Snapshot{Version: "1", Modules: []ModuleState{
		{URN: "x", URI: "synthpod:gain", Controls: map[string]float32{"gain": 0.75}},
	}}
	data, err := ToJSON(snap)
	require.NoError(t, err)
	got, err := FromJSON(data)
	require.NoError(t, err)
	require.Equal(t, float32(0.75), got.Modules[0].Controls["gain"])
}

func TestStoreSaveLoadPresetRoundTrip(t *testing.T) {
	v, mod := buildTestVector(t)
	reg := registry.New()
	store := NewStore(v, reg)
	subject := reg.Map(mod.URN)

	gain := mod.PortBySymbol("gain")
	gain.Control.Value = 0.33
	gain.Buffer.Control[0] = 0.33

	path := filepath.Join(t.TempDir(), "preset.bin")
	require.NoError(t, store.SavePreset(path, uint32(subject)))

	gain.Control.Value = 1.0
	require.NoError(t, store.LoadPreset(path, uint32(subject)))
	require.Equal(t, float32(0.33), gain.Control.Value)
}

func TestStoreSaveLoadBundleRoundTrip(t *testing.T) {
	v, mod := buildTestVector(t)
	reg := registry.New()
	store := NewStore(v, reg)

	gain := mod.PortBySymbol("gain")
	gain.Control.Value = 0.1
	gain.Buffer.Control[0] = 0.1

	dir := t.TempDir()
	path := filepath.Join(dir, "bundle.bin")
	require.NoError(t, store.SaveBundle(path))

	gain.Control.Value = 0.9
	require.NoError(t, store.LoadBundle(path))
	require.Equal(t, float32(0.1), gain.Control.Value)
}

func TestLoadBundleMissingFileErrors(t *testing.T) {
	v, _ := buildTestVector(t)
	reg := registry.New()
	store := NewStore(v, reg)
	err := store.LoadBundle(filepath.Join(os.TempDir(), "does-not-exist-12345.bin"))
	require.Error(t, err)
}
