// Package worker implements the worker bridge (spec §4.8): a single
// goroutine parked on a buffered channel, woken whenever the audio
// thread hands it a job, dispatching by job type to the handler that
// does the actual (possibly blocking) work off the real-time path.
//
// Grounded on session.go's processPluginRequests/handlePluginRequest
// pair (a buffered request channel drained by one goroutine that fans
// each request out with `go s.handlePluginRequest(request)`) and
// dispatcher.go's OperationType-keyed executeOperation switch,
// generalized from macaudio's topology operations to synthpod's
// module/preset/bundle/drain job set.
package worker

import (
	"github.com/shaban/synthpod/module"
	"github.com/shaban/synthpod/registry"
)

// JobType identifies a worker-bound request (spec §4.8's
// JOB_TYPE_REQUEST_* table).
type JobType int

const (
	JobUnknown JobType = iota
	ModuleSupported
	ModuleAdd
	ModuleDel
	PresetLoad
	PresetSave
	BundleLoad
	BundleSave
	Drain
)

func (j JobType) String() string {
	switch j {
	case ModuleSupported:
		return "MODULE_SUPPORTED"
	case ModuleAdd:
		return "MODULE_ADD"
	case ModuleDel:
		return "MODULE_DEL"
	case PresetLoad:
		return "PRESET_LOAD"
	case PresetSave:
		return "PRESET_SAVE"
	case BundleLoad:
		return "BUNDLE_LOAD"
	case BundleSave:
		return "BUNDLE_SAVE"
	case Drain:
		return "DRAIN"
	default:
		return "UNKNOWN"
	}
}

// Job is one request handed from the audio thread to the worker
// (spec §4.8). Only the fields relevant to Type are populated; Reply
// is always non-nil and buffered by 1 so the caller never blocks
// posting the completed Job back.
type Job struct {
	Type JobType

	URI    string         // ModuleSupported, ModuleAdd
	Target *module.Module // ModuleDel: the module to deactivate

	Subject registry.URID // PresetLoad/Save, BundleLoad/Save: module or bundle subject
	Path    string        // PresetLoad/Save, BundleLoad/Save: disk path

	Reply chan Result
}

// Result is a worker reply (spec §4.8: "reply with bool" / "reply with
// module pointer" / "success/failure carried in reply status").
type Result struct {
	Status bool
	Error  error

	Module *module.Module // ModuleAdd success
	URN    string         // ModuleDel: the urn of the freed module
}

func newJob(t JobType) Job {
	return Job{Type: t, Reply: make(chan Result, 1)}
}

// NewModuleSupportedJob asks whether uri is instantiable.
func NewModuleSupportedJob(uri string) Job {
	j := newJob(ModuleSupported)
	j.URI = uri
	return j
}

// NewModuleAddJob requests instantiation of uri.
func NewModuleAddJob(uri string) Job {
	j := newJob(ModuleAdd)
	j.URI = uri
	return j
}

// NewModuleDelJob requests deactivation of mod (spec §4.2 del phase ②:
// by the time this job runs, mod has already been disconnected and
// dropped from the vector on the audio thread).
func NewModuleDelJob(mod *module.Module) Job {
	j := newJob(ModuleDel)
	j.Target = mod
	return j
}

// NewPresetLoadJob requests restoring subject's state from path.
func NewPresetLoadJob(path string, subject registry.URID) Job {
	j := newJob(PresetLoad)
	j.Path, j.Subject = path, subject
	return j
}

// NewPresetSaveJob requests writing subject's state to path.
func NewPresetSaveJob(path string, subject registry.URID) Job {
	j := newJob(PresetSave)
	j.Path, j.Subject = path, subject
	return j
}

// NewBundleLoadJob requests restoring the whole graph from path.
func NewBundleLoadJob(path string) Job {
	j := newJob(BundleLoad)
	j.Path = path
	return j
}

// NewBundleSaveJob requests writing the whole graph to path.
func NewBundleSaveJob(path string) Job {
	j := newJob(BundleSave)
	j.Path = path
	return j
}

// NewDrainJob acknowledges a router DRAIN request.
func NewDrainJob() Job { return newJob(Drain) }
