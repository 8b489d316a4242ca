// Copyright 2015 Google Inc. All rights reserved
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package hemtt

import (
	"context"
	"runtime"
	"sync"

	"github.com/golang/glog"
	"golang.org/x/sync/errgroup"
)

// AddonLocation categorizes where an addon lives within a project.
type AddonLocation int

const (
	LocationAddons AddonLocation = iota
	LocationOptionals
	LocationCompats
)

func (l AddonLocation) String() string {
	switch l {
	case LocationOptionals:
		return "optionals"
	case LocationCompats:
		return "compats"
	default:
		return "addons"
	}
}

// RequiredVersion records a `requiredVersion` entry the rapifier found
// while processing one addon's config, along with where it came from.
type RequiredVersion struct {
	Major, Minor, Patch uint32
	SourcePath          string
	Span                Range
}

// AddonBuildData is the mutable state a module may attach to an Addon
// during a build; currently just the rapifier's requiredVersion capture.
type AddonBuildData struct {
	RequiredVersion *RequiredVersion
}

// Addon is one packable unit: a slash-free name, its location category,
// any project-level config overrides, and build-phase scratch data.
type Addon struct {
	Name            string
	Location        AddonLocation
	ConfigOverrides map[string]string
	BuildData       AddonBuildData
}

// AddonConfigs is the concurrent map of per-addon required-version data
// referenced by spec §5: write-locked during rapify, read-locked during
// every later phase.
type AddonConfigs struct {
	mu   sync.RWMutex
	data map[string]*RequiredVersion
}

// NewAddonConfigs returns an empty AddonConfigs map.
func NewAddonConfigs() *AddonConfigs {
	return &AddonConfigs{data: map[string]*RequiredVersion{}}
}

// Set records addon's required version, taking the write lock itself.
func (a *AddonConfigs) Set(addon string, rv *RequiredVersion) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.data[addon] = rv
}

// Get reads addon's recorded required version, if any.
func (a *AddonConfigs) Get(addon string) (*RequiredVersion, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	rv, ok := a.data[addon]
	return rv, ok
}

// BuildPhase names one of the fixed pipeline stages (spec §4.L).
type BuildPhase int

const (
	PhaseInit BuildPhase = iota
	PhaseCheck
	PhasePreBuild
	PhaseBuild
	PhasePostBuild
	PhasePreRelease
	PhaseRelease
	PhasePostRelease
)

var buildPhaseOrder = []BuildPhase{
	PhaseInit, PhaseCheck, PhasePreBuild, PhaseBuild,
	PhasePostBuild, PhasePreRelease, PhaseRelease, PhasePostRelease,
}

func (p BuildPhase) String() string {
	switch p {
	case PhaseInit:
		return "init"
	case PhaseCheck:
		return "check"
	case PhasePreBuild:
		return "pre_build"
	case PhaseBuild:
		return "build"
	case PhasePostBuild:
		return "post_build"
	case PhasePreRelease:
		return "pre_release"
	case PhaseRelease:
		return "release"
	case PhasePostRelease:
		return "post_release"
	}
	return "unknown"
}

// Report is what a phase handler returns: accumulated diagnostic codes
// plus an optional hard stop.
type Report struct {
	Codes []Code
	Stop  bool
	Cause Code
}

// Merge appends other into r, preserving r's existing Stop if other
// didn't request one.
func (r *Report) Merge(other Report) {
	r.Codes = append(r.Codes, other.Codes...)
	if other.Stop {
		r.Stop = true
		r.Cause = other.Cause
	}
}

// PhaseHandler runs one module's work for one phase over the given
// addons, returning a Report. Handlers that fan out over addons do so
// internally with their own bounded worker pool.
type PhaseHandler func(ctx context.Context, project *ProjectConfig, addons []*Addon, configs *AddonConfigs) Report

// Module declares a name, a priority (higher runs earlier within a
// phase), and the subset of phases it participates in.
type Module struct {
	Name     string
	Priority int
	Handlers map[BuildPhase]PhaseHandler
}

// Executor runs a fixed set of Modules through the eight-phase pipeline,
// halting after the current phase if any Report carries a Fatal code or
// requests a Stop.
type Executor struct {
	Modules       []*Module
	Configs       *AddonConfigs
	WorkerPoolCap int // not read by Run or any other code in this package
}

// NewExecutor returns an Executor with an empty module set and a fresh
// AddonConfigs map.
func NewExecutor() *Executor {
	return &Executor{Configs: NewAddonConfigs()}
}

// Register adds m to the executor's module set.
func (e *Executor) Register(m *Module) { e.Modules = append(e.Modules, m) }

// Run drives every phase in fixed order, sequentially invoking modules
// within a phase in descending priority order, and halts after a phase
// in which any module's Report was Fatal or requested Stop.
func (e *Executor) Run(ctx context.Context, project *ProjectConfig, addons []*Addon) []Code {
	var all []Code
	modules := append([]*Module(nil), e.Modules...)
	sortModulesByPriority(modules)

	for _, phase := range buildPhaseOrder {
		glog.V(1).Infof("hemtt: entering phase %s", phase)
		var phaseReport Report
		for _, m := range modules {
			h, ok := m.Handlers[phase]
			if !ok {
				continue
			}
			r := h(ctx, project, addons, e.Configs)
			phaseReport.Merge(r)
		}
		all = append(all, phaseReport.Codes...)
		if phaseReport.Stop || hasFatal(phaseReport.Codes) {
			glog.Errorf("hemtt: halting after phase %s", phase)
			break
		}
	}
	return all
}

func hasFatal(codes []Code) bool {
	for _, c := range codes {
		if c.Severity() == SeverityFatal {
			return true
		}
	}
	return false
}

func sortModulesByPriority(modules []*Module) {
	for i := 1; i < len(modules); i++ {
		for j := i; j > 0 && modules[j].Priority > modules[j-1].Priority; j-- {
			modules[j], modules[j-1] = modules[j-1], modules[j]
		}
	}
}

// AddonConfigLoader supplies the parsed Config for one addon during the
// rapify phase. The caller owns how the backing file is located and read
// (a Workspace, an in-memory fixture, ...); ok is false when the addon has
// no config to rapify (some addons are data-only).
type AddonConfigLoader func(addon *Addon) (cfg *Config, sourcePath string, ok bool)

// RapifyModule returns a Module that rapifies every addon's config during
// PhaseBuild via load, recording any requiredVersion entry into both the
// addon's BuildData and the executor's shared AddonConfigs map (spec §3's
// "build_data.required_version is set by the rapifier" invariant).
func RapifyModule(load AddonConfigLoader) *Module {
	return &Module{
		Name:     "rapify",
		Priority: 0,
		Handlers: map[BuildPhase]PhaseHandler{
			PhaseBuild: func(ctx context.Context, project *ProjectConfig, addons []*Addon, configs *AddonConfigs) Report {
				codes, _ := ForEachAddon(ctx, addons, 0, func(_ context.Context, a *Addon) []Code {
					cfg, sourcePath, ok := load(a)
					if !ok {
						return nil
					}
					if _, err := RapifyAddon(cfg, a, sourcePath, configs); err != nil {
						return []Code{NewCode("E-RAPIFY", SeverityError, sourcePath, Range{}, err.Error())}
					}
					return nil
				})
				return Report{Codes: codes}
			},
		},
	}
}

// workerPoolSize resolves cap to a usable worker count: cap if positive,
// otherwise GOMAXPROCS.
func workerPoolSize(cap int) int {
	if cap > 0 {
		return cap
	}
	return runtime.GOMAXPROCS(0)
}

// ForEachAddon fans out fn over addons using a bounded errgroup pool of
// size workerPoolSize(poolCap), in the same bounded-parallelism shape as
// the teacher's worker.go. Each addon's state is isolated; fn is
// responsible for using configs' locking when touching shared state.
func ForEachAddon(ctx context.Context, addons []*Addon, poolCap int, fn func(context.Context, *Addon) []Code) ([]Code, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workerPoolSize(poolCap))

	var mu sync.Mutex
	var codes []Code
	for _, a := range addons {
		a := a
		g.Go(func() error {
			cs := fn(gctx, a)
			mu.Lock()
			codes = append(codes, cs...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return codes, err
	}
	return codes, nil
}
