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
	"sync"
	"testing"
)

func recordingHandler(mu *sync.Mutex, order *[]string, label string, report Report) PhaseHandler {
	return func(ctx context.Context, project *ProjectConfig, addons []*Addon, configs *AddonConfigs) Report {
		mu.Lock()
		*order = append(*order, label)
		mu.Unlock()
		return report
	}
}

func TestBuildExecutorHaltsAfterFatalPhase(t *testing.T) {
	var mu sync.Mutex
	var order []string

	fatalCode := NewCode("X99", SeverityFatal, "", Range{}, "boom")
	e := NewExecutor()
	e.Register(&Module{
		Name: "init", Priority: 0,
		Handlers: map[BuildPhase]PhaseHandler{
			PhaseInit: recordingHandler(&mu, &order, "init", Report{}),
		},
	})
	e.Register(&Module{
		Name: "check", Priority: 0,
		Handlers: map[BuildPhase]PhaseHandler{
			PhaseCheck: recordingHandler(&mu, &order, "check", Report{Codes: []Code{fatalCode}}),
		},
	})
	e.Register(&Module{
		Name: "prebuild", Priority: 0,
		Handlers: map[BuildPhase]PhaseHandler{
			PhasePreBuild: recordingHandler(&mu, &order, "prebuild", Report{}),
		},
	})

	codes := e.Run(context.Background(), &ProjectConfig{}, nil)

	if len(order) != 2 || order[0] != "init" || order[1] != "check" {
		t.Fatalf("want [init check], got %v", order)
	}
	found := false
	for _, c := range codes {
		if c.Ident() == "X99" {
			found = true
		}
	}
	if !found {
		t.Fatalf("want the fatal code surfaced in the executor's returned codes, got %v", codes)
	}
}

func TestBuildExecutorHaltsOnExplicitStopWithoutFatal(t *testing.T) {
	var mu sync.Mutex
	var order []string

	e := NewExecutor()
	e.Register(&Module{
		Name: "check", Priority: 0,
		Handlers: map[BuildPhase]PhaseHandler{
			PhaseCheck: recordingHandler(&mu, &order, "check", Report{Stop: true}),
		},
	})
	e.Register(&Module{
		Name: "prebuild", Priority: 0,
		Handlers: map[BuildPhase]PhaseHandler{
			PhasePreBuild: recordingHandler(&mu, &order, "prebuild", Report{}),
		},
	})

	e.Run(context.Background(), &ProjectConfig{}, nil)

	if len(order) != 1 || order[0] != "check" {
		t.Fatalf("want a Stop report (no Fatal code) to halt the executor too, got order %v", order)
	}
}

func TestBuildExecutorRunsAllEightPhasesWhenNothingHalts(t *testing.T) {
	var mu sync.Mutex
	var order []string

	e := NewExecutor()
	handlers := map[BuildPhase]PhaseHandler{}
	for i, phase := range buildPhaseOrder {
		label := phase.String()
		handlers[buildPhaseOrder[i]] = recordingHandler(&mu, &order, label, Report{})
	}
	e.Register(&Module{Name: "all", Priority: 0, Handlers: handlers})

	e.Run(context.Background(), &ProjectConfig{}, nil)

	if len(order) != len(buildPhaseOrder) {
		t.Fatalf("want all %d phases to run, got %d: %v", len(buildPhaseOrder), len(order), order)
	}
	for i, phase := range buildPhaseOrder {
		if order[i] != phase.String() {
			t.Fatalf("phase %d: want %s, got %s", i, phase.String(), order[i])
		}
	}
}

func TestBuildExecutorPriorityOrderWithinPhase(t *testing.T) {
	var mu sync.Mutex
	var order []string

	e := NewExecutor()
	e.Register(&Module{
		Name: "low", Priority: 1,
		Handlers: map[BuildPhase]PhaseHandler{
			PhaseInit: recordingHandler(&mu, &order, "low", Report{}),
		},
	})
	e.Register(&Module{
		Name: "high", Priority: 10,
		Handlers: map[BuildPhase]PhaseHandler{
			PhaseInit: recordingHandler(&mu, &order, "high", Report{}),
		},
	})
	e.Register(&Module{
		Name: "mid", Priority: 5,
		Handlers: map[BuildPhase]PhaseHandler{
			PhaseInit: recordingHandler(&mu, &order, "mid", Report{}),
		},
	})

	e.Run(context.Background(), &ProjectConfig{}, nil)

	want := []string{"high", "mid", "low"}
	if len(order) != len(want) {
		t.Fatalf("want %v, got %v", want, order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("want priority-descending order %v, got %v", want, order)
		}
	}
}

func TestAddonConfigsConcurrentSetGet(t *testing.T) {
	configs := NewAddonConfigs()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			name := "addon"
			_ = i
			configs.Set(name, &RequiredVersion{Major: uint32(i)})
		}()
	}
	wg.Wait()

	rv, ok := configs.Get("addon")
	if !ok || rv == nil {
		t.Fatalf("want a recorded RequiredVersion for addon")
	}
	if _, ok := configs.Get("missing"); ok {
		t.Fatalf("want no entry for an addon that was never Set")
	}
}

func TestForEachAddonFanOut(t *testing.T) {
	addons := []*Addon{
		{Name: "a"},
		{Name: "b"},
		{Name: "c"},
	}
	codes, err := ForEachAddon(context.Background(), addons, 2, func(ctx context.Context, a *Addon) []Code {
		return []Code{NewCode("FE", SeverityNote, a.Name, Range{}, "visited "+a.Name)}
	})
	if err != nil {
		t.Fatalf("ForEachAddon: %v", err)
	}
	if len(codes) != len(addons) {
		t.Fatalf("want %d codes, one per addon, got %d: %v", len(addons), len(codes), codes)
	}
	seen := map[string]bool{}
	for _, c := range codes {
		seen[c.Diagnostic().Primary.Path] = true
	}
	for _, a := range addons {
		if !seen[a.Name] {
			t.Fatalf("want addon %q to have been visited, got %v", a.Name, codes)
		}
	}
}
