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
	"errors"
	"io/fs"
	"path"
	"strings"
)

// ErrPathNotFound is returned when no layer of a Workspace can resolve a
// path.
var ErrPathNotFound = errors.New("hemtt: path not found in workspace")

// Layer is one searchable root of a Workspace: the project's own source
// tree, its include/ directory, or the build output directory. Layers are
// consulted in registration order; the first hit wins.
type Layer struct {
	Name string
	FS   fs.FS
}

// Workspace is a layered path-lookup abstraction: a path is resolved by
// trying each Layer in order. It also tracks prefix-based virtual roots
// (the `\x\modname\addons\...` convention) so an include target can be
// mapped to a real file regardless of which layer holds it.
type Workspace struct {
	layers   []Layer
	prefixes *PrefixMap
}

// NewWorkspace returns a Workspace with no layers and an empty prefix map.
func NewWorkspace() *Workspace {
	return &Workspace{prefixes: NewPrefixMap()}
}

// AddLayer appends a search layer. Layers added first take precedence.
func (w *Workspace) AddLayer(l Layer) {
	w.layers = append(w.layers, l)
}

// Prefixes returns the workspace's virtual-root prefix map.
func (w *Workspace) Prefixes() *PrefixMap { return w.prefixes }

// Open resolves virtualPath against every layer in order and returns the
// first readable file found.
func (w *Workspace) Open(virtualPath string) (fs.File, error) {
	clean := normalizeVirtual(virtualPath)
	for _, l := range w.layers {
		f, err := l.FS.Open(clean)
		if err == nil {
			return f, nil
		}
	}
	return nil, ErrPathNotFound
}

// ReadFile resolves and reads virtualPath in full.
func (w *Workspace) ReadFile(virtualPath string) ([]byte, error) {
	clean := normalizeVirtual(virtualPath)
	for _, l := range w.layers {
		b, err := fs.ReadFile(l.FS, clean)
		if err == nil {
			return b, nil
		}
	}
	return nil, ErrPathNotFound
}

// normalizeVirtual converts backslashes to slashes and strips a leading
// slash, matching fs.FS's rooted-relative-path convention.
func normalizeVirtual(p string) string {
	p = strings.ReplaceAll(p, `\`, "/")
	p = strings.TrimPrefix(p, "/")
	return path.Clean(p)
}

// PrefixMap maps a virtual root prefix (e.g. "x\modname\addons") to a real
// workspace-relative directory, implementing the include resolver's
// `\x\modname\addons\foo.h` -> workspace-path mapping described in the
// include resolver contract.
type PrefixMap struct {
	entries map[string]string
}

// NewPrefixMap returns an empty PrefixMap.
func NewPrefixMap() *PrefixMap {
	return &PrefixMap{entries: make(map[string]string)}
}

// Register associates virtual root prefix with a real directory path,
// both given in forward-slash form.
func (m *PrefixMap) Register(prefix, real string) {
	m.entries[normalizeVirtual(prefix)] = strings.TrimSuffix(strings.ReplaceAll(real, `\`, "/"), "/")
}

// Resolve rewrites a `\x\...` (or `x\...`) include target through the
// longest matching registered prefix. It returns the rewritten path and
// true if a prefix matched; otherwise the original (normalized) path and
// false, signaling the caller should fall back to the default include/
// search path.
func (m *PrefixMap) Resolve(target string) (string, bool) {
	clean := normalizeVirtual(target)
	clean = strings.TrimPrefix(clean, "x/")
	best := ""
	bestReal := ""
	for prefix, real := range m.entries {
		p := strings.TrimPrefix(prefix, "x/")
		if clean == p || strings.HasPrefix(clean, p+"/") {
			if len(p) > len(best) {
				best, bestReal = p, real
			}
		}
	}
	if best == "" {
		return clean, false
	}
	rest := strings.TrimPrefix(clean, best)
	rest = strings.TrimPrefix(rest, "/")
	if rest == "" {
		return bestReal, true
	}
	return bestReal + "/" + rest, true
}
