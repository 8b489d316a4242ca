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

import "sort"

// LintConfig is one lint's configuration: its DefaultConfig, or a
// project-level override that replaces that default whole at invocation
// time.
type LintConfig struct {
	Enabled  bool
	Severity Severity
	Options  map[string]string
}

// LintData is the ambient context passed to every Runner: the addon
// currently being walked plus a handle to the command database used by
// script lints that need to recognize named commands.
type LintData struct {
	Addon     *Addon
	Commands  map[string]*commandInfo
	Pedantic  bool
}

// Runner inspects one AST node (of whatever concrete type the lint
// targets) and returns zero or more Codes. node is passed as interface{}
// because config lints walk *Class/*Entry/*Value and script lints walk
// *Statement/*Expr — a single Runner signature covers both families.
type Runner func(project *ProjectConfig, cfg LintConfig, processed *Processed, node interface{}, data LintData) []Code

// Lint is one registered diagnostic rule (spec §4.K).
type Lint struct {
	Ident           string
	Sort            string
	Description     string
	Documentation   string
	DefaultConfig   LintConfig
	MinimumSeverity Severity
	Pedantic        bool
	Runners         []Runner
}

// lintRegistry holds every Lint registered via RegisterLint, in the same
// package-level-map-plus-init() shape as sqf_commands.go's commandDB.
var lintRegistry = map[string]*Lint{}

// RegisterLint adds l to the registry, keyed by its Ident. Re-registering
// the same Ident overwrites the previous entry, which is only expected to
// happen in tests.
func RegisterLint(l *Lint) { lintRegistry[l.Ident] = l }

// Lints returns every registered lint, sorted by Sort key for stable
// listing/documentation output.
func Lints() []*Lint {
	out := make([]*Lint, 0, len(lintRegistry))
	for _, l := range lintRegistry {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sort < out[j].Sort })
	return out
}

// EffectiveSeverity merges a project override with l's floor: the higher
// (per Severity's least-to-most-severe ordering) of the configured
// severity and the lint's minimum.
func (l *Lint) EffectiveSeverity(cfg LintConfig) Severity {
	if cfg.Severity > l.MinimumSeverity {
		return cfg.Severity
	}
	return l.MinimumSeverity
}

// effectiveConfig returns the project override for l.Ident, whole, when
// one exists, and l.DefaultConfig otherwise; the fields of the two are not
// merged.
func effectiveConfig(l *Lint, overrides map[string]LintConfig) LintConfig {
	if c, ok := overrides[l.Ident]; ok {
		return c
	}
	return l.DefaultConfig
}

// shouldRun reports whether l fires given its effective config and the
// pedantic flag: disabled lints are skipped unless pedantic mode is on
// and the lint opted in.
func shouldRun(l *Lint, cfg LintConfig, pedantic bool) bool {
	if cfg.Enabled {
		return true
	}
	return pedantic && l.Pedantic
}

// RunConfigLints walks cfg's class tree, invoking every registered lint
// whose Runner accepts config AST node types.
func RunConfigLints(project *ProjectConfig, overrides map[string]LintConfig, processed *Processed, cfg *Config, data LintData) []Code {
	var codes []Code
	var walkClass func(c *Class)
	visit := func(node interface{}) {
		for _, l := range Lints() {
			lc := effectiveConfig(l, overrides)
			if !shouldRun(l, lc, data.Pedantic) {
				continue
			}
			lc.Severity = l.EffectiveSeverity(lc)
			for _, r := range l.Runners {
				codes = append(codes, r(project, lc, processed, node, data)...)
			}
		}
	}
	walkClass = func(c *Class) {
		visit(c)
		for _, p := range c.Props {
			visit(&p)
			if p.Kind == PropEntry {
				visit(p.Entry)
			}
			if p.Kind == PropClass && p.Class.Kind == ClassLocal {
				walkClass(p.Class)
			}
		}
	}
	root := &Class{Kind: ClassRoot, Props: cfg.Properties}
	walkClass(root)
	return codes
}

// RunScriptLints walks stmts, invoking every registered lint whose Runner
// accepts script AST node types.
func RunScriptLints(project *ProjectConfig, overrides map[string]LintConfig, processed *Processed, stmts *Statements, data LintData) []Code {
	var codes []Code
	visit := func(node interface{}) {
		for _, l := range Lints() {
			lc := effectiveConfig(l, overrides)
			if !shouldRun(l, lc, data.Pedantic) {
				continue
			}
			lc.Severity = l.EffectiveSeverity(lc)
			for _, r := range l.Runners {
				codes = append(codes, r(project, lc, processed, node, data)...)
			}
		}
	}
	var walkExpr func(e *Expr)
	walkExpr = func(e *Expr) {
		if e == nil {
			return
		}
		visit(e)
		switch e.Kind {
		case ExprCode:
			visit(e.Code)
			for i := range e.Code.Content {
				visitStmt(e.Code.Content[i], visit, walkExpr)
			}
		case ExprArray:
			for i := range e.Elements {
				walkExpr(&e.Elements[i])
			}
		case ExprUnary:
			walkExpr(e.RHS)
		case ExprBinary:
			walkExpr(e.LHS)
			walkExpr(e.RHS)
		}
	}
	visit(stmts)
	for i := range stmts.Content {
		visitStmt(stmts.Content[i], visit, walkExpr)
	}
	return codes
}

func visitStmt(s Statement, visit func(interface{}), walkExpr func(*Expr)) {
	visit(&s)
	walkExpr(&s.Expr)
}
