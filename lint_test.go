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

import "testing"

func TestLintEffectiveSeverityMergesWithFloor(t *testing.T) {
	l := &Lint{MinimumSeverity: SeverityWarning}
	if got := l.EffectiveSeverity(LintConfig{Severity: SeverityNote}); got != SeverityWarning {
		t.Fatalf("want the minimum to win over a lower configured severity, got %v", got)
	}
	if got := l.EffectiveSeverity(LintConfig{Severity: SeverityError}); got != SeverityError {
		t.Fatalf("want a higher configured severity to win over the minimum, got %v", got)
	}
	if got := l.EffectiveSeverity(LintConfig{Severity: SeverityWarning}); got != SeverityWarning {
		t.Fatalf("want an equal configured severity to be kept, got %v", got)
	}
}

func TestLintShouldRunPedanticGating(t *testing.T) {
	nonPedantic := &Lint{Pedantic: false}
	pedantic := &Lint{Pedantic: true}

	if !shouldRun(nonPedantic, LintConfig{Enabled: true}, false) {
		t.Fatalf("want an enabled lint to run regardless of pedantic mode")
	}
	if shouldRun(nonPedantic, LintConfig{Enabled: false}, true) {
		t.Fatalf("want a disabled, non-pedantic-opted-in lint to stay off even under pedantic mode")
	}
	if shouldRun(pedantic, LintConfig{Enabled: false}, false) {
		t.Fatalf("want a disabled pedantic lint to stay off outside pedantic mode")
	}
	if !shouldRun(pedantic, LintConfig{Enabled: false}, true) {
		t.Fatalf("want a disabled pedantic lint to fire once pedantic mode is on")
	}
}

func TestRunConfigLintsC02DuplicateProperty(t *testing.T) {
	src := "class CfgPatches {\n" +
		"\tscope = 1;\n" +
		"\tscope = 2;\n" +
		"};\n"
	cfg, codes := ParseConfig("test.cpp", src)
	if len(codes) != 0 {
		t.Fatalf("unexpected parse diagnostics: %v", codes)
	}
	got := RunConfigLints(nil, nil, nil, cfg, LintData{})
	found := false
	for _, c := range got {
		if c.Ident() == "C02" {
			found = true
		}
	}
	if !found {
		t.Fatalf("want C02 duplicate-property diagnostic, got %v", got)
	}
}

func TestRunConfigLintsC12UnevaluatedExpression(t *testing.T) {
	src := "value = 1 + 2;\n"
	cfg, codes := ParseConfig("test.cpp", src)
	if len(codes) != 0 {
		t.Fatalf("unexpected parse diagnostics: %v", codes)
	}
	got := RunConfigLints(nil, nil, nil, cfg, LintData{})
	found := false
	for _, c := range got {
		if c.Ident() == "C12" {
			found = true
		}
	}
	if !found {
		t.Fatalf("want C12 unevaluated-expression diagnostic, got %v", got)
	}
}

func TestRunConfigLintsC14RedundantArrayAppendIsPedanticOptional(t *testing.T) {
	src := "items[] += {};\n"
	cfg, codes := ParseConfig("test.cpp", src)
	if len(codes) != 0 {
		t.Fatalf("unexpected parse diagnostics: %v", codes)
	}
	got := RunConfigLints(nil, nil, nil, cfg, LintData{})
	found := false
	for _, c := range got {
		if c.Ident() == "C14" {
			found = true
		}
	}
	if !found {
		t.Fatalf("want C14 redundant-array-append diagnostic, got %v", got)
	}
}

func TestRunConfigLintsC07ClassCasingRequiresPedantic(t *testing.T) {
	src := "class myClass {};\n"
	cfg, codes := ParseConfig("test.cpp", src)
	if len(codes) != 0 {
		t.Fatalf("unexpected parse diagnostics: %v", codes)
	}
	withoutPedantic := RunConfigLints(nil, nil, nil, cfg, LintData{Pedantic: false})
	for _, c := range withoutPedantic {
		if c.Ident() == "C07" {
			t.Fatalf("C07 is disabled-by-default and pedantic-only; it must not fire without pedantic mode")
		}
	}
	withPedantic := RunConfigLints(nil, nil, nil, cfg, LintData{Pedantic: true})
	found := false
	for _, c := range withPedantic {
		if c.Ident() == "C07" {
			found = true
		}
	}
	if !found {
		t.Fatalf("want C07 to fire once pedantic mode opts it in")
	}
}

func TestRunScriptLintsS17FormatArgCount(t *testing.T) {
	// format(["%1 %2 says %1", name]) references %2 but only one argument
	// (name) follows the template string.
	arr := Expr{Kind: ExprArray, Elements: []Expr{
		{Kind: ExprString, Str: "%1 %2 says %1"},
		{Kind: ExprVariable, Name: "_name"},
	}}
	call := Expr{Kind: ExprUnary, Name: "format", RHS: &arr}
	stmts := &Statements{Content: []Statement{{Kind: StmtExpression, Expr: call}}}

	codes := RunScriptLints(nil, nil, nil, stmts, LintData{})
	found := false
	for _, c := range codes {
		if c.Ident() == "S17" {
			found = true
		}
	}
	if !found {
		t.Fatalf("want S17 format-arg-count diagnostic, got %v", codes)
	}
}

func TestRunScriptLintsS27CodeAfterExitWith(t *testing.T) {
	// if (true) exitWith {}; hint "unreachable in intent";
	exitWith := Expr{Kind: ExprUnary, Name: "exitWith", RHS: &Expr{Kind: ExprCode, Code: &Statements{}}}
	hintArg := Expr{Kind: ExprString, Str: "unreachable in intent"}
	hintCall := Expr{Kind: ExprUnary, Name: "hint", RHS: &hintArg}
	stmts := &Statements{Content: []Statement{
		{Kind: StmtExpression, Expr: exitWith},
		{Kind: StmtExpression, Expr: hintCall},
	}}

	codes := RunScriptLints(nil, nil, nil, stmts, LintData{})
	found := false
	for _, c := range codes {
		if c.Ident() == "S27" {
			found = true
		}
	}
	if !found {
		t.Fatalf("want S27 code-after-exitWith diagnostic, got %v", codes)
	}

	// A lone exitWith with nothing following must not flag anything.
	lone := &Statements{Content: []Statement{{Kind: StmtExpression, Expr: exitWith}}}
	for _, c := range RunScriptLints(nil, nil, nil, lone, LintData{}) {
		if c.Ident() == "S27" {
			t.Fatalf("want no S27 diagnostic when exitWith is the last statement")
		}
	}
}

func TestRunScriptLintsS36NularCalledAsCode(t *testing.T) {
	// _x call player; -- player is nular, its result is never Code.
	player := Expr{Kind: ExprNular, Name: "player"}
	lhs := Expr{Kind: ExprVariable, Name: "_x"}
	callExpr := Expr{Kind: ExprBinary, Op: "call", LHS: &lhs, RHS: &player}
	stmts := &Statements{Content: []Statement{{Kind: StmtExpression, Expr: callExpr}}}

	codes := RunScriptLints(nil, nil, nil, stmts, LintData{})
	found := false
	for _, c := range codes {
		if c.Ident() == "S36" {
			found = true
		}
	}
	if !found {
		t.Fatalf("want S36 nular-called-as-code diagnostic, got %v", codes)
	}
}

func TestRunScriptLintsS14DeprecatedCommandViaParser(t *testing.T) {
	stmts, codes := ParseSQF("test.sqf", "_x = call {1};")
	if len(codes) != 0 {
		t.Fatalf("unexpected parse diagnostics: %v", codes)
	}
	got := RunScriptLints(nil, nil, nil, stmts, LintData{Pedantic: true})
	found := false
	for _, c := range got {
		if c.Ident() == "S14" {
			found = true
		}
	}
	if !found {
		t.Fatalf("want S14 deprecated-command diagnostic for 'call', got %v", got)
	}
	// Without pedantic mode the disabled-by-default lint must stay silent.
	for _, c := range RunScriptLints(nil, nil, nil, stmts, LintData{Pedantic: false}) {
		if c.Ident() == "S14" {
			t.Fatalf("want S14 to stay off outside pedantic mode")
		}
	}
}
