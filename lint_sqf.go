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

import "strings"

func init() {
	RegisterLint(lintS01UndefinedCommand())
	RegisterLint(lintS05LowerCamelPrivate())
	RegisterLint(lintS14DeprecatedCommand())
	RegisterLint(lintS17FormatArgCount())
	RegisterLint(lintS27CodeAfterExitWith())
	RegisterLint(lintS36NularCalledAsCode())
}

// lintS01UndefinedCommand flags a bare variable reference whose name
// isn't a local/global variable convention (starts with '_' for locals
// or is otherwise unadorned) and also isn't a known command — a common
// symptom of a misspelled command name that the parser happily accepted
// as ExprVariable.
func lintS01UndefinedCommand() *Lint {
	return &Lint{
		Ident:           "S01",
		Sort:            "sqf/s01",
		Description:     "identifier is neither a known command nor a conventionally named variable",
		Documentation:   "An identifier used in expression position resolved to a bare variable reference, but its name matches no registered command and doesn't follow local (_x) or a recognizable global naming convention.",
		DefaultConfig:   LintConfig{Enabled: false, Severity: SeverityWarning},
		MinimumSeverity: SeverityNote,
		Pedantic:        true,
		Runners: []Runner{
			func(project *ProjectConfig, cfg LintConfig, processed *Processed, node interface{}, data LintData) []Code {
				e, ok := node.(*Expr)
				if !ok || e.Kind != ExprVariable {
					return nil
				}
				if strings.HasPrefix(e.Name, "_") {
					return nil
				}
				if _, known := lookupCommand(e.Name); known {
					return nil
				}
				return []Code{NewCode("S01", cfg.Severity, addonPath(data), e.Span,
					"\""+e.Name+"\" is not a known command and does not look like a local variable")}
			},
		},
	}
}

// lintS05LowerCamelPrivate flags a `private` assignment whose variable
// name starts with an uppercase letter — the convention is lowerCamelCase
// for locals.
func lintS05LowerCamelPrivate() *Lint {
	return &Lint{
		Ident:           "S05",
		Sort:            "sqf/s05",
		Description:     "private variable name should start with a lowercase letter",
		Documentation:   "Stylistic: local variables conventionally start with a lowercase letter after the leading underscore.",
		DefaultConfig:   LintConfig{Enabled: false, Severity: SeverityHelp},
		MinimumSeverity: SeverityHelp,
		Pedantic:        true,
		Runners: []Runner{
			func(project *ProjectConfig, cfg LintConfig, processed *Processed, node interface{}, data LintData) []Code {
				s, ok := node.(*Statement)
				if !ok || s.Kind != StmtAssignLocal {
					return nil
				}
				name := strings.TrimPrefix(s.Name, "_")
				if name == "" {
					return nil
				}
				first := name[0]
				if first >= 'a' && first <= 'z' {
					return nil
				}
				return []Code{NewCode("S05", cfg.Severity, addonPath(data), s.Span, "private variable \""+s.Name+"\" should start lowercase")}
			},
		},
	}
}

// deprecatedCommands names commands kept only for backward compatibility;
// a representative single entry is enough to exercise the lint end to
// end without maintaining a real deprecation list.
var deprecatedCommands = map[string]string{
	"call": "prefer spawn for fire-and-forget code, reserve call for code that must finish before the next statement",
}

// lintS14DeprecatedCommand flags calls to commands listed in
// deprecatedCommands.
func lintS14DeprecatedCommand() *Lint {
	return &Lint{
		Ident:           "S14",
		Sort:            "sqf/s14",
		Description:     "command is deprecated",
		Documentation:   "The command still works but a newer idiom is preferred.",
		DefaultConfig:   LintConfig{Enabled: false, Severity: SeverityNote},
		MinimumSeverity: SeverityNote,
		Pedantic:        true,
		Runners: []Runner{
			func(project *ProjectConfig, cfg LintConfig, processed *Processed, node interface{}, data LintData) []Code {
				e, ok := node.(*Expr)
				if !ok {
					return nil
				}
				var name string
				switch e.Kind {
				case ExprUnary:
					name = e.Name
				case ExprBinary:
					name = e.Op
				default:
					return nil
				}
				advice, deprecated := deprecatedCommands[name]
				if !deprecated {
					return nil
				}
				return []Code{NewCode("S14", cfg.Severity, addonPath(data), e.Span, "\""+name+"\" is deprecated: "+advice)}
			},
		},
	}
}

// lintS17FormatArgCount flags a `format` call whose first argument is a
// constant array literal of strings where the placeholder count parsed
// out of `%N` tokens doesn't match the number of remaining array
// elements — a very common copy-paste bug.
func lintS17FormatArgCount() *Lint {
	return &Lint{
		Ident:           "S17",
		Sort:            "sqf/s17",
		Description:     "format() placeholder count does not match argument count",
		Documentation:   "format([\"%1 %2\", a]) supplies fewer arguments than the %N placeholders reference.",
		DefaultConfig:   LintConfig{Enabled: true, Severity: SeverityWarning},
		MinimumSeverity: SeverityNote,
		Runners: []Runner{
			func(project *ProjectConfig, cfg LintConfig, processed *Processed, node interface{}, data LintData) []Code {
				e, ok := node.(*Expr)
				if !ok || e.Kind != ExprUnary || !strings.EqualFold(e.Name, "format") {
					return nil
				}
				arr := e.RHS
				if arr == nil || arr.Kind != ExprArray || len(arr.Elements) == 0 {
					return nil
				}
				tmpl := arr.Elements[0]
				if tmpl.Kind != ExprString {
					return nil
				}
				maxPlaceholder := 0
				for i := 0; i+1 < len(tmpl.Str); i++ {
					if tmpl.Str[i] != '%' {
						continue
					}
					d := tmpl.Str[i+1]
					if d < '0' || d > '9' {
						continue
					}
					n := int(d - '0')
					if n > maxPlaceholder {
						maxPlaceholder = n
					}
				}
				supplied := len(arr.Elements) - 1
				if maxPlaceholder > supplied {
					return []Code{NewCode("S17", cfg.Severity, addonPath(data), e.Span,
						"format template references %"+string(rune('0'+maxPlaceholder))+" but only "+pluralArgs(supplied)+" supplied")}
				}
				return nil
			},
		},
	}
}

func pluralArgs(n int) string {
	if n == 1 {
		return "1 argument is"
	}
	return itoaSimple(n) + " arguments are"
}

func itoaSimple(n int) string {
	if n == 0 {
		return "0"
	}
	var b [20]byte
	i := len(b)
	for n > 0 {
		i--
		b[i] = byte('0' + n%10)
		n /= 10
	}
	return string(b[i:])
}

// lintS27CodeAfterExitWith flags a statement following an `exitWith` call
// within the same code block: exitWith only short-circuits the enclosing
// `if/then`, so a later statement in the *same* block was almost
// certainly intended to run before it, not after.
func lintS27CodeAfterExitWith() *Lint {
	return &Lint{
		Ident:           "S27",
		Sort:            "sqf/s27",
		Description:     "statement follows an exitWith call in the same block",
		Documentation:   "exitWith only exits the enclosing if/then; code placed after it in the same block still runs for every other branch, which is rarely intended.",
		DefaultConfig:   LintConfig{Enabled: true, Severity: SeverityWarning},
		MinimumSeverity: SeverityNote,
		Runners: []Runner{
			func(project *ProjectConfig, cfg LintConfig, processed *Processed, node interface{}, data LintData) []Code {
				stmts, ok := node.(*Statements)
				if !ok {
					return nil
				}
				var codes []Code
				sawExitWith := false
				for _, s := range stmts.Content {
					if sawExitWith {
						codes = append(codes, NewCode("S27", cfg.Severity, addonPath(data), s.Span,
							"unreachable-in-intent: statement follows exitWith earlier in this block"))
					}
					if containsExitWith(s.Expr) {
						sawExitWith = true
					}
				}
				return codes
			},
		},
	}
}

func containsExitWith(e Expr) bool {
	switch e.Kind {
	case ExprUnary:
		if strings.EqualFold(e.Name, "exitWith") {
			return true
		}
		return e.RHS != nil && containsExitWith(*e.RHS)
	case ExprBinary:
		return (e.LHS != nil && containsExitWith(*e.LHS)) || (e.RHS != nil && containsExitWith(*e.RHS))
	}
	return false
}

// lintS36NularCalledAsCode flags `X call NULAR`, where NULAR is a known
// nular command: "call" expects a Code value on its right, and a nular
// command's result is never code, so this always fails at runtime.
func lintS36NularCalledAsCode() *Lint {
	return &Lint{
		Ident:           "S36",
		Sort:            "sqf/s36",
		Description:     "call's right-hand side is a nular command, never a code value",
		Documentation:   "`call` expects the right-hand side to evaluate to Code; a nular command's result never is, so this call always fails at runtime.",
		DefaultConfig:   LintConfig{Enabled: true, Severity: SeverityError},
		MinimumSeverity: SeverityWarning,
		Runners: []Runner{
			func(project *ProjectConfig, cfg LintConfig, processed *Processed, node interface{}, data LintData) []Code {
				e, ok := node.(*Expr)
				if !ok || e.Kind != ExprBinary || !strings.EqualFold(e.Op, "call") {
					return nil
				}
				if e.RHS == nil || e.RHS.Kind != ExprNular {
					return nil
				}
				return []Code{NewCode("S36", cfg.Severity, addonPath(data), e.Span,
					"\""+e.RHS.Name+"\" is a nular command; its result can never be called as code")}
			},
		},
	}
}
