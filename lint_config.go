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
	"strconv"
	"strings"
)

func init() {
	RegisterLint(lintC01InvalidValue())
	RegisterLint(lintC02DuplicateProperty())
	RegisterLint(lintC03MissingSemicolon())
	RegisterLint(lintC05ExternalParentUnresolved())
	RegisterLint(lintC07ClassNameCasing())
	RegisterLint(lintC12UnevaluatedExpression())
	RegisterLint(lintC14RedundantArrayAppend())
}

// lintC01InvalidValue flags entries whose parsed Value is ValueInvalid —
// the parser successfully recovered from the token but couldn't assign it
// a meaningful shape.
func lintC01InvalidValue() *Lint {
	return &Lint{
		Ident:           "C01",
		Sort:            "config/c01",
		Description:     "entry value could not be parsed",
		Documentation:   "A property's right-hand side did not match any recognized value shape.",
		DefaultConfig:   LintConfig{Enabled: true, Severity: SeverityError},
		MinimumSeverity: SeverityWarning,
		Runners: []Runner{
			func(project *ProjectConfig, cfg LintConfig, processed *Processed, node interface{}, data LintData) []Code {
				e, ok := node.(*Entry)
				if !ok || e.Value.Kind != ValueInvalid {
					return nil
				}
				return []Code{NewCode("C01", cfg.Severity, addonPath(data), e.Span, "entry \""+e.Name+"\" has an unparseable value")}
			},
		},
	}
}

// lintC02DuplicateProperty flags a class whose property list declares
// the same entry or subclass name more than once — the second
// declaration silently wins at rapify time, which is rarely intentional.
func lintC02DuplicateProperty() *Lint {
	return &Lint{
		Ident:           "C02",
		Sort:            "config/c02",
		Description:     "duplicate property name within a class body",
		Documentation:   "Two properties in the same class share a name; only the last applies.",
		DefaultConfig:   LintConfig{Enabled: true, Severity: SeverityWarning},
		MinimumSeverity: SeverityNote,
		Runners: []Runner{
			func(project *ProjectConfig, cfg LintConfig, processed *Processed, node interface{}, data LintData) []Code {
				c, ok := node.(*Class)
				if !ok {
					return nil
				}
				seen := map[string]Range{}
				var codes []Code
				for _, p := range c.Props {
					name := propertyName(p)
					if name == "" {
						continue
					}
					if first, dup := seen[name]; dup {
						codes = append(codes, NewCode("C02", cfg.Severity, addonPath(data), p.Span,
							"property \""+name+"\" duplicates an earlier declaration at offset "+strconv.Itoa(first.Start)))
						continue
					}
					seen[name] = p.Span
				}
				return codes
			},
		},
	}
}

func propertyName(p Property) string {
	switch p.Kind {
	case PropEntry:
		return p.Entry.Name
	case PropClass:
		return p.Class.Name
	case PropDelete:
		return p.Delete
	}
	return ""
}

// lintC03MissingSemicolon flags recovered PropMissingSemicolon nodes,
// surfacing the parser's forward-recovery as a first-class diagnostic
// instead of a silent resync.
func lintC03MissingSemicolon() *Lint {
	return &Lint{
		Ident:           "C03",
		Sort:            "config/c03",
		Description:     "statement is missing its terminating semicolon",
		Documentation:   "The parser resynchronized at the next ; or } after this statement.",
		DefaultConfig:   LintConfig{Enabled: true, Severity: SeverityError},
		MinimumSeverity: SeverityWarning,
		Runners: []Runner{
			func(project *ProjectConfig, cfg LintConfig, processed *Processed, node interface{}, data LintData) []Code {
				p, ok := node.(*Property)
				if !ok || p.Kind != PropMissingSemicolon {
					return nil
				}
				return []Code{NewCode("C03", cfg.Severity, addonPath(data), p.Span, "missing ';' after \""+p.BadName+"\"")}
			},
		},
	}
}

// lintC05ExternalParentUnresolved flags a local class whose `: PARENT`
// clause names a class this lint has no record of as either a sibling
// local class or an external forward-declaration in the same body —
// likely a typo or a missing #include.
func lintC05ExternalParentUnresolved() *Lint {
	return &Lint{
		Ident:           "C05",
		Sort:            "config/c05",
		Description:     "class parent is not declared anywhere in this file",
		Documentation:   "The parent class named in \": PARENT\" has no forward declaration or local definition in scope.",
		DefaultConfig:   LintConfig{Enabled: false, Severity: SeverityWarning},
		MinimumSeverity: SeverityNote,
		Pedantic:        true,
		Runners: []Runner{
			func(project *ProjectConfig, cfg LintConfig, processed *Processed, node interface{}, data LintData) []Code {
				c, ok := node.(*Class)
				if !ok || c.Kind != ClassLocal || c.Parent == "" {
					return nil
				}
				for _, p := range c.Props {
					if p.Kind == PropClass && strings.EqualFold(p.Class.Name, c.Parent) {
						return nil
					}
				}
				return []Code{NewCode("C05", cfg.Severity, addonPath(data), c.Span,
					"parent class \""+c.Parent+"\" of \""+c.Name+"\" is not declared in this file")}
			},
		},
	}
}

// lintC07ClassNameCasing flags a local class whose name does not start
// with an ASCII uppercase letter — a weak style signal, pedantic-only.
func lintC07ClassNameCasing() *Lint {
	return &Lint{
		Ident:           "C07",
		Sort:            "config/c07",
		Description:     "class name does not start with an uppercase letter",
		Documentation:   "Stylistic: class names conventionally start with an uppercase letter (CfgPatches, CfgVehicles, ...).",
		DefaultConfig:   LintConfig{Enabled: false, Severity: SeverityHelp},
		MinimumSeverity: SeverityHelp,
		Pedantic:        true,
		Runners: []Runner{
			func(project *ProjectConfig, cfg LintConfig, processed *Processed, node interface{}, data LintData) []Code {
				c, ok := node.(*Class)
				if !ok || c.Kind != ClassLocal || c.Name == "" {
					return nil
				}
				first := c.Name[0]
				if first >= 'A' && first <= 'Z' {
					return nil
				}
				return []Code{NewCode("C07", cfg.Severity, addonPath(data), c.Span, "class \""+c.Name+"\" does not start with an uppercase letter")}
			},
		},
	}
}

// lintC12UnevaluatedExpression flags an entry whose value is a bare
// (unquoted) arithmetic expression that the parser kept as unevaluated
// ValueExpression text. Quoted string values are not examined.
func lintC12UnevaluatedExpression() *Lint {
	return &Lint{
		Ident:           "C12",
		Sort:            "config/c12",
		Description:     "value looks like an arithmetic expression but is not evaluated",
		Documentation:   "A bare (unquoted) arithmetic expression in value position is kept as text and shipped verbatim; wrap it in parentheses or a macro that evaluates it if a number is wanted.",
		DefaultConfig:   LintConfig{Enabled: true, Severity: SeverityNote},
		MinimumSeverity: SeverityNote,
		Runners: []Runner{
			func(project *ProjectConfig, cfg LintConfig, processed *Processed, node interface{}, data LintData) []Code {
				e, ok := node.(*Entry)
				if !ok || e.Value.Kind != ValueExpression {
					return nil
				}
				return []Code{NewCode("C12", cfg.Severity, addonPath(data), e.Span,
					"entry \""+e.Name+"\" is a well-formed expression (\""+e.Value.Expr+"\") but is not evaluated")}
			},
		},
	}
}

// lintC14RedundantArrayAppend flags `name[] += {};` — appending an empty
// array, which is always a no-op.
func lintC14RedundantArrayAppend() *Lint {
	return &Lint{
		Ident:           "C14",
		Sort:            "config/c14",
		Description:     "appending an empty array has no effect",
		Documentation:   "`name[] += {}` never changes the array; the statement can be removed.",
		DefaultConfig:   LintConfig{Enabled: true, Severity: SeverityHelp},
		MinimumSeverity: SeverityHelp,
		Runners: []Runner{
			func(project *ProjectConfig, cfg LintConfig, processed *Processed, node interface{}, data LintData) []Code {
				e, ok := node.(*Entry)
				if !ok || !e.Append || len(e.Value.Items) != 0 {
					return nil
				}
				return []Code{NewCode("C14", cfg.Severity, addonPath(data), e.Span, "\""+e.Name+"[] += {}\" is a no-op")}
			},
		},
	}
}

func addonPath(data LintData) string {
	if data.Addon != nil {
		return data.Addon.Name
	}
	return ""
}

