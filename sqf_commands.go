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

// CommandArity classifies how a named command is invoked, mirroring the
// teacher's func.go table of builtin Make functions keyed by name and
// arity.
type CommandArity int

const (
	ArityNular CommandArity = iota
	ArityUnary
	ArityBinary
)

// commandInfo is one entry of the embedded command database (§4.F): a
// name plus which arities it is known to accept. Most commands accept
// exactly one arity; a handful (e.g. "count", "select") are legitimately
// both unary and binary, resolved at parse time by the "binary wins if a
// valid RHS follows" rule.
type commandInfo struct {
	name      string
	nular     bool
	unary     bool
	binary    bool
}

// commandDB is the builtin command registry: name -> commandInfo. It is
// populated once at init time, in the same registration-table shape as
// kati's funcs map in func.go.
var commandDB = map[string]*commandInfo{}

func registerCommand(name string, nular, unary, binary bool) {
	commandDB[strings.ToLower(name)] = &commandInfo{name: name, nular: nular, unary: unary, binary: binary}
}

func lookupCommand(name string) (*commandInfo, bool) {
	c, ok := commandDB[strings.ToLower(name)]
	return c, ok
}

func init() {
	// A representative slice of the host language's command surface,
	// enough to exercise every classification path the parser needs
	// (pure nular, pure unary, pure binary, and unary/binary ambiguous).
	registerCommand("true", true, false, false)
	registerCommand("false", true, false, false)
	registerCommand("player", true, false, false)
	registerCommand("diag_log", false, true, false)
	registerCommand("hint", false, true, false)
	registerCommand("str", false, true, false)
	registerCommand("floor", false, true, false)
	registerCommand("ceil", false, true, false)
	registerCommand("abs", false, true, false)
	registerCommand("typeName", false, true, false)
	registerCommand("format", false, false, true)
	registerCommand("createVehicle", false, false, true)
	registerCommand("setVariable", false, false, true)
	registerCommand("call", false, true, true) // unary "call {code}"; binary "obj call fnc"
	registerCommand("count", false, true, true)
	registerCommand("select", false, true, true)
	registerCommand("in", false, false, true)
	registerCommand("else", false, false, true)
	registerCommand("if", false, true, false)
	registerCommand("then", false, false, true)
	registerCommand("exitWith", false, true, false)
	registerCommand("forEach", false, false, true)
	registerCommand("while", false, true, false)
	registerCommand("do", false, false, true)
	registerCommand("params", false, true, false)
	registerCommand("private", false, true, false)
	registerCommand("spawn", false, false, true)
	registerCommand("remoteExec", false, false, true)
}

// fixedOperators is the set of punctuation-style binary operators with
// Arima-script precedence, distinct from named commands.
var fixedOperators = map[string]int{
	"||": 1, "or": 1,
	"&&": 2, "and": 2,
	"==": 3, "!=": 3, "<": 3, "<=": 3, ">": 3, ">=": 3,
	"+": 4, "-": 4,
	"*": 5, "/": 5, "%": 5, "mod": 5, "^": 6,
}

func isFixedOperator(s string) bool {
	_, ok := fixedOperators[strings.ToLower(s)]
	return ok
}

func operatorPrecedence(s string) int {
	return fixedOperators[strings.ToLower(s)]
}
