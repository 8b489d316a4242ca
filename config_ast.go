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

// Config is the top-level AST of one configuration file: an ordered list
// of properties.
type Config struct {
	Properties []Property
}

// Property is one of the four statement shapes a config body can contain.
// Exactly one of the Entry/Class/DeleteName fields is meaningful,
// discriminated by PropKind.
type PropKind int

const (
	PropEntry PropKind = iota
	PropClass
	PropDelete
	PropMissingSemicolon
)

// Property carries a span into the processed text for every node, per
// spec §3.
type Property struct {
	Kind PropKind
	Span Range

	Entry  *Entry  // PropEntry
	Class  *Class  // PropClass
	Delete string  // PropDelete: the deleted class's name
	BadName string // PropMissingSemicolon: the name token that was left dangling
}

// Entry is `name = value;` or `name[] = value;` / `name[] += value;`.
type Entry struct {
	Name          string
	Value         Value
	ExpectedArray bool
	Append        bool // true for NAME[] += value
	Span          Range
}

// ClassKind discriminates the three shapes of class declaration.
type ClassKind int

const (
	ClassRoot ClassKind = iota
	ClassExternal
	ClassLocal
)

// Class is a class declaration: the bare config root, a forward
// declaration (`class NAME;`), or a full local definition with an
// optional parent and a property list.
type Class struct {
	Kind   ClassKind
	Name   string
	Parent string // ClassLocal only; empty means no `: PARENT`
	Props  []Property
	Span   Range
}

// ValueKind discriminates the Value variant.
type ValueKind int

const (
	ValueStr ValueKind = iota
	ValueNumberInt
	ValueNumberFloat
	ValueArray
	ValueExpression
	ValueUnexpectedArray
	ValueInvalid
)

// Value is a property's right-hand side.
type Value struct {
	Kind  ValueKind
	Str   string
	Int   int32
	Float float32
	Items []Item
	Expr  string // raw text, for ValueExpression (kept unevaluated)
	Span  Range
}

// ItemKind discriminates one array element.
type ItemKind int

const (
	ItemStr ItemKind = iota
	ItemNumberInt
	ItemNumberFloat
	ItemArray
	ItemInvalid
)

// Item is one element of an Array value; arrays nest.
type Item struct {
	Kind  ItemKind
	Str   string
	Int   int32
	Float float32
	Items []Item // ItemArray
	Span  Range
}
