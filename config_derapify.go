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
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrBadMagic is returned by Derapify when the input doesn't start with
// the expected rapified header.
var ErrBadMagic = errors.New("hemtt: not a rapified file (bad magic)")

// derapifyReader walks a rapified byte blob, the structural inverse of
// dumpbuf.
type derapifyReader struct {
	buf []byte
	pos int
}

// Derapify is the structural inverse of Rapify: it parses a rapified blob
// back into a Config AST with spans left zero (rapified form carries no
// source spans). Round-trip equality (spec §8) is defined modulo spans.
func Derapify(blob []byte) (*Config, error) {
	if len(blob) < len(rapifyMagic) {
		return nil, ErrBadMagic
	}
	for i, b := range rapifyMagic {
		if blob[i] != b {
			return nil, ErrBadMagic
		}
	}
	r := &derapifyReader{buf: blob, pos: len(rapifyMagic)}
	props, _ := r.readBody()
	return &Config{Properties: props}, nil
}

func (r *derapifyReader) u8() byte {
	b := r.buf[r.pos]
	r.pos++
	return b
}

func (r *derapifyReader) u32() uint32 {
	v := binary.LittleEndian.Uint32(r.buf[r.pos : r.pos+4])
	r.pos += 4
	return v
}

func (r *derapifyReader) cstring() string {
	start := r.pos
	for r.buf[r.pos] != 0 {
		r.pos++
	}
	s := string(r.buf[start:r.pos])
	r.pos++ // NUL
	return s
}

func (r *derapifyReader) compressedInt() uint32 {
	var v uint32
	var shift uint
	for {
		b := r.u8()
		v |= uint32(b&0x7f) << shift
		if b&0x80 == 0 {
			return v
		}
		shift += 7
	}
}

// readBody reads one class body (parent cstring, count, properties) at
// the reader's current position and returns the properties plus the
// parent name that prefixed them.
func (r *derapifyReader) readBody() ([]Property, string) {
	parent := r.cstring()
	n := r.compressedInt()
	props := make([]Property, 0, n)
	for i := uint32(0); i < n; i++ {
		props = append(props, r.readProperty())
	}
	return props, parent
}

func (r *derapifyReader) readProperty() Property {
	code := r.u8()
	switch code {
	case rpExternalClass:
		name := r.cstring()
		return Property{Kind: PropClass, Class: &Class{Kind: ClassExternal, Name: name}}
	case rpSubclass:
		name := r.cstring()
		offset := r.u32()
		savedPos := r.pos
		r.pos = int(offset)
		props, parent := r.readBody()
		r.pos = savedPos
		return Property{Kind: PropClass, Class: &Class{Kind: ClassLocal, Name: name, Parent: parent, Props: props}}
	case rpDelete:
		name := r.cstring()
		return Property{Kind: PropDelete, Delete: name}
	case rpArray:
		name := r.cstring()
		items := r.readArrayPayload()
		return Property{Kind: PropEntry, Entry: &Entry{Name: name, ExpectedArray: true, Value: Value{Kind: ValueArray, Items: items}}}
	case rpExtendedArray:
		name := r.cstring()
		op := r.u8()
		items := r.readArrayPayload()
		return Property{Kind: PropEntry, Entry: &Entry{Name: name, ExpectedArray: true, Append: op == extOpAppend, Value: Value{Kind: ValueArray, Items: items}}}
	case rpEntry:
		name := r.cstring()
		v := r.readScalar()
		return Property{Kind: PropEntry, Entry: &Entry{Name: name, Value: v}}
	default:
		panic(fmt.Sprintf("hemtt: unknown rapified property code %d", code))
	}
}

func (r *derapifyReader) readScalar() Value {
	switch r.u8() {
	case elemString:
		return Value{Kind: ValueStr, Str: r.cstring()}
	case elemFloat:
		bits := r.u32()
		return Value{Kind: ValueNumberFloat, Float: math.Float32frombits(bits)}
	case elemInt:
		return Value{Kind: ValueNumberInt, Int: int32(r.u32())}
	case elemExpr:
		return Value{Kind: ValueExpression, Expr: r.cstring()}
	default:
		return Value{Kind: ValueInvalid}
	}
}

func (r *derapifyReader) readArrayPayload() []Item {
	n := r.compressedInt()
	items := make([]Item, 0, n)
	for i := uint32(0); i < n; i++ {
		items = append(items, r.readItem())
	}
	return items
}

func (r *derapifyReader) readItem() Item {
	switch r.u8() {
	case elemString:
		return Item{Kind: ItemStr, Str: r.cstring()}
	case elemFloat:
		bits := r.u32()
		return Item{Kind: ItemNumberFloat, Float: math.Float32frombits(bits)}
	case elemInt:
		return Item{Kind: ItemNumberInt, Int: int32(r.u32())}
	case elemArray:
		n := r.compressedInt()
		items := make([]Item, 0, n)
		for i := uint32(0); i < n; i++ {
			items = append(items, r.readItem())
		}
		return Item{Kind: ItemArray, Items: items}
	default:
		return Item{Kind: ItemInvalid}
	}
}
