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
	"bytes"
	"encoding/binary"
	"math"
	"strings"
)

// rapifyMagic is the fixed 12-byte header every rapified blob starts with:
// "\0raP" followed by four zero bytes, then a u32 "version" field fixed
// at 8.
var rapifyMagic = []byte{0x00, 'r', 'a', 'P', 0x00, 0x00, 0x00, 0x00, 0x08, 0x00, 0x00, 0x00}

// Rapified property codes (spec §3/§4.E).
const (
	rpEntry         = 0
	rpSubclass      = 1
	rpArray         = 2
	rpExternalClass = 3
	rpDelete        = 4
	rpExtendedArray = 5
)

// Array element type tags, used inside the array payload written by
// writeArrayPayload/readArrayPayload.
const (
	elemString = 0
	elemFloat  = 1
	elemInt    = 2
	elemArray  = 3
	elemExpr   = 4 // scalar entry whose value is a kept-as-text Expression
)

// extOpAppend is the single recognized extended-array operation.
const extOpAppend = 1

// dumpbuf is a binary-dump visitor accumulator, in the same shape as the
// teacher's expr.go dump(d *dumpbuf) pattern: every AST node writes itself
// onto a shared, growing buffer rather than returning its own byte slice,
// so forward offsets can be patched in place after the fact.
type dumpbuf struct {
	buf bytes.Buffer
}

func (d *dumpbuf) Byte(b byte) { d.buf.WriteByte(b) }

func (d *dumpbuf) Bytes(b []byte) { d.buf.Write(b) }

func (d *dumpbuf) CString(s string) {
	d.buf.WriteString(s)
	d.buf.WriteByte(0)
}

func (d *dumpbuf) U32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	d.buf.Write(b[:])
}

func (d *dumpbuf) F32(v float32) {
	d.U32(math.Float32bits(v))
}

// CompressedInt writes v as a base-128 little-endian varint with a
// continuation bit in the top bit of each byte — the "compressed int"
// format used for property counts (spec §3).
func (d *dumpbuf) CompressedInt(v uint32) {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			d.Byte(b | 0x80)
		} else {
			d.Byte(b)
			return
		}
	}
}

func (d *dumpbuf) Len() int { return d.buf.Len() }

// patchU32 overwrites the 4 bytes at byte offset off with v, used to back
// -fill an inline subclass's forward offset once its body's real position
// is known.
func (d *dumpbuf) patchU32(off int, v uint32) {
	b := d.buf.Bytes()
	binary.LittleEndian.PutUint32(b[off:off+4], v)
}

// Rapify serializes a Config AST to the compact binary format described in
// spec §3/§4.E. It returns the bytes of one rapified file.
func Rapify(cfg *Config) ([]byte, error) {
	d := &dumpbuf{}
	d.Bytes(rapifyMagic)

	// The root class has no parent and no name of its own; it is written
	// exactly like a local class body (parent cstring, count, properties),
	// using a worklist so inline subclasses are emitted breadth-first
	// with their forward offsets patched in afterward.
	type pending struct {
		props    []Property
		parent   string
		offsetAt int // location in d.buf to patch with this body's start
	}
	var worklist []pending

	writeBody := func(props []Property, parent string) {
		d.CString(parent)
		d.CompressedInt(uint32(len(props)))
		for _, pr := range props {
			switch pr.Kind {
			case PropClass:
				c := pr.Class
				switch c.Kind {
				case ClassExternal:
					d.Byte(rpExternalClass)
					d.CString(c.Name)
				case ClassLocal:
					d.Byte(rpSubclass)
					d.CString(c.Name)
					at := d.Len()
					d.U32(0) // patched once the body is emitted
					worklist = append(worklist, pending{props: c.Props, parent: c.Parent, offsetAt: at})
				case ClassRoot:
					return // a root can't nest; defensive no-op
				}
			case PropDelete:
				d.Byte(rpDelete)
				d.CString(pr.Delete)
			case PropEntry:
				e := pr.Entry
				if e.Append {
					d.Byte(rpExtendedArray)
					d.CString(e.Name)
					d.Byte(extOpAppend)
					writeArrayPayload(d, e.Value)
					continue
				}
				if e.ExpectedArray || e.Value.Kind == ValueArray {
					d.Byte(rpArray)
					d.CString(e.Name)
					writeArrayPayload(d, e.Value)
					continue
				}
				d.Byte(rpEntry)
				d.CString(e.Name)
				writeScalarPayload(d, e.Value)
			}
		}
	}

	writeBody(cfg.Properties, "")
	for i := 0; i < len(worklist); i++ {
		w := worklist[i]
		start := d.Len()
		d.patchU32(w.offsetAt, uint32(start))
		writeBody(w.props, w.parent)
	}

	enumOffset := d.Len()
	d.CompressedInt(0)
	d.Byte(0) // terminator

	d.U32(uint32(enumOffset))
	return d.buf.Bytes(), nil
}

// FindRequiredVersion walks cfg's class tree for the first `requiredVersion`
// entry it finds (conventionally nested under CfgPatches/<addon>, but
// looked up by name alone so a differently-shaped file still matches) and
// parses its decimal major.minor value, per spec §3's
// `build_data.required_version`. It returns nil if no such entry exists or
// its value isn't numeric.
func FindRequiredVersion(cfg *Config, sourcePath string) *RequiredVersion {
	return findRequiredVersion(cfg.Properties, sourcePath)
}

func findRequiredVersion(props []Property, sourcePath string) *RequiredVersion {
	for _, pr := range props {
		switch pr.Kind {
		case PropEntry:
			if strings.EqualFold(pr.Entry.Name, "requiredVersion") {
				if rv := requiredVersionFromValue(pr.Entry.Value, sourcePath); rv != nil {
					return rv
				}
			}
		case PropClass:
			if pr.Class.Kind == ClassLocal {
				if rv := findRequiredVersion(pr.Class.Props, sourcePath); rv != nil {
					return rv
				}
			}
		}
	}
	return nil
}

// requiredVersionFromValue decodes a major.minor decimal such as 2.00 or
// 1.64 into (Major, Minor); Patch is always 0, since the host format only
// ever carries two version components.
func requiredVersionFromValue(v Value, sourcePath string) *RequiredVersion {
	var f float64
	switch v.Kind {
	case ValueNumberFloat:
		f = float64(v.Float)
	case ValueNumberInt:
		f = float64(v.Int)
	default:
		return nil
	}
	major := uint32(f)
	minor := uint32(math.Round((f - float64(major)) * 100))
	return &RequiredVersion{Major: major, Minor: minor, SourcePath: sourcePath, Span: v.Span}
}

// RapifyAddon rapifies cfg on behalf of addon, first running the
// requiredVersion pass and recording any hit into both the addon's own
// BuildData and the shared configs map — the rapifier's mandated mutation
// of Addon.BuildData.RequiredVersion (spec §3) — before serializing.
func RapifyAddon(cfg *Config, addon *Addon, sourcePath string, configs *AddonConfigs) ([]byte, error) {
	if rv := FindRequiredVersion(cfg, sourcePath); rv != nil {
		addon.BuildData.RequiredVersion = rv
		if configs != nil {
			configs.Set(addon.Name, rv)
		}
	}
	return Rapify(cfg)
}

func writeScalarPayload(d *dumpbuf, v Value) {
	switch v.Kind {
	case ValueStr:
		d.Byte(elemString)
		d.CString(v.Str)
	case ValueNumberFloat:
		d.Byte(elemFloat)
		d.F32(v.Float)
	case ValueNumberInt:
		d.Byte(elemInt)
		d.U32(uint32(v.Int))
	case ValueExpression:
		// kept as unevaluated text; tagged distinctly from elemString so
		// derapify reconstructs the Expression variant rather than Str.
		d.Byte(elemExpr)
		d.CString(v.Expr)
	default:
		d.Byte(elemString)
		d.CString("")
	}
}

func writeArrayPayload(d *dumpbuf, v Value) {
	items := v.Items
	d.CompressedInt(uint32(len(items)))
	for _, it := range items {
		writeItem(d, it)
	}
}

func writeItem(d *dumpbuf, it Item) {
	switch it.Kind {
	case ItemStr:
		d.Byte(elemString)
		d.CString(it.Str)
	case ItemNumberFloat:
		d.Byte(elemFloat)
		d.F32(it.Float)
	case ItemNumberInt:
		d.Byte(elemInt)
		d.U32(uint32(it.Int))
	case ItemArray:
		d.Byte(elemArray)
		d.CompressedInt(uint32(len(it.Items)))
		for _, c := range it.Items {
			writeItem(d, c)
		}
	default:
		d.Byte(elemString)
		d.CString("")
	}
}
