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
	"crypto/sha1"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
)

// PBO mime-type tags (spec §3).
const (
	pboMimeVersion    uint32 = 0x56657273
	pboMimeCompressed uint32 = 0x43707273
	pboMimeEncrypted  uint32 = 0x456e6372
	pboMimeRegular    uint32 = 0x00000000
)

// ErrNotPBO is returned by ReadPBO when the input doesn't parse as a valid
// container (missing terminators, truncated stream).
var ErrNotPBO = errors.New("hemtt: not a valid pbo archive")

// PBOEntry is one packed file: its header fields plus a byte offset into
// the body blob where its content starts.
type PBOEntry struct {
	Name         string // backslash-normalized, original case preserved
	MimeType     uint32
	OriginalSize uint32
	Reserved     uint32
	Timestamp    uint32
	Size         uint32
	bodyOffset   int64
}

// PBOFile is an in-memory file to be packed by WritePBO.
type PBOFile struct {
	Name string
	Data []byte
}

// PBOExtension is one key/value pair of the version-extension header
// block, kept in wire order (not a map) so WritePBO and GenChecksum always
// serialize extensions identically: Go map iteration is randomized, and
// this header block is part of what the trailing SHA-1 checksums, so a
// non-deterministic order would make both the on-disk bytes and the §8
// round-trip checksum invariant flaky for any archive with 2+ extensions.
type PBOExtension struct {
	Key   string
	Value string
}

// PBO is a parsed container: its extension key/value metadata, its entry
// headers in archive order, and a reference back to the reader it was parsed from
// so File can seek lazily rather than holding every body in memory.
type PBO struct {
	Extensions []PBOExtension
	Entries    []PBOEntry
	blobStart  int64
	checksum   [20]byte
	src        io.ReaderAt
}

// Extension returns the value of the first extension with the given key,
// matching the map-lookup access pattern a caller would otherwise reach
// for.
func (p *PBO) Extension(key string) (string, bool) {
	for _, e := range p.Extensions {
		if e.Key == key {
			return e.Value, true
		}
	}
	return "", false
}

// normalizePBOName lowercases and backslash-normalizes name for sort and
// checksum comparison purposes, matching the writer's canonicalization
// rule (spec §3/§4.H).
func normalizePBOName(name string) string {
	return strings.ToLower(strings.ReplaceAll(name, "/", "\\"))
}

// sortPBOFiles returns files in canonical ascending order: stable sort by
// ascii-lowercased, backslash-normalized name.
func sortPBOFiles(names []string) []int {
	idx := make([]int, len(names))
	for i := range idx {
		idx[i] = i
	}
	keys := make([]string, len(names))
	for i, n := range names {
		keys[i] = normalizePBOName(n)
	}
	sort.SliceStable(idx, func(a, b int) bool { return keys[idx[a]] < keys[idx[b]] })
	return idx
}

// IsSorted reports whether names is already in canonical PBO order.
func IsSorted(names []string) bool {
	for i := 1; i < len(names); i++ {
		if normalizePBOName(names[i-1]) > normalizePBOName(names[i]) {
			return false
		}
	}
	return true
}

func writePBOHeader(w *bytes.Buffer, name string, mime, orig, reserved, ts, size uint32) {
	w.WriteString(strings.ReplaceAll(name, "/", "\\"))
	w.WriteByte(0)
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], mime)
	w.Write(b[:])
	binary.LittleEndian.PutUint32(b[:], orig)
	w.Write(b[:])
	binary.LittleEndian.PutUint32(b[:], reserved)
	w.Write(b[:])
	binary.LittleEndian.PutUint32(b[:], ts)
	w.Write(b[:])
	binary.LittleEndian.PutUint32(b[:], size)
	w.Write(b[:])
}

// WritePBO serializes files into the container layout described by the
// container format: version-extension header, sorted file headers
// terminated by an all-zero header, file bodies in the same order, and a
// trailing 0x00 + 20-byte SHA-1 checksum over the header block and the
// file bodies (the 0x00 byte itself is not hashed).
func WritePBO(w io.Writer, files []PBOFile, extensions []PBOExtension) error {
	var headerBlock bytes.Buffer

	writePBOHeader(&headerBlock, "", pboMimeVersion, 0, 0, 0, 0)
	for _, e := range extensions {
		headerBlock.WriteString(e.Key)
		headerBlock.WriteByte(0)
		headerBlock.WriteString(e.Value)
		headerBlock.WriteByte(0)
	}
	headerBlock.WriteByte(0) // empty key terminator

	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.Name
	}
	order := sortPBOFiles(names)

	for _, i := range order {
		f := files[i]
		writePBOHeader(&headerBlock, f.Name, pboMimeRegular, uint32(len(f.Data)), 0, 0, uint32(len(f.Data)))
	}
	writePBOHeader(&headerBlock, "", 0, 0, 0, 0, 0) // all-zero terminator

	h := sha1.New()
	h.Write(headerBlock.Bytes())
	for _, i := range order {
		h.Write(files[i].Data)
	}

	if _, err := w.Write(headerBlock.Bytes()); err != nil {
		return err
	}
	for _, i := range order {
		if _, err := w.Write(files[i].Data); err != nil {
			return err
		}
	}
	if _, err := w.Write([]byte{0}); err != nil {
		return err
	}
	_, err := w.Write(h.Sum(nil))
	return err
}

// pboHeaderReader walks the header block of a PBO byte stream.
type pboHeaderReader struct {
	buf []byte
	pos int
}

func (r *pboHeaderReader) cstring() (string, error) {
	start := r.pos
	for r.pos < len(r.buf) && r.buf[r.pos] != 0 {
		r.pos++
	}
	if r.pos >= len(r.buf) {
		return "", ErrNotPBO
	}
	s := string(r.buf[start:r.pos])
	r.pos++
	return s, nil
}

func (r *pboHeaderReader) u32() (uint32, error) {
	if r.pos+4 > len(r.buf) {
		return 0, ErrNotPBO
	}
	v := binary.LittleEndian.Uint32(r.buf[r.pos : r.pos+4])
	r.pos += 4
	return v, nil
}

// ReadPBO parses a full archive from blob into a PBO and keeps src for
// later lazy reads via File.
func ReadPBO(blob []byte, src io.ReaderAt) (*PBO, error) {
	r := &pboHeaderReader{buf: blob}
	p := &PBO{src: src}

	for {
		name, err := r.cstring()
		if err != nil {
			return nil, err
		}
		mime, err := r.u32()
		if err != nil {
			return nil, err
		}
		orig, err := r.u32()
		if err != nil {
			return nil, err
		}
		reserved, err := r.u32()
		if err != nil {
			return nil, err
		}
		ts, err := r.u32()
		if err != nil {
			return nil, err
		}
		size, err := r.u32()
		if err != nil {
			return nil, err
		}
		if name == "" && mime == 0 && orig == 0 && reserved == 0 && ts == 0 && size == 0 {
			break // all-zero terminator
		}
		if mime == pboMimeVersion {
			for {
				k, err := r.cstring()
				if err != nil {
					return nil, err
				}
				if k == "" {
					break
				}
				v, err := r.cstring()
				if err != nil {
					return nil, err
				}
				p.Extensions = append(p.Extensions, PBOExtension{Key: k, Value: v})
			}
			continue
		}
		p.Entries = append(p.Entries, PBOEntry{
			Name: name, MimeType: mime, OriginalSize: orig, Reserved: reserved,
			Timestamp: ts, Size: size,
		})
	}

	p.blobStart = int64(r.pos)
	offset := p.blobStart
	for i := range p.Entries {
		p.Entries[i].bodyOffset = offset
		offset += int64(p.Entries[i].Size)
	}

	if len(blob) < int(offset)+1+20 {
		return nil, ErrNotPBO
	}
	copy(p.checksum[:], blob[len(blob)-20:])

	return p, nil
}

// IsSortedEntries reports whether p's entries are in canonical order, the
// reader-side counterpart of IsSorted used when validating archives that
// may predate the sort invariant.
func (p *PBO) IsSortedEntries() bool {
	names := make([]string, len(p.Entries))
	for i, e := range p.Entries {
		names[i] = e.Name
	}
	return IsSorted(names)
}

// File returns a bounded reader over the body of the named entry.
func (p *PBO) File(name string) (io.Reader, error) {
	norm := normalizePBOName(name)
	for _, e := range p.Entries {
		if normalizePBOName(e.Name) == norm {
			return io.NewSectionReader(p.src, e.bodyOffset, int64(e.Size)), nil
		}
	}
	return nil, fmt.Errorf("hemtt: no such file in pbo: %s", name)
}

// Checksum returns the 20-byte trailing SHA-1 stored in the archive.
func (p *PBO) Checksum() [20]byte { return p.checksum }

// GenChecksum re-serializes p's headers in canonical sorted order and
// recomputes the SHA-1 over header block + bodies in that order, for
// comparison against Checksum.
func (p *PBO) GenChecksum() ([20]byte, error) {
	var headerBlock bytes.Buffer
	writePBOHeader(&headerBlock, "", pboMimeVersion, 0, 0, 0, 0)
	for _, e := range p.Extensions {
		headerBlock.WriteString(e.Key)
		headerBlock.WriteByte(0)
		headerBlock.WriteString(e.Value)
		headerBlock.WriteByte(0)
	}
	headerBlock.WriteByte(0)

	names := make([]string, len(p.Entries))
	for i, e := range p.Entries {
		names[i] = e.Name
	}
	order := sortPBOFiles(names)
	for _, i := range order {
		e := p.Entries[i]
		writePBOHeader(&headerBlock, e.Name, e.MimeType, e.OriginalSize, e.Reserved, e.Timestamp, e.Size)
	}
	writePBOHeader(&headerBlock, "", 0, 0, 0, 0, 0)

	h := sha1.New()
	h.Write(headerBlock.Bytes())
	for _, i := range order {
		e := p.Entries[i]
		body := make([]byte, e.Size)
		if _, err := p.src.ReadAt(body, e.bodyOffset); err != nil && err != io.EOF {
			var zero [20]byte
			return zero, err
		}
		h.Write(body)
	}
	var out [20]byte
	copy(out[:], h.Sum(nil))
	return out, nil
}
