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
	"fmt"
	"sort"
)

// Range is a half-open byte range, either in rendered (processed) text or
// in an original source file.
type Range struct {
	Start int
	End   int
}

func (r Range) Len() int { return r.End - r.Start }

// SourceFile is one file that contributed text to a Processed output.
type SourceFile struct {
	Path    string
	Content string
}

// Mapping links one contiguous run of rendered text back to a range in one
// of the Processed's SourceFiles. WasMacro is true when the rendered text
// arose from macro expansion rather than verbatim source.
type Mapping struct {
	Rendered Range
	FileIdx  int
	Original Range
	WasMacro bool
}

// Processed is the append-only result of preprocessing one entry file: the
// concatenated rendered text, every source file actually consumed, the
// rendered->original mappings (kept ordered by Rendered.Start), and
// accumulated warnings.
//
// Invariant: every non-discarded token the preprocessor emits contributes
// exactly one Mapping whose Rendered range length equals the token's
// rendered length.
type Processed struct {
	text     []byte
	files    []SourceFile
	fileIdx  map[string]int
	mappings []Mapping
	warnings []Warning
}

// Warning is a single preprocessor warning accumulated into a Processed.
type Warning struct {
	Pos     Position
	Message string
}

// NewProcessed returns an empty Processed ready to accept tokens via
// Append.
func NewProcessed() *Processed {
	return &Processed{fileIdx: make(map[string]int)}
}

// Text returns the rendered text assembled so far.
func (p *Processed) Text() string { return string(p.text) }

// Files returns the source files consumed so far, in first-seen order.
func (p *Processed) Files() []SourceFile { return p.files }

// Warnings returns the accumulated warnings.
func (p *Processed) Warnings() []Warning { return p.warnings }

func (p *Processed) fileIndex(path, content string) int {
	if idx, ok := p.fileIdx[path]; ok {
		return idx
	}
	idx := len(p.files)
	p.files = append(p.files, SourceFile{Path: path, Content: content})
	p.fileIdx[path] = idx
	return idx
}

// Append renders tok's text (as rendered, which may differ from tok.Text
// after macro substitution — callers pass the post-substitution text) into
// the processed buffer and records the mapping back to original, sourced
// from srcPath/srcContent. An empty rendered string contributes no mapping
// (the token is discarded, e.g. a comment dropped by the preprocessor).
func (p *Processed) Append(rendered string, original Range, srcPath, srcContent string, wasMacro bool) {
	if rendered == "" {
		return
	}
	start := len(p.text)
	p.text = append(p.text, rendered...)
	end := len(p.text)
	p.mappings = append(p.mappings, Mapping{
		Rendered: Range{Start: start, End: end},
		FileIdx:  p.fileIndex(srcPath, srcContent),
		Original: original,
		WasMacro: wasMacro,
	})
}

// Warn appends a warning attributed to pos.
func (p *Processed) Warn(pos Position, format string, args ...interface{}) {
	p.warnings = append(p.warnings, Warning{Pos: pos, Message: fmt.Sprintf(format, args...)})
}

// GetMapping returns the mapping entry that covers rendered column col:
// the last entry whose Rendered.Start <= col. It returns false if col
// precedes every recorded mapping.
func (p *Processed) GetMapping(col int) (Mapping, bool) {
	// mappings are appended in increasing Rendered.Start order already
	// (Append is monotonic), so a binary search suffices.
	i := sort.Search(len(p.mappings), func(i int) bool {
		return p.mappings[i].Rendered.Start > col
	})
	if i == 0 {
		return Mapping{}, false
	}
	return p.mappings[i-1], true
}

// OriginalPosition resolves a rendered column back to a source path and
// 1-based line number, for diagnostic reporting; the column within that
// line is not computed.
func (p *Processed) OriginalPosition(col int) (path string, line int, ok bool) {
	m, found := p.GetMapping(col)
	if !found {
		return "", 0, false
	}
	f := p.files[m.FileIdx]
	offsetIntoMapping := col - m.Rendered.Start
	origOffset := m.Original.Start + offsetIntoMapping
	line = 1
	for i := 0; i < origOffset && i < len(f.Content); i++ {
		if f.Content[i] == '\n' {
			line++
		}
	}
	return f.Path, line, true
}
