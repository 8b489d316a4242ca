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
	"io"
	"sort"
)

// Severity orders from least to most severe so max(a, b) picks the
// stronger one, matching the lint engine's effective-severity rule
// (spec §4.K, §8).
type Severity int

const (
	SeverityHelp Severity = iota
	SeverityNote
	SeverityWarning
	SeverityError
	SeverityFatal
)

func (s Severity) String() string {
	switch s {
	case SeverityFatal:
		return "fatal"
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityNote:
		return "note"
	case SeverityHelp:
		return "help"
	}
	return "unknown"
}

// Label attaches a message to one span of one source path.
type Label struct {
	Path    string
	Span    Range
	Message string
}

// Diagnostic is a single reportable finding, fully resolved for display.
// Every Diagnostic is produced on demand by a Code so rendering can be
// deferred until a caller actually wants output (e.g. the lint engine
// collects thousands of Codes across addons before any are rendered).
type Diagnostic struct {
	CodeIdent       string
	Severity        Severity
	Primary         Label
	Secondary       []Label
	Notes           []string
	Help            string
	Suggestion      string
	DocumentationURL string
}

// Code is anything that can produce a Diagnostic on demand. Lints,
// preprocessor errors and parser recoveries are all represented as Codes
// so the build executor's Report (§4.L) can hold a homogeneous slice
// regardless of which subsystem raised them.
type Code interface {
	Ident() string
	Message() string
	Severity() Severity
	Diagnostic() Diagnostic
}

// simpleCode is the common-case Code implementation used by parser
// recovery and ad-hoc diagnostics that don't warrant their own named Go
// type.
type simpleCode struct {
	ident    string
	message  string
	severity Severity
	primary  Label
	notes    []string
	help     string
}

func (c *simpleCode) Ident() string      { return c.ident }
func (c *simpleCode) Message() string    { return c.message }
func (c *simpleCode) Severity() Severity { return c.severity }
func (c *simpleCode) Diagnostic() Diagnostic {
	return Diagnostic{
		CodeIdent: c.ident,
		Severity:  c.severity,
		Primary:   c.primary,
		Notes:     c.notes,
		Help:      c.help,
	}
}

// NewCode builds a simpleCode — the common path for one-off diagnostics
// raised directly by a parser or rapifier rather than the lint engine.
func NewCode(ident string, severity Severity, path string, span Range, message string) Code {
	return &simpleCode{
		ident:    ident,
		message:  message,
		severity: severity,
		primary:  Label{Path: path, Span: span, Message: message},
	}
}

// Sink is an append-only diagnostic channel: ordering within one file is
// preserved, ordering across files is not (§5). Sink does not lock: each
// parallel task in a build phase pushes to its own Sink, and the caller
// merges them.
type Sink struct {
	codes []Code
}

// NewSink returns an empty Sink.
func NewSink() *Sink { return &Sink{} }

// Push appends one Code. Safe to call from many goroutines only if the
// caller serializes per-file pushes; cross-file ordering is unspecified
// by design (§5), so Sink itself does not lock — each parallel task owns
// its own Sink and results are merged by the caller, matching the
// Report-merge model in §4.L.
func (s *Sink) Push(c Code) { s.codes = append(s.codes, c) }

// Codes returns everything pushed so far.
func (s *Sink) Codes() []Code { return s.codes }

// HasFatal reports whether any pushed Code is Fatal severity, the
// condition that halts the build executor after the current phase.
func (s *Sink) HasFatal() bool {
	for _, c := range s.codes {
		if c.Severity() == SeverityFatal {
			return true
		}
	}
	return false
}

// Merge appends other's codes after s's own, preserving per-Sink order.
func (s *Sink) Merge(other *Sink) {
	if other == nil {
		return
	}
	s.codes = append(s.codes, other.codes...)
}

// Render writes every Diagnostic to w, one per line, in the stable
// "path:0:offset: severity[IDENT]: message" shape: the line field is
// always 0 and offset is the primary span's start byte offset; line and
// column numbers are not resolved. It does not attempt
// fancy multi-line source framing; a richer renderer is an external
// collaborator per spec §1/§6 (out of scope here).
func Render(w io.Writer, codes []Code) {
	for _, c := range codes {
		d := c.Diagnostic()
		fmt.Fprintf(w, "%s:%d:%d: %s[%s]: %s\n",
			d.Primary.Path, 0, d.Primary.Span.Start, d.Severity, d.CodeIdent, d.Message())
		for _, n := range d.Notes {
			fmt.Fprintf(w, "  note: %s\n", n)
		}
		if d.Help != "" {
			fmt.Fprintf(w, "  help: %s\n", d.Help)
		}
	}
}

func (d Diagnostic) Message() string {
	if d.Primary.Message != "" {
		return d.Primary.Message
	}
	return d.CodeIdent
}

// SortByPath stably sorts codes by primary label path, for the
// CI-annotation output grouping mentioned in §6.
func SortByPath(codes []Code) {
	sort.SliceStable(codes, func(i, j int) bool {
		return codes[i].Diagnostic().Primary.Path < codes[j].Diagnostic().Primary.Path
	})
}
