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
	"strconv"
	"strings"
	"time"

	"github.com/golang/glog"
)

// PPErrorKind identifies one of the preprocessor's hard error classes.
type PPErrorKind string

// Preprocessor error kinds, per spec §4.C.
const (
	PE1 PPErrorKind = "PE1" // unterminated macro call
	PE2 PPErrorKind = "PE2" // unexpected #else/#endif, unterminated #if, or #undef of a builtin
	PE3 PPErrorKind = "PE3" // include not found
	PE4 PPErrorKind = "PE4" // include cycle
	PE7 PPErrorKind = "PE7" // #if on unit/function macro
)

// PPError is one hard preprocessor error. Preprocessing never aborts on
// these; they accumulate alongside the Processed output's warnings so a
// caller can report everything found in one pass.
type PPError struct {
	Kind PPErrorKind
	Pos  Position
	Msg  string
}

func (e PPError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Pos, e.Kind, e.Msg)
}

// IncludeNotFound is the sentinel error an IncludeResolver returns when it
// cannot locate the requested target.
var IncludeNotFound = fmt.Errorf("hemtt: include not found")

// IncludeResolver is injected by the preprocessor's caller; see the
// include resolver contract in spec §6. originalTokens are the tokens
// between the quotes/angle-brackets as written, before any macro
// expansion, in case the resolver wants to inspect them (e.g. for
// diagnostics).
type IncludeResolver interface {
	Resolve(root, currentFile, target string, angle bool, originalTokens []Token) (resolvedPath string, content []byte, err error)
}

// maxIncludeDepth bounds recursive #include nesting independent of cycle
// detection, so a long (non-cyclic) include chain cannot exhaust memory.
const maxIncludeDepth = 64

// Preprocessor runs the macro engine described in spec §4.C over one
// top-level file. It holds no state shared across files: multiple
// Preprocessors may run concurrently, one per file, each with its own
// Defines table seeded from the caller (for project-identity builtins).
type Preprocessor struct {
	Defines  *Defines
	Resolver IncludeResolver
	Root     string

	includeStack []string
	ifStack      []*ifFrame
	errs         []PPError
	proc         *Processed
}

type ifFrame struct {
	branchTaken  bool // some branch in this #if..#endif chain has already run
	passingNow   bool // the branch currently open is the one being emitted
	everTaken    bool
	sawElse      bool
}

// NewPreprocessor returns a Preprocessor with a fresh Defines table, ready
// to have additional builtins (project identity, command-line -D defines)
// layered on via Defines.Define before the first Run.
func NewPreprocessor(resolver IncludeResolver, root string) *Preprocessor {
	return &Preprocessor{
		Defines:  NewDefines(),
		Resolver: resolver,
		Root:     root,
	}
}

// Run preprocesses one file to completion, returning the assembled
// Processed output and any hard errors encountered. Processing continues
// past every error it can recover from; only a genuinely fatal condition
// (which this component never raises) would stop early.
func (pp *Preprocessor) Run(path string, content []byte) (*Processed, []PPError) {
	pp.proc = NewProcessed()
	pp.includeStack = []string{path}
	pp.errs = nil
	pp.run(path, content)
	if len(pp.ifStack) != 0 {
		pp.errs = append(pp.errs, PPError{Kind: PE2, Msg: "unterminated #if at end of file"})
	}
	return pp.proc, pp.errs
}

func (pp *Preprocessor) shouldEmit() bool {
	for _, f := range pp.ifStack {
		if !f.passingNow {
			return false
		}
	}
	return true
}

func (pp *Preprocessor) run(path string, content []byte) {
	lines := splitLogicalLines(path, content)
	for _, line := range lines {
		first := firstSignificant(line)
		if first != nil && first.Kind == KindHash && isLineInitial(line, first) {
			pp.directive(path, line)
			continue
		}
		if !pp.shouldEmit() {
			continue
		}
		out := pp.expandLine(path, line)
		pp.emit(path, content, line, out)
	}
}

// emit appends the rendered tokens of a (possibly macro-expanded) line to
// the Processed output, recording one mapping per token as required by
// the source-map invariant.
func (pp *Preprocessor) emit(path string, fileContent []byte, original []Token, rendered []renderedTok) {
	for _, r := range rendered {
		pp.proc.Append(r.text, Range{Start: r.origPos.Start, End: r.origPos.End}, path, string(fileContent), r.wasMacro)
	}
}

type renderedTok struct {
	text     string
	origPos  Position
	wasMacro bool
}

// splitLogicalLines groups a file's tokens into physical lines, joining a
// line ending in a lone backslash with the following line (the trailing
// backslash and its newline are dropped from the joined stream but the
// backslash token's position is preserved on neighboring tokens for
// mapping purposes via the surrounding tokens' own positions).
func splitLogicalLines(path string, content []byte) [][]Token {
	toks := NewLexer(path, content).Tokenize()
	var lines [][]Token
	var cur []Token
	for i := 0; i < len(toks); i++ {
		t := toks[i]
		if t.Kind == KindEOI {
			if len(cur) > 0 {
				lines = append(lines, cur)
			}
			break
		}
		if t.Kind == KindNewline {
			if endsWithContinuation(cur) {
				k := len(cur) - 1
				for cur[k].Kind == KindWhitespace {
					k--
				}
				cur = cur[:k] // drop the trailing backslash token and any whitespace after it
				continue
			}
			lines = append(lines, cur)
			cur = nil
			continue
		}
		cur = append(cur, t)
	}
	return lines
}

func endsWithContinuation(line []Token) bool {
	for i := len(line) - 1; i >= 0; i-- {
		if line[i].Kind == KindWhitespace {
			continue
		}
		return line[i].Kind == KindPunctuation && line[i].Text == "\\"
	}
	return false
}

func firstSignificant(line []Token) *Token {
	for i := range line {
		if line[i].IsTrivia() {
			continue
		}
		return &line[i]
	}
	return nil
}

// isLineInitial reports that only whitespace precedes the '#' token in
// the line, i.e. it is a directive rather than e.g. a stringize inside an
// expanded macro body, which can never appear at statement position on a
// fresh source line in well-formed input.
func isLineInitial(line []Token, hash *Token) bool {
	for i := range line {
		if &line[i] == hash {
			return true
		}
		if !line[i].IsTrivia() {
			return false
		}
	}
	return false
}

// -------------------- directive dispatch --------------------

func (pp *Preprocessor) directive(path string, line []Token) {
	sig := significantOnly(line)
	if len(sig) < 2 || sig[1].Kind != KindWord {
		// bare '#' or directive-looking line with no name: pass through
		// as an unknown-directive warning per spec.
		pp.proc.Warn(sig[0].Pos, "unknown or empty preprocessor directive")
		return
	}
	name := sig[1].Text
	rest := sig[2:]
	switch name {
	case "define":
		if pp.shouldEmit() {
			pp.directiveDefine(rest)
		}
	case "undef":
		if pp.shouldEmit() {
			pp.directiveUndef(rest)
		}
	case "include":
		if pp.shouldEmit() {
			pp.directiveInclude(path, rest)
		}
	case "if":
		pp.directiveIf(rest)
	case "ifdef":
		pp.directiveIfdef(rest, false)
	case "ifndef":
		pp.directiveIfdef(rest, true)
	case "else":
		pp.directiveElse(sig[0].Pos)
	case "endif":
		pp.directiveEndif(sig[0].Pos)
	case "pragma":
		if pp.shouldEmit() {
			pp.directivePragma(rest)
		}
	default:
		pp.proc.Warn(sig[0].Pos, "unknown preprocessor directive #%s", name)
	}
}

func significantOnly(line []Token) []Token {
	var out []Token
	for _, t := range line {
		if t.IsTrivia() {
			continue
		}
		out = append(out, t)
	}
	return out
}

func (pp *Preprocessor) directiveDefine(rest []Token) {
	if len(rest) == 0 || rest[0].Kind != KindWord {
		return
	}
	name := rest[0].Text
	body := rest[1:]
	// Function-style iff '(' is the literal next token in the raw line
	// (no intervening whitespace token) — spec's "no intervening
	// whitespace" rule operates on the raw (non-trivia-filtered) line, so
	// re-derive from rest using adjacency of byte positions.
	if len(body) > 0 && body[0].Text == "(" && body[0].Pos.Start == rest[0].Pos.End {
		params, afterParen := parseParamList(body)
		pp.Defines.Define(name, Definition{
			Kind:       DefFunction,
			Parameters: params,
			Body:       afterParen,
			Pos:        rest[0].Pos,
		})
		return
	}
	if len(body) == 0 {
		pp.Defines.Define(name, Definition{Kind: DefUnit, Pos: rest[0].Pos})
		return
	}
	pp.Defines.Define(name, Definition{Kind: DefValue, Body: body, Pos: rest[0].Pos})
}

func parseParamList(body []Token) (params []string, after []Token) {
	i := 1 // skip '('
	for i < len(body) {
		if body[i].Text == ")" {
			i++
			break
		}
		if body[i].Kind == KindWord {
			params = append(params, body[i].Text)
		}
		i++
	}
	return params, body[i:]
}

func (pp *Preprocessor) directiveUndef(rest []Token) {
	if len(rest) == 0 || rest[0].Kind != KindWord {
		return
	}
	if !pp.Defines.Undef(rest[0].Text) {
		pp.errs = append(pp.errs, PPError{
			Kind: PE2,
			Pos:  rest[0].Pos,
			Msg:  "cannot #undef builtin " + rest[0].Text,
		})
	}
}

func (pp *Preprocessor) directiveInclude(currentFile string, rest []Token) {
	if len(rest) == 0 {
		return
	}
	angle := rest[0].Text == "<"
	quote := rest[0].Text == "\""
	if !angle && !quote {
		return
	}
	var target strings.Builder
	var body []Token
	i := 1
	for i < len(rest) {
		if (angle && rest[i].Text == ">") || (quote && rest[i].Text == "\"") {
			break
		}
		target.WriteString(rest[i].Text)
		body = append(body, rest[i])
		i++
	}
	pos := rest[0].Pos
	if len(pp.includeStack) >= maxIncludeDepth {
		pp.errs = append(pp.errs, PPError{Kind: PE4, Pos: pos, Msg: "include depth limit exceeded"})
		return
	}
	resolved, content, err := pp.Resolver.Resolve(pp.Root, currentFile, target.String(), angle, body)
	if err != nil {
		pp.errs = append(pp.errs, PPError{Kind: PE3, Pos: pos, Msg: "include not found: " + target.String()})
		return
	}
	for _, seen := range pp.includeStack {
		if seen == resolved {
			pp.errs = append(pp.errs, PPError{Kind: PE4, Pos: pos, Msg: "include cycle at " + resolved})
			return
		}
	}
	pp.includeStack = append(pp.includeStack, resolved)
	pp.run(resolved, content)
	pp.includeStack = pp.includeStack[:len(pp.includeStack)-1]
}

func (pp *Preprocessor) directiveIf(rest []Token) {
	v := int64(0)
	if pp.shouldEmit() {
		expanded := pp.expandTokensRaw(rest)
		v = evalIfExpr(expanded, pp.Defines, pp.proc, &pp.errs)
	}
	pp.ifStack = append(pp.ifStack, &ifFrame{
		branchTaken: v != 0,
		passingNow:  v != 0,
		everTaken:   v != 0,
	})
}

func (pp *Preprocessor) directiveIfdef(rest []Token, negate bool) {
	defined := false
	if len(rest) > 0 && rest[0].Kind == KindWord {
		defined = pp.Defines.IsDefined(rest[0].Text)
	}
	if negate {
		defined = !defined
	}
	pp.ifStack = append(pp.ifStack, &ifFrame{
		branchTaken: defined,
		passingNow:  defined,
		everTaken:   defined,
	})
}

func (pp *Preprocessor) directiveElse(pos Position) {
	if len(pp.ifStack) == 0 {
		pp.errs = append(pp.errs, PPError{Kind: PE2, Pos: pos, Msg: "#else without #if"})
		return
	}
	top := pp.ifStack[len(pp.ifStack)-1]
	if top.sawElse {
		pp.errs = append(pp.errs, PPError{Kind: PE2, Pos: pos, Msg: "duplicate #else"})
		return
	}
	top.sawElse = true
	top.passingNow = !top.everTaken
	if top.passingNow {
		top.everTaken = true
	}
}

func (pp *Preprocessor) directiveEndif(pos Position) {
	if len(pp.ifStack) == 0 {
		pp.errs = append(pp.errs, PPError{Kind: PE2, Pos: pos, Msg: "#endif without #if"})
		return
	}
	pp.ifStack = pp.ifStack[:len(pp.ifStack)-1]
}

func (pp *Preprocessor) directivePragma(rest []Token) {
	if len(rest) == 0 || rest[0].Text != "hemtt" {
		pp.proc.Warn(rest[0].Pos, "unknown pragma namespace")
		return
	}
	glog.V(2).Infof("pragma hemtt: %v", rest[1:])
	// Recognized keys (no_rapify, ignore_variables, ...) are consumed by
	// downstream components (the rapifier, the lint engine) which read
	// pragma state off the Processed's token stream; this component only
	// validates shape and logs at trace level.
}

// -------------------- macro expansion --------------------

// expandLine expands one content line's macros and returns the rendered
// token fragments with original positions for source-map emission.
func (pp *Preprocessor) expandLine(path string, line []Token) []renderedTok {
	return pp.expandTokens(line)
}

// expandTokensRaw expands tokens and returns the flat Token slice (used
// for #if, where only the resulting token stream matters, not per-token
// rendering metadata).
func (pp *Preprocessor) expandTokensRaw(in []Token) []Token {
	var out []Token
	for _, r := range pp.expandTokens(in) {
		out = append(out, Token{Kind: classify(r.text), Text: r.text, Pos: r.origPos})
	}
	return out
}

func classify(s string) Kind {
	if s == "" {
		return KindPunctuation
	}
	if isWordStart(s[0]) {
		for i := 1; i < len(s); i++ {
			if !isWordCont(s[i]) {
				return KindPunctuation
			}
		}
		return KindWord
	}
	if isDigit(s[0]) {
		return KindDigit
	}
	return KindPunctuation
}

func (pp *Preprocessor) expandTokens(in []Token) []renderedTok {
	var out []renderedTok
	i := 0
	for i < len(in) {
		t := in[i]
		if t.Kind != KindWord {
			out = append(out, renderedTok{text: t.Text, origPos: t.Pos})
			i++
			continue
		}
		if b, ok := pp.builtinValue(t); ok {
			out = append(out, renderedTok{text: b, origPos: t.Pos, wasMacro: true})
			i++
			continue
		}
		def, ok := pp.Defines.Lookup(t.Text)
		if !ok || pp.Defines.isActive(t.Text) {
			out = append(out, renderedTok{text: t.Text, origPos: t.Pos})
			i++
			continue
		}
		switch def.Kind {
		case DefUnit:
			i++ // expands to nothing
		case DefValue:
			pp.Defines.push(t.Text)
			expanded := pp.expandTokens(def.Body)
			pp.Defines.pop()
			for _, e := range expanded {
				out = append(out, renderedTok{text: e.text, origPos: t.Pos, wasMacro: true})
			}
			i++
		case DefFunction:
			j := i + 1
			for j < len(in) && in[j].IsTrivia() {
				j++
			}
			if j >= len(in) || in[j].Text != "(" {
				// no call parens follow: leave the bare name, matching
				// the open-question-adjacent PE7 detection path in #if.
				out = append(out, renderedTok{text: t.Text, origPos: t.Pos})
				i++
				continue
			}
			args, endIdx, ok := parseCallArgs(in, j)
			if !ok {
				pp.errs = append(pp.errs, PPError{Kind: PE1, Pos: t.Pos, Msg: "unterminated call to " + t.Text})
				out = append(out, renderedTok{text: t.Text, origPos: t.Pos})
				i++
				continue
			}
			substituted := pp.substitute(def, args)
			pp.Defines.push(t.Text)
			expanded := pp.expandTokens(substituted)
			pp.Defines.pop()
			for _, e := range expanded {
				out = append(out, renderedTok{text: e.text, origPos: t.Pos, wasMacro: true})
			}
			i = endIdx + 1
		}
	}
	return out
}

// parseCallArgs parses a parenthesized, comma-separated argument list
// starting at in[openIdx] == "(". It returns the argument token lists
// (trivia preserved within an argument, trimmed of a single leading and
// trailing trivia token is not necessary since Eval layers ignore it),
// the index of the matching ")", and whether the call was well-formed
// (balanced).
func parseCallArgs(in []Token, openIdx int) (args [][]Token, closeIdx int, ok bool) {
	depth := 0
	var cur []Token
	i := openIdx
	for i < len(in) {
		t := in[i]
		switch {
		case t.Text == "(":
			depth++
			if depth > 1 {
				cur = append(cur, t)
			}
		case t.Text == ")":
			depth--
			if depth == 0 {
				args = append(args, cur)
				return args, i, true
			}
			cur = append(cur, t)
		case t.Text == "," && depth == 1:
			args = append(args, cur)
			cur = nil
		default:
			if depth >= 1 {
				cur = append(cur, t)
			}
		}
		i++
	}
	return nil, 0, false
}

// substitute performs parameter substitution, stringize and paste over a
// function macro's body, given the raw (unexpanded) argument token lists.
// Parameters referenced normally are macro-expanded before substitution;
// parameters referenced via stringize (#x) or adjacent to paste (a##x) use
// the raw argument text.
func (pp *Preprocessor) substitute(def Definition, args [][]Token) []Token {
	paramIdx := func(name string) (int, bool) {
		for i, p := range def.Parameters {
			if p == name {
				return i, true
			}
		}
		return 0, false
	}
	argOf := func(i int) []Token {
		if i < len(args) {
			return args[i]
		}
		return nil
	}

	var out []Token
	body := def.Body
	for i := 0; i < len(body); i++ {
		t := body[i]
		switch {
		case t.Kind == KindHash:
			// stringize: # must be followed (modulo trivia) by a parameter
			j := i + 1
			for j < len(body) && body[j].IsTrivia() {
				j++
			}
			if j < len(body) && body[j].Kind == KindWord {
				if pidx, ok := paramIdx(body[j].Text); ok {
					out = append(out, Token{
						Kind: KindWord, // carries a quoted string as raw text
						Text: stringizeArg(argOf(pidx)),
						Pos:  t.Pos,
					})
					i = j
					continue
				}
			}
			out = append(out, t)
		case t.Kind == KindWord:
			if pidx, ok := paramIdx(t.Text); ok {
				pastePrev := len(out) > 0 && out[len(out)-1].Kind == KindHashHash
				pasteNext := false
				for j := i + 1; j < len(body); j++ {
					if body[j].IsTrivia() {
						continue
					}
					pasteNext = body[j].Kind == KindHashHash
					break
				}
				if pastePrev || pasteNext {
					out = append(out, argOf(pidx)...)
				} else {
					out = append(out, pp.expandArgTokens(argOf(pidx))...)
				}
				continue
			}
			out = append(out, t)
		case t.Kind == KindHashHash:
			// paste: drop whitespace around it, join adjacent tokens.
			j := i + 1
			for j < len(body) && body[j].IsTrivia() {
				j++
			}
			if j < len(body) {
				if pidx, ok := paramIdx(body[j].Text); ok {
					seq, k := append([]Token{t}, argOf(pidx)...), 0
					out = pastePending(out, seq, &k)
					if k < len(seq) {
						out = append(out, seq[k+1:]...)
					}
					i = j
					continue
				}
			}
			out = pastePending(out, body, &i)
		default:
			out = append(out, t)
		}
	}
	return out
}

func (pp *Preprocessor) expandArgTokens(arg []Token) []Token {
	var out []Token
	for _, r := range pp.expandTokens(arg) {
		out = append(out, Token{Kind: classify(r.text), Text: r.text, Pos: r.origPos})
	}
	return out
}

func stringizeArg(arg []Token) string {
	var sb strings.Builder
	sb.WriteByte('"')
	for _, t := range arg {
		if t.Kind == KindWhitespace {
			sb.WriteByte(' ')
			continue
		}
		if t.Text == `"` {
			sb.WriteString(`""`)
			continue
		}
		sb.WriteString(t.Text)
	}
	sb.WriteByte('"')
	return sb.String()
}

// pastePending consumes body[*i] (a "##") plus the already-emitted last
// token of out and the next significant token of body, replacing them
// with one concatenated token, and advances *i past what it consumed.
func pastePending(out []Token, body []Token, i *int) []Token {
	if len(out) == 0 {
		return out
	}
	left := out[len(out)-1]
	out = out[:len(out)-1]
	j := *i + 1
	for j < len(body) && body[j].IsTrivia() {
		j++
	}
	if j >= len(body) {
		*i = j
		return append(out, left)
	}
	right := body[j]
	*i = j
	joined := Token{
		Kind: classify(left.Text + right.Text),
		Text: left.Text + right.Text,
		Pos:  left.Pos,
	}
	return append(out, joined)
}

// -------------------- builtins --------------------

func (pp *Preprocessor) builtinValue(t Token) (string, bool) {
	def, ok := pp.Defines.Lookup(t.Text)
	if !ok || def.Builtin == nil {
		return "", false
	}
	toks := def.Builtin(&ppContext{pp: pp, at: t}, nil)
	var sb strings.Builder
	for _, x := range toks {
		sb.WriteString(x.Text)
	}
	return sb.String(), true
}

// ppContext is the small capability object passed to builtin macro
// implementations; it exposes just enough of the running Preprocessor for
// __LINE__/__FILE__/__COUNTER__ style builtins without exposing expansion
// internals.
type ppContext struct {
	pp *Preprocessor
	at Token
}

func registerLexicalBuiltins(d *Defines) {
	d.Define("__LINE__", Definition{Kind: DefValue, Builtin: func(ctx *ppContext, _ [][]Token) []Token {
		return []Token{{Kind: KindDigit, Text: strconv.Itoa(ctx.at.Pos.Line)}}
	}})
	d.Define("__FILE__", Definition{Kind: DefValue, Builtin: func(ctx *ppContext, _ [][]Token) []Token {
		return []Token{{Kind: KindWord, Text: `"` + ctx.at.Pos.Path + `"`}}
	}})
	d.Define("__COUNTER__", Definition{Kind: DefValue, Builtin: func(ctx *ppContext, _ [][]Token) []Token {
		n := ctx.pp.Defines.nextCounter()
		return []Token{{Kind: KindDigit, Text: strconv.Itoa(n)}}
	}})
	d.Define("__COUNTER_RESET__", Definition{Kind: DefUnit, Builtin: func(ctx *ppContext, _ [][]Token) []Token {
		ctx.pp.Defines.resetCounter()
		return nil
	}})
}

func registerDateTimeBuiltins(d *Defines) {
	now := time.Now()
	d.Define("__DATE__", Definition{Kind: DefValue, Builtin: func(ctx *ppContext, _ [][]Token) []Token {
		return []Token{{Kind: KindWord, Text: `"` + now.Format("Jan 02 2006") + `"`}}
	}})
	d.Define("__TIME__", Definition{Kind: DefValue, Builtin: func(ctx *ppContext, _ [][]Token) []Token {
		return []Token{{Kind: KindWord, Text: `"` + now.Format("15:04:05") + `"`}}
	}})
	d.Define("__TIMESTAMP__", Definition{Kind: DefValue, Builtin: func(ctx *ppContext, _ [][]Token) []Token {
		return []Token{{Kind: KindWord, Text: `"` + now.Format(time.RFC1123) + `"`}}
	}})
}
