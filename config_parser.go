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

// configParser is a recursive-descent parser over the tokens of a
// Processed's rendered text. It never panics on malformed input: on an
// unexpected token at statement position it synthesizes an Invalid value
// or a MissingSemicolon property covering the offending run and resumes
// at the next ';' or matching '}', in the teacher's parser.go style of
// explicit error accumulation plus forward recovery rather than
// backtracking.
type configParser struct {
	path   string
	toks   []Token
	pos    int
	codes  []Code
}

// ParseConfig parses path's processed text into a Config AST, returning
// every recovered Property plus the diagnostics raised along the way
// (missing semicolons, unparsable values, etc).
func ParseConfig(path, processedText string) (*Config, []Code) {
	toks := NewLexer(path, []byte(processedText)).Tokenize()
	p := &configParser{path: path, toks: filterTrivia(toks)}
	cfg := &Config{Properties: p.parseProperties(true)}
	return cfg, p.codes
}

func filterTrivia(toks []Token) []Token {
	var out []Token
	for _, t := range toks {
		if t.Kind == KindComment {
			continue
		}
		out = append(out, t)
	}
	return out
}

func (p *configParser) peek() Token {
	if p.pos >= len(p.toks) {
		return Token{Kind: KindEOI}
	}
	return skipWS(p.toks, p.pos)
}

// skipWS returns the first non-whitespace/newline token at or after idx,
// without mutating parser state (used by peek).
func skipWS(toks []Token, idx int) Token {
	for idx < len(toks) {
		if toks[idx].Kind == KindWhitespace || toks[idx].Kind == KindNewline {
			idx++
			continue
		}
		return toks[idx]
	}
	return Token{Kind: KindEOI}
}

func (p *configParser) advance() Token {
	for p.pos < len(p.toks) && (p.toks[p.pos].Kind == KindWhitespace || p.toks[p.pos].Kind == KindNewline) {
		p.pos++
	}
	if p.pos >= len(p.toks) {
		return Token{Kind: KindEOI}
	}
	t := p.toks[p.pos]
	p.pos++
	return t
}

func (p *configParser) at(text string) bool {
	return p.peek().Text == text
}

func (p *configParser) error(ident string, span Range, msg string) {
	p.codes = append(p.codes, NewCode(ident, SeverityError, p.path, span, msg))
}

// parseProperties parses a `{ ... }` or top-level property list. top
// indicates there is no closing brace to look for (end of file instead).
func (p *configParser) parseProperties(top bool) []Property {
	var props []Property
	for {
		t := p.peek()
		if t.Kind == KindEOI {
			return props
		}
		if !top && t.Text == "}" {
			return props
		}
		props = append(props, p.parseProperty())
	}
}

func (p *configParser) parseProperty() Property {
	start := p.peek().Pos.Start
	switch {
	case p.at("class"):
		return p.parseClass(start)
	case p.at("delete"):
		return p.parseDelete(start)
	default:
		return p.parseEntry(start)
	}
}

func (p *configParser) parseClass(start int) Property {
	p.advance() // 'class'
	nameTok := p.advance()
	name := nameTok.Text

	if p.at(";") {
		p.advance()
		end := p.prevEnd(start)
		return Property{Kind: PropClass, Span: Range{start, end}, Class: &Class{Kind: ClassExternal, Name: name, Span: Range{start, end}}}
	}

	parent := ""
	if p.at(":") {
		p.advance()
		parent = p.advance().Text
	}

	if !p.at("{") {
		p.error("C-PARSE", Range{start, p.peek().Pos.End}, "expected '{' or ';' after class "+name)
		p.resyncStatement()
		end := p.prevEnd(start)
		return Property{Kind: PropMissingSemicolon, Span: Range{start, end}, BadName: name}
	}
	p.advance() // '{'
	props := p.parseProperties(false)
	closeEnd := p.peek().Pos.End
	if p.at("}") {
		p.advance()
	}
	if p.at(";") {
		p.advance()
		closeEnd = p.prevEnd(start)
	} else {
		p.error("C-MISSING-SEMI", Range{start, closeEnd}, "missing ';' after class "+name)
	}
	return Property{
		Kind: PropClass,
		Span: Range{start, closeEnd},
		Class: &Class{
			Kind:   ClassLocal,
			Name:   name,
			Parent: parent,
			Props:  props,
			Span:   Range{start, closeEnd},
		},
	}
}

func (p *configParser) parseDelete(start int) Property {
	p.advance() // 'delete'
	name := p.advance().Text
	end := p.prevEnd(start)
	if p.at(";") {
		p.advance()
		end = p.prevEnd(start)
	} else {
		p.error("C-MISSING-SEMI", Range{start, end}, "missing ';' after delete "+name)
		p.resyncStatement()
	}
	return Property{Kind: PropDelete, Span: Range{start, end}, Delete: name}
}

func (p *configParser) parseEntry(start int) Property {
	nameTok := p.advance()
	name := nameTok.Text
	expectedArray := false
	appendOp := false
	if p.at("[") {
		p.advance()
		if p.at("]") {
			p.advance()
		}
		expectedArray = true
	}
	if p.at("+") {
		// the lexer emits "+=" as two punctuation tokens
		save := p.pos
		p.advance()
		if p.at("=") {
			appendOp = true
		} else {
			p.pos = save
		}
	}
	if appendOp {
		p.advance()
	} else if p.at("=") {
		p.advance()
	} else {
		p.error("C-PARSE", Range{start, p.peek().Pos.End}, "expected '=' after "+name)
		p.resyncStatement()
		return Property{Kind: PropMissingSemicolon, Span: Range{start, p.prevEnd(start)}, BadName: name}
	}
	val := p.parseValue()
	end := p.prevEnd(start)
	if p.at(";") {
		p.advance()
		end = p.prevEnd(start)
	} else {
		p.error("C-MISSING-SEMI", Range{start, end}, "missing ';' after "+name)
		// a statement starting on a later line is left for the next
		// parseProperty call rather than skipped
		if p.pos > 0 && p.peek().Pos.Line == p.toks[p.pos-1].Pos.Line {
			p.resyncStatement()
		}
	}
	return Property{
		Kind: PropEntry,
		Span: Range{start, end},
		Entry: &Entry{
			Name:          name,
			Value:         val,
			ExpectedArray: expectedArray,
			Append:        appendOp,
			Span:          Range{start, end},
		},
	}
}

// resyncStatement advances until the next ';' or '}' (recovery sync
// point), consuming the separator itself when it's a ';'.
func (p *configParser) resyncStatement() {
	for {
		t := p.peek()
		if t.Kind == KindEOI || t.Text == "}" {
			return
		}
		if t.Text == ";" {
			p.advance()
			return
		}
		p.advance()
	}
}

func (p *configParser) prevEnd(fallback int) int {
	if p.pos == 0 {
		return fallback
	}
	return p.toks[p.pos-1].Pos.End
}

// parseValue parses one Value, including inline arithmetic folded into a
// kept-as-text Expression when operator tokens are recognized between
// numeric operands.
func (p *configParser) parseValue() Value {
	t := p.peek()
	start := t.Pos.Start
	switch {
	case t.Text == "{":
		return p.parseArrayValue(start)
	case t.Kind == KindQuote:
		return p.parseStringValue(start)
	case t.Kind == KindDigit || t.Text == "-":
		return p.parseNumberOrExpr(start)
	default:
		p.advance()
		return Value{Kind: ValueInvalid, Span: Range{start, p.prevEnd(start)}}
	}
}

func (p *configParser) parseArrayValue(start int) Value {
	p.advance() // '{'
	var items []Item
	for !p.at("}") && p.peek().Kind != KindEOI {
		items = append(items, p.parseItem())
		if p.at(",") {
			p.advance()
		} else {
			break
		}
	}
	if p.at("}") {
		p.advance()
	}
	return Value{Kind: ValueArray, Items: items, Span: Range{start, p.prevEnd(start)}}
}

func (p *configParser) parseItem() Item {
	t := p.peek()
	start := t.Pos.Start
	switch {
	case t.Text == "{":
		v := p.parseArrayValue(start)
		return Item{Kind: ItemArray, Items: v.Items, Span: v.Span}
	case t.Kind == KindQuote:
		v := p.parseStringValue(start)
		return Item{Kind: ItemStr, Str: v.Str, Span: v.Span}
	case t.Kind == KindDigit || t.Text == "-":
		v := p.parseNumberOrExpr(start)
		if v.Kind == ValueNumberFloat {
			return Item{Kind: ItemNumberFloat, Float: v.Float, Span: v.Span}
		}
		return Item{Kind: ItemNumberInt, Int: v.Int, Span: v.Span}
	default:
		p.advance()
		return Item{Kind: ItemInvalid, Span: Range{start, p.prevEnd(start)}}
	}
}

// parseStringValue re-glues open-quote, inner tokens, close-quote into one
// string, honoring "" as a literal embedded quote.
func (p *configParser) parseStringValue(start int) Value {
	p.advance() // opening quote
	var sb strings.Builder
	// walk p.toks directly: peek/advance skip whitespace, which is part of
	// the string's contents
	for p.pos < len(p.toks) && p.toks[p.pos].Kind != KindEOI {
		t := p.toks[p.pos]
		p.pos++
		if t.Kind == KindQuote {
			if p.pos < len(p.toks) && p.toks[p.pos].Kind == KindQuote {
				sb.WriteByte('"')
				p.pos++
				continue
			}
			break
		}
		sb.WriteString(t.Text)
	}
	return Value{Kind: ValueStr, Str: sb.String(), Span: Range{start, p.prevEnd(start)}}
}

// parseNumberOrExpr parses a signed int/float/hex literal, or — when an
// arithmetic operator follows — an Expression value kept as raw text
// rather than evaluated.
func (p *configParser) parseNumberOrExpr(start int) Value {
	first := p.pos
	neg := false
	if p.at("-") {
		neg = true
		p.advance()
	}
	numTok := p.advance()
	isFloat := strings.ContainsAny(numTok.Text, ".eE") && !strings.HasPrefix(numTok.Text, "0x") && !strings.HasPrefix(numTok.Text, "0X")

	sawOperator := false
	for isArithOp(p.peek().Text) {
		sawOperator = true
		p.advance()
		// operand: optional unary minus then a number
		if p.at("-") {
			p.advance()
		}
		if p.at("(") {
			p.consumeParenGroup()
			continue
		}
		n := p.advance()
		if strings.ContainsAny(n.Text, ".eE") {
			isFloat = true
		}
	}
	if sawOperator {
		// the source text as written, spacing included
		var raw strings.Builder
		for _, t := range p.toks[first:p.pos] {
			raw.WriteString(t.Text)
		}
		return Value{Kind: ValueExpression, Expr: strings.TrimSpace(raw.String()), Span: Range{start, p.prevEnd(start)}}
	}
	if isFloat {
		f, err := strconv.ParseFloat(numTok.Text, 32)
		if err != nil {
			return Value{Kind: ValueInvalid, Span: Range{start, p.prevEnd(start)}}
		}
		v := float32(f)
		if neg {
			v = -v
		}
		return Value{Kind: ValueNumberFloat, Float: v, Span: Range{start, p.prevEnd(start)}}
	}
	n, err := strconv.ParseInt(numTok.Text, 0, 64)
	if err != nil {
		return Value{Kind: ValueInvalid, Span: Range{start, p.prevEnd(start)}}
	}
	v := int32(n)
	if neg {
		v = -v
	}
	return Value{Kind: ValueNumberInt, Int: v, Span: Range{start, p.prevEnd(start)}}
}

func (p *configParser) consumeParenGroup() string {
	var sb strings.Builder
	sb.WriteString(p.advance().Text) // '('
	depth := 1
	for depth > 0 {
		t := p.peek()
		if t.Kind == KindEOI {
			break
		}
		if t.Text == "(" {
			depth++
		} else if t.Text == ")" {
			depth--
		}
		sb.WriteString(t.Text)
		p.advance()
	}
	return sb.String()
}

func isArithOp(s string) bool {
	switch s {
	case "+", "-", "*", "/", "%":
		return true
	}
	return false
}
