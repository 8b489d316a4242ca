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

// sqfParser is a recursive-descent parser over the tokens of a Processed
// script file, in the same style as configParser: explicit error
// accumulation, forward recovery at the next ';' rather than
// backtracking. Precedence mirrors the host scripting language: assignment
// lowest, then ||, &&, comparison, +/-, * / %, unary, call.
type sqfParser struct {
	path  string
	toks  []Token
	pos   int
	codes []Code
}

// ParseSQF parses path's processed text into a Statements AST.
func ParseSQF(path, processedText string) (*Statements, []Code) {
	// whitespace, newlines and comments are dropped, except inside string
	// literals, whose contents parseStringLiteral re-glues token by token
	var toks []Token
	inString := false
	for _, t := range NewLexer(path, []byte(processedText)).Tokenize() {
		if t.Kind == KindQuote {
			inString = !inString
		}
		if inString || !t.IsTrivia() {
			toks = append(toks, t)
		}
	}
	p := &sqfParser{path: path, toks: toks}
	start := 0
	if len(toks) > 0 {
		start = toks[0].Pos.Start
	}
	stmts := p.parseStatements(false)
	end := p.prevEnd(start)
	return &Statements{Content: stmts, Span: Range{start, end}}, p.codes
}

func (p *sqfParser) peek() Token {
	if p.pos >= len(p.toks) {
		return Token{Kind: KindEOI}
	}
	return p.toks[p.pos]
}

func (p *sqfParser) at(text string) bool { return p.peek().Text == text }

func (p *sqfParser) atKeyword(word string) bool {
	return strings.EqualFold(p.peek().Text, word) && p.peek().Kind == KindWord
}

func (p *sqfParser) advance() Token {
	if p.pos >= len(p.toks) {
		return Token{Kind: KindEOI}
	}
	t := p.toks[p.pos]
	p.pos++
	return t
}

func (p *sqfParser) prevEnd(fallback int) int {
	if p.pos == 0 {
		return fallback
	}
	return p.toks[p.pos-1].Pos.End
}

func (p *sqfParser) error(ident, msg string, span Range) {
	p.codes = append(p.codes, NewCode(ident, SeverityError, p.path, span, msg))
}

// parseStatements parses statements until EOF or, inside a code block,
// until a closing '}'.
func (p *sqfParser) parseStatements(inBlock bool) []Statement {
	var out []Statement
	for {
		t := p.peek()
		if t.Kind == KindEOI {
			return out
		}
		if inBlock && t.Text == "}" {
			return out
		}
		out = append(out, p.parseStatement())
	}
}

func (p *sqfParser) parseStatement() Statement {
	start := p.peek().Pos.Start
	kind := StmtExpression
	name := ""

	// Lookahead for `name = expr;` / `private name = expr;`. A bare
	// `private "x"` (declaration without assignment) is left as a plain
	// expression statement — the unary "private" command handles that
	// shape.
	isPrivate := p.atKeyword("private") && p.toks[minInt(p.pos+1, len(p.toks)-1)].Kind == KindWord

	if isPrivate {
		p.advance() // 'private'
		nameTok := p.advance()
		if p.at("=") {
			p.advance()
			expr := p.parseAssignRHS()
			end := p.prevEnd(start)
			p.consumeSemi()
			return Statement{Kind: StmtAssignLocal, Name: nameTok.Text, Expr: expr, Span: Range{start, end}}
		}
		// not actually an assignment: rewind and fall through to a plain
		// expression statement starting with the unary "private" command.
		p.pos -= 2
	}

	if p.peek().Kind == KindWord && !isReservedWord(p.peek().Text) {
		save := p.pos
		nameTok := p.advance()
		if p.at("=") {
			p.advance()
			expr := p.parseAssignRHS()
			end := p.prevEnd(start)
			p.consumeSemi()
			return Statement{Kind: StmtAssignGlobal, Name: nameTok.Text, Expr: expr, Span: Range{start, end}}
		}
		p.pos = save
	}

	expr := p.parseAssignRHS()
	end := p.prevEnd(start)
	p.consumeSemi()
	return Statement{Kind: kind, Name: name, Expr: expr, Span: Range{start, end}}
}

func (p *sqfParser) consumeSemi() {
	if p.at(";") {
		p.advance()
		return
	}
	// Missing terminator: recover at the next ';' or block boundary,
	// matching the config parser's recovery posture.
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

func isReservedWord(s string) bool {
	switch strings.ToLower(s) {
	case "true", "false", "private":
		return true
	}
	return false
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// parseAssignRHS parses one full expression, starting at precedence level
// 0 so binary-classified named commands (the loosest-binding operators,
// looser than even ||) are eligible at this outermost position.
func (p *sqfParser) parseAssignRHS() Expr {
	return p.parseBinaryLevel(0)
}

// parseBinaryLevel implements precedence-climbing over fixedOperators and
// binary-classified named commands, which are treated as having the
// lowest operator precedence (level 0, applied after all fixed operators
// bind), matching the host language's "commands bind loosest" rule.
func (p *sqfParser) parseBinaryLevel(minPrec int) Expr {
	lhs := p.parseUnary()
	for {
		t := p.peek()
		if isFixedOperator(t.Text) {
			prec := operatorPrecedence(t.Text)
			if prec < minPrec {
				break
			}
			op := p.advance().Text
			rhs := p.parseBinaryLevel(prec + 1)
			span := Range{lhs.Span.Start, rhs.Span.End}
			l, r := lhs, rhs
			lhs = Expr{Kind: ExprBinary, Op: op, LHS: &l, RHS: &r, Span: span}
			continue
		}
		if t.Kind == KindWord {
			if info, ok := lookupCommand(t.Text); ok && (info.binary || info.unary) {
				// Ambiguity rule: the binary form wins if a valid RHS
				// follows; otherwise the name is left for the caller
				// (parseUnary already bound a preceding unary form, so
				// reaching here means lhs is complete and t starts a new
				// operator position).
				if info.binary && minPrec <= 0 {
					save := p.pos
					p.advance()
					rhs, ok := p.tryParseUnary()
					if ok {
						span := Range{lhs.Span.Start, rhs.Span.End}
						l, r := lhs, rhs
						lhs = Expr{Kind: ExprBinary, Op: t.Text, LHS: &l, RHS: &r, Span: span}
						continue
					}
					p.pos = save
				}
			}
		}
		break
	}
	return lhs
}

func (p *sqfParser) tryParseUnary() (Expr, bool) {
	if p.peek().Kind == KindEOI || p.at(";") || p.at("}") || p.at(")") {
		return Expr{}, false
	}
	return p.parseUnary(), true
}

func (p *sqfParser) parseUnary() Expr {
	t := p.peek()
	if t.Kind == KindWord {
		if info, ok := lookupCommand(t.Text); ok && info.unary && !info.nular {
			p.advance()
			start := t.Pos.Start
			operand := p.parseUnary()
			span := Range{start, operand.Span.End}
			return Expr{Kind: ExprUnary, Name: t.Text, RHS: &operand, Span: span}
		}
	}
	return p.parseCall()
}

// parseCall parses a primary expression: literal, variable, array, code
// block, parenthesized expression, or a bare nular command.
func (p *sqfParser) parseCall() Expr {
	t := p.peek()
	start := t.Pos.Start
	switch {
	case t.Text == "{":
		p.advance()
		stmts := p.parseStatements(true)
		end := p.prevEnd(start)
		if p.at("}") {
			p.advance()
			end = p.prevEnd(start)
		}
		return Expr{Kind: ExprCode, Code: &Statements{Content: stmts, Span: Range{start, end}}, Span: Range{start, end}}
	case t.Text == "[":
		p.advance()
		var elems []Expr
		for !p.at("]") && p.peek().Kind != KindEOI {
			elems = append(elems, p.parseBinaryLevel(0))
			if p.at(",") {
				p.advance()
			} else {
				break
			}
		}
		end := p.prevEnd(start)
		if p.at("]") {
			p.advance()
			end = p.prevEnd(start)
		}
		return Expr{Kind: ExprArray, Elements: elems, Span: Range{start, end}}
	case t.Text == "(":
		p.advance()
		inner := p.parseBinaryLevel(0)
		if p.at(")") {
			p.advance()
		}
		inner.Span = Range{start, p.prevEnd(start)}
		return inner
	case t.Kind == KindQuote:
		return p.parseStringLiteral(start)
	case t.Kind == KindDigit:
		p.advance()
		n, _ := strconv.ParseFloat(t.Text, 64)
		return Expr{Kind: ExprNumber, Num: n, Span: Range{start, p.prevEnd(start)}}
	case strings.EqualFold(t.Text, "true") && t.Kind == KindWord:
		p.advance()
		return Expr{Kind: ExprBoolean, Bool: true, Span: Range{start, p.prevEnd(start)}}
	case strings.EqualFold(t.Text, "false") && t.Kind == KindWord:
		p.advance()
		return Expr{Kind: ExprBoolean, Bool: false, Span: Range{start, p.prevEnd(start)}}
	case t.Kind == KindWord:
		p.advance()
		if info, ok := lookupCommand(t.Text); ok && info.nular {
			return Expr{Kind: ExprNular, Name: t.Text, Span: Range{start, p.prevEnd(start)}}
		}
		return Expr{Kind: ExprVariable, Name: t.Text, Span: Range{start, p.prevEnd(start)}}
	default:
		p.error("S-PARSE", "unexpected token "+t.Text, Range{start, t.Pos.End})
		p.advance()
		return Expr{Kind: ExprVariable, Name: "", Span: Range{start, p.prevEnd(start)}}
	}
}

func (p *sqfParser) parseStringLiteral(start int) Expr {
	p.advance() // opening quote
	var sb strings.Builder
	for {
		t := p.peek()
		if t.Kind == KindEOI {
			break
		}
		if t.Kind == KindQuote {
			p.advance()
			if p.peek().Kind == KindQuote {
				sb.WriteByte('"')
				p.advance()
				continue
			}
			break
		}
		sb.WriteString(t.Text)
		p.advance()
	}
	return Expr{Kind: ExprString, Str: sb.String(), Span: Range{start, p.prevEnd(start)}}
}
