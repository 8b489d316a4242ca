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

// Optimize runs a fixed set of peephole passes over p in place and
// returns it, mirroring the teacher's rule_parser.go posture of running a
// handful of independent rewrite passes until none of them fire rather
// than one monolithic pass.
func Optimize(p *Program) *Program {
	for _, c := range p.Consts {
		if c.Kind == ConstCode && c.Code != nil {
			Optimize(c.Code)
		}
	}
	changed := true
	for changed {
		changed = false
		if foldConstantArith(p) {
			changed = true
		}
		if foldStringConcat(p) {
			changed = true
		}
		if foldConstSelect(p) {
			changed = true
		}
		if removeDeadEndStmt(p) {
			changed = true
		}
	}
	return p
}

// foldConstSelect rewrites the fixed six-instruction shape produced by
// `true then {A} else {B}` / `false then {A} else {B}` — a literal
// condition guarding two code-block branches — into a direct call of
// the branch that is statically known to run, dropping the other
// branch's code entirely.
//
//	PUSH_CONST <bool>; UNARY "if"; PUSH_CONST <codeA>; BINARY "then";
//	PUSH_CONST <codeB>; BINARY "else"
func foldConstSelect(p *Program) bool {
	changed := false
	for i := 0; i+5 < len(p.Instrs); i++ {
		cond, ifOp, thenPush, thenOp, elsePush, elseOp :=
			p.Instrs[i], p.Instrs[i+1], p.Instrs[i+2], p.Instrs[i+3], p.Instrs[i+4], p.Instrs[i+5]
		if cond.Op != OpPushConst || ifOp.Op != OpUnary || strings.ToLower(p.Consts[ifOp.Arg0].Str) != "if" {
			continue
		}
		if thenPush.Op != OpPushConst || thenOp.Op != OpBinary || strings.ToLower(p.Consts[thenOp.Arg0].Str) != "then" {
			continue
		}
		if elsePush.Op != OpPushConst || elseOp.Op != OpBinary || strings.ToLower(p.Consts[elseOp.Arg0].Str) != "else" {
			continue
		}
		cc := p.Consts[cond.Arg0]
		if cc.Kind != ConstScalar || cc.IsNil {
			continue
		}
		chosen := elsePush.Arg0
		if cc.Bool {
			chosen = thenPush.Arg0
		}
		callName := p.strPoolFallback("call")
		p.Instrs[i] = Instr{Op: OpPushConst, Arg0: chosen}
		p.Instrs[i+1] = Instr{Op: OpUnary, Arg0: callName}
		p.Instrs = append(p.Instrs[:i+2], p.Instrs[i+6:]...)
		p.Debug = append(p.Debug[:i+2], p.Debug[i+6:]...)
		changed = true
	}
	return changed
}

// strPoolFallback finds or appends a ConstString entry for s. Used by
// optimizer passes, which run after compilation and so no longer have
// access to the compiler's intern maps.
func (p *Program) strPoolFallback(s string) int {
	for i, c := range p.Consts {
		if c.Kind == ConstString && c.Str == s {
			return i
		}
	}
	idx := len(p.Consts)
	p.Consts = append(p.Consts, Const{Kind: ConstString, Str: s})
	return idx
}

// foldConstantArith folds `PUSH_CONST a; PUSH_CONST b; BINARY op` into a
// single PUSH_CONST when op is one of the arithmetic fixed operators and
// both operands are numeric scalar constants.
func foldConstantArith(p *Program) bool {
	changed := false
	for i := 0; i+2 < len(p.Instrs); i++ {
		a, b, op := p.Instrs[i], p.Instrs[i+1], p.Instrs[i+2]
		if a.Op != OpPushConst || b.Op != OpPushConst || op.Op != OpBinary {
			continue
		}
		ca, cb := p.Consts[a.Arg0], p.Consts[b.Arg0]
		if ca.Kind != ConstScalar || cb.Kind != ConstScalar || ca.IsNil || cb.IsNil {
			continue
		}
		opName := p.Consts[op.Arg0].Str
		result, ok := applyArith(strings.ToLower(opName), ca.Num, cb.Num)
		if !ok {
			continue
		}
		idx := len(p.Consts)
		p.Consts = append(p.Consts, Const{Kind: ConstScalar, Num: result})
		p.Instrs[i] = Instr{Op: OpPushConst, Arg0: idx}
		p.Instrs = append(p.Instrs[:i+1], p.Instrs[i+3:]...)
		p.Debug = append(p.Debug[:i+1], p.Debug[i+3:]...)
		changed = true
	}
	return changed
}

func applyArith(op string, a, b float64) (float64, bool) {
	switch op {
	case "+":
		return a + b, true
	case "-":
		return a - b, true
	case "*":
		return a * b, true
	case "/":
		if b == 0 {
			return 0, false
		}
		return a / b, true
	case "%", "mod":
		if b == 0 {
			return 0, false
		}
		return float64(int64(a) % int64(b)), true
	}
	return 0, false
}

// foldStringConcat folds `PUSH_CONST "a"; PUSH_CONST "b"; BINARY +` into a
// single concatenated string constant.
func foldStringConcat(p *Program) bool {
	changed := false
	for i := 0; i+2 < len(p.Instrs); i++ {
		a, b, op := p.Instrs[i], p.Instrs[i+1], p.Instrs[i+2]
		if a.Op != OpPushConst || b.Op != OpPushConst || op.Op != OpBinary {
			continue
		}
		ca, cb := p.Consts[a.Arg0], p.Consts[b.Arg0]
		if ca.Kind != ConstString || cb.Kind != ConstString {
			continue
		}
		if p.Consts[op.Arg0].Str != "+" {
			continue
		}
		idx := len(p.Consts)
		p.Consts = append(p.Consts, Const{Kind: ConstString, Str: ca.Str + cb.Str})
		p.Instrs[i] = Instr{Op: OpPushConst, Arg0: idx}
		p.Instrs = append(p.Instrs[:i+1], p.Instrs[i+3:]...)
		p.Debug = append(p.Debug[:i+1], p.Debug[i+3:]...)
		changed = true
	}
	return changed
}

// removeDeadEndStmt drops a leading run of instructions for a statement
// whose only effect is pushing a value that nothing consumes, recognized
// as a PUSH_CONST/PUSH_VAR immediately followed by END_STMT with no
// preceding ASSIGN — the bare-literal-statement idiom left behind once
// foldConstantArith/foldStringConcat have collapsed an expression down to
// a single no-op push. Real scripts rarely write these directly; they
// appear once earlier passes eliminate everything else in the statement.
func removeDeadEndStmt(p *Program) bool {
	changed := false
	for i := 0; i+1 < len(p.Instrs); i++ {
		if p.Instrs[i].Op != OpPushConst && p.Instrs[i].Op != OpPushVar {
			continue
		}
		if p.Instrs[i+1].Op != OpEndStmt {
			continue
		}
		// A push immediately followed by END_STMT with no side effect is
		// only dead when it isn't the sole content of a code block that
		// callers may rely on for its return value, so this pass never
		// fires on the final statement of a Program.
		if i+2 >= len(p.Instrs) {
			continue
		}
		p.Instrs = append(p.Instrs[:i], p.Instrs[i+2:]...)
		p.Debug = append(p.Debug[:i], p.Debug[i+2:]...)
		changed = true
	}
	return changed
}
