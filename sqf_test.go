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

import "testing"

func TestSQFParseAssignAndBinary(t *testing.T) {
	stmts, codes := ParseSQF("test.sqf", "private _x = 1 + 2;")
	if len(codes) != 0 {
		t.Fatalf("unexpected diagnostics: %v", codes)
	}
	if len(stmts.Content) != 1 {
		t.Fatalf("want 1 statement, got %d", len(stmts.Content))
	}
	s := stmts.Content[0]
	if s.Kind != StmtAssignLocal || s.Name != "_x" {
		t.Fatalf("want private assignment to _x, got %+v", s)
	}
	if s.Expr.Kind != ExprBinary || s.Expr.Op != "+" {
		t.Fatalf("want binary + expression, got %+v", s.Expr)
	}
	if s.Expr.LHS.Kind != ExprNumber || s.Expr.LHS.Num != 1 {
		t.Fatalf("unexpected LHS: %+v", s.Expr.LHS)
	}
	if s.Expr.RHS.Kind != ExprNumber || s.Expr.RHS.Num != 2 {
		t.Fatalf("unexpected RHS: %+v", s.Expr.RHS)
	}
}

func TestSQFParseCommandBinaryIfThenElse(t *testing.T) {
	stmts, codes := ParseSQF("test.sqf", "result = if true then {1} else {2};")
	if len(codes) != 0 {
		t.Fatalf("unexpected diagnostics: %v", codes)
	}
	s := stmts.Content[0]
	if s.Kind != StmtAssignGlobal || s.Name != "result" {
		t.Fatalf("want global assignment to result, got %+v", s)
	}
	elseExpr := s.Expr
	if elseExpr.Kind != ExprBinary || elseExpr.Op != "else" {
		t.Fatalf("want outermost else binary, got %+v", elseExpr)
	}
	thenExpr := elseExpr.LHS
	if thenExpr.Kind != ExprBinary || thenExpr.Op != "then" {
		t.Fatalf("want then binary as else's LHS, got %+v", thenExpr)
	}
	ifExpr := thenExpr.LHS
	if ifExpr.Kind != ExprUnary || ifExpr.Name != "if" {
		t.Fatalf("want unary if as then's LHS, got %+v", ifExpr)
	}
	if ifExpr.RHS.Kind != ExprBoolean || ifExpr.RHS.Bool != true {
		t.Fatalf("want if's operand to be literal true, got %+v", ifExpr.RHS)
	}
	if thenExpr.RHS.Kind != ExprCode || elseExpr.RHS.Kind != ExprCode {
		t.Fatalf("want then/else branches to be code blocks, got then=%+v else=%+v", thenExpr.RHS, elseExpr.RHS)
	}
}

func TestSQFCompileConstantArrayFolds(t *testing.T) {
	stmts, _ := ParseSQF("test.sqf", "_arr = [1, 2, 3];")
	prog := Compile("test.sqf", stmts)
	if len(prog.Instrs) != 3 {
		t.Fatalf("want PUSH_CONST, ASSIGN, END_STMT, got %d instrs: %+v", len(prog.Instrs), prog.Instrs)
	}
	if prog.Instrs[0].Op != OpPushConst {
		t.Fatalf("want a folded PUSH_CONST for the whole array, got %v", prog.Instrs[0].Op)
	}
	c := prog.Consts[prog.Instrs[0].Arg0]
	if c.Kind != ConstArray || len(c.Items) != 3 {
		t.Fatalf("want a 3-element ConstArray, got %+v", c)
	}
}

func TestSQFCompileNonConstantArrayAssemblesAtRuntime(t *testing.T) {
	stmts, _ := ParseSQF("test.sqf", "_arr = [1, _x, 2];")
	prog := Compile("test.sqf", stmts)
	// PUSH_CONST(1), PUSH_VAR(_x), PUSH_CONST(2), NULAR(_array, 3), ASSIGN, END_STMT
	if len(prog.Instrs) != 6 {
		t.Fatalf("want 6 instrs, got %d: %+v", len(prog.Instrs), prog.Instrs)
	}
	marker := prog.Instrs[3]
	if marker.Op != OpNular || marker.Arg1 != 3 {
		t.Fatalf("want an _array NULAR marker with count 3, got %+v", marker)
	}
	if prog.Consts[marker.Arg0].Str != "_array" {
		t.Fatalf("want marker name _array, got %q", prog.Consts[marker.Arg0].Str)
	}
}

func TestSQFOptimizeConstantArithFold(t *testing.T) {
	stmts, _ := ParseSQF("test.sqf", "_x = 1 + 2;")
	prog := Optimize(Compile("test.sqf", stmts))
	if len(prog.Instrs) != 3 {
		t.Fatalf("want PUSH_CONST, ASSIGN, END_STMT after folding, got %d: %+v", len(prog.Instrs), prog.Instrs)
	}
	if prog.Instrs[0].Op != OpPushConst {
		t.Fatalf("want folded PUSH_CONST, got %v", prog.Instrs[0].Op)
	}
	c := prog.Consts[prog.Instrs[0].Arg0]
	if c.Kind != ConstScalar || c.Num != 3 {
		t.Fatalf("want folded constant 3, got %+v", c)
	}
}

func TestSQFOptimizeStringConcatFold(t *testing.T) {
	stmts, _ := ParseSQF("test.sqf", `_x = "a" + "b";`)
	prog := Optimize(Compile("test.sqf", stmts))
	if len(prog.Instrs) != 3 || prog.Instrs[0].Op != OpPushConst {
		t.Fatalf("want folded PUSH_CONST, ASSIGN, END_STMT, got %+v", prog.Instrs)
	}
	c := prog.Consts[prog.Instrs[0].Arg0]
	if c.Kind != ConstString || c.Str != "ab" {
		t.Fatalf("want folded string \"ab\", got %+v", c)
	}
}

func TestSQFOptimizeConstSelect(t *testing.T) {
	stmts, codes := ParseSQF("test.sqf", "result = if true then {1} else {2};")
	if len(codes) != 0 {
		t.Fatalf("unexpected diagnostics: %v", codes)
	}
	prog := Optimize(Compile("test.sqf", stmts))
	// PUSH_CONST(chosen code), UNARY call, ASSIGN, END_STMT
	if len(prog.Instrs) != 4 {
		t.Fatalf("want 4 instrs after const-select folding, got %d: %+v", len(prog.Instrs), prog.Instrs)
	}
	if prog.Instrs[0].Op != OpPushConst || prog.Instrs[1].Op != OpUnary {
		t.Fatalf("want PUSH_CONST, UNARY call, got %+v", prog.Instrs[:2])
	}
	callConst := prog.Consts[prog.Instrs[1].Arg0]
	if callConst.Str != "call" {
		t.Fatalf("want UNARY call, got %q", callConst.Str)
	}
	chosen := prog.Consts[prog.Instrs[0].Arg0]
	if chosen.Kind != ConstCode || chosen.Code == nil {
		t.Fatalf("want the chosen branch to be a code constant, got %+v", chosen)
	}
	// the chosen branch must be the then-branch {1}, since the condition
	// folded was literal true.
	if len(chosen.Code.Instrs) != 2 || chosen.Code.Instrs[0].Op != OpPushConst {
		t.Fatalf("want the then-branch's compiled body, got %+v", chosen.Code.Instrs)
	}
	bodyConst := chosen.Code.Consts[chosen.Code.Instrs[0].Arg0]
	if bodyConst.Num != 1 {
		t.Fatalf("want the then-branch to push 1, got %+v", bodyConst)
	}
}

func TestSQFOptimizeRemovesDeadNonFinalStatement(t *testing.T) {
	stmts, _ := ParseSQF("test.sqf", "1; 2;")
	prog := Optimize(Compile("test.sqf", stmts))
	if len(prog.Instrs) != 2 {
		t.Fatalf("want the dead first statement dropped, leaving 2 instrs, got %d: %+v", len(prog.Instrs), prog.Instrs)
	}
	if prog.Instrs[0].Op != OpPushConst || prog.Instrs[1].Op != OpEndStmt {
		t.Fatalf("want PUSH_CONST, END_STMT, got %+v", prog.Instrs)
	}
	if prog.Consts[prog.Instrs[0].Arg0].Num != 2 {
		t.Fatalf("want the surviving statement to be the literal 2, got %+v", prog.Consts[prog.Instrs[0].Arg0])
	}
}

func TestSQFOptimizePreservesFinalBareStatement(t *testing.T) {
	stmts, _ := ParseSQF("test.sqf", "1;")
	prog := Optimize(Compile("test.sqf", stmts))
	if len(prog.Instrs) != 2 {
		t.Fatalf("want the sole, final statement preserved (code-block return value), got %d: %+v", len(prog.Instrs), prog.Instrs)
	}
}
