package shape

import (
	"testing"

	"github.com/orizon-lang/memcore/internal/memexpr"
)

func TestJoinLattice(t *testing.T) {
	cases := []struct {
		a, b, want Shape
	}{
		{Unknown, Unknown, Unknown},
		{Unknown, Tree, Tree},
		{Tree, DAG, DAG},
		{DAG, Cyclic, Cyclic},
		{Cyclic, Tree, Cyclic},
	}
	for _, c := range cases {
		if got := Join(c.a, c.b); got != c.want {
			t.Errorf("Join(%v,%v)=%v, want %v", c.a, c.b, got, c.want)
		}
	}
}

func TestConsOfDistinctLiteralsIsTree(t *testing.T) {
	ctx := NewContext()
	e := memexpr.NewCons(memexpr.NewInt(1), memexpr.NewInt(2))
	ctx.AnalyzeShapes(e)
	if ctx.Result != Tree {
		t.Fatalf("got %v, want TREE", ctx.Result)
	}
}

func TestConsOfSameSymbolIsDAG(t *testing.T) {
	ctx := NewContext()
	ctx.Add("x", Tree)
	e := memexpr.NewCons(memexpr.NewSym("x"), memexpr.NewSym("x"))
	ctx.AnalyzeShapes(e)
	if ctx.Result != DAG {
		t.Fatalf("got %v, want DAG (self-aliasing cons)", ctx.Result)
	}
}

func TestLetrecMarksBindingsCyclicBeforeAnalyzingBody(t *testing.T) {
	ctx := NewContext()
	// (letrec ((x (cons 1 x))) x)
	e := memexpr.NewLetrec(
		[]memexpr.Binding{{Name: "x", Expr: memexpr.NewCons(memexpr.NewInt(1), memexpr.NewSym("x"))}},
		memexpr.NewSym("x"),
	)
	ctx.AnalyzeShapes(e)
	if ctx.Result != Cyclic {
		t.Fatalf("got %v, want CYCLIC", ctx.Result)
	}
	if info := ctx.Find("x"); info == nil || info.Shape != Cyclic {
		t.Fatalf("expected x to be recorded cyclic")
	}
}

func TestSetBangMarksCyclic(t *testing.T) {
	ctx := NewContext()
	ctx.Add("x", Tree)
	ctx.AnalyzeShapes(memexpr.NewSet("x", memexpr.NewInt(5)))
	if ctx.Result != Cyclic {
		t.Fatalf("got %v, want CYCLIC", ctx.Result)
	}
	if info := ctx.Find("x"); info.Shape != Cyclic {
		t.Fatalf("expected x upgraded to cyclic after set!")
	}
}

func TestIfJoinsBranches(t *testing.T) {
	ctx := NewContext()
	ctx.Add("x", Tree)
	ctx.Add("y", DAG)
	e := memexpr.NewIf(memexpr.NewSym("cond"), memexpr.NewSym("x"), memexpr.NewSym("y"))
	ctx.AnalyzeShapes(e)
	if ctx.Result != DAG {
		t.Fatalf("got %v, want DAG", ctx.Result)
	}
}

func TestLambdaIsAlwaysTree(t *testing.T) {
	ctx := NewContext()
	ctx.AnalyzeShapes(memexpr.NewLambda([]string{"a"}, memexpr.NewSym("a")))
	if ctx.Result != Tree {
		t.Fatalf("got %v, want TREE", ctx.Result)
	}
}

func TestMayAlias(t *testing.T) {
	ctx := NewContext()
	ctx.Add("x", Tree)
	if !ctx.MayAlias(memexpr.NewSym("x"), memexpr.NewSym("x")) {
		t.Fatalf("same symbol must alias")
	}
	if ctx.MayAlias(memexpr.NewInt(1), memexpr.NewInt(2)) {
		t.Fatalf("distinct literals must not alias")
	}
	if !ctx.MayAlias(memexpr.NewSym("x"), memexpr.NewInt(1)) {
		t.Fatalf("conservative case should default to may-alias")
	}
}

func TestFreeStrategyTable(t *testing.T) {
	cases := map[Shape]string{
		Tree:    "free_tree",
		DAG:     "dec_ref",
		Cyclic:  "deferred_release",
		Unknown: "dec_ref",
	}
	for s, want := range cases {
		if got := FreeStrategy(s); got != want {
			t.Errorf("FreeStrategy(%v)=%q, want %q", s, got, want)
		}
	}
}
