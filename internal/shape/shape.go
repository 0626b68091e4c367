// Package shape implements the monotone-dataflow shape lattice analysis:
// classifying every binding as tree, dag, or cyclic so the strategy
// dispatcher can pick the cheapest safe reclamation primitive for it.
//
// The lattice is unknown ⊑ tree ⊑ dag ⊑ cyclic. Facts only move upward —
// AnalyzeShapes and Add never downgrade an existing binding.
package shape

import "github.com/orizon-lang/memcore/internal/memexpr"

// Shape classifies the aliasing/cycle structure of a value.
type Shape int

const (
	Unknown Shape = iota
	Tree          // no sharing, no cycles
	DAG           // sharing but acyclic
	Cyclic        // may contain cycles
)

func (s Shape) String() string {
	switch s {
	case Tree:
		return "TREE"
	case DAG:
		return "DAG"
	case Cyclic:
		return "CYCLIC"
	default:
		return "UNKNOWN"
	}
}

// Join computes the least upper bound of two shapes on the lattice
// unknown ⊑ tree ⊑ dag ⊑ cyclic.
func Join(a, b Shape) Shape {
	if a == Cyclic || b == Cyclic {
		return Cyclic
	}
	if a == DAG || b == DAG {
		return DAG
	}
	if a == Tree || b == Tree {
		return Tree
	}
	return Unknown
}

// Info holds the analysis result for one bound name.
type Info struct {
	Name       string
	Shape      Shape
	AliasGroup int
}

// Context holds per-binding facts accumulated across one analysis run.
// NextAliasGroup assigns a fresh alias-group id to every newly-bound
// name; two names in the same group are considered to definitely alias.
type Context struct {
	facts          map[string]*Info
	nextAliasGroup int
	Result         Shape
	Changed        bool
}

// NewContext creates an empty analysis Context.
func NewContext() *Context {
	return &Context{facts: make(map[string]*Info), nextAliasGroup: 1}
}

// Find looks up the current fact for name, or nil if none exists yet.
func (c *Context) Find(name string) *Info {
	return c.facts[name]
}

// Add joins shape into the fact for name, creating it (with a fresh alias
// group) if absent. Sets Changed when the join strictly raises the
// existing fact — callers iterate to a fixpoint on Changed.
func (c *Context) Add(name string, s Shape) {
	if existing, ok := c.facts[name]; ok {
		joined := Join(existing.Shape, s)
		if joined != existing.Shape {
			existing.Shape = joined
			c.Changed = true
		}
		return
	}
	c.facts[name] = &Info{Name: name, Shape: s, AliasGroup: c.nextAliasGroup}
	c.nextAliasGroup++
}

// Lookup returns the shape of a bare expression (symbol lookup or literal
// classification), without running full analysis.
func (c *Context) Lookup(e *memexpr.Expr) Shape {
	if e == nil {
		return Unknown
	}
	switch {
	case e.IsSym():
		if info := c.Find(e.Sym); info != nil {
			return info.Shape
		}
		return Unknown
	case e.IsInt(), e.IsNil():
		return Tree
	default:
		return Unknown
	}
}

// MayAlias conservatively decides whether two expressions may refer to
// the same object: distinct literals never alias, the same symbol name or
// symbols sharing an alias group always do, and anything else is assumed
// to alias.
func (c *Context) MayAlias(a, b *memexpr.Expr) bool {
	if a == nil || b == nil {
		return false
	}
	if a.IsSym() && b.IsSym() && a.Sym == b.Sym {
		return true
	}
	isLiteral := func(e *memexpr.Expr) bool { return e.IsInt() || e.IsNil() }
	if isLiteral(a) && isLiteral(b) {
		return false
	}
	if a.IsSym() && b.IsSym() {
		fa, fb := c.Find(a.Sym), c.Find(b.Sym)
		if fa != nil && fb != nil && fa.AliasGroup == fb.AliasGroup {
			return true
		}
	}
	return true
}

// AnalyzeShapes runs the dataflow rules over e and leaves the result in
// c.Result.
func (c *Context) AnalyzeShapes(e *memexpr.Expr) {
	if e == nil || e.IsNil() {
		c.Result = Tree
		return
	}

	switch {
	case e.IsInt():
		c.Result = Tree
	case e.IsSym():
		if info := c.Find(e.Sym); info != nil {
			c.Result = info.Shape
		} else {
			c.Result = Unknown
		}
	case e.Tag == memexpr.TagForm:
		c.analyzeForm(e)
	default:
		c.Result = Unknown
	}
}

func (c *Context) analyzeForm(e *memexpr.Expr) {
	switch e.Form {
	case memexpr.FormCons:
		carArg, cdrArg := e.Args[0], e.Args[1]

		c.AnalyzeShapes(carArg)
		carShape := c.Result
		c.AnalyzeShapes(cdrArg)
		cdrShape := c.Result

		if carShape == Tree && cdrShape == Tree {
			if !c.MayAlias(carArg, cdrArg) {
				c.Result = Tree
			} else {
				c.Result = DAG
			}
			return
		}
		c.Result = Join(carShape, cdrShape)
		if c.Result == Tree {
			c.Result = DAG
		}

	case memexpr.FormLet:
		for _, b := range e.Bindings {
			c.AnalyzeShapes(b.Expr)
			c.Add(b.Name, c.Result)
		}
		c.analyzeBody(e.Body)

	case memexpr.FormLetrec:
		for _, b := range e.Bindings {
			c.Add(b.Name, Cyclic)
		}
		for _, b := range e.Bindings {
			c.AnalyzeShapes(b.Expr)
			c.Add(b.Name, c.Result)
		}
		c.analyzeBody(e.Body)

	case memexpr.FormSet:
		c.Add(e.Sym, Cyclic)
		c.Result = Cyclic

	case memexpr.FormIf:
		cond, then := e.Args[0], e.Args[1]
		var els *memexpr.Expr
		if len(e.Args) > 2 {
			els = e.Args[2]
		}
		c.AnalyzeShapes(cond)
		c.AnalyzeShapes(then)
		thenShape := c.Result
		c.AnalyzeShapes(els)
		elseShape := c.Result
		c.Result = Join(thenShape, elseShape)

	case memexpr.FormLambda:
		c.Result = Tree

	case memexpr.FormLift:
		c.AnalyzeShapes(e.Args[0])

	default:
		// Ordinary application: join the operator and every operand.
		result := Unknown
		if e.Head != nil {
			c.AnalyzeShapes(e.Head)
			result = Join(result, c.Result)
		}
		for _, arg := range e.Args {
			c.AnalyzeShapes(arg)
			result = Join(result, c.Result)
		}
		if result == Unknown {
			result = DAG
		}
		c.Result = result
	}
}

func (c *Context) analyzeBody(body []*memexpr.Expr) {
	for _, stmt := range body {
		c.AnalyzeShapes(stmt)
	}
}

// FreeStrategy returns the reclamation primitive name for a shape,
// matching the dispatch table in internal/strategy.
func FreeStrategy(s Shape) string {
	switch s {
	case Tree:
		return "free_tree"
	case DAG:
		return "dec_ref"
	case Cyclic:
		return "deferred_release"
	default:
		return "dec_ref"
	}
}
