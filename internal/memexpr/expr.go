// Package memexpr defines the minimal expression surface the shape
// analyzer consumes: integers, symbols, nil, pairs, and the seven
// recognized special forms. It is intentionally small — a parser or
// reader upstream of this package is out of scope.
package memexpr

// Tag discriminates the kind of an Expr.
type Tag int

const (
	TagInt Tag = iota
	TagSym
	TagNil
	TagPair
	TagForm
)

// Form names the recognized special forms. Anything else encountered as
// the head of an application is treated as an ordinary call.
type Form string

const (
	FormCons   Form = "cons"
	FormLet    Form = "let"
	FormLetrec Form = "letrec"
	FormSet    Form = "set!"
	FormIf     Form = "if"
	FormLambda Form = "lambda"
	FormLift   Form = "lift"
)

// Binding is a single (name expr) pair inside a let/letrec form.
type Binding struct {
	Name string
	Expr *Expr
}

// Expr is a tagged-union AST node.
//
//	TagInt:  Int
//	TagSym:  Sym
//	TagNil:  (no payload)
//	TagPair: Car, Cdr
//	TagForm: Form, Bindings (let/letrec), Args (if/set!/application),
//	         Body (let/letrec/lambda), Params (lambda)
type Expr struct {
	Tag Tag

	Int int64
	Sym string

	Car *Expr
	Cdr *Expr

	Form     Form
	Bindings []Binding
	Params   []string
	Body     []*Expr
	Args     []*Expr

	// Head is set when Tag==TagForm and Form is not one of the seven
	// recognized forms — this represents an ordinary application whose
	// operator is Head and operands are Args.
	Head *Expr
}

func NewInt(v int64) *Expr { return &Expr{Tag: TagInt, Int: v} }
func NewSym(s string) *Expr { return &Expr{Tag: TagSym, Sym: s} }
func NewNil() *Expr         { return &Expr{Tag: TagNil} }
func NewPair(car, cdr *Expr) *Expr {
	return &Expr{Tag: TagPair, Car: car, Cdr: cdr}
}

func NewCons(car, cdr *Expr) *Expr {
	return &Expr{Tag: TagForm, Form: FormCons, Args: []*Expr{car, cdr}}
}

func NewLet(bindings []Binding, body ...*Expr) *Expr {
	return &Expr{Tag: TagForm, Form: FormLet, Bindings: bindings, Body: body}
}

func NewLetrec(bindings []Binding, body ...*Expr) *Expr {
	return &Expr{Tag: TagForm, Form: FormLetrec, Bindings: bindings, Body: body}
}

func NewSet(name string, value *Expr) *Expr {
	return &Expr{Tag: TagForm, Form: FormSet, Sym: name, Args: []*Expr{value}}
}

func NewIf(cond, then, els *Expr) *Expr {
	return &Expr{Tag: TagForm, Form: FormIf, Args: []*Expr{cond, then, els}}
}

func NewLambda(params []string, body ...*Expr) *Expr {
	return &Expr{Tag: TagForm, Form: FormLambda, Params: params, Body: body}
}

func NewLift(inner *Expr) *Expr {
	return &Expr{Tag: TagForm, Form: FormLift, Args: []*Expr{inner}}
}

func NewApp(head *Expr, args ...*Expr) *Expr {
	return &Expr{Tag: TagForm, Head: head, Args: args}
}

func (e *Expr) IsInt() bool  { return e != nil && e.Tag == TagInt }
func (e *Expr) IsSym() bool  { return e != nil && e.Tag == TagSym }
func (e *Expr) IsNil() bool  { return e != nil && e.Tag == TagNil }
func (e *Expr) IsPair() bool { return e != nil && e.Tag == TagPair }
func (e *Expr) IsForm(f Form) bool {
	return e != nil && e.Tag == TagForm && e.Form == f
}

// IsApplication reports whether e is a TagForm node whose operator is an
// ordinary expression rather than one of the seven recognized forms.
func (e *Expr) IsApplication() bool {
	return e != nil && e.Tag == TagForm && e.Head != nil
}
