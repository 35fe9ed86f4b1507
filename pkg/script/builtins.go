package script

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/chazu/facet/pkg/scene"
	"github.com/chazu/facet/pkg/tessellate"
	v3 "github.com/deadsy/sdfx/vec/v3"
	zygo "github.com/glycerine/zygomys/zygo"
)

// kwPrefix marks keyword names rewritten by preprocessSource.
const kwPrefix = "__kw_"

// preprocessSource rewrites script source into zygomys syntax. Semicolon
// comments become // comments, :keyword becomes the string "__kw_keyword"
// and kebab-case names become snake_case, since zygomys reads a hyphen
// between names as subtraction. Double-quoted strings pass through.
func preprocessSource(source string) string {
	var out strings.Builder
	out.Grow(len(source) + len(source)/4)
	for i := 0; i < len(source); {
		c := source[i]
		switch {
		case c == '"':
			end := stringEnd(source, i)
			out.WriteString(source[i:end])
			i = end

		case c == ';':
			i = span(source, i, func(c byte) bool { return c == ';' })
			end := span(source, i, func(c byte) bool { return c != '\n' })
			out.WriteString("//" + source[i:end])
			i = end

		case c == ':' && i+1 < len(source) && letter(source[i+1]):
			end := span(source, i+1, keywordByte)
			out.WriteString(`"` + kwPrefix + source[i+1:end] + `"`)
			i = end

		case c == '-' && i > 0 && i+1 < len(source) && nameByte(source[i-1]) && letter(source[i+1]):
			out.WriteByte('_')
			i++

		default:
			out.WriteByte(c)
			i++
		}
	}
	return out.String()
}

// stringEnd returns the index just past the string literal opening at
// start, honouring backslash escapes. An unterminated literal runs to the
// end of s.
func stringEnd(s string, start int) int {
	i := start + 1
	for i < len(s) && s[i] != '"' {
		if s[i] == '\\' {
			i++
		}
		i++
	}
	return min(i+1, len(s))
}

// span returns the first index at or after from whose byte fails ok.
func span(s string, from int, ok func(byte) bool) int {
	for from < len(s) && ok(s[from]) {
		from++
	}
	return from
}

func letter(c byte) bool      { return 'a' <= c|0x20 && c|0x20 <= 'z' }
func nameByte(c byte) bool    { return letter(c) || '0' <= c && c <= '9' || c == '_' }
func keywordByte(c byte) bool { return nameByte(c) || c == '-' }

// shapeRef is the script value of a registered shape.
type shapeRef struct {
	id string
}

func (s *shapeRef) SexpString(*zygo.PrintState) string { return fmt.Sprintf("(shape %q)", s.id) }
func (s *shapeRef) Type() *zygo.RegisteredType       { return nil }

// vecValue is the script value built by vec3.
type vecValue v3.Vec

func (v *vecValue) SexpString(*zygo.PrintState) string {
	return fmt.Sprintf("(vec3 %g %g %g)", v.X, v.Y, v.Z)
}
func (v *vecValue) Type() *zygo.RegisteredType { return nil }

// callArgs holds a builtin's arguments split into keyword and positional
// ones. A trailing keyword without a value maps to null.
type callArgs struct {
	named map[string]zygo.Sexp
	pos   []zygo.Sexp
}

func splitArgs(in []zygo.Sexp) callArgs {
	a := callArgs{named: make(map[string]zygo.Sexp)}
	for i := 0; i < len(in); i++ {
		s, ok := in[i].(*zygo.SexpStr)
		if !ok || !strings.HasPrefix(s.S, kwPrefix) {
			a.pos = append(a.pos, in[i])
			continue
		}
		var v zygo.Sexp = zygo.SexpNull
		if i+1 < len(in) {
			i++
			v = in[i]
		}
		a.named[strings.TrimPrefix(s.S, kwPrefix)] = v
	}
	return a
}

// float returns the keyword argument name, else the positional argument
// at pos, else def.
func (a callArgs) float(name string, pos int, def float64) (float64, error) {
	if v, ok := a.named[name]; ok {
		return asFloat(v)
	}
	if pos < len(a.pos) {
		return asFloat(a.pos[pos])
	}
	return def, nil
}

func asFloat(s zygo.Sexp) (float64, error) {
	if n, ok := s.(*zygo.SexpInt); ok {
		return float64(n.Val), nil
	}
	if f, ok := s.(*zygo.SexpFloat); ok {
		return f.Val, nil
	}
	return 0, fmt.Errorf("not a number: %s", s.SexpString(nil))
}

func asShape(s zygo.Sexp) (string, error) {
	if ref, ok := s.(*shapeRef); ok {
		return ref.id, nil
	}
	return "", fmt.Errorf("expected shape, got %s", s.SexpString(nil))
}

// asVec reads a vec3 value or three numbers from the front of in and
// reports how many arguments it used.
func asVec(in []zygo.Sexp) (v3.Vec, int, error) {
	if len(in) > 0 {
		if v, ok := in[0].(*vecValue); ok {
			return v3.Vec(*v), 1, nil
		}
	}
	if len(in) < 3 {
		return v3.Vec{}, 0, fmt.Errorf("want a vec3 or 3 numbers, got %d arguments", len(in))
	}
	var c [3]float64
	for i := range c {
		f, err := asFloat(in[i])
		if err != nil {
			return v3.Vec{}, 0, err
		}
		c[i] = f
	}
	return v3.Vec{X: c[0], Y: c[1], Z: c[2]}, 3, nil
}

// errCancelled stops a run that timed out or was superseded.
var errCancelled = errors.New("run cancelled")

// run tracks the shapes one script touches. Once cancelled, no builtin
// reaches the scene again.
type run struct {
	scenes *scene.Service
	order  []string
	latest map[string]*tessellate.Mesh

	mu        sync.Mutex // held across every scene call
	cancelled atomic.Bool
}

func newRun(s *scene.Service) *run {
	return &run{scenes: s, latest: make(map[string]*tessellate.Mesh)}
}

// cancel stops the run. It waits for a scene call in flight, so the
// scene is not touched by this run after cancel returns.
func (r *run) cancel() {
	r.mu.Lock()
	r.cancelled.Store(true)
	r.mu.Unlock()
}

// apply runs op against the scene and records the mesh it returns.
func (r *run) apply(op func(s *scene.Service) (*tessellate.Mesh, error)) (zygo.Sexp, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancelled.Load() {
		return zygo.SexpNull, errCancelled
	}
	m, err := op(r.scenes)
	if err != nil {
		return zygo.SexpNull, err
	}
	return r.record(m), nil
}

func (r *run) record(m *tessellate.Mesh) *shapeRef {
	if _, seen := r.latest[m.ID]; !seen {
		r.order = append(r.order, m.ID)
	}
	r.latest[m.ID] = m
	return &shapeRef{id: m.ID}
}

func (r *run) meshes() []*tessellate.Mesh {
	out := make([]*tessellate.Mesh, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.latest[id])
	}
	return out
}

// guard wraps the interpreter's own functions so a cancelled run stops
// at its next call, loops included.
func (r *run) guard(funcs map[string]zygo.ZlispUserFunction) map[string]zygo.ZlispUserFunction {
	out := make(map[string]zygo.ZlispUserFunction, len(funcs))
	for name, fn := range funcs {
		fn := fn
		out[name] = func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
			if r.cancelled.Load() {
				return zygo.SexpNull, errCancelled
			}
			return fn(env, name, args)
		}
	}
	return out
}

// registerBuiltins installs the scene builtins into env. Source must go
// through preprocessSource first so keywords are recognisable.
func registerBuiltins(env *zygo.Zlisp, r *run) {

	// (box 10 20 30) or (box :width 10 :height 20 :depth 30)
	env.AddFunction("box", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		a := splitArgs(args)
		var dims [3]float64
		for i, k := range []string{"width", "height", "depth"} {
			f, err := a.float(k, i, 10)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("box: %s: %w", k, err)
			}
			dims[i] = f
		}
		ref, err := r.apply(func(s *scene.Service) (*tessellate.Mesh, error) {
			return s.CreateBox(dims[0], dims[1], dims[2])
		})
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("box: %w", err)
		}
		return ref, nil
	})

	// (cylinder 5 20) or (cylinder :radius 5 :height 20)
	env.AddFunction("cylinder", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		a := splitArgs(args)
		radius, err := a.float("radius", 0, 5)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("cylinder: radius: %w", err)
		}
		height, err := a.float("height", 1, 20)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("cylinder: height: %w", err)
		}
		ref, err := r.apply(func(s *scene.Service) (*tessellate.Mesh, error) {
			return s.CreateCylinder(radius, height)
		})
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("cylinder: %w", err)
		}
		return ref, nil
	})

	// (shape "id") refers to a shape created elsewhere.
	env.AddFunction("shape", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		var id *zygo.SexpStr
		if len(args) == 1 {
			id, _ = args[0].(*zygo.SexpStr)
		}
		if id == nil {
			return zygo.SexpNull, fmt.Errorf("shape takes one string id")
		}
		if r.cancelled.Load() {
			return zygo.SexpNull, errCancelled
		}
		if _, err := r.scenes.Registry().Get(id.S); err != nil {
			return zygo.SexpNull, fmt.Errorf("shape: %w", err)
		}
		return &shapeRef{id: id.S}, nil
	})

	env.AddFunction("vec3", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 3 {
			return zygo.SexpNull, fmt.Errorf("vec3 takes 3 numbers, got %d", len(args))
		}
		v, _, err := asVec(args)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("vec3: %w", err)
		}
		return (*vecValue)(&v), nil
	})

	// (translate s 5 0 0) or (translate s (vec3 5 0 0))
	env.AddFunction("translate", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) < 2 {
			return zygo.SexpNull, fmt.Errorf("translate requires a shape and an offset")
		}
		id, err := asShape(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("translate: %w", err)
		}
		v, _, err := asVec(args[1:])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("translate: offset: %w", err)
		}
		ref, err := r.apply(func(s *scene.Service) (*tessellate.Mesh, error) {
			return s.Transform(id, &scene.Translation{X: v.X, Y: v.Y, Z: v.Z}, nil)
		})
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("translate: %w", err)
		}
		return ref, nil
	})

	// (rotate s 0 0 1 90), (rotate s (vec3 0 0 1) 90) or
	// (rotate s :axis (vec3 0 0 1) :angle 90); angles are in degrees.
	env.AddFunction("rotate", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		a := splitArgs(args)
		if len(a.pos) < 1 {
			return zygo.SexpNull, fmt.Errorf("rotate requires a shape")
		}
		id, err := asShape(a.pos[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("rotate: %w", err)
		}

		rest := a.pos[1:]
		var axis v3.Vec
		if v, ok := a.named["axis"]; ok {
			axis, _, err = asVec([]zygo.Sexp{v})
		} else {
			var used int
			axis, used, err = asVec(rest)
			rest = rest[used:]
		}
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("rotate: axis: %w", err)
		}

		var angle float64
		switch v, ok := a.named["angle"]; {
		case ok:
			angle, err = asFloat(v)
		case len(rest) > 0:
			angle, err = asFloat(rest[0])
		default:
			err = fmt.Errorf("missing")
		}
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("rotate: angle: %w", err)
		}

		rot := &scene.Rotation{Axis: [3]float64{axis.X, axis.Y, axis.Z}, Angle: angle}
		ref, err := r.apply(func(s *scene.Service) (*tessellate.Mesh, error) {
			return s.Transform(id, nil, rot)
		})
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("rotate: %w", err)
		}
		return ref, nil
	})
}
