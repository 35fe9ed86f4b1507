package script

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/chazu/facet/pkg/kernel/brep"
	"github.com/chazu/facet/pkg/scene"
	"github.com/chazu/facet/pkg/tessellate"
)

func newEngine() (*Engine, *scene.Service) {
	s := scene.NewService(brep.New(), nil, nil)
	return NewEngine(s, 0, nil), s
}

func mustEval(t *testing.T, eng *Engine, source string) *Result {
	t.Helper()
	res, err := eng.Evaluate("", source)
	if err != nil {
		t.Fatalf("fatal error: %v", err)
	}
	if len(res.Errors) > 0 {
		t.Fatalf("eval errors: %v", res.Errors)
	}
	return res
}

func center(t *testing.T, s *scene.Service, id string) [3]float64 {
	t.Helper()
	box, ok, err := s.BoundingBox(id)
	if err != nil || !ok {
		t.Fatalf("bounds of %s: ok=%v err=%v", id, ok, err)
	}
	c := box.Min.Add(box.Max).MulScalar(0.5)
	return [3]float64{c.X, c.Y, c.Z}
}

func near(a, b [3]float64) bool {
	for i := range a {
		if math.Abs(a[i]-b[i]) > 1e-9 {
			return false
		}
	}
	return true
}

func TestPreprocessSource(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		expect string
	}{
		{"simple keyword", `(box :width 4)`, `(box "__kw_width" 4)`},
		{"keyword in string preserved", `"thing with :keyword inside"`, `"thing with :keyword inside"`},
		{"assignment operator preserved", `(def x := 10)`, `(def x := 10)`},
		{"kebab-case identifier", `(def my-box 1)`, `(def my_box 1)`},
		{"minus operator preserved", `(- 10 5)`, `(- 10 5)`},
		{"negative number preserved", `(translate s -5 0 0)`, `(translate s -5 0 0)`},
		{"comment converted", `;; comment with :keyword`, `// comment with :keyword`},
		{"hyphen in keyword preserved", `:head-dia`, `"__kw_head-dia"`},
		{"escaped quote in string", `(def s "a \" ;b :c") ; note`, `(def s "a \" ;b :c") // note`},
		{"unterminated string", `(def s "open ;x`, `(def s "open ;x`},
		{"comment at end of line", "(box 1 1 1) ; unit\n(cylinder)", "(box 1 1 1) // unit\n(cylinder)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := preprocessSource(tt.input); got != tt.expect {
				t.Errorf("preprocessSource(%q) = %q, want %q", tt.input, got, tt.expect)
			}
		})
	}
}

func TestEvaluateEmptySource(t *testing.T) {
	eng, s := newEngine()
	for _, src := range []string{"", "   \n\t  \n  "} {
		res := mustEval(t, eng, src)
		if len(res.Meshes) != 0 {
			t.Errorf("expected no meshes, got %d", len(res.Meshes))
		}
	}
	if s.Registry().Len() != 0 {
		t.Errorf("expected empty registry, got %d shapes", s.Registry().Len())
	}
}

func TestEvaluateArithmetic(t *testing.T) {
	eng, _ := newEngine()
	res := mustEval(t, eng, "(def x 10)\n(def y 20)\n(+ x y)")
	if len(res.Meshes) != 0 {
		t.Errorf("expected no meshes, got %d", len(res.Meshes))
	}
}

func TestBoxAndCylinder(t *testing.T) {
	eng, s := newEngine()
	res := mustEval(t, eng, `
; a box and a cylinder
(def b (box 10 20 30))
(def c (cylinder :radius 5 :height 20))
`)
	if len(res.Meshes) != 2 {
		t.Fatalf("expected 2 meshes, got %d", len(res.Meshes))
	}
	if s.Registry().Len() != 2 {
		t.Errorf("expected 2 registered shapes, got %d", s.Registry().Len())
	}

	box := res.Meshes[0]
	if box.FaceCount != 6 {
		t.Errorf("box: expected 6 faces, got %d", box.FaceCount)
	}
	var cylinders int
	for _, f := range res.Meshes[1].Faces {
		if f.SurfaceType == tessellate.SurfaceCylinder {
			cylinders++
			if math.Abs(f.Radius-5) > 1e-9 {
				t.Errorf("cylinder radius = %g, want 5", f.Radius)
			}
		}
	}
	if cylinders != 1 {
		t.Errorf("expected 1 cylindrical face, got %d", cylinders)
	}
	for _, m := range res.Meshes {
		if err := m.Validate(); err != nil {
			t.Errorf("mesh %s: %v", m.ID, err)
		}
	}
}

func TestDefaultDimensions(t *testing.T) {
	eng, s := newEngine()
	res := mustEval(t, eng, "(box)")
	box, _, err := s.BoundingBox(res.Meshes[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	size := box.Max.Sub(box.Min)
	if math.Abs(size.X-10) > 1e-9 || math.Abs(size.Y-10) > 1e-9 || math.Abs(size.Z-10) > 1e-9 {
		t.Errorf("default box size = %v, want 10x10x10", size)
	}
}

func TestTranslateAndRotate(t *testing.T) {
	eng, s := newEngine()
	res := mustEval(t, eng, `
(def a (box 2 2 2))
(translate a 5 0 0)
(def b (box 2 2 2))
(translate b (vec3 10 0 0))
(rotate b 0 0 1 90)
(def c (box 2 2 2))
(translate c 0 0 3)
(rotate c :axis (vec3 1 0 0) :angle 90)
`)
	if len(res.Meshes) != 3 {
		t.Fatalf("expected 3 meshes (one per shape), got %d", len(res.Meshes))
	}

	want := [][3]float64{{5, 0, 0}, {0, 10, 0}, {0, -3, 0}}
	for i, m := range res.Meshes {
		if got := center(t, s, m.ID); !near(got, want[i]) {
			t.Errorf("shape %d center = %v, want %v", i, got, want[i])
		}
	}
}

func TestShapeReference(t *testing.T) {
	eng, s := newEngine()
	m, err := s.CreateBox(1, 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	res := mustEval(t, eng, `(translate (shape "`+m.ID+`") 0 7 0)`)
	if len(res.Meshes) != 1 || res.Meshes[0].ID != m.ID {
		t.Fatalf("expected the referenced shape's mesh, got %d meshes", len(res.Meshes))
	}
	if got := center(t, s, m.ID); !near(got, [3]float64{0, 7, 0}) {
		t.Errorf("center = %v, want [0 7 0]", got)
	}
}

func TestBuiltinErrorsAreEvalErrors(t *testing.T) {
	tests := []struct {
		name    string
		source  string
		meshes  int
		wantMsg string
	}{
		{"negative width", "(box -1 2 3)", 0, "invalid dimensions"},
		{"unknown shape", `(shape "nope")`, 0, "not found"},
		{"bad rotation axis", "(def a (box))\n(rotate a 0 0 0 45)", 1, "invalid rotation"},
		{"translate non-shape", "(translate 1 2 3 4)", 0, "expected shape"},
		{"missing angle", "(def a (box))\n(rotate a 0 0 1)", 1, "angle"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng, _ := newEngine()
			res, err := eng.Evaluate("", tt.source)
			if err != nil {
				t.Fatalf("expected non-fatal eval error, got fatal: %v", err)
			}
			if len(res.Errors) == 0 {
				t.Fatal("expected an eval error")
			}
			if !strings.Contains(res.Errors[0].Message, tt.wantMsg) {
				t.Errorf("message = %q, want containing %q", res.Errors[0].Message, tt.wantMsg)
			}
			if len(res.Meshes) != tt.meshes {
				t.Errorf("expected %d meshes, got %d", tt.meshes, len(res.Meshes))
			}
		})
	}
}

func TestEvaluateSyntaxError(t *testing.T) {
	eng, _ := newEngine()
	res, err := eng.Evaluate("", "(box 1 2 3)\n(+ 3")
	if err != nil {
		t.Fatalf("expected non-fatal eval error, got fatal: %v", err)
	}
	if len(res.Errors) == 0 || res.Errors[0].Message == "" {
		t.Fatalf("expected a populated eval error, got %v", res.Errors)
	}
	if len(res.Meshes) != 0 {
		t.Errorf("a source that does not parse runs nothing, got %d meshes", len(res.Meshes))
	}
}

func TestEvalErrorImplementsError(t *testing.T) {
	e := EvalError{Line: 5, Message: "something went wrong"}
	if s := e.Error(); !strings.Contains(s, "line 5") || !strings.Contains(s, "something went wrong") {
		t.Errorf("Error() = %q", s)
	}
	e2 := EvalError{Message: "no location"}
	if s := e2.Error(); strings.Contains(s, "line") {
		t.Errorf("Error() with no line should not contain 'line', got: %s", s)
	}
}

func TestParseZygomysError(t *testing.T) {
	tests := []struct {
		name     string
		msg      string
		wantLine int
		wantMsg  string
	}{
		{"error on line format", "Error on line 5: unexpected token\n", 5, "unexpected token"},
		{"no line info", "some generic error", 0, "some generic error"},
		{"line format lowercase", "error on line 12: missing paren", 12, "missing paren"},
		{"short format", "line 3: bad", 3, "bad"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := parseZygomysError(errors.New(tt.msg))
			if len(errs) != 1 {
				t.Fatalf("expected one error, got %d", len(errs))
			}
			if errs[0].Line != tt.wantLine {
				t.Errorf("line = %d, want %d", errs[0].Line, tt.wantLine)
			}
			if !strings.Contains(errs[0].Message, tt.wantMsg) {
				t.Errorf("message = %q, want containing %q", errs[0].Message, tt.wantMsg)
			}
		})
	}
}

func TestWaitTimeout(t *testing.T) {
	eng := NewEngine(nil, 20*time.Millisecond, nil)
	ch := make(chan evalResult) // never sends

	_, err := eng.wait(ch, "", eng.start("", newRun(nil)))
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestWaitDiscardsSuperseded(t *testing.T) {
	eng := NewEngine(nil, time.Second, nil)
	stale := eng.start("editor", newRun(nil))
	eng.start("editor", newRun(nil))

	ch := make(chan evalResult, 1)
	ch <- evalResult{result: &Result{}}
	if _, err := eng.wait(ch, "editor", stale); !errors.Is(err, ErrSuperseded) {
		t.Fatalf("expected ErrSuperseded, got %v", err)
	}

	// Runs without a session never supersede each other.
	anon := eng.start("", newRun(nil))
	eng.start("", newRun(nil))
	ch <- evalResult{result: &Result{}}
	if _, err := eng.wait(ch, "", anon); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// endless creates a box per iteration until the run is stopped.
const endless = `(for [(def i 0) true (set i (+ i 1))] (box 1 1 1))`

func TestTimeoutStopsSceneChanges(t *testing.T) {
	s := scene.NewService(brep.New(), nil, nil)
	eng := NewEngine(s, 100*time.Millisecond, nil)

	_, err := eng.Evaluate("", endless)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	atReturn := s.Registry().Len()
	time.Sleep(300 * time.Millisecond)
	if later := s.Registry().Len(); later != atReturn {
		t.Errorf("registry grew after timeout: %d then %d", atReturn, later)
	}
}

func TestTimeoutStopsPureLoop(t *testing.T) {
	eng, _ := newEngine()
	r := newRun(nil)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = eng.evaluate(r, `(for [(def i 0) true (set i (+ i 1))] i)`)
	}()
	time.Sleep(50 * time.Millisecond)
	r.cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled loop kept running")
	}
}

func TestNewRunSupersedesSession(t *testing.T) {
	s := scene.NewService(brep.New(), nil, nil)
	eng := NewEngine(s, 10*time.Second, nil)

	first := make(chan error, 1)
	go func() {
		_, err := eng.Evaluate("editor", endless)
		first <- err
	}()
	time.Sleep(100 * time.Millisecond)

	res, err := eng.Evaluate("editor", "(box 2 2 2)")
	if err != nil {
		t.Fatalf("latest run failed: %v", err)
	}
	if len(res.Meshes) != 1 {
		t.Errorf("expected 1 mesh, got %d", len(res.Meshes))
	}

	select {
	case err := <-first:
		if !errors.Is(err, ErrSuperseded) {
			t.Errorf("expected ErrSuperseded, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("superseded run was not stopped")
	}

	n := s.Registry().Len()
	time.Sleep(100 * time.Millisecond)
	if later := s.Registry().Len(); later != n {
		t.Errorf("registry grew after supersede: %d then %d", n, later)
	}
}

func TestCancelledRunSkipsScene(t *testing.T) {
	s := scene.NewService(brep.New(), nil, nil)
	r := newRun(s)
	r.cancel()

	_, err := r.apply(func(s *scene.Service) (*tessellate.Mesh, error) {
		return s.CreateBox(1, 1, 1)
	})
	if !errors.Is(err, errCancelled) {
		t.Fatalf("expected errCancelled, got %v", err)
	}
	if n := s.Registry().Len(); n != 0 {
		t.Errorf("expected an empty registry, got %d", n)
	}
}
