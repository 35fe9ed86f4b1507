package main

import (
	"math"
	"strings"
	"testing"

	"github.com/chazu/facet/pkg/config"
	"github.com/chazu/facet/pkg/tessellate"
)

// ---------------------------------------------------------------------------
// Comments and whitespace only: nothing is created.
// ---------------------------------------------------------------------------

func TestE2ECommentsOnly(t *testing.T) {
	app := newTestApp(t, config.KernelBRep)
	for _, source := range []string{
		";; just a comment",
		"  ; indented comment\n\n   ;; another\n",
		"   \n\t  \n  ",
	} {
		result := app.Evaluate(source)
		if len(result.Errors) != 0 || len(result.Meshes) != 0 {
			t.Errorf("%q: expected nothing, got %d meshes, %d errors", source, len(result.Meshes), len(result.Errors))
		}
	}
	if n := app.scenes.Registry().Len(); n != 0 {
		t.Errorf("expected empty registry, got %d", n)
	}
}

// ---------------------------------------------------------------------------
// Syntax error after valid code: line info is reported and nothing runs.
// ---------------------------------------------------------------------------

func TestE2ESyntaxErrorWithLineInfo(t *testing.T) {
	app := newTestApp(t, config.KernelBRep)

	// Valid code on line 1, broken code on line 2 so line info is meaningful.
	result := app.Evaluate("(box 1 1 1)\n(cylinder 1")

	if len(result.Errors) == 0 {
		t.Fatal("expected at least one eval error for unmatched parens")
	}
	if len(result.Meshes) != 0 {
		t.Errorf("expected 0 meshes on syntax error, got %d", len(result.Meshes))
	}
	e := result.Errors[0]
	if e.Message == "" {
		t.Error("syntax error should have a non-empty message")
	}
	t.Logf("syntax error: line=%d, col=%d, message=%q", e.Line, e.Col, e.Message)
}

// ---------------------------------------------------------------------------
// Bad dimensions: the failing form reports an error, earlier shapes stay.
// ---------------------------------------------------------------------------

func TestE2EZeroDimension(t *testing.T) {
	app := newTestApp(t, config.KernelBRep)
	result := app.Evaluate("(box 10 10 10)\n(box 0 10 10)")

	if len(result.Errors) == 0 {
		t.Fatal("expected an error for a zero dimension")
	}
	if !strings.Contains(result.Errors[0].Message, "invalid dimensions") {
		t.Errorf("unexpected message: %q", result.Errors[0].Message)
	}
	if len(result.Meshes) != 1 {
		t.Errorf("expected the first box to be reported, got %d meshes", len(result.Meshes))
	}
}

func TestE2ENegativeRadius(t *testing.T) {
	app := newTestApp(t, config.KernelBRep)
	result := app.Evaluate("(cylinder :radius -2 :height 5)")
	if len(result.Errors) == 0 {
		t.Fatal("expected an error for a negative radius")
	}
	if len(result.Meshes) != 0 {
		t.Errorf("expected no meshes, got %d", len(result.Meshes))
	}
}

// ---------------------------------------------------------------------------
// Arithmetic feeding dimensions.
// ---------------------------------------------------------------------------

func TestE2EArithmeticDimensions(t *testing.T) {
	app := newTestApp(t, config.KernelBRep)
	result := app.Evaluate(`
(def base 40)
(def half (/ base 2))
(def slab (box base half (* 0.25 half)))
`)
	if len(result.Errors) > 0 {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}
	if len(result.Meshes) != 1 {
		t.Fatalf("expected 1 mesh, got %d", len(result.Meshes))
	}
	box, _, err := app.scenes.BoundingBox(result.Meshes[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	size := box.Size()
	if math.Abs(size.X-40) > 1e-9 || math.Abs(size.Y-20) > 1e-9 || math.Abs(size.Z-5) > 1e-9 {
		t.Errorf("size = %v, want 40 x 20 x 5", size)
	}
}

func TestE2EFloatingPointDimensions(t *testing.T) {
	app := newTestApp(t, config.KernelBRep)
	result := app.Evaluate("(box 12.5 0.75 3.125)")
	if len(result.Errors) > 0 || len(result.Meshes) != 1 {
		t.Fatalf("expected one mesh, got %d meshes, errors %v", len(result.Meshes), result.Errors)
	}
}

// ---------------------------------------------------------------------------
// Rapid sequential evaluation on one App, valid and invalid alternating.
// ---------------------------------------------------------------------------

func TestE2ERapidEvaluation(t *testing.T) {
	app := newTestApp(t, config.KernelBRep)
	sources := []string{
		`(box 10 5 2)`,
		`(+ 1 2)`,
		``,
		`(box 1`,
		`(cylinder :radius 3 :height 9)`,
		`(rotate 5 0 0 1 90)`,
		`(def a (box 1 1 1)) (translate a 1 2 3)`,
	}

	for i, source := range sources {
		func() {
			defer func() {
				if r := recover(); r != nil {
					t.Errorf("iteration %d panicked: %v", i, r)
				}
			}()
			_ = app.Evaluate(source)
		}()
	}
	if n := app.scenes.Registry().Len(); n != 3 {
		t.Errorf("expected 3 registered shapes, got %d", n)
	}
}

// ---------------------------------------------------------------------------
// Large dimensions mesh as well as small ones.
// ---------------------------------------------------------------------------

func TestE2ELargeDimensions(t *testing.T) {
	app := newTestApp(t, config.KernelBRep)
	result := app.Evaluate("(cylinder 500 2400)")
	if len(result.Errors) > 0 || len(result.Meshes) != 1 {
		t.Fatalf("expected one mesh, got %d meshes, errors %v", len(result.Meshes), result.Errors)
	}
	if err := result.Meshes[0].Validate(); err != nil {
		t.Fatal(err)
	}
}

// ---------------------------------------------------------------------------
// The implicit kernel runs the same scripts with unclassified faces.
// ---------------------------------------------------------------------------

func TestE2ESdfxKernel(t *testing.T) {
	app := newTestApp(t, config.KernelSDFX)
	result := app.Evaluate("(def p (box 4 4 4))\n(translate p 10 0 0)")
	if len(result.Errors) > 0 {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}
	if len(result.Meshes) != 1 {
		t.Fatalf("expected 1 mesh, got %d", len(result.Meshes))
	}
	m := result.Meshes[0]
	if m.FaceCount != 1 || m.Faces[0].SurfaceType != tessellate.SurfaceOther {
		t.Errorf("expected a single unclassified face, got %d faces", m.FaceCount)
	}
	if m.TriangleCount == 0 {
		t.Error("expected triangles")
	}
}
