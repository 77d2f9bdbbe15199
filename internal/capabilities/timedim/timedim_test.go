package timedim

import (
	"errors"
	"testing"
	"time"

	"github.com/mohammed-shakir/wms-catalog/internal/capabilities/tree"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func inlineLayer(value string) *tree.Node {
	return tree.NewMapping(
		tree.Field{Name: "Name", Value: tree.NewScalar("Rain")},
		tree.Field{Name: "Dimension", Value: tree.NewMappingText(value,
			tree.Field{Name: "name", Value: tree.NewScalar("time")},
			tree.Field{Name: "units", Value: tree.NewScalar("ISO8601")},
		)},
	)
}

func TestOf_InlineDimension(t *testing.T) {
	seq, err := Of(inlineLayer("2020-01-01,2020-01-02,2020-01-03"))
	if err != nil {
		t.Fatalf("Of: %v", err)
	}
	if len(seq) != 3 {
		t.Fatalf("len=%d want 3", len(seq))
	}
	if !seq[0].Start.Equal(day("2020-01-01")) || !seq[0].Stop.Equal(day("2020-01-02")) {
		t.Fatalf("first interval %+v", seq[0])
	}
	if !seq[1].Start.Equal(day("2020-01-02")) || !seq[1].Stop.Equal(day("2020-01-03")) {
		t.Fatalf("second interval %+v", seq[1])
	}
	// tail copies the previous duration
	if !seq[2].Start.Equal(day("2020-01-03")) || !seq[2].Stop.Equal(day("2020-01-04")) {
		t.Fatalf("tail interval %+v", seq[2])
	}
	if seq[0].Data != "2020-01-01" || seq[2].Data != "2020-01-03" {
		t.Fatalf("data labels %q %q", seq[0].Data, seq[2].Data)
	}
}

func TestOf_SingleTokenIsNotTimeVarying(t *testing.T) {
	seq, err := Of(inlineLayer("2020-01-01"))
	if err != nil || seq != nil {
		t.Fatalf("seq=%v err=%v want nil,nil", seq, err)
	}
}

func TestOf_NoDimension(t *testing.T) {
	seq, err := Of(tree.NewMapping(tree.Field{Name: "Name", Value: tree.NewScalar("x")}))
	if err != nil || seq != nil {
		t.Fatalf("seq=%v err=%v", seq, err)
	}
}

func TestOf_OnlyTimeDimensionConsidered(t *testing.T) {
	l := tree.NewMapping(
		tree.Field{Name: "Dimension", Value: tree.NewMappingText("0,10,20",
			tree.Field{Name: "name", Value: tree.NewScalar("elevation")})},
		tree.Field{Name: "Dimension", Value: tree.NewMappingText("2021-06-01T00:00:00Z,2021-06-01T06:00:00Z",
			tree.Field{Name: "name", Value: tree.NewScalar("time")})},
	)
	seq, err := Of(l)
	if err != nil {
		t.Fatalf("Of: %v", err)
	}
	if len(seq) != 2 || seq[1].Duration() != 6*time.Hour {
		t.Fatalf("unexpected %+v", seq)
	}
}

func TestOf_ExtentReference(t *testing.T) {
	l := tree.NewMapping(
		tree.Field{Name: "Dimension", Value: tree.NewMapping(
			tree.Field{Name: "name", Value: tree.NewScalar("time")},
			tree.Field{Name: "units", Value: tree.NewScalar("ISO8601")},
		)},
		tree.Field{Name: "Extent", Value: tree.NewMappingText("2000", tree.Field{Name: "name", Value: tree.NewScalar("elevation")})},
		tree.Field{Name: "Extent", Value: tree.NewMappingText("2019-01,2019-02", tree.Field{Name: "name", Value: tree.NewScalar("time")})},
	)
	seq, err := Of(l)
	if err != nil {
		t.Fatalf("Of: %v", err)
	}
	if len(seq) != 2 || seq[0].Data != "2019-01" {
		t.Fatalf("unexpected %+v", seq)
	}
}

func TestOf_MissingExtent(t *testing.T) {
	l := tree.NewMapping(
		tree.Field{Name: "Dimension", Value: tree.NewMapping(tree.Field{Name: "name", Value: tree.NewScalar("time")})},
	)
	if _, err := Of(l); !errors.Is(err, ErrMissingExtent) {
		t.Fatalf("err=%v want ErrMissingExtent", err)
	}
}

func TestOf_MalformedTokenFailsWholeLayer(t *testing.T) {
	_, err := Of(inlineLayer("2020-01-01,not-a-date,2020-01-03"))
	if !errors.Is(err, ErrMalformedTimestamp) {
		t.Fatalf("err=%v want ErrMalformedTimestamp", err)
	}
	// ranges with periods are not a list of instants
	if _, err := Of(inlineLayer("2000-01-01/2000-12-31/P1D,2001-01-01")); !errors.Is(err, ErrMalformedTimestamp) {
		t.Fatalf("period err=%v", err)
	}
}

func TestBuild_AscendingNonOverlapping(t *testing.T) {
	seq, err := Build("2020-01-01T00:00:00Z, 2020-01-01T01:00:00Z ,2020-01-01T03:00:00Z,2020-01-02T00:00:00Z")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	for i := 1; i < len(seq); i++ {
		if seq[i].Start.Before(seq[i-1].Start) {
			t.Fatalf("not ascending at %d", i)
		}
		if seq[i-1].Stop.After(seq[i].Start) {
			t.Fatalf("overlap at %d", i)
		}
	}
	n := len(seq)
	if seq[n-1].Duration() != seq[n-2].Duration() {
		t.Fatalf("tail duration %v want %v", seq[n-1].Duration(), seq[n-2].Duration())
	}
	if seq[1].Data != "2020-01-01T01:00:00Z" {
		t.Fatalf("token not trimmed: %q", seq[1].Data)
	}
}

func TestBuild_DuplicateTailIsDegenerate(t *testing.T) {
	seq, err := Build("2020-01-01,2020-01-01")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(seq) != 2 || seq[1].Duration() != 0 {
		t.Fatalf("unexpected %+v", seq)
	}
}

func TestBuild_RejectsDescendingTokens(t *testing.T) {
	for _, v := range []string{
		"2020-01-03,2020-01-02,2020-01-01",
		"2020-01-01,2020-01-03,2020-01-02",
	} {
		seq, err := Build(v)
		if !errors.Is(err, ErrMalformedTimestamp) {
			t.Fatalf("Build(%q) err=%v want ErrMalformedTimestamp", v, err)
		}
		if seq != nil {
			t.Fatalf("Build(%q)=%v want nil", v, seq)
		}
	}
	if _, err := Of(inlineLayer("2020-01-02,2020-01-01")); !errors.Is(err, ErrMalformedTimestamp) {
		t.Fatalf("Of err=%v", err)
	}
}

func TestParseTimestamp_Forms(t *testing.T) {
	cases := map[string]time.Time{
		"2020-01-02T03:04:05Z":          time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC),
		"2020-01-02T03:04:05.5Z":        time.Date(2020, 1, 2, 3, 4, 5, 5e8, time.UTC),
		"2020-01-02T05:04:05+02:00":     time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC),
		"2020-01-02T03:04:05":           time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC),
		"2020-01-02T03:04Z":             time.Date(2020, 1, 2, 3, 4, 0, 0, time.UTC),
		"2020-01-02":                    time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC),
		"2020-01":                       time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		"2020":                          time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		"2020-01-02T03:04:05.000+00:00": time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	for in, want := range cases {
		got, err := ParseTimestamp(in)
		if err != nil {
			t.Fatalf("%q: %v", in, err)
		}
		if !got.Equal(want) {
			t.Fatalf("%q: got %v want %v", in, got, want)
		}
	}
	if _, err := ParseTimestamp(""); !errors.Is(err, ErrMalformedTimestamp) {
		t.Fatalf("empty: err=%v", err)
	}
}

func TestSequence_At(t *testing.T) {
	seq, _ := Build("2020-01-01,2020-01-02")
	iv, ok := seq.At(day("2020-01-02").Add(time.Hour))
	if !ok || iv.Data != "2020-01-02" {
		t.Fatalf("At: %+v ok=%v", iv, ok)
	}
	if _, ok := seq.At(day("2019-12-31")); ok {
		t.Fatal("unexpected match before start")
	}
	if !seq.Start().Equal(day("2020-01-01")) || !seq.Stop().Equal(day("2020-01-03")) {
		t.Fatalf("span %v..%v", seq.Start(), seq.Stop())
	}
}
