package mix

import (
	"slices"
	"testing"
)

func TestSectionsMark(t *testing.T) {
	for _, tt := range []struct {
		name       string
		start, end int
		want       [][2]int
	}{
		{"inside one", 10, 20, [][2]int{{0, 1}}},
		{"exact section", 100, 200, [][2]int{{1, 2}}},
		{"spanning", 150, 450, [][2]int{{1, 5}}},
		{"negative start", -50, 50, [][2]int{{0, 1}}},
		{"all negative", -50, -10, nil},
		{"empty", 30, 30, nil},
		{"reversed", 40, 30, nil},
	} {
		t.Run(tt.name, func(t *testing.T) {
			s := sections{}
			s.mark(tt.start, tt.end, 100)
			if got := s.runs(); !slices.Equal(got, tt.want) {
				t.Fatalf("runs = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSectionsRunsCoalesce(t *testing.T) {
	s := sections{}
	s.mark(0, 10, 10)
	s.mark(10, 30, 10)
	s.mark(50, 60, 10)
	want := [][2]int{{0, 3}, {5, 6}}
	if got := s.runs(); !slices.Equal(got, want) {
		t.Fatalf("runs = %v, want %v", got, want)
	}
	if !s.overlaps(25, 26, 10) || s.overlaps(30, 50, 10) {
		t.Fatal("overlaps disagrees with mark")
	}
	var none sections
	if none.overlaps(0, 100, 10) {
		t.Fatal("nil set overlaps")
	}
}
