package columns

import (
	"testing"

	"github.com/nissyi-gh/flowboard/internal/model"
)

func ids(cols []model.Column) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.ID
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestBuild_ProjectColumnsWin(t *testing.T) {
	project := []model.Column{
		{ID: "backlog", Title: "Backlog"},
		{ID: "doing", Title: "Doing"},
		{ID: "shipped", Title: "Shipped"},
	}
	lookups := []model.StatusLookup{
		{ID: "open", Name: "Open", SortOrder: 1},
		{ID: "closed", Name: "Closed", SortOrder: 2},
	}

	got := Build(project, lookups)

	if want := []string{"backlog", "doing", "shipped"}; !equal(ids(got), want) {
		t.Fatalf("Build() ids=%v, want %v", ids(got), want)
	}
	for i, c := range got {
		if c.Position != i {
			t.Errorf("col %s Position=%d, want %d", c.ID, c.Position, i)
		}
		if c.Color != model.ColorGray {
			t.Errorf("col %s Color=%q, want gray", c.ID, c.Color)
		}
	}
}

func TestBuild_ProjectPositionsKept(t *testing.T) {
	project := []model.Column{
		{ID: "a", Position: 10},
		{ID: "b", Position: 20},
	}
	got := Build(project, nil)
	if got[0].Position != 10 || got[1].Position != 20 {
		t.Fatalf("positions=%d,%d, want 10,20", got[0].Position, got[1].Position)
	}
	if project[0].Color != "" {
		t.Fatalf("Build() mutated its input")
	}
}

func TestBuild_Lookups(t *testing.T) {
	lookups := []model.StatusLookup{
		{ID: "closed", Name: "Closed", SortOrder: 3, Color: model.ColorGreen, IsTerminal: true},
		{ID: "hidden", Name: "Hidden", SortOrder: 2, Disabled: true},
		{ID: "open", Name: "Open", SortOrder: 1},
	}

	got := Build(nil, lookups)

	if want := []string{"open", "closed"}; !equal(ids(got), want) {
		t.Fatalf("Build() ids=%v, want %v", ids(got), want)
	}
	if got[0].Color != model.ColorGray {
		t.Fatalf("missing color=%q, want gray", got[0].Color)
	}
	if !got[1].IsTerminal || got[1].Title != "Closed" {
		t.Fatalf("closed=%+v, want terminal Closed", got[1])
	}
}

func TestBuild_FallbackChain(t *testing.T) {
	tests := []struct {
		name    string
		lookups []model.StatusLookup
	}{
		{name: "no lookups"},
		{name: "all disabled", lookups: []model.StatusLookup{{ID: "x", Disabled: true}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Build(nil, tt.lookups)
			titles := make([]string, len(got))
			for i, c := range got {
				titles[i] = c.Title
			}
			if want := []string{"To Do", "In Progress", "Review", "Done"}; !equal(titles, want) {
				t.Fatalf("titles=%v, want %v", titles, want)
			}
		})
	}
}

func TestTerminal(t *testing.T) {
	tests := []struct {
		name   string
		cols   []model.Column
		wantID string
		wantOK bool
	}{
		{
			name: "flag wins over title",
			cols: []model.Column{
				{ID: "done", Title: "Done", Position: 0},
				{ID: "closed", Title: "Closed", Position: 1, IsTerminal: true},
			},
			wantID: "closed",
			wantOK: true,
		},
		{
			name: "title heuristic",
			cols: []model.Column{
				{ID: "a", Title: "Open", Position: 0},
				{ID: "b", Title: "Completed", Position: 1},
			},
			wantID: "b",
			wantOK: true,
		},
		{
			name: "none",
			cols: []model.Column{{ID: "a", Title: "Open"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Terminal(tt.cols)
			if ok != tt.wantOK || got.ID != tt.wantID {
				t.Errorf("Terminal() = %q, %v; want %q, %v", got.ID, ok, tt.wantID, tt.wantOK)
			}
		})
	}
}

func TestFirstAndDefault(t *testing.T) {
	cols := []model.Column{
		{ID: "b", Position: 1, IsDefault: true},
		{ID: "a", Position: 0},
	}
	if c, _ := First(cols); c.ID != "a" {
		t.Fatalf("First()=%q, want a", c.ID)
	}
	if c, _ := Default(cols); c.ID != "b" {
		t.Fatalf("Default()=%q, want b", c.ID)
	}
	if _, ok := First(nil); ok {
		t.Fatalf("First(nil) ok=true, want false")
	}
}
