package kb

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSplitTextBoundaries(t *testing.T) {
	t.Parallel()
	text := strings.Repeat("Alpha beta gamma delta. ", 30)
	chunks := SplitText(text, 100, 20)
	if len(chunks) < 2 {
		t.Fatalf("SplitText produced %d chunks, want several", len(chunks))
	}
	for i, c := range chunks {
		if len(c) > 100 {
			t.Errorf("chunk %d length = %d, want <= 100", i, len(c))
		}
	}
	// overlap means the tail of one chunk reappears at the head of the next
	tail := chunks[0][len(chunks[0])-10:]
	if !strings.Contains(chunks[1], tail) {
		t.Errorf("chunk 1 does not carry overlap from chunk 0 (%q)", tail)
	}
}

func TestSplitTextSmallInput(t *testing.T) {
	t.Parallel()
	if got := SplitText("short", 100, 10); len(got) != 1 || got[0] != "short" {
		t.Errorf("SplitText(short) = %v", got)
	}
	if got := SplitText("   ", 100, 10); got != nil {
		t.Errorf("SplitText(blank) = %v, want nil", got)
	}
}

func writeKBFixtures(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"grid.md":   "# Grids\n\nPower grids balance generation and load in real time. Frequency deviations signal imbalance.",
		"solar.txt": "Solar inverters convert DC output into grid-synchronized AC power. Maximum power point tracking improves yield.",
		"notes.csv": "topic,detail\nstorage,Batteries smooth intermittent renewable output\nwind,Turbine pitch control limits rotor speed",
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestLoadDir(t *testing.T) {
	t.Parallel()
	dir := writeKBFixtures(t)
	chunks, err := loadDir(dir, 500, 50)
	if err != nil {
		t.Fatalf("loadDir: %v", err)
	}
	// grid.md + solar.txt + two csv rows
	if len(chunks) != 4 {
		t.Fatalf("loadDir = %d chunks, want 4", len(chunks))
	}
	bySource := map[string]int{}
	for _, c := range chunks {
		bySource[c.Source]++
	}
	if bySource["notes.csv"] != 2 {
		t.Errorf("csv chunks = %d, want 2 (one per row)", bySource["notes.csv"])
	}
	for _, c := range chunks {
		if c.Source == "notes.csv" && c.Page == 0 {
			t.Errorf("csv chunk %s has page 0, want row number", c.ID)
		}
		if c.Source == "grid.md" && c.Title != "grid" {
			t.Errorf("title = %q, want grid", c.Title)
		}
	}
}

func TestOpenAndSearchBM25Only(t *testing.T) {
	t.Parallel()
	dir := writeKBFixtures(t)
	ix, err := Open(context.Background(), Options{Path: dir, ChunkSize: 500, TopK: 5, TopN: 3}, nil, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if ix.Size() != 4 {
		t.Fatalf("Size() = %d, want 4", ix.Size())
	}
	hits, err := ix.Search(context.Background(), "solar inverters")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) == 0 {
		t.Fatal("Search returned no hits")
	}
	if hits[0].Source != "solar.txt" {
		t.Errorf("top hit source = %q, want solar.txt", hits[0].Source)
	}
	if hits[0].Title != "solar" {
		t.Errorf("top hit title = %q, want solar", hits[0].Title)
	}
}

func TestFuseRRFPrefersAgreement(t *testing.T) {
	t.Parallel()
	a := []rankedHit{{id: "x", rank: 1}, {id: "y", rank: 2}}
	b := []rankedHit{{id: "y", rank: 1}, {id: "z", rank: 2}}
	fused := fuseRRF(a, b, 3)
	if len(fused) != 3 {
		t.Fatalf("fused = %d, want 3", len(fused))
	}
	if fused[0].id != "y" {
		t.Errorf("top fused = %q, want y (appears in both arms)", fused[0].id)
	}
}

func TestCosine(t *testing.T) {
	t.Parallel()
	if got := cosine([]float32{1, 0}, []float32{1, 0}); got != 1 {
		t.Errorf("cosine(identical) = %v, want 1", got)
	}
	if got := cosine([]float32{1, 0}, []float32{0, 1}); got != 0 {
		t.Errorf("cosine(orthogonal) = %v, want 0", got)
	}
	if got := cosine(nil, []float32{1}); got != 0 {
		t.Errorf("cosine(empty) = %v, want 0", got)
	}
}
