package kb

import (
	"encoding/csv"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Chunk is one indexed slice of a knowledge-base file.
type Chunk struct {
	ID     string `json:"id"`
	Text   string `json:"text"`
	Source string `json:"source"`
	Page   int    `json:"page"`
	Title  string `json:"title"`
}

// loadDir walks root and chunks every supported file. Text and markdown
// files become one document; CSV files become one document per row with the
// row number as page.
func loadDir(root string, chunkSize, chunkOverlap int) ([]Chunk, error) {
	var chunks []Chunk
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			rel = path
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".txt", ".md":
			raw, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("reading %s: %w", rel, err)
			}
			chunks = append(chunks, chunkDocument(rel, 0, string(raw), chunkSize, chunkOverlap)...)
		case ".csv":
			rows, err := loadCSV(path)
			if err != nil {
				return fmt.Errorf("reading %s: %w", rel, err)
			}
			for page, row := range rows {
				chunks = append(chunks, chunkDocument(rel, page+1, row, chunkSize, chunkOverlap)...)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return chunks, nil
}

func chunkDocument(source string, page int, text string, size, overlap int) []Chunk {
	title := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	pieces := SplitText(text, size, overlap)
	out := make([]Chunk, 0, len(pieces))
	for i, piece := range pieces {
		out = append(out, Chunk{
			ID:     fmt.Sprintf("%s:%d:%d", source, page, i),
			Text:   piece,
			Source: source,
			Page:   page,
			Title:  title,
		})
	}
	return out
}

// loadCSV renders each data row as "header: value" lines.
func loadCSV(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	header := records[0]
	out := make([]string, 0, len(records)-1)
	for _, rec := range records[1:] {
		var b strings.Builder
		for i, field := range rec {
			name := fmt.Sprintf("col%d", i+1)
			if i < len(header) {
				name = header[i]
			}
			fmt.Fprintf(&b, "%s: %s\n", name, field)
		}
		out = append(out, strings.TrimRight(b.String(), "\n"))
	}
	return out, nil
}
