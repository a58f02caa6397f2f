// Package table reads and writes the library table and converts it to the
// Goodreads import layout.
package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"lubimyczytac-exporter/internal/types"
	"lubimyczytac-exporter/utils"
)

// GoodreadsHeaders is the column layout accepted by the Goodreads importer
var GoodreadsHeaders = []string{
	"Title",
	"Polish Title",
	"Author",
	"ISBN",
	"My Rating",
	"Average Rating",
	"Publisher",
	"Binding",
	"Year Published",
	"Original Publication Year",
	"Date Read",
	"Date Added",
	"Shelves",
	"Bookshelves",
	"My Review",
}

// goodreadsSources maps Goodreads columns to library table headers. Columns
// without a source are written empty.
var goodreadsSources = map[string]string{
	"Title":          "Tytuł",
	"Polish Title":   "Polski Tytuł",
	"Author":         "Autor",
	"ISBN":           "ISBN",
	"My Rating":      "Ocena użytkownika",
	"Average Rating": "Średnia ocena",
	"Date Read":      "Data przeczytania",
	"Shelves":        "Na półkach Główne",
	"Bookshelves":    "Na półkach Pozostałe",
}

// legacyVariants are header spellings seen in old exports that the
// windows-1250 derivation does not reproduce.
var legacyVariants = map[string][]string{
	"Na półkach Główne": {"Na pĂłĹ‚kach GĹ‚owne"},
	"Średnia ocena":     {"Ĺšrednia ocena"},
}

// Save writes the header and one row per book, creating parent directories
func Save(books []*types.Book, path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(types.CSVHeaders); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, book := range books {
		if book == nil {
			continue
		}
		if err := writer.Write(book.ToRow()); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return file.Close()
}

// Load reads a library table, skipping the header. Short rows are padded and
// long rows truncated.
func Load(path string) ([]*types.Book, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	reader := newReader(file)
	if _, err := reader.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read header of %s: %w", path, err)
	}

	var books []*types.Book
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return books, fmt.Errorf("failed to read %s: %w", path, err)
		}
		books = append(books, types.FromRow(row))
	}
	return books, nil
}

// ConvertToGoodreads rewrites the library table at in as a Goodreads import
// file at out. Columns are looked up by header name, so reordered or legacy
// mis-encoded headers are accepted.
func ConvertToGoodreads(in, out string) error {
	src, err := os.Open(in)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", in, err)
	}
	defer src.Close()

	reader := newReader(src)
	header, err := reader.Read()
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to read header of %s: %w", in, err)
	}
	columns := indexColumns(header)

	if dir := filepath.Dir(out); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	dst, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", out, err)
	}
	defer dst.Close()

	writer := csv.NewWriter(dst)
	if err := writer.Write(GoodreadsHeaders); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for len(header) > 0 {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", in, err)
		}
		if err := writer.Write(goodreadsRow(row, columns)); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to write %s: %w", out, err)
	}
	return dst.Close()
}

func newReader(r io.Reader) *csv.Reader {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	return reader
}

// indexColumns maps header names to positions, first occurrence wins
func indexColumns(header []string) map[string]int {
	columns := make(map[string]int, len(header))
	for i, name := range header {
		if i == 0 {
			name = trimBOM(name)
		}
		if _, seen := columns[name]; !seen {
			columns[name] = i
		}
	}
	return columns
}

func trimBOM(s string) string {
	const bom = "\ufeff"
	if len(s) >= len(bom) && s[:len(bom)] == bom {
		return s[len(bom):]
	}
	return s
}

func goodreadsRow(row []string, columns map[string]int) []string {
	out := make([]string, len(GoodreadsHeaders))
	for i, name := range GoodreadsHeaders {
		if source, ok := goodreadsSources[name]; ok {
			out[i] = lookup(row, columns, source)
		}
	}
	return out
}

// lookup returns the first non-empty value under key or one of its legacy
// spellings.
func lookup(row []string, columns map[string]int, key string) string {
	keys := append([]string{key, utils.MisDecoded(key)}, legacyVariants[key]...)
	for _, k := range keys {
		i, ok := columns[k]
		if !ok || i >= len(row) {
			continue
		}
		if row[i] != "" {
			return row[i]
		}
	}
	return ""
}
