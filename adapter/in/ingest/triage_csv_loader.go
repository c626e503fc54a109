// Package ingest loads review datasets from CSV exports.
//
// Marketplace exports arrive in two flavors: UTF-8 with comma separators and
// Latin-1 with semicolon separators. The loader sniffs both and normalizes to
// UTF-8 review inputs.
package ingest

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"

	"triage_server/core/domain"

	"golang.org/x/text/encoding/charmap"
)

var textColumns = []string{"review_comment_message", "review_text", "text", "comment", "message"}

var scoreColumns = []string{"review_score", "score", "rating", "stars"}

// LoadReviewsFile reads review inputs from a CSV file on disk.
func LoadReviewsFile(path string) ([]domain.ReviewInput, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open reviews file: %w", err)
	}
	defer f.Close()
	return LoadReviews(f)
}

// LoadReviews parses review inputs from CSV data, preserving row order.
func LoadReviews(r io.Reader) ([]domain.ReviewInput, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read reviews: %w", err)
	}

	if !utf8.Valid(raw) {
		decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to decode latin-1 reviews: %w", err)
		}
		raw = decoded
	}
	raw = bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf"))

	reader := csv.NewReader(bytes.NewReader(raw))
	reader.Comma = detectSeparator(raw)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("reviews file is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	textIdx := findColumn(header, textColumns)
	if textIdx < 0 {
		return nil, fmt.Errorf("no review text column found in header %v", header)
	}
	scoreIdx := findColumn(header, scoreColumns)

	var inputs []domain.ReviewInput
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row %d: %w", len(inputs)+2, err)
		}

		in := domain.ReviewInput{}
		if textIdx < len(record) {
			in.Text = record[textIdx]
		}
		if scoreIdx >= 0 && scoreIdx < len(record) {
			in.Score = parseScore(record[scoreIdx])
		}
		inputs = append(inputs, in)
	}

	return inputs, nil
}

// detectSeparator picks between comma and semicolon based on the header line.
func detectSeparator(raw []byte) rune {
	line := raw
	if i := bytes.IndexByte(raw, '\n'); i >= 0 {
		line = raw[:i]
	}
	if bytes.Count(line, []byte(";")) > bytes.Count(line, []byte(",")) {
		return ';'
	}
	return ','
}

func findColumn(header []string, candidates []string) int {
	for _, want := range candidates {
		for i, col := range header {
			if strings.EqualFold(strings.TrimSpace(col), want) {
				return i
			}
		}
	}
	return -1
}

// parseScore returns the star rating if the cell holds a value in 1..5,
// nil otherwise.
func parseScore(cell string) *int {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return nil
	}

	v, err := strconv.Atoi(cell)
	if err != nil {
		f, ferr := strconv.ParseFloat(cell, 64)
		if ferr != nil {
			return nil
		}
		v = int(f)
	}

	if v < 1 || v > 5 {
		return nil
	}
	return domain.IntPtr(v)
}
