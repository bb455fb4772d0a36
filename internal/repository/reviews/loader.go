package reviews

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"github.com/parklens/revq/internal/domain"
)

// reviewColumns holds the resolved header indexes of the review CSV export.
type reviewColumns struct {
	id       int
	rating   int
	date     int
	location int
	text     int
	branch   int
}

// LoadCSV reads the review corpus from a CSV export. Exports in the wild come
// in UTF-8 or Windows-1252; input that is not valid UTF-8 is re-decoded as
// Windows-1252 before parsing.
func LoadCSV(path string) ([]domain.Review, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read reviews: %w", err)
	}

	if !utf8.Valid(data) {
		data, _, err = transform.Bytes(charmap.Windows1252.NewDecoder(), data)
		if err != nil {
			return nil, fmt.Errorf("decode reviews as windows-1252: %w", err)
		}
	}

	return parseCSV(bytes.NewReader(data))
}

func parseCSV(r io.Reader) ([]domain.Review, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	cols, err := resolveColumns(header)
	if err != nil {
		return nil, err
	}

	var reviews []domain.Review
	for row := 0; ; row++ {
		record, err := cr.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("read row %d: %w", row, err)
		}

		rev := domain.Review{
			ID:               field(record, cols.id),
			Rating:           field(record, cols.rating),
			YearMonth:        field(record, cols.date),
			ReviewerLocation: field(record, cols.location),
			Text:             field(record, cols.text),
			Branch:           field(record, cols.branch),
		}
		if rev.ID == "" {
			// prefixed so a synthetic id cannot collide with a real one
			rev.ID = "row-" + strconv.Itoa(row)
		}
		reviews = append(reviews, rev)
	}

	return reviews, nil
}

// resolveColumns finds column indexes by header name, case-insensitively.
// Only the id and text columns are mandatory.
func resolveColumns(header []string) (reviewColumns, error) {
	cols := reviewColumns{id: -1, rating: -1, date: -1, location: -1, text: -1, branch: -1}
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "review_id":
			cols.id = i
		case "rating":
			cols.rating = i
		case "year_month":
			cols.date = i
		case "reviewer_location":
			cols.location = i
		case "review_text":
			cols.text = i
		case "branch":
			cols.branch = i
		}
	}
	if cols.id < 0 {
		return cols, errors.New("review_id column not found in CSV header")
	}
	if cols.text < 0 {
		return cols, errors.New("review_text column not found in CSV header")
	}
	return cols, nil
}

func field(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}
