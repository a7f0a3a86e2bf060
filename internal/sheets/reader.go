package sheets

import (
	"context"
	"fmt"
	"strings"
)

// ReadSources reads image URLs or paths from column A of the named sheet. The
// first row is treated as a header; empty cells are skipped.
func (s *Service) ReadSources(ctx context.Context, sheetName string) ([]string, error) {
	const op = "ReadSources"

	s.log.Info().Str("sheet", sheetName).Msg("Reading image sources")

	values, err := s.ReadRange(ctx, a1Range(sheetName, "A:A"))
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read %s sheet: %w", op, sheetName, err)
	}

	if len(values) < 2 {
		return nil, fmt.Errorf("%s: %s sheet has no image sources below the header row", op, sheetName)
	}

	var sources []string
	for i, row := range values[1:] {
		src := getString(row, 0)
		if src == "" {
			s.log.Debug().
				Int("row", i+2).
				Msg("Skipping empty source row")
			continue
		}
		sources = append(sources, src)
	}

	if len(sources) == 0 {
		return nil, fmt.Errorf("%s: %s sheet has only empty cells below the header row", op, sheetName)
	}

	s.log.Info().
		Int("total_rows", len(values)-1).
		Int("sources", len(sources)).
		Str("sheet", sheetName).
		Msg("Image sources read successfully")

	return sources, nil
}

// getString safely extracts a string value from a row slice
func getString(row []interface{}, index int) string {
	if index >= len(row) || row[index] == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprintf("%v", row[index]))
}
