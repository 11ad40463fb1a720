package catalog

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
)

// LoadStats summarises a CSV load: how many data rows were seen, how many
// produced work items, and how many were rejected.
type LoadStats struct {
	Rows    int
	Loaded  int
	Invalid int
}

// headerNames are accepted first-column values identifying a header row.
var headerNames = map[string]bool{
	"artist_id": true,
	"id":        true,
	"uuid":      true,
}

// Load reads artists from a CSV file.
//
// Expected columns: artist_id, artist_name, artist_data (optional third
// column). A header row is detected when the first column matches one of
// the known header names case-insensitively. Lines starting with '#' and
// blank lines are skipped. Invalid rows are counted, logged at warning,
// and excluded from the returned slice.
func Load(path string, logger *slog.Logger) ([]Artist, LoadStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, LoadStats{}, fmt.Errorf("failed to open input file: %w", err)
	}
	defer f.Close()

	artists, stats, err := Parse(f, logger)
	if err != nil {
		return nil, stats, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return artists, stats, nil
}

// Parse reads artists from CSV content. See Load for the accepted format.
func Parse(r io.Reader, logger *slog.Logger) ([]Artist, LoadStats, error) {
	if logger == nil {
		logger = slog.Default()
	}

	reader := csv.NewReader(r)
	reader.Comment = '#'
	reader.FieldsPerRecord = -1 // third column is optional
	reader.TrimLeadingSpace = true

	var (
		artists []Artist
		stats   LoadStats
		first   = true
	)

	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, stats, fmt.Errorf("csv read failed: %w", err)
		}

		// A whitespace-only line arrives as a single empty field.
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}

		// Header row: first data line whose id column is a column name.
		if first {
			first = false
			if headerNames[strings.ToLower(strings.TrimSpace(rec[0]))] {
				continue
			}
		}

		stats.Rows++

		if len(rec) < 2 {
			stats.Invalid++
			logger.Warn("skipping row with too few columns", "columns", len(rec), "row", stats.Rows)
			continue
		}

		data := ""
		if len(rec) >= 3 {
			data = rec[2]
		}

		artist, err := NewArtist(rec[0], rec[1], data)
		if err != nil {
			stats.Invalid++
			logger.Warn("skipping invalid row", "row", stats.Rows, "error", err)
			continue
		}

		artists = append(artists, artist)
		stats.Loaded++
	}

	return artists, stats, nil
}

// FilterProcessed returns the artists whose IDs are not in the processed set,
// preserving input order. Used by resume mode to skip completed work.
func FilterProcessed(artists []Artist, processed map[uuid.UUID]struct{}) []Artist {
	if len(processed) == 0 {
		return artists
	}
	remaining := make([]Artist, 0, len(artists))
	for _, a := range artists {
		if _, ok := processed[a.ID]; ok {
			continue
		}
		remaining = append(remaining, a)
	}
	return remaining
}
