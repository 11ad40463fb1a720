package results

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"
)

// maxLineBytes bounds one result line; generated bios run a few KB, so
// this leaves two orders of magnitude of headroom.
const maxLineBytes = 1 << 20

// ProcessedIDs reads the log tolerantly and returns the artist ids of
// records without an error. Malformed lines are warned about and skipped;
// a missing file yields an empty set.
func ProcessedIDs(path string, logger *slog.Logger) (map[uuid.UUID]struct{}, error) {
	if logger == nil {
		logger = slog.Default()
	}

	processed := make(map[uuid.UUID]struct{})

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return processed, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open result log: %w", err)
	}
	defer f.Close()

	_, err = scanRecords(f, logger, func(rec Record) {
		if rec.Failed() {
			return
		}
		id, err := uuid.Parse(rec.ArtistID)
		if err != nil {
			logger.Warn("result record with invalid artist_id", "artist_id", rec.ArtistID)
			return
		}
		processed[id] = struct{}{}
	})
	if err != nil {
		return nil, err
	}
	return processed, nil
}

// Summary aggregates a result log for reporting.
type Summary struct {
	Total     int
	Succeeded int
	Failed    int
	Malformed int
	DBStatus  map[string]int
}

// Summarize reads the log tolerantly and counts outcomes.
func Summarize(path string, logger *slog.Logger) (Summary, error) {
	if logger == nil {
		logger = slog.Default()
	}

	f, err := os.Open(path)
	if err != nil {
		return Summary{}, fmt.Errorf("open result log: %w", err)
	}
	defer f.Close()

	sum := Summary{DBStatus: make(map[string]int)}
	malformed, err := scanRecords(f, logger, func(rec Record) {
		sum.Total++
		if rec.Failed() {
			sum.Failed++
		} else {
			sum.Succeeded++
		}
		if rec.DBStatus != "" {
			sum.DBStatus[rec.DBStatus]++
		}
	})
	if err != nil {
		return Summary{}, err
	}
	sum.Malformed = malformed
	return sum, nil
}

// scanRecords streams well-formed records from r to fn and counts the
// malformed lines it skips.
func scanRecords(r io.Reader, logger *slog.Logger, fn func(Record)) (malformed int, err error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			malformed++
			logger.Warn("skipping malformed result line", "line", line, "error", err)
			continue
		}
		fn(rec)
	}
	if err := scanner.Err(); err != nil {
		return malformed, fmt.Errorf("read result log: %w", err)
	}
	return malformed, nil
}
