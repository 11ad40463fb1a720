// Package results owns the append-only JSONL result log: the record shape,
// serialised appends, tolerant reads for resume, and schema verification.
package results

import (
	"github.com/jackzampolin/biograph/internal/catalog"
	"github.com/jackzampolin/biograph/internal/prompts"
)

// Database step outcomes recorded in db_status. DBNone marks items that
// never reached the database stage (no pool, or the remote call failed).
const (
	DBUpdated = "updated"
	DBSkipped = "skipped"
	DBNone    = "none"
	DBError   = "error"
)

// Request is the remote call echoed into each record so a log line is
// reproducible on its own.
type Request struct {
	PromptID  string            `json:"prompt_id"`
	Version   string            `json:"version,omitempty"`
	Variables map[string]string `json:"variables"`
}

// Record is one result-log line. Error is a pointer so success renders as
// an explicit "error": null; resume treats null and absent alike.
type Record struct {
	ArtistID     string  `json:"artist_id"`
	ArtistName   string  `json:"artist_name"`
	ArtistData   string  `json:"artist_data,omitempty"`
	Request      Request `json:"request"`
	ResponseText string  `json:"response_text"`
	ResponseID   string  `json:"response_id"`
	Created      int64   `json:"created"`
	DBStatus     string  `json:"db_status"`
	Error        *string `json:"error"`
}

// NewRecord starts a record for one artist and the prompt that will be
// called for it.
func NewRecord(a catalog.Artist, bio prompts.Bio) *Record {
	return &Record{
		ArtistID:   a.ID.String(),
		ArtistName: a.Name,
		ArtistData: a.Data,
		Request: Request{
			PromptID:  bio.ID,
			Version:   bio.Version,
			Variables: bio.Variables(a),
		},
	}
}

// Fail marks the record failed. The first failure wins; later stages see
// the record already failed and leave the message alone.
func (r *Record) Fail(msg string) {
	if r.Error != nil {
		return
	}
	r.Error = &msg
}

// Failed reports whether an error has been captured.
func (r *Record) Failed() bool {
	return r.Error != nil
}

// ErrorMessage returns the captured error, or "" for a success record.
func (r *Record) ErrorMessage() string {
	if r.Error == nil {
		return ""
	}
	return *r.Error
}
