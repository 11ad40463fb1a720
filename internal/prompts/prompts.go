// Package prompts describes the server-side bio prompt and builds the
// variable map substituted into it for each artist.
//
// The prompt template itself lives in the provider's prompt registry and is
// addressed by ID (plus an optional pinned version); the tool only supplies
// the per-artist variables.
package prompts

import "github.com/jackzampolin/biograph/internal/catalog"

// Variable names the bio prompt template expects.
const (
	VarArtistName = "artist_name"
	VarArtistData = "artist_data"
)

// NoDataPlaceholder is substituted for artist_data when the catalog row
// carried no background material, so the template never sees an empty value.
const NoDataPlaceholder = "No additional data provided"

// Bio identifies the server-side prompt used for a run.
type Bio struct {
	ID      string // provider prompt ID (required)
	Version string // pinned version; empty means provider default
}

// Variables builds the substitution map for one artist.
func (b Bio) Variables(artist catalog.Artist) map[string]string {
	data := artist.Data
	if data == "" {
		data = NoDataPlaceholder
	}
	return map[string]string{
		VarArtistName: artist.Name,
		VarArtistData: data,
	}
}
