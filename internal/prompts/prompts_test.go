package prompts

import (
	"testing"

	"github.com/google/uuid"

	"github.com/jackzampolin/biograph/internal/catalog"
)

func TestBio_Variables(t *testing.T) {
	prompt := Bio{ID: "pmpt_abc123"}

	t.Run("with data", func(t *testing.T) {
		artist := catalog.Artist{ID: uuid.New(), Name: "Miles Davis", Data: "trumpet, bandleader"}
		vars := prompt.Variables(artist)

		if vars[VarArtistName] != "Miles Davis" {
			t.Errorf("expected artist_name 'Miles Davis', got %q", vars[VarArtistName])
		}
		if vars[VarArtistData] != "trumpet, bandleader" {
			t.Errorf("expected artist_data passthrough, got %q", vars[VarArtistData])
		}
	})

	t.Run("without data uses placeholder", func(t *testing.T) {
		artist := catalog.Artist{ID: uuid.New(), Name: "Nina Simone"}
		vars := prompt.Variables(artist)

		if vars[VarArtistData] != NoDataPlaceholder {
			t.Errorf("expected placeholder %q, got %q", NoDataPlaceholder, vars[VarArtistData])
		}
	})
}
