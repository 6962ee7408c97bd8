package dif

import (
	"github.com/rs/zerolog/log"

	"github.com/getsentry/difcheck/internal/debugmeta"
)

type (
	entry struct {
		variant   Variant
		features  debugmeta.Features
		imageType string
		codeFile  string
	}

	// extraction is what a format reader found in a file, before any
	// usability decision is made.
	extraction struct {
		entries []entry
		// Mach-O only: architecture slices located, and how many of them
		// carried a decodable identifier.
		slices     int
		identified int
		fat        bool
		hidden     bool
		dwarf      bool
		// issues describes slices skipped because they couldn't be parsed.
		issues []string
	}
)

// add appends an entry unless its identifier was already seen. Fat files
// sometimes carry the same slice twice, the first one wins.
func (x *extraction) add(e entry) {
	for _, o := range x.entries {
		if o.variant.ID == e.variant.ID {
			log.Debug().Str("id", e.variant.ID).Str("arch", e.variant.CPUType).Msg("collapsing duplicate identifier")
			return
		}
	}
	x.entries = append(x.entries, e)
}
