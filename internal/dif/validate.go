package dif

import (
	"strings"
)

const (
	ProblemNoDebugInfo          = "no usable debug information found"
	ProblemMissingIdentifiers   = "missing debug identifiers"
	ProblemDegenerateIdentifier = "degenerate identifier"

	NoteIncompleteCoverage = "incomplete architecture coverage"
	NoteHiddenSymbols      = "contains hidden symbols (needs BCSymbolMaps)"
	NoteMissingDWARF       = "no DWARF debug information"
)

// validate decides whether an extraction can be used for symbolication. The
// problem is the first blocking rule that applies, notes never block.
func validate(format Format, x extraction) (note, problem *string) {
	var notes []string
	switch format {
	case FormatMachODsym:
		switch {
		case x.slices > 0 && x.identified == 0:
			problem = ptr(ProblemMissingIdentifiers)
		case len(x.entries) == 0:
			problem = ptr(ProblemNoDebugInfo)
		}
		if x.fat && x.identified > 0 && x.identified < x.slices {
			notes = append(notes, NoteIncompleteCoverage)
		}
		if x.hidden {
			notes = append(notes, NoteHiddenSymbols)
		}
		if len(x.entries) > 0 && !x.dwarf {
			notes = append(notes, NoteMissingDWARF)
		}
	case FormatProguard, FormatBreakpad:
		switch {
		case len(x.entries) == 0:
			problem = ptr(ProblemNoDebugInfo)
		case isDegenerateID(x.entries[0].variant.ID):
			problem = ptr(ProblemDegenerateIdentifier)
		}
	case FormatAuto:
		problem = ptr(ProblemNoDebugInfo)
	}
	if len(notes) > 0 {
		note = ptr(strings.Join(notes, "; "))
	}
	return note, problem
}

// isDegenerateID reports whether an identifier is empty or made only of
// zeros, which toolchains emit when they couldn't compute a real one.
func isDegenerateID(id string) bool {
	return strings.Trim(id, "0-") == ""
}

func ptr(s string) *string {
	return &s
}
