// Package report renders the outcome of checking debug files, either for a
// terminal or as JSON.
package report

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	gojson "github.com/goccy/go-json"

	"github.com/getsentry/difcheck/internal/debugmeta"
	"github.com/getsentry/difcheck/internal/dif"
)

type (
	// Result is the outcome of checking one path. Exactly one of File and Err
	// is set.
	Result struct {
		Path string
		File *dif.File
		Err  error
	}

	// Report collects everything a check run prints.
	Report struct {
		Results []Result
		// Match is set when a crash report was compared against the files.
		Match *debugmeta.MatchResult
	}

	resultRecord struct {
		Path  string    `json:"path"`
		File  *dif.File `json:"file"`
		Error *string   `json:"error"`
	}

	reportRecord struct {
		Files       []resultRecord         `json:"files"`
		DebugImages *debugmeta.MatchResult `json:"debug_images,omitempty"`
	}
)

// Usable reports whether the path was read and can be used.
func (r Result) Usable() bool {
	return r.Err == nil && r.File.IsUsable()
}

// Usable reports whether every file was read and can be used, and no image
// of the crash report is missing.
func (r Report) Usable() bool {
	for _, res := range r.Results {
		if !res.Usable() {
			return false
		}
	}
	return r.Match == nil || len(r.Match.Missing) == 0
}

// WriteJSON writes the report as indented JSON. A single file without a
// crash report is written as its bare record.
func WriteJSON(w io.Writer, r Report) error {
	var v interface{}
	if len(r.Results) == 1 && r.Results[0].Err == nil && r.Match == nil {
		v = r.Results[0].File
	} else {
		rec := reportRecord{
			Files:       make([]resultRecord, 0, len(r.Results)),
			DebugImages: r.Match,
		}
		for _, res := range r.Results {
			rr := resultRecord{Path: res.Path, File: res.File}
			if res.Err != nil {
				msg := res.Err.Error()
				rr.Error = &msg
			}
			rec.Files = append(rec.Files, rr)
		}
		v = rec
	}
	b, err := gojson.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	_, err = w.Write(b)
	return err
}

type styles struct {
	title   lipgloss.Style
	value   lipgloss.Style
	dim     lipgloss.Style
	bad     lipgloss.Style
	good    lipgloss.Style
	heading lipgloss.Style
}

func newStyles(w io.Writer) styles {
	re := lipgloss.NewRenderer(w)
	return styles{
		title:   re.NewStyle().Faint(true).Bold(true),
		value:   re.NewStyle().Foreground(lipgloss.Color("6")),
		dim:     re.NewStyle().Faint(true),
		bad:     re.NewStyle().Foreground(lipgloss.Color("1")),
		good:    re.NewStyle().Foreground(lipgloss.Color("2")),
		heading: re.NewStyle().Bold(true),
	}
}

// WriteText writes the report for a terminal. Colors are only used when w
// is one.
func WriteText(w io.Writer, r Report) error {
	s := newStyles(w)
	ew := &errWriter{w: w}
	for i, res := range r.Results {
		if i > 0 {
			ew.printf("\n")
		}
		writeResult(ew, s, res, len(r.Results) > 1)
	}
	if r.Match != nil {
		ew.printf("\n")
		writeMatch(ew, s, *r.Match)
	}
	return ew.err
}

func writeResult(w *errWriter, s styles, res Result, withPath bool) {
	w.printf("%s\n", s.title.Render("Debug Info File Check"))
	if withPath {
		w.printf("  Path: %s\n", res.Path)
	}
	if res.Err != nil {
		w.printf("  Error: %s\n", s.bad.Render(res.Err.Error()))
		return
	}
	f := res.File
	w.printf("  Type: %s (%s)\n", s.value.Render(f.Format().String()), f.Format().Platform())
	w.printf("  Contained UUIDs:\n")
	for _, v := range f.Variants() {
		if v.CPUType != "" {
			w.printf("    > %s (%s)\n", s.dim.Render(v.ID), s.value.Render(v.CPUType))
		} else {
			w.printf("    > %s\n", s.dim.Render(v.ID))
		}
	}
	if note, ok := f.Note(); ok {
		w.printf("  Note: %s\n", note)
	}
	if problem, ok := f.Problem(); ok {
		w.printf("  Usable: %s (%s)\n", s.bad.Render("no"), problem)
	} else {
		w.printf("  Usable: %s\n", s.good.Render("yes"))
	}
}

func writeMatch(w *errWriter, s styles, m debugmeta.MatchResult) {
	w.printf("%s\n", s.heading.Render("Crash Report Images"))
	w.printf("  Found: %d\n", len(m.Found))
	w.printf("  System: %d\n", len(m.System))
	w.printf("  Missing: %d\n", len(m.Missing))
	for _, img := range m.Missing {
		id := img.DebugID
		if id == "" {
			id = img.UUID
		}
		line := "    > " + s.dim.Render(id)
		if img.Arch != "" {
			line += " (" + s.value.Render(img.Arch) + ")"
		}
		if img.CodeFile != "" {
			line += " " + img.CodeFile
		}
		w.printf("%s\n", line)
	}
}

// errWriter keeps the first write error so rendering code stays linear.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(format string, args ...interface{}) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}
