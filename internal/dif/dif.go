// Package dif identifies debug info files (dSYM, Proguard mappings and
// Breakpad symbols) and decides whether they can be used for symbolication.
package dif

import (
	"errors"
	"fmt"
	"io"
	"os"

	gojson "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/getsentry/difcheck/internal/debugmeta"
	"github.com/getsentry/difcheck/internal/errorutil"
)

// DefaultMaxFileSize is the largest text file Open buffers in memory.
const DefaultMaxFileSize int64 = 1 << 30

type (
	// Variant is one build contained in a debug file. CPUType is empty for
	// architecture independent formats.
	Variant struct {
		ID      string
		CPUType string
	}

	// File is the result of inspecting a debug file. It is never modified
	// after Open returns it.
	File struct {
		format  Format
		entries []entry
		note    *string
		problem *string
	}

	// Opener opens debug files with a custom size limit.
	Opener struct {
		// MaxFileSize bounds the size of files that need to be fully read.
		// Mach-O files are read in place and aren't limited.
		MaxFileSize int64
	}
)

// Open inspects the debug file at path. If hint is not FormatAuto, the file
// must be of that format.
func Open(path string, hint Format) (*File, error) {
	return Opener{}.Open(path, hint)
}

// Open inspects the debug file at path. If hint is not FormatAuto, the file
// must be of that format. Every call reads the file again.
func (o Opener) Open(path string, hint Format) (*File, error) {
	path, err := resolveBundle(path)
	if err != nil {
		return nil, err
	}
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dif: %w: %w", errorutil.ErrUnreadableFile, err)
	}
	defer fh.Close()

	info, err := fh.Stat()
	if err != nil {
		return nil, fmt.Errorf("dif: %w: %w", errorutil.ErrUnreadableFile, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("dif: %w: %s is a directory", errorutil.ErrUnreadableFile, path)
	}
	size := info.Size()

	head := make([]byte, min(size, sniffSize))
	if err := readFull(fh, head, 0, size); err != nil {
		return nil, err
	}
	format, err := sniff(head, hint)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("path", path).Str("format", format.String()).Int64("size", size).Msg("detected debug file format")

	x, err := o.extract(fh, size, format)
	if err != nil {
		return nil, err
	}
	note, problem := validate(format, x)
	for _, issue := range x.issues {
		log.Debug().Str("path", path).Str("issue", issue).Msg("skipped part of debug file")
	}
	return &File{
		format:  format,
		entries: x.entries,
		note:    note,
		problem: problem,
	}, nil
}

func (o Opener) extract(r io.ReaderAt, size int64, format Format) (extraction, error) {
	switch format {
	case FormatMachODsym:
		return readMachO(r, size)
	case FormatProguard:
		data, err := o.readAll(r, size)
		if err != nil {
			return extraction{}, err
		}
		return readProguard(data), nil
	case FormatBreakpad:
		data, err := o.readAll(r, size)
		if err != nil {
			return extraction{}, err
		}
		return readBreakpad(data)
	case FormatAuto:
	}
	return extraction{}, fmt.Errorf("dif: can't extract variants of format %v", format)
}

func (o Opener) readAll(r io.ReaderAt, size int64) ([]byte, error) {
	limit := o.MaxFileSize
	if limit <= 0 {
		limit = DefaultMaxFileSize
	}
	if size > limit {
		return nil, fmt.Errorf("dif: %w: %d bytes, limit is %d", errorutil.ErrFileTooLarge, size, limit)
	}
	data := make([]byte, size)
	if err := readFull(r, data, 0, size); err != nil {
		return nil, err
	}
	return data, nil
}

// Format returns the format the file was opened as.
func (f *File) Format() Format {
	return f.format
}

// Variants returns the builds contained in the file, in file order.
func (f *File) Variants() []Variant {
	variants := make([]Variant, 0, len(f.entries))
	for _, e := range f.entries {
		variants = append(variants, e.variant)
	}
	return variants
}

// Note returns informational remarks that don't affect usability.
func (f *File) Note() (string, bool) {
	if f.note == nil {
		return "", false
	}
	return *f.note, true
}

// Problem returns why the file can't be used, if it can't.
func (f *File) Problem() (string, bool) {
	if f.problem == nil {
		return "", false
	}
	return *f.problem, true
}

func (f *File) IsUsable() bool {
	return f.problem == nil
}

// DebugImages describes the variants the way crash reports reference their
// images, so both can be matched with debugmeta.Match.
func (f *File) DebugImages() []debugmeta.Image {
	images := make([]debugmeta.Image, 0, len(f.entries))
	for _, e := range f.entries {
		img := debugmeta.Image{
			Arch:     e.variant.CPUType,
			CodeFile: e.codeFile,
			Features: e.features,
			Type:     e.imageType,
		}
		if f.format == FormatProguard {
			img.UUID = e.variant.ID
		} else if id, err := debugmeta.NormalizeDebugID(e.variant.ID); err == nil {
			img.DebugID = id
		} else {
			img.DebugID = e.variant.ID
		}
		images = append(images, img)
	}
	return images
}

type (
	record struct {
		Type     Format          `json:"type"`
		Variants []variantRecord `json:"variants"`
		Note     *string         `json:"note"`
		Problem  *string         `json:"problem"`
	}

	variantRecord struct {
		UUID    string  `json:"uuid"`
		CPUType *string `json:"cpu_type"`
	}
)

func (f *File) MarshalJSON() ([]byte, error) {
	r := record{
		Type:     f.format,
		Variants: make([]variantRecord, 0, len(f.entries)),
		Note:     f.note,
		Problem:  f.problem,
	}
	for _, e := range f.entries {
		v := variantRecord{UUID: e.variant.ID}
		if e.variant.CPUType != "" {
			v.CPUType = ptr(e.variant.CPUType)
		}
		r.Variants = append(r.Variants, v)
	}
	return gojson.Marshal(r)
}

// UnmarshalJSON restores a File from its record. Details that aren't part of
// the record, such as image features, are lost.
func (f *File) UnmarshalJSON(b []byte) error {
	var r record
	if err := gojson.Unmarshal(b, &r); err != nil {
		return err
	}
	if r.Type == FormatAuto {
		return errors.New("dif: record has no type")
	}
	entries := make([]entry, 0, len(r.Variants))
	for _, v := range r.Variants {
		e := entry{
			variant:   Variant{ID: v.UUID},
			imageType: defaultImageType(r.Type),
		}
		if v.CPUType != nil {
			e.variant.CPUType = *v.CPUType
		}
		entries = append(entries, e)
	}
	*f = File{
		format:  r.Type,
		entries: entries,
		note:    r.Note,
		problem: r.Problem,
	}
	return nil
}

func defaultImageType(format Format) string {
	switch format {
	case FormatMachODsym:
		return "macho"
	case FormatProguard:
		return "proguard"
	case FormatBreakpad, FormatAuto:
	}
	return "symbolic"
}
