package dif

import (
	"fmt"

	"github.com/getsentry/difcheck/internal/platform"
)

// Format is the kind of a debug info file. The set is closed: every switch
// over a Format handles all of them.
type Format int

const (
	// FormatAuto asks Open to detect the format from the file content.
	FormatAuto Format = iota
	FormatMachODsym
	FormatProguard
	FormatBreakpad
)

// ParseFormat parses the names accepted on the command line.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "", "auto":
		return FormatAuto, nil
	case "dsym":
		return FormatMachODsym, nil
	case "proguard":
		return FormatProguard, nil
	case "breakpad":
		return FormatBreakpad, nil
	}
	return FormatAuto, fmt.Errorf("dif: unknown debug file type %q", s)
}

func (f Format) String() string {
	switch f {
	case FormatAuto:
		return "auto"
	case FormatMachODsym:
		return "dsym"
	case FormatProguard:
		return "proguard"
	case FormatBreakpad:
		return "breakpad"
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// Platform returns the platform whose crash reports are symbolicated with
// files of this format.
func (f Format) Platform() platform.Platform {
	switch f {
	case FormatMachODsym:
		return platform.Cocoa
	case FormatProguard:
		return platform.Android
	case FormatBreakpad:
		return platform.Native
	}
	return ""
}

func (f Format) MarshalText() ([]byte, error) {
	if f == FormatAuto {
		return nil, fmt.Errorf("dif: format was not resolved")
	}
	return []byte(f.String()), nil
}

func (f *Format) UnmarshalText(b []byte) error {
	v, err := ParseFormat(string(b))
	if err != nil {
		return err
	}
	if v == FormatAuto {
		return fmt.Errorf("dif: format %q is not a debug file type", string(b))
	}
	*f = v
	return nil
}
