package dif

import (
	"errors"
	"testing"

	"github.com/getsentry/difcheck/internal/errorutil"
)

func TestSniff(t *testing.T) {
	tests := []struct {
		name   string
		head   []byte
		format Format
		err    error
	}{
		{
			name:   "mach-o 64-bit little endian",
			head:   []byte{0xcf, 0xfa, 0xed, 0xfe, 0x0c, 0x00, 0x00, 0x01},
			format: FormatMachODsym,
		},
		{
			name:   "mach-o 32-bit big endian",
			head:   []byte{0xfe, 0xed, 0xfa, 0xce, 0x00, 0x00, 0x00, 0x12},
			format: FormatMachODsym,
		},
		{
			name:   "fat mach-o",
			head:   []byte{0xca, 0xfe, 0xba, 0xbe, 0x00, 0x00, 0x00, 0x02},
			format: FormatMachODsym,
		},
		{
			name: "java class file",
			head: []byte{0xca, 0xfe, 0xba, 0xbe, 0x00, 0x00, 0x00, 0x34},
			err:  errorutil.ErrUnknownFormat,
		},
		{
			name: "fat header without architectures",
			head: []byte{0xca, 0xfe, 0xba, 0xbe, 0x00, 0x00, 0x00, 0x00},
			err:  errorutil.ErrUnknownFormat,
		},
		{
			name:   "breakpad",
			head:   []byte("MODULE mac arm64 DFB8E43AF2423D73A453AEB6A777EF750 App\n"),
			format: FormatBreakpad,
		},
		{
			name:   "breakpad with a short module record",
			head:   []byte("MODULE mac arm64\n"),
			format: FormatBreakpad,
		},
		{
			name:   "proguard class named like a breakpad record",
			head:   []byte("MODULES -> a:\n"),
			format: FormatProguard,
		},
		{
			name:   "proguard with comments",
			head:   []byte("# compiler: R8\n# compiler_version: 3.0\n\ncom.example.Foo -> a.a:\n    int bar -> a\n"),
			format: FormatProguard,
		},
		{
			name:   "proguard with windows line endings",
			head:   []byte("com.example.Foo -> a.a:\r\n    int bar -> a\r\n"),
			format: FormatProguard,
		},
		{
			name: "member line first",
			head: []byte("    int bar -> a\ncom.example.Foo -> a.a:\n"),
			err:  errorutil.ErrUnknownFormat,
		},
		{
			name: "only comments",
			head: []byte("# compiler: R8\n"),
			err:  errorutil.ErrUnknownFormat,
		},
		{
			name: "too short",
			head: []byte{0xcf, 0xfa},
			err:  errorutil.ErrUnknownFormat,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			format, err := sniff(tt.head, FormatAuto)
			if tt.err != nil {
				if !errors.Is(err, tt.err) {
					t.Fatalf("expected %v, got %v", tt.err, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if format != tt.format {
				t.Fatalf("expected %v, got %v", tt.format, format)
			}
		})
	}
}

func TestSniffWithHint(t *testing.T) {
	breakpad := []byte("MODULE Linux x86_64 F1C3BCC0278415EC9B6E5DDE3AA9C3E60 crash\n")

	format, err := sniff(breakpad, FormatBreakpad)
	if err != nil || format != FormatBreakpad {
		t.Fatalf("expected breakpad, got %v, %v", format, err)
	}
	for _, hint := range []Format{FormatMachODsym, FormatProguard} {
		if _, err := sniff(breakpad, hint); !errors.Is(err, errorutil.ErrFormatMismatch) {
			t.Fatalf("hint %v: expected a format mismatch, got %v", hint, err)
		}
	}
}

func TestParseFormat(t *testing.T) {
	for _, f := range []Format{FormatMachODsym, FormatProguard, FormatBreakpad} {
		parsed, err := ParseFormat(f.String())
		if err != nil || parsed != f {
			t.Fatalf("expected %v, got %v, %v", f, parsed, err)
		}
	}
	if f, err := ParseFormat(""); err != nil || f != FormatAuto {
		t.Fatalf("an empty type should mean auto detection, got %v, %v", f, err)
	}
	if _, err := ParseFormat("elf"); err == nil {
		t.Fatal("expected an error for an unsupported type")
	}
}
