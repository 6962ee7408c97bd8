package dif

import (
	"errors"
	"testing"

	"github.com/getsentry/difcheck/internal/errorutil"
)

func TestParseBreakpadModule(t *testing.T) {
	tests := []struct {
		name   string
		line   string
		module breakpadModule
		err    error
	}{
		{
			name: "linux",
			line: "MODULE Linux x86_64 F1C3BCC0278415EC9B6E5DDE3AA9C3E60 crash",
			module: breakpadModule{
				os:      "Linux",
				arch:    "x86_64",
				debugID: "F1C3BCC0278415EC9B6E5DDE3AA9C3E60",
				name:    "crash",
			},
		},
		{
			name: "windows name with spaces",
			line: "MODULE windows x86 3249D99D0C4049318610F4E4FB0B69371 My App.pdb\r",
			module: breakpadModule{
				os:      "windows",
				arch:    "x86",
				debugID: "3249D99D0C4049318610F4E4FB0B69371",
				name:    "My App.pdb",
			},
		},
		{
			name: "four fields",
			line: "MODULE Linux x86_64 F1C3BCC0278415EC9B6E5DDE3AA9C3E60",
			err:  errorutil.ErrMalformedHeader,
		},
		{
			name: "empty field",
			line: "MODULE Linux  F1C3BCC0278415EC9B6E5DDE3AA9C3E60 crash",
			err:  errorutil.ErrMalformedHeader,
		},
		{
			name: "not a module record",
			line: "INFO CODE_ID C0BCC3F1842715EC9B6E5DDE3AA9C3E6 libcrash.so",
			err:  errorutil.ErrMalformedHeader,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := parseBreakpadModule(tt.line)
			if tt.err != nil {
				if !errors.Is(err, tt.err) {
					t.Fatalf("expected %v, got %v", tt.err, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if m != tt.module {
				t.Fatalf("wanted: %+v, got: %+v", tt.module, m)
			}
		})
	}
}

func TestReadBreakpadPublicSymbolsOnly(t *testing.T) {
	x, err := readBreakpad([]byte("MODULE mac arm64 DFB8E43AF2423D73A453AEB6A777EF750 App\nPUBLIC 1000 0 main\n"))
	if err != nil {
		t.Fatal(err)
	}
	e := x.entries[0]
	if e.imageType != "macho" {
		t.Fatalf("expected a macho image, got %q", e.imageType)
	}
	if e.features.HasDebugInfo || !e.features.HasSymbols || e.features.HasUnwindInfo {
		t.Fatalf("unexpected features %+v", e.features)
	}
}
