package dif

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/getsentry/difcheck/internal/debugmeta"
	"github.com/getsentry/difcheck/internal/errorutil"
)

const breakpadMaxLine = 1 << 20

var breakpadImageTypes = map[string]string{
	"android": "elf",
	"ios":     "macho",
	"linux":   "elf",
	"mac":     "macho",
	"windows": "pe",
}

type breakpadModule struct {
	os      string
	arch    string
	debugID string
	name    string
}

// parseBreakpadModule parses "MODULE <os> <arch> <debug-id> <name>". The
// name is the remainder of the line and can contain spaces.
func parseBreakpadModule(line string) (breakpadModule, error) {
	fields := strings.SplitN(strings.TrimRight(line, "\r"), " ", 5)
	if len(fields) != 5 || fields[0] != "MODULE" {
		return breakpadModule{}, fmt.Errorf("dif: %w: breakpad module record has %d fields, expected 5: %q", errorutil.ErrMalformedHeader, len(fields), line)
	}
	for _, f := range fields[1:] {
		if f == "" {
			return breakpadModule{}, fmt.Errorf("dif: %w: breakpad module record has an empty field: %q", errorutil.ErrMalformedHeader, line)
		}
	}
	return breakpadModule{
		os:      fields[1],
		arch:    fields[2],
		debugID: fields[3],
		name:    fields[4],
	}, nil
}

func readBreakpad(data []byte) (extraction, error) {
	first := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		first = data[:i]
	}
	m, err := parseBreakpadModule(string(first))
	if err != nil {
		return extraction{}, err
	}

	e := entry{
		variant:   Variant{ID: m.debugID, CPUType: m.arch},
		imageType: "symbolic",
	}
	if t, ok := breakpadImageTypes[strings.ToLower(m.os)]; ok {
		e.imageType = t
	}
	e.features, e.codeFile = scanBreakpadRecords(data[len(first):])

	var x extraction
	x.add(e)
	return x, nil
}

func scanBreakpadRecords(data []byte) (debugmeta.Features, string) {
	var (
		features debugmeta.Features
		codeFile string
		hasFiles bool
		hasFuncs bool
	)
	s := bufio.NewScanner(bytes.NewReader(data))
	s.Buffer(make([]byte, 0, 64*1024), breakpadMaxLine)
	for s.Scan() {
		line := s.Bytes()
		switch {
		case bytes.HasPrefix(line, []byte("FILE ")):
			hasFiles = true
		case bytes.HasPrefix(line, []byte("FUNC ")):
			hasFuncs = true
			features.HasSymbols = true
		case bytes.HasPrefix(line, []byte("PUBLIC ")):
			features.HasSymbols = true
		case bytes.HasPrefix(line, []byte("STACK ")):
			features.HasUnwindInfo = true
		case bytes.HasPrefix(line, []byte("INFO CODE_ID ")):
			// INFO CODE_ID <code-id> [<code-file>]
			if f := strings.Fields(string(line)); len(f) >= 4 {
				codeFile = strings.Join(f[3:], " ")
			}
		}
	}
	if err := s.Err(); err != nil {
		log.Debug().Err(err).Msg("stopped scanning breakpad records")
	}
	features.HasDebugInfo = hasFiles && hasFuncs
	return features, codeFile
}
