package dif

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"regexp"

	"github.com/getsentry/difcheck/internal/errorutil"
)

// sniffSize is how much of the head of a file is inspected to detect its
// format. Proguard mappings can start with a long block of comments.
const sniffSize = 64 * 1024

const (
	magic32   = 0xfeedface
	magic64   = 0xfeedfacf
	cigam32   = 0xcefaedfe
	cigam64   = 0xcffaedfe
	magicFat  = 0xcafebabe
	magicFat6 = 0xcafebabf

	// Java class files start with 0xcafebabe too, followed by their version
	// where a fat header has its architecture count.
	maxFatArchs = 30
)

var proguardClassLine = regexp.MustCompile(`^[^\s#]\S* -> \S+:$`)

// sniff returns the format of a file given its head. A hint restricts
// detection to that single format.
func sniff(head []byte, hint Format) (Format, error) {
	if hint != FormatAuto {
		if !matches(hint, head) {
			return FormatAuto, fmt.Errorf("dif: %w: content is not a %s file", errorutil.ErrFormatMismatch, hint)
		}
		return hint, nil
	}
	// Breakpad and Proguard are both text, the Breakpad header is the more
	// specific of the two.
	for _, f := range []Format{FormatMachODsym, FormatBreakpad, FormatProguard} {
		if matches(f, head) {
			return f, nil
		}
	}
	return FormatAuto, fmt.Errorf("dif: %w", errorutil.ErrUnknownFormat)
}

func matches(f Format, head []byte) bool {
	switch f {
	case FormatMachODsym:
		return isMachO(head)
	case FormatBreakpad:
		return isBreakpad(head)
	case FormatProguard:
		return isProguard(head)
	case FormatAuto:
		return false
	}
	return false
}

func isMachO(head []byte) bool {
	if len(head) < 4 {
		return false
	}
	switch binary.BigEndian.Uint32(head) {
	case magic32, magic64, cigam32, cigam64:
		return true
	case magicFat, magicFat6:
		if len(head) < 8 {
			return false
		}
		n := binary.BigEndian.Uint32(head[4:])
		return n > 0 && n <= maxFatArchs
	}
	return false
}

func isBreakpad(head []byte) bool {
	const token = "MODULE"
	if !bytes.HasPrefix(head, []byte(token)) {
		return false
	}
	if len(head) == len(token) {
		return true
	}
	switch head[len(token)] {
	case ' ', '\t', '\r', '\n':
		return true
	}
	return false
}

func isProguard(head []byte) bool {
	s := bufio.NewScanner(bytes.NewReader(head))
	s.Buffer(make([]byte, 0, 4096), sniffSize)
	for s.Scan() {
		line := bytes.TrimRight(s.Bytes(), "\r")
		trimmed := bytes.TrimSpace(line)
		if len(trimmed) == 0 || trimmed[0] == '#' {
			continue
		}
		return proguardClassLine.Match(line)
	}
	return false
}
