package dif

import (
	"debug/macho"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/getsentry/difcheck/internal/debugmeta"
	"github.com/getsentry/difcheck/internal/errorutil"
)

const (
	lcUUID = 0x1b

	machHeaderSize32 = 28
	machHeaderSize64 = 32
	fatHeaderSize    = 8
	fatArchSize32    = 20
	fatArchSize64    = 32

	cpuArch64      = 0x01000000
	cpuArch64_32   = 0x02000000
	cpuSubtypeMask = 0xff000000
)

// Values of the cputype field of Mach-O headers.
const (
	cpuX86      uint32 = 7
	cpuX86_64          = cpuX86 | cpuArch64
	cpuARM      uint32 = 12
	cpuARM64           = cpuARM | cpuArch64
	cpuARM64_32        = cpuARM | cpuArch64_32
	cpuPPC      uint32 = 18
	cpuPPC64           = cpuPPC | cpuArch64
)

var armSubtypes = map[uint32]string{
	5:  "armv4t",
	6:  "armv6",
	7:  "armv5",
	9:  "armv7",
	10: "armv7f",
	11: "armv7s",
	12: "armv7k",
	13: "armv8",
	14: "armv6m",
	15: "armv7m",
	16: "armv7em",
}

// archSlice is one architecture of a Mach-O file, as declared by the fat
// header or by the header of a thin file.
type archSlice struct {
	cpu    uint32
	subCPU uint32
	offset int64
	size   int64
}

func (s archSlice) arch() string {
	return cpuName(s.cpu, s.subCPU)
}

// cpuName converts a Mach-O CPU type and subtype to the architecture names
// used by Apple tooling, e.g. "arm64e" or "x86_64h".
func cpuName(cpu, subCPU uint32) string {
	sub := subCPU &^ cpuSubtypeMask
	switch cpu {
	case cpuX86:
		return "x86"
	case cpuX86_64:
		if sub == 8 {
			return "x86_64h"
		}
		return "x86_64"
	case cpuARM:
		if name, ok := armSubtypes[sub]; ok {
			return name
		}
		return "arm"
	case cpuARM64:
		if sub == 2 {
			return "arm64e"
		}
		return "arm64"
	case cpuARM64_32:
		return "arm64_32"
	case cpuPPC:
		return "ppc"
	case cpuPPC64:
		return "ppc64"
	}
	return "unknown"
}

// readMachO extracts one entry per architecture slice carrying an LC_UUID.
// A broken slice inside a fat file is skipped and reported as an issue,
// while a broken thin file or fat header is a hard error.
func readMachO(r io.ReaderAt, size int64) (extraction, error) {
	var magic [4]byte
	if err := readFull(r, magic[:], 0, size); err != nil {
		return extraction{}, err
	}
	var x extraction
	if m := binary.BigEndian.Uint32(magic[:]); m != magicFat && m != magicFat6 {
		s := archSlice{offset: 0, size: size}
		f, err := openSlice(r, s, size)
		if err != nil {
			return extraction{}, err
		}
		s.cpu, s.subCPU = uint32(f.Cpu), f.SubCpu
		x.slices = 1
		x.addSlice(s, f)
		return x, nil
	}

	slices, err := readFatHeader(r, size)
	if err != nil {
		return extraction{}, err
	}
	x.fat = true
	x.slices = len(slices)
	for i, s := range slices {
		f, err := openSlice(r, s, size)
		if err != nil {
			log.Debug().Err(err).Int("slice", i).Str("arch", s.arch()).Msg("skipping mach-o slice")
			x.issues = append(x.issues, fmt.Sprintf("slice %d (%s): %v", i, s.arch(), err))
			continue
		}
		x.addSlice(s, f)
	}
	return x, nil
}

// readFatHeader decodes the architecture table of a fat file. Every slice is
// returned, including the ones pointing outside of the file; those fail
// later when they are opened.
func readFatHeader(r io.ReaderAt, size int64) ([]archSlice, error) {
	var head [fatHeaderSize]byte
	if err := readFull(r, head[:], 0, size); err != nil {
		return nil, err
	}
	is64 := binary.BigEndian.Uint32(head[:4]) == magicFat6
	n := binary.BigEndian.Uint32(head[4:])
	if n == 0 || n > maxFatArchs {
		return nil, fmt.Errorf("dif: %w: fat header declares %d architectures", errorutil.ErrMalformedHeader, n)
	}
	entrySize := fatArchSize32
	if is64 {
		entrySize = fatArchSize64
	}
	table := make([]byte, int(n)*entrySize)
	if err := readFull(r, table, fatHeaderSize, size); err != nil {
		return nil, err
	}
	slices := make([]archSlice, 0, n)
	for i := 0; i < int(n); i++ {
		e := table[i*entrySize : (i+1)*entrySize]
		s := archSlice{
			cpu:    binary.BigEndian.Uint32(e[0:]),
			subCPU: binary.BigEndian.Uint32(e[4:]),
		}
		if is64 {
			off, sz := binary.BigEndian.Uint64(e[8:]), binary.BigEndian.Uint64(e[16:])
			if off > uint64(size) || sz > uint64(size) {
				// Can't be inside the file, openSlice rejects it.
				off, sz = uint64(size), 1
			}
			s.offset, s.size = int64(off), int64(sz)
		} else {
			s.offset = int64(binary.BigEndian.Uint32(e[8:]))
			s.size = int64(binary.BigEndian.Uint32(e[12:]))
		}
		slices = append(slices, s)
	}
	return slices, nil
}

// openSlice validates the bounds of a slice and of its load commands before
// handing it to the standard library reader.
func openSlice(r io.ReaderAt, s archSlice, fileSize int64) (*macho.File, error) {
	if s.size <= 0 || s.offset < 0 {
		return nil, fmt.Errorf("dif: %w: invalid slice bounds %d+%d", errorutil.ErrMalformedHeader, s.offset, s.size)
	}
	if s.offset > fileSize || s.size > fileSize-s.offset {
		return nil, fmt.Errorf("dif: %w: slice %d+%d extends past end of file at %d", errorutil.ErrTruncatedFile, s.offset, s.size, fileSize)
	}
	sr := io.NewSectionReader(r, s.offset, s.size)
	if err := checkMachHeader(sr, s.size); err != nil {
		return nil, err
	}
	f, err := macho.NewFile(sr)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("dif: %w: %v", errorutil.ErrTruncatedFile, err)
		}
		return nil, fmt.Errorf("dif: %w: %v", errorutil.ErrMalformedHeader, err)
	}
	return f, nil
}

func checkMachHeader(r io.ReaderAt, size int64) error {
	var hdr [machHeaderSize64]byte
	if err := readFull(r, hdr[:8], 0, size); err != nil {
		return err
	}
	var (
		bo         binary.ByteOrder
		headerSize int64
	)
	switch binary.BigEndian.Uint32(hdr[:4]) {
	case magic32:
		bo, headerSize = binary.BigEndian, machHeaderSize32
	case magic64:
		bo, headerSize = binary.BigEndian, machHeaderSize64
	case cigam32:
		bo, headerSize = binary.LittleEndian, machHeaderSize32
	case cigam64:
		bo, headerSize = binary.LittleEndian, machHeaderSize64
	default:
		return fmt.Errorf("dif: %w: invalid mach-o magic %#x", errorutil.ErrMalformedHeader, binary.BigEndian.Uint32(hdr[:4]))
	}
	if err := readFull(r, hdr[:headerSize], 0, size); err != nil {
		return err
	}
	cmdsz := int64(bo.Uint32(hdr[20:]))
	if headerSize+cmdsz > size {
		return fmt.Errorf("dif: %w: load commands end at %d past %d", errorutil.ErrTruncatedFile, headerSize+cmdsz, size)
	}
	return nil
}

func readFull(r io.ReaderAt, b []byte, off, size int64) error {
	if off < 0 || off+int64(len(b)) > size {
		return fmt.Errorf("dif: %w: %d bytes at offset %d exceed size %d", errorutil.ErrTruncatedFile, len(b), off, size)
	}
	if _, err := r.ReadAt(b, off); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return fmt.Errorf("dif: %w: %v", errorutil.ErrTruncatedFile, err)
		}
		return fmt.Errorf("dif: %w: %w", errorutil.ErrUnreadableFile, err)
	}
	return nil
}

func (x *extraction) addSlice(s archSlice, f *macho.File) {
	arch := s.arch()
	id, ok := machoUUID(f)
	if !ok {
		log.Debug().Str("arch", arch).Msg("mach-o slice has no LC_UUID")
		return
	}
	x.identified++
	hidden := hasHiddenSymbols(f)
	x.hidden = x.hidden || hidden
	features := debugmeta.Features{
		HasDebugInfo:  f.Section("__debug_info") != nil,
		HasSymbols:    f.Symtab != nil && len(f.Symtab.Syms) > 0,
		HasUnwindInfo: f.Section("__unwind_info") != nil || f.Section("__eh_frame") != nil,
	}
	x.dwarf = x.dwarf || features.HasDebugInfo
	x.add(entry{
		variant:   Variant{ID: id.String(), CPUType: arch},
		features:  features,
		imageType: "macho",
	})
}

func machoUUID(f *macho.File) (uuid.UUID, bool) {
	for _, l := range f.Loads {
		raw := l.Raw()
		if len(raw) < 24 || f.ByteOrder.Uint32(raw) != lcUUID {
			continue
		}
		id, err := uuid.FromBytes(raw[8:24])
		if err != nil || id == uuid.Nil {
			return uuid.Nil, false
		}
		return id, true
	}
	return uuid.Nil, false
}

// hasHiddenSymbols reports whether the symbols of a bitcode build were
// obfuscated and need a BCSymbolMap to be restored.
func hasHiddenSymbols(f *macho.File) bool {
	if f.Symtab == nil {
		return false
	}
	for _, s := range f.Symtab.Syms {
		if strings.HasPrefix(s.Name, "__hidden#") {
			return true
		}
	}
	return false
}
