package dif

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
)

const (
	lcSegment   = 0x1
	lcSegment64 = 0x19
	mhDsym      = 0xa
)

// testSlice describes a Mach-O image to synthesize. The zero value writes a
// 64-bit little endian image.
type testSlice struct {
	cpu    uint32
	subCPU uint32
	// id is written as LC_UUID unless it's the zero UUID.
	id        uuid.UUID
	dwarf     bool
	bits32    bool
	bigEndian bool
}

func name16(s string) []byte {
	var b [16]byte
	copy(b[:], s)
	return b[:]
}

func (s testSlice) bytes() []byte {
	var bo binary.ByteOrder = binary.LittleEndian
	if s.bigEndian {
		bo = binary.BigEndian
	}
	var cmds bytes.Buffer
	ncmds := uint32(0)
	if s.id != uuid.Nil {
		_ = binary.Write(&cmds, bo, []uint32{lcUUID, 24})
		cmds.Write(s.id[:])
		ncmds++
	}
	if s.dwarf {
		if s.bits32 {
			_ = binary.Write(&cmds, bo, []uint32{lcSegment, 56 + 68})
			cmds.Write(name16("__DWARF"))
			_ = binary.Write(&cmds, bo, []uint32{0, 0, 0, 0, 7, 3, 1, 0})
			cmds.Write(name16("__debug_info"))
			cmds.Write(name16("__DWARF"))
			_ = binary.Write(&cmds, bo, []uint32{0, 0, 0, 0, 0, 0, 0, 0, 0})
		} else {
			_ = binary.Write(&cmds, bo, []uint32{lcSegment64, 72 + 80})
			cmds.Write(name16("__DWARF"))
			_ = binary.Write(&cmds, bo, []uint64{0, 0, 0, 0})
			_ = binary.Write(&cmds, bo, []uint32{7, 3, 1, 0})
			cmds.Write(name16("__debug_info"))
			cmds.Write(name16("__DWARF"))
			_ = binary.Write(&cmds, bo, []uint64{0, 0})
			_ = binary.Write(&cmds, bo, []uint32{0, 0, 0, 0, 0, 0, 0, 0})
		}
		ncmds++
	}
	header := []uint32{magic64, s.cpu, s.subCPU, mhDsym, ncmds, uint32(cmds.Len()), 0, 0}
	if s.bits32 {
		header = []uint32{magic32, s.cpu, s.subCPU, mhDsym, ncmds, uint32(cmds.Len()), 0}
	}
	var out bytes.Buffer
	_ = binary.Write(&out, bo, header)
	out.Write(cmds.Bytes())
	return out.Bytes()
}

// fatEntry allows the fat header to lie about where a slice is.
type fatEntry struct {
	slice  testSlice
	offset uint64
	size   uint64
}

func buildFat(slices ...testSlice) []byte {
	return buildFatEntries(fatEntries(slices)...)
}

func buildFat64(slices ...testSlice) []byte {
	return buildFatTable(true, fatEntries(slices)...)
}

func fatEntries(slices []testSlice) []fatEntry {
	entries := make([]fatEntry, len(slices))
	for i, s := range slices {
		entries[i] = fatEntry{slice: s}
	}
	return entries
}

func buildFatEntries(entries ...fatEntry) []byte {
	return buildFatTable(false, entries...)
}

// buildFatTable lays slices out after the header, using 64-bit architecture
// entries when fat64 is set. Zero offsets and sizes are replaced with the
// real ones.
func buildFatTable(fat64 bool, entries ...fatEntry) []byte {
	be := binary.BigEndian
	magic, entrySize := uint32(magicFat), fatArchSize32
	if fat64 {
		magic, entrySize = magicFat6, fatArchSize64
	}
	offset := uint64(fatHeaderSize + entrySize*len(entries))
	var (
		table bytes.Buffer
		data  bytes.Buffer
	)
	for _, e := range entries {
		b := e.slice.bytes()
		for (offset+uint64(data.Len()))%16 != 0 {
			data.WriteByte(0)
		}
		off, size := offset+uint64(data.Len()), uint64(len(b))
		if e.offset != 0 {
			off = e.offset
		}
		if e.size != 0 {
			size = e.size
		}
		if fat64 {
			_ = binary.Write(&table, be, []uint32{e.slice.cpu, e.slice.subCPU})
			_ = binary.Write(&table, be, []uint64{off, size})
			_ = binary.Write(&table, be, []uint32{4, 0})
		} else {
			_ = binary.Write(&table, be, []uint32{e.slice.cpu, e.slice.subCPU, uint32(off), uint32(size), 4})
		}
		data.Write(b)
	}
	var out bytes.Buffer
	_ = binary.Write(&out, be, []uint32{magic, uint32(len(entries))})
	out.Write(table.Bytes())
	out.Write(data.Bytes())
	return out.Bytes()
}

func writeTestFile(t *testing.T, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("we should be able to write %s: %v", name, err)
	}
	return path
}
