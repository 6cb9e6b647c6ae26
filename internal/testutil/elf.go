package testutil

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// ELFOptions describes a minimal dynamically linked ELF file.
type ELFOptions struct {
	// Is32 produces an ELFCLASS32 file instead of ELFCLASS64
	Is32 bool
	// Interpreter is written into a PT_INTERP segment if not empty
	Interpreter string
	// Needed are written as DT_NEEDED entries in this order
	Needed []string
	// Executable marks the PT_LOAD segment with PF_X
	Executable bool
	// Shared sets the file type to ET_DYN instead of ET_EXEC
	Shared bool
}

type elfLayout struct {
	ehsize, phentsize, shentsize, dynentsize, align int
}

// BuildELF returns the bytes of a little-endian ELF file that carries
// just enough headers for the dynamic linking metadata in opts to be
// readable with debug/elf: program headers for PT_INTERP, PT_LOAD and
// PT_DYNAMIC plus .interp, .dynstr, .dynamic and .shstrtab sections.
func BuildELF(opts ELFOptions) []byte {
	l := elfLayout{ehsize: 64, phentsize: 56, shentsize: 64, dynentsize: 16, align: 8}
	if opts.Is32 {
		l = elfLayout{ehsize: 52, phentsize: 32, shentsize: 40, dynentsize: 8, align: 4}
	}
	order := binary.LittleEndian

	// Program headers
	numProgs := 2
	if opts.Interpreter != "" {
		numProgs++
	}
	phoff := l.ehsize
	off := phoff + numProgs*l.phentsize

	// .interp
	interpOff := off
	interp := []byte(opts.Interpreter + "\x00")
	if opts.Interpreter != "" {
		off += len(interp)
	}

	// .dynstr
	dynstrOff := off
	dynstr := []byte{0}
	nameOffsets := make([]int, len(opts.Needed))
	for i, name := range opts.Needed {
		nameOffsets[i] = len(dynstr)
		dynstr = append(dynstr, []byte(name+"\x00")...)
	}
	off += len(dynstr)

	// .dynamic: DT_NEEDED entries, DT_STRTAB, DT_NULL
	off = alignTo(off, l.align)
	dynOff := off
	numDyn := len(opts.Needed) + 2
	dynSize := numDyn * l.dynentsize
	off += dynSize

	// .shstrtab
	shstrtabOff := off
	shstrtab := []byte{0}
	sectionName := func(name string) uint32 {
		idx := len(shstrtab)
		shstrtab = append(shstrtab, []byte(name+"\x00")...)
		return uint32(idx)
	}
	interpName := sectionName(".interp")
	dynstrName := sectionName(".dynstr")
	dynamicName := sectionName(".dynamic")
	shstrtabName := sectionName(".shstrtab")
	off += len(shstrtab)

	// Section headers
	off = alignTo(off, l.align)
	shoff := off

	type section struct {
		name, typ          uint32
		flags              uint64
		off, size, entsize int
		link               uint32
		align              int
	}
	sections := []section{{}}
	if opts.Interpreter != "" {
		sections = append(sections, section{
			name: interpName, typ: uint32(elf.SHT_PROGBITS), flags: uint64(elf.SHF_ALLOC),
			off: interpOff, size: len(interp), align: 1,
		})
	}
	dynstrIndex := uint32(len(sections))
	sections = append(sections,
		section{
			name: dynstrName, typ: uint32(elf.SHT_STRTAB), flags: uint64(elf.SHF_ALLOC),
			off: dynstrOff, size: len(dynstr), align: 1,
		},
		section{
			name: dynamicName, typ: uint32(elf.SHT_DYNAMIC), flags: uint64(elf.SHF_ALLOC | elf.SHF_WRITE),
			off: dynOff, size: dynSize, entsize: l.dynentsize, link: dynstrIndex, align: l.align,
		},
	)
	shstrndx := len(sections)
	sections = append(sections, section{
		name: shstrtabName, typ: uint32(elf.SHT_STRTAB),
		off: shstrtabOff, size: len(shstrtab), align: 1,
	})
	fileSize := shoff + len(sections)*l.shentsize

	// Now write everything in file order
	buf := &bytes.Buffer{}
	write := func(v any) {
		// Writing to a bytes.Buffer doesn't fail
		_ = binary.Write(buf, order, v)
	}
	pad := func(to int) {
		for buf.Len() < to {
			buf.WriteByte(0)
		}
	}

	var ident [elf.EI_NIDENT]byte
	copy(ident[:], elf.ELFMAG)
	ident[elf.EI_CLASS] = byte(elf.ELFCLASS64)
	if opts.Is32 {
		ident[elf.EI_CLASS] = byte(elf.ELFCLASS32)
	}
	ident[elf.EI_DATA] = byte(elf.ELFDATA2LSB)
	ident[elf.EI_VERSION] = byte(elf.EV_CURRENT)
	ident[elf.EI_OSABI] = byte(elf.ELFOSABI_NONE)

	fileType := elf.ET_EXEC
	if opts.Shared {
		fileType = elf.ET_DYN
	}

	if opts.Is32 {
		write(elf.Header32{
			Ident:     ident,
			Type:      uint16(fileType),
			Machine:   uint16(elf.EM_386),
			Version:   uint32(elf.EV_CURRENT),
			Phoff:     uint32(phoff),
			Shoff:     uint32(shoff),
			Ehsize:    uint16(l.ehsize),
			Phentsize: uint16(l.phentsize),
			Phnum:     uint16(numProgs),
			Shentsize: uint16(l.shentsize),
			Shnum:     uint16(len(sections)),
			Shstrndx:  uint16(shstrndx),
		})
	} else {
		write(elf.Header64{
			Ident:     ident,
			Type:      uint16(fileType),
			Machine:   uint16(elf.EM_X86_64),
			Version:   uint32(elf.EV_CURRENT),
			Phoff:     uint64(phoff),
			Shoff:     uint64(shoff),
			Ehsize:    uint16(l.ehsize),
			Phentsize: uint16(l.phentsize),
			Phnum:     uint16(numProgs),
			Shentsize: uint16(l.shentsize),
			Shnum:     uint16(len(sections)),
			Shstrndx:  uint16(shstrndx),
		})
	}

	loadFlags := elf.PF_R
	if opts.Executable {
		loadFlags |= elf.PF_X
	}
	writeProg := func(typ elf.ProgType, flags elf.ProgFlag, off, size, align int) {
		if opts.Is32 {
			write(elf.Prog32{
				Type: uint32(typ), Off: uint32(off), Vaddr: uint32(off), Paddr: uint32(off),
				Filesz: uint32(size), Memsz: uint32(size), Flags: uint32(flags), Align: uint32(align),
			})
		} else {
			write(elf.Prog64{
				Type: uint32(typ), Flags: uint32(flags), Off: uint64(off), Vaddr: uint64(off), Paddr: uint64(off),
				Filesz: uint64(size), Memsz: uint64(size), Align: uint64(align),
			})
		}
	}
	if opts.Interpreter != "" {
		writeProg(elf.PT_INTERP, elf.PF_R, interpOff, len(interp), 1)
	}
	writeProg(elf.PT_LOAD, loadFlags, 0, fileSize, 0x1000)
	writeProg(elf.PT_DYNAMIC, elf.PF_R|elf.PF_W, dynOff, dynSize, l.align)

	if opts.Interpreter != "" {
		pad(interpOff)
		buf.Write(interp)
	}

	pad(dynstrOff)
	buf.Write(dynstr)

	pad(dynOff)
	writeDyn := func(tag elf.DynTag, val int) {
		if opts.Is32 {
			write(elf.Dyn32{Tag: int32(tag), Val: uint32(val)})
		} else {
			write(elf.Dyn64{Tag: int64(tag), Val: uint64(val)})
		}
	}
	for _, nameOff := range nameOffsets {
		writeDyn(elf.DT_NEEDED, nameOff)
	}
	writeDyn(elf.DT_STRTAB, dynstrOff)
	writeDyn(elf.DT_NULL, 0)

	pad(shstrtabOff)
	buf.Write(shstrtab)

	pad(shoff)
	for _, s := range sections {
		if opts.Is32 {
			write(elf.Section32{
				Name: s.name, Type: s.typ, Flags: uint32(s.flags), Addr: uint32(s.off), Off: uint32(s.off),
				Size: uint32(s.size), Link: s.link, Addralign: uint32(s.align), Entsize: uint32(s.entsize),
			})
		} else {
			write(elf.Section64{
				Name: s.name, Type: s.typ, Flags: s.flags, Addr: uint64(s.off), Off: uint64(s.off),
				Size: uint64(s.size), Link: s.link, Addralign: uint64(s.align), Entsize: uint64(s.entsize),
			})
		}
	}

	return buf.Bytes()
}

// WriteELF writes an ELF file built from opts to path, creating parent
// directories as needed, and returns the path.
func WriteELF(t *testing.T, path string, opts ELFOptions) string {
	t.Helper()
	err := os.MkdirAll(filepath.Dir(path), 0o755)
	require.NoError(t, err)
	err = os.WriteFile(path, BuildELF(opts), 0o755)
	require.NoError(t, err)
	return path
}

// WriteFile writes arbitrary content to path, e.g. to place a file in a
// library directory that is not an ELF file.
func WriteFile(t *testing.T, path string, content []byte) string {
	t.Helper()
	err := os.MkdirAll(filepath.Dir(path), 0o755)
	require.NoError(t, err)
	err = os.WriteFile(path, content, 0o644)
	require.NoError(t, err)
	return path
}

func alignTo(off, align int) int {
	return (off + align - 1) / align * align
}
