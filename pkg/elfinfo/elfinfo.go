// Package elfinfo extracts the dynamic linking metadata of an ELF file
// that is needed to resolve its shared library dependencies.
package elfinfo

import (
	"bytes"
	"debug/elf"
	"io"

	"github.com/pkg/errors"
)

// Metadata is the subset of an ELF file's headers relevant for
// dependency resolution.
type Metadata struct {
	Is64         bool
	IsExecutable bool
	// Interpreter is the path of the dynamic loader from the PT_INTERP
	// segment, or empty if the file doesn't request one.
	Interpreter string
	// Libraries are the DT_NEEDED entries in the order in which they
	// appear in the dynamic section.
	Libraries []string

	Type    elf.Type
	Machine elf.Machine
}

// Kind describes the object file type in words, e.g. "shared object".
func (m *Metadata) Kind() string {
	switch m.Type {
	case elf.ET_EXEC:
		return "executable"
	case elf.ET_DYN:
		return "shared object"
	case elf.ET_REL:
		return "relocatable object"
	case elf.ET_CORE:
		return "core dump"
	default:
		return "unknown object"
	}
}

// ParseError is returned if the data is not a well-formed ELF file.
type ParseError struct {
	err error
}

func (e *ParseError) Error() string {
	return "invalid ELF file: " + e.err.Error()
}

func (e *ParseError) Unwrap() error {
	return e.err
}

func WrapParseError(err error) error {
	return &ParseError{err}
}

func IsParseError(err error) bool {
	var parseErr *ParseError
	return errors.As(err, &parseErr)
}

// Extract parses the ELF file contained in data.
func Extract(data []byte) (*Metadata, error) {
	f, err := elf.NewFile(bytes.NewReader(data))
	if err != nil {
		return nil, errors.WithStack(WrapParseError(err))
	}
	defer f.Close()

	m := &Metadata{
		Is64:    f.Class == elf.ELFCLASS64,
		Type:    f.Type,
		Machine: f.Machine,
	}

	for _, prog := range f.Progs {
		if prog.Flags&elf.PF_X != 0 {
			m.IsExecutable = true
		}
		if prog.Type == elf.PT_INTERP && m.Interpreter == "" {
			m.Interpreter, err = readInterpreter(prog)
			if err != nil {
				return nil, err
			}
		}
	}

	m.Libraries, err = f.ImportedLibraries()
	if err != nil {
		return nil, errors.WithStack(WrapParseError(err))
	}

	return m, nil
}

func readInterpreter(prog *elf.Prog) (string, error) {
	interp, err := io.ReadAll(prog.Open())
	if err != nil {
		return "", errors.WithStack(WrapParseError(err))
	}
	if uint64(len(interp)) != prog.Filesz {
		return "", errors.WithStack(WrapParseError(errors.New("PT_INTERP segment is truncated")))
	}
	// The path is NUL-terminated
	return string(bytes.TrimRight(interp, "\x00")), nil
}
