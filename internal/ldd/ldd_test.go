package ldd

import (
	"bytes"
	"debug/elf"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"code-intelligence.com/lddr/internal/testutil"
	"code-intelligence.com/lddr/pkg/deptree"
	"code-intelligence.com/lddr/pkg/elfinfo"
	"code-intelligence.com/lddr/pkg/log"
)

const interpreter = "/lib64/ld-linux-x86-64.so.2"

var testOut io.ReadWriter

func TestMain(m *testing.M) {
	// capture log output
	testOut = bytes.NewBuffer([]byte{})
	oldOut := log.Output
	log.Output = testOut
	viper.Set("verbose", true)

	code := m.Run()

	log.Output = oldOut
	os.Exit(code)
}

// sysroot is a temporary directory with two library directories which
// are searched in order.
type sysroot struct {
	dir       string
	libDir    string
	usrLibDir string
}

func newSysroot(t *testing.T) *sysroot {
	dir := t.TempDir()
	return &sysroot{
		dir:       dir,
		libDir:    filepath.Join(dir, "lib"),
		usrLibDir: filepath.Join(dir, "usr", "lib"),
	}
}

func (s *sysroot) searchDirs() []string {
	return []string{s.libDir, s.usrLibDir}
}

func (s *sysroot) lib(t *testing.T, dir, name string, needed ...string) string {
	return testutil.WriteELF(t, filepath.Join(dir, name), testutil.ELFOptions{
		Needed:     needed,
		Shared:     true,
		Executable: true,
	})
}

func (s *sysroot) binary(t *testing.T, name string, needed ...string) string {
	return testutil.WriteELF(t, filepath.Join(s.dir, "bin", name), testutil.ELFOptions{
		Interpreter: interpreter,
		Needed:      needed,
		Executable:  true,
	})
}

func (s *sysroot) analyze(t *testing.T, path string) *DependencyTree {
	tree, err := NewAnalyzer(&Options{SearchDirs: s.searchDirs()}).Analyze(path)
	require.NoError(t, err)
	return tree
}

func root(t *testing.T, tree *DependencyTree) (deptree.NodeID, BinaryFile) {
	id, err := tree.RootID()
	require.NoError(t, err)
	data, err := tree.Get(id)
	require.NoError(t, err)
	return id, data
}

func children(t *testing.T, tree *DependencyTree, id deptree.NodeID) ([]deptree.NodeID, []BinaryFile) {
	ids, err := tree.ChildrenIDs(id)
	require.NoError(t, err)
	var files []BinaryFile
	for _, childID := range ids {
		data, err := tree.Get(childID)
		require.NoError(t, err)
		files = append(files, data)
	}
	return ids, files
}

func TestAnalyze_InterpreterSelfReference(t *testing.T) {
	s := newSysroot(t)
	fizz := s.binary(t, "fizz", "libc.so.6")
	s.lib(t, s.libDir, "libc.so.6", "ld-linux-x86-64.so.2")
	// The loader and libc depend on each other
	s.lib(t, s.libDir, "ld-linux-x86-64.so.2", "libc.so.6")

	tree := s.analyze(t, fizz)

	rootID, rootFile := root(t, tree)
	assert.Equal(t, BinaryFile{
		Name:         fizz,
		Interpreter:  interpreter,
		IsRoot:       true,
		IsExecutable: true,
	}, rootFile)

	ids, libs := children(t, tree, rootID)
	require.Len(t, libs, 1)
	assert.Equal(t, "libc.so.6", libs[0].Name)
	assert.Equal(t, filepath.Join(s.libDir, "libc.so.6"), libs[0].RealPath)

	ids, libs = children(t, tree, ids[0])
	require.Len(t, libs, 1)
	assert.Equal(t, "ld-linux-x86-64.so.2", libs[0].Name)
	assert.Equal(t, filepath.Join(s.libDir, "ld-linux-x86-64.so.2"), libs[0].RealPath)

	// The interpreter is recorded but not expanded
	_, libs = children(t, tree, ids[0])
	assert.Empty(t, libs)
	assert.Equal(t, 3, tree.Height())
	assert.Equal(t, 3, tree.Len())
}

func TestAnalyze_InterpreterNotELF(t *testing.T) {
	s := newSysroot(t)
	fizz := s.binary(t, "fizz", "libc.so.6")
	s.lib(t, s.libDir, "libc.so.6", "ld-linux-x86-64.so.2")
	loader := testutil.WriteFile(t, filepath.Join(s.libDir, "ld-linux-x86-64.so.2"), []byte("not an ELF file"))

	tree := s.analyze(t, fizz)

	rootID, _ := root(t, tree)
	ids, _ := children(t, tree, rootID)
	_, libs := children(t, tree, ids[0])
	assert.Equal(t, []BinaryFile{{Name: "ld-linux-x86-64.so.2", RealPath: loader}}, libs)
	assert.Equal(t, 3, tree.Height())
}

func TestAnalyze_InterpreterIsExecutable(t *testing.T) {
	s := newSysroot(t)
	fizz := s.binary(t, "fizz", "libc.so.6")
	s.lib(t, s.libDir, "libc.so.6", "ld-linux-x86-64.so.2")
	s.lib(t, s.libDir, "ld-linux-x86-64.so.2")

	tree := s.analyze(t, fizz)

	rootID, _ := root(t, tree)
	ids, _ := children(t, tree, rootID)
	_, libs := children(t, tree, ids[0])
	require.Len(t, libs, 1)
	assert.True(t, libs[0].IsExecutable)
}

func TestAnalyze_InterpreterDependingOnItself(t *testing.T) {
	s := newSysroot(t)
	fizz := s.binary(t, "fizz", "libc.so.6")
	s.lib(t, s.libDir, "libc.so.6", "ld-linux-x86-64.so.2")
	s.lib(t, s.libDir, "ld-linux-x86-64.so.2", "ld-linux-x86-64.so.2")

	tree := s.analyze(t, fizz)
	assert.Equal(t, 3, tree.Height())
}

func TestAnalyze_Server(t *testing.T) {
	s := newSysroot(t)
	server := s.binary(t, "server", "libcraft.so", "libpthread.so.0", "libdl.so.2", "libc.so.6")
	s.lib(t, s.libDir, "libpthread.so.0", "libc.so.6")
	s.lib(t, s.usrLibDir, "libdl.so.2")
	s.lib(t, s.libDir, "libc.so.6")

	tree := s.analyze(t, server)

	rootID, _ := root(t, tree)
	ids, libs := children(t, tree, rootID)
	require.Len(t, libs, 4)

	var names, realPaths []string
	for _, lib := range libs {
		names = append(names, lib.Name)
		realPaths = append(realPaths, lib.RealPath)
		assert.False(t, lib.IsRoot)
		assert.Empty(t, lib.Interpreter)
	}
	assert.Equal(t, []string{"libcraft.so", "libpthread.so.0", "libdl.so.2", "libc.so.6"}, names)
	assert.Equal(t, []string{
		"",
		filepath.Join(s.libDir, "libpthread.so.0"),
		filepath.Join(s.usrLibDir, "libdl.so.2"),
		filepath.Join(s.libDir, "libc.so.6"),
	}, realPaths)

	// Unresolved dependencies are leaves
	assert.False(t, libs[0].Resolved())
	assert.False(t, libs[0].IsExecutable)
	_, craftChildren := children(t, tree, ids[0])
	assert.Empty(t, craftChildren)

	// Resolved dependencies are expanded
	assert.True(t, libs[1].IsExecutable)
	_, pthreadChildren := children(t, tree, ids[1])
	require.Len(t, pthreadChildren, 1)
	assert.Equal(t, "libc.so.6", pthreadChildren[0].Name)
	assert.Equal(t, filepath.Join(s.libDir, "libc.so.6"), pthreadChildren[0].RealPath)

	assert.Equal(t, 3, tree.Height())
}

func TestAnalyze_SearchOrder(t *testing.T) {
	s := newSysroot(t)
	fizz := s.binary(t, "fizz", "libc.so.6")
	s.lib(t, s.usrLibDir, "libc.so.6")
	s.lib(t, s.libDir, "libc.so.6")

	tree := s.analyze(t, fizz)
	rootID, _ := root(t, tree)
	_, libs := children(t, tree, rootID)
	require.Len(t, libs, 1)
	assert.Equal(t, filepath.Join(s.libDir, "libc.so.6"), libs[0].RealPath)
}

func TestAnalyze_NoDeduplication(t *testing.T) {
	// Diamond: both liba and libb depend on libc, which is expanded
	// below each of them
	s := newSysroot(t)
	app := s.binary(t, "app", "liba.so", "libb.so")
	s.lib(t, s.libDir, "liba.so", "libc.so")
	s.lib(t, s.libDir, "libb.so", "libc.so")
	s.lib(t, s.libDir, "libc.so", "libd.so")
	s.lib(t, s.libDir, "libd.so")

	tree := s.analyze(t, app)
	// app, liba, libc, libd, libb, libc, libd
	assert.Equal(t, 7, tree.Len())
	assert.Equal(t, 4, tree.Height())

	var walked []string
	err := tree.Walk(func(id deptree.NodeID, _ int) error {
		data, err := tree.Get(id)
		walked = append(walked, filepath.Base(data.Name))
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"app", "liba.so", "libc.so", "libd.so", "libb.so", "libc.so", "libd.so"}, walked)
}

func TestAnalyze_Cycle(t *testing.T) {
	s := newSysroot(t)
	app := s.binary(t, "app", "liba.so")
	s.lib(t, s.libDir, "liba.so", "libb.so")
	s.lib(t, s.libDir, "libb.so", "liba.so")

	tree := s.analyze(t, app)

	// app -> liba.so -> libb.so -> liba.so (not expanded)
	assert.Equal(t, 4, tree.Height())
	assert.Equal(t, 4, tree.Len())

	rootID, _ := root(t, tree)
	ids, _ := children(t, tree, rootID)
	ids, _ = children(t, tree, ids[0])
	_, libs := children(t, tree, ids[0])
	require.Len(t, libs, 1)
	assert.Equal(t, BinaryFile{
		Name:         "liba.so",
		RealPath:     filepath.Join(s.libDir, "liba.so"),
		IsExecutable: true,
	}, libs[0])
}

func TestAnalyze_CycleKeepsFileAttributes(t *testing.T) {
	s := newSysroot(t)
	app := s.binary(t, "app", "liba.so")
	// liba.so has no executable segment, libb.so has one
	testutil.WriteELF(t, filepath.Join(s.libDir, "liba.so"), testutil.ELFOptions{
		Needed: []string{"libb.so"},
		Shared: true,
	})
	s.lib(t, s.libDir, "libb.so", "liba.so", "libb.so")

	tree := s.analyze(t, app)

	rootID, _ := root(t, tree)
	ids, _ := children(t, tree, rootID)
	_, libs := children(t, tree, ids[0])
	require.Len(t, libs, 1)
	assert.True(t, libs[0].IsExecutable)

	ids, _ = children(t, tree, ids[0])
	_, libs = children(t, tree, ids[0])
	require.Len(t, libs, 2)
	assert.Equal(t, "liba.so", libs[0].Name)
	assert.False(t, libs[0].IsExecutable)
	assert.Equal(t, "libb.so", libs[1].Name)
	assert.True(t, libs[1].IsExecutable)
}

func TestAnalyze_MaxDepth(t *testing.T) {
	s := newSysroot(t)
	app := s.binary(t, "app", "liba.so")
	s.lib(t, s.libDir, "liba.so", "libb.so")
	s.lib(t, s.libDir, "libb.so", "libc.so")
	s.lib(t, s.libDir, "libc.so")

	tree, err := NewAnalyzer(&Options{SearchDirs: s.searchDirs(), MaxDepth: 2}).Analyze(app)
	require.NoError(t, err)
	assert.Equal(t, 2, tree.Height())

	tree, err = NewAnalyzer(&Options{SearchDirs: s.searchDirs()}).Analyze(app)
	require.NoError(t, err)
	assert.Equal(t, 4, tree.Height())
}

func TestAnalyze_OnlyRootHasInterpreter(t *testing.T) {
	s := newSysroot(t)
	app := s.binary(t, "app", "libc.so.6")
	// libc usually has a PT_INTERP segment itself
	testutil.WriteELF(t, filepath.Join(s.libDir, "libc.so.6"), testutil.ELFOptions{
		Interpreter: interpreter,
		Shared:      true,
	})

	tree := s.analyze(t, app)
	err := tree.Walk(func(id deptree.NodeID, depth int) error {
		data, err := tree.Get(id)
		require.NoError(t, err)
		assert.Equal(t, depth == 1, data.IsRoot)
		if !data.IsRoot {
			assert.Empty(t, data.Interpreter)
			assert.False(t, data.IsExecutable)
		}
		return nil
	})
	require.NoError(t, err)
}

func TestAnalyze_Idempotent(t *testing.T) {
	s := newSysroot(t)
	server := s.binary(t, "server", "libcraft.so", "libpthread.so.0", "libc.so.6")
	s.lib(t, s.libDir, "libpthread.so.0", "libc.so.6")
	s.lib(t, s.libDir, "libc.so.6")

	first := s.analyze(t, server)
	second := s.analyze(t, server)
	assert.Equal(t, first, second)
}

func TestAnalyze_RelativeRootPath(t *testing.T) {
	s := newSysroot(t)
	s.binary(t, "fizz")

	wd, err := os.Getwd()
	require.NoError(t, err)
	err = os.Chdir(s.dir)
	require.NoError(t, err)
	defer func() { _ = os.Chdir(wd) }()

	tree := s.analyze(t, filepath.Join("bin", "fizz"))
	_, rootFile := root(t, tree)
	assert.Equal(t, filepath.Join("bin", "fizz"), rootFile.Name)
	assert.Empty(t, rootFile.RealPath)
	assert.Equal(t, 1, tree.Height())
}

func TestAnalyze_RootMissing(t *testing.T) {
	s := newSysroot(t)

	tree, err := NewAnalyzer(&Options{SearchDirs: s.searchDirs()}).Analyze(filepath.Join(s.dir, "missing"))
	require.Error(t, err)
	assert.Nil(t, tree)
	assert.True(t, IsIOError(err))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestAnalyze_RootNotELF(t *testing.T) {
	s := newSysroot(t)
	script := testutil.WriteFile(t, filepath.Join(s.dir, "bin", "script"), []byte("#!/bin/sh\n"))

	tree, err := NewAnalyzer(&Options{SearchDirs: s.searchDirs()}).Analyze(script)
	require.Error(t, err)
	assert.Nil(t, tree)
	assert.True(t, elfinfo.IsParseError(err))
	assert.Contains(t, err.Error(), script)
}

func TestAnalyze_DependencyNotELF(t *testing.T) {
	s := newSysroot(t)
	app := s.binary(t, "app", "libpthread.so.0", "libc.so")
	s.lib(t, s.libDir, "libpthread.so.0")
	// libc.so is a linker script on most distributions
	libc := testutil.WriteFile(t, filepath.Join(s.usrLibDir, "libc.so"), []byte("/* GNU ld script */\nGROUP ( libc.so.6 )\n"))

	tree, err := NewAnalyzer(&Options{SearchDirs: s.searchDirs()}).Analyze(app)
	require.Error(t, err)
	assert.Nil(t, tree)
	assert.True(t, elfinfo.IsParseError(err))
	assert.False(t, IsIOError(err))
	assert.Contains(t, err.Error(), libc)
}

func TestAnalyze_DependencyUnreadable(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("file permissions are not enforced for root")
	}
	s := newSysroot(t)
	app := s.binary(t, "app", "libsecret.so")
	lib := s.lib(t, s.libDir, "libsecret.so")
	require.NoError(t, os.Chmod(lib, 0o000))

	_, err := NewAnalyzer(&Options{SearchDirs: s.searchDirs()}).Analyze(app)
	require.Error(t, err)
	assert.True(t, IsIOError(err))
}

func TestLibraryPaths(t *testing.T) {
	s := newSysroot(t)
	server := s.binary(t, "server", "libcraft.so", "libdl.so.2", "libpthread.so.0", "libc.so.6")
	s.lib(t, s.usrLibDir, "libdl.so.2", "libc.so.6")
	s.lib(t, s.libDir, "libpthread.so.0")
	s.lib(t, s.libDir, "libc.so.6")

	tree := s.analyze(t, server)
	paths, err := LibraryPaths(tree)
	require.NoError(t, err)
	assert.Equal(t, []string{s.usrLibDir, s.libDir}, paths)
}

func TestDescribe(t *testing.T) {
	s := describe("bin/server", &elfinfo.Metadata{
		Is64:        true,
		Interpreter: interpreter,
		Type:        elf.ET_EXEC,
		Machine:     elf.EM_X86_64,
	})
	assert.Equal(t, "bin/server: 64-bit Executable for EM_X86_64, interpreter "+interpreter, s)

	s = describe("libc.so.6", &elfinfo.Metadata{Type: elf.ET_DYN, Machine: elf.EM_386})
	assert.Equal(t, "libc.so.6: 32-bit Shared Object for EM_386", s)
}
