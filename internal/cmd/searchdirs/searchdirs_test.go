package searchdirs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"code-intelligence.com/lddr/internal/cmdutils"
	"code-intelligence.com/lddr/internal/ldd"
	"code-intelligence.com/lddr/internal/testutil"
)

func TestSearchDirs_Default(t *testing.T) {
	out, err := cmdutils.ExecuteCommand(t, New(), os.Stdin)
	require.NoError(t, err)

	expected := ""
	for _, dir := range ldd.DefaultSearchDirs() {
		expected += dir + "\n"
	}
	assert.Equal(t, expected, out)
}

func TestSearchDirs_Flags(t *testing.T) {
	out, err := cmdutils.ExecuteCommand(t, New(), os.Stdin, "-L", "/opt/a", "-L", "/opt/b")
	require.NoError(t, err)
	assert.Equal(t, "/opt/a\n/opt/b\n", out)
}

func TestSearchDirs_LdSoConf(t *testing.T) {
	conf := testutil.WriteFile(t, filepath.Join(t.TempDir(), "ld.so.conf"), []byte("# local libraries\n/usr/local/lib\n"))
	oldPath := cmdutils.LdSoConfPath
	cmdutils.LdSoConfPath = conf
	t.Cleanup(func() { cmdutils.LdSoConfPath = oldPath })

	out, err := cmdutils.ExecuteCommand(t, New(), os.Stdin, "-L", "/opt/a", "--ld-so-conf", "--format", "json")
	require.NoError(t, err)
	assert.JSONEq(t, `["/opt/a", "/usr/local/lib"]`, out)
}
