package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempYAML(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "param.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParamScalar(t *testing.T) {
	p, err := Param(writeTempYAML(t, "default: 50\n"))
	require.NoError(t, err)
	require.True(t, p.IsSet())
	assert.Equal(t, 50.0, p.For("anything"))
}

func TestParamPerRegion(t *testing.T) {
	p, err := Param(writeTempYAML(t, "default: 20\nregions:\n  coast: 35\n"))
	require.NoError(t, err)
	assert.Equal(t, 35.0, p.For("coast"))
	assert.Equal(t, 20.0, p.For("inland"))
}

func TestParamRegionsWithoutDefault(t *testing.T) {
	p, err := Param(writeTempYAML(t, "regions:\n  coast: 35\n"))
	require.NoError(t, err)
	assert.Equal(t, 35.0, p.For("coast"))
	assert.Equal(t, 0.0, p.For("inland"))
}

func TestParamEmptyFile(t *testing.T) {
	_, err := Param(writeTempYAML(t, "{}\n"))
	require.Error(t, err)
}

func TestParamBadYAML(t *testing.T) {
	_, err := Param(writeTempYAML(t, "default: [\n"))
	require.Error(t, err)
}
