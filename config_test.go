package csg_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/soypat/csg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExampleConfig(t *testing.T) {
	c, err := csg.ParseConfig(csg.ExampleConfigFile)
	require.NoError(t, err)
	assert.Equal(t, csg.Union, c.Operation())
	opts := c.Options()
	def := csg.DefaultOptions()
	assert.Equal(t, def.Mode, opts.Mode)
	assert.Equal(t, def.Tolerances, opts.Tolerances)
	assert.Equal(t, csg.Res128, opts.OutputResolution)
}

func TestReadConfig(t *testing.T) {
	fname := filepath.Join(t.TempDir(), "csg.gcfg")
	err := os.WriteFile(fname, []byte(`[boolean]
operation = difference
mode = dual_contouring
input-resolution = 256

[tolerance]
weld = 0.01
`), 0o644)
	require.NoError(t, err)
	c, err := csg.ReadConfig(fname)
	require.NoError(t, err)
	assert.Equal(t, csg.Subtract, c.Operation())
	opts := c.Options()
	assert.Equal(t, csg.DualContouring, opts.Mode)
	assert.Equal(t, csg.Res256, opts.InputResolution)
	assert.Equal(t, csg.Res128, opts.OutputResolution)
	assert.Equal(t, 0.01, opts.Tolerances.Weld)
	assert.Equal(t, 1e-6, opts.Tolerances.PlaneNormal)
}

func TestConfigErrors(t *testing.T) {
	for _, s := range []string{
		"[boolean]\noperation = xor",
		"[boolean]\nmode = voxels",
		"[boolean]\ninput-resolution = 100",
		"[tolerance]\nweld = -1",
		"[render]\nquality = high",
	} {
		_, err := csg.ParseConfig(s)
		assert.Error(t, err, s)
	}
	_, err := csg.ReadConfig(filepath.Join(t.TempDir(), "missing.gcfg"))
	assert.Error(t, err)
}
