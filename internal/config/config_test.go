package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mkiso/mkiso/internal/config"
)

func TestValidate(t *testing.T) {
	cases := []struct {
		note   string
		mutate func(*config.Config)
		boot   int
		expErr error
	}{
		{note: "defaults with output pass", mutate: func(c *config.Config) { c.Output = "out.iso" }},
		{note: "missing output", mutate: func(*config.Config) {}, expErr: config.ErrMissingOutput},
		{
			note:   "catalog without boot images",
			mutate: func(c *config.Config) { c.Output = "out.iso"; c.Catalog = "boot.cat" },
			expErr: config.ErrUnsupported,
		},
		{
			note:   "catalog with boot images passes",
			mutate: func(c *config.Config) { c.Output = "out.iso"; c.Catalog = "boot.cat" },
			boot:   1,
		},
	}

	for _, tc := range cases {
		t.Run(tc.note, func(t *testing.T) {
			c := config.Default()
			tc.mutate(c)
			err := c.Validate(tc.boot)
			if tc.expErr != nil {
				require.ErrorIs(t, err, tc.expErr)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestValidateRanges(t *testing.T) {
	c := config.Default()
	c.Output = "out.iso"

	c.Level = 5
	require.Error(t, c.Validate(0))

	c.Level = 4
	c.UCSLevel = 0
	require.Error(t, c.Validate(0))
}

func TestLoadSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
identifiers:
  volume: BACKUPS_2026
  publisher: ACME Corp
`), 0o644))

	c := config.Default()
	require.NoError(t, c.LoadSettings(path))

	require.Equal(t, "BACKUPS_2026", c.Identifiers.Volume)
	require.Equal(t, "ACME Corp", c.Identifiers.Publisher)
	// Values absent from the file keep their defaults.
	require.Equal(t, "mkiso", c.Identifiers.Application)
}

func TestLoadSettingsMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("identifiers: ["), 0o644))
	require.Error(t, config.Default().LoadSettings(path))
}

func TestCreateOptions(t *testing.T) {
	c := config.Default()
	c.Joliet = true
	c.RationalRock = true

	opts := c.CreateOptions()
	require.Equal(t, 3, opts.JolietLevel)
	require.Equal(t, "1.09", opts.RockRidge)
	require.Equal(t, 1, opts.Level)

	c.Joliet = false
	c.RationalRock = false
	opts = c.CreateOptions()
	require.Zero(t, opts.JolietLevel)
	require.Empty(t, opts.RockRidge)
	require.False(t, opts.XA)

	c.XA = true
	require.True(t, c.CreateOptions().XA)
}
