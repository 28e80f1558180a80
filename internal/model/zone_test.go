package model

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultZones(t *testing.T) {
	zm := DefaultZones()

	assert.Equal(t, ZoneWest, zm.ZoneFor("CA"))
	assert.Equal(t, ZoneCentral, zm.ZoneFor("TX"))
	assert.Equal(t, ZoneEast, zm.ZoneFor("FL"))
	assert.Equal(t, ZoneWest, zm.ZoneFor("ca"))
	assert.Equal(t, "", zm.ZoneFor("NY"))
	assert.Equal(t, "", zm.ZoneFor(""))
}

func TestLoadZones(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zones.yaml")
	require.NoError(t, os.WriteFile(path, []byte("WEST: [CA, az]\nEAST: [NY]\n"), 0o644))

	zm, err := LoadZones(path)
	require.NoError(t, err)

	assert.Equal(t, ZoneWest, zm.ZoneFor("CA"))
	assert.Equal(t, ZoneWest, zm.ZoneFor("AZ"))
	assert.Equal(t, ZoneEast, zm.ZoneFor("NY"))
	// Override replaces the default table entirely.
	assert.Equal(t, "", zm.ZoneFor("TX"))
}

func TestLoadZones_Missing(t *testing.T) {
	_, err := LoadZones(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestZoneNames(t *testing.T) {
	assert.Equal(t, []string{ZoneWest, ZoneCentral, ZoneEast}, DefaultZones().Names())

	custom := ZoneMap{"TX": "SOUTH", "CA": ZoneWest}
	assert.Equal(t, []string{ZoneWest, "SOUTH"}, custom.Names())
}
