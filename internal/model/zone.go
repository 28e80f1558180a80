package model

import (
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Zone names group states into the worksheet tabs the sink writes to.
const (
	ZoneWest    = "WEST"
	ZoneCentral = "CENTRAL"
	ZoneEast    = "EAST"
)

// ZoneMap assigns two-letter state codes to zones.
type ZoneMap map[string]string

// DefaultZones returns the built-in state-to-zone assignment.
func DefaultZones() ZoneMap {
	zm := ZoneMap{}
	for _, s := range []string{"CA", "AZ", "NV", "WA", "OR", "UT", "ID", "CO"} {
		zm[s] = ZoneWest
	}
	for _, s := range []string{"TX", "OK", "LA", "MS", "OH", "MI", "MN"} {
		zm[s] = ZoneCentral
	}
	for _, s := range []string{"FL", "GA", "NC", "VA", "TN", "AL"} {
		zm[s] = ZoneEast
	}
	return zm
}

// LoadZones reads a zone override file of the form:
//
//	WEST: [CA, AZ]
//	EAST: [FL, GA]
//
// States not listed keep no zone assignment.
func LoadZones(path string) (ZoneMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "zones: read file")
	}
	var byZone map[string][]string
	if err := yaml.Unmarshal(data, &byZone); err != nil {
		return nil, eris.Wrap(err, "zones: unmarshal")
	}
	zm := ZoneMap{}
	for zone, states := range byZone {
		for _, s := range states {
			zm[strings.ToUpper(strings.TrimSpace(s))] = strings.ToUpper(zone)
		}
	}
	return zm, nil
}

// Names returns the distinct zone names, canonical zones first and any
// custom zones after, alphabetically.
func (zm ZoneMap) Names() []string {
	seen := map[string]bool{}
	for _, z := range zm {
		seen[z] = true
	}
	names := make([]string, 0, len(seen))
	for _, z := range []string{ZoneWest, ZoneCentral, ZoneEast} {
		if seen[z] {
			names = append(names, z)
			delete(seen, z)
		}
	}
	return append(names, slices.Sorted(maps.Keys(seen))...)
}

// ZoneFor returns the zone for a state code, or "" when unassigned.
func (zm ZoneMap) ZoneFor(state string) string {
	if state == "" {
		return ""
	}
	return zm[strings.ToUpper(state)]
}
