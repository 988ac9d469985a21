package scheduling

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Zone names of the default configuration, highest priority first.
const (
	ZoneSystemHigh   = "system-high"
	ZoneSystemMedium = "system-medium"
	ZoneSystemLow    = "system-low"

	ZoneServiceHigh   = "service-high"
	ZoneServiceMedium = "service-medium"
	ZoneServiceLow    = "service-low"

	ZoneHigh   = "high"
	ZoneMedium = "medium"
	ZoneLow    = "low"
)

// ZoneSpec names a zone and the number of workers serving it.
type ZoneSpec struct {
	Name string
	Size int
}

// DefaultTaskZones returns the default task zones.
func DefaultTaskZones() []ZoneSpec {
	return defaultZones()
}

// DefaultThreadZones returns the default thread zones.
func DefaultThreadZones() []ZoneSpec {
	return defaultZones()
}

func defaultZones() []ZoneSpec {
	return []ZoneSpec{
		{Name: ZoneSystemHigh, Size: 10},
		{Name: ZoneSystemMedium, Size: 5},
		{Name: ZoneSystemLow, Size: 1},
		{Name: ZoneServiceHigh, Size: 10},
		{Name: ZoneServiceMedium, Size: 5},
		{Name: ZoneServiceLow, Size: 1},
		{Name: ZoneHigh, Size: 10},
		{Name: ZoneMedium, Size: 5},
		{Name: ZoneLow, Size: 1},
	}
}

// ParseZoneSpecs parses "name:size,name:size". Whitespace around entries is ignored.
func ParseZoneSpecs(value string) ([]ZoneSpec, error) {
	var specs []ZoneSpec
	seen := make(map[string]bool)

	for _, entry := range strings.Split(value, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		name, size, ok := strings.Cut(entry, ":")
		if !ok {
			return nil, errors.Errorf("zone spec %q: missing size", entry)
		}
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, errors.Errorf("zone spec %q: missing name", entry)
		}
		if seen[name] {
			return nil, errors.Errorf("zone spec %q: duplicate zone", entry)
		}

		n, err := strconv.Atoi(strings.TrimSpace(size))
		if err != nil {
			return nil, errors.Wrapf(err, "zone spec %q", entry)
		}
		if n <= 0 {
			return nil, errors.Errorf("zone spec %q: size must be positive", entry)
		}

		seen[name] = true
		specs = append(specs, ZoneSpec{Name: name, Size: n})
	}

	if len(specs) == 0 {
		return nil, errors.New("no zones configured")
	}
	return specs, nil
}
