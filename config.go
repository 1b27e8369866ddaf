package csg

import (
	"fmt"

	"github.com/soypat/csg/boolean"
	"github.com/soypat/csg/slicing"
	"gopkg.in/gcfg.v1"
)

// ExampleConfigFile documents every configuration variable.
const ExampleConfigFile = `[boolean]

# One of union, subtract or intersect.
operation = union

# One of polygons, polygons2, marching-cubes or dual-contouring.
mode = polygons

# Grid cells along the longest side in the implicit modes:
# 64, 128, 256 or 512.
input-resolution = 128
output-resolution = 128

[tolerance]

# Planes closer than plane-distance with normals differing by less than
# plane-normal per component are treated as one plane.
# plane-distance = 1e-6
# plane-normal = 1e-6

# Result vertices closer than weld are merged.
# weld = 1.5e-3`

// Config is the file form of Options.
type Config struct {
	Boolean   BooleanConfig
	Tolerance ToleranceConfig
}

// BooleanConfig is the [boolean] section: the operation, the processing
// mode and the implicit mode resolutions. Strings are parsed by CheckInit.
type BooleanConfig struct {
	Operation        string
	Mode             string
	InputResolution  int `gcfg:"input-resolution"`
	OutputResolution int `gcfg:"output-resolution"`
}

// ToleranceConfig is the [tolerance] section. Zero values are replaced by
// the defaults in CheckInit.
type ToleranceConfig struct {
	PlaneDistance float64 `gcfg:"plane-distance"`
	PlaneNormal   float64 `gcfg:"plane-normal"`
	Weld          float64
}

// ReadConfig reads and checks the configuration file fname.
func ReadConfig(fname string) (*Config, error) {
	c := &Config{}
	if err := gcfg.ReadFileInto(c, fname); err != nil {
		return nil, err
	}
	if err := c.CheckInit(); err != nil {
		return nil, fmt.Errorf("%s: %w", fname, err)
	}
	return c, nil
}

// ParseConfig reads and checks a configuration from a string.
func ParseConfig(s string) (*Config, error) {
	c := &Config{}
	if err := gcfg.ReadStringInto(c, s); err != nil {
		return nil, err
	}
	if err := c.CheckInit(); err != nil {
		return nil, err
	}
	return c, nil
}

// CheckInit validates c and fills unset values with their defaults.
func (c *Config) CheckInit() error {
	def := DefaultOptions()
	b := &c.Boolean
	if b.Operation == "" {
		b.Operation = Union.String()
	}
	if _, err := boolean.Parse(b.Operation); err != nil {
		return err
	}
	if b.Mode == "" {
		b.Mode = def.Mode.String()
	}
	if _, err := ParseMode(b.Mode); err != nil {
		return err
	}
	for _, r := range []*int{&b.InputResolution, &b.OutputResolution} {
		if *r == 0 {
			*r = int(def.InputResolution)
		}
		if !Resolution(*r).Valid() {
			return fmt.Errorf("resolution %d is not one of 64, 128, 256 or 512", *r)
		}
	}

	t := &c.Tolerance
	for _, v := range []struct {
		name string
		val  *float64
		def  float64
	}{
		{"plane-distance", &t.PlaneDistance, def.Tolerances.PlaneDistance},
		{"plane-normal", &t.PlaneNormal, def.Tolerances.PlaneNormal},
		{"weld", &t.Weld, def.Tolerances.Weld},
	} {
		switch {
		case *v.val < 0:
			return fmt.Errorf("%s must not be negative, got %g", v.name, *v.val)
		case *v.val == 0:
			*v.val = v.def
		}
	}
	return nil
}

// Operation returns the checked operation. Valid after CheckInit.
func (c *Config) Operation() Operation {
	op, _ := boolean.Parse(c.Boolean.Operation)
	return op
}

// Options converts c to Options. Valid after CheckInit.
func (c *Config) Options() Options {
	mode, _ := ParseMode(c.Boolean.Mode)
	return Options{
		Mode:             mode,
		InputResolution:  Resolution(c.Boolean.InputResolution),
		OutputResolution: Resolution(c.Boolean.OutputResolution),
		Tolerances: slicing.Tolerances{
			PlaneDistance: c.Tolerance.PlaneDistance,
			PlaneNormal:   c.Tolerance.PlaneNormal,
			Weld:          c.Tolerance.Weld,
		},
	}
}
