package draw

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Palette holds the colours shared by every chart.
type Palette struct {
	Primary   Color
	Secondary Color
	Text      Color
	Grid      Color
	Enabled   Color
	Disabled  Color
}

// DefaultPalette returns the built-in chart colours.
func DefaultPalette() Palette {
	return Palette{
		Primary:   RGB(100, 210, 255),
		Secondary: RGB(120, 255, 105),
		Text:      RGB(240, 240, 245),
		Grid:      RGBA(70, 70, 80, 150),
		Enabled:   RGB(120, 255, 105),
		Disabled:  RGB(255, 150, 100),
	}
}

// paletteFile is the YAML shape of a palette override. Each colour is a
// [r, g, b] or [r, g, b, a] list; omitted colours keep their defaults.
type paletteFile struct {
	Primary   []int `yaml:"primary"`
	Secondary []int `yaml:"secondary"`
	Text      []int `yaml:"text"`
	Grid      []int `yaml:"grid"`
	Enabled   []int `yaml:"enabled"`
	Disabled  []int `yaml:"disabled"`
}

// LoadPalette reads a YAML palette override from path on top of
// DefaultPalette.
func LoadPalette(path string) (Palette, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Palette{}, fmt.Errorf("read palette %s: %w", path, err)
	}
	return ParsePalette(data)
}

// ParsePalette decodes a YAML palette override on top of DefaultPalette.
func ParsePalette(data []byte) (Palette, error) {
	var f paletteFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Palette{}, fmt.Errorf("parse palette: %w", err)
	}

	p := DefaultPalette()
	fields := []struct {
		name string
		in   []int
		out  *Color
	}{
		{"primary", f.Primary, &p.Primary},
		{"secondary", f.Secondary, &p.Secondary},
		{"text", f.Text, &p.Text},
		{"grid", f.Grid, &p.Grid},
		{"enabled", f.Enabled, &p.Enabled},
		{"disabled", f.Disabled, &p.Disabled},
	}
	for _, fld := range fields {
		if fld.in == nil {
			continue
		}
		c, err := colorFromList(fld.in)
		if err != nil {
			return Palette{}, fmt.Errorf("palette %s: %w", fld.name, err)
		}
		*fld.out = c
	}
	return p, nil
}

func colorFromList(v []int) (Color, error) {
	if len(v) != 3 && len(v) != 4 {
		return Color{}, fmt.Errorf("want 3 or 4 components, got %d", len(v))
	}
	for _, n := range v {
		if n < 0 || n > 255 {
			return Color{}, fmt.Errorf("component %d out of range 0-255", n)
		}
	}
	c := RGB(uint8(v[0]), uint8(v[1]), uint8(v[2]))
	if len(v) == 4 {
		c.A = uint8(v[3])
	}
	return c, nil
}
