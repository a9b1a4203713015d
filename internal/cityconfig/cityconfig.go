// Package cityconfig holds the table of cities the viewer serves and the map
// view each one opens with.
package cityconfig

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/joelkehle/roimap/internal/report"
)

type City struct {
	ID     string  `yaml:"id" json:"id"`
	Name   string  `yaml:"name" json:"name"`
	Center *Point  `yaml:"center,omitempty" json:"-"`
	Zoom   float64 `yaml:"zoom,omitempty" json:"-"`
}

type Point struct {
	Lat float64 `yaml:"lat"`
	Lng float64 `yaml:"lng"`
}

type fileFormat struct {
	Default *struct {
		Center Point   `yaml:"center"`
		Zoom   float64 `yaml:"zoom"`
	} `yaml:"default"`
	Cities []City `yaml:"cities"`
}

// Table maps canonical city keys to their display names and map views.
type Table struct {
	cities   map[string]City
	order    []string
	fallback report.MapView
}

// Builtin returns the table used when no cities file is configured.
func Builtin() *Table {
	t, _ := New(report.FallbackView, []City{
		{ID: "berlin", Name: "Berlin", Center: &Point{Lat: 52.5200, Lng: 13.4050}, Zoom: 10},
		{ID: "milan", Name: "Milan", Center: &Point{Lat: 45.4642, Lng: 9.1900}, Zoom: 11},
	})
	return t
}

func New(fallback report.MapView, cities []City) (*Table, error) {
	t := &Table{cities: map[string]City{}, fallback: fallback}
	for _, c := range cities {
		key := normalizeKey(c.ID)
		if key == "" {
			return nil, fmt.Errorf("city entry %q has no id", c.Name)
		}
		if _, dup := t.cities[key]; dup {
			return nil, fmt.Errorf("duplicate city id %q", key)
		}
		if strings.TrimSpace(c.Name) == "" {
			c.Name = c.ID
		}
		c.ID = key
		t.cities[key] = c
		t.order = append(t.order, key)
	}
	return t, nil
}

// Load reads a YAML cities file.
func Load(path string) (*Table, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cities file: %w", err)
	}
	return Parse(blob)
}

func Parse(blob []byte) (*Table, error) {
	var f fileFormat
	if err := yaml.Unmarshal(blob, &f); err != nil {
		return nil, fmt.Errorf("parse cities file: %w", err)
	}
	fallback := report.FallbackView
	if f.Default != nil {
		fallback = report.MapView{
			Center: report.LatLng{Lat: f.Default.Center.Lat, Lng: f.Default.Center.Lng},
			Zoom:   f.Default.Zoom,
		}
	}
	return New(fallback, f.Cities)
}

// Lookup returns the city for a key. Keys are matched case-insensitively.
func (t *Table) Lookup(key string) (City, bool) {
	c, ok := t.cities[normalizeKey(key)]
	return c, ok
}

// View implements report.ViewLookup. Unknown cities, and cities without their
// own center, get the table's default view.
func (t *Table) View(key string) report.MapView {
	c, ok := t.Lookup(key)
	if !ok || c.Center == nil {
		return t.fallback
	}
	zoom := c.Zoom
	if zoom == 0 {
		zoom = t.fallback.Zoom
	}
	return report.MapView{Center: report.LatLng{Lat: c.Center.Lat, Lng: c.Center.Lng}, Zoom: zoom}
}

// Cities lists entries in file order.
func (t *Table) Cities() []City {
	out := make([]City, 0, len(t.order))
	for _, k := range t.order {
		out = append(out, t.cities[k])
	}
	return out
}

// Keys returns the sorted city keys.
func (t *Table) Keys() []string {
	keys := append([]string(nil), t.order...)
	sort.Strings(keys)
	return keys
}

func normalizeKey(k string) string {
	return strings.ToLower(strings.TrimSpace(k))
}
