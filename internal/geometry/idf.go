package geometry

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

var (
	ErrIDFNotFound = errors.New("IDF file not found")
	ErrNoGeometry  = errors.New("IDF contains no surface geometry")
)

// Kind groups surfaces by how they are drawn.
type Kind string

const (
	KindWall    Kind = "wall"
	KindRoof    Kind = "roof"
	KindFloor   Kind = "floor"
	KindCeiling Kind = "ceiling"
	KindWindow  Kind = "window"
	KindDoor    Kind = "door"
	KindShading Kind = "shading"
)

// Kinds lists every surface kind in material order.
var Kinds = []Kind{KindWall, KindRoof, KindFloor, KindCeiling, KindWindow, KindDoor, KindShading}

type Vertex struct {
	X, Y, Z float64
}

type Surface struct {
	Name     string
	Kind     Kind
	Zone     string
	Vertices []Vertex
}

// Model is the drawable geometry of one IDF file in world coordinates.
type Model struct {
	Zones         []string
	Surfaces      []Surface
	Fenestrations int
	Shadings      int
}

func (m *Model) VertexCount() int {
	n := 0
	for _, s := range m.Surfaces {
		n += len(s.Vertices)
	}
	return n
}

type idfObject struct {
	class  string
	fields []string
}

func (o idfObject) field(i int) string {
	if i < len(o.fields) {
		return o.fields[i]
	}
	return ""
}

// LoadFile parses the geometry of the IDF at path.
func LoadFile(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrIDFNotFound, path)
		}
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads zones, building surfaces, fenestration and detailed shading
// from an IDF. Surfaces of a Relative coordinate system are moved by their
// zone origin. Zone relative north is not applied.
func Parse(r io.Reader) (*Model, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read IDF: %w", err)
	}
	objects := splitObjects(string(raw))

	relative, clockwise := false, false
	origins := map[string]Vertex{}
	m := &Model{}

	for _, o := range objects {
		switch o.class {
		case "globalgeometryrules":
			clockwise = strings.EqualFold(o.field(1), "clockwise")
			relative = strings.EqualFold(o.field(2), "relative")
		case "zone":
			name := o.field(0)
			m.Zones = append(m.Zones, name)
			origins[strings.ToLower(name)] = Vertex{X: parseOr(o.field(2)), Y: parseOr(o.field(3)), Z: parseOr(o.field(4))}
		}
	}

	type placed struct {
		Surface
		base string
	}
	surfaceZones := map[string]string{}
	var found []placed

	for _, o := range objects {
		var p placed
		switch o.class {
		case "buildingsurface:detailed":
			p.Surface = Surface{Name: o.field(0), Kind: surfaceKind(o.field(1)), Zone: o.field(3)}
			surfaceZones[strings.ToLower(p.Name)] = p.Zone
		case "fenestrationsurface:detailed":
			p.Surface = Surface{Name: o.field(0), Kind: fenestrationKind(o.field(1))}
			p.base = o.field(3)
			m.Fenestrations++
		case "shading:site:detailed", "shading:building:detailed":
			p.Surface = Surface{Name: o.field(0), Kind: KindShading}
			m.Shadings++
		case "shading:zone:detailed":
			p.Surface = Surface{Name: o.field(0), Kind: KindShading}
			p.base = o.field(1)
			m.Shadings++
		default:
			continue
		}
		p.Vertices = trailingVertices(o.fields)
		if len(p.Vertices) < 3 {
			continue
		}
		if clockwise {
			reverse(p.Vertices)
		}
		found = append(found, p)
	}

	for _, p := range found {
		s := p.Surface
		if p.base != "" {
			s.Zone = surfaceZones[strings.ToLower(p.base)]
		}
		if o, ok := origins[strings.ToLower(s.Zone)]; ok && relative {
			for i := range s.Vertices {
				s.Vertices[i].X += o.X
				s.Vertices[i].Y += o.Y
				s.Vertices[i].Z += o.Z
			}
		}
		m.Surfaces = append(m.Surfaces, s)
	}

	if len(m.Surfaces) == 0 {
		return nil, ErrNoGeometry
	}
	return m, nil
}

// splitObjects strips comments and splits the file into objects. Class
// names are lowercased.
func splitObjects(idf string) []idfObject {
	var b strings.Builder
	for _, line := range strings.Split(idf, "\n") {
		if i := strings.IndexByte(line, '!'); i >= 0 {
			line = line[:i]
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}

	var out []idfObject
	for _, stmt := range strings.Split(b.String(), ";") {
		parts := strings.Split(stmt, ",")
		class := strings.ToLower(strings.TrimSpace(parts[0]))
		if class == "" {
			continue
		}
		fields := make([]string, 0, len(parts)-1)
		for _, p := range parts[1:] {
			fields = append(fields, strings.TrimSpace(p))
		}
		out = append(out, idfObject{class: class, fields: fields})
	}
	return out
}

// trailingVertices finds the vertex list at the end of fields. The field in
// front of it is the vertex count, a number or autocalculate. Counting from
// the end keeps this independent of how many fields precede the count in a
// given EnergyPlus version.
func trailingVertices(fields []string) []Vertex {
	for n := (len(fields) - 1) / 3; n >= 3; n-- {
		if !countMatches(fields[len(fields)-3*n-1], n) {
			continue
		}
		if verts, ok := parseVertices(fields[len(fields)-3*n:]); ok {
			return verts
		}
	}
	return nil
}

func parseVertices(coords []string) ([]Vertex, bool) {
	verts := make([]Vertex, 0, len(coords)/3)
	for i := 0; i+2 < len(coords); i += 3 {
		x, errX := strconv.ParseFloat(coords[i], 64)
		y, errY := strconv.ParseFloat(coords[i+1], 64)
		z, errZ := strconv.ParseFloat(coords[i+2], 64)
		if errX != nil || errY != nil || errZ != nil {
			return nil, false
		}
		verts = append(verts, Vertex{X: x, Y: y, Z: z})
	}
	return verts, true
}

func countMatches(field string, n int) bool {
	if field == "" || strings.EqualFold(field, "autocalculate") {
		return true
	}
	v, err := strconv.ParseFloat(field, 64)
	return err == nil && v == float64(n)
}

func surfaceKind(surfaceType string) Kind {
	switch strings.ToLower(surfaceType) {
	case "roof":
		return KindRoof
	case "floor":
		return KindFloor
	case "ceiling":
		return KindCeiling
	}
	return KindWall
}

func fenestrationKind(surfaceType string) Kind {
	switch strings.ToLower(surfaceType) {
	case "door", "glassdoor":
		return KindDoor
	}
	return KindWindow
}

func parseOr(field string) float64 {
	v, err := strconv.ParseFloat(field, 64)
	if err != nil {
		return 0
	}
	return v
}

func reverse(v []Vertex) {
	for i, j := 0, len(v)-1; i < j; i, j = i+1, j-1 {
		v[i], v[j] = v[j], v[i]
	}
}
