package geometry

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

type material struct {
	diffuse [3]float64
	opacity float64
}

var materials = map[Kind]material{
	KindWall:    {diffuse: [3]float64{0.85, 0.82, 0.75}, opacity: 1},
	KindRoof:    {diffuse: [3]float64{0.55, 0.25, 0.20}, opacity: 1},
	KindFloor:   {diffuse: [3]float64{0.45, 0.45, 0.45}, opacity: 1},
	KindCeiling: {diffuse: [3]float64{0.95, 0.95, 0.95}, opacity: 1},
	KindWindow:  {diffuse: [3]float64{0.55, 0.75, 0.90}, opacity: 0.4},
	KindDoor:    {diffuse: [3]float64{0.40, 0.30, 0.20}, opacity: 1},
	KindShading: {diffuse: [3]float64{0.35, 0.55, 0.35}, opacity: 1},
}

// WriteOBJ writes one object per surface with a polygon face per surface.
// EnergyPlus is Z-up, so vertices are written Y-up as (x, z, -y), the axis
// convention Blender and most viewers assume for OBJ.
func WriteOBJ(w io.Writer, m *Model, mtlFile string) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintln(bw, "# building geometry exported from an EnergyPlus IDF")
	if mtlFile != "" {
		fmt.Fprintf(bw, "mtllib %s\n", mtlFile)
	}

	next := 1
	for _, s := range m.Surfaces {
		fmt.Fprintf(bw, "o %s\n", objName(s.Name))
		if mtlFile != "" {
			fmt.Fprintf(bw, "usemtl %s\n", s.Kind)
		}
		for _, v := range s.Vertices {
			// 0 - y keeps a zero from printing as -0
			fmt.Fprintf(bw, "v %.4f %.4f %.4f\n", v.X, v.Z, 0-v.Y)
		}
		bw.WriteString("f")
		for i := range s.Vertices {
			fmt.Fprintf(bw, " %d", next+i)
		}
		bw.WriteString("\n")
		next += len(s.Vertices)
	}
	return bw.Flush()
}

// WriteMTL writes one material per surface kind.
func WriteMTL(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, k := range Kinds {
		mat := materials[k]
		fmt.Fprintf(bw, "newmtl %s\n", k)
		fmt.Fprintf(bw, "Kd %.2f %.2f %.2f\n", mat.diffuse[0], mat.diffuse[1], mat.diffuse[2])
		fmt.Fprintf(bw, "d %.2f\n\n", mat.opacity)
	}
	return bw.Flush()
}

// objName keeps surface names on one token.
func objName(name string) string {
	if name == "" {
		return "surface"
	}
	return strings.Join(strings.Fields(name), "_")
}
