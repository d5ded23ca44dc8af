package sparkle

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
)

// MeshData is plain vertex data. Positions and Normals have the same length;
// UVs is either empty or the same length too. Indices describe triangles and
// may be empty for point clouds.
type MeshData struct {
	Positions []mgl32.Vec3
	Normals   []mgl32.Vec3
	UVs       []mgl32.Vec2
	Indices   []uint32
	// Readable meshes expose their vertex arrays to the CPU. Unreadable ones
	// can still be drawn but not baked.
	Readable bool
}

// objDecoder collects the raw v/vt/vn streams and turns faces into
// de-duplicated vertices.
type objDecoder struct {
	line int

	v  []mgl32.Vec3
	vt []mgl32.Vec2
	vn []mgl32.Vec3

	corners map[objCorner]uint32
	faces   int
	out     MeshData
	hasUV   bool
	hasNrm  bool
}

type objCorner struct {
	v, vt, vn int
}

const objMissing = -1

// LoadOBJ reads a Wavefront OBJ file.
func LoadOBJ(path string) (MeshData, error) {
	f, err := os.Open(path)
	if err != nil {
		return MeshData{}, err
	}
	defer f.Close()

	data, err := ParseOBJ(f)
	if err != nil {
		return MeshData{}, fmt.Errorf("%s: %w", path, err)
	}
	return data, nil
}

// ParseOBJ decodes positions, texture coordinates, normals and faces.
// Polygons are triangulated as fans. Missing normals are generated by
// averaging face normals. A file without faces yields its raw vertex list.
func ParseOBJ(r io.Reader) (MeshData, error) {
	dec := &objDecoder{corners: make(map[objCorner]uint32)}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		dec.line++
		if err := dec.parseLine(scanner.Text()); err != nil {
			return MeshData{}, err
		}
	}
	if err := scanner.Err(); err != nil {
		return MeshData{}, err
	}
	return dec.finish(), nil
}

func (dec *objDecoder) parseLine(line string) error {
	if i := strings.IndexByte(line, '#'); i >= 0 {
		line = line[:i]
	}
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}

	switch fields[0] {
	case "v":
		p, err := dec.parseFloats(fields[1:], 3)
		if err != nil {
			return err
		}
		dec.v = append(dec.v, mgl32.Vec3{p[0], p[1], p[2]})
	case "vt":
		p, err := dec.parseFloats(fields[1:], 2)
		if err != nil {
			return err
		}
		dec.vt = append(dec.vt, mgl32.Vec2{p[0], p[1]})
	case "vn":
		p, err := dec.parseFloats(fields[1:], 3)
		if err != nil {
			return err
		}
		dec.vn = append(dec.vn, mgl32.Vec3{p[0], p[1], p[2]})
	case "f":
		return dec.parseFace(fields[1:])
	}
	// o, g, s, usemtl, mtllib and friends carry nothing we bake
	return nil
}

func (dec *objDecoder) parseFloats(fields []string, n int) ([]float32, error) {
	if len(fields) < n {
		return nil, dec.errorf("expected %d values, got %d", n, len(fields))
	}
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		v, err := strconv.ParseFloat(fields[i], 32)
		if err != nil {
			return nil, dec.errorf("%v", err)
		}
		out[i] = float32(v)
	}
	return out, nil
}

func (dec *objDecoder) parseFace(fields []string) error {
	if len(fields) < 3 {
		return dec.errorf("face with fewer than 3 vertices")
	}
	idx := make([]uint32, len(fields))
	for i, f := range fields {
		c, err := dec.parseCorner(f)
		if err != nil {
			return err
		}
		idx[i] = dec.vertex(c)
	}
	for i := 1; i+1 < len(idx); i++ {
		dec.out.Indices = append(dec.out.Indices, idx[0], idx[i], idx[i+1])
	}
	dec.faces++
	return nil
}

func (dec *objDecoder) parseCorner(field string) (objCorner, error) {
	parts := strings.Split(field, "/")
	c := objCorner{v: objMissing, vt: objMissing, vn: objMissing}

	var err error
	if c.v, err = dec.resolve(parts[0], len(dec.v)); err != nil {
		return c, err
	}
	if len(parts) > 1 && parts[1] != "" {
		if c.vt, err = dec.resolve(parts[1], len(dec.vt)); err != nil {
			return c, err
		}
	}
	if len(parts) > 2 && parts[2] != "" {
		if c.vn, err = dec.resolve(parts[2], len(dec.vn)); err != nil {
			return c, err
		}
	}
	return c, nil
}

// resolve turns a 1-based or negative (relative) OBJ index into a 0-based one.
func (dec *objDecoder) resolve(s string, count int) (int, error) {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, dec.errorf("bad index %q", s)
	}
	switch {
	case v > 0:
		v--
	case v < 0:
		v += count
	default:
		return 0, dec.errorf("index 0 is not valid")
	}
	if v < 0 || v >= count {
		return 0, dec.errorf("index %s out of range (%d defined)", s, count)
	}
	return v, nil
}

func (dec *objDecoder) vertex(c objCorner) uint32 {
	if i, ok := dec.corners[c]; ok {
		return i
	}
	i := uint32(len(dec.out.Positions))
	dec.corners[c] = i
	dec.out.Positions = append(dec.out.Positions, dec.v[c.v])

	var uv mgl32.Vec2
	if c.vt != objMissing {
		uv = dec.vt[c.vt]
		dec.hasUV = true
	}
	dec.out.UVs = append(dec.out.UVs, uv)

	var n mgl32.Vec3
	if c.vn != objMissing {
		n = dec.vn[c.vn]
		dec.hasNrm = true
	}
	dec.out.Normals = append(dec.out.Normals, n)
	return i
}

func (dec *objDecoder) finish() MeshData {
	out := dec.out
	out.Readable = true

	if dec.faces == 0 {
		out.Positions = dec.v
		out.Indices = nil
		if len(dec.vn) == len(dec.v) {
			out.Normals = dec.vn
		} else {
			out.Normals = radialNormals(dec.v)
		}
		if len(dec.vt) == len(dec.v) {
			out.UVs = dec.vt
		} else {
			out.UVs = nil
		}
		return out
	}

	if !dec.hasUV {
		out.UVs = nil
	}
	if !dec.hasNrm {
		out.Normals = SmoothNormals(out.Positions, out.Indices)
	}
	return out
}

func (dec *objDecoder) errorf(format string, args ...any) error {
	return fmt.Errorf("obj line %d: %s", dec.line, fmt.Sprintf(format, args...))
}

// SmoothNormals averages the area-weighted normals of the triangles that
// share each vertex.
func SmoothNormals(positions []mgl32.Vec3, indices []uint32) []mgl32.Vec3 {
	normals := make([]mgl32.Vec3, len(positions))
	for i := 0; i+2 < len(indices); i += 3 {
		a, b, c := indices[i], indices[i+1], indices[i+2]
		n := positions[b].Sub(positions[a]).Cross(positions[c].Sub(positions[a]))
		normals[a] = normals[a].Add(n)
		normals[b] = normals[b].Add(n)
		normals[c] = normals[c].Add(n)
	}
	for i, n := range normals {
		if n.Len() > 0 {
			normals[i] = n.Normalize()
		} else {
			normals[i] = mgl32.Vec3{0, 1, 0}
		}
	}
	return normals
}

// radialNormals points every vertex of a face-less cloud away from its centroid.
func radialNormals(positions []mgl32.Vec3) []mgl32.Vec3 {
	var center mgl32.Vec3
	for _, p := range positions {
		center = center.Add(p)
	}
	if len(positions) > 0 {
		center = center.Mul(1 / float32(len(positions)))
	}
	normals := make([]mgl32.Vec3, len(positions))
	for i, p := range positions {
		d := p.Sub(center)
		if d.Len() > 0 {
			normals[i] = d.Normalize()
		} else {
			normals[i] = mgl32.Vec3{0, 1, 0}
		}
	}
	return normals
}
