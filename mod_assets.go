package sparkle

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"slices"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

type AssetId string

var ErrAssetNotFound = errors.New("asset not found")

// MeshAsset is a mesh held by the AssetServer. Its identity changes every
// time the vertex data is replaced, so bakes can tell a reload from the
// same mesh.
type MeshAsset struct {
	id       AssetId
	identity uuid.UUID
	path     string
	version  uint
	data     MeshData
}

func (m *MeshAsset) Id() AssetId         { return m.id }
func (m *MeshAsset) Identity() uuid.UUID { return m.identity }
func (m *MeshAsset) Path() string        { return m.path }
func (m *MeshAsset) Version() uint       { return m.version }

func (m *MeshAsset) Readable() bool          { return m.data.Readable }
func (m *MeshAsset) Positions() []mgl32.Vec3 { return m.data.Positions }
func (m *MeshAsset) Normals() []mgl32.Vec3   { return m.data.Normals }
func (m *MeshAsset) UVs() []mgl32.Vec2       { return m.data.UVs }
func (m *MeshAsset) Indices() []uint32       { return m.data.Indices }
func (m *MeshAsset) VertexCount() int        { return len(m.data.Positions) }

// TextureAsset is an 8-bit RGBA image.
type TextureAsset struct {
	id     AssetId
	path   string
	texels []uint8
	width  int
	height int
}

func (t *TextureAsset) Id() AssetId            { return t.id }
func (t *TextureAsset) Dimensions() (int, int) { return t.width, t.height }
func (t *TextureAsset) Texels() []uint8        { return t.texels }

// SampleUV returns the nearest texel to (u, v) as linear 0..1 floats,
// clamping outside coordinates to the edge.
func (t *TextureAsset) SampleUV(u, v float32) mgl32.Vec4 {
	if t.width == 0 || t.height == 0 {
		return mgl32.Vec4{1, 1, 1, 1}
	}
	x := clampIndex(int(u*float32(t.width)), t.width)
	y := clampIndex(int(v*float32(t.height)), t.height)
	o := (y*t.width + x) * 4
	return mgl32.Vec4{
		float32(t.texels[o]) / 255,
		float32(t.texels[o+1]) / 255,
		float32(t.texels[o+2]) / 255,
		float32(t.texels[o+3]) / 255,
	}
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

type AssetServer struct {
	meshes   map[AssetId]*MeshAsset
	textures map[AssetId]*TextureAsset
	byPath   map[string]AssetId
}

type AssetServerModule struct{}

func (AssetServerModule) Install(app *App, cmd *Commands) {
	cmd.AddResources(NewAssetServer())
}

func NewAssetServer() *AssetServer {
	return &AssetServer{
		meshes:   make(map[AssetId]*MeshAsset),
		textures: make(map[AssetId]*TextureAsset),
		byPath:   make(map[string]AssetId),
	}
}

func makeAssetId() AssetId {
	return AssetId(uuid.NewString())
}

// CreateMesh stores data under a new id.
func (server *AssetServer) CreateMesh(data MeshData) AssetId {
	id := makeAssetId()
	server.meshes[id] = &MeshAsset{
		id:       id,
		identity: uuid.New(),
		data:     data,
	}
	return id
}

// UpdateMesh replaces the vertex data of an existing mesh and gives it a
// new identity.
func (server *AssetServer) UpdateMesh(id AssetId, data MeshData) error {
	m, ok := server.meshes[id]
	if !ok {
		return fmt.Errorf("mesh %s: %w", id, ErrAssetNotFound)
	}
	m.data = data
	m.identity = uuid.New()
	m.version++
	return nil
}

// LoadMesh reads an OBJ file. Loading the same path twice returns the
// existing id.
func (server *AssetServer) LoadMesh(path string) (AssetId, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if id, ok := server.byPath[abs]; ok {
		return id, nil
	}
	data, err := LoadOBJ(abs)
	if err != nil {
		return "", err
	}
	id := server.CreateMesh(data)
	server.meshes[id].path = abs
	server.byPath[abs] = id
	return id, nil
}

// ReloadMesh re-reads a mesh from its file. On error the previous data and
// identity are kept.
func (server *AssetServer) ReloadMesh(id AssetId) error {
	m, ok := server.meshes[id]
	if !ok {
		return fmt.Errorf("mesh %s: %w", id, ErrAssetNotFound)
	}
	if m.path == "" {
		return fmt.Errorf("mesh %s was not loaded from a file", id)
	}
	data, err := LoadOBJ(m.path)
	if err != nil {
		return err
	}
	return server.UpdateMesh(id, data)
}

func (server *AssetServer) Mesh(id AssetId) (*MeshAsset, bool) {
	m, ok := server.meshes[id]
	return m, ok
}

// MeshByPath finds a mesh loaded from path.
func (server *AssetServer) MeshByPath(path string) (AssetId, bool) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", false
	}
	id, ok := server.byPath[abs]
	return id, ok
}

// MeshPaths lists the files meshes were loaded from, sorted.
func (server *AssetServer) MeshPaths() []string {
	paths := make([]string, 0, len(server.byPath))
	for p := range server.byPath {
		paths = append(paths, p)
	}
	slices.Sort(paths)
	return paths
}

// CreateTexture copies img into an RGBA texture.
func (server *AssetServer) CreateTexture(img image.Image) AssetId {
	bounds := img.Bounds()
	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Stride != bounds.Dx()*4 {
		rgba = image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
		draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)
	}

	id := makeAssetId()
	server.textures[id] = &TextureAsset{
		id:     id,
		texels: slices.Clone(rgba.Pix),
		width:  bounds.Dx(),
		height: bounds.Dy(),
	}
	return id
}

// CreateSolidTexture makes a 1x1 texture of c.
func (server *AssetServer) CreateSolidTexture(c color.Color) AssetId {
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	img.Set(0, 0, c)
	return server.CreateTexture(img)
}

func (server *AssetServer) LoadTexture(path string) (AssetId, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	img, err := png.Decode(file)
	if err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}
	id := server.CreateTexture(img)
	server.textures[id].path = path
	return id, nil
}

func (server *AssetServer) Texture(id AssetId) (*TextureAsset, bool) {
	t, ok := server.textures[id]
	return t, ok
}
