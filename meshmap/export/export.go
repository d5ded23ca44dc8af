// Package export writes baked maps to disk as 16-bit TIFF images with a
// YAML sidecar holding the per-channel ranges needed to recover floats.
package export

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"

	"golang.org/x/image/tiff"
	"gopkg.in/yaml.v3"

	"github.com/gekko3d/sparkle/meshmap/core"
)

// ChannelRange is the float interval a 16-bit channel was quantized from.
type ChannelRange struct {
	Min float32 `yaml:"min"`
	Max float32 `yaml:"max"`
}

type MapEntry struct {
	Kind     string          `yaml:"kind"`
	File     string          `yaml:"file"`
	Width    int             `yaml:"width"`
	Channels [3]ChannelRange `yaml:"channels"`
}

// Sidecar describes one exported map set.
type Sidecar struct {
	Name   string     `yaml:"name"`
	Filter string     `yaml:"filter"`
	Wrap   string     `yaml:"wrap"`
	Maps   []MapEntry `yaml:"maps"`
}

// WriteMaps writes <name>_position.tiff, <name>_normal.tiff, <name>_uv.tiff
// and <name>_maps.yaml into dir. It returns the written paths.
func WriteMaps(dir, name string, maps core.MapSet) ([]string, error) {
	if !maps.Complete() {
		return nil, errors.New("export: incomplete map set")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("export: create %s: %w", dir, err)
	}

	side := Sidecar{Name: name, Filter: "point", Wrap: "clamp"}
	var written []string
	for _, m := range []*core.Map{maps.Position, maps.Normal, maps.UV} {
		file := fmt.Sprintf("%s_%s.tiff", name, m.Kind())
		path := filepath.Join(dir, file)
		ranges, err := WriteTIFF(path, m)
		if err != nil {
			return written, err
		}
		written = append(written, path)
		side.Maps = append(side.Maps, MapEntry{
			Kind:     m.Kind().String(),
			File:     file,
			Width:    m.Width(),
			Channels: ranges,
		})
	}

	path := filepath.Join(dir, name+"_maps.yaml")
	data, err := yaml.Marshal(&side)
	if err != nil {
		return written, fmt.Errorf("export: marshal sidecar: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return written, fmt.Errorf("export: write %s: %w", path, err)
	}
	return append(written, path), nil
}

// WriteTIFF quantizes the RGB channels of m to 16 bits over their own range.
// Alpha is always opaque.
func WriteTIFF(path string, m *core.Map) ([3]ChannelRange, error) {
	img, ranges := Quantize(m)
	f, err := os.Create(path)
	if err != nil {
		return ranges, fmt.Errorf("export: create %s: %w", path, err)
	}
	if err := tiff.Encode(f, img, &tiff.Options{Compression: tiff.Deflate}); err != nil {
		f.Close()
		return ranges, fmt.Errorf("export: encode %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return ranges, fmt.Errorf("export: close %s: %w", path, err)
	}
	return ranges, nil
}

func Quantize(m *core.Map) (*image.NRGBA64, [3]ChannelRange) {
	ranges := channelRanges(m)
	w := m.Width()
	img := image.NewNRGBA64(image.Rect(0, 0, w, w))
	for y := 0; y < w; y++ {
		for x := 0; x < w; x++ {
			t := m.At(x, y)
			img.SetNRGBA64(x, y, color.NRGBA64{
				R: quantize(t[0], ranges[0]),
				G: quantize(t[1], ranges[1]),
				B: quantize(t[2], ranges[2]),
				A: math.MaxUint16,
			})
		}
	}
	return img, ranges
}

// Dequantize maps a 16-bit channel value back into r.
func Dequantize(v uint16, r ChannelRange) float32 {
	if r.Max <= r.Min {
		return r.Min
	}
	return r.Min + float32(v)/math.MaxUint16*(r.Max-r.Min)
}

func channelRanges(m *core.Map) [3]ChannelRange {
	var out [3]ChannelRange
	for c := range out {
		out[c] = ChannelRange{Min: float32(math.Inf(1)), Max: float32(math.Inf(-1))}
	}
	pix := m.Pix()
	for i := 0; i < len(pix); i += core.Channels {
		for c := 0; c < 3; c++ {
			v := pix[i+c]
			if v < out[c].Min {
				out[c].Min = v
			}
			if v > out[c].Max {
				out[c].Max = v
			}
		}
	}
	return out
}

func quantize(v float32, r ChannelRange) uint16 {
	if r.Max <= r.Min {
		return 0
	}
	n := (v - r.Min) / (r.Max - r.Min)
	return uint16(math.Round(float64(n) * math.MaxUint16))
}
