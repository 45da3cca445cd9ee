// Package content defines the raw media payloads that flow through ingestion and queries.
package content

import (
	"fmt"
	"image"
	"strings"

	"github.com/v0idness/archipanion-ve/internal/domain"
)

// Type identifies a media kind.
type Type int

const (
	// Image is a still raster image.
	Image Type = iota + 1
	// Text is UTF-8 text.
	Text
	// Audio is PCM audio.
	Audio
	// Mesh is a triangle mesh.
	Mesh
)

// AllTypes lists every media kind in declaration order.
var AllTypes = []Type{Image, Text, Audio, Mesh}

func (t Type) String() string {
	switch t {
	case Image:
		return "IMAGE"
	case Text:
		return "TEXT"
	case Audio:
		return "AUDIO"
	case Mesh:
		return "MESH"
	default:
		return "UNKNOWN"
	}
}

// ParseType resolves a media kind by name.
func ParseType(s string) (Type, error) {
	for _, t := range AllTypes {
		if strings.EqualFold(t.String(), s) {
			return t, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown content type %q", domain.ErrInvalidInput, s)
}

// Element is a typed media payload.
type Element interface {
	Type() Type
}

// ImageContent exposes a decoded raster image.
type ImageContent interface {
	Element
	Image() (image.Image, error)
}

// TextContent exposes a text payload.
type TextContent interface {
	Element
	Text() (string, error)
}

// AudioContent exposes interleaved PCM samples.
type AudioContent interface {
	Element
	Audio() (AudioData, error)
}

// MeshContent exposes triangle mesh geometry.
type MeshContent interface {
	Element
	Mesh() (MeshData, error)
}

// AudioData is interleaved signed 16-bit PCM.
type AudioData struct {
	Channels   int
	SampleRate int
	Samples    []int16
}

// MeshData is an indexed triangle mesh.
type MeshData struct {
	Vertices [][3]float32
	Faces    [][3]uint32
}

// Validate checks that every face references an existing vertex.
func (m MeshData) Validate() error {
	n := uint32(len(m.Vertices))
	for i, f := range m.Faces {
		if f[0] >= n || f[1] >= n || f[2] >= n {
			return fmt.Errorf("%w: face %d references missing vertex", domain.ErrInvalidInput, i)
		}
	}
	return nil
}

// Factory allocates content elements. Implementations decide the physical backing.
type Factory interface {
	NewImage(img image.Image) (ImageContent, error)
	NewText(text string) (TextContent, error)
	NewAudio(audio AudioData) (AudioContent, error)
	NewMesh(mesh MeshData) (MeshContent, error)
}
