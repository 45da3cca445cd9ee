package content

import "image"

// Compile-time check: InMemoryFactory implements Factory.
var _ Factory = InMemoryFactory{}

// InMemoryFactory keeps every element on the heap.
type InMemoryFactory struct{}

// NewImage wraps img.
func (InMemoryFactory) NewImage(img image.Image) (ImageContent, error) {
	return &InMemoryImage{img: img}, nil
}

// NewText wraps text.
func (InMemoryFactory) NewText(text string) (TextContent, error) {
	return &InMemoryText{text: text}, nil
}

// NewAudio wraps audio.
func (InMemoryFactory) NewAudio(audio AudioData) (AudioContent, error) {
	return &InMemoryAudio{audio: audio}, nil
}

// NewMesh validates and wraps mesh.
func (InMemoryFactory) NewMesh(mesh MeshData) (MeshContent, error) {
	if err := mesh.Validate(); err != nil {
		return nil, err
	}
	return &InMemoryMesh{mesh: mesh}, nil
}

// InMemoryImage is a heap-backed image.
type InMemoryImage struct{ img image.Image }

func (*InMemoryImage) Type() Type                    { return Image }
func (c *InMemoryImage) Image() (image.Image, error) { return c.img, nil }

// InMemoryText is a heap-backed text.
type InMemoryText struct{ text string }

func (*InMemoryText) Type() Type              { return Text }
func (c *InMemoryText) Text() (string, error) { return c.text, nil }

// InMemoryAudio is heap-backed audio.
type InMemoryAudio struct{ audio AudioData }

func (*InMemoryAudio) Type() Type                  { return Audio }
func (c *InMemoryAudio) Audio() (AudioData, error) { return c.audio, nil }

// InMemoryMesh is a heap-backed mesh.
type InMemoryMesh struct{ mesh MeshData }

func (*InMemoryMesh) Type() Type                { return Mesh }
func (c *InMemoryMesh) Mesh() (MeshData, error) { return c.mesh, nil }
