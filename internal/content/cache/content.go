package cache

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"image/png"
	"math"
	"runtime"

	"github.com/v0idness/archipanion-ve/internal/domain"
	"github.com/v0idness/archipanion-ve/internal/domain/content"
)

var _ content.Factory = (*Cache)(nil)

// cached is embedded by every element; the element owns the handle's lifetime.
// Readers keep the element alive until load returns, or the cleanup could
// remove the file mid-read.
type cached struct {
	cache *Cache
	h     *handle
}

// Path returns the backing file path.
func (c *cached) Path() string { return c.h.path }

type imageContent struct{ cached }

func (*imageContent) Type() content.Type { return content.Image }

func (e *imageContent) Image() (image.Image, error) {
	data, err := e.cache.load(e.h)
	runtime.KeepAlive(e)
	if err != nil {
		return nil, err
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode cached image: %w", err)
	}
	return img, nil
}

type textContent struct{ cached }

func (*textContent) Type() content.Type { return content.Text }

func (e *textContent) Text() (string, error) {
	data, err := e.cache.load(e.h)
	runtime.KeepAlive(e)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

type audioContent struct{ cached }

func (*audioContent) Type() content.Type { return content.Audio }

func (e *audioContent) Audio() (content.AudioData, error) {
	data, err := e.cache.load(e.h)
	runtime.KeepAlive(e)
	if err != nil {
		return content.AudioData{}, err
	}
	return decodeAudio(data)
}

type meshContent struct{ cached }

func (*meshContent) Type() content.Type { return content.Mesh }

func (e *meshContent) Mesh() (content.MeshData, error) {
	data, err := e.cache.load(e.h)
	runtime.KeepAlive(e)
	if err != nil {
		return content.MeshData{}, err
	}
	return decodeMesh(data)
}

// NewImage stores img as PNG.
func (c *Cache) NewImage(img image.Image) (content.ImageContent, error) {
	if img == nil {
		return nil, fmt.Errorf("%w: nil image", domain.ErrInvalidInput)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	h, err := c.store(buf.Bytes())
	if err != nil {
		return nil, err
	}
	e := &imageContent{cached{cache: c, h: h}}
	track(c, e, h)
	return e, nil
}

// NewText stores text as UTF-8.
func (c *Cache) NewText(text string) (content.TextContent, error) {
	h, err := c.store([]byte(text))
	if err != nil {
		return nil, err
	}
	e := &textContent{cached{cache: c, h: h}}
	track(c, e, h)
	return e, nil
}

// NewAudio stores audio as a little-endian header followed by the samples.
func (c *Cache) NewAudio(audio content.AudioData) (content.AudioContent, error) {
	if audio.Channels <= 0 || audio.SampleRate <= 0 {
		return nil, fmt.Errorf("%w: audio needs channels and sample rate", domain.ErrInvalidInput)
	}
	h, err := c.store(encodeAudio(audio))
	if err != nil {
		return nil, err
	}
	e := &audioContent{cached{cache: c, h: h}}
	track(c, e, h)
	return e, nil
}

// NewMesh stores mesh as little-endian vertex and face arrays.
func (c *Cache) NewMesh(mesh content.MeshData) (content.MeshContent, error) {
	if err := mesh.Validate(); err != nil {
		return nil, err
	}
	h, err := c.store(encodeMesh(mesh))
	if err != nil {
		return nil, err
	}
	e := &meshContent{cached{cache: c, h: h}}
	track(c, e, h)
	return e, nil
}

// Audio layout: channels u16 | sample rate u32 | samples i16...
func encodeAudio(a content.AudioData) []byte {
	buf := make([]byte, 6+2*len(a.Samples))
	binary.LittleEndian.PutUint16(buf[0:], uint16(a.Channels))
	binary.LittleEndian.PutUint32(buf[2:], uint32(a.SampleRate))
	for i, s := range a.Samples {
		binary.LittleEndian.PutUint16(buf[6+2*i:], uint16(s))
	}
	return buf
}

func decodeAudio(data []byte) (content.AudioData, error) {
	if len(data) < 6 || (len(data)-6)%2 != 0 {
		return content.AudioData{}, fmt.Errorf("corrupt cached audio: %d bytes", len(data))
	}
	a := content.AudioData{
		Channels:   int(binary.LittleEndian.Uint16(data[0:])),
		SampleRate: int(binary.LittleEndian.Uint32(data[2:])),
		Samples:    make([]int16, (len(data)-6)/2),
	}
	for i := range a.Samples {
		a.Samples[i] = int16(binary.LittleEndian.Uint16(data[6+2*i:]))
	}
	return a, nil
}

// Mesh layout: vertex count u32 | face count u32 | vertices f32x3... | faces u32x3...
func encodeMesh(m content.MeshData) []byte {
	buf := make([]byte, 8+12*len(m.Vertices)+12*len(m.Faces))
	binary.LittleEndian.PutUint32(buf[0:], uint32(len(m.Vertices)))
	binary.LittleEndian.PutUint32(buf[4:], uint32(len(m.Faces)))
	off := 8
	for _, v := range m.Vertices {
		for _, x := range v {
			binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(x))
			off += 4
		}
	}
	for _, f := range m.Faces {
		for _, idx := range f {
			binary.LittleEndian.PutUint32(buf[off:], idx)
			off += 4
		}
	}
	return buf
}

func decodeMesh(data []byte) (content.MeshData, error) {
	if len(data) < 8 {
		return content.MeshData{}, fmt.Errorf("corrupt cached mesh: %d bytes", len(data))
	}
	nv := int(binary.LittleEndian.Uint32(data[0:]))
	nf := int(binary.LittleEndian.Uint32(data[4:]))
	if len(data) != 8+12*nv+12*nf {
		return content.MeshData{}, fmt.Errorf("corrupt cached mesh: %d vertices, %d faces in %d bytes", nv, nf, len(data))
	}
	m := content.MeshData{Vertices: make([][3]float32, nv), Faces: make([][3]uint32, nf)}
	off := 8
	for i := range m.Vertices {
		for j := range 3 {
			m.Vertices[i][j] = math.Float32frombits(binary.LittleEndian.Uint32(data[off:]))
			off += 4
		}
	}
	for i := range m.Faces {
		for j := range 3 {
			m.Faces[i][j] = binary.LittleEndian.Uint32(data[off:])
			off += 4
		}
	}
	return m, nil
}
