package content

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/v0idness/archipanion-ve/internal/domain"
)

func TestDataURL_Text(t *testing.T) {
	f := InMemoryFactory{}
	text, _ := f.NewText("a dog on a beach")

	url, err := EncodeDataURL(text)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := DecodeDataURL(url, f)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tc, ok := got.(TextContent)
	if !ok {
		t.Fatalf("expected text content, got %T", got)
	}
	if s, _ := tc.Text(); s != "a dog on a beach" {
		t.Errorf("expected original text, got %q", s)
	}
}

func TestDataURL_Image(t *testing.T) {
	f := InMemoryFactory{}
	src := image.NewRGBA(image.Rect(0, 0, 2, 2))
	src.Set(1, 1, color.RGBA{R: 255, A: 255})
	img, _ := f.NewImage(src)

	url, err := EncodeDataURL(img)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := DecodeDataURL(url, f)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	decoded, err := got.(ImageContent).Image()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r, _, _, _ := decoded.At(1, 1).RGBA()
	if r != 0xffff {
		t.Errorf("expected red pixel, got r=%d", r)
	}
}

func TestDecodeDataURL_Invalid(t *testing.T) {
	cases := []string{"http://x", "data:image/png,abc", "data:image/png;base64,!!!"}
	for _, c := range cases {
		if _, err := DecodeDataURL(c, InMemoryFactory{}); !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("%q: expected ErrInvalidInput, got %v", c, err)
		}
	}
}

func TestMeshData_Validate(t *testing.T) {
	m := MeshData{Vertices: [][3]float32{{0, 0, 0}, {1, 0, 0}}, Faces: [][3]uint32{{0, 1, 2}}}
	if _, err := (InMemoryFactory{}).NewMesh(m); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
