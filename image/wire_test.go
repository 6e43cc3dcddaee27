package image

import (
	"bytes"
	"reflect"
	"testing"
)

func TestWireRoundTrip(t *testing.T) {
	img := cyclicImage()
	img.Objects[1].DetailOID = 77

	data, err := Marshal(img)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	got, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !reflect.DeepEqual(got, img) {
		t.Errorf("round trip\n%+v\nwant\n%+v", got, img)
	}
}

func TestWireDeterministic(t *testing.T) {
	a, err := Marshal(cyclicImage())
	if err != nil {
		t.Fatal(err)
	}
	b, err := Marshal(cyclicImage())
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a, b) {
		t.Error("equal images encoded differently")
	}
}

func TestUnmarshalGarbage(t *testing.T) {
	if _, err := Unmarshal([]byte{0xff, 0x00, 0x13}); err == nil {
		t.Error("expected error for garbage input")
	}
}
