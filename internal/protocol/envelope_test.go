package protocol

import (
	"bytes"
	"errors"
	"reflect"
	"testing"

	"kleinimg/internal/document"
	"kleinimg/internal/scan"
)

func TestSelectedImagesWireFormat(t *testing.T) {
	msg := SelectedImages{Images: scan.ImageMap{"H1": {"n1": true}}}

	data, err := Marshal(msg)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	expected := `{"type":"selected-images","message":{"H1":{"n1":true}}}`
	if string(data) != expected {
		t.Errorf("Expected %s, got %s", expected, data)
	}

	decoded, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	got, ok := decoded.(SelectedImages)
	if !ok {
		t.Fatalf("Expected SelectedImages, got %T", decoded)
	}
	if !reflect.DeepEqual(got.Images, msg.Images) {
		t.Errorf("Expected %v, got %v", msg.Images, got.Images)
	}
}

func TestSelectedImagesNull(t *testing.T) {
	data, err := Marshal(SelectedImages{})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if string(data) != `{"type":"selected-images","message":null}` {
		t.Errorf("Unexpected encoding %s", data)
	}

	decoded, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if decoded.(SelectedImages).Images != nil {
		t.Error("Expected nil image map for an empty selection")
	}
}

func TestCompressImageCarriesBytesAndGeometry(t *testing.T) {
	msg := CompressImage{
		ImageHash: "H1",
		Bytes:     []byte{0x89, 0x50, 0x4e, 0x47, 0x00, 0xff},
		NodeList: []document.NodeDescriptor{{
			ID:         "n1",
			Fills:      []document.FillSpec{{ScaleMode: document.ScaleFit, ImageHash: "H1"}},
			Width:      120.5,
			Height:     60,
			TargetHash: "H1",
		}},
	}

	data, err := Marshal(msg)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	decoded, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	got := decoded.(CompressImage)
	if !bytes.Equal(got.Bytes, msg.Bytes) {
		t.Errorf("Expected bytes %v, got %v", msg.Bytes, got.Bytes)
	}
	if !reflect.DeepEqual(got.NodeList, msg.NodeList) {
		t.Errorf("Expected node list %+v, got %+v", msg.NodeList, got.NodeList)
	}
}

func TestUnmarshal_StartScanWithoutBody(t *testing.T) {
	decoded, err := Unmarshal([]byte(`{"type":"start-scan"}`))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if _, ok := decoded.(StartScan); !ok {
		t.Errorf("Expected StartScan, got %T", decoded)
	}
}

func TestUnmarshal_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"not json", `nope`},
		{"unknown type", `{"type":"resize-everything","message":{}}`},
		{"bad body", `{"type":"set-fill","message":{"fillIndex":"zero"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Unmarshal([]byte(tt.input)); err == nil {
				t.Error("Expected error")
			}
		})
	}

	_, err := Unmarshal([]byte(`{"type":"resize-everything"}`))
	if !errors.Is(err, ErrUnknownType) {
		t.Errorf("Expected ErrUnknownType, got %v", err)
	}
}
