package gimi

import (
	"bytes"
	"testing"
)

func TestReadBoxHeaderLargesize(t *testing.T) {
	data := append(u32(1), "mdat"...)
	data = append(data, u64(16+4)...)
	data = append(data, []byte{1, 2, 3, 4}...)

	h, err := ReadBoxHeader(bytes.NewReader(data), 0, int64(len(data)))
	if err != nil {
		t.Fatalf("largesize test failed, %v", err)
	}
	if h.Size != 20 || h.HeaderSize != 16 {
		t.Errorf("largesize test failed, size %d header %d", h.Size, h.HeaderSize)
	}
	if h.PayloadSize() != 4 {
		t.Errorf("largesize payload test failed, actual %d", h.PayloadSize())
	}
}

func TestReadBoxHeaderZeroSize(t *testing.T) {
	data := append(u32(0), "mdat"...)
	data = append(data, make([]byte, 100)...)

	h, err := ReadBoxHeader(bytes.NewReader(data), 0, int64(len(data)))
	if err != nil {
		t.Fatalf("zero size test failed, %v", err)
	}
	if h.Size != int64(len(data)) {
		t.Errorf("zero size test failed, actual %d", h.Size)
	}
}

func TestReadBoxHeaderOverrun(t *testing.T) {
	data := append(u32(1000), "free"...)
	if _, err := ReadBoxHeader(bytes.NewReader(data), 0, int64(len(data))); err == nil {
		t.Errorf("overrun test failed, expecting error")
	}
}

func TestWalkBoxes(t *testing.T) {
	data := append(box("free", []byte{1}), box("skip", []byte{2, 3})...)

	var types []string
	err := walkBoxes(bytes.NewReader(data), 0, int64(len(data)), int64(len(data)), func(h *BoxHeader) error {
		types = append(types, h.Type)
		return nil
	})
	if err != nil {
		t.Fatalf("walk test failed, %v", err)
	}
	if len(types) != 2 || types[0] != "free" || types[1] != "skip" {
		t.Errorf("walk test failed, actual %v", types)
	}
}
