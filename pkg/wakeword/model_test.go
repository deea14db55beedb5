package wakeword

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func sineFrame(freq float64, n, rate int) []int16 {
	s := make([]int16, n)
	for i := range s {
		s[i] = int16(8000 * math.Sin(2*math.Pi*freq*float64(i)/float64(rate)))
	}
	return s
}

// buildModel makes a template from windowSize frames of a reference signal.
func buildModel(t *testing.T, freq float64, windowSize int) (*TemplateModel, [][]int16) {
	t.Helper()

	bands := []float64{300, 600, 1000, 1500, 2500}
	rate := 16000

	probe, err := NewTemplateModel(make([]float32, windowSize*len(bands)), windowSize, bands, rate)
	if err != nil {
		t.Fatal(err)
	}

	frames := make([][]int16, windowSize)
	var template []float32
	for i := range frames {
		frames[i] = sineFrame(freq, 320, rate)
		emb, err := probe.Embed(frames[i])
		if err != nil {
			t.Fatal(err)
		}
		template = append(template, emb...)
	}

	model, err := NewTemplateModel(template, windowSize, bands, rate)
	if err != nil {
		t.Fatal(err)
	}
	return model, frames
}

func TestTemplateModelSelfSimilarity(t *testing.T) {
	model, frames := buildModel(t, 1000, 3)

	window := make([][]float32, len(frames))
	for i, f := range frames {
		emb, err := model.Embed(f)
		if err != nil {
			t.Fatal(err)
		}
		window[i] = emb
	}

	score, err := model.Score(window)
	if err != nil {
		t.Fatal(err)
	}
	if score < 0.99 {
		t.Errorf("self-similarity score = %v, want ~1", score)
	}
}

func TestTemplateModelRejectsDifferentSignal(t *testing.T) {
	model, _ := buildModel(t, 1000, 3)

	self := make([][]float32, 3)
	other := make([][]float32, 3)
	for i := 0; i < 3; i++ {
		var err error
		if self[i], err = model.Embed(sineFrame(1000, 320, 16000)); err != nil {
			t.Fatal(err)
		}
		if other[i], err = model.Embed(sineFrame(300, 320, 16000)); err != nil {
			t.Fatal(err)
		}
	}

	selfScore, _ := model.Score(self)
	otherScore, _ := model.Score(other)
	if otherScore >= selfScore {
		t.Errorf("off-template score %v not below on-template score %v", otherScore, selfScore)
	}
}

func TestTemplateModelShapeErrors(t *testing.T) {
	if _, err := NewTemplateModel(nil, 0, []float64{300}, 16000); err == nil {
		t.Error("zero window size accepted")
	}
	if _, err := NewTemplateModel(make([]float32, 5), 3, []float64{300, 600}, 16000); err == nil {
		t.Error("mismatched template length accepted")
	}

	model, _ := buildModel(t, 1000, 3)
	if _, err := model.Score(make([][]float32, 2)); err == nil {
		t.Error("short window accepted")
	}
	if _, err := model.Embed(nil); err == nil {
		t.Error("empty frame accepted")
	}
}

func writeModelFile(t *testing.T, magic uint32) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "wake.model")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	windowSize, bands := uint32(2), uint32(3)
	hdr := []uint32{magic, windowSize, bands, 16000}
	for _, v := range hdr {
		if err := binary.Write(f, binary.LittleEndian, v); err != nil {
			t.Fatal(err)
		}
	}

	template := []float32{0.1, 0.2, 0.3, 0.4, 0.5, 0.6}
	centers := []float32{300, 1000, 2500}
	if err := binary.Write(f, binary.LittleEndian, template); err != nil {
		t.Fatal(err)
	}
	if err := binary.Write(f, binary.LittleEndian, centers); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadTemplateModel(t *testing.T) {
	path := writeModelFile(t, templateMagic)

	model, err := LoadTemplateModel(path)
	if err != nil {
		t.Fatal(err)
	}
	if model.WindowSize() != 2 {
		t.Errorf("WindowSize = %d, want 2", model.WindowSize())
	}
	if len(model.bands) != 3 || model.bands[1] != 1000 {
		t.Errorf("bands = %v, want centers from file", model.bands)
	}
	if model.sampleRate != 16000 {
		t.Errorf("sampleRate = %d, want 16000", model.sampleRate)
	}
}

func TestLoadTemplateModelRejectsBadMagic(t *testing.T) {
	path := writeModelFile(t, 0xdeadbeef)
	if _, err := LoadTemplateModel(path); err == nil {
		t.Error("bad magic accepted")
	}
}

func TestLoadTemplateModelMissingFile(t *testing.T) {
	if _, err := LoadTemplateModel(filepath.Join(t.TempDir(), "absent.model")); err == nil {
		t.Error("missing file accepted")
	}
}
