package wakeword

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
)

// templateMagic identifies a wake-word template file.
const templateMagic = 0x46575754 // "FWWT"

// TemplateModel scores audio against a precomputed wake-phrase template.
//
// The embedding for a frame is a vector of log band energies from a
// Goertzel filter bank; the window score is the cosine similarity between
// the flattened window and the template, folded into [0, 1]. Templates are
// produced offline from recordings of the wake phrase.
type TemplateModel struct {
	template   []float32
	windowSize int
	bands      []float64 // band center frequencies in Hz
	sampleRate int
}

// LoadTemplateModel reads a template file from disk.
//
// File layout, little-endian: uint32 magic, uint32 window size, uint32 band
// count, uint32 sample rate, then windowSize*bandCount float32 template
// values, then bandCount float32 band center frequencies.
func LoadTemplateModel(path string) (*TemplateModel, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("wakeword: open model: %w", err)
	}
	defer f.Close()

	var hdr struct {
		Magic      uint32
		WindowSize uint32
		Bands      uint32
		SampleRate uint32
	}
	if err := binary.Read(f, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("wakeword: read model header: %w", err)
	}
	if hdr.Magic != templateMagic {
		return nil, fmt.Errorf("wakeword: %s is not a wake-word template", path)
	}
	if hdr.WindowSize == 0 || hdr.Bands == 0 || hdr.SampleRate == 0 {
		return nil, fmt.Errorf("wakeword: malformed model header in %s", path)
	}

	template := make([]float32, hdr.WindowSize*hdr.Bands)
	if err := binary.Read(f, binary.LittleEndian, template); err != nil {
		return nil, fmt.Errorf("wakeword: read template: %w", err)
	}

	centers := make([]float32, hdr.Bands)
	if err := binary.Read(f, binary.LittleEndian, centers); err != nil {
		return nil, fmt.Errorf("wakeword: read band centers: %w", err)
	}
	bands := make([]float64, hdr.Bands)
	for i, c := range centers {
		bands[i] = float64(c)
	}

	return &TemplateModel{
		template:   template,
		windowSize: int(hdr.WindowSize),
		bands:      bands,
		sampleRate: int(hdr.SampleRate),
	}, nil
}

// NewTemplateModel builds a model directly from its parts. Used in tests
// and by tooling that generates templates.
func NewTemplateModel(template []float32, windowSize int, bands []float64, sampleRate int) (*TemplateModel, error) {
	if windowSize <= 0 || len(bands) == 0 {
		return nil, fmt.Errorf("wakeword: invalid model shape (window %d, bands %d)", windowSize, len(bands))
	}
	if len(template) != windowSize*len(bands) {
		return nil, fmt.Errorf("wakeword: template length %d does not match %dx%d", len(template), windowSize, len(bands))
	}
	return &TemplateModel{
		template:   template,
		windowSize: windowSize,
		bands:      bands,
		sampleRate: sampleRate,
	}, nil
}

// WindowSize returns the number of embedding frames the template spans.
func (m *TemplateModel) WindowSize() int {
	return m.windowSize
}

// Embed computes log band energies for one frame.
func (m *TemplateModel) Embed(samples []int16) ([]float32, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("wakeword: empty frame")
	}

	emb := make([]float32, len(m.bands))
	for i, freq := range m.bands {
		p := goertzel(samples, freq, m.sampleRate)
		emb[i] = float32(math.Log1p(p))
	}
	return emb, nil
}

// Score returns the cosine similarity between the window and the template,
// folded into [0, 1].
func (m *TemplateModel) Score(window [][]float32) (float64, error) {
	if len(window) != m.windowSize {
		return 0, fmt.Errorf("wakeword: window has %d frames, model needs %d", len(window), m.windowSize)
	}

	var dot, wNorm, tNorm float64
	i := 0
	for _, emb := range window {
		if len(emb) != len(m.bands) {
			return 0, fmt.Errorf("wakeword: embedding has %d bands, model needs %d", len(emb), len(m.bands))
		}
		for _, v := range emb {
			t := float64(m.template[i])
			w := float64(v)
			dot += w * t
			wNorm += w * w
			tNorm += t * t
			i++
		}
	}

	if wNorm == 0 || tNorm == 0 {
		return 0, nil
	}

	cos := dot / (math.Sqrt(wNorm) * math.Sqrt(tNorm))
	return (cos + 1) / 2, nil
}

// goertzel computes the power of a single frequency component.
func goertzel(samples []int16, freq float64, sampleRate int) float64 {
	if sampleRate <= 0 {
		return 0
	}
	omega := 2 * math.Pi * freq / float64(sampleRate)
	coeff := 2 * math.Cos(omega)

	var s0, s1, s2 float64
	for _, sample := range samples {
		s0 = float64(sample)/32768.0 + coeff*s1 - s2
		s2 = s1
		s1 = s0
	}

	power := s1*s1 + s2*s2 - coeff*s1*s2
	return power / float64(len(samples))
}

var _ Model = (*TemplateModel)(nil)
