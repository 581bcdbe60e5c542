package output

import (
	"encoding/binary"
	"math"

	"github.com/saker-ai/mixcore/pkg/audio"
)

// BlockReader turns a block callback into an io.Reader of encoded samples.
// Partial blocks are kept between reads.
type BlockReader struct {
	format  SampleFormat
	prepare Callback
	block   []float32
	pos     int
}

// NewBlockReader returns a reader pulling spec-shaped blocks from prepare.
func NewBlockReader(spec Spec, prepare Callback) *BlockReader {
	block := make([]float32, spec.BlockSamples())
	return &BlockReader{
		format:  spec.Format,
		prepare: prepare,
		block:   block,
		pos:     len(block),
	}
}

// Read fills p with whole samples; it never returns an error.
func (r *BlockReader) Read(p []byte) (int, error) {
	bps := r.format.BytesPerSample()
	total := 0
	for len(p)-total >= bps {
		if r.pos == len(r.block) {
			r.prepare(r.block)
			r.pos = 0
		}
		n := min((len(p)-total)/bps, len(r.block)-r.pos)
		r.encode(p[total:], r.block[r.pos:r.pos+n])
		r.pos += n
		total += n * bps
	}
	return total, nil
}

func (r *BlockReader) encode(dst []byte, samples []float32) {
	if r.format == FormatInt16LE {
		for i, s := range samples {
			binary.LittleEndian.PutUint16(dst[i*2:], uint16(audio.Float32ToInt16(s)))
		}
		return
	}
	for i, s := range samples {
		binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(s))
	}
}
