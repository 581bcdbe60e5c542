package audio

// StreamResampler keeps resampling state across blocks of a continuous
// stream and hands the result out as fixed-size PCM16 frames.
type StreamResampler struct {
	resampler *soxrStreamResampler
	outBuf    []float32
}

// NewStreamResampler creates a streaming resampler for continuous audio.
// Equal rates pass samples through untouched.
func NewStreamResampler(inRate, outRate int) (*StreamResampler, error) {
	if inRate == outRate {
		return &StreamResampler{}, nil
	}
	r, err := newSoxrStreamResampler(inRate, outRate)
	if err != nil {
		return nil, err
	}
	return &StreamResampler{resampler: r}, nil
}

// Close releases underlying resampler.
func (s *StreamResampler) Close() {
	if s == nil {
		return
	}
	if s.resampler != nil {
		s.resampler.Close()
		s.resampler = nil
	}
	s.outBuf = nil
}

// Append queues float samples for resampling.
func (s *StreamResampler) Append(samples []float32) error {
	if s == nil || len(samples) == 0 {
		return nil
	}
	if s.resampler == nil {
		s.outBuf = append(s.outBuf, samples...)
		return nil
	}
	out, err := s.resampler.Process(samples)
	if err != nil {
		return err
	}
	if len(out) > 0 {
		s.outBuf = append(s.outBuf, out...)
	}
	return nil
}

// AppendPCM queues PCM16 samples for resampling.
func (s *StreamResampler) AppendPCM(pcm []int16) error {
	if s == nil || len(pcm) == 0 {
		return nil
	}
	tmp := Int16SliceToFloat32Into(floatScratch.get(len(pcm)), pcm)
	err := s.Append(tmp)
	floatScratch.put(tmp)
	return err
}

// Flush flushes any remaining buffered samples.
func (s *StreamResampler) Flush() error {
	if s == nil || s.resampler == nil {
		return nil
	}
	out, err := s.resampler.Flush()
	if err != nil {
		return err
	}
	if len(out) > 0 {
		s.outBuf = append(s.outBuf, out...)
	}
	return nil
}

// Buffered returns the number of resampled samples waiting.
func (s *StreamResampler) Buffered() int {
	if s == nil {
		return 0
	}
	return len(s.outBuf)
}

// PopFrame returns a fixed-size PCM16 frame if available. Release the
// frame with ReleaseFrame.
func (s *StreamResampler) PopFrame(frameSize int) ([]int16, bool) {
	if s == nil || frameSize <= 0 || len(s.outBuf) < frameSize {
		return nil, false
	}
	frame := pcmFrames.get(frameSize)
	frame = Float32SliceToInt16SliceInto(frame, s.outBuf[:frameSize])
	n := copy(s.outBuf, s.outBuf[frameSize:])
	s.outBuf = s.outBuf[:n]
	return frame, true
}

// PopRemainderPadded returns the remaining samples padded to frameSize.
func (s *StreamResampler) PopRemainderPadded(frameSize int) []int16 {
	if s == nil || frameSize <= 0 || len(s.outBuf) == 0 {
		return nil
	}
	if len(s.outBuf) > frameSize {
		s.outBuf = s.outBuf[:frameSize]
	}
	frame := pcmFrames.get(frameSize)
	n := len(s.outBuf)
	Float32SliceToInt16SliceInto(frame[:n], s.outBuf)
	clear(frame[n:])
	s.outBuf = s.outBuf[:0]
	return frame
}
