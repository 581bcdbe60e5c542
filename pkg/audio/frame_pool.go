package audio

import "sync"

// framePool recycles the PCM frames StreamResampler hands out and the float
// scratch AppendPCM converts into. A stream with a fixed frame size settles
// on one allocation per frame in flight.
type framePool[T int16 | float32] struct {
	p sync.Pool
}

func (fp *framePool[T]) get(n int) []T {
	if v, ok := fp.p.Get().(*[]T); ok && cap(*v) >= n {
		return (*v)[:n]
	}
	return make([]T, n)
}

func (fp *framePool[T]) put(buf []T) {
	if cap(buf) == 0 {
		return
	}
	buf = buf[:0]
	fp.p.Put(&buf)
}

var (
	pcmFrames    framePool[int16]
	floatScratch framePool[float32]
)

// ReleaseFrame hands a frame from PopFrame or PopRemainderPadded back for
// reuse. The frame must not be touched afterwards.
func ReleaseFrame(frame []int16) {
	pcmFrames.put(frame)
}
