package output

import (
	"encoding/binary"
	"errors"
	"math"
	"os"
	"testing"
	"time"

	"github.com/go-audio/wav"
)

func TestParseFormat(t *testing.T) {
	t.Parallel()
	cases := []struct {
		raw  string
		want SampleFormat
	}{
		{raw: "", want: FormatFloat32LE},
		{raw: "F32", want: FormatFloat32LE},
		{raw: " int16 ", want: FormatInt16LE},
		{raw: "pcm16", want: FormatInt16LE},
	}
	for _, tc := range cases {
		got, err := ParseFormat(tc.raw)
		if err != nil || got != tc.want {
			t.Fatalf("ParseFormat(%q)=%q,%v, want %q", tc.raw, got, err, tc.want)
		}
	}
	if _, err := ParseFormat("mulaw"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("ParseFormat(mulaw) err=%v, want %v", err, ErrUnsupportedFormat)
	}
}

func TestSpecBlockDuration(t *testing.T) {
	t.Parallel()
	s := Spec{SampleRate: 48000, Channels: 2, BlockSize: 480}
	if s.BlockSamples() != 960 {
		t.Fatalf("block samples=%d, want 960", s.BlockSamples())
	}
	if s.BlockDuration() != 10*time.Millisecond {
		t.Fatalf("block duration=%v, want 10ms", s.BlockDuration())
	}
	if (Spec{}).BlockDuration() != 0 {
		t.Fatal("zero spec has a duration")
	}
}

func counter() (Callback, *int) {
	calls := 0
	return func(dst []float32) {
		calls++
		for i := range dst {
			dst[i] = float32(calls)
		}
	}, &calls
}

func TestBlockReaderFloat32(t *testing.T) {
	t.Parallel()
	prepare, calls := counter()
	r := NewBlockReader(Spec{SampleRate: 8000, Channels: 1, BlockSize: 4, Format: FormatFloat32LE}, prepare)

	// Ten samples span three blocks; the trailing odd bytes are left unread.
	p := make([]byte, 10*4+3)
	n, err := r.Read(p)
	if err != nil || n != 40 {
		t.Fatalf("Read=%d,%v, want 40,nil", n, err)
	}
	if *calls != 3 {
		t.Fatalf("prepare calls=%d, want 3", *calls)
	}
	want := []float32{1, 1, 1, 1, 2, 2, 2, 2, 3, 3}
	for i, w := range want {
		got := math.Float32frombits(binary.LittleEndian.Uint32(p[i*4:]))
		if got != w {
			t.Fatalf("sample %d=%v, want %v", i, got, w)
		}
	}

	p = make([]byte, 2*4)
	if n, _ := r.Read(p); n != 8 || *calls != 3 {
		t.Fatalf("Read=%d calls=%d, want the rest of block 3", n, *calls)
	}
}

func TestBlockReaderInt16(t *testing.T) {
	t.Parallel()
	r := NewBlockReader(Spec{SampleRate: 8000, Channels: 2, BlockSize: 2, Format: FormatInt16LE}, func(dst []float32) {
		copy(dst, []float32{1, -1, 0.5, 0})
	})
	p := make([]byte, 8)
	if n, err := r.Read(p); err != nil || n != 8 {
		t.Fatalf("Read=%d,%v, want 8,nil", n, err)
	}
	want := []int16{32767, -32767, 16383, 0}
	for i, w := range want {
		if got := int16(binary.LittleEndian.Uint16(p[i*2:])); got != w {
			t.Fatalf("sample %d=%d, want %d", i, got, w)
		}
	}
}

func TestNullPull(t *testing.T) {
	t.Parallel()
	n := NewNull()
	buf := make([]float32, 4)
	if n.Pull(buf) {
		t.Fatal("Pull before Open=true")
	}
	if err := n.Start(); !errors.Is(err, ErrNotOpen) {
		t.Fatalf("Start before Open err=%v, want %v", err, ErrNotOpen)
	}

	prepare, calls := counter()
	spec := Spec{SampleRate: 8000, Channels: 2, BlockSize: 2}
	got, err := n.Open(spec, "", prepare)
	if err != nil || got != spec {
		t.Fatalf("Open=%v,%v, want %v", got, err, spec)
	}
	if _, err := n.Open(spec, "", prepare); !errors.Is(err, ErrAlreadyOpen) {
		t.Fatalf("second Open err=%v, want %v", err, ErrAlreadyOpen)
	}
	if n.Pull(buf) {
		t.Fatal("Pull before Start=true")
	}
	if err := n.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !n.Pull(buf) || *calls != 1 || buf[3] != 1 {
		t.Fatalf("calls=%d buf=%v, want one block of ones", *calls, buf)
	}
	if err := n.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if n.Pull(buf) {
		t.Fatal("Pull after Close=true")
	}
}

func TestWAVCaptureOffline(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	c := NewWAVCapture(dir, nil, WithRealtime(false), WithMaxBlocks(4))
	if c.NeedsAudioThread() {
		t.Fatal("offline capture wants an audio thread")
	}
	spec := Spec{SampleRate: 8000, Channels: 2, BlockSize: 16, Format: FormatInt16LE}
	if _, err := c.Open(spec, "", func(dst []float32) {
		for i := range dst {
			dst[i] = 0.5
		}
	}); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := c.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	c.Wait()
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if c.Blocks() != 4 {
		t.Fatalf("blocks=%d, want 4", c.Blocks())
	}

	f, err := os.Open(c.Path())
	if err != nil {
		t.Fatalf("open capture: %v", err)
	}
	defer f.Close()
	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		t.Fatal("capture is not a valid wav file")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		t.Fatalf("decode capture: %v", err)
	}
	if int(dec.SampleRate) != spec.SampleRate || int(dec.NumChans) != spec.Channels {
		t.Fatalf("header rate=%d chans=%d, want %d and %d", dec.SampleRate, dec.NumChans, spec.SampleRate, spec.Channels)
	}
	if len(buf.Data) != 4*spec.BlockSamples() {
		t.Fatalf("samples=%d, want %d", len(buf.Data), 4*spec.BlockSamples())
	}
	for i, v := range buf.Data {
		if v != 16383 {
			t.Fatalf("sample %d=%d, want 16383", i, v)
		}
	}
}

func TestWAVCaptureRealtimeStops(t *testing.T) {
	t.Parallel()
	c := NewWAVCapture(t.TempDir(), nil)
	if !c.NeedsAudioThread() {
		t.Fatal("realtime capture does not want an audio thread")
	}
	if err := c.Start(); !errors.Is(err, ErrNotOpen) {
		t.Fatalf("Start before Open err=%v, want %v", err, ErrNotOpen)
	}
	spec := Spec{SampleRate: 8000, Channels: 1, BlockSize: 16}
	if _, err := c.Open(spec, "", func([]float32) {}); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := c.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if c.Blocks() == 0 {
		t.Fatal("realtime capture wrote no blocks")
	}
}
