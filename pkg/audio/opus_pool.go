package audio

import "sync"

type opusEncoderKey struct {
	sampleRate    int
	channels      int
	frameDuration int
	opts          OpusOptions
}

var opusEncoderPools sync.Map

func getOpusEncoderPool(key opusEncoderKey) *sync.Pool {
	if pool, ok := opusEncoderPools.Load(key); ok {
		return pool.(*sync.Pool)
	}
	pool := &sync.Pool{}
	actual, _ := opusEncoderPools.LoadOrStore(key, pool)
	return actual.(*sync.Pool)
}

// AcquireOpusEncoder reuses encoders keyed by format and options.
func AcquireOpusEncoder(sampleRate, channels, frameDurationMs int, opts OpusOptions) (*OpusEncoder, error) {
	key := opusEncoderKey{
		sampleRate:    sampleRate,
		channels:      channels,
		frameDuration: frameDurationMs,
		opts:          opts,
	}
	if v := getOpusEncoderPool(key).Get(); v != nil {
		enc := v.(*OpusEncoder)
		if enc.encoder != nil {
			return enc, nil
		}
	}
	return NewOpusEncoder(sampleRate, channels, frameDurationMs, opts)
}

// ReleaseOpusEncoder resets enc and returns it to its pool.
func ReleaseOpusEncoder(enc *OpusEncoder) {
	if enc == nil {
		return
	}
	enc.mutex.Lock()
	if enc.encoder == nil || enc.encoder.Reset() != nil {
		enc.mutex.Unlock()
		return
	}
	enc.mutex.Unlock()
	key := opusEncoderKey{
		sampleRate:    enc.sampleRate,
		channels:      enc.channels,
		frameDuration: enc.frameDuration,
		opts:          enc.opts,
	}
	getOpusEncoderPool(key).Put(enc)
}
