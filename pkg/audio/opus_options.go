package audio

import (
	"errors"
	"fmt"

	"github.com/saker-ai/mixcore/pkg/audio/opusx"
)

// OpusOptions tunes a monitor encoder. Zero numeric fields keep the codec
// default.
type OpusOptions struct {
	Bitrate        int    `mapstructure:"bitrate"`
	Complexity     int    `mapstructure:"complexity"`
	VBR            bool   `mapstructure:"vbr"`
	FEC            bool   `mapstructure:"fec"`
	DTX            bool   `mapstructure:"dtx"`
	PacketLossPerc int    `mapstructure:"packet_loss_perc"`
	MaxBandwidth   string `mapstructure:"max_bandwidth"`
}

// DefaultOpusOptions suits a music monitor feed.
func DefaultOpusOptions() OpusOptions {
	return OpusOptions{
		Bitrate:    64000,
		Complexity: 5,
		VBR:        true,
	}
}

// Validate rejects options the codec cannot take.
func (o OpusOptions) Validate() error {
	if o.Complexity < 0 || o.Complexity > 10 {
		return fmt.Errorf("opus complexity %d out of range 0..10", o.Complexity)
	}
	if o.PacketLossPerc < 0 || o.PacketLossPerc > 100 {
		return fmt.Errorf("opus packet loss %d out of range 0..100", o.PacketLossPerc)
	}
	if o.Bitrate < 0 {
		return fmt.Errorf("opus bitrate %d is negative", o.Bitrate)
	}
	if _, _, err := opusx.ParseBandwidth(o.MaxBandwidth); err != nil {
		return err
	}
	return nil
}

func (o OpusOptions) apply(enc *opusx.Encoder) error {
	var errs []error
	if o.Bitrate > 0 {
		errs = append(errs, enc.SetBitrate(o.Bitrate))
	}
	if o.Complexity > 0 {
		errs = append(errs, enc.SetComplexity(o.Complexity))
	}
	errs = append(errs,
		enc.SetVBR(o.VBR),
		enc.SetInBandFEC(o.FEC),
		enc.SetDTX(o.DTX),
	)
	if o.PacketLossPerc > 0 {
		errs = append(errs, enc.SetPacketLossPerc(o.PacketLossPerc))
	}
	bw, ok, err := opusx.ParseBandwidth(o.MaxBandwidth)
	errs = append(errs, err)
	if ok {
		errs = append(errs, enc.SetMaxBandwidth(bw))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("apply opus options: %w", err)
	}
	return nil
}
