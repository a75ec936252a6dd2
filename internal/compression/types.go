package compression

import (
	"errors"
	"fmt"

	"kleinimg/internal/common"
	"kleinimg/internal/protocol"
)

// ErrAnimated marks an image skipped because it is an animated format.
var ErrAnimated = errors.New("animated images are not re-encoded")

// Options holds the user-set compression options.
type Options struct {
	Quality     int     `json:"quality"`
	ResizeToFit bool    `json:"resize_to_fit"`
	ConvertPNGs bool    `json:"convert_pngs"`
	Oversample  float64 `json:"oversample"`
}

// DefaultOptions returns the options a fresh install starts with.
func DefaultOptions() Options {
	return Options{
		Quality:     common.DefaultQuality,
		ResizeToFit: common.DefaultResizeToFit,
		ConvertPNGs: common.DefaultConvertPNGs,
		Oversample:  common.DefaultOversample,
	}
}

// Validate checks the option ranges.
func (o Options) Validate() error {
	if o.Quality < 1 || o.Quality > 100 {
		return fmt.Errorf("quality must be between 1 and 100, got %d", o.Quality)
	}
	if o.Oversample <= 0 {
		return fmt.Errorf("oversample must be positive, got %v", o.Oversample)
	}
	return nil
}

// Sink receives the results of compress-image jobs. Implementations must be
// safe for concurrent use. Done is called once per accepted job, after every
// SetFill and CompressError of that job.
type Sink interface {
	SetFill(msg protocol.SetFill)
	CompressError(msg protocol.CompressError)
	Done(imageHash string)
}
