package clip

import "errors"

var (
	ErrUnknownFormat     = errors.New("clip: unknown audio format")
	ErrUnsupportedFormat = errors.New("clip: unsupported audio layout")
	ErrEmptyClip         = errors.New("clip: no audio frames")
	ErrInvalidSampleRate = errors.New("clip: invalid sample rate")
)
