package common

import (
	"errors"
	"fmt"
)

var (
	ErrBusy            = errors.New("another scan or compression is in progress")
	ErrNothingSelected = errors.New("no images selected for compression")
	ErrIndexOutOfRange = errors.New("row index out of range")
	ErrUnknownNode     = errors.New("node not found")
	ErrImageNotFound   = errors.New("image not found")
	ErrNoDocument      = errors.New("no document loaded")
)

// DecodeError reports source bytes that could not be read as an image.
type DecodeError struct {
	ImageHash string
	Err       error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode image %s: %v", e.ImageHash, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// CompressionError wraps a failure that aborted one image group.
type CompressionError struct {
	Operation string
	ImageHash string
	Err       error
}

func (e *CompressionError) Error() string {
	if e.ImageHash != "" {
		return fmt.Sprintf("compression %s failed for image %s: %v", e.Operation, e.ImageHash, e.Err)
	}
	return fmt.Sprintf("compression %s failed: %v", e.Operation, e.Err)
}

func (e *CompressionError) Unwrap() error {
	return e.Err
}

// NewCompressionError creates a new compression error
func NewCompressionError(operation, imageHash string, err error) *CompressionError {
	return &CompressionError{
		Operation: operation,
		ImageHash: imageHash,
		Err:       err,
	}
}
