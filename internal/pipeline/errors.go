package pipeline

import "errors"

var (
	// ErrUnreadableImage marks a source file that cannot be decoded as an image.
	ErrUnreadableImage = errors.New("unreadable image")
	// ErrThumbnailWrite marks an I/O or encode failure while writing a derivative.
	ErrThumbnailWrite = errors.New("thumbnail write failed")
)
