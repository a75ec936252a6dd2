// Package sniff classifies image buffers by their leading magic bytes.
package sniff

import (
	"encoding/hex"
	"strings"
)

// MIME types recognised by MIMEType.
const (
	PNG  = "image/png"
	GIF  = "image/gif"
	JPEG = "image/jpeg"
	PDF  = "application/pdf"
	ZIP  = "application/zip"
)

var signatures = map[string]string{
	"89504E47": PNG,
	"47494638": GIF,
	"25504446": PDF,
	"504B0304": ZIP,
	"FFD8FFDB": JPEG,
	"FFD8FFE0": JPEG,
	"FFD8FFE1": JPEG,
	"FFD8FFE2": JPEG,
	"FFD8FFE3": JPEG,
	"FFD8FFE8": JPEG,
	"FFD8FFEE": JPEG,
}

// Signature returns the first four bytes of b as an uppercase hex string,
// or "" when b is shorter than four bytes.
func Signature(b []byte) string {
	if len(b) < 4 {
		return ""
	}
	return strings.ToUpper(hex.EncodeToString(b[:4]))
}

// MIMEType returns the MIME type for b, or "" when the signature is unknown.
func MIMEType(b []byte) string {
	return signatures[Signature(b)]
}

// IsAnimated reports whether b is in a format that may carry animation.
// Every GIF is treated as animated.
func IsAnimated(b []byte) bool {
	return MIMEType(b) == GIF
}
