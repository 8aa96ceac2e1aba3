package validate

import (
	"encoding/hex"
	"log"
)

// VendorMarker is the Ruuvi Innovations manufacturer id (0x0499) as it appears on the air.
var VendorMarker = [2]byte{0x99, 0x04}

type Class int

const (
	Candidate Class = iota
	Empty
	TooShort
	WrongVendor
	TruncatedVendorFrame
)

func (c Class) String() string {
	switch c {
	case Candidate:
		return "candidate"
	case Empty:
		return "empty"
	case TooShort:
		return "too_short"
	case WrongVendor:
		return "wrong_vendor"
	case TruncatedVendorFrame:
		return "truncated_vendor_frame"
	default:
		return "unknown"
	}
}

// Result of a classification. Format and Payload are only set for Candidate;
// Payload starts at the format byte.
type Result struct {
	Class   Class
	Format  byte
	Payload []byte
}

// Classifier gates raw advertisement payloads. Empty and foreign-vendor payloads
// are reported once per source address for the life of the process; both kinds
// share the same set. Not safe for concurrent use.
type Classifier struct {
	logger *log.Logger
	warned map[string]struct{}
}

func NewClassifier(logger *log.Logger) *Classifier {
	return &Classifier{logger: logger, warned: make(map[string]struct{})}
}

func (c *Classifier) Classify(source string, payload []byte) Result {
	switch {
	case len(payload) == 0:
		c.warnOnce(source, "[frame] null data from %s", source)
		return Result{Class: Empty}
	case len(payload) < 2:
		c.logger.Printf("[frame] too short message from %s, length: %d", source, len(payload))
		return Result{Class: TooShort}
	case payload[0] != VendorMarker[0] || payload[1] != VendorMarker[1]:
		c.warnOnce(source, "[frame] non-ruuvitag message from %s", source)
		return Result{Class: WrongVendor}
	case len(payload) < 3:
		c.logger.Printf("[frame] unexpected message with ruuvitag manufacturer code from %s, data: %s", source, hex.EncodeToString(payload))
		return Result{Class: TruncatedVendorFrame}
	}
	return Result{Class: Candidate, Format: payload[2], Payload: payload[2:]}
}

// suppressed reports whether source already produced its one warning.
func (c *Classifier) suppressed(source string) bool {
	_, ok := c.warned[source]
	return ok
}

func (c *Classifier) warnOnce(source, format string, args ...any) {
	if _, ok := c.warned[source]; ok {
		return
	}
	c.warned[source] = struct{}{}
	c.logger.Printf(format, args...)
}
