package stream

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Version is a parsed "Major.Minor" stream version attribute.
type Version struct {
	Major, Minor uint8
}

// DefaultVersion is the version this module negotiates: RFC 6120 requires at
// least 1.0.
var DefaultVersion = Version{Major: 1, Minor: 0}

// ParseVersion parses a "Major.Minor" string.
func ParseVersion(s string) (Version, error) {
	parts := strings.SplitN(s, ".", 2)
	if len(parts) != 2 {
		return Version{}, errors.New("stream: malformed version")
	}
	major, err := strconv.ParseUint(parts[0], 10, 8)
	if err != nil {
		return Version{}, err
	}
	minor, err := strconv.ParseUint(parts[1], 10, 8)
	if err != nil {
		return Version{}, err
	}
	return Version{Major: uint8(major), Minor: uint8(minor)}, nil
}

// SupportsBind reports whether the version is at least 1.0, the minimum this
// module will negotiate with.
func (v Version) SupportsBind() bool {
	return v.Major >= 1
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}
