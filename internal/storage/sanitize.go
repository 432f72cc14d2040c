package storage

import (
	"errors"
	"strings"
)

// ErrInvalidName is returned when a client file name has no usable base name.
var ErrInvalidName = errors.New("invalid file name")

// BaseName returns the last path element of a client-supplied file name.
// Both slash and backslash count as separators so that names produced on
// Windows clients cannot smuggle directory components through.
func BaseName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	if name == "" || name == "." || name == ".." || strings.ContainsRune(name, 0) {
		return "", ErrInvalidName
	}
	return name, nil
}
