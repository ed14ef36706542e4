package store

import (
	"errors"
	"strings"
)

var (
	// ErrNotFound is returned when an identity or session does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate is returned when creating an identity whose id is taken.
	ErrDuplicate = errors.New("already exists")

	// ErrConflict is returned by SessionStore.Open when the identity already
	// has an open session.
	ErrConflict = errors.New("open session already exists")

	// ErrAlreadyClosed is returned by SessionStore.Close when another writer
	// closed the session first.
	ErrAlreadyClosed = errors.New("session already closed")
)

// Method is the capture path that produced a trigger.
type Method string

const (
	MethodQR   Method = "QR"
	MethodFace Method = "FACE"
)

// ParseMethod accepts "qr"/"face" in any case.
func ParseMethod(s string) (Method, bool) {
	switch Method(strings.ToUpper(strings.TrimSpace(s))) {
	case MethodQR:
		return MethodQR, true
	case MethodFace:
		return MethodFace, true
	default:
		return "", false
	}
}
