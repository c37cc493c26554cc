package util

import (
	"errors"
	"strings"
	"unicode"
)

// MaxFileNameLen caps the stored name; longer names keep their extension.
const MaxFileNameLen = 180

var ErrInvalidFileName = errors.New("invalid file name")

// SanitizeFileName flattens path separators, drops control characters and
// rejects traversal or empty names.
func SanitizeFileName(name string) (string, error) {
	if strings.Contains(name, "..") {
		return "", ErrInvalidFileName
	}
	s := strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\':
			return '_'
		case unicode.IsControl(r):
			return -1
		}
		return r
	}, strings.TrimSpace(name))
	s = strings.TrimSpace(s)
	if s == "" || s == "." {
		return "", ErrInvalidFileName
	}
	if r := []rune(s); len(r) > MaxFileNameLen {
		ext := []rune(extension(s))
		s = string(r[:MaxFileNameLen-len(ext)]) + string(ext)
	}
	return s, nil
}

func extension(s string) string {
	i := strings.LastIndexByte(s, '.')
	if i <= 0 || len(s)-i > 10 {
		return ""
	}
	return s[i:]
}
