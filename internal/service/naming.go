package service

import (
	"strconv"
	"strings"
)

// maxNameAttempts bounds how many consecutive millisecond stamps are tried
// when a generated name is already taken.
const maxNameAttempts = 32

// rawImageName is the pre-transcode name: "<ms>-<original>".
func rawImageName(ms int64, original string) string {
	return strconv.FormatInt(ms, 10) + "-" + original
}

// canonicalName is the normalized image name: "<ms>.<ext>".
func canonicalName(ms int64, ext string) string {
	return strconv.FormatInt(ms, 10) + "." + ext
}

// documentName keeps the lowercased declared extension: "<ms>.<ext>".
func documentName(ms int64, ext string) string {
	if ext == "" {
		return strconv.FormatInt(ms, 10)
	}
	return canonicalName(ms, ext)
}

// sanitizeFileName reduces a client supplied name to a single safe path element.
// It returns "" when nothing usable remains.
func sanitizeFileName(name string) string {
	s := strings.TrimSpace(name)
	s = strings.ReplaceAll(s, "\\", "/")
	if i := strings.LastIndex(s, "/"); i >= 0 {
		s = s[i+1:]
	}
	s = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, s)
	if s == "" || s == "." || s == ".." {
		return ""
	}
	return s
}
