package utils

import (
	"regexp"
	"strings"
)

// --- Filename Sanitization ---
var invalidFilenameChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1F]`) // Characters invalid in Windows/Unix filenames
var consecutiveUnderscores = regexp.MustCompile(`_+`)                  // Pattern to replace multiple underscores with one
const maxFilenameLength = 100                                          // Max length for sanitized filenames

// SanitizeFilename cleans a string to be safe for use as a filename component
func SanitizeFilename(name string) string {
	sanitized := invalidFilenameChars.ReplaceAllString(name, "_")
	sanitized = consecutiveUnderscores.ReplaceAllString(sanitized, "_")
	sanitized = strings.Trim(sanitized, "_ .")

	if len(sanitized) > maxFilenameLength {
		sanitized = sanitized[:maxFilenameLength]
		sanitized = strings.Trim(sanitized, "_ .")
	}

	if sanitized == "" {
		sanitized = "untitled"
	}
	return sanitized
}

// LogoFilename returns the output file name for a brand slug.
func LogoFilename(slug string) string {
	return SanitizeFilename(slug) + ".png"
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// CompactName lowercases a brand name and strips everything but ASCII letters and digits.
// "Acme Casino" -> "acmecasino". Used for domain guesses and URL keyword matching.
func CompactName(name string) string {
	return nonAlnum.ReplaceAllString(strings.ToLower(name), "")
}

// HyphenatedName lowercases a brand name and joins its alphanumeric runs with hyphens.
// "Acme Casino!" -> "acme-casino".
func HyphenatedName(name string) string {
	return strings.Trim(nonAlnum.ReplaceAllString(strings.ToLower(name), "-"), "-")
}
