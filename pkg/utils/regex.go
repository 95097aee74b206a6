package utils

import (
	"fmt"
	"regexp"
)

// CompileRegexPatterns compiles URL-extraction patterns for the search backends.
// Every pattern must contain at least one capture group; the first group is the URL.
func CompileRegexPatterns(patterns []string) ([]*regexp.Regexp, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for i, pattern := range patterns {
		if pattern == "" { // Skip empty patterns silently
			continue
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, WrapErrorf(ErrConfigValidation, "invalid regex pattern #%d ('%s')", i+1, pattern)
		}
		if re.NumSubexp() < 1 {
			return nil, WrapErrorf(ErrConfigValidation, "regex pattern #%d ('%s') has no capture group", i+1, pattern)
		}
		compiled = append(compiled, re)
	}
	return compiled, nil
}

// WrapErrorf wraps err with a formatted message. Returns nil if err is nil.
func WrapErrorf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s", err, fmt.Sprintf(format, args...))
}
