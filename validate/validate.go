// Package validate normalizes and checks raw username and proxy input.
//
// Validation failures are returned as *Error values carrying a Reason so callers
// can report them per item without aborting a whole batch:
//
//	targets, problems := validate.ParseList("@alice, bob,, alice", validate.Options{})
//	for _, p := range problems {
//	    logger.Warn("skipping target", "input", p.Input, "reason", p.Reason)
//	}
package validate

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// MinUsernameLength is the shortest accepted username.
	MinUsernameLength = 1
	// MaxUsernameLength is the longest accepted username.
	MaxUsernameLength = 30
)

// separators are tried in order; the first one present in the input is the only one used.
var separators = []string{",", ";", "\n", "\t", " "}

// Reason classifies why an input was rejected.
type Reason int

const (
	// EmptyInput means nothing was left after stripping.
	EmptyInput Reason = iota
	// TooLong means the username exceeds MaxUsernameLength.
	TooLong
	// InvalidCharacter means a character outside [A-Za-z0-9._] was found.
	InvalidCharacter
	// InvalidProxy means a proxy string is not ip:port[:user:pass].
	InvalidProxy
)

// String returns the string representation of the reason.
func (r Reason) String() string {
	switch r {
	case EmptyInput:
		return "empty input"
	case TooLong:
		return "too long"
	case InvalidCharacter:
		return "invalid character"
	case InvalidProxy:
		return "invalid proxy"
	default:
		return "unknown"
	}
}

// MarshalJSON implements json.Marshaler.
func (r Reason) MarshalJSON() ([]byte, error) {
	return []byte(`"` + r.String() + `"`), nil
}

// Error describes a rejected input.
type Error struct {
	Input  string `json:"input"`
	Reason Reason `json:"reason"`
	Detail string `json:"detail,omitempty"`
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%q: %s (%s)", e.Input, e.Reason, e.Detail)
	}
	return fmt.Sprintf("%q: %s", e.Input, e.Reason)
}

// ReasonOf extracts the Reason from err. The second result is false if err is not an *Error.
func ReasonOf(err error) (Reason, bool) {
	var verr *Error
	if errors.As(err, &verr) {
		return verr.Reason, true
	}
	return 0, false
}

// Options controls normalization.
type Options struct {
	// CaseSensitive keeps the original case instead of folding to lowercase.
	CaseSensitive bool
}

// Normalize strips a leading @ and surrounding whitespace from raw and checks
// length and charset. Unless opts.CaseSensitive is set the result is lowercase.
func Normalize(raw string, opts Options) (string, error) {
	name := strings.TrimLeft(strings.TrimSpace(raw), "@")
	if name == "" {
		return "", &Error{Input: raw, Reason: EmptyInput}
	}
	if len(name) > MaxUsernameLength {
		return "", &Error{Input: raw, Reason: TooLong, Detail: fmt.Sprintf("max %d", MaxUsernameLength)}
	}
	for _, c := range name {
		if !isUsernameChar(c) {
			return "", &Error{Input: raw, Reason: InvalidCharacter, Detail: fmt.Sprintf("%q", c)}
		}
	}
	if !opts.CaseSensitive {
		name = strings.ToLower(name)
	}
	return name, nil
}

func isUsernameChar(c rune) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	case c == '.' || c == '_':
		return true
	}
	return false
}

// ParseList splits raw on the first separator found among comma, semicolon,
// newline, tab and space, normalizes every token and removes duplicates keeping
// the first occurrence. Mixed separators are not split further. Empty tokens are
// dropped silently; invalid tokens are returned as errors and do not abort the parse.
func ParseList(raw string, opts Options) ([]string, []*Error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}

	tokens := []string{raw}
	for _, sep := range separators {
		if strings.Contains(raw, sep) {
			tokens = strings.Split(raw, sep)
			break
		}
	}
	return normalizeAll(tokens, opts)
}

func normalizeAll(tokens []string, opts Options) ([]string, []*Error) {
	var (
		names    []string
		problems []*Error
		seen     = make(map[string]bool, len(tokens))
	)
	for _, tok := range tokens {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		name, err := Normalize(tok, opts)
		if err != nil {
			var verr *Error
			if errors.As(err, &verr) {
				problems = append(problems, verr)
			}
			continue
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names, problems
}

// ParseTargets parses a raw target list with default options and joins any
// per-item problems into a single error. The valid targets are always returned.
func ParseTargets(raw string) ([]string, error) {
	names, problems := ParseList(raw, Options{})
	if len(problems) == 0 {
		return names, nil
	}
	errs := make([]error, len(problems))
	for i, p := range problems {
		errs[i] = p
	}
	return names, errors.Join(errs...)
}

// Dedupe normalizes an already split list, dropping invalid and repeated names.
func Dedupe(list []string, opts Options) ([]string, []*Error) {
	return normalizeAll(list, opts)
}
