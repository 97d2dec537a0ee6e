package protocol

import (
	"fmt"
	"strings"
)

// Request is a parsed command line.
type Request struct {
	Verb     string
	Filename string
}

// String renders the request as it appears on the wire, minus the newline.
func (r Request) String() string {
	return r.Verb + " " + r.Filename
}

// ParseRequest splits a command line into verb and filename and validates
// both. Checks run in wire order: token count, filename, verb.
func ParseRequest(line string) (Request, error) {
	fields := strings.Fields(line)
	if len(fields) != 2 {
		return Request{}, fmt.Errorf("%w: expected 2 tokens, got %d", ErrBadHeader, len(fields))
	}

	req := Request{Verb: fields[0], Filename: fields[1]}
	if err := ValidateFilename(req.Filename); err != nil {
		return req, err
	}

	switch req.Verb {
	case VerbRead, VerbWrite:
		return req, nil
	default:
		return req, fmt.Errorf("%w: %q", ErrUnknownCommand, req.Verb)
	}
}

// ValidateFilename rejects names that could escape or alias the storage
// root: ".", any path separator and any ".." substring.
func ValidateFilename(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: empty", ErrInvalidFilename)
	case name == ".":
		return fmt.Errorf("%w: %q names the storage root", ErrInvalidFilename, name)
	case strings.ContainsAny(name, `/\`):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidFilename, name)
	case strings.Contains(name, ".."):
		return fmt.Errorf("%w: %q contains \"..\"", ErrInvalidFilename, name)
	case strings.ContainsRune(name, 0):
		return fmt.Errorf("%w: %q contains NUL", ErrInvalidFilename, name)
	}
	return nil
}
