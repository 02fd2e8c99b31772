package wgconf

import (
	"errors"
	"strconv"
	"strings"
)

// Error kinds reported by the parser and builder. Match them with errors.Is.
var (
	ErrSyntax                    = errors.New("wgconf: syntax error")
	ErrNoInterfaceSection        = errors.New("wgconf: no [Interface] section")
	ErrMultipleInterfaceSections = errors.New("wgconf: multiple [Interface] sections")
	ErrInvalidInterface          = errors.New("wgconf: invalid interface")
	ErrInvalidPeer               = errors.New("wgconf: invalid peer")
	ErrDuplicatePeerPublicKey    = errors.New("wgconf: duplicate peer public key")
	ErrInvalidName               = errors.New("wgconf: invalid tunnel name")
	ErrInvalidUAPI               = errors.New("wgconf: invalid settings")
)

// ParseError describes a failure to parse or build a configuration.
type ParseError struct {
	// Kind is one of the Err* sentinels above.
	Kind error
	// Line is the 1-based line that caused the error, or the header line of
	// the offending section. Zero when not tied to a line.
	Line int
	// Field names the offending attribute, if any.
	Field string
	Err   error
}

func (e *ParseError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Line > 0 {
		b.WriteString(": line ")
		b.WriteString(strconv.Itoa(e.Line))
	}
	if e.Field != "" {
		b.WriteString(": ")
		b.WriteString(e.Field)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both the kind and the underlying cause.
func (e *ParseError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}
