package wgconf

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// maxLineLength bounds a single configuration line. Long AllowedIPs lists
// can exceed bufio's default token size.
const maxLineLength = 1 << 20

// Parser turns wg-quick text into a TunnelConfiguration. It holds no state
// between calls and is safe for concurrent use.
type Parser struct {
	logger *slog.Logger
}

// NewParser creates a Parser that reports diagnostics to logger.
// A nil logger discards them.
func NewParser(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Parser{logger: logger}
}

var defaultParser = NewParser(nil)

// Parse parses wg-quick text using a parser without diagnostics.
func Parse(text, name string) (*TunnelConfiguration, error) {
	return defaultParser.Parse(text, name)
}

// Parse parses wg-quick text. name becomes the configuration name and is
// not validated here.
func (p *Parser) Parse(text, name string) (*TunnelConfiguration, error) {
	return p.ParseReader(strings.NewReader(text), name)
}

// ParseReader parses wg-quick text read from r.
func (p *Parser) ParseReader(r io.Reader, name string) (*TunnelConfiguration, error) {
	sp := &sectionParser{logger: p.logger, attrs: make(map[AttributeKey]string)}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), maxLineLength)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if lineNo == 1 {
			line = strings.TrimPrefix(line, "\uFEFF")
		}
		if err := sp.feed(lineNo, line); err != nil {
			return nil, err
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("wgconf: read config: %w", err)
	}

	cfg, err := sp.finish(name)
	if err != nil {
		return nil, err
	}

	p.logger.Debug("configuration parsed",
		"component", "wgconf",
		"name", name,
		"peers", len(cfg.Peers),
	)
	return cfg, nil
}

type parserState int

const (
	notInSection parserState = iota
	inInterfaceSection
	inPeerSection
)

type sectionParser struct {
	logger *slog.Logger

	state  parserState
	header int
	attrs  map[AttributeKey]string

	iface     *InterfaceConfiguration
	peers     []PeerConfiguration
	peerLines []int
}

func (sp *sectionParser) feed(lineNo int, raw string) error {
	line := raw
	if i := strings.IndexByte(line, '#'); i >= 0 {
		line = line[:i]
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}

	switch strings.ToLower(line) {
	case "[interface]":
		return sp.enter(inInterfaceSection, lineNo)
	case "[peer]":
		return sp.enter(inPeerSection, lineNo)
	}

	attr, ok := ParseAttribute(line)
	if !ok {
		return &ParseError{Kind: ErrSyntax, Line: lineNo, Err: fmt.Errorf("unrecognized line %q", lineLabel(line))}
	}
	if sp.state == notInSection {
		return &ParseError{Kind: ErrSyntax, Line: lineNo, Field: attr.Key.String(), Err: fmt.Errorf("attribute outside of a section")}
	}

	prev, exists := sp.attrs[attr.Key]
	switch {
	case exists && attr.Key.multiValued():
		sp.attrs[attr.Key] = prev + "," + attr.Value
	case exists:
		sp.logger.Debug("attribute overridden",
			"component", "wgconf",
			"key", attr.Key.String(),
			"line", lineNo,
		)
		sp.attrs[attr.Key] = attr.Value
	default:
		sp.attrs[attr.Key] = attr.Value
	}
	return nil
}

// lineLabel keeps only the key of an attribute-like line so values, which
// may be secrets, never end up in error messages.
func lineLabel(line string) string {
	if name, _, found := strings.Cut(line, "="); found {
		return strings.TrimSpace(name) + " = ..."
	}
	return line
}

func (sp *sectionParser) enter(next parserState, lineNo int) error {
	if err := sp.flush(); err != nil {
		return err
	}
	sp.state = next
	sp.header = lineNo
	clear(sp.attrs)
	return nil
}

func (sp *sectionParser) flush() error {
	switch sp.state {
	case inInterfaceSection:
		if sp.iface != nil {
			return &ParseError{Kind: ErrMultipleInterfaceSections, Line: sp.header}
		}
		iface, err := buildInterface(sp.attrs, sp.header)
		if err != nil {
			return err
		}
		sp.iface = &iface
	case inPeerSection:
		peer, err := buildPeer(sp.attrs, sp.header)
		if err != nil {
			return err
		}
		sp.peers = append(sp.peers, peer)
		sp.peerLines = append(sp.peerLines, sp.header)
	}
	return nil
}

func (sp *sectionParser) finish(name string) (*TunnelConfiguration, error) {
	if err := sp.flush(); err != nil {
		return nil, err
	}
	if sp.iface == nil {
		return nil, &ParseError{Kind: ErrNoInterfaceSection}
	}
	if i, ok := duplicatePeer(sp.peers); ok {
		return nil, &ParseError{
			Kind:  ErrDuplicatePeerPublicKey,
			Line:  sp.peerLines[i],
			Field: KeyPublicKey.String(),
			Err:   fmt.Errorf("key %s already used by another peer", sp.peers[i].PublicKey),
		}
	}
	return &TunnelConfiguration{Name: name, Interface: *sp.iface, Peers: sp.peers}, nil
}
