package chunker

import (
	"strings"

	"github.com/dgallion1/docdigest/internal/doctree"
)

// Config controls chunking behavior.
type Config struct {
	HeadingMarker string // Path fragment that starts a new chunk.
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{HeadingMarker: doctree.DefaultHeadingMarker}
}

type state int

const (
	beforeFirstHeading state = iota
	inSection
)

// sink receives the chunk stream produced by the splitter.
type sink interface {
	open(index int) error
	line(text string) error
	close() error
}

// splitter is the section boundary state machine. Chunk 0 is opened before
// the first element and is never dropped.
type splitter struct {
	cfg   Config
	out   sink
	state state
	index int
}

func newSplitter(cfg Config, out sink) *splitter {
	if cfg.HeadingMarker == "" {
		cfg.HeadingMarker = doctree.DefaultHeadingMarker
	}
	return &splitter{cfg: cfg, out: out}
}

func (s *splitter) start() error {
	return s.out.open(0)
}

func (s *splitter) feed(el doctree.Element) error {
	text, ok := el.Content()
	if el.IsHeading(s.cfg.HeadingMarker) {
		if s.state == inSection {
			if err := s.out.close(); err != nil {
				return err
			}
			s.index++
			if err := s.out.open(s.index); err != nil {
				return err
			}
		}
		s.state = inSection
		if !ok {
			return nil
		}
		return s.out.line(text)
	}
	if !ok {
		return nil
	}
	return s.out.line(text)
}

func (s *splitter) finish() error {
	return s.out.close()
}

// Split partitions elements into chunks in memory.
func Split(elements []doctree.Element, cfg Config) []doctree.Chunk {
	mem := &memorySink{}
	sp := newSplitter(cfg, mem)
	// memorySink never fails.
	_ = sp.start()
	for _, el := range elements {
		_ = sp.feed(el)
	}
	_ = sp.finish()
	return mem.chunks
}

type memorySink struct {
	chunks  []doctree.Chunk
	current strings.Builder
	index   int
}

func (m *memorySink) open(index int) error {
	m.index = index
	m.current.Reset()
	return nil
}

func (m *memorySink) line(text string) error {
	m.current.WriteString(text)
	m.current.WriteString("\n")
	return nil
}

func (m *memorySink) close() error {
	m.chunks = append(m.chunks, doctree.Chunk{Index: m.index, Text: m.current.String()})
	return nil
}
