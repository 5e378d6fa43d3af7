package chat

import "strings"

// Sentinel markers delimiting reasoning text inside a streamed answer.
const (
	ReasoningStart = "<think>"
	ReasoningEnd   = "</think>"
)

type parseState int

const (
	stateOutside parseState = iota
	stateInsideReasoning
)

// Segments is one split of the accumulated buffer.
type Segments struct {
	Reasoning string
	Answer    string
	// HasReasoning is true once the start marker has been seen.
	HasReasoning bool
	// Open is true while the end marker has not arrived yet.
	Open bool
}

// Split separates buf into reasoning and answer using the first start marker
// and the first end marker after it. Text outside the pair is the answer;
// with no end marker, everything after the start marker is reasoning.
func Split(buf string) Segments {
	var seg Segments
	var answer strings.Builder

	state := stateOutside
	rest := buf
	for rest != "" {
		switch state {
		case stateOutside:
			if seg.HasReasoning {
				// Only the first marker pair is honoured.
				answer.WriteString(rest)
				rest = ""
				continue
			}
			i := strings.Index(rest, ReasoningStart)
			if i < 0 {
				answer.WriteString(rest)
				rest = ""
				continue
			}
			answer.WriteString(rest[:i])
			rest = rest[i+len(ReasoningStart):]
			seg.HasReasoning = true
			seg.Open = true
			state = stateInsideReasoning
		case stateInsideReasoning:
			i := strings.Index(rest, ReasoningEnd)
			if i < 0 {
				seg.Reasoning = rest
				rest = ""
				continue
			}
			seg.Reasoning = rest[:i]
			rest = rest[i+len(ReasoningEnd):]
			seg.Open = false
			state = stateOutside
		}
	}
	seg.Answer = answer.String()
	return seg
}

// Parser accumulates streamed fragments for one assistant turn and
// re-splits the whole buffer on every fragment.
type Parser struct {
	buf strings.Builder
}

// Feed appends a fragment and returns the split of everything seen so far.
func (p *Parser) Feed(fragment string) Segments {
	p.buf.WriteString(fragment)
	return Split(p.buf.String())
}

// Segments returns the current split without adding input.
func (p *Parser) Segments() Segments {
	return Split(p.buf.String())
}

// Len returns the number of bytes accumulated.
func (p *Parser) Len() int {
	return p.buf.Len()
}
