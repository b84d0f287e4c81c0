// Package markdown turns Q:/A: blocks into new cards.
//
// A block starts at a "Q:" line and runs until the next "Q:" line or a "---"
// separator. Lines after a prefix continue that field. An optional "L:" line
// carries language hints as "front" or "front/back".
package markdown

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/conorfennell/flashdeck/internal/collection"
)

const (
	frontPrefix    = "Q:"
	backPrefix     = "A:"
	languagePrefix = "L:"
	separator      = "---"
)

type field int

const (
	seeking field = iota
	readingFront
	readingBack
	readingLanguage
)

// ParseFile reads a file from the given path and extracts all cards.
func ParseFile(path string) ([]collection.NewCard, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return Parse(file)
}

// Parse reads from an io.Reader and extracts all cards. Blocks without a
// question or an answer are dropped.
func Parse(r io.Reader) ([]collection.NewCard, error) {
	p := &parser{}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		p.line(scanner.Text())
	}
	p.finishCard()

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return p.cards, nil
}

type parser struct {
	cards   []collection.NewCard
	current collection.NewCard
	block   []string
	state   field
}

func (p *parser) line(line string) {
	if strings.TrimSpace(line) == separator {
		p.finishCard()
		return
	}

	next, content, ok := prefixed(line)
	if !ok {
		if p.state != seeking {
			p.block = append(p.block, line)
		}
		return
	}

	p.flush()
	// A new question always starts a new card.
	if next == readingFront && (p.current.Front != "" || p.current.Back != "") {
		p.finishCard()
	}
	p.state = next
	p.block = append(p.block, content)
}

func prefixed(line string) (field, string, bool) {
	for _, pf := range []struct {
		prefix string
		state  field
	}{
		{frontPrefix, readingFront},
		{backPrefix, readingBack},
		{languagePrefix, readingLanguage},
	} {
		if rest, ok := strings.CutPrefix(line, pf.prefix); ok {
			return pf.state, strings.TrimPrefix(rest, " "), true
		}
	}
	return seeking, "", false
}

// flush stores the collected lines into the field being read.
func (p *parser) flush() {
	if len(p.block) == 0 {
		return
	}
	content := strings.TrimSpace(strings.Join(p.block, "\n"))
	switch p.state {
	case readingFront:
		p.current.Front = content
	case readingBack:
		p.current.Back = content
	case readingLanguage:
		front, back, _ := strings.Cut(content, "/")
		p.current.FrontLanguage = strings.TrimSpace(front)
		p.current.BackLanguage = strings.TrimSpace(back)
	}
	p.block = nil
}

func (p *parser) finishCard() {
	p.flush()
	if p.current.Front != "" && p.current.Back != "" {
		p.cards = append(p.cards, p.current)
	}
	p.current = collection.NewCard{}
	p.state = seeking
}
