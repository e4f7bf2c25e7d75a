package render

import (
	"bytes"
	"fmt"
	"hash/fnv"

	"github.com/yuin/goldmark/ast"

	"go-live-preview/internal/contracts"
)

// Block is one top-level markdown construct placed on a page.
type Block struct {
	ID   string
	Kind string
	Hash uint64
	SVG  string
	BBox contracts.BBox
	Span *contracts.SpanRange

	html   string
	height float64
}

// Page is a fixed-size page holding blocks top to bottom.
type Page struct {
	Index  int
	Blocks []Block
}

// Document is a rendered markdown file.
type Document struct {
	Size  contracts.PageSize
	Pages []Page
}

type section struct {
	node ast.Node
	span *contracts.SpanRange
}

// splitSections returns the top-level children of doc with their 1-based
// inclusive source line spans. A block runs until the line before the next
// block starts, minus trailing blank lines. Blocks with no source lines of
// their own (thematic breaks, empty code fences) carry no span.
func splitSections(doc ast.Node, source []byte) []section {
	var sections []section
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		sec := section{node: n}
		if offset, ok := firstNodeOffset(n); ok {
			start := offsetToLine(source, offset)
			if n.Kind() == ast.KindFencedCodeBlock && start > 1 {
				start-- // opening fence
			}
			sec.span = &contracts.SpanRange{LineStart: start, LineEnd: start}
		}
		sections = append(sections, sec)
	}

	lines := bytes.Split(source, []byte{'\n'})
	for i := range sections {
		span := sections[i].span
		if span == nil {
			continue
		}
		end := len(lines)
		for j := i + 1; j < len(sections); j++ {
			if next := sections[j].span; next != nil {
				end = next.LineStart - 1
				break
			}
		}
		for end > span.LineStart && len(bytes.TrimSpace(lines[end-1])) == 0 {
			end--
		}
		if end > span.LineStart {
			span.LineEnd = end
		}
	}
	return sections
}

// firstNodeOffset returns the byte offset of the first line in a node.
// It first checks if the node has its own lines (most block elements do).
// If not, it recursively searches children to find the first meaningful offset.
// This handles nodes like lists that contain list items with actual content.
func firstNodeOffset(n ast.Node) (int, bool) {
	if n == nil {
		return 0, false
	}

	if t, ok := n.(*ast.Text); ok {
		return t.Segment.Start, true
	}

	if n.Type() == ast.TypeBlock {
		if lines := n.Lines(); lines != nil && lines.Len() > 0 {
			return lines.At(0).Start, true
		}
	}

	for child := n.FirstChild(); child != nil; child = child.NextSibling() {
		if offset, ok := firstNodeOffset(child); ok {
			return offset, true
		}
	}

	return 0, false
}

// offsetToLine converts a byte offset to a 1-based line number.
// The offset is clamped to the valid range [0, len(source)].
func offsetToLine(source []byte, offset int) int {
	if offset < 0 {
		offset = 0
	}

	if offset > len(source) {
		offset = len(source)
	}

	return bytes.Count(source[:offset], []byte{'\n'}) + 1
}

// sectionText returns the source lines a section covers.
func sectionText(sec section, source []byte) []byte {
	if sec.span == nil {
		return nil
	}
	lines := bytes.Split(source, []byte{'\n'})
	start, end := sec.span.LineStart-1, sec.span.LineEnd
	if start >= len(lines) {
		return nil
	}
	end = min(end, len(lines))
	return bytes.Join(lines[start:end], []byte{'\n'})
}

// blockID derives an ID from the block kind and source text, so a block keeps
// its ID when lines above it change. Repeats get a numeric suffix.
func blockID(sec section, source []byte, seen map[string]int) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(sec.node.Kind().String()))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write(sectionText(sec, source))
	id := fmt.Sprintf("b%08x", h.Sum32())

	n := seen[id]
	seen[id] = n + 1
	if n > 0 {
		id = fmt.Sprintf("%s-%d", id, n)
	}
	return id
}

// hashBlock covers everything a client draws or maps from a block.
func hashBlock(b Block) uint64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s\x00%s\x00%g,%g,%g,%g", b.ID, b.SVG, b.BBox.X, b.BBox.Y, b.BBox.W, b.BBox.H)
	if b.Span != nil {
		fmt.Fprintf(h, "\x00%d-%d", b.Span.LineStart, b.Span.LineEnd)
	}
	return h.Sum64()
}
