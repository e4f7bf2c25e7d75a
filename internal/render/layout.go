package render

import (
	"bytes"
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/yuin/goldmark/ast"
	extensionast "github.com/yuin/goldmark/extension/ast"

	"go-live-preview/internal/contracts"
)

// Layout places blocks on fixed-size pages. Sizes are in points.
type Layout struct {
	PageWidth  float64
	PageHeight float64
	Margin     float64
	BlockGap   float64
	FontSize   float64
}

// A4 is the default page: 595x842pt with 56pt margins.
func A4() Layout {
	return Layout{
		PageWidth:  595,
		PageHeight: 842,
		Margin:     56,
		BlockGap:   8,
		FontSize:   11,
	}
}

func (l Layout) contentWidth() float64 {
	return l.PageWidth - 2*l.Margin
}

func (l Layout) contentHeight() float64 {
	return l.PageHeight - 2*l.Margin
}

// estimateHeight guesses how tall a block renders. Text wraps at an average
// glyph width of half the font size.
func (l Layout) estimateHeight(sec section, source []byte) float64 {
	lineHeight := l.FontSize * 1.5
	perLine := int(l.contentWidth() / (l.FontSize * 0.5))
	text := sectionText(sec, source)

	switch sec.node.Kind() {
	case ast.KindHeading:
		level := 1
		if h, ok := sec.node.(*ast.Heading); ok {
			level = h.Level
		}
		size := l.FontSize * headingScale(level)
		return size*1.4 + l.FontSize
	case ast.KindThematicBreak:
		return l.FontSize
	case ast.KindFencedCodeBlock, ast.KindCodeBlock:
		// Code does not wrap. Fences are part of the span but not drawn.
		n := countLines(text)
		if sec.node.Kind() == ast.KindFencedCodeBlock {
			n = max(n-2, 1)
		}
		return float64(n)*l.FontSize*1.3 + 2*l.FontSize
	case extensionast.KindTable:
		return float64(countLines(text))*lineHeight*1.2 + l.FontSize
	}

	wrapped := wrappedLines(text, perLine)
	if wrapped == 0 {
		wrapped = 1
	}
	return float64(wrapped)*lineHeight + l.FontSize*0.5
}

func headingScale(level int) float64 {
	switch level {
	case 1:
		return 2
	case 2:
		return 1.6
	case 3:
		return 1.3
	case 4:
		return 1.15
	default:
		return 1
	}
}

func countLines(text []byte) int {
	if len(text) == 0 {
		return 0
	}
	return bytes.Count(text, []byte{'\n'}) + 1
}

func wrappedLines(text []byte, perLine int) int {
	if len(text) == 0 || perLine <= 0 {
		return 0
	}
	total := 0
	for _, line := range bytes.Split(text, []byte{'\n'}) {
		n := utf8.RuneCount(bytes.TrimSpace(line))
		total += max(1, int(math.Ceil(float64(n)/float64(perLine))))
	}
	return total
}

// paginate stacks blocks from the top margin, starting a new page when the
// next block would cross the bottom margin. A block taller than a page gets a
// page of its own and is clipped.
func (l Layout) paginate(blocks []Block) Document {
	doc := Document{Size: contracts.PageSize{W: l.PageWidth, H: l.PageHeight}}
	page := Page{Index: 0}
	y := l.Margin
	bottom := l.Margin + l.contentHeight()

	for _, b := range blocks {
		h := math.Min(b.height, l.contentHeight())
		if len(page.Blocks) > 0 && y+h > bottom {
			doc.Pages = append(doc.Pages, page)
			page = Page{Index: len(doc.Pages)}
			y = l.Margin
		}
		b.BBox = contracts.BBox{X: l.Margin, Y: y, W: l.contentWidth(), H: h}
		b.SVG = wrapSVG(b.html, b.BBox.W, b.BBox.H)
		b.Hash = hashBlock(b)
		page.Blocks = append(page.Blocks, b)
		y += h + l.BlockGap
	}
	doc.Pages = append(doc.Pages, page)
	return doc
}

// wrapSVG embeds an HTML fragment in an SVG foreignObject of the given size.
func wrapSVG(fragment string, w, h float64) string {
	return fmt.Sprintf(
		`<svg xmlns="http://www.w3.org/2000/svg" width="%[1]g" height="%[2]g" viewBox="0 0 %[1]g %[2]g">`+
			`<foreignObject x="0" y="0" width="%[1]g" height="%[2]g">`+
			`<div xmlns="http://www.w3.org/1999/xhtml" class="markdown-body">%[3]s</div>`+
			`</foreignObject></svg>`,
		w, h, fragment)
}
