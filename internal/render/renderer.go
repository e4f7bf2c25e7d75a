package render

import (
	"bytes"
	_ "embed"
	"encoding/base64"
	"html"
	"path/filepath"
	"strings"

	chromahtml "github.com/alecthomas/chroma/formatters/html"
	"github.com/alecthomas/chroma/styles"
	"github.com/pkg/errors"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	gmhtml "github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
	alertcallouts "github.com/zmtcreative/gm-alert-callouts"
)

// AssetPrefix is the URL prefix local images are rewritten to. The preview
// server decodes the rest of the path back into a file name.
const AssetPrefix = "/@mdfs/"

// highlightStyle is the chroma style the shell stylesheet is built from.
const highlightStyle = "github"

// Renderer is a wrapper around the Goldmark mardown parser with pre-configured
// extensions. It turns a markdown document into paged SVG blocks.
type Renderer struct {
	md     goldmark.Markdown
	layout Layout
}

//go:embed page.html
var pageTemplate string

func NewRenderer() *Renderer {
	md := goldmark.New(
		goldmark.WithExtensions(
			alertcallouts.AlertCallouts,
			extension.GFM,
			extension.Table,
			extension.Strikethrough,
			extension.TaskList,
			extension.Linkify,
			highlighting.NewHighlighting(
				highlighting.WithFormatOptions(
					chromahtml.WithClasses(true),
				),
			),
		),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
		goldmark.WithRendererOptions(gmhtml.WithUnsafe()),
	)
	return &Renderer{md: md, layout: A4()}
}

// Render parses source, splits it into top-level blocks and lays the blocks
// out on pages. There is always at least one page.
//
// If sourcePath is set, local image destinations are rewritten to the
// preview asset path format expected by the HTTP layer.
func (r *Renderer) Render(source []byte, sourcePath string) (Document, error) {
	doc := r.md.Parser().Parse(text.NewReader(source))
	rewriteImages(doc, sourcePath)

	sections := splitSections(doc, source)
	blocks := make([]Block, 0, len(sections))
	ids := make(map[string]int)

	for _, sec := range sections {
		var buf bytes.Buffer
		if err := r.md.Renderer().Render(&buf, source, sec.node); err != nil {
			return Document{}, errors.Wrapf(err, "render %s block", sec.node.Kind())
		}
		b := Block{
			ID:   blockID(sec, source, ids),
			Kind: sec.node.Kind().String(),
			Span: sec.span,
			html: buf.String(),
		}
		b.height = r.layout.estimateHeight(sec, source)
		blocks = append(blocks, b)
	}

	return r.layout.paginate(blocks), nil
}

// Shell returns the HTML page the preview surface serves. Content arrives
// later over the websocket.
func (r *Renderer) Shell(title string) string {
	return strings.Replace(pageTemplate, "{{TITLE}}", html.EscapeString(title), 1)
}

// StyleSheet returns the CSS classes used by highlighted code blocks.
func (r *Renderer) StyleSheet() (string, error) {
	var buf bytes.Buffer
	formatter := chromahtml.New(chromahtml.WithClasses(true))
	if err := formatter.WriteCSS(&buf, styles.Get(highlightStyle)); err != nil {
		return "", errors.Wrap(err, "write highlight css")
	}
	return buf.String(), nil
}

// rewriteImages points local image destinations at AssetPrefix.
func rewriteImages(doc ast.Node, sourcePath string) {
	baseDir := ""
	if sourcePath != "" {
		baseDir = filepath.Dir(sourcePath)
	}

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		img, ok := n.(*ast.Image)
		if !ok {
			return ast.WalkContinue, nil
		}

		rawDest := strings.TrimSpace(string(img.Destination))
		if rawDest == "" || isRemote(rawDest) {
			return ast.WalkContinue, nil
		}

		var resolved string
		switch {
		case filepath.IsAbs(rawDest):
			resolved = filepath.Clean(rawDest)
		case baseDir != "":
			resolved = filepath.Clean(filepath.Join(baseDir, rawDest))
		default:
			return ast.WalkContinue, nil
		}

		img.Destination = []byte(AssetPrefix + base64.RawURLEncoding.EncodeToString([]byte(resolved)))
		img.SetAttributeString("loading", "lazy")
		img.SetAttributeString("decoding", "async")
		return ast.WalkContinue, nil
	})
}

func isRemote(dest string) bool {
	lower := strings.ToLower(dest)
	for _, prefix := range []string{"http://", "https://", "data:", "blob:", "file://", "//", "#", AssetPrefix} {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

// DecodeAssetPath reverses the image rewrite. The second result is false for
// paths that are not asset paths.
func DecodeAssetPath(urlPath string) (string, bool) {
	encoded, ok := strings.CutPrefix(urlPath, AssetPrefix)
	if !ok || encoded == "" {
		return "", false
	}
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", false
	}
	return string(raw), true
}
