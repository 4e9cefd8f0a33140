// Package pdf splits PDF documents into pages of text, blocks and images.
package pdf

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/custodia-labs/folio/internal/core/domain"
	"github.com/custodia-labs/folio/internal/core/ports/driven"
	"github.com/custodia-labs/folio/internal/logger"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles PDF documents.
type Normaliser struct{}

// New creates a new PDF normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{"application/pdf"}
}

// Normalise parses the PDF and returns its pages in order.
// A page whose content cannot be parsed is logged and returned without text.
func (n *Normaliser) Normalise(ctx context.Context, raw *domain.RawDocument) ([]domain.Page, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	reader, err := openReader(raw.Content)
	if err != nil {
		return nil, fmt.Errorf("open pdf %s: %w", raw.URI, err)
	}

	total := reader.NumPage()
	pages := make([]domain.Page, 0, total)
	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p := reader.Page(i)
		if p.V.IsNull() {
			continue
		}
		page, err := readPage(raw.Source, i, p)
		if err != nil {
			logger.Warn("%v", err)
		}
		pages = append(pages, page)
	}
	return pages, nil
}

// openReader guards against parser panics on malformed files.
func openReader(content []byte) (r *pdf.Reader, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("malformed pdf: %v", rec)
		}
	}()
	return pdf.NewReader(bytes.NewReader(content), int64(len(content)))
}

// readPage extracts text, blocks and image handles of one page.
func readPage(source string, number int, p pdf.Page) (page domain.Page, err error) {
	page = domain.Page{Source: source, Number: number}

	defer func() {
		if rec := recover(); rec != nil {
			err = &domain.ExtractionError{Source: source, Page: number, Item: "page text", Err: fmt.Errorf("%v", rec)}
		}
	}()

	page.Images = pageImages(p)

	rows := groupRows(p.Content().Text)
	page.Blocks = groupBlocks(rows)
	lines := make([]string, 0, len(rows))
	for _, r := range rows {
		lines = append(lines, r.text)
	}
	page.Text = strings.Join(lines, "\n")

	if strings.TrimSpace(page.Text) == "" {
		// Some producers only work with the simpler extraction path.
		if plain, perr := p.GetPlainText(nil); perr == nil && strings.TrimSpace(plain) != "" {
			page.Text = plain
			page.Blocks = []domain.TextBlock{{Text: plain}}
		}
	}
	return page, nil
}

// row is one line of glyphs sharing a baseline.
type row struct {
	y        float64
	x0, x1   float64
	fontSize float64
	text     string
}

// groupRows assembles glyphs into lines ordered top to bottom.
// A gap wider than three average glyphs becomes a double space, which the
// table heuristic counts as a column separator.
func groupRows(glyphs []pdf.Text) []row {
	byY := make(map[float64][]pdf.Text)
	for _, g := range glyphs {
		y := math.Round(g.Y)
		byY[y] = append(byY[y], g)
	}

	ys := make([]float64, 0, len(byY))
	for y := range byY {
		ys = append(ys, y)
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(ys)))

	rows := make([]row, 0, len(ys))
	for _, y := range ys {
		line := byY[y]
		sort.SliceStable(line, func(i, j int) bool { return line[i].X < line[j].X })

		var b strings.Builder
		r := row{y: y, x0: line[0].X}
		var prevEnd float64
		for i, g := range line {
			w := math.Max(g.W, 0)
			if g.FontSize > r.fontSize {
				r.fontSize = g.FontSize
			}
			if strings.TrimSpace(g.S) == "" {
				if b.Len() > 0 && !strings.HasSuffix(b.String(), " ") {
					b.WriteByte(' ')
				}
				prevEnd = g.X + w
				continue
			}
			if i > 0 && b.Len() > 0 {
				gap := g.X - prevEnd
				switch {
				case gap > 3*avgGlyph(g):
					b.WriteString(strings.Repeat(" ", 2-trailingSpaces(b.String())))
				case gap > 0.3*avgGlyph(g) && !strings.HasSuffix(b.String(), " "):
					b.WriteByte(' ')
				}
			}
			b.WriteString(g.S)
			prevEnd = g.X + w
			if prevEnd > r.x1 {
				r.x1 = prevEnd
			}
		}
		r.text = strings.TrimRight(b.String(), " ")
		if r.text != "" {
			rows = append(rows, r)
		}
	}
	return rows
}

// groupBlocks joins consecutive rows separated by less than two line heights.
func groupBlocks(rows []row) []domain.TextBlock {
	var blocks []domain.TextBlock
	var cur []row
	flush := func() {
		if len(cur) == 0 {
			return
		}
		lines := make([]string, len(cur))
		box := domain.BBox{X0: cur[0].x0, Y0: cur[len(cur)-1].y, X1: cur[0].x1, Y1: cur[0].y + cur[0].fontSize}
		for i, r := range cur {
			lines[i] = r.text
			box.X0 = math.Min(box.X0, r.x0)
			box.X1 = math.Max(box.X1, r.x1)
		}
		blocks = append(blocks, domain.TextBlock{Text: strings.Join(lines, "\n"), BBox: box})
		cur = nil
	}

	for _, r := range rows {
		if len(cur) > 0 {
			prev := cur[len(cur)-1]
			lineHeight := math.Max(prev.fontSize, 1)
			if prev.y-r.y > 2*lineHeight {
				flush()
			}
		}
		cur = append(cur, r)
	}
	flush()
	return blocks
}

func avgGlyph(g pdf.Text) float64 {
	if g.FontSize > 0 {
		return g.FontSize * 0.5
	}
	return 5
}

func trailingSpaces(s string) int {
	n := len(s) - len(strings.TrimRight(s, " "))
	if n > 2 {
		return 2
	}
	return n
}

// pageImages returns a lazily decoded handle for every image XObject.
func pageImages(p pdf.Page) []domain.PageImage {
	xobjects := p.Resources().Key("XObject")
	if xobjects.Kind() != pdf.Dict {
		return nil
	}

	var out []domain.PageImage
	for _, name := range xobjects.Keys() {
		xo := xobjects.Key(name)
		if xo.Key("Subtype").Name() != "Image" {
			continue
		}
		out = append(out, domain.PageImage{
			Name:   name,
			Decode: func() (domain.DecodedImage, error) { return decodeImage(xo) },
		})
	}
	return out
}

// supportedFilters are the stream filters the PDF reader can undo.
var supportedFilters = map[string]bool{
	"FlateDecode":   true,
	"ASCII85Decode": true,
}

// decodeImage reads raw samples of an image XObject and encodes them as PNG.
func decodeImage(xo pdf.Value) (domain.DecodedImage, error) {
	for _, f := range filterNames(xo.Key("Filter")) {
		if !supportedFilters[f] {
			return domain.DecodedImage{}, fmt.Errorf("unsupported filter %s", f)
		}
	}

	width := int(xo.Key("Width").Int64())
	height := int(xo.Key("Height").Int64())
	if width <= 0 || height <= 0 {
		return domain.DecodedImage{}, fmt.Errorf("invalid size %dx%d", width, height)
	}
	if bpc := xo.Key("BitsPerComponent").Int64(); bpc != 8 {
		return domain.DecodedImage{}, fmt.Errorf("unsupported bits per component %d", bpc)
	}

	rc := xo.Reader()
	defer rc.Close()
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(rc); err != nil {
		return domain.DecodedImage{}, fmt.Errorf("read stream: %w", err)
	}
	samples := buf.Bytes()

	img, err := toImage(colorSpace(xo.Key("ColorSpace")), width, height, samples)
	if err != nil {
		return domain.DecodedImage{}, err
	}

	var out bytes.Buffer
	if err := png.Encode(&out, img); err != nil {
		return domain.DecodedImage{}, fmt.Errorf("encode png: %w", err)
	}
	return domain.DecodedImage{Data: out.Bytes(), Format: "png", Width: width, Height: height}, nil
}

func filterNames(v pdf.Value) []string {
	switch v.Kind() {
	case pdf.Name:
		return []string{v.Name()}
	case pdf.Array:
		names := make([]string, 0, v.Len())
		for i := 0; i < v.Len(); i++ {
			names = append(names, v.Index(i).Name())
		}
		return names
	default:
		return nil
	}
}

// colorSpace resolves ICCBased spaces to their device equivalent by component count.
func colorSpace(v pdf.Value) string {
	switch v.Kind() {
	case pdf.Name:
		return v.Name()
	case pdf.Array:
		if v.Len() > 1 && v.Index(0).Name() == "ICCBased" {
			switch v.Index(1).Key("N").Int64() {
			case 1:
				return "DeviceGray"
			case 3:
				return "DeviceRGB"
			case 4:
				return "DeviceCMYK"
			}
		}
		if v.Len() > 0 {
			return v.Index(0).Name()
		}
	}
	return ""
}

func toImage(space string, w, h int, samples []byte) (image.Image, error) {
	rect := image.Rect(0, 0, w, h)
	switch space {
	case "DeviceGray":
		if len(samples) < w*h {
			return nil, fmt.Errorf("short gray stream: %d bytes for %dx%d", len(samples), w, h)
		}
		img := image.NewGray(rect)
		copy(img.Pix, samples[:w*h])
		return img, nil
	case "DeviceRGB":
		if len(samples) < w*h*3 {
			return nil, fmt.Errorf("short rgb stream: %d bytes for %dx%d", len(samples), w, h)
		}
		img := image.NewNRGBA(rect)
		for i := 0; i < w*h; i++ {
			img.Set(i%w, i/w, color.NRGBA{R: samples[3*i], G: samples[3*i+1], B: samples[3*i+2], A: 0xff})
		}
		return img, nil
	case "DeviceCMYK":
		if len(samples) < w*h*4 {
			return nil, fmt.Errorf("short cmyk stream: %d bytes for %dx%d", len(samples), w, h)
		}
		img := image.NewCMYK(rect)
		copy(img.Pix, samples[:w*h*4])
		return img, nil
	default:
		return nil, fmt.Errorf("unsupported color space %q", space)
	}
}
