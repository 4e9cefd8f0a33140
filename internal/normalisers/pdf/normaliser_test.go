package pdf

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/folio/internal/core/domain"
)

type testImage struct {
	name   string
	filter string
	space  string
	w, h   int
	data   []byte
}

type testLine struct {
	y    int
	text string
}

type testPage struct {
	lines  []testLine
	images []testImage
}

// buildPDF writes a minimal uncompressed PDF with correct xref offsets.
func buildPDF(pages []testPage) []byte {
	var objects []string
	add := func(body string) int {
		objects = append(objects, body)
		return len(objects)
	}

	add("") // catalog, filled below
	add("") // page tree, filled below
	font := add("<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>")

	var kids []string
	for _, p := range pages {
		var content strings.Builder
		for _, l := range p.lines {
			fmt.Fprintf(&content, "BT /F1 12 Tf 1 0 0 1 72 %d Tm (%s) Tj ET\n", l.y, l.text)
		}
		contentObj := add(fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", content.Len(), content.String()))

		var xobjects []string
		for _, img := range p.images {
			filter := ""
			if img.filter != "" {
				filter = " /Filter /" + img.filter
			}
			obj := add(fmt.Sprintf(
				"<< /Type /XObject /Subtype /Image /Width %d /Height %d /ColorSpace /%s /BitsPerComponent 8%s /Length %d >>\nstream\n%s\nendstream",
				img.w, img.h, img.space, filter, len(img.data), img.data))
			xobjects = append(xobjects, fmt.Sprintf("/%s %d 0 R", img.name, obj))
		}

		page := add(fmt.Sprintf(
			"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 %d 0 R >> /XObject << %s >> >> /Contents %d 0 R >>",
			font, strings.Join(xobjects, " "), contentObj))
		kids = append(kids, fmt.Sprintf("%d 0 R", page))
	}

	objects[0] = "<< /Type /Catalog /Pages 2 0 R >>"
	objects[1] = fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(kids))

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, body := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, body)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func TestNew(t *testing.T) {
	normaliser := New()
	require.NotNil(t, normaliser)
	assert.IsType(t, &Normaliser{}, normaliser)
}

func TestSupportedMIMETypes(t *testing.T) {
	mimeTypes := New().SupportedMIMETypes()

	assert.Equal(t, []string{"application/pdf"}, mimeTypes)
}

func TestNormalise_NilDocument(t *testing.T) {
	pages, err := New().Normalise(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Nil(t, pages)
}

func TestNormalise_Malformed(t *testing.T) {
	raw := &domain.RawDocument{Source: "bad", URI: "/tmp/bad.pdf", Content: []byte("not a pdf at all")}

	_, err := New().Normalise(context.Background(), raw)
	assert.Error(t, err)
}

func TestNormalise_TextAndBlocks(t *testing.T) {
	data := buildPDF([]testPage{
		{lines: []testLine{
			{y: 720, text: "Acne vulgaris is a chronic skin condition."},
			{y: 706, text: "It affects hair follicles."},
			{y: 640, text: "Drug | Dose | Route"},
		}},
		{lines: []testLine{{y: 700, text: "Second page"}}},
	})
	raw := &domain.RawDocument{Source: "derm", URI: "/docs/derm.pdf", MIMEType: "application/pdf", Content: data}

	pages, err := New().Normalise(context.Background(), raw)
	require.NoError(t, err)
	require.Len(t, pages, 2)

	first := pages[0]
	assert.Equal(t, "derm", first.Source)
	assert.Equal(t, 1, first.Number)
	assert.Contains(t, first.Text, "Acne vulgaris is a chronic skin condition.")
	assert.Contains(t, first.Text, "Drug | Dose | Route")

	require.Len(t, first.Blocks, 2)
	assert.Contains(t, first.Blocks[0].Text, "hair follicles")
	assert.Contains(t, first.Blocks[1].Text, "Drug | Dose")

	assert.Equal(t, 2, pages[1].Number)
	assert.Contains(t, pages[1].Text, "Second page")
}

func TestNormalise_ZeroPages(t *testing.T) {
	raw := &domain.RawDocument{Source: "empty", Content: buildPDF(nil)}

	pages, err := New().Normalise(context.Background(), raw)
	require.NoError(t, err)
	assert.Empty(t, pages)
}

func TestNormalise_Images(t *testing.T) {
	data := buildPDF([]testPage{{
		lines: []testLine{{y: 700, text: "Figure 1"}},
		images: []testImage{
			{name: "Im1", space: "DeviceGray", w: 2, h: 2, data: []byte{0, 85, 170, 255}},
			{name: "Im2", space: "DeviceRGB", filter: "DCTDecode", w: 1, h: 1, data: []byte{0xff, 0xd8, 0xff}},
			{name: "Im3", space: "DeviceRGB", w: 1, h: 1, data: []byte{200, 10, 10}},
		},
	}})

	pages, err := New().Normalise(context.Background(), &domain.RawDocument{Source: "fig", Content: data})
	require.NoError(t, err)
	require.Len(t, pages, 1)
	require.Len(t, pages[0].Images, 3)

	gray, err := pages[0].Images[0].Decode()
	require.NoError(t, err)
	assert.Equal(t, "png", gray.Format)
	assert.Equal(t, 2, gray.Width)
	decoded, err := png.Decode(bytes.NewReader(gray.Data))
	require.NoError(t, err)
	assert.Equal(t, 2, decoded.Bounds().Dy())

	_, err = pages[0].Images[1].Decode()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported filter DCTDecode")

	rgb, err := pages[0].Images[2].Decode()
	require.NoError(t, err)
	assert.Equal(t, 1, rgb.Height)
}

func TestToImage_ShortStream(t *testing.T) {
	_, err := toImage("DeviceRGB", 2, 2, []byte{1, 2, 3})
	assert.Error(t, err)

	_, err = toImage("Indexed", 1, 1, []byte{1})
	assert.Error(t, err)
}
