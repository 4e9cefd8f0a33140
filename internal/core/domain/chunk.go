package domain

import (
	"fmt"
	"strings"
)

// ChunkType discriminates the Chunk variants.
type ChunkType string

// Available chunk types.
const (
	// ChunkTypeText is a window of page text.
	ChunkTypeText ChunkType = "text"

	// ChunkTypeTable is a text block classified as tabular.
	ChunkTypeTable ChunkType = "table"

	// ChunkTypeImage is a raster object referenced by path.
	ChunkTypeImage ChunkType = "image"
)

// IsValid returns true if the chunk type is recognised.
func (t ChunkType) IsValid() bool {
	switch t {
	case ChunkTypeText, ChunkTypeTable, ChunkTypeImage:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (t ChunkType) String() string {
	return string(t)
}

// ParseChunkType converts a string to a ChunkType.
func ParseChunkType(s string) (ChunkType, error) {
	t := ChunkType(strings.ToLower(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", fmt.Errorf("%w: unknown chunk type %q", ErrInvalidInput, s)
	}
	return t, nil
}

// BBox is a rectangle in PDF user space points.
type BBox struct {
	X0 float64 `json:"x0"`
	Y0 float64 `json:"y0"`
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
}

// TextMeta holds metadata specific to text chunks.
type TextMeta struct {
	// CharCount is the length of the chunk content.
	CharCount int `json:"char_count"`
}

// TableMeta holds metadata specific to table chunks.
type TableMeta struct {
	// BBox is the block's bounding box on the page.
	BBox BBox `json:"bbox"`
}

// ImageMeta holds metadata specific to image chunks.
type ImageMeta struct {
	// Format is the encoding of the stored raster (e.g. "png").
	Format string `json:"format"`

	// Width is the image width in pixels.
	Width int `json:"width"`

	// Height is the image height in pixels.
	Height int `json:"height"`
}

// Chunk is the smallest retrievable unit of source content.
// Exactly one of Text, Table or Image is set, matching Type.
type Chunk struct {
	// ID is stable and derived from source, page, type and sequence.
	ID string

	// Type is the variant discriminant.
	Type ChunkType

	// Content is the extracted text, or the raster path for images.
	Content string

	// PageNumber is the 1-based page of origin.
	PageNumber int

	// Source identifies the originating document.
	Source string

	// Text is set for text chunks.
	Text *TextMeta

	// Table is set for table chunks.
	Table *TableMeta

	// Image is set for image chunks.
	Image *ImageMeta

	// Attributes holds optional auxiliary values.
	Attributes map[string]string
}

// TextChunkID returns the id of the seq-th text chunk of a page.
func TextChunkID(source string, page, seq int) string {
	return fmt.Sprintf("%s_page%d_text%d", source, page, seq)
}

// TableChunkID returns the id of the seq-th table chunk of a page.
func TableChunkID(source string, page, seq int) string {
	return fmt.Sprintf("%s_page%d_table%d", source, page, seq)
}

// ImageChunkID returns the id of an image chunk.
func ImageChunkID(source string, page, seq int) string {
	return fmt.Sprintf("%s_page%d_img%d", source, page, seq)
}

// NewTextChunk builds and validates a text chunk.
func NewTextChunk(source string, page, seq int, content string) (Chunk, error) {
	c := Chunk{
		ID:         TextChunkID(source, page, seq),
		Type:       ChunkTypeText,
		Content:    content,
		PageNumber: page,
		Source:     source,
		Text:       &TextMeta{CharCount: len(content)},
	}
	return c, c.Validate()
}

// NewTableChunk builds and validates a table chunk.
func NewTableChunk(source string, page, seq int, content string, bbox BBox) (Chunk, error) {
	c := Chunk{
		ID:         TableChunkID(source, page, seq),
		Type:       ChunkTypeTable,
		Content:    content,
		PageNumber: page,
		Source:     source,
		Table:      &TableMeta{BBox: bbox},
	}
	return c, c.Validate()
}

// NewImageChunk builds and validates an image chunk whose content is the raster path.
func NewImageChunk(source string, page, seq int, path string, meta ImageMeta) (Chunk, error) {
	c := Chunk{
		ID:         ImageChunkID(source, page, seq),
		Type:       ChunkTypeImage,
		Content:    path,
		PageNumber: page,
		Source:     source,
		Image:      &meta,
	}
	return c, c.Validate()
}

// Validate checks the chunk's invariants: non-empty content, a positive page,
// and metadata matching the declared variant only.
func (c Chunk) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidChunk)
	}
	if !c.Type.IsValid() {
		return fmt.Errorf("%w: %s: unknown type %q", ErrInvalidChunk, c.ID, c.Type)
	}
	if strings.TrimSpace(c.Content) == "" {
		return fmt.Errorf("%w: %s: empty content", ErrInvalidChunk, c.ID)
	}
	if c.PageNumber < 1 {
		return fmt.Errorf("%w: %s: page %d", ErrInvalidChunk, c.ID, c.PageNumber)
	}
	if c.Source == "" {
		return fmt.Errorf("%w: %s: missing source", ErrInvalidChunk, c.ID)
	}

	text, table, image := c.Text != nil, c.Table != nil, c.Image != nil
	var ok bool
	switch c.Type {
	case ChunkTypeText:
		ok = text && !table && !image
	case ChunkTypeTable:
		ok = table && !text && !image
	case ChunkTypeImage:
		ok = image && !text && !table
	}
	if !ok {
		return fmt.Errorf("%w: %s: metadata does not match type %s", ErrInvalidChunk, c.ID, c.Type)
	}
	return nil
}
