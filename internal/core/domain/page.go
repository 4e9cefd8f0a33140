package domain

// Page is the raw content of one document page.
type Page struct {
	// Source is the owning document's name.
	Source string

	// Number is 1-based.
	Number int

	// Text is the full page text in reading order.
	Text string

	// Blocks are the page's text blocks, used for table detection.
	Blocks []TextBlock

	// Images are the raster objects found on the page.
	Images []PageImage
}

// TextBlock is a visually grouped run of lines.
type TextBlock struct {
	Text string
	BBox BBox
}

// PageImage is one raster object of a page. Decoding is deferred to
// extraction so that a failing image only affects itself.
type PageImage struct {
	// Name is the resource name within the page.
	Name string

	// Decode returns the image encoded for storage.
	Decode func() (DecodedImage, error)
}

// DecodedImage is an encoded raster ready to be written to disk.
type DecodedImage struct {
	// Data is the encoded raster.
	Data []byte

	// Format is the encoding of Data (e.g. "png").
	Format string

	Width  int
	Height int
}
