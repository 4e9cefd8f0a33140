package domain

// RawDocument represents opaque bytes read from the source directory.
// It is the input of normalisation.
type RawDocument struct {
	// Source is the document name used in chunk ids (file name without extension).
	Source string

	// URI is the original location on disk.
	URI string

	// MIMEType is the content type (e.g., "application/pdf").
	MIMEType string

	// Content is the raw bytes.
	Content []byte
}

// ChangeType represents the type of document change.
type ChangeType int

const (
	// ChangeCreated indicates a new document.
	ChangeCreated ChangeType = iota

	// ChangeUpdated indicates a modified document.
	ChangeUpdated

	// ChangeDeleted indicates a removed document.
	ChangeDeleted
)

// String returns the string representation.
func (c ChangeType) String() string {
	switch c {
	case ChangeCreated:
		return "created"
	case ChangeUpdated:
		return "updated"
	case ChangeDeleted:
		return "deleted"
	default:
		return unknownDescription
	}
}

// DocumentChange is a change event observed in the source directory.
type DocumentChange struct {
	// Type is the kind of change.
	Type ChangeType

	// Path is the affected file.
	Path string
}

// DocumentRef identifies a document in the source directory before it is read.
type DocumentRef struct {
	// Path is the file location.
	Path string

	// Source is the document name used in chunk ids.
	Source string

	// MIMEType is detected from the file extension.
	MIMEType string
}
