package buffer

// Cursor is a line/byte-column position.
type Cursor struct {
	Line, Col int
}
