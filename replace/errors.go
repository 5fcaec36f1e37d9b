package replace

import "fmt"

// FileReadError reports a file that could not be loaded for replacement.
type FileReadError struct {
	Path string
	Err  error
}

func (e *FileReadError) Error() string {
	return fmt.Sprintf("failed to open file %s: %v", e.Path, e.Err)
}

func (e *FileReadError) Unwrap() error { return e.Err }

// FileWriteError reports a temporary buffer that could not be saved back.
type FileWriteError struct {
	Path string
	Err  error
}

func (e *FileWriteError) Error() string {
	return fmt.Sprintf("failed to save file %s: %v", e.Path, e.Err)
}

func (e *FileWriteError) Unwrap() error { return e.Err }

// StaleMatchError reports a hit whose recorded text is no longer found at its
// recorded position.
type StaleMatchError struct {
	ID     MatchID
	Path   string
	Line   int
	Column int
	Want   string
	Got    string
	Gone   bool // the line itself no longer exists
}

func (e *StaleMatchError) Error() string {
	if e.Gone {
		return fmt.Sprintf("%s:%d: line no longer exists", e.Path, e.Line)
	}
	return fmt.Sprintf("%s:%d:%d: expected %q, found %q", e.Path, e.Line, e.Column+1, e.Want, e.Got)
}
