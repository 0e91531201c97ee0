//go:build fyne && !cgo

package ui

import "fmt"

// Run reports ErrNoUI: the fyne window needs cgo for OpenGL.
func Run(_ string) error {
	return fmt.Errorf("%w; the window needs cgo (OpenGL), rebuild with CGO_ENABLED=1 go build -tags fyne ./cmd/texpaint", ErrNoUI)
}
