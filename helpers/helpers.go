package helpers

import (
	// Go Internal Packages
	"encoding/json"
	"io"
)

// PrintStruct writes v to w as indented JSON
func PrintStruct(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
