package utils

import "golang.org/x/text/encoding/charmap"

// MisDecoded returns s as it reads after its UTF-8 bytes were decoded as
// windows-1250, e.g. "Tytuł" becomes "TytuĹ‚". Older exports and some detail
// pages carry text mangled this way.
func MisDecoded(s string) string {
	out, err := charmap.Windows1250.NewDecoder().String(s)
	if err != nil {
		return s
	}
	return out
}
