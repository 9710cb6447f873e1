package smf

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"
)

// decodeText converts a meta event text payload to a Go string. SMF does not
// define a text encoding; anything that is not valid UTF-8 is treated as
// Shift-JIS, which covers most files authored on Japanese systems.
func decodeText(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	if utf8.Valid(b) {
		return strings.TrimRight(string(b), "\x00")
	}
	s, _, err := transform.String(japanese.ShiftJIS.NewDecoder(), string(b))
	if err != nil {
		// 変換に失敗した場合はそのまま返す
		return string(b)
	}
	return strings.TrimRight(s, "\x00")
}
