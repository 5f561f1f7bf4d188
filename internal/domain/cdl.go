package domain

import (
	"fmt"
	"strings"
)

// cdlSpecial holds the characters ncdump prefixes with a backslash when it
// prints a name in CDL.
const cdlSpecial = " !\"#$&'()*,:;<=>?[]\\^`{|}~"

// EscapeCDLName returns name as ncdump writes it in CDL output: a leading
// digit and the characters in cdlSpecial are backslash-escaped, control
// characters become \%xx. NcML headers carry the unescaped form.
func EscapeCDLName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case i == 0 && c >= '0' && c <= '9':
			b.WriteByte('\\')
			b.WriteByte(c)
		case c < 0x20 || c == 0x7f:
			fmt.Fprintf(&b, "\\%%%.2x", c)
		case strings.IndexByte(cdlSpecial, c) >= 0:
			b.WriteByte('\\')
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
