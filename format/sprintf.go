package format

import (
	"fmt"
	"strconv"
	"strings"

	mozjpeg "github.com/wippyai/mozjpeg-wasm"
)

// Sprintf renders format against args. %s reads a NUL-terminated string
// from mem at the address in the argument word.
func Sprintf(mem mozjpeg.Memory, format string, args *Args) string {
	var b strings.Builder
	b.Grow(len(format))

	for _, d := range parse(format) {
		if d.verb == 0 {
			b.WriteString(d.text)
			continue
		}

		arg := args.Next()
		switch d.verb {
		case 's':
			if arg == 0 {
				b.WriteString("(null)")
				continue
			}
			s, err := mem.CString(arg)
			if err != nil {
				b.WriteString(placeholder(d.verb, arg))
				continue
			}
			b.WriteString(s)
		case 'd':
			b.WriteString(strconv.FormatInt(int64(int32(arg)), 10))
		case 'u':
			b.WriteString(strconv.FormatUint(uint64(arg), 10))
		default:
			b.WriteString(placeholder(d.verb, arg))
		}
	}
	return b.String()
}

func placeholder(verb byte, arg uint32) string {
	return fmt.Sprintf("<!FMT:%c:%d!>", verb, arg)
}
