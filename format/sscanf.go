package format

import (
	"strconv"

	"github.com/grafana/regexp"

	mozjpeg "github.com/wippyai/mozjpeg-wasm"
	"github.com/wippyai/mozjpeg-wasm/errors"
)

var (
	floatToken = regexp.MustCompile(`[+\-]?\d+(?:\.\d*)?`)
	intToken   = regexp.MustCompile(`[+\-]?\d+`)
)

// Sscanf matches input against the conversions in format and stores each
// parsed value through the address in the matching argument word.
// It returns how many conversions were filled before the first one that
// found no token. Literal text in format is not matched; numeric
// conversions search forward from the cursor.
func Sscanf(mem mozjpeg.Memory, input, format string, args *Args) (int, error) {
	rest := input
	filled := 0

	for _, d := range parse(format) {
		if d.verb == 0 {
			continue
		}
		if d.width != "" {
			return filled, unsupportedScan(d, format)
		}

		switch d.verb {
		case 'f':
			loc := floatToken.FindStringIndex(rest)
			if loc == nil {
				return filled, nil
			}
			v, _ := strconv.ParseFloat(rest[loc[0]:loc[1]], 32)
			if err := mem.WriteF32(args.Next(), float32(v)); err != nil {
				return filled, err
			}
			rest = rest[loc[1]:]
		case 'd':
			loc := intToken.FindStringIndex(rest)
			if loc == nil {
				return filled, nil
			}
			// out of range values come back clamped; the store truncates like a C int
			v, _ := strconv.ParseInt(rest[loc[0]:loc[1]], 10, 64)
			if err := mem.WriteU32(args.Next(), uint32(v)); err != nil {
				return filled, err
			}
			rest = rest[loc[1]:]
		case 'c':
			if rest == "" {
				return filled, nil
			}
			if err := mem.WriteU8(args.Next(), rest[0]); err != nil {
				return filled, err
			}
			rest = rest[1:]
		default:
			return filled, unsupportedScan(d, format)
		}
		filled++
	}
	return filled, nil
}

func unsupportedScan(d directive, format string) error {
	return errors.New(errors.PhaseFormat, errors.KindProtocol).
		Call("sscanf").
		Value(format).
		Detail("can not scan '%%%s%c' in %q", d.width, d.verb, format).
		Build()
}
