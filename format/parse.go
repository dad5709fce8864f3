package format

// directive is either literal text (verb == 0) or one conversion.
type directive struct {
	text  string
	width string
	verb  byte
}

// parse splits a format string into literal runs and conversions.
// A lone trailing '%' (with or without a width) stays literal.
func parse(format string) []directive {
	var out []directive
	start := 0
	flush := func(end int) {
		if end > start {
			out = append(out, directive{text: format[start:end]})
		}
	}

	for i := 0; i < len(format); {
		if format[i] != '%' {
			i++
			continue
		}
		flush(i)

		j := i + 1
		if j < len(format) && format[j] == '%' {
			out = append(out, directive{text: "%"})
			i = j + 1
			start = i
			continue
		}

		for j < len(format) && isWidthByte(format[j]) {
			j++
		}
		if j >= len(format) {
			start = i
			i = len(format)
			break
		}

		if format[j] == '%' {
			// "%5%" prints a percent sign like "%%"
			out = append(out, directive{text: "%"})
		} else {
			out = append(out, directive{width: format[i+1 : j], verb: format[j]})
		}
		i = j + 1
		start = i
	}
	flush(len(format))
	return out
}

func isWidthByte(c byte) bool {
	return c == '-' || c == '.' || (c >= '0' && c <= '9')
}

// CountArgs returns how many argument words format consumes.
func CountArgs(format string) int {
	n := 0
	for _, d := range parse(format) {
		if d.verb != 0 {
			n++
		}
	}
	return n
}
