package main

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

var ErrInvalidTemplate = errors.New("invalid path template")

// frameIndexName is the only named placeholder a path template may use.
const frameIndexName = "n"

// ResolvePath substitutes the frame index into a path template.
//
// Placeholders are {n}, {} or {0}, optionally followed by a format spec
// of the form :[0][width], e.g. {n:05}. {{ and }} produce literal braces.
// A template without placeholders resolves to itself for every index.
func ResolvePath(template string, n int) (string, error) {
	var sb strings.Builder
	sb.Grow(len(template) + 8)

	for i := 0; i < len(template); i++ {
		c := template[i]

		switch c {
		case '{':
			if i+1 < len(template) && template[i+1] == '{' {
				sb.WriteByte('{')
				i++
				continue
			}

			end := strings.IndexByte(template[i+1:], '}')
			if end < 0 {
				return "", errors.Wrapf(ErrInvalidTemplate, "unterminated placeholder at offset %d in '%s'", i, template)
			}

			field := template[i+1 : i+1+end]
			formatted, err := formatPlaceholder(field, n)
			if err != nil {
				return "", errors.Wrapf(err, "placeholder '{%s}' at offset %d in '%s'", field, i, template)
			}
			sb.WriteString(formatted)
			i += end + 1

		case '}':
			if i+1 < len(template) && template[i+1] == '}' {
				sb.WriteByte('}')
				i++
				continue
			}
			return "", errors.Wrapf(ErrInvalidTemplate, "unmatched '}' at offset %d in '%s'", i, template)

		default:
			sb.WriteByte(c)
		}
	}

	return sb.String(), nil
}

// maxPlaceholderWidth matches PATH_MAX on Linux.
const maxPlaceholderWidth = 4096

func formatPlaceholder(field string, n int) (string, error) {
	name, spec, hasSpec := strings.Cut(field, ":")

	switch name {
	case "", "0", frameIndexName:
	default:
		return "", errors.Wrapf(ErrInvalidTemplate, "unknown argument '%s'", name)
	}

	value := strconv.Itoa(n)
	if !hasSpec || spec == "" {
		return value, nil
	}

	zeroPad := false
	if spec[0] == '0' && len(spec) > 1 {
		zeroPad = true
		spec = spec[1:]
	}

	width, err := strconv.Atoi(spec)
	if err != nil || strings.TrimLeft(spec, "0123456789") != "" {
		return "", errors.Wrapf(ErrInvalidTemplate, "unsupported format spec '%s'", spec)
	}
	if width > maxPlaceholderWidth {
		return "", errors.Wrapf(ErrInvalidTemplate, "width %d exceeds %d", width, maxPlaceholderWidth)
	}

	padding := width - len(value)
	if padding <= 0 {
		return value, nil
	}

	if !zeroPad {
		return strings.Repeat(" ", padding) + value, nil
	}

	if strings.HasPrefix(value, "-") {
		return "-" + strings.Repeat("0", padding) + value[1:], nil
	}
	return strings.Repeat("0", padding) + value, nil
}
