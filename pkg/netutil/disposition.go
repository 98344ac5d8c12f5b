package netutil

import (
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/charmap"
)

// ExtractFilenameFromHeader returns the filename suggested by the
// response's Content-Disposition header, or "" when no usable name is
// present.
//
// The parser understands the parameter forms that occur in the wild:
// plain values, quoted values (a ';' inside quotes does not split),
// RFC 5987 extended values (filename*=charset'lang'percent-encoded),
// and RFC 2231 continuations (filename*0, filename*1, ... reassembled
// in ascending index order regardless of their order in the header
// text). An extended value always wins over a plain one.
//
// The extracted name is advisory: only names ending in ".pdf"
// (case-insensitively) are accepted, and malformed input of any kind
// yields "" rather than an error.
func ExtractFilenameFromHeader(source HeaderSource) string {
	header := source.GetResponseHeader("Content-Disposition")
	if header == "" {
		return ""
	}

	params := parseDispositionParams(header)

	candidate := ""
	if v, ok := extendedParam(params, "filename"); ok {
		candidate = v
	} else if v, ok := continuationParam(params, "filename"); ok {
		candidate = v
	} else if v, ok := plainParam(params, "filename"); ok {
		candidate = v
	}

	if !isPDFFilename(candidate) {
		return ""
	}
	return candidate
}

// dispositionParam is one parsed parameter with its RFC 2231/5987
// decorations stripped off the name.
type dispositionParam struct {
	name  string // lower-cased, without *N or * suffixes
	index int    // continuation index, -1 when not a continuation
	ext   bool   // value uses the percent-encoded extended form
	value string
}

func parseDispositionParams(header string) []dispositionParam {
	segments := splitUnquoted(header, ';')

	var params []dispositionParam
	for _, seg := range segments {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}
		name, value, ok := strings.Cut(seg, "=")
		if !ok {
			// the disposition type itself (inline, attachment, ...)
			// carries no filename; anything else without '=' is noise
			continue
		}

		p := dispositionParam{index: -1}
		name = strings.ToLower(strings.TrimSpace(name))
		if strings.HasSuffix(name, "*") {
			p.ext = true
			name = strings.TrimSuffix(name, "*")
		}
		if base, idx, ok := splitContinuation(name); ok {
			name = base
			p.index = idx
		}
		p.name = name
		p.value = unquote(strings.TrimSpace(value))
		params = append(params, p)
	}
	return params
}

// extendedParam returns the decoded RFC 5987 value of name* if present.
func extendedParam(params []dispositionParam, name string) (string, bool) {
	for _, p := range params {
		if p.name == name && p.ext && p.index < 0 {
			return decodeExtValue(p.value, true), true
		}
	}
	return "", false
}

// continuationParam reassembles an RFC 2231 continuation family
// (name*0, name*1, ...) in ascending numeric index order. Header-text
// order is not guaranteed to match index order, so the discovered
// segments are sorted first.
func continuationParam(params []dispositionParam, name string) (string, bool) {
	var segments []dispositionParam
	for _, p := range params {
		if p.name == name && p.index >= 0 {
			segments = append(segments, p)
		}
	}
	if len(segments) == 0 {
		return "", false
	}
	sort.SliceStable(segments, func(i, j int) bool {
		return segments[i].index < segments[j].index
	})

	var sb strings.Builder
	for i, p := range segments {
		if p.ext {
			// only the first segment may carry a charset marker
			sb.WriteString(decodeExtValue(p.value, i == 0))
		} else {
			sb.WriteString(p.value)
		}
	}
	return sb.String(), true
}

func plainParam(params []dispositionParam, name string) (string, bool) {
	for _, p := range params {
		if p.name == name && !p.ext && p.index < 0 {
			return p.value, true
		}
	}
	return "", false
}

// splitUnquoted splits s on sep, ignoring separators inside
// double-quoted strings. Backslash escapes inside quotes are honored.
func splitUnquoted(s string, sep byte) []string {
	var parts []string
	var sb strings.Builder
	inQuotes := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"':
			inQuotes = !inQuotes
			sb.WriteByte(c)
		case c == '\\' && inQuotes && i+1 < len(s):
			sb.WriteByte(c)
			i++
			sb.WriteByte(s[i])
		case c == sep && !inQuotes:
			parts = append(parts, sb.String())
			sb.Reset()
		default:
			sb.WriteByte(c)
		}
	}
	parts = append(parts, sb.String())
	return parts
}

// splitContinuation splits a name of the form base*N into its base and
// numeric index.
func splitContinuation(name string) (string, int, bool) {
	i := strings.LastIndexByte(name, '*')
	if i < 0 {
		return "", 0, false
	}
	n, err := strconv.Atoi(name[i+1:])
	if err != nil || n < 0 {
		return "", 0, false
	}
	return name[:i], n, true
}

// unquote strips surrounding double quotes and resolves backslash
// escapes. Unquoted values pass through unchanged.
func unquote(v string) string {
	if len(v) < 2 || v[0] != '"' || v[len(v)-1] != '"' {
		return v
	}
	inner := v[1 : len(v)-1]
	if !strings.Contains(inner, `\`) {
		return inner
	}
	var sb strings.Builder
	for i := 0; i < len(inner); i++ {
		if inner[i] == '\\' && i+1 < len(inner) {
			i++
		}
		sb.WriteByte(inner[i])
	}
	return sb.String()
}

// decodeExtValue decodes an RFC 5987 extended value. When stripCharset
// is set, a leading charset'lang' marker (e.g. utf-8'') is removed and
// the named charset drives byte interpretation.
func decodeExtValue(v string, stripCharset bool) string {
	charset := ""
	if stripCharset {
		if parts := strings.SplitN(v, "'", 3); len(parts) == 3 {
			charset = parts[0]
			v = parts[2]
		}
	}
	return decodeBytes(percentDecode(v), charset)
}

// percentDecode resolves %XX escapes into raw bytes. A '%' that is not
// followed by two hex digits is preserved literally rather than
// treated as an error; filenames like "100%.pdf" occur in practice.
func percentDecode(s string) []byte {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '%' && i+2 < len(s) {
			hi, ok1 := unhex(s[i+1])
			lo, ok2 := unhex(s[i+2])
			if ok1 && ok2 {
				out = append(out, hi<<4|lo)
				i += 2
				continue
			}
		}
		out = append(out, s[i])
	}
	return out
}

func unhex(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

// decodeBytes interprets raw bytes in the declared charset. UTF-8 and
// US-ASCII pass through; Latin-1 is transcoded. Unknown charsets fall
// back to treating the bytes as UTF-8, which at worst mangles the
// advisory name instead of failing.
func decodeBytes(b []byte, charset string) string {
	switch strings.ToLower(charset) {
	case "iso-8859-1", "latin1":
		decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(b)
		if err != nil {
			return string(b)
		}
		return string(decoded)
	default:
		return string(b)
	}
}

func isPDFFilename(name string) bool {
	return len(name) >= 4 && strings.EqualFold(name[len(name)-4:], ".pdf")
}
