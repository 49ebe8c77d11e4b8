// Package document extracts plain text from uploaded files. It sits at
// the boundary of the orchestration core; richer backends can be
// plugged in through the Extractor interface.
package document

import (
	"bytes"
	"errors"
	"strings"
	"unicode/utf8"
)

var (
	ErrNoText      = errors.New("no extractable text found in document")
	ErrUnsupported = errors.New("unsupported document format")
)

// Extractor turns an uploaded file into analyzable text.
type Extractor interface {
	Extract(data []byte) (string, error)
}

// BasicExtractor handles UTF-8 text uploads and PDFs with uncompressed
// text objects. Scanned or fully compressed PDFs yield ErrNoText.
type BasicExtractor struct{}

func (BasicExtractor) Extract(data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrNoText
	}
	if bytes.HasPrefix(data, []byte("%PDF")) {
		text := pdfText(data)
		if strings.TrimSpace(text) == "" {
			return "", ErrNoText
		}
		return text, nil
	}
	if utf8.Valid(data) {
		text := strings.TrimSpace(string(data))
		if text == "" {
			return "", ErrNoText
		}
		return text, nil
	}
	return "", ErrUnsupported
}

// pdfText collects literal strings that feed Tj/TJ show-text operators.
func pdfText(data []byte) string {
	var sb strings.Builder
	i := 0
	for i < len(data) {
		if data[i] != '(' {
			i++
			continue
		}
		literal, next, ok := readLiteral(data, i)
		i = next
		if !ok {
			continue
		}
		if followedByShowText(data, next) {
			sb.WriteString(literal)
			sb.WriteByte(' ')
		}
	}
	return strings.TrimSpace(sb.String())
}

// readLiteral parses a PDF literal string starting at the '(' at
// data[start], handling escapes and nested parentheses.
func readLiteral(data []byte, start int) (string, int, bool) {
	var sb strings.Builder
	depth := 0
	i := start
	for i < len(data) {
		ch := data[i]
		switch ch {
		case '\\':
			if i+1 < len(data) {
				switch data[i+1] {
				case 'n':
					sb.WriteByte('\n')
				case 't':
					sb.WriteByte('\t')
				case 'r', 'f', 'b':
					sb.WriteByte(' ')
				default:
					sb.WriteByte(data[i+1])
				}
				i += 2
				continue
			}
			i++
		case '(':
			depth++
			if depth > 1 {
				sb.WriteByte(ch)
			}
			i++
		case ')':
			depth--
			if depth == 0 {
				return sb.String(), i + 1, true
			}
			sb.WriteByte(ch)
			i++
		default:
			sb.WriteByte(ch)
			i++
		}
	}
	return "", i, false
}

// followedByShowText reports whether a Tj or TJ operator appears within
// a few bytes after the literal, allowing for array syntax and kerning
// offsets.
func followedByShowText(data []byte, pos int) bool {
	end := pos + 32
	if end > len(data) {
		end = len(data)
	}
	window := data[pos:end]
	return bytes.Contains(window, []byte("Tj")) || bytes.Contains(window, []byte("TJ"))
}
