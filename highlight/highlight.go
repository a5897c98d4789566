// Package highlight renders instrument payloads and raw wire bytes with
// ANSI terminal styling for the TUI inspector.
package highlight

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/charmbracelet/lipgloss"
)

var (
	lexer     chroma.Lexer
	formatter chroma.Formatter
	style     *chroma.Style
)

func init() {
	lexer = lexers.Get("plaintext") // SCPI-style command text has no dedicated chroma lexer
	formatter = formatters.Get("terminal256")
	style = styles.Get("monokai")
}

// Payload returns an instrument payload (an SCPI-style command or query
// string) with ANSI terminal syntax highlighting applied. On error or
// empty input, the original string is returned unchanged.
func Payload(s string) string {
	if s == "" {
		return s
	}

	iterator, err := lexer.Tokenise(nil, s)
	if err != nil {
		return s
	}

	var buf bytes.Buffer
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return s
	}

	return strings.TrimRight(buf.String(), "\n")
}

var (
	offsetStyle = lipgloss.NewStyle().Faint(true)
	byteStyle   = lipgloss.NewStyle().Bold(true)
	asciiStyle  = lipgloss.NewStyle().Faint(true)
)

// Hex returns a canonical 16-bytes-per-row hex+ASCII dump of b, with the
// offset column dimmed and the printable-ASCII gutter dimmed, the way a
// payload inspector would render a raw sync-channel frame.
func Hex(b []byte) string {
	if len(b) == 0 {
		return ""
	}

	var out strings.Builder
	for offset := 0; offset < len(b); offset += 16 {
		end := offset + 16
		if end > len(b) {
			end = len(b)
		}
		row := b[offset:end]

		out.WriteString(offsetStyle.Render(fmt.Sprintf("%08x", offset)))
		out.WriteString("  ")

		for i := 0; i < 16; i++ {
			if i < len(row) {
				out.WriteString(byteStyle.Render(fmt.Sprintf("%02x ", row[i])))
			} else {
				out.WriteString("   ")
			}
			if i == 7 {
				out.WriteString(" ")
			}
		}

		out.WriteString(" ")
		out.WriteString(asciiStyle.Render(asciiGutter(row)))
		out.WriteString("\n")
	}

	return strings.TrimRight(out.String(), "\n")
}

func asciiGutter(row []byte) string {
	g := make([]byte, len(row))
	for i, c := range row {
		if c >= 0x20 && c < 0x7f {
			g[i] = c
		} else {
			g[i] = '.'
		}
	}
	return string(g)
}
