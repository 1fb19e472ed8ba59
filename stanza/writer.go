package stanza

import (
	"io"
	"strings"
)

// xmlWriter is the minimal surface Tag.encode needs; both io.Writer-backed
// and strings.Builder-backed writers satisfy it without an intermediate
// bytes.Buffer allocation.
type xmlWriter interface {
	WriteByte(byte) error
	WriteString(string) (int, error)
}

type stringsBuilder = strings.Builder

// countingWriter adapts an io.Writer to xmlWriter while tracking the total
// bytes written and the first error encountered, so WriteTo can report an
// accurate byte count even on a short write.
type countingWriter struct {
	w   io.Writer
	n   int64
	err error
}

func (c *countingWriter) WriteByte(b byte) error {
	if c.err != nil {
		return c.err
	}
	m, err := c.w.Write([]byte{b})
	c.n += int64(m)
	c.err = err
	return err
}

func (c *countingWriter) WriteString(s string) (int, error) {
	if c.err != nil {
		return 0, c.err
	}
	m, err := io.WriteString(c.w, s)
	c.n += int64(m)
	c.err = err
	return m, err
}

func escapeAttr(s string) string {
	r := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		"'", "&apos;",
		`"`, "&quot;",
	)
	return r.Replace(s)
}

func escapeText(s string) string {
	r := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
	)
	return r.Replace(s)
}
