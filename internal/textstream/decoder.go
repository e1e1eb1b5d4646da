// Package textstream decodes a byte stream into text one chunk at a time.
package textstream

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Decoder turns chunks into text. A multi-byte sequence cut by a chunk
// boundary is held back until the next Decode or until Flush.
type Decoder struct {
	t       transform.Transformer
	pending []byte
	dst     []byte
}

// NewDecoder returns a decoder for the named charset. An empty name means UTF-8.
func NewDecoder(charset string) (*Decoder, error) {
	enc := encoding.Encoding(unicode.UTF8)
	if name := strings.TrimSpace(charset); name != "" {
		e, err := htmlindex.Get(name)
		if err != nil {
			return nil, fmt.Errorf("textstream: unsupported charset %q: %w", name, err)
		}
		enc = e
	}
	return &Decoder{
		t:   enc.NewDecoder(),
		dst: make([]byte, 4096),
	}, nil
}

// Decode converts chunk, keeping any incomplete trailing bytes for later.
func (d *Decoder) Decode(chunk []byte) string {
	if len(chunk) == 0 {
		return ""
	}
	src := append(d.pending, chunk...)
	out, rest := d.run(src, false)
	d.pending = append(d.pending[:0], rest...)
	return out
}

// Flush emits whatever is still buffered. Incomplete sequences become U+FFFD.
// The decoder is reset and can be reused.
func (d *Decoder) Flush() string {
	out, _ := d.run(d.pending, true)
	d.pending = d.pending[:0]
	d.t.Reset()
	return out
}

func (d *Decoder) run(src []byte, atEOF bool) (string, []byte) {
	var sb strings.Builder
	for {
		nDst, nSrc, err := d.t.Transform(d.dst, src, atEOF)
		sb.Write(d.dst[:nDst])
		src = src[nSrc:]
		switch {
		case err == nil:
			return sb.String(), src
		case errors.Is(err, transform.ErrShortDst):
			if nDst == 0 && nSrc == 0 {
				d.dst = make([]byte, 2*len(d.dst))
			}
		case errors.Is(err, transform.ErrShortSrc):
			return sb.String(), src
		default:
			// the x/text decoders replace bad input instead of failing,
			// so drop a byte rather than loop forever
			if len(src) == 0 {
				return sb.String(), nil
			}
			src = src[1:]
		}
	}
}
