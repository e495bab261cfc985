package vcf

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
)

// bgzfBlockData is the largest payload written to one BGZF block. It leaves
// room for incompressible data to fit in the 64 KiB block limit.
const bgzfBlockData = 0xff00

// bgzfEOF is the empty block that terminates a BGZF file.
var bgzfEOF = []byte{
	0x1f, 0x8b, 0x08, 0x04, 0x00, 0x00, 0x00, 0x00, 0x00, 0xff, 0x06, 0x00,
	0x42, 0x43, 0x02, 0x00, 0x1b, 0x00, 0x03, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00,
}

// encodeBGZFBlock returns a single BGZF block that encodes data.
func encodeBGZFBlock(data []byte) ([]byte, error) {
	if len(data) > 65536 {
		return nil, errors.New("data exceeds maximum block size")
	}

	var buffer bytes.Buffer
	gzw, err := gzip.NewWriterLevel(&buffer, gzip.DefaultCompression)
	if err != nil {
		return nil, fmt.Errorf("creating gzip writer: %w", err)
	}

	gzw.Header.Extra = []byte{
		0x42, 0x43, // Extra ID.
		0x02, 0x00, // Length of extra data (2 bytes).
		0x88, 0x88, // BSIZE (filled in after writing the archive).
	}
	if _, err := gzw.Write(data); err != nil {
		return nil, fmt.Errorf("writing compressed data: %w", err)
	}
	if err := gzw.Close(); err != nil {
		return nil, fmt.Errorf("closing writer: %w", err)
	}
	bsize := buffer.Len() - 1
	encoded := buffer.Bytes()
	encoded[16] = byte(bsize)
	encoded[17] = byte(bsize >> 8)
	return encoded, nil
}

// bgzfWriter buffers uncompressed bytes and emits them as BGZF blocks.
type bgzfWriter struct {
	w   io.Writer
	buf []byte
}

func newBGZFWriter(w io.Writer) *bgzfWriter {
	return &bgzfWriter{w: w, buf: make([]byte, 0, bgzfBlockData)}
}

func (z *bgzfWriter) Write(p []byte) (int, error) {
	n := 0
	for len(p) > 0 {
		room := bgzfBlockData - len(z.buf)
		if room > len(p) {
			room = len(p)
		}
		z.buf = append(z.buf, p[:room]...)
		p = p[room:]
		n += room
		if len(z.buf) == bgzfBlockData {
			if err := z.flushBlock(); err != nil {
				return n, err
			}
		}
	}
	return n, nil
}

func (z *bgzfWriter) flushBlock() error {
	if len(z.buf) == 0 {
		return nil
	}
	block, err := encodeBGZFBlock(z.buf)
	if err != nil {
		return err
	}
	z.buf = z.buf[:0]
	_, err = z.w.Write(block)
	return err
}

// Close writes any buffered data and the EOF marker block.
func (z *bgzfWriter) Close() error {
	if err := z.flushBlock(); err != nil {
		return err
	}
	_, err := z.w.Write(bgzfEOF)
	return err
}
