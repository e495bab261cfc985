package vcf

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriter_RoundTrip(t *testing.T) {
	for _, mode := range []string{ModeVCF, ModeVCFCompressed} {
		t.Run(mode, func(t *testing.T) {
			parser, err := NewParser(writeTestFile(t, "two.vcf", twoSampleVCF))
			require.NoError(t, err)
			defer parser.Close()

			out := filepath.Join(t.TempDir(), "out.vcf")
			w, err := NewWriter(out, mode)
			require.NoError(t, err)
			require.NoError(t, w.WriteHeader(parser.Header()))
			for _, v := range readAll(t, parser) {
				require.NoError(t, w.Write(v))
			}
			assert.Equal(t, 4, w.Count())
			require.NoError(t, w.Close())

			reread, err := NewParser(out)
			require.NoError(t, err)
			defer reread.Close()
			assert.Equal(t, parser.Header(), reread.Header())
			assert.Len(t, readAll(t, reread), 4)
		})
	}
}

func TestWriter_BGZFLayout(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewStreamWriter(&buf, ModeVCFCompressed)
	require.NoError(t, err)
	require.NoError(t, w.WriteHeader([]string{"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO"}))
	require.NoError(t, w.Close())

	data := buf.Bytes()
	require.Greater(t, len(data), len(bgzfEOF))
	assert.Equal(t, bgzfEOF, data[len(data)-len(bgzfEOF):], "missing EOF block")

	// First block carries the BC subfield and its own size.
	assert.Equal(t, []byte{0x42, 0x43, 0x02, 0x00}, data[12:16])
	bsize := int(data[16]) | int(data[17])<<8
	assert.Equal(t, len(data)-len(bgzfEOF), bsize+1)

	gz, err := gzip.NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	plain, err := io.ReadAll(gz)
	require.NoError(t, err)
	assert.Equal(t, "#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\n", string(plain))
}

func TestWriter_LargeOutputSpansBlocks(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewStreamWriter(&buf, ModeVCFCompressed)
	require.NoError(t, err)

	v := &Variant{Chrom: "20", Pos: 1, Ref: "A", Alt: "G", Info: "X=" + string(bytes.Repeat([]byte("a"), 1000))}
	for i := 0; i < 200; i++ {
		require.NoError(t, w.Write(v))
	}
	require.NoError(t, w.Close())

	gz, err := gzip.NewReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	plain, err := io.ReadAll(gz)
	require.NoError(t, err)
	assert.Equal(t, 200, bytes.Count(plain, []byte("\n")))
}

func TestWriter_FormatsBuiltRecords(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewStreamWriter(&buf, ModeVCF)
	require.NoError(t, err)
	require.NoError(t, w.Write(&Variant{Chrom: "1", Pos: 5, Ref: "A", Alt: "T", Qual: "30", SampleColumns: "GT\t0/1"}))
	require.NoError(t, w.Close())
	assert.Equal(t, "1\t5\t.\tA\tT\t30\t.\t.\tGT\t0/1\n", buf.String())
}

func TestNewWriter_UnsupportedModes(t *testing.T) {
	dir := t.TempDir()
	for _, mode := range []string{ModeBCF, ModeBCFRaw, "r"} {
		_, err := NewWriter(filepath.Join(dir, "x"), mode)
		assert.ErrorIs(t, err, ErrUnsupportedMode, mode)
	}
	_, err := os.Stat(filepath.Join(dir, "x"))
	assert.True(t, os.IsNotExist(err), "no file created for rejected modes")
}
