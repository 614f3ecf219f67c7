package bits_test

import (
	"bytes"
	"testing"

	"github.com/streamflac/flac/internal/bits"
)

// writeUnary appends want zero bits followed by a terminating 1 bit,
// byte-aligning the result with trailing zero padding.
func writeUnary(want uint64) []byte {
	var buf bytes.Buffer
	var cur byte
	var n uint8
	push := func(bit byte) {
		cur = cur<<1 | bit
		n++
		if n == 8 {
			buf.WriteByte(cur)
			cur, n = 0, 0
		}
	}
	for i := uint64(0); i < want; i++ {
		push(0)
	}
	push(1)
	if n > 0 {
		cur <<= 8 - n
		buf.WriteByte(cur)
	}
	return buf.Bytes()
}

func TestUnary(t *testing.T) {
	for want := uint64(0); want <= bits.MaxUnaryRun; want++ {
		r := bits.NewReader(bytes.NewReader(writeUnary(want)))
		got, err := r.ReadUnary()
		if err != nil {
			t.Fatalf("want=%d: error reading unary: %v", want, err)
		}
		if got != want {
			t.Fatalf("want=%d got=%d", want, got)
		}
	}
}

func TestUnaryTooLong(t *testing.T) {
	data := make([]byte, (bits.MaxUnaryRun+16)/8)
	r := bits.NewReader(bytes.NewReader(data))
	if _, err := r.ReadUnary(); err == nil {
		t.Fatal("expected an error for a run exceeding MaxUnaryRun, got nil")
	}
}
