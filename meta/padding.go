package meta

import (
	"io"

	"github.com/streamflac/flac/ferror"
)

// verifyPadding confirms a Padding block body consists only of zero bytes,
// without retaining any of it.
func verifyPadding(r io.Reader) error {
	var buf [4096]byte
	for {
		n, err := r.Read(buf[:])
		for _, b := range buf[:n] {
			if b != 0 {
				return ferror.NewFormat("padding block contains a non-zero byte")
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return ferror.FromRead(err)
		}
	}
}
