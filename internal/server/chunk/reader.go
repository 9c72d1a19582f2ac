package chunk

import (
	"errors"
	"io"
)

var errSizeExceeded = errors.New("payload larger than declared size")

// exactReader yields exactly remaining bytes from r.
// Short input ends with io.ErrUnexpectedEOF, extra input with errSizeExceeded.
type exactReader struct {
	r         io.Reader
	remaining int64
}

func (e *exactReader) Read(p []byte) (int, error) {
	if e.remaining <= 0 {
		var probe [1]byte
		n, err := e.r.Read(probe[:])
		if n > 0 {
			return 0, errSizeExceeded
		}
		return 0, err
	}

	if int64(len(p)) > e.remaining {
		p = p[:e.remaining]
	}

	n, err := e.r.Read(p)
	e.remaining -= int64(n)
	if errors.Is(err, io.EOF) && e.remaining > 0 {
		return n, io.ErrUnexpectedEOF
	}
	if errors.Is(err, io.EOF) {
		// the next call confirms there is nothing left
		err = nil
	}
	return n, err
}
