package proof

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
)

// MaxSize is the largest photo accepted for upload.
const MaxSize = 10 << 20

var (
	ErrNotJPEG  = errors.New("proof is not a JPEG image")
	ErrTooLarge = errors.New("proof exceeds 10 MiB")
	ErrNotFound = errors.New("proof not found")
)

var jpegMagic = []byte{0xFF, 0xD8, 0xFF}

// Storage keeps proof photos. Save returns the reference stored on the
// completion; Open reads back a reference Save produced.
type Storage interface {
	Save(ctx context.Context, r io.Reader) (string, error)
	Open(ctx context.Context, ref string) (io.ReadCloser, error)
}

// ReadJPEG reads an upload fully, refusing anything over MaxSize or not
// starting with the JPEG magic bytes.
func ReadJPEG(r io.Reader) ([]byte, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(len(jpegMagic))
	if err != nil || !bytes.Equal(head, jpegMagic) {
		return nil, ErrNotJPEG
	}

	data, err := io.ReadAll(io.LimitReader(br, MaxSize+1))
	if err != nil {
		return nil, fmt.Errorf("read proof: %w", err)
	}
	if len(data) > MaxSize {
		return nil, ErrTooLarge
	}
	return data, nil
}
