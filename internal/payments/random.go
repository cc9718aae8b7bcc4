package payments

import (
	"crypto/rand"
	"encoding/hex"
	"io"
	"strings"
)

// randomDigits returns n decimal digits read from src.
func randomDigits(src io.Reader, n int) (string, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(src, buf); err != nil {
		return "", err
	}
	var b strings.Builder
	b.Grow(n)
	for _, v := range buf {
		b.WriteByte('0' + v%10)
	}
	return b.String(), nil
}

// randomHex returns 2*n uppercase hex characters read from src.
func randomHex(src io.Reader, n int) (string, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(src, buf); err != nil {
		return "", err
	}
	return strings.ToUpper(hex.EncodeToString(buf)), nil
}

func defaultRandom(src io.Reader) io.Reader {
	if src == nil {
		return rand.Reader
	}
	return src
}
