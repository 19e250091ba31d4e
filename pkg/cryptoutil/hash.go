// Package cryptoutil holds the hash, encoding and key primitives shared by
// the proof verifier and the digest checks.
package cryptoutil

import (
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"hash"
	"strings"

	"verre/pkg/model"
)

// Hash computes a digest of data selected by an ASCII, case-insensitive
// algorithm label (SHA1, SHA256, SHA384; separators are ignored so
// "sha-256" works too).
func Hash(algorithm string, data []byte) ([]byte, error) {
	h, err := newHash(algorithm)
	if err != nil {
		return nil, err
	}
	h.Write(data)
	return h.Sum(nil), nil
}

func newHash(algorithm string) (hash.Hash, error) {
	normalized := strings.ToUpper(strings.ReplaceAll(algorithm, "-", ""))
	switch normalized {
	case "SHA1":
		return sha1.New(), nil
	case "SHA256":
		return sha256.New(), nil
	case "SHA384":
		return sha512.New384(), nil
	}
	return nil, model.NewErrorDetails(model.CodeNotSupported, "unsupported hash algorithm: "+algorithm)
}
