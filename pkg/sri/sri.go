// Package sri verifies SubResource-Integrity digests of the form
// "<algo>-<base64(hash(algo, bytes))>" over raw fetched bytes.
package sri

import (
	"crypto/subtle"
	"strings"

	"verre/pkg/cryptoutil"
	"verre/pkg/model"
)

// Verify checks raw against the expected digest string. Hashing is applied
// to the exact bytes as fetched; no normalization.
func Verify(raw []byte, expected string) error {
	algorithm, want, found := strings.Cut(expected, "-")
	if !found || algorithm == "" || want == "" {
		return model.NewErrorDetails(model.CodeVerificationFailed, "malformed integrity digest: "+expected)
	}

	sum, err := cryptoutil.Hash(algorithm, raw)
	if err != nil {
		return err
	}

	got := cryptoutil.Base64Encode(sum)
	if subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
		return model.NewErrorDetails(model.CodeVerificationFailed, "integrity digest mismatch for "+algorithm)
	}

	return nil
}

// Digest computes the SRI digest string of raw for the given algorithm label
func Digest(algorithm string, raw []byte) (string, error) {
	sum, err := cryptoutil.Hash(algorithm, raw)
	if err != nil {
		return "", err
	}
	return strings.ToLower(algorithm) + "-" + cryptoutil.Base64Encode(sum), nil
}
