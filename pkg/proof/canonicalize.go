package proof

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/piprate/json-gold/ld"

	"verre/pkg/model"
)

// Canonicalizer performs RDF Dataset Canonicalization (URDNA2015)
// See: https://www.w3.org/TR/rdf-canon/
type Canonicalizer struct {
	options *ld.JsonLdOptions
}

// NewCanonicalizer creates a canonicalizer emitting N-Quads through the
// given document loader
func NewCanonicalizer(loader ld.DocumentLoader) *Canonicalizer {
	opts := ld.NewJsonLdOptions("")
	opts.Algorithm = ld.AlgorithmURDNA2015
	opts.Format = "application/n-quads"
	opts.DocumentLoader = loader

	return &Canonicalizer{
		options: opts,
	}
}

// Canonicalize converts a JSON-LD document to canonical N-Quads form
func (c *Canonicalizer) Canonicalize(doc any) (string, error) {
	proc := ld.NewJsonLdProcessor()

	normalized, err := proc.Normalize(doc, c.options)
	if err != nil {
		return "", model.NewErrorDetails(model.CodeInvalid, "normalization failed: "+err.Error())
	}

	normalizedStr, ok := normalized.(string)
	if !ok {
		return "", model.NewErrorDetails(model.CodeInvalid, fmt.Sprintf("unexpected normalized format: %T", normalized))
	}

	return normalizedStr, nil
}

// Hash canonicalizes the document and returns the SHA-256 of the N-Quads
func (c *Canonicalizer) Hash(doc any) ([]byte, error) {
	canonical, err := c.Canonicalize(doc)
	if err != nil {
		return nil, err
	}

	sum := sha256.Sum256([]byte(canonical))
	return sum[:], nil
}

// HashHex is Hash with a lower-case hex digest, the accumulator form used
// when chaining digests
func (c *Canonicalizer) HashHex(doc any) (string, error) {
	sum, err := c.Hash(doc)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(sum), nil
}
