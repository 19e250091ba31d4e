package proof

import (
	"crypto/ed25519"

	"github.com/piprate/json-gold/ld"

	"verre/pkg/cryptoutil"
	"verre/pkg/model"
)

// Signer produces Data Integrity proofs. It exists for the issuing side of
// round-trip tests and tooling; the resolver itself only verifies.
type Signer struct {
	canon *Canonicalizer
}

// NewSigner creates a signer canonicalizing through the given loader
func NewSigner(loader ld.DocumentLoader) *Signer {
	return &Signer{canon: NewCanonicalizer(loader)}
}

// SignOptions locates the key and scopes the proof
type SignOptions struct {
	VerificationMethod string
	ProofPurpose       string
	Created            string
}

// Sign2020 adds an Ed25519Signature2020 proof to the document and returns a
// new map; the input is not mutated.
func (s *Signer) Sign2020(document map[string]any, key ed25519.PrivateKey, opts SignOptions) (map[string]any, error) {
	proofOptions := map[string]any{
		"type":               SuiteEd25519Signature2020,
		"created":            opts.Created,
		"verificationMethod": opts.VerificationMethod,
		"proofPurpose":       opts.ProofPurpose,
	}

	verifyData, err := s.verifyData(document, proofOptions)
	if err != nil {
		return nil, err
	}

	signature := ed25519.Sign(key, verifyData)
	proofValue, err := cryptoutil.MultibaseEncode(signature)
	if err != nil {
		return nil, err
	}

	proof := map[string]any{
		"type":               SuiteEd25519Signature2020,
		"created":            opts.Created,
		"verificationMethod": opts.VerificationMethod,
		"proofPurpose":       opts.ProofPurpose,
		"proofValue":         proofValue,
	}

	return withProof(document, proof), nil
}

// Sign2018 adds an Ed25519Signature2018 proof carrying a detached JWS
func (s *Signer) Sign2018(document map[string]any, key ed25519.PrivateKey, opts SignOptions) (map[string]any, error) {
	proofOptions := map[string]any{
		"type":               SuiteEd25519Signature2018,
		"created":            opts.Created,
		"verificationMethod": opts.VerificationMethod,
		"proofPurpose":       opts.ProofPurpose,
	}

	hashes, err := s.verifyData(document, proofOptions)
	if err != nil {
		return nil, err
	}

	header := cryptoutil.Base64URLEncode([]byte(`{"alg":"EdDSA","b64":false,"crit":["b64"]}`))
	verifyData := append([]byte(header+"."), hashes...)
	signature := ed25519.Sign(key, verifyData)

	proof := map[string]any{
		"type":               SuiteEd25519Signature2018,
		"created":            opts.Created,
		"verificationMethod": opts.VerificationMethod,
		"proofPurpose":       opts.ProofPurpose,
		"jws":                header + ".." + cryptoutil.Base64URLEncode(signature),
	}

	return withProof(document, proof), nil
}

// verifyData computes proofHash || docHash for the unsigned document
func (s *Signer) verifyData(document, proofOptions map[string]any) ([]byte, error) {
	docContext, ok := document["@context"]
	if !ok {
		return nil, model.NewErrorDetails(model.CodeInvalid, "document carries no @context")
	}

	options := make(map[string]any, len(proofOptions)+1)
	for k, v := range proofOptions {
		options[k] = v
	}
	options["@context"] = docContext

	documentCopy := make(map[string]any, len(document))
	for k, v := range document {
		if k != "proof" {
			documentCopy[k] = v
		}
	}

	proofHash, err := s.canon.Hash(options)
	if err != nil {
		return nil, err
	}
	docHash, err := s.canon.Hash(documentCopy)
	if err != nil {
		return nil, err
	}

	return append(proofHash, docHash...), nil
}

func withProof(document, proof map[string]any) map[string]any {
	signed := make(map[string]any, len(document)+1)
	for k, v := range document {
		signed[k] = v
	}
	signed["proof"] = proof
	return signed
}
