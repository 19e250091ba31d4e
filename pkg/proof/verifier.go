// Package proof verifies JSON-LD Data Integrity proofs of the
// Ed25519Signature2018 and Ed25519Signature2020 suites.
package proof

import (
	"context"
	"crypto/ed25519"
	"strings"

	"github.com/piprate/json-gold/ld"

	"verre/pkg/cryptoutil"
	"verre/pkg/logger"
	"verre/pkg/model"
)

const (
	// SuiteEd25519Signature2020 uses a multibase base58 proofValue
	SuiteEd25519Signature2020 = "Ed25519Signature2020"
	// SuiteEd25519Signature2018 uses a detached JWS
	SuiteEd25519Signature2018 = "Ed25519Signature2018"
)

// Verifier verifies proofs on verifiable presentations and credentials
type Verifier struct {
	canon    *Canonicalizer
	resolver model.DIDResolver
	log      *logger.Log
}

// NewVerifier creates a proof verifier. The loader feeds canonicalization;
// the resolver provides verification-method keys.
func NewVerifier(loader ld.DocumentLoader, resolver model.DIDResolver, log *logger.Log) *Verifier {
	if log == nil {
		log = logger.NewSimple("proof")
	}
	return &Verifier{
		canon:    NewCanonicalizer(loader),
		resolver: resolver,
		log:      log,
	}
}

// Verify checks the document's own proof and, for presentations, the proof
// of every embedded credential that carries one. A presentation nested
// inside a presentation is rejected.
func (v *Verifier) Verify(ctx context.Context, document map[string]any) error {
	if err := v.verifyOne(ctx, document); err != nil {
		return err
	}

	if !model.HasType(document, "VerifiablePresentation") {
		return nil
	}

	for _, vc := range model.PresentationCredentials(document) {
		if model.HasType(vc, "VerifiablePresentation") {
			return model.NewErrorDetails(model.CodeInvalid, "presentation nested inside a presentation")
		}
		if _, ok := vc["proof"]; !ok {
			continue
		}
		if err := v.verifyOne(ctx, vc); err != nil {
			return err
		}
	}

	return nil
}

// verifyOne checks a single proof on a presentation or credential
func (v *Verifier) verifyOne(ctx context.Context, document map[string]any) error {
	if !model.HasType(document, "VerifiablePresentation") && !model.HasType(document, "VerifiableCredential") {
		return model.NewErrorDetails(model.CodeInvalid, "document is neither a presentation nor a credential")
	}

	docContext, ok := document["@context"]
	if !ok {
		docContext, ok = document["context"]
	}
	if !ok {
		return model.NewErrorDetails(model.CodeInvalid, "document carries no @context")
	}

	proofField, ok := document["proof"]
	if !ok {
		return model.NewErrorDetails(model.CodeInvalid, "document carries no proof")
	}

	proof, err := model.NormalizeOne(proofField)
	if err != nil {
		return model.NewErrorDetails(model.CodeInvalid, "malformed proof")
	}

	proofType, _ := proof["type"].(string)
	if proofType != SuiteEd25519Signature2020 && proofType != SuiteEd25519Signature2018 {
		return model.NewErrorDetails(model.CodeNotSupported, "unsupported proof type: "+proofType)
	}

	verificationMethod, _ := proof["verificationMethod"].(string)
	if verificationMethod == "" {
		return model.NewErrorDetails(model.CodeInvalid, "proof carries no verificationMethod")
	}

	proofOptions := make(map[string]any, len(proof)+1)
	for k, val := range proof {
		if k != "proofValue" && k != "jws" {
			proofOptions[k] = val
		}
	}
	proofOptions["@context"] = docContext

	documentCopy := make(map[string]any, len(document))
	for k, val := range document {
		if k != "proof" {
			documentCopy[k] = val
		}
	}

	proofHash, err := v.canon.Hash(proofOptions)
	if err != nil {
		return err
	}
	docHash, err := v.canon.Hash(documentCopy)
	if err != nil {
		return err
	}

	var signature, verifyData []byte
	switch proofType {
	case SuiteEd25519Signature2020:
		proofValue, _ := proof["proofValue"].(string)
		if proofValue == "" {
			return model.NewErrorDetails(model.CodeInvalid, "proof carries no proofValue")
		}
		signature, err = cryptoutil.MultibaseDecode(proofValue)
		if err != nil {
			return err
		}
		verifyData = append(proofHash, docHash...)

	case SuiteEd25519Signature2018:
		jws, _ := proof["jws"].(string)
		header, sig, err := splitDetachedJWS(jws)
		if err != nil {
			return err
		}
		signature, err = cryptoutil.Base64URLDecode(sig)
		if err != nil {
			return err
		}
		verifyData = append([]byte(header+"."), append(proofHash, docHash...)...)
	}

	key, err := resolvePublicKey(ctx, v.resolver, verificationMethod)
	if err != nil {
		return err
	}

	if !ed25519.Verify(key, verifyData, signature) {
		return model.NewErrorDetails(model.CodeVerificationFailed, "signature did not verify for "+verificationMethod)
	}

	v.log.Debug("proof verified", "type", proofType, "verificationMethod", verificationMethod)

	return nil
}

// splitDetachedJWS splits "<protectedHeader>..<signature>"
func splitDetachedJWS(jws string) (header, signature string, err error) {
	parts := strings.Split(jws, ".")
	if len(parts) != 3 || parts[0] == "" || parts[1] != "" || parts[2] == "" {
		return "", "", model.NewErrorDetails(model.CodeInvalid, "malformed detached JWS")
	}
	return parts[0], parts[2], nil
}
