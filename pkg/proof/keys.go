package proof

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"strings"

	"github.com/lestrrat-go/jwx/v3/jwk"

	"verre/pkg/cryptoutil"
	"verre/pkg/model"
)

// resolvePublicKey resolves the Ed25519 key referenced by a proof's
// verificationMethod DID URL. Multibase is preferred, then base58, then JWK.
func resolvePublicKey(ctx context.Context, resolver model.DIDResolver, verificationMethod string) (ed25519.PublicKey, error) {
	if resolver == nil {
		return nil, model.NewErrorDetails(model.CodeNotFound, "no DID resolver configured")
	}

	did := strings.SplitN(verificationMethod, "#", 2)[0]
	resolution, err := resolver.Resolve(ctx, did)
	if err != nil {
		return nil, err
	}
	if resolution == nil || resolution.DIDDocument == nil {
		return nil, model.NewErrorDetails(model.CodeNotFound, "verification method DID not found: "+did)
	}

	vm := resolution.DIDDocument.FindVerificationMethod(verificationMethod)
	if vm == nil {
		return nil, model.NewErrorDetails(model.CodeNotFound, "verification method not found: "+verificationMethod)
	}

	return publicKeyOf(vm)
}

func publicKeyOf(vm *model.VerificationMethod) (ed25519.PublicKey, error) {
	if vm.PublicKeyMultibase != "" {
		decoded, err := cryptoutil.MultibaseDecode(vm.PublicKeyMultibase)
		if err != nil {
			return nil, err
		}
		return cryptoutil.Ed25519FromMultikey(decoded)
	}

	if vm.PublicKeyBase58 != "" {
		decoded, err := cryptoutil.Base58Decode(vm.PublicKeyBase58)
		if err != nil {
			return nil, err
		}
		return cryptoutil.Ed25519FromMultikey(decoded)
	}

	if vm.PublicKeyJWK != nil {
		return publicKeyFromJWK(vm.PublicKeyJWK)
	}

	return nil, model.NewErrorDetails(model.CodeNotSupported, "verification method carries no supported key format: "+vm.ID)
}

func publicKeyFromJWK(raw map[string]any) (ed25519.PublicKey, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, model.NewErrorFromError(err)
	}

	key, err := jwk.ParseKey(data)
	if err != nil {
		return nil, model.NewErrorDetails(model.CodeInvalid, "malformed publicKeyJwk: "+err.Error())
	}

	var pub ed25519.PublicKey
	if err := jwk.Export(key, &pub); err != nil {
		return nil, model.NewErrorDetails(model.CodeNotSupported, "publicKeyJwk is not an Ed25519 key: "+err.Error())
	}

	return pub, nil
}
