package cryptoutil

import (
	"crypto/ed25519"
	"fmt"

	"verre/pkg/model"
)

// ed25519CodecPrefix is the multicodec varint for an Ed25519 public key
var ed25519CodecPrefix = []byte{0xED, 0x01}

// Ed25519FromMultikey strips the multicodec prefix from a decoded multikey.
// A 34-byte key must carry the 0xED 0x01 prefix; a 32-byte key is accepted
// as already raw.
func Ed25519FromMultikey(decoded []byte) (ed25519.PublicKey, error) {
	switch len(decoded) {
	case ed25519.PublicKeySize + len(ed25519CodecPrefix):
		if decoded[0] != ed25519CodecPrefix[0] || decoded[1] != ed25519CodecPrefix[1] {
			return nil, model.NewErrorDetails(model.CodeNotSupported,
				fmt.Sprintf("unsupported key multicodec 0x%x%x", decoded[0], decoded[1]))
		}
		return ed25519.PublicKey(decoded[len(ed25519CodecPrefix):]), nil

	case ed25519.PublicKeySize:
		return ed25519.PublicKey(decoded), nil
	}

	return nil, model.NewErrorDetails(model.CodeInvalid,
		fmt.Sprintf("invalid Ed25519 public key size: %d", len(decoded)))
}

// Ed25519Multikey prefixes a raw key with the Ed25519 multicodec and encodes
// it as a multibase base58btc string
func Ed25519Multikey(key ed25519.PublicKey) (string, error) {
	if len(key) != ed25519.PublicKeySize {
		return "", model.NewErrorDetails(model.CodeInvalid,
			fmt.Sprintf("invalid Ed25519 public key size: %d", len(key)))
	}
	return MultibaseEncode(append(append([]byte{}, ed25519CodecPrefix...), key...))
}
