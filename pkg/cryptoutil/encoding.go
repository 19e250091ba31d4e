package cryptoutil

import (
	"encoding/base64"

	"github.com/mr-tron/base58"
	"github.com/multiformats/go-multibase"

	"verre/pkg/model"
)

// Base58Encode encodes data with the Bitcoin alphabet
func Base58Encode(data []byte) string {
	return base58.Encode(data)
}

// Base58Decode decodes a Bitcoin-alphabet base58 string
func Base58Decode(s string) ([]byte, error) {
	data, err := base58.Decode(s)
	if err != nil {
		return nil, model.NewErrorDetails(model.CodeInvalid, "base58 decode: "+err.Error())
	}
	return data, nil
}

// Base64Encode encodes data with the standard, padded alphabet
func Base64Encode(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// Base64Decode decodes a standard, padded base64 string
func Base64Decode(s string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, model.NewErrorDetails(model.CodeInvalid, "base64 decode: "+err.Error())
	}
	return data, nil
}

// Base64URLEncode encodes data with the unpadded URL alphabet
func Base64URLEncode(data []byte) string {
	return base64.RawURLEncoding.EncodeToString(data)
}

// Base64URLDecode decodes an unpadded URL-alphabet base64 string
func Base64URLDecode(s string) ([]byte, error) {
	data, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, model.NewErrorDetails(model.CodeInvalid, "base64url decode: "+err.Error())
	}
	return data, nil
}

// MultibaseDecode decodes a multibase string. Only the base58btc prefix 'z'
// is accepted.
func MultibaseDecode(s string) ([]byte, error) {
	if len(s) == 0 || s[0] != 'z' {
		return nil, model.NewErrorDetails(model.CodeInvalid, "unsupported multibase prefix")
	}

	encoding, data, err := multibase.Decode(s)
	if err != nil {
		return nil, model.NewErrorDetails(model.CodeInvalid, "multibase decode: "+err.Error())
	}
	if encoding != multibase.Base58BTC {
		return nil, model.NewErrorDetails(model.CodeInvalid, "unsupported multibase encoding")
	}

	return data, nil
}

// MultibaseEncode encodes data as base58btc with the 'z' prefix
func MultibaseEncode(data []byte) (string, error) {
	return multibase.Encode(multibase.Base58BTC, data)
}
