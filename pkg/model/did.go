package model

import (
	"context"
	"encoding/json"
	"strings"
)

// ServiceTypeLinkedVP and ServiceTypeVPR are the two well-known DID service types
const (
	ServiceTypeLinkedVP = "LinkedVerifiablePresentation"
	ServiceTypeVPR      = "VerifiablePublicRegistry"
)

// ServiceEndpoint accepts both the single-string and string-array wire forms
type ServiceEndpoint []string

// UnmarshalJSON implements json.Unmarshaler
func (s *ServiceEndpoint) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*s = ServiceEndpoint{single}
		return nil
	}

	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*s = many
	return nil
}

// First returns the first endpoint, or empty
func (s ServiceEndpoint) First() string {
	if len(s) == 0 {
		return ""
	}
	return s[0]
}

// DIDService is a service entry of a DID document
type DIDService struct {
	ID              string          `json:"id"`
	Type            string          `json:"type"`
	ServiceEndpoint ServiceEndpoint `json:"serviceEndpoint"`
}

// Fragment returns the portion of the service id after '#', or empty
func (s *DIDService) Fragment() string {
	if i := strings.Index(s.ID, "#"); i >= 0 {
		return s.ID[i+1:]
	}
	return ""
}

// VerificationMethod is a key entry of a DID document
type VerificationMethod struct {
	ID                 string         `json:"id"`
	Type               string         `json:"type"`
	Controller         string         `json:"controller,omitempty"`
	PublicKeyMultibase string         `json:"publicKeyMultibase,omitempty"`
	PublicKeyBase58    string         `json:"publicKeyBase58,omitempty"`
	PublicKeyJWK       map[string]any `json:"publicKeyJwk,omitempty"`
}

// DIDDocument is the subset of a DID document the resolver consumes
type DIDDocument struct {
	Context            any                  `json:"@context,omitempty"`
	ID                 string               `json:"id"`
	Service            []DIDService         `json:"service,omitempty"`
	VerificationMethod []VerificationMethod `json:"verificationMethod,omitempty"`
	AssertionMethod    []any                `json:"assertionMethod,omitempty"`
	Authentication     []any                `json:"authentication,omitempty"`
}

// FindVerificationMethod matches a verification method by absolute DID URL or
// by relative fragment reference
func (d *DIDDocument) FindVerificationMethod(id string) *VerificationMethod {
	for i := range d.VerificationMethod {
		vm := &d.VerificationMethod[i]
		if vm.ID == id {
			return vm
		}
		if strings.HasPrefix(vm.ID, "#") && d.ID+vm.ID == id {
			return vm
		}
		if strings.HasPrefix(id, "#") && vm.ID == d.ID+id {
			return vm
		}
	}
	return nil
}

// DIDResolutionMetadata carries the resolution error, if any
type DIDResolutionMetadata struct {
	Error string `json:"error,omitempty"`
}

// DIDResolution is the result of resolving a DID
type DIDResolution struct {
	DIDDocument        *DIDDocument          `json:"didDocument,omitempty"`
	Document           map[string]any        `json:"-"`
	ResolutionMetadata DIDResolutionMetadata `json:"didResolutionMetadata"`
}

// DIDResolver resolves a DID to its document. Implementations must be safe
// for use from multiple goroutines when shared across calls.
type DIDResolver interface {
	Resolve(ctx context.Context, did string) (*DIDResolution, error)
}

// ParseDIDDocument decodes a raw DID document into both typed and map forms
func ParseDIDDocument(raw []byte) (*DIDDocument, map[string]any, error) {
	doc := &DIDDocument{}
	if err := json.Unmarshal(raw, doc); err != nil {
		return nil, nil, NewErrorFromError(err)
	}

	var asMap map[string]any
	if err := json.Unmarshal(raw, &asMap); err != nil {
		return nil, nil, NewErrorFromError(err)
	}

	return doc, asMap, nil
}
