package model

import (
	"strings"

	"verre/pkg/logger"
)

// VerifiablePublicRegistry is one configured trust registry namespace
type VerifiablePublicRegistry struct {
	ID         string   `json:"id" yaml:"id" validate:"required"`
	BaseURLs   []string `json:"baseUrls" yaml:"base_urls" validate:"required,min=1,dive,url"`
	Production bool     `json:"production" yaml:"production"`
}

// Matches reports whether the registry's logical id prefixes the schema $ref
func (v *VerifiablePublicRegistry) Matches(ref string) bool {
	return strings.HasPrefix(ref, v.ID)
}

// ResolverConfig configures a resolution call. The zero value is usable:
// defaults are applied by the resolver service.
type ResolverConfig struct {
	VerifiablePublicRegistries []VerifiablePublicRegistry `yaml:"verifiable_public_registries"`

	// DIDResolver overrides the default did:web/did:webvh resolver
	DIDResolver DIDResolver `yaml:"-"`

	// Cached skips linked-VP signature verification for presentations the
	// caller has already verified
	Cached bool `yaml:"cached"`

	// SkipDigestSRICheck disables schema content-integrity verification
	SkipDigestSRICheck bool `yaml:"skip_digest_sri_check"`

	Logger *logger.Log `yaml:"-"`
}

// VerifyPermissionsRequest is the input of the VerifyPermissions operation
type VerifyPermissionsRequest struct {
	DID                        string                     `json:"did" validate:"required"`
	JSONSchemaCredentialID     string                     `json:"jsonSchemaCredentialId" validate:"required,url"`
	IssuanceDate               string                     `json:"issuanceDate" validate:"required"`
	VerifiablePublicRegistries []VerifiablePublicRegistry `json:"verifiablePublicRegistries"`
	PermissionType             PermissionType             `json:"permissionType" validate:"required"`
	Logger                     *logger.Log                `json:"-"`
}
