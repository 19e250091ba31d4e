package model

// Outcome is the final trust verdict of a resolution
type Outcome string

const (
	// OutcomeVerified - issuer is trusted by a production registry
	OutcomeVerified Outcome = "VERIFIED"
	// OutcomeVerifiedTest - issuer is trusted by a non-production registry
	OutcomeVerifiedTest Outcome = "VERIFIED_TEST"
	// OutcomeNotTrusted - no configured registry covers the schema
	OutcomeNotTrusted Outcome = "NOT_TRUSTED"
	// OutcomeInvalid - resolution failed
	OutcomeInvalid Outcome = "INVALID"
)

// SchemaType tags a classified credential subject
type SchemaType string

const (
	SchemaTypeOrg       SchemaType = "ORGANIZATION"
	SchemaTypePerson    SchemaType = "PERSON"
	SchemaTypeService   SchemaType = "SERVICE"
	SchemaTypeUserAgent SchemaType = "USER_AGENT"
	SchemaTypeUnknown   SchemaType = "UNKNOWN"
)

// OrgDetails is the subject of an organization credential
type OrgDetails struct {
	Name        string `json:"name"`
	Logo        string `json:"logo,omitempty"`
	RegistryID  string `json:"registryId,omitempty"`
	RegistryURL string `json:"registryUrl,omitempty"`
	Address     string `json:"address,omitempty"`
	Type        string `json:"type,omitempty"`
	CountryCode string `json:"countryCode,omitempty"`
}

// PersonDetails is the subject of a person credential
type PersonDetails struct {
	FirstName          string `json:"firstName"`
	LastName           string `json:"lastName"`
	Avatar             string `json:"avatar,omitempty"`
	BirthDate          string `json:"birthDate,omitempty"`
	CountryOfResidence string `json:"countryOfResidence,omitempty"`
}

// ServiceDetails is the subject of a service credential
type ServiceDetails struct {
	Name               string `json:"name"`
	Type               string `json:"type"`
	Description        string `json:"description,omitempty"`
	Logo               string `json:"logo,omitempty"`
	MinimumAgeRequired int    `json:"minimumAgeRequired,omitempty"`
	TermsAndConditions string `json:"termsAndConditions,omitempty"`
	PrivacyPolicy      string `json:"privacyPolicy,omitempty"`
}

// UserAgentDetails is the subject of a user-agent credential
type UserAgentDetails struct {
	Name               string `json:"name"`
	Description        string `json:"description,omitempty"`
	Category           string `json:"category,omitempty"`
	Wallet             bool   `json:"wallet,omitempty"`
	Logo               string `json:"logo,omitempty"`
	TermsAndConditions string `json:"termsAndConditions,omitempty"`
	PrivacyPolicy      string `json:"privacyPolicy,omitempty"`
}

// Credential is a classified credential. SchemaType is the tag; exactly one
// of the typed detail fields is set for known schema types.
type Credential struct {
	SchemaType   SchemaType        `json:"schemaType"`
	ID           string            `json:"id,omitempty"`
	Issuer       string            `json:"issuer,omitempty"`
	IssuanceDate string            `json:"issuanceDate,omitempty"`
	Subject      map[string]any    `json:"credentialSubject,omitempty"`
	Org          *OrgDetails       `json:"organization,omitempty"`
	Person       *PersonDetails    `json:"person,omitempty"`
	Service      *ServiceDetails   `json:"service,omitempty"`
	UserAgent    *UserAgentDetails `json:"userAgent,omitempty"`
}

// Metadata carries the failure detail of a resolution
type Metadata struct {
	ErrorCode    string `json:"errorCode,omitempty"`
	ErrorMessage string `json:"errorMessage,omitempty"`
}

// TrustResolution is the envelope returned by ResolveDID
type TrustResolution struct {
	DIDDocument     *DIDDocument `json:"didDocument,omitempty"`
	Verified        bool         `json:"verified"`
	Outcome         Outcome      `json:"outcome"`
	Service         *Credential  `json:"service,omitempty"`
	ServiceProvider *Credential  `json:"serviceProvider,omitempty"`
	Metadata        *Metadata    `json:"metadata,omitempty"`
}

// CredentialResolution is the envelope returned by ResolveCredential
type CredentialResolution struct {
	Verified bool      `json:"verified"`
	Outcome  Outcome   `json:"outcome"`
	Issuer   string    `json:"issuer,omitempty"`
	Metadata *Metadata `json:"metadata,omitempty"`
}

// PermissionResolution is the envelope returned by VerifyPermissions
type PermissionResolution struct {
	Verified bool      `json:"verified"`
	Metadata *Metadata `json:"metadata,omitempty"`
}

// FailedResolution folds an error into a terminal TrustResolution
func FailedResolution(err error) TrustResolution {
	trustErr := NewErrorFromError(err)
	return TrustResolution{
		Verified: false,
		Outcome:  OutcomeInvalid,
		Metadata: &Metadata{ErrorCode: trustErr.Title, ErrorMessage: trustErr.Message()},
	}
}

// FailedCredentialResolution folds an error into a terminal CredentialResolution
func FailedCredentialResolution(err error) CredentialResolution {
	trustErr := NewErrorFromError(err)
	return CredentialResolution{
		Verified: false,
		Outcome:  OutcomeInvalid,
		Metadata: &Metadata{ErrorCode: trustErr.Title, ErrorMessage: trustErr.Message()},
	}
}
