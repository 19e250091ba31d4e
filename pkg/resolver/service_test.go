package resolver

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"verre/pkg/cryptoutil"
	"verre/pkg/docloader"
	"verre/pkg/model"
	"verre/pkg/proof"
	"verre/pkg/sri"
)

// trackingResolver is a stub DID resolver recording the order in which
// DIDs are first resolved
type trackingResolver struct {
	mu        sync.Mutex
	documents map[string]*model.DIDDocument
	order     []string
}

func (r *trackingResolver) Resolve(_ context.Context, did string) (*model.DIDResolution, error) {
	r.mu.Lock()
	seen := false
	for _, previous := range r.order {
		if previous == did {
			seen = true
			break
		}
	}
	if !seen {
		r.order = append(r.order, did)
	}
	doc, ok := r.documents[did]
	r.mu.Unlock()

	if !ok {
		return nil, model.NewErrorDetails(model.CodeNotFound, "DID document not found: "+did)
	}
	return &model.DIDResolution{DIDDocument: doc}, nil
}

func (r *trackingResolver) resolved() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string{}, r.order...)
}

// identity is one DID with its signing key
type identity struct {
	did  string
	priv ed25519.PrivateKey
}

func newIdentity(t *testing.T, did string) identity {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return identity{did: did, priv: priv}
}

func (id identity) verificationMethod(t *testing.T) model.VerificationMethod {
	t.Helper()
	multikey, err := cryptoutil.Ed25519Multikey(id.priv.Public().(ed25519.PublicKey))
	require.NoError(t, err)
	return model.VerificationMethod{
		ID:                 id.did + "#key-1",
		Type:               "Ed25519VerificationKey2020",
		Controller:         id.did,
		PublicKeyMultibase: multikey,
	}
}

// harness wires the whole mocked ecosystem: DID documents, linked VPs,
// schema credentials, registry schemas and the permission indexer
type harness struct {
	t        *testing.T
	server   *httptest.Server
	mux      *http.ServeMux
	resolver *trackingResolver
	signer   *proof.Signer

	perms map[model.PermissionType][]model.Permission
}

var ecsServiceSchema = []byte(`{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "properties": {
    "credentialSubject": {
      "type": "object",
      "properties": {
        "id": {"type": "string"},
        "name": {"type": "string", "minLength": 1},
        "type": {"type": "string"},
        "description": {"type": "string"},
        "minimumAgeRequired": {"type": "number"},
        "termsAndConditions": {"type": "string"},
        "privacyPolicy": {"type": "string"}
      },
      "required": ["id", "name", "type", "description", "minimumAgeRequired", "termsAndConditions", "privacyPolicy"]
    }
  },
  "required": ["credentialSubject"]
}`)

var ecsOrgSchema = []byte(`{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "properties": {
    "credentialSubject": {
      "type": "object",
      "properties": {
        "id": {"type": "string"},
        "name": {"type": "string", "minLength": 1},
        "logo": {"type": "string"},
        "registryId": {"type": "string"},
        "type": {"type": "string"},
        "countryCode": {"type": "string"}
      },
      "required": ["id", "name", "logo", "registryId", "type", "countryCode"]
    }
  },
  "required": ["credentialSubject"]
}`)

var metaSchema = []byte(`{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "properties": {
    "credentialSubject": {"type": "object"}
  },
  "required": ["credentialSubject"]
}`)

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		t:        t,
		mux:      http.NewServeMux(),
		resolver: &trackingResolver{documents: map[string]*model.DIDDocument{}},
		perms: map[model.PermissionType][]model.Permission{
			model.PermissionTypeIssuer: {
				{Type: model.PermissionTypeIssuer, Created: "2020-01-01T00:00:00Z"},
			},
		},
	}

	h.server = httptest.NewServer(h.mux)
	t.Cleanup(h.server.Close)

	h.signer = proof.NewSigner(docloader.New(h.resolver, nil))

	h.serveBytes("/vt/v1/cs/js/12345678", ecsServiceSchema)
	h.serveBytes("/vt/v1/cs/js/87654321", ecsOrgSchema)
	h.serveBytes("/schemas/meta.json", metaSchema)
	h.mux.HandleFunc("/vt/perm/v1/list", func(w http.ResponseWriter, r *http.Request) {
		permType := model.PermissionType(r.URL.Query().Get("type"))
		_ = json.NewEncoder(w).Encode(model.PermissionListResponse{Permissions: h.perms[permType]})
	})

	return h
}

func (h *harness) serveBytes(path string, body []byte) {
	h.mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(body)
	})
}

func (h *harness) serveJSON(path string, doc map[string]any) {
	raw, err := json.Marshal(doc)
	require.NoError(h.t, err)
	h.serveBytes(path, raw)
}

func (h *harness) registries(production bool) []model.VerifiablePublicRegistry {
	return []model.VerifiablePublicRegistry{
		{ID: "vpr:verana", BaseURLs: []string{h.server.URL}, Production: production},
	}
}

// schemaCredential publishes the JsonSchemaCredential chaining a credential
// to its registry schema, and returns its URL
func (h *harness) schemaCredential(name, schemaPath string, schemaBody []byte) string {
	path := "/schemas/" + name + ".json"
	ref := "vpr:verana" + schemaPath

	doc := map[string]any{
		"@context":     []any{"https://www.w3.org/2018/credentials/v1"},
		"id":           h.server.URL + path,
		"type":         []any{"VerifiableCredential", "JsonSchemaCredential"},
		"issuer":       "did:web:registry.example.net",
		"issuanceDate": "2023-01-01T00:00:00Z",
		"credentialSchema": map[string]any{
			"id":        h.server.URL + "/schemas/meta.json",
			"type":      "JsonSchema",
			"digestSRI": mustDigest(h.t, metaSchema),
		},
		"credentialSubject": map[string]any{
			"id":         ref,
			"type":       "JsonSchema",
			"jsonSchema": map[string]any{"$ref": ref},
			"digestSRI":  mustDigest(h.t, schemaBody),
		},
	}
	h.serveJSON(path, doc)

	return h.server.URL + path
}

func mustDigest(t *testing.T, raw []byte) string {
	t.Helper()
	digest, err := sri.Digest("sha256", raw)
	require.NoError(t, err)
	return digest
}

func serviceSubject(did string) map[string]any {
	return map[string]any{
		"id":                 did,
		"name":               "Example Chat",
		"type":               "WEB_PORTAL",
		"description":        "A chat service",
		"minimumAgeRequired": float64(18),
		"termsAndConditions": "https://example.com/tc",
		"privacyPolicy":      "https://example.com/pp",
	}
}

func orgSubject(did string) map[string]any {
	return map[string]any{
		"id":          did,
		"name":        "Example Org",
		"logo":        "https://example.com/logo.png",
		"registryId":  "12345",
		"type":        "PUBLIC",
		"countryCode": "FR",
	}
}

// publishVP signs a credential and its wrapping presentation and serves
// the presentation under the given path
func (h *harness) publishVP(path string, holder, issuer identity, subject map[string]any, schemaCredentialURL string) {
	vc := map[string]any{
		"@context": []any{
			"https://www.w3.org/2018/credentials/v1",
			"https://w3id.org/security/suites/ed25519-2020/v1",
		},
		"id":           "urn:uuid:7d9f8b1e-5f55-4b94-b23a-000000000001",
		"type":         []any{"VerifiableCredential"},
		"issuer":       issuer.did,
		"issuanceDate": "2024-06-01T00:00:00Z",
		"credentialSchema": map[string]any{
			"id":   schemaCredentialURL,
			"type": "JsonSchemaCredential",
		},
		"credentialSubject": subject,
	}

	signedVC, err := h.signer.Sign2020(vc, issuer.priv, proof.SignOptions{
		VerificationMethod: issuer.did + "#key-1",
		ProofPurpose:       "assertionMethod",
		Created:            "2024-06-01T00:00:00Z",
	})
	require.NoError(h.t, err)

	vp := map[string]any{
		"@context": []any{
			"https://www.w3.org/2018/credentials/v1",
			"https://w3id.org/security/suites/ed25519-2020/v1",
		},
		"type":                 []any{"VerifiablePresentation"},
		"holder":               holder.did,
		"verifiableCredential": []any{signedVC},
	}
	signedVP, err := h.signer.Sign2020(vp, holder.priv, proof.SignOptions{
		VerificationMethod: holder.did + "#key-1",
		ProofPurpose:       "authentication",
		Created:            "2024-06-01T00:00:00Z",
	})
	require.NoError(h.t, err)

	h.serveJSON(path, signedVP)
}

func (h *harness) newService(t *testing.T, production bool) *Service {
	t.Helper()
	s, err := New(&model.ResolverConfig{
		VerifiablePublicRegistries: h.registries(production),
		DIDResolver:                h.resolver,
	})
	require.NoError(t, err)
	return s
}

func linkedVP(did, fragment, endpoint string) model.DIDService {
	return model.DIDService{
		ID:              did + "#" + fragment,
		Type:            model.ServiceTypeLinkedVP,
		ServiceEndpoint: model.ServiceEndpoint{endpoint},
	}
}

func TestResolveDIDWithoutTrustServices(t *testing.T) {
	h := newHarness(t)

	did := "did:web:chatbot-demo.dev.2060.io"
	h.resolver.documents[did] = &model.DIDDocument{
		ID: did,
		Service: []model.DIDService{
			{ID: did + "#did-communication", Type: "did-communication", ServiceEndpoint: model.ServiceEndpoint{"https://chatbot-demo.dev.2060.io"}},
			{ID: did + "#anoncreds", Type: "AnonCredsRegistry", ServiceEndpoint: model.ServiceEndpoint{"https://chatbot-demo.dev.2060.io/anoncreds"}},
		},
	}

	res := h.newService(t, true).ResolveDID(context.Background(), did)

	assert.False(t, res.Verified)
	assert.Equal(t, model.OutcomeInvalid, res.Outcome)
	require.NotNil(t, res.Metadata)
	assert.Equal(t, "not_found", res.Metadata.ErrorCode)
}

func TestResolveDIDSelfIssued(t *testing.T) {
	h := newHarness(t)

	id := newIdentity(t, "did:web:example.com")
	serviceSchemaURL := h.schemaCredential("service-js", "/vt/v1/cs/js/12345678", ecsServiceSchema)
	orgSchemaURL := h.schemaCredential("org-js", "/vt/v1/cs/js/87654321", ecsOrgSchema)

	h.resolver.documents[id.did] = &model.DIDDocument{
		ID: id.did,
		Service: []model.DIDService{
			linkedVP(id.did, "vpr-ecs-service-c-vp", h.server.URL+"/vp/service.json"),
			linkedVP(id.did, "vpr-ecs-org-c-vp", h.server.URL+"/vp/org.json"),
		},
		VerificationMethod: []model.VerificationMethod{id.verificationMethod(t)},
	}

	h.publishVP("/vp/service.json", id, id, serviceSubject(id.did), serviceSchemaURL)
	h.publishVP("/vp/org.json", id, id, orgSubject(id.did), orgSchemaURL)

	res := h.newService(t, true).ResolveDID(context.Background(), id.did)

	require.Nil(t, res.Metadata)
	assert.True(t, res.Verified)
	assert.Equal(t, model.OutcomeVerified, res.Outcome)
	require.NotNil(t, res.Service)
	require.NotNil(t, res.ServiceProvider)
	assert.Equal(t, model.SchemaTypeService, res.Service.SchemaType)
	assert.Equal(t, id.did, res.Service.Issuer)
	assert.Equal(t, model.SchemaTypeOrg, res.ServiceProvider.SchemaType)
	assert.Equal(t, id.did, res.ServiceProvider.Issuer)
	require.NotNil(t, res.Service.Service)
	assert.Equal(t, "Example Chat", res.Service.Service.Name)
}

func TestResolveDIDExternalIssuer(t *testing.T) {
	h := newHarness(t)

	a := newIdentity(t, "did:web:service.example.com")
	b := newIdentity(t, "did:web:issuer.example.net")

	serviceSchemaURL := h.schemaCredential("service-js", "/vt/v1/cs/js/12345678", ecsServiceSchema)
	orgSchemaURL := h.schemaCredential("org-js", "/vt/v1/cs/js/87654321", ecsOrgSchema)

	h.resolver.documents[a.did] = &model.DIDDocument{
		ID: a.did,
		Service: []model.DIDService{
			linkedVP(a.did, "vpr-ecs-service-c-vp", h.server.URL+"/vp/a-service.json"),
		},
		VerificationMethod: []model.VerificationMethod{a.verificationMethod(t)},
	}
	h.resolver.documents[b.did] = &model.DIDDocument{
		ID: b.did,
		Service: []model.DIDService{
			linkedVP(b.did, "vpr-ecs-org-c-vp", h.server.URL+"/vp/b-org.json"),
		},
		VerificationMethod: []model.VerificationMethod{b.verificationMethod(t)},
	}

	// A publishes a service credential issued by B; B carries its own chain
	h.publishVP("/vp/a-service.json", a, b, serviceSubject(a.did), serviceSchemaURL)
	h.publishVP("/vp/b-org.json", b, b, orgSubject(b.did), orgSchemaURL)

	res := h.newService(t, false).ResolveDID(context.Background(), a.did)

	require.Nil(t, res.Metadata)
	assert.True(t, res.Verified)
	assert.Equal(t, model.OutcomeVerifiedTest, res.Outcome)
	require.NotNil(t, res.Service)
	assert.Equal(t, b.did, res.Service.Issuer)
	require.NotNil(t, res.ServiceProvider)
	assert.Equal(t, model.SchemaTypeOrg, res.ServiceProvider.SchemaType)

	// A first, then B, nothing else
	assert.Equal(t, []string{a.did, b.did}, h.resolver.resolved())
}

func TestResolveDIDBadSRI(t *testing.T) {
	h := newHarness(t)

	id := newIdentity(t, "did:web:example.com")

	// schema credential whose subject digest does not match the bytes
	path := "/schemas/broken-js.json"
	ref := "vpr:verana/vt/v1/cs/js/12345678"
	h.serveJSON(path, map[string]any{
		"@context":     []any{"https://www.w3.org/2018/credentials/v1"},
		"id":           h.server.URL + path,
		"type":         []any{"VerifiableCredential", "JsonSchemaCredential"},
		"issuer":       "did:web:registry.example.net",
		"issuanceDate": "2023-01-01T00:00:00Z",
		"credentialSchema": map[string]any{
			"id":        h.server.URL + "/schemas/meta.json",
			"type":      "JsonSchema",
			"digestSRI": mustDigest(t, metaSchema),
		},
		"credentialSubject": map[string]any{
			"id":         ref,
			"type":       "JsonSchema",
			"jsonSchema": map[string]any{"$ref": ref},
			"digestSRI":  "sha256-AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA=",
		},
	})

	h.resolver.documents[id.did] = &model.DIDDocument{
		ID: id.did,
		Service: []model.DIDService{
			linkedVP(id.did, "vpr-ecs-service-c-vp", h.server.URL+"/vp/service.json"),
		},
		VerificationMethod: []model.VerificationMethod{id.verificationMethod(t)},
	}
	h.publishVP("/vp/service.json", id, id, serviceSubject(id.did), h.server.URL+path)

	res := h.newService(t, true).ResolveDID(context.Background(), id.did)

	assert.False(t, res.Verified)
	assert.Equal(t, model.OutcomeInvalid, res.Outcome)
	require.NotNil(t, res.Metadata)
	assert.Equal(t, "verification_failed", res.Metadata.ErrorCode)
}

func TestResolveDIDPermissionWindow(t *testing.T) {
	h := newHarness(t)
	h.perms[model.PermissionTypeIssuer] = []model.Permission{
		{
			Type:           model.PermissionTypeIssuer,
			Created:        "2020-01-01T00:00:00Z",
			EffectiveUntil: "2023-12-31T00:00:00Z",
		},
	}

	id := newIdentity(t, "did:web:example.com")
	serviceSchemaURL := h.schemaCredential("service-js", "/vt/v1/cs/js/12345678", ecsServiceSchema)

	h.resolver.documents[id.did] = &model.DIDDocument{
		ID: id.did,
		Service: []model.DIDService{
			linkedVP(id.did, "vpr-ecs-service-c-vp", h.server.URL+"/vp/service.json"),
		},
		VerificationMethod: []model.VerificationMethod{id.verificationMethod(t)},
	}
	// issued 2024-06-01, after the permission expired
	h.publishVP("/vp/service.json", id, id, serviceSubject(id.did), serviceSchemaURL)

	res := h.newService(t, true).ResolveDID(context.Background(), id.did)

	assert.False(t, res.Verified)
	require.NotNil(t, res.Metadata)
	assert.Equal(t, "invalid_permissions", res.Metadata.ErrorCode)
}

func TestResolveDIDEmpty(t *testing.T) {
	h := newHarness(t)

	res := h.newService(t, true).ResolveDID(context.Background(), "")

	assert.False(t, res.Verified)
	assert.Equal(t, model.OutcomeInvalid, res.Outcome)
	assert.Equal(t, "invalid", res.Metadata.ErrorCode)
}

func TestResolveDIDCachedSkipsProofVerification(t *testing.T) {
	h := newHarness(t)

	id := newIdentity(t, "did:web:example.com")
	serviceSchemaURL := h.schemaCredential("service-js", "/vt/v1/cs/js/12345678", ecsServiceSchema)
	orgSchemaURL := h.schemaCredential("org-js", "/vt/v1/cs/js/87654321", ecsOrgSchema)

	h.resolver.documents[id.did] = &model.DIDDocument{
		ID: id.did,
		Service: []model.DIDService{
			linkedVP(id.did, "vpr-ecs-service-c-vp", h.server.URL+"/vp/service.json"),
			linkedVP(id.did, "vpr-ecs-org-c-vp", h.server.URL+"/vp/org.json"),
		},
	}

	// unsigned presentations: only acceptable because cached is set
	h.serveJSON("/vp/service.json", map[string]any{
		"@context":             []any{"https://www.w3.org/2018/credentials/v1"},
		"type":                 []any{"VerifiablePresentation"},
		"holder":               id.did,
		"verifiableCredential": []any{unsignedVC(id.did, serviceSubject(id.did), serviceSchemaURL)},
	})
	h.serveJSON("/vp/org.json", map[string]any{
		"@context":             []any{"https://www.w3.org/2018/credentials/v1"},
		"type":                 []any{"VerifiablePresentation"},
		"holder":               id.did,
		"verifiableCredential": []any{unsignedVC(id.did, orgSubject(id.did), orgSchemaURL)},
	})

	s, err := New(&model.ResolverConfig{
		VerifiablePublicRegistries: h.registries(true),
		DIDResolver:                h.resolver,
		Cached:                     true,
	})
	require.NoError(t, err)

	res := s.ResolveDID(context.Background(), id.did)

	require.Nil(t, res.Metadata)
	assert.True(t, res.Verified)
	assert.Equal(t, model.OutcomeVerified, res.Outcome)
}

func unsignedVC(issuer string, subject map[string]any, schemaCredentialURL string) map[string]any {
	return map[string]any{
		"@context":     []any{"https://www.w3.org/2018/credentials/v1"},
		"type":         []any{"VerifiableCredential"},
		"issuer":       issuer,
		"issuanceDate": "2024-06-01T00:00:00Z",
		"credentialSchema": map[string]any{
			"id":   schemaCredentialURL,
			"type": "JsonSchemaCredential",
		},
		"credentialSubject": subject,
	}
}

func TestResolveCredentialDirect(t *testing.T) {
	h := newHarness(t)

	serviceSchemaURL := h.schemaCredential("service-js", "/vt/v1/cs/js/12345678", ecsServiceSchema)

	s := h.newService(t, true)
	res := s.ResolveCredential(context.Background(), unsignedVC("did:web:example.com", serviceSubject("did:web:example.com"), serviceSchemaURL))

	assert.True(t, res.Verified)
	assert.Equal(t, model.OutcomeVerified, res.Outcome)
	assert.Equal(t, "did:web:example.com", res.Issuer)
}

func TestResolveCredentialFailure(t *testing.T) {
	h := newHarness(t)

	s := h.newService(t, true)
	res := s.ResolveCredential(context.Background(), map[string]any{
		"type":              []any{"VerifiableCredential"},
		"credentialSubject": map[string]any{"id": "did:web:a"},
	})

	assert.False(t, res.Verified)
	assert.Equal(t, model.OutcomeInvalid, res.Outcome)
	require.NotNil(t, res.Metadata)
	assert.Equal(t, "not_found", res.Metadata.ErrorCode)
}

func TestVerifyPermissionsHolder(t *testing.T) {
	h := newHarness(t)
	h.perms[model.PermissionTypeHolder] = []model.Permission{
		{Type: model.PermissionTypeHolder, Created: "2020-01-01T00:00:00Z"},
	}

	schemaURL := h.schemaCredential("service-js", "/vt/v1/cs/js/12345678", ecsServiceSchema)

	res := VerifyPermissions(context.Background(), model.VerifyPermissionsRequest{
		DID:                        "did:web:holder.example.com",
		JSONSchemaCredentialID:     schemaURL,
		IssuanceDate:               "2024-06-01T00:00:00Z",
		VerifiablePublicRegistries: h.registries(true),
		PermissionType:             model.PermissionTypeHolder,
	})

	assert.True(t, res.Verified)
	assert.Nil(t, res.Metadata)
}

func TestVerifyPermissionsMissingPermission(t *testing.T) {
	h := newHarness(t)

	schemaURL := h.schemaCredential("service-js", "/vt/v1/cs/js/12345678", ecsServiceSchema)

	res := VerifyPermissions(context.Background(), model.VerifyPermissionsRequest{
		DID:                        "did:web:holder.example.com",
		JSONSchemaCredentialID:     schemaURL,
		IssuanceDate:               "2024-06-01T00:00:00Z",
		VerifiablePublicRegistries: h.registries(true),
		PermissionType:             model.PermissionTypeHolder,
	})

	assert.False(t, res.Verified)
	require.NotNil(t, res.Metadata)
	assert.Equal(t, "invalid_permissions", res.Metadata.ErrorCode)
}

func TestVerifyPermissionsValidation(t *testing.T) {
	res := VerifyPermissions(context.Background(), model.VerifyPermissionsRequest{})
	assert.False(t, res.Verified)
	require.NotNil(t, res.Metadata)
}

func TestWorseOutcome(t *testing.T) {
	assert.Equal(t, model.OutcomeVerifiedTest, worseOutcome(model.OutcomeVerified, model.OutcomeVerifiedTest))
	assert.Equal(t, model.OutcomeVerifiedTest, worseOutcome(model.OutcomeVerifiedTest, model.OutcomeVerified))
	assert.Equal(t, model.OutcomeNotTrusted, worseOutcome(model.OutcomeNotTrusted, model.OutcomeVerified))
	assert.Equal(t, model.OutcomeVerified, worseOutcome(model.OutcomeVerified, model.OutcomeVerified))
}

func TestFragmentPatterns(t *testing.T) {
	assert.True(t, fragmentParticipates("vpr-ecs-service-c-vp"))
	assert.True(t, fragmentParticipates("vpr-schemas-example-credential-c-vp"))
	assert.False(t, fragmentParticipates("vpr-ecs-service"))
	assert.False(t, fragmentParticipates("did-communication"))
	assert.False(t, fragmentParticipates(""))
}
