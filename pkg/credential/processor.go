// Package credential validates a verifiable credential against its
// registered schema and the issuer's registry permissions.
package credential

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/kaptinlin/jsonschema"
	"golang.org/x/sync/errgroup"

	"verre/pkg/ecs"
	"verre/pkg/logger"
	"verre/pkg/model"
	"verre/pkg/permission"
	"verre/pkg/registry"
	"verre/pkg/sri"
)

const (
	schemaTypeJSONSchemaCredential = "JsonSchemaCredential"
	schemaTypeJSONSchema           = "JsonSchema"
)

// Input carries the processing options and, on the recursive branch, the
// parent credential's issuer, issuance date and subject.
type Input struct {
	Registries         []model.VerifiablePublicRegistry
	SkipDigestSRICheck bool
	PermissionType     model.PermissionType

	Issuer       string
	IssuanceDate string
	Attrs        map[string]any
}

// Result is a processed credential and the registry outcome it earned
type Result struct {
	Credential *model.Credential
	Outcome    model.Outcome
}

// Processor chains schema resolution, content-integrity checks, schema
// validation and the permission query for one credential.
type Processor struct {
	httpClient  *http.Client
	permissions *permission.Client
	log         *logger.Log
}

// NewProcessor creates a processor. A nil http client gets a 10 second
// timeout default.
func NewProcessor(httpClient *http.Client, log *logger.Log) *Processor {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if log == nil {
		log = logger.NewSimple("credential")
	}
	return &Processor{
		httpClient:  httpClient,
		permissions: permission.NewClient(httpClient, log),
		log:         log,
	}
}

// Process validates the credential. The initial call passes the VC's own
// issuer, issuance date and subject in the input; the JsonSchemaCredential
// branch recurses with the referenced schema credential while forwarding
// those fields.
func (p *Processor) Process(ctx context.Context, vc map[string]any, in Input) (*Result, error) {
	schema, err := model.NormalizeOne(vc["credentialSchema"])
	if err != nil {
		return nil, model.NewErrorDetails(model.CodeNotFound, "credential carries no credentialSchema")
	}
	subject, err := model.NormalizeOne(vc["credentialSubject"])
	if err != nil {
		return nil, model.NewErrorDetails(model.CodeNotFound, "credential carries no credentialSubject")
	}

	if in.PermissionType == "" {
		in.PermissionType = model.PermissionTypeIssuer
	}

	schemaType, _ := schema["type"].(string)
	switch schemaType {
	case schemaTypeJSONSchemaCredential:
		return p.processSchemaCredential(ctx, vc, schema, subject, in)
	case schemaTypeJSONSchema:
		return p.processJSONSchema(ctx, vc, schema, subject, in)
	}

	return nil, model.NewErrorDetails(model.CodeInvalid, "unsupported credentialSchema type: "+schemaType)
}

// processSchemaCredential fetches the referenced schema credential and
// recurses with it, forwarding this credential's issuer, issuance date and
// subject as the next call's attrs.
func (p *Processor) processSchemaCredential(ctx context.Context, vc, schema, subject map[string]any, in Input) (*Result, error) {
	schemaID, _ := schema["id"].(string)
	if schemaID == "" {
		return nil, model.NewErrorDetails(model.CodeNotFound, "credentialSchema carries no id")
	}

	raw, err := p.fetch(ctx, schemaID)
	if err != nil {
		return nil, err
	}

	var schemaVC map[string]any
	if err := json.Unmarshal(raw, &schemaVC); err != nil {
		return nil, model.NewErrorDetails(model.CodeInvalid, "schema credential is not JSON: "+err.Error())
	}

	next := in
	next.Issuer = model.IssuerOf(vc)
	next.IssuanceDate = model.IssuanceDateOf(vc)
	next.Attrs = subject

	return p.Process(ctx, schemaVC, next)
}

// processJSONSchema resolves the registry, checks content integrity,
// validates both schema layers and authorizes the issuer.
func (p *Processor) processJSONSchema(ctx context.Context, vc, schema, subject map[string]any, in Input) (*Result, error) {
	ref, err := schemaRef(subject)
	if err != nil {
		return nil, err
	}

	resolution, err := registry.Resolve(ref, in.Registries)
	if err != nil {
		return nil, err
	}
	if resolution.Outcome == model.OutcomeNotTrusted {
		// no registry to fetch from or to query; the verdict is final
		vcID, _ := vc["id"].(string)
		return &Result{
			Credential: ecs.Build(vcID, in.Issuer, in.IssuanceDate, in.Attrs),
			Outcome:    model.OutcomeNotTrusted,
		}, nil
	}

	outerURL, _ := schema["id"].(string)
	if outerURL == "" {
		return nil, model.NewErrorDetails(model.CodeNotFound, "credentialSchema carries no id")
	}

	var outerRaw, innerRaw []byte
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		var err error
		outerRaw, err = p.fetch(groupCtx, outerURL)
		return err
	})
	group.Go(func() error {
		var err error
		innerRaw, err = p.fetch(groupCtx, resolution.SchemaURL)
		return err
	})
	if err := group.Wait(); err != nil {
		return nil, err
	}

	if !in.SkipDigestSRICheck {
		outerDigest, _ := schema["digestSRI"].(string)
		if outerDigest == "" {
			return nil, model.NewErrorDetails(model.CodeVerificationFailed, "credentialSchema carries no digestSRI")
		}
		if err := sri.Verify(outerRaw, outerDigest); err != nil {
			return nil, err
		}

		innerDigest, _ := subject["digestSRI"].(string)
		if innerDigest == "" {
			return nil, model.NewErrorDetails(model.CodeVerificationFailed, "credentialSubject carries no digestSRI")
		}
		if err := sri.Verify(innerRaw, innerDigest); err != nil {
			return nil, err
		}
	}

	if err := validateAgainst(outerRaw, vc, false); err != nil {
		return nil, err
	}
	if err := validateAgainst(innerRaw, in.Attrs, true); err != nil {
		return nil, err
	}

	if in.Issuer == "" || in.IssuanceDate == "" {
		return nil, model.NewErrorDetails(model.CodeInvalidPermissions, "credential chain carries no issuer or issuance date")
	}

	if err := p.permissions.Verify(ctx, resolution.TrustRegistry, resolution.SchemaID, in.IssuanceDate, in.Issuer, in.PermissionType); err != nil {
		return nil, err
	}

	vcID, _ := vc["id"].(string)
	return &Result{
		Credential: ecs.Build(vcID, in.Issuer, in.IssuanceDate, in.Attrs),
		Outcome:    resolution.Outcome,
	}, nil
}

// schemaRef extracts credentialSubject.jsonSchema.$ref, the only accepted
// reference form
func schemaRef(subject map[string]any) (string, error) {
	jsonSchema, ok := subject["jsonSchema"].(map[string]any)
	if !ok {
		return "", model.NewErrorDetails(model.CodeNotSupported, "credentialSubject carries no jsonSchema reference")
	}
	ref, _ := jsonSchema["$ref"].(string)
	if ref == "" {
		return "", model.NewErrorDetails(model.CodeNotSupported, "jsonSchema carries no $ref")
	}
	return ref, nil
}

// validateAgainst validates a document with a fetched 2020-12 schema. When
// subjectOnly is set and the schema declares a credentialSubject
// sub-schema, that sub-schema is applied instead of the whole document
// schema.
func validateAgainst(schemaRaw []byte, document map[string]any, subjectOnly bool) error {
	compiler := jsonschema.NewCompiler()

	target := schemaRaw
	if subjectOnly {
		if sub := subjectSchema(schemaRaw); sub != nil {
			target = sub
		}
	}

	schema, err := compiler.Compile(target)
	if err != nil {
		return model.NewErrorDetails(model.CodeInvalid, "unparsable schema: "+err.Error())
	}

	if result := schema.Validate(document); !result.IsValid() {
		return model.NewErrorDetails(model.CodeSchemaMismatch, "document does not match its schema")
	}

	return nil
}

// subjectSchema extracts properties.credentialSubject when present
func subjectSchema(schemaRaw []byte) []byte {
	var parsed struct {
		Properties map[string]json.RawMessage `json:"properties"`
	}
	if err := json.Unmarshal(schemaRaw, &parsed); err != nil {
		return nil
	}
	sub, ok := parsed.Properties["credentialSubject"]
	if !ok {
		return nil
	}
	return sub
}

// fetch retrieves raw bytes; digests are computed over exactly what was
// received
func (p *Processor) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, model.NewErrorFromError(err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, model.NewErrorFromError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, model.NewErrorDetails(model.CodeNotFound, rawURL+" returned "+resp.Status)
	}

	return io.ReadAll(resp.Body)
}
