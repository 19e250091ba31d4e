// Package resolver is the trust-resolution engine: it walks a DID's linked
// verifiable presentations, verifies their proofs, validates the embedded
// credentials against the configured registries and returns the trust
// verdict.
package resolver

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"regexp"
	"time"

	"golang.org/x/sync/errgroup"

	"verre/pkg/credential"
	"verre/pkg/didresolver"
	"verre/pkg/docloader"
	"verre/pkg/logger"
	"verre/pkg/model"
	"verre/pkg/permission"
	"verre/pkg/proof"
	"verre/pkg/registry"
)

// participating service fragments
var servicePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^vpr-schemas.*-c-vp$`),
	regexp.MustCompile(`^vpr-ecs.*-c-vp$`),
}

// Service is a configured trust resolver. It is safe for concurrent use.
type Service struct {
	cfg        model.ResolverConfig
	resolver   model.DIDResolver
	loader     *docloader.Loader
	verifier   *proof.Verifier
	processor  *credential.Processor
	httpClient *http.Client
	log        *logger.Log
}

// New creates a resolver service, applying defaults for every unset option
func New(cfg *model.ResolverConfig) (*Service, error) {
	if cfg == nil {
		cfg = &model.ResolverConfig{}
	}

	log := cfg.Logger
	if log == nil {
		log = logger.NewSimple("resolver")
	}

	didResolver := cfg.DIDResolver
	if didResolver == nil {
		didResolver = didresolver.New(log)
	}

	registries := cfg.VerifiablePublicRegistries
	if len(registries) == 0 {
		registries = DefaultRegistries()
	}

	loader := docloader.New(didResolver, log)

	s := &Service{
		cfg: model.ResolverConfig{
			VerifiablePublicRegistries: registries,
			DIDResolver:                didResolver,
			Cached:                     cfg.Cached,
			SkipDigestSRICheck:         cfg.SkipDigestSRICheck,
			Logger:                     log,
		},
		resolver:   didResolver,
		loader:     loader,
		verifier:   proof.NewVerifier(loader, didResolver, log),
		processor:  credential.NewProcessor(nil, log),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		log:        log,
	}

	return s, nil
}

// ResolveDID determines whether the DID is trusted by the configured
// registries. Failures are folded into the returned envelope.
func (s *Service) ResolveDID(ctx context.Context, did string) model.TrustResolution {
	if did == "" {
		return model.FailedResolution(model.NewErrorDetails(model.CodeInvalid, "empty DID"))
	}

	resolution := s.resolveDID(ctx, did, 0, nil)
	if resolution.Metadata != nil && resolution.Metadata.ErrorCode != "" {
		s.log.Info("trust resolution failed", "did", did, "errorCode", resolution.Metadata.ErrorCode)
	}
	return resolution
}

// resolveDID is the recursive worker. depth bounds external-issuer
// recursion to a single level; presetService short-circuits service
// selection in the nested call.
func (s *Service) resolveDID(ctx context.Context, did string, depth int, presetService *credential.Result) model.TrustResolution {
	didResolution, err := s.resolver.Resolve(ctx, did)
	if err != nil {
		return model.FailedResolution(err)
	}
	didDocument := didResolution.DIDDocument

	results, err := s.processServices(ctx, didDocument)
	if err != nil {
		return model.FailedResolution(err)
	}

	serviceResult := presetService
	if serviceResult == nil {
		serviceResult = firstOfType(results, model.SchemaTypeService)
	}
	providerResult := firstProvider(results)

	// a service credential issued by another DID hands trust resolution
	// over to that issuer, one level deep
	if depth == 0 && serviceResult != nil && serviceResult.Credential.Issuer != did {
		nested := s.resolveDID(ctx, serviceResult.Credential.Issuer, depth+1, serviceResult)
		if nested.Verified {
			return model.TrustResolution{
				DIDDocument:     didDocument,
				Verified:        true,
				Outcome:         worseOutcome(nested.Outcome, serviceResult.Outcome),
				Service:         nested.Service,
				ServiceProvider: nested.ServiceProvider,
			}
		}
		s.log.Debug("external issuer resolution failed, falling back to local credentials",
			"did", did, "issuer", serviceResult.Credential.Issuer)
	}

	if serviceResult == nil || providerResult == nil {
		return model.FailedResolution(model.NewErrorDetails(model.CodeNotFound,
			"DID document carries no usable service and service provider credentials: "+did))
	}

	outcome := worseOutcome(serviceResult.Outcome, providerResult.Outcome)
	if outcome == model.OutcomeNotTrusted {
		return model.TrustResolution{
			DIDDocument:     didDocument,
			Verified:        false,
			Outcome:         model.OutcomeNotTrusted,
			Service:         serviceResult.Credential,
			ServiceProvider: providerResult.Credential,
		}
	}

	return model.TrustResolution{
		DIDDocument:     didDocument,
		Verified:        true,
		Outcome:         outcome,
		Service:         serviceResult.Credential,
		ServiceProvider: providerResult.Credential,
	}
}

// processServices fans out over the participating linked-VP services. The
// first branch error fails the whole resolution.
func (s *Service) processServices(ctx context.Context, didDocument *model.DIDDocument) ([]*credential.Result, error) {
	var matching []model.DIDService
	for _, svc := range didDocument.Service {
		if svc.Type != model.ServiceTypeLinkedVP {
			continue
		}
		if !fragmentParticipates(svc.Fragment()) {
			continue
		}
		if svc.ServiceEndpoint.First() == "" {
			continue
		}
		matching = append(matching, svc)
	}

	results := make([]*credential.Result, len(matching))
	group, groupCtx := errgroup.WithContext(ctx)
	for i, svc := range matching {
		group.Go(func() error {
			result, err := s.processService(groupCtx, svc)
			if err != nil {
				return err
			}
			results[i] = result
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	out := make([]*credential.Result, 0, len(results))
	for _, r := range results {
		if r != nil {
			out = append(out, r)
		}
	}
	return out, nil
}

// processService fetches one linked VP, verifies it and processes its
// first credential
func (s *Service) processService(ctx context.Context, svc model.DIDService) (*credential.Result, error) {
	vp, err := s.fetchPresentation(ctx, svc.ServiceEndpoint.First())
	if err != nil {
		return nil, err
	}

	if !s.cfg.Cached {
		if err := s.verifier.Verify(ctx, vp); err != nil {
			return nil, err
		}
	}

	vcs := model.PresentationCredentials(vp)
	if len(vcs) == 0 {
		return nil, model.NewErrorDetails(model.CodeNotFound, "presentation carries no credential: "+svc.ID)
	}
	vc := vcs[0]

	subject, err := model.NormalizeOne(vc["credentialSubject"])
	if err != nil {
		return nil, model.NewErrorDetails(model.CodeNotFound, "credential carries no credentialSubject: "+svc.ID)
	}

	return s.processor.Process(ctx, vc, credential.Input{
		Registries:         s.cfg.VerifiablePublicRegistries,
		SkipDigestSRICheck: s.cfg.SkipDigestSRICheck,
		PermissionType:     model.PermissionTypeIssuer,
		Issuer:             model.IssuerOf(vc),
		IssuanceDate:       model.IssuanceDateOf(vc),
		Attrs:              subject,
	})
}

// ResolveCredential validates a single credential directly
func (s *Service) ResolveCredential(ctx context.Context, vc map[string]any) model.CredentialResolution {
	if vc == nil {
		return model.FailedCredentialResolution(model.NewErrorDetails(model.CodeInvalid, "nil credential"))
	}

	subject, err := model.NormalizeOne(vc["credentialSubject"])
	if err != nil {
		return model.FailedCredentialResolution(model.NewErrorDetails(model.CodeNotFound, "credential carries no credentialSubject"))
	}

	result, err := s.processor.Process(ctx, vc, credential.Input{
		Registries:         s.cfg.VerifiablePublicRegistries,
		SkipDigestSRICheck: s.cfg.SkipDigestSRICheck,
		PermissionType:     model.PermissionTypeIssuer,
		Issuer:             model.IssuerOf(vc),
		IssuanceDate:       model.IssuanceDateOf(vc),
		Attrs:              subject,
	})
	if err != nil {
		return model.FailedCredentialResolution(err)
	}

	return model.CredentialResolution{
		Verified: result.Outcome == model.OutcomeVerified || result.Outcome == model.OutcomeVerifiedTest,
		Outcome:  result.Outcome,
		Issuer:   result.Credential.Issuer,
	}
}

// VerifyPermissions fetches a schema credential and checks that the DID
// holds a permission of the requested type for the referenced schema
func (s *Service) VerifyPermissions(ctx context.Context, req model.VerifyPermissionsRequest) model.PermissionResolution {
	if err := model.Check(req); err != nil {
		return failedPermission(err)
	}

	raw, err := s.fetchRaw(ctx, req.JSONSchemaCredentialID)
	if err != nil {
		return failedPermission(err)
	}

	var schemaVC map[string]any
	if err := json.Unmarshal(raw, &schemaVC); err != nil {
		return failedPermission(model.NewErrorDetails(model.CodeInvalid, "schema credential is not JSON: "+err.Error()))
	}

	subject, err := model.NormalizeOne(schemaVC["credentialSubject"])
	if err != nil {
		return failedPermission(model.NewErrorDetails(model.CodeNotFound, "schema credential carries no credentialSubject"))
	}

	jsonSchema, ok := subject["jsonSchema"].(map[string]any)
	if !ok {
		return failedPermission(model.NewErrorDetails(model.CodeNotSupported, "schema credential carries no jsonSchema reference"))
	}
	ref, _ := jsonSchema["$ref"].(string)
	if ref == "" {
		return failedPermission(model.NewErrorDetails(model.CodeNotSupported, "jsonSchema carries no $ref"))
	}

	registries := req.VerifiablePublicRegistries
	if len(registries) == 0 {
		registries = s.cfg.VerifiablePublicRegistries
	}

	resolution, err := registry.Resolve(ref, registries)
	if err != nil {
		return failedPermission(err)
	}
	if resolution.Outcome == model.OutcomeNotTrusted {
		return failedPermission(model.NewErrorDetails(model.CodeInvalidPermissions, "no configured registry covers "+ref))
	}

	permClient := permission.NewClient(s.httpClient, s.log)
	if err := permClient.Verify(ctx, resolution.TrustRegistry, resolution.SchemaID, req.IssuanceDate, req.DID, req.PermissionType); err != nil {
		return failedPermission(err)
	}

	return model.PermissionResolution{Verified: true}
}

func failedPermission(err error) model.PermissionResolution {
	trustErr := model.NewErrorFromError(err)
	return model.PermissionResolution{
		Verified: false,
		Metadata: &model.Metadata{ErrorCode: trustErr.Title, ErrorMessage: trustErr.Message()},
	}
}

// fetchPresentation retrieves and decodes a linked VP
func (s *Service) fetchPresentation(ctx context.Context, endpoint string) (map[string]any, error) {
	raw, err := s.fetchRaw(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var vp map[string]any
	if err := json.Unmarshal(raw, &vp); err != nil {
		return nil, model.NewErrorDetails(model.CodeInvalid, "presentation is not JSON: "+err.Error())
	}
	return vp, nil
}

func (s *Service) fetchRaw(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, model.NewErrorFromError(err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, model.NewErrorFromError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, model.NewErrorDetails(model.CodeNotFound, rawURL+" returned "+resp.Status)
	}

	return io.ReadAll(resp.Body)
}

func fragmentParticipates(fragment string) bool {
	for _, pattern := range servicePatterns {
		if pattern.MatchString(fragment) {
			return true
		}
	}
	return false
}

func firstOfType(results []*credential.Result, schemaType model.SchemaType) *credential.Result {
	for _, result := range results {
		if result.Credential != nil && result.Credential.SchemaType == schemaType {
			return result
		}
	}
	return nil
}

func firstProvider(results []*credential.Result) *credential.Result {
	for _, result := range results {
		if result.Credential == nil {
			continue
		}
		if result.Credential.SchemaType == model.SchemaTypeOrg || result.Credential.SchemaType == model.SchemaTypePerson {
			return result
		}
	}
	return nil
}

// outcome severity, worst first
var outcomeRank = map[model.Outcome]int{
	model.OutcomeInvalid:      0,
	model.OutcomeNotTrusted:   1,
	model.OutcomeVerifiedTest: 2,
	model.OutcomeVerified:     3,
}

func worseOutcome(a, b model.Outcome) model.Outcome {
	if outcomeRank[a] <= outcomeRank[b] {
		return a
	}
	return b
}
