// Package registry maps credential schema references onto the configured
// verifiable public registries.
package registry

import (
	"net/url"
	"strings"

	"verre/pkg/model"
)

// Resolution locates a schema inside a trust registry
type Resolution struct {
	// Outcome is VERIFIED for production registries, VERIFIED_TEST
	// otherwise, NOT_TRUSTED when no registry covers the reference
	Outcome model.Outcome

	// SchemaURL is the reference rewritten onto the registry's physical origin
	SchemaURL string

	// TrustRegistry is "<origin>/<first path segment>"
	TrustRegistry string

	// SchemaID is the last path segment of the schema URL
	SchemaID string
}

// Resolve matches a schema $ref against the registry list. The first
// registry whose logical id prefixes the reference wins; its physical
// base URL replaces the logical prefix.
func Resolve(ref string, registries []model.VerifiablePublicRegistry) (*Resolution, error) {
	var matched *model.VerifiablePublicRegistry
	for i := range registries {
		if registries[i].Matches(ref) {
			matched = &registries[i]
			break
		}
	}

	if matched == nil {
		return &Resolution{Outcome: model.OutcomeNotTrusted}, nil
	}
	if len(matched.BaseURLs) == 0 {
		return nil, model.NewErrorDetails(model.CodeInvalidRequest, "registry has no base URL: "+matched.ID)
	}

	schemaURL := matched.BaseURLs[0] + strings.TrimPrefix(ref, matched.ID)

	parsed, err := url.Parse(schemaURL)
	if err != nil {
		return nil, model.NewErrorDetails(model.CodeInvalid, "unparsable schema URL: "+schemaURL)
	}

	segments := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	if len(segments) == 0 || segments[0] == "" {
		return nil, model.NewErrorDetails(model.CodeInvalid, "schema URL has no path: "+schemaURL)
	}

	outcome := model.OutcomeVerifiedTest
	if matched.Production {
		outcome = model.OutcomeVerified
	}

	return &Resolution{
		Outcome:       outcome,
		SchemaURL:     schemaURL,
		TrustRegistry: parsed.Scheme + "://" + parsed.Host + "/" + segments[0],
		SchemaID:      segments[len(segments)-1],
	}, nil
}
