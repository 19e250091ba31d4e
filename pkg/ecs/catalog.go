// Package ecs carries the entity credential schemas and classifies
// credential subjects against them.
package ecs

import (
	"embed"
	"encoding/json"
	"sync"

	"github.com/kaptinlin/jsonschema"

	"verre/pkg/model"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// catalog entries in fixed classification order
var catalogOrder = []struct {
	name       string
	file       string
	schemaType model.SchemaType
}{
	{"ecs-org", "schemas/ecs-org.json", model.SchemaTypeOrg},
	{"ecs-person", "schemas/ecs-person.json", model.SchemaTypePerson},
	{"ecs-service", "schemas/ecs-service.json", model.SchemaTypeService},
	{"ecs-user-agent", "schemas/ecs-user-agent.json", model.SchemaTypeUserAgent},
}

type catalogEntry struct {
	name       string
	schemaType model.SchemaType
	schema     *jsonschema.Schema
}

var (
	catalog     []catalogEntry
	catalogOnce sync.Once
	catalogErr  error
)

func compiled() ([]catalogEntry, error) {
	catalogOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		for _, entry := range catalogOrder {
			raw, err := schemaFS.ReadFile(entry.file)
			if err != nil {
				catalogErr = err
				return
			}
			schema, err := compiler.Compile(raw)
			if err != nil {
				catalogErr = err
				return
			}
			catalog = append(catalog, catalogEntry{name: entry.name, schemaType: entry.schemaType, schema: schema})
		}
	})
	return catalog, catalogErr
}

// Classify returns the schema type of the first entity credential schema
// whose credentialSubject sub-schema validates the subject, in catalog
// order, or SchemaTypeUnknown.
func Classify(subject map[string]any) model.SchemaType {
	entries, err := compiled()
	if err != nil {
		return model.SchemaTypeUnknown
	}

	wrapped := map[string]any{"credentialSubject": subject}
	for _, entry := range entries {
		if entry.schema.Validate(wrapped).IsValid() {
			return entry.schemaType
		}
	}

	return model.SchemaTypeUnknown
}

// Build classifies the subject and decodes it into a typed credential
func Build(id, issuer, issuanceDate string, subject map[string]any) *model.Credential {
	credential := &model.Credential{
		SchemaType:   Classify(subject),
		ID:           id,
		Issuer:       issuer,
		IssuanceDate: issuanceDate,
		Subject:      subject,
	}

	raw, err := json.Marshal(subject)
	if err != nil {
		return credential
	}

	switch credential.SchemaType {
	case model.SchemaTypeOrg:
		details := &model.OrgDetails{}
		if json.Unmarshal(raw, details) == nil {
			credential.Org = details
		}
	case model.SchemaTypePerson:
		details := &model.PersonDetails{}
		if json.Unmarshal(raw, details) == nil {
			credential.Person = details
		}
	case model.SchemaTypeService:
		details := &model.ServiceDetails{}
		if json.Unmarshal(raw, details) == nil {
			credential.Service = details
		}
	case model.SchemaTypeUserAgent:
		details := &model.UserAgentDetails{}
		if json.Unmarshal(raw, details) == nil {
			credential.UserAgent = details
		}
	}

	return credential
}
