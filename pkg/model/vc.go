package model

import "fmt"

// HasType checks if a JSON-LD object has a specific type
func HasType(m map[string]any, expectedType string) bool {
	t, ok := m["type"]
	if !ok {
		t, ok = m["@type"]
	}
	if !ok {
		return false
	}

	if s, ok := t.(string); ok {
		return s == expectedType
	}
	if list, ok := t.([]any); ok {
		for _, item := range list {
			if s, ok := item.(string); ok && s == expectedType {
				return true
			}
		}
	}
	return false
}

// IssuerOf extracts the issuer DID of a credential, accepting both the
// plain-string and the {id: ...} wire forms
func IssuerOf(vc map[string]any) string {
	switch issuer := vc["issuer"].(type) {
	case string:
		return issuer
	case map[string]any:
		if id, ok := issuer["id"].(string); ok {
			return id
		}
	}
	return ""
}

// IssuanceDateOf extracts the issuance timestamp of a credential, falling
// back to the VCDM 2.0 validFrom field
func IssuanceDateOf(vc map[string]any) string {
	if s, ok := vc["issuanceDate"].(string); ok {
		return s
	}
	if s, ok := vc["validFrom"].(string); ok {
		return s
	}
	return ""
}

// NormalizeOne collapses an object-or-array credential field to a single
// object. Arrays longer than one are rejected only when the entries
// disagree on $ref; otherwise the first entry wins.
func NormalizeOne(v any) (map[string]any, error) {
	switch value := v.(type) {
	case map[string]any:
		return value, nil
	case []any:
		if len(value) == 0 {
			return nil, ErrNotFound
		}
		first, ok := value[0].(map[string]any)
		if !ok {
			return nil, NewErrorDetails(CodeInvalid, fmt.Sprintf("expected object, got %T", value[0]))
		}
		for _, other := range value[1:] {
			otherMap, ok := other.(map[string]any)
			if !ok {
				continue
			}
			if refOf(otherMap) != refOf(first) {
				return nil, NewErrorDetails(CodeInvalid, "ambiguous credential field: entries disagree on $ref")
			}
		}
		return first, nil
	case nil:
		return nil, ErrNotFound
	}
	return nil, NewErrorDetails(CodeInvalid, fmt.Sprintf("expected object or array, got %T", v))
}

func refOf(m map[string]any) string {
	if ref, ok := m["$ref"].(string); ok {
		return ref
	}
	if id, ok := m["id"].(string); ok {
		return id
	}
	return ""
}

// PresentationCredentials extracts the embedded credentials of a VP
func PresentationCredentials(vp map[string]any) []map[string]any {
	var out []map[string]any
	switch vcs := vp["verifiableCredential"].(type) {
	case map[string]any:
		out = append(out, vcs)
	case []any:
		for _, vc := range vcs {
			if m, ok := vc.(map[string]any); ok {
				out = append(out, m)
			}
		}
	}
	return out
}
