// Package contexts embeds the well-known JSON-LD contexts so proof
// verification never fetches them over the network.
package contexts

import (
	"embed"
	"fmt"
)

//go:embed data/*.jsonld
var contextFS embed.FS

var contextMap = map[string]string{
	"https://www.w3.org/2018/credentials/v1":                          "data/credentials-v1.jsonld",
	"https://www.w3.org/ns/credentials/v2":                            "data/credentials-v2.jsonld",
	"https://www.w3.org/ns/did/v1":                                    "data/did-v1.jsonld",
	"https://w3id.org/security/suites/ed25519-2018/v1":                "data/ed25519-2018-v1.jsonld",
	"https://w3id.org/security/suites/ed25519-2020/v1":                "data/ed25519-2020-v1.jsonld",
	"https://w3id.org/security/v1":                                    "data/security-v1.jsonld",
	"https://w3id.org/security/v2":                                    "data/security-v2.jsonld",
	"https://w3id.org/security/data-integrity/v2":                     "data/data-integrity-v2.jsonld",
	"https://w3id.org/security/multikey/v1":                           "data/multikey-v1.jsonld",
	"https://www.w3.org/2018/credentials/examples/v1":                 "data/credentials-examples-v1.jsonld",
	"https://verana-labs.github.io/verifiable-trust-spec/contexts/v1": "data/verifiable-trust-v1.jsonld",
}

// GetContext returns the content of a well-known context
func GetContext(url string) ([]byte, error) {
	filename, ok := contextMap[url]
	if !ok {
		return nil, fmt.Errorf("context not found: %s", url)
	}
	return contextFS.ReadFile(filename)
}

// GetAllContexts returns all embedded contexts keyed by URL
func GetAllContexts() map[string][]byte {
	result := make(map[string][]byte)
	for url, filename := range contextMap {
		data, err := contextFS.ReadFile(filename)
		if err == nil {
			result[url] = data
		}
	}
	return result
}
