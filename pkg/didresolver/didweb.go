package didresolver

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"verre/pkg/model"
)

// WebResolver resolves did:web identifiers
type WebResolver struct {
	httpClient *http.Client

	// Scheme is https; tests may lower it
	Scheme string
}

// NewWebResolver creates a did:web resolver. A nil client gets a 10 second
// timeout default.
func NewWebResolver(httpClient *http.Client) *WebResolver {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &WebResolver{httpClient: httpClient, Scheme: "https"}
}

// Method implements MethodResolver
func (w *WebResolver) Method() string { return "web" }

// Resolve implements model.DIDResolver
func (w *WebResolver) Resolve(ctx context.Context, did string) (*model.DIDResolution, error) {
	docURL, err := w.documentURL(did)
	if err != nil {
		return nil, err
	}

	raw, err := fetchJSON(ctx, w.httpClient, docURL)
	if err != nil {
		return &model.DIDResolution{ResolutionMetadata: model.DIDResolutionMetadata{Error: "notFound"}}, nil
	}

	doc, asMap, err := model.ParseDIDDocument(raw)
	if err != nil {
		return nil, err
	}

	return &model.DIDResolution{DIDDocument: doc, Document: asMap}, nil
}

// documentURL converts a did:web identifier to the location of its DID
// document: bare domains read /.well-known/did.json, path forms append
// /did.json. Percent-encoded ports are decoded.
func (w *WebResolver) documentURL(did string) (string, error) {
	id := strings.TrimPrefix(did, "did:web:")
	if id == did || id == "" {
		return "", model.NewErrorDetails(model.CodeInvalid, "not a did:web identifier: "+did)
	}

	segments := strings.Split(id, ":")
	for i, segment := range segments {
		decoded, err := url.PathUnescape(segment)
		if err != nil {
			return "", model.NewErrorDetails(model.CodeInvalid, "malformed did:web segment: "+segment)
		}
		segments[i] = decoded
	}

	if len(segments) == 1 {
		return w.Scheme + "://" + segments[0] + "/.well-known/did.json", nil
	}
	return w.Scheme + "://" + segments[0] + "/" + strings.Join(segments[1:], "/") + "/did.json", nil
}

func fetchJSON(ctx context.Context, client *http.Client, docURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, docURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, model.NewErrorDetails(model.CodeNotFound, docURL+" returned "+resp.Status)
	}

	return io.ReadAll(resp.Body)
}
