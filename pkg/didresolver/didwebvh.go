package didresolver

import (
	"bufio"
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"verre/pkg/cryptoutil"
	"verre/pkg/model"
)

// Ed25519Verifier checks a signature over a message with a raw 32-byte key.
// The default is the platform implementation.
type Ed25519Verifier func(key ed25519.PublicKey, message, signature []byte) bool

// WebVHResolver resolves did:webvh identifiers from their did.jsonl log.
// The latest log entry's state is returned as the DID document; when the
// entry carries an eddsa-jcs-2022 proof signed with a did:key method, the
// signature is checked. Raw 32-byte Ed25519 keys are the only supported
// multicodec.
type WebVHResolver struct {
	httpClient *http.Client
	verify     Ed25519Verifier

	Scheme string
}

// NewWebVHResolver creates a did:webvh resolver
func NewWebVHResolver(httpClient *http.Client) *WebVHResolver {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &WebVHResolver{
		httpClient: httpClient,
		verify:     ed25519.Verify,
		Scheme:     "https",
	}
}

// Method implements MethodResolver
func (w *WebVHResolver) Method() string { return "webvh" }

// Resolve implements model.DIDResolver
func (w *WebVHResolver) Resolve(ctx context.Context, did string) (*model.DIDResolution, error) {
	logURL, err := w.logURL(did)
	if err != nil {
		return nil, err
	}

	raw, err := fetchJSON(ctx, w.httpClient, logURL)
	if err != nil {
		return &model.DIDResolution{ResolutionMetadata: model.DIDResolutionMetadata{Error: "notFound"}}, nil
	}

	entry, err := latestEntry(raw)
	if err != nil {
		return nil, err
	}

	if err := w.verifyEntryProof(entry); err != nil {
		return nil, err
	}

	state, ok := entry["state"].(map[string]any)
	if !ok {
		if versioned, ok := entry["value"].(map[string]any); ok {
			state = versioned
		}
	}
	if state == nil {
		return &model.DIDResolution{ResolutionMetadata: model.DIDResolutionMetadata{Error: "notFound"}}, nil
	}

	stateJSON, err := json.Marshal(state)
	if err != nil {
		return nil, model.NewErrorFromError(err)
	}

	doc, asMap, err := model.ParseDIDDocument(stateJSON)
	if err != nil {
		return nil, err
	}

	return &model.DIDResolution{DIDDocument: doc, Document: asMap}, nil
}

// verifyEntryProof checks the log entry's Data Integrity proof when one is
// present and signed with a did:key verification method. Entries without a
// proof pass through; full log-chain validation belongs to a dedicated
// webvh resolver plugged in by the caller.
func (w *WebVHResolver) verifyEntryProof(entry map[string]any) error {
	proofField, ok := entry["proof"]
	if !ok {
		return nil
	}

	proof, err := model.NormalizeOne(proofField)
	if err != nil {
		return model.NewErrorDetails(model.CodeInvalid, "malformed log entry proof")
	}

	vm, _ := proof["verificationMethod"].(string)
	proofValue, _ := proof["proofValue"].(string)
	if !strings.HasPrefix(vm, "did:key:") || proofValue == "" {
		return nil
	}

	multikey := strings.TrimPrefix(vm, "did:key:")
	if i := strings.Index(multikey, "#"); i >= 0 {
		multikey = multikey[:i]
	}

	decoded, err := cryptoutil.MultibaseDecode(multikey)
	if err != nil {
		return err
	}
	key, err := cryptoutil.Ed25519FromMultikey(decoded)
	if err != nil {
		return err
	}

	signature, err := cryptoutil.MultibaseDecode(proofValue)
	if err != nil {
		return err
	}

	document := make(map[string]any, len(entry))
	for k, v := range entry {
		if k != "proof" {
			document[k] = v
		}
	}
	options := make(map[string]any, len(proof))
	for k, v := range proof {
		if k != "proofValue" {
			options[k] = v
		}
	}

	// encoding/json emits canonically sorted keys, which matches JCS for
	// the string/object/array shapes a DID log carries
	docJSON, err := json.Marshal(document)
	if err != nil {
		return model.NewErrorFromError(err)
	}
	optionsJSON, err := json.Marshal(options)
	if err != nil {
		return model.NewErrorFromError(err)
	}

	docHash := sha256.Sum256(docJSON)
	optionsHash := sha256.Sum256(optionsJSON)
	verifyData := append(optionsHash[:], docHash[:]...)

	if !w.verify(key, verifyData, signature) {
		return model.NewErrorDetails(model.CodeVerificationFailed, "DID log entry proof did not verify")
	}

	return nil
}

// latestEntry parses a did.jsonl body and returns its last entry. Both the
// object form and the legacy array form are accepted.
func latestEntry(raw []byte) (map[string]any, error) {
	var last map[string]any

	scanner := bufio.NewScanner(bytes.NewReader(raw))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		entry := map[string]any{}
		if line[0] == '[' {
			var fields []json.RawMessage
			if err := json.Unmarshal(line, &fields); err != nil {
				return nil, model.NewErrorDetails(model.CodeInvalid, "malformed log line: "+err.Error())
			}
			if len(fields) < 5 {
				continue
			}
			if err := json.Unmarshal(fields[4], &entry); err != nil {
				return nil, model.NewErrorDetails(model.CodeInvalid, "malformed log state: "+err.Error())
			}
		} else {
			if err := json.Unmarshal(line, &entry); err != nil {
				return nil, model.NewErrorDetails(model.CodeInvalid, "malformed log line: "+err.Error())
			}
		}
		last = entry
	}
	if err := scanner.Err(); err != nil {
		return nil, model.NewErrorFromError(err)
	}
	if last == nil {
		return nil, model.NewErrorDetails(model.CodeNotFound, "empty DID log")
	}

	return last, nil
}

// logURL converts did:webvh:{SCID}:domain[:path...] to the did.jsonl location
func (w *WebVHResolver) logURL(did string) (string, error) {
	id := strings.TrimPrefix(did, "did:webvh:")
	if id == did || id == "" {
		return "", model.NewErrorDetails(model.CodeInvalid, "not a did:webvh identifier: "+did)
	}

	segments := strings.Split(id, ":")
	if len(segments) < 2 {
		return "", model.NewErrorDetails(model.CodeInvalid, "did:webvh is missing its domain: "+did)
	}

	// segments[0] is the SCID; the rest locate the log
	segments = segments[1:]
	for i, segment := range segments {
		decoded, err := url.PathUnescape(segment)
		if err != nil {
			return "", model.NewErrorDetails(model.CodeInvalid, "malformed did:webvh segment: "+segment)
		}
		segments[i] = decoded
	}

	if len(segments) == 1 {
		return w.Scheme + "://" + segments[0] + "/.well-known/did.jsonl", nil
	}
	return w.Scheme + "://" + segments[0] + "/" + strings.Join(segments[1:], "/") + "/did.jsonl", nil
}
