// Package docloader resolves JSON-LD context references during
// canonicalization and proof verification.
package docloader

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"verre/pkg/docloader/contexts"
	"verre/pkg/logger"
	"verre/pkg/model"

	"github.com/jellydator/ttlcache/v3"
	"github.com/piprate/json-gold/ld"
)

// Loader is a document loader that serves the compiled-in context table,
// resolves did: URLs through the configured DID resolver and fetches
// anything else over HTTP with an in-memory cache.
type Loader struct {
	resolver model.DIDResolver
	fallback ld.DocumentLoader
	cache    *ttlcache.Cache[string, *ld.RemoteDocument]
	log      *logger.Log
}

// New creates a document loader. The resolver may be nil, in which case
// did: URLs fail with not_found.
func New(resolver model.DIDResolver, log *logger.Log) *Loader {
	if log == nil {
		log = logger.NewSimple("docloader")
	}

	cache := ttlcache.New[string, *ld.RemoteDocument](
		ttlcache.WithTTL[string, *ld.RemoteDocument](1 * time.Hour),
	)
	go cache.Start()

	l := &Loader{
		resolver: resolver,
		fallback: ld.NewDefaultDocumentLoader(nil),
		cache:    cache,
		log:      log,
	}
	l.preloadContexts()
	return l
}

// LoadDocument implements ld.DocumentLoader
func (l *Loader) LoadDocument(url string) (*ld.RemoteDocument, error) {
	if item := l.cache.Get(url); item != nil {
		return item.Value(), nil
	}

	// The context table also matches after stripping a fragment
	if i := strings.Index(url, "#"); i > 0 {
		if item := l.cache.Get(url[:i]); item != nil {
			return item.Value(), nil
		}
	}

	if strings.HasPrefix(url, "did:") {
		return l.loadDID(url)
	}

	doc, err := l.fallback.LoadDocument(url)
	if err != nil {
		return nil, err
	}

	l.cache.Set(url, doc, ttlcache.DefaultTTL)

	return doc, nil
}

// loadDID resolves a DID URL and reframes the document so that nothing is
// embedded and the node id equals the requested URL.
func (l *Loader) loadDID(url string) (*ld.RemoteDocument, error) {
	if l.resolver == nil {
		return nil, model.NewErrorDetails(model.CodeNotFound, "no DID resolver configured for "+url)
	}

	resolution, err := l.resolver.Resolve(context.Background(), strings.SplitN(url, "#", 2)[0])
	if err != nil {
		return nil, err
	}
	if resolution == nil || resolution.Document == nil {
		return nil, model.NewErrorDetails(model.CodeNotFound, "DID document not found: "+url)
	}

	frame := map[string]any{
		"@context": resolution.Document["@context"],
		"@embed":   "@never",
		"id":       url,
	}

	proc := ld.NewJsonLdProcessor()
	opts := ld.NewJsonLdOptions("")
	opts.DocumentLoader = l

	framed, err := proc.Frame(resolution.Document, frame, opts)
	if err != nil {
		return nil, model.NewErrorDetails(model.CodeInvalid, "framing failed for "+url+": "+err.Error())
	}

	return &ld.RemoteDocument{
		DocumentURL: url,
		Document:    framed,
		ContextURL:  "",
	}, nil
}

func (l *Loader) preloadContexts() {
	for url, content := range contexts.GetAllContexts() {
		l.addContext(url, content)
	}
}

func (l *Loader) addContext(url string, content []byte) {
	var doc interface{}
	if err := json.Unmarshal(content, &doc); err != nil {
		l.log.Info("Failed to parse preloaded context", "url", url, "error", err)
		return
	}

	l.cache.Set(url, &ld.RemoteDocument{
		DocumentURL: url,
		Document:    doc,
		ContextURL:  "",
	}, ttlcache.NoTTL)
}

// Add registers an extra document under the given URL. Used by callers
// that serve contexts of their own, and by tests.
func (l *Loader) Add(url string, content []byte) {
	l.addContext(url, content)
}
