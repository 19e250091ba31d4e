// Package didresolver provides pluggable DID resolution. The default
// resolver composes did:web and did:webvh over HTTPS with an in-process
// document cache.
package didresolver

import (
	"context"
	"strings"
	"time"

	"verre/pkg/logger"
	"verre/pkg/model"

	gocache "github.com/patrickmn/go-cache"
)

// MethodResolver resolves DIDs of a single method
type MethodResolver interface {
	model.DIDResolver

	// Method returns the DID method name this resolver handles, e.g. "web"
	Method() string
}

// MultiResolver routes a DID to the resolver registered for its method
type MultiResolver struct {
	methods map[string]MethodResolver
	cache   *gocache.Cache
	log     *logger.Log
}

// Compose creates a resolver that routes by DID method
func Compose(log *logger.Log, methods ...MethodResolver) *MultiResolver {
	if log == nil {
		log = logger.NewSimple("didresolver")
	}

	m := &MultiResolver{
		methods: make(map[string]MethodResolver, len(methods)),
		cache:   gocache.New(5*time.Minute, 10*time.Minute),
		log:     log,
	}
	for _, method := range methods {
		m.methods[method.Method()] = method
	}
	return m
}

// New creates the default resolver: did:web and did:webvh
func New(log *logger.Log) *MultiResolver {
	return Compose(log, NewWebResolver(nil), NewWebVHResolver(nil))
}

// Register adds or replaces a method resolver
func (m *MultiResolver) Register(method MethodResolver) {
	m.methods[method.Method()] = method
}

// Resolve implements model.DIDResolver
func (m *MultiResolver) Resolve(ctx context.Context, did string) (*model.DIDResolution, error) {
	parts := strings.SplitN(did, ":", 3)
	if len(parts) < 3 || parts[0] != "did" {
		return nil, model.NewErrorDetails(model.CodeInvalid, "malformed DID: "+did)
	}

	if cached, ok := m.cache.Get(did); ok {
		return cached.(*model.DIDResolution), nil
	}

	resolver, ok := m.methods[parts[1]]
	if !ok {
		return nil, model.NewErrorDetails(model.CodeNotSupported, "unsupported DID method: "+parts[1])
	}

	resolution, err := resolver.Resolve(ctx, did)
	if err != nil {
		return nil, err
	}
	if resolution == nil || resolution.DIDDocument == nil || resolution.ResolutionMetadata.Error != "" {
		detail := did
		if resolution != nil && resolution.ResolutionMetadata.Error != "" {
			detail = did + ": " + resolution.ResolutionMetadata.Error
		}
		return nil, model.NewErrorDetails(model.CodeNotFound, "DID document not found: "+detail)
	}

	m.cache.SetDefault(did, resolution)
	m.log.Debug("resolved DID", "did", did)

	return resolution, nil
}
