package resolver

import (
	"context"

	"verre/pkg/model"
)

// ResolveDID resolves trust for a DID with a one-shot service
func ResolveDID(ctx context.Context, did string, cfg *model.ResolverConfig) model.TrustResolution {
	s, err := New(cfg)
	if err != nil {
		return model.FailedResolution(err)
	}
	return s.ResolveDID(ctx, did)
}

// ResolveCredential validates a single credential with a one-shot service
func ResolveCredential(ctx context.Context, vc map[string]any, cfg *model.ResolverConfig) model.CredentialResolution {
	s, err := New(cfg)
	if err != nil {
		return model.FailedCredentialResolution(err)
	}
	return s.ResolveCredential(ctx, vc)
}

// VerifyPermissions checks a permission of any type against the registry
// referenced by a schema credential
func VerifyPermissions(ctx context.Context, req model.VerifyPermissionsRequest) model.PermissionResolution {
	s, err := New(&model.ResolverConfig{
		VerifiablePublicRegistries: req.VerifiablePublicRegistries,
		Logger:                     req.Logger,
	})
	if err != nil {
		return failedPermission(err)
	}
	return s.VerifyPermissions(ctx, req)
}
