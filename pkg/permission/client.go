// Package permission queries a trust registry's indexer and validates that
// an issuer held a usable permission when a credential was issued.
package permission

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"verre/pkg/logger"
	"verre/pkg/model"
)

// Client is the indexer client
type Client struct {
	httpClient *http.Client
	log        *logger.Log
}

// NewClient creates a new client. A nil http client gets a 10 second
// timeout default.
func NewClient(httpClient *http.Client, log *logger.Log) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if log == nil {
		log = logger.NewSimple("permission")
	}
	return &Client{httpClient: httpClient, log: log}
}

// IndexerRoot rewrites a trust registry API origin onto its read-optimized
// indexer sibling. Applying it twice yields the same string.
func IndexerRoot(trustRegistry string) string {
	if strings.HasPrefix(trustRegistry, "https://api.") {
		return "https://idx." + strings.TrimPrefix(trustRegistry, "https://api.")
	}
	return trustRegistry
}

// Verify confirms the DID held a permission of the given type for the
// schema, effective at the credential's issuance time.
func (c *Client) Verify(ctx context.Context, trustRegistry, schemaID, issuanceDate, did string, permissionType model.PermissionType) error {
	if issuanceDate == "" {
		return model.NewErrorDetails(model.CodeInvalidPermissions, "credential carries no issuance date")
	}
	issued, err := time.Parse(time.RFC3339, issuanceDate)
	if err != nil {
		return model.NewErrorDetails(model.CodeInvalidPermissions, "unparsable issuance date: "+issuanceDate)
	}

	response, err := c.list(ctx, IndexerRoot(trustRegistry), schemaID, did, permissionType)
	if err != nil {
		return err
	}

	if len(response.Permissions) == 0 {
		return model.NewErrorDetails(model.CodeInvalidPermissions, "no permission found for "+did)
	}

	granted := response.Permissions[0]
	if granted.Type != permissionType {
		return model.NewErrorDetails(model.CodeInvalidPermissions,
			"permission type mismatch: want "+string(permissionType)+", got "+string(granted.Type))
	}

	from, until, err := granted.EffectiveWindow(time.Now())
	if err != nil {
		return err
	}

	// compared as epoch milliseconds, window bounds inclusive
	if issued.UnixMilli() < from.UnixMilli() || issued.UnixMilli() > until.UnixMilli() {
		return model.NewErrorDetails(model.CodeInvalidPermissions,
			"issuance date "+issuanceDate+" outside the permission's effective window")
	}

	c.log.Debug("permission verified", "did", did, "schemaId", schemaID, "type", permissionType)

	return nil
}

// list performs the single-shot indexer query
func (c *Client) list(ctx context.Context, indexerRoot, schemaID, did string, permissionType model.PermissionType) (*model.PermissionListResponse, error) {
	query := url.Values{}
	query.Set("did", did)
	query.Set("type", string(permissionType))
	query.Set("response_max_size", "1")
	query.Set("schema_id", schemaID)

	endpoint := strings.TrimSuffix(indexerRoot, "/") + "/perm/v1/list?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, model.NewErrorFromError(err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, model.NewErrorFromError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, model.NewErrorDetails(model.CodeInvalidRequest, "indexer returned "+resp.Status)
	}

	reply := &model.PermissionListResponse{}
	if err := json.NewDecoder(resp.Body).Decode(reply); err != nil {
		return nil, model.NewErrorFromError(err)
	}

	return reply, nil
}
