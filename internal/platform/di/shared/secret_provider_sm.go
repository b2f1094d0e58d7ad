// internal/platform/di/shared/secret_provider_sm.go
package shared

import (
	"context"
	"errors"
	"strings"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	secretmanagerpb "cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
)

var errSecretProviderNotConfigured = errors.New("shared: secret manager client not configured")

// accessSecret reads a full version name
// (projects/{p}/secrets/{s}/versions/{v}) and returns the trimmed payload.
func accessSecret(ctx context.Context, sm *secretmanager.Client, name string) (string, error) {
	if sm == nil {
		return "", errSecretProviderNotConfigured
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("shared: secret name is empty")
	}

	resp, err := sm.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: name})
	if err != nil {
		return "", errors.New("shared: AccessSecretVersion failed (" + name + "): " + err.Error())
	}
	if resp == nil || resp.Payload == nil {
		return "", errors.New("shared: empty payload (" + name + ")")
	}
	v := strings.TrimSpace(string(resp.Payload.Data))
	if v == "" {
		return "", errors.New("shared: empty secret (" + name + ")")
	}
	return v, nil
}
