// Package secrets resolves sm:// configuration values from Google Secret
// Manager.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	secretmanagerpb "cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
)

const Prefix = "sm://"

// Accessor is the part of the Secret Manager client used here.
type Accessor interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
}

type Resolver struct {
	sm        Accessor
	projectID string
}

func NewResolver(sm Accessor, projectID string) *Resolver {
	return &Resolver{sm: sm, projectID: strings.TrimSpace(projectID)}
}

// NewClient opens a Secret Manager client using default credentials.
func NewClient(ctx context.Context) (*secretmanager.Client, error) {
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("secretmanager.NewClient failed: %w", err)
	}
	return client, nil
}

// Uses reports whether any of the values is a secret reference.
func Uses(values []*string) bool {
	for _, v := range values {
		if strings.HasPrefix(*v, Prefix) {
			return true
		}
	}
	return false
}

// Name turns sm://<secret> or sm://<secret>/<version> into a full version
// resource name. A full projects/... path is accepted as is.
func (r *Resolver) Name(ref string) (string, error) {
	body := strings.TrimPrefix(ref, Prefix)
	if strings.HasPrefix(body, "projects/") {
		if !strings.Contains(body, "/versions/") {
			body += "/versions/latest"
		}
		return body, nil
	}

	if r.projectID == "" {
		return "", errors.New("secrets: project id is empty")
	}
	secret, version, _ := strings.Cut(body, "/")
	if secret == "" {
		return "", fmt.Errorf("secrets: empty secret name in %q", ref)
	}
	if version == "" {
		version = "latest"
	}
	return "projects/" + r.projectID + "/secrets/" + secret + "/versions/" + version, nil
}

// ResolveAll replaces every sm:// value in place.
func (r *Resolver) ResolveAll(ctx context.Context, values []*string) error {
	var errs []error
	for _, v := range values {
		if !strings.HasPrefix(*v, Prefix) {
			continue
		}
		name, err := r.Name(*v)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		resp, err := r.sm.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: name})
		if err != nil {
			errs = append(errs, fmt.Errorf("AccessSecretVersion failed (%s): %w", name, err))
			continue
		}
		if resp == nil || resp.Payload == nil {
			errs = append(errs, fmt.Errorf("empty payload (%s)", name))
			continue
		}

		*v = strings.TrimSpace(string(resp.Payload.Data))
		log.Printf("[secrets] resolved %s", name)
	}
	return errors.Join(errs...)
}
