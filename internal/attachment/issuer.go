// Package attachment issues time-bounded upload capabilities for todo
// attachments. Issuing a URL writes nothing to storage; the client performs
// the upload itself.
package attachment

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/juju/clock"
	"github.com/juju/errors"
)

// DefaultExpiry is how long an upload URL stays valid when none is configured.
const DefaultExpiry = 300 * time.Second

// Presigner is the subset of *s3.PresignClient the issuer needs.
type Presigner interface {
	PresignPutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Upload is a single issued capability.
type Upload struct {
	// URL is the signed PUT URL handed to the caller.
	URL string
	// Reference is the canonical object URL persisted on the todo.
	Reference string
	Key       string
	ExpiresAt time.Time
}

// Issuer signs upload URLs for one bucket.
type Issuer struct {
	presigner Presigner
	bucket    string
	keyPrefix string
	expiry    time.Duration
	clock     clock.Clock
}

// NewIssuer returns an Issuer. A non-positive expiry falls back to DefaultExpiry.
func NewIssuer(p Presigner, bucket, keyPrefix string, expiry time.Duration, clk clock.Clock) (*Issuer, error) {
	if p == nil {
		return nil, errors.NotValidf("nil presigner")
	}
	if bucket == "" {
		return nil, errors.NotValidf("empty attachment bucket")
	}
	if expiry <= 0 {
		expiry = DefaultExpiry
	}
	if clk == nil {
		clk = clock.WallClock
	}
	return &Issuer{presigner: p, bucket: bucket, keyPrefix: keyPrefix, expiry: expiry, clock: clk}, nil
}

// Expiry is the validity window of every issued URL.
func (i *Issuer) Expiry() time.Duration { return i.expiry }

// ObjectKey derives the single attachment slot of a todo.
func (i *Issuer) ObjectKey(todoID string) string {
	return i.keyPrefix + todoID
}

// IssueUploadURL signs a PUT for the todo's attachment slot. Re-issuing
// targets the same key, so a later upload replaces the earlier object.
func (i *Issuer) IssueUploadURL(ctx context.Context, todoID string) (Upload, error) {
	if todoID == "" {
		return Upload{}, errors.NotValidf("empty todo id")
	}
	key := i.ObjectKey(todoID)
	issuedAt := i.clock.Now()
	req, err := i.presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(i.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(i.expiry))
	if err != nil {
		return Upload{}, errors.Annotatef(err, "presign upload for todo %q", todoID)
	}
	ref, err := objectReference(req.URL)
	if err != nil {
		return Upload{}, err
	}
	return Upload{
		URL:       req.URL,
		Reference: ref,
		Key:       key,
		ExpiresAt: issuedAt.Add(i.expiry),
	}, nil
}

// objectReference strips the signature query from a presigned URL.
func objectReference(signed string) (string, error) {
	u, err := url.Parse(signed)
	if err != nil {
		return "", fmt.Errorf("parse presigned url: %w", err)
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}
