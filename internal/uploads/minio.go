package uploads

import (
	"context"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/lamgaraproperties/lamgara-web/internal/xerrors"
)

// MinioConfig describes a MinIO (or other S3-compatible) bucket.
type MinioConfig struct {
	// Endpoint is host[:port] without a scheme.
	Endpoint        string
	Bucket          string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	// PublicBaseURL defaults to <scheme>://<endpoint>/<bucket>.
	PublicBaseURL string
}

// MinioPresigner presigns with minio-go. The content type is not part of
// the signature; minio-go's PresignedPutObject does not sign headers.
type MinioPresigner struct {
	client     *minio.Client
	bucket     string
	publicBase string
}

func NewMinioPresigner(c MinioConfig) (*MinioPresigner, error) {
	// a known region keeps presigning offline; minio-go otherwise asks the
	// server for the bucket location
	if c.Region == "" {
		c.Region = "us-east-1"
	}
	mc, err := minio.New(c.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(c.AccessKeyID, c.SecretAccessKey, ""),
		Secure: c.UseSSL,
		Region: c.Region,
	})
	if err != nil {
		return nil, xerrors.Wrap(err, "minio client")
	}

	base := c.PublicBaseURL
	if base == "" {
		scheme := "http"
		if c.UseSSL {
			scheme = "https"
		}
		base = scheme + "://" + c.Endpoint + "/" + c.Bucket
	}
	return &MinioPresigner{client: mc, bucket: c.Bucket, publicBase: base}, nil
}

func (p *MinioPresigner) PresignPut(ctx context.Context, key, _ string, ttl time.Duration) (string, error) {
	u, err := p.client.PresignedPutObject(ctx, p.bucket, key, ttl)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

func (p *MinioPresigner) PublicURL(key string) string {
	return joinPublic(p.publicBase, key)
}
