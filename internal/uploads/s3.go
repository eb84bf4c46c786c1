package uploads

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config describes the bucket uploads land in.
type S3Config struct {
	Bucket string
	Region string
	// Endpoint targets an S3-compatible service instead of AWS; path-style
	// addressing is used when set.
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	// PublicBaseURL defaults to https://<bucket>.s3.<region>.amazonaws.com.
	PublicBaseURL string
}

// S3Presigner presigns with aws-sdk-go-v2.
type S3Presigner struct {
	client     *s3.PresignClient
	bucket     string
	publicBase string
}

// NewS3Presigner builds a presign client from awsCfg. Static keys in c
// replace the default credential chain when both are set.
func NewS3Presigner(awsCfg aws.Config, c S3Config) *S3Presigner {
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if c.Region != "" {
			o.Region = c.Region
		}
		if c.AccessKeyID != "" && c.SecretAccessKey != "" {
			o.Credentials = credentials.NewStaticCredentialsProvider(c.AccessKeyID, c.SecretAccessKey, "")
		}
		if c.Endpoint != "" {
			o.BaseEndpoint = aws.String(c.Endpoint)
			o.UsePathStyle = true
		}
	})

	base := c.PublicBaseURL
	if base == "" {
		base = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", c.Bucket, c.Region)
	}
	return &S3Presigner{
		client:     s3.NewPresignClient(client),
		bucket:     c.Bucket,
		publicBase: base,
	}
}

func (p *S3Presigner) PresignPut(ctx context.Context, key, contentType string, ttl time.Duration) (string, error) {
	in := &s3.PutObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}
	req, err := p.client.PresignPutObject(ctx, in, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", err
	}
	return req.URL, nil
}

func (p *S3Presigner) PublicURL(key string) string {
	return joinPublic(p.publicBase, key)
}
