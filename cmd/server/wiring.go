package main

import (
	"context"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"github.com/lamgaraproperties/lamgara-web/internal/auth"
	"github.com/lamgaraproperties/lamgara-web/internal/cfg"
	"github.com/lamgaraproperties/lamgara-web/internal/cryptoutil"
	"github.com/lamgaraproperties/lamgara-web/internal/log"
	"github.com/lamgaraproperties/lamgara-web/internal/uploads"
	"github.com/lamgaraproperties/lamgara-web/internal/xerrors"
)

// needsAWS reports whether any configured feature talks to AWS.
func needsAWS(c cfg.App) bool {
	return c.AuthKMSKeyID != "" ||
		c.AdminPasswordHashParam != "" ||
		c.AuthSigningSecretParam != "" ||
		(c.StorageBackend == cfg.BackendS3 && c.S3Bucket != "")
}

func loadAWSConfig(ctx context.Context, c cfg.App) (aws.Config, error) {
	var opts []func(*config.LoadOptions) error
	if c.S3Region != "" {
		opts = append(opts, config.WithRegion(c.S3Region))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, xerrors.Wrap(err, "load aws config")
	}
	return awsCfg, nil
}

// resolveSSMSecrets fills the admin password hash and token signing secret
// from SSM parameters when they are not set directly.
func resolveSSMSecrets(ctx context.Context, client *ssm.Client, c *cfg.App) error {
	targets := []struct {
		param string
		dst   *string
	}{
		{c.AdminPasswordHashParam, &c.AdminPasswordHash},
		{c.AuthSigningSecretParam, &c.AuthSigningSecret},
	}
	for _, t := range targets {
		if t.param == "" || *t.dst != "" {
			continue
		}
		out, err := client.GetParameter(ctx, &ssm.GetParameterInput{
			Name:           aws.String(t.param),
			WithDecryption: aws.Bool(true),
		})
		if err != nil {
			return xerrors.Wrapf(err, "ssm get parameter name=%s", t.param)
		}
		if out.Parameter == nil || out.Parameter.Value == nil {
			return xerrors.Newf("ssm parameter %s has no value", t.param)
		}
		*t.dst = strings.TrimSpace(*out.Parameter.Value)
	}
	return nil
}

// tokenSigner picks the admin token signer. A KMS key wins over a local
// secret; otherwise AuthTokenImpl chooses between the hand-rolled and the
// golang-jwt encoder. Nil means auth stays unconfigured.
func tokenSigner(ctx context.Context, L log.Logger, c cfg.App, awsCfg *aws.Config) (auth.TokenSigner, error) {
	if c.AuthKMSKeyID != "" {
		if awsCfg == nil {
			return nil, xerrors.New("kms signer requires aws config")
		}
		mac := cryptoutil.NewKMSMAC(kms.NewFromConfig(*awsCfg), c.AuthKMSKeyID)
		if err := mac.CheckKey(ctx); err != nil {
			return nil, xerrors.Wrapf(err, "kms key check key_id=%s", c.AuthKMSKeyID)
		}
		L.Info(ctx, "admin tokens signed by kms", "key_id", c.AuthKMSKeyID)
		return auth.NewKMSSigner(mac), nil
	}
	if c.AuthSigningSecret == "" {
		return nil, nil
	}
	if c.AuthTokenImpl == cfg.TokenImplJWT {
		return auth.NewJWTSigner([]byte(c.AuthSigningSecret)), nil
	}
	return auth.NewHMACSigner([]byte(c.AuthSigningSecret)), nil
}

// newPresigner builds the upload backend, or nil while storage settings are
// incomplete.
func newPresigner(c cfg.App, awsCfg *aws.Config) (uploads.Presigner, error) {
	if len(c.MissingStorageEnv()) > 0 {
		return nil, nil
	}
	switch c.StorageBackend {
	case cfg.BackendMinio:
		p, err := uploads.NewMinioPresigner(uploads.MinioConfig{
			Endpoint:        c.S3Endpoint,
			Bucket:          c.S3Bucket,
			Region:          c.S3Region,
			AccessKeyID:     c.S3AccessKeyID,
			SecretAccessKey: c.S3SecretAccessKey,
			UseSSL:          c.S3UseSSL,
			PublicBaseURL:   c.S3PublicBaseURL,
		})
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		if awsCfg == nil {
			return nil, xerrors.New("s3 presigner requires aws config")
		}
		return uploads.NewS3Presigner(*awsCfg, uploads.S3Config{
			Bucket:          c.S3Bucket,
			Region:          c.S3Region,
			AccessKeyID:     c.S3AccessKeyID,
			SecretAccessKey: c.S3SecretAccessKey,
			PublicBaseURL:   c.S3PublicBaseURL,
		}), nil
	}
}

// mediaOrigins lists the origins uploaded images are served from, for the
// content security policy.
func mediaOrigins(c cfg.App) []string {
	var out []string
	add := func(raw string) {
		if raw != "" {
			out = append(out, raw)
		}
	}
	add(c.S3PublicBaseURL)
	if c.StorageBackend == cfg.BackendMinio && c.S3Endpoint != "" {
		scheme := "https"
		if !c.S3UseSSL {
			scheme = "http"
		}
		add((&url.URL{Scheme: scheme, Host: c.S3Endpoint}).String())
	} else if c.S3Bucket != "" && c.S3Region != "" {
		add("https://" + c.S3Bucket + ".s3." + c.S3Region + ".amazonaws.com")
	}
	return out
}

func splitOrigins(s string) []string {
	var out []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
