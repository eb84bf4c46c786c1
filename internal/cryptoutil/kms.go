package cryptoutil

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	kmstypes "github.com/aws/aws-sdk-go-v2/service/kms/types"

	"github.com/lamgaraproperties/lamgara-web/internal/xerrors"
)

// kmsMACAPI is the subset of the KMS API used for HMAC keys.
type kmsMACAPI interface {
	DescribeKey(ctx context.Context, params *kms.DescribeKeyInput, optFns ...func(*kms.Options)) (*kms.DescribeKeyOutput, error)
	GenerateMac(ctx context.Context, params *kms.GenerateMacInput, optFns ...func(*kms.Options)) (*kms.GenerateMacOutput, error)
	VerifyMac(ctx context.Context, params *kms.VerifyMacInput, optFns ...func(*kms.Options)) (*kms.VerifyMacOutput, error)
}

// KMSMAC computes and checks HMAC_SHA_256 tags with a KMS key so the secret
// never leaves KMS.
type KMSMAC struct {
	client kmsMACAPI
	keyID  string

	mu      sync.Mutex
	checked bool
}

func NewKMSMAC(client *kms.Client, keyID string) *KMSMAC {
	return &KMSMAC{client: client, keyID: keyID}
}

// CheckKey confirms the key is a GENERATE_VERIFY_MAC key that supports
// HMAC_SHA_256. A successful result is cached.
func (m *KMSMAC) CheckKey(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.checked {
		return nil
	}
	if m.client == nil {
		return xerrors.New("kms client is not configured")
	}

	out, err := m.client.DescribeKey(ctx, &kms.DescribeKeyInput{KeyId: aws.String(m.keyID)})
	if err != nil {
		return xerrors.Wrap(err, "kms describe key")
	}
	md := out.KeyMetadata
	if md == nil {
		return xerrors.Newf("kms key %s: no metadata", m.keyID)
	}
	if md.KeyUsage != kmstypes.KeyUsageTypeGenerateVerifyMac {
		return xerrors.Newf("kms key %s has KeyUsage=%s, expected GENERATE_VERIFY_MAC", m.keyID, md.KeyUsage)
	}
	if !slices.Contains(md.MacAlgorithms, kmstypes.MacAlgorithmSpecHmacSha256) {
		return xerrors.Newf("kms key %s does not support HMAC_SHA_256", m.keyID)
	}
	m.checked = true
	return nil
}

// Sum returns the HMAC_SHA_256 tag of msg.
func (m *KMSMAC) Sum(ctx context.Context, msg []byte) ([]byte, error) {
	if m.client == nil {
		return nil, xerrors.New("kms client is not configured")
	}
	out, err := m.client.GenerateMac(ctx, &kms.GenerateMacInput{
		KeyId:        aws.String(m.keyID),
		Message:      msg,
		MacAlgorithm: kmstypes.MacAlgorithmSpecHmacSha256,
	})
	if err != nil {
		return nil, xerrors.Wrap(err, "kms generate mac")
	}
	return out.Mac, nil
}

// Verify reports whether mac is the HMAC_SHA_256 tag of msg. A mismatch is
// (false, nil); err is reserved for KMS failures.
func (m *KMSMAC) Verify(ctx context.Context, msg, mac []byte) (bool, error) {
	if m.client == nil {
		return false, xerrors.New("kms client is not configured")
	}
	out, err := m.client.VerifyMac(ctx, &kms.VerifyMacInput{
		KeyId:        aws.String(m.keyID),
		Message:      msg,
		Mac:          mac,
		MacAlgorithm: kmstypes.MacAlgorithmSpecHmacSha256,
	})
	if err != nil {
		var invalid *kmstypes.KMSInvalidMacException
		if errors.As(err, &invalid) {
			return false, nil
		}
		return false, xerrors.Wrap(err, "kms verify mac")
	}
	return out.MacValid, nil
}
