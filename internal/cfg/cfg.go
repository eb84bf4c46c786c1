package cfg

import (
	"errors"
	"flag"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/lamgaraproperties/lamgara-web/internal/log"
)

// EnvPrefix is prepended to upper-cased flag names when reading the environment.
const EnvPrefix = "LAMGARA_"

const (
	BackendS3    = "s3"
	BackendMinio = "minio"

	TokenImplHMAC = "hmac"
	TokenImplJWT  = "jwt"
)

type App struct {
	LogJSON           bool
	LogLevel          string
	HTTPPort          int
	AdminPort         int
	EnablePprof       bool
	EnablePyroscope   bool
	EnableTracing     bool
	PyroServer        string
	PyroTenantID      string
	OTLPEndpoint      string
	TraceSample       float64
	StacktraceLevel   string
	IncludeErrorLinks bool
	MaxErrorLinks     int
	TrustedProxyHops  int

	DBPath      string
	SiteDir     string
	CORSOrigins string

	StorageBackend    string
	S3Bucket          string
	S3Region          string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3UseSSL          bool
	S3PublicBaseURL   string

	AdminUsername          string
	AdminPassword          string
	AdminPasswordHash      string
	AuthSigningSecret      string
	AuthTokenTTLSeconds    int
	AuthTokenImpl          string
	AuthKMSKeyID           string
	AdminPasswordHashParam string
	AuthSigningSecretParam string
	LoginRatePerSecond     float64
	LoginBurst             int
}

// TokenTTL is the admin token lifetime.
func (c App) TokenTTL() time.Duration {
	return time.Duration(c.AuthTokenTTLSeconds) * time.Second
}

// Register binds all config fields to the given FlagSet with defaults inline
func Register(fs *flag.FlagSet, c *App) {
	fs.BoolVar(&c.LogJSON, "log-json", true, "JSON logs (true) or logfmt (false)")
	fs.StringVar(&c.LogLevel, "log-level", "info", "debug|info|warn|error")
	fs.IntVar(&c.HTTPPort, "http-port", 4000, "listen TCP port (1..65535)")
	fs.IntVar(&c.AdminPort, "admin-port", 9000, "ops listen TCP port for metrics, probes and pprof (1..65535)")
	fs.BoolVar(&c.EnablePprof, "enable-pprof", true, "Enable pprof profiling (on admin port only)")
	fs.BoolVar(&c.EnableTracing, "enable-tracing", false, "Enable OTLP tracing and push to otlp-endpoint")
	fs.BoolVar(&c.EnablePyroscope, "enable-pyroscope", false, "Enable pushing Pyroscope data to server set in -pyro-server")
	fs.BoolVar(&c.IncludeErrorLinks, "include-error-links", true, "Include error links in log messages")
	fs.IntVar(&c.MaxErrorLinks, "max-error-links", 5, "max error chain depth (1..64)")
	fs.Float64Var(&c.TraceSample, "trace-sample", 0.0, "trace sampling ratio (0..1)")
	fs.StringVar(&c.StacktraceLevel, "stacktrace-level", "error", "debug|info|warn|error")
	fs.StringVar(&c.PyroServer, "pyro-server", "", "pyroscope server url to push to")
	fs.StringVar(&c.PyroTenantID, "pyro-tenant", "", "tenant (x-scope-orgid) to use for pyro-server")
	fs.StringVar(&c.OTLPEndpoint, "otlp-endpoint", "", "OTLP endpoint to push to (gRPC) (host:port)")
	fs.IntVar(&c.TrustedProxyHops, "trusted-proxy-hops", 0, "number of reverse proxies whose X-Forwarded-For entries are trusted")

	fs.StringVar(&c.DBPath, "db-path", "./server/data/lamgara.db", "SQLite database file holding the site content")
	fs.StringVar(&c.SiteDir, "site-dir", "", "directory with the built front end (index.html); empty serves the maintenance page")
	fs.StringVar(&c.CORSOrigins, "cors-origins", "*", "comma separated origins allowed to call /api")

	fs.StringVar(&c.StorageBackend, "storage-backend", BackendS3, "object storage for uploads: s3|minio")
	fs.StringVar(&c.S3Bucket, "s3-bucket", "", "bucket receiving uploaded media")
	fs.StringVar(&c.S3Region, "s3-region", "", "bucket region")
	fs.StringVar(&c.S3Endpoint, "s3-endpoint", "", "S3-compatible endpoint host[:port] (minio backend)")
	fs.StringVar(&c.S3AccessKeyID, "s3-access-key-id", "", "access key id for the upload bucket")
	fs.StringVar(&c.S3SecretAccessKey, "s3-secret-access-key", "", "secret access key for the upload bucket")
	fs.BoolVar(&c.S3UseSSL, "s3-use-ssl", true, "use TLS for the minio endpoint")
	fs.StringVar(&c.S3PublicBaseURL, "s3-public-base-url", "", "public URL prefix for uploaded objects (e.g. CDN)")

	fs.StringVar(&c.AdminUsername, "admin-username", "", "admin login name")
	fs.StringVar(&c.AdminPassword, "admin-password", "", "admin password (plaintext)")
	fs.StringVar(&c.AdminPasswordHash, "admin-password-hash", "", "admin password hash: sha256 hex (optional sha256: prefix) or bcrypt")
	fs.StringVar(&c.AuthSigningSecret, "auth-signing-secret", "", "HMAC secret for admin tokens")
	fs.IntVar(&c.AuthTokenTTLSeconds, "auth-token-ttl-seconds", 43200, "admin token lifetime in seconds")
	fs.StringVar(&c.AuthTokenImpl, "auth-token-impl", TokenImplHMAC, "token signer: hmac|jwt")
	fs.StringVar(&c.AuthKMSKeyID, "auth-kms-key-id", "", "KMS HMAC key id/ARN; when set tokens are signed by KMS instead of auth-signing-secret")
	fs.StringVar(&c.AdminPasswordHashParam, "admin-password-hash-ssm-param", "", "SSM parameter holding admin-password-hash")
	fs.StringVar(&c.AuthSigningSecretParam, "auth-signing-secret-ssm-param", "", "SSM parameter holding auth-signing-secret")
	fs.Float64Var(&c.LoginRatePerSecond, "login-rate", 0.2, "login attempts per second per client IP")
	fs.IntVar(&c.LoginBurst, "login-burst", 5, "login attempt burst per client IP")
}

// LoadDotEnv reads KEY=VALUE pairs from the given files into the process
// environment. Variables that are already set win. Missing files are skipped.
func LoadDotEnv(files ...string) error {
	var existing []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	return godotenv.Load(existing...)
}

// FillFromEnv sets any flag not explicitly passed on the CLI from
// environment variables. Flag "foo-bar" maps to PREFIX_FOO_BAR.
// Precedence: cli flag > env var > default.
func FillFromEnv(fs *flag.FlagSet, prefix string, logf func(string, ...any)) {
	explicit := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

	fs.VisitAll(func(f *flag.Flag) {
		key := EnvName(prefix, f.Name)
		envVal, envSet := os.LookupEnv(key)
		if !envSet {
			return
		}
		if explicit[f.Name] {
			if logf != nil {
				logf("flag -%s: cli value overrides env %s", f.Name, key)
			}
			return
		}
		prev := f.Value.String()
		if err := fs.Set(f.Name, envVal); err != nil {
			_ = fs.Set(f.Name, prev)
			if logf != nil {
				logf("flag -%s: ignoring invalid env %s: %v", f.Name, key, err)
			}
		}
	})
}

// EnvName maps a flag name to its environment variable.
func EnvName(prefix, flagName string) string {
	return prefix + strings.ReplaceAll(strings.ToUpper(flagName), "-", "_")
}

// MissingStorageEnv lists the env variables that must be set before upload
// URLs can be issued.
func (c App) MissingStorageEnv() []string {
	var missing []string
	need := func(ok bool, flagName string) {
		if !ok {
			missing = append(missing, EnvName(EnvPrefix, flagName))
		}
	}
	need(c.S3Bucket != "", "s3-bucket")
	if c.StorageBackend == BackendMinio {
		need(c.S3Endpoint != "", "s3-endpoint")
		need(c.S3AccessKeyID != "", "s3-access-key-id")
		need(c.S3SecretAccessKey != "", "s3-secret-access-key")
		return missing
	}
	// s3 falls back to the default AWS credential chain when no static keys are set
	need(c.S3Region != "", "s3-region")
	if (c.S3AccessKeyID == "") != (c.S3SecretAccessKey == "") {
		need(c.S3AccessKeyID != "", "s3-access-key-id")
		need(c.S3SecretAccessKey != "", "s3-secret-access-key")
	}
	return missing
}

// MissingAuthEnv lists the env variables that must be set before admin
// login works.
func (c App) MissingAuthEnv() []string {
	var missing []string
	if c.AdminUsername == "" {
		missing = append(missing, EnvName(EnvPrefix, "admin-username"))
	}
	if c.AdminPassword == "" && c.AdminPasswordHash == "" && c.AdminPasswordHashParam == "" {
		missing = append(missing, EnvName(EnvPrefix, "admin-password"))
	}
	if c.AuthSigningSecret == "" && c.AuthSigningSecretParam == "" && c.AuthKMSKeyID == "" {
		missing = append(missing, EnvName(EnvPrefix, "auth-signing-secret"))
	}
	return missing
}

// Validate checks that config values are within expected ranges and formats.
// Returns an error describing all invalid fields, or nil if all valid.
// Missing storage or admin credentials are not errors: the server starts and
// reports them through /api/health.
func Validate(c App) error {
	var errs []error

	// Ports
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d (must be 1..65535)", c.HTTPPort))
	}
	if c.AdminPort < 1 || c.AdminPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid ADMIN_PORT %d (must be 1..65535)", c.AdminPort))
	}
	if c.AdminPort == c.HTTPPort {
		errs = append(errs, fmt.Errorf("ADMIN_PORT and HTTP_PORT must differ (both %d)", c.HTTPPort))
	}

	// Log levels
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("invalid LOG_LEVEL %q: %w", c.LogLevel, err))
	}
	if c.StacktraceLevel != "" {
		if _, err := log.ParseLevel(c.StacktraceLevel); err != nil {
			errs = append(errs, fmt.Errorf("invalid STACKTRACE_LEVEL %q: %w", c.StacktraceLevel, err))
		}
	}

	if c.TraceSample < 0 || c.TraceSample > 1 {
		errs = append(errs, fmt.Errorf("invalid TRACE_SAMPLE %.3f (must be 0..1)", c.TraceSample))
	}

	if c.EnablePyroscope {
		if c.PyroServer == "" {
			errs = append(errs, fmt.Errorf("PYRO_SERVER required when ENABLE_PYROSCOPE=true"))
		} else if u, err := url.Parse(c.PyroServer); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("PYRO_SERVER must be a URL (got %q)", c.PyroServer))
		}
		if c.PyroTenantID == "" {
			errs = append(errs, fmt.Errorf("PYRO_TENANT required when ENABLE_PYROSCOPE=true"))
		}
	}

	// grpc exporter wants host:port, no scheme
	if c.EnableTracing {
		if c.OTLPEndpoint == "" {
			errs = append(errs, fmt.Errorf("OTLP_ENDPOINT required when ENABLE_TRACING=true"))
		} else if _, _, err := net.SplitHostPort(c.OTLPEndpoint); err != nil {
			errs = append(errs, fmt.Errorf("OTLP_ENDPOINT must be host:port (got %q): %v", c.OTLPEndpoint, err))
		}
	}

	if c.IncludeErrorLinks && (c.MaxErrorLinks < 1 || c.MaxErrorLinks > 64) {
		errs = append(errs, fmt.Errorf("MAX_ERROR_LINKS must be 1..64 (got %d)", c.MaxErrorLinks))
	}
	if c.TrustedProxyHops < 0 {
		errs = append(errs, fmt.Errorf("TRUSTED_PROXY_HOPS must be >= 0 (got %d)", c.TrustedProxyHops))
	}

	if c.DBPath == "" {
		errs = append(errs, fmt.Errorf("DB_PATH is required"))
	}

	switch c.StorageBackend {
	case BackendS3, BackendMinio:
	default:
		errs = append(errs, fmt.Errorf("STORAGE_BACKEND must be %s or %s (got %q)", BackendS3, BackendMinio, c.StorageBackend))
	}
	if c.S3PublicBaseURL != "" {
		if u, err := url.Parse(c.S3PublicBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("S3_PUBLIC_BASE_URL must be an absolute URL (got %q)", c.S3PublicBaseURL))
		}
	}
	if c.StorageBackend == BackendMinio && strings.Contains(c.S3Endpoint, "://") {
		errs = append(errs, fmt.Errorf("S3_ENDPOINT must be host[:port] without scheme (got %q)", c.S3Endpoint))
	}

	switch c.AuthTokenImpl {
	case TokenImplHMAC, TokenImplJWT:
	default:
		errs = append(errs, fmt.Errorf("AUTH_TOKEN_IMPL must be %s or %s (got %q)", TokenImplHMAC, TokenImplJWT, c.AuthTokenImpl))
	}
	if c.AuthTokenTTLSeconds < 60 {
		errs = append(errs, fmt.Errorf("AUTH_TOKEN_TTL_SECONDS must be >= 60 (got %d)", c.AuthTokenTTLSeconds))
	}
	if c.LoginRatePerSecond <= 0 || c.LoginBurst < 1 {
		errs = append(errs, fmt.Errorf("LOGIN_RATE must be > 0 and LOGIN_BURST >= 1 (got %g, %d)", c.LoginRatePerSecond, c.LoginBurst))
	}

	return errors.Join(errs...)
}
