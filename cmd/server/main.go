package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"github.com/lamgaraproperties/lamgara-web/internal/apihttp"
	"github.com/lamgaraproperties/lamgara-web/internal/auth"
	"github.com/lamgaraproperties/lamgara-web/internal/cfg"
	"github.com/lamgaraproperties/lamgara-web/internal/content"
	"github.com/lamgaraproperties/lamgara-web/internal/health"
	"github.com/lamgaraproperties/lamgara-web/internal/httpmw"
	"github.com/lamgaraproperties/lamgara-web/internal/httpserver"
	"github.com/lamgaraproperties/lamgara-web/internal/log"
	"github.com/lamgaraproperties/lamgara-web/internal/metrics"
	"github.com/lamgaraproperties/lamgara-web/internal/opshttp"
	"github.com/lamgaraproperties/lamgara-web/internal/otelx"
	"github.com/lamgaraproperties/lamgara-web/internal/prof"
	"github.com/lamgaraproperties/lamgara-web/internal/ratelimit"
	"github.com/lamgaraproperties/lamgara-web/internal/sitehandler"
	"github.com/lamgaraproperties/lamgara-web/internal/uploads"
	v "github.com/lamgaraproperties/lamgara-web/internal/version"
	"github.com/lamgaraproperties/lamgara-web/internal/webassets"
)

// drainPeriod gives the load balancer time to see /-/ready fail before the
// listeners close.
const drainPeriod = 30 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	vi := v.Get()

	// .env is for local development; real environment variables win
	if err := cfg.LoadDotEnv(".env", "server/.env"); err != nil {
		fmt.Fprintln(os.Stderr, "dotenv error:", err)
		os.Exit(1)
	}

	var conf cfg.App
	var showVersion bool
	cfg.Register(flag.CommandLine, &conf)
	flag.BoolVar(&showVersion, "V", false, "Print version+build information and exit")
	flag.Parse()

	if showVersion {
		fmt.Println(vi.String())
		os.Exit(0)
	}

	cfg.FillFromEnv(flag.CommandLine, cfg.EnvPrefix, func(format string, args ...any) {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	})
	if err := cfg.Validate(conf); err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(1)
	}

	lvl, err := log.ParseLevel(conf.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid log level %s: %v\n", conf.LogLevel, err)
		os.Exit(1)
	}
	stackLvl, err := log.ParseLevel(conf.StacktraceLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid stacktrace level %s: %v\n", conf.StacktraceLevel, err)
		os.Exit(1)
	}
	lg, err := log.New(log.Options{
		App:               v.AppName,
		Version:           vi.Version,
		Commit:            vi.Commit,
		BuildId:           vi.BuildId,
		Level:             lvl,
		StacktraceLevel:   stackLvl,
		JsonFormat:        conf.LogJSON,
		MaxErrorLinks:     conf.MaxErrorLinks,
		IncludeErrorLinks: conf.IncludeErrorLinks,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger init error:", err)
		os.Exit(1)
	}
	defer lg.Sync()
	L := lg.With("component", "server")
	ctx = log.WithContext(ctx, L)

	L.Info(ctx, "initializing application",
		"version", vi.Version,
		"commit", vi.Commit,
		"build_id", vi.BuildId,
		"released", vi.Released(),
		"go_version", vi.GoVersion,
		"http_port", conf.HTTPPort,
		"admin_port", conf.AdminPort,
		"db_path", conf.DBPath,
		"site_dir", conf.SiteDir,
		"storage_backend", conf.StorageBackend,
		"s3_bucket", conf.S3Bucket,
		"auth_token_impl", conf.AuthTokenImpl,
		"auth_kms", conf.AuthKMSKeyID != "",
		"enable_pprof", conf.EnablePprof,
		"enable_pyroscope", conf.EnablePyroscope,
		"enable_tracing", conf.EnableTracing,
		"trace_sample", conf.TraceSample,
	)

	m := metrics.New()
	m.SetBuildInfoFromVersion(v.AppName, "server", &vi)

	stopProf, err := prof.Start(ctx, prof.Options{
		Enabled:       conf.EnablePyroscope,
		AppName:       v.AppName,
		ServerAddress: conf.PyroServer,
		TenantID:      conf.PyroTenantID,
		Tags:          prof.BuildTags("server", vi),
		OnActive:      m.SetProfilingActive,
	})
	if err != nil {
		L.Error(ctx, err, "pyroscope start failed", "pyro_server", conf.PyroServer)
	}
	defer stopProf()

	// the collector runs on localhost
	shutdownOTEL, err := otelx.Init(ctx, otelx.Options{
		Enabled:   conf.EnableTracing,
		Endpoint:  conf.OTLPEndpoint,
		Insecure:  true,
		Sample:    conf.TraceSample,
		Service:   v.AppName,
		Component: "server",
		Version:   vi.Version,
	})
	if err != nil {
		L.Error(ctx, err, "otel init failed")
	}
	defer func() { _ = shutdownOTEL(context.Background()) }()

	var awsCfg *aws.Config
	if needsAWS(conf) {
		c, err := loadAWSConfig(ctx, conf)
		if err != nil {
			L.Error(ctx, err, "aws config unavailable, kms, ssm and s3 features disabled")
		} else {
			awsCfg = &c
		}
	}

	if awsCfg != nil && (conf.AdminPasswordHashParam != "" || conf.AuthSigningSecretParam != "") {
		if err := resolveSSMSecrets(ctx, ssm.NewFromConfig(*awsCfg), &conf); err != nil {
			// login answers 503 until the parameters are readable
			L.Error(ctx, err, "failed to resolve admin secrets from ssm")
		}
	}

	signer, err := tokenSigner(ctx, L, conf, awsCfg)
	if err != nil {
		L.Error(ctx, err, "token signer unavailable, admin login disabled")
	}
	authn := auth.New(auth.Config{
		Username:      conf.AdminUsername,
		Password:      conf.AdminPassword,
		PasswordHash:  conf.AdminPasswordHash,
		SigningSecret: conf.AuthSigningSecret,
		TokenTTL:      conf.TokenTTL(),
	}, auth.WithSigner(signer))
	if missing := conf.MissingAuthEnv(); len(missing) > 0 {
		L.Warn(ctx, "admin auth not configured", "missing_env", missing)
	}

	store, err := content.Open(ctx, conf.DBPath,
		content.WithLogger(L),
		content.WithDefaults(webassets.DefaultContent()),
	)
	if err != nil {
		L.Error(ctx, err, "failed to open content database", "db_path", conf.DBPath)
		os.Exit(1)
	}
	defer func() {
		if err := store.Close(); err != nil {
			L.Error(context.Background(), err, "content database close")
		}
	}()
	if err := store.Initialize(ctx); err != nil {
		L.Error(ctx, err, "failed to initialize content database")
		os.Exit(1)
	}
	if snap, err := store.Get(ctx); err != nil {
		L.Error(ctx, err, "initial content read failed")
	} else {
		m.ObserveContent(snap)
		L.Info(ctx, "content loaded", "updated_at", snap.UpdatedAt, "hash", snap.Hash)
	}

	presigner, err := newPresigner(conf, awsCfg)
	if err != nil {
		L.Error(ctx, err, "upload presigner unavailable", "backend", conf.StorageBackend)
	}
	if missing := conf.MissingStorageEnv(); len(missing) > 0 {
		L.Warn(ctx, "upload storage not configured", "missing_env", missing)
	}
	uploadSvc := uploads.NewService(presigner)

	limiter := ratelimit.New(ctx,
		ratelimit.WithOnDenied(func(string) { m.IncRateLimitDenied("global") }),
		// logged once per visitor until it is evicted
		ratelimit.WithOnFirstDenied(func(ip string) {
			L.Warn(ctx, "rate limit triggered", "client.address", ip)
		}),
		ratelimit.WithOnCapacity(func() {
			m.IncRateLimitCapacity()
			L.Warn(ctx, "rate limit capacity reached, rejecting new visitors until some are evicted")
		}),
	)
	loginLimiter := ratelimit.New(ctx,
		ratelimit.WithRate(conf.LoginRatePerSecond, conf.LoginBurst),
		ratelimit.WithOnDenied(func(string) {
			m.IncRateLimitDenied("login")
			m.IncLoginAttempt(metrics.ResultLimited)
		}),
		ratelimit.WithOnFirstDenied(func(ip string) {
			L.Warn(ctx, "login rate limit triggered", "client.address", ip)
		}),
	)

	api := apihttp.NewAPI(apihttp.Options{
		Logger:            L,
		Content:           store,
		Auth:              authn,
		Uploads:           uploadSvc,
		MissingStorageEnv: conf.MissingStorageEnv,
		MissingAuthEnv:    conf.MissingAuthEnv,
		LoginLimiter:      loginLimiter.Middleware,
		AllowedOrigins:    splitOrigins(conf.CORSOrigins),
		Hooks: apihttp.Hooks{
			Login:         m.IncLoginAttempt,
			TokenRejected: m.IncTokenRejection,
			ContentSaved: func(result string, snap content.Snapshot) {
				m.IncContentSave(result)
				if result == metrics.ResultOK {
					m.ObserveContent(snap)
				}
			},
			Presign: m.IncUploadPresign,
		},
	})

	siteOpts := sitehandler.Options{Logger: L, FallbackFS: webassets.FallbackFS()}
	if conf.SiteDir != "" {
		siteOpts.SiteFS = os.DirFS(conf.SiteDir)
	}
	site, err := sitehandler.New(siteOpts)
	if err != nil {
		L.Error(ctx, err, "failed to create site handler")
		os.Exit(1)
	}
	if !site.Ready() {
		L.Warn(ctx, "no site build found, serving maintenance page", "site_dir", conf.SiteDir)
	}

	var gate health.ShutdownGate
	readiness := health.All(
		gate.Probe(),
		health.Timed("sqlite", 500*time.Millisecond, store.Ping),
	)

	siteHTTPStop, err := httpserver.Start(ctx, &httpserver.Options{
		Logger:       L,
		Port:         conf.HTTPPort,
		APIRoutes:    api.RegisterRoutes,
		SiteHandler:  site,
		RateLimitMW:  limiter.Middleware,
		MetricsMW:    m.Middleware,
		OnPanic:      m.IncHttpPanic,
		ClientIPOpts: httpmw.ClientIPOptions{TrustedHops: conf.TrustedProxyHops},
		MaxBodyBytes: httpserver.DefaultMaxBodyBytes,
		ContentInfo:  store,
		Security:     httpmw.SecurityOptions{MediaOrigins: mediaOrigins(conf)},
	})
	if err != nil {
		L.Error(ctx, err, "failed to start site http listener")
		os.Exit(1)
	}
	defer func() { _ = siteHTTPStop(context.Background()) }()

	// the ops listener refuses public peers and forwarded requests even if
	// the security group is ever opened up
	opsHTTPStop, err := opshttp.Start(ctx, L, opshttp.Options{
		Port:        conf.AdminPort,
		Metrics:     m.Handler(),
		EnablePprof: conf.EnablePprof,
		Health:      health.Fixed(true, ""),
		Readiness:   readiness,
		OnPanic:     m.IncHttpPanic,
	})
	if err != nil {
		L.Error(ctx, err, "failed to start ops http listener")
		os.Exit(1)
	}
	defer func() { _ = opsHTTPStop(context.Background()) }()

	if err := notifySystemd(sdReady); err != nil {
		// systemd kills the unit after its start timeout if this never lands
		L.Warn(ctx, "failed to notify systemd of readiness", "error", err)
	}

	<-ctx.Done()
	stop()
	L.Info(context.Background(), "shutdown signal received")

	gate.Set("draining")
	if err := notifySystemd(sdStopping); err != nil {
		L.Warn(context.Background(), "failed to notify systemd of shutdown", "error", err)
	}
	L.Info(context.Background(), "readiness failing, draining", "period", drainPeriod.String())
	forceCh := make(chan os.Signal, 1)
	signal.Notify(forceCh, os.Interrupt, syscall.SIGTERM)
	select {
	case <-time.After(drainPeriod):
		L.Info(context.Background(), "drain period complete")
	case <-forceCh:
		L.Warn(context.Background(), "second signal received, skipping drain")
	}
	signal.Stop(forceCh)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := siteHTTPStop(shutdownCtx); err != nil {
		L.Error(shutdownCtx, err, "site http server shutdown")
	}
	if err := opsHTTPStop(shutdownCtx); err != nil {
		L.Error(shutdownCtx, err, "ops http server shutdown")
	}
	if err := shutdownOTEL(shutdownCtx); err != nil {
		L.Error(shutdownCtx, err, "otel shutdown")
	}

	L.Info(context.Background(), "shutdown complete")
}
