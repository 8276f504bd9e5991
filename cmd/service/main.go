// Command service arranca el identity provider HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	rdb "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/dearjane/internal/cache"
	cachemem "github.com/dropDatabas3/dearjane/internal/cache/memory"
	cacheredis "github.com/dropDatabas3/dearjane/internal/cache/redis"
	"github.com/dropDatabas3/dearjane/internal/config"
	"github.com/dropDatabas3/dearjane/internal/email"
	httpx "github.com/dropDatabas3/dearjane/internal/http"
	oauthctrl "github.com/dropDatabas3/dearjane/internal/http/controllers/oauth"
	oidcctrl "github.com/dropDatabas3/dearjane/internal/http/controllers/oidc"
	sessionctrl "github.com/dropDatabas3/dearjane/internal/http/controllers/session"
	"github.com/dropDatabas3/dearjane/internal/http/router"
	oauthsvc "github.com/dropDatabas3/dearjane/internal/http/services/oauth"
	oidcsvc "github.com/dropDatabas3/dearjane/internal/http/services/oidc"
	sessionsvc "github.com/dropDatabas3/dearjane/internal/http/services/session"
	jwtx "github.com/dropDatabas3/dearjane/internal/jwt"
	"github.com/dropDatabas3/dearjane/internal/observability/logger"
	"github.com/dropDatabas3/dearjane/internal/rate"
	"github.com/dropDatabas3/dearjane/internal/store"
	storemem "github.com/dropDatabas3/dearjane/internal/store/adapters/memory"
	storepg "github.com/dropDatabas3/dearjane/internal/store/adapters/pg"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	var configPath string
	flag.StringVar(&configPath, "config", os.Getenv("CONFIG_PATH"), "ruta al config YAML")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger.Init(logger.Config{Env: cfg.App.Env, Level: os.Getenv("LOG_LEVEL")})
	defer func() { _ = logger.Sync() }()
	log := logger.With(logger.Component("main"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Clave de firma
	keys, err := jwtx.LoadOrGenerate(cfg.JWT.KeyFile)
	if err != nil {
		return fmt.Errorf("signing key: %w", err)
	}
	issuer := jwtx.NewIssuer(cfg.JWT.Issuer, keys)
	issuer.AccessTTL = config.Duration(cfg.JWT.AccessTTL)
	issuer.IDTTL = config.Duration(cfg.JWT.IDTokenTTL)
	log.Info("signing key loaded", logger.String("kid", keys.KID))

	// Storage
	var dal store.DataAccessLayer
	switch cfg.Storage.Driver {
	case "postgres":
		dal, err = storepg.Open(ctx, cfg.Storage.DSN)
		if err != nil {
			return fmt.Errorf("open postgres: %w", err)
		}
	default:
		log.Warn("using in-memory storage; data will not survive restarts")
		dal = storemem.New()
	}
	defer func() { _ = dal.Close() }()

	// Cache + rate limiting
	var (
		kv           cache.Cache
		tokenLimiter rate.Limiter
		authLimiter  rate.Limiter
	)
	switch cfg.Cache.Kind {
	case "redis":
		client := rdb.NewClient(&rdb.Options{Addr: cfg.Cache.Redis.Addr, DB: cfg.Cache.Redis.DB})
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
		kv = cacheredis.New(client, cfg.Cache.Redis.Prefix)
		if cfg.Rate.Enabled {
			tokenLimiter = rate.NewRedisLimiter(client, "rl:", cfg.Rate.Token.Limit, config.Duration(cfg.Rate.Token.Window))
			authLimiter = rate.NewRedisLimiter(client, "rl:", cfg.Rate.Authorize.Limit, config.Duration(cfg.Rate.Authorize.Window))
		}
	default:
		kv = cachemem.New(config.Duration(cfg.Cache.Memory.DefaultTTL))
		if cfg.Rate.Enabled {
			tokenLimiter = rate.NewMemoryLimiter(cfg.Rate.Token.Limit, config.Duration(cfg.Rate.Token.Window))
			authLimiter = rate.NewMemoryLimiter(cfg.Rate.Authorize.Limit, config.Duration(cfg.Rate.Authorize.Window))
		}
	}

	// Email
	var mail email.Sender = email.Noop{}
	if cfg.SMTP.Host != "" {
		mail = email.NewSMTP(email.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		})
	}

	// Sesiones
	sessions := sessionsvc.NewManager(kv, sessionsvc.CookieConfig{
		Name:     cfg.Auth.Session.CookieName,
		Domain:   cfg.Auth.Session.Domain,
		Secure:   cfg.Auth.Session.Secure,
		SameSite: parseSameSite(cfg.Auth.Session.SameSite),
		TTL:      config.Duration(cfg.Auth.Session.TTL),
	})

	// Services
	tokenSvc := oauthsvc.NewTokenService(oauthsvc.TokenDeps{
		DAL:        dal,
		Issuer:     issuer,
		Cache:      kv,
		Mail:       mail,
		RefreshTTL: config.Duration(cfg.JWT.RefreshTTL),
	})
	authorizeSvc := oauthsvc.NewAuthorizeService(oauthsvc.AuthorizeDeps{
		DAL:         dal,
		Cache:       kv,
		LoginURL:    cfg.Auth.LoginURL,
		ConsentURL:  cfg.Auth.ConsentURL,
		AuthCodeTTL: config.Duration(cfg.Auth.AuthCodeTTL),
	})
	endSessionSvc := oauthsvc.NewEndSessionService(oauthsvc.EndSessionDeps{
		DAL:      dal,
		Issuer:   issuer,
		LoginURL: cfg.Auth.LoginURL,
	})
	userInfoSvc := oidcsvc.NewUserInfoService(oidcsvc.UserInfoDeps{DAL: dal, Issuer: issuer})
	loginSvc := sessionsvc.NewLoginService(sessionsvc.LoginDeps{DAL: dal})

	// Router
	metricsHandler := httpx.RegisterMetrics(prometheus.DefaultRegisterer)
	handler := router.New(router.Deps{
		Token:            oauthctrl.NewTokenController(tokenSvc),
		Authorize:        oauthctrl.NewAuthorizeController(authorizeSvc, sessions),
		EndSession:       oauthctrl.NewEndSessionController(endSessionSvc, sessions),
		UserInfo:         oidcctrl.NewUserInfoController(userInfoSvc),
		Discovery:        oidcctrl.NewDiscoveryController(issuer),
		Login:            sessionctrl.NewLoginController(loginSvc, sessions),
		TokenLimiter:     tokenLimiter,
		AuthorizeLimiter: authLimiter,
		Metrics:          metricsHandler,
		Health: func(w http.ResponseWriter, r *http.Request) {
			if err := dal.Ping(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte("unhealthy"))
				return
			}
			_, _ = w.Write([]byte("ok"))
		},
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server listening", logger.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(),
			config.Duration(cfg.Server.ShutdownTimeout))
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func parseSameSite(v string) http.SameSite {
	switch v {
	case "Strict", "strict":
		return http.SameSiteStrictMode
	case "None", "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}
