package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	arena "github.com/goliatone/go-arena"
)

func main() {
	cfg := arena.DefaultConfig()

	addr := flag.String("addr", cfg.Server.Addr, "listen address")
	dbURL := flag.String("database-url", cfg.Database.URL, "database connection URL (sqlite:// or postgres://)")
	themesDir := flag.String("themes", cfg.Themes.BasePath, "directory holding installed themes")
	defaultTheme := flag.String("theme", cfg.Themes.DefaultTheme, "theme used until one is configured")
	cacheProvider := flag.String("cache", cfg.Cache.Provider, "cache backend (memory or redis)")
	redisAddr := flag.String("redis-addr", cfg.Cache.RedisAddr, "redis address for the redis cache backend")
	reverseProxy := flag.String("reverse-proxy", cfg.Proxy.ReverseProxy, "trusted reverse-proxy hop counts")
	scriptRoot := flag.String("script-root", cfg.Proxy.ScriptRoot, "path prefix the instance is mounted under")
	locales := flag.String("locales", strings.Join(cfg.Locale.Supported, ","), "comma separated supported locales")
	autoReload := flag.Bool("template-reload", cfg.Templates.AutoReload, "recompile templates when sources change")
	updateURL := flag.String("update-url", cfg.Update.Endpoint, "update check endpoint, empty disables the check")
	logLevel := flag.String("log-level", cfg.Logging.Level, "log level")
	flag.Parse()

	cfg.Server.Addr = *addr
	cfg.Database.URL = *dbURL
	cfg.Themes.BasePath = *themesDir
	cfg.Themes.DefaultTheme = *defaultTheme
	cfg.Cache.Provider = *cacheProvider
	cfg.Cache.RedisAddr = *redisAddr
	cfg.Proxy.ReverseProxy = *reverseProxy
	cfg.Proxy.ScriptRoot = *scriptRoot
	cfg.Templates.AutoReload = *autoReload
	cfg.Logging.Level = *logLevel
	if *updateURL != "" {
		cfg.Update.Enabled = true
		cfg.Update.Endpoint = *updateURL
	}
	if *locales != "" {
		cfg.Locale.Supported = strings.Split(*locales, ",")
	}

	module, err := arena.New(cfg)
	if err != nil {
		log.Fatalf("arena: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := module.Boot(ctx); err != nil {
		log.Fatalf("arena boot: %v", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- module.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatalf("arena serve: %v", err)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := module.Shutdown(shutdownCtx); err != nil {
			log.Printf("arena shutdown: %v", err)
		}
	}
}
