// Command linechatd is the line-chat server entry point: it parses the
// listen port and idle timeout, wires the store/notify/metrics backends
// selected by configuration, and serves connections until a termination
// signal arrives. Wires a raw TCP line listener rather than an HTTP+websocket
// one, with graceful shutdown on SIGINT/SIGTERM/SIGHUP.
package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/chatline/linechatd/internal/auth"
	"github.com/chatline/linechatd/internal/chat"
	"github.com/chatline/linechatd/internal/config"
	"github.com/chatline/linechatd/internal/metrics"
	"github.com/chatline/linechatd/internal/notify"
	"github.com/chatline/linechatd/internal/server"
	"github.com/chatline/linechatd/internal/session"
	"github.com/chatline/linechatd/internal/store"
	"github.com/chatline/linechatd/internal/store/memstore"
	"github.com/chatline/linechatd/internal/store/sqlstore"
)

func main() {
	if len(os.Args) < 3 {
		fmt.Fprintln(os.Stderr, "usage: linechatd <port> <idle_timeout_seconds> [config_path]")
		os.Exit(1)
	}

	port, err := strconv.Atoi(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid port: %v\n", err)
		os.Exit(1)
	}
	idleSec, err := strconv.Atoi(os.Args[2])
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid idle_timeout_seconds: %v\n", err)
		os.Exit(1)
	}

	cfg := config.Default()
	if len(os.Args) > 3 {
		loaded, err := config.Load(os.Args[3])
		if err != nil {
			fmt.Fprintf(os.Stderr, "config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	cfg.Listen = fmt.Sprintf(":%d", port)
	cfg.IdleTimeoutSec = idleSec

	if err := run(cfg); err != nil {
		log.Fatal(err)
	}
}

func run(cfg *config.Config) error {
	st, err := openStore(cfg.Store)
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	defer st.Close()

	if err := openNotify(cfg.Notify); err != nil {
		return fmt.Errorf("notify: %w", err)
	}
	defer notify.Stop()

	tokenKey := []byte(cfg.TokenKey)
	if len(tokenKey) < 32 {
		tokenKey = make([]byte, 32)
	}
	signer, err := auth.NewTokenSigner(tokenKey)
	if err != nil {
		return fmt.Errorf("token signer: %w", err)
	}

	m := metrics.New()
	if cfg.MetricsListen != "" {
		go func() {
			if err := m.Serve(cfg.MetricsListen); err != nil {
				log.Printf("metrics: %v", err)
			}
		}()
	}

	sessions := session.NewRegistry(signer)
	reaper := session.NewReaper(sessions, time.Duration(cfg.IdleTimeoutSec)*time.Second, time.Second)
	svc := chat.NewService(st, sessions, m)
	srv := server.New(svc, sessions, m, reaper)

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe(cfg.Listen) }()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	select {
	case err := <-errc:
		return err
	case sig := <-sigc:
		log.Printf("signal received: %s, shutting down", sig)
		return srv.Shutdown()
	}
}

func openStore(cfg config.StoreConfig) (store.Adapter, error) {
	var a store.Adapter
	switch cfg.Adapter {
	case "", "mem":
		a = memstore.New()
	case "mysql":
		a = sqlstore.New()
	default:
		return nil, fmt.Errorf("unknown store adapter %q", cfg.Adapter)
	}
	if err := a.Open(cfg.DSN); err != nil {
		return nil, err
	}
	store.SetAdapter(a)
	return a, nil
}

func openNotify(cfg config.NotifyConfig) error {
	var h notify.Handler
	switch cfg.Adapter {
	case "", "noop":
		h = &notify.NoopHandler{}
	case "ses":
		h = &notify.SESHandler{}
	default:
		return fmt.Errorf("unknown notify adapter %q", cfg.Adapter)
	}

	cfgJSON := fmt.Sprintf(`{"region":%q,"from":%q}`, cfg.Region, cfg.From)
	if err := h.Init(cfgJSON); err != nil {
		return err
	}
	notify.SetHandler(h)
	return nil
}
