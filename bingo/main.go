package main

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"gosuda.org/portal/portal/core/cryptoops"
	"gosuda.org/portal/sdk"

	"github.com/gosuda/portal-bingo/bingo/profile"
	"github.com/gosuda/portal-bingo/bingo/store"
)

var rootCmd = &cobra.Command{
	Use:   "bingo",
	Short: "Portal demo: multiplayer bingo rooms",
	RunE:  runServer,
}

var (
	flagServerURLs     []string
	flagPort           int
	flagName           string
	flagCredKey        string
	flagDataPath       string
	flagDrawInterval   time.Duration
	flagTrustHost      bool
	flagProfileTimeout time.Duration
	flagLogLevel       string
	flagLogPretty      bool
)

func init() {
	cfg, err := LoadConfig()
	if err != nil {
		log.Warn().Err(err).Msg("[bingo] ignoring environment")
		cfg = Config{Port: 8080, Name: "bingo", DrawInterval: 6 * time.Second, ProfileTimeout: 5 * time.Second, LogLevel: "info"}
	}
	flags := rootCmd.PersistentFlags()
	flags.StringSliceVar(&flagServerURLs, "server-url", cfg.RelayURLs, "relayserver base URL(s); repeat or comma-separated (from env RELAY if set)")
	flags.IntVar(&flagPort, "port", cfg.Port, "optional local HTTP port (negative to disable)")
	flags.StringVar(&flagName, "name", cfg.Name, "backend display name")
	flags.StringVar(&flagCredKey, "cred-key", cfg.CredKey, "optional credential key to use for the listener (base64 encoded)")
	flags.StringVar(&flagDataPath, "data-path", cfg.DataPath, "pebble directory for room state (empty keeps state in memory)")
	flags.DurationVar(&flagDrawInterval, "draw-interval", cfg.DrawInterval, "automatic number-call cadence (0 disables automatic calls)")
	flags.BoolVar(&flagTrustHost, "trust-host", cfg.TrustHost, "accept host confirmations without re-checking the claimant's card")
	flags.DurationVar(&flagProfileTimeout, "profile-timeout", cfg.ProfileTimeout, "timeout for public profile lookups")
	flags.StringVar(&flagLogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	flags.BoolVar(&flagLogPretty, "log-pretty", cfg.LogPretty, "human-readable console logs")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("execute bingo command")
	}
}

func openStore() (store.Store, error) {
	if flagDataPath == "" {
		log.Info().Msg("[bingo] using in-memory store")
		return store.NewMemory(), nil
	}
	st, err := store.OpenPebble(flagDataPath)
	if err != nil {
		return nil, fmt.Errorf("open pebble store: %w", err)
	}
	log.Info().Str("path", flagDataPath).Msg("[bingo] using pebble store")
	return st, nil
}

func listenRelay(servers []string) (*sdk.RDClient, net.Listener, error) {
	cred := sdk.NewCredential()
	if flagCredKey != "" {
		key, err := base64.StdEncoding.DecodeString(flagCredKey)
		if err != nil {
			return nil, nil, fmt.Errorf("decode cred key: %w", err)
		}
		cred, err = cryptoops.NewCredentialFromPrivateKey(key)
		if err != nil {
			return nil, nil, fmt.Errorf("new credential from private key: %w", err)
		}
	}
	client, err := sdk.NewClient(func(cfg *sdk.RDClientConfig) {
		cfg.BootstrapServers = servers
	})
	if err != nil {
		return nil, nil, fmt.Errorf("new client: %w", err)
	}
	ln, err := client.Listen(cred, flagName, []string{"http/1.1"})
	if err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("listen: %w", err)
	}
	return client, ln, nil
}

func runServer(cmd *cobra.Command, args []string) error {
	if err := setupLogging(flagLogLevel, flagLogPretty); err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore()
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Error().Err(err).Msg("[bingo] close store")
		}
	}()

	reg := NewRegistry(st, RoomOptions{DrawInterval: flagDrawInterval, TrustHost: flagTrustHost})
	profiles := profile.NewClient(profile.WithHTTPClient(&http.Client{Timeout: flagProfileTimeout}))
	mux := NewHTTPServer(flagName, reg, profiles).Router()

	g, gctx := errgroup.WithContext(ctx)

	if servers := relayServers(flagServerURLs); len(servers) > 0 {
		client, ln, err := listenRelay(servers)
		if err != nil {
			return err
		}
		log.Info().Strs("servers", servers).Msg("[bingo] relay listener enabled")
		g.Go(func() error {
			if err := http.Serve(ln, mux); err != nil && !errors.Is(err, http.ErrServerClosed) && gctx.Err() == nil {
				return fmt.Errorf("relay http: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			_ = ln.Close()
			return client.Close()
		})
	} else {
		log.Info().Msg("[bingo] relay disabled; running local mode only")
	}

	if flagPort >= 0 {
		httpSrv := &http.Server{Addr: fmt.Sprintf(":%d", flagPort), Handler: mux, ReadHeaderTimeout: 5 * time.Second, IdleTimeout: 60 * time.Second}
		log.Info().Msgf("[bingo] serving locally at http://127.0.0.1:%d", flagPort)
		g.Go(func() error {
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("local http: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := httpSrv.Shutdown(sctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("[bingo] http server shutdown error")
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		reg.Close(sctx)
		return nil
	})

	err = g.Wait()
	log.Info().Msg("[bingo] shutdown complete")
	return err
}
