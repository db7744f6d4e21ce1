package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/nkomarek/atelier/api"
	"github.com/nkomarek/atelier/blob"
	bboltstorage "github.com/nkomarek/atelier/storage/bbolt"
)

var (
	port           int
	dataDir        string
	uploadBaseURL  string
	trustedProxies string
	tlsCert        string
	tlsKey         string
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the atelier backend server",
	RunE: func(cmd *cobra.Command, args []string) error {
		// .env is optional; explicit flags win over it.
		_ = godotenv.Load()
		applyEnvDefaults(cmd)

		logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

		if err := os.MkdirAll(dataDir, 0o700); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}

		store, err := bboltstorage.NewFromFile(dataDir+"/atelier.db", nil)
		if err != nil {
			return fmt.Errorf("failed to open storage: %w", err)
		}
		defer store.Close()

		blobs := blob.NewFileStore(dataDir+"/uploads", uploadBaseURL)

		proxies, err := parseTrustedProxies(trustedProxies)
		if err != nil {
			return err
		}

		a := api.New(store, blobs,
			api.WithLogger(logger),
			api.WithTrustedProxies(proxies))

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.Logger)
		r.Use(middleware.Recoverer)

		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("OK"))
		})

		r.Mount("/api/v1", a.Router())

		fs := http.StripPrefix("/uploads/", http.FileServer(http.Dir(dataDir+"/uploads")))
		r.Get("/uploads/*", fs.ServeHTTP)

		server := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		}

		done := make(chan error, 1)
		go func() {
			var err error
			if tlsCert != "" && tlsKey != "" {
				err = server.ListenAndServeTLS(tlsCert, tlsKey)
			} else {
				err = server.ListenAndServe()
			}
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				done <- fmt.Errorf("server failed: %w", err)
				return
			}
			done <- nil
		}()

		logger.Info("server started",
			slog.Int("port", port),
			slog.String("data_dir", dataDir))

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("shutting down", slog.String("signal", sig.String()))
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(ctx); err != nil {
				return fmt.Errorf("shutdown failed: %w", err)
			}
			return nil
		case err := <-done:
			return err
		}
	},
}

// applyEnvDefaults lets .env / environment values stand in for flags that
// were not set explicitly.
func applyEnvDefaults(cmd *cobra.Command) {
	envFlags := map[string]string{
		"port":            "ATELIER_PORT",
		"data-dir":        "ATELIER_DATA_DIR",
		"upload-base-url": "ATELIER_UPLOAD_BASE_URL",
		"trusted-proxies": "ATELIER_TRUSTED_PROXIES",
		"tls-cert":        "ATELIER_TLS_CERT",
		"tls-key":         "ATELIER_TLS_KEY",
	}
	for name, env := range envFlags {
		if cmd.Flags().Changed(name) {
			continue
		}
		if v, ok := os.LookupEnv(env); ok && v != "" {
			_ = cmd.Flags().Set(name, v)
		}
	}
}

func parseTrustedProxies(raw string) ([]netip.Prefix, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var prefixes []netip.Prefix
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		prefix, err := netip.ParsePrefix(part)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy CIDR %q: %w", part, err)
		}
		prefixes = append(prefixes, prefix)
	}
	return prefixes, nil
}

func init() {
	serverCmd.Flags().IntVar(&port, "port", 8080, "port to listen on")
	serverCmd.Flags().StringVar(&dataDir, "data-dir", "./data", "directory for the database and uploads")
	serverCmd.Flags().StringVar(&uploadBaseURL, "upload-base-url", "/uploads", "public base URL for uploaded images")
	serverCmd.Flags().StringVar(&trustedProxies, "trusted-proxies", "", "comma-separated CIDR ranges whose forwarded headers are trusted")
	serverCmd.Flags().StringVar(&tlsCert, "tls-cert", "", "path to TLS certificate")
	serverCmd.Flags().StringVar(&tlsKey, "tls-key", "", "path to TLS private key")
	rootCmd.AddCommand(serverCmd)
}
