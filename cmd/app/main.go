// Package main provides the entry point for the application with CLI commands.
package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/allisson/vaultcore/internal/config"
	cryptoDomain "github.com/allisson/vaultcore/internal/crypto/domain"
	cryptoService "github.com/allisson/vaultcore/internal/crypto/service"
	"github.com/allisson/vaultcore/internal/crypto/nonce"
	"github.com/allisson/vaultcore/internal/gate"
	vaulthttp "github.com/allisson/vaultcore/internal/http"
	"github.com/allisson/vaultcore/internal/metrics"
	"github.com/allisson/vaultcore/internal/vault"
)

func main() {
	cmd := &cli.Command{
		Name:    "app",
		Usage:   "Envelope-encryption crypto core for application-embedded field encryption",
		Version: "1.0.0",
		Commands: []*cli.Command{
			{
				Name:  "server",
				Usage: "Start the HTTP server",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runServer(ctx)
				},
			},
			{
				Name:  "create-master-key",
				Usage: "Generate a new Master Key for envelope encryption",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "id",
						Aliases: []string{"i"},
						Value:   "",
						Usage:   "Master key ID (e.g., prod-master-key-2025)",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runCreateMasterKey(cmd.String("id"))
				},
			},
			{
				Name:  "create-kek",
				Usage: "Create a new Key Encryption Key (KEK) and print its envelope",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "algorithm",
						Aliases: []string{"alg"},
						Value:   "aes-gcm",
						Usage:   "Encryption algorithm to use (aes-gcm or chacha20-poly1305)",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runCreateKek(ctx, cmd.String("algorithm"))
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.Any("error", err))
		os.Exit(1)
	}
}

// initLogger creates a structured logger from the configured log level,
// matching the reference application's level-to-handler mapping.
func initLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return slog.New(handler)
}

// buildVaultService wires the full C1-C11 dependency graph: nonce manager,
// AEAD manager, key manager, field key manager, RSA wrapper, security gate,
// and the master key chain the active KEK is unwrapped under.
func buildVaultService(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*vault.Service, func(), error) {
	masterKeyChain, err := cryptoDomain.LoadMasterKeyChain(ctx, cfg, cryptoService.NewKMSService(), logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load master key chain: %w", err)
	}

	masterKey, ok := masterKeyChain.Get(masterKeyChain.ActiveMasterKeyID())
	if !ok {
		masterKeyChain.Close()
		return nil, nil, fmt.Errorf("active master key %q not found in chain", masterKeyChain.ActiveMasterKeyID())
	}

	aeadManager := cryptoService.NewAEADManager()
	keyManager := cryptoService.NewKeyManager(aeadManager)

	kek, err := keyManager.CreateKek(masterKey, cryptoDomain.AESGCM)
	if err != nil {
		masterKeyChain.Close()
		return nil, nil, fmt.Errorf("failed to create KEK: %w", err)
	}
	kekKey, err := keyManager.DecryptKek(&kek, masterKey)
	if err != nil {
		masterKeyChain.Close()
		return nil, nil, fmt.Errorf("failed to decrypt KEK: %w", err)
	}
	kek.Key = kekKey

	nonceCfg := nonce.DefaultConfig()
	nonceCfg.DefaultStrategy = nonce.Strategy(cfg.NonceStrategy)
	nonceCfg.RotateThreshold = cfg.RotationThreshold
	nonceCfg.WarnThreshold = cfg.WarnThreshold
	nonceManager, err := nonce.New(nonceCfg)
	if err != nil {
		masterKeyChain.Close()
		return nil, nil, fmt.Errorf("failed to build nonce manager: %w", err)
	}

	fieldKeys := cryptoService.NewFieldKeyManager(
		aeadManager, keyManager, nonceManager,
		cfg.RotationDueAfter, cfg.TombstoneRetention,
	)
	wrapper := cryptoService.NewWrapper()
	g := gate.New(gate.Config{
		SessionTimeout:      cfg.SessionTimeout,
		PermissionsEnforced: cfg.PermissionsEnforced,
	})

	svc := vault.New(logger, fieldKeys, keyManager, aeadManager, wrapper, g, kek)

	cleanup := func() {
		cryptoDomain.Zero(kek.Key)
		masterKeyChain.Close()
	}
	return svc, cleanup, nil
}

// runServer starts the HTTP server with graceful shutdown support.
func runServer(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := initLogger(cfg)
	logger.Info("starting server", slog.String("version", "1.0.0"))

	svc, cleanup, err := buildVaultService(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize vault service: %w", err)
	}
	defer cleanup()

	var metricsProvider *metrics.Provider
	var metricsServer *vaulthttp.MetricsServer
	if cfg.MetricsEnabled {
		metricsProvider, err = metrics.NewProvider(cfg.MetricsNamespace)
		if err != nil {
			return fmt.Errorf("failed to initialize metrics provider: %w", err)
		}
		metricsServer = vaulthttp.NewMetricsServer(cfg.MetricsHost, cfg.MetricsPort, logger, metricsProvider)
	}

	vaultHandler := vaulthttp.NewVaultHandler(svc, logger)
	server := vaulthttp.NewServer(cfg.ServerHost, cfg.ServerPort, logger)
	server.SetupRouter(cfg, vaultHandler, metricsProvider, cfg.MetricsNamespace)

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(ctx); err != nil {
			serverErr <- err
		}
	}()

	if metricsServer != nil {
		go func() {
			if err := metricsServer.Start(ctx); err != nil {
				logger.Error("metrics server error", slog.Any("error", err))
			}
		}()
	}

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		if metricsServer != nil {
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("metrics server shutdown failed", slog.Any("error", err))
			}
		}
	case err := <-serverErr:
		return err
	}

	return nil
}

// runCreateMasterKey generates a new master key and displays the environment
// variable configuration.
//
// This command is a helper for generating cryptographically secure master
// keys for use in envelope encryption. The generated key is 32 bytes (256
// bits) suitable for AES-256 encryption.
//
// The key is generated using crypto/rand.Read which provides
// cryptographically secure random bytes. After encoding, the key material is
// immediately zeroed from memory. The output format matches the MASTER_KEYS
// and ACTIVE_MASTER_KEY_ID environment variables expected by
// LoadMasterKeyChainFromEnv.
func runCreateMasterKey(keyID string) error {
	if keyID == "" {
		keyID = fmt.Sprintf("master-key-%s", time.Now().Format("2006-01-02"))
	}

	masterKey := make([]byte, 32)
	if _, err := rand.Read(masterKey); err != nil {
		return fmt.Errorf("failed to generate master key: %w", err)
	}
	encodedKey := base64.StdEncoding.EncodeToString(masterKey)
	cryptoDomain.Zero(masterKey)

	fmt.Println("# Master Key Configuration")
	fmt.Println("# Copy these environment variables to your .env file or secrets manager")
	fmt.Println()
	fmt.Printf("MASTER_KEYS=\"%s:%s\"\n", keyID, encodedKey)
	fmt.Printf("ACTIVE_MASTER_KEY_ID=\"%s\"\n", keyID)
	fmt.Println()
	fmt.Println("# For multiple master keys (key rotation), use comma-separated format:")
	fmt.Printf("# MASTER_KEYS=\"%s:%s,new-key:base64-encoded-new-key\"\n", keyID, encodedKey)
	fmt.Println("# ACTIVE_MASTER_KEY_ID=\"new-key\"")
	fmt.Println()
	fmt.Println("# For KMS-backed master keys instead, set KMS_PROVIDER and KMS_KEY_URI")
	fmt.Println("# and skip MASTER_KEYS/ACTIVE_MASTER_KEY_ID entirely.")

	return nil
}

// runCreateKek creates a new Key Encryption Key under the configured master
// key chain and prints its wrapped envelope. There is no persistence layer
// in this service: the server process creates its own KEK at startup from
// the same master key chain, so this command exists to let an operator
// inspect what a freshly wrapped KEK looks like before deploying.
func runCreateKek(ctx context.Context, algorithmStr string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger := initLogger(cfg)

	var algorithm cryptoDomain.Algorithm
	switch algorithmStr {
	case "aes-gcm":
		algorithm = cryptoDomain.AESGCM
	case "chacha20-poly1305":
		algorithm = cryptoDomain.ChaCha20
	default:
		return fmt.Errorf("invalid algorithm: %s (valid options: aes-gcm, chacha20-poly1305)", algorithmStr)
	}

	masterKeyChain, err := cryptoDomain.LoadMasterKeyChain(ctx, cfg, cryptoService.NewKMSService(), logger)
	if err != nil {
		return fmt.Errorf("failed to load master key chain: %w", err)
	}
	defer masterKeyChain.Close()

	masterKey, ok := masterKeyChain.Get(masterKeyChain.ActiveMasterKeyID())
	if !ok {
		return fmt.Errorf("active master key %q not found in chain", masterKeyChain.ActiveMasterKeyID())
	}

	keyManager := cryptoService.NewKeyManager(cryptoService.NewAEADManager())
	kek, err := keyManager.CreateKek(masterKey, algorithm)
	if err != nil {
		return fmt.Errorf("failed to create KEK: %w", err)
	}

	logger.Info("KEK created",
		slog.String("algorithm", string(algorithm)),
		slog.String("master_key_id", masterKeyChain.ActiveMasterKeyID()),
		slog.String("kek_id", kek.ID.String()),
	)
	fmt.Printf("kek_id=%s algorithm=%s master_key_id=%s encrypted_key=%s nonce=%s\n",
		kek.ID, kek.Algorithm, kek.MasterKeyID,
		base64.StdEncoding.EncodeToString(kek.EncryptedKey),
		base64.StdEncoding.EncodeToString(kek.Nonce),
	)

	return nil
}
