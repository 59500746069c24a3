package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/everstacklabs/inkgen/internal/auth"
	"github.com/everstacklabs/inkgen/internal/config"
	"github.com/everstacklabs/inkgen/internal/content"
	"github.com/everstacklabs/inkgen/internal/generate"
	"github.com/everstacklabs/inkgen/internal/provider"
	"github.com/everstacklabs/inkgen/internal/quota"
	"github.com/everstacklabs/inkgen/internal/server"
	"github.com/everstacklabs/inkgen/internal/store"
)

var cfgFile string

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "inkgen",
		Short: "AI-backed SVG and HTML animation generator",
		Long:  "Generates embeddable animated markup from natural-language descriptions through allow-listed AI backends.",
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")

	rootCmd.AddCommand(
		serveCmd(),
		generateCmd(),
		providersCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			setupLogger(cfg.LogLevel)

			accounts, assets, err := openStores(cfg)
			if err != nil {
				return err
			}

			registry := provider.NewRegistry(cfg)
			if len(registry.Allowed()) == 0 {
				return fmt.Errorf("no providers configured: set API keys and model lists")
			}

			ledger := quota.NewLedger(accounts)
			svc := generate.NewService(registry, ledger, cfg.AllowAnonymous, cfg.Timeout())

			var wechat *auth.WeChat
			if cfg.WeChat.AppID != "" && cfg.WeChat.Secret != "" {
				wechat = auth.NewWeChat(cfg.WeChat, accounts, cfg.DefaultCapacity)
			}

			srv := server.New(svc, registry, accounts, assets, wechat)

			slog.Info("listening",
				"addr", cfg.ListenAddr,
				"providers", len(registry.Allowed()),
				"anonymous", cfg.AllowAnonymous)
			return http.ListenAndServe(cfg.ListenAddr, srv.Routes())
		},
	}
}

func generateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate [description]",
		Short: "One-shot generation, markup to stdout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			setupLogger(cfg.LogLevel)

			registry := provider.NewRegistry(cfg)
			if len(registry.Allowed()) == 0 {
				return fmt.Errorf("no providers configured: set API keys and model lists")
			}

			// Local one-shot use has no account; quota does not apply.
			ledger := quota.NewLedger(store.NewMemoryStore())
			svc := generate.NewService(registry, ledger, true, cfg.Timeout())

			providerFlag, _ := cmd.Flags().GetString("provider")
			modelFlag, _ := cmd.Flags().GetString("model")
			typeFlag, _ := cmd.Flags().GetString("type")

			kind, err := content.ParseKind(typeFlag)
			if err != nil {
				return err
			}

			result, err := svc.Generate(cmd.Context(), generate.Request{
				Description: args[0],
				Provider:    providerFlag,
				Model:       modelFlag,
				Kind:        kind,
			})
			if err != nil {
				return err
			}

			fmt.Println(result.Markup)
			return nil
		},
	}

	cmd.Flags().String("provider", "", "Backend to use (default: configured default)")
	cmd.Flags().String("model", "", "Model to use (default: first allow-listed)")
	cmd.Flags().String("type", "svg", "Content type: svg or html")

	return cmd
}

func providersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List allow-listed backends and models",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			registry := provider.NewRegistry(cfg)
			allowed := registry.Allowed()
			if len(allowed) == 0 {
				fmt.Println("No providers configured.")
				return nil
			}

			def, _ := registry.Default()
			for _, d := range allowed {
				marker := " "
				if d.ID == def {
					marker = "*"
				}
				fmt.Printf("%s %-10s", marker, d.ID)
				for i, m := range d.Models {
					if i > 0 {
						fmt.Print(", ")
					}
					fmt.Print(m)
				}
				fmt.Println()
			}
			return nil
		},
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

func setupLogger(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}

func openStores(cfg *config.Config) (store.AccountStore, store.AssetStore, error) {
	if cfg.DataDir == "" {
		mem := store.NewMemoryStore()
		slog.Warn("no data_dir configured, using in-memory storage")
		return mem, mem, nil
	}
	fs, err := store.NewFileStore(cfg.DataDir)
	if err != nil {
		return nil, nil, fmt.Errorf("opening data dir: %w", err)
	}
	return fs, fs, nil
}
