package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"portal/internal/api"
	"portal/internal/auth"
	"portal/internal/config"
	"portal/internal/detector"
	"portal/internal/model"
	"portal/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const (
	appName = "portal"
	Version = "0.1.0"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:           appName,
		Short:         "Portal web application (auth, shogi kifu store, object detector)",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(envFile)
		},
	}
	cmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")

	cmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(envFile)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(envFile)
			if err != nil {
				return err
			}
			// InitRepository 会执行自动迁移
			if _, err := model.InitRepository(&cfg); err != nil {
				return err
			}
			logrus.Info("数据库迁移完成")
			return nil
		},
	})

	cmd.AddCommand(createAdminCmd(&envFile))

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s version %s\n", appName, Version)
		},
	})

	return cmd
}

func createAdminCmd(envFile *string) *cobra.Command {
	var seed model.AdminSeed
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an admin account or promote an existing user",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*envFile)
			if err != nil {
				return err
			}
			if fromEnv, ok := model.AdminSeedFromConfig(cfg); ok {
				if seed.Username == "" {
					seed.Username = fromEnv.Username
				}
				if seed.Email == "" {
					seed.Email = fromEnv.Email
				}
				if seed.Password == "" {
					seed.Password = fromEnv.Password
				}
			}
			repo, err := model.InitRepository(&cfg)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			created, err := model.SeedAdmin(ctx, repo, seed)
			if err != nil {
				return err
			}
			logrus.WithFields(logrus.Fields{"username": seed.Username, "created": created}).Info("管理员账号已就绪")
			return nil
		},
	}
	cmd.Flags().StringVar(&seed.Username, "username", "", "admin username")
	cmd.Flags().StringVar(&seed.Email, "email", "", "admin email")
	cmd.Flags().StringVar(&seed.Password, "password", "", "admin password")
	return cmd
}

// loadConfig 加载 .env 与环境变量，并按配置设置日志
func loadConfig(envFile string) (config.Config, error) {
	logrus.SetFormatter(&logrus.JSONFormatter{})
	if err := config.LoadEnvFile(envFile); err != nil {
		return config.Config{}, fmt.Errorf("load env file: %w", err)
	}
	cfg, err := config.ParseConfig()
	if err != nil {
		return config.Config{}, fmt.Errorf("parse config: %w", err)
	}
	level, err := logrus.ParseLevel(strings.TrimSpace(cfg.LogLevel))
	if err != nil {
		logrus.WithField("level", cfg.LogLevel).Warn("unknown log level, using info")
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
	if err := auth.SetPasswordCost(cfg.PasswordHashCost); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func serve(envFile string) error {
	cfg, err := loadConfig(envFile)
	if err != nil {
		return err
	}

	repo, err := model.InitRepository(&cfg)
	if err != nil {
		return fmt.Errorf("initialise repository: %w", err)
	}

	if seed, ok := model.AdminSeedFromConfig(cfg); ok {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		created, err := model.SeedAdmin(ctx, repo, seed)
		cancel()
		if err != nil {
			logrus.WithError(err).Warn("failed to seed admin user")
		} else if created {
			logrus.WithField("username", seed.Username).Info("admin user created")
		}
	}

	store, err := storage.NewStorage(cfg)
	if err != nil {
		return fmt.Errorf("initialise storage: %w", err)
	}

	metrics := detector.NewMetrics(prometheus.DefaultRegisterer)
	httpHandler, err := api.NewHTTPHandler(cfg, repo, store, api.WithDetectorMetrics(metrics))
	if err != nil {
		return fmt.Errorf("initialise http handler: %w", err)
	}
	defer func() {
		if err := httpHandler.Close(); err != nil {
			logrus.WithError(err).Warn("failed to close handler resources")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gin.SetMode(gin.ReleaseMode)
	r := httpHandler.Router(ctx, prometheus.DefaultGatherer)

	serverHost := fmt.Sprintf("0.0.0.0:%s", cfg.HTTPPort)
	httpServer := &http.Server{
		Addr:              serverHost,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       120 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       300 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logrus.WithField("host", serverHost).Info("服务器启动")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			logrus.WithError(err).Error("服务器启动失败")
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logrus.Info("正在关闭服务器")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
