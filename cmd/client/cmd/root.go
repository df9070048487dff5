package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"motium/cmd/client/cmd/types"
	"motium/internal/app/client"
	"motium/internal/app/client/config"
	"motium/internal/utils/logger"

	"github.com/spf13/cobra"
	"golang.org/x/exp/slog"
)

var (
	cfgFile   string
	cfg       *config.Config
	log       *slog.Logger
	logCloser io.Closer
	app       *client.App
	debug     bool
	serverURL string
)

var rootCmd = &cobra.Command{
	Use:   "motium",
	Short: "Motium - учет поездок и расходов с офлайн-синхронизацией",
	Long: `Motium записывает поездки, расходы, транспорт и рабочие графики.

Все изменения сначала сохраняются локально и отправляются на сервер
при синхронизации, поэтому клиент работает и без сети.`,
	PersistentPreRunE:  setupApp,
	PersistentPostRunE: closeApp,
	SilenceUsage:       true,
	SilenceErrors:      true,
}

func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", types.Fail("Ошибка:"), err)
		os.Exit(1)
	}
}

func setupApp(cmd *cobra.Command, _ []string) error {
	cfg = config.MustLoad(cfgFile)

	if serverURL != "" {
		cfg.ServerAddress = serverURL
	}

	// вывод команд не смешивается с логами
	if cfg.LogFile != "" {
		log, logCloser = logger.NewFile(cfg.LogFile, debug)
	} else if debug {
		log = logger.NewWithWriter(cfg.Env, os.Stderr)
	} else {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	var err error
	app, err = client.New(cfg, log)
	if err != nil {
		return fmt.Errorf("ошибка инициализации приложения: %w", err)
	}

	cmd.SetContext(context.WithValue(cmd.Context(), types.ClientAppKey, app))
	return nil
}

func closeApp(_ *cobra.Command, _ []string) error {
	if app != nil {
		if err := app.Close(); err != nil {
			return err
		}
	}
	if logCloser != nil {
		return logCloser.Close()
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "конфигурационный файл (yaml, json, toml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "включить отладочный режим")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "адрес сервера host:port")
}
