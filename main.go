package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/tournevent/cargoconnect/internal/server"
	"go.uber.org/zap"
)

var version = "0.0.1"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var envFile string

var rootCmd = &cobra.Command{
	Use:     "cargoconnect",
	Short:   "CargoConnect shipment registration service",
	Version: version,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE:  runServe,
}

var registerCmd = &cobra.Command{
	Use:   "register <orderId>...",
	Short: "Register shipments for the given orders and print the results as JSON",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runRegister,
}

var labelsOutDir string

var labelsCmd = &cobra.Command{
	Use:   "labels <orderId>...",
	Short: "Write the stored labels of the given orders to disk",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runLabels,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "optional dotenv file loaded before the environment")
	labelsCmd.Flags().StringVarP(&labelsOutDir, "out", "o", ".", "directory the label PDFs are written to")

	rootCmd.AddCommand(serveCmd, registerCmd, labelsCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx, envFile)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	a.logger.Info("Starting CargoConnect shipment service",
		zap.Int("port", a.cfg.Port),
		zap.String("version", a.cfg.Version),
		zap.String("mode", a.cfg.Mode),
		zap.String("storage_backend", a.cfg.StorageBackend),
		zap.String("label_store", a.cfg.LabelStore),
	)

	srv := server.New(server.Config{Port: a.cfg.Port}, a.service, a.logger, a.metrics, a.registry)
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func runRegister(cmd *cobra.Command, args []string) error {
	ids, err := parseOrderIDs(args)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := newApp(ctx, envFile)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	results, err := a.service.RegisterShipments(ctx, ids)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(results)
}

func runLabels(cmd *cobra.Command, args []string) error {
	ids, err := parseOrderIDs(args)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := newApp(ctx, envFile)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	if err := os.MkdirAll(labelsOutDir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", labelsOutDir, err)
	}
	for _, id := range ids {
		labels, err := a.service.GetLabels(ctx, []int{id})
		if err != nil {
			return err
		}
		for i, label := range labels {
			name := filepath.Join(labelsOutDir, fmt.Sprintf("%d-%d.pdf", id, i+1))
			if err := os.WriteFile(name, label, 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", name, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
	}
	return nil
}

func parseOrderIDs(args []string) ([]int, error) {
	ids := make([]int, 0, len(args))
	for _, arg := range args {
		id, err := strconv.Atoi(arg)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid order id %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
