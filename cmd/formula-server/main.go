// cmd/formula-server: HTTP tool server and command-line front end for the
// formula engine.
//
// Usage:
//
//	formula-server serve --config formula.yaml
//	formula-server simplify '{"type":"sum","terms":[...]}'
//	formula-server eval '{"type":"variable","name":"x"}' --var x=2
//	formula-server schema
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	formula "github.com/njchilds90/goformula"
)

var (
	configPath string
	cfg        formula.Config
	logger     *slog.Logger

	rootCmd = &cobra.Command{
		Use:           "formula-server",
		Short:         "Symbolic formula engine: HTTP tool server and CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = formula.LoadConfig(configPath)
			if err != nil {
				return err
			}
			logger = cfg.Log.NewLogger(os.Stderr)
			slog.SetDefault(logger)
			return nil
		},
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve the tool endpoint over HTTP",
		RunE:  runServe,
	}

	simplifyCmd = &cobra.Command{
		Use:   "simplify [expr-json]",
		Short: "Collect an expression to its canonical form (reads stdin without an argument)",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSimplify,
	}

	evalCmd = &cobra.Command{
		Use:   "eval [expr-json]",
		Short: "Evaluate an expression numerically",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runEval,
	}

	schemaCmd = &cobra.Command{
		Use:   "schema",
		Short: "Print the tool schema",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), formula.MCPToolSpec())
		},
	}

	evalVars []string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file")
	evalCmd.Flags().StringArrayVar(&evalVars, "var", nil, "variable binding name=value (repeatable)")
	rootCmd.AddCommand(serveCmd, simplifyCmd, evalCmd, schemaCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	gin.SetMode(gin.ReleaseMode)
	srv := newServer(cfg, logger).httpServer()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("formula server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func readExpr(cmd *cobra.Command, args []string) (formula.Node[float64], error) {
	var data []byte
	if len(args) == 1 {
		data = []byte(args[0])
	} else {
		var err error
		data, err = io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
	}
	return formula.ParseJSON[float64](data)
}

func runSimplify(cmd *cobra.Command, args []string) error {
	root, err := readExpr(cmd, args)
	if err != nil {
		return err
	}
	f := formula.NewFormulaWithOptions(root, cfg.Options(logger))
	if err := f.Collect(); err != nil {
		return err
	}
	out, err := formula.ToJSON(f.Root())
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	fmt.Fprintln(w, f.String())
	fmt.Fprintln(w, out)
	return nil
}

func runEval(cmd *cobra.Command, args []string) error {
	root, err := readExpr(cmd, args)
	if err != nil {
		return err
	}
	values, err := parseBindings(evalVars)
	if err != nil {
		return err
	}
	v, err := formula.NewFormulaWithOptions(root, cfg.Options(logger)).NEvaluate(values)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), v)
	return nil
}

func parseBindings(pairs []string) (map[string]float64, error) {
	out := make(map[string]float64, len(pairs))
	for _, p := range pairs {
		name, raw, ok := strings.Cut(p, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("binding %q: want name=value", p)
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("binding %q: %w", p, err)
		}
		out[name] = v
	}
	return out, nil
}
