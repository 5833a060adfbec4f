package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/tournevent/freight/internal/auth"
	"github.com/tournevent/freight/internal/server"
	"github.com/tournevent/freight/internal/store"
	"github.com/tournevent/freight/pkg/freight"
	"github.com/tournevent/freight/pkg/geo"
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

var rootCmd = &cobra.Command{
	Use:     "freight",
	Short:   "Tournevent Freight - road-distance freight estimation service",
	Version: version,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and GraphQL server",
	RunE:  runServe,
}

var estimateCmd = &cobra.Command{
	Use:   "estimate <cep>",
	Short: "Estimate freight to a destination postal code and print it as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runEstimate,
}

var migrateCmd = &cobra.Command{
	Use:       "migrate [up|down]",
	Short:     "Apply the tenant database migrations",
	Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{string(store.Up), string(store.Down)},
	RunE:      runMigrate,
}

var warmOriginsCmd = &cobra.Command{
	Use:   "warm-origins",
	Short: "Geocode and store the origin coordinate of every tenant missing one",
	RunE:  runWarmOrigins,
}

var setTenantCmd = &cobra.Command{
	Use:   "set-tenant <tenant-id>",
	Short: "Create or update a tenant's origin postal code and rate per km",
	Args:  cobra.ExactArgs(1),
	RunE:  runSetTenant,
}

var issueTokenCmd = &cobra.Command{
	Use:   "issue-token <tenant-id>",
	Short: "Issue a bearer token for a tenant",
	Args:  cobra.ExactArgs(1),
	RunE:  runIssueToken,
}

func init() {
	estimateCmd.Flags().String("token", "", "bearer token identifying the tenant")
	estimateCmd.Flags().Float64("lat", 0, "known destination latitude")
	estimateCmd.Flags().Float64("lng", 0, "known destination longitude")

	warmOriginsCmd.Flags().Int("concurrency", freight.DefaultWarmConcurrency, "maximum concurrent geocoding calls")

	setTenantCmd.Flags().String("origin", "", "origin postal code (8 digits)")
	setTenantCmd.Flags().Float64("rate", 0, "price per kilometer")
	_ = setTenantCmd.MarkFlagRequired("origin")
	_ = setTenantCmd.MarkFlagRequired("rate")

	issueTokenCmd.Flags().Duration("ttl", 365*24*time.Hour, "token lifetime")

	rootCmd.AddCommand(serveCmd, estimateCmd, migrateCmd, warmOriginsCmd, setTenantCmd, issueTokenCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	rt, err := initRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close(context.Background())

	deps, err := rt.initEngine(ctx)
	if err != nil {
		rt.logger.Error("Failed to initialize freight engine", zap.Error(err))
		return err
	}

	rt.logger.Info("Starting Tournevent Freight",
		zap.Int("port", rt.cfg.Port),
		zap.String("version", rt.cfg.Version),
	)

	srv, err := server.New(server.Config{
		Port:     rt.cfg.Port,
		Metrics:  rt.metrics,
		Gatherer: rt.registry,
		Checks:   deps.checks,
	}, deps.engine, rt.logger)
	if err != nil {
		return err
	}
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func runEstimate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	rt, err := initRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close(context.Background())

	deps, err := rt.initEngine(ctx)
	if err != nil {
		return err
	}

	req := freight.EstimateRequest{DestinationPostalCode: args[0]}
	req.AuthToken, _ = cmd.Flags().GetString("token")
	if cmd.Flags().Changed("lat") || cmd.Flags().Changed("lng") {
		hint := geo.Hint{}
		if cmd.Flags().Changed("lat") {
			lat, _ := cmd.Flags().GetFloat64("lat")
			hint.Lat = &lat
		}
		if cmd.Flags().Changed("lng") {
			lng, _ := cmd.Flags().GetFloat64("lng")
			hint.Lng = &lng
		}
		req.DestinationHint = hint
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")

	est, err := deps.engine.Estimate(ctx, req)
	if err != nil {
		fe := freight.Classify(err)
		_ = enc.Encode(map[string]any{
			"error":   fe.Code,
			"code":    fe.Code,
			"message": fe.Message,
			"details": fe.Details,
		})
		return fe
	}
	return enc.Encode(est)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	dir := store.Up
	if len(args) == 1 {
		dir = store.Direction(args[0])
	}

	rt, err := initRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close(context.Background())

	db, err := rt.requireDB(ctx)
	if err != nil {
		return err
	}
	if err := store.Migrate(db.SQL, dir); err != nil {
		return err
	}
	rt.logger.Info("Migrations applied", zap.String("direction", string(dir)))
	return nil
}

func runWarmOrigins(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	rt, err := initRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close(context.Background())

	db, err := rt.requireDB(ctx)
	if err != nil {
		return err
	}
	chain, err := rt.initGeocoder()
	if err != nil {
		return err
	}

	concurrency, _ := cmd.Flags().GetInt("concurrency")
	tenants := store.NewTenantStore(db.SQL)
	warmer := freight.NewWarmer(tenants, chain, freight.NewOriginCache(tenants), concurrency, rt.logger)

	report, err := warmer.WarmOrigins(ctx)
	rt.logger.Info("Origin warm-up finished",
		zap.Int("tenants", report.Tenants),
		zap.Int("cached", report.Cached),
		zap.Int("written", report.Written),
		zap.Int("failed", report.Failed))
	return err
}

func runSetTenant(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	origin, _ := cmd.Flags().GetString("origin")
	rate, _ := cmd.Flags().GetFloat64("rate")
	cep, err := geo.NormalizePostalCode(origin)
	if err != nil {
		return err
	}

	rt, err := initRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close(context.Background())

	db, err := rt.requireDB(ctx)
	if err != nil {
		return err
	}

	cfg := freight.TenantConfig{TenantID: args[0], OriginPostalCode: cep, RatePerKm: rate}
	if err := store.NewTenantStore(db.SQL).UpsertTenantConfig(ctx, cfg); err != nil {
		return err
	}
	rt.logger.Info("Tenant freight config saved",
		zap.String("tenant_id", cfg.TenantID),
		zap.String("origin_cep", cep.String()),
		zap.Float64("rate_per_km", rate))
	return nil
}

func runIssueToken(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	rt, err := initRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close(context.Background())

	if rt.cfg.TokenSymmetricKey == "" {
		return freight.NewError(freight.CodeConfiguration, "TOKEN_SYMMETRIC_KEY is required to issue tokens")
	}
	maker, err := auth.NewPasetoMaker(rt.cfg.TokenSymmetricKey)
	if err != nil {
		return err
	}

	ttl, _ := cmd.Flags().GetDuration("ttl")
	token, payload, err := maker.CreateToken(args[0], ttl)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), token)
	rt.logger.Info("Issued token",
		zap.String("tenant_id", payload.TenantID),
		zap.Time("expires_at", payload.ExpiredAt))
	return nil
}
