// Command sweepd scans wallets across the configured chains, classifies what
// it finds and applies batch remediations through the sponsored bundler.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"gitlab.com/walletsweep/sweepnode/batch"
	"gitlab.com/walletsweep/sweepnode/cache"
	"gitlab.com/walletsweep/sweepnode/common"
	"gitlab.com/walletsweep/sweepnode/config"
	sweeplog "gitlab.com/walletsweep/sweepnode/log"
	"gitlab.com/walletsweep/sweepnode/metrics"
	"gitlab.com/walletsweep/sweepnode/pricing"
	"gitlab.com/walletsweep/sweepnode/scanner"
	"gitlab.com/walletsweep/sweepnode/scanner/chainclients"
	"gitlab.com/walletsweep/sweepnode/security"
)

var (
	flagLogLevel      string
	flagLogPretty     bool
	flagMetricsListen string
	flagChains        []string
	flagNoCache       bool
	flagTokens        []string
)

func main() {
	root := &cobra.Command{
		Use:           "sweepd",
		Short:         "wallet scanning and remediation daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := sweeplog.Setup(flagLogLevel, flagLogPretty); err != nil {
				return err
			}
			config.Init()
			return nil
		},
	}
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "log level")
	root.PersistentFlags().BoolVar(&flagLogPretty, "log-pretty", false, "human readable log output")
	root.PersistentFlags().StringVar(&flagMetricsListen, "metrics-listen", "", "listen address for prometheus metrics, empty disables")

	scanCmd := &cobra.Command{
		Use:   "scan <address>",
		Short: "scan a wallet across every configured chain",
		Args:  cobra.ExactArgs(1),
		RunE:  runScan,
	}
	scanCmd.Flags().StringSliceVar(&flagChains, "chains", nil, "restrict the scan to these chains")
	scanCmd.Flags().BoolVar(&flagNoCache, "no-cache", false, "force a fresh scan")

	warmupCmd := &cobra.Command{
		Use:   "warmup <address>...",
		Short: "pre-populate the scan cache for a set of wallets",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runWarmup,
	}

	sweepCmd := &cobra.Command{
		Use:   "sweep <address> <action>",
		Short: "apply a batch action (HOLD, SWAP, HIDE, BURN) to a wallet's holdings",
		Args:  cobra.ExactArgs(2),
		RunE:  runSweep,
	}
	sweepCmd.Flags().StringSliceVar(&flagChains, "chains", nil, "restrict the scan to these chains")
	sweepCmd.Flags().StringSliceVar(&flagTokens, "tokens", nil, "restrict the action to these token addresses")

	hiddenCmd := &cobra.Command{
		Use:   "hidden",
		Short: "list locally hidden tokens",
		Args:  cobra.NoArgs,
		RunE:  runHidden,
	}

	root.AddCommand(scanCmd, warmupCmd, sweepCmd, hiddenCmd)
	if err := root.Execute(); err != nil {
		log.Error().Err(err).Msg("sweepd exited with error")
		os.Exit(1)
	}
}

// services bundles everything a command needs, wired once from config.
type services struct {
	registry *common.Registry
	scanner  *scanner.Scanner
	cache    *cache.ScanCache
	engine   *batch.Engine
	metrics  *metrics.Metrics
}

func buildServices() (*services, error) {
	m := metrics.NewMetrics()
	serveMetrics(m)

	registry, err := common.NewRegistry(config.GetChains())
	if err != nil {
		return nil, fmt.Errorf("fail to build chain registry: %w", err)
	}

	cacheCfg := config.GetCache()
	store := cache.NewMemoryStore(cacheCfg.TTL)
	oracle := pricing.NewCachedOracle(pricing.NewStaticOracle(nil), store, cacheCfg.PriceTTL)

	var fetchers []chainclients.BalanceFetcher
	readers := make(map[common.Chain]batch.AllowanceReader)
	for _, desc := range registry.All() {
		fetcher, err := chainclients.NewBalanceFetcher(desc, oracle, m)
		if err != nil {
			return nil, fmt.Errorf("fail to create %s balance fetcher: %w", desc.Chain, err)
		}
		fetchers = append(fetchers, fetcher)
		if reader, ok := fetcher.(batch.AllowanceReader); ok {
			readers[desc.Chain] = reader
		}
	}

	enricher, err := security.NewClient(config.GetSecurity(), registry, store, cacheCfg.RiskTTL, m)
	if err != nil {
		return nil, fmt.Errorf("fail to create security client: %w", err)
	}
	scanCache, err := cache.NewScanCache(store, cacheCfg.TTL, m)
	if err != nil {
		return nil, fmt.Errorf("fail to create scan cache: %w", err)
	}
	scan, err := scanner.NewScanner(registry, fetchers, enricher, scanCache, config.GetScanner(), m)
	if err != nil {
		return nil, fmt.Errorf("fail to create scanner: %w", err)
	}

	batchCfg := config.GetBatch()
	bundler := batch.NewBundler(batchCfg.BundlerEndpoint, config.GetScanner().HTTPTimeout)
	engine, err := batch.NewEngine(registry, bundler, readers, batchCfg, m)
	if err != nil {
		return nil, fmt.Errorf("fail to create batch engine: %w", err)
	}

	return &services{
		registry: registry,
		scanner:  scan,
		cache:    scanCache,
		engine:   engine,
		metrics:  m,
	}, nil
}

func serveMetrics(m *metrics.Metrics) {
	if flagMetricsListen == "" {
		return
	}
	go func() {
		handler := promhttp.HandlerFor(m.Registry(), promhttp.HandlerOpts{})
		if err := http.ListenAndServe(flagMetricsListen, handler); err != nil {
			log.Error().Err(err).Msg("metrics listener stopped")
		}
	}()
}

func scanOptions() scanner.ScanOptions {
	opts := scanner.ScanOptions{
		SkipCache: flagNoCache,
		Progress: func(st common.ChainScanStatus) {
			log.Info().
				Str("chain", string(st.Chain)).
				Str("status", string(st.Status)).
				Int("tokens", st.TokensFound).
				Msg("chain scan progress")
		},
	}
	for _, chain := range flagChains {
		opts.Chains = append(opts.Chains, common.Chain(strings.ToUpper(chain)))
	}
	return opts
}

func runScan(cmd *cobra.Command, args []string) error {
	svc, err := buildServices()
	if err != nil {
		return err
	}
	result, err := svc.scanner.Scan(cmd.Context(), args[0], scanOptions())
	if err != nil {
		return err
	}
	return printJSON(result)
}

func runWarmup(cmd *cobra.Command, args []string) error {
	svc, err := buildServices()
	if err != nil {
		return err
	}
	warmed, err := svc.cache.Warmup(cmd.Context(), args, func(ctx context.Context, address string) (*common.ScanResult, error) {
		return svc.scanner.Scan(ctx, address, scanner.ScanOptions{SkipCache: true})
	})
	if err != nil {
		log.Warn().Err(err).Msg("warmup finished with failures")
	}
	return printJSON(map[string]interface{}{
		"requested": len(args),
		"warmed":    warmed,
		"stats":     svc.cache.Stats(),
	})
}

func runSweep(cmd *cobra.Command, args []string) error {
	address, action := args[0], common.Action(strings.ToUpper(args[1]))
	if !action.Valid() {
		return fmt.Errorf("%w: unknown action %s", common.ErrValidationFailure, args[1])
	}
	svc, err := buildServices()
	if err != nil {
		return err
	}
	result, err := svc.scanner.Scan(cmd.Context(), address, scanOptions())
	if err != nil {
		return err
	}
	candidates := selectTokens(result.Tokens, flagTokens)
	if len(candidates) == 0 {
		return fmt.Errorf("%w: no matching tokens to act on", common.ErrValidationFailure)
	}
	report, err := batch.Validate(candidates, action)
	if err != nil {
		return err
	}
	for _, rejected := range report.Rejected {
		log.Warn().
			Str("token", rejected.Token.Key()).
			Str("reason", rejected.Reason).
			Msg("token excluded from batch")
	}
	if len(report.Eligible) == 0 {
		return fmt.Errorf("%w: no eligible tokens for %s", common.ErrValidationFailure, action)
	}
	outcome, err := svc.engine.Execute(cmd.Context(), result.Address, report.Eligible, action)
	if printErr := printJSON(outcome); printErr != nil {
		return printErr
	}
	return err
}

func runHidden(cmd *cobra.Command, args []string) error {
	svc, err := buildServices()
	if err != nil {
		return err
	}
	return printJSON(svc.engine.Hidden().All())
}

// selectTokens filters the scanned tokens down to the requested addresses,
// or returns all of them when no restriction was given.
func selectTokens(tokens []common.Token, requested []string) []common.Token {
	if len(requested) == 0 {
		return tokens
	}
	wanted := make(map[string]bool, len(requested))
	for _, address := range requested {
		wanted[common.NormalizeAddress(address)] = true
	}
	var out []common.Token
	for _, token := range tokens {
		if wanted[common.NormalizeAddress(token.Address)] {
			out = append(out, token)
		}
	}
	return out
}

func printJSON(v interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
