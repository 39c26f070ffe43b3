// stockai answers questions about NSE-listed stocks with a tool-calling
// language model over live market data.
//
// Main CLI entrypoint using cobra command framework.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/seenimoa/stockai/api"
	"github.com/seenimoa/stockai/internal/analysis/comparison"
	"github.com/seenimoa/stockai/internal/config"
	"github.com/seenimoa/stockai/internal/tools"
	"github.com/seenimoa/stockai/pkg/utils"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Global config
var cfg *config.Config

var (
	heading = color.New(color.FgCyan, color.Bold)
	good    = color.New(color.FgGreen)
	warning = color.New(color.FgYellow)
	faint   = color.New(color.Faint)
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("error:"), err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "stockai",
	Short: "AI research assistant for NSE stocks",
	Long: `stockai answers free-text questions about NSE-listed stocks.
A classifier routes each question to a single-stock or comparison analyst
that calls market-data tools through a language model. Without a model the
answers are built from templates over the same data.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		configFile, _ := cmd.Flags().GetString("config")
		if configFile != "" {
			cfg, err = config.LoadFromFile(configFile)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if level, _ := cmd.Flags().GetString("log-level"); level != "" {
			cfg.Logging.Level = level
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(technicalCmd)
	rootCmd.AddCommand(optionsCmd)
	rootCmd.AddCommand(compareCmd)
	rootCmd.AddCommand(newsCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(statusCmd)
}

// --- Version Command ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("stockai %s\n", version)
		fmt.Printf("  commit:  %s\n", commit)
		fmt.Printf("  built:   %s\n", date)
	},
}

// --- Serve Command (API Server) ---

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := buildApp(ctx, cfg)
		if err != nil {
			return err
		}

		if err := a.store.StartJanitor(cfg.Cache.Sweep); err != nil {
			return fmt.Errorf("cache janitor: %w", err)
		}
		defer a.store.Stop()
		if err := a.directory.StartRefresh(ctx); err != nil {
			return fmt.Errorf("directory refresh: %w", err)
		}
		defer a.directory.Stop()

		srv := api.NewServer(cfg, api.Deps{
			Orchestrator: a.orch,
			Facade:       a.facade,
			Toolkit:      a.toolkit,
			Directory:    a.directory,
			News:         a.news,
			Metrics:      a.metrics,
			Logger:       a.log,
			Version:      version,
		})
		heading.Printf("Starting stockai API server on %s\n", cfg.Addr())
		return srv.ListenAndServe(ctx)
	},
}

// --- Ask Command ---

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a free-text question about one or two stocks",
	Example: `  stockai ask "How is TCS doing?"
  stockai ask "compare INFY vs WIPRO"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		res := a.orch.Process(cmd.Context(), strings.Join(args, " "))

		fmt.Println(res.Answer)
		fmt.Println()
		meta := fmt.Sprintf("type=%s symbols=%s confidence=%.2f took=%s",
			res.Type, strings.Join(res.Symbols, ","), res.Confidence, res.Duration.Round(time.Millisecond))
		faint.Println(meta)
		if res.Fallback {
			warning.Println("answered from market data templates (model unavailable)")
		}
		return nil
	},
}

// --- Tool Commands ---

var analyzeCmd = &cobra.Command{
	Use:   "analyze [ticker]",
	Short: "Price, valuation, trend and corporate snapshot of a stock",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTool(cmd, args[0], "Stock Snapshot", func(ctx context.Context, a *app, sym string) (any, error) {
			return a.toolkit.StockReport(ctx, sym)
		})
	},
}

var technicalCmd = &cobra.Command{
	Use:   "technical [ticker]",
	Short: "Moving averages, RSI, volatility, support, resistance and signals",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTool(cmd, args[0], "Technical Analysis", func(ctx context.Context, a *app, sym string) (any, error) {
			return a.toolkit.TechnicalReport(ctx, sym)
		})
	},
}

var optionsCmd = &cobra.Command{
	Use:   "options [ticker]",
	Short: "Put/call ratio, max pain and open-interest levels",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTool(cmd, args[0], "Options Summary", func(ctx context.Context, a *app, sym string) (any, error) {
			s, err := a.toolkit.OptionsSummary(ctx, sym)
			if err != nil {
				return nil, err
			}
			return tools.FormatOptions(s), nil
		})
	},
}

var newsCmd = &cobra.Command{
	Use:   "news [ticker]",
	Short: "Announcements, corporate actions, meetings and headlines",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTool(cmd, args[0], "News", func(ctx context.Context, a *app, sym string) (any, error) {
			return a.toolkit.NewsReport(ctx, sym)
		})
	},
}

var compareCmd = &cobra.Command{
	Use:   "compare [ticker1] [ticker2]",
	Short: "Score two stocks metric by metric",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		s1, s2 := utils.NormalizeTicker(args[0]), utils.NormalizeTicker(args[1])
		c, err := a.toolkit.CompareStocks(cmd.Context(), s1, s2)
		if err != nil {
			return userError(err)
		}

		heading.Printf("%s vs %s\n\n", c.Stock1.Symbol, c.Stock2.Symbol)
		for _, row := range comparisonRows(c) {
			marker := "  "
			switch c.WinnerByMetric[row.metric] {
			case c.Stock1.Symbol:
				marker = good.Sprint("◀ ")
			case c.Stock2.Symbol:
				marker = good.Sprint(" ▶")
			}
			fmt.Printf("  %-16s %14s %s %-14s\n", row.metric, row.v1, marker, row.v2)
		}
		fmt.Println()
		fmt.Printf("Score: %s %d, %s %d, tied %d of %d\n",
			c.Stock1.Symbol, c.Score.Wins1, c.Stock2.Symbol, c.Score.Wins2, c.Score.Ties, c.Score.Total)
		fmt.Println(c.Summary)
		return nil
	},
}

var resolveCmd = &cobra.Command{
	Use:   "resolve [company name]",
	Short: "Find NSE symbols by company name",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		matches, err := a.toolkit.ResolveMatches(strings.Join(args, " "))
		if err != nil {
			return err
		}
		if len(matches) == 0 {
			warning.Println("no matching companies")
			return nil
		}
		for _, m := range matches {
			fmt.Printf("  %-14s %s\n", good.Sprint(m.Symbol), m.Name)
		}
		return nil
	},
}

// --- Status Command ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show system status and configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}

		fmt.Println("═══════════════════════════════════════")
		heading.Println("  stockai: System Status")
		fmt.Println("═══════════════════════════════════════")
		fmt.Printf("  Version:       %s (%s)\n", version, commit)
		fmt.Printf("  Session:       %s\n", utils.SessionAt(utils.NowIST()))
		if ms, err := a.facade.MarketStatus(cmd.Context()); err != nil {
			fmt.Printf("  Exchange:      %s\n", warning.Sprint("unreachable"))
		} else {
			for _, m := range ms.Markets {
				fmt.Printf("  %-14s %s\n", m.Market+":", m.Status)
			}
		}
		fmt.Println()

		fmt.Println("  Configuration:")
		model := "none (template answers)"
		if a.provider != nil {
			model = fmt.Sprintf("%s (model: %s)", cfg.LLM.Provider, cfg.LLM.Model)
		}
		fmt.Printf("    LLM Provider:  %s\n", model)
		fmt.Printf("    Fallbacks:     %d\n", len(cfg.LLM.Fallbacks))
		fmt.Printf("    Directory:     %d symbols\n", a.directory.Len())
		fmt.Printf("    API Server:    %s\n", cfg.Addr())
		fmt.Println()

		fmt.Println("  API Keys:")
		keys := config.CheckAPIKeys(cfg)
		if len(keys) == 0 {
			fmt.Println("    none required")
		}
		for _, k := range keys {
			status := color.RedString("not set")
			if k.IsSet {
				status = good.Sprintf("set (%s: %s)", k.Source, k.Masked)
			}
			fmt.Printf("    %-25s %s\n", k.Name+":", status)
		}

		fmt.Println("═══════════════════════════════════════")
		return nil
	},
}

// ── Helpers ──

// runTool builds the app, runs one tool for the normalised ticker and
// prints its report as indented JSON.
func runTool(cmd *cobra.Command, ticker, title string, fn func(context.Context, *app, string) (any, error)) error {
	sym := utils.NormalizeTicker(ticker)
	if err := utils.ValidateSymbol(sym); err != nil {
		return err
	}
	a, err := buildApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	report, err := fn(cmd.Context(), a, sym)
	if err != nil {
		return userError(err)
	}

	heading.Printf("%s: %s\n", title, sym)
	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

// userError turns lookup failures into the message the tools show.
func userError(err error) error {
	var le *tools.LookupError
	if errors.As(err, &le) {
		return errors.New(tools.UserMessage(le.Symbol, le.Err))
	}
	if errors.Is(err, tools.ErrSameSymbol) {
		return errors.New("please provide two different symbols")
	}
	return err
}

type comparisonRow struct {
	metric, v1, v2 string
}

func comparisonRows(c *tools.Comparison) []comparisonRow {
	a, b := c.Stock1, c.Stock2
	return []comparisonRow{
		{comparison.MetricPrice, a.Price, b.Price},
		{comparison.MetricPE, a.PERatio, b.PERatio},
		{comparison.MetricROE, a.ROE, b.ROE},
		{comparison.MetricMargin, a.ProfitMargin, b.ProfitMargin},
		{comparison.MetricDebtToEquity, a.DebtToEquity, b.DebtToEquity},
		{comparison.MetricDividendYield, a.DividendYield, b.DividendYield},
		{comparison.MetricOneYearReturn, a.OneYearReturn, b.OneYearReturn},
		{comparison.MetricHigh52w, a.Week52High, b.Week52High},
		{comparison.MetricLow52w, a.Week52Low, b.Week52Low},
	}
}
