// Command seolens-audit runs a one-shot SEO audit from the terminal,
// using the same engine as the server but without going through the
// HTTP API.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/seolens/seolens/audit"
	"github.com/seolens/seolens/checks"
	"github.com/seolens/seolens/config"
	"github.com/seolens/seolens/fetch"
	"github.com/seolens/seolens/models"
	"github.com/seolens/seolens/pagespeed"
	"github.com/seolens/seolens/report"
	"github.com/seolens/seolens/serp"
)

var (
	flagCategories []string
	flagKeywords   []string
	flagFormat     string
	flagOutput     string
	flagTimeout    int
	flagNoRender   bool
	flagConfig     string
	flagVerbose    bool
)

func main() {
	root := &cobra.Command{
		Use:   "seolens-audit <url>",
		Short: "Audit a single page for SEO issues",
		Long: `seolens-audit fetches one URL, runs the full check catalogue across
six categories (technical, content, structured_data, links, ux,
advanced), and prints a scored report.`,
		Args:          cobra.ExactArgs(1),
		RunE:          run,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.Flags().StringSliceVar(&flagCategories, "categories", nil, "categories to audit (default: all six)")
	root.Flags().StringSliceVar(&flagKeywords, "keywords", nil, "target keywords for content and SERP checks (max 10)")
	root.Flags().StringVar(&flagFormat, "format", "text", "output format: text, json, csv, or html")
	root.Flags().StringVar(&flagOutput, "output", "", "write the report to a file instead of stdout")
	root.Flags().IntVar(&flagTimeout, "timeout", 0, "audit deadline in seconds (default 60, max 180)")
	root.Flags().BoolVar(&flagNoRender, "no-render", false, "skip the headless-browser render")
	root.Flags().StringVar(&flagConfig, "config", "", "YAML config file (overrides environment)")
	root.Flags().BoolVar(&flagVerbose, "verbose", false, "log engine activity to stderr")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("error: ")+err.Error())
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	initCLILogger(flagVerbose)

	cfg, err := loadConfig(flagConfig)
	if err != nil {
		return err
	}
	if flagNoRender {
		cfg.Browser.Enabled = false
	}

	req := &models.AuditRequest{
		URL:      args[0],
		Keywords: flagKeywords,
		Timeout:  flagTimeout,
	}
	for _, c := range flagCategories {
		req.Categories = append(req.Categories, models.Category(strings.TrimSpace(c)))
	}
	req.Defaults()
	if err := req.Validate(); err != nil {
		return fmt.Errorf("%s", detailMessage(err))
	}

	auditor, cleanup, err := buildAuditor(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	rep, err := auditor.Run(context.Background(), req)
	if err != nil {
		return fmt.Errorf("audit failed: %s", detailMessage(err))
	}

	out := os.Stdout
	if flagOutput != "" {
		f, err := os.Create(flagOutput)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	switch flagFormat {
	case "text":
		renderText(out, rep)
	case "json":
		return writeJSON(out, rep)
	case "csv":
		return report.WriteCSV(out, rep)
	case "html":
		return report.RenderHTML(out, rep)
	default:
		return fmt.Errorf("unknown format %q (expected text, json, csv, or html)", flagFormat)
	}
	return nil
}

// buildAuditor wires the audit engine the same way the server does,
// returning a cleanup function for the browser and link prober.
func buildAuditor(cfg *config.Config) (*audit.Auditor, func(), error) {
	client := fetch.NewClient(cfg.Fetch)

	var br *fetch.Browser
	if cfg.Browser.Enabled {
		b, err := fetch.NewBrowser(cfg.Browser)
		if err != nil {
			slog.Warn("browser launch failed; continuing without rendering", "error", err)
		} else {
			br = b
		}
	}

	links := checks.NewLinkProber(client, cfg.Audit.LinkProbeLimit, cfg.Audit.LinkProbeRPS)

	deps := checks.Deps{
		Thresholds: cfg.Thresholds,
		Probe:      client,
		Links:      links,
		PageSpeed:  pagespeed.NewClient(cfg.Capabilities.PageSpeedAPIKey, cfg.Capabilities.PageSpeedURL, nil),
		SERP:       serp.NewClient(cfg.Capabilities.SerpAPIKey, cfg.Capabilities.SerpURL, nil),
	}

	reg, err := audit.NewRegistry(checks.Catalog(deps))
	if err != nil {
		return nil, nil, fmt.Errorf("build check registry: %w", err)
	}
	rec, err := audit.NewRecommender()
	if err != nil {
		return nil, nil, fmt.Errorf("load recommendation rules: %w", err)
	}

	var renderer audit.Renderer
	if br != nil {
		renderer = br
	}

	cleanup := func() {
		links.Stop()
		if br != nil {
			br.Close()
		}
	}
	return audit.NewAuditor(reg, rec, client, renderer, cfg.Audit), cleanup, nil
}

// loadConfig layers the optional YAML file over the environment-driven
// defaults. Only the engine-relevant keys are read; server settings
// have no meaning for a one-shot run.
func loadConfig(path string) (*config.Config, error) {
	cfg := config.Load()
	if path == "" {
		return cfg, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("SEOLENS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	if v.IsSet("fetch.timeout") {
		cfg.Fetch.Timeout = v.GetDuration("fetch.timeout")
	}
	if v.IsSet("fetch.user_agent") {
		cfg.Fetch.UserAgent = v.GetString("fetch.user_agent")
	}
	if v.IsSet("browser.enabled") {
		cfg.Browser.Enabled = v.GetBool("browser.enabled")
	}
	if v.IsSet("browser.headless") {
		cfg.Browser.Headless = v.GetBool("browser.headless")
	}
	if v.IsSet("browser.bin") {
		cfg.Browser.BrowserBin = v.GetString("browser.bin")
	}
	if v.IsSet("audit.workers") {
		cfg.Audit.Workers = v.GetInt("audit.workers")
	}
	if v.IsSet("audit.link_probe_limit") {
		cfg.Audit.LinkProbeLimit = v.GetInt("audit.link_probe_limit")
	}
	if v.IsSet("thresholds.title_min") {
		cfg.Thresholds.TitleMin = v.GetInt("thresholds.title_min")
	}
	if v.IsSet("thresholds.title_max") {
		cfg.Thresholds.TitleMax = v.GetInt("thresholds.title_max")
	}
	if v.IsSet("thresholds.meta_desc_min") {
		cfg.Thresholds.MetaDescMin = v.GetInt("thresholds.meta_desc_min")
	}
	if v.IsSet("thresholds.meta_desc_max") {
		cfg.Thresholds.MetaDescMax = v.GetInt("thresholds.meta_desc_max")
	}
	if v.IsSet("thresholds.min_content_words") {
		cfg.Thresholds.MinContentWords = v.GetInt("thresholds.min_content_words")
	}
	if v.IsSet("thresholds.url_max_length") {
		cfg.Thresholds.URLMaxLength = v.GetInt("thresholds.url_max_length")
	}
	if v.IsSet("capabilities.pagespeed_api_key") {
		cfg.Capabilities.PageSpeedAPIKey = v.GetString("capabilities.pagespeed_api_key")
	}
	if v.IsSet("capabilities.serp_api_key") {
		cfg.Capabilities.SerpAPIKey = v.GetString("capabilities.serp_api_key")
	}
	return cfg, nil
}

// initCLILogger keeps engine logs off the report output: stderr only,
// and quiet unless --verbose.
func initCLILogger(verbose bool) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// detailMessage unwraps an audit error's human message.
func detailMessage(err error) string {
	var ae *models.AuditError
	if errors.As(err, &ae) {
		return ae.Message
	}
	return err.Error()
}
