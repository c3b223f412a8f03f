// ftlkit — Fluent catalog translator: batch machine translation for .ftl files.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/ftlkit/ftlkit/batch"
	"github.com/ftlkit/ftlkit/config"
	"github.com/ftlkit/ftlkit/extract"
	"github.com/ftlkit/ftlkit/ftl"
	"github.com/ftlkit/ftlkit/i18n"
	"github.com/ftlkit/ftlkit/langmeta"
	"github.com/ftlkit/ftlkit/lockfile"
	"github.com/ftlkit/ftlkit/openai"
	"github.com/ftlkit/ftlkit/settings"
	"github.com/ftlkit/ftlkit/translate"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// Version information (set via -ldflags during build)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Log tags, colored when stderr supports it (fatih/color disables itself
// on non-terminals and when NO_COLOR is set).
var (
	tagInfo  = color.New(color.FgBlue).Sprint("[INFO]")
	tagOK    = color.New(color.FgGreen).Sprint("[OK]")
	tagWarn  = color.New(color.FgYellow).Sprint("[WARN]")
	tagError = color.New(color.FgRed).Sprint("[ERROR]")

	heading   = color.New(color.FgBlue).SprintFunc()
	highlight = color.New(color.FgGreen).SprintFunc()
	dimmed    = color.New(color.FgYellow).SprintFunc()
)

func logInfo(format string, args ...any) {
	fmt.Fprintln(os.Stderr, tagInfo+" "+fmt.Sprintf(format, args...))
}

func logSuccess(format string, args ...any) {
	fmt.Fprintln(os.Stderr, tagOK+" "+fmt.Sprintf(format, args...))
}

func logWarning(format string, args ...any) {
	fmt.Fprintln(os.Stderr, tagWarn+" "+fmt.Sprintf(format, args...))
}

func logError(format string, args ...any) {
	fmt.Fprintln(os.Stderr, tagError+" "+fmt.Sprintf(format, args...))
}

// ---------------------------------------------------------------------------
// Global flag
// ---------------------------------------------------------------------------

var rootDir string

// resolvePath resolves a project-relative path against --root.
func resolvePath(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(rootDir, p)
}

// ---------------------------------------------------------------------------
// Root command
// ---------------------------------------------------------------------------

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "ftlkit",
		Short: "Fluent catalog translator: batch machine translation for .ftl files",
		Long: `ftlkit — Fluent catalog translator: batch machine translation for .ftl files.

Translates locales/<origin>/**.ftl catalogs into per-locale mirror trees.
Placeables ({ $var }, { -term }, message references) are protected behind
index tokens during translation and restored afterwards, so providers can
never mangle variable names.

Commands:
  status      Show project info and per-locale coverage
  check       Verify catalogs parse and survive the encode/decode round trip
  translate   Translate catalogs into target locales
  languages   List supported locale codes
  auth        Manage provider credentials

Providers:
  google      Google Translate web endpoint — no key required (default)
  openai      OpenAI batch jobs — API key required`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global persistent flag — inherited by all subcommands
	root.PersistentFlags().StringVar(&rootDir, "root", ".", "Project root directory")

	root.AddCommand(
		newStatusCmd(),
		newCheckCmd(),
		newTranslateCmd(),
		newLanguagesCmd(),
		newAuthCmd(),
		newVersionCmd(),
	)

	return root
}

func main() {
	i18n.Init("")

	if err := newRootCmd().Execute(); err != nil {
		logError("%v", err)
		os.Exit(1)
	}
}

// ---------------------------------------------------------------------------
// version (display version information)
// ---------------------------------------------------------------------------

func newVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display version, commit hash, and build date.`,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("ftlkit version %s\n", version)
			fmt.Printf("  commit:    %s\n", commit)
			fmt.Printf("  built:     %s\n", date)
		},
	}

	return cmd
}

// ---------------------------------------------------------------------------
// Project settings (config file merged with flags)
// ---------------------------------------------------------------------------

// projectSettings is the effective configuration after merging built-in
// defaults, .ftlkit.yaml, and command-line flags (flags win).
type projectSettings struct {
	localesDir string // resolved against --root
	origin     string
	targets    []string
	include    []string
	exclude    []string
	provider   string

	batchSize     int
	limit         int
	retryCount    int
	retryWait     time.Duration
	proxies       []string
	model         string
	checkInterval time.Duration

	fromFile bool
}

// loadSettings reads .ftlkit.yaml (when present) and fills in the
// built-in defaults. Flag overrides are applied by the callers.
func loadSettings() (*projectSettings, error) {
	cfg, err := config.Load(rootDir)
	if err != nil {
		return nil, err
	}

	s := &projectSettings{
		localesDir: "locales",
		origin:     "en",
		provider:   config.ProviderGoogle,
	}
	if cfg != nil {
		s.fromFile = true
		if cfg.LocalesDir != "" {
			s.localesDir = cfg.LocalesDir
		}
		if cfg.OriginLocale != "" {
			s.origin = cfg.OriginLocale
		}
		if cfg.Provider != "" {
			s.provider = cfg.Provider
		}
		s.targets = cfg.TargetLocales
		s.include = cfg.IncludeFiles
		s.exclude = cfg.ExcludeFiles
		s.batchSize = cfg.BatchSize
		s.limit = cfg.Limit
		s.retryCount = cfg.RetryCount
		s.retryWait = time.Duration(cfg.RetryWaitSeconds) * time.Second
		s.proxies = cfg.Proxies
		s.model = cfg.Model
		s.checkInterval = time.Duration(cfg.CheckIntervalSeconds) * time.Second
	}

	s.localesDir = resolvePath(s.localesDir)
	return s, nil
}

// originDir returns the catalog tree of the origin locale.
func (s *projectSettings) originDir() string {
	return filepath.Join(s.localesDir, s.origin)
}

// resolvedTargets returns the configured target locales, or every locale
// directory under localesDir except the origin when none are configured.
func (s *projectSettings) resolvedTargets() []string {
	candidates := s.targets
	if len(candidates) == 0 {
		candidates = config.DetectLocales(s.localesDir)
	}

	seen := make(map[string]bool, len(candidates))
	var targets []string
	for _, locale := range candidates {
		if locale == s.origin || seen[locale] {
			continue
		}
		seen[locale] = true
		targets = append(targets, locale)
	}
	return targets
}

// originFiles lists the applicable origin catalogs.
func (s *projectSettings) originFiles() ([]string, error) {
	files, err := config.DiscoverFiles(s.originDir())
	if err != nil {
		return nil, err
	}
	var out []string
	for _, f := range files {
		if config.Applicable(f, s.include, s.exclude) {
			out = append(out, f)
		}
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// status (read-only: project info + per-locale coverage)
// ---------------------------------------------------------------------------

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show project info and per-locale coverage",
		Long: `Show the project layout and per-locale translation coverage.

Coverage compares each target locale's mirror tree against the origin
catalogs: how many files exist and how many origin messages have a
translated counterpart. Does not modify any files.`,
		Run: func(cmd *cobra.Command, args []string) {
			runStatus()
		},
	}

	return cmd
}

func runStatus() {
	s, err := loadSettings()
	if err != nil {
		logError("%v", err)
		os.Exit(1)
	}

	// Project info header
	fmt.Fprintf(os.Stderr, "\n%s\n", heading("Project"))
	fmt.Fprintln(os.Stderr, strings.Repeat("─", 60))

	absRoot, _ := filepath.Abs(rootDir)
	fmt.Fprintf(os.Stderr, "  Root:       %s\n", absRoot)
	fmt.Fprintf(os.Stderr, "  Locales:    %s\n", s.localesDir)
	fmt.Fprintf(os.Stderr, "  Origin:     %s\n", s.origin)
	fmt.Fprintf(os.Stderr, "  Provider:   %s\n", s.provider)
	if s.fromFile {
		fmt.Fprintf(os.Stderr, "  Config:     %s\n", config.FileName)
	} else {
		fmt.Fprintf(os.Stderr, "  Config:     none (defaults)\n")
	}

	if lock, err := lockfile.Load(rootDir); err != nil {
		logWarning("Lock file unreadable: %v", err)
	} else if _, catalogs := lock.Stats(); catalogs > 0 {
		fmt.Fprintf(os.Stderr, "  Lock:       %s\n", lock.Summary())
	}

	files, err := s.originFiles()
	if err != nil {
		fmt.Fprintln(os.Stderr)
		logError("Reading origin catalogs: %v", err)
		logInfo("Create %s or point --root at the project", s.originDir())
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr)
		logInfo("No .ftl catalogs found under %s", s.originDir())
		return
	}

	// Parse origin catalogs once; message IDs keyed by catalog path
	originIDs := make(map[string]map[string]bool, len(files))
	totalMessages := 0
	for _, f := range files {
		ids, err := messageIDs(f)
		if err != nil {
			logWarning("%v", err)
			continue
		}
		originIDs[f] = ids
		totalMessages += len(ids)
	}

	fmt.Fprintf(os.Stderr, "  Catalogs:   %d file(s), %d message(s)\n", len(files), totalMessages)
	fmt.Fprintln(os.Stderr)

	targets := s.resolvedTargets()
	if len(targets) == 0 {
		logInfo("No target locales found. Configure target_locales or create locale directories.")
		return
	}

	showCoverageTable(s, files, originIDs, totalMessages, targets)
}

// messageIDs parses one catalog and returns the set of message IDs.
func messageIDs(path string) (map[string]bool, error) {
	res, err := ftl.ParseFile(path)
	if err != nil {
		return nil, err
	}
	ids := make(map[string]bool)
	for _, m := range res.Messages() {
		ids[m.ID] = true
	}
	return ids, nil
}

func showCoverageTable(s *projectSettings, files []string, originIDs map[string]map[string]bool, totalMessages int, targets []string) {
	fmt.Fprintf(os.Stderr, "%s\n", heading("Coverage"))
	fmt.Fprintln(os.Stderr, strings.Repeat("─", 60))
	fmt.Fprintf(os.Stderr, "\n%-10s %-8s %-12s %-8s %s\n", "Locale", "Files", "Messages", "Percent", "Name")
	fmt.Fprintln(os.Stderr, strings.Repeat("─", 52))

	complete := true
	for _, locale := range targets {
		filesPresent := 0
		translated := 0

		for _, f := range files {
			target, err := config.TargetPath(s.localesDir, s.origin, locale, f)
			if err != nil {
				continue
			}
			ids, err := messageIDs(target)
			if err != nil {
				continue
			}
			filesPresent++
			for id := range ids {
				if originIDs[f][id] {
					translated++
				}
			}
		}

		meta := langmeta.Resolve(locale)
		name := strings.TrimSpace(meta.Flag + " " + meta.Name)
		percent := 0
		if totalMessages > 0 {
			percent = translated * 100 / totalMessages
		}
		if translated < totalMessages || filesPresent < len(files) {
			complete = false
		}

		fmt.Fprintf(os.Stderr, "%-10s %-8s %-12s %-8s %s\n",
			locale,
			fmt.Sprintf("%d/%d", filesPresent, len(files)),
			fmt.Sprintf("%d/%d", translated, totalMessages),
			fmt.Sprintf("%d%%", percent),
			name)
	}

	fmt.Fprintln(os.Stderr, strings.Repeat("─", 52))
	if complete {
		logSuccess(i18n.T("All catalogs are up to date"))
	} else {
		logInfo("Run 'ftlkit translate' to fill the gaps")
	}
}

// ---------------------------------------------------------------------------
// check (lint: parsing, round-trip identity, batch preconditions)
// ---------------------------------------------------------------------------

func newCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify catalogs parse and survive the encode/decode round trip",
		Long: `Verify every origin catalog before translating.

Each catalog must parse, every message must encode to index tokens and
decode back to its canonical form, and no message body may contain the
batch separator. Problems exit with status 1; warnings do not.`,
		Run: func(cmd *cobra.Command, args []string) {
			runCheck()
		},
	}

	return cmd
}

func runCheck() {
	s, err := loadSettings()
	if err != nil {
		logError("%v", err)
		os.Exit(1)
	}

	files, err := s.originFiles()
	if err != nil {
		logError("Reading origin catalogs: %v", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		logInfo("No .ftl catalogs found under %s", s.originDir())
		return
	}

	problems := 0
	warnings := 0
	messages := 0

	for _, f := range files {
		rel, rerr := filepath.Rel(s.originDir(), f)
		if rerr != nil {
			rel = f
		}

		res, err := ftl.ParseFile(f)
		if err != nil {
			logError("%s: %v", rel, err)
			problems++
			continue
		}

		seen := make(map[string]bool)
		for _, m := range res.Messages() {
			messages++
			if seen[m.ID] {
				logWarning("%s: duplicate message %q; the last definition wins", rel, m.ID)
				warnings++
			}
			seen[m.ID] = true

			rec := extract.Encode(m)

			if len(rec.Skipped) > 0 {
				logWarning("%s: %s uses unsupported placeables (%s); they pass through untranslated",
					rel, m.ID, strings.Join(rec.Skipped, ", "))
				warnings++
			}
			if rec.HasSelect {
				logWarning("%s: %s uses a select expression; variant markup travels with the text", rel, m.ID)
				warnings++
			}

			got, err := extract.Decode(rec)
			if err != nil {
				logError("%s: %s does not decode: %v", rel, m.ID, err)
				problems++
				continue
			}
			if want := extract.DecodeOriginal(rec); got != want {
				logError("%s: %s does not survive the encode/decode round trip", rel, m.ID)
				problems++
			}

			marker := strings.Trim(batch.DefaultSeparator, "\n")
			if strings.Contains(rec.Text, batch.DefaultSeparator) {
				logError("%s: %s contains the batch separator; batches would misalign", rel, m.ID)
				problems++
			} else if strings.Contains(rec.Text, marker) {
				logWarning("%s: %s contains the separator marker %q", rel, m.ID, marker)
				warnings++
			}
		}
	}

	if problems > 0 {
		logError("%d problem(s), %d warning(s) in %d message(s)", problems, warnings, messages)
		os.Exit(1)
	}
	if warnings > 0 {
		logWarning("%d warning(s) in %d message(s); translation will degrade gracefully", warnings, messages)
	}
	logSuccess(i18n.N("Checked %d catalog, no problems found", "Checked %d catalogs, no problems found", len(files)), len(files))
}

// ---------------------------------------------------------------------------
// languages (list supported locale codes)
// ---------------------------------------------------------------------------

func newLanguagesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "languages",
		Short: "List supported locale codes",
		Long: `List the locale codes ftlkit knows by name.

Unknown codes still translate; they are passed to the provider as-is.`,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("\n%-8s %-4s %s\n", "Code", "", "Name")
			fmt.Println(strings.Repeat("─", 40))
			for _, code := range langmeta.Codes() {
				meta := langmeta.Registry[code]
				fmt.Printf("%-8s %-4s %s\n", code, meta.Flag, meta.Name)
			}
			fmt.Println()
		},
	}

	return cmd
}

// ---------------------------------------------------------------------------
// translate
// ---------------------------------------------------------------------------

func newTranslateCmd() *cobra.Command {
	var (
		// Target selection
		localesDir string
		source     string
		langs      string
		include    []string
		exclude    []string

		// Provider selection
		provider string
		apiKey   string
		model    string
		baseURL  string

		// Translation behavior
		batchSize int
		force     bool
		dryRun    bool
		verbose   bool

		// Parallelization
		parallel      bool
		maxConcurrent int

		// Network
		limit         int
		retries       int
		retryWait     time.Duration
		timeout       time.Duration
		proxies       []string
		checkInterval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "translate",
		Short: "Translate catalogs into target locales",
		Long: `Translate origin catalogs into per-locale mirror trees.

Messages are batched, placeables are replaced by index tokens, and the
translated text is decoded back into Fluent syntax. Unchanged catalogs
are skipped via ftlkit.lock; use --force to re-translate them.

Examples:
  # Translate every locale directory found under locales/
  ftlkit translate

  # Translate specific locales through a proxy pool
  ftlkit translate --lang ru,de --proxy http://p1:8080 --proxy http://p2:8080

  # Translate with OpenAI batch jobs
  ftlkit translate --provider openai --model gpt-4o-mini

  # Dry run (show what would be translated)
  ftlkit translate --dry-run`,
		Run: func(cmd *cobra.Command, args []string) {
			runTranslate(translateArgs{
				localesDir: localesDir, source: source, langs: langs,
				include: include, exclude: exclude,
				provider: provider, apiKey: apiKey, model: model,
				baseURL:   baseURL,
				batchSize: batchSize, force: force,
				dryRun: dryRun, verbose: verbose,
				parallel: parallel, maxConcurrent: maxConcurrent,
				limit: limit, retries: retries,
				retryWait: retryWait, timeout: timeout,
				proxies: proxies, checkInterval: checkInterval,
			})
		},
	}

	// Target selection
	cmd.Flags().StringVar(&localesDir, "locales", "", "Directory with per-locale catalog trees (default \"locales\")")
	cmd.Flags().StringVar(&source, "source", "", "Origin locale translations are made from (default \"en\")")
	cmd.Flags().StringVar(&langs, "lang", "", "Target locales (comma-separated, default: every locale directory)")
	cmd.Flags().StringSliceVar(&include, "include", nil, "Only translate catalogs with these base names")
	cmd.Flags().StringSliceVar(&exclude, "exclude", nil, "Skip catalogs with these base names")

	// Provider selection
	cmd.Flags().StringVar(&provider, "provider", "", "Translation provider: google, openai (default google)")
	cmd.Flags().StringVar(&model, "model", "", "Model for OpenAI batch jobs (default gpt-4o-mini)")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "API key for openai (or FTLKIT_API_KEY env var)")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "Custom OpenAI-compatible API base URL")

	// Translation behavior
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "Messages joined into one request (default 5)")
	cmd.Flags().BoolVar(&force, "force", false, "Re-translate catalogs whose sources are unchanged")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be translated without calling the provider")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "Enable detailed logging")

	// Parallelization
	cmd.Flags().BoolVar(&parallel, "parallel", false, "Translate catalogs concurrently")
	cmd.Flags().IntVar(&maxConcurrent, "max-concurrent", 0, "Concurrent catalog tasks with --parallel (default 3)")

	// Network
	cmd.Flags().IntVar(&limit, "limit", 0, "Concurrent requests per session (default 4)")
	cmd.Flags().IntVar(&retries, "retries", 0, "Retries on rate limit 429 (default 3)")
	cmd.Flags().DurationVar(&retryWait, "retry-wait", 0, "Pause between rate-limit retries (default 5s)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Request timeout (default 30s)")
	cmd.Flags().StringArrayVar(&proxies, "proxy", nil, "Proxy URL (repeatable); each proxy gets its own session")
	cmd.Flags().DurationVar(&checkInterval, "check-interval", 0, "OpenAI batch job poll interval (default 10s)")

	// Provider completion
	_ = cmd.RegisterFlagCompletionFunc("provider", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{
			"google\tGoogle Translate web endpoint — no key required",
			"openai\tOpenAI batch jobs — API key required",
		}, cobra.ShellCompDirectiveNoFileComp
	})

	// Model completion (openai only)
	_ = cmd.RegisterFlagCompletionFunc("model", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{"gpt-4o-mini", "gpt-4o", "gpt-4.1-mini"}, cobra.ShellCompDirectiveNoFileComp
	})

	// Locale completion from the registry
	_ = cmd.RegisterFlagCompletionFunc("lang", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return langmeta.Codes(), cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

type translateArgs struct {
	localesDir, source, langs        string
	include, exclude                 []string
	provider, apiKey, model, baseURL string
	batchSize                        int
	force, dryRun, verbose           bool
	parallel                         bool
	maxConcurrent                    int
	limit, retries                   int
	retryWait, timeout               time.Duration
	proxies                          []string
	checkInterval                    time.Duration
}

func runTranslate(a translateArgs) {
	// .env sits next to .ftlkit.yaml and may hold FTLKIT_API_KEY
	if err := config.LoadEnv(rootDir); err != nil {
		logWarning("Reading .env: %v", err)
	}

	s, err := loadSettings()
	if err != nil {
		logError("%v", err)
		os.Exit(1)
	}

	// Flags override the project file
	if a.localesDir != "" {
		s.localesDir = resolvePath(a.localesDir)
	}
	if a.source != "" {
		s.origin = a.source
	}
	if a.langs != "" {
		s.targets = splitCSV(a.langs)
	}
	if len(a.include) > 0 {
		s.include = a.include
	}
	if len(a.exclude) > 0 {
		s.exclude = a.exclude
	}
	if a.provider != "" {
		s.provider = a.provider
	}
	if a.model != "" {
		s.model = a.model
	}
	if a.batchSize > 0 {
		s.batchSize = a.batchSize
	}
	if a.limit > 0 {
		s.limit = a.limit
	}
	if a.retries > 0 {
		s.retryCount = a.retries
	}
	if a.retryWait > 0 {
		s.retryWait = a.retryWait
	}
	if len(a.proxies) > 0 {
		s.proxies = a.proxies
	}
	if a.checkInterval > 0 {
		s.checkInterval = a.checkInterval
	}

	if s.provider != config.ProviderGoogle && s.provider != config.ProviderOpenAI {
		logError("Unknown provider %q. Use --provider google or --provider openai.", s.provider)
		os.Exit(1)
	}

	if !dirExists(s.originDir()) {
		logError("Origin locale directory not found: %s", s.originDir())
		logInfo("Create it, or point ftlkit at the project with --root/--locales/--source")
		os.Exit(1)
	}

	// OpenAI needs a key: flag, then FTLKIT_API_KEY, then OPENAI_API_KEY,
	// then the credential store
	var apiKey, baseURL string
	if s.provider == config.ProviderOpenAI {
		apiKey = settings.ResolveAPIKey(config.ProviderOpenAI, a.apiKey)
		if apiKey == "" {
			logError("No API key for openai.\n\n" +
				"Store one with 'ftlkit auth login', set OPENAI_API_KEY (or FTLKIT_API_KEY),\n" +
				"or pass --api-key.")
			os.Exit(1)
		}
		baseURL = a.baseURL
		if baseURL == "" {
			baseURL = settings.GetBaseURL(config.ProviderOpenAI)
		}
	}

	targets := s.resolvedTargets()
	if len(targets) == 0 {
		logError("No target locales. Use --lang, configure target_locales, or create locale directories under %s", s.localesDir)
		os.Exit(1)
	}
	for _, t := range targets {
		if !langmeta.Known(t) {
			logWarning("Unknown locale %q; passing it to the provider as-is", t)
		}
	}

	files, err := s.originFiles()
	if err != nil {
		logError("Reading origin catalogs: %v", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		logInfo("No .ftl catalogs found under %s", s.originDir())
		return
	}

	logInfo("Provider: %s", providerLabel(s, apiKey))
	logInfo("Translating %s → %s (%d catalog(s))", s.origin, strings.Join(targets, ", "), len(files))
	if a.parallel {
		logInfo("Parallel: enabled, max concurrent: %d", effectiveMaxConcurrent(a.maxConcurrent))
	}

	lock, err := lockfile.Load(rootDir)
	if err != nil {
		logWarning("Lock file unreadable, re-translating everything: %v", err)
		lock = nil
	}

	// Setup signal handling for graceful cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		<-sigCh
		logWarning(i18n.T("Interrupted, saving progress..."))
		cancel()
	}()

	opts := translate.Options{
		LocalesDir:    s.localesDir,
		OriginLocale:  s.origin,
		TargetLocales: targets,
		IncludeFiles:  s.include,
		ExcludeFiles:  s.exclude,
		BatchSize:     s.batchSize,
		Limit:         s.limit,
		RetryCount:    s.retryCount,
		RetryWait:     s.retryWait,
		Timeout:       a.timeout,
		Proxies:       s.proxies,
		APIKey:        apiKey,
		Model:         s.model,
		BaseURL:       baseURL,
		CheckInterval: s.checkInterval,
		Parallel:      a.parallel,
		MaxConcurrent: a.maxConcurrent,
		Force:         a.force,
		DryRun:        a.dryRun,
		Lock:          lock,
		Verbose:       a.verbose,
		OnLog: func(format string, args ...any) {
			logInfo(format, args...)
		},
		OnError: func(format string, args ...any) {
			logError(format, args...)
		},
	}

	// Interactive runs get a progress bar; verbose and piped runs get
	// plain per-catalog lines
	var bar *progressbar.ProgressBar
	if !a.verbose && !a.dryRun && term.IsTerminal(int(os.Stderr.Fd())) {
		bar = newProgressBar(len(files) * len(targets))
		opts.OnProgress = func(locale string, done, total int) {
			bar.Describe(fmt.Sprintf("[cyan]%s[reset]", locale))
			_ = bar.Add(1)
		}
		opts.OnLog = func(format string, args ...any) {
			// Quiet under the bar; only errors break through
		}
		opts.OnError = func(format string, args ...any) {
			fmt.Fprintln(os.Stderr)
			logError(format, args...)
		}
	} else {
		opts.OnProgress = func(locale string, done, total int) {
			logInfo("  %s: %d/%d", locale, done, total)
		}
	}

	var runErr error
	if s.provider == config.ProviderOpenAI {
		runErr = translate.RunOpenAI(ctx, opts)
	} else {
		runErr = translate.Run(ctx, opts)
	}

	if bar != nil {
		if runErr == nil {
			_ = bar.Finish()
		} else {
			_ = bar.Exit()
		}
		fmt.Fprintln(os.Stderr)
	}

	if lock != nil && !a.dryRun {
		if err := lock.Save(); err != nil {
			logWarning("Saving %s: %v", lockfile.LockFileName, err)
		}
	}

	if runErr != nil {
		if ctx.Err() != nil {
			logWarning("Translation interrupted, partial progress saved")
			os.Exit(0)
		}
		logError("Translation failed: %v", runErr)
		os.Exit(1)
	}

	if a.dryRun {
		return
	}
	logSuccess(i18n.T("Translation complete!"))
}

// providerLabel describes the effective provider for the run header.
func providerLabel(s *projectSettings, apiKey string) string {
	if s.provider == config.ProviderOpenAI {
		model := s.model
		if model == "" {
			model = openai.DefaultModel
		}
		return fmt.Sprintf("openai (model %s, key %s)", model, settings.MaskKey(apiKey))
	}
	if n := len(s.proxies); n > 0 {
		return fmt.Sprintf("google (%d proxy session(s))", n)
	}
	return "google"
}

func newProgressBar(total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("[cyan]Translating[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}

// ---------------------------------------------------------------------------
// auth (login / logout / list)
// ---------------------------------------------------------------------------

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage provider credentials",
		Long: `Manage stored provider credentials.

Providers:
  google   Google Translate web endpoint — no credentials needed
  openai   OpenAI batch jobs — API key (stored, OPENAI_API_KEY, or --api-key)

Examples:
  ftlkit auth login                  Store the OpenAI API key
  ftlkit auth login --base-url URL   Store a key for a compatible endpoint
  ftlkit auth logout                 Remove the stored OpenAI key
  ftlkit auth list                   Show stored credentials`,
	}

	cmd.AddCommand(
		newAuthLoginCmd(),
		newAuthLogoutCmd(),
		newAuthListCmd(),
	)

	return cmd
}

func newAuthLoginCmd() *cobra.Command {
	var baseURL string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store the OpenAI API key",
		Long: `Store the OpenAI API key in the credential store.

The key is saved to $XDG_DATA_HOME/ftlkit/auth.json (0600). Pass
--base-url to target an OpenAI-compatible endpoint instead of
api.openai.com.`,
		Run: func(cmd *cobra.Command, args []string) {
			authLogin(baseURL)
		},
	}

	cmd.Flags().StringVar(&baseURL, "base-url", "", "OpenAI-compatible API base URL to store with the key")

	return cmd
}

func authLogin(baseURL string) {
	fmt.Fprintf(os.Stderr, "\n%s\n", heading("OpenAI — API Key Setup"))
	fmt.Fprintln(os.Stderr, strings.Repeat("─", 60))
	fmt.Fprintln(os.Stderr)
	fmt.Fprintf(os.Stderr, "  Get your API key from: %s\n\n", highlight("https://platform.openai.com/api-keys"))

	existing := settings.GetAPIKey(config.ProviderOpenAI)
	if existing != "" {
		fmt.Fprintf(os.Stderr, "  Current key: %s\n", dimmed(settings.MaskKey(existing)))
		fmt.Fprintf(os.Stderr, "  Enter new key to replace, or press Enter to keep: ")
	} else {
		fmt.Fprintf(os.Stderr, "  Enter API key: ")
	}

	scanner := bufio.NewScanner(os.Stdin)
	if !scanner.Scan() {
		logError("No input received")
		os.Exit(1)
	}
	key := strings.TrimSpace(scanner.Text())

	if key == "" {
		if existing != "" {
			logInfo("Keeping existing key")
			return
		}
		logError("No API key provided")
		os.Exit(1)
	}

	var err error
	if baseURL != "" {
		err = settings.SetAPIKeyWithBaseURL(config.ProviderOpenAI, key, baseURL)
	} else {
		err = settings.SetAPIKey(config.ProviderOpenAI, key)
	}
	if err != nil {
		logError("Failed to save API key: %v", err)
		os.Exit(1)
	}

	logSuccess("OpenAI API key saved!")
	fmt.Fprintf(os.Stderr, "\n  You can now use: ftlkit translate --provider openai\n\n")
}

func newAuthLogoutCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Remove stored credentials",
		Run: func(cmd *cobra.Command, args []string) {
			if all {
				if err := settings.RemoveAll(); err != nil {
					logError("%v", err)
					os.Exit(1)
				}
				logSuccess("All credentials removed")
				return
			}
			if settings.GetAPIKey(config.ProviderOpenAI) == "" {
				logInfo("No stored OpenAI key")
				return
			}
			if err := settings.Remove(config.ProviderOpenAI); err != nil {
				logError("%v", err)
				os.Exit(1)
			}
			logSuccess("OpenAI key removed")
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Remove every stored credential")

	return cmd
}

func newAuthListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show stored credentials",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(os.Stderr, "\n%s\n", heading("Credentials"))
			fmt.Fprintln(os.Stderr, strings.Repeat("─", 60))

			fmt.Fprintf(os.Stderr, "  %-10s no credentials needed\n", "google")

			if entry := settings.Get(config.ProviderOpenAI); entry != nil && entry.Key != "" {
				status := fmt.Sprintf("%s (key: %s)", highlight("configured"), settings.MaskKey(entry.Key))
				if entry.BaseURL != "" {
					status += fmt.Sprintf(", endpoint: %s", entry.BaseURL)
				}
				fmt.Fprintf(os.Stderr, "  %-10s %s\n", "openai", status)
			} else {
				fmt.Fprintf(os.Stderr, "  %-10s not configured\n", "openai")
			}

			if envKey := os.Getenv("FTLKIT_API_KEY"); envKey != "" {
				fmt.Fprintln(os.Stderr)
				fmt.Fprintf(os.Stderr, "  FTLKIT_API_KEY: %s (overrides stored keys)\n", highlight(settings.MaskKey(envKey)))
			}

			fmt.Fprintln(os.Stderr)
			fmt.Fprintf(os.Stderr, "  Store: %s\n\n", settings.FilePath())
		},
	}

	return cmd
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// splitCSV splits a comma-separated flag value, trimming whitespace and
// dropping empty items.
func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func effectiveMaxConcurrent(n int) int {
	if n > 0 {
		return n
	}
	return translate.DefaultMaxConcurrent
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
