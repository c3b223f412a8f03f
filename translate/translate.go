// Package translate implements the catalog translation pipeline: it
// discovers catalogs under the origin locale tree, encodes each catalog's
// messages into index-token records, sends them to a translation provider
// in concatenated batches, and writes the reconstructed catalogs into the
// target locale trees.
//
// Two provider flows are supported. Run sends index-encoded batches to
// the Google endpoint and restores the markup from the translated text.
// RunOpenAI submits whole catalogs as a single OpenAI batch job and
// relies on the system prompt to keep placeables intact.
package translate

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ftlkit/ftlkit/batch"
	"github.com/ftlkit/ftlkit/config"
	"github.com/ftlkit/ftlkit/extract"
	"github.com/ftlkit/ftlkit/ftl"
	"github.com/ftlkit/ftlkit/google"
	"github.com/ftlkit/ftlkit/lockfile"
	"github.com/ftlkit/ftlkit/openai"
)

// DefaultBatchSize is how many messages are joined into one provider
// request when Options.BatchSize is zero.
const DefaultBatchSize = 5

// DefaultMaxConcurrent caps concurrent catalog tasks in parallel mode
// when Options.MaxConcurrent is zero.
const DefaultMaxConcurrent = 3

// ---------------------------------------------------------------------------
// Options
// ---------------------------------------------------------------------------

// Options configures a translation run.
type Options struct {
	// LocalesDir is the directory holding per-locale catalog trees.
	LocalesDir string
	// OriginLocale is the locale translations are made from.
	OriginLocale string
	// TargetLocales lists the locales to translate into. The origin is
	// excluded automatically even if listed. Empty means every locale
	// directory found under LocalesDir except the origin.
	TargetLocales []string
	// IncludeFiles restricts translation to catalogs with these base names.
	IncludeFiles []string
	// ExcludeFiles skips catalogs with these base names.
	ExcludeFiles []string
	// BatchSize is how many messages are joined into one request. Default: 5.
	BatchSize int
	// Limit caps concurrent requests per translation session.
	Limit int
	// RetryCount is the number of retries on rate limit (429).
	RetryCount int
	// RetryWait is the pause between rate-limit retries.
	RetryWait time.Duration
	// Timeout caps each provider request. Zero uses the provider default.
	Timeout time.Duration
	// Proxies lists proxy URLs; each gets its own Google session. The
	// OpenAI flow uses only the first one.
	Proxies []string
	// Endpoint overrides the Google endpoint URL (used in tests).
	Endpoint string

	// APIKey authenticates the OpenAI batch flow.
	APIKey string
	// Model is the model used for OpenAI batch jobs.
	Model string
	// BaseURL overrides the OpenAI API base URL (used in tests).
	BaseURL string
	// CheckInterval is the OpenAI batch job poll interval.
	CheckInterval time.Duration

	// Parallel translates catalogs concurrently instead of one at a time.
	Parallel bool
	// MaxConcurrent caps concurrent catalog tasks in parallel mode. Default: 3.
	MaxConcurrent int
	// Force re-translates catalogs even when their sources are unchanged.
	Force bool
	// DryRun reports what would be translated without calling the
	// provider or writing files.
	DryRun bool
	// Lock tracks source checksums for incremental runs. Nil disables
	// skipping.
	Lock *lockfile.LockFile

	// OnProgress is called after each catalog is translated.
	OnProgress func(locale string, done, total int)
	// OnLog emits log messages during translation.
	OnLog func(format string, args ...any)
	// OnError emits error messages during translation.
	OnError func(format string, args ...any)
	// Verbose enables detailed logging.
	Verbose bool
}

func (o *Options) log(format string, args ...any) {
	if o.OnLog != nil {
		o.OnLog(format, args...)
	}
}

func (o *Options) logError(format string, args ...any) {
	if o.OnError != nil {
		o.OnError(format, args...)
	} else if o.OnLog != nil {
		o.OnLog(format, args...)
	}
}

func (o *Options) effectiveBatchSize() int {
	if o.BatchSize > 0 {
		return o.BatchSize
	}
	return DefaultBatchSize
}

func (o *Options) effectiveMaxConcurrent() int {
	if o.MaxConcurrent > 0 {
		return o.MaxConcurrent
	}
	return DefaultMaxConcurrent
}

// resolvedTargets returns the target locales with duplicates and the
// origin removed, in the configured order. When none are configured,
// every locale directory detected under LocalesDir except the origin
// becomes a target.
func (o *Options) resolvedTargets() []string {
	candidates := o.TargetLocales
	if len(candidates) == 0 {
		candidates = config.DetectLocales(o.LocalesDir)
	}

	seen := make(map[string]bool, len(candidates))
	var targets []string
	for _, locale := range candidates {
		if locale == o.OriginLocale || seen[locale] {
			continue
		}
		seen[locale] = true
		targets = append(targets, locale)
	}
	return targets
}

// ---------------------------------------------------------------------------
// Task collection
// ---------------------------------------------------------------------------

// catalogTask is one (target locale, source catalog) unit of work.
// done and total are shared per-locale progress counters.
type catalogTask struct {
	locale string
	source string
	key    string // lock file key: catalog path relative to the origin dir
	done   *int64
	total  *int64
}

func collectTasks(opts Options) ([]catalogTask, error) {
	originDir := filepath.Join(opts.LocalesDir, opts.OriginLocale)
	files, err := config.DiscoverFiles(originDir)
	if err != nil {
		return nil, err
	}

	var applicable []string
	for _, file := range files {
		if config.Applicable(file, opts.IncludeFiles, opts.ExcludeFiles) {
			applicable = append(applicable, file)
		}
	}

	var tasks []catalogTask
	for _, locale := range opts.resolvedTargets() {
		done := new(int64)
		total := new(int64)
		*total = int64(len(applicable))

		for _, file := range applicable {
			rel, err := filepath.Rel(originDir, file)
			if err != nil {
				return nil, err
			}
			tasks = append(tasks, catalogTask{
				locale: locale,
				source: file,
				key:    lockfile.CatalogKey(rel),
				done:   done,
				total:  total,
			})
		}
	}
	return tasks, nil
}

func finishTask(task catalogTask, opts Options) {
	newDone := atomic.AddInt64(task.done, 1)
	if opts.OnProgress != nil {
		opts.OnProgress(task.locale, int(newDone), int(atomic.LoadInt64(task.total)))
	}
}

func taskLabel(task catalogTask) string {
	return fmt.Sprintf("%s (%s)", filepath.Base(task.source), task.locale)
}

// ---------------------------------------------------------------------------
// Google pipeline
// ---------------------------------------------------------------------------

// Run translates every applicable catalog into every target locale
// through the Google endpoint. Failures are scoped to a single catalog:
// a failed batch abandons that catalog for that locale and the run
// continues with the next one.
func Run(ctx context.Context, opts Options) error {
	tasks, err := collectTasks(opts)
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		opts.log("Nothing to translate")
		return nil
	}

	tr, err := google.New(google.Config{
		SourceLocale: opts.OriginLocale,
		Limit:        opts.Limit,
		RetryCount:   opts.RetryCount,
		RetryWait:    opts.RetryWait,
		Proxies:      opts.Proxies,
		Timeout:      opts.Timeout,
		Endpoint:     opts.Endpoint,
		Verbose:      opts.Verbose,
	})
	if err != nil {
		return err
	}

	if opts.Parallel {
		return runParallel(ctx, tasks, opts, tr)
	}
	return runSequential(ctx, tasks, opts, tr)
}

func runSequential(ctx context.Context, tasks []catalogTask, opts Options, tr *google.Translator) error {
	var failed []string
	for _, task := range tasks {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := translateCatalog(ctx, tr, task, opts); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			opts.logError("Error translating %s: %v", taskLabel(task), err)
			failed = append(failed, taskLabel(task))
			continue
		}

		finishTask(task, opts)
	}
	if len(failed) > 0 {
		return fmt.Errorf("%d catalog(s) failed: %s", len(failed), strings.Join(failed, ", "))
	}
	return nil
}

func runParallel(ctx context.Context, tasks []catalogTask, opts Options, tr *google.Translator) error {
	var mu sync.Mutex
	var failed []string

	err := runParallelTasks(ctx, tasks, opts.effectiveMaxConcurrent(), func(ctx context.Context, task catalogTask) error {
		if err := translateCatalog(ctx, tr, task, opts); err != nil {
			if ctx.Err() != nil {
				return err
			}
			opts.logError("Error translating %s: %v", taskLabel(task), err)
			mu.Lock()
			failed = append(failed, taskLabel(task))
			mu.Unlock()
			return nil
		}
		finishTask(task, opts)
		return nil
	})
	if err != nil {
		return err
	}
	if len(failed) > 0 {
		return fmt.Errorf("%d catalog(s) failed: %s", len(failed), strings.Join(failed, ", "))
	}
	return nil
}

// translateCatalog translates one source catalog into one target locale.
func translateCatalog(ctx context.Context, tr *google.Translator, task catalogTask, opts Options) error {
	data, err := os.ReadFile(task.source)
	if err != nil {
		return err
	}
	source := string(data)

	target, err := config.TargetPath(opts.LocalesDir, opts.OriginLocale, task.locale, task.source)
	if err != nil {
		return err
	}

	// Skip only when the target also exists: a deleted catalog is
	// regenerated even if the source checksum still matches.
	if opts.Lock != nil && !opts.Force && !opts.Lock.IsChanged(task.locale, task.key, source) {
		if _, err := os.Stat(target); err == nil {
			if opts.Verbose {
				opts.log("Skipping %s: source unchanged", taskLabel(task))
			}
			return nil
		}
	}

	res, err := ftl.ParseString(source)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", task.source, err)
	}
	records := extract.Records(res)
	warnDegraded(records, task, opts)

	if opts.DryRun {
		opts.log("Would translate %s: %d message(s) to %s", taskLabel(task), len(records), target)
		return nil
	}

	for _, group := range batch.Chunk(records, opts.effectiveBatchSize()) {
		if err := ctx.Err(); err != nil {
			return err
		}
		request := batch.Join(group, batch.DefaultSeparator)
		response, err := tr.Translate(ctx, request, opts.OriginLocale, task.locale)
		if err != nil {
			return err
		}
		pieces, err := batch.Split(request, response, batch.DefaultSeparator, len(group))
		if err != nil {
			return err
		}
		if err := batch.Apply(group, pieces); err != nil {
			return err
		}
	}

	out := renderCatalog(records, task, opts)

	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(target), err)
	}
	if err := os.WriteFile(target, []byte(out), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", target, err)
	}
	if opts.Verbose {
		opts.log("Wrote %s", target)
	}

	if opts.Lock != nil {
		opts.Lock.Update(task.locale, task.key, source)
	}
	return nil
}

// warnDegraded reports message constructs the index encoding cannot fully
// protect during translation: select expressions embed their structural
// markup in the request text, and unsupported placeable kinds pass
// through untranslated.
func warnDegraded(records []*extract.Record, task catalogTask, opts Options) {
	selects := 0
	skipped := make(map[string]bool)
	for _, rec := range records {
		if rec.HasSelect {
			selects++
		}
		for _, kind := range rec.Skipped {
			skipped[kind] = true
		}
	}

	name := filepath.Base(task.source)
	if selects > 0 {
		opts.log("%s: %d message(s) use select expressions; review variant markup in the output", name, selects)
	}
	if len(skipped) > 0 {
		kinds := make([]string, 0, len(skipped))
		for kind := range skipped {
			kinds = append(kinds, kind)
		}
		sort.Strings(kinds)
		opts.logError("%s: unsupported placeables passed through untranslated: %s", name, strings.Join(kinds, ", "))
	}
}

// renderCatalog decodes every record into a message block and joins the
// blocks with blank lines. A record whose translated text lost its index
// tokens falls back to the original body so the catalog stays complete.
func renderCatalog(records []*extract.Record, task catalogTask, opts Options) string {
	if len(records) == 0 {
		return ""
	}
	blocks := make([]string, 0, len(records))
	for _, rec := range records {
		block, err := extract.Decode(rec)
		if err != nil {
			opts.logError("%s: %v; keeping original text", taskLabel(task), err)
			block = extract.DecodeOriginal(rec)
		}
		blocks = append(blocks, block)
	}
	return strings.Join(blocks, "\n\n") + "\n"
}

// ---------------------------------------------------------------------------
// Generic parallel runner
// ---------------------------------------------------------------------------

// runParallelTasks runs typed tasks in parallel with a concurrency limit.
// The first non-nil error is returned after every launched task finishes.
func runParallelTasks[T any](ctx context.Context, tasks []T, maxConcurrent int, fn func(context.Context, T) error) error {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}

	sem := make(chan struct{}, maxConcurrent)
	var wg sync.WaitGroup
	var firstErr error
	var errOnce sync.Once

	for _, task := range tasks {
		if ctx.Err() != nil {
			break
		}

		sem <- struct{}{}
		wg.Add(1)

		go func(t T) {
			defer func() {
				<-sem
				wg.Done()
			}()

			if err := fn(ctx, t); err != nil {
				errOnce.Do(func() {
					firstErr = err
				})
			}
		}(task)
	}

	wg.Wait()
	return firstErr
}

// ---------------------------------------------------------------------------
// OpenAI batch pipeline
// ---------------------------------------------------------------------------

// RunOpenAI translates every applicable catalog into every target locale
// through a single OpenAI batch job. Catalogs are sent whole, without
// index encoding; the system prompt instructs the model to keep
// placeables intact.
func RunOpenAI(ctx context.Context, opts Options) error {
	originDir := filepath.Join(opts.LocalesDir, opts.OriginLocale)
	files, err := config.DiscoverFiles(originDir)
	if err != nil {
		return err
	}

	cfg := openai.Config{
		APIKey:        opts.APIKey,
		Model:         opts.Model,
		BaseURL:       opts.BaseURL,
		CheckInterval: opts.CheckInterval,
		Timeout:       opts.Timeout,
		Verbose:       opts.Verbose,
	}
	if len(opts.Proxies) > 0 {
		cfg.Proxy = opts.Proxies[0]
	}
	tr, err := openai.New(cfg)
	if err != nil {
		return err
	}

	type pendingWrite struct {
		doc    *openai.Document
		target string
		locale string
		key    string
		source string
		label  string
	}

	var pending []pendingWrite
	var failed []string
	for _, locale := range opts.resolvedTargets() {
		for _, file := range files {
			if !config.Applicable(file, opts.IncludeFiles, opts.ExcludeFiles) {
				continue
			}
			label := fmt.Sprintf("%s (%s)", filepath.Base(file), locale)

			target, err := config.TargetPath(opts.LocalesDir, opts.OriginLocale, locale, file)
			if err != nil {
				opts.logError("Error translating %s: %v", label, err)
				failed = append(failed, label)
				continue
			}
			data, err := os.ReadFile(file)
			if err != nil {
				opts.logError("Error translating %s: %v", label, err)
				failed = append(failed, label)
				continue
			}
			source := string(data)

			rel, err := filepath.Rel(originDir, file)
			if err != nil {
				return err
			}
			key := lockfile.CatalogKey(rel)
			if opts.Lock != nil && !opts.Force && !opts.Lock.IsChanged(locale, key, source) {
				if _, err := os.Stat(target); err == nil {
					if opts.Verbose {
						opts.log("Skipping %s: source unchanged", label)
					}
					continue
				}
			}

			pending = append(pending, pendingWrite{
				doc: &openai.Document{
					Data:         source,
					SourceLocale: opts.OriginLocale,
					TargetLocale: locale,
				},
				target: target,
				locale: locale,
				key:    key,
				source: source,
				label:  label,
			})
		}
	}

	if len(pending) == 0 {
		opts.log("Nothing to translate")
		return failedError(failed)
	}

	if opts.DryRun {
		opts.log("Would submit %d catalog(s) as one batch job", len(pending))
		return failedError(failed)
	}

	docs := make([]*openai.Document, len(pending))
	for i, p := range pending {
		docs[i] = p.doc
	}
	if err := tr.TranslateDocuments(ctx, docs); err != nil {
		return err
	}

	done := 0
	for _, p := range pending {
		if err := os.MkdirAll(filepath.Dir(p.target), 0755); err != nil {
			opts.logError("Error writing %s: %v", p.label, err)
			failed = append(failed, p.label)
			continue
		}
		if err := os.WriteFile(p.target, []byte(p.doc.TranslatedData), 0644); err != nil {
			opts.logError("Error writing %s: %v", p.label, err)
			failed = append(failed, p.label)
			continue
		}
		if opts.Lock != nil {
			opts.Lock.Update(p.locale, p.key, p.source)
		}
		done++
		if opts.OnProgress != nil {
			opts.OnProgress(p.locale, done, len(pending))
		}
	}
	return failedError(failed)
}

func failedError(failed []string) error {
	if len(failed) == 0 {
		return nil
	}
	return fmt.Errorf("%d catalog(s) failed: %s", len(failed), strings.Join(failed, ", "))
}
