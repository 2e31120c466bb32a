// Command scout is the single entry point spec.md §6.4 names: one scheduled
// scrape/extract/dedup/project run over a named region, then an optional
// investigator pass. Flag parsing and sequential setup (config, database,
// then services) follows the shape of codeready-toolchain-tarsy's
// cmd/tarsy/main.go: flag.String + log.Fatalf-style setup errors, rather
// than a cobra/cli framework this domain has no other use for.
package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/fourthplaces/rootsignal/internal/classifier"
	"github.com/fourthplaces/rootsignal/internal/collaborators"
	"github.com/fourthplaces/rootsignal/internal/collaborators/breaker"
	"github.com/fourthplaces/rootsignal/internal/collaborators/httpclient"
	"github.com/fourthplaces/rootsignal/internal/config"
	"github.com/fourthplaces/rootsignal/internal/engine"
	"github.com/fourthplaces/rootsignal/internal/enrichment"
	"github.com/fourthplaces/rootsignal/internal/events"
	"github.com/fourthplaces/rootsignal/internal/eventstore"
	"github.com/fourthplaces/rootsignal/internal/graph"
	"github.com/fourthplaces/rootsignal/internal/httpserver"
	"github.com/fourthplaces/rootsignal/internal/investigator"
	"github.com/fourthplaces/rootsignal/internal/metrics"
	"github.com/fourthplaces/rootsignal/internal/notify"
	"github.com/fourthplaces/rootsignal/internal/observability"
	"github.com/fourthplaces/rootsignal/internal/pipeline"
	"github.com/fourthplaces/rootsignal/internal/pipeline/handlers"
	"github.com/fourthplaces/rootsignal/internal/promoter"
	"github.com/fourthplaces/rootsignal/internal/ratelimit"
	"github.com/fourthplaces/rootsignal/internal/scheduler"
	"github.com/fourthplaces/rootsignal/internal/types"
)

// Exit codes per spec.md §6.4.
const (
	exitOK            = 0
	exitRuntimeError  = 1
	exitMisconfigured = 2
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("scout", flag.ContinueOnError)
	configPath := fs.String("config", "config.yaml", "path to the YAML config file")
	dump := fs.Bool("dump", false, "print the projected graph for the region as JSON and exit")
	if err := fs.Parse(args); err != nil {
		return exitMisconfigured
	}
	// Parsing stops at the first positional argument, so keep parsing after
	// it to accept flags on either side of <region>.
	var positional []string
	for fs.NArg() > 0 {
		positional = append(positional, fs.Arg(0))
		if err := fs.Parse(fs.Args()[1:]); err != nil {
			return exitMisconfigured
		}
	}
	if len(positional) != 1 {
		fmt.Fprintln(os.Stderr, "usage: scout <region> [--dump] [--config path]")
		return exitMisconfigured
	}
	regionName := positional[0]

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Printf("failed to load config: %v", err)
		return exitMisconfigured
	}

	regionCfg, ok := cfg.Regions[regionName]
	if !ok {
		log.Printf("unknown region %q", regionName)
		return exitMisconfigured
	}
	region := &pipeline.Region{
		Center:   types.GeoPoint{Lat: regionCfg.Lat, Lng: regionCfg.Lng},
		RadiusKm: regionCfg.RadiusKm,
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Printf("failed to build logger: %v", err)
		return exitMisconfigured
	}

	tp, err := observability.NewTracerProvider(observability.TracerConfig{ServiceName: "rootsignal-scout"})
	if err != nil {
		log.Printf("failed to build tracer provider: %v", err)
		return exitMisconfigured
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tp.Shutdown(shutdownCtx)
	}()
	tracer := observability.Tracer("rootsignal-scout")

	ctx := context.Background()

	graphClient := graph.NewClient(graph.Config{
		Addr:      cfg.Graph.Addr,
		Password:  cfg.Graph.Password,
		GraphName: cfg.Graph.GraphName,
	})
	if err := graphClient.Connect(ctx); err != nil {
		logger.Error(err, "failed to connect to graph store")
		return exitRuntimeError
	}
	defer graphClient.Close()

	if *dump {
		if err := dumpRegion(ctx, graphClient, region); err != nil {
			logger.Error(err, "failed to dump region")
			return exitRuntimeError
		}
		return exitOK
	}

	pool, err := newPool(ctx, cfg.Database)
	if err != nil {
		logger.Error(err, "failed to connect to event store database")
		return exitRuntimeError
	}
	defer pool.Close()
	store := eventstore.NewPostgresStore(pool)

	projector := graph.NewProjector(graphClient)
	signalReader := graph.NewSignalReader(graphClient)
	registry := graph.NewSourceRegistry(graphClient)
	lintReader := graph.NewLintReader(graphClient)

	classifierInst, err := classifier.New(ctx)
	if err != nil {
		logger.Error(err, "failed to compile classifier policy")
		return exitRuntimeError
	}

	m := metrics.NewMetrics()
	opsSrv := httpserver.New(m, prometheus.DefaultGatherer)
	httpSrv := &http.Server{Addr: ":" + cfg.Server.StatsPort, Handler: opsSrv.Router(cfg.Server.AllowedOrigins)}
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error(err, "ops http server exited")
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	deps := pipeline.Deps{
		Ingestor:          breaker.WrapIngestor(httpclient.NewIngestor(cfg.Ingestor.Timeout, cfg.Ingestor.UserAgent)),
		Extractor:         breaker.WrapExtractor(httpclient.NewExtractor(cfg.Extractor.URL, cfg.Extractor.Timeout)),
		Embedder:          breaker.WrapEmbedder(httpclient.NewEmbedder(cfg.Embedder.URL, cfg.Embedder.Timeout)),
		SignalReader:      signalReader,
		Classifier:        classifierInst,
		Region:            region,
		DedupThreshold:    cfg.Dedup.SimilarityThreshold,
		PromoterMaxPerRun: cfg.Promoter.MaxPerRun,
	}

	limiter := ratelimit.NewFromConfig(cfg.RateLimit)
	eng := engine.New[pipeline.State, pipeline.Deps](store, pipeline.Reducer{}, metricsRouter{inner: handlers.Router{}, metrics: m})

	runID := fmt.Sprintf("%s-%d", regionName, time.Now().UnixNano())
	runCtx, rootSpan := observability.StartRun(ctx, tracer, runID)
	defer rootSpan.End()
	rc := engine.RunContext{RunID: &runID}

	state := pipeline.NewState()
	if err := doRun(runCtx, eng, state, deps, registry, limiter, m, cfg.Promoter, tracer, rc); err != nil {
		logger.Error(err, "run failed")
		return exitRuntimeError
	}

	if err := replayIntoProjector(ctx, store, projector, runID); err != nil {
		logger.Error(err, "failed to project run's events")
		return exitRuntimeError
	}

	enrichPass := enrichment.NewPass(graphClient, nil, cfg.Enrichment.CauseHeatThreshold, region.BoundingBox())
	enrichStats, err := enrichPass.Run(ctx)
	if err != nil {
		logger.Error(err, "enrichment pass failed")
		return exitRuntimeError
	}
	logger.Info("enrichment complete", "run_id", runID,
		"diversity_updated", enrichStats.DiversityUpdated,
		"actor_stats_updated", enrichStats.ActorStatsUpdated,
		"cause_heat_updated", enrichStats.CauseHeatUpdated,
	)

	inv := investigator.NewWithThresholds(lintReader, notify.FromConfig(cfg.Notify), types.SeverityHigh, 1)
	dispatches, err := inv.Run(ctx)
	if err != nil {
		logger.Error(err, "investigator pass failed")
	}
	for _, d := range dispatches {
		if err := eng.Dispatch(ctx, d, pipeline.NewState(), deps, rc); err != nil {
			logger.Error(err, "failed to dispatch investigator event")
		}
	}
	if len(dispatches) > 0 {
		if err := replayIntoProjector(ctx, store, projector, runID); err != nil {
			logger.Error(err, "failed to project investigator dispatches")
			return exitRuntimeError
		}
	}

	logger.Info("run complete", "run_id", runID, "region", regionName,
		"signals_stored", state.Counters.SignalsStored,
		"signals_deduplicated", state.Counters.SignalsDeduplicated,
		"sources_discovered", state.Counters.SourcesDiscovered,
	)
	return exitOK
}

// doRun schedules every active source, scrapes the due ones with bounded
// concurrency (one tension-phase wave, then one response-phase wave, per
// spec.md §4.5's phase split), dispatches every resulting event through the
// engine, then promotes the run's collected links into new sources once the
// dispatch loop is done — promoter.PromoteLinks operates on the whole run's
// batch, so it cannot run per event the way the rest of the pipeline does.
func doRun(
	ctx context.Context,
	eng *engine.Engine[pipeline.State, pipeline.Deps],
	state *pipeline.State,
	deps pipeline.Deps,
	registry *graph.SourceRegistry,
	limiter *ratelimit.Limiter,
	m *metrics.Metrics,
	promoterCfg config.PromoterConfig,
	tracer trace.Tracer,
	rc engine.RunContext,
) error {
	sources, err := registry.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list active sources: %w", err)
	}

	keys := make([]string, len(sources))
	byKey := make(map[string]events.SourceNode, len(sources))
	for i, src := range sources {
		keys[i] = src.CanonicalKey
		byKey[src.CanonicalKey] = src
	}

	lastScraped, err := registry.LastScrapeTimes(ctx, keys)
	if err != nil {
		return fmt.Errorf("read last scrape times: %w", err)
	}

	result := scheduler.New().Schedule(sources, lastScraped, time.Now())
	m.SourcesScheduled.Add(float64(len(result.Scheduled) + len(result.Exploration)))
	m.SourcesSkipped.WithLabelValues("cadence").Add(float64(result.Skipped))

	for _, phase := range [][]string{result.TensionPhase, result.ResponsePhase} {
		if err := scrapePhase(ctx, eng, state, deps, registry, limiter, byKey, phase, tracer, rc); err != nil {
			return err
		}
	}

	promoted := promoter.PromoteLinks(state.CollectedLinks, promoter.Config{
		MaxPerRun:    promoterCfg.MaxPerRun,
		MaxPerSource: promoterCfg.MaxPerSource,
	})
	for _, src := range promoted {
		ev := events.SourceDiscovered{Source: src, DiscoveredBy: "promoter"}
		if err := eng.Dispatch(ctx, ev, state, deps, rc); err != nil {
			return fmt.Errorf("dispatch promoted source %s: %w", src.CanonicalKey, err)
		}
	}

	return nil
}

// fetchOutcome is one source's prefetch result: the network round trip,
// the part safe to run concurrently, separated from everything that
// touches pipeline.State, which engine.Engine requires be single-threaded.
type fetchOutcome struct {
	src      events.SourceNode
	fetchURL string
	page     collaborators.RawPage
	err      error
}

// scrapePhase fetches every source in one tension/response wave
// concurrently (bounded by errgroup's limit and gated per-host by the rate
// limiter), then replays the results through state/the engine one at a
// time — Engine.Dispatch and the state mutations ScrapeSource performs
// directly (StashPage) are documented as single-threaded against a given
// *pipeline.State, so only the I/O is parallel here.
func scrapePhase(
	ctx context.Context,
	eng *engine.Engine[pipeline.State, pipeline.Deps],
	state *pipeline.State,
	deps pipeline.Deps,
	registry *graph.SourceRegistry,
	limiter *ratelimit.Limiter,
	byKey map[string]events.SourceNode,
	canonicalKeys []string,
	tracer trace.Tracer,
	rc engine.RunContext,
) error {
	outcomes := make([]fetchOutcome, len(canonicalKeys))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, key := range canonicalKeys {
		src, ok := byKey[key]
		if !ok {
			continue
		}
		i, src := i, src
		g.Go(func() error {
			outcomes[i] = fetchSource(gctx, deps.Ingestor, limiter, src)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, o := range outcomes {
		if o.fetchURL == "" {
			continue // skipped by the rate limiter
		}
		if err := dispatchScrapeOutcome(ctx, eng, state, deps, registry, o, tracer, rc); err != nil {
			return err
		}
	}
	return nil
}

// fetchSource performs the rate-limit check and network fetch only; it
// never touches pipeline.State.
func fetchSource(ctx context.Context, ingestor collaborators.Ingestor, limiter *ratelimit.Limiter, src events.SourceNode) fetchOutcome {
	fetchURL := src.CanonicalValue
	if src.URL != nil && *src.URL != "" {
		fetchURL = *src.URL
	}

	if host := hostOf(fetchURL); host != "" {
		allowed, err := limiter.Allow(ctx, host)
		if err != nil || !allowed {
			return fetchOutcome{}
		}
	}

	pages, err := ingestor.FetchSpecific(ctx, []string{fetchURL})
	if err != nil {
		return fetchOutcome{src: src, fetchURL: fetchURL, err: err}
	}
	if len(pages) == 0 {
		return fetchOutcome{src: src, fetchURL: fetchURL, err: fmt.Errorf("ingestor returned no page")}
	}
	return fetchOutcome{src: src, fetchURL: fetchURL, page: pages[0]}
}

// dispatchScrapeOutcome turns one prefetched outcome into the
// ContentFetched/ContentUnchanged/ContentFetchFailed root event, stashes
// the page if needed, dispatches it, and records the scrape. This is the
// sequential, state-mutating half of scraping a source.
func dispatchScrapeOutcome(
	ctx context.Context,
	eng *engine.Engine[pipeline.State, pipeline.Deps],
	state *pipeline.State,
	deps pipeline.Deps,
	registry *graph.SourceRegistry,
	o fetchOutcome,
	tracer trace.Tracer,
	rc engine.RunContext,
) error {
	if o.err != nil {
		ev := events.ContentFetchFailed{URL: o.fetchURL, CanonicalKey: o.src.CanonicalKey, Error: o.err.Error()}
		return eng.Dispatch(ctx, ev, state, deps, rc)
	}

	lastHash, err := registry.LastContentHash(ctx, o.src.CanonicalKey)
	if err != nil {
		return fmt.Errorf("read last content hash for %s: %w", o.src.CanonicalKey, err)
	}

	hash := sha256Hex(o.page.Content)
	var ev events.Event
	if hash == lastHash && lastHash != "" {
		ev = events.ContentUnchanged{URL: o.fetchURL, CanonicalKey: o.src.CanonicalKey}
	} else {
		state.StashPage(o.fetchURL, o.page)
		ev = events.ContentFetched{
			URL:          o.fetchURL,
			CanonicalKey: o.src.CanonicalKey,
			ContentHash:  hash,
			LinkCount:    uint32(len(o.page.Links)),
		}
	}

	dctx, span := observability.StartDispatch(ctx, tracer, "scrape_source")
	err = eng.Dispatch(dctx, ev, state, deps, rc)
	span.End()
	if err != nil {
		return fmt.Errorf("dispatch scrape result for %s: %w", o.src.CanonicalKey, err)
	}

	if finalHash, ok := contentHashOf(ev, lastHash); ok {
		if err := registry.MarkScraped(ctx, o.src.CanonicalKey, finalHash, time.Now()); err != nil {
			return fmt.Errorf("mark scraped for %s: %w", o.src.CanonicalKey, err)
		}
	}
	return nil
}

func sha256Hex(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// contentHashOf returns the hash to persist for a scrape outcome, and
// whether last_scraped_at should be bumped at all — a fetch failure leaves
// both untouched so the next run retries rather than treating a failed
// fetch as "seen."
func contentHashOf(ev events.Event, lastHash string) (string, bool) {
	switch e := ev.(type) {
	case events.ContentFetched:
		return e.ContentHash, true
	case events.ContentUnchanged:
		return lastHash, true
	default:
		return "", false
	}
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Host
}

// replayIntoProjector reads back every event this run appended and applies
// the projectable ones to the graph — the engine itself never calls the
// projector (it only folds/persists/routes), so this is the connective
// tissue spec.md §4.9 otherwise has nowhere to live.
func replayIntoProjector(ctx context.Context, store eventstore.Store, projector *graph.Projector, runID string) error {
	stored, err := store.ReadByRun(ctx, runID)
	if err != nil {
		return fmt.Errorf("read run %s: %w", runID, err)
	}
	for _, se := range stored {
		ev, err := events.Decode(se.EventType, se.Payload)
		if err != nil {
			continue
		}
		if err := projector.Apply(ctx, ev); err != nil {
			return fmt.Errorf("project event seq %d: %w", se.Seq, err)
		}
	}
	return nil
}

// metricsRouter wraps handlers.Router to update the Prometheus surface
// alongside routing, the way tarsy's main wires services around a plain
// constructor rather than threading metrics through every handler
// signature.
type metricsRouter struct {
	inner   handlers.Router
	metrics *metrics.Metrics
}

func (r metricsRouter) Route(ctx context.Context, ev events.Event, handle eventstore.Handle, state *pipeline.State, deps pipeline.Deps) ([]events.Event, error) {
	derived, err := r.inner.Route(ctx, ev, handle, state, deps)
	if err != nil {
		return derived, err
	}

	switch ev.(type) {
	case events.SignalStored:
		r.metrics.SignalsStored.Inc()
	case events.CrossSourceMatchDetected:
		r.metrics.SignalsDeduplicated.WithLabelValues("corroborate").Inc()
	case events.SameSourceReencountered:
		r.metrics.SignalsDeduplicated.WithLabelValues("refresh").Inc()
	}
	for _, d := range derived {
		if _, ok := d.(events.ExtractionFailed); ok {
			r.metrics.ExtractionsFailed.Inc()
		}
	}
	return derived, nil
}

func newPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse database dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConns)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open database pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// dumpRegion prints every Signal node within the region's bounding box, plus
// every Signal with no recorded location, as JSON, per spec.md §6.4's `--dump`.
func dumpRegion(ctx context.Context, client graph.Client, region *pipeline.Region) error {
	bbox := region.BoundingBox()
	res, err := client.Query(ctx, `
		MATCH (s:Signal)
		WHERE s.location_lat IS NULL
		   OR (s.location_lat >= $min_lat AND s.location_lat <= $max_lat
		       AND s.location_lng >= $min_lng AND s.location_lng <= $max_lng)
		RETURN s.id, s.node_type, s.title, s.summary, s.source_url,
		       s.status, s.severity, s.corroboration_count
	`, map[string]any{
		"min_lat": bbox.MinLat, "max_lat": bbox.MaxLat,
		"min_lng": bbox.MinLng, "max_lng": bbox.MaxLng,
	})
	if err != nil {
		return fmt.Errorf("query region: %w", err)
	}

	type signalDump struct {
		ID                 string `json:"id"`
		NodeType           string `json:"node_type"`
		Title              string `json:"title"`
		Summary            string `json:"summary"`
		SourceURL          string `json:"source_url"`
		Status             string `json:"status"`
		Severity           string `json:"severity,omitempty"`
		CorroborationCount int    `json:"corroboration_count"`
	}

	out := make([]signalDump, 0, len(res.Rows))
	for _, row := range res.Rows {
		d := signalDump{}
		if v, ok := row[0].(string); ok {
			d.ID = v
		}
		if v, ok := row[1].(string); ok {
			d.NodeType = v
		}
		if v, ok := row[2].(string); ok {
			d.Title = v
		}
		if v, ok := row[3].(string); ok {
			d.Summary = v
		}
		if v, ok := row[4].(string); ok {
			d.SourceURL = v
		}
		if v, ok := row[5].(string); ok {
			d.Status = v
		}
		if v, ok := row[6].(string); ok {
			d.Severity = v
		}
		if v, ok := row[7].(float64); ok {
			d.CorroborationCount = int(v)
		}
		out = append(out, d)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
