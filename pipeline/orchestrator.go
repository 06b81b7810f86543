package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"kahaani/agent"
	"kahaani/config"
	"kahaani/cost"
	"kahaani/metrics"
	"kahaani/topics"
)

// ErrNotConfigured is returned before any work when no API key is set.
var ErrNotConfigured = errors.New("service not configured")

// State is a step of a generation run.
type State int

const (
	StateIdle State = iota
	StateFetchingFeeds
	StateBuildingPool
	StateResearchCall
	StateDecodingResearch
	StateWriterCall
	StateDecodingWriter
	StateEstimating
	StateSuccess
	StateFailed
)

var stateNames = [...]string{
	"idle",
	"fetching_feeds",
	"building_pool",
	"research_call",
	"decoding_research",
	"writer_call",
	"decoding_writer",
	"estimating",
	"success",
	"failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// StageError records where a run failed.
type StageError struct {
	State State
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("generation failed during %s: %v", e.State, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// ProgressUpdate is sent as the run moves between states.
type ProgressUpdate struct {
	State   State
	Message string
	Err     error
}

// FeedSource fetches the titles of one feed. Errors are informational.
type FeedSource interface {
	FetchTitles(ctx context.Context, url string) ([]string, error)
}

// ResearchStage is the topic-selection model call.
type ResearchStage interface {
	Call(ctx context.Context, p agent.ResearchParams) (agent.Reply, error)
	Parse(raw string) (agent.ResearchResult, error)
}

// WriterStage is the script-writing model call.
type WriterStage interface {
	Call(ctx context.Context, p agent.WriterParams) (agent.Reply, error)
	Parse(raw string) ([]agent.ScriptRecord, bool)
}

type Options struct {
	Config   *config.Config
	Feeds    FeedSource
	Research ResearchStage
	Writer   WriterStage
	Shuffler topics.Shuffler
	Clock    func() time.Time
	Logger   *log.Logger
	Progress chan<- ProgressUpdate
}

// Orchestrator runs the two-stage generation. It holds no per-request state
// and is safe for concurrent use.
type Orchestrator struct {
	cfg      *config.Config
	feeds    FeedSource
	research ResearchStage
	writer   WriterStage
	shuffler topics.Shuffler
	now      func() time.Time
	logger   *log.Logger
	progress chan<- ProgressUpdate
}

func New(opts Options) (*Orchestrator, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("pipeline: config is required")
	}
	if opts.Feeds == nil || opts.Research == nil || opts.Writer == nil {
		return nil, fmt.Errorf("pipeline: feeds, research and writer stages are required")
	}
	if opts.Shuffler == nil {
		opts.Shuffler = topics.NewRandomShuffler()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Orchestrator{
		cfg:      opts.Config,
		feeds:    opts.Feeds,
		research: opts.Research,
		writer:   opts.Writer,
		shuffler: opts.Shuffler,
		now:      opts.Clock,
		logger:   opts.Logger,
		progress: opts.Progress,
	}, nil
}

func (o *Orchestrator) sendProgress(state State, message string, err error) {
	if o.progress == nil {
		return
	}
	select {
	case o.progress <- ProgressUpdate{State: state, Message: message, Err: err}:
	default:
		// channel full, skip update
	}
}

// run tracks the current state of one Generate call.
type run struct {
	o       *Orchestrator
	state   State
	entered time.Time
}

func (r *run) enter(state State, message string) {
	r.leave()
	r.state = state
	r.entered = time.Now()
	r.o.sendProgress(state, message, nil)
}

func (r *run) leave() {
	if r.state == StateIdle || r.entered.IsZero() {
		return
	}
	metrics.StageDuration.WithLabelValues(r.state.String()).Observe(time.Since(r.entered).Seconds())
}

// Generate walks the state machine once. Every failure is returned as a
// *StageError; there is no partial result.
func (o *Orchestrator) Generate(ctx context.Context, req Request) (*Response, error) {
	if !o.cfg.Configured() {
		return nil, ErrNotConfigured
	}
	req.Mode = agent.ParseContentMode(string(req.Mode))
	req.Language = agent.ParseLanguage(string(req.Language))

	start := time.Now()
	r := &run{o: o, state: StateIdle}
	resp, err := o.generate(ctx, req, r)
	r.leave()
	metrics.GenerationDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.GenerationsTotal.WithLabelValues("failed").Inc()
		failed := &StageError{State: r.state, Err: err}
		o.sendProgress(StateFailed, failed.Error(), failed)
		return nil, failed
	}

	metrics.GenerationsTotal.WithLabelValues("success").Inc()
	o.sendProgress(StateSuccess, fmt.Sprintf("generated %d scripts", len(resp.Scripts)), nil)
	o.logger.Info("generation completed",
		"mode", req.Mode,
		"language", req.Language,
		"scripts", resp.Totals.ScriptsGenerated,
		"words", resp.Totals.TotalWords,
		"cost_inr", resp.CostAnalysis.AI.TotalINR,
		"duration", time.Since(start),
	)
	return resp, nil
}

func (o *Orchestrator) generate(ctx context.Context, req Request, r *run) (*Response, error) {
	r.enter(StateFetchingFeeds, "Scanning trending topics across India")
	news, trends := o.fetchFeeds(ctx)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.enter(StateBuildingPool, "Building the topic pool")
	pool := topics.Build(news, trends, req.ExcludeTopics, o.shuffler)
	if n := len(pool.Supplement); n > 0 {
		metrics.FallbackTopicsTotal.Add(float64(n))
		o.logger.Warn("sparse feed signal, mixing in fallback topics", "live", len(news)+len(trends), "fallback", n)
	}

	r.enter(StateResearchCall, "Selecting the three strongest topics")
	researchReply, err := o.research.Call(ctx, agent.ResearchParams{
		Mode:       req.Mode,
		Language:   req.Language,
		News:       pool.News,
		Trends:     pool.Trends,
		Exclusions: pool.Exclusions,
	})
	if err != nil {
		return nil, err
	}

	r.enter(StateDecodingResearch, "Reading the research notes")
	research, err := o.research.Parse(researchReply.Content)
	if err != nil {
		return nil, err
	}
	for _, t := range research.SelectedTopics {
		if pool.Overlaps(t.Topic) {
			o.logger.Warn("research picked a previously used topic", "topic", t.Topic)
		}
	}

	r.enter(StateWriterCall, "Writing the scripts")
	writerReply, err := o.writer.Call(ctx, agent.WriterParams{
		Language: req.Language,
		Topics:   research.SelectedTopics,
	})
	if err != nil {
		return nil, err
	}

	r.enter(StateDecodingWriter, "Polishing the scripts")
	scripts, degraded := o.writer.Parse(writerReply.Content)
	if degraded {
		o.logger.Warn("writer reply unreadable, returning placeholder script")
	}

	r.enter(StateEstimating, "Comparing costs")
	breakdown := cost.Estimate(cost.Lengths{
		ResearchResponse: cost.CharCount(researchReply.Content),
		WriterResponse:   cost.CharCount(writerReply.Content),
	}, o.cfg.LLM.Model)
	metrics.EstimatedCostINR.Observe(breakdown.INR)

	selected := research.SelectedTopics
	if selected == nil {
		selected = []agent.SelectedTopic{}
	}
	return &Response{
		Status:      StatusSuccess,
		Product:     ProductName,
		GeneratedAt: o.now().UTC().Truncate(time.Millisecond),
		Params:      Params{Mode: req.Mode, Language: req.Language},
		Research: Research{
			Summary:        research.ResearchSummary,
			TopicsAnalyzed: pool.TopicsAnalyzed,
			Sources:        append([]string(nil), Sources...),
			SelectedTopics: selected,
			SourceTopics:   pool.Sources(),
		},
		Scripts:      scripts,
		Totals:       ComputeTotals(scripts),
		CostAnalysis: breakdown.Report(),
	}, nil
}

// fetchFeeds fetches both feeds concurrently. A failed feed is an empty list.
func (o *Orchestrator) fetchFeeds(ctx context.Context) (news, trends []string) {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		news = o.fetchFeed(gctx, "news", o.cfg.Feeds.NewsURL)
		return nil
	})
	g.Go(func() error {
		trends = o.fetchFeed(gctx, "trends", o.cfg.Feeds.TrendsURL)
		return nil
	})
	_ = g.Wait()
	return news, trends
}

func (o *Orchestrator) fetchFeed(ctx context.Context, name, url string) []string {
	titles, err := o.feeds.FetchTitles(ctx, url)
	if err != nil {
		metrics.FeedFailuresTotal.WithLabelValues(name).Inc()
		o.logger.Warn("feed failed, treating as empty", "feed", name, "error", err)
		return []string{}
	}
	if titles == nil {
		return []string{}
	}
	return titles
}
