// Package pipeline coordinates a study run: resolve the phase timeline, check
// and label price ticks, persist the results.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/wonny/lunaris/internal/contracts"
	"github.com/wonny/lunaris/internal/ephemeris"
	"github.com/wonny/lunaris/internal/labeler"
	"github.com/wonny/lunaris/internal/phase"
	"github.com/wonny/lunaris/internal/prices"
	"github.com/wonny/lunaris/internal/storage"
	"github.com/wonny/lunaris/internal/studyconfig"
	"github.com/wonny/lunaris/pkg/logger"
)

// ErrAnonymousOracle is returned when a store or cache is configured for an
// oracle without an ID: its timelines could not be told apart from another oracle's
var ErrAnonymousOracle = errors.New("oracle has no identity")

// TimelineCache is the cache used in front of the timeline repository
type TimelineCache interface {
	Get(ctx context.Context, key string) (*contracts.PhaseTimelineSnapshot, bool, error)
	Put(ctx context.Context, key string, snapshot *contracts.PhaseTimelineSnapshot) error
	Invalidate(ctx context.Context, key string) error
}

// TimelineSource tells where a resolved timeline came from
type TimelineSource string

const (
	SourceCache TimelineSource = "cache"
	SourceStore TimelineSource = "store"
	SourceBuilt TimelineSource = "built"
)

// Orchestrator coordinates timeline resolution and labeling for one study
// ⭐ SSOT: 스터디 실행 조율은 여기서만
type Orchestrator struct {
	studyHash string
	key       string // study hash + oracle identity
	phaseCfg  phase.Config
	periods   []contracts.Period
	oracle    contracts.AngleOracle

	// optional collaborators
	timelineRepo contracts.TimelineRepository
	priceRepo    contracts.LabeledPriceRepository
	cache        TimelineCache

	logger *logger.Logger
}

// Option configures optional collaborators
type Option func(*Orchestrator)

// WithTimelineRepository persists and reloads timelines
func WithTimelineRepository(repo contracts.TimelineRepository) Option {
	return func(o *Orchestrator) { o.timelineRepo = repo }
}

// WithPriceRepository persists labeled prices
func WithPriceRepository(repo contracts.LabeledPriceRepository) Option {
	return func(o *Orchestrator) { o.priceRepo = repo }
}

// WithCache puts a cache in front of the timeline repository
func WithCache(cache TimelineCache) Option {
	return func(o *Orchestrator) { o.cache = cache }
}

// NewOrchestrator validates the study against the oracle and creates an orchestrator.
// An oracle that cannot cover the study range is a fatal configuration error.
func NewOrchestrator(study *studyconfig.Config, oracle contracts.AngleOracle, log *logger.Logger, opts ...Option) (*Orchestrator, error) {
	if log == nil {
		log = logger.Nop()
	}

	hash, err := studyconfig.Hash(study)
	if err != nil {
		return nil, fmt.Errorf("hash study: %w", err)
	}

	phaseCfg, err := study.PhaseConfig()
	if err != nil {
		return nil, err
	}

	periods, err := study.PeriodList()
	if err != nil {
		return nil, err
	}
	if err := labeler.ValidatePeriods(periods); err != nil {
		return nil, err
	}

	if err := ephemeris.ValidateRange(oracle, phaseCfg.RangeStart, phaseCfg.RangeEnd); err != nil {
		return nil, err
	}

	o := &Orchestrator{
		studyHash: hash,
		phaseCfg:  phaseCfg,
		periods:   periods,
		oracle:    oracle,
		logger:    log.WithField("study", study.Meta.StudyID),
	}
	for _, opt := range opts {
		opt(o)
	}

	oracleID, ok := ephemeris.Identity(oracle)
	if !ok && (o.timelineRepo != nil || o.priceRepo != nil || o.cache != nil) {
		return nil, fmt.Errorf("%w: stored timelines need an oracle ID", ErrAnonymousOracle)
	}
	o.key = TimelineKey(hash, oracleID)

	return o, nil
}

// TimelineKey derives the cache/persistence key from the study hash and oracle ID
func TimelineKey(studyHash, oracleID string) string {
	sum := sha256.Sum256([]byte(studyHash + "\n" + oracleID))
	return hex.EncodeToString(sum[:])
}

// StudyHash returns the study config hash
func (o *Orchestrator) StudyHash() string {
	return o.studyHash
}

// TimelineKey returns the key timelines and labeled prices are stored under
func (o *Orchestrator) TimelineKey() string {
	return o.key
}

// PhaseConfig returns the scan configuration of the study
func (o *Orchestrator) PhaseConfig() phase.Config {
	return o.phaseCfg
}

// Timeline returns the study timeline from cache, store, or a fresh build, in that order
func (o *Orchestrator) Timeline(ctx context.Context) (*phase.Timeline, TimelineSource, error) {
	if o.cache != nil {
		snap, found, err := o.cache.Get(ctx, o.key)
		if err != nil {
			o.logger.WithError(err).Warn("timeline cache read failed")
		}
		if found {
			tl, err := phase.FromSnapshot(snap)
			if err == nil {
				return tl, SourceCache, nil
			}
			o.logger.WithError(err).Warn("cached timeline rejected")
		}
	}

	if o.timelineRepo != nil {
		snap, err := o.timelineRepo.LoadTimeline(ctx, o.key)
		switch {
		case err == nil:
			tl, err := phase.FromSnapshot(snap)
			if err != nil {
				return nil, "", fmt.Errorf("stored timeline: %w", err)
			}
			o.putCache(ctx, snap)
			return tl, SourceStore, nil
		case !errors.Is(err, storage.ErrNotFound):
			return nil, "", fmt.Errorf("load timeline: %w", err)
		}
	}

	tl, err := o.RebuildTimeline(ctx)
	if err != nil {
		return nil, "", err
	}
	return tl, SourceBuilt, nil
}

// RebuildTimeline scans the oracle, then stores and caches the result
func (o *Orchestrator) RebuildTimeline(ctx context.Context) (*phase.Timeline, error) {
	startTime := time.Now()

	builder, err := phase.NewBuilder(o.phaseCfg, o.oracle, o.logger)
	if err != nil {
		return nil, err
	}

	tl, err := builder.Build(ctx)
	if err != nil {
		return nil, fmt.Errorf("build timeline: %w", err)
	}

	snap := tl.Snapshot()
	if o.timelineRepo != nil {
		if err := o.timelineRepo.SaveTimeline(ctx, o.key, snap); err != nil {
			return nil, fmt.Errorf("save timeline: %w", err)
		}
	}
	if o.cache != nil {
		// 새 타임라인 저장 실패 시에도 이전 캐시가 남지 않도록
		if err := o.cache.Invalidate(ctx, o.key); err != nil {
			o.logger.WithError(err).Warn("timeline cache invalidate failed")
		}
	}
	o.putCache(ctx, snap)

	o.logger.WithFields(map[string]interface{}{
		"boundaries": tl.Len(),
		"clamped":    snap.ClampedCount(),
		"duration":   time.Since(startTime).Seconds(),
	}).Info("timeline rebuilt")

	return tl, nil
}

func (o *Orchestrator) putCache(ctx context.Context, snap *contracts.PhaseTimelineSnapshot) {
	if o.cache == nil {
		return
	}
	if err := o.cache.Put(ctx, o.key, snap); err != nil {
		o.logger.WithError(err).Warn("timeline cache write failed")
	}
}

// Labeler resolves the timeline and returns a labeler with the study periods
func (o *Orchestrator) Labeler(ctx context.Context) (*labeler.Labeler, error) {
	tl, _, err := o.Timeline(ctx)
	if err != nil {
		return nil, err
	}
	return labeler.New(tl, o.periods)
}

// RunConfig holds the inputs of a labeling run
type RunConfig struct {
	RunID          string
	Prices         []contracts.PriceTick
	SkipRangeCheck bool // label ticks outside the study range (flagged out_of_range)
	Persist        bool // save labeled prices when a price repository is configured
}

// RunResult holds the results of a labeling run
type RunResult struct {
	RunID           string
	StudyHash       string
	TimelineKey     string
	Success         bool
	Error           error
	CompletedStages []string
	TimelineSource  TimelineSource
	Timeline        *phase.Timeline
	Labeled         []contracts.LabeledPrice
	OutOfRange      int
	Duration        time.Duration
}

// Run executes timeline → range check → label → persist
func (o *Orchestrator) Run(ctx context.Context, config RunConfig) (*RunResult, error) {
	startTime := time.Now()

	result := &RunResult{
		RunID:           config.RunID,
		StudyHash:       o.studyHash,
		TimelineKey:     o.key,
		CompletedStages: make([]string, 0, 4),
	}

	o.logger.WithFields(map[string]interface{}{
		"run_id":  config.RunID,
		"prices":  len(config.Prices),
		"persist": config.Persist,
	}).Info("Starting labeling run")

	// Timeline
	tl, source, err := o.Timeline(ctx)
	if err != nil {
		result.Error = fmt.Errorf("timeline stage: %w", err)
		return result, result.Error
	}
	result.Timeline = tl
	result.TimelineSource = source
	result.CompletedStages = append(result.CompletedStages, "timeline:"+string(source))

	// Range check
	if !config.SkipRangeCheck {
		if err := prices.CheckRange(config.Prices, o.phaseCfg.RangeStart, o.phaseCfg.RangeEnd); err != nil {
			result.Error = fmt.Errorf("range stage: %w", err)
			return result, result.Error
		}
		result.CompletedStages = append(result.CompletedStages, "range")
	}

	// Label
	lb, err := labeler.New(tl, o.periods)
	if err != nil {
		result.Error = fmt.Errorf("label stage: %w", err)
		return result, result.Error
	}
	labeled, err := lb.LabelAll(ctx, config.Prices)
	if err != nil {
		result.Error = fmt.Errorf("label stage: %w", err)
		return result, result.Error
	}
	result.Labeled = labeled
	result.OutOfRange = labeler.CountOutOfRange(labeled)
	result.CompletedStages = append(result.CompletedStages, "label")

	if result.OutOfRange > 0 {
		o.logger.WithField("count", result.OutOfRange).Warn("ticks outside the timeline range were clamped")
	}

	// Persist
	if config.Persist && o.priceRepo != nil {
		if err := o.priceRepo.SaveLabeledPrices(ctx, o.key, labeled); err != nil {
			result.Error = fmt.Errorf("persist stage: %w", err)
			return result, result.Error
		}
		result.CompletedStages = append(result.CompletedStages, "persist")
	}

	result.Success = true
	result.Duration = time.Since(startTime)

	o.logger.WithFields(map[string]interface{}{
		"run_id":   config.RunID,
		"labeled":  len(labeled),
		"duration": result.Duration.Seconds(),
		"stages":   len(result.CompletedStages),
	}).Info("Labeling run completed")

	return result, nil
}
