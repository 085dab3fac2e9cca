package manager

import (
	"time"

	"github.com/rs/zerolog"

	"modelmgrd/internal/convcache"
	"modelmgrd/pkg/types"
)

// Defaults applied when corresponding Config fields are unset.
const (
	defaultBudgetFraction      = 0.8
	defaultIdleTimeout         = 5 * time.Minute
	defaultMemoryCheckInterval = 30 * time.Second
	defaultPredictionWindow    = 10 * time.Minute
	defaultLookaheadInterval   = 30 * time.Second
	defaultDrainTimeout        = 30 * time.Second
	predictTopN                = 3
)

// Config encapsulates all tunables for Manager construction.
type Config struct {
	Registry     []types.ModelDescriptor
	Runtime      Runtime
	Cache        *convcache.Cache
	Publisher    EventPublisher
	Logger       zerolog.Logger
	DefaultModel string

	TotalCapacityMB int
	BudgetFraction  float64
	MinFreeMB       int

	DefaultIdleTimeout  time.Duration
	MemoryCheckInterval time.Duration
	PredictionWindow    time.Duration
	LookaheadInterval   time.Duration
	// How long Unload waits for in-flight generations before releasing anyway.
	DrainTimeout time.Duration
}

// New constructs a Manager from Config. Descriptors with duplicate ids are
// dropped (first registration wins) and logged.
func New(cfg Config) *Manager {
	m := &Manager{
		models:       make(map[string]*model),
		runtime:      cfg.Runtime,
		cache:        cfg.Cache,
		pub:          cfg.Publisher,
		log:          cfg.Logger,
		defaultModel: cfg.DefaultModel,
		startTime:    time.Now(),
		nowFn:        time.Now,
	}
	m.cond.L = &m.mu
	if m.pub == nil {
		m.pub = noopPublisher{}
	}

	m.budget = budget{
		totalMB:   cfg.TotalCapacityMB,
		fraction:  cfg.BudgetFraction,
		minFreeMB: cfg.MinFreeMB,
	}
	if m.budget.fraction <= 0 || m.budget.fraction > 1 {
		m.budget.fraction = defaultBudgetFraction
	}

	m.defaultIdleTimeout = cfg.DefaultIdleTimeout
	if m.defaultIdleTimeout <= 0 {
		m.defaultIdleTimeout = defaultIdleTimeout
	}
	m.memoryCheckInterval = cfg.MemoryCheckInterval
	if m.memoryCheckInterval <= 0 {
		m.memoryCheckInterval = defaultMemoryCheckInterval
	}
	m.lookaheadInterval = cfg.LookaheadInterval
	if m.lookaheadInterval <= 0 {
		m.lookaheadInterval = defaultLookaheadInterval
	}
	m.drainTimeout = cfg.DrainTimeout
	if m.drainTimeout <= 0 {
		m.drainTimeout = defaultDrainTimeout
	}

	window := cfg.PredictionWindow
	if window <= 0 {
		window = defaultPredictionWindow
	}
	m.predictor = newUsagePredictor(window)

	for _, d := range cfg.Registry {
		if err := m.Register(d); err != nil {
			m.log.Warn().Str("model", d.ID).Err(err).Msg("skipping descriptor")
		}
	}
	metricVRAMBudgetMB.Set(float64(m.budget.limitMB()))
	return m
}
