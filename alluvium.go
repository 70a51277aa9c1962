package alluvium

import (
	"sync"

	"github.com/ridge/alluvium/extract"
	"github.com/ridge/alluvium/metrics"
	"github.com/ridge/alluvium/retry"
	"github.com/ridge/alluvium/sink"
	"github.com/ridge/alluvium/stream"
	"time"
)

// Mode selects how a processor run is bounded
type Mode string

// Processor run modes
const (
	// ModeDefault tails the stream indefinitely, checkpointing under the
	// processor name
	ModeDefault Mode = "default"

	// ModeBackfill re-processes a version range, checkpointing under
	// BackfillAlias so the tailing processor's resume position is untouched
	ModeBackfill Mode = "backfill"
)

// State is the observable phase of a processor run
type State string

// Processor states
const (
	StateInitializing State = "initializing"
	StateStreaming    State = "streaming"
	StateBackfilling  State = "backfilling"
	StateFlushing     State = "flushing"
	StateDraining     State = "draining"
	StateStopped      State = "stopped"
)

// Config configures a Processor
type Config struct {
	// Name identifies the processor. The tailing checkpoint is stored
	// under it.
	Name string

	// Source delivers the transaction stream
	Source stream.Source

	// Extractors produce the table records
	Extractors []extract.Extractor

	// Sink commits batches
	Sink sink.Sink

	// Mode selects tailing or backfill; defaults to ModeDefault
	Mode Mode

	// BackfillAlias keys the backfill checkpoint; required in backfill mode
	BackfillAlias string

	// StartingVersion is the version to start from when there is no
	// checkpoint, or the later of the two when there is one
	StartingVersion uint64

	// EndingVersion bounds the run (inclusive); 0 means unbounded
	EndingVersion uint64

	// OverwriteCheckpoint discards the stored checkpoint and starts at
	// StartingVersion verbatim
	OverwriteCheckpoint bool

	// ChainID is the chain the stream is expected to carry; 0 disables
	// the check
	ChainID uint64

	// ChannelSize is the capacity of the channels connecting the pipeline
	// stages; it bounds the number of in-flight transactions
	ChannelSize int

	// ExtractWorkers is the size of the extraction pool; defaults to 1
	ExtractWorkers int

	// MaxBufferBytes flushes the accumulated batch when the serialized
	// size of its records reaches this many bytes; 0 disables the trigger
	MaxBufferBytes int

	// UploadInterval flushes the accumulated batch this long after the
	// first transaction buffered since the previous flush; 0 disables the
	// trigger
	UploadInterval time.Duration

	// OnExtractionError decides what an extraction failure does; defaults
	// to extract.Halt
	OnExtractionError extract.ErrorPolicy

	// SinkRetries is the number of commit attempts per batch before the
	// run stops with ErrSinkExhausted; defaults to 5
	SinkRetries int

	// The following field is to be left empty except in tests
	RetryPolicy retry.Policy
}

// Processor is one pipeline instance. Create with New, start with Run.
type Processor struct {
	config Config
	policy retry.Policy

	mu    sync.Mutex
	state State
}

// New creates a Processor.
//
// The configuration must name the processor and provide a source, a sink and
// at least one extractor; New panics otherwise. Operator-supplied
// configuration is validated with better messages by the config package
// before it gets here.
func New(config Config) *Processor {
	switch {
	case config.Name == "":
		panic("processor name required")
	case config.Source == nil:
		panic("source required")
	case config.Sink == nil:
		panic("sink required")
	case len(config.Extractors) == 0:
		panic("at least one extractor required")
	}
	if config.Mode == "" {
		config.Mode = ModeDefault
	}
	if config.Mode == ModeBackfill && config.BackfillAlias == "" {
		panic("backfill alias required in backfill mode")
	}
	if config.SinkRetries <= 0 {
		config.SinkRetries = 5
	}
	if config.ChannelSize < 0 {
		config.ChannelSize = 0
	}

	policy := config.RetryPolicy
	if policy == nil {
		policy = retry.ExpPolicy{
			Min:         time.Second,
			Max:         time.Minute,
			Scale:       2.0,
			MaxAttempts: config.SinkRetries,
		}
	}

	return &Processor{
		config: config,
		policy: policy,
		state:  StateInitializing,
	}
}

// Pipeline returns the checkpoint identity of the run: the processor name,
// or the backfill alias in backfill mode
func (p *Processor) Pipeline() string {
	if p.config.Mode == ModeBackfill {
		return p.config.BackfillAlias
	}
	return p.config.Name
}

// Mode returns the configured run mode
func (p *Processor) Mode() Mode {
	return p.config.Mode
}

// Status returns the current state of the run.
// Safe for concurrent use.
func (p *Processor) Status() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Processor) setState(state State) {
	p.mu.Lock()
	from := p.state
	p.state = state
	p.mu.Unlock()
	metrics.SetState(string(from), string(state))
}

func (p *Processor) streamingState() State {
	if p.config.Mode == ModeBackfill {
		return StateBackfilling
	}
	return StateStreaming
}
