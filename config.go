package stored

import (
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/go-kit/log"
)

const (
	// DefaultChunkSize is the default upper bound on the number of rows
	// replayed per call when a reader catches up with a partially skipped
	// page.
	DefaultChunkSize = 4096
)

// The ReaderConfig type carries configuration options for stored column
// readers.
//
// ReaderConfig implements the ReaderOption interface so it can be used directly
// as argument to the NewReader function when needed, for example:
//
//	reader, err := stored.NewReader(field, codec, ctx, &stored.ReaderConfig{
//		ChunkSize: 1024,
//	})
type ReaderConfig struct {
	ChunkSize int
	Allocator memory.Allocator
	Logger    log.Logger
	Metrics   *Metrics
}

// DefaultReaderConfig returns a new ReaderConfig value initialized with the
// default reader configuration.
func DefaultReaderConfig() *ReaderConfig {
	return &ReaderConfig{
		ChunkSize: DefaultChunkSize,
		Allocator: memory.DefaultAllocator,
		Logger:    log.NewNopLogger(),
	}
}

// NewReaderConfig constructs a new reader configuration applying the options
// passed as arguments.
//
// The function returns an non-nil error if some of the options carried invalid
// configuration values.
func NewReaderConfig(options ...ReaderOption) (*ReaderConfig, error) {
	config := DefaultReaderConfig()
	config.Apply(options...)
	return config, config.Validate()
}

// Apply applies the given list of options to c.
func (c *ReaderConfig) Apply(options ...ReaderOption) {
	for _, opt := range options {
		opt.ConfigureReader(c)
	}
}

// ConfigureReader applies configuration options from c to config.
func (c *ReaderConfig) ConfigureReader(config *ReaderConfig) {
	*config = ReaderConfig{
		ChunkSize: coalesceInt(c.ChunkSize, config.ChunkSize),
		Allocator: coalesceAllocator(c.Allocator, config.Allocator),
		Logger:    coalesceLogger(c.Logger, config.Logger),
		Metrics:   coalesceMetrics(c.Metrics, config.Metrics),
	}
}

// Validate returns a non-nil error if the configuration of c is invalid.
func (c *ReaderConfig) Validate() error {
	const baseName = "stored.(*ReaderConfig)."
	return errorInvalidConfiguration(
		validatePositiveInt(baseName+"ChunkSize", c.ChunkSize),
		validateNotNil(baseName+"Allocator", c.Allocator),
		validateNotNil(baseName+"Logger", c.Logger),
	)
}

// ReaderOption is an interface implemented by types that carry configuration
// options for stored column readers.
type ReaderOption interface {
	ConfigureReader(*ReaderConfig)
}

// ChunkSize caps the number of rows decoded per call while replaying the
// skipped prefix of a page.
//
// Defaults to 4096.
type ChunkSize int

func (size ChunkSize) ConfigureReader(config *ReaderConfig) { config.ChunkSize = int(size) }

// Allocator creates a configuration option which sets the memory allocator of
// the scratch builders used to replay skipped rows.
//
// Defaults to memory.DefaultAllocator.
func Allocator(mem memory.Allocator) ReaderOption {
	return readerOption(func(config *ReaderConfig) { config.Allocator = mem })
}

// Logger creates a configuration option which sets the logger that readers
// report page skips and replays to.
//
// By default, nothing is logged.
func Logger(logger log.Logger) ReaderOption {
	return readerOption(func(config *ReaderConfig) { config.Logger = logger })
}

// WithMetrics creates a configuration option which makes readers record their
// activity in m.
func WithMetrics(m *Metrics) ReaderOption {
	return readerOption(func(config *ReaderConfig) { config.Metrics = m })
}

type readerOption func(*ReaderConfig)

func (opt readerOption) ConfigureReader(config *ReaderConfig) { opt(config) }

func coalesceInt(i1, i2 int) int {
	if i1 != 0 {
		return i1
	}
	return i2
}

func coalesceAllocator(a1, a2 memory.Allocator) memory.Allocator {
	if a1 != nil {
		return a1
	}
	return a2
}

func coalesceLogger(l1, l2 log.Logger) log.Logger {
	if l1 != nil {
		return l1
	}
	return l2
}

func coalesceMetrics(m1, m2 *Metrics) *Metrics {
	if m1 != nil {
		return m1
	}
	return m2
}

func validatePositiveInt(optionName string, optionValue int) error {
	if optionValue > 0 {
		return nil
	}
	return errorInvalidOptionValue(optionName, optionValue)
}

func validateNotNil(optionName string, optionValue interface{}) error {
	if optionValue != nil {
		return nil
	}
	return errorInvalidOptionValue(optionName, optionValue)
}

func errorInvalidOptionValue(optionName string, optionValue interface{}) error {
	return fmt.Errorf("invalid option value: %s: %v", optionName, optionValue)
}

func errorInvalidConfiguration(reasons ...error) error {
	var err *invalidConfiguration

	for _, reason := range reasons {
		if reason != nil {
			if err == nil {
				err = new(invalidConfiguration)
			}
			err.reasons = append(err.reasons, reason)
		}
	}

	if err != nil {
		return err
	}

	return nil
}

type invalidConfiguration struct {
	reasons []error
}

func (err *invalidConfiguration) Error() string {
	errorMessage := new(strings.Builder)
	for _, reason := range err.reasons {
		errorMessage.WriteString(reason.Error())
		errorMessage.WriteString("\n")
	}
	errorString := errorMessage.String()
	if errorString != "" {
		errorString = errorString[:len(errorString)-1]
	}
	return errorString
}
