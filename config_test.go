package stored_test

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/go-kit/log"
	"github.com/stretchr/testify/require"

	"github.com/segmentio/parquet-stored"
)

func TestReaderConfig(t *testing.T) {
	mem := memory.NewGoAllocator()
	logger := log.NewNopLogger()

	tests := []struct {
		scenario string
		options  []stored.ReaderOption
		invalid  string
		check    func(*testing.T, *stored.ReaderConfig)
	}{
		{
			scenario: "defaults",
			check: func(t *testing.T, config *stored.ReaderConfig) {
				require.Equal(t, stored.DefaultChunkSize, config.ChunkSize)
				require.Equal(t, memory.DefaultAllocator, config.Allocator)
				require.NotNil(t, config.Logger)
				require.Nil(t, config.Metrics)
			},
		},

		{
			scenario: "options",
			options: []stored.ReaderOption{
				stored.ChunkSize(16),
				stored.Allocator(mem),
				stored.Logger(logger),
			},
			check: func(t *testing.T, config *stored.ReaderConfig) {
				require.Equal(t, 16, config.ChunkSize)
				require.Equal(t, mem, config.Allocator)
				require.Equal(t, logger, config.Logger)
			},
		},

		{
			scenario: "config as option keeps unset fields",
			options: []stored.ReaderOption{
				&stored.ReaderConfig{ChunkSize: 8},
			},
			check: func(t *testing.T, config *stored.ReaderConfig) {
				require.Equal(t, 8, config.ChunkSize)
				require.Equal(t, memory.DefaultAllocator, config.Allocator)
			},
		},

		{
			scenario: "negative chunk size",
			options:  []stored.ReaderOption{stored.ChunkSize(-1)},
			invalid:  "ChunkSize",
		},

		{
			scenario: "nil allocator and logger",
			options:  []stored.ReaderOption{stored.Allocator(nil), stored.Logger(nil)},
			invalid:  "Allocator",
		},
	}

	for _, test := range tests {
		t.Run(test.scenario, func(t *testing.T) {
			config, err := stored.NewReaderConfig(test.options...)
			if test.invalid != "" {
				require.Error(t, err)
				require.Contains(t, err.Error(), test.invalid)
				return
			}
			require.NoError(t, err)
			test.check(t, config)
		})
	}
}
