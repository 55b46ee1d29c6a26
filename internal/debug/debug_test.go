package debug_test

import (
	"bytes"
	"testing"

	"github.com/go-kit/log/level"
	"github.com/stretchr/testify/require"

	"github.com/segmentio/parquet-stored/internal/debug"
)

func TestLogger(t *testing.T) {
	tests := []struct {
		scenario string
		debug    bool
		logged   bool
	}{
		{scenario: "debug mode on", debug: true, logged: true},
		{scenario: "debug mode off", debug: false, logged: false},
	}

	for _, test := range tests {
		t.Run(test.scenario, func(t *testing.T) {
			debug.Toggle(test.debug)
			defer debug.Toggle(false)
			require.Equal(t, test.debug, debug.Enabled())

			buf := new(bytes.Buffer)
			logger := debug.Logger(buf)
			require.NoError(t, level.Debug(logger).Log("msg", "hidden unless debugging"))
			require.NoError(t, level.Info(logger).Log("msg", "always shown"))

			require.Contains(t, buf.String(), `msg="always shown"`)
			if test.logged {
				require.Contains(t, buf.String(), "level=debug")
			} else {
				require.NotContains(t, buf.String(), "level=debug")
			}
		})
	}
}
