package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hexops/gotextdiff"
	"github.com/hexops/gotextdiff/myers"
	"github.com/hexops/gotextdiff/span"
	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/require"
)

type scanRow struct {
	ID    int64   `parquet:"id"`
	Name  *string `parquet:"name,optional"`
	Items []int32 `parquet:"items"`
}

func writeScanFixture(t *testing.T) string {
	rows := make([]scanRow, 300)
	for i := range rows {
		rows[i].ID = int64(i)
		if i%4 != 0 {
			name := fmt.Sprintf("name-%d", i%7)
			rows[i].Name = &name
		}
		for j := 0; j < i%3; j++ {
			rows[i].Items = append(rows[i].Items, int32(10*i+j))
		}
	}

	path := filepath.Join(t.TempDir(), "fixture.parquet")
	f, err := os.Create(path)
	require.NoError(t, err)
	w := parquet.NewGenericWriter[scanRow](f, parquet.PageBufferSize(128))
	_, err = w.Write(rows)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())
	return path
}

func runScan(t *testing.T, cmd scanCommand) string {
	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)
	require.NoError(t, cmd.run(stdout, stderr))
	require.Contains(t, stderr.String(), `msg="scan complete"`)
	return stdout.String()
}

func requireSameOutput(t *testing.T, fromName, toName, from, to string) {
	edits := myers.ComputeEdits(span.URIFromPath(fromName), from, to)
	diff := gotextdiff.ToUnified(fromName, toName, from, edits)
	require.Empty(t, diff.Hunks, "%s", diff)
}

func TestScanBatchSizes(t *testing.T) {
	path := writeScanFixture(t)

	tests := []struct {
		scenario string
		column   string
		levels   bool
	}{
		{scenario: "required", column: "id"},
		{scenario: "optional", column: "name"},
		{scenario: "optional with levels", column: "name", levels: true},
		{scenario: "repeated", column: "items", levels: true},
	}

	for _, test := range tests {
		t.Run(test.scenario, func(t *testing.T) {
			scan := func(batch int) string {
				return runScan(t, scanCommand{
					file:   path,
					column: test.column,
					batch:  batch,
					levels: test.levels,
				})
			}

			expected := scan(1000)
			require.Contains(t, expected, "index")
			for _, batch := range []int{1, 3, 64} {
				requireSameOutput(t, "batch-1000", fmt.Sprintf("batch-%d", batch), expected, scan(batch))
			}
		})
	}
}

func TestScanRowRange(t *testing.T) {
	path := writeScanFixture(t)

	out := runScan(t, scanCommand{
		file:   path,
		column: "id",
		batch:  16,
		skip:   100,
		limit:  5,
	})

	for i := 100; i < 105; i++ {
		require.Contains(t, out, fmt.Sprintf(" %d ", i))
	}
	require.NotContains(t, out, " 99 ")
	require.NotContains(t, out, " 105 ")
}

func TestScanStats(t *testing.T) {
	path := writeScanFixture(t)

	out := runScan(t, scanCommand{file: path, column: "name", batch: 50, skip: 200, stats: true})
	for _, stat := range []string{"pages loaded", "pages skipped", "rows read", "rows skipped", "rows replayed"} {
		require.Contains(t, out, stat)
	}
}

func TestScanDictionaryCodes(t *testing.T) {
	path := writeScanFixture(t)

	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)
	cmd := scanCommand{file: path, column: "id", batch: 10, dict: true}
	err := cmd.run(stdout, stderr)
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "not dictionary encoded"), "%v", err)
}

func TestScanUnknownColumn(t *testing.T) {
	path := writeScanFixture(t)

	cmd := scanCommand{file: path, column: "missing", batch: 10}
	require.Error(t, cmd.run(new(bytes.Buffer), new(bytes.Buffer)))

	cmd = scanCommand{file: path, column: "id", batch: 0}
	require.Error(t, cmd.run(new(bytes.Buffer), new(bytes.Buffer)))
}

func TestColumns(t *testing.T) {
	path := writeScanFixture(t)

	out := new(bytes.Buffer)
	cmd := columnsCommand{file: path}
	require.NoError(t, cmd.run(out))

	for _, name := range []string{"id", "name", "items", "INT64", "BYTE_ARRAY"} {
		require.Contains(t, out.String(), name)
	}
}
