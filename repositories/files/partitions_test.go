package files

import (
	// Go Internal Packages
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	// Local Packages
	models "tx-pipeline/models"

	// External Packages
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPartitionStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewPartitionStore(t.TempDir(), zap.NewNop())

	require.NoError(t, s.InsertRaw(ctx, []models.RawRecord{
		{Day: "2025-12-18", Hour: 14, Payload: `{"tx_id":"b","amount":12.30}`},
		{Day: "2025-12-18", Hour: 3, Payload: `{"tx_id":"a","amount":1}`},
		{Day: "2025-12-19", Hour: 0, Payload: `{"tx_id":"c"}`},
	}))

	assert.DirExists(t, filepath.Join(s.Root, "dt=2025-12-18", "hour=03"))
	assert.DirExists(t, filepath.Join(s.Root, "dt=2025-12-18", "hour=14"))

	raws, err := s.LoadDay(ctx, "2025-12-18")
	require.NoError(t, err)
	require.Len(t, raws, 2)
	assert.Equal(t, "a", raws[0]["tx_id"])
	assert.Equal(t, json.Number("12.30"), raws[1]["amount"])
}

func TestPartitionStoreMissingDay(t *testing.T) {
	s := NewPartitionStore(t.TempDir(), zap.NewNop())
	raws, err := s.LoadDay(context.Background(), "2025-12-18")
	require.NoError(t, err)
	assert.Empty(t, raws)
}

func TestPartitionStoreKeepsBadLines(t *testing.T) {
	s := NewPartitionStore(t.TempDir(), zap.NewNop())
	dir := filepath.Join(s.Root, "dt=2025-12-18", "hour=01")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	content := "{\"tx_id\":\"a\"}\nnot json\n\n{\"tx_id\":\"b\"}\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "part-0.jsonl"), []byte(content), 0o644))

	raws, err := s.LoadDay(context.Background(), "2025-12-18")
	require.NoError(t, err)
	require.Len(t, raws, 3)
	assert.Empty(t, raws[1])
	assert.Equal(t, "b", raws[2]["tx_id"])
}
