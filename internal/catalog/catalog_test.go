package catalog

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethangolledge/doc-query/internal/inventory"
	"github.com/ethangolledge/doc-query/internal/remote"
)

func testInventory(types ...string) *inventory.Inventory {
	inv := inventory.New("root")
	for i, mt := range types {
		inv.Add(&inventory.FileRecord{ID: string(rune('a' + i)), Name: "f", MimeType: mt, Size: 100})
	}
	return inv
}

func TestDistinctTypes(t *testing.T) {
	inv := testInventory("text/plain", "text/plain", "application/pdf", remote.FolderMimeType)

	assert.Equal(t, []string{"application/pdf", "text/plain"}, DistinctTypes(inv))
}

func TestDistinctTypesEmpty(t *testing.T) {
	assert.Empty(t, DistinctTypes(inventory.New("root")))
	assert.Empty(t, DistinctTypes(nil))
}

func TestPartition(t *testing.T) {
	policy := NewPolicy("text/plain")

	compatible, incompatible := policy.Partition([]string{"text/plain", "unknown/type"})

	assert.Equal(t, []string{"text/plain"}, compatible)
	assert.Equal(t, []string{"unknown/type"}, incompatible)
}

func TestPartitionDeduplicatesAndTrims(t *testing.T) {
	policy := NewPolicy("text/plain", "application/pdf")

	compatible, incompatible := policy.Partition([]string{" text/plain", "application/pdf", "text/plain", "", "b/x", "a/x"})

	assert.Equal(t, []string{"application/pdf", "text/plain"}, compatible)
	assert.Equal(t, []string{"a/x", "b/x"}, incompatible)
}

func TestDefaultPolicy(t *testing.T) {
	policy := DefaultPolicy()

	assert.True(t, policy.Allows("text/plain"))
	assert.False(t, policy.Allows("application/pdf"))
	assert.Equal(t, []string{"text/plain"}, policy.Types())
}

func TestZeroPolicyAllowsNothing(t *testing.T) {
	var policy Policy

	compatible, incompatible := policy.Partition([]string{"text/plain"})
	assert.Empty(t, compatible)
	assert.Equal(t, []string{"text/plain"}, incompatible)
	assert.Empty(t, policy.Types())
}

func TestFilter(t *testing.T) {
	inv := testInventory("text/plain", "application/pdf", "text/plain")

	got := Filter(inv, []string{"text/plain"})
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "c", got[1].ID)

	assert.Empty(t, Filter(inv, []string{"image/png"}))
	assert.Empty(t, Filter(inv, nil))
}

func TestSummarize(t *testing.T) {
	inv := testInventory("text/plain", "application/pdf", "text/plain")
	inv.Files[1].Size = remote.UnknownSize

	assert.Equal(t, []TypeSummary{
		{MimeType: "application/pdf", Count: 1, TotalBytes: 0},
		{MimeType: "text/plain", Count: 2, TotalBytes: 200},
	}, Summarize(inv.Files))
}

func TestWriteTypes(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTypes(&buf, []string{"application/pdf", "text/plain"}))
	assert.Equal(t, "application/pdf\ntext/plain\n", buf.String())
}
