package bank

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/simjay/celor/internal/constraint"
	"github.com/simjay/celor/internal/patch"
	"github.com/simjay/celor/internal/signature"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTemplate() patch.Template {
	return patch.Template{Ops: []patch.Operation{
		{Op: "EnsureReplicas", Args: []patch.Arg{{Name: "replicas", Value: patch.HoleRef{Name: "replicas"}}}},
		{Op: "EnsureLabel", Args: []patch.Arg{
			{Name: "key", Value: patch.Concrete{V: "env"}},
			{Name: "value", Value: patch.HoleRef{Name: "env"}},
		}},
	}}
}

func testHoleSpace() *patch.HoleSpace {
	return patch.NewHoleSpace().Add("replicas", 2, 3, 4, 5).Add("env", "staging", "prod")
}

func testSignature() signature.Signature {
	return signature.New([]string{"policy"}, []string{"bad_replicas_for_prod"}, nil)
}

// A bank that stores an entry and flushes to disk reconstructs an equal
// entry when reloaded via a fresh Bank over the same file.
func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bank.json")
	store := NewFileStore(path)
	b, err := New(store)
	require.NoError(t, err)

	sig := testSignature()
	now := time.Now().Truncate(time.Second)
	learned := []constraint.Constraint{constraint.NewForbiddenTuple([]string{"env", "replicas"}, []any{"prod", 2})}
	assignment := patch.Assignment{"replicas": 2, "env": "staging"}

	b.Store(sig, testTemplate(), testHoleSpace(), learned, assignment, 1, now)
	require.NoError(t, b.Flush())

	reloaded, err := New(NewFileStore(path))
	require.NoError(t, err)
	require.Equal(t, 1, reloaded.Len())

	entry, ok := reloaded.Lookup(sig)
	require.True(t, ok)
	assert.True(t, entry.Signature.Equal(sig))
	assert.Equal(t, testTemplate(), entry.Template)
	assert.Equal(t, testHoleSpace().Names(), entry.HoleSpace.Names())

	// JSON round-trips untyped numbers as float64, so domains and
	// constraint values are compared through a generic encoder rather
	// than against the int-typed fixtures.
	wantReplicas, _ := testHoleSpace().Domain("replicas")
	gotReplicas, _ := entry.HoleSpace.Domain("replicas")
	assert.Equal(t, []any{float64(2), float64(3), float64(4), float64(5)}, gotReplicas)
	assert.Len(t, gotReplicas, len(wantReplicas))
	wantEnv, _ := testHoleSpace().Domain("env")
	gotEnv, _ := entry.HoleSpace.Domain("env")
	assert.Equal(t, wantEnv, gotEnv)

	assert.ElementsMatch(t,
		[]constraint.Constraint{constraint.NewForbiddenTuple([]string{"env", "replicas"}, []any{"prod", float64(2)})},
		entry.LearnedConstraints)
	assert.Equal(t, patch.Assignment{"replicas": float64(2), "env": "staging"}, entry.SuccessfulAssignment)
	assert.Equal(t, 1, entry.SuccessCount)
	assert.Equal(t, 1, entry.CandidatesTried)
	assert.True(t, entry.FirstUsed.Equal(now))
	assert.True(t, entry.LastUsed.Equal(now))
}

// Storing a second time under the same signature merges rather than
// replaces: constraints set-union, assignment updates to latest, counts
// accumulate.
func TestStoreMergesOnRepeatedSignature(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bank.json")
	b, err := New(NewFileStore(path))
	require.NoError(t, err)

	sig := testSignature()
	space := testHoleSpace()
	t1 := time.Now().Add(-time.Hour).Truncate(time.Second)
	t2 := time.Now().Truncate(time.Second)

	c1 := constraint.NewForbiddenTuple([]string{"env", "replicas"}, []any{"prod", 2})
	c2 := constraint.ForbiddenValue{Hole: "replicas", Value: 7}

	b.Store(sig, testTemplate(), space, []constraint.Constraint{c1}, patch.Assignment{"replicas": 3, "env": "staging"}, 2, t1)
	entry := b.Store(sig, testTemplate(), space, []constraint.Constraint{c1, c2}, patch.Assignment{"replicas": 4, "env": "staging"}, 3, t2)

	assert.Equal(t, 1, b.Len())
	assert.Equal(t, 2, entry.SuccessCount)
	assert.Equal(t, 5, entry.CandidatesTried)
	assert.Equal(t, patch.Assignment{"replicas": 4, "env": "staging"}, entry.SuccessfulAssignment)
	assert.ElementsMatch(t, []constraint.Constraint{c1, c2}, entry.LearnedConstraints)
	assert.True(t, entry.FirstUsed.Equal(t1))
	assert.True(t, entry.LastUsed.Equal(t2))
}

// A constraint referencing a hole absent from the stored hole space is
// dropped on merge, per the bank's invariant-merging rule.
func TestStoreDropsConstraintsReferencingAbsentHoles(t *testing.T) {
	b, err := New(NewFileStore(filepath.Join(t.TempDir(), "bank.json")))
	require.NoError(t, err)

	sig := testSignature()
	space := patch.NewHoleSpace().Add("replicas", 2, 3)
	stale := constraint.ForbiddenValue{Hole: "not_a_hole", Value: 1}

	b.Store(sig, testTemplate(), space, []constraint.Constraint{stale}, patch.Assignment{"replicas": 3}, 1, time.Now())
	entry, ok := b.Lookup(sig)
	require.True(t, ok)
	assert.Empty(t, entry.LearnedConstraints)
}

func TestLoadMissingFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist.json")
	b, err := New(NewFileStore(path))
	require.NoError(t, err)
	assert.Equal(t, 0, b.Len())
}

func TestLoadCorruptedFileReturnsErrorButUsableBank(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bank.json")
	require.NoError(t, os.WriteFile(path, []byte("{not valid json"), 0o644))

	b, err := New(NewFileStore(path))
	require.Error(t, err)
	var corrupted *CorruptedError
	require.ErrorAs(t, err, &corrupted)
	assert.Equal(t, 0, b.Len())

	// The bank remains usable: a subsequent store + flush succeeds.
	sig := testSignature()
	b.Store(sig, testTemplate(), testHoleSpace(), nil, patch.Assignment{"replicas": 3, "env": "staging"}, 1, time.Now())
	require.NoError(t, b.Flush())
}

func TestDeleteRemovesEntry(t *testing.T) {
	b, err := New(NewFileStore(filepath.Join(t.TempDir(), "bank.json")))
	require.NoError(t, err)
	sig := testSignature()
	b.Store(sig, testTemplate(), testHoleSpace(), nil, patch.Assignment{"replicas": 3, "env": "staging"}, 1, time.Now())

	assert.True(t, b.Delete(sig))
	assert.False(t, b.Delete(sig))
	assert.Equal(t, 0, b.Len())
}
