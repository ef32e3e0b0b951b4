package policy

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/saarzint/AI-Agents-Geoferry/internal/modules/conflicts"
	"github.com/saarzint/AI-Agents-Geoferry/internal/modules/reconcile"
)

func TestEmbeddedDefaultMatchesBuiltins(t *testing.T) {
	doc := Default()
	require.Equal(t, conflicts.Default(), doc.Conflicts)
	require.Equal(t, reconcile.DefaultPolicy(), doc.Reconcile)
}

func TestParseKeepsMissingSections(t *testing.T) {
	doc, err := Parse([]byte(`
conflicts:
  window_days: 7
  rules:
    - name: budget
      agents: ["*"]
      field: recommended_budget
`))
	require.NoError(t, err)
	require.Equal(t, 7, doc.Conflicts.WindowDays)
	require.Len(t, doc.Conflicts.Rules, 1)
	require.Equal(t, reconcile.DefaultPolicy(), doc.Reconcile)
}

func TestParseRejectsInvalidPolicy(t *testing.T) {
	_, err := Parse([]byte(`
reconcile:
  stages:
    - { name: A, weight: 50 }
    - { name: B, weight: 10 }
`))
	require.Error(t, err)

	_, err = Parse([]byte("conflicts: [not, a, map]"))
	require.Error(t, err)
}

func TestLoadEmptyPathUsesDefault(t *testing.T) {
	doc, err := Load("")
	require.NoError(t, err)
	require.Equal(t, Default(), doc)
}

func TestStoreReloadKeepsLastGoodPolicy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("conflicts:\n  window_days: 5\n  rules: []\n"), 0o644))

	s, err := NewStore(path, nil)
	require.NoError(t, err)
	require.Equal(t, 5, s.Current().Conflicts.WindowDays)

	var notified []int
	s.OnChange(func(d Document) { notified = append(notified, d.Conflicts.WindowDays) })

	require.NoError(t, os.WriteFile(path, []byte("conflicts:\n  window_days: 9\n  rules: []\n"), 0o644))
	require.NoError(t, s.Reload())
	require.Equal(t, 9, s.Current().Conflicts.WindowDays)

	require.NoError(t, os.WriteFile(path, []byte("conflicts:\n  window_days: -1\n"), 0o644))
	require.Error(t, s.Reload())
	require.Equal(t, 9, s.Current().Conflicts.WindowDays)
	require.Equal(t, []int{9}, notified)
}

func TestStoreWatchPicksUpWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("conflicts:\n  window_days: 5\n  rules: []\n"), 0o644))
	s, err := NewStore(path, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, s.Watch(ctx))

	require.NoError(t, os.WriteFile(path, []byte("conflicts:\n  window_days: 12\n  rules: []\n"), 0o644))
	require.Eventually(t, func() bool {
		return s.Current().Conflicts.WindowDays == 12
	}, 5*time.Second, 20*time.Millisecond)
}
