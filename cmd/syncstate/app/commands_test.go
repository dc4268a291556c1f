package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/syncstate/internal/versions"
)

// testEnv is a workspace checked out from a repository on disk
type testEnv struct {
	repoDir      string
	workspaceDir string
	configPath   string
	repo         *git.Repository
}

func newTestEnv(t *testing.T, extraConfig string) *testEnv {
	t.Helper()

	env := &testEnv{
		repoDir:      t.TempDir(),
		workspaceDir: t.TempDir(),
	}
	repo, err := git.PlainInit(env.repoDir, false)
	require.NoError(t, err)
	env.repo = repo

	require.NoError(t, os.MkdirAll(filepath.Join(env.workspaceDir, "proj"), 0750))
	require.NoError(t, os.WriteFile(filepath.Join(env.workspaceDir, "proj", "a.txt"), []byte("x\n"), 0600))

	env.configPath = filepath.Join(t.TempDir(), "syncstate.yaml")
	content := fmt.Sprintf("workspace:\n  path: %s\nrepository:\n  path: %s\n%s", env.workspaceDir, env.repoDir, extraConfig)
	require.NoError(t, os.WriteFile(env.configPath, []byte(content), 0600))
	return env
}

// commit writes content to proj/a.txt in the repository and commits it
func (e *testEnv) commit(t *testing.T, content string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Join(e.repoDir, "proj"), 0750))
	require.NoError(t, os.WriteFile(filepath.Join(e.repoDir, "proj", "a.txt"), []byte(content), 0600))
	wt, err := e.repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add("proj/a.txt")
	require.NoError(t, err)
	_, err = wt.Commit("update a.txt", &git.CommitOptions{
		Author: &object.Signature{Name: "test", Email: "test@example.com", When: time.Now()},
	})
	require.NoError(t, err)
}

func (e *testEnv) tag(t *testing.T, name string) {
	t.Helper()

	head, err := e.repo.Head()
	require.NoError(t, err)
	_, err = e.repo.CreateTag(name, head.Hash(), nil)
	require.NoError(t, err)
}

func (e *testEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd := NewRootCmd(nil)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", e.configPath}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func statesOf(t *testing.T, output string) map[string]string {
	t.Helper()

	var rows []stateRow
	require.NoError(t, json.Unmarshal([]byte(output), &rows), output)
	states := make(map[string]string, len(rows))
	for _, r := range rows {
		states[r.Path] = r.State
	}
	return states
}

func TestVersionCmd(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	cmd := NewRootCmd(nil)
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version", "--format", "json"})
	require.NoError(t, cmd.Execute())

	var info versions.Info
	require.NoError(t, json.Unmarshal(out.Bytes(), &info))
	assert.NotEmpty(t, info.Version)
	assert.NotEmpty(t, info.GoVersion)

	cmd = NewRootCmd(nil)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"version", "--format", "toml"})
	assert.Error(t, cmd.Execute())
}

func TestRuntime(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, "criterion: content\nrefresh:\n  concurrency: 2\n  cacheTTL: 1m\n")
	env.commit(t, "x\n")

	ctx := context.Background()
	rt, err := newRuntime(ctx, env.configPath)
	require.NoError(t, err)
	defer rt.Close(ctx)

	assert.NotNil(t, rt.store)
	assert.NotNil(t, rt.repo)
	assert.NotNil(t, rt.persistence)
	assert.NotEmpty(t, rt.subscriberOpts)
	assert.Equal(t, "content", rt.cfg.GetCriterion())

	_, err = newRuntime(ctx, filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to load configuration")
}

func TestIgnoredIncomingPolicy(t *testing.T) {
	t.Parallel()

	_, err := ignoredIncomingPolicy("supervise")
	assert.NoError(t, err)
	_, err = ignoredIncomingPolicy("hide")
	assert.NoError(t, err)
	_, err = ignoredIncomingPolicy("show")
	assert.Error(t, err)
}

func TestTrackAndStatus(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, "")
	env.commit(t, "x\n")

	out, err := env.run(t, "track", "proj")
	require.NoError(t, err, out)
	assert.Contains(t, out, "/proj:")

	out, err = env.run(t, "status", "-o", "json")
	require.NoError(t, err, out)
	assert.Empty(t, statesOf(t, out))

	env.commit(t, "y\n")

	out, err = env.run(t, "status", "-o", "json")
	require.NoError(t, err, out)
	assert.Equal(t, map[string]string{"/proj/a.txt": "incoming/change"}, statesOf(t, out))

	out, err = env.run(t, "status", "--depth", "sideways")
	assert.Error(t, err, out)
}

func TestCompare(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, "criterion: content\n")
	env.commit(t, "x\n")
	env.tag(t, "v1")
	env.commit(t, "y\n")

	out, err := env.run(t, "track", "proj")
	require.NoError(t, err, out)

	// the workspace holds x, which is what v1 has
	out, err = env.run(t, "compare", "v1", "-o", "json")
	require.NoError(t, err, out)
	assert.Empty(t, statesOf(t, out))

	out, err = env.run(t, "compare", "branch:master", "proj", "-o", "json")
	require.NoError(t, err, out)
	assert.Equal(t, map[string]string{"/proj/a.txt": "incoming/change"}, statesOf(t, out))

	_, err = env.run(t, "compare", "when:yesterday")
	assert.ErrorContains(t, err, "invalid tag")
}

func TestMergeLifecycle(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, "")
	env.commit(t, "x\n")
	env.tag(t, "v1")
	out, err := env.run(t, "track", "proj")
	require.NoError(t, err, out)
	env.commit(t, "y\n")
	env.tag(t, "v2")

	out, err = env.run(t, "merge", "start", "v1", "v2", "--name", "release", "-o", "json")
	require.NoError(t, err, out)
	match := regexp.MustCompile(`Started (merge-[0-9a-f-]+) \(release\)`).FindStringSubmatch(out)
	require.Len(t, match, 2, out)
	id := match[1]

	out, err = env.run(t, "merge", "list")
	require.NoError(t, err, out)
	assert.Contains(t, out, id)
	assert.Contains(t, out, "version:v1")

	out, err = env.run(t, "merge", "status", id, "-o", "json")
	require.NoError(t, err, out)
	assert.Equal(t, map[string]string{"/proj/a.txt": "incoming/change"}, statesOf(t, out))

	out, err = env.run(t, "merge", "cancel", id)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Cancelled "+id)

	out, err = env.run(t, "merge", "list")
	require.NoError(t, err, out)
	assert.Contains(t, out, "No merges")

	_, err = env.run(t, "merge", "status", id)
	assert.ErrorContains(t, err, "not found")
}
