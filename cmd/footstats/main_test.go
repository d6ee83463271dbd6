package main

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// TestHelperProcess is a subprocess entrypoint used by tests.
//
// This pattern allows tests to execute main() and observe:
//   - process exit codes (including os.Exit),
//   - stdout/stderr output,
//
// without terminating the parent "go test" process.
//
// The parent test runs the current test binary with:
//
//	-test.run=TestHelperProcess
//
// and sets GO_WANT_HELPER_PROCESS=1.
//
// Any arguments after a literal "--" are treated as CLI args for the command.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}

	args := os.Args
	i := 0
	for ; i < len(args); i++ {
		if args[i] == "--" {
			break
		}
	}
	if i < len(args) {
		os.Args = append([]string{args[0]}, args[i+1:]...)
	} else {
		os.Args = []string{args[0]}
	}

	main()
	os.Exit(0)
}

// runCmd executes the command's main() in a subprocess and returns the
// captured stdout, stderr, and the process exit code.
func runCmd(t *testing.T, args ...string) (stdout, stderr string, exitCode int) {
	t.Helper()

	cmdArgs := []string{"-test.run=TestHelperProcess", "--"}
	cmdArgs = append(cmdArgs, args...)

	cmd := exec.Command(os.Args[0], cmdArgs...)
	cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1")

	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	err := cmd.Run()
	stdout = outBuf.String()
	stderr = errBuf.String()

	if err == nil {
		return stdout, stderr, 0
	}
	if ee, ok := err.(*exec.ExitError); ok {
		return stdout, stderr, ee.ExitCode()
	}
	t.Fatalf("unexpected run error: %T: %v", err, err)
	return "", "", 1
}

// writeConfig drops a pipeline config into a temp dir and returns its
// path. The store root lands next to it.
func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "pipeline.json")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestValidateFlagAcceptsGoodConfig(t *testing.T) {
	t.Parallel()

	cfgPath := writeConfig(t, `{
		"competition": {"id": "MLS1", "season": "2024"},
		"league": {"name": "major league soccer"}
	}`)

	stdout, stderr, code := runCmd(t, "-config", cfgPath, "-validate")
	if code != 0 {
		t.Fatalf("exit = %d\nstderr:\n%s\nstdout:\n%s", code, stderr, stdout)
	}
	if !strings.Contains(stderr, "configuration is valid") {
		t.Fatalf("stderr = %q", stderr)
	}
}

func TestValidateFlagRejectsBadConfig(t *testing.T) {
	t.Parallel()

	// No competition id; the validator must name the offending path.
	cfgPath := writeConfig(t, `{"league": {"name": "major league soccer"}}`)

	_, stderr, code := runCmd(t, "-config", cfgPath, "-validate")
	if code != 1 {
		t.Fatalf("exit = %d, want 1\nstderr:\n%s", code, stderr)
	}
	if !strings.Contains(stderr, "competition.id") {
		t.Fatalf("stderr = %q", stderr)
	}
}

func TestMissingConfigFile(t *testing.T) {
	t.Parallel()

	_, stderr, code := runCmd(t, "-config", filepath.Join(t.TempDir(), "absent.json"))
	if code != 1 {
		t.Fatalf("exit = %d, want 1", code)
	}
	if !strings.Contains(stderr, "open config") {
		t.Fatalf("stderr = %q", stderr)
	}
}

func TestUnknownCategoryFlag(t *testing.T) {
	t.Parallel()

	root := filepath.Join(t.TempDir(), "data")
	cfgPath := writeConfig(t, fmt.Sprintf(`{
		"competition": {"id": "MLS1"},
		"league": {"name": "major league soccer"},
		"store": {"backend": "fs", "options": {"root": %q}}
	}`, root))

	_, stderr, code := runCmd(t, "-config", cfgPath, "-categories", "mystery")
	if code != 1 {
		t.Fatalf("exit = %d, want 1\nstderr:\n%s", code, stderr)
	}
	if !strings.Contains(stderr, "mystery") {
		t.Fatalf("stderr = %q", stderr)
	}
}

// TestRunClubProfiles drives the binary end to end against a stub API:
// fetch, raw dump, flat file and summary line, all through main().
func TestRunClubProfiles(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/competitions/MLS1/clubs" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"id": "MLS1", "name": "Major League Soccer", "seasonId": "2024",
			"clubs": [
				{"id": "69261", "name": "Inter Miami CF"},
				{"id": "8816", "name": "Los Angeles FC"}
			],
			"updatedAt": "2024-11-10T08:30:00Z"
		}`)
	}))
	defer srv.Close()

	root := filepath.Join(t.TempDir(), "data")
	cfgPath := writeConfig(t, fmt.Sprintf(`{
		"api": {"base_url": %q},
		"competition": {"id": "MLS1", "season": "2024"},
		"league": {"name": "major league soccer"},
		"store": {"backend": "fs", "options": {"root": %q}}
	}`, srv.URL, root))

	stdout, stderr, code := runCmd(t, "-config", cfgPath, "-categories", "club_profiles")
	if code != 0 {
		t.Fatalf("exit = %d\nstderr:\n%s\nstdout:\n%s", code, stderr, stdout)
	}
	if !strings.Contains(stderr, "category=club_profiles records=1 rows=2") {
		t.Fatalf("no summary line in stderr:\n%s", stderr)
	}

	for _, prefix := range []string{"raw_data", "transformed_data"} {
		dir := filepath.Join(root, prefix, "club_profiles")
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) != 1 {
			t.Fatalf("%s: entries=%v err=%v", dir, entries, err)
		}
	}
}
