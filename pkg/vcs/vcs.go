// ABOUTME: Thin git wrapper for document history
// ABOUTME: Commits on save, lists per-file history and restores old revisions

package vcs

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Commit is one entry in a file's history.
type Commit struct {
	Hash    string
	Date    string
	Message string
}

// Repo drives the git checkout that holds the persisted documents. A nil
// Repo is valid and turns every operation into a no-op, so callers in
// unversioned working directories need no special casing.
type Repo struct {
	dir string
}

// Detect returns a Repo when the working directory is a git checkout and
// the git binary is available, nil otherwise.
func Detect(workdir string) *Repo {
	if _, err := os.Stat(filepath.Join(workdir, ".git")); err != nil {
		return nil
	}
	if _, err := exec.LookPath("git"); err != nil {
		return nil
	}
	return &Repo{dir: workdir}
}

// Commit stages a single file and records it with the given message.
// Committing an unchanged file is not an error.
func (r *Repo) Commit(relpath, message string) error {
	if r == nil {
		return nil
	}
	if err := r.run("add", relpath); err != nil {
		return err
	}
	if message == "" {
		message = "updated " + relpath
	}
	err := r.run("commit", "-m", message, "--", relpath)
	if err != nil && strings.Contains(err.Error(), "nothing to commit") {
		return nil
	}
	return err
}

// Log returns the history of a single file, newest first.
func (r *Repo) Log(relpath string) ([]Commit, error) {
	if r == nil {
		return nil, nil
	}
	out, err := r.output("log", "--pretty=format:%H%x09%ad%x09%s", "--date=iso", "--", relpath)
	if err != nil {
		return nil, err
	}
	return parseLog(out), nil
}

// Revert restores a file to the state it had at the given commit and
// records the restore as a new commit.
func (r *Repo) Revert(relpath, hash string) error {
	if r == nil {
		return fmt.Errorf("vcs: working directory is not a git checkout")
	}
	if err := r.run("checkout", hash, "--", relpath); err != nil {
		return err
	}
	return r.Commit(relpath, "reverted "+relpath+" to "+hash)
}

func (r *Repo) run(args ...string) error {
	_, err := r.output(args...)
	return err
}

func (r *Repo) output(args ...string) ([]byte, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = r.dir
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = strings.TrimSpace(out.String())
		}
		return nil, fmt.Errorf("vcs: git %s: %s", args[0], msg)
	}
	return out.Bytes(), nil
}

// parseLog decodes the tab-separated hash, date and subject lines produced
// by the pretty format used in Log.
func parseLog(out []byte) []Commit {
	var commits []Commit
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "\t", 3)
		c := Commit{Hash: parts[0]}
		if len(parts) > 1 {
			c.Date = parts[1]
		}
		if len(parts) > 2 {
			c.Message = parts[2]
		}
		commits = append(commits, c)
	}
	return commits
}
