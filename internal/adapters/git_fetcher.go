package adapters

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/Perkybeet/wam/internal/core/domain"
)

// GitFetcher implements domain.SourceFetcher: git sources are cloned with
// go-git, local sources are copied into the workspace so a later build never
// mutates the operator's original tree.
type GitFetcher struct {
	logger *slog.Logger
}

// NewGitFetcher builds the fetcher.
func NewGitFetcher(logger *slog.Logger) *GitFetcher {
	return &GitFetcher{logger: logger}
}

// Fetch materializes src into dest. dest is created fresh; any previous
// contents are removed first so a re-fetch cannot mix releases.
func (f *GitFetcher) Fetch(ctx context.Context, src domain.Source, dest string) error {
	if err := os.RemoveAll(dest); err != nil {
		return fmt.Errorf("failed to clear workspace %s: %w", dest, err)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("failed to create workspace parent: %w", err)
	}

	switch src.Kind {
	case domain.SourceGit:
		return f.clone(ctx, src, dest)
	case domain.SourceLocal:
		return f.copyTree(src.Path, dest)
	default:
		return fmt.Errorf("unknown source kind %q", src.Kind)
	}
}

func (f *GitFetcher) clone(ctx context.Context, src domain.Source, dest string) error {
	opts := &git.CloneOptions{
		URL:          src.URL,
		Depth:        1,
		SingleBranch: true,
	}
	if src.Branch != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(src.Branch)
	}
	f.logger.Info("cloning source", slog.String("url", src.URL), slog.String("branch", src.Branch))
	if _, err := git.PlainCloneContext(ctx, dest, false, opts); err != nil {
		return fmt.Errorf("failed to clone %s: %w", src.URL, err)
	}
	return nil
}

// copyTree copies a local source tree, skipping VCS metadata and any
// node_modules left over from local development.
func (f *GitFetcher) copyTree(srcRoot, dest string) error {
	info, err := os.Stat(srcRoot)
	if err != nil {
		return fmt.Errorf("source path %s: %w", srcRoot, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("source path %s is not a directory", srcRoot)
	}

	return filepath.Walk(srcRoot, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(srcRoot, path)
		if err != nil {
			return err
		}
		base := filepath.Base(path)
		if fi.IsDir() && (base == ".git" || base == "node_modules") && rel != "." {
			return filepath.SkipDir
		}
		target := filepath.Join(dest, rel)
		if fi.IsDir() {
			return os.MkdirAll(target, fi.Mode().Perm())
		}
		if !fi.Mode().IsRegular() {
			return nil // sockets, device nodes etc. have no place in a workspace
		}
		return copyFile(path, target, fi.Mode().Perm())
	})
}

func copyFile(src, dst string, perm os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
