package repository

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	git "github.com/go-git/go-git/v5"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/gobwas/glob"

	"github.com/NadeeshaMedagama/rag-milvus-vision-pipeline/internal/models"
	"github.com/NadeeshaMedagama/rag-milvus-vision-pipeline/internal/rag/interfaces"
	"github.com/NadeeshaMedagama/rag-milvus-vision-pipeline/pkg/logger"
)

// GitSource acquires a remote git repository with a shallow clone and
// enumerates the markdown documents it contains.
type GitSource struct {
	token  string
	ignore []glob.Glob
	log    *logger.Logger

	// url is remembered from the last Acquire so listed documents carry
	// their origin. One GitSource serves one pipeline run at a time.
	url string
}

// NewGitSource creates a source. token may be empty for public
// repositories; ignorePatterns are glob patterns matched against
// repository-relative paths (".git/**" is always excluded).
func NewGitSource(token string, ignorePatterns []string, log *logger.Logger) (*GitSource, error) {
	ignore := make([]glob.Glob, 0, len(ignorePatterns))
	for _, pattern := range ignorePatterns {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid ignore pattern %q: %w", pattern, err)
		}
		ignore = append(ignore, g)
	}
	return &GitSource{token: token, ignore: ignore, log: log}, nil
}

// Acquire clones the repository into a temporary directory and returns its
// path. An empty URL is a no-op returning an empty path.
func (s *GitSource) Acquire(ctx context.Context, url string) (string, error) {
	if strings.TrimSpace(url) == "" {
		s.log.Info("No repository URL provided - skipping repository cloning")
		return "", nil
	}

	dir, err := os.MkdirTemp("", "rag_repo_")
	if err != nil {
		return "", fmt.Errorf("failed to create temp dir: %w", err)
	}

	opts := &git.CloneOptions{
		URL:   url,
		Depth: 1,
	}
	if s.token != "" {
		opts.Auth = &githttp.BasicAuth{Username: "git", Password: s.token}
	}

	s.log.Info(fmt.Sprintf("Cloning repository: %s", url))
	if _, err := git.PlainCloneContext(ctx, dir, false, opts); err != nil {
		_ = os.RemoveAll(dir)
		return "", fmt.Errorf("failed to clone repository: %w", err)
	}

	s.url = url
	s.log.Info(fmt.Sprintf("Repository cloned to: %s", dir))
	return dir, nil
}

// ListDocuments walks the acquired working copy and returns one Document per
// markdown file, with repository-relative paths. An empty local path yields
// no documents.
func (s *GitSource) ListDocuments(ctx context.Context, localPath string) ([]models.Document, error) {
	if strings.TrimSpace(localPath) == "" {
		return nil, nil
	}

	var documents []models.Document
	err := filepath.WalkDir(localPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.EqualFold(filepath.Ext(path), ".md") {
			return nil
		}

		rel, err := filepath.Rel(localPath, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		for _, g := range s.ignore {
			if g.Match(rel) {
				return nil
			}
		}

		content, err := os.ReadFile(path)
		if err != nil {
			// A single unreadable file does not abort the walk.
			s.log.Warn(fmt.Sprintf("Error reading file %s: %v", path, err))
			return nil
		}

		info, err := d.Info()
		var size int64
		if err == nil {
			size = info.Size()
		}

		documents = append(documents, models.Document{
			Content: string(content),
			Path:    rel,
			Origin:  s.url,
			Kind:    models.KindMarkdown,
			Metadata: models.Metadata{
				"file_size": models.Int(size),
				"file_name": models.String(filepath.Base(path)),
			},
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk repository %s: %w", localPath, err)
	}

	s.log.Info(fmt.Sprintf("Found %d markdown files", len(documents)))
	return documents, nil
}

// Release removes the cloned working copy. An empty path is a no-op.
func (s *GitSource) Release(localPath string) error {
	if strings.TrimSpace(localPath) == "" {
		return nil
	}
	if err := os.RemoveAll(localPath); err != nil {
		return fmt.Errorf("failed to clean up repository at %s: %w", localPath, err)
	}
	s.log.Info(fmt.Sprintf("Cleaned up repository at: %s", localPath))
	return nil
}

// compile-time check to ensure GitSource implements the RepositorySource interface
var _ interfaces.RepositorySource = (*GitSource)(nil)
