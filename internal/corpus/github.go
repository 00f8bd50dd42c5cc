package corpus

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strings"

	"github.com/gofri/go-github-ratelimit/github_ratelimit"
	"github.com/google/go-github/v81/github"
)

// GitHubLoader fetches markdown documents from a GitHub repository
// directory. Rate limits are handled transparently; an optional token
// raises the authenticated quota.
type GitHubLoader struct {
	client   *github.Client
	owner    string
	repo     string
	basePath string
	logger   *slog.Logger
}

// NewGitHubLoader creates a loader for "owner/repo" rooted at basePath.
func NewGitHubLoader(ownerRepo, basePath, token string, logger *slog.Logger) (*GitHubLoader, error) {
	owner, repo, ok := strings.Cut(ownerRepo, "/")
	if !ok || owner == "" || repo == "" {
		return nil, fmt.Errorf("invalid repository %q, want owner/repo", ownerRepo)
	}

	rateLimiter, err := github_ratelimit.NewRateLimitWaiterClient(nil)
	if err != nil {
		return nil, fmt.Errorf("create rate limiter: %w", err)
	}

	ghClient := github.NewClient(rateLimiter)
	if token != "" {
		ghClient = ghClient.WithAuthToken(token)
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &GitHubLoader{
		client:   ghClient,
		owner:    owner,
		repo:     repo,
		basePath: basePath,
		logger:   logger,
	}, nil
}

// Load fetches every markdown file under basePath, normalized to plain
// text. Results are sorted by file name for a stable corpus fingerprint.
func (l *GitHubLoader) Load(ctx context.Context) ([]Document, error) {
	paths, err := l.listMarkdown(ctx, l.basePath, "")
	if err != nil {
		return nil, fmt.Errorf("list repository files: %w", err)
	}

	docs := make([]Document, 0, len(paths))
	for _, rel := range paths {
		content, rawURL, err := l.fetchFile(ctx, rel)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", rel, err)
		}
		docs = append(docs, Document{
			FileName: rel,
			Source:   rawURL,
			Pages:    []Page{{Number: 0, Text: PlainText([]byte(content))}},
		})
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].FileName < docs[j].FileName })
	l.logger.Info("Loaded corpus from GitHub",
		"repository", l.owner+"/"+l.repo, "count", len(docs))
	return docs, nil
}

// listMarkdown recursively collects .md paths relative to basePath.
func (l *GitHubLoader) listMarkdown(ctx context.Context, fullPath, relativePath string) ([]string, error) {
	_, dirContents, _, err := l.client.Repositories.GetContents(ctx, l.owner, l.repo, fullPath, nil)
	if err != nil {
		return nil, fmt.Errorf("get contents of %s: %w", fullPath, err)
	}

	var files []string
	for _, item := range dirContents {
		if item.Type == nil || item.Name == nil {
			continue
		}
		itemRelPath := path.Join(relativePath, *item.Name)

		switch *item.Type {
		case "file":
			if strings.HasSuffix(*item.Name, ".md") {
				files = append(files, itemRelPath)
			}
		case "dir":
			sub, err := l.listMarkdown(ctx, path.Join(fullPath, *item.Name), itemRelPath)
			if err != nil {
				return nil, err
			}
			files = append(files, sub...)
		}
	}

	return files, nil
}

// fetchFile downloads and decodes a single file.
func (l *GitHubLoader) fetchFile(ctx context.Context, relativePath string) (string, string, error) {
	fullPath := path.Join(l.basePath, relativePath)

	fileContent, _, _, err := l.client.Repositories.GetContents(ctx, l.owner, l.repo, fullPath, nil)
	if err != nil {
		return "", "", err
	}
	if fileContent == nil {
		return "", "", fmt.Errorf("no file content returned for %s", fullPath)
	}

	content, err := base64.StdEncoding.DecodeString(*fileContent.Content)
	if err != nil {
		return "", "", fmt.Errorf("decode content: %w", err)
	}

	rawURL := fmt.Sprintf("https://raw.githubusercontent.com/%s/%s/main/%s", l.owner, l.repo, fullPath)
	return string(content), rawURL, nil
}
