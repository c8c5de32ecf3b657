package source

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/google/go-github/v80/github"
	"golang.org/x/oauth2"

	"github.com/ctyano/athenz-auth-core/internal/config"
	"github.com/ctyano/athenz-auth-core/internal/core"
	"github.com/ctyano/athenz-auth-core/internal/logging"
	"github.com/ctyano/athenz-auth-core/internal/validation"
)

// GitHubFetcher loads authorization rule files from a GitHub repository.
// Rules live in *.yaml files under the configured path, each carrying a
// top-level "rules" list.
type GitHubFetcher struct {
	cfg config.GitHubSourceConfig
}

func NewGitHubFetcher(cfg config.GitHubSourceConfig) (*GitHubFetcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid GitHub source config: %w", err)
	}
	return &GitHubFetcher{cfg: cfg}, nil
}

var _ Fetcher = (*GitHubFetcher)(nil)

type ruleFile struct {
	Rules []core.Rule `yaml:"rules"`
}

func (f *GitHubFetcher) Fetch(ctx context.Context, logger logging.InternalLogger) ([]core.Rule, error) {
	logger.Info("Starting GitHub source sync for repo %s/%s (ref: %s)", f.cfg.Owner, f.cfg.Repo, f.cfg.Ref)

	gh, err := f.client(ctx)
	if err != nil {
		return nil, fmt.Errorf("building GitHub client: %w", err)
	}

	ref := f.cfg.Ref
	if ref == "" {
		ref = "main"
	}

	logger.Debug("Fetching tree for ref %s...", ref)
	tree, _, err := gh.Git.GetTree(ctx, f.cfg.Owner, f.cfg.Repo, ref, true)
	if err != nil {
		return nil, fmt.Errorf("get tree failed: %w", err)
	}

	var targetFiles []string
	for _, entry := range tree.Entries {
		path := entry.GetPath()

		if entry.GetType() != "blob" {
			continue
		}

		if f.cfg.Path != "" && !strings.HasPrefix(path, f.cfg.Path) {
			continue
		}

		if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
			targetFiles = append(targetFiles, path)
		}
	}
	if len(targetFiles) == 0 {
		logger.Warn("No rule files found in %s @ %s", f.cfg.Path, ref)
		return nil, nil
	}

	// sort targetFiles by name to allow for order-dependent rules
	slices.Sort(targetFiles)

	var allRules []core.Rule
	for i, path := range targetFiles {
		logger.Debug("Downloading %d/%d: %s", i+1, len(targetFiles), path)

		fileContent, _, _, err := gh.Repositories.GetContents(ctx, f.cfg.Owner, f.cfg.Repo, path, &github.RepositoryContentGetOptions{
			Ref: ref,
		})
		if err != nil {
			logger.Warn("Failed to download %s: %v", path, err)
			return nil, fmt.Errorf("download %s: %w", path, err)
		}

		content, err := fileContent.GetContent()
		if err != nil {
			logger.Warn("Failed to decode content of %s: %v", path, err)
			return nil, fmt.Errorf("decode content %s: %w", path, err)
		}

		var file ruleFile
		if err := yaml.Unmarshal([]byte(content), &file); err != nil {
			logger.Error("Failed to parse YAML in %s: %v", path, err)
			return nil, fmt.Errorf("syntax error in %s: %w", path, err)
		}

		allRules = append(allRules, file.Rules...)
		logger.Debug("Loaded %s, found %d rules", path, len(file.Rules))
	}

	validated, err := validation.ValidateRules(allRules)
	if err != nil {
		return nil, fmt.Errorf("validating fetched rules: %w", err)
	}

	logger.Info("Fetch complete. Total rules loaded: %d", len(validated))
	return validated, nil
}

func (f *GitHubFetcher) client(ctx context.Context) (*github.Client, error) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: f.cfg.Token})
	httpClient := oauth2.NewClient(ctx, ts)

	gh := github.NewClient(httpClient)
	if f.cfg.ServerURL != "" {
		var err error
		gh, err = gh.WithEnterpriseURLs(f.cfg.ServerURL, f.cfg.ServerURL)
		if err != nil {
			return nil, err
		}
	}
	return gh, nil
}
