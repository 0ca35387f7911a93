package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// RepoDetails holds the repository metadata the summarizer endpoint reports
type RepoDetails struct {
	Owner         string `json:"owner"`
	Repo          string `json:"repo"`
	Stars         int    `json:"stars"`
	LatestVersion string `json:"latest_version"`
	ReadmeContent string `json:"-"`
	WebsiteURL    string `json:"website_url"`
	License       string `json:"license"`
}

// GitHubService fetches repository metadata and README content from the
// GitHub REST API
type GitHubService struct {
	token      string
	baseURL    string
	httpClient *http.Client
}

// NewGitHubService creates a new GitHub service. The token is optional;
// unauthenticated requests work within GitHub's lower rate limits.
func NewGitHubService(baseURL, token string) *GitHubService {
	return &GitHubService{
		token:   token,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: time.Second * 30,
		},
	}
}

// ParseRepoURL extracts owner and repo from a GitHub repository URL
func ParseRepoURL(githubURL string) (string, string, error) {
	trimmed := strings.TrimPrefix(githubURL, "https://github.com/")
	if trimmed == githubURL {
		return "", "", ErrInvalidRepoURL
	}
	trimmed = strings.TrimSuffix(trimmed, ".git")
	trimmed = strings.TrimSuffix(trimmed, "/")

	parts := strings.Split(trimmed, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", ErrInvalidRepoURL
	}
	return parts[0], parts[1], nil
}

// GetRepoDetails fetches repository metadata, README content and the latest
// release tag. Metadata and README failures are fatal; a missing release
// falls back to the tag list, then to a placeholder.
func (s *GitHubService) GetRepoDetails(ctx context.Context, githubURL string) (*RepoDetails, error) {
	owner, repo, err := ParseRepoURL(githubURL)
	if err != nil {
		return nil, err
	}

	var (
		wg         sync.WaitGroup
		meta       repoMetadata
		readme     string
		release    releaseResponse
		metaErr    error
		readmeErr  error
		releaseErr error
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		metaErr = s.getJSON(ctx, fmt.Sprintf("/repos/%s/%s", owner, repo), &meta)
	}()
	go func() {
		defer wg.Done()
		readme, readmeErr = s.getRaw(ctx, fmt.Sprintf("/repos/%s/%s/readme", owner, repo))
	}()
	go func() {
		defer wg.Done()
		releaseErr = s.getJSON(ctx, fmt.Sprintf("/repos/%s/%s/releases/latest", owner, repo), &release)
	}()
	wg.Wait()

	if metaErr != nil {
		return nil, metaErr
	}
	if readmeErr != nil {
		return nil, readmeErr
	}

	details := &RepoDetails{
		Owner:         owner,
		Repo:          repo,
		Stars:         meta.StargazersCount,
		ReadmeContent: readme,
		WebsiteURL:    meta.Homepage,
		License:       meta.licenseName(),
		LatestVersion: "No release version found",
	}

	if releaseErr == nil && release.TagName != "" {
		details.LatestVersion = release.TagName
	} else {
		// No releases published; newest tag is the next best thing
		var tags []tagResponse
		if err := s.getJSON(ctx, fmt.Sprintf("/repos/%s/%s/tags", owner, repo), &tags); err == nil && len(tags) > 0 {
			details.LatestVersion = tags[0].Name
		}
	}

	return details, nil
}

// GetReadme fetches only the raw README content for a repository
func (s *GitHubService) GetReadme(ctx context.Context, githubURL string) (string, error) {
	owner, repo, err := ParseRepoURL(githubURL)
	if err != nil {
		return "", err
	}
	return s.getRaw(ctx, fmt.Sprintf("/repos/%s/%s/readme", owner, repo))
}

type repoMetadata struct {
	StargazersCount int    `json:"stargazers_count"`
	Homepage        string `json:"homepage"`
	License         *struct {
		Name   string `json:"name"`
		SpdxID string `json:"spdx_id"`
	} `json:"license"`
}

func (m *repoMetadata) licenseName() string {
	if m.License == nil {
		return "None"
	}
	if m.License.Name != "" {
		return m.License.Name
	}
	if m.License.SpdxID != "" {
		return m.License.SpdxID
	}
	return "Unknown"
}

type releaseResponse struct {
	TagName string `json:"tag_name"`
}

type tagResponse struct {
	Name string `json:"name"`
}

// do executes a GitHub API request and returns the response body
func (s *GitHubService) do(ctx context.Context, path, accept string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", s.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create GitHub request: %w", err)
	}

	req.Header.Set("Accept", accept)
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, &UpstreamError{Service: "github", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &UpstreamError{Service: "github", Status: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &UpstreamError{
			Service: "github",
			Status:  resp.StatusCode,
			Err:     fmt.Errorf("%s: %s", path, strings.TrimSpace(string(body))),
		}
	}

	return body, nil
}

func (s *GitHubService) getJSON(ctx context.Context, path string, out interface{}) error {
	body, err := s.do(ctx, path, "application/vnd.github+json")
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &UpstreamError{Service: "github", Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return nil
}

func (s *GitHubService) getRaw(ctx context.Context, path string) (string, error) {
	body, err := s.do(ctx, path, "application/vnd.github.raw")
	if err != nil {
		return "", err
	}
	return string(body), nil
}
