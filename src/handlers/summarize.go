package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/repolens/repolens/src/middleware"
	"github.com/repolens/repolens/src/services"
	"github.com/rs/zerolog/log"
)

// RepoFetcher fetches repository details from the source-control host
type RepoFetcher interface {
	GetRepoDetails(ctx context.Context, githubURL string) (*services.RepoDetails, error)
}

// Summarizer produces a structured summary from README content
type Summarizer interface {
	Summarize(ctx context.Context, readmeContent string) (*services.RepoSummary, error)
}

// SummarizeHandler handles the API-key-authorized summarization endpoint.
// Authorization and usage accounting already happened in the key guard
// middleware by the time this handler runs.
type SummarizeHandler struct {
	github     RepoFetcher
	summarizer Summarizer
}

// NewSummarizeHandler creates a new summarize handler
func NewSummarizeHandler(github RepoFetcher, summarizer Summarizer) *SummarizeHandler {
	return &SummarizeHandler{
		github:     github,
		summarizer: summarizer,
	}
}

// SummarizeRequest represents a summarization request
type SummarizeRequest struct {
	GitHubURL string `json:"githubUrl"`
}

// HandleSummarize handles POST /api/github-summarizer
func (h *SummarizeHandler) HandleSummarize(c *gin.Context) {
	var req SummarizeRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.GitHubURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "No GitHub repository URL provided",
		})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 90*time.Second)
	defer cancel()

	details, err := h.github.GetRepoDetails(ctx, req.GitHubURL)
	if err != nil {
		if errors.Is(err, services.ErrInvalidRepoURL) {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"message": "Invalid GitHub repository URL format",
			})
			return
		}
		log.Error().Err(err).
			Str("request_id", middleware.GetRequestID(c)).
			Str("repo_url", req.GitHubURL).
			Msg("failed to fetch repository details")
		c.JSON(http.StatusBadGateway, gin.H{
			"success": false,
			"message": "Failed to fetch repository details",
		})
		return
	}

	summary, err := h.summarizer.Summarize(ctx, details.ReadmeContent)
	if err != nil {
		log.Error().Err(err).
			Str("request_id", middleware.GetRequestID(c)).
			Str("repo_url", req.GitHubURL).
			Msg("failed to summarize repository")
		c.JSON(http.StatusBadGateway, gin.H{
			"success": false,
			"message": "Failed to summarize repository",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "GitHub repository summarization completed",
		"data": gin.H{
			"repoUrl":       req.GitHubURL,
			"summary":       summary.Summary,
			"coolFacts":     summary.CoolFacts,
			"stars":         details.Stars,
			"latestVersion": details.LatestVersion,
			"websiteUrl":    details.WebsiteURL,
			"license":       details.License,
		},
	})
}
