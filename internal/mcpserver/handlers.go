package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/sourcevault/ragvault/internal/interfaces"
	"github.com/sourcevault/ragvault/internal/models"
	"github.com/sourcevault/ragvault/internal/rerr"
)

// jsonResult marshals v as the tool's text content, the machine-readable
// counterpart to the teacher's markdown-formatted results (these tools
// return structured rows for a calling agent, not prose for a human).
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return errorResult(fmt.Sprintf("failed to encode result: %v", err)), nil
	}
	return &mcp.CallToolResult{Content: []mcp.Content{mcp.NewTextContent(string(data))}}, nil
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewTextContent(msg)},
		IsError: true,
	}
}

func errorResultFor(err error) *mcp.CallToolResult {
	return errorResult(fmt.Sprintf("%s: %v", rerr.KindOf(err), err))
}

// progressSinkFor streams ingest progress to the client via the MCP
// progress notification channel when the request carries a progress
// token, matching the long-running-tool streaming contract. Requests
// without a token (synchronous callers, or clients that don't ask for
// progress) get a nil sink, which the orchestrator treats as a no-op.
func progressSinkFor(ctx context.Context, request mcp.CallToolRequest) interfaces.ProgressSink {
	srv := server.ServerFromContext(ctx)
	if srv == nil || request.Params.Meta == nil || request.Params.Meta.ProgressToken == nil {
		return nil
	}
	token := request.Params.Meta.ProgressToken

	return interfaces.ProgressSinkFunc(func(e models.ProgressEvent) {
		_ = srv.SendNotificationToClient(ctx, "notifications/progress", map[string]any{
			"progressToken": token,
			"progress":      e.Processed,
			"message":       fmt.Sprintf("%s: %d processed, %d inserted, %d skipped", e.State, e.Processed, e.Inserted, e.Skipped),
		})
	})
}

type ingestResponse struct {
	Commit        string   `json:"commit"`
	FilesInserted int      `json:"files_inserted"`
	FilesSkipped  int      `json:"files_skipped"`
	Errors        []string `json:"errors"`
}

func reportToResponse(r *models.IngestReport) ingestResponse {
	errs := r.Errors
	if errs == nil {
		errs = []string{}
	}
	return ingestResponse{Commit: r.Commit, FilesInserted: r.FilesInserted, FilesSkipped: r.FilesSkipped, Errors: errs}
}

func (s *Server) handleIngestRepository() server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		repoURL, err := request.RequireString("repo_url")
		if err != nil || repoURL == "" {
			return errorResult("repo_url is required"), nil
		}
		reference := request.GetString("reference", "")
		subdirs := request.GetStringSlice("subdirs", nil)
		force := request.GetBool("force", false)

		spec := models.IngestSpec{URL: repoURL, Reference: reference, Subdirs: subdirs, Force: force}
		sink := progressSinkFor(ctx, request)

		report, err := s.orchestrator.Ingest(ctx, requestIDFor(ctx, request), spec, s.builderFor, sink)
		if err != nil {
			return errorResultFor(err), nil
		}

		if uerr := s.registry.Upsert(models.RegistryEntry{
			Identifier:     repoURL,
			Reference:      reference,
			ResolvedCommit: report.Commit,
			Subdirs:        subdirs,
			FileCount:      report.FilesInserted,
		}); uerr != nil {
			s.logger.Error().Err(uerr).Str("repo_url", repoURL).Msg("failed to record registry entry after ingest")
		}

		return jsonResult(reportToResponse(report))
	}
}

func (s *Server) handleListRepositories() server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		entries, err := s.registry.List()
		if err != nil {
			return errorResultFor(err), nil
		}
		if entries == nil {
			entries = []models.RegistryEntry{}
		}
		return jsonResult(entries)
	}
}

type removeResponse struct {
	Removed          bool `json:"removed"`
	DocumentsDeleted int  `json:"documents_deleted"`
}

func (s *Server) handleRemoveRepository() server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		identifier, err := request.RequireString("repo_identifier")
		if err != nil || identifier == "" {
			return errorResult("repo_identifier is required"), nil
		}
		cascade := request.GetBool("cascade", false)

		entry, removed, err := s.registry.Remove(identifier)
		if err != nil {
			return errorResultFor(err), nil
		}
		if !removed {
			return jsonResult(removeResponse{Removed: false})
		}

		deleted := 0
		if cascade {
			deleted, err = s.store.Delete(ctx, interfaces.DeletePredicate{RepositoryURL: entry.Identifier})
			if err != nil {
				return errorResultFor(err), nil
			}
		}

		return jsonResult(removeResponse{Removed: true, DocumentsDeleted: deleted})
	}
}

func (s *Server) handleUpdateRepository() server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		identifier, err := request.RequireString("repo_identifier")
		if err != nil || identifier == "" {
			return errorResult("repo_identifier is required"), nil
		}
		newReference := request.GetString("new_reference", "")

		entry, ok, err := s.registry.Get(identifier)
		if err != nil {
			return errorResultFor(err), nil
		}
		reference := newReference
		var subdirs []string
		if ok {
			subdirs = entry.Subdirs
			if reference == "" {
				reference = entry.Reference
			}
		}

		spec := models.IngestSpec{URL: identifier, Reference: reference, Subdirs: subdirs}
		sink := progressSinkFor(ctx, request)

		report, err := s.orchestrator.Ingest(ctx, requestIDFor(ctx, request), spec, s.builderFor, sink)
		if err != nil {
			return errorResultFor(err), nil
		}

		if uerr := s.registry.Upsert(models.RegistryEntry{
			Identifier:     identifier,
			Reference:      reference,
			ResolvedCommit: report.Commit,
			Subdirs:        subdirs,
			FileCount:      report.FilesInserted,
		}); uerr != nil {
			s.logger.Error().Err(uerr).Str("repo_identifier", identifier).Msg("failed to record registry entry after update")
		}

		return jsonResult(reportToResponse(report))
	}
}

type searchResultResponse struct {
	ID           string  `json:"id"`
	RelativePath string  `json:"relative_path"`
	Score        float64 `json:"score"`
	Snippet      string  `json:"snippet"`
}

func (s *Server) handleSearchDocuments() server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := request.RequireString("query")
		if err != nil || query == "" {
			return errorResult("query is required"), nil
		}
		limit := request.GetInt("limit", 10)
		if limit <= 0 {
			limit = 10
		}

		var filter *interfaces.SearchFilter
		repositoryURL := request.GetString("repository_url", "")
		language := request.GetString("language", "")
		if repositoryURL != "" || language != "" {
			filter = &interfaces.SearchFilter{RepositoryURL: repositoryURL, Language: language}
		}

		vecs, err := s.embedder.Embed(ctx, []string{query})
		if err != nil {
			return errorResultFor(err), nil
		}

		results, err := s.store.Search(ctx, vecs[0], limit, filter)
		if err != nil {
			return errorResultFor(err), nil
		}

		out := make([]searchResultResponse, len(results))
		for i, r := range results {
			out[i] = searchResultResponse{ID: r.ID, RelativePath: r.RelativePath, Score: r.Score, Snippet: r.Snippet}
		}
		return jsonResult(out)
	}
}

type statsResponse struct {
	Documents    int    `json:"documents"`
	Repositories int    `json:"repositories"`
	TableName    string `json:"table_name"`
	EmbeddingDim int    `json:"embedding_dim"`
}

func (s *Server) handleGetStats() server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		stats, err := s.store.Stats(ctx)
		if err != nil {
			return errorResultFor(err), nil
		}
		return jsonResult(statsResponse{
			Documents:    stats.Documents,
			Repositories: stats.Repositories,
			TableName:    stats.TableName,
			EmbeddingDim: stats.EmbeddingDim,
		})
	}
}

func (s *Server) handleGetConfig() server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		cfg := s.config()
		return jsonResult(cfg.Redacted())
	}
}

type verifyResponse struct {
	OK            bool `json:"ok"`
	TablePresent  bool `json:"table_present"`
	SchemaOK      bool `json:"schema_ok"`
	EmbeddingDim  int  `json:"embedding_dim"`
}

func (s *Server) handleVerifyDatabase() server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		cfg := s.config()

		stats, err := s.store.Stats(ctx)
		if err != nil {
			return jsonResult(verifyResponse{OK: false, EmbeddingDim: cfg.Database.EmbeddingDim})
		}

		tablePresent := stats.TableName == cfg.Database.TableName
		schemaOK := stats.EmbeddingDim == cfg.Database.EmbeddingDim

		return jsonResult(verifyResponse{
			OK:           tablePresent && schemaOK,
			TablePresent: tablePresent,
			SchemaOK:     schemaOK,
			EmbeddingDim: stats.EmbeddingDim,
		})
	}
}

// requestIDFor derives a correlation id for one tool invocation, used to
// tag progress events so a streaming client can tell concurrent ingests
// apart. Falls back to the tool name when the request carries no id of
// its own.
func requestIDFor(ctx context.Context, request mcp.CallToolRequest) string {
	if request.Params.Meta != nil && request.Params.Meta.ProgressToken != nil {
		return fmt.Sprintf("%v", request.Params.Meta.ProgressToken)
	}
	return request.Params.Name
}
