package mcpserver

import (
	"github.com/mark3labs/mcp-go/mcp"
)

func createIngestRepositoryTool() mcp.Tool {
	return mcp.NewTool("ingest_repository",
		mcp.WithDescription("Materialize a Git repository, scan its files, embed and insert them into the vector store"),
		mcp.WithString("repo_url",
			mcp.Required(),
			mcp.Description("Git remote URL to clone or fetch"),
		),
		mcp.WithString("reference",
			mcp.Description("Branch, tag, or commit to check out (default: the repository's default branch)"),
		),
		mcp.WithArray("subdirs",
			mcp.WithStringItems(),
			mcp.Description("Restrict scanning to these subdirectories (default: the whole tree)"),
		),
		mcp.WithBoolean("force",
			mcp.Description("Reprocess every file even if its fingerprint matches the stored one"),
		),
	)
}

func createListRepositoriesTool() mcp.Tool {
	return mcp.NewTool("list_repositories",
		mcp.WithDescription("List every repository recorded in the registry, as of the last completed write"),
	)
}

func createRemoveRepositoryTool() mcp.Tool {
	return mcp.NewTool("remove_repository",
		mcp.WithDescription("Remove a repository from the registry and, optionally, its rows from the vector store"),
		mcp.WithString("repo_identifier",
			mcp.Required(),
			mcp.Description("The repository's registry identifier (its ingest URL)"),
		),
		mcp.WithBoolean("cascade",
			mcp.Description("Also delete every vector-store row for this repository (default: false)"),
		),
	)
}

func createUpdateRepositoryTool() mcp.Tool {
	return mcp.NewTool("update_repository",
		mcp.WithDescription("Re-sync a registered repository, optionally at a new reference, and re-ingest changed files"),
		mcp.WithString("repo_identifier",
			mcp.Required(),
			mcp.Description("The repository's registry identifier (its ingest URL)"),
		),
		mcp.WithString("new_reference",
			mcp.Description("Branch, tag, or commit to move to (default: keep the current reference)"),
		),
	)
}

func createSearchDocumentsTool() mcp.Tool {
	return mcp.NewTool("search_documents",
		mcp.WithDescription("Nearest-neighbor search over ingested documents by embedding similarity"),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Natural-language query text to embed and search for"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum results to return (default: 10)"),
		),
		mcp.WithString("repository_url",
			mcp.Description("Restrict results to this repository"),
		),
		mcp.WithString("language",
			mcp.Description("Restrict results to this language hint"),
		),
	)
}

func createGetStatsTool() mcp.Tool {
	return mcp.NewTool("get_stats",
		mcp.WithDescription("Report document count, distinct repository count, table name, and embedding dimension"),
	)
}

func createGetConfigTool() mcp.Tool {
	return mcp.NewTool("get_config",
		mcp.WithDescription("Return the effective configuration, with credentials redacted"),
	)
}

func createVerifyDatabaseTool() mcp.Tool {
	return mcp.NewTool("verify_database",
		mcp.WithDescription("Check that the vector table exists and its stored embedding dimension matches configuration"),
	)
}
