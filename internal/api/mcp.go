package api

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/learnpath/internal/plan"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Generator PathGenerator
	Searcher  CourseSearcher
	Version   string
}

// NewMCPServer creates an MCP server exposing learning path generation and
// course search as tools.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	version := deps.Version
	if version == "" {
		version = "dev"
	}
	s := server.NewMCPServer(
		"learnpath",
		version,
		server.WithToolCapabilities(true),
		server.WithInstructions("learnpath builds personalized day-by-day learning plans from a course catalog."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("create_learning_path",
			mcp.WithDescription("Generate a personalized learning path with phases, courses and a daily plan."),
			mcp.WithString("field", mcp.Description("Field of study, e.g. Python programming"), mcp.Required()),
			mcp.WithString("level", mcp.Description("Proficiency level: Beginner, Intermediate or Advanced"), mcp.Required()),
			mcp.WithNumber("duration", mcp.Description("Duration in months"), mcp.Required()),
			mcp.WithNumber("daily_hours", mcp.Description("Hours available per day"), mcp.Required()),
			mcp.WithArray("interests", mcp.Description("Optional interests, e.g. Web Development")),
		),
		mcpCreateLearningPath(deps),
	)

	s.AddTool(
		mcp.NewTool("search_courses",
			mcp.WithDescription("Search the course catalog and return the most relevant courses."),
			mcp.WithString("query", mcp.Description("Search query"), mcp.Required()),
			mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 5)")),
		),
		mcpSearchCourses(deps),
	)

	return s
}

func mcpCreateLearningPath(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		field, err := req.RequireString("field")
		if err != nil {
			return mcpError("field is required"), nil
		}
		level, err := req.RequireString("level")
		if err != nil {
			return mcpError("level is required"), nil
		}
		duration, err := req.RequireFloat("duration")
		if err != nil {
			return mcpError("duration is required"), nil
		}
		if duration != math.Trunc(duration) {
			return mcpError("duration must be a whole number of months"), nil
		}
		if duration > plan.MaxDurationMonths {
			return mcpError(fmt.Sprintf("duration must be at most %d months, got %g", plan.MaxDurationMonths, duration)), nil
		}
		hours, err := req.RequireFloat("daily_hours")
		if err != nil {
			return mcpError("daily_hours is required"), nil
		}

		preq := plan.Request{
			Field:          field,
			Level:          level,
			DurationMonths: int(duration),
			DailyHours:     hours,
			Interests:      req.GetStringSlice("interests", nil),
		}
		if err := preq.Validate(); err != nil {
			return mcpError(err.Error()), nil
		}

		res := deps.Generator.CreateLearningPath(ctx, preq)
		b, err := json.Marshal(plan.Envelope{LearningPath: res})
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal learning path: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpSearchCourses(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}

		limit := req.GetInt("limit", defaultSearchLimit)
		if limit <= 0 {
			limit = defaultSearchLimit
		}
		limit = min(limit, maxSearchLimit)

		courses := deps.Searcher.Retrieve(ctx, query, limit)
		if len(courses) == 0 {
			return mcpText("[]"), nil
		}

		b, err := json.Marshal(courses)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
