package api

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/satchelworks/satchel/internal/payload"
)

func mcpCacheTaskProgress(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		taskID, err := req.RequireString("task_id")
		if err != nil {
			return invalidf("task_id is required"), nil
		}
		progressJSON, err := req.RequireString("progress")
		if err != nil {
			return invalidf("progress is required"), nil
		}

		var progress map[string]any
		if err := json.Unmarshal([]byte(progressJSON), &progress); err != nil {
			return invalidf("progress is not a JSON object: %v", err), nil
		}

		overwrite := req.GetBool("overwrite", false)
		if err := deps.Tasks.PutProgress(taskID, progress, overwrite); err != nil {
			return errResult(err), nil
		}

		return mcpText(payload.OK(map[string]any{
			"task_id":   taskID,
			"overwrite": overwrite,
		})), nil
	}
}

func mcpGetTaskProgress(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		taskID, err := req.RequireString("task_id")
		if err != nil {
			return invalidf("task_id is required"), nil
		}

		progress, err := deps.Tasks.GetProgress(taskID)
		if err != nil {
			return errResult(err), nil
		}

		return mcpText(payload.OK(map[string]any{
			"task_id":  taskID,
			"progress": progress,
		})), nil
	}
}

func mcpCacheCompanyInfo(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		taskID, err := req.RequireString("task_id")
		if err != nil {
			return invalidf("task_id is required"), nil
		}
		company, err := req.RequireString("company")
		if err != nil {
			return invalidf("company is required"), nil
		}
		dataJSON, err := req.RequireString("data")
		if err != nil {
			return invalidf("data is required"), nil
		}

		var data map[string]any
		if err := json.Unmarshal([]byte(dataJSON), &data); err != nil {
			return invalidf("data is not a JSON object: %v", err), nil
		}

		if err := deps.Tasks.PutCompany(taskID, company, data); err != nil {
			return errResult(err), nil
		}

		return mcpText(payload.OK(map[string]any{
			"task_id": taskID,
			"company": company,
		})), nil
	}
}

func mcpGetCompanyInfo(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		taskID, err := req.RequireString("task_id")
		if err != nil {
			return invalidf("task_id is required"), nil
		}
		company, err := req.RequireString("company")
		if err != nil {
			return invalidf("company is required"), nil
		}

		data, err := deps.Tasks.GetCompany(taskID, company)
		if err != nil {
			return errResult(err), nil
		}

		return mcpText(payload.OK(map[string]any{
			"task_id": taskID,
			"company": company,
			"data":    data,
		})), nil
	}
}

func mcpSessionStart(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		userID, err := req.RequireString("user_id")
		if err != nil {
			return invalidf("user_id is required"), nil
		}

		sess, err := deps.Sessions.Start(userID)
		if err != nil {
			return errResult(err), nil
		}

		return mcpText(payload.OK(map[string]any{
			"session_id": sess.SessionID,
			"user_id":    sess.UserID,
			"start_time": sess.SessionMetadata.StartTime,
		})), nil
	}
}

func mcpSessionAppend(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sessionID, err := req.RequireString("session_id")
		if err != nil {
			return invalidf("session_id is required"), nil
		}
		role, err := req.RequireString("role")
		if err != nil {
			return invalidf("role is required"), nil
		}
		content, err := req.RequireString("content")
		if err != nil {
			return invalidf("content is required"), nil
		}

		sess, err := deps.Sessions.Append(sessionID, role, content)
		if err != nil {
			return errResult(err), nil
		}

		if topic := req.GetString("topic", ""); topic != "" {
			if err := deps.Sessions.AddTopic(sessionID, topic); err != nil {
				return errResult(err), nil
			}
		}

		return mcpText(payload.OK(map[string]any{
			"session_id":  sessionID,
			"total_turns": sess.SessionMetadata.TotalTurns,
		})), nil
	}
}

func mcpSessionClose(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sessionID, err := req.RequireString("session_id")
		if err != nil {
			return invalidf("session_id is required"), nil
		}

		sess, err := deps.Sessions.Close(sessionID)
		if err != nil {
			return errResult(err), nil
		}

		return mcpText(payload.OK(map[string]any{
			"session_id":  sessionID,
			"end_time":    sess.SessionMetadata.EndTime,
			"total_turns": sess.SessionMetadata.TotalTurns,
		})), nil
	}
}

func mcpSessionArchive(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sessionID, err := req.RequireString("session_id")
		if err != nil {
			return invalidf("session_id is required"), nil
		}

		if err := deps.Sessions.Archive(sessionID); err != nil {
			return errResult(err), nil
		}

		return mcpText(payload.OK(map[string]any{
			"session_id": sessionID,
			"archived":   true,
		})), nil
	}
}

func mcpSessionDelete(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sessionID, err := req.RequireString("session_id")
		if err != nil {
			return invalidf("session_id is required"), nil
		}

		if err := deps.Sessions.Delete(sessionID); err != nil {
			return errResult(err), nil
		}

		return mcpText(payload.OK(map[string]any{
			"session_id": sessionID,
			"deleted":    true,
		})), nil
	}
}

func mcpCacheSet(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if deps.Cache == nil {
			return unavailable("cache store"), nil
		}

		key, err := req.RequireString("key")
		if err != nil {
			return invalidf("key is required"), nil
		}
		raw, err := req.RequireString("value")
		if err != nil {
			return invalidf("value is required"), nil
		}

		var value any = raw
		if req.GetBool("json", false) {
			var decoded any
			if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
				return invalidf("value is not valid JSON: %v", err), nil
			}
			value = decoded
		}

		ttl := time.Duration(req.GetFloat("ttl_seconds", 0) * float64(time.Second))
		if err := deps.Cache.Set(key, value, ttl); err != nil {
			return errResult(err), nil
		}

		return mcpText(payload.OK(map[string]any{
			"key":         key,
			"ttl_seconds": ttl.Seconds(),
		})), nil
	}
}

func mcpCacheGet(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if deps.Cache == nil {
			return unavailable("cache store"), nil
		}

		key, err := req.RequireString("key")
		if err != nil {
			return invalidf("key is required"), nil
		}

		item, err := deps.Cache.Get(key)
		if err != nil {
			return errResult(err), nil
		}
		value, err := item.Value()
		if err != nil {
			return errResult(err), nil
		}

		return mcpText(payload.OK(map[string]any{
			"key":   key,
			"codec": item.Codec,
			"value": value,
		})), nil
	}
}

func mcpCacheDelete(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if deps.Cache == nil {
			return unavailable("cache store"), nil
		}

		key, err := req.RequireString("key")
		if err != nil {
			return invalidf("key is required"), nil
		}

		if err := deps.Cache.Delete(key); err != nil {
			return errResult(err), nil
		}

		return mcpText(payload.OK(map[string]any{
			"key":     key,
			"deleted": true,
		})), nil
	}
}

func mcpCacheStats(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if deps.Cache == nil {
			return unavailable("cache store"), nil
		}

		stats, err := deps.Cache.Stats()
		if err != nil {
			return errResult(err), nil
		}

		return mcpText(payload.OK(map[string]any{
			"items":       stats.Items,
			"total_bytes": stats.TotalBytes,
			"max_bytes":   stats.MaxBytes,
		})), nil
	}
}
