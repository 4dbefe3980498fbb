package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/leonardcser/kvd/internal/protocol"
)

// KV is the subset of the kvd client the tools need.
type KV interface {
	Get(key string) (string, error)
	Put(key, value string) error
	Delete(key string) error
}

type handlerFunc = func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)

// Register adds the kv-get, kv-put and kv-delete tools to s.
func Register(s *server.MCPServer, kv KV) {
	s.AddTool(mcp.NewTool("kv-get",
		mcp.WithDescription(multiline(
			"Reads the value stored under a key in the kvd key-value server",
			"- Returns the value as text",
			"- Reports an error if the key does not exist",
		)),
		mcp.WithString("key", mcp.Required(), mcp.Description("The key to read (at most 256 bytes)")),
	), GetHandler(kv))

	s.AddTool(mcp.NewTool("kv-put",
		mcp.WithDescription(multiline(
			"Stores a value under a key in the kvd key-value server",
			"- Overwrites any existing value",
			"- Keys are limited to 256 bytes and values to 256 KiB",
		)),
		mcp.WithString("key", mcp.Required(), mcp.Description("The key to write")),
		mcp.WithString("value", mcp.Required(), mcp.Description("The value to store")),
	), PutHandler(kv))

	s.AddTool(mcp.NewTool("kv-delete",
		mcp.WithDescription("Deletes a key from the kvd key-value server"),
		mcp.WithString("key", mcp.Required(), mcp.Description("The key to delete")),
	), DeleteHandler(kv))
}

// GetHandler returns the MCP tool handler for "kv-get".
func GetHandler(kv KV) handlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if ctx.Err() != nil {
			return mcp.NewToolResultError(ctx.Err().Error()), nil
		}
		key, err := req.RequireString("key")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		v, err := kv.Get(key)
		if err != nil {
			return mcp.NewToolResultError(describe("get", key, err)), nil
		}
		return mcp.NewToolResultText(v), nil
	}
}

// PutHandler returns the MCP tool handler for "kv-put".
func PutHandler(kv KV) handlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if ctx.Err() != nil {
			return mcp.NewToolResultError(ctx.Err().Error()), nil
		}
		key, err := req.RequireString("key")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		value, err := req.RequireString("value")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if err := kv.Put(key, value); err != nil {
			return mcp.NewToolResultError(describe("put", key, err)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("stored %q (%d bytes)", key, len(value))), nil
	}
}

// DeleteHandler returns the MCP tool handler for "kv-delete".
func DeleteHandler(kv KV) handlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if ctx.Err() != nil {
			return mcp.NewToolResultError(ctx.Err().Error()), nil
		}
		key, err := req.RequireString("key")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if err := kv.Delete(key); err != nil {
			return mcp.NewToolResultError(describe("delete", key, err)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("deleted %q", key)), nil
	}
}

func describe(op, key string, err error) string {
	if errors.Is(err, protocol.ErrKeyNotFound) {
		return fmt.Sprintf("%s %q: key does not exist", op, key)
	}
	return fmt.Sprintf("%s %q: %v", op, key, err)
}

// multiline joins lines with newlines for tool descriptions.
func multiline(lines ...string) string { return strings.Join(lines, "\n") }
