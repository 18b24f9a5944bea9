// Package tools defines the Registry interface the dispatcher
// (pkg/jsonrpc) invokes for tools/list and tools/call. The registry
// itself, the mapping from tool name to host-editor behavior, is
// supplied by the embedder; this package only fixes the shape of that
// contract plus the MCP tool schema types (Tool, ContentItem, ...)
// that shape rides on.
package tools
