// Package main implements the Sadhana MCP stdio server.
// It reads JSON-RPC requests from stdin and writes responses to stdout,
// forwarding tool calls to the Sadhana HTTP API.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/MikeSquared-Agency/Sadhana/internal/mcpclient"
)

// --- JSON-RPC types ---

type jsonrpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type jsonrpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// --- MCP types ---

type initializeResult struct {
	ProtocolVersion string       `json:"protocolVersion"`
	Capabilities    capabilities `json:"capabilities"`
	ServerInfo      serverInfo   `json:"serverInfo"`
}

type capabilities struct {
	Tools *toolsCap `json:"tools,omitempty"`
}

type toolsCap struct{}

type serverInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type toolsListResult struct {
	Tools []toolDef `json:"tools"`
}

type toolDef struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

type toolCallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

type toolCallResult struct {
	Content []contentBlock `json:"content"`
	IsError bool           `json:"isError,omitempty"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// --- Tool definitions ---

var tools = []toolDef{
	{
		Name:        "recommend_asanas",
		Description: "Recommend yoga asanas for a health concern, filtered by the person's age and gender. Returns the matched benefits and the poses with steps and contraindications.",
		InputSchema: mustJSON(`{
			"type": "object",
			"properties": {
				"health_issue": {"type": "string", "description": "Free-text health concern (e.g. lower back stiffness, trouble sleeping)"},
				"age":          {"type": "integer", "description": "Age in years"},
				"gender":       {"type": "string", "description": "male or female"}
			},
			"required": ["health_issue", "age", "gender"]
		}`),
	},
	{
		Name:        "list_benefits",
		Description: "List every health benefit label known to the asana catalog.",
		InputSchema: mustJSON(`{
			"type": "object",
			"properties": {}
		}`),
	},
	{
		Name:        "yoga_quotes",
		Description: "Return random yoga quotes.",
		InputSchema: mustJSON(`{
			"type": "object",
			"properties": {
				"count": {"type": "integer", "description": "Number of quotes (default 3, max 20)"}
			}
		}`),
	},
}

func mustJSON(s string) json.RawMessage {
	var v json.RawMessage
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		panic(fmt.Sprintf("invalid JSON in tool schema: %v", err))
	}
	return v
}

// toolClient is the part of the API client the tools use.
type toolClient interface {
	Recommend(ctx context.Context, req mcpclient.RecommendRequest) (*mcpclient.Recommendation, error)
	Benefits(ctx context.Context) ([]string, error)
	Quotes(ctx context.Context, n int) ([]string, error)
}

// --- Main ---

func main() {
	_ = godotenv.Load()

	baseURL := os.Getenv("SADHANA_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8600"
	}

	client := mcpclient.New(baseURL)
	if err := serve(context.Background(), os.Stdin, os.Stdout, client); err != nil {
		fmt.Fprintln(os.Stderr, "sadhana-mcp:", err)
		os.Exit(1)
	}
}

// serve answers newline-delimited JSON-RPC requests until in is exhausted.
func serve(ctx context.Context, in io.Reader, out io.Writer, client toolClient) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)
	write := func(resp jsonrpcResponse) {
		data, _ := json.Marshal(resp)
		fmt.Fprintf(out, "%s\n", data)
		if f, ok := out.(*os.File); ok {
			_ = f.Sync()
		}
	}

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req jsonrpcRequest
		if err := json.Unmarshal(line, &req); err != nil {
			write(jsonrpcResponse{
				JSONRPC: "2.0",
				ID:      nil,
				Error:   &rpcError{Code: -32700, Message: "Parse error"},
			})
			continue
		}

		// Notifications carry no ID and get no response
		if req.ID == nil {
			continue
		}

		switch req.Method {
		case "initialize":
			write(jsonrpcResponse{
				JSONRPC: "2.0",
				ID:      req.ID,
				Result: initializeResult{
					ProtocolVersion: "2025-11-25",
					Capabilities:    capabilities{Tools: &toolsCap{}},
					ServerInfo:      serverInfo{Name: "sadhana", Version: "0.1.0"},
				},
			})

		case "tools/list":
			write(jsonrpcResponse{
				JSONRPC: "2.0",
				ID:      req.ID,
				Result:  toolsListResult{Tools: tools},
			})

		case "tools/call":
			var params toolCallParams
			if err := json.Unmarshal(req.Params, &params); err != nil {
				write(jsonrpcResponse{
					JSONRPC: "2.0",
					ID:      req.ID,
					Error:   &rpcError{Code: -32602, Message: "Invalid params"},
				})
				continue
			}
			write(jsonrpcResponse{
				JSONRPC: "2.0",
				ID:      req.ID,
				Result:  handleToolCall(ctx, client, params),
			})

		default:
			write(jsonrpcResponse{
				JSONRPC: "2.0",
				ID:      req.ID,
				Error:   &rpcError{Code: -32601, Message: fmt.Sprintf("Method not found: %s", req.Method)},
			})
		}
	}
	return scanner.Err()
}

func handleToolCall(ctx context.Context, client toolClient, params toolCallParams) toolCallResult {
	switch params.Name {
	case "recommend_asanas":
		return handleRecommend(ctx, client, params.Arguments)
	case "list_benefits":
		return handleBenefits(ctx, client)
	case "yoga_quotes":
		return handleQuotes(ctx, client, params.Arguments)
	default:
		return errorResult(fmt.Sprintf("Unknown tool: %s", params.Name))
	}
}

func handleRecommend(ctx context.Context, client toolClient, args json.RawMessage) toolCallResult {
	var req mcpclient.RecommendRequest
	if err := json.Unmarshal(args, &req); err != nil {
		return errorResult("Invalid arguments: " + err.Error())
	}
	if strings.TrimSpace(req.HealthIssue) == "" {
		return errorResult("health_issue is required")
	}
	result, err := client.Recommend(ctx, req)
	if err != nil {
		return errorResult(err.Error())
	}
	if len(result.Poses) == 0 {
		return textResult("No suitable yoga asanas found.")
	}
	return jsonResult(result)
}

func handleBenefits(ctx context.Context, client toolClient) toolCallResult {
	result, err := client.Benefits(ctx)
	if err != nil {
		return errorResult(err.Error())
	}
	return textResult(strings.Join(result, "\n"))
}

func handleQuotes(ctx context.Context, client toolClient, args json.RawMessage) toolCallResult {
	var params struct {
		Count int `json:"count"`
	}
	if args != nil {
		_ = json.Unmarshal(args, &params)
	}
	if params.Count <= 0 {
		params.Count = 3
	}
	result, err := client.Quotes(ctx, params.Count)
	if err != nil {
		return errorResult(err.Error())
	}
	return textResult(strings.Join(result, "\n"))
}

// --- Helpers ---

func jsonResult(v any) toolCallResult {
	data, _ := json.MarshalIndent(v, "", "  ")
	return toolCallResult{
		Content: []contentBlock{{Type: "text", Text: string(data)}},
	}
}

func textResult(text string) toolCallResult {
	return toolCallResult{
		Content: []contentBlock{{Type: "text", Text: text}},
	}
}

func errorResult(msg string) toolCallResult {
	return toolCallResult{
		Content: []contentBlock{{Type: "text", Text: msg}},
		IsError: true,
	}
}
