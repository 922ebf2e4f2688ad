package builtin

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/agentrt/core/pkg/permission"
	"github.com/agentrt/core/pkg/schema"
	"github.com/agentrt/core/pkg/tool"
)

// NetHTTP builds the net.http tool: a single bounded HTTP request used by
// skills that need to reach an allow-listed domain. Scope (which domains
// are reachable) is enforced by the Policy Engine's scope_check, not here;
// this operation trusts that a call reaching it already cleared that gate.
func NetHTTP() *tool.Definition {
	client := &http.Client{Timeout: 20 * time.Second}
	return &tool.Definition{
		Name:        "net.http",
		Category:    "network",
		Description: "Issue a single HTTP request and return status, headers, and body.",
		Input: schema.Object(map[string]*schema.Type{
			"url":    schema.String("absolute http(s) URL to request"),
			"method": schema.String("HTTP method, defaults to GET"),
			"body":   schema.String("optional request body"),
		}, "url"),
		Output: schema.Object(map[string]*schema.Type{
			"status": schema.Number("HTTP status code"),
			"body":   schema.String("response body"),
		}),
		Permissions: []permission.Category{permission.Network},
		Timeout:     25 * time.Second,
		Operation: func(ctx context.Context, input map[string]any, ec *tool.ExecutionContext) (*tool.Result, error) {
			raw, _ := input["url"].(string)
			if raw == "" {
				return &tool.Result{Success: false, Error: "url must be a non-empty string"}, nil
			}
			parsed, err := url.Parse(raw)
			if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
				return &tool.Result{Success: false, Error: "url must be an absolute http(s) URL"}, nil
			}

			method, _ := input["method"].(string)
			if method == "" {
				method = http.MethodGet
			}
			var body io.Reader
			if b, ok := input["body"].(string); ok && b != "" {
				body = strings.NewReader(b)
			}

			req, err := http.NewRequestWithContext(ctx, strings.ToUpper(method), raw, body)
			if err != nil {
				return &tool.Result{Success: false, Error: err.Error()}, nil
			}
			resp, err := client.Do(req)
			if err != nil {
				return &tool.Result{Success: false, Error: err.Error()}, nil
			}
			defer resp.Body.Close()

			const maxBody = 1 << 20
			data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
			if err != nil {
				return &tool.Result{Success: false, Error: err.Error()}, nil
			}

			return &tool.Result{
				Success: resp.StatusCode < 400,
				Output: map[string]any{
					"status": resp.StatusCode,
					"body":   string(data),
				},
			}, nil
		},
	}
}
