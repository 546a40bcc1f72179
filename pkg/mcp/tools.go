package mcp

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
)

// Benchmark tool names.
const (
	toolCalculateFibonacci    = "calculate_fibonacci"
	toolFetchExternalData     = "fetch_external_data"
	toolProcessJSONData       = "process_json_data"
	toolSimulateDatabaseQuery = "simulate_database_query"
)

// Benchmark constraints. Enforced once, at argument decode time.
const (
	fibonacciMax = 40
	delayMsMax   = 5000
)

// FibonacciOutput is the calculate_fibonacci payload.
type FibonacciOutput struct {
	Input      int    `json:"input"`
	Result     int    `json:"result"`
	ServerType string `json:"server_type"`
}

// FetchDataOutput is the fetch_external_data payload.
type FetchDataOutput struct {
	URL            string `json:"url"`
	StatusCode     int    `json:"status_code"`
	ResponseTimeMs int64  `json:"response_time_ms"`
	ServerType     string `json:"server_type"`
}

// ProcessDataOutput is the process_json_data payload.
type ProcessDataOutput struct {
	OriginalKeys    []string               `json:"original_keys"`
	TransformedData map[string]interface{} `json:"transformed_data"`
	ServerType      string                 `json:"server_type"`
}

// DatabaseQueryOutput is the simulate_database_query payload.
type DatabaseQueryOutput struct {
	Query      string `json:"query"`
	DelayMs    int    `json:"delay_ms"`
	Timestamp  string `json:"timestamp"`
	ServerType string `json:"server_type"`
}

// Toolset holds the collaborators shared by the benchmark tool handlers.
// The HTTP client is shared across all sessions; it pools connections and
// applies a per-request timeout, so no external locking is needed.
type Toolset struct {
	httpClient *http.Client
}

// NewToolset creates the benchmark toolset. A nil client gets a default
// with a 10 second timeout, matching the other benchmark servers.
func NewToolset(httpClient *http.Client) (toolset *Toolset) {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}

	toolset = &Toolset{
		httpClient: httpClient,
	}
	return toolset
}

// RegisterAll adds the four benchmark tools to the registry.
func (t *Toolset) RegisterAll(registry *Registry) (err error) {
	for _, tool := range t.tools() {
		err = registry.Register(tool)
		if err != nil {
			err = fmt.Errorf("registering benchmark tools: %w", err)
			return err
		}
	}

	return err
}

// tools returns the benchmark tool definitions.
func (t *Toolset) tools() (tools []*Tool) {
	tools = []*Tool{
		{
			Name:        toolCalculateFibonacci,
			Description: "Computes the Nth Fibonacci number with naive recursion. CPU-bound workload.",
			Schema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"n": {
						Type:        "integer",
						Description: fmt.Sprintf("Index of the Fibonacci number to compute, between 0 and %d", fibonacciMax),
						Minimum:     floatPtr(0),
						Maximum:     floatPtr(fibonacciMax),
					},
				},
				Required: []string{"n"},
			},
			Handler: t.executeFibonacci,
		},
		{
			Name:        toolFetchExternalData,
			Description: "Performs an HTTP GET against an external endpoint and reports status and latency.",
			Schema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"endpoint": {
						Type:        "string",
						Description: "Full URL of the endpoint to fetch",
					},
				},
				Required: []string{"endpoint"},
			},
			Handler: t.executeFetchData,
		},
		{
			Name:        toolProcessJSONData,
			Description: "Recursively upper-cases every string value in a JSON object, preserving structure.",
			Schema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					// No type constraint: non-object input is answered with
					// empty original_keys rather than rejected.
					"data": {
						Description: "JSON value to transform, normally an object",
					},
				},
				Required: []string{"data"},
			},
			Handler: t.executeProcessData,
		},
		{
			Name:        toolSimulateDatabaseQuery,
			Description: "Simulates a database query by sleeping for a configurable delay.",
			Schema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"query": {
						Type:        "string",
						Description: "Query text to echo back",
					},
					"delay_ms": {
						Type:        "integer",
						Description: fmt.Sprintf("Simulated query latency in milliseconds, between 0 and %d", delayMsMax),
						Minimum:     floatPtr(0),
						Maximum:     floatPtr(delayMsMax),
					},
				},
				Required: []string{"query"},
			},
			Handler: t.executeDatabaseQuery,
		},
	}

	return tools
}

// executeFibonacci computes fib(n) recursively. Runs to completion without
// suspension and can starve co-scheduled work at large n.
func (t *Toolset) executeFibonacci(_ context.Context, args map[string]interface{}) (payload interface{}, err error) {
	n, _ := args["n"].(int)

	var fib func(int) int
	fib = func(x int) int {
		if x <= 1 {
			return x
		}
		return fib(x-1) + fib(x-2)
	}

	payload = FibonacciOutput{
		Input:      n,
		Result:     fib(n),
		ServerType: serverType,
	}
	return payload, err
}

// executeFetchData performs an outbound GET through the shared client.
func (t *Toolset) executeFetchData(ctx context.Context, args map[string]interface{}) (payload interface{}, err error) {
	endpoint, _ := args["endpoint"].(string)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		err = fmt.Errorf("building request for %s: %w", endpoint, err)
		return nil, err
	}

	start := time.Now()

	resp, err := t.httpClient.Do(req)
	responseTimeMs := time.Since(start).Milliseconds()

	if err != nil {
		err = fmt.Errorf("fetching %s: %w", endpoint, err)
		return nil, err
	}
	defer resp.Body.Close()

	payload = FetchDataOutput{
		URL:            endpoint,
		StatusCode:     resp.StatusCode,
		ResponseTimeMs: responseTimeMs,
		ServerType:     serverType,
	}
	return payload, err
}

// executeProcessData upper-cases string values throughout the input tree.
func (t *Toolset) executeProcessData(_ context.Context, args map[string]interface{}) (payload interface{}, err error) {
	data, _ := args["data"].(map[string]interface{})

	transformed, _ := transformStrings(data).(map[string]interface{})

	originalKeys := make([]string, 0, len(data))
	for k := range data {
		originalKeys = append(originalKeys, k)
	}
	sort.Strings(originalKeys)

	payload = ProcessDataOutput{
		OriginalKeys:    originalKeys,
		TransformedData: transformed,
		ServerType:      serverType,
	}
	return payload, err
}

// transformStrings walks a decoded JSON tree, upper-casing every string
// value and leaving everything else untouched.
func transformStrings(value interface{}) (result interface{}) {
	switch v := value.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for key, val := range v {
			out[key] = transformStrings(val)
		}
		result = out

	case []interface{}:
		out := make([]interface{}, len(v))
		for i, val := range v {
			out[i] = transformStrings(val)
		}
		result = out

	case string:
		result = strings.ToUpper(v)

	default:
		result = v
	}

	return result
}

// executeDatabaseQuery sleeps for the requested delay without holding a
// worker, then echoes the query with a timestamp.
func (t *Toolset) executeDatabaseQuery(ctx context.Context, args map[string]interface{}) (payload interface{}, err error) {
	query, _ := args["query"].(string)
	delayMs, _ := args["delay_ms"].(int)

	if delayMs > 0 {
		timer := time.NewTimer(time.Duration(delayMs) * time.Millisecond)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			err = fmt.Errorf("simulated query interrupted: %w", ctx.Err())
			return nil, err

		case <-timer.C:
		}
	}

	payload = DatabaseQueryOutput{
		Query:      query,
		DelayMs:    delayMs,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		ServerType: serverType,
	}
	return payload, err
}

// floatPtr is a helper for schema bounds.
func floatPtr(v float64) (p *float64) {
	p = &v
	return p
}
