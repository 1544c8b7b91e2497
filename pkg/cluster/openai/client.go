// Package openai implements cluster.Clusterer on the OpenAI chat
// completion API. Responses are parsed leniently: model output is run
// through a JSON repair pass before it is rejected as malformed.
package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/starchart-viz/starchart/pkg/cluster"
	"github.com/starchart-viz/starchart/pkg/errors"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gpt-4o-mini"

// Low temperature keeps groupings stable across runs of the same document.
const clusterTemperature = 0.2

const systemPrompt = `You group the key concepts of a document into named thematic clusters called constellations. Respond with JSON only, no prose, using this shape:
{"constellations": [{"name": "...", "description": "...", "concepts": ["...", "..."]}]}
Every concept you list must be copied verbatim from the provided concept list. Each constellation needs at least three concepts. Names are short noun phrases.`

// Client calls the OpenAI chat completion API to propose constellations.
//
// A Client should be created with NewClient.
type Client struct {
	model string
	chat  *openai.Client
}

// Params configures a Client. BaseURL is optional and supports
// OpenAI-compatible endpoints; Model defaults to DefaultModel.
type Params struct {
	APIKey  string
	BaseURL string
	Model   string
}

// NewClient builds a Client. An empty API key yields a nil client, which
// callers treat as "clustering disabled".
func NewClient(params Params) *Client {
	if params.APIKey == "" {
		return nil
	}
	opts := []option.RequestOption{option.WithAPIKey(params.APIKey)}
	if params.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(params.BaseURL))
	}
	client := openai.NewClient(opts...)

	model := params.Model
	if model == "" {
		model = DefaultModel
	}
	return &Client{model: model, chat: &client}
}

// Cluster implements cluster.Clusterer.
func (c *Client) Cluster(ctx context.Context, req cluster.Request) (*cluster.Response, error) {
	body := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(buildPrompt(req)),
		},
		Temperature: openai.Float(clusterTemperature),
	}

	completion, err := c.chat.Chat.Completions.New(ctx, body)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeClusteringUnavailable, err, "chat completion request failed")
	}
	if len(completion.Choices) == 0 {
		return nil, errors.New(errors.ErrCodeMalformedClustering, "completion returned no choices")
	}

	var resp cluster.Response
	if err := unmarshalLenient(completion.Choices[0].Message.Content, &resp); err != nil {
		return nil, errors.Wrap(errors.ErrCodeMalformedClustering, err, "cannot parse clustering response")
	}
	return &resp, nil
}

// buildPrompt renders the bounded document context into the user message.
func buildPrompt(req cluster.Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Document: %s (category: %s)\n\n", req.Title, req.Category)

	b.WriteString("Concepts:\n")
	for _, c := range req.TopConcepts {
		fmt.Fprintf(&b, "- %s (layer: %s, frequency: %d)\n", c.Label, c.Layer, c.Frequency)
	}

	if len(req.SampleRelations) > 0 {
		b.WriteString("\nSample relationships:\n")
		for _, r := range req.SampleRelations {
			fmt.Fprintf(&b, "- %s %s %s\n", r.Source, r.Type, r.Target)
		}
	}

	fmt.Fprintf(&b, "\nGroup these concepts into about %d constellations.\n", req.RequestedCount)
	return b.String()
}

// unmarshalLenient parses model output, tolerating code fences, double
// encoding, and repairable JSON defects.
func unmarshalLenient(input string, out any) error {
	input = stripCodeFence(strings.TrimSpace(input))

	if err := json.Unmarshal([]byte(input), out); err == nil {
		return nil
	}

	var asString string
	if err := json.Unmarshal([]byte(input), &asString); err == nil {
		asString = strings.TrimSpace(asString)
		if err := json.Unmarshal([]byte(asString), out); err == nil {
			return nil
		}
		input = asString
	}

	repaired, err := jsonrepair.JSONRepair(input)
	if err != nil {
		return fmt.Errorf("json repair failed: %w", err)
	}
	if err := json.Unmarshal([]byte(repaired), out); err != nil {
		return fmt.Errorf("unmarshal failed after repair: %w", err)
	}
	return nil
}

func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
