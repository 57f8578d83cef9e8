package pipeline

import (
	"context"
	"fmt"

	"github.com/inkhouse/scribe/provider/gemini"
	"github.com/inkhouse/scribe/tools/websearch"
)

var searchTool = gemini.Tool{
	FunctionDeclarations: []gemini.FunctionDeclaration{{
		Name:        searchToolName,
		Description: "Search the web for current information. Returns a ranked list of results.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "The search query.",
				},
			},
			"required": []string{"query"},
		},
	}},
}

// runToolLoop drives the research stage: it sends the conversation with the
// search tool declared, executes any requested search, feeds the result back
// as a synthetic turn, and repeats until the model answers with text. The
// iteration cap bounds a model that keeps demanding tools; crossing it fails
// with ErrToolLoopExceeded. Search backend failures are NOT fatal here: the
// model receives a textual failure result and continues with what it has.
func (o *Orchestrator) runToolLoop(ctx context.Context, system string, contents []gemini.Content) (string, int, error) {
	tools := []gemini.Tool{searchTool}

	rounds := 0
	for {
		reply, err := o.gen.Generate(ctx, system, contents, tools)
		if err != nil {
			return "", rounds, err
		}
		if reply.FunctionCall == nil {
			return reply.Text, rounds, nil
		}

		if rounds >= o.maxRounds {
			return "", rounds, fmt.Errorf("%w: %d capability calls", ErrToolLoopExceeded, rounds+1)
		}
		rounds++

		result := o.invokeTool(ctx, reply.FunctionCall)
		contents = append(contents,
			gemini.Content{Role: "model", Parts: []gemini.Part{{FunctionCall: reply.FunctionCall}}},
			gemini.Content{Role: "user", Parts: []gemini.Part{{FunctionResponse: &gemini.FunctionResponse{
				Name:     reply.FunctionCall.Name,
				Response: map[string]any{"content": result},
			}}}},
		)
	}
}

// invokeTool executes a requested capability and renders its result as text.
// Failures degrade to a textual error so the model can carry on without the
// search material.
func (o *Orchestrator) invokeTool(ctx context.Context, call *gemini.FunctionCall) string {
	if call.Name != searchToolName {
		o.logger.Printf("model requested unknown tool %q", call.Name)
		return fmt.Sprintf("unknown tool: %s", call.Name)
	}
	query, _ := call.Args["query"].(string)
	if query == "" {
		return "search failed: empty query"
	}

	results, err := o.searcher.Search(ctx, query, o.maxResults)
	if err != nil {
		o.logger.Printf("search for %q failed: %v", query, err)
		return fmt.Sprintf("search failed: %v", err)
	}
	return websearch.Summarize(results)
}
