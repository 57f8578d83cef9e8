package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/inkhouse/scribe/internal/telemetry"
	"github.com/inkhouse/scribe/provider/gemini"
	"github.com/inkhouse/scribe/tools/websearch"
)

const (
	stageResearch = "research"
	stageWriter   = "writer"

	searchToolName = "web_search"
)

const researchPersona = `You are a research assistant. Your job is to gather the facts needed to
answer the user's request. You may call the web_search tool when the request
needs current or external information. When you have enough material, reply
with a concise research summary of the relevant facts. Do NOT write the
final article yourself; another assistant will do that from your summary.`

const writerPersona = `You are a writer. You are given a user's request and a research summary.
Write the final answer using ONLY the information in the summary and the
request itself. Do not invent facts and do not ask for more information.`

// Generator is the generative-text service consumed by the pipeline.
type Generator interface {
	Generate(ctx context.Context, system string, contents []gemini.Content, tools []gemini.Tool) (gemini.Reply, error)
}

// Orchestrator sequences the research stage and the writer stage. The search
// tool is declared for research only; the writer call declares no tools, so
// the model cannot request one there.
type Orchestrator struct {
	gen        Generator
	searcher   websearch.WebSearcher
	logger     *log.Logger
	telemetry  *telemetry.Telemetry
	maxRounds  int
	maxResults int
}

var pipelineTracer trace.Tracer = otel.Tracer("scribe/internal/pipeline")

// NewOrchestrator creates a pipeline orchestrator with its collaborators
// injected so each is substitutable in tests.
func NewOrchestrator(gen Generator, searcher websearch.WebSearcher, logger *log.Logger, tele *telemetry.Telemetry, maxRounds, maxResults int) *Orchestrator {
	if maxRounds <= 0 {
		maxRounds = 3
	}
	if maxResults <= 0 {
		maxResults = 5
	}
	return &Orchestrator{
		gen:        gen,
		searcher:   searcher,
		logger:     logger,
		telemetry:  tele,
		maxRounds:  maxRounds,
		maxResults: maxResults,
	}
}

// Run executes the two-stage pipeline for one validated conversation.
// Writing never starts before research has terminated with text, and there
// is exactly one writer invocation per request.
func (o *Orchestrator) Run(ctx context.Context, req ConversationRequest) (PipelineResult, error) {
	ctx, span := pipelineTracer.Start(ctx, "pipeline.run")
	defer span.End()

	contents := toContents(req)
	system := researchPersona
	if req.SystemInstruction != "" {
		system += "\n\nCALLER GUIDANCE:\n" + req.SystemInstruction
	}

	start := time.Now()
	researchCtx, researchSpan := pipelineTracer.Start(ctx, "pipeline.research")
	summary, rounds, err := o.runToolLoop(researchCtx, system, contents)
	o.telemetry.ObserveStage(stageResearch, time.Since(start))
	o.telemetry.ObserveToolRounds(rounds)
	if err != nil {
		researchSpan.RecordError(err)
		researchSpan.SetStatus(codes.Error, err.Error())
		researchSpan.End()
		o.telemetry.RecordUpstreamError(stageResearch)
		span.SetStatus(codes.Error, err.Error())
		return PipelineResult{}, &UpstreamError{Stage: stageResearch, Err: err}
	}
	researchSpan.SetAttributes(attribute.Int("research.tool_rounds", rounds))
	researchSpan.End()
	o.logger.Printf("research complete after %d tool round(s)", rounds)

	start = time.Now()
	writerCtx, writerSpan := pipelineTracer.Start(ctx, "pipeline.writer")
	text, err := o.write(writerCtx, req.LastUserText(), summary)
	o.telemetry.ObserveStage(stageWriter, time.Since(start))
	if err != nil {
		writerSpan.RecordError(err)
		writerSpan.SetStatus(codes.Error, err.Error())
		writerSpan.End()
		o.telemetry.RecordUpstreamError(stageWriter)
		span.SetStatus(codes.Error, err.Error())
		return PipelineResult{}, &UpstreamError{Stage: stageWriter, Err: err}
	}
	writerSpan.End()

	return PipelineResult{Text: text, Rounds: rounds}, nil
}

// write runs the single writer invocation. No tools are declared, so the
// only acceptable reply is terminal text.
func (o *Orchestrator) write(ctx context.Context, request, summary string) (string, error) {
	prompt := fmt.Sprintf("USER REQUEST:\n%s\n\nRESEARCH SUMMARY:\n%s", request, summary)
	reply, err := o.gen.Generate(ctx, writerPersona, []gemini.Content{
		{Role: "user", Parts: []gemini.Part{{Text: prompt}}},
	}, nil)
	if err != nil {
		return "", err
	}
	if reply.FunctionCall != nil {
		return "", fmt.Errorf("writer requested capability %q with none declared", reply.FunctionCall.Name)
	}
	return reply.Text, nil
}

func toContents(req ConversationRequest) []gemini.Content {
	contents := make([]gemini.Content, 0, len(req.Turns))
	for _, turn := range req.Turns {
		parts := make([]gemini.Part, 0, len(turn.Parts))
		for _, p := range turn.Parts {
			parts = append(parts, gemini.Part{Text: p.Text})
		}
		contents = append(contents, gemini.Content{Role: turn.Role, Parts: parts})
	}
	return contents
}
