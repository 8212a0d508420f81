// Package agent runs the bounded model/tool conversation behind every chat request.
//
// # Overview
//
// A Loop sends the conversation history to an llm.Client, streams the
// model's text to the caller as it arrives, and executes any tool calls the
// model makes through a ToolRouter. Tool results are appended to history
// and the model is called again, until a response has no tool calls or the
// step cap is reached.
//
//	loop := agent.NewLoop(agent.Config{
//	    Client:  client,
//	    Tools:   router,
//	    Model:   "gpt-4o",
//	    StepCap: 5,
//	    Logger:  logger,
//	})
//	result, err := loop.Run(ctx, agent.Request{SystemPrompt: p, Messages: msgs}, emit)
//
// # States
//
//	AWAITING_MODEL -> MODEL_RESPONDED -> TOOLS_PENDING -> AWAITING_MODEL
//	                                  \-> DONE
//
// Each pass through AWAITING_MODEL is one Step. Steps are numbered from 0
// and the loop makes at most StepCap model calls.
//
// # Events
//
// The emitter receives, in order:
//
//   - EventText: a chunk of model text
//   - EventToolUse: one per requested call, before any of them run
//   - EventToolResult: one per call, in call order, after all have finished
//   - EventDone: full text and final status (success or truncated)
//   - EventError: the run ended on a provider failure or cancellation
//
// The concatenation of every EventText equals Result.Text.
//
// # Step cap
//
// When the cap is reached the run ends with StatusTruncated. If the model
// never produced text, TruncatedFallback is streamed so the caller is not
// left with an empty answer. Result.Err carries ErrStepLimit for the audit
// record.
//
// # Concurrency
//
// Calls within a step run concurrently, up to MaxParallel at once, and all
// of them finish before the next model call. History is rebuilt per Run and
// cloned into each model request; nothing is shared between requests.
package agent
