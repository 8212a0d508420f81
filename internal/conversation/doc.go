// Package conversation turns an authorized chat request into a finished,
// audited exchange.
//
// # Message normalization
//
// Clients send messages in several shapes. ParseBody accepts a request body
// with either a "messages" list or a "text" shorthand; Normalize converts
// each entry into a canonical Message{Role, Text}:
//
//   - "parts": [{type, text}, ...]   text parts concatenated in order
//   - "content": [{type, text}, ...] same rule, for content arrays
//   - "content": "..."               used as-is
//   - no content                     empty text
//
// A non-empty parts array wins over content. Order is preserved and nothing
// is merged or deduplicated. Anything else is ErrBadRequest.
//
// # Service
//
// The Service builds the system prompt from the caller's Identity, hands
// the history to the orchestration loop, and queues one audit record when
// the loop returns:
//
//	svc := conversation.New(conversation.Config{
//	    Runner:   loop,
//	    Auditor:  recorder,
//	    Template: tpl,
//	    Location: loc,
//	})
//	result, err := svc.Chat(ctx, conversation.ChatRequest{Identity: id, Messages: msgs}, emit)
//
// The audit record is written for success, truncation, provider failure
// and cancellation alike. Requests rejected before the loop starts are not
// recorded.
package conversation
