// Package gateway orchestrates the missionlink-gateway server components.
//
// # Overview
//
// The gateway owns the account store, the directory backend behind the
// retrieval tools, the model client, the orchestration loop, the audit
// recorder and the HTTP server. New builds everything from a Config; Run
// serves until its context is canceled and then shuts down gracefully.
//
// # HTTP API
//
//	POST /api/auth/login   email or nickname + password -> session token (and cookie)
//	POST /api/ai/chat      authorized + admitted chat, streamed as SSE
//	GET  /api/logs         the caller's own chat logs (?limit, ?status)
//	GET  /api/tools        retrieval tools with their input schemas
//	GET  /health           liveness
//	GET  /health/ready     tools registered and directory reachable
//
// The chat endpoint rejects before streaming: 401 without a valid session,
// 403 for a missing or non-admitted account, 400 for a malformed payload.
// Once streaming starts the status is 200 and failures arrive as an error
// event.
//
// # SSE Event Types
//
//	started      {"request_id": "...", "warning": "..."}
//	text         {"text": "..."}
//	tool_use     {"id", "name", "input_json"}
//	tool_result  {"id", "name", "output", "is_error"}
//	done         {"full_response": "...", "status": "success|truncated"}
//	error        {"error": "..."}
//
// Concatenating every text event yields full_response.
//
// # Shutdown
//
// Shutdown stops the HTTP server first so in-flight chats queue their audit
// records, then drains the recorder, then closes the directory and store.
package gateway
