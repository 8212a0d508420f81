// Package packs provides the in-process tool system used by the orchestration loop.
//
// # Overview
//
// Tools are grouped into packs. Each tool declares a name, a description and
// a JSON-schema parameter contract, and carries a handler that returns text.
// The model sees the definitions; the router executes calls the model makes.
//
// # Architecture
//
//   - Registry: holds every registered tool, rejects name collisions, and is
//     frozen once startup finishes
//   - Router: validates arguments and executes one call with a timeout
//   - Schema: the subset of JSON schema the router enforces
//   - Built-in packs: see internal/builtins
//
// # Tool Routing
//
// When the model calls a tool, Router.Execute:
//
//  1. Looks up the tool by name in the registry
//  2. Validates the arguments against the tool's schema
//  3. Runs the handler under a per-tool timeout, recovering panics
//  4. Returns an Invocation whose Result is always readable text
//
// Unknown tools, invalid arguments, timeouts and handler failures never
// surface as Go errors to the caller. They become an "Error: ..." result so
// the model can explain or recover. Calls are never retried.
//
// # Usage
//
//	registry := packs.NewRegistry(logger)
//	registry.RegisterBuiltinPack(builtins.SchoolPack(dir, time.Now))
//	registry.Freeze()
//	router := packs.NewRouter(packs.RouterConfig{Registry: registry, Logger: logger})
//
//	inv := router.Execute(ctx, call)
package packs
