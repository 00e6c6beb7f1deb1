// Package server exposes the airway records over HTTP.
//
// # Overview
//
// The server package owns the HTTP API and its lifecycle. It is handed a set
// of Stores (memory or SQLite) and serves todos, milestones and the milestone
// overview on top of them.
//
// # HTTP API
//
//   - GET /                           - Service banner
//   - GET /health                     - Liveness check
//   - GET /health/ready               - Readiness check (counts both stores)
//   - GET /datetime                   - Current time in the configured timezone
//   - GET /random-words               - Adjective and noun pair
//   - GET|POST /todos                 - List or create todos
//   - GET|PUT|PATCH|DELETE /todos/{id}
//   - GET|POST /timeline/milestones   - List or create milestones
//   - GET|PUT|PATCH|DELETE /timeline/milestones/{id}
//   - GET /timeline/overview          - Milestone progress relative to today
//   - GET /openapi.json               - OpenAPI 3 description
//   - GET /docs                       - Rendered API guide
//
// Errors use the {"detail": ...} body. Validation failures are 422 with a
// list of {"loc", "msg", "type"} entries.
//
// # Middleware
//
// Every request passes through request id assignment, access logging and
// CORS, in that order. When auth.jwt_secret is set, write routes also
// require a bearer token.
//
// # gRPC
//
// When server.grpc_addr is set, a gRPC server exposes grpc.health.v1.Health
// and server reflection alongside the HTTP API.
//
// # Lifecycle
//
//	stores, err := server.OpenStores(cfg.Database)
//	srv, err := server.New(cfg, stores, logger)
//	err = srv.Run(ctx) // blocks until ctx is canceled
package server
