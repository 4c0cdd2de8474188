// Package core provides the foundational domain types and interfaces used by
// boardflow. It defines the shared vocabulary for:
//
//   - Stages (pluggable role-specialized analysis units) and their results
//   - Sessions (per-run state containers with node states and event history)
//   - Events (immutable lifecycle records sufficient to rebuild a session)
//   - Handoffs, KPIs, signals and evidence passed between stages
//   - Constraints, conflicts, confidence reports and evaluations
//
// The package intentionally keeps implementation concerns (flow resolution,
// orchestration, scoring, transport) out of scope, exposing small types so the
// higher-level packages can interoperate without import cycles.
package core
