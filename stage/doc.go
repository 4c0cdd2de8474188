// Package stage provides the stage executor and the built-in analysis
// stages: rule-based role stages over a metrics source, and a model-backed
// stage for free-form analysis. All stages implement core.Stage and are
// scheduled by the orchestrator.
package stage
