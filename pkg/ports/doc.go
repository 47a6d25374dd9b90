// Package ports defines the boundaries between the engine core and its
// external collaborators: LLM provider clients, subprocess bridges, machine
// loaders, and trail persistence. Adapters under pkg/adapters implement
// these; the core never imports an adapter.
package ports
