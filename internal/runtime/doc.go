// Package runtime is the transition engine: per-state queues and control
// loops, callback interception, schema validation with retry feedback, the
// bail-out path, and instance lifecycle. The public surface lives in the
// root loom package; this package owns the moving parts.
package runtime
