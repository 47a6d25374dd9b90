/*
Package domain contains the core domain models for the loom engine.

It defines the static machine definition (Machine, State, Transition), the
event and trail shapes flowing through a run, and the shared Context threaded
through every action invocation. This package is kept pure and free of I/O,
following Hexagonal Architecture principles.

# Key Entities

  - Machine: the immutable definition of states, transitions, and schemas.
  - Transition: a directed edge uniquely identified by its (from, to) pair,
    which doubles as the discriminator every event must carry.
  - Event: a JSON-compatible document carrying the (from, to) discriminator.
  - Trail: the append-only ordered record of transitions taken (and failed
    attempts) for one running instance.
  - Context: the read-mostly shared value carrying registries, defaults, and
    instance housekeeping through every step.
*/
package domain
