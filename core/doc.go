// Package core defines the shared types of the agent SDK: the per-invocation
// ExecutionContext with its usage accounting and append-only histories, the
// Decision produced by each model call, the Tool and Memory collaborator
// interfaces, and the error taxonomy.
//
// Nothing in core performs I/O; it is the vocabulary the other packages
// (agent, tool, hook, stream, model, memory) speak to each other.
package core
