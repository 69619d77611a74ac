// Package studio turns a free-form user request into an ordered list of
// generative tasks and runs them one after another.
//
// A turn flows through three parts:
//
//   - Dispatcher classifies the request into Tasks using a remote model.
//     Classification never fails: malformed or unreachable classifier output
//     degrades to a single Chat task.
//   - Executor runs one Task against the matching capability (chat, search,
//     image generation and editing, video generation, speech) and returns a
//     uniform Output.
//   - Orchestrator drives the turn, threads text output into the next task
//     when it asks for PreviousResult, and emits Records to a Sink as soon as
//     each one is ready.
//
// Assistant wraps an Orchestrator with conversation persistence, a per-session
// turn gate and the credential gate used by the CLI and the websocket server.
package studio
