// Package diagnostics provides host resource checks for long-running fix
// sessions.
//
// The package implements two components:
//
//   - Preflight: checks free memory and free disk space on the repository's
//     filesystem before an agent is launched. An agent run that starts on a
//     starved host tends to die half way through an edit.
//
//   - SystemInfo: a best-effort snapshot of the host (CPU, memory, disk, load
//     and graphics cards) printed by `mendbot doctor` for bug reports.
//
// Thresholds come from the diagnostics section of the mendbot configuration.
package diagnostics
