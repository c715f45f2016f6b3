package config

// Regression policies.
const (
	RegressionFull    = "full"
	RegressionPassing = "passing"
)

// DefaultConfigYAML is written by `mendbot init`.
const DefaultConfigYAML = `# mendbot configuration
# Values not specified here use built-in defaults.
# Environment variables override this file: MENDBOT_AGENT_NAME, MENDBOT_LOOP_MAX_ITERATIONS, ...

tests:
  # pytest invocation, split on whitespace
  command: uv run pytest
  paths:
    - tests
  suite_timeout: 10m
  test_timeout: 60s

agent:
  # claude, codex, gemini or command
  name: claude
  timeout: 30m
  # resume the previous agent conversation on each attempt
  continue: false

loop:
  # 0 means unlimited
  max_iterations: 0
  delay: 0s
  # full: re-run the whole suite after a candidate fix
  # passing: re-run only previously passing tests plus the target
  regression: full

selection:
  # 0 picks a random seed
  seed: 0

prompt:
  # defaults to prompt-fix.md in the repository when present
  file: ""
  watch: false

state:
  enabled: true
  path: .mendbot/history.db

diagnostics:
  preflight: true
  min_free_memory_mb: 256
  min_free_disk_mb: 512

log:
  level: info
  format: auto
  # extra patterns masked in log output
  redact: []
`
