// Package defaults provides embedded default assets: prompt templates, file
// boilerplate, project scaffolds and the default config.
package defaults

import "embed"

//go:embed agent_prompt.md
var AgentPrompt string

//go:embed code_prompt.md
var CodePrompt string

//go:embed default_config.toml
var DefaultConfigTOML []byte

// Templates holds per-extension file boilerplate under files/ and project
// scaffolds under scaffold/.
//
//go:embed files scaffold
var Templates embed.FS
