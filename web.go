package agentgames

import "embed"

// WebFS holds the static assets served under /static/.
//
//go:embed web
var WebFS embed.FS
