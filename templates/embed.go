// Package templates embeds the markdown bodies posted to the tracker.
package templates

import "embed"

//go:embed assignment.md progress.md reminder.md reassignment.md
var FS embed.FS
