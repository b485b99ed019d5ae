package providers

import (
	"github.com/limitswatch/limitswatch/internal/core"
	"github.com/limitswatch/limitswatch/internal/providers/antigravity"
	"github.com/limitswatch/limitswatch/internal/providers/claude"
	"github.com/limitswatch/limitswatch/internal/providers/copilot"
	"github.com/limitswatch/limitswatch/internal/providers/gemini"
)

// All returns one instance of every known integration, wired to the given
// secret store.
func All(store core.SecretStore) []core.Provider {
	return []core.Provider{
		copilot.New(store),
		claude.New(store),
		gemini.New(),
		antigravity.New(),
	}
}
