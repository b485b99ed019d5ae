package gemini

import (
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/limitswatch/limitswatch/internal/core"
)

var (
	oauthClientIDRe     = regexp.MustCompile(`OAUTH_CLIENT_ID\s*=\s*['"]([^'"]+)['"]`)
	oauthClientSecretRe = regexp.MustCompile(`OAUTH_CLIENT_SECRET\s*=\s*['"]([^'"]+)['"]`)
)

// discoverOAuthClient extracts the OAuth client id and secret from the
// installed Gemini CLI's bundled source. The credential file usually omits
// them, so token refresh has to borrow the CLI's own client registration.
func discoverOAuthClient() (string, string, error) {
	for _, dir := range candidateCLIDirs() {
		id, secret, ok := scanForOAuthClient(dir)
		if ok {
			return id, secret, nil
		}
	}
	return "", "", core.ErrNotConfigured("Gemini CLI installation not found; install it and sign in with `gemini`")
}

// candidateCLIDirs lists places the CLI's bundled JS may live: next to the
// resolved `gemini` binary, plus common global npm install roots.
func candidateCLIDirs() []string {
	var dirs []string

	if bin, err := exec.LookPath("gemini"); err == nil {
		if resolved, err := filepath.EvalSymlinks(bin); err == nil {
			bin = resolved
		}
		// .../node_modules/@google/gemini-cli/dist/index.js lands the
		// binary two levels under the package root.
		dirs = append(dirs, filepath.Dir(filepath.Dir(bin)))
	}

	home, err := os.UserHomeDir()
	if err == nil {
		dirs = append(dirs,
			filepath.Join(home, ".npm-global", "lib", "node_modules", "@google", "gemini-cli"),
			filepath.Join(home, ".nvm", "versions"),
		)
	}
	dirs = append(dirs,
		"/usr/local/lib/node_modules/@google/gemini-cli",
		"/usr/lib/node_modules/@google/gemini-cli",
		"/opt/homebrew/lib/node_modules/@google/gemini-cli",
	)
	return dirs
}

// scanForOAuthClient walks dir looking for a JS file that defines both
// OAUTH_CLIENT_ID and OAUTH_CLIENT_SECRET.
func scanForOAuthClient(dir string) (string, string, bool) {
	var id, secret string
	filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || id != "" {
			return filepath.SkipDir
		}
		if d.IsDir() {
			if d.Name() == ".git" || d.Name() == "test" {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(path, ".js") && !strings.HasSuffix(path, ".mjs") {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		idMatch := oauthClientIDRe.FindSubmatch(data)
		secretMatch := oauthClientSecretRe.FindSubmatch(data)
		if idMatch != nil && secretMatch != nil {
			id = string(idMatch[1])
			secret = string(secretMatch[1])
			return filepath.SkipAll
		}
		return nil
	})
	return id, secret, id != "" && secret != ""
}
