// Package instructions writes coding-agent integration files so agents
// discover the review CLI: a Claude Code skill plus permission grants, or a
// usage section in AGENTS.md / .cursorrules for the other tools.
package instructions

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bkyoung/branch-review/internal/domain"
)

// Target identifies a supported coding agent.
type Target string

const (
	TargetClaude   Target = "claude"
	TargetCursor   Target = "cursor"
	TargetCodex    Target = "codex"
	TargetOpencode Target = "opencode"
)

// ParseTarget validates a CLI argument.
func ParseTarget(s string) (Target, error) {
	switch Target(strings.ToLower(strings.TrimSpace(s))) {
	case TargetClaude:
		return TargetClaude, nil
	case TargetCursor:
		return TargetCursor, nil
	case TargetCodex:
		return TargetCodex, nil
	case TargetOpencode:
		return TargetOpencode, nil
	default:
		return "", &domain.ValidationError{
			Message: fmt.Sprintf("unknown init target %q (expected claude, cursor, codex, or opencode)", s),
		}
	}
}

// Init writes the integration files for target under workdir and returns
// human-readable lines describing what happened. Running it twice is safe.
func Init(workdir string, target Target) ([]string, error) {
	switch target {
	case TargetClaude:
		return initClaude(workdir)
	case TargetCursor:
		return appendSection(filepath.Join(workdir, ".cursorrules"), cursorSection)
	case TargetCodex, TargetOpencode:
		return appendSection(filepath.Join(workdir, "AGENTS.md"), agentsSection)
	default:
		return nil, &domain.ValidationError{Message: fmt.Sprintf("unknown init target %q", target)}
	}
}

func initClaude(workdir string) ([]string, error) {
	skillsDir := filepath.Join(workdir, ".claude", "skills")
	if err := os.MkdirAll(skillsDir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", skillsDir, err)
	}

	var messages []string

	skillPath := filepath.Join(skillsDir, "br.md")
	if err := os.WriteFile(skillPath, []byte(claudeSkill), 0o644); err != nil {
		return nil, fmt.Errorf("write skill file: %w", err)
	}
	messages = append(messages, "Created "+skillPath)

	settingsPath := filepath.Join(workdir, ".claude", "settings.json")
	localPath := filepath.Join(workdir, ".claude", "settings.local.json")
	switch {
	case fileExists(settingsPath):
		if err := mergePermissions(settingsPath); err != nil {
			return nil, err
		}
		messages = append(messages, "Merged br permissions into "+settingsPath)
	case fileExists(localPath):
		if err := mergePermissions(localPath); err != nil {
			return nil, err
		}
		messages = append(messages, "Merged br permissions into "+localPath)
	default:
		if err := os.WriteFile(settingsPath, []byte(claudeSettings), 0o644); err != nil {
			return nil, fmt.Errorf("write settings file: %w", err)
		}
		messages = append(messages, "Created "+settingsPath)
	}

	return messages, nil
}

// appendSection creates path with the section, or appends it once. The
// "## br" heading is the idempotency marker.
func appendSection(path, section string) ([]string, error) {
	existing, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		if err := os.WriteFile(path, []byte(section), 0o644); err != nil {
			return nil, fmt.Errorf("write %s: %w", path, err)
		}
		return []string{"Created " + path}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	if strings.Contains(string(existing), sectionHeading) {
		return []string{path + " already contains br instructions"}, nil
	}

	combined := strings.TrimRight(string(existing), "\n") + "\n\n" + section
	if err := os.WriteFile(path, []byte(combined), 0o644); err != nil {
		return nil, fmt.Errorf("update %s: %w", path, err)
	}
	return []string{"Added br section to " + path}, nil
}

// permissions granted to the agent so review commands run unprompted.
var permissions = []string{
	"Bash(br comments*)",
	"Bash(br show*)",
	"Bash(br resolve*)",
	"Bash(br unresolve*)",
	"Bash(br reply*)",
	"Bash(br comment*)",
	"Bash(br delete*)",
}

func mergePermissions(path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read settings file: %w", err)
	}

	var settings map[string]interface{}
	if err := json.Unmarshal(content, &settings); err != nil {
		return fmt.Errorf("parse settings JSON in %s: %w", path, err)
	}

	perms, ok := settings["permissions"].(map[string]interface{})
	if !ok {
		perms = map[string]interface{}{}
		settings["permissions"] = perms
	}
	allow, ok := perms["allow"].([]interface{})
	if !ok {
		allow = []interface{}{}
	}

	present := make(map[string]bool, len(allow))
	for _, entry := range allow {
		if s, ok := entry.(string); ok {
			present[s] = true
		}
	}
	for _, perm := range permissions {
		if !present[perm] {
			allow = append(allow, perm)
		}
	}
	perms["allow"] = allow

	encoded, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if err := os.WriteFile(path, append(encoded, '\n'), 0o644); err != nil {
		return fmt.Errorf("write settings file: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

const sectionHeading = "## br"

const commandReference = "```bash\n" +
	"br comments                      # List all comments\n" +
	"br comments --status open        # List unresolved comments\n" +
	"br comments --format json        # JSON output for parsing\n" +
	"\n" +
	"br show <id>                     # Show a specific comment thread\n" +
	"br resolve <id>                  # Mark comment as resolved\n" +
	"br unresolve <id>                # Reopen a resolved comment\n" +
	"br reply <id> --message \"text\"   # Reply to a comment\n" +
	"br delete <id>                   # Delete a comment\n" +
	"\n" +
	"br comment <file> <start> <end> --message \"text\"  # Add new comment\n" +
	"```\n"

const workflow = "When addressing review comments:\n" +
	"1. List open comments: `br comments --status open`\n" +
	"2. Make the code changes to address each comment\n" +
	"3. Reply explaining what you did: `br reply <id> --message \"Fixed by...\"`\n" +
	"4. Resolve: `br resolve <id>`\n"

const claudeSkill = "# br - Branch Review Comments\n\n" +
	"Manages code review comments via the br CLI. Use when the user asks to check,\n" +
	"address, resolve, or reply to review comments on the current branch.\n\n" +
	"## Commands\n\n" + commandReference + "\n" +
	"## Workflow\n\n" + workflow + "\n" +
	"## Notes\n\n" +
	"- Comments are scoped to repo + branch\n" +
	"- Line numbers refer to source file lines (new/right side of diff)\n" +
	"- The `--author` flag identifies the commenter (defaults to git user)\n"

const claudeSettings = `{
  "$schema": "https://json.schemastore.org/claude-code-settings.json",
  "permissions": {
    "allow": [
      "Bash(br comments*)",
      "Bash(br show*)",
      "Bash(br resolve*)",
      "Bash(br unresolve*)",
      "Bash(br reply*)",
      "Bash(br comment*)",
      "Bash(br delete*)"
    ]
  }
}
`

const agentsSection = sectionHeading + " - Branch Review Comments\n\n" +
	"This project uses `br` for code review comments. Use these commands to manage\n" +
	"review feedback:\n\n" + commandReference + "\n" + workflow

const cursorSection = agentsSection
