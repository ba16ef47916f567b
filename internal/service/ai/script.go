package ai

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/zhouzirui/persona-studio/backend/internal/model/persona"
	"github.com/zhouzirui/persona-studio/backend/internal/model/simulation"
)

//go:embed script.yaml
var defaultScript []byte

// Script is the canned reply sequence of the virtual customer.
type Script struct {
	Typing    string   `yaml:"typing"`
	Opening   []string `yaml:"opening"`
	Followups []string `yaml:"followups"`
}

// DefaultScript returns the embedded reply script.
func DefaultScript() Script {
	script, err := ParseScript(defaultScript)
	if err != nil {
		panic(fmt.Sprintf("embedded reply script: %v", err))
	}
	return script
}

// LoadScript reads a reply script from path.
func LoadScript(path string) (Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Script{}, fmt.Errorf("read reply script: %w", err)
	}
	return ParseScript(data)
}

// ParseScript decodes and validates a YAML reply script.
func ParseScript(data []byte) (Script, error) {
	var script Script
	if err := yaml.Unmarshal(data, &script); err != nil {
		return Script{}, fmt.Errorf("decode reply script: %w", err)
	}
	if len(script.Opening) == 0 {
		return Script{}, fmt.Errorf("reply script needs at least one opening reply")
	}
	if len(script.Followups) == 0 {
		return Script{}, fmt.Errorf("reply script needs at least one follow-up reply")
	}
	return script, nil
}

// ScriptedReplier answers from a Script after a fixed delay. Reply
// content does not depend on what the user wrote.
type ScriptedReplier struct {
	script       Script
	openingDelay time.Duration
	replyDelay   time.Duration
}

// NewScriptedReplier returns a replier over script.
func NewScriptedReplier(script Script, openingDelay, replyDelay time.Duration) *ScriptedReplier {
	return &ScriptedReplier{script: script, openingDelay: openingDelay, replyDelay: replyDelay}
}

// Reply returns the opening reply first, then cycles the follow-ups.
func (r *ScriptedReplier) Reply(ctx context.Context, in simulation.ReplyInput) (string, error) {
	delay, lines, index := r.replyDelay, r.script.Followups, in.CustomerTurns()-1
	if in.Opening {
		delay, lines, index = r.openingDelay, r.script.Opening, 0
	}
	if err := pause(ctx, delay); err != nil {
		return "", err
	}
	if index < 0 {
		index = 0
	}
	line := lines[index%len(lines)]
	return strings.ReplaceAll(line, "{name}", replyName(in)), nil
}

func replyName(in simulation.ReplyInput) string {
	if name := strings.TrimSpace(in.PersonaName); name != "" {
		return name
	}
	return persona.DisplayName(in.PersonaLabel)
}

// TypingText is shown while a reply is pending.
func (r *ScriptedReplier) TypingText() string {
	return r.script.Typing
}
