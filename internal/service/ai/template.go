package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/zhouzirui/persona-studio/backend/internal/analysis/profile"
	"github.com/zhouzirui/persona-studio/backend/internal/model/message"
	"github.com/zhouzirui/persona-studio/backend/internal/model/persona"
)

// RefineMarker prefixes the note appended by TemplateGenerator.Refine.
const RefineMarker = "✎ 수정 요청 반영"

const defaultLink = "👉 링크: amoremall.com/secret"

// TemplateGenerator produces canned messages after a fixed delay. It is
// the offline stand-in for the LLM backend.
type TemplateGenerator struct {
	generateDelay time.Duration
	refineDelay   time.Duration
}

// NewTemplateGenerator returns a TemplateGenerator with the given
// simulated latencies.
func NewTemplateGenerator(generateDelay, refineDelay time.Duration) *TemplateGenerator {
	return &TemplateGenerator{generateDelay: generateDelay, refineDelay: refineDelay}
}

// Generate renders the goal template for p and req.
func (g *TemplateGenerator) Generate(ctx context.Context, p persona.Persona, req message.Request) (string, error) {
	if err := pause(ctx, g.generateDelay); err != nil {
		return "", err
	}
	return RenderMessage(p, req), nil
}

// Refine appends an applied-instruction marker to the prior text.
func (g *TemplateGenerator) Refine(ctx context.Context, _ persona.Persona, prior message.Generated, instruction string) (string, error) {
	if err := pause(ctx, g.refineDelay); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s\n\n(%s: %s)", prior.Text, RefineMarker, strings.TrimSpace(instruction)), nil
}

// RenderMessage builds the canned promotional text.
func RenderMessage(p persona.Persona, req message.Request) string {
	var b strings.Builder
	subject := req.Subject()

	fmt.Fprintf(&b, "[%s] 메시지 생성 완료 ✨\n\n", req.Goal.DisplayLabel())
	fmt.Fprintf(&b, "안녕하세요, %s님!\n", p.Name)
	if summary := p.Summary(); summary != "" {
		fmt.Fprintf(&b, "%s 성향을 고려하여 제안드립니다.\n", summary)
	}
	b.WriteString("\n")

	switch req.Goal {
	case message.GoalCartReminder:
		fmt.Fprintf(&b, "장바구니에 담아두신 %s, 아직 고민 중이신가요?\n지금 주문하시면 내일 바로 받아보실 수 있어요.\n", subject)
	case message.GoalPromotion:
		fmt.Fprintf(&b, "바쁜 일상 속, 피부 휴식이 필요하지 않으신가요?\n%s 회원 전용 시크릿 할인이 지금 진행 중이에요.\n", subject)
	case message.GoalCampaignEngagement:
		fmt.Fprintf(&b, "%s와 함께하는 브랜드 캠페인에 참여하고\n한정 사은품을 받아보세요.\n", subject)
	case message.GoalSeasonalRecommendation:
		season := req.Season
		if season == "" {
			season = "환절기"
		}
		fmt.Fprintf(&b, "%s, 피부도 변화를 느끼고 있어요.\n지금 꼭 필요한 %s를 추천드려요.\n", season, subject)
	case message.GoalPersonalizedSolution:
		guide := profile.Analyze(p).Guide
		concern := p.Attributes.Text(persona.KeyConcerns)
		if concern == "" {
			concern = guide.PainPoint
		}
		fmt.Fprintf(&b, "%s 때문에 고민이셨다면,\n%s님만을 위한 맞춤 솔루션 %s를 제안드립니다.\n", concern, p.Name, subject)
		fmt.Fprintf(&b, "%s으로 달라진 피부를 느껴보세요.\n", guide.Solution)
	default:
		fmt.Fprintf(&b, "%s를 만나보세요.\n", subject)
	}

	if req.Tone != "" {
		fmt.Fprintf(&b, "(%s 톤)\n", req.Tone)
	}
	b.WriteString("\n")
	b.WriteString(defaultLink)
	return b.String()
}
