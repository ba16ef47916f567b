package ai

import (
	"fmt"
	"strings"

	"github.com/zhouzirui/persona-studio/backend/internal/analysis/profile"
	"github.com/zhouzirui/persona-studio/backend/internal/model/message"
	"github.com/zhouzirui/persona-studio/backend/internal/model/persona"
)

// PromptTemplate defines the copywriting guidance for one goal.
type PromptTemplate struct {
	SystemPrompt string
	GoalHints    []string
	ContextRules []string
}

// PromptManager manages prompt templates for the message goals.
type PromptManager struct {
	templates map[message.Goal]*PromptTemplate
}

// NewPromptManager creates a prompt manager with the default templates.
func NewPromptManager() *PromptManager {
	manager := &PromptManager{
		templates: make(map[message.Goal]*PromptTemplate),
	}
	manager.loadDefaultTemplates()
	return manager
}

// GetPromptTemplate returns the template for goal.
func (pm *PromptManager) GetPromptTemplate(goal message.Goal) (*PromptTemplate, error) {
	template, exists := pm.templates[goal]
	if !exists {
		return nil, fmt.Errorf("prompt template not found for goal: %s", goal)
	}
	return template, nil
}

// BuildGenerationPrompt creates the system prompt for a new message.
func (pm *PromptManager) BuildGenerationPrompt(p persona.Persona, req message.Request) string {
	template, err := pm.GetPromptTemplate(req.Goal)
	if err != nil {
		return pm.buildBasicGenerationPrompt(p, req)
	}

	return fmt.Sprintf(`%s

고객 페르소나：
%s

고객 분석：
%s

메시지 목표：%s
추천 상품：%s
%s
목표별 작성 포인트：
- %s

작성 규칙：
- %s`,
		template.SystemPrompt,
		describePersona(p),
		describeGuide(p),
		req.Goal.DisplayLabel(),
		req.Subject(),
		describeOptional(req),
		strings.Join(template.GoalHints, "\n- "),
		strings.Join(template.ContextRules, "\n- "),
	)
}

// BuildRefinePrompt creates the system prompt for revising a message.
func (pm *PromptManager) BuildRefinePrompt(p persona.Persona, req message.Request) string {
	return fmt.Sprintf(`당신은 화장품 브랜드의 CRM 카피라이터입니다. 직전에 작성한 메시지를 고객의 수정 요청에 맞게 다시 작성하세요.

고객 페르소나：
%s

메시지 목표：%s
추천 상품：%s

규칙：
- 상품명과 고객 이름은 반드시 유지합니다.
- 요청되지 않은 내용은 바꾸지 않습니다.
- 수정된 메시지 본문만 출력합니다.`,
		describePersona(p),
		req.Goal.DisplayLabel(),
		req.Subject(),
	)
}

// BuildCustomerPrompt creates the system prompt for the virtual customer.
func (pm *PromptManager) BuildCustomerPrompt(personaLabel string) string {
	return fmt.Sprintf(`당신은 마케팅 메시지를 받은 가상 고객 "%s"입니다.

규칙：
- 실제 고객처럼 짧고 자연스럽게 반응합니다.
- 피부 고민과 성분, 가격에 대해 까다롭게 질문합니다.
- 설득되면 긍정적으로 반응하고, 그렇지 않으면 망설임을 표현합니다.
- 한두 문장으로 답합니다.`, personaLabel)
}

func (pm *PromptManager) buildBasicGenerationPrompt(p persona.Persona, req message.Request) string {
	return fmt.Sprintf(`당신은 화장품 브랜드의 CRM 카피라이터입니다.

고객 페르소나：
%s

고객 분석：
%s

추천 상품：%s
%s
고객 이름을 부르며 시작하고, 짧은 링크 안내로 끝나는 메시지를 작성하세요.`,
		describePersona(p),
		describeGuide(p),
		req.Subject(),
		describeOptional(req),
	)
}

func describePersona(p persona.Persona) string {
	var b strings.Builder
	fmt.Fprintf(&b, "- 이름：%s", p.Name)
	for _, key := range p.Attributes.Keys() {
		if text := p.Attributes.Text(key); text != "" {
			fmt.Fprintf(&b, "\n- %s：%s", key, text)
		}
	}
	return b.String()
}

// describeGuide summarizes the persona analysis for the copywriter.
func describeGuide(p persona.Persona) string {
	analysis := profile.Analyze(p)
	guide := analysis.Guide

	var b strings.Builder
	fmt.Fprintf(&b, "- 추천 카테고리：%s", analysis.PrimaryCategory.Label())
	fmt.Fprintf(&b, "\n- 핵심 고민：%s", guide.PainPoint)
	fmt.Fprintf(&b, "\n- 제안 방향：%s", guide.Solution)
	fmt.Fprintf(&b, "\n- 추천 톤：%s", guide.Tone)
	if tags := analysis.Search.IncludeTags; len(tags) > 0 {
		fmt.Fprintf(&b, "\n- 강조할 성분/키워드：%s", strings.Join(tags, ", "))
	}
	if tags := analysis.Search.ExcludeTags; len(tags) > 0 {
		fmt.Fprintf(&b, "\n- 언급하지 말 성분：%s", strings.Join(tags, ", "))
	}
	return b.String()
}

func describeOptional(req message.Request) string {
	var b strings.Builder
	if req.Category != "" && req.Category != req.Subject() {
		fmt.Fprintf(&b, "카테고리：%s\n", req.Category)
	}
	if req.Tone != "" {
		fmt.Fprintf(&b, "톤앤매너：%s\n", req.Tone)
	}
	if req.Season != "" {
		fmt.Fprintf(&b, "시즌：%s\n", req.Season)
	}
	return b.String()
}

// loadDefaultTemplates loads the prompt templates for the built-in goals.
func (pm *PromptManager) loadDefaultTemplates() {
	base := "당신은 아모레몰의 CRM 마케팅 카피라이터입니다. 고객 페르소나에 맞춘 개인화 푸시/문자 메시지를 작성합니다."
	rules := []string{
		"고객 이름을 부르며 시작합니다",
		"상품명을 정확히 한 번 이상 언급합니다",
		"5문장 이내로 작성합니다",
		"마지막 줄에 링크 안내를 넣습니다",
	}

	pm.templates[message.GoalCartReminder] = &PromptTemplate{
		SystemPrompt: base,
		GoalHints: []string{
			"장바구니나 위시리스트에 담아둔 상품을 자연스럽게 상기시킵니다",
			"재고나 배송 일정을 근거로 구매를 부드럽게 재촉합니다",
		},
		ContextRules: rules,
	}

	pm.templates[message.GoalPromotion] = &PromptTemplate{
		SystemPrompt: base,
		GoalHints: []string{
			"할인율이나 사은품 등 혜택을 명확히 전달합니다",
			"회원 전용, 기간 한정 등 희소성을 강조합니다",
		},
		ContextRules: rules,
	}

	pm.templates[message.GoalCampaignEngagement] = &PromptTemplate{
		SystemPrompt: base,
		GoalHints: []string{
			"브랜드 캠페인의 의미와 참여 방법을 안내합니다",
			"참여 보상을 구체적으로 제시합니다",
		},
		ContextRules: rules,
	}

	pm.templates[message.GoalSeasonalRecommendation] = &PromptTemplate{
		SystemPrompt: base,
		GoalHints: []string{
			"계절과 날씨 변화에 따른 피부 변화를 짚어줍니다",
			"지금 시기에 상품이 필요한 이유를 설명합니다",
		},
		ContextRules: rules,
	}

	pm.templates[message.GoalPersonalizedSolution] = &PromptTemplate{
		SystemPrompt: base,
		GoalHints: []string{
			"고객의 피부 타입과 고민을 직접 언급합니다",
			"상품의 성분과 효능이 고민을 어떻게 해결하는지 설명합니다",
		},
		ContextRules: rules,
	}
}
