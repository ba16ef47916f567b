// Package profile derives a shopping profile and copywriting guide from a
// persona: which product category to lead with, which ingredients to
// search for or filter out, how to weight ranking signals, and what pain
// point a message should address.
package profile

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/zhouzirui/persona-studio/backend/internal/model/persona"
)

// Attribute keys read only by the analyzer.
const (
	KeyPreferredIngredients = "preferredIngredients"
	KeyAvoidedIngredients   = "avoidedIngredients"
	KeyAllergies            = "allergies"
	KeyPreferredBrands      = "preferredBrands"
	KeyTexturePreference    = "texturePreference"
	KeyExerciseFrequency    = "exerciseFrequency"
)

// Category 商品推荐大类
type Category string

const (
	CategoryMoisture    Category = "MOISTURE"
	CategoryTrouble     Category = "TROUBLE"
	CategoryPore        Category = "PORE"
	CategoryAging       Category = "AGING"
	CategoryBrightening Category = "BRIGHTENING"
)

// categoryOrder breaks score ties.
var categoryOrder = []Category{CategoryMoisture, CategoryTrouble, CategoryPore, CategoryAging, CategoryBrightening}

var categoryKeywords = map[Category][]string{
	CategoryMoisture:    {"건성", "속건조", "당김", "각질", "히알루론산", "수분"},
	CategoryTrouble:     {"지성", "여드름", "트러블", "피지", "티트리", "시카", "진정"},
	CategoryPore:        {"모공", "블랙헤드", "나비존", "요철"},
	CategoryAging:       {"주름", "탄력", "노화", "레티놀", "콜라겐", "리프팅"},
	CategoryBrightening: {"미백", "기미", "잡티", "칙칙함", "비타민C", "톤업"},
}

type categoryCopy struct {
	label     string
	painPoint string
	solution  string
}

var categoryCopies = map[Category]categoryCopy{
	CategoryMoisture:    {"수분/보습", "건조함과 속당김", "수분 장벽을 채우는 고보습 케어"},
	CategoryTrouble:     {"트러블/진정", "반복되는 트러블과 붉은기", "자극 없이 진정시키는 데일리 케어"},
	CategoryPore:        {"모공", "넓어진 모공과 피지", "모공을 정돈하는 산뜻한 케어"},
	CategoryAging:       {"안티에이징", "탄력 저하와 잔주름", "탄력을 되살리는 집중 케어"},
	CategoryBrightening: {"브라이트닝", "칙칙한 피부 톤", "맑은 톤을 위한 브라이트닝 케어"},
}

// Label returns the Korean display label.
func (c Category) Label() string {
	if cc, ok := categoryCopies[c]; ok {
		return cc.label
	}
	return string(c)
}

// Weights 商品排序权重，数值只看相对大小，不要求和为 1。
type Weights struct {
	Price      float64 `json:"price"`
	Popularity float64 `json:"popularity"`
	Ingredient float64 `json:"ingredient"`
}

// SearchProfile drives product search for the persona.
type SearchProfile struct {
	MainCategory string   `json:"mainCategory"`
	SubIntents   []string `json:"subIntents"`
	IncludeTags  []string `json:"includeTags"`
	ExcludeTags  []string `json:"excludeTags"`
	Texture      string   `json:"texture,omitempty"`
	Weights      Weights  `json:"rankingWeights"`
}

// MessageGuide is copywriting guidance for messages to the persona.
type MessageGuide struct {
	Summary   string `json:"summary"`
	Tone      string `json:"tone"`
	PainPoint string `json:"painPoint"`
	Solution  string `json:"solution"`
}

// Analysis is the full result for one persona.
type Analysis struct {
	PersonaID         string           `json:"personaId"`
	PrimaryCategory   Category         `json:"primaryCategory"`
	SecondaryCategory Category         `json:"secondaryCategory,omitempty"`
	Scores            map[Category]int `json:"scores"`
	Confidence        float64          `json:"confidence"`
	Keywords          []string         `json:"keywords"`
	Reasoning         string           `json:"reasoning"`
	Search            SearchProfile    `json:"searchProfile"`
	Guide             MessageGuide     `json:"messageGuide"`
}

var (
	sensitiveInclude = []string{"시카", "판테놀", "마데카소사이드", "무향", "EWG그린"}
	sensitiveExclude = []string{"인공향료", "알코올", "파라벤", "AHA", "BHA"}
)

// Analyze 根据 persona 属性计算推荐类别、检索画像和文案指引。
func Analyze(p persona.Persona) Analysis {
	attrs := p.Attributes
	skinTypes := attrs.List(persona.KeySkinType)
	concerns := attrs.List(persona.KeyConcerns)
	preferred := attrs.List(KeyPreferredIngredients)
	sensitivity := attrs.Text(persona.KeySensitivity)

	signals := make([]string, 0, len(skinTypes)+len(concerns)+len(preferred)+1)
	signals = append(signals, skinTypes...)
	signals = append(signals, sensitivity)
	signals = append(signals, concerns...)
	signals = append(signals, preferred...)

	out := Analysis{PersonaID: p.ID}
	out.Scores, out.PrimaryCategory, out.SecondaryCategory, out.Keywords, out.Confidence = scoreCategories(signals)

	search := SearchProfile{
		MainCategory: "스킨케어",
		Texture:      attrs.Text(KeyTexturePreference),
		Weights:      RankingWeights(attrs.Text(persona.KeyBudget), len(attrs.List(KeyPreferredBrands)) > 0),
	}
	var guide MessageGuide

	highlySensitive := isHigh(sensitivity)
	if highlySensitive || contains(skinTypes, "민감성") {
		search.IncludeTags = append(search.IncludeTags, sensitiveInclude...)
		search.ExcludeTags = append(search.ExcludeTags, sensitiveExclude...)
		search.SubIntents = append(search.SubIntents, "저자극진정")
	}
	if contains(skinTypes, "건성") {
		search.IncludeTags = append(search.IncludeTags, "세라마이드", "히알루론산", "고보습")
	}
	if contains(skinTypes, "지성") {
		search.IncludeTags = append(search.IncludeTags, "산뜻한", "오일프리", "피지조절")
	}

	search.IncludeTags = append(search.IncludeTags, preferred...)
	search.ExcludeTags = append(search.ExcludeTags, attrs.List(KeyAvoidedIngredients)...)
	search.ExcludeTags = append(search.ExcludeTags, attrs.List(KeyAllergies)...)

	exercise := attrs.Text(KeyExerciseFrequency)
	if strings.Contains(exercise, "주 3회 이상") || strings.Contains(exercise, "매일") {
		search.IncludeTags = append(search.IncludeTags, "쿨링", "모공케어", "산뜻한마무리")
		search.SubIntents = append(search.SubIntents, "운동후케어")
	}

	if isHighStress(attrs[persona.KeyStress]) {
		search.IncludeTags = append(search.IncludeTags, "아로마", "릴렉싱", "리프레쉬")
		guide.PainPoint = "높은 스트레스로 지친 피부 컨디션"
		guide.Solution = "마음까지 편안해지는 힐링 리추얼"
	}
	if strings.Contains(attrs.Text(persona.KeySleep), "6시간 미만") {
		search.IncludeTags = append(search.IncludeTags, "비타민C")
		guide.PainPoint = "수면 부족으로 칙칙해진 안색"
	}

	search.IncludeTags = uniqueSorted(search.IncludeTags)
	search.ExcludeTags = uniqueSorted(search.ExcludeTags)
	if search.SubIntents == nil {
		search.SubIntents = []string{}
	}
	out.Search = search

	cc := categoryCopies[out.PrimaryCategory]
	if guide.PainPoint == "" {
		guide.PainPoint = cc.painPoint
	}
	if guide.Solution == "" {
		guide.Solution = cc.solution
	}
	guide.Summary = summarize(attrs.Text(persona.KeyAge), skinTypes, highlySensitive)
	guide.Tone = tone(attrs.Text(persona.KeyBudget), highlySensitive || contains(skinTypes, "민감성"))
	out.Guide = guide

	if len(out.Keywords) > 0 {
		out.Reasoning = fmt.Sprintf("%s 관련 키워드(%s)가 가장 많이 확인되어 %s 케어를 우선 추천합니다.",
			out.PrimaryCategory.Label(), strings.Join(out.Keywords, ", "), out.PrimaryCategory.Label())
	} else {
		out.Reasoning = "매칭된 키워드가 없어 기본 보습 케어를 추천합니다."
	}
	return out
}

// RankingWeights 根据预算与品牌偏好计算排序权重。
func RankingWeights(budget string, preferredBrands bool) Weights {
	w := Weights{Price: 0.3, Popularity: 0.3, Ingredient: 0.4}
	switch {
	case strings.Contains(budget, "가성비"):
		w = Weights{Price: 0.7, Popularity: 0.1, Ingredient: 0.2}
	case strings.Contains(budget, "프리미엄"), strings.Contains(budget, "고가"):
		w = Weights{Price: 0, Popularity: 0.5, Ingredient: 0.5}
	case strings.Contains(budget, "효능"):
		w = Weights{Price: 0.2, Popularity: 0.1, Ingredient: 0.7}
	}

	// 指定了品牌的用户更看重品牌知名度
	if preferredBrands {
		w.Popularity += 0.3
		w.Price = math.Max(0, w.Price-0.1)
		w.Ingredient = math.Max(0, w.Ingredient-0.2)
	}
	return Weights{Price: round2(w.Price), Popularity: round2(w.Popularity), Ingredient: round2(w.Ingredient)}
}

func scoreCategories(items []string) (map[Category]int, Category, Category, []string, float64) {
	scores := make(map[Category]int, len(categoryOrder))
	matched := make(map[Category][]string, len(categoryOrder))
	total := 0
	for _, category := range categoryOrder {
		for _, keyword := range categoryKeywords[category] {
			hits := 0
			for _, item := range items {
				if item != "" && strings.Contains(item, keyword) {
					hits++
				}
			}
			if hits > 0 {
				scores[category] += hits
				matched[category] = append(matched[category], keyword)
				total += hits
			}
		}
		if _, ok := scores[category]; !ok {
			scores[category] = 0
		}
	}

	ranked := append([]Category(nil), categoryOrder...)
	sort.SliceStable(ranked, func(i, j int) bool { return scores[ranked[i]] > scores[ranked[j]] })

	primary := ranked[0]
	var secondary Category
	if scores[ranked[1]] > 0 {
		secondary = ranked[1]
	}
	keywords := matched[primary]
	if keywords == nil {
		keywords = []string{}
	}
	confidence := 0.0
	if total > 0 {
		confidence = round2(float64(scores[primary]) / float64(total))
	}
	return scores, primary, secondary, keywords, confidence
}

func summarize(age string, skinTypes []string, highlySensitive bool) string {
	var parts []string
	if age != "" {
		parts = append(parts, age)
	}
	if len(skinTypes) > 0 {
		desc := strings.Join(skinTypes, " ") + " 피부"
		if highlySensitive {
			desc += "(초민감)"
		}
		parts = append(parts, desc)
	}
	parts = append(parts, "고객님")
	return strings.Join(parts, " ")
}

func tone(budget string, sensitive bool) string {
	switch {
	case sensitive:
		return "차분하고 신뢰감 있는 톤"
	case strings.Contains(budget, "가성비"):
		return "혜택을 분명하게 전하는 경쾌한 톤"
	case strings.Contains(budget, "프리미엄"), strings.Contains(budget, "고가"):
		return "고급스럽고 절제된 톤"
	case strings.Contains(budget, "효능"):
		return "성분과 효과를 근거로 드는 전문적인 톤"
	default:
		return "친근한 톤"
	}
}

// isHigh matches the top level of a 상/중/하 or 높음/보통/낮음 scale.
func isHigh(level string) bool {
	level = strings.TrimSpace(level)
	return level == "상" || strings.Contains(level, "높")
}

// isHighStress accepts the form's labels or a 0-100 level.
func isHighStress(v persona.Value) bool {
	if v.Kind == persona.KindNumber {
		return v.Number >= 70
	}
	return isHigh(v.String())
}

func contains(items []string, want string) bool {
	for _, item := range items {
		if item == want {
			return true
		}
	}
	return false
}

func uniqueSorted(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		if _, dup := seen[item]; dup {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	sort.Strings(out)
	return out
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
