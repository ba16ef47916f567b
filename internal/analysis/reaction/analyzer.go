package reaction

import (
	"strings"
)

// Label 表示虚拟客户对营销消息的反应。
type Label string

const (
	Neutral    Label = "neutral"
	Interested Label = "interested"
	Hesitant   Label = "hesitant"
	Concerned  Label = "concerned"
	Converted  Label = "converted"
)

// Decision 给出反应识别结果及其得分。
type Decision struct {
	Reaction Label
	Score    int
}

// order breaks ties deterministically: the later stage of the funnel wins.
var order = []Label{Converted, Interested, Hesitant, Concerned}

var keywordBuckets = map[Label][]string{
	Converted: {
		"장바구니", "담아", "주문", "구매할", "살게", "결제", "바로 살", "buy", "order", "add to cart",
	},
	Interested: {
		"좋아", "좋네", "안심", "링크", "구경", "궁금", "관심", "마음에", "기대", "😊", "👍",
		"great", "nice", "interested", "love",
	},
	Hesitant: {
		"고민", "가격", "비싸", "샘플", "다음에", "글쎄", "나중에", "망설", "할인", "price", "expensive", "maybe",
	},
	Concerned: {
		"예민", "성분", "트러블", "걱정", "자극", "알레르기", "민감", "뒤집", "sensitive", "ingredient", "worried",
	},
}

var punctuationBoost = map[Label]int{
	Interested: 2,
	Concerned:  1,
}

// Analyze 根据客户回复推断其对消息的反应。
func Analyze(reply string) Decision {
	normalized := strings.TrimSpace(strings.ToLower(reply))
	if normalized == "" {
		return Decision{Reaction: Neutral}
	}

	scores := make(map[Label]int)
	for label, keywords := range keywordBuckets {
		for _, word := range keywords {
			if strings.Contains(normalized, strings.ToLower(word)) {
				scores[label] += 3
			}
		}
	}

	if strings.Contains(reply, "!") {
		scores[Interested] += punctuationBoost[Interested]
	}
	if strings.Contains(reply, "?") {
		scores[Concerned] += punctuationBoost[Concerned]
	}

	best := Decision{Reaction: Neutral}
	for _, label := range order {
		if s := scores[label]; s > best.Score {
			best = Decision{Reaction: label, Score: s}
		}
	}
	if best.Score < 3 {
		// Punctuation alone is not a reaction.
		return Decision{Reaction: Neutral}
	}
	return best
}
