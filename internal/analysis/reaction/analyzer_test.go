package reaction

import "testing"

func TestAnalyzeConcernedCustomer(t *testing.T) {
	decision := Analyze("음.. 할인은 좋은데, 제가 피부가 좀 예민해서요. 성분은 괜찮은가요? 혹시 트러블 날까봐 걱정돼서...")
	if decision.Reaction != Concerned {
		t.Fatalf("expected concerned reaction, got %s", decision.Reaction)
	}
}

func TestAnalyzeInterestedCustomer(t *testing.T) {
	decision := Analyze("아 그렇군요! 시카 성분이 들어있다니 안심이 되네요. 링크 보내주시면 한번 구경해볼게요! 😊")
	if decision.Reaction != Interested {
		t.Fatalf("expected interested reaction, got %s", decision.Reaction)
	}
}

func TestAnalyzeHesitantCustomer(t *testing.T) {
	decision := Analyze("가격대가 조금 고민되긴 하는데, 샘플로 먼저 써볼 수 있을까요?")
	if decision.Reaction != Hesitant {
		t.Fatalf("expected hesitant reaction, got %s", decision.Reaction)
	}
}

func TestAnalyzeConvertedCustomer(t *testing.T) {
	decision := Analyze("좋아요, 장바구니에 담아둘게요. 세일 끝나기 전에 알려주세요!")
	if decision.Reaction != Converted {
		t.Fatalf("expected converted reaction, got %s", decision.Reaction)
	}
}

func TestAnalyzeNeutral(t *testing.T) {
	for _, text := range []string{"", "   ", "네?", "ok!"} {
		if got := Analyze(text).Reaction; got != Neutral {
			t.Fatalf("Analyze(%q) = %s, want neutral", text, got)
		}
	}
}
