package persona

// Seed returns the demo personas used by the message page mock-ups.
func Seed() []SeedPersona {
	return []SeedPersona{
		{
			Name: "미란다 프리슬리",
			Attributes: Attributes{
				KeyAge:      String("45세"),
				KeyJob:      String("도심의 직장인"),
				KeyDetail:   String("친환경 제품 선호, 꼼꼼한 성분 분석"),
				KeySkinType: Labels("건성"),
				KeyBudget:   Label("프리미엄"),
			},
		},
		{
			Name: "앤드리아 삭스",
			Attributes: Attributes{
				KeyAge:      String("28세"),
				KeyJob:      String("사회초년생"),
				KeyDetail:   String("가성비 중시, 트렌드 민감"),
				KeySkinType: Labels("수부지"),
				KeyConcerns: Labels("속건조", "트러블/여드름"),
				KeyBudget:   Label("가성비 중시"),
			},
		},
		{
			Name: "에밀리",
			Attributes: Attributes{
				KeyAge:           String("32세"),
				KeyJob:           String("패션업계 종사자"),
				KeyDetail:        String("럭셔리 뷰티, 비주얼 중시"),
				KeySkinType:      Labels("민감성"),
				KeyMoistureLevel: Number(40),
				KeyOilLevel:      Number(55),
				KeyBudget:        Label("프리미엄"),
			},
		},
	}
}

// SeedPersona is a persona definition that has not been stored yet.
type SeedPersona struct {
	Name       string     `json:"name" yaml:"name"`
	Attributes Attributes `json:"attributes,omitempty" yaml:"attributes,omitempty"`
}
