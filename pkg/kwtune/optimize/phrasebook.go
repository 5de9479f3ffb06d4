package optimize

import (
	"strings"

	"github.com/cognicore/kwtune/pkg/kwtune/ingest"
)

// Placeholder marks where a template takes its keyword.
const Placeholder = "{keyword}"

// Phrasebook holds the sentences the optimizer inserts. Keyword templates
// keep the placeholder followed by a space so the keyword always ends at a
// token boundary. Fillers carry no keyword. Entries use distinct words so
// inserting several does not create repeated sub-keywords by itself.
type Phrasebook struct {
	// Leading templates open with the keyword.
	Leading []string `yaml:"leading"`
	// Mid templates carry the keyword after the first word.
	Mid []string `yaml:"mid"`
	// Fillers are grouped experience, information, worry and advice
	// sentences in that order.
	Fillers []string `yaml:"fillers"`
	// LeadIns are single words put before a sentence that opens with the
	// keyword.
	LeadIns []string `yaml:"lead_ins"`
	// Pronoun stands in for a keyword mention that has to go.
	Pronoun string `yaml:"pronoun"`
}

// DefaultPhrasebook returns the built-in sentences.
func DefaultPhrasebook() Phrasebook {
	return Phrasebook{
		Leading: []string{
			"{keyword} 관련 정보를 차근차근 정리해 봤어요.",
			"{keyword} 고를 때 기준이 궁금했거든요.",
			"{keyword} 후기를 찾다가 글을 남겨요.",
			"{keyword} 경험담이 있으시면 들려주세요.",
			"{keyword} 알아보면서 느낀 점을 적어볼게요.",
			"{keyword} 선택이 생각보다 어렵더라고요.",
		},
		Mid: []string{
			"처음엔 {keyword} 검색부터 시작했어요.",
			"주변에서도 {keyword} 얘기가 자주 나오더라고요.",
			"저는 {keyword} 비교를 꼼꼼하게 해보는 편이에요.",
			"결국 {keyword} 선택은 취향 차이인 것 같아요.",
			"혹시 {keyword} 추천해주실 분 계실까요?",
			"다들 {keyword} 어떻게 고르시는지 궁금해요.",
		},
		Fillers: []string{
			"예전에는 이런 부분을 전혀 신경 쓰지 않았어요.",
			"이것저것 직접 시도해 보니 조금씩 감이 와요.",
			"사람마다 상황이 달라서 정답은 없는 듯해요.",
			"제가 찾아본 내용을 간단히 공유해 드릴게요.",
			"완벽하진 않아도 작은 도움이 되면 좋겠습니다.",
			"막상 결정하려니 망설여지는 마음이 커요.",
			"돈과 시간을 함께 따져봐야 하니 머리가 아파요.",
			"비슷한 경험을 하신 분들의 조언이 필요해요.",
		},
		LeadIns: []string{"사실", "요즘", "특히", "그런데", "아무튼"},
		Pronoun: "이것",
	}
}

// merge fills empty fields of p from the defaults.
func (p Phrasebook) merge() Phrasebook {
	def := DefaultPhrasebook()
	if len(p.Leading) == 0 {
		p.Leading = def.Leading
	}
	if len(p.Mid) == 0 {
		p.Mid = def.Mid
	}
	if len(p.Fillers) == 0 {
		p.Fillers = def.Fillers
	}
	if len(p.LeadIns) == 0 {
		p.LeadIns = def.LeadIns
	}
	if p.Pronoun == "" {
		p.Pronoun = def.Pronoun
	}
	return p
}

func fill(template, keyword string) ingest.Sentence {
	return ingest.NewSentence(strings.ReplaceAll(template, Placeholder, keyword))
}
