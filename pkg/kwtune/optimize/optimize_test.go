package optimize

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/kwtune/pkg/kwtune/analytics"
	"github.com/cognicore/kwtune/pkg/kwtune/config"
	"github.com/cognicore/kwtune/pkg/kwtune/ingest"
	"github.com/cognicore/kwtune/pkg/kwtune/internalerr"
	"github.com/cognicore/kwtune/pkg/kwtune/repair"
	"github.com/cognicore/kwtune/pkg/kwtune/rewrite"
)

func seo(whole int, pieces map[string]int, leading int) config.SEOConfig {
	return config.SEOConfig{
		WholeKeyword:         "강남 맛집",
		WholeCount:           whole,
		PieceTargets:         pieces,
		LeadingSentenceCount: leading,
	}
}

func requireFresh(t *testing.T, out Outcome, cfg config.SEOConfig) {
	t.Helper()
	fresh := analytics.NewAnalyzer(nil).Analyze(ingest.Parse(out.Doc.Render()), cfg.Taxonomy())
	assert.Equal(t, fresh, out.Report, "report must match a fresh count of the output")
	assert.True(t, Satisfied(fresh, cfg), "unmet: %v", Unmet(fresh, cfg))
}

func TestOptimizeSplitsMultiParticle(t *testing.T) {
	cfg := seo(1, map[string]int{"강남": 2, "맛집": 1}, 1)
	doc := ingest.Parse("강남 맛집을 찾고 있어요. 강남 맛집으로 유명한 곳이 궁금해요.")

	out, err := New(nil, Options{}).Optimize(context.Background(), doc, cfg)
	require.NoError(t, err)
	assert.Equal(t, "강남 맛집을 찾고 있어요. 강남 맛집 으로 유명한 곳이 궁금해요.", out.Doc.Render())
	assert.Equal(t, 1, out.Iterations)
	require.Len(t, out.Edits, 1)
	requireFresh(t, out, cfg)
}

func TestOptimizeInsertsKeywordSentence(t *testing.T) {
	cfg := seo(1, map[string]int{"강남": 1, "맛집": 2}, 0)
	doc := ingest.Parse("요즘 맛집 고민이 많아요.")

	out, err := New(nil, Options{}).Optimize(context.Background(), doc, cfg)
	require.NoError(t, err)
	assert.Equal(t, "요즘 맛집 고민이 많아요. 처음엔 강남 맛집 검색부터 시작했어요.", out.Doc.Render())
	requireFresh(t, out, cfg)
}

func TestOptimizeDeletesSurplus(t *testing.T) {
	cfg := seo(1, map[string]int{"강남": 1, "맛집": 1}, 1)
	doc := ingest.Parse("강남 맛집 정리. 여기 강남 맛집 좋아요. 거기 강남 맛집 별로예요.")

	out, err := New(nil, Options{}).Optimize(context.Background(), doc, cfg)
	require.NoError(t, err)
	assert.Equal(t, "강남 맛집 정리.", out.Doc.Render())
	assert.Equal(t, 2, out.Iterations)
	requireFresh(t, out, cfg)
}

func TestOptimizeIterationBound(t *testing.T) {
	cfg := seo(1, map[string]int{"강남": 1, "맛집": 1}, 1)
	doc := ingest.Parse("강남 맛집 정리. 여기 강남 맛집 좋아요. 거기 강남 맛집 별로예요.")

	out, err := New(nil, Options{MaxIterations: 1}).Optimize(context.Background(), doc, cfg)
	require.Error(t, err)
	assert.True(t, errors.Is(err, internalerr.ErrOptimizationTimeout))

	var terr *TimeoutError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, 1, terr.Iterations)
	assert.False(t, terr.Stalled)
	assert.Equal(t, Constraint{Kind: WholeKeyword}, terr.Constraint)
	assert.Equal(t, 2, terr.Report.WholeCount)
	assert.Equal(t, "강남 맛집 정리. 여기 강남 맛집 좋아요.", out.Doc.Render())
}

func TestOptimizeRepeatsSentenceEndings(t *testing.T) {
	cfg := config.SEOConfig{
		WholeKeyword:         "강남 맛집",
		WholeCount:           1,
		SubKeywordCount:      1,
		LeadingSentenceCount: 1,
	}
	doc := ingest.Parse("강남 맛집 좋아요. 가격도 괜찮아요.")

	out, err := New(nil, Options{}).Optimize(context.Background(), doc, cfg)
	require.NoError(t, err)
	assert.Equal(t, "강남 맛집 좋아요!! 가격도 괜찮아요!!", out.Doc.Render())
	requireFresh(t, out, cfg)
}

func TestOptimizeSpreadsFirstParagraphMentions(t *testing.T) {
	cfg := config.SEOConfig{
		WholeKeyword:            "강남 맛집",
		WholeCount:              2,
		FirstParaDoubleKeyword:  true,
		FirstParaTwoSentenceGap: true,
		LeadingSentenceCount:    2,
	}
	doc := ingest.Parse("강남 맛집 고민이에요. 강남 맛집 어디가 좋을까요?\n\n마지막 문단입니다.")

	out, err := New(nil, Options{}).Optimize(context.Background(), doc, cfg)
	require.NoError(t, err)
	assert.True(t, out.Report.FirstParaOK)
	assert.Equal(t, 2, out.Report.FirstParaGap)
	assert.Equal(t, 4, len(out.Doc.Paragraphs[0].Sentences))
	assert.Equal(t, "마지막 문단입니다.", out.Doc.Paragraphs[1].Sentences[0].Text())
	requireFresh(t, out, cfg)
}

func TestOptimizeSwapsRepeatedKeywordSentence(t *testing.T) {
	cfg := seo(2, map[string]int{"강남": 2, "맛집": 2}, 0)
	doc := ingest.Parse("처음엔 강남 맛집 검색부터 시작했어요. 처음엔 강남 맛집 검색부터 시작했어요.")

	out, err := New(nil, Options{}).Optimize(context.Background(), doc, cfg)
	require.NoError(t, err)
	assert.Equal(t, "처음엔 강남 맛집 검색부터 시작했어요. 주변에서도 강남 맛집 얘기가 자주 나오더라고요.", out.Doc.Render())
	assert.Equal(t, []string{"sub_keywords: swap for fresh keyword sentence"}, out.Edits)
	requireFresh(t, out, cfg)
}

func TestOptimizeInsertsDistinctTemplates(t *testing.T) {
	cfg := seo(3, map[string]int{"강남": 4, "맛집": 3}, 0)
	cfg.SubKeywordCount = 2
	doc := ingest.Parse("주말에 뭐 먹을지 고민이에요.")

	out, err := New(nil, Options{}).Optimize(context.Background(), doc, cfg)
	require.NoError(t, err)
	requireFresh(t, out, cfg)

	seen := make(map[string]bool)
	for _, sent := range out.Doc.Sentences() {
		text := strings.TrimRight(sent.Text(), ".!")
		assert.False(t, seen[text], "sentence %q inserted twice", text)
		seen[text] = true
	}
}

func TestOptimizeRewritesSingleParticle(t *testing.T) {
	calls := 0
	rw := rewrite.Func(func(ctx context.Context, text, constraint string) (string, error) {
		calls++
		assert.Equal(t, "강남 맛집을 추천해주세요.", text)
		return "강남 맛집 추천을 부탁드려요.", nil
	})
	analyzer := analytics.NewAnalyzer(nil)
	opt := New(analyzer, Options{Repairer: repair.New(analyzer, rw)})
	cfg := seo(1, nil, 1)

	out, err := opt.Optimize(context.Background(), ingest.Parse("강남 맛집을 추천해주세요."), cfg)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, "강남 맛집 추천을 부탁드려요.", out.Doc.Render())
	requireFresh(t, out, cfg)
}

func TestOptimizeCollaboratorFailure(t *testing.T) {
	boom := errors.New("boom")
	rw := rewrite.Func(func(ctx context.Context, text, constraint string) (string, error) {
		return "", boom
	})
	analyzer := analytics.NewAnalyzer(nil)
	opt := New(analyzer, Options{Repairer: repair.New(analyzer, rw)})

	_, err := opt.Optimize(context.Background(), ingest.Parse("강남 맛집을 추천해주세요."), seo(1, nil, 1))
	require.Error(t, err)
	assert.True(t, errors.Is(err, boom))
}

func TestOptimizeReportsRepairFailures(t *testing.T) {
	calls := 0
	unchanged := rewrite.Func(func(ctx context.Context, text, constraint string) (string, error) {
		calls++
		return text, nil
	})
	analyzer := analytics.NewAnalyzer(nil)
	opt := New(analyzer, Options{Repairer: repair.New(analyzer, unchanged)})
	never := func(before, after ingest.Document) bool { return false }

	out, err := opt.Optimize(context.Background(), ingest.Parse("강남 맛집을 추천해주세요."), seo(1, nil, 1), never)
	require.Error(t, err)
	assert.True(t, errors.Is(err, internalerr.ErrOptimizationTimeout))
	assert.True(t, errors.Is(err, internalerr.ErrRepairFailed))
	assert.Equal(t, repair.DefaultMaxAttempts, calls)

	require.Len(t, out.RepairFailures, 1)
	failure := out.RepairFailures[0]
	assert.Equal(t, "강남 맛집", failure.Keyword)
	assert.Equal(t, "강남 맛집을 추천해주세요.", failure.Sentence)
	assert.Equal(t, repair.DefaultMaxAttempts, failure.Attempts)

	var terr *TimeoutError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, out.RepairFailures, terr.RepairFailures)
	assert.Contains(t, terr.Error(), "1 particle repair(s) failed")
}

func TestOptimizeAcceptsSplitWithSideEffects(t *testing.T) {
	cfg := seo(1, map[string]int{"강남": 1, "맛집": 2}, 0)
	doc := ingest.Parse("요즘 맛집 고민이 많아요.\n\n강남 맛집으로 유명한 곳을 찾았어요.")

	out, err := New(nil, Options{}).Optimize(context.Background(), doc, cfg)
	require.NoError(t, err)
	assert.Equal(t, "요즘 맛집 고민이 많아요.\n\n사실 강남 맛집 으로 유명한 곳을 찾았어요.", out.Doc.Render())
	assert.Equal(t, 2, out.Iterations)
	requireFresh(t, out, cfg)
}

func TestOptimizeUnattainable(t *testing.T) {
	opt := New(nil, Options{})
	doc := ingest.Parse("강남 맛집 좋아요.")

	tests := []struct {
		name string
		cfg  config.SEOConfig
		kind Kind
	}{
		{
			name: "too dense for length",
			cfg: config.SEOConfig{
				WholeKeyword: "강남 맛집",
				WholeCount:   30,
				PieceTargets: map[string]int{"강남": 30, "맛집": 30},
				CharCount:    100,
			},
			kind: CharCount,
		},
		{
			name: "piece below whole",
			cfg:  seo(2, map[string]int{"강남": 1}, 0),
			kind: PieceKeyword,
		},
		{
			name: "leading above whole",
			cfg:  seo(1, nil, 2),
			kind: LeadingSentences,
		},
		{
			name: "first paragraph needs two mentions",
			cfg: config.SEOConfig{
				WholeKeyword:           "강남 맛집",
				WholeCount:             1,
				FirstParaDoubleKeyword: true,
			},
			kind: FirstParaDouble,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := opt.Optimize(context.Background(), doc, tt.cfg)
			require.Error(t, err)
			assert.True(t, errors.Is(err, internalerr.ErrUnattainable))
			var uerr *UnattainableError
			require.True(t, errors.As(err, &uerr))
			assert.Equal(t, tt.kind, uerr.Constraint.Kind)
			assert.Empty(t, out.Edits)
		})
	}
}

func TestOptimizeInvalidConfig(t *testing.T) {
	_, err := New(nil, Options{}).Optimize(context.Background(), ingest.Parse("가."), config.SEOConfig{})
	assert.True(t, errors.Is(err, internalerr.ErrInvalidConfig))
}

func TestOptimizeDeterministic(t *testing.T) {
	cfg := seo(2, map[string]int{"강남": 3, "맛집": 2}, 1)
	doc := ingest.Parse("요즘 맛집 고민이 많아요.\n\n주말에 강남 가볼까 해요.")

	a, errA := New(nil, Options{}).Optimize(context.Background(), doc, cfg)
	b, errB := New(nil, Options{}).Optimize(context.Background(), doc, cfg)
	assert.Equal(t, errA, errB)
	assert.Equal(t, a.Doc.Render(), b.Doc.Render())
	assert.Equal(t, a.Edits, b.Edits)
}

func TestOptimizeGuardRejectsEverything(t *testing.T) {
	cfg := seo(1, map[string]int{"강남": 1, "맛집": 2}, 0)
	doc := ingest.Parse("요즘 맛집 고민이 많아요.")
	never := func(before, after ingest.Document) bool { return false }

	out, err := New(nil, Options{}).Optimize(context.Background(), doc, cfg, never)
	var terr *TimeoutError
	require.True(t, errors.As(err, &terr))
	assert.True(t, terr.Stalled)
	assert.Equal(t, 0, terr.Iterations)
	assert.Equal(t, doc.Render(), out.Doc.Render())
}

func TestOptimizeHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(nil, Options{}).Optimize(ctx, ingest.Parse("요즘 맛집 고민이 많아요."), seo(1, nil, 0))
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestUnmetOrder(t *testing.T) {
	cfg := seo(1, map[string]int{"강남": 1, "맛집": 1}, 1)
	doc := ingest.Parse("강남 맛집 정리. 여기 강남 맛집 좋아요. 거기 강남 맛집 별로예요.")
	r := analytics.NewAnalyzer(nil).Analyze(doc, cfg.Taxonomy())

	assert.Equal(t, []Constraint{
		{Kind: WholeKeyword},
		{Kind: PieceKeyword, Piece: "강남"},
		{Kind: PieceKeyword, Piece: "맛집"},
	}, Unmet(r, cfg))
	assert.False(t, Satisfied(r, cfg))
}

func TestCharCountTolerance(t *testing.T) {
	cfg := config.SEOConfig{WholeKeyword: "강남 맛집", CharCount: 100}
	r := analytics.Report{CharCount: 91}
	for _, g := range measure(r, &cfg) {
		if g.Kind == CharCount {
			assert.True(t, g.satisfied(), "within the default 10%% band")
		}
	}

	exact := 0
	cfg.CharTolerance = &exact
	for _, g := range measure(r, &cfg) {
		if g.Kind == CharCount {
			assert.Equal(t, 9, g.magnitude)
		}
	}
}

func TestMoveAcrossParagraphs(t *testing.T) {
	doc := ingest.Parse("가. 나. 다.\n\n라.")
	assert.Equal(t, "나. 다.\n\n가. 라.", move(doc, ingest.Position{Paragraph: 0, Sentence: 0}, 1, 0).Render())

	doc = ingest.Parse("가.\n\n나.")
	assert.Equal(t, "나. 가.", move(doc, ingest.Position{Paragraph: 0, Sentence: 0}, 1, 1).Render())

	doc = ingest.Parse("가. 나. 다.")
	assert.Equal(t, "나. 다. 가.", move(doc, ingest.Position{Paragraph: 0, Sentence: 0}, 0, 3).Render())
	assert.Equal(t, "가. 나.\n\n다.", move(doc, ingest.Position{Paragraph: 0, Sentence: 2}, 1, 0).Render())
}

func TestCheckFeasibleSubKeywordBudget(t *testing.T) {
	cfg := config.SEOConfig{WholeKeyword: "강남", WholeCount: 1, CharCount: 40, SubKeywordCount: 20}
	err := CheckFeasible(cfg, 0)
	var uerr *UnattainableError
	require.True(t, errors.As(err, &uerr))
	assert.Equal(t, SubKeywords, uerr.Constraint.Kind)

	cfg.SubKeywordCount = 5
	assert.NoError(t, CheckFeasible(cfg, 0))
}

func TestStatus(t *testing.T) {
	cfg := seo(1, map[string]int{"강남": 1}, 1)
	r := analytics.NewAnalyzer(nil).Analyze(ingest.Parse("강남 맛집 정리. 여기 강남 맛집 좋아요."), cfg.Taxonomy())

	checks := Status(r, cfg)
	require.Len(t, checks, 4)
	assert.Equal(t, Check{Constraint: Constraint{Kind: WholeKeyword}, Current: 2, Target: 1}, checks[0])
	assert.Equal(t, "piece_keyword[강남]", checks[1].Constraint.String())
	assert.Equal(t, Check{Constraint: Constraint{Kind: SubKeywords}, Current: 0, Target: 0, OK: true}, checks[2])
	assert.True(t, checks[3].OK)
}
