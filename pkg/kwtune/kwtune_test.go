package kwtune

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/kwtune/pkg/kwtune/analytics"
	"github.com/cognicore/kwtune/pkg/kwtune/config"
	"github.com/cognicore/kwtune/pkg/kwtune/ingest"
	"github.com/cognicore/kwtune/pkg/kwtune/internalerr"
	"github.com/cognicore/kwtune/pkg/kwtune/optimize"
	"github.com/cognicore/kwtune/pkg/kwtune/rewrite"
	"github.com/cognicore/kwtune/pkg/kwtune/store"
	"github.com/cognicore/kwtune/pkg/kwtune/store/memstore"
	"github.com/cognicore/kwtune/pkg/kwtune/structure"
)

func targets(whole int, pieces map[string]int, leading int) config.SEOConfig {
	return config.SEOConfig{
		WholeKeyword:         "강남 맛집",
		WholeCount:           whole,
		PieceTargets:         pieces,
		LeadingSentenceCount: leading,
	}
}

func TestOptimizeConvergesAndRecordsRun(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	e := New(Options{Store: st})
	defer e.Close()

	res, err := e.Optimize(ctx, Request{
		DocID:  "post-1",
		Text:   "요즘 맛집 고민이 많아요.",
		Config: targets(1, map[string]int{"강남": 1, "맛집": 2}, 0),
	})
	require.NoError(t, err)
	assert.True(t, res.Converged)
	assert.Equal(t, "요즘 맛집 고민이 많아요. 처음엔 강남 맛집 검색부터 시작했어요.", res.Text)
	assert.Equal(t, []string{"강남맛집", "강남", "맛집"}, res.Hashtags)
	assert.NotEmpty(t, res.RunID)
	assert.True(t, res.Card.Converged)
	for _, c := range res.Checks {
		assert.True(t, c.OK, "%s", c.Constraint)
	}

	run, err := st.GetRun(ctx, res.RunID)
	require.NoError(t, err)
	assert.Equal(t, "post-1", run.DocID)
	assert.True(t, run.Converged)
	assert.Equal(t, res.Text, run.Output)
	assert.Empty(t, run.Error)
}

func TestOptimizeReportMatchesFreshAnalysis(t *testing.T) {
	e := New(Options{})
	res, err := e.Optimize(context.Background(), Request{
		Text:   "요즘 맛집 고민이 많아요.\n\n강남 맛집으로 유명한 곳을 찾았어요.",
		Config: targets(1, map[string]int{"강남": 1, "맛집": 2}, 0),
	})
	require.NoError(t, err)
	require.True(t, res.Converged)
	assert.Equal(t, res.Report, e.Analyze(res.Text, "강남 맛집"))
}

func TestOptimizeTimeoutReturnsBestText(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	settings := config.DefaultSettings()
	settings.MaxIterations = 1
	e := New(Options{Store: st, Settings: settings})

	res, err := e.Optimize(ctx, Request{
		Text:   "강남 맛집 정리. 여기 강남 맛집 좋아요. 거기 강남 맛집 별로예요.",
		Config: targets(1, map[string]int{"강남": 1, "맛집": 1}, 1),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, internalerr.ErrOptimizationTimeout))
	assert.False(t, res.Converged)
	assert.False(t, res.Card.Converged)
	assert.Equal(t, "강남 맛집 정리. 여기 강남 맛집 좋아요.", res.Text)
	assert.Equal(t, 2, res.Report.WholeCount)

	run, err := st.GetRun(ctx, res.RunID)
	require.NoError(t, err)
	assert.False(t, run.Converged)
	assert.NotEmpty(t, run.Error)
}

type substituteFunc func(text string) string

func (f substituteFunc) Substitute(ctx context.Context, text string) (string, error) {
	return f(text), nil
}

func TestOptimizeTimeoutClearedBySubstitution(t *testing.T) {
	settings := config.DefaultSettings()
	settings.MaxIterations = 1
	dropSecond := substituteFunc(func(text string) string {
		before, _, _ := strings.Cut(text, " 여기")
		return before
	})
	e := New(Options{Settings: settings, Substituter: dropSecond})
	cfg := targets(1, map[string]int{"강남": 1, "맛집": 1}, 1)
	cfg.ApplyForbiddenWords = true

	res, err := e.Optimize(context.Background(), Request{
		Text:   "강남 맛집 정리. 여기 강남 맛집 좋아요. 거기 강남 맛집 별로예요.",
		Config: cfg,
	})
	require.NoError(t, err)
	assert.True(t, res.Converged)
	assert.Equal(t, "강남 맛집 정리.", res.Text)
	assert.Equal(t, 1, res.Iterations)
}

func TestOptimizeTimeoutReportsSubstitutedText(t *testing.T) {
	settings := config.DefaultSettings()
	settings.MaxIterations = 1
	addMention := substituteFunc(func(text string) string {
		return text + " 또 강남 맛집 가요."
	})
	e := New(Options{Settings: settings, Substituter: addMention})
	cfg := targets(1, map[string]int{"강남": 1, "맛집": 1}, 1)
	cfg.ApplyForbiddenWords = true

	res, err := e.Optimize(context.Background(), Request{
		Text:   "강남 맛집 정리. 여기 강남 맛집 좋아요. 거기 강남 맛집 별로예요.",
		Config: cfg,
	})
	var terr *optimize.TimeoutError
	require.True(t, errors.As(err, &terr))
	assert.False(t, res.Converged)
	assert.Equal(t, 3, res.Report.WholeCount)
	assert.Equal(t, res.Report, terr.Report)
}

func TestOptimizeSurfacesRepairFailures(t *testing.T) {
	unchanged := rewrite.Func(func(ctx context.Context, text, constraint string) (string, error) {
		return text, nil
	})
	e := New(Options{Rewriter: unchanged})

	res, err := e.Optimize(context.Background(), Request{
		Text:   "강남 맛집을 추천해주세요.",
		Config: targets(1, nil, 1),
	})
	require.NoError(t, err)
	assert.True(t, res.Converged)
	require.Len(t, res.RepairFailures, 1)
	assert.Equal(t, "강남 맛집", res.RepairFailures[0].Keyword)
	assert.Equal(t, "강남 맛집을 추천해주세요.", res.RepairFailures[0].Sentence)
	assert.True(t, errors.Is(res.RepairFailures[0], internalerr.ErrRepairFailed))
}

func TestOptimizeUnattainable(t *testing.T) {
	st := memstore.New()
	e := New(Options{Store: st})

	res, err := e.Optimize(context.Background(), Request{
		Text:   "강남 맛집 좋아요.",
		Config: targets(2, map[string]int{"강남": 1}, 0),
	})
	assert.True(t, errors.Is(err, internalerr.ErrUnattainable))
	assert.False(t, res.Converged)

	runs, err := st.ListRuns(context.Background(), store.Filter{OnlyFailed: true})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Contains(t, runs[0].Error, "unattainable")
}

func TestOptimizeRejectsEmptyText(t *testing.T) {
	_, err := New(Options{}).Optimize(context.Background(), Request{Text: "  ", Config: targets(1, nil, 0)})
	assert.True(t, errors.Is(err, internalerr.ErrInvalidInput))
}

func TestOptimizeAppliesForbiddenWords(t *testing.T) {
	e := New(Options{})
	cfg := targets(1, nil, 1)
	cfg.ApplyForbiddenWords = true

	res, err := e.Optimize(context.Background(), Request{Text: "강남 맛집 가격이 궁금해요.", Config: cfg})
	require.NoError(t, err)
	assert.Equal(t, "강남 맛집 경비이 궁금해요.", res.Text)
	assert.True(t, res.Converged)
}

func TestOptimizeProtectsKeywordFromForbiddenWords(t *testing.T) {
	e := New(Options{})
	cfg := config.SEOConfig{
		WholeKeyword:         "병원 추천",
		WholeCount:           1,
		LeadingSentenceCount: 1,
		ApplyForbiddenWords:  true,
	}

	res, err := e.Optimize(context.Background(), Request{Text: "병원 추천 받았어요.", Config: cfg})
	require.NoError(t, err)
	assert.Equal(t, "병원 추천 받았어요.", res.Text)
	assert.Equal(t, 1, res.Report.WholeCount)
}

func TestOptimizeEnforcesCommentRequest(t *testing.T) {
	e := New(Options{EnforceStructure: true})

	res, err := e.Optimize(context.Background(), Request{
		Text:   "요즘 맛집 고민이 많아요.",
		Config: targets(1, map[string]int{"강남": 1, "맛집": 2}, 0),
	})
	require.NoError(t, err)
	assert.True(t, res.Converged)
	assert.True(t, res.Structure.Has(structure.CommentRequest))
	assert.Contains(t, res.Text, "댓글")
}

func TestCheck(t *testing.T) {
	e := New(Options{})

	r, checks, err := e.Check("강남 맛집 정리. 여기 강남 맛집 좋아요.", targets(1, nil, 1))
	require.NoError(t, err)
	assert.Equal(t, 2, r.WholeCount)
	require.NotEmpty(t, checks)
	assert.False(t, checks[0].OK)

	_, _, err = e.Check("가.", config.SEOConfig{})
	assert.True(t, errors.Is(err, internalerr.ErrInvalidConfig))
}

func TestAnalyzeReportsBlockers(t *testing.T) {
	r := New(Options{}).Analyze("강남 맛집을 찾아요.", "강남 맛집")
	assert.Equal(t, 0, r.WholeCount)
	assert.NotEmpty(t, r.BlockersFor("강남 맛집"))
}

func TestHashtags(t *testing.T) {
	tax := ingest.NewTaxonomy("강남 맛집")
	subs := []analytics.Unit{
		{Text: "좋아요", Count: 3},
		{Text: "!!", Count: 2},
		{Text: "2024", Count: 2},
		{Text: "맛집", Count: 2},
	}
	assert.Equal(t, []string{"강남맛집", "강남", "맛집", "좋아요"}, Hashtags(tax, subs))

	subs = nil
	for i := 0; i < 12; i++ {
		subs = append(subs, analytics.Unit{Text: fmt.Sprintf("단어%c", '가'+rune(i)), Count: 2})
	}
	tags := Hashtags(tax, subs)
	assert.Len(t, tags, MaxHashtags)
	assert.Equal(t, "강남맛집", tags[0])
}
