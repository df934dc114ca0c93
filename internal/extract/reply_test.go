package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseReply_SkipAnyCase(t *testing.T) {
	for _, reply := range []string{"SKIP", "skip", "  Skip.\n", "SKIP - not substantive", "sKiP"} {
		for _, mode := range []Mode{ModeSummary, ModeGlossary} {
			out := ParseReply(3, reply, DefaultTemplate(mode))
			assert.True(t, out.Skipped, "mode %s reply %q", mode, reply)
			assert.Equal(t, ReasonSkipToken, out.Reason)
			assert.Equal(t, 3, out.Index)
			assert.Nil(t, out.Summary)
			assert.Nil(t, out.Entry)
		}
	}
}

func TestParseReply_Glossary(t *testing.T) {
	reply := "TERM: Entropy\nDEFINITION: A measure of uncertainty.\nDETAILS: H = -Σ p log p"
	out := ParseReply(0, reply, DefaultTemplate(ModeGlossary))

	require.False(t, out.Skipped, out.Reason)
	require.NotNil(t, out.Entry)
	assert.Equal(t, GlossaryEntry{
		Term:       "Entropy",
		Definition: "A measure of uncertainty.",
		Details:    "H = -Σ p log p",
	}, *out.Entry)
	assert.Nil(t, out.Summary)
}

func TestParseReply_GlossaryLabelsIgnoreCaseAndBlankLines(t *testing.T) {
	reply := "\n\nTerm:   Entropy  \n\n  definition: uncertainty\n\nDetails: N/A\n"
	out := ParseReply(0, reply, DefaultTemplate(ModeGlossary))

	require.NotNil(t, out.Entry, out.Reason)
	assert.Equal(t, "Entropy", out.Entry.Term)
	assert.Equal(t, "uncertainty", out.Entry.Definition)
	assert.Equal(t, "N/A", out.Entry.Details)
}

func TestParseReply_GlossaryLabelAfterPrefix(t *testing.T) {
	reply := "1. TERM: Entropy\n2. DEFINITION: uncertainty\n3. DETAILS: none"
	out := ParseReply(0, reply, DefaultTemplate(ModeGlossary))

	require.NotNil(t, out.Entry, out.Reason)
	assert.Equal(t, "Entropy", out.Entry.Term)
	assert.Equal(t, "none", out.Entry.Details)
}

func TestParseReply_GlossaryMalformed(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{"missing details line", "TERM: X\nDEFINITION: y"},
		{"labels out of order", "DEFINITION: y\nTERM: X\nDETAILS: z"},
		{"no labels", "Here is an entry about X."},
		{"empty term", "TERM:\nDEFINITION: y\nDETAILS: z"},
		{"empty definition", "TERM: X\nDEFINITION:   \nDETAILS: z"},
		{"empty reply", ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out := ParseReply(1, tc.reply, DefaultTemplate(ModeGlossary))
			assert.True(t, out.Skipped)
			assert.NotEmpty(t, out.Reason)
			assert.NotEqual(t, ReasonSkipToken, out.Reason)
		})
	}
}

func TestParseReply_Summary(t *testing.T) {
	reply := "Main Topic: Intro\n\n• a\n• b\n• c"
	out := ParseReply(0, reply, DefaultTemplate(ModeSummary))

	require.False(t, out.Skipped, out.Reason)
	require.NotNil(t, out.Summary)
	assert.Equal(t, "Intro", out.Summary.Topic)
	assert.Equal(t, []string{"a", "b", "c"}, out.Summary.Points)
	assert.Nil(t, out.Entry)
}

func TestParseReply_SummaryBulletVariantsAndContinuation(t *testing.T) {
	reply := "main topic: Methods\n- first point\n  that wraps\n* second\n• third\n"
	out := ParseReply(0, reply, DefaultTemplate(ModeSummary))

	require.NotNil(t, out.Summary, out.Reason)
	assert.Equal(t, "Methods", out.Summary.Topic)
	assert.Equal(t, []string{"first point that wraps", "second", "third"}, out.Summary.Points)
}

func TestParseReply_SummaryNumberedPoints(t *testing.T) {
	reply := "Main Topic: Gradient descent\n\n1. Step size matters\n2) Converges\n10. Slowly near minima"
	out := ParseReply(0, reply, DefaultTemplate(ModeSummary))

	require.NotNil(t, out.Summary, out.Reason)
	assert.Equal(t, "Gradient descent", out.Summary.Topic)
	assert.Equal(t, []string{"Step size matters", "Converges", "Slowly near minima"}, out.Summary.Points)
}

func TestParseReply_EmphasizedLabels(t *testing.T) {
	out := ParseReply(0, "**Main Topic:** Gradient descent\n- Step size matters", DefaultTemplate(ModeSummary))
	require.NotNil(t, out.Summary, out.Reason)
	assert.Equal(t, "Gradient descent", out.Summary.Topic)

	out = ParseReply(0, "__Main Topic:__ Optimizers\n- Adam", DefaultTemplate(ModeSummary))
	require.NotNil(t, out.Summary, out.Reason)
	assert.Equal(t, "Optimizers", out.Summary.Topic)

	reply := "**TERM:** System prompt\n**DEFINITION:** Instructions sent first.\n**DETAILS:** N/A"
	out = ParseReply(0, reply, DefaultTemplate(ModeGlossary))
	require.NotNil(t, out.Entry, out.Reason)
	assert.Equal(t, "System prompt", out.Entry.Term)
	assert.Equal(t, "Instructions sent first.", out.Entry.Definition)
}

func TestParseReply_MarkerWithoutSpaceContinuesPoint(t *testing.T) {
	reply := "Main Topic: Scaling\n- The factor\n*2 is applied twice\n- Offsets use\n-1 as a sentinel\n* last"
	out := ParseReply(0, reply, DefaultTemplate(ModeSummary))

	require.NotNil(t, out.Summary, out.Reason)
	assert.Equal(t, []string{
		"The factor *2 is applied twice",
		"Offsets use -1 as a sentinel",
		"last",
	}, out.Summary.Points)
}

func TestParseReply_NumberedDisabled(t *testing.T) {
	tmpl := DefaultTemplate(ModeSummary)
	tmpl.Labels.Numbered = false

	out := ParseReply(0, "Main Topic: Steps\n- first\n2. still first", tmpl)
	require.NotNil(t, out.Summary, out.Reason)
	assert.Equal(t, []string{"first 2. still first"}, out.Summary.Points)
}

func TestParseReply_SummaryMalformed(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{"no topic label", "Intro\n• a"},
		{"empty topic", "Main Topic:\n• a"},
		{"no points", "Main Topic: Intro\nJust prose without bullets."},
		{"empty", "   "},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out := ParseReply(2, tc.reply, DefaultTemplate(ModeSummary))
			assert.True(t, out.Skipped)
			assert.Equal(t, 2, out.Index)
			assert.NotEmpty(t, out.Reason)
		})
	}
}

func TestParseReply_CustomLabels(t *testing.T) {
	tmpl := DefaultTemplate(ModeSummary)
	tmpl.Labels.Topic = "Thema:"
	tmpl.Labels.Bullets = []string{"+"}

	out := ParseReply(0, "Thema: Einleitung\n+ eins\n+ zwei", tmpl)
	require.NotNil(t, out.Summary, out.Reason)
	assert.Equal(t, "Einleitung", out.Summary.Topic)
	assert.Equal(t, []string{"eins", "zwei"}, out.Summary.Points)
}

func TestIndexFold(t *testing.T) {
	assert.Equal(t, 0, indexFold("TERM: x", "term:"))
	assert.Equal(t, 6, indexFold("ÄÖ: term: x", "TERM:"))
	assert.Equal(t, -1, indexFold("no label", "TERM:"))
	assert.Equal(t, -1, indexFold("TE", "TERM:"))
}
