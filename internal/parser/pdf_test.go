package parser

import (
	"testing"

	"github.com/dgallion1/docdigest/internal/doctree"
)

func TestClassifyRows_SingleHeadingSize(t *testing.T) {
	rows := []textRow{
		{text: "Introduction", size: 14},
		{text: "Body line one of the introduction.", size: 10},
		{text: "Body line two of the introduction.", size: 10},
		{text: "Results", size: 14},
		{text: "Results body text is here.", size: 10},
	}
	elements := classifyRows(rows)

	if len(elements) != 4 {
		t.Fatalf("expected 4 elements, got %d: %+v", len(elements), elements)
	}
	if elements[0].Path != doctree.HeadingPath(2) || elements[2].Path != doctree.HeadingPath(2) {
		t.Errorf("expected single heading size to map to H2, got %q and %q", elements[0].Path, elements[2].Path)
	}
	body, _ := elements[1].Content()
	if body != "Body line one of the introduction.\nBody line two of the introduction." {
		t.Errorf("unexpected body text %q", body)
	}
}

func TestClassifyRows_RankedHeadingSizes(t *testing.T) {
	rows := []textRow{
		{text: "Paper Title", size: 20},
		{text: "Abstract text that is long enough to be body.", size: 10},
		{text: "Methods", size: 14},
		{text: "Method details go here in the body.", size: 10},
	}
	elements := classifyRows(rows)
	if elements[0].Path != doctree.HeadingPath(1) {
		t.Errorf("expected largest size to be H1, got %q", elements[0].Path)
	}
	if elements[2].Path != doctree.HeadingPath(2) {
		t.Errorf("expected second size to be H2, got %q", elements[2].Path)
	}
}

func TestClassifyRows_LongLargeRowIsBody(t *testing.T) {
	long := make([]byte, maxHeadingLen+1)
	for i := range long {
		long[i] = 'x'
	}
	rows := []textRow{
		{text: "short body", size: 10},
		{text: string(long), size: 20},
	}
	for _, el := range classifyRows(rows) {
		if el.Path != doctree.ParagraphPath {
			t.Errorf("expected only paragraphs, got %q", el.Path)
		}
	}
}

func TestClassifyRows_Empty(t *testing.T) {
	if got := classifyRows(nil); len(got) != 0 {
		t.Errorf("expected no elements, got %d", len(got))
	}
}
