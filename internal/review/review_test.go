package review

import (
	"strings"
	"testing"

	"github.com/venturist-ai/venturist/internal/githubx"
)

func TestDecodeReviewAcceptsFencedJSON(t *testing.T) {
	var rev Review
	content := "```json\n{\"summary\":\"looks fine\",\"verdict\":\"approve\",\"issues\":[]}\n```"
	if err := decodeReview(content, &rev); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rev.Verdict != "approve" || rev.Summary != "looks fine" {
		t.Fatalf("unexpected review %+v", rev)
	}
}

func TestDecodeReviewRejectsProseWithRawText(t *testing.T) {
	var rev Review
	err := decodeReview("Sure! Here is my review: it's great.", &rev)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "Sure!") {
		t.Fatalf("expected raw text in error, got %v", err)
	}
}

func TestDecodeReviewVerdicts(t *testing.T) {
	var rev Review
	if err := decodeReview(`{"summary":"s","verdict":"ship it"}`, &rev); err == nil {
		t.Fatal("expected error for unknown verdict")
	}
	rev = Review{}
	if err := decodeReview(`{"summary":"s"}`, &rev); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rev.Verdict != "comment" {
		t.Fatalf("expected empty verdict to default to comment, got %q", rev.Verdict)
	}
}

func TestBuildPromptRespectsBudget(t *testing.T) {
	pr := githubx.PullRequest{Number: 7, Title: "Add widget", Author: "dev", Base: "main", Head: "feature"}
	big := strings.Repeat("x", maxPatchBytes)
	files := []githubx.ChangedFile{
		{Filename: "small.go", Status: "modified", Patch: "@@ -1 +1 @@\n-old\n+new"},
		{Filename: "huge.go", Status: "modified", Patch: big},
	}
	prompt := buildPrompt(pr, files)
	if !strings.Contains(prompt, "small.go") || !strings.Contains(prompt, "+new") {
		t.Fatal("expected small diff included")
	}
	if !strings.Contains(prompt, "huge.go") {
		t.Fatal("expected huge file header included")
	}
	if !strings.Contains(prompt, "prompt budget exhausted") {
		t.Fatal("expected oversized diff omitted")
	}
	if strings.Contains(prompt, big) {
		t.Fatal("oversized patch leaked into prompt")
	}
}

func TestMarkdownRendersIssues(t *testing.T) {
	rev := Review{
		Summary: "Mostly fine.",
		Verdict: "request_changes",
		Issues: []Issue{
			{File: "a.go", Severity: "blocker", Comment: "nil deref | possible"},
		},
	}
	md := rev.Markdown()
	if !strings.Contains(md, "request_changes") {
		t.Fatal("expected verdict in markdown")
	}
	if !strings.Contains(md, `nil deref \| possible`) {
		t.Fatalf("expected escaped pipe in table, got %s", md)
	}
}
