package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildPrompt(t *testing.T) {
	tests := []struct {
		name     string
		request  Request
		contains []string
	}{
		{
			name:     "improve",
			request:  Request{Content: "draft text", Action: "improve"},
			contains: []string{"Improve the following text", "draft text"},
		},
		{
			name:     "improve_with_style_and_tone",
			request:  Request{Content: "draft text", Action: "improve", Style: "academic", Tone: "formal"},
			contains: []string{"academic style", "formal tone", "draft text"},
		},
		{
			name:     "expand",
			request:  Request{Content: "draft text", Action: "expand"},
			contains: []string{"Expand the following text", "more comprehensive"},
		},
		{
			name:     "summarize",
			request:  Request{Content: "draft text", Action: "summarize"},
			contains: []string{"concise summary", "draft text"},
		},
		{
			name:     "rewrite",
			request:  Request{Content: "draft text", Action: "rewrite"},
			contains: []string{"Rewrite the following text", "core message"},
		},
		{
			name:     "custom_with_prompt",
			request:  Request{Content: "draft text", Action: "custom", CustomPrompt: "Translate to pirate speak"},
			contains: []string{"Translate to pirate speak", "Text to work with", "draft text"},
		},
		{
			name:     "custom_without_prompt_falls_back",
			request:  Request{Content: "draft text", Action: "custom"},
			contains: []string{"Improve the following text", "draft text"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prompt := buildPrompt(tt.request)
			for _, want := range tt.contains {
				assert.Contains(t, prompt, want)
			}
		})
	}
}

func TestImprovementSummary(t *testing.T) {
	assert.Equal(t, "Added 3 words for better clarity", improvementSummary("one", "one two three four"))
	assert.Equal(t, "Reduced by 2 words for conciseness", improvementSummary("one two three", "one"))
	assert.Equal(t, "Maintained length while improving quality", improvementSummary("one two", "three four"))
}
