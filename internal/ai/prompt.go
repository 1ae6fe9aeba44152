package ai

import "fmt"

// buildPrompt renders the instruction for the requested action, folding in
// optional style and tone modifiers.
func buildPrompt(req Request) string {
	stylePrompt := ""
	if req.Style != "" {
		stylePrompt = fmt.Sprintf("Write in a %s style.", req.Style)
	}
	tonePrompt := ""
	if req.Tone != "" {
		tonePrompt = fmt.Sprintf("Use a %s tone.", req.Tone)
	}

	switch Action(req.Action) {
	case ActionImprove:
		return fmt.Sprintf("Improve the following text by enhancing clarity, grammar, and style. %s %s Focus on making it more engaging and professional while maintaining the original meaning:\n\n%s",
			stylePrompt, tonePrompt, req.Content)

	case ActionExpand:
		return fmt.Sprintf("Expand the following text by adding more details, examples, and context. %s %s Make it more comprehensive and informative:\n\n%s",
			stylePrompt, tonePrompt, req.Content)

	case ActionSummarize:
		return fmt.Sprintf("Create a concise summary of the following text, capturing the key points and main ideas:\n\n%s", req.Content)

	case ActionRewrite:
		return fmt.Sprintf("Rewrite the following text with a different approach while maintaining the core message. %s %s Make it fresh and engaging:\n\n%s",
			stylePrompt, tonePrompt, req.Content)

	case ActionCustom:
		if req.CustomPrompt != "" {
			return fmt.Sprintf("%s\n\nText to work with:\n%s", req.CustomPrompt, req.Content)
		}
		return fmt.Sprintf("Improve the following text:\n\n%s", req.Content)

	default:
		return fmt.Sprintf("Improve the following text:\n\n%s", req.Content)
	}
}
