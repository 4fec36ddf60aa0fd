package openai

import "fmt"

const summarySystemPrompt = `You write short expert profiles for a directory of researchers and practitioners.

Rules:
- Output only bullet points, one per line, each starting with "- ".
- Use at most five bullets.
- Describe areas of expertise and notable contributions.
- Use only facts present in the profile. Do not invent employers, degrees or publications.
- Do not include any preamble, greeting or closing remark.`

const summaryPromptTemplate = `Summarize the author's expertise and contributions as bullet points.

Profile:
%s`

func buildSummaryPrompt(profile string) string {
	return fmt.Sprintf(summaryPromptTemplate, profile)
}
