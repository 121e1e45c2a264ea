package llm

import (
	"strings"

	"github.com/kirillkom/complaint-analyst/internal/core/domain"
)

func buildAnswerPrompt(question string, chunks []domain.SearchResult) string {
	var contextBuilder strings.Builder
	for idx, chunk := range chunks {
		if idx > 0 {
			contextBuilder.WriteString("\n\n")
		}
		contextBuilder.WriteString("- ")
		contextBuilder.WriteString(chunk.Text)
	}

	return `You are a knowledgeable financial analyst assistant for CrediTrust.
Your task is to answer questions about customer complaints using ONLY the provided context.
If the context doesn't contain the answer, state that you don't have enough information.

Context:
` + contextBuilder.String() + `

Question: ` + question + `

Answer:`
}
