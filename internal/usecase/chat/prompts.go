package chat

import (
	"strconv"
	"strings"

	"github.com/kailas-cloud/docqa/internal/domain"
)

const condenseInstruction = `Given the following conversation and a follow up question, ` +
	`rephrase the follow up question to be a standalone question, in its original language. ` +
	`Reply with the standalone question only.`

const answerInstruction = `Use only the following pieces of context to answer the question at the end. ` +
	`If the answer is not contained in the context, say that you don't know; do not make up an answer.`

// condenseMessages renders the history oldest first followed by the follow-up question.
func condenseMessages(history domain.ChatHistory, question string) []domain.Message {
	var b strings.Builder
	b.WriteString(condenseInstruction)
	b.WriteString("\n\nChat History:\n")
	for _, turn := range history {
		b.WriteString("Human: ")
		b.WriteString(turn.Question)
		b.WriteString("\nAssistant: ")
		b.WriteString(turn.Answer)
		b.WriteString("\n")
	}
	b.WriteString("Follow Up Input: ")
	b.WriteString(question)
	b.WriteString("\nStandalone question:")

	return []domain.Message{{Role: domain.RoleUser, Content: b.String()}}
}

// answerMessages places the retrieved chunks in rank order ahead of the question.
func answerMessages(chunks []domain.ScoredChunk, question string) []domain.Message {
	var b strings.Builder
	b.WriteString(answerInstruction)
	b.WriteString("\n\n")
	for i, c := range chunks {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("[")
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteString("] ")
		b.WriteString(c.Chunk.Text)
	}

	return []domain.Message{
		{Role: domain.RoleSystem, Content: b.String()},
		{Role: domain.RoleUser, Content: question},
	}
}
