package docqa

import (
	"time"

	"github.com/kailas-cloud/docqa/internal/domain"
	ingestuc "github.com/kailas-cloud/docqa/internal/usecase/ingest"
)

// Turn is one prior exchange of a conversation.
type Turn struct {
	Question string
	Answer   string
}

// Answer is the result of Ask.
type Answer struct {
	Text string
	// Question is the question as asked.
	Question string
	// StandaloneQuestion is the history-independent form that was used for retrieval.
	StandaloneQuestion string
	Sources            []Source
}

// Source is a chunk the answer was grounded on.
type Source struct {
	Document string
	Page     int
	Score    float64
	Text     string
}

// IngestReport summarizes an Ingest call.
type IngestReport struct {
	Source   string
	Index    string
	Pages    int
	Chunks   int
	Pruned   int // stale chunks removed from an earlier, longer version
	Duration time.Duration
}

func historyToDomain(turns []Turn) domain.ChatHistory {
	if len(turns) == 0 {
		return nil
	}
	h := make(domain.ChatHistory, len(turns))
	for i, t := range turns {
		h[i] = domain.ChatTurn{Question: t.Question, Answer: t.Answer}
	}
	return h
}

func answerFromDomain(r domain.QueryResult) Answer {
	a := Answer{
		Text:               r.Answer,
		Question:           r.Question,
		StandaloneQuestion: r.ResolvedQuestion,
	}
	if len(r.Chunks) > 0 {
		a.Sources = make([]Source, len(r.Chunks))
		for i, c := range r.Chunks {
			a.Sources[i] = Source{
				Document: c.Chunk.Source,
				Page:     c.Chunk.Page,
				Score:    c.Score,
				Text:     c.Chunk.Text,
			}
		}
	}
	return a
}

func reportFromIngest(r ingestuc.Report) IngestReport {
	return IngestReport{
		Source:   r.Source,
		Index:    r.Index,
		Pages:    r.Pages,
		Chunks:   r.Chunks,
		Pruned:   r.Pruned,
		Duration: r.Duration,
	}
}
