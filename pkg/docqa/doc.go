// Package docqa is an embeddable Go client for conversational question
// answering over a document corpus stored in Redis (or Valkey) with the
// search module.
//
// The client runs the same pipeline as the docqa server and CLI in-process:
// documents are split into overlapping chunks, embedded and upserted into an
// HNSW index; questions are condensed against the chat history, answered
// from the top matching chunks at temperature zero.
//
//	client, _ := docqa.New(ctx,
//	    docqa.WithRedis("localhost:6379", ""),
//	    docqa.WithGemini(os.Getenv("GEMINI_API_KEY")),
//	    docqa.WithIndex("genai-impact"),
//	)
//	defer client.Close()
//
//	_, _ = client.Ingest(ctx, "data/impact_of_generativeAI.pdf")
//	ans, _ := client.Ask(ctx, "What is the impact of generative AI?", nil)
//	ans, _ = client.Ask(ctx, "What about its cost?", []docqa.Turn{{Question: ans.Question, Answer: ans.Text}})
package docqa
