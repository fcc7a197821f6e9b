// Package docsearch provides search_docs: an in-memory fixture index
// standing in for a real documentation-retrieval collaborator. spec.md
// leaves this collaborator out of scope but names two concrete integration
// points that need something concrete behind them to be exercised at all:
// sub_complete's context_query and the Agent Runner's auto_context step.
// Real deployments are expected to register their own implementation under
// the same tool name and schema.
package docsearch

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"github.com/basilisk-ai/rce/pkg/rcetypes"
)

// Doc is one fixture document.
type Doc struct {
	Title string
	Body  string
}

// Index implements rcetypes.Tool as search_docs, scoring fixture documents
// by keyword overlap against the query.
type Index struct {
	docs []Doc
}

// New builds an Index over the given fixture documents.
func New(docs ...Doc) *Index {
	return &Index{docs: docs}
}

func (i *Index) Name() string        { return "search_docs" }
func (i *Index) Description() string { return "Searches an in-memory documentation fixture for text relevant to a query." }
func (i *Index) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"query": {"type": "string"},
			"top_k": {"type": "integer"}
		},
		"required": ["query"]
	}`)
}

type searchArgs struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

type scored struct {
	doc   Doc
	score int
}

func (i *Index) Execute(ctx context.Context, args json.RawMessage) (*rcetypes.ToolResult, error) {
	var parsed searchArgs
	if err := json.Unmarshal(args, &parsed); err != nil {
		return &rcetypes.ToolResult{IsError: true, Content: "search_docs: invalid arguments: " + err.Error()}, nil
	}
	topK := parsed.TopK
	if topK <= 0 {
		topK = 3
	}

	terms := strings.Fields(strings.ToLower(parsed.Query))
	ranked := make([]scored, 0, len(i.docs))
	for _, d := range i.docs {
		haystack := strings.ToLower(d.Title + " " + d.Body)
		score := 0
		for _, term := range terms {
			score += strings.Count(haystack, term)
		}
		if score > 0 {
			ranked = append(ranked, scored{doc: d, score: score})
		}
	}
	sort.SliceStable(ranked, func(a, b int) bool { return ranked[a].score > ranked[b].score })
	if len(ranked) > topK {
		ranked = ranked[:topK]
	}

	if len(ranked) == 0 {
		return &rcetypes.ToolResult{Content: ""}, nil
	}

	var b strings.Builder
	for _, r := range ranked {
		b.WriteString(r.doc.Title)
		b.WriteString(": ")
		b.WriteString(r.doc.Body)
		b.WriteString("\n")
	}
	return &rcetypes.ToolResult{Content: strings.TrimRight(b.String(), "\n")}, nil
}
