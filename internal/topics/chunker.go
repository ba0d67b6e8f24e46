package topics

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

const DefaultChunkModel = "gpt-4o-mini"

// Result is the outcome of chunking one piece of transcript.
type Result struct {
	Chunks       map[string]string // topic ID -> completed chunk text
	Descriptions map[string]string // topic ID -> updated description
	Incomplete   string            // trailing text that does not yet form a complete thought
}

// Chunker splits transcript text into topic chunks.
type Chunker interface {
	Chunk(ctx context.Context, transcript, existingTopics string) Result
}

type ChunkerConfig struct {
	APIKey  string
	BaseURL string // OpenAI-compatible endpoint; empty uses api.openai.com
	Model   string
	Timeout time.Duration
}

// OpenAIChunker asks an OpenAI-compatible chat model to segment text by topic.
type OpenAIChunker struct {
	client *openai.Client
	config ChunkerConfig
}

func NewOpenAIChunker(cfg ChunkerConfig) *OpenAIChunker {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultChunkModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &OpenAIChunker{
		client: openai.NewClientWithConfig(clientCfg),
		config: cfg,
	}
}

type chunkAssignment struct {
	ExistingTopicID    string `json:"existing_topic_id"`
	NewTopicID         string `json:"new_topic_id"`
	UpdatedDescription string `json:"updated_description"`
	ChunkContent       string `json:"chunk_content"`
	IsComplete         *bool  `json:"is_complete"`
}

type chunkResponse struct {
	Assignments    []chunkAssignment `json:"assignments"`
	IncompleteText string            `json:"incomplete_text"`
}

const chunkSystemPrompt = `You segment live speech transcripts into topics. Reply with a JSON object:
{"assignments":[{"existing_topic_id":"","new_topic_id":"","updated_description":"","chunk_content":"","is_complete":true}],"incomplete_text":""}

Rules:
- Use existing_topic_id with the exact ID when a chunk continues a known topic, otherwise set new_topic_id.
- Set exactly one of existing_topic_id or new_topic_id.
- Use short descriptive IDs such as "introduction", "budget" or "example_1".
- Give updated_description only when the topic's meaning has notably shifted, or for new topics.
- Mark is_complete true only when the speaker clearly finished the thought.
- Put unfinished trailing speech in incomplete_text instead of an assignment.`

func buildChunkPrompt(transcript, existingTopics string) string {
	var b strings.Builder
	if existingTopics != "" {
		b.WriteString("Existing topics:\n")
		b.WriteString(existingTopics)
		b.WriteString("\n\n")
	}
	b.WriteString("Transcript:\n")
	b.WriteString(transcript)
	return b.String()
}

// Chunk never fails: on any error the whole input comes back as incomplete
// text so it can be retried with the next dump.
func (c *OpenAIChunker) Chunk(ctx context.Context, transcript, existingTopics string) Result {
	fallback := Result{Incomplete: transcript}
	if strings.TrimSpace(transcript) == "" {
		return fallback
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model: c.config.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: chunkSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildChunkPrompt(transcript, existingTopics)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
		Temperature:    0.2,
	}

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		log.Printf("topics: chunking failed after %v: %v", time.Since(start), err)
		return fallback
	}
	if len(resp.Choices) == 0 {
		log.Printf("topics: chunking returned no choices")
		return fallback
	}

	result, err := parseChunkResponse(resp.Choices[0].Message.Content)
	if err != nil {
		log.Printf("topics: %v", err)
		return fallback
	}
	log.Printf("topics: chunked %d words into %d topics in %v", len(strings.Fields(transcript)), len(result.Chunks), time.Since(start))
	return result
}

func parseChunkResponse(content string) (Result, error) {
	var parsed chunkResponse
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return Result{}, fmt.Errorf("decode chunking response: %w", err)
	}

	result := Result{
		Chunks:       make(map[string]string),
		Descriptions: make(map[string]string),
		Incomplete:   strings.TrimSpace(parsed.IncompleteText),
	}
	for _, a := range parsed.Assignments {
		content := strings.TrimSpace(a.ChunkContent)
		if content == "" {
			continue
		}
		if a.IsComplete != nil && !*a.IsComplete {
			result.Incomplete = joinText(result.Incomplete, content)
			continue
		}
		id := a.ExistingTopicID
		if id == "" {
			id = a.NewTopicID
		}
		if id == "" {
			continue
		}
		result.Chunks[id] = joinText(result.Chunks[id], content)
		if a.UpdatedDescription != "" {
			result.Descriptions[id] = a.UpdatedDescription
		}
	}
	return result, nil
}

func joinText(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	}
	return a + " " + b
}
