package memory

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"os"
	"strings"
	"unicode"

	chromem "github.com/philippgille/chromem-go"
)

// Embedder turns text into a vector. Name identifies the vector space so
// rows written by another embedder are re-embedded on open.
type Embedder interface {
	Name() string
	Embed(ctx context.Context, text string) ([]float32, error)
}

// LocalDimensions is the width of the offline hashing embedder.
const LocalDimensions = 384

// LocalEmbedder is a deterministic, offline bag-of-words embedder using
// feature hashing. Texts sharing words land close in cosine space, which is
// all duplicate and near-duplicate rule detection needs.
type LocalEmbedder struct {
	dims int
}

// NewLocalEmbedder creates a LocalEmbedder with LocalDimensions buckets.
func NewLocalEmbedder() *LocalEmbedder {
	return &LocalEmbedder{dims: LocalDimensions}
}

// Name implements Embedder.
func (e *LocalEmbedder) Name() string {
	return fmt.Sprintf("local-hash-%d", e.dims)
}

// Embed implements Embedder. The result is L2-normalized.
func (e *LocalEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, e.dims)
	tokens := tokenize(text)
	if len(tokens) == 0 {
		vec[0] = 1
		return vec, nil
	}
	for _, tok := range tokens {
		h := fnv.New32a()
		_, _ = h.Write([]byte(tok))
		vec[h.Sum32()%uint32(e.dims)]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec, nil
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
}

// funcEmbedder adapts a chromem-go embedding function.
type funcEmbedder struct {
	name string
	fn   chromem.EmbeddingFunc
}

func (e *funcEmbedder) Name() string { return e.name }

func (e *funcEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return e.fn(ctx, text)
}

// NewEmbedder resolves an embedding provider identifier:
// "local" (default), "ollama:<model>" or "openai:<model>".
func NewEmbedder(provider string) (Embedder, error) {
	kind, model, _ := strings.Cut(strings.TrimSpace(provider), ":")
	switch kind {
	case "", "local":
		return NewLocalEmbedder(), nil
	case "ollama":
		if model == "" {
			return nil, errors.New("memory: ollama provider needs a model, e.g. ollama:nomic-embed-text")
		}
		baseURL := ""
		if host := os.Getenv("OLLAMA_HOST"); host != "" {
			baseURL = strings.TrimRight(host, "/") + "/api"
		}
		return &funcEmbedder{
			name: provider,
			fn:   chromem.NewEmbeddingFuncOllama(model, baseURL),
		}, nil
	case "openai":
		key := os.Getenv("OPENAI_API_KEY")
		if key == "" {
			return nil, errors.New("memory: openai provider needs OPENAI_API_KEY")
		}
		if model == "" {
			model = string(chromem.EmbeddingModelOpenAI3Small)
		}
		return &funcEmbedder{
			name: "openai:" + model,
			fn:   chromem.NewEmbeddingFuncOpenAI(key, chromem.EmbeddingModelOpenAI(model)),
		}, nil
	default:
		return nil, fmt.Errorf("memory: unknown embedding provider %q", provider)
	}
}
