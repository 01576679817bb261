package embedding

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/meguminnnnnnnnn/go-openai"
	"golang.org/x/sync/errgroup"
)

// defaultBatchSize 是每次请求提交的文本数量上限，用于适配服务端的批量限制。
const defaultBatchSize = 16

// maxConcurrentBatches 限制并发的 embedding 请求数量。
const maxConcurrentBatches = 4

// OpenAIModel 是一个用于 OpenAI / Azure OpenAI API 的 Embedding 模型客户端。
type OpenAIModel struct {
	client    *openai.Client // OpenAI 客户端实例。
	model     string         // 要使用的模型（或 Azure 部署）名称。
	batchSize int            // 单次请求的批量大小。
}

// NewOpenAIModel 创建一个直连 OpenAI API 的客户端。
func NewOpenAIModel(apiKey, modelName string, batchSize int) (*OpenAIModel, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai api key must not be empty")
	}
	config := openai.DefaultConfig(apiKey)
	return newOpenAIModel(config, modelName, batchSize)
}

// NewAzureOpenAIModel 创建一个使用 Azure OpenAI 服务的客户端。
// deployment 是 Azure 上的 embedding 部署名称。
func NewAzureOpenAIModel(apiKey, endpoint, deployment, apiVersion string, batchSize int) (*OpenAIModel, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("azure openai api key must not be empty")
	}
	if endpoint == "" {
		return nil, fmt.Errorf("azure openai endpoint must not be empty")
	}
	config := openai.DefaultAzureConfig(apiKey, endpoint)
	if apiVersion != "" {
		config.APIVersion = apiVersion
	}
	return newOpenAIModel(config, deployment, batchSize)
}

func newOpenAIModel(config openai.ClientConfig, modelName string, batchSize int) (*OpenAIModel, error) {
	if modelName == "" {
		return nil, fmt.Errorf("embedding model name must not be empty")
	}
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	client := openai.NewClientWithConfig(config)
	return &OpenAIModel{client: client, model: modelName, batchSize: batchSize}, nil
}

// Embed 为单个文本生成嵌入向量。
func (m *OpenAIModel) Embed(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := m.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

// EmbedBatch 为一批文本生成嵌入向量。文本按 batchSize 切分后并发提交，
// 结果按输入顺序写回对应位置，保证输出顺序与输入一致。
func (m *OpenAIModel) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	// 换行替换为空格可以提升 embedding 质量。
	cleaned := make([]string, len(texts))
	for i, t := range texts {
		cleaned[i] = strings.ReplaceAll(t, "\n", " ")
	}

	out := make([][]float32, len(texts))

	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(maxConcurrentBatches)

	for start := 0; start < len(cleaned); start += m.batchSize {
		start := start
		end := start + m.batchSize
		if end > len(cleaned) {
			end = len(cleaned)
		}

		eg.Go(func() error {
			req := openai.EmbeddingRequest{
				Input: cleaned[start:end],
				Model: openai.EmbeddingModel(m.model),
			}
			resp, err := m.client.CreateEmbeddings(gctx, req)
			if err != nil {
				return fmt.Errorf("failed to create embeddings: %w", err)
			}
			if len(resp.Data) != end-start {
				return fmt.Errorf("embedding count mismatch: got %d, want %d", len(resp.Data), end-start)
			}
			for i, d := range resp.Data {
				out[start+i] = d.Embedding
			}
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// 编译时检查，确保 OpenAIModel 实现了 Embedding 接口。
var _ Embedding = (*OpenAIModel)(nil)
