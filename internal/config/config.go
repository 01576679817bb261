package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// MilvusConfig 定义了 Milvus 向量数据库的连接配置。
type MilvusConfig struct {
	Address        string `yaml:"address"`        // Milvus 服务地址 (例如: "localhost:19530")
	Token          string `yaml:"token"`          // 访问令牌 (云端部署使用, 可由 MILVUS_TOKEN 覆盖)
	CollectionName string `yaml:"collectionName"` // 集合名称
	EmbeddingDim   int    `yaml:"embeddingDim"`   // 向量维度
}

// OpenAIConfig holds the OpenAI / Azure OpenAI embedding backend settings.
// When Endpoint is set the client speaks the Azure API using Deployment as
// the model deployment name.
type OpenAIConfig struct {
	APIKey     string `yaml:"apiKey"` // overridden by OPENAI_API_KEY / AZURE_OPENAI_API_KEY
	Model      string `yaml:"model"`
	Endpoint   string `yaml:"endpoint"`
	Deployment string `yaml:"deployment"`
	APIVersion string `yaml:"apiVersion"`
}

// OllamaConfig holds the local Ollama embedding backend settings.
type OllamaConfig struct {
	BaseURL string `yaml:"baseURL"`
	Model   string `yaml:"model"`
}

// EmbeddingConfig selects and configures the embedding provider.
type EmbeddingConfig struct {
	Provider  string       `yaml:"provider"` // "openai" or "ollama"
	BatchSize int          `yaml:"batchSize"`
	OpenAI    OpenAIConfig `yaml:"openai"`
	Ollama    OllamaConfig `yaml:"ollama"`
}

// RepositoryConfig configures the remote markdown source. An empty URL
// disables repository acquisition and the pipeline runs on local files only.
type RepositoryConfig struct {
	URL    string   `yaml:"url"`
	Token  string   `yaml:"token"` // overridden by GITHUB_TOKEN
	Ignore []string `yaml:"ignore"`
}

// LocalFilesConfig configures ingestion from the local data directory.
type LocalFilesConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Directory string `yaml:"directory"`
}

// ChunkingConfig configures the document splitter.
type ChunkingConfig struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

// IndexingConfig controls the incremental behavior of a pipeline run.
type IndexingConfig struct {
	SkipExistingDocuments bool `yaml:"skipExistingDocuments"`
	ForceReprocess        bool `yaml:"forceReprocess"`
}

// ServerConfig configures the query service HTTP listener.
type ServerConfig struct {
	HTTPAddr string `yaml:"httpAddr"`
}

// LoggerConfig 日志配置。
type LoggerConfig struct {
	Level string `yaml:"level"` // debug / info / warn / error
}

// AppConfig 是应用的顶层配置。
type AppConfig struct {
	Logger     LoggerConfig     `yaml:"logger"`
	Server     ServerConfig     `yaml:"server"`
	Milvus     MilvusConfig     `yaml:"milvus"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Repository RepositoryConfig `yaml:"repository"`
	LocalFiles LocalFilesConfig `yaml:"localFiles"`
	Chunking   ChunkingConfig   `yaml:"chunking"`
	Indexing   IndexingConfig   `yaml:"indexing"`
}

// LoadConfig 从给定路径读取 YAML 配置文件，并用环境变量覆盖敏感字段。
// 如果当前目录存在 .env 文件，会先将其加载进环境。
func LoadConfig(path string) (*AppConfig, error) {
	// .env 文件是可选的，加载失败不视为错误。
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if cfg.Milvus.CollectionName == "" {
		return nil, fmt.Errorf("milvus.collectionName must not be empty")
	}
	if cfg.Milvus.EmbeddingDim <= 0 {
		return nil, fmt.Errorf("milvus.embeddingDim must be positive, got %d", cfg.Milvus.EmbeddingDim)
	}
	return cfg, nil
}

// defaultConfig mirrors the reference deployment defaults.
func defaultConfig() *AppConfig {
	return &AppConfig{
		Logger: LoggerConfig{Level: "info"},
		Server: ServerConfig{HTTPAddr: ":8080"},
		Milvus: MilvusConfig{
			Address:        "localhost:19530",
			CollectionName: "readme_embeddings",
			EmbeddingDim:   1536,
		},
		Embedding: EmbeddingConfig{
			Provider:  "openai",
			BatchSize: 16,
			OpenAI:    OpenAIConfig{Model: "text-embedding-ada-002", APIVersion: "2024-02-15-preview"},
			Ollama:    OllamaConfig{BaseURL: "http://localhost:11434", Model: "nomic-embed-text"},
		},
		LocalFiles: LocalFilesConfig{Enabled: true, Directory: "./data/diagrams"},
		Chunking:   ChunkingConfig{Size: 1000, Overlap: 200},
		Indexing:   IndexingConfig{SkipExistingDocuments: true},
	}
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Embedding.OpenAI.APIKey = v
	}
	if v := os.Getenv("AZURE_OPENAI_API_KEY"); v != "" {
		cfg.Embedding.OpenAI.APIKey = v
	}
	if v := os.Getenv("MILVUS_TOKEN"); v != "" {
		cfg.Milvus.Token = v
	}
	if v := os.Getenv("GITHUB_TOKEN"); v != "" {
		cfg.Repository.Token = v
	}
}
