package milvus

import (
	"context"
	"fmt"
	"strconv"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"github.com/NadeeshaMedagama/rag-milvus-vision-pipeline/internal/config"
	"github.com/NadeeshaMedagama/rag-milvus-vision-pipeline/pkg/logger"
)

// nprobe 是 IVF_FLAT 索引的搜索参数，与建索引时的 nlist=128 相配。
const nprobe = 10

// Client 包含了 Milvus 客户端实例和相关配置。连接在 Connect 中一次性建立，
// 之后被同一实例的所有操作复用；连接失败是致命的，不做重连。
type Client struct {
	cli client.Client
	log *logger.Logger
}

// Connect 连接到 Milvus 并返回客户端句柄。
func Connect(ctx context.Context, cfg *config.MilvusConfig, log *logger.Logger) (*Client, error) {
	c, err := client.NewClient(ctx, client.Config{
		Address: cfg.Address,
		APIKey:  cfg.Token,
	})
	if err != nil {
		return nil, fmt.Errorf("无法连接到 Milvus: %w", err)
	}
	log.Info("✅ 成功连接到 Milvus!")
	return &Client{cli: c, log: log}, nil
}

// Close 安全地关闭与 Milvus 的连接。
func (c *Client) Close() {
	if c.cli != nil {
		_ = c.cli.Close()
		c.log.Info("ℹ️ 已安全关闭 Milvus 连接。")
	}
}

// HealthCheck 检查 Milvus 连接的健康状况。
func (c *Client) HealthCheck(ctx context.Context) error {
	if c.cli == nil {
		return fmt.Errorf("milvus client is nil")
	}
	if _, err := c.cli.ListCollections(ctx); err != nil {
		return fmt.Errorf("milvus health check failed: %w", err)
	}
	return nil
}

// HasCollection 检查指定的集合是否存在。
func (c *Client) HasCollection(ctx context.Context, name string) (bool, error) {
	return c.cli.HasCollection(ctx, name)
}

// DropCollection 删除指定的集合。
func (c *Client) DropCollection(ctx context.Context, name string) error {
	return c.cli.DropCollection(ctx, name)
}

// CreateCollection 使用给定的 Schema 创建集合。
func (c *Client) CreateCollection(ctx context.Context, schema *entity.Schema) error {
	return c.cli.CreateCollection(ctx, schema, entity.DefaultShardNumber)
}

// CreateIndex 为指定字段创建索引。
func (c *Client) CreateIndex(ctx context.Context, name, field string, idx entity.Index) error {
	return c.cli.CreateIndex(ctx, name, field, idx, false)
}

// LoadCollection 将集合加载进内存，以供查询和搜索。
func (c *Client) LoadCollection(ctx context.Context, name string) error {
	return c.cli.LoadCollection(ctx, name, false)
}

// DescribeSchema 返回集合当前的 Schema。
func (c *Client) DescribeSchema(ctx context.Context, name string) (*entity.Schema, error) {
	coll, err := c.cli.DescribeCollection(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to describe collection %s: %w", name, err)
	}
	return coll.Schema, nil
}

// Insert 向集合的默认分区插入若干列数据。
func (c *Client) Insert(ctx context.Context, name string, columns ...entity.Column) error {
	if _, err := c.cli.Insert(ctx, name, "" /* default partition */, columns...); err != nil {
		return fmt.Errorf("failed to insert data into Milvus: %w", err)
	}
	return nil
}

// Flush 手动触发一次刷新操作，将内存中的数据写入磁盘并对搜索可见。
func (c *Client) Flush(ctx context.Context, name string) error {
	if err := c.cli.Flush(ctx, name, false); err != nil {
		return fmt.Errorf("刷新集合 '%s' 失败: %w", name, err)
	}
	return nil
}

// Search 在集合中执行 L2 向量相似度搜索。
func (c *Client) Search(ctx context.Context, name string, outputFields []string, vector []float32, vectorField string, topK int) ([]client.SearchResult, error) {
	sp, _ := entity.NewIndexIvfFlatSearchParam(nprobe)

	results, err := c.cli.Search(
		ctx,
		name,
		nil, // all partitions
		"",
		outputFields,
		[]entity.Vector{entity.FloatVector(vector)},
		vectorField,
		entity.L2,
		topK,
		sp,
	)
	if err != nil {
		return nil, fmt.Errorf("搜索集合 '%s' 失败: %w", name, err)
	}
	return results, nil
}

// Query 按标量表达式查询集合，最多返回 limit 行。
func (c *Client) Query(ctx context.Context, name, expr string, outputFields []string, limit int64) ([]entity.Column, error) {
	rs, err := c.cli.Query(ctx, name, nil, expr, outputFields, client.WithLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("查询集合 '%s' 失败: %w", name, err)
	}
	return rs, nil
}

// RowCount 返回集合当前的行数。
func (c *Client) RowCount(ctx context.Context, name string) (int64, error) {
	stats, err := c.cli.GetCollectionStatistics(ctx, name)
	if err != nil {
		return 0, fmt.Errorf("获取集合 '%s' 统计信息失败: %w", name, err)
	}
	count, err := strconv.ParseInt(stats["row_count"], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("解析集合 '%s' 行数失败: %w", name, err)
	}
	return count, nil
}
