package biz

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	lru "github.com/hashicorp/golang-lru/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kart-io/docqa/internal/docqa/store"
	"github.com/kart-io/docqa/pkg/utils/json"
)

// TextCache 以文档内容哈希为键缓存提取出的文本。
// 同一哈希重复 Store 写入相同内容，是幂等的。
type TextCache interface {
	// Lookup 返回缓存文本；未命中时 ok 为 false 且 err 为 nil。
	Lookup(ctx context.Context, hash string) (text string, ok bool, err error)
	// Store 写入缓存。
	Store(ctx context.Context, hash, text string) error
}

// ContentHash 计算文档内容的 SHA-256（十六进制）。
func ContentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// isHash 校验缓存键，避免路径穿越。
func isHash(s string) bool {
	if len(s) != sha256.Size*2 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

// FileTextCache 将文本以 JSON 字符串形式保存在 <dir>/<hash>.json，
// 前面加一层有界 LRU 以减少磁盘读取。
type FileTextCache struct {
	dir  string
	memo *lru.Cache[string, string]
}

var _ TextCache = (*FileTextCache)(nil)

// NewFileTextCache 创建文件缓存。memoSize <= 0 时不启用内存层。
func NewFileTextCache(dir string, memoSize int) (*FileTextCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir %s: %w", dir, err)
	}
	c := &FileTextCache{dir: dir}
	if memoSize > 0 {
		memo, err := lru.New[string, string](memoSize)
		if err != nil {
			return nil, err
		}
		c.memo = memo
	}
	return c, nil
}

func (c *FileTextCache) path(hash string) string {
	return filepath.Join(c.dir, hash+".json")
}

// Lookup 先查内存再查磁盘。记录损坏视为未命中，下次 Store 会覆盖。
func (c *FileTextCache) Lookup(_ context.Context, hash string) (string, bool, error) {
	if !isHash(hash) {
		return "", false, fmt.Errorf("invalid cache key %q", hash)
	}
	if c.memo != nil {
		if text, ok := c.memo.Get(hash); ok {
			return text, true, nil
		}
	}

	data, err := os.ReadFile(c.path(hash))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("read cache record %s: %w", hash, err)
	}

	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		return "", false, nil
	}
	if c.memo != nil {
		c.memo.Add(hash, text)
	}
	return text, true, nil
}

// Store 写入磁盘记录并更新内存层。
func (c *FileTextCache) Store(_ context.Context, hash, text string) error {
	if !isHash(hash) {
		return fmt.Errorf("invalid cache key %q", hash)
	}
	data, err := json.Marshal(text)
	if err != nil {
		return fmt.Errorf("marshal cache record: %w", err)
	}
	if err := store.WriteFileAtomic(c.path(hash), data); err != nil {
		return fmt.Errorf("write cache record %s: %w", hash, err)
	}
	if c.memo != nil {
		c.memo.Add(hash, text)
	}
	return nil
}

// RedisTextCache 将文本以 JSON 字符串保存在 <prefix><hash>，不设过期。
type RedisTextCache struct {
	client *goredis.Client
	prefix string
}

var _ TextCache = (*RedisTextCache)(nil)

// NewRedisTextCache 创建 Redis 缓存。
func NewRedisTextCache(client *goredis.Client, prefix string) *RedisTextCache {
	return &RedisTextCache{client: client, prefix: prefix}
}

// Lookup 读取缓存，redis.Nil 视为未命中。
func (c *RedisTextCache) Lookup(ctx context.Context, hash string) (string, bool, error) {
	data, err := c.client.Get(ctx, c.prefix+hash).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("redis get %s: %w", hash, err)
	}

	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		return "", false, nil
	}
	return text, true, nil
}

// Store 写入缓存。
func (c *RedisTextCache) Store(ctx context.Context, hash, text string) error {
	data, err := json.Marshal(text)
	if err != nil {
		return fmt.Errorf("marshal cache record: %w", err)
	}
	if err := c.client.Set(ctx, c.prefix+hash, data, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", hash, err)
	}
	return nil
}
