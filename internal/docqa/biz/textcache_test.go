package biz

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContentHash(t *testing.T) {
	// sha256("abc")
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", ContentHash([]byte("abc")))
	assert.True(t, isHash(ContentHash([]byte("abc"))))
	assert.False(t, isHash("../../etc/passwd"))
	assert.False(t, isHash("abc"))
}

func TestFileTextCache_StoreAndLookup(t *testing.T) {
	dir := t.TempDir()
	cache, err := NewFileTextCache(dir, 2)
	require.NoError(t, err)
	ctx := context.Background()
	hash := ContentHash([]byte("doc"))

	_, ok, err := cache.Lookup(ctx, hash)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.Store(ctx, hash, "extracted \"text\"\n第二行"))

	// 记录是 JSON 字符串
	raw, err := os.ReadFile(filepath.Join(dir, hash+".json"))
	require.NoError(t, err)
	assert.Equal(t, `"extracted \"text\"\n第二行"`, string(raw))

	text, ok, err := cache.Lookup(ctx, hash)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "extracted \"text\"\n第二行", text)
}

func TestFileTextCache_SurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	hash := ContentHash([]byte("doc"))

	first, err := NewFileTextCache(dir, 2)
	require.NoError(t, err)
	require.NoError(t, first.Store(ctx, hash, "persisted"))

	second, err := NewFileTextCache(dir, 0)
	require.NoError(t, err)
	text, ok, err := second.Lookup(ctx, hash)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "persisted", text)
}

func TestFileTextCache_CorruptRecordIsMiss(t *testing.T) {
	dir := t.TempDir()
	cache, err := NewFileTextCache(dir, 0)
	require.NoError(t, err)
	hash := ContentHash([]byte("doc"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, hash+".json"), []byte("{not json"), 0o644))

	_, ok, err := cache.Lookup(context.Background(), hash)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.Store(context.Background(), hash, "fixed"))
	text, ok, err := cache.Lookup(context.Background(), hash)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "fixed", text)
}

func TestFileTextCache_RejectsInvalidKey(t *testing.T) {
	cache, err := NewFileTextCache(t.TempDir(), 0)
	require.NoError(t, err)

	_, _, err = cache.Lookup(context.Background(), "../secret")
	assert.Error(t, err)
	assert.Error(t, cache.Store(context.Background(), "doc1.pdf", "text"))
}

func TestFileTextCache_ConcurrentStoreSameHash(t *testing.T) {
	dir := t.TempDir()
	cache, err := NewFileTextCache(dir, 4)
	require.NoError(t, err)
	hash := ContentHash([]byte("doc"))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, cache.Store(context.Background(), hash, "same text"))
		}()
	}
	wg.Wait()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "临时文件应被清理")
	assert.Equal(t, hash+".json", entries[0].Name())
}

// setupTestRedis 创建测试用 Redis 客户端，不可用时跳过。
func setupTestRedis(t *testing.T) *goredis.Client {
	client := goredis.NewClient(&goredis.Options{
		Addr: "localhost:6379",
		DB:   15, // 使用测试专用数据库
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skip("Redis 不可用，跳过测试")
	}
	client.FlushDB(ctx)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisTextCache(t *testing.T) {
	client := setupTestRedis(t)
	cache := NewRedisTextCache(client, "test:docqa:text:")
	ctx := context.Background()
	hash := ContentHash([]byte("doc"))

	_, ok, err := cache.Lookup(ctx, hash)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.Store(ctx, hash, "redis text"))
	require.NoError(t, cache.Store(ctx, hash, "redis text"))

	raw, err := client.Get(ctx, "test:docqa:text:"+hash).Result()
	require.NoError(t, err)
	assert.Equal(t, `"redis text"`, raw)

	text, ok, err := cache.Lookup(ctx, hash)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "redis text", text)
}
