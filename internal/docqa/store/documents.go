package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ErrInvalidName 文件名不可用（为空、"." 或包含路径分隔符后为空）。
var ErrInvalidName = errors.New("invalid document name")

// Document 描述上传目录中的一个文档文件。
type Document struct {
	Name    string    `json:"name"`
	Path    string    `json:"-"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"modified_at"`
}

// DocumentStore 以文件名为键，将文档保存在单一目录中。
type DocumentStore struct {
	dir string
}

// NewDocumentStore 创建文档存储，目录不存在时自动创建。
func NewDocumentStore(dir string) (*DocumentStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create document dir %s: %w", dir, err)
	}
	return &DocumentStore{dir: dir}, nil
}

// Dir 返回存储目录。
func (s *DocumentStore) Dir() string { return s.dir }

// SanitizeName 去掉目录部分，只保留文件名。
func SanitizeName(name string) (string, error) {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == ".." || strings.TrimSpace(name) == "" {
		return "", ErrInvalidName
	}
	return name, nil
}

// Save 写入文档。同名文件被覆盖，写入经临时文件加 rename 完成。
func (s *DocumentStore) Save(name string, data []byte) (Document, error) {
	name, err := SanitizeName(name)
	if err != nil {
		return Document{}, err
	}

	path := filepath.Join(s.dir, name)
	if err := writeFileAtomic(path, data); err != nil {
		return Document{}, fmt.Errorf("save document %s: %w", name, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return Document{}, fmt.Errorf("stat document %s: %w", name, err)
	}
	return Document{Name: name, Path: path, Size: info.Size(), ModTime: info.ModTime()}, nil
}

// List 返回目录下所有 .pdf 文件（不区分大小写），按文件名排序。
// 子目录与临时文件被忽略。
func (s *DocumentStore) List() ([]Document, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list documents: %w", err)
	}

	docs := make([]Document, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() || !IsPDFName(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// 并发删除
			continue
		}
		docs = append(docs, Document{
			Name:    e.Name(),
			Path:    filepath.Join(s.dir, e.Name()),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Name < docs[j].Name })
	return docs, nil
}

// Read 读取文档内容。
func (s *DocumentStore) Read(name string) ([]byte, error) {
	name, err := SanitizeName(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return nil, fmt.Errorf("read document %s: %w", name, err)
	}
	return data, nil
}

// IsPDFName 判断文件名是否以 .pdf 结尾（不区分大小写）。
func IsPDFName(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".pdf")
}

// writeFileAtomic 先写同目录临时文件再 rename，读者不会看到半个文件。
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// WriteFileAtomic 供其他组件（文本缓存）复用的原子写。
func WriteFileAtomic(path string, data []byte) error {
	return writeFileAtomic(path, data)
}
