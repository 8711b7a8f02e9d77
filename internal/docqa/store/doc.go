// Package store 提供 docqa 服务的数据存储层。
//
// DocumentStore 管理上传目录中的原始 PDF 文件，
// MemoryIndex 是一次构建、只读共享的内存向量索引。
package store
