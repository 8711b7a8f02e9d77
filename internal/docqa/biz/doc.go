// Package biz 提供 docqa 服务的业务逻辑层。
//
// 组件按依赖顺序：
//   - TextCache: 以内容哈希为键缓存提取出的文本
//   - Extractor: 从 PDF 字节中提取纯文本
//   - Chunker: 确定性的递归分块
//   - IndexBuilder: 批量 Embedding 并构建内存索引
//   - Workflow: expand -> search -> summarize -> generate 四阶段问答
//   - Orchestrator: 处理上传与提问，原子发布索引快照
package biz
