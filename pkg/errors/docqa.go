package errors

import (
	"net/http"

	"google.golang.org/grpc/codes"
)

// docqa 服务错误码: 20 (业务服务范围 20-79)
var (
	// ErrInvalidInput 用户可修正的输入错误（非 PDF、空问题等），不产生任何状态变化。
	ErrInvalidInput = Register(New(MakeCode(ServiceDocQA, CategoryRequest, 1),
		http.StatusBadRequest, codes.InvalidArgument, "Invalid input", "输入无效"))

	// ErrExtractionFailed 单个文档无法提取文本；重建时仅作为告警记录。
	ErrExtractionFailed = Register(New(MakeCode(ServiceDocQA, CategoryRequest, 2),
		http.StatusUnprocessableEntity, codes.InvalidArgument, "Text extraction failed", "文本提取失败"))

	// ErrEmptyCorpus 语料中没有可索引的文本。
	ErrEmptyCorpus = Register(New(MakeCode(ServiceDocQA, CategoryInternal, 1),
		http.StatusInternalServerError, codes.FailedPrecondition, "No text available to index", "没有可索引的文本"))

	// ErrNotReady 尚未成功构建过索引。
	ErrNotReady = Register(New(MakeCode(ServiceDocQA, CategoryInternal, 2),
		http.StatusServiceUnavailable, codes.Unavailable, "No documents have been uploaded yet", "尚未上传任何文档"))

	// ErrDocumentStore 文档落盘或读取失败。
	ErrDocumentStore = Register(New(MakeCode(ServiceDocQA, CategoryInternal, 3),
		http.StatusInternalServerError, codes.Internal, "Document storage failed", "文档存储失败"))

	// ErrCacheWrite 文本缓存写入失败（非致命，仅记录日志）。
	ErrCacheWrite = Register(New(MakeCode(ServiceDocQA, CategoryCache, 1),
		http.StatusInternalServerError, codes.Internal, "Text cache write failed", "文本缓存写入失败"))

	// ErrExternalService Embedding 或 LLM 服务调用失败。
	ErrExternalService = Register(New(MakeCode(ServiceDocQA, CategoryNetwork, 1),
		http.StatusBadGateway, codes.Unavailable, "External service failure, please retry", "外部服务调用失败，请重试"))

	// ErrExternalTimeout Embedding 或 LLM 服务调用超时。
	ErrExternalTimeout = Register(New(MakeCode(ServiceDocQA, CategoryTimeout, 1),
		http.StatusGatewayTimeout, codes.DeadlineExceeded, "External service timed out, please retry", "外部服务调用超时，请重试"))
)

// IsExternalFailure reports whether err is an external service failure,
// including timeouts.
func IsExternalFailure(err error) bool {
	return IsCode(err, ErrExternalService.Code) || IsCode(err, ErrExternalTimeout.Code)
}
