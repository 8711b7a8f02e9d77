package errors

// Service codes (AA).
const (
	// ServiceCommon is for errors shared by every service.
	ServiceCommon = 0

	// ServiceDocQA is for the document question answering service.
	ServiceDocQA = 20
)

// Category codes (BB).
const (
	CategorySuccess  = 0
	CategoryRequest  = 1  // 400
	CategoryResource = 4  // 404
	CategoryInternal = 7  // 500
	CategoryCache    = 9  // 500
	CategoryNetwork  = 10 // 502/503
	CategoryTimeout  = 11 // 504
)

// MakeCode creates an error code from service, category, and sequence.
func MakeCode(service, category, sequence int) int {
	return service*100000 + category*1000 + sequence
}

// ParseCode splits code into service, category, and sequence.
func ParseCode(code int) (service, category, sequence int) {
	service = code / 100000
	category = (code % 100000) / 1000
	sequence = code % 1000
	return
}

// IsClientError reports whether code belongs to a 4xx category.
func IsClientError(code int) bool {
	_, category, _ := ParseCode(code)
	return category >= CategoryRequest && category <= CategoryResource
}
