package entities

// Параметры постраничной выборки.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Pageable задает страницу выборки. Page считается с нуля.
type Pageable struct {
	Page int
	Size int
}

// Limit возвращает размер страницы с учетом значений по умолчанию и ограничения сверху.
func (p Pageable) Limit() int {
	switch {
	case p.Size <= 0:
		return DefaultPageSize
	case p.Size > MaxPageSize:
		return MaxPageSize
	default:
		return p.Size
	}
}

// Offset возвращает смещение первой записи страницы.
func (p Pageable) Offset() int {
	if p.Page <= 0 {
		return 0
	}
	return p.Page * p.Limit()
}
