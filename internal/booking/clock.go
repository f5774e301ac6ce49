package booking

import "time"

// TimeProvider абстракция текущего времени
type TimeProvider interface {
	Now() time.Time
}

// RealTimeProvider возвращает системное время в UTC
type RealTimeProvider struct{}

func (RealTimeProvider) Now() time.Time {
	return time.Now().UTC()
}

// FixedTimeProvider всегда возвращает заданный момент
type FixedTimeProvider struct {
	At time.Time
}

func (f FixedTimeProvider) Now() time.Time {
	return f.At
}
