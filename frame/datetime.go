package frame

import "time"

// dateEpochOffset is 2^31: the Date primitive is an unsigned 32-bit count
// of days offset from this value so that the epoch (1970-01-01) is
// representable as well as dates many millennia before and after it.
const dateEpochOffset uint32 = 1 << 31

// LocalDate is a calendar date with no time-of-day or timezone component,
// matching the CQL `date` type. Year may be zero or negative (proleptic
// Gregorian calendar, astronomical year numbering) to round-trip the
// extreme values in spec §8.
type LocalDate struct {
	Year  int
	Month time.Month
	Day   int
}

// EncodeDate converts d to its unsigned 32-bit wire representation.
func EncodeDate(d LocalDate) uint32 {
	t := time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
	days := t.Unix() / 86400
	return uint32(days + int64(dateEpochOffset))
}

// DecodeDate converts the unsigned 32-bit wire representation back to a
// calendar date.
func DecodeDate(v uint32) LocalDate {
	days := int64(v) - int64(dateEpochOffset)
	t := time.Unix(days*86400, 0).UTC()
	return LocalDate{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

// LocalTime is a time-of-day with nanosecond precision and no date or
// timezone component, matching the CQL `time` type: signed 64-bit
// nanoseconds since midnight, 0..86,399,999,999,999.
type LocalTime int64

const maxLocalTime LocalTime = 86_399_999_999_999

func NewLocalTime(hour, min, sec, nanos int) LocalTime {
	return LocalTime(time.Duration(hour)*time.Hour +
		time.Duration(min)*time.Minute +
		time.Duration(sec)*time.Second +
		time.Duration(nanos))
}

func (t LocalTime) Clock() (hour, min, sec, nanos int) {
	v := int64(t)
	hour = int(v / int64(time.Hour))
	v %= int64(time.Hour)
	min = int(v / int64(time.Minute))
	v %= int64(time.Minute)
	sec = int(v / int64(time.Second))
	nanos = int(v % int64(time.Second))
	return
}

func EncodeTime(t LocalTime) int64 { return int64(t) }

func DecodeTime(v int64) LocalTime { return LocalTime(v) }

// EncodeTimestamp converts a wall-clock instant to the wire's signed
// 64-bit milliseconds-since-epoch representation.
func EncodeTimestamp(t time.Time) int64 {
	return t.UnixNano() / int64(time.Millisecond)
}

// DecodeTimestamp converts milliseconds-since-epoch to a UTC time.Time.
func DecodeTimestamp(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
