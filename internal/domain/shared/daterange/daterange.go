package daterange

import (
	"errors"
	"time"
)

var ErrInvalidRange = errors.New("daterange: check-out must be after check-in")

const day = 24 * time.Hour

// DateRange is the half-open stay interval [CheckIn, CheckOut). A stay ending
// on the day another begins does not overlap it.
type DateRange struct {
	CheckIn  time.Time
	CheckOut time.Time
}

func New(checkIn, checkOut time.Time) (DateRange, error) {
	dr := DateRange{CheckIn: checkIn.UTC(), CheckOut: checkOut.UTC()}
	if err := dr.Validate(); err != nil {
		return DateRange{}, err
	}
	return dr, nil
}

func (dr DateRange) Validate() error {
	if dr.CheckOut.IsZero() || dr.CheckIn.IsZero() {
		return ErrInvalidRange
	}
	if !dr.CheckOut.After(dr.CheckIn) {
		return ErrInvalidRange
	}
	return nil
}

// Nights counts started days: a partial trailing day is billed as a full night.
func (dr DateRange) Nights() int {
	diff := dr.CheckOut.Sub(dr.CheckIn)
	if diff <= 0 {
		return 0
	}
	nights := int(diff / day)
	if diff%day != 0 {
		nights++
	}
	return nights
}

func (dr DateRange) Overlaps(other DateRange) bool {
	return dr.CheckIn.Before(other.CheckOut) && other.CheckIn.Before(dr.CheckOut)
}

// Intersect returns the overlapping part of both ranges.
func (dr DateRange) Intersect(other DateRange) (DateRange, bool) {
	if !dr.Overlaps(other) {
		return DateRange{}, false
	}
	start := dr.CheckIn
	if other.CheckIn.After(start) {
		start = other.CheckIn
	}
	end := dr.CheckOut
	if other.CheckOut.Before(end) {
		end = other.CheckOut
	}
	return DateRange{CheckIn: start, CheckOut: end}, true
}

// StartsBefore reports whether check-in falls on a calendar day before now's day (UTC).
func (dr DateRange) StartsBefore(now time.Time) bool {
	now = now.UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	in := dr.CheckIn.UTC()
	checkInDay := time.Date(in.Year(), in.Month(), in.Day(), 0, 0, 0, 0, time.UTC)
	return checkInDay.Before(today)
}
