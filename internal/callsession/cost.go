package callsession

// Billing rounds elapsed time up to the next full minute: a one-second
// call costs one full minute's rate. Amounts are minor units (int64).

// UsedMinutes returns the number of started minutes for elapsedSeconds.
func UsedMinutes(elapsedSeconds int) int {
	if elapsedSeconds <= 0 {
		return 0
	}
	return (elapsedSeconds + 59) / 60
}

// Cost returns the charge for elapsedSeconds at ratePerMinuteMinor.
func Cost(elapsedSeconds int, ratePerMinuteMinor int64) int64 {
	return int64(UsedMinutes(elapsedSeconds)) * ratePerMinuteMinor
}

// RemainingMinutes returns the unspent minutes of the purchased budget,
// floored at zero.
func RemainingMinutes(elapsedSeconds, maxMinutes int) int {
	remaining := maxMinutes - UsedMinutes(elapsedSeconds)
	if remaining < 0 {
		return 0
	}
	return remaining
}
