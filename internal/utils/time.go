package utils

import "time"

// Now is the single clock for the module; everything stored or compared is UTC.
func Now() time.Time {
	return time.Now().UTC()
}
