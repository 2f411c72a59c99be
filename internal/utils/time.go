package utils

import (
	"time"

	_ "time/tzdata"

	"github.com/go-universal/jalaali"
)

// TehranLoc returns the Tehran time zone location.
// Using the jalaali helper keeps behavior consistent even on minimal systems.
func TehranLoc() *time.Location {
	return jalaali.TehranTz()
}

// JalaliDateTime returns a string like "1404/10/09 - 16:40" (in Tehran time).
func JalaliDateTime(t time.Time) string {
	j := jalaali.New(t.In(TehranLoc()))
	return j.Format("2006/01/02 - 15:04")
}

// UTCStamp returns a string like "2026-10-19 08:30 UTC".
func UTCStamp(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04") + " UTC"
}
