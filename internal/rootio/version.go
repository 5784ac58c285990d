// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package rootio

import "fmt"

// Version is a ROOT release, e.g. 6.08/06.
type Version struct {
	Major int
	Minor int
	Micro int
}

// ParseVersion decodes ROOT's integer version form (60806 is 6.08/06).
func ParseVersion(v int) (Version, error) {
	if v < 10000 {
		return Version{}, fmt.Errorf("%w: %d is not a valid ROOT version integer", ErrVersion, v)
	}
	return Version{Major: v / 10000, Minor: (v / 100) % 100, Micro: v % 100}, nil
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%02d/%02d", v.Major, v.Minor, v.Micro)
}

// Int returns the integer form.
func (v Version) Int() int {
	return v.Major*10000 + v.Minor*100 + v.Micro
}
