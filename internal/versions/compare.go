package versions

import "github.com/Masterminds/semver/v3"

// IsNewerVersion reports whether newVersion is strictly greater than oldVersion.
// It uses semantic versioning for comparison when both strings are valid semver,
// and falls back to lexicographic string comparison otherwise.
func IsNewerVersion(newVersion, oldVersion string) bool {
	newSemver, oldSemver, ok := parsePair(newVersion, oldVersion)
	if !ok {
		return newVersion > oldVersion
	}
	return newSemver.GreaterThan(oldSemver)
}

// CompareSemver compares two semantic versions. The boolean is false when
// either string is not a semantic version, in which case the order is
// undefined.
func CompareSemver(a, b string) (int, bool) {
	va, vb, ok := parsePair(a, b)
	if !ok {
		return 0, false
	}
	return va.Compare(vb), true
}

func parsePair(a, b string) (*semver.Version, *semver.Version, bool) {
	va, errA := semver.NewVersion(a)
	vb, errB := semver.NewVersion(b)
	if errA != nil || errB != nil {
		return nil, nil, false
	}
	return va, vb, true
}
