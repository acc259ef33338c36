package ruleengine

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	preReleaseDelimiter = "-"
	buildDelimiter      = "+"
)

// SemverEvaluator compares dot-separated version strings ("1.2", "2.0.1-beta", "3.1+build.7").
// A condition with fewer parts than the attribute acts as a prefix: "2.1" equals "2.1.9".
type SemverEvaluator struct {
	// Accept reports whether the comparison result (-1, 0, 1) is a match.
	Accept func(cmp int) bool
}

func (e SemverEvaluator) Eval(condition *Leaf, value any) (bool, error) {
	target, ok := condition.Value.(string)
	if !ok {
		return false, unsupported(condition)
	}
	version, ok := value.(string)
	if !ok {
		return false, incompatible(condition, value)
	}

	cmp, err := CompareVersions(target, version)
	if err != nil {
		return false, err
	}
	return e.Accept(cmp), nil
}

// CompareVersions compares the user version against the target version.
// It returns -1, 0 or 1 when the user version is lower, equal or greater.
// Only the parts present in the target are compared.
func CompareVersions(target, version string) (int, error) {
	targetParts, err := splitVersion(target)
	if err != nil {
		return 0, err
	}
	userParts, err := splitVersion(version)
	if err != nil {
		return 0, err
	}

	targetPreRelease := isPreRelease(target)
	targetBuild := isBuild(target)
	userPreRelease := isPreRelease(version)

	for idx, targetPart := range targetParts {
		if idx >= len(userParts) {
			if targetPreRelease || targetBuild {
				return 1, nil
			}
			return -1, nil
		}

		userPart := userParts[idx]
		userNum, userErr := strconv.Atoi(userPart)
		targetNum, targetErr := strconv.Atoi(targetPart)

		if userErr == nil && targetErr == nil {
			if userNum > targetNum {
				return 1, nil
			}
			if userNum < targetNum {
				return -1, nil
			}
			continue
		}

		if userPart < targetPart {
			if targetPreRelease && !userPreRelease {
				return 1, nil
			}
			return -1, nil
		}
		if userPart > targetPart {
			if !targetPreRelease && userPreRelease {
				return -1, nil
			}
			return 1, nil
		}
	}

	if userPreRelease && !targetPreRelease {
		return -1, nil
	}
	return 0, nil
}

// splitVersion returns the numeric parts of the version followed by the
// pre-release or build suffix, if any.
func splitVersion(version string) ([]string, error) {
	if strings.ContainsAny(version, " \t\n\r") {
		return nil, fmt.Errorf("%w: %q contains whitespace", ErrInvalidVersion, version)
	}

	prefix, suffix := version, ""
	switch {
	case isPreRelease(version):
		prefix, suffix, _ = strings.Cut(version, preReleaseDelimiter)
	case isBuild(version):
		prefix, suffix, _ = strings.Cut(version, buildDelimiter)
	}

	parts := strings.Split(prefix, ".")
	if len(parts) > 3 {
		return nil, fmt.Errorf("%w: %q has more than three parts", ErrInvalidVersion, version)
	}
	for _, part := range parts {
		if !isDigits(part) {
			return nil, fmt.Errorf("%w: %q has a non numeric part", ErrInvalidVersion, version)
		}
	}

	if suffix != "" {
		parts = append(parts, suffix)
	}
	return parts, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// isPreRelease reports whether a "-" appears before any "+".
func isPreRelease(version string) bool {
	pre := strings.Index(version, preReleaseDelimiter)
	if pre < 0 {
		return false
	}
	build := strings.Index(version, buildDelimiter)
	return build < 0 || pre < build
}

// isBuild reports whether a "+" appears before any "-".
func isBuild(version string) bool {
	build := strings.Index(version, buildDelimiter)
	if build < 0 {
		return false
	}
	pre := strings.Index(version, preReleaseDelimiter)
	return pre < 0 || build < pre
}
