/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package pathtree

import "strings"

// GlobMatcher matches one path segment (never containing '/') against one
// pattern segment. The matcher is a replaceable collaborator: this package
// only depends on the interface, so a caller can
// plug in a richer matcher (ICU, a vendored fnmatch, ...) without touching
// the tree. DefaultGlobMatcher below is the package's own robust-glob
// implementation, used unless the caller supplies another.
type GlobMatcher interface {
	// Match reports whether segment satisfies pattern. pattern may contain
	// '*', '?', '[set]'/'[!set]' and '{a,b,c}' alternation.
	Match(pattern, segment string) bool
}

// HasPatternChars reports whether s contains any glob metacharacter.
func HasPatternChars(s string) bool {
	return strings.ContainsAny(s, "*?[{")
}

// DefaultGlobMatcher implements the robust-glob recipe:
// '*' matches zero-or-more chars within a segment, '?' matches exactly one,
// '[set]'/'[!set]' is a character class, and '{a,b,c}' is alternation of
// literal sub-patterns. There is no cross-segment wildcard: the tree walk,
// not the matcher, handles '/'.
type DefaultGlobMatcher struct{}

// Match implements GlobMatcher.
func (DefaultGlobMatcher) Match(pattern, segment string) bool {
	return matchAlternation(pattern, segment)
}

func matchAlternation(pattern, segment string) bool {
	if alts, ok := splitAlternation(pattern); ok {
		for _, a := range alts {
			if matchGlob(a, segment) {
				return true
			}
		}
		return false
	}
	return matchGlob(pattern, segment)
}

// splitAlternation extracts a single top-level {a,b,c} group, if the whole
// pattern is exactly "prefix{alt1,alt2}suffix". Nested braces are not
// supported, matching the C implementation's single-level {..} handling.
func splitAlternation(pattern string) ([]string, bool) {
	start := strings.IndexByte(pattern, '{')
	if start < 0 {
		return nil, false
	}
	end := strings.IndexByte(pattern[start:], '}')
	if end < 0 {
		return nil, false
	}
	end += start

	prefix := pattern[:start]
	suffix := pattern[end+1:]
	parts := strings.Split(pattern[start+1:end], ",")

	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, prefix+p+suffix)
	}
	return out, true
}

// matchGlob implements '*', '?' and '[set]' over a single segment using a
// classic two-pointer backtracking algorithm.
func matchGlob(pattern, s string) bool {
	var pi, si int
	var starIdx = -1
	var starMatch int

	for si < len(s) {
		if pi < len(pattern) && pattern[pi] == '[' {
			end, ok := classEnd(pattern, pi)
			if !ok {
				return false
			}
			if matchClass(pattern[pi:end+1], s[si]) {
				pi = end + 1
				si++
				continue
			}
			if starIdx >= 0 {
				pi = starIdx + 1
				starMatch++
				si = starMatch
				continue
			}
			return false
		}

		if pi < len(pattern) && (pattern[pi] == '?' || pattern[pi] == s[si]) {
			pi++
			si++
			continue
		}

		if pi < len(pattern) && pattern[pi] == '*' {
			starIdx = pi
			starMatch = si
			pi++
			continue
		}

		if starIdx >= 0 {
			pi = starIdx + 1
			starMatch++
			si = starMatch
			continue
		}

		return false
	}

	for pi < len(pattern) && pattern[pi] == '*' {
		pi++
	}

	return pi == len(pattern)
}

func classEnd(pattern string, start int) (int, bool) {
	i := start + 1
	if i < len(pattern) && pattern[i] == '!' {
		i++
	}
	for ; i < len(pattern); i++ {
		if pattern[i] == ']' {
			return i, true
		}
	}
	return 0, false
}

func matchClass(class string, c byte) bool {
	neg := false
	body := class[1 : len(class)-1]
	if strings.HasPrefix(body, "!") {
		neg = true
		body = body[1:]
	}

	matched := false
	for i := 0; i < len(body); i++ {
		if i+2 < len(body) && body[i+1] == '-' {
			if body[i] <= c && c <= body[i+2] {
				matched = true
			}
			i += 2
			continue
		}
		if body[i] == c {
			matched = true
		}
	}

	return matched != neg
}
