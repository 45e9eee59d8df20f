// Copyright 2024 agentvfs Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package policy

import (
	"regexp"
	"strings"
	"sync"
)

// Glob semantics for path policies:
//   - `*`  matches any run of non-separator characters (one segment)
//   - `**` matches anything including separators (zero or more segments)
//   - every other character matches literally
// Patterns and paths both get a leading "/" before matching, and the
// match is anchored to the whole path.

var globCache sync.Map // pattern -> *regexp.Regexp

// MatchGlob reports whether path matches pattern.
func MatchGlob(pattern, path string) bool {
	re := compileGlob(pattern)
	return re.MatchString(ensureSlash(path))
}

func compileGlob(pattern string) *regexp.Regexp {
	if cached, ok := globCache.Load(pattern); ok {
		return cached.(*regexp.Regexp)
	}
	re := regexp.MustCompile(globToRegexp(ensureSlash(pattern)))
	globCache.Store(pattern, re)
	return re
}

// globToRegexp translates a glob pattern into an anchored regexp.
func globToRegexp(pattern string) string {
	var b strings.Builder
	b.WriteString("^")
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		if c == '*' {
			if i+1 < len(pattern) && pattern[i+1] == '*' {
				b.WriteString(".*")
				i++
			} else {
				b.WriteString("[^/]*")
			}
			continue
		}
		b.WriteString(regexp.QuoteMeta(string(c)))
	}
	b.WriteString("$")
	return b.String()
}

func ensureSlash(s string) string {
	if !strings.HasPrefix(s, "/") {
		return "/" + s
	}
	return s
}
