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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchGlob(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		pattern string
		path    string
		matches bool
	}{
		{"exact match", "/w/a.txt", "/w/a.txt", true},
		{"exact mismatch", "/w/a.txt", "/w/b.txt", false},

		// `*` matches within one segment only
		{"star single segment", "/w/*.txt", "/w/a.txt", true},
		{"star does not cross separator", "/w/*.txt", "/w/sub/a.txt", false},
		{"star single char run", "/w/*", "/w/x", true},
		{"star mid segment", "/w/a*c", "/w/abc", true},

		// `**` crosses separators
		{"doublestar crosses separator", "/w/**", "/w/sub/deep/a.txt", true},
		{"doublestar direct child", "/w/**", "/w/a.txt", true},
		{"doublestar suffix", "/**/*.txt", "/a/b/c.txt", true},
		{"doublestar mismatch root", "/w/**", "/other/a.txt", false},

		// regex metacharacters are literal
		{"dot is literal", "/w/a.txt", "/w/aXtxt", false},
		{"plus is literal", "/w/a+b", "/w/a+b", true},
		{"brackets are literal", "/w/[ab]", "/w/[ab]", true},
		{"brackets do not class-match", "/w/[ab]", "/w/a", false},

		// leading slash normalization on both sides
		{"pattern without slash", "w/**", "/w/a.txt", true},
		{"path without slash", "/w/*", "w/a", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.matches, MatchGlob(tt.pattern, tt.path),
				"pattern=%q path=%q", tt.pattern, tt.path)
		})
	}
}

func TestGlobToRegexp(t *testing.T) {
	t.Parallel()

	assert.Equal(t, `^/w/[^/]*\.txt$`, globToRegexp("/w/*.txt"))
	assert.Equal(t, `^/w/.*$`, globToRegexp("/w/**"))
}
