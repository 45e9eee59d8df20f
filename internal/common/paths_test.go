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

package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"root", "/", "/"},
		{"empty", "", "/"},
		{"trailing slash", "/a/b/", "/a/b"},
		{"multiple trailing slashes", "/a/b///", "/a/b"},
		{"missing leading slash", "a/b", "/a/b"},
		{"already normalized", "/a/b/c", "/a/b/c"},
		{"bare name", "file.txt", "/file.txt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, NormalizePath(tt.input))
		})
	}
}

func TestSplitPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{"root", "/", nil},
		{"single", "/a", []string{"a"}},
		{"nested", "/a/b/c", []string{"a", "b", "c"}},
		{"empty segments", "/a//b", []string{"a", "b"}},
		{"no leading slash", "a/b", []string{"a", "b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, SplitPath(tt.input))
		})
	}
}

func TestParentPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"root", "/", "/"},
		{"top level", "/a", "/"},
		{"nested", "/a/b/c", "/a/b"},
		{"trailing slash", "/a/b/", "/a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, ParentPath(tt.input))
		})
	}
}

func TestBaseName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "", BaseName("/"))
	assert.Equal(t, "a", BaseName("/a"))
	assert.Equal(t, "c.txt", BaseName("/a/b/c.txt"))
}

func TestJoinPath(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "/a", JoinPath("/", "a"))
	assert.Equal(t, "/a/b", JoinPath("/a", "b"))
	assert.Equal(t, "/a/b", JoinPath("/a/", "b"))
}

func TestIsDescendant(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		root     string
		path     string
		expected bool
	}{
		{"direct child", "/a", "/a/b", true},
		{"deep descendant", "/a", "/a/b/c/d", true},
		{"same path", "/a", "/a", false},
		{"sibling with shared prefix", "/a", "/ab", false},
		{"unrelated", "/a", "/b/c", false},
		{"root contains everything", "/", "/x", true},
		{"root is not its own descendant", "/", "/", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, IsDescendant(tt.root, tt.path))
		})
	}
}
