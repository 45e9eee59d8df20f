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

import "strings"

// NormalizePath strips trailing slashes (keeping "/" itself) and prepends
// a leading slash when missing. Paths are treated lexically: no "."/".."
// interpretation and no symlink dereference happens here.
func NormalizePath(path string) string {
	for len(path) > 1 && strings.HasSuffix(path, "/") {
		path = path[:len(path)-1]
	}
	if path == "" {
		return "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return path
}

// SplitPath splits a normalized path into components, discarding empty
// segments. The root path yields nil.
func SplitPath(path string) []string {
	path = NormalizePath(path)
	if path == "/" {
		return nil
	}
	var parts []string
	for _, part := range strings.Split(path, "/") {
		if part != "" {
			parts = append(parts, part)
		}
	}
	return parts
}

// ParentPath returns the parent directory of a normalized path.
// The parent of "/" is "/".
func ParentPath(path string) string {
	path = NormalizePath(path)
	if path == "/" {
		return "/"
	}
	idx := strings.LastIndex(path, "/")
	if idx == 0 {
		return "/"
	}
	return path[:idx]
}

// BaseName returns the final component of a normalized path.
// The base of "/" is "".
func BaseName(path string) string {
	path = NormalizePath(path)
	if path == "/" {
		return ""
	}
	return path[strings.LastIndex(path, "/")+1:]
}

// JoinPath joins a directory and a child name into a normalized path.
func JoinPath(dir, name string) string {
	dir = NormalizePath(dir)
	if dir == "/" {
		return "/" + name
	}
	return dir + "/" + name
}

// IsDescendant reports whether path lies strictly inside root.
func IsDescendant(root, path string) bool {
	root = NormalizePath(root)
	path = NormalizePath(path)
	if root == "/" {
		return path != "/"
	}
	return strings.HasPrefix(path, root+"/")
}
