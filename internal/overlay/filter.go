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

package overlay

import (
	"os"
	"path/filepath"

	ignore "github.com/sabhiram/go-gitignore"
	log "github.com/sirupsen/logrus"

	"agentvfs/internal/policy"
)

// excluder decides which host entries an import skips. Explicit exclude
// globs always apply; gitignore rules from the base directory are
// layered underneath when enabled.
type excluder struct {
	patterns  []string
	gitignore *ignore.GitIgnore
}

func newExcluder(basePath string, patterns []string, respectGitignore bool) *excluder {
	e := &excluder{patterns: patterns}
	if respectGitignore {
		gitignorePath := filepath.Join(basePath, ".gitignore")
		if _, err := os.Stat(gitignorePath); err == nil {
			matcher, err := ignore.CompileIgnoreFile(gitignorePath)
			if err != nil {
				log.WithError(err).WithField("path", gitignorePath).Warn("failed to compile gitignore")
			} else {
				e.gitignore = matcher
			}
		}
	}
	return e
}

// excluded reports whether the relative path is skipped by an explicit
// glob or a gitignore rule. relPath uses forward slashes without a
// leading slash.
func (e *excluder) excluded(relPath string) bool {
	for _, pattern := range e.patterns {
		if policy.MatchGlob(pattern, relPath) {
			return true
		}
	}
	if e.gitignore != nil && e.gitignore.MatchesPath(relPath) {
		return true
	}
	return false
}
