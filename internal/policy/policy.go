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

// Package policy implements pattern-based access control for the agent
// filesystem: deny-takes-precedence glob evaluation against stored
// sandbox metadata, plus an optional caller-supplied hook.
package policy

import (
	"context"
	"fmt"

	"agentvfs/internal/common"
)

// Operation is the closed set of filesystem operations subject to
// access control.
type Operation string

const (
	OpRead    Operation = "read"
	OpWrite   Operation = "write"
	OpDelete  Operation = "delete"
	OpMkdir   Operation = "mkdir"
	OpReaddir Operation = "readdir"
	OpStat    Operation = "stat"
	OpExecute Operation = "execute"
	OpRename  Operation = "rename"
	OpCopy    Operation = "copy"
	OpSymlink Operation = "symlink"
)

// Decision sources.
const (
	SourceLocal    = "local"
	SourceCallback = "callback"
)

// HookRequest is the enriched request passed to an access hook.
type HookRequest struct {
	Operation   Operation      `json:"operation"`
	Path        string         `json:"path"`
	WorkspaceID string         `json:"workspaceId,omitempty"`
	WorkloadID  string         `json:"workloadId,omitempty"`
	TrustClass  string         `json:"trustClass,omitempty"`
	Data        map[string]any `json:"data,omitempty"`
}

// Hook is a caller-supplied boolean access decision. It runs only after
// the local pattern checks pass.
//
// A hook must not call back into the Protected FS of the same instance:
// every protected operation consults the hook, so re-entering would
// recurse without bound. Use an unprotected Filesystem handle instead.
type Hook interface {
	CheckAccess(ctx context.Context, req *HookRequest) (bool, error)
}

// HookFunc adapts a function to the Hook interface.
type HookFunc func(ctx context.Context, req *HookRequest) (bool, error)

func (f HookFunc) CheckAccess(ctx context.Context, req *HookRequest) (bool, error) {
	return f(ctx, req)
}

// Decision is the outcome of an access check.
type Decision struct {
	Allowed bool
	Source  string // "local" or "callback"
	Reason  string // set when denied
}

// PermissionDeniedError is raised by CheckAccessOrThrow for denied
// operations.
type PermissionDeniedError struct {
	Code      string // always "EACCES"
	Operation Operation
	Path      string
	Reason    string
}

func (e *PermissionDeniedError) Error() string {
	return fmt.Sprintf("%s: %s %s: %s", e.Code, e.Operation, e.Path, e.Reason)
}

// AccessPolicy evaluates (operation, path) requests against the stored
// sandbox metadata and the registered hook.
type AccessPolicy struct {
	meta *MetadataStore
	hook Hook
}

// New creates an access policy over a metadata store. hook may be nil.
func New(meta *MetadataStore, hook Hook) *AccessPolicy {
	return &AccessPolicy{meta: meta, hook: hook}
}

// SetHook replaces the registered hook.
func (p *AccessPolicy) SetHook(hook Hook) {
	p.hook = hook
}

// Metadata returns the underlying metadata store.
func (p *AccessPolicy) Metadata() *MetadataStore {
	return p.meta
}

// CheckAccess evaluates an access request.
//
// Denied globs are checked first and win over allowed globs. A
// non-empty allowed list requires the path to match at least one entry.
// Only when the local checks pass does the hook run; its boolean is
// final.
func (p *AccessPolicy) CheckAccess(ctx context.Context, op Operation, path string, data map[string]any) (*Decision, error) {
	if p.hook == nil && p.meta == nil {
		return &Decision{Allowed: true, Source: SourceLocal}, nil
	}

	var md *Metadata
	if p.meta != nil {
		var err error
		md, err = p.meta.GetCached(ctx)
		if err != nil {
			return nil, err
		}
	}

	if md != nil {
		for _, pattern := range md.DeniedPaths {
			if MatchGlob(pattern, path) {
				return &Decision{
					Allowed: false,
					Source:  SourceLocal,
					Reason:  fmt.Sprintf("Path matches denied pattern: %s", pattern),
				}, nil
			}
		}
		if len(md.AllowedPaths) > 0 {
			matched := false
			for _, pattern := range md.AllowedPaths {
				if MatchGlob(pattern, path) {
					matched = true
					break
				}
			}
			if !matched {
				return &Decision{
					Allowed: false,
					Source:  SourceLocal,
					Reason:  "Path does not match any allowed pattern",
				}, nil
			}
		}
	}

	if p.hook == nil {
		return &Decision{Allowed: true, Source: SourceLocal}, nil
	}

	req := &HookRequest{Operation: op, Path: path, Data: data}
	if md != nil {
		req.WorkspaceID = md.WorkspaceID
		req.WorkloadID = md.WorkloadID
		req.TrustClass = md.TrustClass
	}
	allowed, err := p.hook.CheckAccess(ctx, req)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return &Decision{
			Allowed: false,
			Source:  SourceCallback,
			Reason:  "Denied by access hook",
		}, nil
	}
	return &Decision{Allowed: true, Source: SourceCallback}, nil
}

// CheckAccessOrThrow wraps CheckAccess, converting a denial into a
// PermissionDeniedError.
func (p *AccessPolicy) CheckAccessOrThrow(ctx context.Context, op Operation, path string, data map[string]any) error {
	decision, err := p.CheckAccess(ctx, op, path, data)
	if err != nil {
		return err
	}
	if !decision.Allowed {
		return &PermissionDeniedError{
			Code:      "EACCES",
			Operation: op,
			Path:      common.NormalizePath(path),
			Reason:    decision.Reason,
		}
	}
	return nil
}
