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

// Package tools provides the tool-call log persisted in tool_calls.
// Calls move through pending -> success|error; timestamps are unix
// seconds and duration_ms is derived on completion.
package tools

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"agentvfs/internal/storage"
)

// Log provides tool call tracking over an open database.
type Log struct {
	store *storage.Store
}

// New creates a tool-call log.
func New(store *storage.Store) *Log {
	return &Log{store: store}
}

// Call is a recorded tool invocation.
type Call struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
	Error       *string         `json:"error,omitempty"`
	Status      string          `json:"status"`
	StartedAt   int64           `json:"started_at"`
	CompletedAt int64           `json:"completed_at,omitempty"`
	DurationMs  int64           `json:"duration_ms,omitempty"`
}

// Stats is the per-tool aggregate returned by GetStats.
type Stats struct {
	Name          string  `json:"name"`
	TotalCalls    int64   `json:"total_calls"`
	Successful    int64   `json:"successful"`
	Failed        int64   `json:"failed"`
	AvgDurationMs float64 `json:"avg_duration_ms"`
}

// PendingCall is an in-progress tool call persisted with status
// "pending". Complete it with Success or Error.
type PendingCall struct {
	log       *Log
	id        int64
	name      string
	params    *string
	startedAt int64
}

// ID returns the persisted row id of the pending call.
func (pc *PendingCall) ID() int64 {
	return pc.id
}

// Start records the beginning of a tool call with status "pending".
func (l *Log) Start(ctx context.Context, name string, parameters any) (*PendingCall, error) {
	params, err := marshalOptional(parameters)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal parameters: %w", err)
	}

	startedAt := time.Now().Unix()
	model := &storage.ToolCallModel{
		Name:       name,
		Parameters: params,
		Status:     storage.ToolCallPending,
		StartedAt:  startedAt,
	}
	_, err = l.store.Bun().NewInsert().
		Model(model).
		Returning("id").
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to record tool call: %w", err)
	}

	return &PendingCall{log: l, id: model.ID, name: name, params: params, startedAt: startedAt}, nil
}

// Success completes the pending call with a result.
func (pc *PendingCall) Success(ctx context.Context, result any) (*Call, error) {
	resultJSON, err := marshalOptional(result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return pc.complete(ctx, storage.ToolCallSuccess, resultJSON, nil)
}

// Error completes the pending call with an error message.
func (pc *PendingCall) Error(ctx context.Context, callErr error) (*Call, error) {
	msg := callErr.Error()
	return pc.complete(ctx, storage.ToolCallError, nil, &msg)
}

func (pc *PendingCall) complete(ctx context.Context, status string, result, errMsg *string) (*Call, error) {
	completedAt := time.Now().Unix()
	durationMs := (completedAt - pc.startedAt) * 1000

	_, err := pc.log.store.Bun().NewUpdate().
		Model((*storage.ToolCallModel)(nil)).
		Set("status = ?", status).
		Set("result = ?", result).
		Set("error = ?", errMsg).
		Set("completed_at = ?", completedAt).
		Set("duration_ms = ?", durationMs).
		Where("id = ?", pc.id).
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to complete tool call: %w", err)
	}

	call := &Call{
		ID:          pc.id,
		Name:        pc.name,
		Status:      status,
		StartedAt:   pc.startedAt,
		CompletedAt: completedAt,
		DurationMs:  durationMs,
		Error:       errMsg,
	}
	if pc.params != nil {
		call.Parameters = json.RawMessage(*pc.params)
	}
	if result != nil {
		call.Result = json.RawMessage(*result)
	}
	return call, nil
}

// Record inserts a complete tool call in one shot, bypassing the
// pending lifecycle.
func (l *Log) Record(ctx context.Context, name string, parameters, result any, errMsg *string, startedAt, completedAt int64) (*Call, error) {
	params, err := marshalOptional(parameters)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal parameters: %w", err)
	}
	resultJSON, err := marshalOptional(result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}

	status := storage.ToolCallSuccess
	if errMsg != nil {
		status = storage.ToolCallError
	}
	durationMs := (completedAt - startedAt) * 1000

	model := &storage.ToolCallModel{
		Name:        name,
		Parameters:  params,
		Result:      resultJSON,
		Error:       errMsg,
		Status:      status,
		StartedAt:   startedAt,
		CompletedAt: &completedAt,
		DurationMs:  &durationMs,
	}
	_, err = l.store.Bun().NewInsert().
		Model(model).
		Returning("id").
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to record tool call: %w", err)
	}

	return modelToCall(model), nil
}

// Get retrieves a tool call by id.
func (l *Log) Get(ctx context.Context, id int64) (*Call, error) {
	var model storage.ToolCallModel
	err := l.store.Bun().NewSelect().
		Model(&model).
		Where("id = ?", id).
		Scan(ctx)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("tool call not found: %d", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tool call: %w", err)
	}
	return modelToCall(&model), nil
}

// GetByName retrieves the most recent calls for a tool name.
func (l *Log) GetByName(ctx context.Context, name string, limit int) ([]Call, error) {
	if limit <= 0 {
		limit = 100
	}
	var models []storage.ToolCallModel
	err := l.store.Bun().NewSelect().
		Model(&models).
		Where("name = ?", name).
		Order("started_at DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query tool calls: %w", err)
	}
	return modelsToCalls(models), nil
}

// GetRecent retrieves calls started after the given unix timestamp.
func (l *Log) GetRecent(ctx context.Context, since int64, limit int) ([]Call, error) {
	if limit <= 0 {
		limit = 100
	}
	var models []storage.ToolCallModel
	err := l.store.Bun().NewSelect().
		Model(&models).
		Where("started_at > ?", since).
		Order("started_at DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query tool calls: %w", err)
	}
	return modelsToCalls(models), nil
}

// GetStats returns aggregate per-tool statistics.
func (l *Log) GetStats(ctx context.Context) ([]Stats, error) {
	var stats []Stats
	err := l.store.Bun().NewRaw(`
		SELECT
			name,
			COUNT(*) AS total_calls,
			SUM(CASE WHEN status = 'success' THEN 1 ELSE 0 END) AS successful,
			SUM(CASE WHEN status = 'error' THEN 1 ELSE 0 END) AS failed,
			COALESCE(AVG(duration_ms), 0) AS avg_duration_ms
		FROM tool_calls
		GROUP BY name
		ORDER BY total_calls DESC
	`).Scan(ctx, &stats)
	if err != nil {
		return nil, fmt.Errorf("failed to query stats: %w", err)
	}
	return stats, nil
}

func modelToCall(m *storage.ToolCallModel) *Call {
	call := &Call{
		ID:        m.ID,
		Name:      m.Name,
		Status:    m.Status,
		StartedAt: m.StartedAt,
		Error:     m.Error,
	}
	if m.Parameters != nil {
		call.Parameters = json.RawMessage(*m.Parameters)
	}
	if m.Result != nil {
		call.Result = json.RawMessage(*m.Result)
	}
	if m.CompletedAt != nil {
		call.CompletedAt = *m.CompletedAt
	}
	if m.DurationMs != nil {
		call.DurationMs = *m.DurationMs
	}
	return call
}

func modelsToCalls(models []storage.ToolCallModel) []Call {
	calls := make([]Call, 0, len(models))
	for i := range models {
		calls = append(calls, *modelToCall(&models[i]))
	}
	return calls
}

// marshalOptional JSON-encodes a value, passing nil through.
func marshalOptional(v any) (*string, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	s := string(data)
	return &s, nil
}
