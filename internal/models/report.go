package models

import (
	"encoding/json"
	"time"
)

// FailedSubject 失败对象信息
type FailedSubject struct {
	Subject Subject   `json:"subject"`
	Kind    FaultKind `json:"kind"`
	Message string    `json:"message"`
}

// RunReport 批量采集报告
// 批量结束时生成一次,只写不读
type RunReport struct {
	// 任务信息
	RunID         string `json:"run_id"`
	TotalSubjects int    `json:"total_subjects"` // 列表总数
	ResumedFrom   int    `json:"resumed_from"`   // 续采起始下标

	// 时间信息
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Duration   float64   `json:"duration"` // 秒

	// 本次运行的结果 (不含之前运行已成功的对象)
	Attempted      int             `json:"attempted"`
	Successful     []Subject       `json:"successful"`
	Failed         []FailedSubject `json:"failed"`
	ArtifactCounts map[Subject]int `json:"artifact_counts"`

	// 会话统计
	SessionRestarts int `json:"session_restarts"`

	// 中止信息
	Aborted     bool   `json:"aborted"`
	AbortReason string `json:"abort_reason,omitempty"`
}

// NewRunReport 创建报告
func NewRunReport(total int, resumedFrom int) *RunReport {
	return &RunReport{
		RunID:          newRunID(),
		TotalSubjects:  total,
		ResumedFrom:    resumedFrom,
		StartedAt:      time.Now(),
		Successful:     make([]Subject, 0),
		Failed:         make([]FailedSubject, 0),
		ArtifactCounts: make(map[Subject]int),
	}
}

// Record 记录单个对象结果
func (r *RunReport) Record(o *SubjectOutcome) {
	r.Attempted++
	if o.Succeeded() {
		r.Successful = append(r.Successful, o.Subject)
		r.ArtifactCounts[o.Subject] = len(o.Artifacts)
		return
	}
	r.Failed = append(r.Failed, FailedSubject{
		Subject: o.Subject,
		Kind:    o.Fault,
		Message: o.Message,
	})
}

// Finish 结束计时
func (r *RunReport) Finish() {
	r.FinishedAt = time.Now()
	r.Duration = r.FinishedAt.Sub(r.StartedAt).Seconds()
}

// Reconciles 成功数+失败数是否等于尝试数
func (r *RunReport) Reconciles() bool {
	return len(r.Successful)+len(r.Failed) == r.Attempted
}

// FailedSubjects 失败对象名列表(用于人工重跑)
func (r *RunReport) FailedSubjects() []Subject {
	out := make([]Subject, 0, len(r.Failed))
	for _, f := range r.Failed {
		out = append(out, f.Subject)
	}
	return out
}

// ToJSON 序列化为JSON
func (r *RunReport) ToJSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// FromJSON 从JSON反序列化
func (r *RunReport) FromJSON(data []byte) error {
	return json.Unmarshal(data, r)
}
