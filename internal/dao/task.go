package dao

import "time"

type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusSucceeded TaskStatus = "succeeded"
	TaskStatusFailed    TaskStatus = "failed"
	TaskStatusCanceled  TaskStatus = "canceled"
)

func (s TaskStatus) Terminal() bool {
	return s == TaskStatusSucceeded || s == TaskStatusFailed || s == TaskStatusCanceled
}

type TaskSpec struct {
	Id         string          `json:"id"`
	Name       string          `json:"name"`
	SiteId     string          `json:"siteId,omitempty"`
	Status     TaskStatus      `json:"status"`
	CreateTime time.Time       `json:"createTime"`
	StartTime  *time.Time      `json:"startTime,omitempty"`
	FinishTime *time.Time      `json:"finishTime,omitempty"`
	Error      string          `json:"error,omitempty"`
	Result     *AnalysisResult `json:"result,omitempty"`
}

type BatchAnalyzeRequest struct {
	Sites []string `json:"sites" binding:"omitempty,dive,siteid"`
}

type BatchAnalyzeResponse struct {
	Tasks []*TaskSpec `json:"tasks"`
}

type ListTasksResponse struct {
	Items []*TaskSpec `json:"items"`
	Total int         `json:"total"`
}
