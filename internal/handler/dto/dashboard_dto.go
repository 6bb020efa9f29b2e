package dto

import (
	"time"

	"github.com/makkenzo/license-key-service/internal/domain/activity"
	"github.com/makkenzo/license-key-service/internal/domain/license"
)

type BreakdownResponse struct {
	Active  int64 `json:"active"`
	Used    int64 `json:"used"`
	Expired int64 `json:"expired"`
	Revoked int64 `json:"revoked"`
}

type ActivityEntryResponse struct {
	ID         int64     `json:"id"`
	Action     string    `json:"action"`
	Details    string    `json:"details"`
	LicenseKey *string   `json:"licenseKey"`
	CreatedAt  time.Time `json:"createdAt"`
}

type DashboardResponse struct {
	Success   bool                     `json:"success"`
	Stats     StatsResponse            `json:"stats"`
	Breakdown BreakdownResponse        `json:"breakdown"`
	Activity  []*ActivityEntryResponse `json:"activity"`
}

func NewDashboardResponse(stats license.Stats, b license.Breakdown, entries []*activity.Entry) *DashboardResponse {
	resp := &DashboardResponse{
		Success: true,
		Stats:   NewStatsResponse(stats),
		Breakdown: BreakdownResponse{
			Active:  b.Active,
			Used:    b.Used,
			Expired: b.Expired,
			Revoked: b.Revoked,
		},
		Activity: make([]*ActivityEntryResponse, len(entries)),
	}
	for i, e := range entries {
		item := &ActivityEntryResponse{
			ID:        e.ID,
			Action:    string(e.Action),
			Details:   e.Details,
			CreatedAt: e.CreatedAt,
		}
		if e.LicenseKey.Valid {
			key := e.LicenseKey.String
			item.LicenseKey = &key
		}
		resp.Activity[i] = item
	}
	return resp
}

type ReconcileResponse struct {
	Success bool          `json:"success"`
	Drifted bool          `json:"drifted"`
	Before  StatsResponse `json:"before"`
	After   StatsResponse `json:"after"`
}

func NewReconcileResponse(res license.ReconcileResult) *ReconcileResponse {
	return &ReconcileResponse{
		Success: true,
		Drifted: res.Drifted(),
		Before:  NewStatsResponse(res.Before),
		After:   NewStatsResponse(res.After),
	}
}
